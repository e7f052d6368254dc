// Package cardclient is a Go client for the card service REST API.
package cardclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonanatree/cardvault/cardservice/models"
)

type Client struct {
	Base  string
	HTTP  *http.Client
	Token string
}

func New(base string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{Base: strings.TrimRight(base, "/"), HTTP: hc}
}

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
	Reason  string
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("status=%d reason=%s: %s", e.Status, e.Reason, e.Message)
	}
	return fmt.Sprintf("status=%d: %s", e.Status, e.Message)
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Signup registers a user and keeps the returned token for later calls.
func (c *Client) Signup(ctx context.Context, req models.Signup) (*models.Session, error) {
	var s models.Session
	if err := c.do(ctx, http.MethodPost, "/api/auth/signup", req, &s); err != nil {
		return nil, fmt.Errorf("signup: %w", err)
	}
	c.Token = s.Token
	return &s, nil
}

// Login authenticates and keeps the returned token for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (*models.Session, error) {
	var s models.Session
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", models.Login{Email: email, Password: password}, &s); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	c.Token = s.Token
	return &s, nil
}

func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	c.Token = ""
	return nil
}

func (c *Client) Generate(ctx context.Context, cardType string) (*models.GeneratedNumber, error) {
	target := "/api/creditcard/generate"
	if cardType != "" {
		target += "?cardType=" + url.QueryEscape(cardType)
	}
	var g models.GeneratedNumber
	if err := c.do(ctx, http.MethodGet, target, nil, &g); err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	return &g, nil
}

func (c *Client) CreateCard(ctx context.Context, req models.CreateCard) (*models.CardView, error) {
	var v models.CardView
	if err := c.do(ctx, http.MethodPost, "/api/creditcard", req, &v); err != nil {
		return nil, fmt.Errorf("create card: %w", err)
	}
	return &v, nil
}

// ListCards returns the caller's cards; a nil active lists all of them.
func (c *Client) ListCards(ctx context.Context, active *bool) ([]models.CardView, error) {
	target := "/api/creditcard"
	if active != nil {
		target += fmt.Sprintf("?isActive=%t", *active)
	}
	var cards []models.CardView
	if err := c.do(ctx, http.MethodGet, target, nil, &cards); err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	return cards, nil
}

func (c *Client) DeleteCard(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/api/creditcard/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("delete card: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.Base+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode/100 != 2 {
			return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		}
		return fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode/100 != 2 {
		apiErr := &APIError{Status: resp.StatusCode, Message: env.Message}
		var d struct {
			Reason string `json:"reason"`
		}
		if len(env.Data) > 0 && json.Unmarshal(env.Data, &d) == nil {
			apiErr.Reason = d.Reason
		}
		return apiErr
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}
