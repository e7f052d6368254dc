package cardservice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonanatree/cardvault/cardservice/models"
	"github.com/jonanatree/cardvault/internal/auth"
	"github.com/jonanatree/cardvault/internal/cardgen"
	"github.com/jonanatree/cardvault/internal/cardrules"
	"github.com/jonanatree/cardvault/internal/expiry"
	"golang.org/x/exp/slog"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

const (
	minPasswordLen  = 6
	generateRetries = 10
)

type Service struct {
	repo      *Repository
	cfg       *Config
	gen       *cardgen.Generator
	validator *cardrules.Validator
	tokens    *auth.Issuer
	locks     *ownerLocks
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(repo *Repository, cfg *Config, logger *slog.Logger) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		repo:      repo,
		cfg:       cfg,
		gen:       cardgen.NewGenerator(),
		validator: cardrules.NewValidator(cfg.rules(), nil),
		tokens:    auth.NewIssuer([]byte(cfg.JWT.Key), cfg.JWT.Issuer, cfg.JWT.Audience, cfg.JWT.Duration),
		locks:     newOwnerLocks(),
		logger:    logger,
		now:       time.Now,
	}
}

// Tokens returns the issuer that signs and verifies session tokens.
func (s *Service) Tokens() *auth.Issuer {
	return s.tokens
}

func (s *Service) Signup(ctx context.Context, req models.Signup) (*models.Session, error) {
	email := normalizeEmail(req.Email)
	firstName := strings.TrimSpace(req.FirstName)
	lastName := strings.TrimSpace(req.LastName)
	switch {
	case firstName == "" || lastName == "":
		return nil, fmt.Errorf("%w: first and last name are required", ErrInvalidInput)
	case !strings.Contains(email, "@"):
		return nil, fmt.Errorf("%w: a valid email is required", ErrInvalidInput)
	case len(req.Password) < minPasswordLen:
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLen)
	case len(req.Password) > auth.MaxPasswordLen:
		return nil, fmt.Errorf("%w: password must be at most %d bytes", ErrInvalidInput, auth.MaxPasswordLen)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		ID:           uuid.New().String(),
		FirstName:    firstName,
		LastName:     lastName,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, fmt.Errorf("email already registered: %w", ErrConflict)
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	s.logger.Info("user signed up", slog.String("user_id", user.ID))
	return s.session(user)
}

func (s *Service) Login(ctx context.Context, req models.Login) (*models.Session, error) {
	user, err := s.repo.FindUserByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("finding user: %w", err)
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		return nil, ErrInvalidCredentials
	}
	return s.session(user)
}

func (s *Service) session(user *models.User) (*models.Session, error) {
	token, expiresAt, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	return &models.Session{
		Token:     token,
		ExpiresAt: expiresAt,
		UserID:    user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	}, nil
}

// Generate returns a fresh number for the named network that no stored card
// uses yet. An empty name means Visa.
func (s *Service) Generate(ctx context.Context, networkName string) (*models.GeneratedNumber, error) {
	network := cardgen.Visa
	if strings.TrimSpace(networkName) != "" {
		n, ok := cardgen.ParseNetwork(networkName)
		if !ok {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, &cardgen.UnknownNetworkError{Name: networkName})
		}
		network = n
	}
	number, err := s.gen.GenerateUnique(ctx, network, generateRetries, s.repo.ExistsGlobally)
	if err != nil {
		return nil, fmt.Errorf("generating card number: %w", err)
	}
	return &models.GeneratedNumber{CardNumber: number, CardType: network.String()}, nil
}

// CreateCard runs the create pipeline for ownerID and stores the card
// inactive. Rejections are returned unwrapped.
func (s *Service) CreateCard(ctx context.Context, ownerID string, req models.CreateCard) (*models.Card, error) {
	network, ok := cardgen.ParseNetwork(req.Type)
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, &cardgen.UnknownNetworkError{Name: req.Type})
	}
	exp, err := expiry.Parse(req.ExpirationDate)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	number := cardgen.NormalizePAN(req.CardNumber)

	unlock := s.locks.lock(ownerID)
	defer unlock()

	rec, err := s.validator.Create(ctx, cardrules.CreateRequest{
		Number:         number,
		Network:        network,
		ExpirationDate: exp,
		CreditLimit:    req.CreditLimit,
		CurrentBalance: req.CurrentBalance,
		OwnerID:        ownerID,
	}, s.repo)
	if err != nil {
		return nil, s.rejected("create", ownerID, number, err)
	}

	now := s.now().UTC()
	card := &models.Card{
		ID:             uuid.New().String(),
		OwnerID:        rec.OwnerID,
		Number:         rec.Number,
		Network:        rec.Network.String(),
		ExpirationDate: rec.ExpirationDate,
		CreditLimit:    rec.CreditLimit,
		CurrentBalance: rec.CurrentBalance,
		Active:         rec.Active,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.CreateCard(ctx, card); err != nil {
		// Lost a race with another owner for the same number.
		if errors.Is(err, ErrConflict) {
			return nil, s.rejected("create", ownerID, number, cardrules.ErrDuplicateNumber)
		}
		return nil, fmt.Errorf("creating card: %w", err)
	}

	s.logger.Info("card created",
		slog.String("card_id", card.ID),
		slog.String("owner_id", ownerID),
		slog.String("last4", cardgen.Mask(card.Number)),
		slog.String("network", card.Network),
	)
	return card, nil
}

// GetCard returns the caller's card. Cards of other users are reported as
// not found.
func (s *Service) GetCard(ctx context.Context, ownerID, id string) (*models.Card, error) {
	card, err := s.repo.GetCard(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("finding card: %w", err)
	}
	if card.OwnerID != ownerID {
		return nil, fmt.Errorf("finding card: %w", ErrNotFound)
	}
	return card, nil
}

func (s *Service) ListCards(ctx context.Context, ownerID string, active *bool) ([]*models.Card, error) {
	cards, err := s.repo.ListCards(ctx, CardFilter{OwnerID: ownerID, Active: active})
	if err != nil {
		return nil, fmt.Errorf("listing cards: %w", err)
	}
	return cards, nil
}

// SearchCards filters the caller's cards by network and/or number. number
// matches the full card number or its trailing digits.
func (s *Service) SearchCards(ctx context.Context, ownerID, networkName, number string) ([]*models.Card, error) {
	networkName = strings.TrimSpace(networkName)
	number = cardgen.NormalizePAN(number)
	if networkName == "" && number == "" {
		return nil, fmt.Errorf("%w: at least one of cardType or cardNumber is required", ErrInvalidInput)
	}

	f := CardFilter{OwnerID: ownerID, NumberSuffix: number}
	if networkName != "" {
		n, ok := cardgen.ParseNetwork(networkName)
		if !ok {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, &cardgen.UnknownNetworkError{Name: networkName})
		}
		f.Network = n.String()
	}
	if number != "" && (!cardgen.IsDigits(number) || len(number) > cardgen.CardLen) {
		return nil, fmt.Errorf("%w: cardNumber must be up to %d digits", ErrInvalidInput, cardgen.CardLen)
	}

	cards, err := s.repo.ListCards(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("searching cards: %w", err)
	}
	return cards, nil
}

// UpdateCard changes only the credit limit and current balance.
func (s *Service) UpdateCard(ctx context.Context, ownerID, id string, req models.UpdateCard) (*models.Card, error) {
	unlock := s.locks.lock(ownerID)
	defer unlock()

	card, err := s.repo.GetCard(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("finding card: %w", err)
	}
	rec, err := s.validator.Update(toRecord(card), ownerID, req.CreditLimit, req.CurrentBalance)
	if err != nil {
		return nil, s.rejected("update", ownerID, card.Number, err)
	}

	card.CreditLimit = rec.CreditLimit
	card.CurrentBalance = rec.CurrentBalance
	card.UpdatedAt = s.now().UTC()
	if err := s.repo.UpdateCard(ctx, card); err != nil {
		return nil, fmt.Errorf("updating card: %w", err)
	}
	s.logger.Info("card updated", slog.String("card_id", card.ID), slog.String("owner_id", ownerID))
	return card, nil
}

func (s *Service) DeleteCard(ctx context.Context, ownerID, id string) error {
	unlock := s.locks.lock(ownerID)
	defer unlock()

	card, err := s.repo.GetCard(ctx, id)
	if err != nil {
		return fmt.Errorf("finding card: %w", err)
	}
	if err := s.validator.CheckDelete(toRecord(card), ownerID); err != nil {
		return s.rejected("delete", ownerID, card.Number, err)
	}
	if err := s.repo.DeleteCard(ctx, id); err != nil {
		return fmt.Errorf("deleting card: %w", err)
	}
	s.logger.Info("card deleted", slog.String("card_id", id), slog.String("owner_id", ownerID))
	return nil
}

// SetActive turns a card on or off. Turning on respects the active ceiling.
func (s *Service) SetActive(ctx context.Context, ownerID, id string, active bool) (*models.Card, error) {
	unlock := s.locks.lock(ownerID)
	defer unlock()

	card, err := s.repo.GetCard(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("finding card: %w", err)
	}
	if active {
		err = s.validator.CheckActivate(ctx, toRecord(card), ownerID, s.repo)
	} else if card.OwnerID != ownerID {
		err = cardrules.ErrNotOwner
	}
	if err != nil {
		return nil, s.rejected("activate", ownerID, card.Number, err)
	}
	if card.Active == active {
		return card, nil
	}

	card.Active = active
	card.UpdatedAt = s.now().UTC()
	if err := s.repo.UpdateCard(ctx, card); err != nil {
		return nil, fmt.Errorf("updating card: %w", err)
	}
	s.logger.Info("card state changed", slog.String("card_id", id), slog.Bool("active", active))
	return card, nil
}

// CheckNumber runs the number-level checks only.
func (s *Service) CheckNumber(number, networkName string) error {
	var network *cardgen.Network
	if strings.TrimSpace(networkName) != "" {
		n, ok := cardgen.ParseNetwork(networkName)
		if !ok {
			return fmt.Errorf("%w: %v", ErrInvalidInput, &cardgen.UnknownNetworkError{Name: networkName})
		}
		network = &n
	}
	return s.validator.CheckNumber(cardgen.NormalizePAN(number), network)
}

// rejected logs business-rule rejections and wraps collaborator failures.
func (s *Service) rejected(op, ownerID, number string, err error) error {
	reason, ok := cardrules.ReasonOf(err)
	if !ok {
		return fmt.Errorf("%s card: %w", op, err)
	}
	s.logger.Info("card rejected",
		slog.String("op", op),
		slog.String("owner_id", ownerID),
		slog.String("last4", cardgen.Mask(number)),
		slog.String("reason", string(reason)),
	)
	return err
}

func toRecord(c *models.Card) cardrules.Record {
	network, _ := cardgen.ParseNetwork(c.Network)
	return cardrules.Record{
		Number:         c.Number,
		Network:        network,
		ExpirationDate: c.ExpirationDate,
		CreditLimit:    c.CreditLimit,
		CurrentBalance: c.CurrentBalance,
		OwnerID:        c.OwnerID,
		Active:         c.Active,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
