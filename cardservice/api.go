package cardservice

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jonanatree/cardvault/cardservice/models"
	"github.com/jonanatree/cardvault/internal/cardgen"
	"github.com/jonanatree/cardvault/internal/cardrules"
	"github.com/jonanatree/cardvault/internal/expiry"
	"github.com/jonanatree/cardvault/internal/middleware"
)

// API is a HTTP API for the card service
type API struct {
	svc *Service
}

func NewAPI(svc *Service) *API {
	return &API{
		svc: svc,
	}
}

// envelope wraps every JSON response.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (a *API) AppendRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/signup", a.signup)
		r.Post("/auth/login", a.login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(a.svc.Tokens()))

			r.Post("/auth/logout", a.logout)
			r.Route("/creditcard", func(r chi.Router) {
				r.Get("/generate", a.generate)
				r.Get("/search", a.searchCards)
				r.Post("/", a.createCard)
				r.Get("/", a.listCards)
				r.Route("/{cardID}", func(r chi.Router) {
					r.Get("/", a.getCard)
					r.Put("/", a.updateCard)
					r.Delete("/", a.deleteCard)
					r.Post("/activate", a.activateCard)
					r.Post("/deactivate", a.deactivateCard)
				})
			})
		})
	})
}

func (a *API) signup(w http.ResponseWriter, r *http.Request) {
	var req models.Signup
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Message: "malformed request body"})
		return
	}
	session, err := a.svc.Signup(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{Success: true, Message: "user registered", Data: session})
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req models.Login
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Message: "malformed request body"})
		return
	}
	session, err := a.svc.Login(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "login successful", Data: session})
}

// logout is stateless: the client discards its token.
func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "logged out"})
}

func (a *API) generate(w http.ResponseWriter, r *http.Request) {
	gen, err := a.svc.Generate(r.Context(), r.URL.Query().Get("cardType"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "card number generated", Data: gen})
}

func (a *API) createCard(w http.ResponseWriter, r *http.Request) {
	var req models.CreateCard
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Message: "malformed request body"})
		return
	}
	card, err := a.svc.CreateCard(r.Context(), callerID(r), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{Success: true, Message: "card created", Data: cardView(card)})
}

func (a *API) listCards(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	caller := callerID(r)
	if userID := q.Get("userId"); userID != "" && userID != caller {
		writeJSON(w, http.StatusBadRequest, envelope{Message: "userId does not match the authenticated user"})
		return
	}

	var active *bool
	if v := q.Get("isActive"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, envelope{Message: "isActive must be true or false"})
			return
		}
		active = &b
	}

	cards, err := a.svc.ListCards(r.Context(), caller, active)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "cards retrieved", Data: cardViews(cards)})
}

func (a *API) searchCards(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cards, err := a.svc.SearchCards(r.Context(), callerID(r), q.Get("cardType"), q.Get("cardNumber"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "cards retrieved", Data: cardViews(cards)})
}

func (a *API) getCard(w http.ResponseWriter, r *http.Request) {
	card, err := a.svc.GetCard(r.Context(), callerID(r), chi.URLParam(r, "cardID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "card retrieved", Data: cardView(card)})
}

func (a *API) updateCard(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateCard
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Message: "malformed request body"})
		return
	}
	card, err := a.svc.UpdateCard(r.Context(), callerID(r), chi.URLParam(r, "cardID"), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "card updated", Data: cardView(card)})
}

func (a *API) deleteCard(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.DeleteCard(r.Context(), callerID(r), chi.URLParam(r, "cardID")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "card deleted"})
}

func (a *API) activateCard(w http.ResponseWriter, r *http.Request) {
	a.setActive(w, r, true)
}

func (a *API) deactivateCard(w http.ResponseWriter, r *http.Request) {
	a.setActive(w, r, false)
}

func (a *API) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	card, err := a.svc.SetActive(r.Context(), callerID(r), chi.URLParam(r, "cardID"), active)
	if err != nil {
		writeError(w, err)
		return
	}
	msg := "card deactivated"
	if active {
		msg = "card activated"
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: msg, Data: cardView(card)})
}

func callerID(r *http.Request) string {
	p, _ := middleware.PrincipalFrom(r.Context())
	return p.UserID
}

func cardView(c *models.Card) models.CardView {
	return models.CardView{
		ID:                c.ID,
		CardNumberPartial: cardgen.Mask(c.Number),
		ExpirationDate:    c.ExpirationDate,
		CardFace:          expiry.CardFace(c.ExpirationDate),
		CreditLimit:       c.CreditLimit,
		CurrentBalance:    c.CurrentBalance,
		IsActive:          c.Active,
		Type:              c.Network,
	}
}

func cardViews(cards []*models.Card) []models.CardView {
	out := make([]models.CardView, 0, len(cards))
	for _, c := range cards {
		out = append(out, cardView(c))
	}
	return out
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	if reason, ok := cardrules.ReasonOf(err); ok {
		switch reason {
		case cardrules.DuplicateNumber:
			return http.StatusConflict
		case cardrules.NotOwner:
			return http.StatusForbidden
		default:
			return http.StatusBadRequest
		}
	}
	switch {
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal server error"
	}
	body := envelope{Message: msg}
	if reason, ok := cardrules.ReasonOf(err); ok {
		body.Data = map[string]string{"reason": string(reason)}
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
