package cardclient_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jonanatree/cardvault/cardservice"
	"github.com/jonanatree/cardvault/cardservice/models"
	"github.com/jonanatree/cardvault/internal/cardclient"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	router := chi.NewRouter()
	cardservice.NewAPI(cardservice.NewService(cardservice.NewRepository(), nil, nil)).AppendRoutes(router)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()
	c := cardclient.New(srv.URL+"/", nil)

	_, err := c.ListCards(ctx, nil)
	var apiErr *cardclient.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusUnauthorized, apiErr.Status)

	_, err = c.Signup(ctx, models.Signup{FirstName: "Rui", LastName: "Sá", Email: "rui@example.com", Password: "pa55word"})
	require.NoError(t, err)
	require.NotEmpty(t, c.Token)

	require.NoError(t, c.Logout(ctx))
	require.Empty(t, c.Token)
	_, err = c.Login(ctx, "rui@example.com", "pa55word")
	require.NoError(t, err)

	gen, err := c.Generate(ctx, "Amex")
	require.NoError(t, err)
	require.Equal(t, "Amex", gen.CardType)

	card, err := c.CreateCard(ctx, models.CreateCard{
		CardNumber:     gen.CardNumber,
		ExpirationDate: time.Now().AddDate(2, 0, 0).Format("2006-01-02"),
		CreditLimit:    decimal.NewFromInt(2500),
		CurrentBalance: decimal.NewFromInt(0),
		Type:           gen.CardType,
	})
	require.NoError(t, err)
	require.Equal(t, gen.CardNumber[12:], card.CardNumberPartial)

	_, err = c.CreateCard(ctx, models.CreateCard{
		CardNumber:     gen.CardNumber,
		ExpirationDate: time.Now().AddDate(2, 0, 0).Format("2006-01-02"),
		CreditLimit:    decimal.NewFromInt(2500),
		Type:           gen.CardType,
	})
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusConflict, apiErr.Status)
	require.Equal(t, "duplicate_number", apiErr.Reason)

	inactive := false
	cards, err := c.ListCards(ctx, &inactive)
	require.NoError(t, err)
	require.Len(t, cards, 1)

	require.NoError(t, c.DeleteCard(ctx, card.ID))
	cards, err = c.ListCards(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, cards)

	err = c.DeleteCard(ctx, card.ID)
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusNotFound, apiErr.Status)
}
