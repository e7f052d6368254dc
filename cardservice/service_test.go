package cardservice_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonanatree/cardvault/cardservice"
	"github.com/jonanatree/cardvault/cardservice/models"
	"github.com/jonanatree/cardvault/internal/cardgen"
	"github.com/jonanatree/cardvault/internal/cardrules"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func createReq(number, network string) models.CreateCard {
	return models.CreateCard{
		CardNumber:     number,
		ExpirationDate: time.Now().AddDate(3, 0, 0).Format(time.RFC3339),
		CreditLimit:    decimal.NewFromInt(1000),
		CurrentBalance: decimal.Zero,
		Type:           network,
	}
}

func TestCreateCard_TotalCeilingUnderConcurrency(t *testing.T) {
	svc := cardservice.NewService(cardservice.NewRepository(), nil, nil)
	gen := cardgen.NewSeededGenerator(7)

	seen := map[string]bool{}
	var numbers []string
	for len(numbers) < 25 {
		n := gen.Generate(cardgen.Visa)
		if !seen[n] {
			seen[n] = true
			numbers = append(numbers, n)
		}
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		created  int
		rejected int
	)
	for _, n := range numbers {
		wg.Add(1)
		go func(n string) {
			defer wg.Done()
			_, err := svc.CreateCard(context.Background(), "owner-1", createReq(n, "Visa"))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				created++
				return
			}
			if errors.Is(err, cardrules.ErrTotalLimitExceeded) {
				rejected++
			}
		}(n)
	}
	wg.Wait()

	require.Equal(t, cardrules.DefaultMaxTotal, created)
	require.Equal(t, len(numbers)-cardrules.DefaultMaxTotal, rejected)
}

func TestCreateCard_SameNumberRace(t *testing.T) {
	svc := cardservice.NewService(cardservice.NewRepository(), nil, nil)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
		losers  int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(owner string) {
			defer wg.Done()
			_, err := svc.CreateCard(context.Background(), owner, createReq("5555555555554444", "Mastercard"))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners++
				return
			}
			if errors.Is(err, cardrules.ErrDuplicateNumber) {
				losers++
			}
		}(string(rune('a' + i)))
	}
	wg.Wait()
	require.Equal(t, 1, winners)
	require.Equal(t, 7, losers)
}

func TestService_CheckNumber(t *testing.T) {
	svc := cardservice.NewService(cardservice.NewRepository(), nil, nil)
	require.NoError(t, svc.CheckNumber("4111-1111-1111-1111", "visa"))
	require.ErrorIs(t, svc.CheckNumber("4111111111111111", "amex"), cardrules.ErrNetworkMismatch)
	require.ErrorIs(t, svc.CheckNumber("0000000000000000", ""), cardrules.ErrBlacklisted)
	require.ErrorIs(t, svc.CheckNumber("4111111111111111", "discover"), cardservice.ErrInvalidInput)
}

func TestService_RulesFromConfig(t *testing.T) {
	cfg := cardservice.DefaultConfig()
	cfg.Rules.MaxTotal = 1
	svc := cardservice.NewService(cardservice.NewRepository(), cfg, nil)

	_, err := svc.CreateCard(context.Background(), "o", createReq("4111111111111111", "Visa"))
	require.NoError(t, err)
	_, err = svc.CreateCard(context.Background(), "o", createReq("4000000000000002", "Visa"))
	require.ErrorIs(t, err, cardrules.ErrTotalLimitExceeded)
}

func TestService_GenerateAvoidsStoredNumbers(t *testing.T) {
	svc := cardservice.NewService(cardservice.NewRepository(), nil, nil)
	for _, name := range []string{"Visa", "Mastercard", "Amex"} {
		g, err := svc.Generate(context.Background(), name)
		require.NoError(t, err)
		n, ok := cardgen.ParseNetwork(g.CardType)
		require.True(t, ok)
		require.True(t, n.Matches(g.CardNumber))
		require.True(t, cardgen.LuhnValid(g.CardNumber))
	}
}
