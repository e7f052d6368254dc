package cardrules_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonanatree/cardvault/internal/cardgen"
	"github.com/jonanatree/cardvault/internal/cardrules"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, time.October, 17, 9, 0, 0, 0, time.UTC)

type fakeLookups struct {
	exists bool
	active int
	total  int
	err    error
	calls  []string
}

func (f *fakeLookups) ExistsGlobally(_ context.Context, _ string) (bool, error) {
	f.calls = append(f.calls, "exists")
	return f.exists, f.err
}

func (f *fakeLookups) ActiveCountForOwner(_ context.Context, _ string) (int, error) {
	f.calls = append(f.calls, "active")
	return f.active, f.err
}

func (f *fakeLookups) TotalCountForOwner(_ context.Context, _ string) (int, error) {
	f.calls = append(f.calls, "total")
	return f.total, f.err
}

func newValidator() *cardrules.Validator {
	return cardrules.NewValidator(cardrules.DefaultRules(), func() time.Time { return fixedNow })
}

func validRequest() cardrules.CreateRequest {
	return cardrules.CreateRequest{
		Number:         "4111111111111111",
		Network:        cardgen.Visa,
		ExpirationDate: fixedNow.AddDate(1, 0, 0),
		CreditLimit:    decimal.RequireFromString("1000.00"),
		CurrentBalance: decimal.Zero,
		OwnerID:        "1",
	}
}

func requireReason(t *testing.T, err error, want cardrules.Reason) {
	t.Helper()
	got, ok := cardrules.ReasonOf(err)
	require.True(t, ok, "expected rejection %s, got %v", want, err)
	require.Equal(t, want, got)
}

func TestCreate_Success(t *testing.T) {
	rec, err := newValidator().Create(context.Background(), validRequest(), &fakeLookups{})
	require.NoError(t, err)
	require.False(t, rec.Active)
	require.True(t, rec.CurrentBalance.IsZero())
	require.True(t, rec.CreditLimit.Equal(decimal.RequireFromString("1000.00")))
	require.Equal(t, "4111111111111111", rec.Number)
	require.Equal(t, cardgen.Visa, rec.Network)
	require.Equal(t, "1", rec.OwnerID)
}

func TestCreate_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*cardrules.CreateRequest, *fakeLookups)
		want   cardrules.Reason
	}{
		{"duplicate", func(_ *cardrules.CreateRequest, l *fakeLookups) { l.exists = true }, cardrules.DuplicateNumber},
		{"15 digits", func(r *cardrules.CreateRequest, _ *fakeLookups) { r.Number = "123456789012345" }, cardrules.MalformedNumber},
		{"letters", func(r *cardrules.CreateRequest, _ *fakeLookups) { r.Number = "41111111111111a1" }, cardrules.MalformedNumber},
		{"checksum", func(r *cardrules.CreateRequest, _ *fakeLookups) { r.Number = "4000000000000000" }, cardrules.FailedChecksum},
		{"expired yesterday", func(r *cardrules.CreateRequest, _ *fakeLookups) { r.ExpirationDate = fixedNow.AddDate(0, 0, -1) }, cardrules.InvalidExpiration},
		{"eleven years out", func(r *cardrules.CreateRequest, _ *fakeLookups) { r.ExpirationDate = fixedNow.AddDate(11, 0, 0) }, cardrules.InvalidExpiration},
		{"zero limit", func(r *cardrules.CreateRequest, _ *fakeLookups) { r.CreditLimit = decimal.Zero }, cardrules.InvalidLimit},
		{"0.001 limit", func(r *cardrules.CreateRequest, _ *fakeLookups) { r.CreditLimit = decimal.RequireFromString("0.001") }, cardrules.InvalidLimit},
		{"0.009 limit", func(r *cardrules.CreateRequest, _ *fakeLookups) { r.CreditLimit = decimal.RequireFromString("0.009") }, cardrules.InvalidLimit},
		{"limit past cents", func(r *cardrules.CreateRequest, _ *fakeLookups) { r.CreditLimit = decimal.RequireFromString("100.005") }, cardrules.InvalidLimit},
		{"balance past cents", func(r *cardrules.CreateRequest, _ *fakeLookups) { r.CurrentBalance = decimal.RequireFromString("1.001") }, cardrules.InvalidBalance},
		{"negative limit", func(r *cardrules.CreateRequest, _ *fakeLookups) { r.CreditLimit = decimal.NewFromInt(-5) }, cardrules.InvalidLimit},
		{"balance over limit", func(r *cardrules.CreateRequest, _ *fakeLookups) {
			r.CurrentBalance = r.CreditLimit.Add(decimal.NewFromInt(1))
		}, cardrules.InvalidBalance},
		{"negative balance", func(r *cardrules.CreateRequest, _ *fakeLookups) { r.CurrentBalance = decimal.RequireFromString("-0.01") }, cardrules.InvalidBalance},
		{"sixth active", func(_ *cardrules.CreateRequest, l *fakeLookups) { l.active = 5 }, cardrules.ActiveLimitExceeded},
		{"eleventh card", func(_ *cardrules.CreateRequest, l *fakeLookups) { l.total = 10 }, cardrules.TotalLimitExceeded},
		{"visa declared, mastercard number", func(r *cardrules.CreateRequest, _ *fakeLookups) { r.Number = "5555555555554444" }, cardrules.NetworkMismatch},
		{"amex declared, visa number", func(r *cardrules.CreateRequest, _ *fakeLookups) { r.Network = cardgen.Amex }, cardrules.NetworkMismatch},
		{"unknown network", func(r *cardrules.CreateRequest, _ *fakeLookups) { r.Network = cardgen.Network(7) }, cardrules.NetworkMismatch},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := validRequest()
			lk := &fakeLookups{}
			c.mutate(&req, lk)
			rec, err := newValidator().Create(context.Background(), req, lk)
			require.Nil(t, rec)
			requireReason(t, err, c.want)
		})
	}
}

func TestCreate_RepeatedDigitsStopAtChecksum(t *testing.T) {
	// 1111111111111111 is blacklisted but fails the earlier checksum stage.
	req := validRequest()
	req.Number = "1111111111111111"
	_, err := newValidator().Create(context.Background(), req, &fakeLookups{})
	requireReason(t, err, cardrules.FailedChecksum)
}

func TestCreate_Blacklisted(t *testing.T) {
	rules := cardrules.NewRules(0, 0, 0, []string{"4242424242424242"})
	v := cardrules.NewValidator(rules, func() time.Time { return fixedNow })
	req := validRequest()
	req.Number = "4242424242424242"
	_, err := v.Create(context.Background(), req, &fakeLookups{})
	requireReason(t, err, cardrules.Blacklisted)
	require.ErrorIs(t, err, cardrules.ErrBlacklisted)
}

func TestCreate_ShortCircuitsBeforeCounts(t *testing.T) {
	lk := &fakeLookups{exists: true, active: 99, total: 99}
	_, err := newValidator().Create(context.Background(), validRequest(), lk)
	requireReason(t, err, cardrules.DuplicateNumber)
	require.Equal(t, []string{"exists"}, lk.calls)

	lk = &fakeLookups{}
	req := validRequest()
	req.CreditLimit = decimal.Zero
	_, err = newValidator().Create(context.Background(), req, lk)
	requireReason(t, err, cardrules.InvalidLimit)
	require.Equal(t, []string{"exists"}, lk.calls)
}

func TestCreate_EarliestStageWins(t *testing.T) {
	// Malformed, expired and zero-limit at once: shape is checked first.
	req := validRequest()
	req.Number = "123"
	req.ExpirationDate = fixedNow.AddDate(-1, 0, 0)
	req.CreditLimit = decimal.Zero
	_, err := newValidator().Create(context.Background(), req, &fakeLookups{active: 5})
	requireReason(t, err, cardrules.MalformedNumber)
}

func TestCreate_LookupErrorPropagates(t *testing.T) {
	boom := errors.New("db down")
	_, err := newValidator().Create(context.Background(), validRequest(), &fakeLookups{err: boom})
	require.ErrorIs(t, err, boom)
	require.False(t, cardrules.IsRejection(err))
}

func TestCreate_Idempotent(t *testing.T) {
	v := newValidator()
	lk := &fakeLookups{}
	a, errA := v.Create(context.Background(), validRequest(), lk)
	b, errB := v.Create(context.Background(), validRequest(), lk)
	require.NoError(t, errA)
	require.NoError(t, errB)
	require.Equal(t, a, b)

	bad := validRequest()
	bad.Number = "5555555555554444"
	_, errA = v.Create(context.Background(), bad, lk)
	_, errB = v.Create(context.Background(), bad, lk)
	ra, _ := cardrules.ReasonOf(errA)
	rb, _ := cardrules.ReasonOf(errB)
	require.Equal(t, ra, rb)
}

func TestUpdateThenDelete(t *testing.T) {
	v := newValidator()
	rec, err := v.Create(context.Background(), validRequest(), &fakeLookups{})
	require.NoError(t, err)

	updated, err := v.Update(*rec, "1", decimal.NewFromInt(500), decimal.NewFromInt(500))
	require.NoError(t, err)
	require.True(t, updated.CreditLimit.Equal(decimal.NewFromInt(500)))
	require.True(t, rec.CreditLimit.Equal(decimal.RequireFromString("1000.00")), "input record must not change")

	requireReason(t, v.CheckDelete(*updated, "1"), cardrules.BalanceNotZero)

	updated, err = v.Update(*updated, "1", decimal.NewFromInt(500), decimal.Zero)
	require.NoError(t, err)
	require.NoError(t, v.CheckDelete(*updated, "1"))
}

func TestUpdate_Rejections(t *testing.T) {
	v := newValidator()
	rec := cardrules.Record{Number: "4111111111111111", OwnerID: "1", CreditLimit: decimal.NewFromInt(100)}

	_, err := v.Update(rec, "2", decimal.NewFromInt(10), decimal.Zero)
	requireReason(t, err, cardrules.NotOwner)
	_, err = v.Update(rec, "1", decimal.Zero, decimal.Zero)
	requireReason(t, err, cardrules.InvalidLimit)
	_, err = v.Update(rec, "1", decimal.NewFromInt(10), decimal.NewFromInt(11))
	requireReason(t, err, cardrules.InvalidBalance)
	_, err = v.Update(rec, "1", decimal.NewFromInt(10), decimal.NewFromInt(-1))
	requireReason(t, err, cardrules.InvalidBalance)
	_, err = v.Update(rec, "1", decimal.RequireFromString("0.001"), decimal.Zero)
	requireReason(t, err, cardrules.InvalidLimit)
	_, err = v.Update(rec, "1", decimal.RequireFromString("0.004"), decimal.RequireFromString("0.004"))
	requireReason(t, err, cardrules.InvalidLimit)
	_, err = v.Update(rec, "1", decimal.RequireFromString("0.009"), decimal.Zero)
	requireReason(t, err, cardrules.InvalidLimit)
	_, err = v.Update(rec, "1", decimal.NewFromInt(10), decimal.RequireFromString("0.005"))
	requireReason(t, err, cardrules.InvalidBalance)

	got, err := v.Update(rec, "1", decimal.RequireFromString("0.01"), decimal.RequireFromString("0.01"))
	require.NoError(t, err)
	require.True(t, got.CreditLimit.Equal(decimal.RequireFromString("0.01")))
}

func TestCheckDelete_NotOwnerFirst(t *testing.T) {
	rec := cardrules.Record{OwnerID: "1", CurrentBalance: decimal.NewFromInt(20)}
	requireReason(t, newValidator().CheckDelete(rec, "2"), cardrules.NotOwner)
}

func TestCheckActivate(t *testing.T) {
	v := newValidator()
	rec := cardrules.Record{OwnerID: "1"}
	require.NoError(t, v.CheckActivate(context.Background(), rec, "1", &fakeLookups{active: 4}))
	requireReason(t, v.CheckActivate(context.Background(), rec, "1", &fakeLookups{active: 5}), cardrules.ActiveLimitExceeded)
	requireReason(t, v.CheckActivate(context.Background(), rec, "2", &fakeLookups{}), cardrules.NotOwner)

	rec.Active = true
	require.NoError(t, v.CheckActivate(context.Background(), rec, "1", &fakeLookups{active: 5}))
}

func TestCheckNumber(t *testing.T) {
	v := newValidator()
	visa, mc := cardgen.Visa, cardgen.Mastercard
	require.NoError(t, v.CheckNumber("4111111111111111", nil))
	require.NoError(t, v.CheckNumber("5555555555554444", &mc))
	requireReason(t, v.CheckNumber("123456789012345", nil), cardrules.MalformedNumber)
	requireReason(t, v.CheckNumber("4000000000000000", &visa), cardrules.FailedChecksum)
	requireReason(t, v.CheckNumber("5555555555554444", &visa), cardrules.NetworkMismatch)
	requireReason(t, v.CheckNumber("0000000000000000", nil), cardrules.Blacklisted)
}

func TestRejectionError_Is(t *testing.T) {
	_, err := newValidator().Update(cardrules.Record{OwnerID: "a"}, "b", decimal.NewFromInt(1), decimal.Zero)
	require.ErrorIs(t, err, cardrules.ErrNotOwner)
	require.NotErrorIs(t, err, cardrules.ErrBalanceNotZero)
	require.Equal(t, "card does not belong to the user", err.Error())
}

func TestGeneratedNumbersPassNumberChecks(t *testing.T) {
	v := newValidator()
	g := cardgen.NewSeededGenerator(2024)
	for _, n := range cardgen.Networks() {
		n := n
		for i := 0; i < 200; i++ {
			require.NoError(t, v.CheckNumber(g.Generate(n), &n))
		}
	}
}
