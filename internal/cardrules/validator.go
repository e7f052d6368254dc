// Package cardrules decides whether a card create/update/delete request is
// acceptable. Every check is a pure computation over the request and the
// answers of the Lookups collaborator; nothing here touches storage.
//
// Lookups answers are taken at face value. Callers that need the uniqueness
// and per-owner ceilings to hold under concurrency must serialize
// check-then-insert per owner and keep a unique index on the card number.
package cardrules

import (
	"context"
	"time"

	"github.com/jonanatree/cardvault/internal/cardgen"
	"github.com/jonanatree/cardvault/internal/expiry"
	"github.com/shopspring/decimal"
)

// Lookups are the storage queries the create pipeline needs.
type Lookups interface {
	ExistsGlobally(ctx context.Context, number string) (bool, error)
	ActiveCountForOwner(ctx context.Context, ownerID string) (int, error)
	TotalCountForOwner(ctx context.Context, ownerID string) (int, error)
}

// Record is a card that passed the pipeline and is ready to persist.
type Record struct {
	Number         string
	Network        cardgen.Network
	ExpirationDate time.Time
	CreditLimit    decimal.Decimal
	CurrentBalance decimal.Decimal
	OwnerID        string
	Active         bool
}

type CreateRequest struct {
	Number         string
	Network        cardgen.Network
	ExpirationDate time.Time
	CreditLimit    decimal.Decimal
	CurrentBalance decimal.Decimal
	OwnerID        string
}

type Validator struct {
	rules *Rules
	now   func() time.Time
}

// NewValidator returns a Validator over rules. A nil clock means time.Now.
func NewValidator(rules *Rules, now func() time.Time) *Validator {
	if rules == nil {
		rules = DefaultRules()
	}
	if now == nil {
		now = time.Now
	}
	return &Validator{rules: rules, now: now}
}

func (v *Validator) Rules() *Rules { return v.rules }

// Create runs the full create pipeline in its fixed order and stops at the
// first failing stage. Lookup errors are returned as-is.
func (v *Validator) Create(ctx context.Context, req CreateRequest, lk Lookups) (*Record, error) {
	exists, err := lk.ExistsGlobally(ctx, req.Number)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, reject(DuplicateNumber)
	}

	if len(req.Number) != cardgen.CardLen || !cardgen.IsDigits(req.Number) {
		return nil, reject(MalformedNumber)
	}
	if !cardgen.LuhnValid(req.Number) {
		return nil, reject(FailedChecksum)
	}

	if !expiry.InWindow(req.ExpirationDate, v.now(), v.rules.maxExpiryYears) {
		return nil, reject(InvalidExpiration)
	}

	if err := checkAmounts(req.CreditLimit, req.CurrentBalance); err != nil {
		return nil, err
	}

	active, err := lk.ActiveCountForOwner(ctx, req.OwnerID)
	if err != nil {
		return nil, err
	}
	if active >= v.rules.maxActive {
		return nil, reject(ActiveLimitExceeded)
	}
	total, err := lk.TotalCountForOwner(ctx, req.OwnerID)
	if err != nil {
		return nil, err
	}
	if total >= v.rules.maxTotal {
		return nil, reject(TotalLimitExceeded)
	}

	if !req.Network.Matches(req.Number) {
		return nil, reject(NetworkMismatch)
	}
	if v.rules.IsBlacklisted(req.Number) {
		return nil, reject(Blacklisted)
	}

	return &Record{
		Number:         req.Number,
		Network:        req.Network,
		ExpirationDate: req.ExpirationDate.UTC(),
		CreditLimit:    req.CreditLimit,
		CurrentBalance: req.CurrentBalance,
		OwnerID:        req.OwnerID,
		Active:         false,
	}, nil
}

// Update changes only the limit and balance of an existing record. The
// input record is not modified.
func (v *Validator) Update(existing Record, ownerID string, newLimit, newBalance decimal.Decimal) (*Record, error) {
	if existing.OwnerID != ownerID {
		return nil, reject(NotOwner)
	}
	if err := checkAmounts(newLimit, newBalance); err != nil {
		return nil, err
	}
	updated := existing
	updated.CreditLimit = newLimit
	updated.CurrentBalance = newBalance
	return &updated, nil
}

// CheckDelete allows deletion only by the owner of a zero-balance card.
func (v *Validator) CheckDelete(rec Record, ownerID string) error {
	if rec.OwnerID != ownerID {
		return reject(NotOwner)
	}
	if !rec.CurrentBalance.IsZero() {
		return reject(BalanceNotZero)
	}
	return nil
}

// CheckActivate guards turning a card on: the caller must own it and stay
// under the active ceiling. Activating an already active card is allowed.
func (v *Validator) CheckActivate(ctx context.Context, rec Record, ownerID string, lk Lookups) error {
	if rec.OwnerID != ownerID {
		return reject(NotOwner)
	}
	if rec.Active {
		return nil
	}
	active, err := lk.ActiveCountForOwner(ctx, ownerID)
	if err != nil {
		return err
	}
	if active >= v.rules.maxActive {
		return reject(ActiveLimitExceeded)
	}
	return nil
}

// CheckNumber runs only the number-level stages (shape, checksum, network,
// blacklist) in pipeline order. A nil network skips the prefix check.
func (v *Validator) CheckNumber(number string, network *cardgen.Network) error {
	if len(number) != cardgen.CardLen || !cardgen.IsDigits(number) {
		return reject(MalformedNumber)
	}
	if !cardgen.LuhnValid(number) {
		return reject(FailedChecksum)
	}
	if network != nil && !network.Matches(number) {
		return reject(NetworkMismatch)
	}
	if v.rules.IsBlacklisted(number) {
		return reject(Blacklisted)
	}
	return nil
}

// minLimit is one cent; amounts are stored with two decimal places.
var minLimit = decimal.New(1, -2)

func checkAmounts(limit, balance decimal.Decimal) error {
	if limit.LessThan(minLimit) || !isCents(limit) {
		return reject(InvalidLimit)
	}
	if balance.IsNegative() || balance.GreaterThan(limit) || !isCents(balance) {
		return reject(InvalidBalance)
	}
	return nil
}

func isCents(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(2))
}
