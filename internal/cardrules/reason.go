package cardrules

import "errors"

// Reason identifies the pipeline stage that rejected a request.
type Reason string

const (
	DuplicateNumber     Reason = "duplicate_number"
	MalformedNumber     Reason = "malformed_number"
	FailedChecksum      Reason = "failed_checksum"
	InvalidExpiration   Reason = "invalid_expiration"
	InvalidLimit        Reason = "invalid_limit"
	InvalidBalance      Reason = "invalid_balance"
	ActiveLimitExceeded Reason = "active_limit_exceeded"
	TotalLimitExceeded  Reason = "total_limit_exceeded"
	NetworkMismatch     Reason = "network_mismatch"
	Blacklisted         Reason = "blacklisted"
	NotOwner            Reason = "not_owner"
	BalanceNotZero      Reason = "balance_not_zero"
)

var messages = map[Reason]string{
	DuplicateNumber:     "this card number is already in use",
	MalformedNumber:     "card number must be exactly 16 digits",
	FailedChecksum:      "card number failed the luhn checksum",
	InvalidExpiration:   "expiration date must be in the future and at most 10 years out",
	InvalidLimit:        "credit limit must be at least 0.01 with at most 2 decimal places",
	InvalidBalance:      "current balance must be between 0 and the credit limit with at most 2 decimal places",
	ActiveLimitExceeded: "maximum number of active cards reached",
	TotalLimitExceeded:  "maximum number of cards reached",
	NetworkMismatch:     "card number does not match the card network",
	Blacklisted:         "card number is blacklisted",
	NotOwner:            "card does not belong to the user",
	BalanceNotZero:      "card balance must be 0 before deletion",
}

// RejectionError is returned for every expected business-rule failure.
type RejectionError struct {
	Reason Reason
}

func (e *RejectionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if m, ok := messages[e.Reason]; ok {
		return m
	}
	return string(e.Reason)
}

// Is matches any *RejectionError carrying the same reason.
func (e *RejectionError) Is(target error) bool {
	t, ok := target.(*RejectionError)
	return ok && t != nil && e != nil && t.Reason == e.Reason
}

// Sentinels for errors.Is.
var (
	ErrDuplicateNumber     = &RejectionError{Reason: DuplicateNumber}
	ErrMalformedNumber     = &RejectionError{Reason: MalformedNumber}
	ErrFailedChecksum      = &RejectionError{Reason: FailedChecksum}
	ErrInvalidExpiration   = &RejectionError{Reason: InvalidExpiration}
	ErrInvalidLimit        = &RejectionError{Reason: InvalidLimit}
	ErrInvalidBalance      = &RejectionError{Reason: InvalidBalance}
	ErrActiveLimitExceeded = &RejectionError{Reason: ActiveLimitExceeded}
	ErrTotalLimitExceeded  = &RejectionError{Reason: TotalLimitExceeded}
	ErrNetworkMismatch     = &RejectionError{Reason: NetworkMismatch}
	ErrBlacklisted         = &RejectionError{Reason: Blacklisted}
	ErrNotOwner            = &RejectionError{Reason: NotOwner}
	ErrBalanceNotZero      = &RejectionError{Reason: BalanceNotZero}
)

func reject(r Reason) error {
	return &RejectionError{Reason: r}
}

// ReasonOf extracts the rejection reason from err, if any.
func ReasonOf(err error) (Reason, bool) {
	var re *RejectionError
	if errors.As(err, &re) && re != nil {
		return re.Reason, true
	}
	return "", false
}

// IsRejection reports whether err is a business-rule rejection rather than a
// collaborator failure.
func IsRejection(err error) bool {
	_, ok := ReasonOf(err)
	return ok
}
