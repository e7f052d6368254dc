package cardgen

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMalformed = errors.New("card number must be exactly 16 digits")
	ErrChecksum  = errors.New("invalid luhn check digit")
)

// CheckDigit returns the Luhn check digit for body. The rightmost digit of
// body is doubled first, as if the check digit were already appended.
// body must contain digits only.
func CheckDigit(body string) int {
	sum, dbl := 0, true
	for i := len(body) - 1; i >= 0; i-- {
		d := int(body[i] - '0')
		if dbl {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		dbl = !dbl
	}
	return (10 - (sum % 10)) % 10
}

// LuhnValid reports whether the full number (check digit included) has a
// Luhn sum divisible by 10. Non-digit input is never valid.
func LuhnValid(pan string) bool {
	if pan == "" || !IsDigits(pan) {
		return false
	}
	sum, dbl := 0, false
	for i := len(pan) - 1; i >= 0; i-- {
		d := int(pan[i] - '0')
		if dbl {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		dbl = !dbl
	}
	return sum%10 == 0
}

// ValidatePAN checks length, digits and Luhn. It returns ErrMalformed or
// ErrChecksum so callers can tell the stages apart.
func ValidatePAN(pan string) error {
	if len(pan) != CardLen || !IsDigits(pan) {
		return fmt.Errorf("%w (got %d chars)", ErrMalformed, len(pan))
	}
	if !LuhnValid(pan) {
		return ErrChecksum
	}
	return nil
}

func IsDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func LastN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// Mask is the only projection of a card number that leaves the service: the
// last four digits.
func Mask(pan string) string {
	return LastN(NormalizePAN(pan), 4)
}

// NormalizePAN strips spaces, tabs and dashes.
func NormalizePAN(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '-':
			return -1
		default:
			return r
		}
	}, s)
}
