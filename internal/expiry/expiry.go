package expiry

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// InWindow reports whether exp lies in (now, now+years], compared in UTC.
func InWindow(exp, now time.Time, years int) bool {
	exp, now = exp.UTC(), now.UTC()
	if !exp.After(now) {
		return false
	}
	return !exp.After(now.AddDate(years, 0, 0))
}

// CardFace returns expiry as MM/YY for card imprint.
func CardFace(exp time.Time) string {
	t := exp.UTC()
	return fmt.Sprintf("%02d/%02d", int(t.Month()), t.Year()%100)
}

// EndOfMonth returns the last instant of year/month in UTC.
func EndOfMonth(year int, month time.Month) time.Time {
	firstNext := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	return firstNext.Add(-time.Nanosecond)
}

// ParseCardFace accepts "MM/YY" or "MMYY" and returns the end of that month.
func ParseCardFace(in string) (time.Time, error) {
	s := strings.TrimSpace(in)
	s = strings.ReplaceAll(s, "/", "")
	if len(s) != 4 {
		return time.Time{}, fmt.Errorf("card face must be MM/YY or MMYY")
	}
	for i := 0; i < 4; i++ {
		if s[i] < '0' || s[i] > '9' {
			return time.Time{}, fmt.Errorf("card face must be digits")
		}
	}
	mm, _ := strconv.Atoi(s[:2])
	if mm < 1 || mm > 12 {
		return time.Time{}, fmt.Errorf("month must be 01..12")
	}
	yy, _ := strconv.Atoi(s[2:])
	return EndOfMonth(2000+yy, time.Month(mm)), nil
}

// Parse accepts RFC 3339 timestamps, plain dates (YYYY-MM-DD) and card-face
// forms. Dates without a time are taken as the end of that day in UTC.
func Parse(in string) (time.Time, error) {
	s := strings.TrimSpace(in)
	if s == "" {
		return time.Time{}, fmt.Errorf("expiration date is required")
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.Add(24*time.Hour - time.Nanosecond).UTC(), nil
	}
	if t, err := ParseCardFace(s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unrecognized expiration date %q (want RFC3339, YYYY-MM-DD or MM/YY)", in)
}
