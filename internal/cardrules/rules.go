package cardrules

// Rules holds the fixed policy data the pipeline evaluates against. It is
// built once and only read afterwards, so one instance may be shared freely.
type Rules struct {
	maxActive      int
	maxTotal       int
	maxExpiryYears int
	blacklist      map[string]struct{}
}

var defaultBlacklist = []string{
	"1111111111111111",
	"2222222222222222",
	"3333333333333333",
	"4444444444444444",
	"5555555555555555",
	"6666666666666666",
	"7777777777777777",
	"8888888888888888",
	"9999999999999999",
	"0000000000000000",
	"1234567890123456",
	"0123456789012345",
}

const (
	DefaultMaxActive      = 5
	DefaultMaxTotal       = 10
	DefaultMaxExpiryYears = 10
)

// DefaultRules returns the standard ceilings, window and blacklist.
func DefaultRules() *Rules {
	return NewRules(DefaultMaxActive, DefaultMaxTotal, DefaultMaxExpiryYears, nil)
}

// NewRules builds a Rules value. Non-positive limits fall back to the
// defaults; a nil blacklist means the default list, an empty non-nil one
// disables it.
func NewRules(maxActive, maxTotal, maxExpiryYears int, blacklist []string) *Rules {
	if maxActive <= 0 {
		maxActive = DefaultMaxActive
	}
	if maxTotal <= 0 {
		maxTotal = DefaultMaxTotal
	}
	if maxExpiryYears <= 0 {
		maxExpiryYears = DefaultMaxExpiryYears
	}
	if blacklist == nil {
		blacklist = defaultBlacklist
	}
	bl := make(map[string]struct{}, len(blacklist))
	for _, n := range blacklist {
		bl[n] = struct{}{}
	}
	return &Rules{
		maxActive:      maxActive,
		maxTotal:       maxTotal,
		maxExpiryYears: maxExpiryYears,
		blacklist:      bl,
	}
}

func (r *Rules) MaxActive() int      { return r.maxActive }
func (r *Rules) MaxTotal() int       { return r.maxTotal }
func (r *Rules) MaxExpiryYears() int { return r.maxExpiryYears }

func (r *Rules) IsBlacklisted(pan string) bool {
	_, ok := r.blacklist[pan]
	return ok
}
