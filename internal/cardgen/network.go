package cardgen

import "strings"

// Network is a payment-card issuing scheme.
type Network int

const (
	Visa Network = iota
	Mastercard
	Amex
)

// CardLen is the fixed total length of every number handled here, Amex included.
const CardLen = 16

var networkNames = [...]string{
	Visa:       "Visa",
	Mastercard: "Mastercard",
	Amex:       "Amex",
}

// prefixTable maps each network to its issuer prefixes. Read-only after init.
var prefixTable = [...][]string{
	Visa: {"4"},
	Mastercard: {
		"2221", "2222", "2223", "2224", "2225", "2226", "2227", "2228", "2229",
		"270", "271",
		"223", "224", "225", "226", "227", "228", "229",
		"51", "52", "53", "54", "55",
		"23", "24", "25", "26",
	},
	Amex: {"34", "37"},
}

// Networks returns all known networks in declaration order.
func Networks() []Network {
	return []Network{Visa, Mastercard, Amex}
}

func (n Network) Valid() bool {
	return n >= Visa && n <= Amex
}

func (n Network) String() string {
	if !n.Valid() {
		return "Unknown"
	}
	return networkNames[n]
}

// Prefixes returns a copy of the network's prefix set, or nil for an unknown network.
func (n Network) Prefixes() []string {
	if !n.Valid() {
		return nil
	}
	out := make([]string, len(prefixTable[n]))
	copy(out, prefixTable[n])
	return out
}

// Matches reports whether pan starts with one of the network's prefixes.
func (n Network) Matches(pan string) bool {
	if !n.Valid() {
		return false
	}
	for _, p := range prefixTable[n] {
		if strings.HasPrefix(pan, p) {
			return true
		}
	}
	return false
}

// ParseNetwork accepts the canonical names case-insensitively.
func ParseNetwork(s string) (Network, bool) {
	s = strings.TrimSpace(s)
	for i, name := range networkNames {
		if strings.EqualFold(s, name) {
			return Network(i), true
		}
	}
	return Visa, false
}

// DetectNetwork returns the first network whose prefix set matches pan.
func DetectNetwork(pan string) (Network, bool) {
	for _, n := range Networks() {
		if n.Matches(pan) {
			return n, true
		}
	}
	return Visa, false
}

func (n Network) MarshalText() ([]byte, error) {
	return []byte(n.String()), nil
}

func (n *Network) UnmarshalText(b []byte) error {
	v, ok := ParseNetwork(string(b))
	if !ok {
		return &UnknownNetworkError{Name: string(b)}
	}
	*n = v
	return nil
}

type UnknownNetworkError struct {
	Name string
}

func (e *UnknownNetworkError) Error() string {
	return "unknown card network: " + e.Name + " (must be Visa, Mastercard, or Amex)"
}
