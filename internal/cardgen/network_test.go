package cardgen

import "testing"

func TestParseNetwork(t *testing.T) {
	cases := []struct {
		in   string
		want Network
		ok   bool
	}{
		{"Visa", Visa, true},
		{"mastercard", Mastercard, true},
		{" AMEX ", Amex, true},
		{"Discover", Visa, false},
		{"", Visa, false},
	}
	for _, c := range cases {
		got, ok := ParseNetwork(c.in)
		if got != c.want || ok != c.ok {
			t.Fatalf("ParseNetwork(%q) = %v,%v want %v,%v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestNetworkMatches(t *testing.T) {
	if !Visa.Matches("4111111111111111") {
		t.Fatalf("visa should match 4...")
	}
	if Visa.Matches("5555555555554444") {
		t.Fatalf("visa should not match 5...")
	}
	if !Mastercard.Matches("2221000000000009") || !Mastercard.Matches("2710000000000000") {
		t.Fatalf("mastercard 2-series should match")
	}
	if Mastercard.Matches("2720000000000000") {
		t.Fatalf("2720 is outside the declared prefixes")
	}
	if !Amex.Matches("3400000000000000") || Amex.Matches("3500000000000000") {
		t.Fatalf("amex prefixes wrong")
	}
	if Network(9).Matches("4111111111111111") {
		t.Fatalf("unknown network must never match")
	}
}

func TestPrefixesIsACopy(t *testing.T) {
	p := Visa.Prefixes()
	p[0] = "9"
	if Visa.Prefixes()[0] != "4" {
		t.Fatalf("prefix table mutated through Prefixes()")
	}
	if len(Mastercard.Prefixes()) != 27 {
		t.Fatalf("mastercard prefix count = %d", len(Mastercard.Prefixes()))
	}
}

func TestNetworkText(t *testing.T) {
	var n Network
	if err := n.UnmarshalText([]byte("Amex")); err != nil || n != Amex {
		t.Fatalf("unmarshal Amex: %v %v", n, err)
	}
	if err := n.UnmarshalText([]byte("JCB")); err == nil {
		t.Fatalf("expected error for JCB")
	}
	b, _ := Mastercard.MarshalText()
	if string(b) != "Mastercard" {
		t.Fatalf("marshal: %s", b)
	}
}

func TestDetectNetwork(t *testing.T) {
	if n, ok := DetectNetwork("378282246310005"); !ok || n != Amex {
		t.Fatalf("detect amex: %v %v", n, ok)
	}
	if _, ok := DetectNetwork("6011000000000004"); ok {
		t.Fatalf("discover is not a known network here")
	}
}
