package cardgen

import (
	"context"
	"crypto/rand"
	"fmt"
	mrand "math/rand/v2"
	"strings"
	"sync"
)

// Source yields uniform integers in [0, n). n never exceeds 256.
type Source interface {
	IntN(n int) int
}

// Generator produces random, network-conformant, Luhn-valid card numbers.
// A Generator is safe for concurrent use; each one owns its source.
type Generator struct {
	mu  sync.Mutex
	src Source
}

// NewGenerator returns a Generator backed by crypto/rand.
func NewGenerator() *Generator {
	return &Generator{src: &cryptoSource{}}
}

// NewSeededGenerator returns a reproducible Generator for tests and tooling.
func NewSeededGenerator(seed uint64) *Generator {
	return &Generator{src: mrand.New(mrand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// NewGeneratorFrom wraps an arbitrary source.
func NewGeneratorFrom(src Source) *Generator {
	return &Generator{src: src}
}

// Generate returns a 16-digit number for n. An unknown network falls back to Visa.
func (g *Generator) Generate(n Network) string {
	if !n.Valid() {
		n = Visa
	}
	prefixes := prefixTable[n]

	g.mu.Lock()
	defer g.mu.Unlock()

	prefix := prefixes[g.src.IntN(len(prefixes))]
	fill := CardLen - len(prefix) - 1

	var sb strings.Builder
	sb.Grow(CardLen)
	sb.WriteString(prefix)
	for i := 0; i < fill; i++ {
		sb.WriteByte('0' + byte(g.src.IntN(10)))
	}
	body := sb.String()
	return body + string('0'+byte(CheckDigit(body)))
}

// GenerateUnique retries Generate until exists reports the number unused.
// exists errors are returned wrapped.
func (g *Generator) GenerateUnique(
	ctx context.Context, n Network, maxRetries int,
	exists func(context.Context, string) (bool, error),
) (string, error) {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	for i := 0; i <= maxRetries; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		pan := g.Generate(n)
		if exists == nil {
			return pan, nil
		}
		used, err := exists(ctx, pan)
		if err != nil {
			return "", fmt.Errorf("exists callback: %w", err)
		}
		if !used {
			return pan, nil
		}
	}
	return "", fmt.Errorf("failed to generate unique card number after %d retries", maxRetries)
}

// cryptoSource draws from crypto/rand using rejection sampling so every value
// in [0, n) is equally likely.
type cryptoSource struct {
	buf [64]byte
	pos int
	n   int
}

func (c *cryptoSource) IntN(n int) int {
	if n <= 1 {
		return 0
	}
	threshold := 256 - (256 % n)
	for {
		if c.pos >= c.n {
			if _, err := rand.Read(c.buf[:]); err != nil {
				panic(fmt.Sprintf("cardgen: crypto/rand: %v", err))
			}
			c.pos, c.n = 0, len(c.buf)
		}
		b := int(c.buf[c.pos])
		c.pos++
		if b < threshold {
			return b % n
		}
	}
}
