// Package licensekey generates and validates human-typeable license keys.
package licensekey

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"regexp"
	"strings"
)

// Key format: XXXX-XXXX-XXXX-XXXX
// Example: 7QK2-M9XA-04ZD-LP3R
const (
	Alphabet     = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	SegmentLen   = 4
	SegmentCount = 4
	SymbolCount  = SegmentLen * SegmentCount
	KeyLen       = SymbolCount + SegmentCount - 1
	separator    = "-"
)

var (
	// ErrInvalidKeyFormat indicates the key does not match XXXX-XXXX-XXXX-XXXX.
	ErrInvalidKeyFormat = errors.New("invalid license key format")
	// keyFormatRegex validates the key format.
	keyFormatRegex = regexp.MustCompile(`^[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}$`)

	alphabetSize = big.NewInt(int64(len(Alphabet)))
)

// Generator draws license keys from a random source.
type Generator struct {
	random io.Reader
}

// NewGenerator returns a Generator reading from r.
// A nil reader selects crypto/rand.
func NewGenerator(r io.Reader) *Generator {
	if r == nil {
		r = rand.Reader
	}
	return &Generator{random: r}
}

var defaultGenerator = NewGenerator(nil)

// Generate creates a new license key using crypto/rand.
func Generate() (string, error) {
	return defaultGenerator.Generate()
}

// Generate creates a new license key.
// Each symbol is drawn independently and uniformly from Alphabet.
func (g *Generator) Generate() (string, error) {
	var b strings.Builder
	b.Grow(KeyLen)

	for i := 0; i < SymbolCount; i++ {
		if i > 0 && i%SegmentLen == 0 {
			b.WriteString(separator)
		}
		n, err := rand.Int(g.random, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("draw key symbol: %w", err)
		}
		b.WriteByte(Alphabet[n.Int64()])
	}

	return b.String(), nil
}

// Valid checks if the key matches the expected format.
func Valid(key string) bool {
	return keyFormatRegex.MatchString(key)
}

// Normalize turns operator input into canonical form.
// It strips whitespace and hyphens, uppercases, and regroups into segments.
// Returns ErrInvalidKeyFormat when the result is not a valid key.
func Normalize(input string) (string, error) {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case '-', ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, strings.ToUpper(input))

	if len(clean) != SymbolCount {
		return "", ErrInvalidKeyFormat
	}

	segments := make([]string, 0, SegmentCount)
	for i := 0; i < SymbolCount; i += SegmentLen {
		segments = append(segments, clean[i:i+SegmentLen])
	}

	key := strings.Join(segments, separator)
	if !Valid(key) {
		return "", ErrInvalidKeyFormat
	}
	return key, nil
}

// Mask hides the last two segments of a key for logs (7QK2-M9XA-****-****).
func Mask(key string) string {
	parts := strings.Split(key, separator)
	if len(parts) != SegmentCount {
		return "****"
	}
	return parts[0] + separator + parts[1] + separator + "****" + separator + "****"
}
