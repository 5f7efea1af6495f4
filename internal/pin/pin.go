// Package pin generates and normalises one-time exam access codes.
package pin

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"
)

const (
	// Alphabet is the set of symbols a code is drawn from.
	Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// Length is the fixed number of symbols in a code.
	Length = 6
)

// AllowedBatchSizes is the menu of pin counts an admin may request at once.
var AllowedBatchSizes = []int{5, 10, 20, 50, 100, 200, 300, 400, 500, 600}

var (
	ErrInvalidLength = errors.New("pin must be exactly 6 characters")
	ErrInvalidSymbol = errors.New("pin contains characters outside A-Z0-9")
	ErrBatchSize     = errors.New("pin count is not an allowed batch size")
	ErrExhausted     = errors.New("could not draw enough unique pins")
)

// Normalize trims surrounding whitespace and upper-cases a submitted code,
// then checks it is a well-formed code.
func Normalize(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != Length {
		return "", ErrInvalidLength
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(Alphabet, code[i]) < 0 {
			return "", ErrInvalidSymbol
		}
	}
	return code, nil
}

// ValidBatchSize reports whether n is on the allowed menu.
func ValidBatchSize(n int) bool {
	for _, s := range AllowedBatchSizes {
		if s == n {
			return true
		}
	}
	return false
}

// Generator draws random codes from a byte source.
type Generator struct {
	src io.Reader
	max *big.Int
}

// NewGenerator returns a Generator backed by crypto/rand.
func NewGenerator() *Generator {
	return NewGeneratorWithSource(rand.Reader)
}

// NewGeneratorWithSource is used by tests to make draws reproducible.
func NewGeneratorWithSource(src io.Reader) *Generator {
	return &Generator{src: src, max: big.NewInt(int64(len(Alphabet)))}
}

// Code draws one code uniformly from the alphabet.
func (g *Generator) Code() (string, error) {
	var b strings.Builder
	b.Grow(Length)
	for i := 0; i < Length; i++ {
		n, err := rand.Int(g.src, g.max)
		if err != nil {
			return "", fmt.Errorf("draw pin symbol: %w", err)
		}
		b.WriteByte(Alphabet[n.Int64()])
	}
	return b.String(), nil
}

// Batch draws n distinct codes, none of which appear in taken. Codes are
// redrawn on collision up to a bounded number of attempts.
func (g *Generator) Batch(n int, taken map[string]struct{}) ([]string, error) {
	codes := make([]string, 0, n)
	seen := make(map[string]struct{}, n)
	attempts := 0
	maxAttempts := n*10 + 100

	for len(codes) < n {
		if attempts >= maxAttempts {
			return codes, ErrExhausted
		}
		attempts++

		code, err := g.Code()
		if err != nil {
			return codes, err
		}
		if _, dup := seen[code]; dup {
			continue
		}
		if _, dup := taken[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes, nil
}
