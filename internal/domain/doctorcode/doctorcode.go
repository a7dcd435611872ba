// Package doctorcode generates and validates the human-shareable doctor codes
// patients type in to share their profile, e.g. "DR-BATO-4821".
//
// A code is "DR-", four letters alternating consonant and vowel, "-", and a
// four digit number in 1000..9999. Uniqueness is checked against the store on
// every attempt; nothing is cached in process because several instances may
// generate codes concurrently.
package doctorcode

import (
	"context"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/platform/apperr"
)

const (
	Prefix             = "DR-"
	DefaultMaxAttempts = 10

	consonants = "BCDFGHJKLMNPQRSTVWXYZ"
	vowels     = "AEIOU"
)

var codePattern = regexp.MustCompile(`^DR-[BCDFGHJKLMNPQRSTVWXYZ][AEIOU][BCDFGHJKLMNPQRSTVWXYZ][AEIOU]-[1-9][0-9]{3}$`)

// ValidateFormat reports whether code has the doctor code shape. It does not
// touch the store.
func ValidateFormat(code string) bool {
	return codePattern.MatchString(code)
}

// Normalize trims whitespace and upper-cases user input before validation.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Checker answers whether a doctor already holds a code.
type Checker interface {
	DoctorCodeExists(ctx context.Context, code string) (bool, error)
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context, code string) (bool, error)

func (f CheckerFunc) DoctorCodeExists(ctx context.Context, code string) (bool, error) {
	return f(ctx, code)
}

type Generator struct {
	checker     Checker
	intn        func(n int) int
	maxAttempts int
	logger      zerolog.Logger
}

type Option func(*Generator)

// WithMaxAttempts bounds GenerateUnique. Values below 1 are ignored.
func WithMaxAttempts(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxAttempts = n
		}
	}
}

// WithIntn replaces the random source; intn must return a value in [0, n).
func WithIntn(intn func(n int) int) Option {
	return func(g *Generator) { g.intn = intn }
}

func WithLogger(l zerolog.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

func NewGenerator(checker Checker, opts ...Option) *Generator {
	g := &Generator{
		checker:     checker,
		intn:        rand.IntN,
		maxAttempts: DefaultMaxAttempts,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns a random candidate code. It never consults the store.
func (g *Generator) Generate() string {
	var sb strings.Builder
	sb.Grow(len("DR-XXXX-0000"))
	sb.WriteString(Prefix)
	sb.WriteByte(consonants[g.intn(len(consonants))])
	sb.WriteByte(vowels[g.intn(len(vowels))])
	sb.WriteByte(consonants[g.intn(len(consonants))])
	sb.WriteByte(vowels[g.intn(len(vowels))])
	fmt.Fprintf(&sb, "-%d", 1000+g.intn(9000))
	return sb.String()
}

// IsUnique reports whether no doctor holds code yet.
func (g *Generator) IsUnique(ctx context.Context, code string) (bool, error) {
	exists, err := g.checker.DoctorCodeExists(ctx, code)
	if err != nil {
		return false, fmt.Errorf("check doctor code: %w", err)
	}
	return !exists, nil
}

// GenerateUnique draws candidates until one is unused. After maxAttempts
// collisions it fails with apperr.ErrGenerationExhausted. Store failures are
// returned immediately and do not count as collisions.
func (g *Generator) GenerateUnique(ctx context.Context) (string, error) {
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		code := g.Generate()
		if !ValidateFormat(code) {
			return "", fmt.Errorf("generated malformed doctor code %q", code)
		}
		unique, err := g.IsUnique(ctx, code)
		if err != nil {
			return "", err
		}
		if unique {
			return code, nil
		}
		g.logger.Warn().Str("doctor_code", code).Int("attempt", attempt).Msg("doctor code collision")
	}
	return "", fmt.Errorf("after %d attempts: %w", g.maxAttempts, apperr.ErrGenerationExhausted)
}
