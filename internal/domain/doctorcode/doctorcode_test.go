package doctorcode

import (
	"context"
	"errors"
	"testing"

	"github.com/carelink/carelink/internal/platform/apperr"
)

// sequence returns an intn that replays values, wrapping around.
func sequence(values ...int) func(int) int {
	i := 0
	return func(n int) int {
		v := values[i%len(values)] % n
		i++
		return v
	}
}

type fakeChecker struct {
	taken map[string]bool
	err   error
	calls int
}

func (f *fakeChecker) DoctorCodeExists(_ context.Context, code string) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.taken[code], nil
}

func TestValidateFormat(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"DR-BATO-4821", true},
		{"DR-ZUKE-1000", true},
		{"DR-MIXA-9999", true},
		{"DR-12-AB", false},
		{"DR-BATO-0821", false},
		{"DR-BATO-482", false},
		{"DR-BATO-48211", false},
		{"DR-ABAB-4821", false},
		{"DR-BBTO-4821", false},
		{"dr-bato-4821", false},
		{"XX-BATO-4821", false},
		{" DR-BATO-4821", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidateFormat(tt.code); got != tt.want {
			t.Errorf("ValidateFormat(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("  dr-bato-4821 "); got != "DR-BATO-4821" {
		t.Errorf("Normalize() = %q", got)
	}
}

func TestGenerate_Shape(t *testing.T) {
	g := NewGenerator(nil)
	for i := 0; i < 500; i++ {
		code := g.Generate()
		if !ValidateFormat(code) {
			t.Fatalf("generated code %q does not match format", code)
		}
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	// B=0 in consonants, A=0 in vowels, T=15 in consonants, O=3 in vowels, 3821+1000.
	g := NewGenerator(nil, WithIntn(sequence(0, 0, 15, 3, 3821)))
	if got := g.Generate(); got != "DR-BATO-4821" {
		t.Errorf("Generate() = %q, want DR-BATO-4821", got)
	}
}

func TestGenerate_DigitBounds(t *testing.T) {
	low := NewGenerator(nil, WithIntn(func(int) int { return 0 }))
	if got := low.Generate(); got != "DR-BABA-1000" {
		t.Errorf("lowest code = %q", got)
	}
	high := NewGenerator(nil, WithIntn(func(n int) int { return n - 1 }))
	if got := high.Generate(); got != "DR-ZUZU-9999" {
		t.Errorf("highest code = %q", got)
	}
}

func TestIsUnique(t *testing.T) {
	checker := &fakeChecker{taken: map[string]bool{"DR-BATO-4821": true}}
	g := NewGenerator(checker)

	unique, err := g.IsUnique(context.Background(), "DR-BATO-4821")
	if err != nil || unique {
		t.Errorf("expected taken code to be non-unique, got %v, %v", unique, err)
	}
	unique, err = g.IsUnique(context.Background(), "DR-BATO-4822")
	if err != nil || !unique {
		t.Errorf("expected free code to be unique, got %v, %v", unique, err)
	}
}

func TestGenerateUnique_RetriesPastCollisions(t *testing.T) {
	checker := &fakeChecker{taken: map[string]bool{"DR-BABA-1000": true, "DR-BABA-1001": true}}
	// each candidate draws 5 values; the digit draw walks 0, 1, 2.
	g := NewGenerator(checker, WithIntn(sequence(0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 2)))

	code, err := g.GenerateUnique(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != "DR-BABA-1002" {
		t.Errorf("expected DR-BABA-1002, got %s", code)
	}
	if checker.calls != 3 {
		t.Errorf("expected 3 uniqueness checks, got %d", checker.calls)
	}
}

func TestGenerateUnique_Exhausted(t *testing.T) {
	checker := &fakeChecker{taken: map[string]bool{"DR-BABA-1000": true}}
	g := NewGenerator(checker, WithIntn(func(int) int { return 0 }), WithMaxAttempts(4))

	_, err := g.GenerateUnique(context.Background())
	if !errors.Is(err, apperr.ErrGenerationExhausted) {
		t.Fatalf("expected ErrGenerationExhausted, got %v", err)
	}
	if checker.calls != 4 {
		t.Errorf("expected exactly 4 attempts, got %d", checker.calls)
	}
}

func TestGenerateUnique_DefaultBound(t *testing.T) {
	checker := &fakeChecker{taken: map[string]bool{"DR-BABA-1000": true}}
	g := NewGenerator(checker, WithIntn(func(int) int { return 0 }), WithMaxAttempts(0))

	if _, err := g.GenerateUnique(context.Background()); !errors.Is(err, apperr.ErrGenerationExhausted) {
		t.Fatalf("expected ErrGenerationExhausted, got %v", err)
	}
	if checker.calls != DefaultMaxAttempts {
		t.Errorf("expected %d attempts, got %d", DefaultMaxAttempts, checker.calls)
	}
}

func TestGenerateUnique_StoreErrorStopsImmediately(t *testing.T) {
	checker := &fakeChecker{err: apperr.ErrStoreUnavailable}
	g := NewGenerator(checker)

	_, err := g.GenerateUnique(context.Background())
	if !errors.Is(err, apperr.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if checker.calls != 1 {
		t.Errorf("expected 1 check before giving up, got %d", checker.calls)
	}
}

func TestCheckerFunc(t *testing.T) {
	var got string
	c := CheckerFunc(func(_ context.Context, code string) (bool, error) {
		got = code
		return true, nil
	})
	exists, err := c.DoctorCodeExists(context.Background(), "DR-BATO-4821")
	if err != nil || !exists || got != "DR-BATO-4821" {
		t.Errorf("CheckerFunc did not delegate: %v %v %q", exists, err, got)
	}
}
