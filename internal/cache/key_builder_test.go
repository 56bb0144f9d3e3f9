package cache

import (
	"strings"
	"testing"
)

type testOpts struct {
	Units    string `json:"units,omitempty"`
	MaxChars int    `json:"maxchars,omitempty"`
}

func TestBuildKeyDeterministic(t *testing.T) {
	a, err := BuildKey("ask", "population of France", &testOpts{Units: "metric"})
	if err != nil {
		t.Fatalf("BuildKey: %v", err)
	}
	b, err := BuildKey("ask", "population of France", &testOpts{Units: "metric"})
	if err != nil {
		t.Fatalf("BuildKey: %v", err)
	}
	if a.String() != b.String() {
		t.Fatalf("identical inputs must collide: %q vs %q", a.String(), b.String())
	}
}

func TestBuildKeyNormalizesWhitespace(t *testing.T) {
	a, _ := BuildKey("ask", "  x +  3 = 7 ", nil)
	b, _ := BuildKey("ask", "x + 3 = 7", nil)
	if a.String() != b.String() {
		t.Fatalf("whitespace variants must collide: %q vs %q", a.String(), b.String())
	}
}

func TestBuildKeySeparatesOperations(t *testing.T) {
	a, _ := BuildKey("solve", "x + 3 = 7", nil)
	b, _ := BuildKey("ask", "x + 3 = 7", nil)
	if a.String() == b.String() {
		t.Fatalf("different operations must not collide")
	}
	if !strings.HasPrefix(a.String(), "solve:") {
		t.Fatalf("expected solve-derived key, got %q", a.String())
	}
}

func TestBuildKeyOptionsChangeKey(t *testing.T) {
	a, _ := BuildKey("ask", "weather", &testOpts{Units: "metric"})
	b, _ := BuildKey("ask", "weather", &testOpts{Units: "imperial"})
	if a.String() == b.String() {
		t.Fatalf("different options must not collide")
	}
}
