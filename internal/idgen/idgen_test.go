package idgen

import (
	"testing"

	"github.com/google/uuid"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name string
		gen  Generator
		want uuid.Version
	}{
		{"v4", New(V4), 4},
		{"v7", New(V7), 7},
		{"unknown falls back to v4", New(Version(99)), 4},
		{"v4 shorthand", NewV4(), 4},
		{"v7 shorthand", NewV7(), 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen := make(map[uuid.UUID]bool)
			for range 32 {
				id, err := tt.gen.Generate()
				if err != nil {
					t.Fatalf("Generate() error: %v", err)
				}
				if id.Version() != tt.want {
					t.Fatalf("version = %d, want %d", id.Version(), tt.want)
				}
				if seen[id] {
					t.Fatalf("duplicate id %v", id)
				}
				seen[id] = true
			}
		})
	}
}

func TestNewString(t *testing.T) {
	s, err := NewString(NewV7())
	if err != nil {
		t.Fatalf("NewString() error: %v", err)
	}
	if len(s) != 36 {
		t.Errorf("len(%q) = %d, want canonical 36-char form", s, len(s))
	}
	if _, err := uuid.Parse(s); err != nil {
		t.Errorf("NewString() returned unparseable %q: %v", s, err)
	}
}

// Blob keys rely on v7 strings sorting in creation order.
func TestV7SortsByCreation(t *testing.T) {
	gen := NewV7()

	prev, err := NewString(gen)
	if err != nil {
		t.Fatalf("NewString() error: %v", err)
	}
	for range 20 {
		next, err := NewString(gen)
		if err != nil {
			t.Fatalf("NewString() error: %v", err)
		}
		if next <= prev {
			t.Fatalf("v7 ids not increasing: %q then %q", prev, next)
		}
		prev = next
	}
}

func TestFixed(t *testing.T) {
	want := uuid.MustParse("0190f5a4-3b7e-7cc1-8f3a-1d2e3f405162")
	gen := Fixed(want)

	for range 3 {
		got, err := gen.Generate()
		if err != nil || got != want {
			t.Fatalf("Generate() = %v, %v; want %v", got, err, want)
		}
	}
}
