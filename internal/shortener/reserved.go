package shortener

import (
	"slices"
	"strings"
)

// DefaultReserved lists path segments the router owns. None of them may be
// used as a short code.
var DefaultReserved = []string{
	"favicon.ico",
	"robots.txt",
	"api",
	"_next",
	"static",
	"globals.css",
	"upload",
	"files",
	"metrics",
	"x",
}

// ReservedSet is the single list of path segments shared by slug
// validation and routing. Matching is case-insensitive.
type ReservedSet struct {
	names map[string]struct{}
}

// NewReservedSet returns DefaultReserved plus extra, typically the
// configured base path.
func NewReservedSet(extra ...string) *ReservedSet {
	s := &ReservedSet{names: make(map[string]struct{})}
	for _, n := range append(slices.Clone(DefaultReserved), extra...) {
		n = strings.ToLower(strings.Trim(strings.TrimSpace(n), "/"))
		if n != "" {
			s.names[n] = struct{}{}
		}
	}
	return s
}

// Contains reports whether code is reserved. A nil set uses DefaultReserved.
func (s *ReservedSet) Contains(code string) bool {
	if s == nil {
		return slices.Contains(DefaultReserved, strings.ToLower(code))
	}
	_, ok := s.names[strings.ToLower(code)]
	return ok
}

// Names returns the reserved segments in sorted order.
func (s *ReservedSet) Names() []string {
	out := make([]string, 0, len(s.names))
	for n := range s.names {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}
