// Package idgen produces UUIDs for users and stored blobs.
package idgen

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator generates unique identifiers.
// Implementations should be safe for concurrent use.
type Generator interface {
	Generate() (uuid.UUID, error)
}

// Version selects a UUID variant.
type Version uint8

const (
	// V4 is random. User IDs use it.
	V4 Version = 4
	// V7 is time-ordered. Blob IDs use it so object keys sort by upload
	// time in the bolt bucket.
	V7 Version = 7
)

type versioned struct {
	v Version
}

// New returns a Generator for the requested UUID version. Unknown versions
// produce V4 values.
func New(v Version) Generator {
	if v != V7 {
		v = V4
	}
	return versioned{v: v}
}

// NewV4 is shorthand for New(V4).
func NewV4() Generator { return New(V4) }

// NewV7 is shorthand for New(V7).
func NewV7() Generator { return New(V7) }

func (g versioned) Generate() (uuid.UUID, error) {
	var (
		id  uuid.UUID
		err error
	)
	if g.v == V7 {
		id, err = uuid.NewV7()
	} else {
		id, err = uuid.NewRandom()
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("generate uuid v%d: %w", g.v, err)
	}
	return id, nil
}

// NewString generates an ID and returns its canonical string form.
func NewString(g Generator) (string, error) {
	id, err := g.Generate()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Fixed returns a Generator that always yields id.
func Fixed(id uuid.UUID) Generator { return fixedGen{id: id} }

type fixedGen struct{ id uuid.UUID }

func (f fixedGen) Generate() (uuid.UUID, error) { return f.id, nil }
