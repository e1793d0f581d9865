// Package sluggen generates short codes for new links.
// Generators should be safe for concurrent use.
package sluggen

import (
	"crypto/rand"
	"errors"
	"strings"

	"github.com/sundayezeilo/linksnap/internal/idgen"
)

const (
	base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// MaxHexLength is the number of hex digits in a dashless UUID.
	MaxHexLength = 32
)

var errLength = errors.New("length must be positive")

// Generator generates URL slugs.
// Implementations should be safe for concurrent use.
type Generator interface {
	Generate(length int) (string, error)
}

// uuidHexGenerator takes a prefix of a random UUID rendered as lowercase
// hex without dashes.
type uuidHexGenerator struct {
	ids idgen.Generator
}

// NewUUIDHex returns the default short code generator. Codes are the first
// length hex digits of a v4 UUID.
func NewUUIDHex() Generator {
	return &uuidHexGenerator{ids: idgen.NewV4()}
}

func (g *uuidHexGenerator) Generate(length int) (string, error) {
	if length <= 0 {
		return "", errLength
	}
	if length > MaxHexLength {
		return "", errors.New("length exceeds 32 hex digits")
	}

	id, err := g.ids.Generate()
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(id.String(), "-", "")[:length], nil
}

// base62Generator implements Generator using base62 encoding.
type base62Generator struct{}

// NewBase62 returns a base62 slug generator. Codes are denser than hex
// at the same length.
func NewBase62() Generator {
	return &base62Generator{}
}

func (g *base62Generator) Generate(length int) (string, error) {
	if length <= 0 {
		return "", errLength
	}

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	for i := range b {
		b[i] = base62Chars[int(b[i])%len(base62Chars)]
	}

	return string(b), nil
}

// New returns the generator registered under name. Unknown names fall back
// to the hex generator.
func New(name string) Generator {
	switch strings.ToLower(name) {
	case "base62":
		return NewBase62()
	default:
		return NewUUIDHex()
	}
}
