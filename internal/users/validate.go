package users

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	MinUsernameLength = 3
	MinPasswordLength = 6
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// RegisterRequest carries the register action parameters.
type RegisterRequest struct {
	Email    string
	Username string
	Password string
}

func (r RegisterRequest) normalize() RegisterRequest {
	return RegisterRequest{
		Email:    strings.TrimSpace(r.Email),
		Username: strings.TrimSpace(r.Username),
		Password: r.Password,
	}
}

// Validate checks the fields in the order the rules are reported to users.
func (r RegisterRequest) Validate() error {
	if r.Email == "" || r.Username == "" || r.Password == "" {
		return ErrMissingFields
	}
	if !emailPattern.MatchString(r.Email) {
		return ErrInvalidEmail
	}
	if utf8.RuneCountInString(r.Username) < MinUsernameLength {
		return ErrShortUsername
	}
	if utf8.RuneCountInString(r.Password) < MinPasswordLength {
		return ErrShortPassword
	}
	return nil
}

// lookupKey folds identifiers so that email and username matching is
// case-insensitive across every store.
func lookupKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
