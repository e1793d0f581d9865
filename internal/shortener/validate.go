package shortener

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	DefaultSlugLength     = 8
	MaxSlugLength         = 64
	MinSlugLength         = 3
	MaxURLLength          = 2048
	DefaultSlugMaxRetries = 5
)

var (
	schemePattern = regexp.MustCompile(`(?i)^https?://`)

	// Only localhost may carry a port. Anything after the host must start
	// with a slash.
	urlPattern = regexp.MustCompile(`(?i)^https?://` +
		`(localhost(:\d{1,5})?|(\d{1,3}\.){3}\d{1,3}|([a-z0-9-]+\.)+[a-z]{2,})` +
		`(/\S*)?$`)
)

// NormalizeURL trims raw and prefixes https:// when it has no http(s)
// scheme, then validates the result.
func NormalizeURL(raw string) (string, error) {
	u := strings.TrimSpace(raw)
	if u == "" {
		return "", fmt.Errorf("%w: url cannot be empty", ErrInvalidURL)
	}
	if !schemePattern.MatchString(u) {
		u = "https://" + u
	}
	if len(u) > MaxURLLength {
		return "", fmt.Errorf("%w: url too long (max %d characters)", ErrInvalidURL, MaxURLLength)
	}
	if !urlPattern.MatchString(u) {
		return "", ErrInvalidURL
	}
	return u, nil
}

// ParseExpiry accepts an RFC 3339 timestamp or a bare YYYY-MM-DD date,
// which means the start of that day in UTC. Empty input means no expiry.
func ParseExpiry(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: %q (want YYYY-MM-DD or RFC 3339)", ErrInvalidExpiry, raw)
}

func validateSlug(slug string, reserved *ReservedSet) error {
	if slug == "" {
		return errors.New("slug cannot be empty")
	}
	if len(slug) < MinSlugLength {
		return errors.New("slug too short (minimum 3 characters)")
	}
	if len(slug) > MaxSlugLength {
		return errors.New("slug too long (maximum 64 characters)")
	}

	if strings.HasPrefix(slug, "-") || strings.HasPrefix(slug, "_") ||
		strings.HasSuffix(slug, "-") || strings.HasSuffix(slug, "_") {
		return errors.New("slug cannot start or end with dash or underscore")
	}

	for _, char := range slug {
		if !isValidSlugChar(char) {
			return errors.New("slug contains invalid characters (only alphanumeric, dash, and underscore allowed)")
		}
	}

	if reserved.Contains(slug) {
		return ErrReservedCode
	}
	return nil
}

func isValidSlugChar(c rune) bool {
	switch {
	case c >= 'a' && c <= 'z':
		return true
	case c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return true
	case c == '-' || c == '_':
		return true
	default:
		return false
	}
}
