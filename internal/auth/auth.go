// Package auth issues and checks the session tokens handed out at login.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sundayezeilo/linksnap/internal/errx"
)

// CookieName is the cookie a browser client may carry the token in.
const CookieName = "auth_token"

var (
	ErrNoSecret        = errors.New("token secret is not configured")
	ErrMissingToken    = errors.New("missing session token")
	ErrInvalidToken    = errors.New("invalid session token")
	ErrSubjectMismatch = errors.New("token does not belong to this user")
)

// Config configures a Tokens instance.
type Config struct {
	Secret string
	TTL    time.Duration
	Issuer string
	// Require rejects action requests that carry no token.
	Require bool
	Now     func() time.Time
}

// Tokens issues HS256 tokens whose subject is the user id, and verifies
// that a request acting for a user carries that user's token.
type Tokens struct {
	secret  []byte
	ttl     time.Duration
	issuer  string
	require bool
	now     func() time.Time
}

func New(cfg Config) *Tokens {
	t := &Tokens{
		secret:  []byte(cfg.Secret),
		ttl:     cfg.TTL,
		issuer:  cfg.Issuer,
		require: cfg.Require,
		now:     cfg.Now,
	}
	if t.ttl <= 0 {
		t.ttl = 24 * time.Hour
	}
	if t.now == nil {
		t.now = time.Now
	}
	return t
}

// Issue signs a token for userID.
func (t *Tokens) Issue(userID string) (string, time.Time, error) {
	if len(t.secret) == 0 {
		return "", time.Time{}, ErrNoSecret
	}

	now := t.now()
	expiresAt := now.Add(t.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    t.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify parses a token and returns its subject.
func (t *Tokens) Verify(token string) (string, error) {
	const op = "auth.Verify"

	if len(t.secret) == 0 {
		return "", errx.E(op, errx.Unauthorized, ErrNoSecret)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return "", errx.E(op, errx.Unauthorized, errors.Join(ErrInvalidToken, err))
	}
	if claims.Subject == "" {
		return "", errx.E(op, errx.Unauthorized, ErrInvalidToken)
	}
	return claims.Subject, nil
}

// Authorize checks that a request may act for userID. A request without a
// token passes unless tokens are required; a request with one must carry a
// valid token whose subject is userID.
func (t *Tokens) Authorize(r *http.Request, userID string) error {
	const op = "auth.Authorize"

	token := FromRequest(r)
	if token == "" {
		if t.require {
			return errx.E(op, errx.Unauthorized, ErrMissingToken)
		}
		return nil
	}

	subject, err := t.Verify(token)
	if err != nil {
		return err
	}
	if subject != userID {
		return errx.E(op, errx.Forbidden, ErrSubjectMismatch)
	}
	return nil
}

// FromRequest returns the bearer token from the Authorization header, or
// the auth cookie.
func FromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}
