package users

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/sundayezeilo/linksnap/internal/errx"
	"github.com/sundayezeilo/linksnap/internal/httpx"
)

const (
	msgRegistered     = "User registered successfully"
	msgRegisterFailed = "Registration failed"
	msgLoggedIn       = "Login successful"
	msgLoginFailed    = "Login failed"
)

// Messages shown to users for validation and credential errors.
var userMessages = map[error]string{
	ErrMissingFields:   "All fields are required",
	ErrInvalidEmail:    "Invalid email format",
	ErrShortUsername:   "Username must be at least 3 characters",
	ErrShortPassword:   "Password must be at least 6 characters",
	ErrUserExists:      "Email or username already exists",
	ErrMissingLogin:    "Email/username and password are required",
	ErrUserNotFound:    "User not found",
	ErrInvalidPassword: "Invalid password",
}

// TokenIssuer mints a session token for a logged-in user.
type TokenIssuer interface {
	Issue(userID string) (token string, expiresAt time.Time, err error)
}

type Handler struct {
	service Service
	tokens  TokenIssuer
	logger  *zap.Logger
}

// NewHandler builds the register and login actions. tokens may be nil, in
// which case login answers without a token.
func NewHandler(service Service, tokens TokenIssuer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, tokens: tokens, logger: logger}
}

// Register handles the register action. Params: email, username, password.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request, p url.Values) {
	logger := h.logger.With(zap.String("request_id", httpx.GetRequestID(r.Context())))

	user, err := h.service.Register(r.Context(), RegisterRequest{
		Email:    p.Get("email"),
		Username: p.Get("username"),
		Password: p.Get("password"),
	})
	if err != nil {
		h.writeError(w, err, msgRegisterFailed, logger.With(zap.String("action", "register")))
		return
	}

	httpx.WriteSuccess(w, msgRegistered, httpx.Envelope{"user": user.Profile()})
}

// Login handles the login action. Params: identifier (or email/username),
// password.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request, p url.Values) {
	logger := h.logger.With(
		zap.String("request_id", httpx.GetRequestID(r.Context())),
		zap.String("action", "login"),
	)

	identifier := firstNonEmpty(p.Get("identifier"), p.Get("email"), p.Get("username"))
	user, err := h.service.Login(r.Context(), identifier, p.Get("password"))
	if err != nil {
		h.writeError(w, err, msgLoginFailed, logger)
		return
	}

	data := httpx.Envelope{"user": user.Profile()}
	if h.tokens != nil {
		token, expiresAt, err := h.tokens.Issue(user.ID)
		if err != nil {
			logger.Error("token issue failed", zap.Error(err))
			httpx.WriteFailure(w, http.StatusInternalServerError, msgLoginFailed, nil)
			return
		}
		data["token"] = token
		data["expiresAt"] = expiresAt.UTC().Format(time.RFC3339)
	}

	logger.Info("user logged in", zap.String("user_id", user.ID))
	httpx.WriteSuccess(w, msgLoggedIn, data)
}

func (h *Handler) writeError(w http.ResponseWriter, err error, fallback string, logger *zap.Logger) {
	kind := errx.KindOf(err)
	fields := []zap.Field{zap.Error(err), zap.Stringer("error_kind", kind)}

	msg := fallback
	for sentinel, m := range userMessages {
		if errors.Is(err, sentinel) {
			msg = m
			break
		}
	}

	switch kind {
	case errx.Invalid, errx.Conflict, errx.NotFound, errx.Unauthorized:
		logger.Info("request rejected", fields...)
	default:
		logger.Error("request failed", fields...)
	}
	httpx.WriteFailure(w, httpx.ActionStatus(kind), msg, nil)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
