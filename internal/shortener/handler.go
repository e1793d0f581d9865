package shortener

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sundayezeilo/linksnap/internal/blob"
	"github.com/sundayezeilo/linksnap/internal/errx"
	"github.com/sundayezeilo/linksnap/internal/httpx"
	"github.com/sundayezeilo/linksnap/internal/metrics"
)

// User-facing messages.
const (
	msgCreated        = "Short URL created successfully"
	msgCreateFailed   = "Failed to create short URL"
	msgInvalidURL     = "Invalid URL format"
	msgCodeTaken      = "Custom short code already exists"
	msgReserved       = "This short code is reserved"
	msgNotAuth        = "User not authenticated"
	msgNotPermitted   = "You are not allowed to act for this user"
	msgUploadFailed   = "File upload failed"
	msgBlobNotFound   = "Attached file not found"
	msgBlobNotOwned   = "Attached file belongs to another user"
	msgBlobMismatch   = "Original URL does not match the attached file"
	msgDeleted        = "Link deleted successfully"
	msgDeleteMissing  = "Missing required parameters"
	msgDeleteNotFound = "Link not found or you do not have permission to delete it"
	msgDeleteFailed   = "Failed to delete link"
	msgFound          = "URL found"
	msgNotFound       = "Short code not found"
	msgExpired        = "Link has expired"
	msgListed         = "Links retrieved successfully"
	msgListFailed     = "Failed to retrieve links"
)

// Authorizer checks that a request may act for userID. A nil Authorizer
// trusts the userId parameter.
type Authorizer interface {
	Authorize(r *http.Request, userID string) error
}

// BlobURLs builds public URLs for stored blobs.
type BlobURLs interface {
	URLFor(id string) string
}

// LinkView is one entry of the getUserLinks response.
type LinkView struct {
	ShortCode   string `json:"shortCode"`
	ShortURL    string `json:"shortUrl"`
	OriginalURL string `json:"originalUrl"`
	Created     string `json:"created"`
	Clicks      int64  `json:"clicks"`
	ExpiryDate  string `json:"expiryDate,omitempty"`
	DriveID     string `json:"driveId,omitempty"`
	Expired     bool   `json:"expired"`
}

// Handler provides HTTP handlers for the URL shortener service.
type Handler struct {
	service  Service
	logger   *zap.Logger
	baseURL  string
	auth     Authorizer
	blobURLs BlobURLs
	reserved *ReservedSet
	metrics  *metrics.Metrics
	now      func() time.Time
}

// HandlerConfig holds configuration for the handler.
type HandlerConfig struct {
	Service    Service
	Logger     *zap.Logger
	BaseURL    string // Base URL for constructing short URLs (e.g., "https://short.ly")
	Authorizer Authorizer
	BlobURLs   BlobURLs
	Reserved   *ReservedSet
	Metrics    *metrics.Metrics
	Now        func() time.Time
}

// NewHandler creates a new Handler instance.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	reserved := cfg.Reserved
	if reserved == nil {
		reserved = NewReservedSet()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Handler{
		service:  cfg.Service,
		logger:   logger,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		auth:     cfg.Authorizer,
		blobURLs: cfg.BlobURLs,
		reserved: reserved,
		metrics:  cfg.Metrics,
		now:      now,
	}
}

func (h *Handler) requestLogger(r *http.Request, action string) *zap.Logger {
	return h.logger.With(
		zap.String("request_id", httpx.GetRequestID(r.Context())),
		zap.String("action", action),
	)
}

func errFields(err error) []zap.Field {
	return []zap.Field{
		zap.Error(err),
		zap.String("error_code", httpx.ErrorKindToCode(errx.KindOf(err))),
		zap.String("operation", errx.OpOf(err)),
	}
}

// authorize reports false after writing a failure response.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, userID string, logger *zap.Logger) bool {
	if h.auth == nil {
		return true
	}
	if err := h.auth.Authorize(r, userID); err != nil {
		logger.Warn("authorization failed", errFields(err)...)
		msg := msgNotAuth
		if errx.Is(err, errx.Forbidden) {
			msg = msgNotPermitted
		}
		httpx.WriteFailure(w, http.StatusOK, msg, nil)
		return false
	}
	return true
}

// Create handles the create action.
//
// Params: originalUrl, customSlug?, userId, expiryDate?, driveId?. A file may
// be sent inline as base64 content with filename and contentType instead of
// originalUrl.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request, p url.Values) {
	logger := h.requestLogger(r, "create")
	userID := strings.TrimSpace(p.Get("userId"))

	if userID == "" {
		httpx.WriteFailure(w, http.StatusOK, msgNotAuth, nil)
		return
	}
	if !h.authorize(w, r, userID, logger) {
		return
	}

	expiresAt, err := ParseExpiry(p.Get("expiryDate"))
	if err != nil {
		httpx.WriteFailure(w, http.StatusOK, "Invalid expiry date", nil)
		return
	}

	req := CreateLinkRequest{
		OwnerID:     userID,
		OriginalURL: p.Get("originalUrl"),
		CustomSlug:  p.Get("customSlug"),
		ExpiresAt:   expiresAt,
		BlobID:      p.Get("driveId"),
	}
	if content := p.Get("content"); content != "" {
		data, err := blob.DecodeBase64(content)
		if err != nil {
			httpx.WriteFailure(w, http.StatusOK, "Upload decoding failed: "+err.Error(), nil)
			return
		}
		req.File = &blob.Upload{
			Filename:    p.Get("filename"),
			ContentType: p.Get("contentType"),
			Data:        data,
		}
	}

	link, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.writeCreateError(w, err, logger)
		return
	}

	logger.Info("link created",
		zap.String("short_code", link.ShortCode),
		zap.Bool("custom_slug", req.CustomSlug != ""),
		zap.Bool("has_blob", link.BlobID != ""),
	)

	data := httpx.Envelope{
		"shortCode":   link.ShortCode,
		"originalUrl": link.OriginalURL,
		"shortUrl":    h.shortURL(link.ShortCode),
	}
	if link.BlobID != "" {
		data["driveId"] = link.BlobID
	}
	httpx.WriteSuccess(w, msgCreated, data)
}

func (h *Handler) writeCreateError(w http.ResponseWriter, err error, logger *zap.Logger) {
	kind := errx.KindOf(err)

	var msg string
	switch {
	case errors.Is(err, ErrCodeTaken):
		msg = msgCodeTaken
	case errors.Is(err, ErrReservedCode):
		msg = msgReserved
	case errors.Is(err, ErrInvalidURL):
		msg = msgInvalidURL
	case errors.Is(err, ErrUploadFailed):
		msg = msgUploadFailed
	case errors.Is(err, ErrUnknownBlob):
		msg = msgBlobNotFound
	case errors.Is(err, ErrBlobNotOwned):
		msg = msgBlobNotOwned
	case errors.Is(err, ErrBlobURLMismatch):
		msg = msgBlobMismatch
	case errors.Is(err, ErrMissingOwner):
		msg = msgNotAuth
	case kind == errx.Invalid:
		msg = errx.Cause(err).Error()
	default:
		msg = msgCreateFailed
	}

	switch kind {
	case errx.Invalid, errx.Conflict, errx.Unauthorized, errx.Forbidden:
		logger.Warn("create rejected", errFields(err)...)
	default:
		logger.Error("create failed", errFields(err)...)
	}
	httpx.WriteFailure(w, httpx.ActionStatus(kind), msg, nil)
}

// Delete handles the delete action. Params: shortCode, userId.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request, p url.Values) {
	logger := h.requestLogger(r, "delete")
	code := strings.TrimSpace(p.Get("shortCode"))
	userID := strings.TrimSpace(p.Get("userId"))

	if code == "" || userID == "" {
		httpx.WriteFailure(w, http.StatusOK, msgDeleteMissing, nil)
		return
	}
	if !h.authorize(w, r, userID, logger) {
		return
	}

	res, err := h.service.Delete(r.Context(), code, userID)
	if err != nil {
		fields := append(errFields(err), zap.String("short_code", code), zap.String("user_id", userID))
		switch errx.KindOf(err) {
		case errx.NotFound:
			logger.Info("delete: link not found", fields...)
			httpx.WriteFailure(w, http.StatusOK, msgDeleteNotFound, nil)
		case errx.Forbidden:
			logger.Warn("delete: link owned by another user", fields...)
			httpx.WriteFailure(w, http.StatusOK, msgDeleteNotFound, nil)
		default:
			logger.Error("delete failed", fields...)
			httpx.WriteFailure(w, httpx.ActionStatus(errx.KindOf(err)), msgDeleteFailed, nil)
		}
		return
	}

	logger.Info("link deleted", zap.String("short_code", code))
	var data httpx.Envelope
	if res.Warning != "" {
		data = httpx.Envelope{"warning": res.Warning}
	}
	httpx.WriteSuccess(w, msgDeleted, data)
}

// Get handles the get action: it resolves shortCode and counts the click,
// answering with JSON instead of a redirect.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request, p url.Values) {
	logger := h.requestLogger(r, "get")
	code := strings.TrimSpace(p.Get("shortCode"))

	res, err := h.service.Resolve(r.Context(), code)
	if err != nil {
		h.writeResolveError(w, err, code, http.StatusOK, logger)
		return
	}
	h.metrics.Resolved(metrics.OutcomeRedirect)

	data := httpx.Envelope{"originalUrl": res.OriginalURL}
	if res.ExpiresAt != nil {
		data["expiryDate"] = res.ExpiresAt.Format(time.RFC3339)
	}
	if res.BlobID != "" {
		data["driveId"] = res.BlobID
	}
	httpx.WriteSuccess(w, msgFound, data)
}

// UserLinks handles the getUserLinks action. Params: userId.
func (h *Handler) UserLinks(w http.ResponseWriter, r *http.Request, p url.Values) {
	logger := h.requestLogger(r, "getUserLinks")
	userID := strings.TrimSpace(p.Get("userId"))

	if userID == "" {
		httpx.WriteFailure(w, http.StatusOK, msgNotAuth, nil)
		return
	}
	if !h.authorize(w, r, userID, logger) {
		return
	}

	links, err := h.service.List(r.Context(), userID)
	if err != nil {
		logger.Error("list links failed", errFields(err)...)
		httpx.WriteFailure(w, httpx.ActionStatus(errx.KindOf(err)), msgListFailed, nil)
		return
	}

	now := h.now()
	views := make([]LinkView, 0, len(links))
	for _, l := range links {
		v := LinkView{
			ShortCode:   l.ShortCode,
			ShortURL:    h.shortURL(l.ShortCode),
			OriginalURL: l.OriginalURL,
			Created:     l.CreatedAt.UTC().Format(time.RFC3339),
			Clicks:      l.ClickCount,
			DriveID:     l.BlobID,
			Expired:     l.Expired(now),
		}
		if l.ExpiresAt != nil {
			v.ExpiryDate = l.ExpiresAt.UTC().Format(time.RFC3339)
		}
		views = append(views, v)
	}
	httpx.WriteSuccess(w, msgListed, httpx.Envelope{"links": views})
}

// Resolve handles GET /{shortCode}: 302 to the destination, 404 for an
// unknown code and 410 for an expired link. Links to uploaded files answer
// with the view and download URLs instead of redirecting.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r, "resolve")
	code := chi.URLParam(r, "shortCode")

	if h.reserved.Contains(code) {
		h.metrics.Resolved(metrics.OutcomeNotFound)
		httpx.WriteFailure(w, http.StatusNotFound, msgNotFound, nil)
		return
	}

	res, err := h.service.Resolve(r.Context(), code)
	if err != nil {
		h.writeResolveError(w, err, code, 0, logger)
		return
	}

	if res.BlobID != "" {
		h.metrics.Resolved(metrics.OutcomeBlob)
		download := res.OriginalURL + "?download=1"
		if h.blobURLs != nil {
			download = h.blobURLs.URLFor(res.BlobID) + "?download=1"
		}
		httpx.WriteSuccess(w, msgFound, httpx.Envelope{
			"originalUrl": res.OriginalURL,
			"driveId":     res.BlobID,
			"downloadUrl": download,
		})
		return
	}

	h.metrics.Resolved(metrics.OutcomeRedirect)
	logger.Debug("redirecting",
		zap.String("short_code", code),
		zap.String("user_agent", r.UserAgent()),
		zap.String("referer", r.Referer()),
	)
	http.Redirect(w, r, res.OriginalURL, http.StatusFound)
}

// writeResolveError keeps expired distinct from not found and never leaks
// storage errors. status 0 means use the HTTP status of the kind.
func (h *Handler) writeResolveError(w http.ResponseWriter, err error, code string, status int, logger *zap.Logger) {
	fields := append(errFields(err), zap.String("short_code", code))
	kind := errx.KindOf(err)

	switch kind {
	case errx.Expired:
		h.metrics.Resolved(metrics.OutcomeExpired)
		logger.Info("link expired", fields...)
		if status == 0 {
			status = http.StatusGone
		}
		httpx.WriteFailure(w, status, msgExpired, httpx.Envelope{"expired": true})
		return
	case errx.NotFound:
		h.metrics.Resolved(metrics.OutcomeNotFound)
		logger.Info("short code not found", fields...)
	default:
		h.metrics.Resolved(metrics.OutcomeError)
		logger.Error("resolve failed", fields...)
	}
	if status == 0 {
		status = http.StatusNotFound
	}
	httpx.WriteFailure(w, status, msgNotFound, nil)
}

func (h *Handler) shortURL(code string) string {
	return h.baseURL + "/" + url.PathEscape(code)
}
