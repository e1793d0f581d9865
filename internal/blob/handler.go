package blob

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sundayezeilo/linksnap/internal/errx"
	"github.com/sundayezeilo/linksnap/internal/httpx"
)

// IDList accepts either a JSON array of ids or a string holding a JSON
// array or a comma separated list.
type IDList []string

func (l *IDList) UnmarshalJSON(b []byte) error {
	var arr []string
	if err := json.Unmarshal(b, &arr); err == nil {
		*l = arr
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("driveIds must be an array or string")
	}
	*l = ParseIDList(s)
	return nil
}

// ParseIDList parses a JSON array string, falling back to comma separation.
func ParseIDList(s string) IDList {
	var arr []string
	if err := json.Unmarshal([]byte(s), &arr); err == nil {
		return arr
	}
	var out IDList
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// UploadRequest is the body of POST /upload. UserID is optional for
// uploads and required for archiveFiles.
type UploadRequest struct {
	Action      string `json:"action,omitempty"`
	UserID      string `json:"userId,omitempty"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
	DriveIDs    IDList `json:"driveIds,omitempty"`
}

const (
	msgNotAuth      = "User not authenticated"
	msgNotPermitted = "You are not allowed to act for this user"
)

// Authorizer checks that a request may act for userID. A nil Authorizer
// trusts the userId field.
type Authorizer interface {
	Authorize(r *http.Request, userID string) error
}

// Handler serves the upload endpoint and stored files.
type Handler struct {
	svc    *Service
	auth   Authorizer
	logger *zap.Logger
}

func NewHandler(svc *Service, auth Authorizer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, auth: auth, logger: logger}
}

// authorize reports false after writing a failure response.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, userID string, logger *zap.Logger) bool {
	if h.auth == nil {
		return true
	}
	if err := h.auth.Authorize(r, userID); err != nil {
		logger.Warn("authorization failed", zap.Error(err), zap.String("user_id", userID))
		msg := msgNotAuth
		if errx.Is(err, errx.Forbidden) {
			msg = msgNotPermitted
		}
		httpx.WriteFailure(w, http.StatusOK, msg, nil)
		return false
	}
	return true
}

// Status answers GET /upload.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	httpx.WriteSuccess(w, "Upload service is online", nil)
}

// BodyLimit is the largest request body that can carry a base64 file of
// the maximum size along with the other fields.
func (h *Handler) BodyLimit() int64 {
	// base64 inflates by 4/3
	return h.svc.MaxBytes()*4/3 + 64<<10
}

// Upload handles POST /upload for both the upload and archiveFiles actions.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(zap.String("request_id", httpx.GetRequestID(r.Context())))

	req, err := httpx.DecodeJSONLimit[UploadRequest](r, h.BodyLimit())
	if err != nil {
		logger.Warn("failed to decode upload request", zap.Error(err))
		httpx.WriteFailure(w, http.StatusOK, err.Error(), nil)
		return
	}

	action := req.Action
	if q := r.URL.Query().Get("action"); q != "" {
		action = q
	}
	if req.UserID = strings.TrimSpace(req.UserID); req.UserID == "" {
		req.UserID = strings.TrimSpace(r.URL.Query().Get("userId"))
	}

	switch action {
	case "archiveFiles":
		h.archive(w, r, req, logger)
	case "", "upload":
		h.upload(w, r, req, logger)
	default:
		httpx.WriteFailure(w, http.StatusOK, "Invalid action: "+action, nil)
	}
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request, req UploadRequest, logger *zap.Logger) {
	if req.UserID != "" && !h.authorize(w, r, req.UserID, logger) {
		return
	}

	data, err := DecodeBase64(req.Content)
	if err != nil {
		logger.Warn("upload decoding failed", zap.Error(err))
		httpx.WriteFailure(w, http.StatusOK, "Upload decoding failed: "+err.Error(), nil)
		return
	}

	obj, err := h.svc.Upload(r.Context(), Upload{
		OwnerID:     req.UserID,
		Filename:    req.Filename,
		ContentType: req.ContentType,
		Data:        data,
	})
	if err != nil {
		kind := errx.KindOf(err)
		logger.Error("upload failed",
			zap.Error(err),
			zap.Stringer("error_kind", kind),
			zap.String("operation", errx.OpOf(err)),
		)
		msg := "Upload failed"
		if kind == errx.Invalid {
			msg = "Upload failed: " + errx.Cause(err).Error()
		}
		httpx.WriteFailure(w, httpx.ActionStatus(kind), msg, nil)
		return
	}

	httpx.WriteSuccess(w, "Upload successful", httpx.Envelope{
		"driveId":     obj.ID,
		"url":         obj.URL,
		"downloadUrl": obj.DownloadURL,
		"viewUrl":     obj.ViewURL,
	})
}

func (h *Handler) archive(w http.ResponseWriter, r *http.Request, req UploadRequest, logger *zap.Logger) {
	if req.UserID == "" {
		httpx.WriteFailure(w, http.StatusOK, msgNotAuth, nil)
		return
	}
	if !h.authorize(w, r, req.UserID, logger) {
		return
	}

	ids := req.DriveIDs
	if len(ids) == 0 {
		ids = ParseIDList(r.URL.Query().Get("driveIds"))
	}
	if len(ids) == 0 {
		httpx.WriteFailure(w, http.StatusOK, "No driveIds provided for archiving", nil)
		return
	}

	res := h.svc.Archive(r.Context(), ids, req.UserID)
	if len(res.Errors) > 0 {
		logger.Warn("some blobs could not be archived",
			zap.Int("archived", len(res.Archived)),
			zap.Int("failed", len(res.Errors)),
		)
	}
	httpx.WriteSuccess(w, fmt.Sprintf("Archived %d files", len(res.Archived)), httpx.Envelope{
		"archivedCount": len(res.Archived),
		"errors":        res.Errors,
	})
}

// Serve handles GET /files/{blobID}. Add ?download=1 to force a download.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "blobID")

	obj, data, err := h.svc.Open(r.Context(), id)
	if err != nil {
		kind := errx.KindOf(err)
		if kind == errx.NotFound {
			httpx.WriteFailure(w, http.StatusNotFound, "File not found", nil)
			return
		}
		h.logger.Error("failed to open blob", zap.String("blob_id", id), zap.Error(err))
		httpx.WriteFailure(w, httpx.ErrorKindToStatus(kind), "Failed to retrieve file", nil)
		return
	}

	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	disposition := "inline"
	if r.URL.Query().Get("download") != "" || !inlineSafe(obj.ContentType) {
		disposition = "attachment"
		w.Header().Set("Content-Security-Policy", "sandbox")
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, obj.Filename))
	http.ServeContent(w, r, obj.Filename, obj.CreatedAt, bytes.NewReader(data))
}

// inlineSafe reports whether a browser may render contentType on this
// origin. Anything that can carry script (HTML, SVG, XML) is downloaded.
func inlineSafe(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	switch {
	case mediaType == "image/svg+xml":
		return false
	case strings.HasPrefix(mediaType, "image/"),
		strings.HasPrefix(mediaType, "audio/"),
		strings.HasPrefix(mediaType, "video/"):
		return true
	}
	return mediaType == "application/pdf" || mediaType == "text/plain"
}
