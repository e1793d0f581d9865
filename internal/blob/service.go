package blob

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sundayezeilo/linksnap/internal/errx"
	"github.com/sundayezeilo/linksnap/internal/idgen"
	"github.com/sundayezeilo/linksnap/internal/metrics"
)

const (
	DefaultMaxBytes    = 10 << 20
	DefaultContentType = "image/jpeg"
)

// ArchiveError reports one id that could not be archived.
type ArchiveError struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// ArchiveResult is the outcome of a batch archive.
type ArchiveResult struct {
	Archived []string
	Errors   []ArchiveError
}

// ServiceConfig holds configuration for the blob service.
type ServiceConfig struct {
	Storage   Storage
	IDs       idgen.Generator
	PublicURL string // prefix for object URLs, e.g. "https://sho.rt"
	MaxBytes  int64
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
	Now       func() time.Time
}

// Service validates uploads, assigns ids and builds public URLs.
type Service struct {
	storage   Storage
	ids       idgen.Generator
	publicURL string
	maxBytes  int64
	logger    *zap.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewService creates a blob service. Storage is required.
func NewService(cfg ServiceConfig) *Service {
	ids := cfg.IDs
	if ids == nil {
		ids = idgen.NewV7()
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		storage:   cfg.Storage,
		ids:       ids,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
		maxBytes:  maxBytes,
		logger:    logger,
		metrics:   cfg.Metrics,
		now:       now,
	}
}

// MaxBytes is the largest accepted decoded upload.
func (s *Service) MaxBytes() int64 { return s.maxBytes }

// Upload stores a file and returns its metadata with URLs filled in.
func (s *Service) Upload(ctx context.Context, up Upload) (obj Object, err error) {
	const op = "blob.service.Upload"
	defer func() { s.metrics.BlobUploaded(err) }()

	if len(up.Data) == 0 {
		return Object{}, errx.E(op, errx.Invalid, ErrEmpty)
	}
	if int64(len(up.Data)) > s.maxBytes {
		return Object{}, errx.E(op, errx.Invalid, fmt.Errorf("%w (max %d bytes)", ErrTooLarge, s.maxBytes))
	}

	now := s.now().UTC()
	if up.Filename = strings.TrimSpace(up.Filename); up.Filename == "" {
		up.Filename = fmt.Sprintf("Image_%d.jpg", now.UnixMilli())
	}
	if up.ContentType = strings.TrimSpace(up.ContentType); up.ContentType == "" {
		up.ContentType = DefaultContentType
	}

	id, err := idgen.NewString(s.ids)
	if err != nil {
		return Object{}, errx.E(op, errx.Internal, err)
	}

	obj = Object{
		ID:          id,
		OwnerID:     strings.TrimSpace(up.OwnerID),
		Filename:    up.Filename,
		ContentType: up.ContentType,
		Size:        int64(len(up.Data)),
		CreatedAt:   now,
	}
	if err := s.storage.Put(ctx, obj, up.Data); err != nil {
		return Object{}, errx.E(op, errx.Unavailable, err)
	}

	s.logger.Info("blob stored",
		zap.String("blob_id", id),
		zap.String("filename", obj.Filename),
		zap.Int64("size", obj.Size),
	)
	return s.withURLs(obj), nil
}

// Open returns a live object and its bytes.
func (s *Service) Open(ctx context.Context, id string) (Object, []byte, error) {
	const op = "blob.service.Open"

	obj, data, err := s.storage.Get(ctx, id)
	if err != nil {
		return Object{}, nil, errx.E(op, storageKind(err), err)
	}
	return s.withURLs(obj), data, nil
}

// Claim gives ownerID an unowned object, or confirms ownerID already owns
// it. A link may only point at a blob its owner holds.
func (s *Service) Claim(ctx context.Context, id, ownerID string) (Object, error) {
	const op = "blob.service.Claim"

	if id == "" || ownerID == "" {
		return Object{}, errx.E(op, errx.Invalid, errors.New("blob id and owner id are required"))
	}
	obj, err := s.storage.Claim(ctx, id, ownerID)
	if err != nil {
		return Object{}, errx.E(op, storageKind(err), err)
	}
	return s.withURLs(obj), nil
}

// Release archives a single object held by ownerID. Links call this when
// they are deleted.
func (s *Service) Release(ctx context.Context, id, ownerID string) error {
	const op = "blob.service.Release"

	if ownerID == "" {
		return errx.E(op, errx.Forbidden, ErrNotOwner)
	}
	if err := s.storage.Archive(ctx, id, ownerID); err != nil {
		return errx.E(op, storageKind(err), err)
	}
	s.logger.Info("blob archived", zap.String("blob_id", id), zap.String("owner_id", ownerID))
	return nil
}

// Archive releases a batch of ownerID's objects, collecting per-id failures.
func (s *Service) Archive(ctx context.Context, ids []string, ownerID string) ArchiveResult {
	res := ArchiveResult{Archived: []string{}, Errors: []ArchiveError{}}
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if err := s.Release(ctx, id, ownerID); err != nil {
			res.Errors = append(res.Errors, ArchiveError{ID: id, Error: errx.Cause(err).Error()})
			continue
		}
		res.Archived = append(res.Archived, id)
	}
	return res
}

// URLFor returns the public URL of an object id.
func (s *Service) URLFor(id string) string {
	return s.publicURL + "/files/" + url.PathEscape(id)
}

func (s *Service) withURLs(obj Object) Object {
	obj.URL = s.URLFor(obj.ID)
	obj.ViewURL = obj.URL
	obj.DownloadURL = obj.URL + "?download=1"
	return obj
}

func storageKind(err error) errx.Kind {
	switch {
	case errors.Is(err, ErrNotFound):
		return errx.NotFound
	case errors.Is(err, ErrNotOwner):
		return errx.Forbidden
	default:
		return errx.Unavailable
	}
}
