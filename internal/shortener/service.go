package shortener

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sundayezeilo/linksnap/internal/blob"
	"github.com/sundayezeilo/linksnap/internal/errx"
	"github.com/sundayezeilo/linksnap/internal/metrics"
	"github.com/sundayezeilo/linksnap/sluggen"
)

// clickTimeout bounds a single background click increment.
const clickTimeout = 5 * time.Second

// CreateLinkRequest represents the parameters for creating a new link.
type CreateLinkRequest struct {
	OwnerID     string
	OriginalURL string
	CustomSlug  string // Optional: if empty, a code will be generated
	ExpiresAt   *time.Time
	BlobID      string       // an already uploaded blob the URL points at
	File        *blob.Upload // uploaded first; its URL becomes OriginalURL
}

// BlobStore is the part of the blob service links depend on. A link only
// ever points at a blob its owner holds: Claim grants an unowned blob to the
// owner and refuses one held by someone else.
type BlobStore interface {
	Upload(ctx context.Context, up blob.Upload) (blob.Object, error)
	Claim(ctx context.Context, id, ownerID string) (blob.Object, error)
	Release(ctx context.Context, id, ownerID string) error
	URLFor(id string) string
}

// Service defines the business logic operations for URL shortening.
type Service interface {
	Create(ctx context.Context, req CreateLinkRequest) (Link, error)
	Resolve(ctx context.Context, code string) (Resolution, error)
	Delete(ctx context.Context, code, ownerID string) (DeleteResult, error)
	List(ctx context.Context, ownerID string) ([]Link, error)
	Count(ctx context.Context) (int, error)
	// Wait blocks until background click accounting has finished.
	Wait()
}

// ServiceConfig holds configuration for the service.
type ServiceConfig struct {
	SlugGenerator  sluggen.Generator
	SlugLength     int
	SlugMaxRetries int // attempts when generating a unique code (default: 5)
	Reserved       *ReservedSet
	Blobs          BlobStore
	Logger         *zap.Logger
	Metrics        *metrics.Metrics
	Now            func() time.Time
}

type service struct {
	repo           Repository
	slugGenerator  sluggen.Generator
	slugLength     int
	slugMaxRetries int
	reserved       *ReservedSet
	blobs          BlobStore
	logger         *zap.Logger
	metrics        *metrics.Metrics
	now            func() time.Time

	clicks sync.WaitGroup
}

// NewService creates a new service instance.
func NewService(repo Repository, config *ServiceConfig) Service {
	if config == nil {
		config = &ServiceConfig{}
	}

	slugGen := config.SlugGenerator
	if slugGen == nil {
		slugGen = sluggen.NewUUIDHex()
	}

	slugLength := config.SlugLength
	if slugLength < MinSlugLength || slugLength > MaxSlugLength {
		slugLength = DefaultSlugLength
	}

	retries := config.SlugMaxRetries
	if retries <= 0 {
		retries = DefaultSlugMaxRetries
	}

	reserved := config.Reserved
	if reserved == nil {
		reserved = NewReservedSet()
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	now := config.Now
	if now == nil {
		now = time.Now
	}

	return &service{
		repo:           repo,
		slugGenerator:  slugGen,
		slugLength:     slugLength,
		slugMaxRetries: retries,
		reserved:       reserved,
		blobs:          config.Blobs,
		logger:         logger,
		metrics:        config.Metrics,
		now:            now,
	}
}

// Create validates the request, uploads an attached file and stores the
// link. Nothing is uploaded or written when validation fails.
func (s *service) Create(ctx context.Context, req CreateLinkRequest) (Link, error) {
	const op = "shortener.service.Create"

	ownerID := strings.TrimSpace(req.OwnerID)
	if ownerID == "" {
		return Link{}, errx.E(op, errx.Unauthorized, ErrMissingOwner)
	}

	slug := strings.TrimSpace(req.CustomSlug)
	if slug != "" {
		if err := validateSlug(slug, s.reserved); err != nil {
			return Link{}, errx.E(op, errx.Invalid, err)
		}
	}

	link := Link{
		OwnerID:   ownerID,
		CreatedAt: s.now().UTC().Truncate(time.Microsecond),
		ExpiresAt: req.ExpiresAt,
		BlobID:    strings.TrimSpace(req.BlobID),
	}

	switch {
	case req.File != nil:
		if s.blobs == nil {
			return Link{}, errx.E(op, errx.Unavailable, ErrUploadFailed)
		}
		up := *req.File
		up.OwnerID = ownerID
		obj, err := s.blobs.Upload(ctx, up)
		if err != nil {
			s.logger.Warn("file upload failed", zap.Error(err))
			kind := errx.Unavailable
			if errx.Is(err, errx.Invalid) {
				kind = errx.Invalid
			}
			return Link{}, errx.E(op, kind, errors.Join(ErrUploadFailed, err))
		}
		link.OriginalURL = obj.URL
		link.BlobID = obj.ID

	case link.BlobID != "":
		u, err := s.attachBlob(ctx, link.BlobID, ownerID, req.OriginalURL)
		if err != nil {
			return Link{}, errx.Wrap(op, err)
		}
		link.OriginalURL = u

	default:
		u, err := NormalizeURL(req.OriginalURL)
		if err != nil {
			return Link{}, errx.E(op, errx.Invalid, err)
		}
		link.OriginalURL = u
	}

	created, err := s.insert(ctx, link, slug)
	if err != nil {
		if req.File != nil {
			s.releaseBlob(link.BlobID, ownerID)
		}
		return Link{}, errx.Wrap(op, err)
	}

	s.metrics.LinkCreated(slug != "")
	return created, nil
}

// attachBlob claims an already uploaded blob for ownerID and returns the URL
// the link must store. An original URL, when given, must be that blob's URL,
// optionally with a query such as ?download=1.
func (s *service) attachBlob(ctx context.Context, blobID, ownerID, originalURL string) (string, error) {
	const op = "shortener.service.attachBlob"

	if s.blobs == nil {
		return "", errx.E(op, errx.Unavailable, ErrNoBlobStore)
	}

	blobURL := s.blobs.URLFor(blobID)
	if raw := strings.TrimSpace(originalURL); raw != "" && raw != blobURL && !strings.HasPrefix(raw, blobURL+"?") {
		return "", errx.E(op, errx.Invalid, ErrBlobURLMismatch)
	}

	if _, err := s.blobs.Claim(ctx, blobID, ownerID); err != nil {
		switch errx.KindOf(err) {
		case errx.NotFound, errx.Invalid:
			return "", errx.E(op, errx.Invalid, errors.Join(ErrUnknownBlob, err))
		case errx.Forbidden:
			s.logger.Warn("refused to attach a foreign blob",
				zap.String("blob_id", blobID),
				zap.String("owner_id", ownerID),
			)
			return "", errx.E(op, errx.Forbidden, errors.Join(ErrBlobNotOwned, err))
		default:
			return "", errx.E(op, errx.Unavailable, err)
		}
	}
	return blobURL, nil
}

func (s *service) insert(ctx context.Context, link Link, slug string) (Link, error) {
	// Custom slug path: create once
	if slug != "" {
		link.ShortCode = slug
		return s.repo.Create(ctx, link)
	}

	// Generated code path: retry on conflicts
	for range s.slugMaxRetries {
		code, err := s.slugGenerator.Generate(s.slugLength)
		if err != nil {
			return Link{}, errx.E("shortener.service.generate", errx.Unavailable, err)
		}
		if s.reserved.Contains(code) {
			continue
		}

		link.ShortCode = code
		created, err := s.repo.Create(ctx, link)
		if err == nil {
			return created, nil
		}

		// Retry on conflict, fail on other errors
		if errx.KindOf(err) != errx.Conflict {
			return Link{}, err
		}
		s.logger.Warn("generated short code collided", zap.String("short_code", code))
	}

	return Link{}, errx.E("shortener.service.generate", errx.Unavailable, ErrCodeGenerationExhausted)
}

// Resolve looks up a code. Expired links return errx.Expired and are not
// counted. Valid links are counted in the background so the caller can
// redirect without waiting on the store.
func (s *service) Resolve(ctx context.Context, code string) (Resolution, error) {
	const op = "shortener.service.Resolve"

	if code == "" || len(code) > MaxSlugLength {
		return Resolution{}, errx.E(op, errx.NotFound, ErrLinkNotFound)
	}

	link, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return Resolution{}, errx.Wrap(op, err)
	}

	if link.Expired(s.now()) {
		return Resolution{}, errx.E(op, errx.Expired, ErrExpired)
	}

	s.countClick(ctx, code)

	return Resolution{
		ShortCode:   link.ShortCode,
		OriginalURL: link.OriginalURL,
		BlobID:      link.BlobID,
		ExpiresAt:   link.ExpiresAt,
	}, nil
}

func (s *service) countClick(ctx context.Context, code string) {
	// Detach from the request so the increment survives the redirect.
	ctx = context.WithoutCancel(ctx)

	s.clicks.Add(1)
	go func() {
		defer s.clicks.Done()

		ctx, cancel := context.WithTimeout(ctx, clickTimeout)
		defer cancel()

		if err := s.repo.IncrementClicks(ctx, code); err != nil {
			s.metrics.ClickFailed()
			s.logger.Warn("click accounting failed",
				zap.String("short_code", code),
				zap.Error(err),
			)
		}
	}()
}

// Delete removes an owner's link. A failure to release the link's blob is
// logged and returned as a warning; the link is deleted regardless.
func (s *service) Delete(ctx context.Context, code, ownerID string) (DeleteResult, error) {
	const op = "shortener.service.Delete"

	if code == "" || ownerID == "" {
		return DeleteResult{}, errx.E(op, errx.Invalid, errors.New("short code and owner id are required"))
	}

	link, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return DeleteResult{}, errx.Wrap(op, err)
	}
	if link.OwnerID != ownerID {
		return DeleteResult{}, errx.E(op, errx.Forbidden, ErrNotOwner)
	}

	if err := s.repo.Delete(ctx, code, ownerID); err != nil {
		return DeleteResult{}, errx.Wrap(op, err)
	}
	s.metrics.LinkDeleted()

	var res DeleteResult
	if link.BlobID != "" && s.blobs != nil {
		if err := s.blobs.Release(ctx, link.BlobID, ownerID); err != nil {
			s.metrics.BlobReleaseFailed()
			s.logger.Warn("blob release failed",
				zap.String("short_code", code),
				zap.String("blob_id", link.BlobID),
				zap.Error(err),
			)
			res.Warning = "Link deleted, but the attached file could not be archived"
		}
	}
	return res, nil
}

// releaseBlob undoes an upload whose link could not be stored.
func (s *service) releaseBlob(id, ownerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), clickTimeout)
	defer cancel()
	if err := s.blobs.Release(ctx, id, ownerID); err != nil {
		s.logger.Warn("failed to release orphaned blob", zap.String("blob_id", id), zap.Error(err))
	}
}

// List returns the owner's links, newest first.
func (s *service) List(ctx context.Context, ownerID string) ([]Link, error) {
	const op = "shortener.service.List"

	if ownerID == "" {
		return nil, errx.E(op, errx.Unauthorized, ErrMissingOwner)
	}

	links, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, errx.Wrap(op, err)
	}
	sortNewestFirst(links)
	return links, nil
}

func (s *service) Count(ctx context.Context) (int, error) {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return 0, errx.Wrap("shortener.service.Count", err)
	}
	return n, nil
}

func (s *service) Wait() {
	s.clicks.Wait()
}
