package shortener

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sundayezeilo/linksnap/internal/blob"
	"github.com/sundayezeilo/linksnap/internal/errx"
)

/***************
 * Fakes
 ***************/

// seqGenerator returns codes in order, then repeats the last one.
type seqGenerator struct {
	mu    sync.Mutex
	codes []string
	calls int
	err   error
}

func (g *seqGenerator) Generate(int) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	i := min(g.calls-1, len(g.codes)-1)
	return g.codes[i], nil
}

type fakeBlobs struct {
	mu         sync.Mutex
	uploadErr  error
	releaseErr error
	uploads    []blob.Upload
	released   []string
	owners     map[string]string // live blob id -> owner, "" when unowned
}

// seed registers an existing blob.
func (f *fakeBlobs) seed(id, ownerID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.owners == nil {
		f.owners = make(map[string]string)
	}
	f.owners[id] = ownerID
}

func (f *fakeBlobs) URLFor(id string) string { return "https://sho.rt/files/" + id }

func (f *fakeBlobs) Upload(_ context.Context, up blob.Upload) (blob.Object, error) {
	if f.uploadErr != nil {
		return blob.Object{}, f.uploadErr
	}
	id := "blob-" + up.Filename
	f.seed(id, up.OwnerID)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, up)
	return blob.Object{ID: id, OwnerID: up.OwnerID, URL: f.URLFor(id)}, nil
}

func (f *fakeBlobs) Claim(_ context.Context, id, ownerID string) (blob.Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	owner, ok := f.owners[id]
	switch {
	case !ok:
		return blob.Object{}, errx.E("fakeBlobs.Claim", errx.NotFound, blob.ErrNotFound)
	case owner != "" && owner != ownerID:
		return blob.Object{}, errx.E("fakeBlobs.Claim", errx.Forbidden, blob.ErrNotOwner)
	}
	f.owners[id] = ownerID
	return blob.Object{ID: id, OwnerID: ownerID, URL: f.URLFor(id)}, nil
}

func (f *fakeBlobs) Release(_ context.Context, id, ownerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.released = append(f.released, id)
	if f.releaseErr != nil {
		return f.releaseErr
	}
	if f.owners[id] != ownerID {
		return errx.E("fakeBlobs.Release", errx.Forbidden, blob.ErrNotOwner)
	}
	delete(f.owners, id)
	return nil
}

// flakyRepo fails IncrementClicks and counts calls.
type flakyRepo struct {
	*MemoryRepository
	incrementErr error
	increments   atomic.Int32
}

func (r *flakyRepo) IncrementClicks(ctx context.Context, code string) error {
	r.increments.Add(1)
	if r.incrementErr != nil {
		return r.incrementErr
	}
	return r.MemoryRepository.IncrementClicks(ctx, code)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestService(t *testing.T, repo Repository, cfg *ServiceConfig) (Service, *clock) {
	t.Helper()
	c := &clock{now: baseTime}
	if cfg == nil {
		cfg = &ServiceConfig{}
	}
	cfg.Now = c.Now
	svc := NewService(repo, cfg)
	t.Cleanup(svc.Wait)
	return svc, c
}

/***************
 * Create
 ***************/

func TestService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("normalizes scheme-less URL and generates 8 char code", func(t *testing.T) {
		svc, _ := newTestService(t, NewMemoryRepository(), nil)

		link, err := svc.Create(ctx, CreateLinkRequest{OwnerID: "u1", OriginalURL: "example.com"})
		require.NoError(t, err)
		assert.Equal(t, "https://example.com", link.OriginalURL)
		assert.Len(t, link.ShortCode, DefaultSlugLength)
		assert.Equal(t, "u1", link.OwnerID)
		assert.True(t, baseTime.Equal(link.CreatedAt))
	})

	t.Run("custom slug used after trimming", func(t *testing.T) {
		svc, _ := newTestService(t, NewMemoryRepository(), nil)

		link, err := svc.Create(ctx, CreateLinkRequest{OwnerID: "u1", OriginalURL: "https://example.com", CustomSlug: "  example "})
		require.NoError(t, err)
		assert.Equal(t, "example", link.ShortCode)
	})

	t.Run("second custom slug create is a conflict", func(t *testing.T) {
		svc, _ := newTestService(t, NewMemoryRepository(), nil)

		_, err := svc.Create(ctx, CreateLinkRequest{OwnerID: "u1", OriginalURL: "https://example.com", CustomSlug: "example"})
		require.NoError(t, err)

		_, err = svc.Create(ctx, CreateLinkRequest{OwnerID: "u2", OriginalURL: "https://other.com", CustomSlug: "example"})
		assert.True(t, errx.Is(err, errx.Conflict))
		assert.ErrorIs(t, err, ErrCodeTaken)
	})

	t.Run("rejections happen before any write", func(t *testing.T) {
		tests := []struct {
			name string
			req  CreateLinkRequest
			kind errx.Kind
			is   error
		}{
			{"missing owner", CreateLinkRequest{OriginalURL: "https://example.com"}, errx.Unauthorized, ErrMissingOwner},
			{"bad url", CreateLinkRequest{OwnerID: "u1", OriginalURL: "not a url"}, errx.Invalid, ErrInvalidURL},
			{"reserved slug", CreateLinkRequest{OwnerID: "u1", OriginalURL: "example.com", CustomSlug: "favicon"}, errx.Invalid, nil},
			{"reserved api", CreateLinkRequest{OwnerID: "u1", OriginalURL: "example.com", CustomSlug: "API"}, errx.Invalid, ErrReservedCode},
			{"slug with slash", CreateLinkRequest{OwnerID: "u1", OriginalURL: "example.com", CustomSlug: "a/b"}, errx.Invalid, nil},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				repo := NewMemoryRepository()
				blobs := &fakeBlobs{}
				svc, _ := newTestService(t, repo, &ServiceConfig{Blobs: blobs, Reserved: NewReservedSet("favicon")})

				req := tt.req
				_, err := svc.Create(ctx, req)
				require.Error(t, err)
				assert.Equal(t, tt.kind, errx.KindOf(err))
				if tt.is != nil {
					assert.ErrorIs(t, err, tt.is)
				}

				n, _ := repo.Count(ctx)
				assert.Zero(t, n)
				assert.Empty(t, blobs.uploads)
			})
		}
	})

	t.Run("retries generated code collisions", func(t *testing.T) {
		repo := NewMemoryRepository()
		_, err := repo.Create(ctx, newLink("taken000", "u0", baseTime))
		require.NoError(t, err)

		gen := &seqGenerator{codes: []string{"taken000", "taken000", "fresh000"}}
		svc, _ := newTestService(t, repo, &ServiceConfig{SlugGenerator: gen})

		link, err := svc.Create(ctx, CreateLinkRequest{OwnerID: "u1", OriginalURL: "example.com"})
		require.NoError(t, err)
		assert.Equal(t, "fresh000", link.ShortCode)
		assert.Equal(t, 3, gen.calls)
	})

	t.Run("skips generated codes that are reserved", func(t *testing.T) {
		gen := &seqGenerator{codes: []string{"static", "fresh000"}}
		svc, _ := newTestService(t, NewMemoryRepository(), &ServiceConfig{SlugGenerator: gen})

		link, err := svc.Create(ctx, CreateLinkRequest{OwnerID: "u1", OriginalURL: "example.com"})
		require.NoError(t, err)
		assert.Equal(t, "fresh000", link.ShortCode)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		repo := NewMemoryRepository()
		_, err := repo.Create(ctx, newLink("taken000", "u0", baseTime))
		require.NoError(t, err)

		gen := &seqGenerator{codes: []string{"taken000"}}
		svc, _ := newTestService(t, repo, &ServiceConfig{SlugGenerator: gen, SlugMaxRetries: 5})

		_, err = svc.Create(ctx, CreateLinkRequest{OwnerID: "u1", OriginalURL: "example.com"})
		assert.True(t, errx.Is(err, errx.Unavailable))
		assert.ErrorIs(t, err, ErrCodeGenerationExhausted)
		assert.Equal(t, 5, gen.calls)
	})

	t.Run("generator failure", func(t *testing.T) {
		gen := &seqGenerator{err: errors.New("entropy exhausted")}
		svc, _ := newTestService(t, NewMemoryRepository(), &ServiceConfig{SlugGenerator: gen})

		_, err := svc.Create(ctx, CreateLinkRequest{OwnerID: "u1", OriginalURL: "example.com"})
		assert.True(t, errx.Is(err, errx.Unavailable))
	})

	t.Run("generated codes never repeat", func(t *testing.T) {
		svc, _ := newTestService(t, NewMemoryRepository(), nil)

		seen := map[string]bool{}
		for range 200 {
			link, err := svc.Create(ctx, CreateLinkRequest{OwnerID: "u1", OriginalURL: "example.com"})
			require.NoError(t, err)
			require.False(t, seen[link.ShortCode], "duplicate code %s", link.ShortCode)
			seen[link.ShortCode] = true
		}
	})

	t.Run("concurrent creates with the same slug admit one", func(t *testing.T) {
		svc, _ := newTestService(t, NewMemoryRepository(), nil)

		const racers = 10
		var (
			wg        sync.WaitGroup
			wins      atomic.Int32
			conflicts atomic.Int32
		)
		for range racers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.Create(ctx, CreateLinkRequest{OwnerID: "u1", OriginalURL: "example.com", CustomSlug: "launch"})
				if err == nil {
					wins.Add(1)
				} else if errors.Is(err, ErrCodeTaken) {
					conflicts.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
		assert.Equal(t, int32(racers-1), conflicts.Load())
	})
}

func TestService_CreateWithFile(t *testing.T) {
	ctx := context.Background()

	t.Run("uploads first and points the link at the blob", func(t *testing.T) {
		blobs := &fakeBlobs{}
		svc, _ := newTestService(t, NewMemoryRepository(), &ServiceConfig{Blobs: blobs})

		link, err := svc.Create(ctx, CreateLinkRequest{
			OwnerID: "u1",
			File:    &blob.Upload{Filename: "cat.png", Data: []byte("x")},
		})
		require.NoError(t, err)
		assert.Equal(t, "blob-cat.png", link.BlobID)
		assert.Equal(t, "https://sho.rt/files/blob-cat.png", link.OriginalURL)
		require.Len(t, blobs.uploads, 1)
		assert.Equal(t, "u1", blobs.uploads[0].OwnerID, "inline uploads belong to the link owner")
	})

	t.Run("upload failure creates nothing", func(t *testing.T) {
		repo := NewMemoryRepository()
		blobs := &fakeBlobs{uploadErr: errors.New("disk full")}
		svc, _ := newTestService(t, repo, &ServiceConfig{Blobs: blobs})

		_, err := svc.Create(ctx, CreateLinkRequest{OwnerID: "u1", File: &blob.Upload{Data: []byte("x")}})
		assert.ErrorIs(t, err, ErrUploadFailed)
		assert.True(t, errx.Is(err, errx.Unavailable))

		n, _ := repo.Count(ctx)
		assert.Zero(t, n)
	})

	t.Run("slug conflict after upload releases the blob", func(t *testing.T) {
		repo := NewMemoryRepository()
		_, err := repo.Create(ctx, newLink("taken", "u0", baseTime))
		require.NoError(t, err)

		blobs := &fakeBlobs{}
		svc, _ := newTestService(t, repo, &ServiceConfig{Blobs: blobs})

		_, err = svc.Create(ctx, CreateLinkRequest{
			OwnerID:    "u1",
			CustomSlug: "taken",
			File:       &blob.Upload{Filename: "a.txt", Data: []byte("x")},
		})
		assert.ErrorIs(t, err, ErrCodeTaken)
		assert.Equal(t, []string{"blob-a.txt"}, blobs.released)
	})

	t.Run("no blob store configured", func(t *testing.T) {
		svc, _ := newTestService(t, NewMemoryRepository(), nil)
		_, err := svc.Create(ctx, CreateLinkRequest{OwnerID: "u1", File: &blob.Upload{Data: []byte("x")}})
		assert.ErrorIs(t, err, ErrUploadFailed)

		_, err = svc.Create(ctx, CreateLinkRequest{OwnerID: "u1", BlobID: "b1"})
		assert.ErrorIs(t, err, ErrNoBlobStore)
		assert.True(t, errx.Is(err, errx.Unavailable))
	})
}

func TestService_CreateWithExistingBlob(t *testing.T) {
	ctx := context.Background()

	t.Run("claims an anonymous upload and stores its URL", func(t *testing.T) {
		blobs := &fakeBlobs{}
		blobs.seed("b1", "")
		svc, _ := newTestService(t, NewMemoryRepository(), &ServiceConfig{Blobs: blobs})

		link, err := svc.Create(ctx, CreateLinkRequest{OwnerID: "u1", BlobID: " b1 "})
		require.NoError(t, err)
		assert.Equal(t, "b1", link.BlobID)
		assert.Equal(t, "https://sho.rt/files/b1", link.OriginalURL)
		assert.Equal(t, "u1", blobs.owners["b1"])
	})

	t.Run("accepts the blob URL with a query", func(t *testing.T) {
		blobs := &fakeBlobs{}
		blobs.seed("b1", "u1")
		svc, _ := newTestService(t, NewMemoryRepository(), &ServiceConfig{Blobs: blobs})

		link, err := svc.Create(ctx, CreateLinkRequest{OwnerID: "u1", BlobID: "b1", OriginalURL: "https://sho.rt/files/b1?download=1"})
		require.NoError(t, err)
		assert.Equal(t, "https://sho.rt/files/b1", link.OriginalURL)
	})

	tests := []struct {
		name  string
		owner string // "" unowned; "-" not seeded
		req   CreateLinkRequest
		kind  errx.Kind
		is    error
	}{
		{"another user's blob", "victim", CreateLinkRequest{OwnerID: "mallory", BlobID: "b1"}, errx.Forbidden, ErrBlobNotOwned},
		{"another user's blob behind an unrelated URL", "victim", CreateLinkRequest{OwnerID: "mallory", BlobID: "b1", OriginalURL: "https://example.com"}, errx.Invalid, ErrBlobURLMismatch},
		{"own blob behind an unrelated URL", "u1", CreateLinkRequest{OwnerID: "u1", BlobID: "b1", OriginalURL: "https://example.com"}, errx.Invalid, ErrBlobURLMismatch},
		{"another blob's URL", "u1", CreateLinkRequest{OwnerID: "u1", BlobID: "b1", OriginalURL: "https://sho.rt/files/b12"}, errx.Invalid, ErrBlobURLMismatch},
		{"unknown blob", "-", CreateLinkRequest{OwnerID: "u1", BlobID: "b1"}, errx.Invalid, ErrUnknownBlob},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewMemoryRepository()
			blobs := &fakeBlobs{}
			if tt.owner != "-" {
				blobs.seed("b1", tt.owner)
			}
			svc, _ := newTestService(t, repo, &ServiceConfig{Blobs: blobs})

			_, err := svc.Create(ctx, tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.kind, errx.KindOf(err))
			assert.ErrorIs(t, err, tt.is)

			n, _ := repo.Count(ctx)
			assert.Zero(t, n, "no link is stored")
			if tt.owner != "-" {
				assert.Equal(t, tt.owner, blobs.owners["b1"], "ownership is unchanged")
			}
		})
	}

	t.Run("deleting a link never archives someone else's blob", func(t *testing.T) {
		blobs := &fakeBlobs{}
		blobs.seed("victim-file", "victim")
		svc, _ := newTestService(t, NewMemoryRepository(), &ServiceConfig{Blobs: blobs})

		_, err := svc.Create(ctx, CreateLinkRequest{OwnerID: "mallory", OriginalURL: "https://example.com", BlobID: "victim-file", CustomSlug: "trap"})
		require.Error(t, err)

		_, err = svc.Delete(ctx, "trap", "mallory")
		assert.True(t, errx.Is(err, errx.NotFound))
		assert.Empty(t, blobs.released)
		assert.Equal(t, "victim", blobs.owners["victim-file"])
	})
}

/***************
 * Resolve
 ***************/

func TestService_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("valid link increments clicks by exactly one", func(t *testing.T) {
		repo := NewMemoryRepository()
		svc, _ := newTestService(t, repo, nil)

		link, err := svc.Create(ctx, CreateLinkRequest{OwnerID: "u1", OriginalURL: "https://example.com"})
		require.NoError(t, err)

		res, err := svc.Resolve(ctx, link.ShortCode)
		require.NoError(t, err)
		assert.Equal(t, "https://example.com", res.OriginalURL)

		svc.Wait()
		got, err := repo.GetByCode(ctx, link.ShortCode)
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.ClickCount)
	})

	t.Run("expired link is not counted", func(t *testing.T) {
		repo := &flakyRepo{MemoryRepository: NewMemoryRepository()}
		svc, _ := newTestService(t, repo, nil)

		past := baseTime.Add(-time.Minute)
		link, err := svc.Create(ctx, CreateLinkRequest{OwnerID: "u1", OriginalURL: "example.com", ExpiresAt: &past})
		require.NoError(t, err)

		_, err = svc.Resolve(ctx, link.ShortCode)
		assert.True(t, errx.Is(err, errx.Expired))
		assert.ErrorIs(t, err, ErrExpired)

		svc.Wait()
		assert.Zero(t, repo.increments.Load())
		got, _ := repo.GetByCode(ctx, link.ShortCode)
		assert.Zero(t, got.ClickCount)
	})

	t.Run("link expires as the clock passes its expiry", func(t *testing.T) {
		svc, clk := newTestService(t, NewMemoryRepository(), nil)

		expires := baseTime.Add(time.Hour)
		link, err := svc.Create(ctx, CreateLinkRequest{OwnerID: "u1", OriginalURL: "example.com", ExpiresAt: &expires})
		require.NoError(t, err)

		_, err = svc.Resolve(ctx, link.ShortCode)
		require.NoError(t, err)

		clk.Advance(time.Hour)
		_, err = svc.Resolve(ctx, link.ShortCode)
		assert.True(t, errx.Is(err, errx.Expired))
	})

	t.Run("unknown and oversized codes are not found", func(t *testing.T) {
		svc, _ := newTestService(t, NewMemoryRepository(), nil)

		for _, code := range []string{"", "missing", string(make([]byte, MaxSlugLength+1))} {
			_, err := svc.Resolve(ctx, code)
			assert.True(t, errx.Is(err, errx.NotFound), "code %q", code)
		}
	})

	t.Run("click failure does not fail the resolution", func(t *testing.T) {
		repo := &flakyRepo{MemoryRepository: NewMemoryRepository(), incrementErr: errors.New("db down")}
		svc, _ := newTestService(t, repo, nil)

		link, err := svc.Create(ctx, CreateLinkRequest{OwnerID: "u1", OriginalURL: "example.com"})
		require.NoError(t, err)

		res, err := svc.Resolve(ctx, link.ShortCode)
		require.NoError(t, err)
		assert.Equal(t, "https://example.com", res.OriginalURL)

		svc.Wait()
		assert.Equal(t, int32(1), repo.increments.Load())
	})

	t.Run("click survives a cancelled request context", func(t *testing.T) {
		repo := NewMemoryRepository()
		svc, _ := newTestService(t, repo, nil)

		link, err := svc.Create(ctx, CreateLinkRequest{OwnerID: "u1", OriginalURL: "example.com"})
		require.NoError(t, err)

		reqCtx, cancel := context.WithCancel(ctx)
		_, err = svc.Resolve(reqCtx, link.ShortCode)
		require.NoError(t, err)
		cancel()

		svc.Wait()
		got, _ := repo.GetByCode(ctx, link.ShortCode)
		assert.Equal(t, int64(1), got.ClickCount)
	})

	t.Run("concurrent resolutions count every click", func(t *testing.T) {
		repo := NewMemoryRepository()
		svc, _ := newTestService(t, repo, nil)

		link, err := svc.Create(ctx, CreateLinkRequest{OwnerID: "u1", OriginalURL: "example.com"})
		require.NoError(t, err)

		var wg sync.WaitGroup
		for range 40 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = svc.Resolve(ctx, link.ShortCode)
			}()
		}
		wg.Wait()
		svc.Wait()

		got, _ := repo.GetByCode(ctx, link.ShortCode)
		assert.Equal(t, int64(40), got.ClickCount)
	})

	t.Run("blob link carries its blob id", func(t *testing.T) {
		svc, _ := newTestService(t, NewMemoryRepository(), &ServiceConfig{Blobs: &fakeBlobs{}})

		link, err := svc.Create(ctx, CreateLinkRequest{OwnerID: "u1", File: &blob.Upload{Filename: "f", Data: []byte("x")}})
		require.NoError(t, err)

		res, err := svc.Resolve(ctx, link.ShortCode)
		require.NoError(t, err)
		assert.Equal(t, "blob-f", res.BlobID)
	})
}

/***************
 * Delete / List
 ***************/

func TestService_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("non-owner fails and record is unchanged", func(t *testing.T) {
		repo := NewMemoryRepository()
		svc, _ := newTestService(t, repo, nil)

		link, err := svc.Create(ctx, CreateLinkRequest{OwnerID: "u1", OriginalURL: "example.com"})
		require.NoError(t, err)

		_, err = svc.Delete(ctx, link.ShortCode, "u2")
		assert.True(t, errx.Is(err, errx.Forbidden))

		got, err := repo.GetByCode(ctx, link.ShortCode)
		require.NoError(t, err)
		assert.Equal(t, link, got)
	})

	t.Run("owner removes the record", func(t *testing.T) {
		repo := NewMemoryRepository()
		svc, _ := newTestService(t, repo, nil)

		link, err := svc.Create(ctx, CreateLinkRequest{OwnerID: "u1", OriginalURL: "example.com"})
		require.NoError(t, err)

		res, err := svc.Delete(ctx, link.ShortCode, "u1")
		require.NoError(t, err)
		assert.Empty(t, res.Warning)

		_, err = repo.GetByCode(ctx, link.ShortCode)
		assert.True(t, errx.Is(err, errx.NotFound))
	})

	t.Run("missing code", func(t *testing.T) {
		svc, _ := newTestService(t, NewMemoryRepository(), nil)
		_, err := svc.Delete(ctx, "nope", "u1")
		assert.True(t, errx.Is(err, errx.NotFound))
	})

	t.Run("missing parameters", func(t *testing.T) {
		svc, _ := newTestService(t, NewMemoryRepository(), nil)
		_, err := svc.Delete(ctx, "", "u1")
		assert.True(t, errx.Is(err, errx.Invalid))
	})

	t.Run("releases the blob", func(t *testing.T) {
		blobs := &fakeBlobs{}
		svc, _ := newTestService(t, NewMemoryRepository(), &ServiceConfig{Blobs: blobs})

		link, err := svc.Create(ctx, CreateLinkRequest{OwnerID: "u1", File: &blob.Upload{Filename: "f", Data: []byte("x")}})
		require.NoError(t, err)

		res, err := svc.Delete(ctx, link.ShortCode, "u1")
		require.NoError(t, err)
		assert.Empty(t, res.Warning)
		assert.Equal(t, []string{"blob-f"}, blobs.released)
	})

	t.Run("blob release failure is a warning", func(t *testing.T) {
		repo := NewMemoryRepository()
		blobs := &fakeBlobs{releaseErr: errors.New("drive unavailable")}
		blobs.seed("blob-x", "u1")
		svc, _ := newTestService(t, repo, &ServiceConfig{Blobs: blobs})

		link, err := svc.Create(ctx, CreateLinkRequest{OwnerID: "u1", BlobID: "blob-x"})
		require.NoError(t, err)

		res, err := svc.Delete(ctx, link.ShortCode, "u1")
		require.NoError(t, err)
		assert.NotEmpty(t, res.Warning)

		_, err = repo.GetByCode(ctx, link.ShortCode)
		assert.True(t, errx.Is(err, errx.NotFound), "link must be deleted despite the warning")
	})
}

func TestService_List(t *testing.T) {
	ctx := context.Background()
	svc, clk := newTestService(t, NewMemoryRepository(), nil)

	for _, slug := range []string{"first", "second", "third"} {
		_, err := svc.Create(ctx, CreateLinkRequest{OwnerID: "u1", OriginalURL: "example.com", CustomSlug: slug})
		require.NoError(t, err)
		clk.Advance(time.Second)
	}
	_, err := svc.Create(ctx, CreateLinkRequest{OwnerID: "u2", OriginalURL: "example.com", CustomSlug: "foreign"})
	require.NoError(t, err)

	links, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, links, 3)
	assert.Equal(t, []string{"third", "second", "first"}, []string{links[0].ShortCode, links[1].ShortCode, links[2].ShortCode})

	_, err = svc.List(ctx, "")
	assert.True(t, errx.Is(err, errx.Unauthorized))

	n, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}
