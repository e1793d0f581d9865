package shortener

import (
	"context"
	"sync"

	"github.com/sundayezeilo/linksnap/internal/errx"
)

// MemoryRepository keeps links in a map. All operations hold one mutex,
// which makes create and increment atomic.
type MemoryRepository struct {
	mu    sync.RWMutex
	links map[string]Link
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{links: make(map[string]Link)}
}

func (r *MemoryRepository) Create(_ context.Context, link Link) (Link, error) {
	const op = "shortener.memory.Create"

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.links[link.ShortCode]; exists {
		return Link{}, errx.E(op, errx.Conflict, ErrCodeTaken)
	}
	r.links[link.ShortCode] = link
	return link, nil
}

func (r *MemoryRepository) GetByCode(_ context.Context, code string) (Link, error) {
	const op = "shortener.memory.GetByCode"

	r.mu.RLock()
	defer r.mu.RUnlock()

	link, ok := r.links[code]
	if !ok {
		return Link{}, errx.E(op, errx.NotFound, ErrLinkNotFound)
	}
	return link, nil
}

func (r *MemoryRepository) ListByOwner(_ context.Context, ownerID string) ([]Link, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []Link{}
	for _, l := range r.links {
		if l.OwnerID == ownerID {
			out = append(out, l)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (r *MemoryRepository) IncrementClicks(_ context.Context, code string) error {
	const op = "shortener.memory.IncrementClicks"

	r.mu.Lock()
	defer r.mu.Unlock()

	link, ok := r.links[code]
	if !ok {
		return errx.E(op, errx.NotFound, ErrLinkNotFound)
	}
	link.ClickCount++
	r.links[code] = link
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, code, ownerID string) error {
	const op = "shortener.memory.Delete"

	r.mu.Lock()
	defer r.mu.Unlock()

	link, ok := r.links[code]
	if !ok {
		return errx.E(op, errx.NotFound, ErrLinkNotFound)
	}
	if link.OwnerID != ownerID {
		return errx.E(op, errx.Forbidden, ErrNotOwner)
	}
	delete(r.links, code)
	return nil
}

func (r *MemoryRepository) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.links), nil
}
