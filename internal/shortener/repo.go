package shortener

import (
	"context"
	"sort"
)

// Repository is the persistence boundary for links.
//
// Create must reject a duplicate short code atomically with respect to
// other creates (errx.Conflict wrapping ErrCodeTaken). Delete reports a
// missing code as errx.NotFound and an owner mismatch as errx.Forbidden.
// IncrementClicks must not lose updates under concurrent calls.
type Repository interface {
	Create(ctx context.Context, link Link) (Link, error)
	GetByCode(ctx context.Context, code string) (Link, error)
	ListByOwner(ctx context.Context, ownerID string) ([]Link, error)
	IncrementClicks(ctx context.Context, code string) error
	Delete(ctx context.Context, code, ownerID string) error
	Count(ctx context.Context) (int, error)
}

// sortNewestFirst orders links by creation time, newest first, breaking
// ties by short code so the order is stable across stores.
func sortNewestFirst(links []Link) {
	sort.Slice(links, func(i, j int) bool {
		if !links[i].CreatedAt.Equal(links[j].CreatedAt) {
			return links[i].CreatedAt.After(links[j].CreatedAt)
		}
		return links[i].ShortCode < links[j].ShortCode
	})
}
