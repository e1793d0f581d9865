package shortener

import (
	"time"
)

// Link is a stored short code and its destination.
type Link struct {
	ShortCode   string     `json:"shortCode"`
	OriginalURL string     `json:"originalUrl"`
	OwnerID     string     `json:"ownerId"`
	CreatedAt   time.Time  `json:"createdAt"`
	ClickCount  int64      `json:"clickCount"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	BlobID      string     `json:"blobId,omitempty"`
}

// Expired reports whether the link has an expiry at or before now.
func (l Link) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && !l.ExpiresAt.After(now)
}

// Resolution is what a successful lookup hands to the redirect path.
type Resolution struct {
	ShortCode   string
	OriginalURL string
	BlobID      string
	ExpiresAt   *time.Time
}

// DeleteResult carries a non-fatal warning, e.g. when the blob behind a
// deleted link could not be released.
type DeleteResult struct {
	Warning string
}
