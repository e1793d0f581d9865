// Package blob stores uploaded files and hands out the URLs links point at.
package blob

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"time"
)

// Errors returned by Storage implementations.
var (
	ErrNotFound  = errors.New("blob not found")
	ErrEmpty     = errors.New("file content is empty")
	ErrTooLarge  = errors.New("file exceeds maximum size")
	ErrBadBase64 = errors.New("content is not valid base64")
	ErrNotOwner  = errors.New("file belongs to another user")
)

// Upload is a file submitted by a client. OwnerID is empty for anonymous
// uploads; the first link that attaches the file claims it.
type Upload struct {
	OwnerID     string
	Filename    string
	ContentType string
	Data        []byte
}

// Object describes a stored file. URL fields are filled in by Service and
// are not persisted.
type Object struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId,omitempty"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"createdAt"`
	Archived    bool      `json:"archived,omitempty"`

	URL         string `json:"-"`
	DownloadURL string `json:"-"`
	ViewURL     string `json:"-"`
}

// Storage persists blob bytes and metadata. Archived objects keep their
// bytes but are no longer returned by Get.
//
// Claim sets the owner of an unowned live object and returns it. It fails
// with ErrNotOwner when another owner already holds it. Archive fails with
// ErrNotOwner unless ownerID owns the object.
type Storage interface {
	Put(ctx context.Context, obj Object, data []byte) error
	Get(ctx context.Context, id string) (Object, []byte, error)
	Claim(ctx context.Context, id, ownerID string) (Object, error)
	Archive(ctx context.Context, id, ownerID string) error
}

// DecodeBase64 decodes upload content. A data URL prefix such as
// "data:image/png;base64," is stripped first.
func DecodeBase64(content string) ([]byte, error) {
	if i := strings.Index(content, "base64,"); i >= 0 {
		content = content[i+len("base64,"):]
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmpty
	}

	data, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(content, "="))
		if err != nil {
			return nil, ErrBadBase64
		}
	}
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	return data, nil
}
