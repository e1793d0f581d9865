package shortener

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/sundayezeilo/linksnap/internal/errx"
)

var (
	bucketLinks   = []byte("links")
	bucketByOwner = []byte("links_by_owner")
)

// BoltRepository stores links as JSON in a bbolt file. bbolt runs one
// read-write transaction at a time, so check-then-insert and
// read-increment-write are atomic.
//
// links_by_owner indexes ownerID + 0x00 + shortCode so listing an owner is
// a prefix scan.
type BoltRepository struct {
	db *bolt.DB
}

// NewBoltRepository creates the link buckets if needed.
func NewBoltRepository(db *bolt.DB) (*BoltRepository, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketLinks, bucketByOwner} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &BoltRepository{db: db}, nil
}

func ownerKey(ownerID, code string) []byte {
	return append(append([]byte(ownerID), 0), code...)
}

func (r *BoltRepository) Create(_ context.Context, link Link) (Link, error) {
	const op = "shortener.bolt.Create"

	val, err := json.Marshal(link)
	if err != nil {
		return Link{}, errx.E(op, errx.Internal, err)
	}

	err = r.db.Update(func(tx *bolt.Tx) error {
		links := tx.Bucket(bucketLinks)
		key := []byte(link.ShortCode)
		if links.Get(key) != nil {
			return ErrCodeTaken
		}
		if err := links.Put(key, val); err != nil {
			return err
		}
		return tx.Bucket(bucketByOwner).Put(ownerKey(link.OwnerID, link.ShortCode), nil)
	})
	if errors.Is(err, ErrCodeTaken) {
		return Link{}, errx.E(op, errx.Conflict, err)
	}
	if err != nil {
		return Link{}, errx.E(op, errx.Unavailable, err)
	}
	return link, nil
}

func (r *BoltRepository) GetByCode(_ context.Context, code string) (Link, error) {
	const op = "shortener.bolt.GetByCode"

	var link Link
	err := r.db.View(func(tx *bolt.Tx) error {
		val := tx.Bucket(bucketLinks).Get([]byte(code))
		if val == nil {
			return ErrLinkNotFound
		}
		return json.Unmarshal(val, &link)
	})
	if errors.Is(err, ErrLinkNotFound) {
		return Link{}, errx.E(op, errx.NotFound, err)
	}
	if err != nil {
		return Link{}, errx.E(op, errx.Internal, err)
	}
	return link, nil
}

func (r *BoltRepository) ListByOwner(_ context.Context, ownerID string) ([]Link, error) {
	const op = "shortener.bolt.ListByOwner"

	out := []Link{}
	prefix := ownerKey(ownerID, "")
	err := r.db.View(func(tx *bolt.Tx) error {
		links := tx.Bucket(bucketLinks)
		c := tx.Bucket(bucketByOwner).Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			val := links.Get(k[len(prefix):])
			if val == nil {
				continue
			}
			var link Link
			if err := json.Unmarshal(val, &link); err != nil {
				return err
			}
			out = append(out, link)
		}
		return nil
	})
	if err != nil {
		return nil, errx.E(op, errx.Internal, err)
	}
	sortNewestFirst(out)
	return out, nil
}

func (r *BoltRepository) IncrementClicks(_ context.Context, code string) error {
	const op = "shortener.bolt.IncrementClicks"

	err := r.db.Update(func(tx *bolt.Tx) error {
		links := tx.Bucket(bucketLinks)
		key := []byte(code)
		val := links.Get(key)
		if val == nil {
			return ErrLinkNotFound
		}
		var link Link
		if err := json.Unmarshal(val, &link); err != nil {
			return err
		}
		link.ClickCount++
		next, err := json.Marshal(link)
		if err != nil {
			return err
		}
		return links.Put(key, next)
	})
	if errors.Is(err, ErrLinkNotFound) {
		return errx.E(op, errx.NotFound, err)
	}
	if err != nil {
		return errx.E(op, errx.Unavailable, err)
	}
	return nil
}

func (r *BoltRepository) Delete(_ context.Context, code, ownerID string) error {
	const op = "shortener.bolt.Delete"

	err := r.db.Update(func(tx *bolt.Tx) error {
		links := tx.Bucket(bucketLinks)
		key := []byte(code)
		val := links.Get(key)
		if val == nil {
			return ErrLinkNotFound
		}
		var link Link
		if err := json.Unmarshal(val, &link); err != nil {
			return err
		}
		if link.OwnerID != ownerID {
			return ErrNotOwner
		}
		if err := links.Delete(key); err != nil {
			return err
		}
		return tx.Bucket(bucketByOwner).Delete(ownerKey(ownerID, code))
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrLinkNotFound):
		return errx.E(op, errx.NotFound, err)
	case errors.Is(err, ErrNotOwner):
		return errx.E(op, errx.Forbidden, err)
	default:
		return errx.E(op, errx.Unavailable, err)
	}
}

func (r *BoltRepository) Count(_ context.Context) (int, error) {
	var n int
	err := r.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketLinks).Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, errx.E("shortener.bolt.Count", errx.Internal, err)
	}
	return n, nil
}
