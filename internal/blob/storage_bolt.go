package blob

import (
	"context"
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketData     = []byte("blob_data")
	bucketMeta     = []byte("blob_meta")
	bucketArchived = []byte("blob_archived")
)

// BoltStorage keeps blobs in a bbolt file. Live objects have metadata in
// blob_meta; archiving moves the metadata to blob_archived and leaves the
// bytes in blob_data.
type BoltStorage struct {
	db *bolt.DB
}

// NewBoltStorage creates the blob buckets if needed.
func NewBoltStorage(db *bolt.DB) (*BoltStorage, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketData, bucketMeta, bucketArchived} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &BoltStorage{db: db}, nil
}

func (s *BoltStorage) Put(_ context.Context, obj Object, data []byte) error {
	meta, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		key := []byte(obj.ID)
		if err := tx.Bucket(bucketData).Put(key, data); err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Put(key, meta)
	})
}

func (s *BoltStorage) Get(_ context.Context, id string) (Object, []byte, error) {
	var (
		obj  Object
		data []byte
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		key := []byte(id)
		meta := tx.Bucket(bucketMeta).Get(key)
		if meta == nil {
			return ErrNotFound
		}
		if err := json.Unmarshal(meta, &obj); err != nil {
			return err
		}
		// bbolt values are only valid inside the transaction.
		data = append([]byte(nil), tx.Bucket(bucketData).Get(key)...)
		return nil
	})
	if err != nil {
		return Object{}, nil, err
	}
	return obj, data, nil
}

func (s *BoltStorage) Claim(_ context.Context, id, ownerID string) (Object, error) {
	var obj Object
	err := s.db.Update(func(tx *bolt.Tx) error {
		key := []byte(id)
		live := tx.Bucket(bucketMeta)
		meta := live.Get(key)
		if meta == nil {
			return ErrNotFound
		}
		if err := json.Unmarshal(meta, &obj); err != nil {
			return err
		}
		switch obj.OwnerID {
		case ownerID:
			return nil
		case "":
			obj.OwnerID = ownerID
			claimed, err := json.Marshal(obj)
			if err != nil {
				return err
			}
			return live.Put(key, claimed)
		default:
			return ErrNotOwner
		}
	})
	if err != nil {
		return Object{}, err
	}
	return obj, nil
}

func (s *BoltStorage) Archive(_ context.Context, id, ownerID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		key := []byte(id)
		live := tx.Bucket(bucketMeta)
		meta := live.Get(key)
		if meta == nil {
			if meta = tx.Bucket(bucketArchived).Get(key); meta == nil {
				return ErrNotFound
			}
			var obj Object
			if err := json.Unmarshal(meta, &obj); err != nil {
				return err
			}
			if obj.OwnerID != ownerID {
				return ErrNotOwner
			}
			return nil
		}

		var obj Object
		if err := json.Unmarshal(meta, &obj); err != nil {
			return err
		}
		if obj.OwnerID != ownerID {
			return ErrNotOwner
		}
		obj.Archived = true
		archived, err := json.Marshal(obj)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketArchived).Put(key, archived); err != nil {
			return err
		}
		return live.Delete(key)
	})
}
