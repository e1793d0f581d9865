package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/sundayezeilo/linksnap/internal/errx"
)

var (
	bucketUsers      = []byte("users")
	bucketByEmail    = []byte("users_by_email")
	bucketByUsername = []byte("users_by_username")
)

// BoltRepository stores users as JSON keyed by id, with lowercased email
// and username indexes pointing back at the id.
type BoltRepository struct {
	db *bolt.DB
}

// NewBoltRepository creates the user buckets if needed.
func NewBoltRepository(db *bolt.DB) (*BoltRepository, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketUsers, bucketByEmail, bucketByUsername} {
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

func (r *BoltRepository) Create(_ context.Context, user User) (User, error) {
	const op = "users.bolt.Create"

	val, err := json.Marshal(user)
	if err != nil {
		return User{}, errx.E(op, errx.Internal, err)
	}
	id := []byte(user.ID)
	email := []byte(lookupKey(user.Email))
	username := []byte(lookupKey(user.Username))

	err = r.db.Update(func(tx *bolt.Tx) error {
		users := tx.Bucket(bucketUsers)
		byEmail := tx.Bucket(bucketByEmail)
		byUsername := tx.Bucket(bucketByUsername)

		if users.Get(id) != nil || byEmail.Get(email) != nil || byUsername.Get(username) != nil {
			return ErrUserExists
		}
		if err := users.Put(id, val); err != nil {
			return err
		}
		if err := byEmail.Put(email, id); err != nil {
			return err
		}
		return byUsername.Put(username, id)
	})
	if errors.Is(err, ErrUserExists) {
		return User{}, errx.E(op, errx.Conflict, err)
	}
	if err != nil {
		return User{}, errx.E(op, errx.Unavailable, err)
	}
	return user, nil
}

func (r *BoltRepository) GetByID(_ context.Context, id string) (User, error) {
	var user User
	err := r.db.View(func(tx *bolt.Tx) error {
		return getUser(tx, []byte(id), &user)
	})
	return user, boltErr("users.bolt.GetByID", err)
}

func (r *BoltRepository) FindByLogin(_ context.Context, identifier string) (User, error) {
	key := []byte(lookupKey(identifier))

	var user User
	err := r.db.View(func(tx *bolt.Tx) error {
		id := tx.Bucket(bucketByEmail).Get(key)
		if id == nil {
			id = tx.Bucket(bucketByUsername).Get(key)
		}
		if id == nil {
			return ErrUserNotFound
		}
		return getUser(tx, id, &user)
	})
	return user, boltErr("users.bolt.FindByLogin", err)
}

func (r *BoltRepository) Count(_ context.Context) (int, error) {
	var n int
	err := r.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketUsers).Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, errx.E("users.bolt.Count", errx.Internal, err)
	}
	return n, nil
}

func getUser(tx *bolt.Tx, id []byte, user *User) error {
	val := tx.Bucket(bucketUsers).Get(id)
	if val == nil {
		return ErrUserNotFound
	}
	return json.Unmarshal(val, user)
}

func boltErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrUserNotFound):
		return errx.E(op, errx.NotFound, err)
	default:
		return errx.E(op, errx.Internal, err)
	}
}
