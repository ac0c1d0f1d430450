// Package snapshot persists the membership hash last pushed per slot in
// a local bbolt file. It is an optimization only: the remote platform
// stays the authority, and a lost or stale snapshot merely costs an
// extra membership fetch on the next pass.
package snapshot

import (
	"time"

	bbolt "go.etcd.io/bbolt"
)

var bucketSlots = []byte("slots")

// Store implements the reconciler's Snapshots interface on bbolt.
type Store struct {
	db *bbolt.DB
}

// New opens (or creates) a Bolt database at path and ensures buckets exist.
func New(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSlots)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// SlotHash returns the recorded membership hash for a slot name. The
// second return is false when no hash has been recorded.
func (s *Store) SlotHash(name string) (string, bool, error) {
	var hash string
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSlots)
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(name)); v != nil {
			hash = string(v)
			found = true
		}
		return nil
	})
	return hash, found, err
}

// PutSlotHash records the membership hash just pushed for a slot.
func (s *Store) PutSlotHash(name, hash string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSlots).Put([]byte(name), []byte(hash))
	})
}

// Clear drops every recorded hash. Teardown calls this so a later apply
// starts from a cold state.
func (s *Store) Clear() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketSlots); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketSlots)
		return err
	})
}
