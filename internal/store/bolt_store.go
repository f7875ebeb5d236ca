package store

import (
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"nyx/internal/domain"
)

var kvBucket = []byte("kv")

// BoltStore is a KeyValueStore in a single bbolt file.
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens or creates the database at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(kvBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

// Get returns a copy of the value stored under name.
func (s *BoltStore) Get(name string) (value []byte, ok bool, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(kvBucket).Get([]byte(name))
		if v == nil {
			return nil
		}
		value = append([]byte{}, v...)
		ok = true
		return nil
	})
	return value, ok, err
}

// Set stores value under name.
func (s *BoltStore) Set(name string, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(kvBucket).Put([]byte(name), value)
	})
}

// Delete removes name. Deleting a missing name is not an error.
func (s *BoltStore) Delete(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(kvBucket).Delete([]byte(name))
	})
}

// Close closes the database file.
func (s *BoltStore) Close() error { return s.db.Close() }

var _ domain.KeyValueStore = (*BoltStore)(nil)
