// Package boltdb is a Store backed by an embedded BoltDB file.
//
// Bolt allows a single writer at a time, so every Update runs as one serialized
// read-modify-write transaction. That is what makes acquire linearizable when two
// requests race for the same order on a single node.
package boltdb

import (
	"bytes"
	"context"
	"time"

	bolt "github.com/boltdb/bolt"

	"github.com/cimillas/checkin-pay/internal/storage"
)

const bucketName = "kv"

type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the database file at path and ensures the bucket exists.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close releases the database file lock.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucketName)).Get([]byte(key))
		if v == nil {
			return storage.ErrNotFound
		}
		// Values are only valid for the life of the transaction.
		out = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put([]byte(key), value)
	})
}

func (s *Store) Delete(_ context.Context, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Delete([]byte(key))
	})
}

func (s *Store) Update(_ context.Context, key string, fn storage.UpdateFunc) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		cur := b.Get([]byte(key))
		next, err := fn(append([]byte(nil), cur...), cur != nil)
		if err != nil {
			return err
		}
		if next == nil {
			return nil
		}
		return b.Put([]byte(key), next)
	})
}

func (s *Store) Scan(_ context.Context, prefix string, fn func(key string, value []byte) error) error {
	type kv struct {
		key   string
		value []byte
	}
	var items []kv
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(bucketName)).Cursor()
		p := []byte(prefix)
		for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
			items = append(items, kv{key: string(k), value: append([]byte(nil), v...)})
		}
		return nil
	})
	if err != nil {
		return err
	}
	// fn runs outside the read tx so it may write back to the store.
	for _, it := range items {
		if err := fn(it.key, it.value); err != nil {
			return err
		}
	}
	return nil
}

var _ storage.Store = (*Store)(nil)
