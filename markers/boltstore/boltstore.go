// Package boltstore keeps durable markers in a BBolt bucket per browser
// profile so they survive process restarts.
package boltstore

import (
	"context"

	"github.com/jrsteele09/crm-session/markers"
	"go.etcd.io/bbolt"
)

// Store implements markers.Store backed by a BBolt database.
type Store struct {
	db     *bbolt.DB
	bucket []byte
}

var (
	_ markers.Store  = (*Store)(nil)
	_ markers.Lister = (*Store)(nil)
)

func New(db *bbolt.DB, bucket string) *Store {
	return &Store{db: db, bucket: []byte(bucket)}
}

// Bucket returns the bucket name used for a browser profile.
func Bucket(deviceID string) string {
	return "markers:" + deviceID
}

func (s *Store) Get(_ context.Context, key markers.Key) (string, bool, error) {
	var (
		value string
		found bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return nil
		}
		if data := b.Get([]byte(key)); data != nil {
			value, found = string(data), true
		}
		return nil
	})
	return value, found, err
}

func (s *Store) Set(_ context.Context, key markers.Key, value string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(s.bucket)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), []byte(value))
	})
}

func (s *Store) Remove(_ context.Context, key markers.Key) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
}

func (s *Store) List(_ context.Context) (map[markers.Key]string, error) {
	out := make(map[markers.Key]string)
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			out[markers.Key(k)] = string(v)
			return nil
		})
	})
	return out, err
}

// Devices lists the browser profiles that have durable markers in db.
func Devices(db *bbolt.DB) ([]string, error) {
	const prefix = "markers:"
	var devices []string
	err := db.View(func(tx *bbolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bbolt.Bucket) error {
			if n := string(name); len(n) > len(prefix) && n[:len(prefix)] == prefix {
				devices = append(devices, n[len(prefix):])
			}
			return nil
		})
	})
	return devices, err
}
