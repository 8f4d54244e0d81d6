// Package boltrepo keeps the persistent auth record in a BBolt database,
// one bucket per browser profile.
package boltrepo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jrsteele09/crm-session/internal/errors"
	"github.com/jrsteele09/crm-session/sessions"
	"go.etcd.io/bbolt"
)

const recordKey = "persistent-auth"

// Store implements sessions.Repo backed by a BBolt database.
type Store struct {
	db     *bbolt.DB
	bucket []byte
}

var _ sessions.Repo = (*Store)(nil)

// New returns a Store that keeps its record in the named bucket.
func New(db *bbolt.DB, bucket string) *Store {
	return &Store{db: db, bucket: []byte(bucket)}
}

// Bucket returns the bucket name used for a browser profile.
func Bucket(deviceID string) string {
	return "auth:" + deviceID
}

func (s *Store) Save(_ context.Context, record *sessions.Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal auth record: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(s.bucket)
		if err != nil {
			return err
		}
		return b.Put([]byte(recordKey), data)
	})
}

func (s *Store) Read(_ context.Context) (*sessions.Record, error) {
	var record sessions.Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return fmt.Errorf("%s: %w", s.bucket, errors.ErrNotFound)
		}
		data := b.Get([]byte(recordKey))
		if data == nil {
			return fmt.Errorf("%s/%s: %w", s.bucket, recordKey, errors.ErrNotFound)
		}
		return json.Unmarshal(data, &record)
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *Store) Clear(_ context.Context) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return nil
		}
		return b.Delete([]byte(recordKey))
	})
}
