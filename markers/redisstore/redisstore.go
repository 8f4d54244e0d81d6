// Package redisstore keeps volatile per-tab markers in Redis. Every write
// refreshes the TTL so the markers expire once a tab goes quiet.
package redisstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jrsteele09/crm-session/markers"
	"github.com/redis/go-redis/v9"
)

type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var (
	_ markers.Store  = (*Store)(nil)
	_ markers.Lister = (*Store)(nil)
)

// New creates a store whose keys live under "markers:<deviceID>:<tabID>:".
// Tab IDs are client supplied, so the device keeps two browsers apart.
func New(client *redis.Client, deviceID, tabID string, ttl time.Duration) *Store {
	return &Store{
		client: client,
		prefix: "markers:" + deviceID + ":" + tabID + ":",
		ttl:    ttl,
	}
}

func (s *Store) key(k markers.Key) string {
	return s.prefix + string(k)
}

func (s *Store) Get(ctx context.Context, key markers.Key) (string, bool, error) {
	val, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (s *Store) Set(ctx context.Context, key markers.Key, value string) error {
	return s.client.Set(ctx, s.key(key), value, s.ttl).Err()
}

func (s *Store) Remove(ctx context.Context, key markers.Key) error {
	return s.client.Del(ctx, s.key(key)).Err()
}

func (s *Store) List(ctx context.Context) (map[markers.Key]string, error) {
	out := make(map[markers.Key]string)
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		full := iter.Val()
		val, err := s.client.Get(ctx, full).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[markers.Key(strings.TrimPrefix(full, s.prefix))] = val
	}
	return out, iter.Err()
}

// Dial connects to Redis and checks the connection.
func Dial(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
