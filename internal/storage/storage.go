// Package storage opens the databases the CRM session service runs on.
package storage

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/jrsteele09/crm-session/internal/config"
	"github.com/jrsteele09/crm-session/markers/redisstore"
	"github.com/jrsteele09/crm-session/users/sqliterepo"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.etcd.io/bbolt"
)

// Stores holds the open databases. Redis is nil when no address is
// configured.
type Stores struct {
	Users    *sqliterepo.Store
	Sessions *bbolt.DB
	Redis    *redis.Client
}

// Open opens the users database, the session database and, when configured,
// the Redis connection used for tab markers.
func Open(ctx context.Context, c config.Config) (*Stores, error) {
	for _, path := range []string{c.GetUsersDBPath(), c.GetSessionsDBPath()} {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrapf(err, "[storage.Open] create folder for %s", path)
		}
	}

	usersDB, err := sqliterepo.Open(c.GetUsersDBPath())
	if err != nil {
		return nil, errors.Wrap(err, "[storage.Open] users")
	}

	sessionsDB, err := bbolt.Open(c.GetSessionsDBPath(), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		_ = usersDB.Close()
		return nil, errors.Wrap(err, "[storage.Open] sessions")
	}

	s := &Stores{Users: usersDB, Sessions: sessionsDB}
	if addr := c.GetRedisAddr(); addr != "" {
		s.Redis, err = redisstore.Dial(ctx, addr, c.GetRedisPassword())
		if err != nil {
			s.Close()
			return nil, errors.Wrap(err, "[storage.Open] redis")
		}
	}
	return s, nil
}

// OpenSessions opens only the session database, for tools that inspect
// markers while the server is stopped.
func OpenSessions(c config.Config) (*bbolt.DB, error) {
	db, err := bbolt.Open(c.GetSessionsDBPath(), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "[storage.OpenSessions]")
	}
	return db, nil
}

func (s *Stores) Close() {
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Err(err).Msg("Failed to close redis")
		}
	}
	if s.Sessions != nil {
		if err := s.Sessions.Close(); err != nil {
			log.Err(err).Msg("Failed to close sessions db")
		}
	}
	if s.Users != nil {
		if err := s.Users.Close(); err != nil {
			log.Err(err).Msg("Failed to close users db")
		}
	}
}
