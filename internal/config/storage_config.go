package config

import "time"

type StorageConfig interface {
	GetUsersDBPath() string
	GetSessionsDBPath() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetTabSessionTTL() time.Duration
}

// Storage locates the user-profile database, the durable bbolt file and the
// optional Redis instance that holds volatile per-tab markers.
type Storage struct {
	UsersDB       string        `env:"USERS_DB"`
	SessionsDB    string        `env:"SESSIONS_DB"`
	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	TabSessionTTL time.Duration `env:"TAB_SESSION_TTL" envDefault:"12h"`
}

func (s Storage) GetUsersDBPath() string {
	return s.UsersDB
}

func (s Storage) GetSessionsDBPath() string {
	return s.SessionsDB
}

func (s Storage) GetRedisAddr() string {
	return s.RedisAddr
}

func (s Storage) GetRedisPassword() string {
	return s.RedisPassword
}

func (s Storage) GetTabSessionTTL() time.Duration {
	return s.TabSessionTTL
}

// GetUsersDBPath falls back to a file in the data folder.
func (c mainConfig) GetUsersDBPath() string {
	if c.Storage.UsersDB != "" {
		return c.Storage.UsersDB
	}
	return c.EnvVars.dataPath("users.db")
}

// GetSessionsDBPath falls back to a file in the data folder.
func (c mainConfig) GetSessionsDBPath() string {
	if c.Storage.SessionsDB != "" {
		return c.Storage.SessionsDB
	}
	return c.EnvVars.dataPath("sessions.bolt")
}
