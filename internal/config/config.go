package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

type Config interface {
	EnvConfig
	StorageConfig
	IdentityConfig
	ReconcilerConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetDataFolder() string
	GetEnv() string
}

type mainConfig struct {
	EnvVars
	Storage
	Identity
	Reconciler
}

// New reads the configuration from the environment, falling back to the
// envDefault values for anything unset.
func New() (Config, error) {
	var c mainConfig
	if err := env.Parse(&c); err != nil {
		return nil, fmt.Errorf("[config.New] parse env: %w", err)
	}
	return c, nil
}

// NewFromMap is New with an explicit environment, used by tests and tools
// that must not depend on the process environment.
func NewFromMap(environment map[string]string) (Config, error) {
	var c mainConfig
	if err := env.ParseWithOptions(&c, env.Options{Environment: environment}); err != nil {
		return nil, fmt.Errorf("[config.NewFromMap] parse env: %w", err)
	}
	return c, nil
}
