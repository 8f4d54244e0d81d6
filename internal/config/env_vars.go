package config

import (
	"path/filepath"
	"strings"
)

type EnvVars struct {
	Port       string `env:"PORT"     envDefault:"8080"`
	AppName    string `env:"APP_NAME" envDefault:"CRM Session"`
	DataFolder string `env:"FOLDER"   envDefault:"./data"`
	Env        string `env:"ENV"      envDefault:"DEV"`
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	if strings.HasPrefix(e.Port, ":") {
		return e.Port
	}
	return ":" + e.Port
}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (e EnvVars) GetDataFolder() string {
	return e.DataFolder
}

func (e EnvVars) GetEnv() string {
	return e.Env
}

// IsDev reports whether the process runs in the development environment.
func (e EnvVars) IsDev() bool {
	return strings.EqualFold(e.Env, "DEV")
}

func (e EnvVars) dataPath(name string) string {
	return filepath.Join(e.DataFolder, name)
}
