package bridge

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	BackendURL string `yaml:"backendUrl"`
	StatePath  string `yaml:"statePath"`
}

const defaultBackendURL = "http://localhost:3000"

// LoadConfig reads the bridge config file. A missing file is fine;
// defaults cover local development.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	if cfg.BackendURL == "" {
		cfg.BackendURL = defaultBackendURL
	}
	if cfg.StatePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		cfg.StatePath = filepath.Join(home, ".yshare", "state.json")
	}
	return &cfg, nil
}
