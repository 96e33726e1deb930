package file

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/calyx-health/deid/internal/core/domain"
	"github.com/calyx-health/deid/internal/core/ports/driven"
)

// Ensure ConfigStore implements the interface.
var _ driven.ConfigStore = (*ConfigStore)(nil)

// ConfigStore is a file-based implementation of driven.ConfigStore using
// TOML. Configuration is stored within the deid config directory.
type ConfigStore struct {
	mu       sync.Mutex
	filePath string
}

// NewConfigStore creates a new TOML-based config store.
// If configDir is empty, defaults to ~/.deid/config.toml.
func NewConfigStore(configDir string) (*ConfigStore, error) {
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		configDir = filepath.Join(home, ".deid")
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, err
	}

	return &ConfigStore{
		filePath: filepath.Join(configDir, "config.toml"),
	}, nil
}

// Load reads the configuration, returning normalised defaults when no file
// exists yet. A malformed or invalid file is a load-time error so scrub
// never runs against a half-read category set.
func (s *ConfigStore) Load() (domain.EngineConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cfg domain.EngineConfig
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return domain.EngineConfig{}, fmt.Errorf("reading config: %w", err)
		}
	} else if err := toml.Unmarshal(data, &cfg); err != nil {
		return domain.EngineConfig{}, fmt.Errorf("parsing %s: %v: %w", s.filePath, err, domain.ErrConfiguration)
	}

	cfg.Normalise()
	if err := cfg.Validate(); err != nil {
		return domain.EngineConfig{}, fmt.Errorf("validating %s: %w", s.filePath, err)
	}
	return cfg, nil
}

// Save persists the configuration.
func (s *ConfigStore) Save(cfg domain.EngineConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("serialising config: %w", err)
	}
	if err := os.WriteFile(s.filePath, data, 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Path returns the configuration file location.
func (s *ConfigStore) Path() string {
	return s.filePath
}
