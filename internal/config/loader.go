package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied. It is a convenience wrapper around
// [LoadFromReader].
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}

	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault behaves like [Load] but returns [Default] when path does not
// exist. An empty path also yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Debug("config file not found, using defaults", "path", path)
		return Default(), nil
	}
	return cfg, err
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// validates the result. An empty document is valid.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.ApplyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills every unset field with its default value.
func (c *Config) ApplyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = DefaultListenAddr
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = LogInfo
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = StorageFile
	}
	if c.Storage.Path == "" {
		c.Storage.Path = defaultStorageDir()
	}
	if c.Storage.StoreID == "" {
		c.Storage.StoreID = DefaultStoreID
	}
	if c.Storage.EncryptionKey == "" {
		c.Storage.EncryptionKey = DefaultEncryptionKey
	}
	if c.Display.Orientation == "" {
		c.Display.Orientation = OrientationHorizontal
	}
}

// defaultStorageDir is <user config dir>/spellin, or ./.spellin when the
// platform has no config directory.
func defaultStorageDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".spellin"
	}
	return filepath.Join(dir, "spellin")
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	// Storage
	if cfg.Storage.Backend != "" && !cfg.Storage.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("storage.backend %q is invalid; valid values: file, postgres, memory", cfg.Storage.Backend))
	}
	if cfg.Storage.Backend == StoragePostgres && cfg.Storage.PostgresDSN == "" {
		errs = append(errs, errors.New("storage.postgres_dsn is required when backend is postgres"))
	}
	if cfg.Storage.Backend == StorageMemory {
		slog.Warn("storage.backend is memory; favourites will not survive a restart")
	}
	if cfg.Storage.Backend != StoragePostgres && cfg.Storage.PostgresDSN != "" {
		slog.Warn("storage.postgres_dsn is set but ignored", "backend", cfg.Storage.Backend)
	}
	if cfg.Storage.StoreID != "" && filepath.Base(cfg.Storage.StoreID) != cfg.Storage.StoreID {
		errs = append(errs, fmt.Errorf("storage.store_id %q must not contain path separators", cfg.Storage.StoreID))
	}

	// Display
	if cfg.Display.Orientation != "" && !cfg.Display.Orientation.IsValid() {
		errs = append(errs, fmt.Errorf("display.orientation %q is invalid; valid values: horizontal, vertical", cfg.Display.Orientation))
	}

	return errors.Join(errs...)
}
