package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "FEARKEEPER_"

// ValidDrivers lists the storage drivers [Validate] accepts.
var ValidDrivers = []string{DriverMemory, DriverFile, DriverSQLite, DriverPostgres}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
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

// LoadFromReader decodes a YAML config from r, applies environment overrides
// and defaults, and validates the result. An empty document is valid.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with any FEARKEEPER_* environment variables that are
// set. Unset variables leave the YAML value in place.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("config: parse env: %w", err)
	}
	return nil
}

// ApplyDefaults fills zero values with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = DriverFile
	}
	if cfg.Storage.Path == "" {
		switch cfg.Storage.Driver {
		case DriverFile:
			cfg.Storage.Path = DefaultStoragePath
		case DriverSQLite:
			cfg.Storage.Path = DefaultStoragePath + ".db"
		}
	}
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
	switch {
	case !slices.Contains(ValidDrivers, cfg.Storage.Driver):
		errs = append(errs, fmt.Errorf("storage.driver %q is invalid; valid values: %s", cfg.Storage.Driver, strings.Join(ValidDrivers, ", ")))
	case (cfg.Storage.Driver == DriverFile || cfg.Storage.Driver == DriverSQLite) && cfg.Storage.Path == "":
		errs = append(errs, fmt.Errorf("storage.path is required for driver %q", cfg.Storage.Driver))
	case cfg.Storage.Driver == DriverPostgres && cfg.Storage.DSN == "":
		errs = append(errs, errors.New("storage.dsn is required for driver \"postgres\""))
	}

	// Table
	if cfg.Table.PartySize < 0 {
		errs = append(errs, fmt.Errorf("table.party_size %d must not be negative", cfg.Table.PartySize))
	}

	// Content
	for i, f := range cfg.Content.Files {
		if strings.TrimSpace(f) == "" {
			errs = append(errs, fmt.Errorf("content.files[%d] is empty", i))
		}
	}
	for i, f := range cfg.Content.FoundryFiles {
		if strings.TrimSpace(f) == "" {
			errs = append(errs, fmt.Errorf("content.foundry_files[%d] is empty", i))
		}
	}

	return errors.Join(errs...)
}
