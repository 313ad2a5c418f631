// Package config loads the optional workspace configuration file. All
// values have working defaults; the file only exists to override them.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the optional configuration file at the workspace root.
const FileName = "preflight.yaml"

// Config holds the tunable options of the startup pipeline.
type Config struct {
	// Python is the host interpreter used to create the virtual
	// environment. Dependency installs use the venv interpreter once it
	// exists.
	Python string `yaml:"python"`

	// BackupKeep is the number of timestamped backups retained per
	// protected file. Range: 1-100.
	BackupKeep int `yaml:"backup_keep"`

	// LogMaxLines caps the startup log before each run. 0 disables
	// trimming.
	LogMaxLines int `yaml:"log_max_lines"`

	// CommandTimeoutSeconds bounds every subprocess the pipeline
	// spawns. Range: 1-3600.
	CommandTimeoutSeconds int `yaml:"command_timeout_seconds"`

	// SkipDependencies leaves the dependency step out of the pipeline.
	SkipDependencies bool `yaml:"skip_dependencies"`

	// SkipDiagnostics leaves the diagnostics step out of the pipeline.
	SkipDiagnostics bool `yaml:"skip_diagnostics"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Python:                "python3",
		BackupKeep:            5,
		LogMaxLines:           2000,
		CommandTimeoutSeconds: 120,
	}
}

// Load reads the configuration file at the workspace root. A missing
// file yields the defaults; a malformed or out-of-range file is an
// error for the caller to surface.
func Load(root string) (Config, error) {
	return LoadFile(filepath.Join(root, FileName))
}

// LoadFile reads the configuration from an explicit path. A missing
// file yields the defaults.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}

	name := filepath.Base(path)
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", name, err)
	}
	if cfg.Python == "" {
		cfg.Python = Default().Python
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid %s: %w", name, err)
	}
	return cfg, nil
}

// Validate checks the configuration ranges.
func (c Config) Validate() error {
	if c.BackupKeep < 1 || c.BackupKeep > 100 {
		return fmt.Errorf("backup_keep must be between 1 and 100 (got %d)", c.BackupKeep)
	}
	if c.LogMaxLines < 0 {
		return fmt.Errorf("log_max_lines cannot be negative (got %d)", c.LogMaxLines)
	}
	if c.CommandTimeoutSeconds < 1 || c.CommandTimeoutSeconds > 3600 {
		return fmt.Errorf("command_timeout_seconds must be between 1 and 3600 (got %d)",
			c.CommandTimeoutSeconds)
	}
	return nil
}

// CommandTimeout returns the subprocess timeout as a duration.
func (c Config) CommandTimeout() time.Duration {
	return time.Duration(c.CommandTimeoutSeconds) * time.Second
}
