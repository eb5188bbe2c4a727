// Package config holds the runtime settings of the omniauth command.
//
// Settings are layered: built-in defaults, then an optional JSON file,
// then command-line flags and environment variables applied by the caller.
// Later sources take precedence over earlier ones.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds runtime settings for the omniauth CLI.
//
// Fields:
//   - StorePath: JSON file holding the account collection.
//   - BackupDir: directory searched for and written with backup exports.
//   - QRCommand: external QR reader, e.g. "zbarimg --raw -q -". Empty disables scanning.
//   - LogLevel: debug, info, warn or error.
//   - LogFormat: text or json.
type Config struct {
	StorePath string `json:"store_path"`
	BackupDir string `json:"backup_dir"`
	QRCommand string `json:"qr_command"`
	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"`
}

// DefaultStorePath returns accounts.json under the user's config directory.
func DefaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".omniauth", "accounts.json")
	}

	return filepath.Join(dir, "omniauth", "accounts.json")
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.StorePath = DefaultStorePath()
	c.BackupDir = "."
	c.QRCommand = ""
	c.LogLevel = "warn"
	c.LogFormat = "text"
}

// Load applies defaults and overlays the JSON file at path when path is
// not empty. Fields absent from the file keep their defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var fileCfg Config
	if err := json.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.overlay(fileCfg)

	return cfg, nil
}

func (c *Config) overlay(o Config) {
	if o.StorePath != "" {
		c.StorePath = o.StorePath
	}
	if o.BackupDir != "" {
		c.BackupDir = o.BackupDir
	}
	if o.QRCommand != "" {
		c.QRCommand = o.QRCommand
	}
	if o.LogLevel != "" {
		c.LogLevel = o.LogLevel
	}
	if o.LogFormat != "" {
		c.LogFormat = o.LogFormat
	}
}
