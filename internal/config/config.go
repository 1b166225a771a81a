// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for chatline.
//
// Configuration lives in ~/.chatline/config.toml with sensible defaults and
// CHATLINE_* environment variable overrides, validated on load.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete chatline configuration.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	UI      UIConfig      `toml:"ui"`
	Storage StorageConfig `toml:"storage"`
	Index   IndexConfig   `toml:"index"`
}

// ServerConfig describes the chatbot service endpoint.
type ServerConfig struct {
	// URL is the websocket endpoint (ws:// or wss://).
	URL string `toml:"url"`

	// AuthToken is sent as a bearer token during the handshake when set.
	// Stored encrypted (ENC: prefix) when a passphrase is configured.
	AuthToken string `toml:"auth_token,omitempty"`

	// LinkBase is the http(s) origin relative link targets resolve
	// against. Defaults to the HTTP form of URL.
	LinkBase string `toml:"link_base,omitempty"`
}

// UIConfig holds presentation settings.
type UIConfig struct {
	Theme         string `toml:"theme"` // dark, light
	ShowReasoning bool   `toml:"show_reasoning"`
	// MaxFPS caps streaming re-renders per second.
	MaxFPS int `toml:"max_fps"`
}

// StorageConfig holds transcript persistence settings.
type StorageConfig struct {
	// Dir overrides the default transcripts directory.
	Dir string `toml:"dir,omitempty"`
	// Encrypt enables at-rest encryption of transcript files.
	Encrypt bool `toml:"encrypt"`
}

// IndexConfig holds transcript search settings.
type IndexConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path,omitempty"`
}

// =============================================================================
// DEFAULTS AND PATHS
// =============================================================================

// Default returns the built-in default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			URL: "ws://localhost:9122/chat",
		},
		UI: UIConfig{
			Theme:         "dark",
			ShowReasoning: true,
			MaxFPS:        30,
		},
		Index: IndexConfig{
			Enabled: true,
		},
	}
}

// ConfigDir returns the chatline configuration directory.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".chatline"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// TranscriptsDir returns the directory transcripts are stored in, honoring
// the storage.dir override.
func (c *Config) TranscriptsDir() (string, error) {
	if c.Storage.Dir != "" {
		return c.Storage.Dir, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "transcripts"), nil
}

// IndexPath returns the sqlite index path, honoring the index.path override.
func (c *Config) IndexPath() (string, error) {
	if c.Index.Path != "" {
		return c.Index.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "index.db"), nil
}

// ResolvedLinkBase returns the link base origin, deriving it from the
// server URL when not configured explicitly. Returns "" when no usable
// origin exists; the renderer then placeholders relative links.
func (c *Config) ResolvedLinkBase() string {
	if c.Server.LinkBase != "" {
		return c.Server.LinkBase
	}
	u, err := url.Parse(c.Server.URL)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	default:
		return ""
	}
	u.Path, u.RawQuery = "", ""
	return u.String()
}

// =============================================================================
// LOADING AND SAVING
// =============================================================================

// Load reads the config file, applies environment overrides and validates.
// A missing file is not an error; defaults apply.
func Load() (*Config, error) {
	cfg := Default()

	path, err := ConfigPath()
	if err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			if _, err := toml.DecodeFile(path, cfg); err != nil {
				return nil, fmt.Errorf("failed to load config: %w", err)
			}
		}
	}

	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration with owner-only permissions; the file may
// hold an auth token.
func Save(cfg *Config) error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	path := filepath.Join(dir, "config.toml")
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	fmt.Fprintln(file, "# chatline configuration file")
	fmt.Fprintln(file, "")
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ApplyEnvOverrides applies CHATLINE_* environment variables over the
// loaded values.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("CHATLINE_SERVER_URL"); v != "" {
		c.Server.URL = v
	}
	if v := os.Getenv("CHATLINE_AUTH_TOKEN"); v != "" {
		c.Server.AuthToken = v
	}
	if v := os.Getenv("CHATLINE_LINK_BASE"); v != "" {
		c.Server.LinkBase = v
	}
	if v := os.Getenv("CHATLINE_THEME"); v != "" {
		c.UI.Theme = v
	}
	if v := os.Getenv("CHATLINE_STORAGE_DIR"); v != "" {
		c.Storage.Dir = v
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError describes one invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration and returns every problem found.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if u, err := url.Parse(c.Server.URL); err != nil {
		errs = append(errs, ValidationError{
			Field:   "server.url",
			Message: fmt.Sprintf("not a valid URL: %v", err),
		})
	} else if u.Scheme != "ws" && u.Scheme != "wss" {
		errs = append(errs, ValidationError{
			Field:   "server.url",
			Message: fmt.Sprintf("scheme must be ws or wss, got '%s'", u.Scheme),
		})
	}

	if c.Server.LinkBase != "" {
		if u, err := url.Parse(c.Server.LinkBase); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, ValidationError{
				Field:   "server.link_base",
				Message: "must be an absolute http or https origin",
			})
		}
	}

	switch strings.ToLower(c.UI.Theme) {
	case "dark", "light":
	default:
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be dark or light", c.UI.Theme),
		})
	}

	if c.UI.MaxFPS < 1 || c.UI.MaxFPS > 60 {
		errs = append(errs, ValidationError{
			Field:   "ui.max_fps",
			Message: fmt.Sprintf("must be between 1 and 60, got %d", c.UI.MaxFPS),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
