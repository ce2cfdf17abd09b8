// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for
// the commshub console.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"golang.org/x/text/language"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete commshub configuration.
type Config struct {
	// API settings for the REST collaborator
	API APIConfig `toml:"api" json:"api"`

	// Hub settings for the push-messaging connection
	Hub HubConfig `toml:"hub" json:"hub"`

	// Auth settings for credential storage
	Auth AuthConfig `toml:"auth" json:"auth"`

	// Locale settings
	Locale LocaleConfig `toml:"locale" json:"locale"`

	// Feature flags
	Features FeatureConfig `toml:"features" json:"features"`

	// App metadata
	App AppConfig `toml:"app" json:"app"`
}

// APIConfig contains the REST collaborator configuration.
type APIConfig struct {
	// BaseURL is the admin API base URL. Required; startup aborts without it.
	BaseURL string `toml:"base_url" json:"base_url"`
	// TimeoutSecs is the per-request timeout in seconds (default: 30)
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
}

// HubConfig contains the push-messaging hub configuration.
type HubConfig struct {
	// URL is the hub endpoint. When empty it is derived from api.base_url
	// by appending /chatHub.
	URL string `toml:"url" json:"url"`
}

// AuthConfig contains credential storage configuration.
type AuthConfig struct {
	// TokenKey is the credential storage key, i.e. the file name under the
	// config directory holding the bearer token (default: "accessToken").
	TokenKey string `toml:"token_key" json:"token_key"`
}

// LocaleConfig contains localization configuration.
type LocaleConfig struct {
	// Default is the default locale tag (default: "en")
	Default string `toml:"default" json:"default"`
	// Supported lists the locale tags the console accepts.
	Supported []string `toml:"supported" json:"supported"`
}

// FeatureConfig contains feature flags.
type FeatureConfig struct {
	// DarkMode enables the dark theme. When unset the terminal background
	// is probed instead.
	DarkMode bool `toml:"dark_mode" json:"dark_mode"`
	// Analytics enables anonymous usage reporting.
	Analytics bool `toml:"analytics" json:"analytics"`
}

// AppConfig contains application metadata.
type AppConfig struct {
	Name    string `toml:"name" json:"name"`
	Version string `toml:"version" json:"version"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		API: APIConfig{
			TimeoutSecs: 30,
		},
		Auth: AuthConfig{
			TokenKey: "accessToken",
		},
		Locale: LocaleConfig{
			Default:   "en",
			Supported: []string{"en"},
		},
		App: AppConfig{
			Name:    "commshub",
			Version: "0.1.0",
		},
	}
}

// fillDefaults fills zero values with defaults after a file load.
func fillDefaults(cfg *Config) {
	def := Default()
	if cfg.API.TimeoutSecs == 0 {
		cfg.API.TimeoutSecs = def.API.TimeoutSecs
	}
	if cfg.Auth.TokenKey == "" {
		cfg.Auth.TokenKey = def.Auth.TokenKey
	}
	if cfg.Locale.Default == "" {
		cfg.Locale.Default = def.Locale.Default
	}
	if len(cfg.Locale.Supported) == 0 {
		cfg.Locale.Supported = def.Locale.Supported
	}
	if cfg.App.Name == "" {
		cfg.App.Name = def.App.Name
	}
	if cfg.App.Version == "" {
		cfg.App.Version = def.App.Version
	}
	if cfg.Hub.URL == "" && cfg.API.BaseURL != "" {
		cfg.Hub.URL = strings.TrimRight(cfg.API.BaseURL, "/") + "/chatHub"
	}
}

// =============================================================================
// FILE LOCATIONS
// =============================================================================

// ConfigDir returns the commshub configuration directory.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".commshub"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last, then the result is validated.
// A missing api.base_url is a validation failure: the console cannot run
// without its collaborator.
func Load() (*Config, error) {
	cfg := Default()

	tomlPath, err := ConfigPathTOML()
	if err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			if err := LoadTOML(cfg, tomlPath); err != nil {
				return nil, fmt.Errorf("failed to load TOML config: %w", err)
			}
			return finishLoad(cfg)
		}
	}

	jsonPath, err := ConfigPathJSON()
	if err == nil {
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			if err := LoadJSON(cfg, jsonPath); err != nil {
				return nil, fmt.Errorf("failed to load JSON config: %w", err)
			}
			return finishLoad(cfg)
		}
	}

	return finishLoad(cfg)
}

func finishLoad(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	fillDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFrom loads configuration from an explicit file path, selecting the
// decoder by extension. Used by the --config flag.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()
	var err error
	if strings.HasSuffix(path, ".json") {
		err = LoadJSON(cfg, path)
	} else {
		err = LoadTOML(cfg, path)
	}
	if err != nil {
		return nil, err
	}
	return finishLoad(cfg)
}

// LoadTOML loads configuration from a TOML file.
func LoadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON loads configuration from a JSON file.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies COMMSHUB_* environment variables over the
// loaded configuration.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("COMMSHUB_API_BASE_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("COMMSHUB_API_TIMEOUT_SECS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			c.API.TimeoutSecs = secs
		}
	}
	if v := os.Getenv("COMMSHUB_HUB_URL"); v != "" {
		c.Hub.URL = v
	}
	if v := os.Getenv("COMMSHUB_TOKEN_KEY"); v != "" {
		c.Auth.TokenKey = v
	}
	if v := os.Getenv("COMMSHUB_LOCALE"); v != "" {
		c.Locale.Default = v
	}
	if v := os.Getenv("COMMSHUB_DARK_MODE"); v != "" {
		c.Features.DarkMode = v == "1" || strings.ToLower(v) == "true"
	}
	if v := os.Getenv("COMMSHUB_ANALYTICS"); v != "" {
		c.Features.Analytics = v == "1" || strings.ToLower(v) == "true"
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError describes a single invalid configuration field.
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

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if c.API.BaseURL == "" {
		errs = append(errs, ValidationError{
			Field:   "api.base_url",
			Message: "required: set api.base_url or COMMSHUB_API_BASE_URL",
		})
	} else if u, err := url.Parse(c.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "api.base_url",
			Message: fmt.Sprintf("invalid URL %q", c.API.BaseURL),
		})
	}

	if c.API.TimeoutSecs <= 0 {
		errs = append(errs, ValidationError{
			Field:   "api.timeout_secs",
			Message: "must be positive",
		})
	}

	if c.Hub.URL != "" {
		if u, err := url.Parse(c.Hub.URL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, ValidationError{
				Field:   "hub.url",
				Message: fmt.Sprintf("invalid URL %q", c.Hub.URL),
			})
		}
	}

	if c.Auth.TokenKey == "" || strings.ContainsAny(c.Auth.TokenKey, `/\`) {
		errs = append(errs, ValidationError{
			Field:   "auth.token_key",
			Message: "must be a non-empty file name without path separators",
		})
	}

	for _, tag := range append([]string{c.Locale.Default}, c.Locale.Supported...) {
		if _, err := language.Parse(tag); err != nil {
			errs = append(errs, ValidationError{
				Field:   "locale",
				Message: fmt.Sprintf("invalid locale tag %q", tag),
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// LOCALE MATCHING
// =============================================================================

// MatchLocale resolves a requested locale tag against the supported set,
// falling back to the configured default when nothing matches.
func (c *Config) MatchLocale(requested string) string {
	supported := make([]language.Tag, 0, len(c.Locale.Supported))
	for _, s := range c.Locale.Supported {
		if tag, err := language.Parse(s); err == nil {
			supported = append(supported, tag)
		}
	}
	if len(supported) == 0 {
		return c.Locale.Default
	}
	matcher := language.NewMatcher(supported)
	want, err := language.Parse(requested)
	if err != nil {
		return c.Locale.Default
	}
	_, idx, conf := matcher.Match(want)
	if conf == language.No {
		return c.Locale.Default
	}
	return c.Locale.Supported[idx]
}

// =============================================================================
// GLOBAL CONFIG
// =============================================================================

var (
	globalConfig     *Config
	globalConfigMu   sync.RWMutex
	globalConfigOnce sync.Once
)

// Global returns the process-wide configuration, loading it on first use.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			cfg = Default()
		}
		globalConfig = cfg
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
// This should only be used in tests to reset state between test runs.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
