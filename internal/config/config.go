/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.

type EditorConfig struct {
	AutosaveDelayMs int    `yaml:"autosave_delay_ms"`
	MaxHistory      int    `yaml:"max_history"`
	MaxHistoryBytes int    `yaml:"max_history_bytes"`
	StorageKey      string `yaml:"storage_key"`
}

type StorageConfig struct {
	Backend     string `yaml:"backend"` // "file" | "sqlite" | "memory"
	Dir         string `yaml:"dir"`
	KeepBackups int    `yaml:"keep_backups"`
}

type RemoteConfig struct {
	// DSN may be left empty here and kept in the OS keychain instead.
	DSN       string `yaml:"dsn"`
	Table     string `yaml:"table"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	Editor        EditorConfig  `yaml:"editor"`
	Storage       StorageConfig `yaml:"storage"`
	Remote        RemoteConfig  `yaml:"remote"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Editor:        EditorConfig{AutosaveDelayMs: 500, MaxHistory: 50, MaxHistoryBytes: 32 * 1024 * 1024, StorageKey: "goslides_document"},
		Storage:       StorageConfig{Backend: "file", Dir: "", KeepBackups: 10},
		Remote:        RemoteConfig{Table: "slides", TimeoutMs: 10000},
		Logging:       LoggingConfig{Level: "info", Format: "console", Source: false, File: ""},
	}
}

// Env var names used as overrides.
const (
	EnvAutosaveDelayMs = "GSL_AUTOSAVE_DELAY_MS"
	EnvMaxHistory      = "GSL_MAX_HISTORY"
	EnvStorageKey      = "GSL_STORAGE_KEY"
	EnvStorageBackend  = "GSL_STORAGE_BACKEND"
	EnvStorageDir      = "GSL_STORAGE_DIR"
	EnvRemoteDSN       = "GSL_PG_DSN"
	EnvRemoteTable     = "GSL_REMOTE_TABLE"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "GSL_LOG_LEVEL"
	EnvLogFormat = "GSL_LOG_FORMAT"
	EnvLogSource = "GSL_LOG_SOURCE"
	EnvLogFile   = "GSL_LOG_FILE"
)

// Service/keys for OS keyring.
const (
	keyringService   = "GoSlides"
	keyringRemoteDSN = "remote_dsn"
)

// tokenStore abstracts keyring, so we can stub in tests.
var tokenStore TokenStore = osKeyring{}

type TokenStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

// osKeyring implements TokenStore using the OS keyring via github.com/zalando/go-keyring.
type osKeyring struct{}

func (osKeyring) Get(service, key string) (string, error) { return keyring.Get(service, key) }
func (osKeyring) Set(service, key, value string) error    { return keyring.Set(service, key, value) }
func (osKeyring) Delete(service, key string) error        { return keyring.Delete(service, key) }

// configBase returns the per-user application directory for the given kind
// ("config" or "data").
func configBase(kind string) (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "GoSlides")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "GoSlides")
	default:
		if kind == "data" {
			if x := os.Getenv("XDG_DATA_HOME"); x != "" {
				return filepath.Join(x, "goslides"), nil
			}
			base = filepath.Join(os.Getenv("HOME"), ".local", "share", "goslides")
		} else {
			base = filepath.Join(os.Getenv("HOME"), ".config", "goslides")
		}
	}
	if base == "" || base == "goslides" {
		return "", errors.New("cannot resolve user directory")
	}
	return base, nil
}

// ConfigPath returns the per-user config file path.
// GSL_CONFIG points to an explicit file instead.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv("GSL_CONFIG")); p != "" {
		return p, nil
	}
	base, err := configBase("config")
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "config.yaml"), nil
}

// DataDir returns the directory used by the file and sqlite storage backends.
func (c AppConfig) DataDir() (string, error) {
	if d := strings.TrimSpace(c.Storage.Dir); d != "" {
		return d, nil
	}
	return configBase("data")
}

// AutosaveDelay converts the configured debounce window.
func (e EditorConfig) AutosaveDelay() time.Duration {
	if e.AutosaveDelayMs <= 0 {
		return time.Duration(Defaults().Editor.AutosaveDelayMs) * time.Millisecond
	}
	return time.Duration(e.AutosaveDelayMs) * time.Millisecond
}

// Timeout returns the remote query timeout.
func (r RemoteConfig) Timeout() time.Duration {
	if r.TimeoutMs <= 0 {
		return time.Duration(Defaults().Remote.TimeoutMs) * time.Millisecond
	}
	return time.Duration(r.TimeoutMs) * time.Millisecond
}

// Load reads user config file (if present), applies defaults, and merges environment overrides.
// When no DSN is configured, the remote DSN is read from the keyring.
func Load() (AppConfig, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, err
	}
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err == nil {
			mergeInto(&cfg, &fileCfg)
		}
	}
	applyEnvOverrides(&cfg)
	if cfg.Remote.DSN == "" {
		if dsn, err := tokenStore.Get(keyringService, keyringRemoteDSN); err == nil {
			cfg.Remote.DSN = dsn
		}
	}
	return cfg, nil
}

// Save writes the user config YAML. A non-empty secretDSN is stored in the OS
// keyring and never written to the YAML file.
func Save(cfg AppConfig, secretDSN string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if secretDSN != "" && cfg.Remote.DSN == secretDSN {
		cfg.Remote.DSN = ""
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if secretDSN != "" {
		if err := tokenStore.Set(keyringService, keyringRemoteDSN, secretDSN); err != nil {
			return err
		}
	}
	return nil
}

// ForgetRemoteDSN removes the keyring entry; a missing entry is not an error.
func ForgetRemoteDSN() error {
	if err := tokenStore.Delete(keyringService, keyringRemoteDSN); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return err
	}
	return nil
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if src.Editor.AutosaveDelayMs > 0 {
		dst.Editor.AutosaveDelayMs = src.Editor.AutosaveDelayMs
	}
	if src.Editor.MaxHistory > 0 {
		dst.Editor.MaxHistory = src.Editor.MaxHistory
	}
	if src.Editor.MaxHistoryBytes > 0 {
		dst.Editor.MaxHistoryBytes = src.Editor.MaxHistoryBytes
	}
	if s := strings.TrimSpace(src.Editor.StorageKey); s != "" {
		dst.Editor.StorageKey = s
	}
	if s := strings.ToLower(strings.TrimSpace(src.Storage.Backend)); s != "" {
		dst.Storage.Backend = s
	}
	if s := strings.TrimSpace(src.Storage.Dir); s != "" {
		dst.Storage.Dir = s
	}
	if src.Storage.KeepBackups > 0 {
		dst.Storage.KeepBackups = src.Storage.KeepBackups
	}
	if s := strings.TrimSpace(src.Remote.DSN); s != "" {
		dst.Remote.DSN = s
	}
	if s := strings.TrimSpace(src.Remote.Table); s != "" {
		dst.Remote.Table = s
	}
	if src.Remote.TimeoutMs > 0 {
		dst.Remote.TimeoutMs = src.Remote.TimeoutMs
	}
	// logging
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

func envBool(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvAutosaveDelayMs)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Editor.AutosaveDelayMs = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvMaxHistory)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Editor.MaxHistory = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvStorageKey)); v != "" {
		cfg.Editor.StorageKey = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvStorageBackend)); v != "" {
		cfg.Storage.Backend = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvStorageDir)); v != "" {
		cfg.Storage.Dir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvRemoteDSN)); v != "" {
		cfg.Remote.DSN = v
	} else if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		cfg.Remote.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvRemoteTable)); v != "" {
		cfg.Remote.Table = v
	}
	// logging overrides
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = envBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	names := map[string]string{
		"editor.autosave_delay_ms": EnvAutosaveDelayMs,
		"editor.max_history":       EnvMaxHistory,
		"editor.storage_key":       EnvStorageKey,
		"storage.backend":          EnvStorageBackend,
		"storage.dir":              EnvStorageDir,
		"remote.dsn":               EnvRemoteDSN,
		"remote.table":             EnvRemoteTable,
		"logging.level":            EnvLogLevel,
		"logging.format":           EnvLogFormat,
		"logging.source":           EnvLogSource,
		"logging.file":             EnvLogFile,
	}
	env, ok := names[key]
	if !ok || os.Getenv(env) == "" {
		return "", false
	}
	return env, true
}
