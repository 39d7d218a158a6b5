// Copyright 2025 Canopy Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// getConfigDir returns the config directory path.
// Uses CANOPY_CONFIG_DIR env var if set, otherwise defaults to ~/.canopy.
// This is computed dynamically to support test isolation.
func getConfigDir() string {
	if dir := os.Getenv("CANOPY_CONFIG_DIR"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".canopy")
}

// ConfigDir returns the configuration directory path
func ConfigDir() string {
	return getConfigDir()
}

// DatabasePath returns the default namespace database path.
// Uses CANOPY_DB env var if set, otherwise config_dir/canopy.db.
func DatabasePath() string {
	if p := os.Getenv("CANOPY_DB"); p != "" {
		return p
	}
	return filepath.Join(getConfigDir(), "canopy.db")
}

// SettingsPath returns the settings file path
func SettingsPath() string {
	return filepath.Join(getConfigDir(), "settings.yaml")
}

// LockPath returns the init lock file path
func LockPath() string {
	return filepath.Join(getConfigDir(), "init.lock")
}

// LogPath returns the log file path.
// Uses CANOPY_LOG env var if set, otherwise config_dir/canopy.log.
func LogPath() string {
	if p := os.Getenv("CANOPY_LOG"); p != "" {
		return p
	}
	return filepath.Join(getConfigDir(), "canopy.log")
}

// EnsureConfigDir creates the config directory if it doesn't exist
func EnsureConfigDir() error {
	return os.MkdirAll(getConfigDir(), 0700)
}

// Settings is the persisted configuration from config_dir/settings.yaml.
type Settings struct {
	Logging       string `yaml:"logging"`         // logging level: none, debug, info, trace (case insensitive)
	CacheTTL      string `yaml:"cache-ttl"`       // default: "5m"
	CacheSize     int    `yaml:"cache-size"`      // default: 10000
	RecordAliases *bool  `yaml:"record-aliases"`  // default: true (pointer to detect missing)
	RetryAttempts int    `yaml:"retry-attempts"`  // default: 3
	BusyTimeoutMS int    `yaml:"busy-timeout-ms"` // default: 30000
}

// ApplyDefaults fills zero-value fields with their defaults.
func (s *Settings) ApplyDefaults() {
	if s.CacheTTL == "" {
		s.CacheTTL = "5m"
	}
	if s.CacheSize == 0 {
		s.CacheSize = 10000
	}
	if s.RecordAliases == nil {
		t := true
		s.RecordAliases = &t
	}
	if s.RetryAttempts == 0 {
		s.RetryAttempts = 3
	}
	if s.BusyTimeoutMS == 0 {
		s.BusyTimeoutMS = 30000
	}
}

// LogLevel returns the configured logging level, lower-cased.
func (s *Settings) LogLevel() string {
	return strings.ToLower(s.Logging)
}

// AliasesEnabled returns whether rename/move alias recording is on
// (defaults to true).
func (s *Settings) AliasesEnabled() bool {
	if s.RecordAliases == nil {
		return true
	}
	return *s.RecordAliases
}

// CacheTTLDuration parses the cache-ttl setting, falling back to the
// default on a malformed value.
func (s *Settings) CacheTTLDuration() time.Duration {
	d, err := time.ParseDuration(s.CacheTTL)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// LoadSettings loads settings from config_dir/settings.yaml, then lets
// CANOPY_* env vars override individual fields. A missing file yields
// the defaults.
func LoadSettings() (*Settings, error) {
	return LoadSettingsFromPath(SettingsPath())
}

// LoadSettingsFromPath loads settings from a specific file path.
func LoadSettingsFromPath(path string) (*Settings, error) {
	var s Settings
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}
	s.ApplyDefaults()
	applyEnvOverrides(&s)
	return &s, nil
}

// SaveSettings writes settings back to config_dir/settings.yaml.
func SaveSettings(s *Settings) error {
	if err := EnsureConfigDir(); err != nil {
		return err
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(SettingsPath(), data, 0600)
}

func applyEnvOverrides(s *Settings) {
	if v := os.Getenv("CANOPY_LOG_LEVEL"); v != "" {
		s.Logging = v
	}
	if v := os.Getenv("CANOPY_CACHE_TTL"); v != "" {
		s.CacheTTL = v
	}
	if v := os.Getenv("CANOPY_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			s.CacheSize = n
		}
	}
	if v := os.Getenv("CANOPY_RECORD_ALIASES"); v != "" {
		b := v != "0" && !strings.EqualFold(v, "false")
		s.RecordAliases = &b
	}
	if v := os.Getenv("CANOPY_RETRY_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			s.RetryAttempts = n
		}
	}
	if v := os.Getenv("CANOPY_BUSY_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			s.BusyTimeoutMS = n
		}
	}
}
