// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	// Default settings
	Defaults struct {
		Format      string `yaml:"format"`
		Rules       string `yaml:"rules"`
		NoColor     bool   `yaml:"no_color"`
		Fill        string `yaml:"fill"`
		Normalize   bool   `yaml:"normalize"`
		RRNChecksum bool   `yaml:"rrn_checksum"`
		ShowMatch   bool   `yaml:"show_match"`
	} `yaml:"defaults"`

	// Per-stage deadlines applied by the scan orchestrator. Zero disables
	// the deadline for that stage.
	Timeouts struct {
		Extract time.Duration `yaml:"extract"`
		Match   time.Duration `yaml:"match"`
		Detect  time.Duration `yaml:"detect"`
		Redact  time.Duration `yaml:"redact"`
	} `yaml:"timeouts"`

	Limits struct {
		MaxDocumentBytes int64 `yaml:"max_document_bytes"`
		MaxPages         int   `yaml:"max_pages"`
	} `yaml:"limits"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Observability struct {
		Level string `yaml:"level"`
	} `yaml:"observability"`

	Server struct {
		Addr           string        `yaml:"addr"`
		ReadTimeout    time.Duration `yaml:"read_timeout"`
		WriteTimeout   time.Duration `yaml:"write_timeout"`
		IdleTimeout    time.Duration `yaml:"idle_timeout"`
		RateLimitRPS   float64       `yaml:"rate_limit_rps"`
		RateLimitBurst int           `yaml:"rate_limit_burst"`
		AllowedOrigins []string      `yaml:"allowed_origins"`
	} `yaml:"server"`

	Cache struct {
		Backend  string        `yaml:"backend"`
		RedisURL string        `yaml:"redis_url"`
		TTL      time.Duration `yaml:"ttl"`
	} `yaml:"cache"`

	Suppressions struct {
		File string `yaml:"file"`
	} `yaml:"suppressions"`

	// Profiles for different scanning scenarios
	Profiles map[string]Profile `yaml:"profiles"`
}

// Profile overrides a subset of the defaults for a named scanning scenario.
type Profile struct {
	Format      string `yaml:"format"`
	Rules       string `yaml:"rules"`
	Fill        string `yaml:"fill"`
	RRNChecksum bool   `yaml:"rrn_checksum"`
	Description string `yaml:"description"`
}

// Cache backends.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

var (
	validFormats       = []string{"text", "json", "yaml", "csv", "junit", "sarif"}
	validFills         = []string{"black", "white"}
	validLogLevels     = []string{"debug", "info", "warn", "error"}
	validLogFormats    = []string{"json", "console"}
	validObserverLevel = []string{"off", "metrics", "debug"}
	validCacheBackends = []string{CacheNone, CacheMemory, CacheRedis}
)

// LoadConfig loads configuration from the specified file path
func LoadConfig(configPath string) (*Config, error) {
	config := defaultConfig()

	// If no config file specified, return default config
	if configPath == "" {
		return config, nil
	}

	cleanPath := filepath.Clean(configPath)
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Store default values before unmarshaling
	defaultNormalize := config.Defaults.Normalize

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	// Restore defaults if not explicitly set in config file
	if !containsField(data, "defaults", "normalize") {
		config.Defaults.Normalize = defaultNormalize
	}
	if config.Profiles == nil {
		config.Profiles = make(map[string]Profile)
	}

	if err := ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func defaultConfig() *Config {
	config := &Config{
		Profiles: make(map[string]Profile),
	}

	config.Defaults.Format = "text"
	config.Defaults.Rules = "all"
	config.Defaults.NoColor = false
	config.Defaults.Fill = "black"
	config.Defaults.Normalize = true
	config.Defaults.RRNChecksum = false

	config.Timeouts.Extract = 60 * time.Second
	config.Timeouts.Match = 10 * time.Second
	config.Timeouts.Detect = 60 * time.Second
	config.Timeouts.Redact = 60 * time.Second

	config.Limits.MaxDocumentBytes = 50 << 20
	config.Limits.MaxPages = 0

	config.Logging.Level = "info"
	config.Logging.Format = "json"
	config.Observability.Level = "metrics"

	config.Server.Addr = ":8000"
	config.Server.ReadTimeout = 30 * time.Second
	config.Server.WriteTimeout = 120 * time.Second
	config.Server.IdleTimeout = 120 * time.Second
	config.Server.RateLimitRPS = 10
	config.Server.RateLimitBurst = 20
	config.Server.AllowedOrigins = []string{"*"}

	config.Cache.Backend = CacheNone
	config.Cache.TTL = 10 * time.Minute

	config.Profiles["strict"] = Profile{
		Format:      "json",
		Rules:       "all",
		Fill:        "black",
		RRNChecksum: true,
		Description: "All rules with resident registration check digits enforced",
	}
	return config
}

// FindConfigFile looks for a configuration file in standard locations
func FindConfigFile() string {
	for _, name := range []string{"blackout.yaml", "blackout.yml", ".blackout.yaml", ".blackout.yml"} {
		if fileExists(name) {
			return name
		}
	}
	return findUserConfigFile()
}

// findUserConfigFile checks the XDG config directory, falling back to
// ~/.config when XDG_CONFIG_HOME is unset.
func findUserConfigFile() string {
	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		xdgConfig = filepath.Join(home, ".config")
	}
	for _, name := range []string{"config.yaml", "config.yml"} {
		candidate := filepath.Join(xdgConfig, "blackout", name)
		if fileExists(candidate) {
			return candidate
		}
	}
	return ""
}

// fileExists checks if a file exists and is not a directory
func fileExists(filename string) bool {
	info, err := os.Stat(filename)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// ListProfiles returns a list of available profile names
func (c *Config) ListProfiles() []string {
	profiles := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		profiles = append(profiles, name)
	}
	return profiles
}

// GetProfile returns a profile by name, or nil if not found
func (c *Config) GetProfile(name string) *Profile {
	if profile, exists := c.Profiles[name]; exists {
		return &profile
	}
	return nil
}

// ApplyProfile copies the non-empty settings of the named profile over the
// defaults.
func (c *Config) ApplyProfile(name string) error {
	profile := c.GetProfile(name)
	if profile == nil {
		return fmt.Errorf("profile %q not found", name)
	}
	if profile.Format != "" {
		c.Defaults.Format = profile.Format
	}
	if profile.Rules != "" {
		c.Defaults.Rules = profile.Rules
	}
	if profile.Fill != "" {
		c.Defaults.Fill = profile.Fill
	}
	if profile.RRNChecksum {
		c.Defaults.RRNChecksum = true
	}
	return ValidateConfig(c)
}

// RuleList splits the comma separated rules setting. "all" and the empty
// string both yield nil, meaning every built-in rule.
func (c *Config) RuleList() []string {
	return SplitList(c.Defaults.Rules)
}

// SplitList splits a comma separated list, dropping blanks. "all" yields nil.
func SplitList(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "all") {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// containsField checks if a nested field exists in the YAML data
func containsField(data []byte, path ...string) bool {
	var yamlData map[string]interface{}
	err := yaml.Unmarshal(data, &yamlData)
	if err != nil {
		return false
	}

	current := yamlData
	for i, key := range path {
		if i == len(path)-1 {
			_, exists := current[key]
			return exists
		}
		if next, ok := current[key].(map[string]interface{}); ok {
			current = next
		} else {
			return false
		}
	}
	return false
}

// ValidateConfig checks enumerated settings and numeric limits.
func ValidateConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("configuration cannot be nil")
	}

	if err := oneOf("defaults.format", config.Defaults.Format, validFormats); err != nil {
		return err
	}
	if err := oneOf("defaults.fill", config.Defaults.Fill, validFills); err != nil {
		return err
	}
	if err := oneOf("logging.level", config.Logging.Level, validLogLevels); err != nil {
		return err
	}
	if err := oneOf("logging.format", config.Logging.Format, validLogFormats); err != nil {
		return err
	}
	if err := oneOf("observability.level", config.Observability.Level, validObserverLevel); err != nil {
		return err
	}
	if err := oneOf("cache.backend", config.Cache.Backend, validCacheBackends); err != nil {
		return err
	}
	if config.Cache.Backend == CacheRedis && config.Cache.RedisURL == "" {
		return fmt.Errorf("cache.redis_url is required when cache.backend is redis")
	}

	for name, d := range map[string]time.Duration{
		"timeouts.extract":     config.Timeouts.Extract,
		"timeouts.match":       config.Timeouts.Match,
		"timeouts.detect":      config.Timeouts.Detect,
		"timeouts.redact":      config.Timeouts.Redact,
		"server.read_timeout":  config.Server.ReadTimeout,
		"server.write_timeout": config.Server.WriteTimeout,
		"cache.ttl":            config.Cache.TTL,
	} {
		if d < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	if config.Limits.MaxDocumentBytes < 0 {
		return fmt.Errorf("limits.max_document_bytes must not be negative")
	}
	if config.Limits.MaxPages < 0 {
		return fmt.Errorf("limits.max_pages must not be negative")
	}
	if config.Server.RateLimitRPS < 0 || config.Server.RateLimitBurst < 0 {
		return fmt.Errorf("server rate limits must not be negative")
	}

	for profileName, profile := range config.Profiles {
		if profile.Format != "" {
			if err := oneOf("format", profile.Format, validFormats); err != nil {
				return fmt.Errorf("profile '%s': %w", profileName, err)
			}
		}
		if profile.Fill != "" {
			if err := oneOf("fill", profile.Fill, validFills); err != nil {
				return fmt.Errorf("profile '%s': %w", profileName, err)
			}
		}
	}

	return nil
}

func oneOf(field, value string, allowed []string) error {
	for _, a := range allowed {
		if strings.EqualFold(value, a) {
			return nil
		}
	}
	return fmt.Errorf("invalid %s %q (expected one of %s)", field, value, strings.Join(allowed, ", "))
}

// LoadConfigOrDefault loads configuration from configFile (or searches standard locations
// when configFile is empty). If loading fails, it returns a default configuration.
// This is the shared helper used by both the CLI and the web server.
func LoadConfigOrDefault(configFile string) *Config {
	configPath := configFile
	if configPath == "" {
		configPath = FindConfigFile()
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		cfg, _ = LoadConfig("")
	}
	return cfg
}
