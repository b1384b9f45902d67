// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Storage backends.
const (
	BackendBadger = "badger"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config holds the application configuration.
type Config struct {
	App      AppConfig
	Logger   LoggerConfig
	Storage  StorageConfig
	Remote   RemoteConfig
	Sync     SyncConfig
	Server   ServerConfig
	Restrict RestrictConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
	// File receives a copy of the log, rotated by size. Empty logs to stdout only.
	File string
}

// StorageConfig holds local store configuration.
type StorageConfig struct {
	DataPath  string // Badger directory, settings key and search index (default: ~/.tagsync)
	Backend   string // badger, redis or memory (default: badger)
	RedisAddr string // host:port, required for the redis backend
}

// RemoteConfig holds remote document API configuration.
type RemoteConfig struct {
	BaseURL string        // API base (default: https://api.github.com)
	Timeout time.Duration // Per request timeout (default: 30s)
	RPS     float64       // Outgoing requests per second (default: 2)
}

// SyncConfig holds background sync configuration.
type SyncConfig struct {
	Debounce    time.Duration // Quiet time after the last edit (default: 5s)
	RetryFailed bool          // Keep failed shards pending (default: false)
	Pull        bool          // Manual syncs apply newer remote records (default: false)
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port         string        // Server port (default: 8080)
	ReadTimeout  time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout time.Duration // HTTP write timeout (default: 60s)
	IdleTimeout  time.Duration // HTTP idle timeout (default: 60s)
	CORSOrigins  []string      // Allowed origins (default: any)
}

// RestrictConfig holds restricted tag configuration.
type RestrictConfig struct {
	// Path is a file with one restricted tag per line. Optional.
	Path string
}

// Overrides are values given on the command line. Empty fields fall through
// to the environment.
type Overrides struct {
	EnvFile        string
	Env            string
	LogLevel       string
	LogFile        string
	DataPath       string
	StorageBackend string
	RedisAddr      string
	RemoteAPIBase  string
	Port           string
	Debounce       string
	Pull           string
	RestrictedPath string
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig(o Overrides) (*Config, error) {
	envFile := o.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(o.Env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(o.LogLevel, "LOG_LEVEL", "info"),
			File:  getConfigValue(o.LogFile, "LOG_FILE", ""),
		},
		Storage: StorageConfig{
			DataPath:  getConfigValue(o.DataPath, "DATA_PATH", ""),
			Backend:   strings.ToLower(getConfigValue(o.StorageBackend, "STORAGE_BACKEND", BackendBadger)),
			RedisAddr: getConfigValue(o.RedisAddr, "REDIS_ADDR", ""),
		},
		Remote: RemoteConfig{
			BaseURL: getConfigValue(o.RemoteAPIBase, "REMOTE_API_BASE", "https://api.github.com"),
		},
		Sync: SyncConfig{
			RetryFailed: getBoolConfigValue("", "SYNC_RETRY_FAILED", false),
			Pull:        getBoolConfigValue(o.Pull, "SYNC_PULL", false),
		},
		Server: ServerConfig{
			Port:        getConfigValue(o.Port, "SERVER_PORT", "8080"),
			CORSOrigins: splitList(getConfigValue("", "CORS_ORIGINS", "")),
		},
		Restrict: RestrictConfig{
			Path: getConfigValue(o.RestrictedPath, "RESTRICTED_TAGS_PATH", ""),
		},
	}

	rps, err := getFloatConfigValue("", "REMOTE_RPS", 2)
	if err != nil {
		return nil, err
	}
	cfg.Remote.RPS = rps

	durations := []struct {
		dst      *time.Duration
		flag     string
		envKey   string
		fallback string
	}{
		{&cfg.Remote.Timeout, "", "REMOTE_TIMEOUT", "30s"},
		{&cfg.Sync.Debounce, o.Debounce, "SYNC_DEBOUNCE", "5s"},
		{&cfg.Server.ReadTimeout, "", "SERVER_READ_TIMEOUT", "15s"},
		{&cfg.Server.WriteTimeout, "", "SERVER_WRITE_TIMEOUT", "60s"},
		{&cfg.Server.IdleTimeout, "", "SERVER_IDLE_TIMEOUT", "60s"},
	}
	for _, d := range durations {
		v, err := getDurationConfigValue(d.flag, d.envKey, d.fallback)
		if err != nil {
			return nil, err
		}
		*d.dst = v
	}

	// Expand and validate paths.
	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}
	if cfg.Restrict.Path != "" {
		expanded, err := expandPath(cfg.Restrict.Path, "")
		if err != nil {
			return nil, fmt.Errorf("invalid restricted tags path: %w", err)
		}
		cfg.Restrict.Path = expanded
	}
	if cfg.Logger.File != "" {
		expanded, err := expandPath(cfg.Logger.File, "")
		if err != nil {
			return nil, fmt.Errorf("invalid log file: %w", err)
		}
		cfg.Logger.File = expanded
	}

	// Validate configuration.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	switch c.Storage.Backend {
	case BackendBadger:
		if c.Storage.DataPath == "" {
			return errors.New("data path cannot be empty after expansion")
		}
	case BackendRedis:
		if c.Storage.RedisAddr == "" {
			return errors.New("REDIS_ADDR is required for the redis backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("invalid storage backend: %s (must be badger, redis, or memory)", c.Storage.Backend)
	}

	if c.Sync.Debounce <= 0 {
		return fmt.Errorf("sync debounce must be positive, got %s", c.Sync.Debounce)
	}
	if c.Remote.RPS <= 0 {
		return fmt.Errorf("remote rps must be positive, got %g", c.Remote.RPS)
	}

	return nil
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return ":" + s.Port
}

// SearchPath returns the search index directory. Non-persistent backends
// keep the index in memory.
func (c *Config) SearchPath() string {
	if c.Storage.Backend != BackendBadger {
		return ""
	}
	return filepath.Join(c.Storage.DataPath, "search")
}

// BadgerPath returns the Badger directory.
func (c *Config) BadgerPath() string {
	return filepath.Join(c.Storage.DataPath, "db")
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	// Expand tilde.
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	// Make absolute if needed.
	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandDataPath expands ~ and makes the path absolute.
func (c *Config) expandDataPath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, ".tagsync")

	expanded, err := expandPath(c.Storage.DataPath, defaultPath)
	if err != nil {
		return err
	}
	c.Storage.DataPath = expanded
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	// Priority 1: Command-line flag.
	if flagValue != "" {
		return flagValue
	}

	// Priority 2: Environment variable.
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}

	// Priority 3: Default value.
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getDurationConfigValue parses a duration from flag, env var, or default.
func getDurationConfigValue(flagValue, envKey, defaultValue string) (time.Duration, error) {
	strValue := getConfigValue(flagValue, envKey, defaultValue)
	d, err := time.ParseDuration(strValue)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, strValue, err)
	}
	return d, nil
}

// getFloatConfigValue parses a float from flag, env var, or default.
func getFloatConfigValue(flagValue, envKey string, defaultValue float64) (float64, error) {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(strValue, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, strValue, err)
	}
	return f, nil
}

// splitList splits a comma separated value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments.
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		// Only set if not already set (env vars take precedence over .env file).
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
