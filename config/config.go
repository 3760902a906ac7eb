// Package config provides environment-driven configuration loading for the
// forge build engine: a generic env-var helper (mirroring the teacher's
// EnvConfig), the server config surface forge's HTTP mode still needs, and
// the cache eviction config that governs the Target and Action caches.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"forge.evalgo.org/cache/eviction"
)

// EnvConfig provides utilities for loading configuration from environment variables
type EnvConfig struct {
	prefix string // Optional prefix for all environment variables
}

// NewEnvConfig creates a new environment configuration loader
func NewEnvConfig(prefix string) *EnvConfig {
	return &EnvConfig{
		prefix: prefix,
	}
}

// GetString retrieves a string value from environment with optional default
func (ec *EnvConfig) GetString(key, defaultValue string) string {
	fullKey := ec.buildKey(key)
	if value := os.Getenv(fullKey); value != "" {
		return value
	}
	return defaultValue
}

// MustGetString retrieves a required string value from environment or panics
func (ec *EnvConfig) MustGetString(key string) string {
	fullKey := ec.buildKey(key)
	value := os.Getenv(fullKey)
	if value == "" {
		panic(fmt.Sprintf("required environment variable %s not set", fullKey))
	}
	return value
}

// GetInt retrieves an integer value from environment with optional default
func (ec *EnvConfig) GetInt(key string, defaultValue int) int {
	fullKey := ec.buildKey(key)
	if value := os.Getenv(fullKey); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetInt64 retrieves a 64-bit integer value from environment with optional default
func (ec *EnvConfig) GetInt64(key string, defaultValue int64) int64 {
	fullKey := ec.buildKey(key)
	if value := os.Getenv(fullKey); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// MustGetInt retrieves a required integer value from environment or panics
func (ec *EnvConfig) MustGetInt(key string) int {
	fullKey := ec.buildKey(key)
	value := os.Getenv(fullKey)
	if value == "" {
		panic(fmt.Sprintf("required environment variable %s not set", fullKey))
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		panic(fmt.Sprintf("environment variable %s is not a valid integer: %v", fullKey, err))
	}
	return intValue
}

// GetBool retrieves a boolean value from environment with optional default
func (ec *EnvConfig) GetBool(key string, defaultValue bool) bool {
	fullKey := ec.buildKey(key)
	if value := os.Getenv(fullKey); value != "" {
		boolValue, err := strconv.ParseBool(value)
		if err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// GetDuration retrieves a duration value from environment with optional default
func (ec *EnvConfig) GetDuration(key string, defaultValue time.Duration) time.Duration {
	fullKey := ec.buildKey(key)
	if value := os.Getenv(fullKey); value != "" {
		duration, err := time.ParseDuration(value)
		if err == nil {
			return duration
		}
	}
	return defaultValue
}

// GetStringSlice retrieves a comma-separated string slice from environment
func (ec *EnvConfig) GetStringSlice(key string, defaultValue []string) []string {
	fullKey := ec.buildKey(key)
	if value := os.Getenv(fullKey); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return defaultValue
}

// buildKey builds the full environment variable key with optional prefix
func (ec *EnvConfig) buildKey(key string) string {
	if ec.prefix != "" {
		return ec.prefix + "_" + key
	}
	return key
}

// ServerConfig contains forge's HTTP-mode server configuration (the
// "forge serve" subcommand).
type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	Debug           bool
}

// LoadServerConfig loads server configuration from environment
func LoadServerConfig(prefix string) ServerConfig {
	env := NewEnvConfig(prefix)
	return ServerConfig{
		Port:            env.GetInt("PORT", 8080),
		Host:            env.GetString("HOST", "0.0.0.0"),
		ReadTimeout:     env.GetDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:    env.GetDuration("WRITE_TIMEOUT", 30*time.Second),
		ShutdownTimeout: env.GetDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		Debug:           env.GetBool("DEBUG", false),
	}
}

// CacheConfig holds the eviction limits for the Target Cache and Action
// Cache. A zero field disables that bound, matching eviction.Params's own
// zero-value-means-unbounded convention.
type CacheConfig struct {
	TargetMaxEntries int
	TargetMaxSize    int64
	TargetMaxAge     time.Duration

	ActionMaxEntries int
	ActionMaxSize    int64
	ActionMaxAge     time.Duration
}

// LoadCacheConfig loads cache eviction configuration from environment,
// defaulting to unbounded caches so an unconfigured workspace behaves the
// way it always has.
func LoadCacheConfig(prefix string) CacheConfig {
	env := NewEnvConfig(prefix)
	return CacheConfig{
		TargetMaxEntries: env.GetInt("TARGET_CACHE_MAX_ENTRIES", 0),
		TargetMaxSize:    env.GetInt64("TARGET_CACHE_MAX_SIZE_BYTES", 0),
		TargetMaxAge:     env.GetDuration("TARGET_CACHE_MAX_AGE", 0),

		ActionMaxEntries: env.GetInt("ACTION_CACHE_MAX_ENTRIES", 0),
		ActionMaxSize:    env.GetInt64("ACTION_CACHE_MAX_SIZE_BYTES", 0),
		ActionMaxAge:     env.GetDuration("ACTION_CACHE_MAX_AGE", 0),
	}
}

// TargetParams converts the target-cache half of CacheConfig into the
// eviction.Params the Target Cache's policy expects.
func (c CacheConfig) TargetParams() eviction.Params {
	return eviction.Params{MaxEntries: c.TargetMaxEntries, MaxSize: c.TargetMaxSize, MaxAge: c.TargetMaxAge}
}

// ActionParams converts the action-cache half of CacheConfig into the
// eviction.Params the Action Cache's policy expects.
func (c CacheConfig) ActionParams() eviction.Params {
	return eviction.Params{MaxEntries: c.ActionMaxEntries, MaxSize: c.ActionMaxSize, MaxAge: c.ActionMaxAge}
}
