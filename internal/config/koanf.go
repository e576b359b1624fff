// Bannerscope - Banner Release Prediction and Community Sentiment Dashboard
// Copyright 2026 Aya N. (ayaneru)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayaneru/bannerscope

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order.
// The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/bannerscope/config.yaml",
	"/etc/bannerscope/config.yml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "BANNERSCOPE_CONFIG"

// envPrefix namespaces all environment overrides.
const envPrefix = "BANNERSCOPE_"

// defaultConfig returns the built-in defaults. These are applied first,
// then overridden by the config file and environment variables.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8480,
			Timeout:         30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Cache: CacheConfig{
			Backend:  "memory",
			EntryTTL: 24 * time.Hour,
			Redis: RedisConfig{
				Addr:      "",
				DB:        0,
				KeyPrefix: "bannerscope:",
			},
		},
		Coordination: CoordinationConfig{
			StaleAfter:      4 * time.Hour,
			LeaseTTL:        15 * time.Minute,
			FailureCooldown: 2 * time.Minute,
			PollInterval:    2 * time.Second,
		},
		Sentiment: SentimentConfig{
			AllowTerms: []string{},
			DenyTerms:  []string{},
		},
		Prediction: PredictionConfig{
			MinOffsetSamples: 3,
		},
		Ingest: IngestConfig{
			ScheduleURL: "",
			Interval:    time.Hour,
			Timeout:     30 * time.Second,
		},
		Forum: ForumConfig{
			BaseURL:           "",
			RequestsPerSecond: 1,
			Burst:             3,
			Timeout:           15 * time.Second,
			MaxThreads:        10,
		},
	}
}

// Load builds the configuration from three layers:
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. BANNERSCOPE_* environment variables (highest priority)
func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first config file that exists, checking
// the override env var before the default paths.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths lists config paths parsed as comma-separated slices
// when supplied through environment variables.
var sliceConfigPaths = []string{
	"server.cors_origins",
	"sentiment.allow_terms",
	"sentiment.deny_terms",
	"sentiment.positive_terms",
	"sentiment.negative_terms",
}

// processSliceFields converts comma-separated env strings to slices.
// YAML values arrive as slices already and are left alone.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envTransformFunc maps BANNERSCOPE_* variable names to koanf config
// paths. Section names contain no underscores, so the first underscore
// after the prefix is the section separator:
//
//	BANNERSCOPE_SERVER_PORT             -> server.port
//	BANNERSCOPE_CACHE_BACKEND           -> cache.backend
//	BANNERSCOPE_COORDINATION_LEASE_TTL  -> coordination.lease_ttl
//	BANNERSCOPE_CACHE_REDIS_ADDR        -> cache.redis.addr (explicit)
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))

	// Keys with nested sections need explicit mappings.
	explicit := map[string]string{
		"cache_redis_addr":       "cache.redis.addr",
		"cache_redis_password":   "cache.redis.password",
		"cache_redis_db":         "cache.redis.db",
		"cache_redis_key_prefix": "cache.redis.key_prefix",
	}
	if path, ok := explicit[key]; ok {
		return path
	}

	section, rest, found := strings.Cut(key, "_")
	if !found {
		return section
	}
	return section + "." + rest
}
