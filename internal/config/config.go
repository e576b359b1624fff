// Bannerscope - Banner Release Prediction and Community Sentiment Dashboard
// Copyright 2026 Aya N. (ayaneru)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayaneru/bannerscope

// Package config defines the Bannerscope configuration model and its
// layered loader. Precedence is environment variables over the YAML
// config file over built-in defaults.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the Bannerscope server.
type Config struct {
	Server       ServerConfig       `koanf:"server"`
	Logging      LoggingConfig      `koanf:"logging"`
	Cache        CacheConfig        `koanf:"cache"`
	Coordination CoordinationConfig `koanf:"coordination"`
	Sentiment    SentimentConfig    `koanf:"sentiment"`
	Prediction   PredictionConfig   `koanf:"prediction"`
	Ingest       IngestConfig       `koanf:"ingest"`
	Forum        ForumConfig        `koanf:"forum"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// LoggingConfig holds the structured logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// CacheConfig selects and configures the cache store backend.
// The memory backend is single-process; redis shares entries and
// refresh leases across replicas.
type CacheConfig struct {
	Backend  string        `koanf:"backend"`
	EntryTTL time.Duration `koanf:"entry_ttl"`
	Redis    RedisConfig   `koanf:"redis"`
}

// RedisConfig holds the redis backend connection settings.
type RedisConfig struct {
	Addr      string `koanf:"addr"`
	Password  string `koanf:"password"`
	DB        int    `koanf:"db"`
	KeyPrefix string `koanf:"key_prefix"`
}

// CoordinationConfig tunes the single-flight refresh behavior.
type CoordinationConfig struct {
	// StaleAfter is how old a cache entry may be before a request
	// triggers a background refresh.
	StaleAfter time.Duration `koanf:"stale_after"`

	// LeaseTTL bounds how long one process may hold a refresh lease.
	// It must exceed the slowest expected computation.
	LeaseTTL time.Duration `koanf:"lease_ttl"`

	// FailureCooldown suppresses refresh attempts after a failed
	// computation.
	FailureCooldown time.Duration `koanf:"failure_cooldown"`

	// PollInterval is the suggested client polling interval returned
	// while a computation is in flight.
	PollInterval time.Duration `koanf:"poll_interval"`
}

// SentimentConfig holds the relevance filter and scorer term lists.
// Empty scorer lists select the built-in lexicons.
type SentimentConfig struct {
	AllowTerms    []string `koanf:"allow_terms"`
	DenyTerms     []string `koanf:"deny_terms"`
	PositiveTerms []string `koanf:"positive_terms"`
	NegativeTerms []string `koanf:"negative_terms"`
}

// PredictionConfig tunes the offset prediction engine.
type PredictionConfig struct {
	// MinOffsetSamples is the minimum number of matched release pairs
	// required before a fresh offset estimate replaces the previous one.
	MinOffsetSamples int `koanf:"min_offset_samples"`
}

// IngestConfig holds the banner schedule ingestion settings.
type IngestConfig struct {
	ScheduleURL string        `koanf:"schedule_url"`
	Interval    time.Duration `koanf:"interval"`
	Timeout     time.Duration `koanf:"timeout"`
}

// ForumConfig holds the discussion forum client settings.
type ForumConfig struct {
	BaseURL           string        `koanf:"base_url"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
	Burst             int           `koanf:"burst"`
	Timeout           time.Duration `koanf:"timeout"`
	MaxThreads        int           `koanf:"max_threads"`
}

// Validate checks the configuration for values that would produce a
// broken server. It is called by the loader after all layers merge.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive")
	}

	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Cache.Redis.Addr == "" {
			return fmt.Errorf("cache.redis.addr is required when cache.backend is redis")
		}
	default:
		return fmt.Errorf("cache.backend must be memory or redis, got %q", c.Cache.Backend)
	}
	if c.Cache.EntryTTL <= 0 {
		return fmt.Errorf("cache.entry_ttl must be positive")
	}

	if c.Coordination.StaleAfter <= 0 {
		return fmt.Errorf("coordination.stale_after must be positive")
	}
	if c.Coordination.LeaseTTL <= 0 {
		return fmt.Errorf("coordination.lease_ttl must be positive")
	}
	if c.Coordination.FailureCooldown <= 0 {
		return fmt.Errorf("coordination.failure_cooldown must be positive")
	}
	if c.Coordination.PollInterval <= 0 {
		return fmt.Errorf("coordination.poll_interval must be positive")
	}
	if c.Cache.EntryTTL <= c.Coordination.StaleAfter {
		return fmt.Errorf("cache.entry_ttl (%s) must exceed coordination.stale_after (%s) or stale entries can never be served",
			c.Cache.EntryTTL, c.Coordination.StaleAfter)
	}

	if c.Prediction.MinOffsetSamples < 1 {
		return fmt.Errorf("prediction.min_offset_samples must be at least 1, got %d", c.Prediction.MinOffsetSamples)
	}

	if c.Ingest.ScheduleURL == "" {
		return fmt.Errorf("ingest.schedule_url is required")
	}
	if c.Ingest.Interval <= 0 {
		return fmt.Errorf("ingest.interval must be positive")
	}

	if c.Forum.BaseURL == "" {
		return fmt.Errorf("forum.base_url is required")
	}
	if c.Forum.RequestsPerSecond <= 0 {
		return fmt.Errorf("forum.requests_per_second must be positive")
	}

	return nil
}
