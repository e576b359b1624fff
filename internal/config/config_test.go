// Bannerscope - Banner Release Prediction and Community Sentiment Dashboard
// Copyright 2026 Aya N. (ayaneru)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayaneru/bannerscope

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validConfig returns defaults with the required URLs filled in.
func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Ingest.ScheduleURL = "https://schedule.example.com/banners.json"
	cfg.Forum.BaseURL = "https://forum.example.com"
	return cfg
}

func TestDefaultsAreValidOnceURLsSet(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"unknown backend", func(c *Config) { c.Cache.Backend = "memcached" }, "cache.backend"},
		{"redis without addr", func(c *Config) { c.Cache.Backend = "redis" }, "cache.redis.addr"},
		{"zero stale_after", func(c *Config) { c.Coordination.StaleAfter = 0 }, "stale_after"},
		{"zero lease_ttl", func(c *Config) { c.Coordination.LeaseTTL = 0 }, "lease_ttl"},
		{"zero cooldown", func(c *Config) { c.Coordination.FailureCooldown = 0 }, "failure_cooldown"},
		{"entry ttl below stale_after", func(c *Config) { c.Cache.EntryTTL = time.Hour }, "entry_ttl"},
		{"zero min samples", func(c *Config) { c.Prediction.MinOffsetSamples = 0 }, "min_offset_samples"},
		{"missing schedule url", func(c *Config) { c.Ingest.ScheduleURL = "" }, "schedule_url"},
		{"missing forum url", func(c *Config) { c.Forum.BaseURL = "" }, "forum.base_url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadLayersFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
coordination:
  stale_after: 2h
ingest:
  schedule_url: https://schedule.example.com/banners.json
forum:
  base_url: https://forum.example.com
`), 0o600))

	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port, "file overrides default")
	assert.Equal(t, 2*time.Hour, cfg.Coordination.StaleAfter)
	assert.Equal(t, "memory", cfg.Cache.Backend, "untouched defaults survive")
	assert.Equal(t, 2*time.Second, cfg.Coordination.PollInterval)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
ingest:
  schedule_url: https://schedule.example.com/banners.json
forum:
  base_url: https://forum.example.com
`), 0o600))

	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("BANNERSCOPE_SERVER_PORT", "9999")
	t.Setenv("BANNERSCOPE_CACHE_REDIS_ADDR", "redis.internal:6379")
	t.Setenv("BANNERSCOPE_CACHE_BACKEND", "redis")
	t.Setenv("BANNERSCOPE_SENTIMENT_DENY_TERMS", "fanart, cosplay")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port, "env wins over file")
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, "redis.internal:6379", cfg.Cache.Redis.Addr)
	assert.Equal(t, []string{"fanart", "cosplay"}, cfg.Sentiment.DenyTerms)
}

func TestEnvTransform(t *testing.T) {
	tests := map[string]string{
		"BANNERSCOPE_SERVER_PORT":              "server.port",
		"BANNERSCOPE_LOGGING_LEVEL":            "logging.level",
		"BANNERSCOPE_COORDINATION_LEASE_TTL":   "coordination.lease_ttl",
		"BANNERSCOPE_CACHE_REDIS_KEY_PREFIX":   "cache.redis.key_prefix",
		"BANNERSCOPE_PREDICTION_MIN_OFFSET_SAMPLES": "prediction.min_offset_samples",
	}
	for in, want := range tests {
		assert.Equal(t, want, envTransformFunc(in), in)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
ingest:
  schedule_url: https://schedule.example.com/banners.json
forum:
  base_url: https://forum.example.com
cache:
  backend: memcached
`), 0o600))

	t.Setenv(ConfigPathEnvVar, path)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache.backend")
}
