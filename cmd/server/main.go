// Bannerscope - Banner Release Prediction and Community Sentiment Dashboard
// Copyright 2026 Aya N. (ayaneru)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayaneru/bannerscope

// Command server runs the Bannerscope dashboard server: the banner
// schedule ingestion loop, the sentiment refresh coordination layer,
// and the HTTP API, all under one supervision tree.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ayaneru/bannerscope/internal/api"
	"github.com/ayaneru/bannerscope/internal/cache"
	"github.com/ayaneru/bannerscope/internal/config"
	"github.com/ayaneru/bannerscope/internal/coordination"
	"github.com/ayaneru/bannerscope/internal/forum"
	"github.com/ayaneru/bannerscope/internal/ingest"
	"github.com/ayaneru/bannerscope/internal/logging"
	"github.com/ayaneru/bannerscope/internal/prediction"
	"github.com/ayaneru/bannerscope/internal/sentiment"
	"github.com/ayaneru/bannerscope/internal/supervisor"
)

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("Server exited with error")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})
	logger := logging.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := clockwork.NewRealClock()

	store, err := newStore(ctx, cfg, clock)
	if err != nil {
		return fmt.Errorf("initialize cache store: %w", err)
	}
	defer store.Close()

	coordinator := coordination.New(store, clock, coordination.Config{
		StaleAfter:      cfg.Coordination.StaleAfter,
		EntryTTL:        cfg.Cache.EntryTTL,
		LeaseTTL:        cfg.Coordination.LeaseTTL,
		FailureCooldown: cfg.Coordination.FailureCooldown,
		PollInterval:    cfg.Coordination.PollInterval,
	}, logger)

	fetcher := forum.NewClient(forum.Config{
		BaseURL:           cfg.Forum.BaseURL,
		RequestsPerSecond: cfg.Forum.RequestsPerSecond,
		Burst:             cfg.Forum.Burst,
		Timeout:           cfg.Forum.Timeout,
		MaxThreads:        cfg.Forum.MaxThreads,
	}, logger)
	scorer := sentiment.NewLexiconScorer(cfg.Sentiment.PositiveTerms, cfg.Sentiment.NegativeTerms)
	filter := sentiment.NewRelevanceFilter(cfg.Sentiment.AllowTerms, cfg.Sentiment.DenyTerms)
	job := sentiment.NewJob(fetcher, scorer, filter, clock, logger)

	engine := prediction.NewEngine(clock, cfg.Prediction.MinOffsetSamples)
	provider := ingest.NewHTTPProvider(cfg.Ingest.ScheduleURL, cfg.Ingest.Timeout)
	ingestSvc := ingest.NewService(provider, engine, clock, cfg.Ingest.Interval, logger)

	handler := api.NewHandler(coordinator, job, ingestSvc, store, clock,
		cfg.Coordination.StaleAfter, cfg.Cache.Backend)
	router := api.NewRouter(handler, api.RouterConfig{
		CORSOrigins:     cfg.Server.CORSOrigins,
		RateLimitReqs:   cfg.Server.RateLimitReqs,
		RateLimitWindow: cfg.Server.RateLimitWindow,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddIngestService(ingestSvc)
	tree.AddAPIService(supervisor.NewHTTPService(server, cfg.Server.ShutdownTimeout))

	logging.Info().
		Str("addr", server.Addr).
		Str("cache_backend", cfg.Cache.Backend).
		Dur("stale_after", cfg.Coordination.StaleAfter).
		Msg("Starting Bannerscope server")

	treeDone := tree.ServeBackground(ctx)

	var treeErr error
	treeFinished := false
	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received")
	case treeErr = <-treeDone:
		treeFinished = true
		if treeErr != nil && ctx.Err() == nil {
			return fmt.Errorf("supervision tree failed: %w", treeErr)
		}
	}

	// Let in-flight sentiment computations finish so their results land
	// in the shared store; abandoned leases would self-expire anyway.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := coordinator.Shutdown(shutdownCtx); err != nil {
		logging.Warn().Err(err).Msg("Timed out waiting for in-flight computations")
	}

	if !treeFinished {
		<-treeDone
	}
	logging.Info().Msg("Server stopped")
	return nil
}

// newStore selects the cache backend. The memory store is
// single-process; redis shares cache entries and refresh leases across
// replicas.
func newStore(ctx context.Context, cfg *config.Config, clock clockwork.Clock) (cache.Store, error) {
	switch cfg.Cache.Backend {
	case "redis":
		return cache.NewRedisStore(ctx, cache.RedisConfig{
			Addr:      cfg.Cache.Redis.Addr,
			Password:  cfg.Cache.Redis.Password,
			DB:        cfg.Cache.Redis.DB,
			KeyPrefix: cfg.Cache.Redis.KeyPrefix,
		}, clock)
	default:
		return cache.NewMemoryStore(clock), nil
	}
}
