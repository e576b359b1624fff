// Bannerscope - Banner Release Prediction and Community Sentiment Dashboard
// Copyright 2026 Aya N. (ayaneru)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayaneru/bannerscope

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ayaneru/bannerscope/internal/middleware"
)

// RouterConfig holds the HTTP-level policy applied by the router.
type RouterConfig struct {
	CORSOrigins     []string
	RateLimitReqs   int
	RateLimitWindow time.Duration
}

// NewRouter assembles the full route tree.
//
// Health endpoints get a permissive rate limit so monitoring can poll
// freely; data endpoints share the configured limit. The sentiment
// status endpoint is polled aggressively by dashboards, which is fine:
// polls are cheap cache reads, and the refresh single-flight makes the
// expensive path poll-frequency-independent.
func NewRouter(handler *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		MaxAge:         86400,
	}))

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(httprate.LimitByIP(1000, time.Minute))
		r.Get("/", handler.HealthReady)
		r.Get("/live", handler.HealthLive)
		r.Get("/ready", handler.HealthReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.RateLimitReqs > 0 {
			r.Use(httprate.LimitByIP(cfg.RateLimitReqs, cfg.RateLimitWindow))
		}
		r.Use(middleware.PrometheusMetrics)

		r.Get("/sentiment", handler.SentimentBulk)
		r.Get("/sentiment/{characterID}/status", handler.SentimentStatus)
		r.Get("/banners", handler.Banners)
		r.Get("/banners/offset", handler.BannersOffset)
		r.Get("/cache/status", handler.CacheStatus)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
