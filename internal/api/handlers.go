// Bannerscope - Banner Release Prediction and Community Sentiment Dashboard
// Copyright 2026 Aya N. (ayaneru)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayaneru/bannerscope

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"

	"github.com/ayaneru/bannerscope/internal/cache"
	"github.com/ayaneru/bannerscope/internal/coordination"
	"github.com/ayaneru/bannerscope/internal/ingest"
	"github.com/ayaneru/bannerscope/internal/logging"
	"github.com/ayaneru/bannerscope/internal/models"
	"github.com/ayaneru/bannerscope/internal/sentiment"
)

// Handler implements all API endpoints.
type Handler struct {
	coordinator *coordination.Coordinator
	job         *sentiment.Job
	ingest      *ingest.Service
	store       cache.Store
	clock       clockwork.Clock
	staleAfter  time.Duration
	backend     string
}

// NewHandler wires the endpoint implementations.
func NewHandler(coordinator *coordination.Coordinator, job *sentiment.Job, ingestSvc *ingest.Service, store cache.Store, clock clockwork.Clock, staleAfter time.Duration, backend string) *Handler {
	return &Handler{
		coordinator: coordinator,
		job:         job,
		ingest:      ingestSvc,
		store:       store,
		clock:       clock,
		staleAfter:  staleAfter,
		backend:     backend,
	}
}

// SentimentStatus handles GET /api/v1/sentiment/{characterID}/status.
//
// This is the polling contract: the first request for an absent or
// stale score triggers a background computation and returns
// immediately; clients poll until the status settles on ready or
// failed. Concurrent polls never trigger duplicate computations.
func (h *Handler) SentimentStatus(w http.ResponseWriter, r *http.Request) {
	characterID := chi.URLParam(r, "characterID")
	if characterID == "" {
		writeError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "character ID is required")
		return
	}
	if !h.ingest.KnownCharacter(characterID) {
		writeError(w, r, http.StatusNotFound, ErrCodeNotFound, "unknown character: "+characterID)
		return
	}

	result := h.coordinator.GetOrRefresh(r.Context(), sentiment.CacheKey(characterID), h.job.Bind(characterID))
	writeSuccess(w, r, h.toStatus(r, characterID, result))
}

// SentimentBulk handles GET /api/v1/sentiment.
//
// It reports the cached state of every known character without
// triggering any computation; the per-character polling endpoint is the
// only trigger.
func (h *Handler) SentimentBulk(w http.ResponseWriter, r *http.Request) {
	characters := h.ingest.Characters()

	resp := models.BulkSentiment{
		Characters: make([]models.SentimentStatus, 0, len(characters)),
	}
	for _, id := range characters {
		result := h.coordinator.Peek(r.Context(), sentiment.CacheKey(id))
		status := h.toStatus(r, id, result)
		if result.Status == coordination.StatusComputing || result.Status == coordination.StatusRefreshing {
			resp.Running = true
		}
		resp.Characters = append(resp.Characters, status)
	}

	writeSuccess(w, r, resp)
}

// toStatus converts a coordination result to the wire shape, decoding
// the cached payload when present.
func (h *Handler) toStatus(r *http.Request, characterID string, result coordination.Result) models.SentimentStatus {
	status := models.SentimentStatus{
		CharacterID:  characterID,
		Status:       string(result.Status),
		RetryAfterMS: result.RetryAfter.Milliseconds(),
	}

	if result.Value != nil {
		decoded, err := sentiment.Decode(result.Value)
		if err != nil {
			// A corrupt entry is served as status-only; the next refresh
			// overwrites it.
			logger := logging.Ctx(r.Context())
			logger.Error().Err(err).Str("character", characterID).
				Msg("Corrupt cached sentiment entry")
		} else {
			status.Sentiment = &models.SentimentData{
				CharacterID: decoded.CharacterID,
				Score:       decoded.Score,
				SampleSize:  decoded.SampleSize,
				ComputedAt:  decoded.ComputedAt,
				Stale:       h.clock.Now().Sub(result.ComputedAt) > h.staleAfter,
			}
		}
	}
	return status
}

// Banners handles GET /api/v1/banners. The optional search query
// filters by character ID substring.
func (h *Handler) Banners(w http.ResponseWriter, r *http.Request) {
	snap := h.ingest.Current()
	records := h.ingest.Search(r.URL.Query().Get("search"))

	resp := models.BannerList{
		Banners:   make([]models.Banner, 0, len(records)),
		Estimate:  models.EstimateFromPrediction(snap.Estimate),
		UpdatedAt: snap.UpdatedAt,
		LastError: snap.LastError,
	}
	for _, record := range records {
		resp.Banners = append(resp.Banners, models.BannerFromRecord(record))
	}

	writeSuccess(w, r, resp)
}

// BannersOffset handles GET /api/v1/banners/offset.
func (h *Handler) BannersOffset(w http.ResponseWriter, r *http.Request) {
	estimate := models.EstimateFromPrediction(h.ingest.Current().Estimate)
	if estimate == nil {
		writeError(w, r, http.StatusNotFound, ErrCodeNotFound,
			"no offset estimate available yet: not enough matched release pairs")
		return
	}
	writeSuccess(w, r, estimate)
}

// CacheStatus handles GET /api/v1/cache/status, the admin view over
// every character's cache entry. Read-only: like the bulk endpoint it
// never triggers computations.
func (h *Handler) CacheStatus(w http.ResponseWriter, r *http.Request) {
	characters := h.ingest.Characters()

	resp := models.CacheStatus{
		Backend: h.backend,
		Entries: make([]models.CacheEntryStatus, 0, len(characters)),
	}
	for _, id := range characters {
		key := sentiment.CacheKey(id)
		result := h.coordinator.Peek(r.Context(), key)

		entry := models.CacheEntryStatus{
			Key:         key,
			CharacterID: id,
			Status:      string(result.Status),
		}
		if result.Value != nil {
			computedAt := result.ComputedAt
			entry.ComputedAt = &computedAt
		}
		resp.Entries = append(resp.Entries, entry)
	}

	writeSuccess(w, r, resp)
}

// HealthLive handles GET /api/v1/health/live. Process-up only.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, r, models.HealthStatus{Status: "ok"})
}

// HealthReady handles GET /api/v1/health/ready. Ready means the cache
// store answers and at least one ingestion cycle has published data.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{
		"cache_store": "ok",
		"ingest":      "ok",
	}
	healthy := true

	if err := h.store.Ping(r.Context()); err != nil {
		checks["cache_store"] = err.Error()
		healthy = false
	}
	if h.ingest.Current().UpdatedAt.IsZero() {
		checks["ingest"] = "no completed ingestion cycle yet"
		healthy = false
	}

	if !healthy {
		writeError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable,
			"not ready: cache_store="+checks["cache_store"]+", ingest="+checks["ingest"])
		return
	}
	writeSuccess(w, r, models.HealthStatus{Status: "ok", Checks: checks})
}
