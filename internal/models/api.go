// Bannerscope - Banner Release Prediction and Community Sentiment Dashboard
// Copyright 2026 Aya N. (ayaneru)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayaneru/bannerscope

// Package models holds the wire shapes of the public API. Handlers
// translate internal domain types into these; nothing in here carries
// behavior.
package models

import (
	"time"

	"github.com/ayaneru/bannerscope/internal/prediction"
)

// SentimentData is a completed sentiment score as served to clients.
type SentimentData struct {
	CharacterID string    `json:"character_id"`
	Score       float64   `json:"score"`
	SampleSize  int       `json:"sample_size"`
	ComputedAt  time.Time `json:"computed_at"`

	// Stale marks data older than the staleness window. Stale data is
	// served while a background refresh runs.
	Stale bool `json:"stale,omitempty"`
}

// SentimentStatus is the polling endpoint's response. Status is one of
// unknown, ready, computing, refreshing, failed; Sentiment is present
// whenever any value (fresh or stale) is known.
type SentimentStatus struct {
	CharacterID  string         `json:"character_id"`
	Status       string         `json:"status"`
	RetryAfterMS int64          `json:"retry_after_ms,omitempty"`
	Sentiment    *SentimentData `json:"sentiment,omitempty"`
}

// BulkSentiment is the dashboard's one-shot view over every character.
type BulkSentiment struct {
	Characters []SentimentStatus `json:"characters"`

	// Running reports whether any computation is currently in flight.
	Running bool `json:"running"`
}

// Banner is one banner run, released or projected.
type Banner struct {
	CharacterID   string `json:"character_id"`
	Kind          string `json:"kind"`
	Track         string `json:"track"`
	ReleaseDate   string `json:"release_date,omitempty"`
	PredictedDate string `json:"predicted_date,omitempty"`
}

// OffsetEstimate is the current cross-track lag estimate.
type OffsetEstimate struct {
	Days       float64   `json:"days"`
	SampleSize int       `json:"sample_size"`
	ComputedAt time.Time `json:"computed_at"`
}

// BannerList is the banner catalog response.
type BannerList struct {
	Banners   []Banner        `json:"banners"`
	Estimate  *OffsetEstimate `json:"estimate,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
	LastError string          `json:"last_error,omitempty"`
}

// CacheEntryStatus is one key's state on the admin surface.
type CacheEntryStatus struct {
	Key         string     `json:"key"`
	CharacterID string     `json:"character_id"`
	Status      string     `json:"status"`
	ComputedAt  *time.Time `json:"computed_at,omitempty"`
}

// CacheStatus is the admin cache overview.
type CacheStatus struct {
	Backend string             `json:"backend"`
	Entries []CacheEntryStatus `json:"entries"`
}

// HealthStatus is the health endpoint payload.
type HealthStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// dateLayout formats banner dates on the wire.
const dateLayout = "2006-01-02"

// BannerFromRecord converts a prediction record to its wire shape.
func BannerFromRecord(r prediction.BannerRecord) Banner {
	b := Banner{
		CharacterID: r.CharacterID,
		Kind:        string(r.Kind),
		Track:       string(r.Track),
	}
	if r.ReleaseDate != nil {
		b.ReleaseDate = r.ReleaseDate.Format(dateLayout)
	}
	if r.PredictedDate != nil {
		b.PredictedDate = r.PredictedDate.Format(dateLayout)
	}
	return b
}

// EstimateFromPrediction converts an offset estimate to its wire shape.
// Nil in, nil out.
func EstimateFromPrediction(e *prediction.OffsetEstimate) *OffsetEstimate {
	if e == nil {
		return nil
	}
	return &OffsetEstimate{
		Days:       e.Days(),
		SampleSize: e.SampleSize,
		ComputedAt: e.ComputedAt,
	}
}
