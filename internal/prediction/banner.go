// Bannerscope - Banner Release Prediction and Community Sentiment Dashboard
// Copyright 2026 Aya N. (ayaneru)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayaneru/bannerscope

// Package prediction aligns the two release tracks of the banner catalog
// and projects Global release dates from Asia releases.
//
// The engine is a pure computation: same input, same output. It owns no
// shared mutable state and performs no I/O, so it runs synchronously on
// each ingestion cycle without any locking.
package prediction

import (
	"time"
)

// Track identifies one of the regional release pipelines for the same
// content catalog. Asia releases first; Global follows with a lag.
type Track string

const (
	// TrackAsia is the earlier release track.
	TrackAsia Track = "asia"

	// TrackGlobal is the delayed release track.
	TrackGlobal Track = "global"
)

// ReleaseKind distinguishes a banner's first run from its reruns.
// A rerun must never pair with the original run when computing offsets,
// so the kind is part of the banner identity.
type ReleaseKind string

const (
	// KindInitial is a banner's first run.
	KindInitial ReleaseKind = "initial"

	// KindRerun is any later run of the same banner.
	KindRerun ReleaseKind = "rerun"
)

// BannerRecord is one banner on one track.
//
// Invariant: exactly one of ReleaseDate and PredictedDate is set.
// ReleaseDate means the banner ran (or is scheduled) on this track;
// PredictedDate means the engine projected it.
type BannerRecord struct {
	// CharacterID identifies the banner's content. For multi-unit
	// banners this is the canonical sorted unit-set identity produced
	// by ingestion.
	CharacterID string `json:"character_id"`

	// Kind separates first runs from reruns.
	Kind ReleaseKind `json:"kind"`

	// Track is the release pipeline this record belongs to.
	Track Track `json:"track"`

	// ReleaseDate is the concrete release date, when known.
	ReleaseDate *time.Time `json:"release_date,omitempty"`

	// PredictedDate is the engine's projection, for records that have
	// no concrete release.
	PredictedDate *time.Time `json:"predicted_date,omitempty"`
}

// Date returns whichever of ReleaseDate or PredictedDate is set.
func (r BannerRecord) Date() *time.Time {
	if r.ReleaseDate != nil {
		return r.ReleaseDate
	}
	return r.PredictedDate
}

// Predicted reports whether this record carries a projected date.
func (r BannerRecord) Predicted() bool {
	return r.PredictedDate != nil
}

// identity is the pair key used for matching across tracks.
type identity struct {
	characterID string
	kind        ReleaseKind
}

// OffsetEstimate is the aggregate temporal lag between the two tracks.
type OffsetEstimate struct {
	// Delta is the median Global-minus-Asia release lag.
	Delta time.Duration `json:"delta"`

	// SampleSize is how many matched pairs produced Delta.
	SampleSize int `json:"sample_size"`

	// ComputedAt is when this estimate was derived.
	ComputedAt time.Time `json:"computed_at"`
}

// Days returns Delta in fractional days, for display and metrics.
func (e OffsetEstimate) Days() float64 {
	return e.Delta.Hours() / 24
}
