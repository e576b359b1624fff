// Bannerscope - Banner Release Prediction and Community Sentiment Dashboard
// Copyright 2026 Aya N. (ayaneru)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayaneru/bannerscope

package prediction

import (
	"sort"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultMinSamples is the minimum number of matched pairs required
// before a new offset estimate is trusted.
const DefaultMinSamples = 3

// Engine computes offset estimates and fills predicted dates.
// The clock is injected so the estimate's ComputedAt is testable; it is
// the engine's only non-input dependency and does not affect the
// numerical result.
type Engine struct {
	clock      clockwork.Clock
	minSamples int
}

// NewEngine creates an Engine. minSamples <= 0 selects DefaultMinSamples.
func NewEngine(clock clockwork.Clock, minSamples int) *Engine {
	if minSamples <= 0 {
		minSamples = DefaultMinSamples
	}
	return &Engine{clock: clock, minSamples: minSamples}
}

// Predict aligns the two tracks and projects Global dates.
//
// Matched Asia/Global pairs (same character, same release kind, both with
// concrete dates) produce per-pair deltas; the aggregate is their median,
// which resists outliers from anomalous release events. When fewer than
// minSamples pairs match, the previous estimate is retained unchanged; if
// none exists, no predictions are made (insufficient data beats a wild
// guess).
//
// For every Asia release with no matching Global release, a Global-track
// record with PredictedDate = asiaDate + delta is appended. Characters
// appearing only on Global are left alone: the asymmetry is expected,
// not an error.
//
// The input slice is treated as read-only. Any predicted records in the
// input are discarded and recomputed, which makes Predict idempotent.
func (e *Engine) Predict(records []BannerRecord, prev *OffsetEstimate) ([]BannerRecord, *OffsetEstimate) {
	// Drop prior projections; they are derived data, recomputed below.
	concrete := make([]BannerRecord, 0, len(records))
	for _, r := range records {
		if r.ReleaseDate != nil {
			concrete = append(concrete, r)
		}
	}

	asia, global := partition(concrete)

	deltas := matchedDeltas(asia, global)

	estimate := prev
	if len(deltas) >= e.minSamples {
		estimate = &OffsetEstimate{
			Delta:      medianDuration(deltas),
			SampleSize: len(deltas),
			ComputedAt: e.clock.Now(),
		}
	}

	out := make([]BannerRecord, len(concrete))
	copy(out, concrete)

	if estimate == nil {
		return out, nil
	}

	out = append(out, e.project(asia, global, estimate.Delta)...)
	return out, estimate
}

// partition splits records per track, grouped by banner identity and
// sorted by release date within each group. The date ordering is what
// makes pair matching deterministic when a character has several runs.
func partition(records []BannerRecord) (asia, global map[identity][]BannerRecord) {
	asia = make(map[identity][]BannerRecord)
	global = make(map[identity][]BannerRecord)

	for _, r := range records {
		id := identity{characterID: r.CharacterID, kind: r.Kind}
		switch r.Track {
		case TrackAsia:
			asia[id] = append(asia[id], r)
		case TrackGlobal:
			global[id] = append(global[id], r)
		}
	}

	for _, group := range asia {
		sortByReleaseDate(group)
	}
	for _, group := range global {
		sortByReleaseDate(group)
	}
	return asia, global
}

func sortByReleaseDate(group []BannerRecord) {
	sort.SliceStable(group, func(i, j int) bool {
		return group[i].ReleaseDate.Before(*group[j].ReleaseDate)
	})
}

// matchedDeltas pairs Asia and Global runs of the same identity by
// release-date order and returns the per-pair Global-minus-Asia lags.
func matchedDeltas(asia, global map[identity][]BannerRecord) []time.Duration {
	// Iterate identities in a fixed order so the delta list, and with it
	// any even-count median, is reproducible.
	ids := make([]identity, 0, len(asia))
	for id := range asia {
		if _, ok := global[id]; ok {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].characterID != ids[j].characterID {
			return ids[i].characterID < ids[j].characterID
		}
		return ids[i].kind < ids[j].kind
	})

	var deltas []time.Duration
	for _, id := range ids {
		asiaRuns, globalRuns := asia[id], global[id]
		n := len(asiaRuns)
		if len(globalRuns) < n {
			n = len(globalRuns)
		}
		for i := 0; i < n; i++ {
			deltas = append(deltas, globalRuns[i].ReleaseDate.Sub(*asiaRuns[i].ReleaseDate))
		}
	}
	return deltas
}

// project synthesizes Global-track records for Asia runs that have no
// Global counterpart.
func (e *Engine) project(asia, global map[identity][]BannerRecord, delta time.Duration) []BannerRecord {
	ids := make([]identity, 0, len(asia))
	for id := range asia {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].characterID != ids[j].characterID {
			return ids[i].characterID < ids[j].characterID
		}
		return ids[i].kind < ids[j].kind
	})

	var predicted []BannerRecord
	for _, id := range ids {
		asiaRuns := asia[id]
		matched := len(global[id])
		// Pair matching consumed the earliest runs; everything past the
		// matched prefix has no Global release yet.
		for _, run := range asiaRuns[matched:] {
			date := run.ReleaseDate.Add(delta)
			predicted = append(predicted, BannerRecord{
				CharacterID:   id.characterID,
				Kind:          id.kind,
				Track:         TrackGlobal,
				PredictedDate: &date,
			})
		}
	}
	return predicted
}

// medianDuration returns the median lag. With an even count the two
// middle values are averaged.
func medianDuration(deltas []time.Duration) time.Duration {
	sorted := make([]time.Duration, len(deltas))
	copy(sorted, deltas)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
