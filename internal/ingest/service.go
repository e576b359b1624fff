// Bannerscope - Banner Release Prediction and Community Sentiment Dashboard
// Copyright 2026 Aya N. (ayaneru)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayaneru/bannerscope

package ingest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/ayaneru/bannerscope/internal/metrics"
	"github.com/ayaneru/bannerscope/internal/prediction"
)

// Snapshot is one published ingestion result. The record slice is never
// mutated after publication; readers share it without copying.
type Snapshot struct {
	Records   []prediction.BannerRecord
	Estimate  *prediction.OffsetEstimate
	UpdatedAt time.Time
	LastError string
}

// Service runs the ingestion cycle: fetch the schedule, run the offset
// prediction engine, publish the snapshot. It implements suture.Service
// via Serve.
//
// A failed cycle keeps the previous snapshot and records the error; the
// dashboard keeps serving the last good data.
type Service struct {
	provider Provider
	engine   *prediction.Engine
	clock    clockwork.Clock
	interval time.Duration
	logger   zerolog.Logger

	mu       sync.RWMutex
	snapshot Snapshot
}

// NewService wires an ingestion service.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewService(provider Provider, engine *prediction.Engine, clock clockwork.Clock, interval time.Duration, logger zerolog.Logger) *Service {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Service{
		provider: provider,
		engine:   engine,
		clock:    clock,
		interval: interval,
		logger:   logger.With().Str("component", "ingest").Logger(),
	}
}

// Serve runs one immediate cycle and then repeats on the configured
// interval until ctx is cancelled. The scheduler uses wall-clock time;
// tests drive RunCycle directly instead.
func (s *Service) Serve(ctx context.Context) error {
	s.RunCycle(ctx)

	scheduler := gocron.NewScheduler(time.UTC)
	_, err := scheduler.Every(s.interval).Do(func() {
		s.RunCycle(ctx)
	})
	if err != nil {
		return fmt.Errorf("schedule ingest cycle: %w", err)
	}

	scheduler.StartAsync()
	<-ctx.Done()
	scheduler.Stop()
	return ctx.Err()
}

// RunCycle executes one fetch-predict-publish cycle.
func (s *Service) RunCycle(ctx context.Context) {
	start := s.clock.Now()

	records, err := s.provider.Fetch(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Banner schedule fetch failed, keeping previous snapshot")
		metrics.RecordIngestCycle("failure", s.clock.Since(start))
		s.recordError(err)
		return
	}

	previous := s.Current().Estimate
	predicted, estimate := s.engine.Predict(records, previous)

	s.mu.Lock()
	s.snapshot = Snapshot{
		Records:   predicted,
		Estimate:  estimate,
		UpdatedAt: s.clock.Now(),
	}
	s.mu.Unlock()

	if estimate != nil {
		metrics.SetOffsetEstimate(estimate.Days(), estimate.SampleSize)
	}
	metrics.RecordIngestCycle("success", s.clock.Since(start))

	s.logger.Info().
		Int("records", len(predicted)).
		Bool("has_estimate", estimate != nil).
		Msg("Banner ingestion cycle complete")
}

// Current returns the latest published snapshot.
func (s *Service) Current() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// Search returns records whose character ID or date (YYYY-MM-DD)
// contains the query, case-insensitively. An empty query returns
// everything.
func (s *Service) Search(query string) []prediction.BannerRecord {
	snap := s.Current()
	if query == "" {
		return snap.Records
	}

	query = strings.ToLower(query)
	var out []prediction.BannerRecord
	for _, r := range snap.Records {
		if strings.Contains(strings.ToLower(r.CharacterID), query) {
			out = append(out, r)
			continue
		}
		if d := r.Date(); d != nil && strings.Contains(d.Format(dateLayout), query) {
			out = append(out, r)
		}
	}
	return out
}

// Characters returns the sorted unique character IDs in the current
// snapshot.
func (s *Service) Characters() []string {
	snap := s.Current()
	seen := make(map[string]struct{}, len(snap.Records))
	var out []string
	for _, r := range snap.Records {
		if _, ok := seen[r.CharacterID]; ok {
			continue
		}
		seen[r.CharacterID] = struct{}{}
		out = append(out, r.CharacterID)
	}
	sort.Strings(out)
	return out
}

// KnownCharacter reports whether characterID appears in the current
// snapshot.
func (s *Service) KnownCharacter(characterID string) bool {
	for _, r := range s.Current().Records {
		if r.CharacterID == characterID {
			return true
		}
	}
	return false
}

// recordError notes a failed cycle on the snapshot without touching the
// published records or estimate.
func (s *Service) recordError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.LastError = err.Error()
}

// String identifies the service in supervisor logs.
func (s *Service) String() string {
	return "banner-ingest"
}
