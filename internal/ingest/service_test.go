// Bannerscope - Banner Release Prediction and Community Sentiment Dashboard
// Copyright 2026 Aya N. (ayaneru)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayaneru/bannerscope

package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayaneru/bannerscope/internal/prediction"
)

type stubProvider struct {
	records []prediction.BannerRecord
	err     error
}

func (p *stubProvider) Fetch(_ context.Context) ([]prediction.BannerRecord, error) {
	return p.records, p.err
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func record(id string, track prediction.Track, date *time.Time) prediction.BannerRecord {
	return prediction.BannerRecord{
		CharacterID: id,
		Kind:        prediction.KindInitial,
		Track:       track,
		ReleaseDate: date,
	}
}

// pairedRecords yields one matched Asia/Global pair with a 7 day lag
// plus one Asia-only banner awaiting a prediction.
func pairedRecords() []prediction.BannerRecord {
	return []prediction.BannerRecord{
		record("hoshino", prediction.TrackAsia, datePtr(2025, time.January, 1)),
		record("hoshino", prediction.TrackGlobal, datePtr(2025, time.January, 8)),
		record("aru", prediction.TrackAsia, datePtr(2025, time.March, 1)),
	}
}

func newTestService(provider Provider) (*Service, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClock()
	engine := prediction.NewEngine(clock, 1)
	svc := NewService(provider, engine, clock, time.Hour, zerolog.Nop())
	return svc, clock
}

func TestRunCyclePublishesSnapshot(t *testing.T) {
	svc, clock := newTestService(&stubProvider{records: pairedRecords()})

	svc.RunCycle(context.Background())

	snap := svc.Current()
	require.NotNil(t, snap.Estimate)
	assert.InDelta(t, 7.0, snap.Estimate.Days(), 1e-9)
	assert.Equal(t, clock.Now(), snap.UpdatedAt)
	assert.Empty(t, snap.LastError)

	// Original 3 records plus the projected Global run for aru.
	require.Len(t, snap.Records, 4)
}

func TestFailedCycleKeepsPreviousSnapshot(t *testing.T) {
	provider := &stubProvider{records: pairedRecords()}
	svc, _ := newTestService(provider)

	svc.RunCycle(context.Background())
	good := svc.Current()

	provider.err = errors.New("feed down")
	svc.RunCycle(context.Background())

	snap := svc.Current()
	assert.Equal(t, good.Records, snap.Records, "a failed cycle must not clear published data")
	assert.Equal(t, good.Estimate, snap.Estimate)
	assert.Equal(t, "feed down", snap.LastError)

	// Recovery clears the recorded error.
	provider.err = nil
	svc.RunCycle(context.Background())
	assert.Empty(t, svc.Current().LastError)
}

func TestEstimateCarriesAcrossCycles(t *testing.T) {
	provider := &stubProvider{records: pairedRecords()}
	clock := clockwork.NewFakeClock()
	engine := prediction.NewEngine(clock, 1)
	svc := NewService(provider, engine, clock, time.Hour, zerolog.Nop())

	svc.RunCycle(context.Background())
	first := svc.Current().Estimate
	require.NotNil(t, first)

	// Next cycle has no matched pairs at all; the prior estimate is the
	// fallback fed into the engine.
	provider.records = []prediction.BannerRecord{
		record("wakamo", prediction.TrackAsia, datePtr(2025, time.June, 1)),
	}
	svc.RunCycle(context.Background())

	snap := svc.Current()
	require.NotNil(t, snap.Estimate)
	assert.Equal(t, first.Delta, snap.Estimate.Delta)

	predicted := 0
	for _, r := range snap.Records {
		if r.Predicted() {
			predicted++
		}
	}
	assert.Equal(t, 1, predicted, "the carried estimate still powers predictions")
}

func TestSearchFiltersByCharacterID(t *testing.T) {
	svc, _ := newTestService(&stubProvider{records: pairedRecords()})
	svc.RunCycle(context.Background())

	all := svc.Search("")
	assert.Len(t, all, 4)

	hoshino := svc.Search("HOSHI")
	require.Len(t, hoshino, 2)
	for _, r := range hoshino {
		assert.Equal(t, "hoshino", r.CharacterID)
	}

	assert.Empty(t, svc.Search("nonexistent"))

	// Date substrings match too.
	byDate := svc.Search("2025-01-08")
	require.Len(t, byDate, 1)
	assert.Equal(t, prediction.TrackGlobal, byDate[0].Track)
}

func TestEmptySnapshotBeforeFirstCycle(t *testing.T) {
	svc, _ := newTestService(&stubProvider{})

	snap := svc.Current()
	assert.Empty(t, snap.Records)
	assert.Nil(t, snap.Estimate)
	assert.True(t, snap.UpdatedAt.IsZero())
}
