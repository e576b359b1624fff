// Bannerscope - Banner Release Prediction and Community Sentiment Dashboard
// Copyright 2026 Aya N. (ayaneru)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayaneru/bannerscope

package sentiment

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/ayaneru/bannerscope/internal/coordination"
)

// Job is the expensive unit of work registered with the coordinator for
// each character: fetch discussion threads, filter to gameplay-relevant
// content, run the scoring function, produce a Result.
//
// Partial upstream failure is tolerated: the job scores whatever subset
// of threads was fetched, with SampleSize reflecting the reduced input.
// Only an empty subset or a hard fetch failure fails the job.
type Job struct {
	fetcher ThreadFetcher
	scorer  Scorer
	filter  *RelevanceFilter
	clock   clockwork.Clock
	logger  zerolog.Logger
}

// NewJob wires the sentiment computation from its collaborators.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewJob(fetcher ThreadFetcher, scorer Scorer, filter *RelevanceFilter, clock clockwork.Clock, logger zerolog.Logger) *Job {
	return &Job{
		fetcher: fetcher,
		scorer:  scorer,
		filter:  filter,
		clock:   clock,
		logger:  logger.With().Str("component", "sentiment").Logger(),
	}
}

// Compute runs one sentiment computation for characterID.
func (j *Job) Compute(ctx context.Context, characterID string) (Result, error) {
	threads, partial, err := j.fetcher.FetchThreads(ctx, characterID)
	if err != nil {
		return Result{}, fmt.Errorf("fetch threads for %s: %w", characterID, err)
	}
	if partial {
		j.logger.Warn().Str("character", characterID).Int("fetched", len(threads)).
			Msg("Partial thread fetch, scoring on reduced subset")
	}

	relevant := j.filter.Apply(threads)
	if len(relevant) == 0 {
		return Result{}, fmt.Errorf("character %s: %w", characterID, ErrNoDiscussion)
	}

	score, err := j.scorer.Score(relevant)
	if err != nil {
		return Result{}, fmt.Errorf("score threads for %s: %w", characterID, err)
	}

	j.logger.Debug().
		Str("character", characterID).
		Float64("score", score.Value).
		Int("sample_size", score.SampleSize).
		Int("threads", len(relevant)).
		Msg("Sentiment computed")

	return Result{
		CharacterID: characterID,
		Score:       score.Value,
		SampleSize:  score.SampleSize,
		ComputedAt:  j.clock.Now(),
	}, nil
}

// Bind adapts Compute for one character into the coordinator's
// ComputeFunc, serializing the result for the cache store.
func (j *Job) Bind(characterID string) coordination.ComputeFunc {
	return func(ctx context.Context) ([]byte, error) {
		result, err := j.Compute(ctx, characterID)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("encode sentiment result for %s: %w", characterID, err)
		}
		return raw, nil
	}
}

// Decode parses a cached sentiment payload back into a Result.
func Decode(raw []byte) (Result, error) {
	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return Result{}, fmt.Errorf("decode sentiment result: %w", err)
	}
	return result, nil
}
