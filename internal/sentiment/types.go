// Bannerscope - Banner Release Prediction and Community Sentiment Dashboard
// Copyright 2026 Aya N. (ayaneru)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayaneru/bannerscope

// Package sentiment computes community sentiment scores for banner
// characters from external discussion threads.
//
// The expensive work lives in Job, which is registered with the
// coordination layer so it runs at most once per character per staleness
// window. The fetch and scoring collaborators are interfaces: the fetch
// side is rate-limited and unreliable, the scoring side is an opaque
// model this package never inspects.
package sentiment

import (
	"context"
	"errors"
	"time"
)

// Thread is one discussion thread fetched from the external forum.
type Thread struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	URL      string    `json:"url"`
	Body     string    `json:"body"`
	Comments []Comment `json:"comments"`
}

// Comment is one comment within a thread.
type Comment struct {
	Body string `json:"body"`
}

// ScoreResult is the opaque scoring function's output.
type ScoreResult struct {
	// Value is the bounded sentiment score in [-1, +1].
	Value float64

	// SampleSize is the number of comments that contributed signal.
	SampleSize int
}

// Result is a completed sentiment computation for one character.
// Immutable once created: the next successful job supersedes it by
// writing a new cache entry, never by mutating this one.
type Result struct {
	CharacterID string    `json:"character_id"`
	Score       float64   `json:"score"`
	SampleSize  int       `json:"sample_size"`
	ComputedAt  time.Time `json:"computed_at"`
}

// ThreadFetcher is the discussion-fetch collaborator. The bool return
// reports partial failure: some threads could not be fetched but the
// returned subset is usable. A hard failure (auth denial, rate-limit
// rejection, network down) returns an error instead.
type ThreadFetcher interface {
	FetchThreads(ctx context.Context, characterID string) ([]Thread, bool, error)
}

// Scorer is the opaque scoring collaborator.
type Scorer interface {
	Score(threads []Thread) (ScoreResult, error)
}

// ErrNoDiscussion means no usable threads survived fetching and
// filtering, so there is nothing to score.
var ErrNoDiscussion = errors.New("sentiment: no relevant discussion threads")

// ErrNoSignal means threads existed but no comment carried enough
// polarity to count.
var ErrNoSignal = errors.New("sentiment: no scorable comments")

// CacheKey returns the cache key for a character's sentiment entry.
// The analysis kind is part of the key so future analysis variants
// cannot collide.
func CacheKey(characterID string) string {
	return "sentiment:" + characterID
}
