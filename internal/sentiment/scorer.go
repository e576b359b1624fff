// Bannerscope - Banner Release Prediction and Community Sentiment Dashboard
// Copyright 2026 Aya N. (ayaneru)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayaneru/bannerscope

package sentiment

import (
	"math"
	"strings"
)

// polarityFloor is the minimum absolute polarity a comment needs to
// count. Near-neutral comments are noise, not signal.
const polarityFloor = 0.1

// LexiconScorer is the default Scorer: per-comment polarity from small
// positive/negative term lexicons, averaged over comments that clear the
// polarity floor. It is intentionally simple; deployments wanting a real
// model plug in their own Scorer.
type LexiconScorer struct {
	positive map[string]struct{}
	negative map[string]struct{}
}

// NewLexiconScorer builds a scorer from the given lexicons. Empty inputs
// select the built-in default lexicons.
func NewLexiconScorer(positive, negative []string) *LexiconScorer {
	if len(positive) == 0 {
		positive = defaultPositive
	}
	if len(negative) == 0 {
		negative = defaultNegative
	}
	return &LexiconScorer{
		positive: toSet(positive),
		negative: toSet(negative),
	}
}

// defaultPositive and defaultNegative cover the vocabulary of gacha
// banner discussions well enough for a coarse score.
var (
	defaultPositive = []string{
		"good", "great", "strong", "best", "amazing", "broken", "meta",
		"worth", "must", "top", "excellent", "love", "insane", "core",
		"useful", "recommended", "pull", "value",
	}
	defaultNegative = []string{
		"bad", "weak", "worst", "terrible", "awful", "skip", "useless",
		"niche", "outdated", "powercrept", "mediocre", "waste", "trap",
		"disappointing", "avoid",
	}
)

// Score averages per-comment polarity across all threads. Comments with
// |polarity| <= 0.1 are ignored. The result is rounded to 3 decimals;
// SampleSize is the number of comments that counted.
func (s *LexiconScorer) Score(threads []Thread) (ScoreResult, error) {
	var total float64
	var count int

	for _, thread := range threads {
		for _, comment := range thread.Comments {
			p := s.polarity(comment.Body)
			if math.Abs(p) <= polarityFloor {
				continue
			}
			total += p
			count++
		}
	}

	if count == 0 {
		return ScoreResult{}, ErrNoSignal
	}

	avg := total / float64(count)
	return ScoreResult{
		Value:      math.Round(avg*1000) / 1000,
		SampleSize: count,
	}, nil
}

// polarity scores one comment in [-1, +1] from lexicon hits.
func (s *LexiconScorer) polarity(body string) float64 {
	var pos, neg int
	for _, word := range strings.Fields(strings.ToLower(body)) {
		word = strings.Trim(word, ".,!?;:\"'()[]")
		if _, ok := s.positive[word]; ok {
			pos++
		}
		if _, ok := s.negative[word]; ok {
			neg++
		}
	}

	hits := pos + neg
	if hits == 0 {
		return 0
	}
	return float64(pos-neg) / float64(hits)
}

func toSet(terms []string) map[string]struct{} {
	set := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		set[strings.ToLower(t)] = struct{}{}
	}
	return set
}
