// Bannerscope - Banner Release Prediction and Community Sentiment Dashboard
// Copyright 2026 Aya N. (ayaneru)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayaneru/bannerscope

package sentiment

import (
	"strings"
)

// RelevanceFilter is the deterministic pre-filter applied before
// scoring. It keeps gameplay-relevant threads and drops noise. The term
// lists are configuration, not validated domain logic: matching is plain
// case-insensitive substring search over title and body.
type RelevanceFilter struct {
	allow []string
	deny  []string
}

// NewRelevanceFilter builds a filter from configured term lists.
// An empty allow list keeps every thread not matched by the deny list.
func NewRelevanceFilter(allow, deny []string) *RelevanceFilter {
	return &RelevanceFilter{
		allow: lowerAll(allow),
		deny:  lowerAll(deny),
	}
}

// Match reports whether a thread passes the filter. Deny terms win over
// allow terms.
func (f *RelevanceFilter) Match(t Thread) bool {
	text := strings.ToLower(t.Title + " " + t.Body)

	for _, term := range f.deny {
		if strings.Contains(text, term) {
			return false
		}
	}

	if len(f.allow) == 0 {
		return true
	}
	for _, term := range f.allow {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}

// Apply returns the threads that pass the filter, preserving order.
func (f *RelevanceFilter) Apply(threads []Thread) []Thread {
	out := make([]Thread, 0, len(threads))
	for _, t := range threads {
		if f.Match(t) {
			out = append(out, t)
		}
	}
	return out
}

func lowerAll(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(strings.ToLower(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
