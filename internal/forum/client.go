// Bannerscope - Banner Release Prediction and Community Sentiment Dashboard
// Copyright 2026 Aya N. (ayaneru)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayaneru/bannerscope

// Package forum fetches community discussion threads from the external
// forum API. The upstream is rate-limited and flaky, so the client
// layers three protections: a token-bucket limiter to stay under the
// published quota, a circuit breaker so a dead upstream fails fast, and
// per-thread error tolerance so one bad thread does not sink a fetch.
package forum

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/ayaneru/bannerscope/internal/metrics"
	"github.com/ayaneru/bannerscope/internal/sentiment"
)

// maxErrorBodySize caps how much of an error response body is read for
// diagnostics, preventing unbounded allocation on large error pages.
const maxErrorBodySize = 64 * 1024 // 64KB

// ErrUpstreamUnavailable wraps circuit-breaker rejections so callers can
// distinguish "upstream is known dead" from an individual request error.
var ErrUpstreamUnavailable = errors.New("forum: upstream unavailable")

// Config holds the forum client settings.
type Config struct {
	// BaseURL is the forum API root, e.g. https://forum.example.com.
	BaseURL string

	// RequestsPerSecond and Burst bound the request rate against the
	// upstream quota.
	RequestsPerSecond float64
	Burst             int

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration

	// MaxThreads caps how many threads one fetch will pull comments for.
	MaxThreads int
}

// Client fetches discussion threads for a character. It implements
// sentiment.ThreadFetcher.
//
// The circuit breaker uses real time for its recovery window. Tests
// exercise the HTTP layer through httptest servers rather than faking
// the breaker clock.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	cb         *gobreaker.CircuitBreaker[[]threadSummary]
	maxThreads int
	logger     zerolog.Logger
}

// threadSummary is the search endpoint's wire shape, before comments
// are attached.
type threadSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
	Body  string `json:"body"`
}

// commentPage is the comment endpoint's wire shape.
type commentPage struct {
	Comments []struct {
		Body string `json:"body"`
	} `json:"comments"`
}

// NewClient builds a forum client from configuration. Zero-valued rate
// settings fall back to 1 req/s with a burst of 3, which matches the
// public forum quota.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 3
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	maxThreads := cfg.MaxThreads
	if maxThreads <= 0 {
		maxThreads = 10
	}

	log := logger.With().Str("component", "forum").Logger()

	cb := gobreaker.NewCircuitBreaker[[]threadSummary](gobreaker.Settings{
		Name:        "forum-api",
		MaxRequests: 2,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).
				Str("from", stateToString(from)).Str("to", stateToString(to)).
				Msg("Forum circuit breaker state transition")
		},
	})

	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		cb:         cb,
		maxThreads: maxThreads,
		logger:     log,
	}
}

// FetchThreads returns discussion threads mentioning characterID, with
// comments attached. The bool return reports partial failure: the
// search succeeded but comments for some threads could not be fetched.
// A failed search, an open circuit, or a cancelled context is a hard
// failure.
func (c *Client) FetchThreads(ctx context.Context, characterID string) ([]sentiment.Thread, bool, error) {
	summaries, err := c.cb.Execute(func() ([]threadSummary, error) {
		return c.searchThreads(ctx, characterID)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.RecordThreadFetch("breaker_open")
			return nil, false, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
		}
		metrics.RecordThreadFetch("failure")
		return nil, false, err
	}

	if len(summaries) > c.maxThreads {
		summaries = summaries[:c.maxThreads]
	}

	threads := make([]sentiment.Thread, 0, len(summaries))
	partial := false
	for _, s := range summaries {
		comments, err := c.fetchComments(ctx, s.ID)
		if err != nil {
			if ctx.Err() != nil {
				metrics.RecordThreadFetch("failure")
				return nil, false, ctx.Err()
			}
			c.logger.Warn().Err(err).Str("thread", s.ID).
				Msg("Skipping thread with unfetchable comments")
			partial = true
			continue
		}
		threads = append(threads, sentiment.Thread{
			ID:       s.ID,
			Title:    s.Title,
			URL:      s.URL,
			Body:     s.Body,
			Comments: comments,
		})
	}

	if partial {
		metrics.RecordThreadFetch("partial")
	} else {
		metrics.RecordThreadFetch("success")
	}
	return threads, partial, nil
}

// searchThreads queries the thread search endpoint.
func (c *Client) searchThreads(ctx context.Context, characterID string) ([]threadSummary, error) {
	params := url.Values{}
	params.Set("q", characterID)

	var page struct {
		Threads []threadSummary `json:"threads"`
	}
	if err := c.getJSON(ctx, "/api/threads/search?"+params.Encode(), &page); err != nil {
		return nil, fmt.Errorf("search threads for %s: %w", characterID, err)
	}
	return page.Threads, nil
}

// fetchComments pulls the comment list for one thread.
func (c *Client) fetchComments(ctx context.Context, threadID string) ([]sentiment.Comment, error) {
	var page commentPage
	path := "/api/threads/" + url.PathEscape(threadID) + "/comments"
	if err := c.getJSON(ctx, path, &page); err != nil {
		return nil, fmt.Errorf("fetch comments for thread %s: %w", threadID, err)
	}

	comments := make([]sentiment.Comment, 0, len(page.Comments))
	for _, raw := range page.Comments {
		comments = append(comments, sentiment.Comment{Body: raw.Body})
	}
	return comments, nil
}

// getJSON performs one rate-limited GET and decodes the JSON body into
// result. Waiting for a limiter token respects ctx cancellation.
func (c *Client) getJSON(ctx context.Context, path string, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body := readBodyForError(resp.Body)
		return fmt.Errorf("forum API returned HTTP %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// readBodyForError reads at most maxErrorBodySize bytes of a response
// body for inclusion in an error message.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("... (truncated)")...)
	}
	return body
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
