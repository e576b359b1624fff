// Bannerscope - Banner Release Prediction and Community Sentiment Dashboard
// Copyright 2026 Aya N. (ayaneru)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayaneru/bannerscope

package coordination

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/ayaneru/bannerscope/internal/cache"
	"github.com/ayaneru/bannerscope/internal/metrics"
)

// cooldownKeyPrefix namespaces failure cooldown markers in the store.
// The marker is a store entry so the cooldown is visible across processes.
const cooldownKeyPrefix = "refresh-cooldown:"

// ComputeFunc is the expensive unit of work the coordinator runs at most
// once per key per staleness window. It returns the serialized value to
// cache. The context carries a deadline bounded by the lease TTL.
type ComputeFunc func(ctx context.Context) ([]byte, error)

// Result is what GetOrRefresh hands back synchronously on every call.
type Result struct {
	// Value is the current best-known value, nil when nothing has ever
	// been computed for this key.
	Value []byte

	// ComputedAt is when Value was computed. Zero when Value is nil.
	ComputedAt time.Time

	// Status describes what is happening for this key right now.
	Status Status

	// RetryAfter is the suggested client polling interval. For
	// StatusFailed it is the remaining failure cooldown.
	RetryAfter time.Duration
}

// Config holds the coordinator's timing policy.
type Config struct {
	// StaleAfter is how long a value counts as fresh. Past it the value
	// is still served but becomes eligible for background refresh.
	StaleAfter time.Duration

	// EntryTTL is the hard expiry of cached values, after which they
	// vanish entirely. Must be >= StaleAfter.
	EntryTTL time.Duration

	// LeaseTTL bounds one computation attempt. A crashed holder's lease
	// self-expires after this long.
	LeaseTTL time.Duration

	// FailureCooldown is the minimum interval between retry attempts
	// after a failed computation, so a failing upstream is not hammered.
	FailureCooldown time.Duration

	// PollInterval is the RetryAfter hint returned while a computation
	// is in flight.
	PollInterval time.Duration
}

// cooldownMarker records why the last computation failed. Stored as the
// cooldown entry's value so the admin surface can show it.
type cooldownMarker struct {
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}

// Coordinator orchestrates get-or-refresh semantics over the shared
// store. The read path never blocks on external I/O; computations run on
// detached goroutines that outlive the triggering request.
type Coordinator struct {
	store  cache.Store
	lock   *RefreshLock
	clock  clockwork.Clock
	cfg    Config
	logger zerolog.Logger

	// wg tracks in-flight computations for graceful shutdown. Waiting is
	// an optimization, not a correctness requirement: an abandoned job's
	// lease self-expires.
	wg sync.WaitGroup
}

// New creates a Coordinator over the given store.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func New(store cache.Store, clock clockwork.Clock, cfg Config, logger zerolog.Logger) *Coordinator {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 2 * time.Second
	}
	return &Coordinator{
		store:  store,
		lock:   NewRefreshLock(store),
		clock:  clock,
		cfg:    cfg,
		logger: logger.With().Str("component", "coordination").Logger(),
	}
}

// GetOrRefresh returns the current best-known value for key and, when
// the value is absent or stale, ensures exactly one computation is in
// flight across all callers and processes.
//
// The call always returns immediately:
//
//   - fresh value            -> (value, Ready)
//   - stale value, refresh   -> (stale value, Refreshing)
//   - no value, computing    -> (nil, Computing)
//   - failure cooldown       -> (best-known value or nil, Failed)
//
// No error is returned: every failure in the refresh path is contained
// here and surfaced only through the status, because the triggering
// request must never wait on or fail because of a background job.
func (c *Coordinator) GetOrRefresh(ctx context.Context, key string, compute ComputeFunc) Result {
	now := c.clock.Now()

	entry, found, err := c.store.Get(ctx, key)
	if err != nil {
		// Store unavailable degrades to a miss; the request path stays up.
		c.logger.Warn().Err(err).Str("key", key).Msg("Cache read failed, treating as miss")
		metrics.RecordStoreError("get")
		found = false
	}

	if found && !entry.IsStale(now, c.cfg.StaleAfter) {
		metrics.RecordRefreshOutcome("fresh_hit")
		return Result{Value: entry.Value, ComputedAt: entry.ComputedAt, Status: StatusReady}
	}

	// Absent or stale. Respect the failure cooldown before attempting
	// another refresh.
	if marker, remaining, active := c.activeCooldown(ctx, key, now); active {
		metrics.RecordRefreshOutcome("cooldown")
		res := Result{Status: StatusFailed, RetryAfter: remaining}
		if found {
			res.Value = entry.Value
			res.ComputedAt = entry.ComputedAt
		}
		c.logger.Debug().
			Str("key", key).
			Str("last_error", marker.Error).
			Dur("retry_after", remaining).
			Msg("Refresh suppressed by failure cooldown")
		return res
	}

	handle, acquired, err := c.lock.TryAcquire(ctx, key, c.cfg.LeaseTTL)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Lease acquisition failed, serving best-known value")
		metrics.RecordStoreError("acquire_lease")
	} else if acquired {
		metrics.RecordRefreshOutcome("lease_won")
		c.launch(ctx, key, handle, compute)
	} else {
		// Another holder is active. Expected concurrent-access outcome.
		metrics.RecordRefreshOutcome("lease_contended")
	}

	if found {
		return Result{
			Value:      entry.Value,
			ComputedAt: entry.ComputedAt,
			Status:     StatusRefreshing,
			RetryAfter: c.cfg.PollInterval,
		}
	}
	return Result{Status: StatusComputing, RetryAfter: c.cfg.PollInterval}
}

// Peek returns the cached state for key without triggering a refresh.
// Used by the bulk and admin surfaces.
func (c *Coordinator) Peek(ctx context.Context, key string) Result {
	now := c.clock.Now()

	entry, found, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Cache read failed, treating as miss")
		metrics.RecordStoreError("get")
		found = false
	}

	if _, remaining, active := c.activeCooldown(ctx, key, now); active {
		res := Result{Status: StatusFailed, RetryAfter: remaining}
		if found {
			res.Value = entry.Value
			res.ComputedAt = entry.ComputedAt
		}
		return res
	}

	if _, held, _ := c.lock.Holder(ctx, key); held {
		res := Result{RetryAfter: c.cfg.PollInterval}
		if found {
			res.Value = entry.Value
			res.ComputedAt = entry.ComputedAt
			res.Status = StatusRefreshing
		} else {
			res.Status = StatusComputing
		}
		return res
	}

	if !found {
		return Result{Status: StatusUnknown}
	}
	if entry.IsStale(now, c.cfg.StaleAfter) {
		// Stale with no refresh running: still servable, the next
		// GetOrRefresh will start one.
		return Result{Value: entry.Value, ComputedAt: entry.ComputedAt, Status: StatusRefreshing}
	}
	return Result{Value: entry.Value, ComputedAt: entry.ComputedAt, Status: StatusReady}
}

// Refreshing reports whether a refresh lease is currently held for key.
func (c *Coordinator) Refreshing(ctx context.Context, key string) bool {
	_, held, _ := c.lock.Holder(ctx, key)
	return held
}

// Shutdown waits for in-flight computations to finish or the context to
// expire. Cooperative only: leases of abandoned jobs self-expire.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// launch runs compute on a detached goroutine. The goroutine must
// outlive the triggering request, so the request context's cancellation
// is stripped while its values (request ID) are kept for logging.
func (c *Coordinator) launch(ctx context.Context, key string, handle *LeaseHandle, compute ComputeFunc) {
	c.wg.Add(1)

	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.LeaseTTL)

	go func() {
		defer c.wg.Done()
		defer cancel()

		start := c.clock.Now()
		value, err := compute(jobCtx)
		elapsed := c.clock.Since(start)

		if err != nil {
			metrics.RecordComputeResult("failure", elapsed)
			c.logger.Error().Err(err).Str("key", key).Dur("elapsed", elapsed).
				Msg("Computation failed, applying cooldown")
			c.applyCooldown(jobCtx, key, err)
			c.release(jobCtx, key, handle)
			return
		}

		// Write before releasing the lease so a racing caller sees
		// either the lease or the fresh value, never neither.
		if err := c.store.Set(jobCtx, key, value, c.cfg.EntryTTL); err != nil {
			metrics.RecordStoreError("set")
			c.logger.Error().Err(err).Str("key", key).Msg("Failed to write computed value")
			c.applyCooldown(jobCtx, key, err)
			c.release(jobCtx, key, handle)
			return
		}

		metrics.RecordComputeResult("success", elapsed)
		c.logger.Info().Str("key", key).Dur("elapsed", elapsed).Msg("Computation completed")
		c.release(jobCtx, key, handle)
	}()
}

// release gives the lease back, tolerating expiry races.
func (c *Coordinator) release(ctx context.Context, key string, handle *LeaseHandle) {
	if err := handle.Release(ctx); err != nil {
		// ErrNotHolder here means our lease expired mid-job and someone
		// else took over; their write wins, which is the newest anyway.
		c.logger.Warn().Err(err).Str("key", key).Msg("Lease release skipped")
	}
}

// applyCooldown records a failure marker so retries back off.
func (c *Coordinator) applyCooldown(ctx context.Context, key string, cause error) {
	marker := cooldownMarker{
		Error:    cause.Error(),
		FailedAt: c.clock.Now(),
	}
	raw, err := json.Marshal(marker)
	if err != nil {
		raw = []byte(`{}`)
	}
	if err := c.store.Set(ctx, cooldownKeyPrefix+key, raw, c.cfg.FailureCooldown); err != nil {
		metrics.RecordStoreError("set")
		c.logger.Warn().Err(err).Str("key", key).Msg("Failed to record failure cooldown")
	}
}

// activeCooldown reads the failure marker for key. Returns the marker,
// the remaining cooldown, and whether the cooldown is still active.
func (c *Coordinator) activeCooldown(ctx context.Context, key string, now time.Time) (cooldownMarker, time.Duration, bool) {
	entry, found, err := c.store.Get(ctx, cooldownKeyPrefix+key)
	if err != nil || !found {
		return cooldownMarker{}, 0, false
	}

	var marker cooldownMarker
	if err := json.Unmarshal(entry.Value, &marker); err != nil {
		return cooldownMarker{}, 0, false
	}

	remaining := c.cfg.FailureCooldown - now.Sub(entry.ComputedAt)
	if remaining <= 0 {
		return cooldownMarker{}, 0, false
	}
	return marker, remaining, true
}
