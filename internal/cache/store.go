// Bannerscope - Banner Release Prediction and Community Sentiment Dashboard
// Copyright 2026 Aya N. (ayaneru)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayaneru/bannerscope

// Package cache provides the shared TTL key/value store that all
// cross-process coordination is built on.
//
// Two implementations exist:
//
//   - MemoryStore: single-process, for development and tests
//   - RedisStore: shared across any number of server processes
//
// Both expose the same Store interface, including the atomic lease
// operations that the coordination layer uses for single-flight refresh.
// Callers must treat store failures as cache misses: the read path never
// fails because the backend is down, it only loses the caching benefit.
package cache

import (
	"context"
	"errors"
	"time"
)

// Entry is a cached value with its computation timestamp.
// Staleness is always derived from ComputedAt, never stored as a flag,
// so a value and its freshness cannot drift apart.
type Entry struct {
	// Key is the opaque identity of the cached computation.
	Key string

	// Value is the serialized payload written by the last completed
	// computation. Never empty for an entry returned by Get.
	Value []byte

	// ComputedAt is when the last successful computation finished.
	ComputedAt time.Time
}

// IsStale reports whether the entry is older than staleAfter at the
// given instant. A stale entry is still servable (stale-while-revalidate);
// it is merely eligible for a background refresh.
func (e Entry) IsStale(now time.Time, staleAfter time.Duration) bool {
	return now.Sub(e.ComputedAt) > staleAfter
}

// ErrNotHolder is returned by ReleaseLease when the caller no longer owns
// the lease. A late or expired holder must never clobber a newer lease.
var ErrNotHolder = errors.New("cache: lease held by another holder")

// Store is the shared mutable resource everything coordinates through.
//
// All operations are safe under unbounded concurrent callers, including
// callers in independent OS processes sharing the same backing store.
// Errors from Get are advisory: callers log them and treat the result as
// a miss.
type Store interface {
	// Get returns the entry for key. The second return is false on a miss
	// or after hard expiry. An error indicates the backend is unreachable;
	// the caller treats that as a miss.
	Get(ctx context.Context, key string) (Entry, bool, error)

	// Set writes a new value for key, stamping ComputedAt with the store
	// clock. The entry hard-expires after ttl. Once Set returns, every
	// subsequent Get observes this value or a newer one.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// AcquireLease atomically creates a lease for key iff no non-expired
	// lease exists. Returns true when the caller now holds the lease.
	AcquireLease(ctx context.Context, key, holderID string, ttl time.Duration) (bool, error)

	// ReleaseLease deletes the lease for key iff holderID still owns it.
	// Returns ErrNotHolder on a holder mismatch.
	ReleaseLease(ctx context.Context, key, holderID string) error

	// LeaseHolder returns the current lease holder for key, if any.
	// Used by the cache-admin surface, never for coordination decisions.
	LeaseHolder(ctx context.Context, key string) (string, bool, error)

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
