// Bannerscope - Banner Release Prediction and Community Sentiment Dashboard
// Copyright 2026 Aya N. (ayaneru)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayaneru/bannerscope

// Package coordination implements single-flight refresh on top of the
// shared cache store.
//
// The coordinator guarantees that for any key, at most one compute()
// invocation is in flight at any time across all callers and all server
// processes. Losers of the refresh race return immediately with the
// best-known value and a status describing what is happening; nobody
// ever blocks on another caller's computation.
//
// Coordination is expressed entirely through the cache.Store lease
// primitive rather than in-process mutexes, so the guarantees hold when
// several processes serve the same dashboard against one Redis.
package coordination

// Status describes the refresh state of a cached computation as observed
// by one GetOrRefresh call. Clients poll until they see StatusReady.
type Status string

const (
	// StatusUnknown means the key has never been requested. Only the
	// read-only surfaces report it; GetOrRefresh itself always triggers
	// a computation instead.
	StatusUnknown Status = "unknown"

	// StatusReady means a fresh value was returned.
	StatusReady Status = "ready"

	// StatusComputing means no value exists yet and a computation is in
	// flight (started by this call or a concurrent one).
	StatusComputing Status = "computing"

	// StatusRefreshing means a stale value was returned while a refresh
	// runs in the background (stale-while-revalidate).
	StatusRefreshing Status = "refreshing"

	// StatusFailed means the last computation failed and the failure
	// cooldown has not elapsed. Any previous value remains servable.
	StatusFailed Status = "failed"
)
