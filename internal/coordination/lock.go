// Bannerscope - Banner Release Prediction and Community Sentiment Dashboard
// Copyright 2026 Aya N. (ayaneru)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayaneru/bannerscope

package coordination

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ayaneru/bannerscope/internal/cache"
)

// leaseKeyPrefix namespaces refresh leases within the shared store so a
// lease can never collide with a value entry for the same key.
const leaseKeyPrefix = "refresh-lock:"

// RefreshLock is a lease-based mutual exclusion primitive keyed by cache
// key. It is a thin policy layer over the store's atomic create-if-absent
// lease operation.
//
// The lease TTL should exceed the worst-case job duration by a safety
// margin (3x is the rule of thumb) so a slow-but-alive job is never
// preempted, while a crashed holder's lease still expires and permits
// recovery.
type RefreshLock struct {
	store cache.Store
}

// NewRefreshLock creates a RefreshLock over the given store.
func NewRefreshLock(store cache.Store) *RefreshLock {
	return &RefreshLock{store: store}
}

// LeaseHandle represents ownership of one acquired lease. The holder ID
// is a fresh UUID per attempt, so a late release from a previous attempt
// can never remove a newer holder's lease.
type LeaseHandle struct {
	key      string
	holderID string
	store    cache.Store
}

// HolderID returns the opaque identifier of this computation attempt.
func (h *LeaseHandle) HolderID() string {
	return h.holderID
}

// Release gives up the lease. Safe to call when the lease already
// expired: the owner check inside the store turns that into a no-op
// error which callers may ignore.
func (h *LeaseHandle) Release(ctx context.Context) error {
	return h.store.ReleaseLease(ctx, leaseKeyPrefix+h.key, h.holderID)
}

// TryAcquire attempts to take the refresh lease for key. The second
// return is false when another holder is active (lock contention is an
// expected outcome, not an error).
func (l *RefreshLock) TryAcquire(ctx context.Context, key string, leaseTTL time.Duration) (*LeaseHandle, bool, error) {
	holderID := uuid.New().String()

	ok, err := l.store.AcquireLease(ctx, leaseKeyPrefix+key, holderID, leaseTTL)
	if err != nil {
		return nil, false, fmt.Errorf("acquire refresh lease %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	return &LeaseHandle{key: key, holderID: holderID, store: l.store}, true, nil
}

// Holder reports the active lease holder for key, for the admin surface.
func (l *RefreshLock) Holder(ctx context.Context, key string) (string, bool, error) {
	return l.store.LeaseHolder(ctx, leaseKeyPrefix+key)
}
