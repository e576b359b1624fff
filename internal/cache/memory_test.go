// Bannerscope - Banner Release Prediction and Community Sentiment Dashboard
// Copyright 2026 Aya N. (ayaneru)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayaneru/bannerscope

package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*MemoryStore, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	store := NewMemoryStore(clock)
	t.Cleanup(func() { _ = store.Close() })
	return store, clock
}

func TestMemoryStoreSetGet(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k1", []byte("v1"), time.Hour))

	entry, ok, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "k1", entry.Key)
	assert.Equal(t, []byte("v1"), entry.Value)
}

func TestMemoryStoreMiss(t *testing.T) {
	store, _ := newTestStore(t)

	_, ok, err := store.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStoreHardExpiry(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k1", []byte("v1"), time.Hour))

	clock.Advance(time.Hour - time.Second)
	_, ok, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, ok, "entry inside TTL must be present")

	clock.Advance(2 * time.Second)
	_, ok, err = store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok, "entry past TTL must be absent")
}

func TestMemoryStoreStaleness(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()

	// Long hard TTL so only staleness classification is in play.
	require.NoError(t, store.Set(ctx, "k1", []byte("v1"), 24*time.Hour))
	entry, ok, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)

	staleAfter := 10 * time.Minute

	assert.False(t, entry.IsStale(clock.Now().Add(staleAfter-time.Second), staleAfter),
		"computedAt = now - (ttl - 1s) must classify fresh")
	assert.True(t, entry.IsStale(clock.Now().Add(staleAfter+time.Second), staleAfter),
		"computedAt = now - (ttl + 1s) must classify stale")
}

func TestMemoryStoreSetOverwrites(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k1", []byte("old"), time.Hour))
	clock.Advance(time.Minute)
	require.NoError(t, store.Set(ctx, "k1", []byte("new"), time.Hour))

	entry, ok, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("new"), entry.Value)
	assert.Equal(t, clock.Now(), entry.ComputedAt)
}

func TestLeaseExclusive(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	ok, err := store.AcquireLease(ctx, "k1", "holder-a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = store.AcquireLease(ctx, "k1", "holder-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second acquire while lease live must fail")

	// A different key is unaffected.
	ok, err = store.AcquireLease(ctx, "k2", "holder-b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLeaseSelfExpires(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()

	ok, err := store.AcquireLease(ctx, "k1", "holder-a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	clock.Advance(time.Minute - time.Millisecond)
	ok, err = store.AcquireLease(ctx, "k1", "holder-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "lease must not be acquirable before acquiredAt+TTL")

	clock.Advance(2 * time.Millisecond)
	ok, err = store.AcquireLease(ctx, "k1", "holder-b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "lease must be acquirable at or after acquiredAt+TTL")
}

func TestReleaseLeaseHolderMismatch(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	ok, err := store.AcquireLease(ctx, "k1", "holder-a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	err = store.ReleaseLease(ctx, "k1", "holder-b")
	assert.ErrorIs(t, err, ErrNotHolder)

	// The rightful holder can still release.
	require.NoError(t, store.ReleaseLease(ctx, "k1", "holder-a"))

	// Releasing a missing lease is a no-op.
	require.NoError(t, store.ReleaseLease(ctx, "k1", "holder-a"))
}

func TestExpiredHolderCannotClobberNewerLease(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()

	ok, err := store.AcquireLease(ctx, "k1", "holder-a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	clock.Advance(2 * time.Minute)

	ok, err = store.AcquireLease(ctx, "k1", "holder-b", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// The dead holder's deferred release must not remove holder-b's lease.
	err = store.ReleaseLease(ctx, "k1", "holder-a")
	assert.ErrorIs(t, err, ErrNotHolder)

	holder, held, err := store.LeaseHolder(ctx, "k1")
	require.NoError(t, err)
	require.True(t, held)
	assert.Equal(t, "holder-b", holder)
}

func TestLeaseHolderExpired(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()

	ok, err := store.AcquireLease(ctx, "k1", "holder-a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	clock.Advance(2 * time.Minute)

	_, held, err := store.LeaseHolder(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, held)
}

func TestConcurrentLeaseAcquisition(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	const callers = 64
	var wg sync.WaitGroup
	var winsMu sync.Mutex
	wins := 0

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ok, err := store.AcquireLease(ctx, "contended", holderID(n), time.Minute)
			if err != nil {
				t.Error(err)
				return
			}
			if ok {
				winsMu.Lock()
				wins++
				winsMu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, wins, "exactly one caller may win a contended lease")
}

func holderID(n int) string {
	return string(rune('a'+n%26)) + "-holder"
}

func TestCleanupSweepsExpired(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k1", []byte("v1"), time.Minute))
	require.NoError(t, store.Set(ctx, "k2", []byte("v2"), time.Hour))

	// Wait for the cleanup goroutine's ticker to register with the fake
	// clock before advancing, or the tick is lost.
	clock.BlockUntil(1)
	clock.Advance(cleanupInterval + time.Second)

	// The sweep runs on the fake clock's ticker; give it a moment.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if store.GetStats().TotalKeys == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	assert.Equal(t, int64(1), store.GetStats().TotalKeys)
}
