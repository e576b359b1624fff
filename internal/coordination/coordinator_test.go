// Bannerscope - Banner Release Prediction and Community Sentiment Dashboard
// Copyright 2026 Aya N. (ayaneru)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayaneru/bannerscope

package coordination

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayaneru/bannerscope/internal/cache"
)

func testConfig() Config {
	return Config{
		StaleAfter:      4 * time.Hour,
		EntryTTL:        24 * time.Hour,
		LeaseTTL:        15 * time.Minute,
		FailureCooldown: 2 * time.Minute,
		PollInterval:    time.Second,
	}
}

func newTestCoordinator(t *testing.T) (*Coordinator, *cache.MemoryStore, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	store := cache.NewMemoryStore(clock)
	t.Cleanup(func() { _ = store.Close() })
	coord := New(store, clock, testConfig(), zerolog.Nop())
	return coord, store, clock
}

// shutdownWait joins all in-flight computations.
func shutdownWait(t *testing.T, c *Coordinator) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Shutdown(ctx))
}

func TestFreshHitReturnsReady(t *testing.T) {
	coord, store, _ := newTestCoordinator(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "x", []byte("cached"), 24*time.Hour))

	var computes atomic.Int32
	res := coord.GetOrRefresh(ctx, "x", func(context.Context) ([]byte, error) {
		computes.Add(1)
		return []byte("new"), nil
	})

	assert.Equal(t, StatusReady, res.Status)
	assert.Equal(t, []byte("cached"), res.Value)
	assert.Equal(t, int32(0), computes.Load(), "fresh hit must not compute")
}

// TestFirstRequestLifecycle covers the canonical scenario: caller A gets
// (absent, Computing) and triggers the job, caller B arriving before
// completion gets (absent, Computing) without a second job, and caller C
// after completion gets (result, Ready).
func TestFirstRequestLifecycle(t *testing.T) {
	coord, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	gate := make(chan struct{})
	var computes atomic.Int32
	compute := func(context.Context) ([]byte, error) {
		computes.Add(1)
		<-gate
		return []byte("result"), nil
	}

	resA := coord.GetOrRefresh(ctx, "x", compute)
	assert.Equal(t, StatusComputing, resA.Status)
	assert.Nil(t, resA.Value)
	assert.Equal(t, time.Second, resA.RetryAfter)

	resB := coord.GetOrRefresh(ctx, "x", compute)
	assert.Equal(t, StatusComputing, resB.Status)
	assert.Nil(t, resB.Value)

	close(gate)
	shutdownWait(t, coord)

	assert.Equal(t, int32(1), computes.Load(), "exactly one compute before the write")

	resC := coord.GetOrRefresh(ctx, "x", compute)
	assert.Equal(t, StatusReady, resC.Status)
	assert.Equal(t, []byte("result"), resC.Value)
}

func TestSingleFlightUnderConcurrency(t *testing.T) {
	coord, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	gate := make(chan struct{})
	var computes atomic.Int32
	compute := func(context.Context) ([]byte, error) {
		computes.Add(1)
		<-gate
		return []byte("v"), nil
	}

	const callers = 32
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := coord.GetOrRefresh(ctx, "hot", compute)
			if res.Status != StatusComputing {
				t.Errorf("expected Computing, got %s", res.Status)
			}
		}()
	}
	wg.Wait()

	close(gate)
	shutdownWait(t, coord)

	assert.Equal(t, int32(1), computes.Load(),
		"N concurrent callers must trigger at most one compute before the next write")
}

func TestStaleServesValueWhileRefreshing(t *testing.T) {
	coord, store, clock := newTestCoordinator(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "x", []byte("old"), 24*time.Hour))
	clock.Advance(testConfig().StaleAfter + time.Minute)

	gate := make(chan struct{})
	res := coord.GetOrRefresh(ctx, "x", func(context.Context) ([]byte, error) {
		<-gate
		return []byte("new"), nil
	})

	assert.Equal(t, StatusRefreshing, res.Status, "stale value triggers background refresh")
	assert.Equal(t, []byte("old"), res.Value, "stale value is served, not withheld")

	close(gate)
	shutdownWait(t, coord)

	res = coord.GetOrRefresh(ctx, "x", func(context.Context) ([]byte, error) {
		t.Fatal("unexpected compute after refresh")
		return nil, nil
	})
	assert.Equal(t, StatusReady, res.Status)
	assert.Equal(t, []byte("new"), res.Value)
}

func TestFailureAppliesCooldown(t *testing.T) {
	coord, _, clock := newTestCoordinator(t)
	ctx := context.Background()

	var computes atomic.Int32
	failing := func(context.Context) ([]byte, error) {
		computes.Add(1)
		return nil, errors.New("upstream unavailable")
	}

	res := coord.GetOrRefresh(ctx, "x", failing)
	assert.Equal(t, StatusComputing, res.Status)
	shutdownWait(t, coord)
	require.Equal(t, int32(1), computes.Load())

	// Within the cooldown no new attempt starts; callers see Failed.
	res = coord.GetOrRefresh(ctx, "x", failing)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Nil(t, res.Value)
	assert.Greater(t, res.RetryAfter, time.Duration(0))
	shutdownWait(t, coord)
	assert.Equal(t, int32(1), computes.Load(), "cooldown must suppress retries")

	// After the cooldown a retry is permitted.
	clock.Advance(testConfig().FailureCooldown + time.Second)
	res = coord.GetOrRefresh(ctx, "x", failing)
	assert.Equal(t, StatusComputing, res.Status)
	shutdownWait(t, coord)
	assert.Equal(t, int32(2), computes.Load())
}

func TestFailureKeepsStaleValueServable(t *testing.T) {
	coord, store, clock := newTestCoordinator(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "x", []byte("old"), 24*time.Hour))
	clock.Advance(testConfig().StaleAfter + time.Minute)

	res := coord.GetOrRefresh(ctx, "x", func(context.Context) ([]byte, error) {
		return nil, errors.New("boom")
	})
	assert.Equal(t, StatusRefreshing, res.Status)
	shutdownWait(t, coord)

	res = coord.GetOrRefresh(ctx, "x", func(context.Context) ([]byte, error) {
		t.Fatal("unexpected compute during cooldown")
		return nil, nil
	})
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, []byte("old"), res.Value, "previous value remains servable after failure")
}

func TestPeekNeverTriggersCompute(t *testing.T) {
	coord, store, clock := newTestCoordinator(t)
	ctx := context.Background()

	res := coord.Peek(ctx, "never-seen")
	assert.Equal(t, StatusUnknown, res.Status)

	require.NoError(t, store.Set(ctx, "x", []byte("v"), 24*time.Hour))
	res = coord.Peek(ctx, "x")
	assert.Equal(t, StatusReady, res.Status)
	assert.Equal(t, []byte("v"), res.Value)

	clock.Advance(testConfig().StaleAfter + time.Minute)
	res = coord.Peek(ctx, "x")
	assert.Equal(t, StatusRefreshing, res.Status, "stale entry reads as refresh-eligible")
	assert.Equal(t, []byte("v"), res.Value)
}

func TestPeekSeesInFlightComputation(t *testing.T) {
	coord, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	gate := make(chan struct{})
	res := coord.GetOrRefresh(ctx, "x", func(context.Context) ([]byte, error) {
		<-gate
		return []byte("v"), nil
	})
	require.Equal(t, StatusComputing, res.Status)

	peeked := coord.Peek(ctx, "x")
	assert.Equal(t, StatusComputing, peeked.Status)

	close(gate)
	shutdownWait(t, coord)
}

// failingStore simulates an unreachable backend: every operation errors.
type failingStore struct{}

func (failingStore) Get(context.Context, string) (cache.Entry, bool, error) {
	return cache.Entry{}, false, errors.New("store down")
}
func (failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("store down")
}
func (failingStore) AcquireLease(context.Context, string, string, time.Duration) (bool, error) {
	return false, errors.New("store down")
}
func (failingStore) ReleaseLease(context.Context, string, string) error {
	return errors.New("store down")
}
func (failingStore) LeaseHolder(context.Context, string) (string, bool, error) {
	return "", false, errors.New("store down")
}
func (failingStore) Ping(context.Context) error { return errors.New("store down") }
func (failingStore) Close() error               { return nil }

func TestStoreUnavailableDegradesToMiss(t *testing.T) {
	clock := clockwork.NewFakeClock()
	coord := New(failingStore{}, clock, testConfig(), zerolog.Nop())
	ctx := context.Background()

	// The read path must not crash or block; it reports Computing even
	// though no lease could be taken, and no compute runs.
	var computes atomic.Int32
	res := coord.GetOrRefresh(ctx, "x", func(context.Context) ([]byte, error) {
		computes.Add(1)
		return []byte("v"), nil
	})

	assert.Equal(t, StatusComputing, res.Status)
	assert.Nil(t, res.Value)
	shutdownWait(t, coord)
	assert.Equal(t, int32(0), computes.Load(), "no lease means no compute")
}

func TestRefreshLockContention(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := cache.NewMemoryStore(clock)
	t.Cleanup(func() { _ = store.Close() })
	lock := NewRefreshLock(store)
	ctx := context.Background()

	handle, ok, err := lock.TryAcquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = lock.TryAcquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	holder, held, err := lock.Holder(ctx, "k")
	require.NoError(t, err)
	require.True(t, held)
	assert.Equal(t, handle.HolderID(), holder)

	require.NoError(t, handle.Release(ctx))

	_, ok, err = lock.TryAcquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
