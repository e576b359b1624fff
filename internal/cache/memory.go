// Bannerscope - Banner Release Prediction and Community Sentiment Dashboard
// Copyright 2026 Aya N. (ayaneru)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayaneru/bannerscope

package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// cleanupInterval is how often the background sweep removes expired
// entries and leases from the in-memory store.
const cleanupInterval = 5 * time.Minute

// memoryEntry is an Entry plus its hard-expiry deadline.
type memoryEntry struct {
	entry     Entry
	expiresAt time.Time
}

// memoryLease tracks lease ownership for a key.
type memoryLease struct {
	holderID  string
	expiresAt time.Time
}

// Stats tracks store performance counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	TotalKeys int64
}

// MemoryStore is a thread-safe in-memory Store with TTL support.
//
// It is correct only within a single process: the lease compare-and-set
// is guarded by a mutex, not by a shared backend. Production deployments
// with more than one server process must use RedisStore instead.
//
// The clock is injected so TTL and lease expiry are testable without
// sleeping.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	leases  map[string]memoryLease
	clock   clockwork.Clock

	statsMu sync.Mutex
	stats   Stats

	stop chan struct{}
	once sync.Once
}

// NewMemoryStore creates a MemoryStore and starts its background cleanup
// goroutine. The goroutine runs until Close is called.
func NewMemoryStore(clock clockwork.Clock) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]memoryEntry),
		leases:  make(map[string]memoryLease),
		clock:   clock,
		stop:    make(chan struct{}),
	}

	go s.cleanupLoop()

	return s
}

// Get returns the entry for key, expiring it lazily if its TTL has passed.
func (s *MemoryStore) Get(_ context.Context, key string) (Entry, bool, error) {
	s.mu.RLock()
	me, exists := s.entries[key]
	s.mu.RUnlock()

	if !exists {
		s.recordMiss()
		return Entry{}, false, nil
	}

	if s.clock.Now().After(me.expiresAt) {
		s.mu.Lock()
		// Re-check under the write lock: a Set may have raced in between.
		if cur, ok := s.entries[key]; ok && s.clock.Now().After(cur.expiresAt) {
			delete(s.entries, key)
			s.recordEviction()
		}
		s.mu.Unlock()
		s.recordMiss()
		return Entry{}, false, nil
	}

	s.recordHit()
	return me.entry, true, nil
}

// Set stores value under key with the given hard-expiry TTL.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	now := s.clock.Now()

	s.mu.Lock()
	s.entries[key] = memoryEntry{
		entry: Entry{
			Key:        key,
			Value:      value,
			ComputedAt: now,
		},
		expiresAt: now.Add(ttl),
	}
	total := int64(len(s.entries))
	s.mu.Unlock()

	s.statsMu.Lock()
	s.stats.TotalKeys = total
	s.statsMu.Unlock()

	return nil
}

// AcquireLease creates a lease for key iff none exists or the existing
// lease has expired. The check and the write happen under one lock, which
// is what makes the operation atomic within the process.
func (s *MemoryStore) AcquireLease(_ context.Context, key, holderID string, ttl time.Duration) (bool, error) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if lease, exists := s.leases[key]; exists && now.Before(lease.expiresAt) {
		return false, nil
	}

	s.leases[key] = memoryLease{
		holderID:  holderID,
		expiresAt: now.Add(ttl),
	}
	return true, nil
}

// ReleaseLease removes the lease iff holderID still owns it.
func (s *MemoryStore) ReleaseLease(_ context.Context, key, holderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lease, exists := s.leases[key]
	if !exists {
		return nil
	}
	if lease.holderID != holderID {
		return ErrNotHolder
	}

	delete(s.leases, key)
	return nil
}

// LeaseHolder returns the current non-expired lease holder for key.
func (s *MemoryStore) LeaseHolder(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lease, exists := s.leases[key]
	if !exists || s.clock.Now().After(lease.expiresAt) {
		return "", false, nil
	}
	return lease.holderID, true, nil
}

// Ping always succeeds for the in-memory store.
func (s *MemoryStore) Ping(_ context.Context) error {
	return nil
}

// Close stops the background cleanup goroutine.
func (s *MemoryStore) Close() error {
	s.once.Do(func() { close(s.stop) })
	return nil
}

// GetStats returns a snapshot of the store counters.
func (s *MemoryStore) GetStats() Stats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats
}

// cleanupLoop periodically removes expired entries and leases.
func (s *MemoryStore) cleanupLoop() {
	ticker := s.clock.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			s.cleanup()
		case <-s.stop:
			return
		}
	}
}

// cleanup removes everything past its deadline.
func (s *MemoryStore) cleanup() {
	now := s.clock.Now()
	var evicted int64

	s.mu.Lock()
	for key, me := range s.entries {
		if now.After(me.expiresAt) {
			delete(s.entries, key)
			evicted++
		}
	}
	for key, lease := range s.leases {
		if now.After(lease.expiresAt) {
			delete(s.leases, key)
		}
	}
	total := int64(len(s.entries))
	s.mu.Unlock()

	s.statsMu.Lock()
	s.stats.Evictions += evicted
	s.stats.TotalKeys = total
	s.statsMu.Unlock()
}

func (s *MemoryStore) recordHit() {
	s.statsMu.Lock()
	s.stats.Hits++
	s.statsMu.Unlock()
}

func (s *MemoryStore) recordMiss() {
	s.statsMu.Lock()
	s.stats.Misses++
	s.statsMu.Unlock()
}

func (s *MemoryStore) recordEviction() {
	s.statsMu.Lock()
	s.stats.Evictions++
	s.statsMu.Unlock()
}
