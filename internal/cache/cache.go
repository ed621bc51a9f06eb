// SPDX-License-Identifier: MIT

// Package cache stores optimized print files keyed by input digest.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("cache closed")

// Store is a byte-oriented artifact cache with expiration.
type Store interface {
	// Get returns the value for key. A missing or expired key is not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Put stores data under key. A non-positive ttl never expires.
	Put(ctx context.Context, key string, data []byte, ttl time.Duration) error
	// Delete removes key.
	Delete(ctx context.Context, key string) error
	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
	// Stats returns cache statistics.
	Stats() Stats
	// Backend names the implementation for logs and metrics.
	Backend() string
	Close() error
}

// Stats holds cache performance counters.
type Stats struct {
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	Sets        int64 `json:"sets"`
	Evictions   int64 `json:"evictions"`
	CurrentSize int   `json:"current_size"`
	Bytes       int64 `json:"bytes"`
}

type entry struct {
	value      []byte
	expiration time.Time
}

func (e *entry) isExpired(now time.Time) bool {
	return !e.expiration.IsZero() && now.After(e.expiration)
}

// MemoryStore is an in-memory Store. When MaxBytes is set, entries closest
// to expiry are evicted first to stay under the limit.
type MemoryStore struct {
	mu       sync.Mutex
	entries  map[string]*entry
	stats    Stats
	maxBytes int64
	now      func() time.Time

	janitor   *janitor
	closeOnce sync.Once
	closed    bool
}

// NewMemoryStore creates a memory store. A positive cleanupInterval starts a
// janitor goroutine that removes expired entries; Close stops it.
func NewMemoryStore(cleanupInterval time.Duration, maxBytes int64) *MemoryStore {
	s := &MemoryStore{
		entries:  make(map[string]*entry),
		maxBytes: maxBytes,
		now:      time.Now,
	}
	if cleanupInterval > 0 {
		s.janitor = &janitor{interval: cleanupInterval, stop: make(chan struct{}), done: make(chan struct{})}
		go s.janitor.run(s)
	}
	return s
}

// Backend implements Store.
func (s *MemoryStore) Backend() string { return "memory" }

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false, ErrClosed
	}
	e, ok := s.entries[key]
	if !ok || e.isExpired(s.now()) {
		s.stats.Misses++
		return nil, false, nil
	}
	s.stats.Hits++
	return e.value, true, nil
}

// Put implements Store. The data slice is retained; callers must not modify it.
func (s *MemoryStore) Put(_ context.Context, key string, data []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if old, ok := s.entries[key]; ok {
		s.stats.Bytes -= int64(len(old.value))
	}
	e := &entry{value: data}
	if ttl > 0 {
		e.expiration = s.now().Add(ttl)
	}
	s.entries[key] = e
	s.stats.Bytes += int64(len(data))
	s.stats.Sets++
	s.evictLocked(key)
	return nil
}

// evictLocked drops entries nearest to expiry until the store fits maxBytes.
// The entry just written is evicted last.
func (s *MemoryStore) evictLocked(keep string) {
	for s.maxBytes > 0 && s.stats.Bytes > s.maxBytes && len(s.entries) > 1 {
		victim := ""
		var soonest time.Time
		for k, e := range s.entries {
			if k == keep {
				continue
			}
			if victim == "" || expiresBefore(e.expiration, soonest) {
				victim, soonest = k, e.expiration
			}
		}
		s.removeLocked(victim)
		s.stats.Evictions++
	}
}

// expiresBefore orders expirations with "never" last.
func expiresBefore(a, b time.Time) bool {
	switch {
	case a.IsZero():
		return false
	case b.IsZero():
		return true
	default:
		return a.Before(b)
	}
}

func (s *MemoryStore) removeLocked(key string) {
	if e, ok := s.entries[key]; ok {
		s.stats.Bytes -= int64(len(e.value))
		delete(s.entries, key)
	}
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(key)
	return nil
}

// Ping implements Store.
func (s *MemoryStore) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Stats implements Store.
func (s *MemoryStore) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := s.stats
	stats.CurrentSize = len(s.entries)
	return stats
}

// deleteExpired removes expired entries and returns how many it removed.
func (s *MemoryStore) deleteExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	count := 0
	for key, e := range s.entries {
		if e.isExpired(now) {
			s.removeLocked(key)
			count++
		}
	}
	s.stats.Evictions += int64(count)
	return count
}

// Close stops the janitor and releases all entries.
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() {
		if s.janitor != nil {
			close(s.janitor.stop)
			<-s.janitor.done
		}
		s.mu.Lock()
		s.closed = true
		s.entries = make(map[string]*entry)
		s.stats.Bytes = 0
		s.mu.Unlock()
	})
	return nil
}

// janitor periodically removes expired entries.
type janitor struct {
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

func (j *janitor) run(s *MemoryStore) {
	defer close(j.done)
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.deleteExpired()
		case <-j.stop:
			return
		}
	}
}

// noopStore caches nothing.
type noopStore struct{}

// NewNoopStore returns a Store that never holds anything.
func NewNoopStore() Store { return noopStore{} }

func (noopStore) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (noopStore) Put(context.Context, string, []byte, time.Duration) error { return nil }
func (noopStore) Delete(context.Context, string) error { return nil }
func (noopStore) Ping(context.Context) error { return nil }
func (noopStore) Stats() Stats { return Stats{} }
func (noopStore) Backend() string { return "none" }
func (noopStore) Close() error { return nil }
