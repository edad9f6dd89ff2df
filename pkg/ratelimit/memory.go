package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count   int64
	resetAt time.Time
}

// MemoryStore keeps windows in process memory. Counts are lost on restart
// and are not shared between instances.
type MemoryStore struct {
	mu       sync.Mutex
	windows  map[string]*window
	now      func() time.Time
	interval time.Duration
	done     chan struct{}
	stopOnce sync.Once
}

// NewMemoryStore starts a store that drops expired windows every
// cleanupInterval (default one minute). Call Stop to end the cleanup goroutine.
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	s := &MemoryStore{
		windows:  make(map[string]*window),
		now:      time.Now,
		interval: cleanupInterval,
		done:     make(chan struct{}),
	}
	go s.cleanup()
	return s
}

func (s *MemoryStore) Increment(_ context.Context, key string, length time.Duration) (int64, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w, ok := s.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(length)}
		s.windows[key] = w
	}
	w.count++
	return w.count, w.resetAt, nil
}

// Stop stops the cleanup goroutine. It is safe to call more than once.
func (s *MemoryStore) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

// Len returns the number of tracked windows, expired ones included until
// the next cleanup.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

func (s *MemoryStore) cleanup() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.dropExpired()
		}
	}
}

func (s *MemoryStore) dropExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, w := range s.windows {
		if !now.Before(w.resetAt) {
			delete(s.windows, key)
		}
	}
}
