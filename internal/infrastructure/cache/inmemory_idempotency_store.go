package cache

import (
	"context"
	"sync"
	"time"

	"github.com/erp/treasury/internal/domain/shared"
)

const defaultSweepInterval = 5 * time.Minute

// InMemoryIdempotencyStore keeps claimed keys in process memory. Claims
// are not shared between instances, so it only fits single-node
// deployments and tests.
type InMemoryIdempotencyStore struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewInMemoryIdempotencyStore creates a store that sweeps expired keys in
// the background until Close is called
func NewInMemoryIdempotencyStore() *InMemoryIdempotencyStore {
	return newInMemoryIdempotencyStore(defaultSweepInterval, time.Now)
}

func newInMemoryIdempotencyStore(interval time.Duration, now func() time.Time) *InMemoryIdempotencyStore {
	s := &InMemoryIdempotencyStore{
		expires: make(map[string]time.Time),
		now:     now,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go s.sweepLoop(interval)
	return s
}

// Claim reserves key for ttl. An expired claim can be taken again.
func (s *InMemoryIdempotencyStore) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if exp, ok := s.expires[key]; ok && now.Before(exp) {
		return false, nil
	}
	s.expires[key] = now.Add(ttl)
	return true, nil
}

// Release drops a claim so the key can be used again
func (s *InMemoryIdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.expires, key)
	s.mu.Unlock()
	return nil
}

// Ping always succeeds
func (s *InMemoryIdempotencyStore) Ping(context.Context) error {
	return nil
}

// Close stops the sweeper. Safe to call more than once.
func (s *InMemoryIdempotencyStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
		<-s.done
	})
	return nil
}

// Len returns the number of tracked keys, expired ones included
func (s *InMemoryIdempotencyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.expires)
}

func (s *InMemoryIdempotencyStore) sweepLoop(interval time.Duration) {
	defer close(s.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *InMemoryIdempotencyStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, exp := range s.expires {
		if !now.Before(exp) {
			delete(s.expires, key)
		}
	}
}

var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
