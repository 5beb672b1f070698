package otp

import (
	"context"
	"sync"
	"time"

	"github.com/otpmd/otpmd/internal/clock"
)

type entry struct {
	digest    string
	expiresAt time.Time
}

// MemoryStore keeps codes in process memory. Expired entries are never
// returned and are removed lazily on access or by Sweep.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	clock   clock.Clock
}

// NewMemoryStore builds an in-memory store. A non-positive ttl falls back to DefaultTTL.
func NewMemoryStore(ttl time.Duration, clk clock.Clock) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clk == nil {
		clk = clock.New()
	}
	return &MemoryStore{entries: make(map[string]entry), ttl: ttl, clock: clk}
}

// Issue stores a fresh code for recipient, replacing any live one, and
// returns it in clear.
func (s *MemoryStore) Issue(_ context.Context, recipient string) (string, error) {
	if recipient == "" {
		return "", ErrEmptyRecipient
	}
	code, err := GenerateCode()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[recipient] = entry{digest: digest(code), expiresAt: s.clock.Now().Add(s.ttl)}
	return code, nil
}

// Verify consumes the live code for recipient when candidate matches it.
// A mismatch leaves the code in place.
func (s *MemoryStore) Verify(_ context.Context, recipient, candidate string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[recipient]
	if !ok {
		return ResultNotFound, nil
	}
	if !e.expiresAt.After(s.clock.Now()) {
		delete(s.entries, recipient)
		return ResultNotFound, nil
	}
	if !digestEqual(candidate, e.digest) {
		return ResultMismatch, nil
	}
	delete(s.entries, recipient)
	return ResultSuccess, nil
}

// Sweep drops every expired entry and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for k, e := range s.entries {
		if !e.expiresAt.After(now) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Run sweeps on every interval of the store's clock until ctx is cancelled.
func (s *MemoryStore) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	tick := make(chan struct{}, 1)
	for {
		timer := s.clock.AfterFunc(interval, func() {
			select {
			case tick <- struct{}{}:
			default:
			}
		})
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-tick:
			s.Sweep()
		}
	}
}
