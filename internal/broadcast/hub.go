// Package broadcast fans messages out to transient observers.
package broadcast

import (
	"context"
	"sync"
)

// Hub delivers every published message to all current subscribers. Slow
// subscribers lose messages instead of blocking the publisher.
type Hub[T any] struct {
	mu     sync.RWMutex
	subs   map[*subscriber[T]]struct{}
	buffer int
	closed bool
}

type subscriber[T any] struct {
	mu     sync.Mutex
	ch     chan T
	closed bool
}

// NewHub creates a hub whose subscribers buffer up to bufferSize messages.
func NewHub[T any](bufferSize int) *Hub[T] {
	return &Hub[T]{subs: make(map[*subscriber[T]]struct{}), buffer: max(bufferSize, 1)}
}

// Subscribe registers a subscriber for the lifetime of ctx. The returned
// channel is closed when ctx ends or the hub is closed.
func (h *Hub[T]) Subscribe(ctx context.Context) <-chan T {
	sub := &subscriber[T]{ch: make(chan T, h.buffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		sub.close()
		return sub.ch
	}
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	if ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			h.remove(sub)
		}()
	}
	return sub.ch
}

// Publish sends msg to every subscriber without blocking.
func (h *Hub[T]) Publish(msg T) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		sub.send(msg)
	}
}

// Len returns the number of active subscribers.
func (h *Hub[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close closes every subscriber. Later subscriptions receive a closed channel.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for sub := range h.subs {
		sub.close()
	}
	clear(h.subs)
}

func (h *Hub[T]) remove(sub *subscriber[T]) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
	sub.close()
}

func (s *subscriber[T]) send(msg T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- msg:
	default:
	}
}

func (s *subscriber[T]) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}
