// Package session owns the process-wide messaging client handle and fans
// its lifecycle events out to independent subscribers.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/otpmd/otpmd/internal/notification"
)

// ErrClosed is returned when connecting after Close.
var ErrClosed = errors.New("session manager closed")

// Client is an authenticated-or-not connection to the messaging network.
type Client interface {
	// User returns the account identifier when the session is authenticated.
	User() (string, bool)
	SendText(ctx context.Context, recipient, text string) error
	SendInteractive(ctx context.Context, recipient string, msg notification.Interactive) error
	Close()
}

// Emitter forwards events from a client to the session.
type Emitter func(Event)

// Dialer creates connected clients. Implementations emit lifecycle events
// through emit for as long as the client lives.
type Dialer interface {
	Dial(ctx context.Context, emit Emitter) (Client, error)
}

type handle struct {
	client Client
}

// Manager holds the current client and replaces it wholesale on reconnect.
type Manager struct {
	dialer Dialer
	logger *slog.Logger
	buffer int

	dialMu  sync.Mutex
	gen     atomic.Uint64
	current atomic.Pointer[handle]

	mu     sync.RWMutex
	subs   map[*subscriber]struct{}
	state  State
	closed bool
	done   chan struct{}
}

// NewManager builds a manager around dialer.
func NewManager(dialer Dialer, logger *slog.Logger) *Manager {
	return &Manager{
		dialer: dialer,
		logger: logger,
		buffer: 32,
		subs:   make(map[*subscriber]struct{}),
		state:  StateClosed,
		done:   make(chan struct{}),
	}
}

// Start performs the initial connection.
func (m *Manager) Start(ctx context.Context) error {
	return m.connect(ctx)
}

// Reconnect dials a fresh client and swaps it in, closing the previous one.
func (m *Manager) Reconnect(ctx context.Context) error {
	m.logger.Info("reconnecting messaging session")
	return m.connect(ctx)
}

// Client returns the current client handle, if any.
func (m *Manager) Client() (Client, bool) {
	h := m.current.Load()
	if h == nil {
		return nil, false
	}
	return h.client, true
}

// State returns the last observed connection state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Subscribe returns an ordered stream of events until ctx ends or the manager closes.
func (m *Manager) Subscribe(ctx context.Context) <-chan Event {
	sub := &subscriber{ch: make(chan Event, m.buffer), ctx: ctx, done: m.done}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		sub.close()
		return sub.ch
	}
	m.subs[sub] = struct{}{}
	m.mu.Unlock()

	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
			case <-m.done:
			}
			m.unsubscribe(sub)
		}()
	}
	return sub.ch
}

// Close disconnects the current client and ends all subscriptions.
func (m *Manager) Close() {
	m.dialMu.Lock()
	defer m.dialMu.Unlock()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	close(m.done)
	subs := make([]*subscriber, 0, len(m.subs))
	for sub := range m.subs {
		subs = append(subs, sub)
	}
	clear(m.subs)
	m.mu.Unlock()

	m.gen.Add(1)
	if h := m.current.Swap(nil); h != nil {
		h.client.Close()
	}
	for _, sub := range subs {
		sub.close()
	}
}

func (m *Manager) connect(ctx context.Context) error {
	m.dialMu.Lock()
	defer m.dialMu.Unlock()

	m.mu.RLock()
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	gen := m.gen.Add(1)
	client, err := m.dialer.Dial(ctx, m.emitter(gen))
	if err != nil {
		// The previous client's events are already superseded, so drop it too.
		if prev := m.current.Swap(nil); prev != nil {
			prev.client.Close()
		}
		m.mu.Lock()
		m.state = StateClosed
		m.mu.Unlock()
		m.publish(DialFailedEvent{Err: err})
		return fmt.Errorf("dial messaging client: %w", err)
	}

	if prev := m.current.Swap(&handle{client: client}); prev != nil {
		prev.client.Close()
	}
	return nil
}

func (m *Manager) emitter(gen uint64) Emitter {
	return func(evt Event) {
		if m.gen.Load() != gen {
			m.logger.Debug("dropping event from superseded client", slog.Uint64("generation", gen))
			return
		}
		m.publish(evt)
	}
}

func (m *Manager) publish(evt Event) {
	m.mu.Lock()
	if ce, ok := evt.(ConnectionEvent); ok {
		if ce.Update.Date.IsZero() {
			ce.Update.Date = time.Now().UTC()
			evt = ce
		}
		if ce.Update.Connection != "" {
			m.state = ce.Update.Connection
		}
	}
	subs := make([]*subscriber, 0, len(m.subs))
	for sub := range m.subs {
		subs = append(subs, sub)
	}
	m.mu.Unlock()

	for _, sub := range subs {
		sub.deliver(evt)
	}
}

func (m *Manager) unsubscribe(sub *subscriber) {
	m.mu.Lock()
	delete(m.subs, sub)
	m.mu.Unlock()
	sub.close()
}

type subscriber struct {
	mu     sync.Mutex
	ch     chan Event
	ctx    context.Context
	done   <-chan struct{}
	closed bool
}

func (s *subscriber) deliver(evt Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- evt:
	case <-s.ctx.Done():
	case <-s.done:
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}
