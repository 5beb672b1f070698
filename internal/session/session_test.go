package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/otpmd/otpmd/internal/logging"
	"github.com/otpmd/otpmd/internal/notification"
)

type stubClient struct {
	mu     sync.Mutex
	id     int
	closed bool
}

func (c *stubClient) User() (string, bool) { return "bot", true }
func (c *stubClient) SendText(context.Context, string, string) error {
	return nil
}
func (c *stubClient) SendInteractive(context.Context, string, notification.Interactive) error {
	return nil
}
func (c *stubClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}
func (c *stubClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type stubDialer struct {
	mu       sync.Mutex
	clients  []*stubClient
	emitters []Emitter
	err      error
}

func (d *stubDialer) Dial(_ context.Context, emit Emitter) (Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	emit(ConnectionEvent{Update: Update{Connection: StateConnecting}})
	c := &stubClient{id: len(d.clients) + 1}
	d.clients = append(d.clients, c)
	d.emitters = append(d.emitters, emit)
	return c, nil
}

func (d *stubDialer) emitter(i int) Emitter {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.emitters[i]
}

func next(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestStartPublishesAndExposesClient(t *testing.T) {
	dialer := &stubDialer{}
	m := NewManager(dialer, logging.Discard())
	defer m.Close()

	events := m.Subscribe(context.Background())

	_, ok := m.Client()
	require.False(t, ok)

	require.NoError(t, m.Start(context.Background()))

	evt := next(t, events)
	ce, ok := evt.(ConnectionEvent)
	require.True(t, ok)
	require.Equal(t, StateConnecting, ce.Update.Connection)
	require.False(t, ce.Update.Date.IsZero())
	require.Equal(t, StateConnecting, m.State())

	client, ok := m.Client()
	require.True(t, ok)
	require.Equal(t, 1, client.(*stubClient).id)
}

func TestReconnectSwapsHandleAndDropsStaleEvents(t *testing.T) {
	dialer := &stubDialer{}
	m := NewManager(dialer, logging.Discard())
	defer m.Close()

	events := m.Subscribe(context.Background())
	require.NoError(t, m.Start(context.Background()))
	next(t, events)

	require.NoError(t, m.Reconnect(context.Background()))
	next(t, events)

	client, ok := m.Client()
	require.True(t, ok)
	require.Equal(t, 2, client.(*stubClient).id)
	require.True(t, dialer.clients[0].isClosed())

	dialer.emitter(0)(ConnectionEvent{Update: Update{Connection: StateOpen}})
	dialer.emitter(1)(ConnectionEvent{Update: Update{Connection: StateClosed, LastDisconnect: &Disconnect{StatusCode: StatusConnectionLost}}})

	ce := next(t, events).(ConnectionEvent)
	require.Equal(t, StateClosed, ce.Update.Connection)
	require.Equal(t, StateClosed, m.State())
}

func TestDialFailurePublishesEvent(t *testing.T) {
	boom := errors.New("boom")
	m := NewManager(&stubDialer{err: boom}, logging.Discard())
	defer m.Close()

	events := m.Subscribe(context.Background())
	err := m.Start(context.Background())
	require.ErrorIs(t, err, boom)

	df, ok := next(t, events).(DialFailedEvent)
	require.True(t, ok)
	require.ErrorIs(t, df.Err, boom)
}

func TestFailedReconnectDropsPreviousClient(t *testing.T) {
	dialer := &stubDialer{}
	m := NewManager(dialer, logging.Discard())
	defer m.Close()

	events := m.Subscribe(context.Background())
	require.NoError(t, m.Start(context.Background()))
	next(t, events)
	dialer.emitter(0)(ConnectionEvent{Update: Update{Connection: StateOpen}})
	next(t, events)
	require.Equal(t, StateOpen, m.State())

	dialer.mu.Lock()
	dialer.err = errors.New("network unreachable")
	dialer.mu.Unlock()

	require.Error(t, m.Reconnect(context.Background()))
	require.IsType(t, DialFailedEvent{}, next(t, events))

	_, ok := m.Client()
	require.False(t, ok)
	require.Equal(t, StateClosed, m.State())
	require.True(t, dialer.clients[0].isClosed())
}

func TestIndependentSubscribers(t *testing.T) {
	m := NewManager(&stubDialer{}, logging.Discard())
	defer m.Close()

	a := m.Subscribe(context.Background())
	b := m.Subscribe(context.Background())
	require.NoError(t, m.Start(context.Background()))

	require.IsType(t, ConnectionEvent{}, next(t, a))
	require.IsType(t, ConnectionEvent{}, next(t, b))
}

func TestCloseEndsSubscriptionsAndClient(t *testing.T) {
	dialer := &stubDialer{}
	m := NewManager(dialer, logging.Discard())

	events := m.Subscribe(context.Background())
	require.NoError(t, m.Start(context.Background()))
	next(t, events)

	m.Close()
	_, ok := <-events
	require.False(t, ok)
	require.True(t, dialer.clients[0].isClosed())

	_, ok = m.Client()
	require.False(t, ok)
	require.ErrorIs(t, m.Reconnect(context.Background()), ErrClosed)
}
