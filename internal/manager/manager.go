// Package manager owns the single live WebSocket session. Connect replaces
// whatever session exists; Disconnect tears it down. The slot mutex is only
// held to swap the slot, never across network waits.
package manager

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/matst80/wslink/internal/endpoint"
	"github.com/matst80/wslink/internal/handshake"
	"github.com/matst80/wslink/internal/httpx"
	"github.com/matst80/wslink/internal/obs"
	"github.com/matst80/wslink/internal/proto"
	"github.com/matst80/wslink/internal/registry"
	"github.com/matst80/wslink/internal/sink"
	"github.com/matst80/wslink/internal/transport"
)

const (
	DefaultHandshakeTimeout = 30 * time.Second
	DefaultCloseTimeout     = 5 * time.Second
)

type session struct {
	id       string
	serverID string
	endpoint string
	stream   transport.Stream
	started  time.Time
	cancel   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	relayed  atomic.Int64
}

// signal requests relay termination. Safe to call any number of times,
// before or after the relay exited.
func (s *session) signal() { s.stopOnce.Do(func() { close(s.cancel) }) }

func (s *session) relayActive() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// Manager is safe for concurrent use.
type Manager struct {
	reg     registry.Registry
	tr      transport.Transport
	pub     sink.Publisher
	builder *handshake.Builder

	handshakeTimeout time.Duration
	closeTimeout     time.Duration
	newID            func() string

	// connecting serializes Connect calls without blocking Disconnect.
	connecting chan struct{}

	mu  sync.Mutex
	cur *session
	gen uint64
}

type Option func(*Manager)

func WithHandshakeTimeout(d time.Duration) Option { return func(m *Manager) { m.handshakeTimeout = d } }

// WithCloseTimeout bounds how long Disconnect waits for the relay to exit.
func WithCloseTimeout(d time.Duration) Option { return func(m *Manager) { m.closeTimeout = d } }

func WithBuilder(b *handshake.Builder) Option { return func(m *Manager) { m.builder = b } }

func WithIDGenerator(f func() string) Option { return func(m *Manager) { m.newID = f } }

func New(reg registry.Registry, tr transport.Transport, pub sink.Publisher, opts ...Option) *Manager {
	m := &Manager{
		reg:              reg,
		tr:               tr,
		pub:              pub,
		builder:          &handshake.Builder{},
		handshakeTimeout: DefaultHandshakeTimeout,
		closeTimeout:     DefaultCloseTimeout,
		newID:            func() string { return uuid.NewString() },
		connecting:       make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(m)
	}
	if m.pub == nil {
		m.pub = sink.Log{}
	}
	return m
}

// Connect tears down any current session, then opens one to serverID. On
// failure the slot is left empty.
func (m *Manager) Connect(ctx context.Context, serverID string) error {
	select {
	case m.connecting <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-m.connecting }()

	err := m.connect(ctx, serverID)
	if err != nil {
		obs.ConnectErrorsTotal.WithLabelValues(kindOf(err)).Inc()
		obs.Error("manager.connect", obs.Fields{"server": serverID, "err": err.Error()})
	}
	return err
}

func (m *Manager) connect(ctx context.Context, serverID string) error {
	if err := m.Disconnect(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	gen := m.gen
	m.mu.Unlock()

	srv, ok, err := m.reg.Lookup(ctx, serverID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRegistry, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrServerNotFound, serverID)
	}
	wsURL, err := endpoint.Resolve(srv.Endpoint)
	if err != nil {
		return fmt.Errorf("server %s: %w", serverID, err)
	}
	cred, ok, err := m.reg.LookupCredential(ctx, serverID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRegistry, err)
	}
	var token *string
	if ok {
		t := cred.AccessToken
		token = &t
	}
	req, err := m.builder.Build(wsURL, token)
	if err != nil {
		return fmt.Errorf("build handshake for %s: %w", serverID, err)
	}
	obs.Debug("manager.handshake", obs.Fields{"server": serverID, "url": wsURL, "headers": httpx.Redact(req.Header, m.builder.TokenHeaderName())})

	hctx, cancel := context.WithTimeout(ctx, m.handshakeTimeout)
	stream, err := m.tr.Handshake(hctx, req)
	cancel()
	if err != nil {
		return &HandshakeError{Kind: transport.Classify(err), Err: err}
	}

	s := &session{
		id:       m.newID(),
		serverID: serverID,
		endpoint: wsURL,
		stream:   stream,
		started:  time.Now(),
		cancel:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		_ = stream.Close()
		return ErrSuperseded
	}
	m.cur = s
	obs.ActiveConnections.Set(1)
	m.mu.Unlock()

	obs.ConnectTotal.Inc()
	obs.Info("manager.connected", obs.Fields{"server": serverID, "session": s.id, "url": wsURL})
	go m.relay(s)
	return nil
}

// Disconnect cancels the relay and closes the socket. It is a no-op without
// a session, and close failures are not reported: a socket that is already
// gone is the desired end state.
func (m *Manager) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	s := m.cur
	m.cur = nil
	m.gen++
	// the gauge follows the slot, so it is only written under mu
	obs.ActiveConnections.Set(0)
	m.mu.Unlock()
	if s == nil {
		return nil
	}
	m.teardown(ctx, s)
	return nil
}

func (m *Manager) teardown(ctx context.Context, s *session) {
	s.signal()
	if err := s.stream.Close(); err != nil {
		obs.Debug("manager.close", obs.Fields{"session": s.id, "err": err.Error()})
	}
	t := time.NewTimer(m.closeTimeout)
	defer t.Stop()
	select {
	case <-s.done:
	case <-t.C:
		obs.Warn("manager.relay.slow_exit", obs.Fields{"session": s.id, "timeout": m.closeTimeout.String()})
	case <-ctx.Done():
		obs.Warn("manager.relay.wait_aborted", obs.Fields{"session": s.id, "err": ctx.Err().Error()})
	}
	obs.SessionDurationSeconds.Observe(time.Since(s.started).Seconds())
	obs.Info("manager.disconnected", obs.Fields{"server": s.serverID, "session": s.id, "relayed": s.relayed.Load()})
}

// Close releases the current session; for process shutdown.
func (m *Manager) Close() error {
	return m.Disconnect(context.Background())
}

var closedDone = func() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()

// Done is closed when the current session's relay exits, whether it was
// cancelled or the remote side went away. Without a session it is already closed.
func (m *Manager) Done() <-chan struct{} {
	m.mu.Lock()
	s := m.cur
	m.mu.Unlock()
	if s == nil {
		return closedDone
	}
	return s.done
}

// Status snapshots the slot.
func (m *Manager) Status() proto.Status {
	m.mu.Lock()
	s := m.cur
	m.mu.Unlock()
	if s == nil {
		return proto.Status{}
	}
	return proto.Status{
		Connected:   true,
		ServerID:    s.serverID,
		SessionID:   s.id,
		Endpoint:    s.endpoint,
		ConnectedAt: s.started,
		Relayed:     s.relayed.Load(),
		RelayActive: s.relayActive(),
	}
}
