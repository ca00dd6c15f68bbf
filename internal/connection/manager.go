// Package connection owns the backend event connection: one live Socket.IO
// client at a time, bounded reconnection, and state reporting.
package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/tinytelemetry/iris/internal/logparse"
	"github.com/tinytelemetry/iris/internal/metrics"
	"github.com/tinytelemetry/iris/internal/model"
	"github.com/tinytelemetry/iris/internal/socketio"
	"github.com/tinytelemetry/iris/internal/timestamp"
)

// ErrClosed is returned by Connect after Close.
var ErrClosed = errors.New("connection: manager closed")

// Conn is the subset of *socketio.Client the manager needs.
type Conn interface {
	Close() error
	Transport() string
}

// DialFunc opens a connection. opts carries the event and disconnect hooks.
type DialFunc func(ctx context.Context, url string, opts socketio.Options) (Conn, error)

// DialSocketIO is the production DialFunc.
func DialSocketIO(ctx context.Context, url string, opts socketio.Options) (Conn, error) {
	return socketio.Dial(ctx, url, opts)
}

// Config bounds connection attempts.
type Config struct {
	URL        string
	Attempts   int           // reconnection attempts after the initial one
	Delay      time.Duration // fixed delay between attempts
	Timeout    time.Duration // per attempt
	Transports []string
}

func (c Config) withDefaults() Config {
	if c.Attempts <= 0 {
		c.Attempts = model.DefaultReconnectAttempts
	}
	if c.Delay <= 0 {
		c.Delay = model.DefaultReconnectDelay
	}
	if c.Timeout <= 0 {
		c.Timeout = model.DefaultConnectTimeout
	}
	if len(c.Transports) == 0 {
		c.Transports = socketio.DefaultTransports
	}
	return c
}

// Option configures a Manager.
type Option func(*Manager)

// WithDialer replaces the Socket.IO dialer.
func WithDialer(d DialFunc) Option {
	return func(m *Manager) { m.dial = d }
}

// WithStateHook registers a callback for connection state changes.
func WithStateHook(fn func(model.ConnState)) Option {
	return func(m *Manager) { m.onState = fn }
}

// WithMetrics records connection counters.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// Manager is safe for concurrent use. Each Connect starts a new generation;
// callbacks from earlier generations are ignored.
type Manager struct {
	cfg     Config
	sink    model.EntrySink
	dial    DialFunc
	onState func(model.ConnState)
	metrics *metrics.Metrics

	mu        sync.Mutex
	gen       uint64
	state     model.ConnState
	conn      Conn
	transport string
	cancel    context.CancelFunc
	closed    bool
	wg        sync.WaitGroup
}

// New creates a Manager. Nothing is dialed until Connect.
func New(cfg Config, sink model.EntrySink, opts ...Option) *Manager {
	m := &Manager{
		cfg:  cfg.withDefaults(),
		sink: sink,
		dial: DialSocketIO,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.metrics == nil {
		m.metrics = metrics.New()
	}
	return m
}

// State returns the current connection state.
func (m *Manager) State() model.ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Endpoint returns the configured socket origin.
func (m *Manager) Endpoint() string { return m.cfg.URL }

// Transport returns the negotiated transport, or "" while not connected.
func (m *Manager) Transport() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transport
}

// Connect supersedes any existing connection and starts connecting in the
// background. It returns an error only for setup failures such as an invalid
// URL; attempt failures are reported as log entries.
func (m *Manager) Connect(ctx context.Context) error {
	m.teardown()

	if _, err := socketio.ParseURL(m.cfg.URL); err != nil {
		m.mu.Lock()
		gen := m.gen
		m.mu.Unlock()
		m.setState(gen, model.ConnDisconnected)
		m.emit(model.TypeError, "Error initializing Socket.IO: "+err.Error())
		return fmt.Errorf("connection: connect: %w", err)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.gen++
	gen := m.gen
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.wg.Add(1)
	m.mu.Unlock()

	m.setState(gen, model.ConnConnecting)
	go m.run(runCtx, gen)
	return nil
}

// Reconnect closes the current connection and connects again.
func (m *Manager) Reconnect(ctx context.Context) {
	m.emit(model.TypeInfo, "Manually reconnecting Socket.IO...")
	if err := m.Connect(ctx); err != nil {
		log.Printf("connection: reconnect: %v", err)
	}
}

// Close releases the connection and stops reconnection. It is idempotent.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.teardown()
	m.wg.Wait()

	m.mu.Lock()
	changed := m.state != model.ConnDisconnected
	m.state = model.ConnDisconnected
	hook := m.onState
	m.mu.Unlock()
	metrics.SetBool(&m.metrics.Connected, false)
	if changed && hook != nil {
		hook(model.ConnDisconnected)
	}
	return nil
}

// teardown invalidates the current generation and releases its resources.
func (m *Manager) teardown() {
	m.mu.Lock()
	m.gen++
	cancel, conn := m.cancel, m.conn
	m.cancel, m.conn, m.transport = nil, nil, ""
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			log.Printf("connection: close: %v", err)
		}
	}
}

func (m *Manager) current(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return gen == m.gen && !m.closed
}

func (m *Manager) setState(gen uint64, s model.ConnState) {
	m.mu.Lock()
	if gen != m.gen || m.state == s {
		m.mu.Unlock()
		return
	}
	m.state = s
	hook := m.onState
	m.mu.Unlock()

	metrics.SetBool(&m.metrics.Connected, s == model.ConnConnected)
	if hook != nil {
		hook(s)
	}
}

// adopt installs conn as the live connection if gen is still current.
func (m *Manager) adopt(gen uint64, conn Conn) bool {
	m.mu.Lock()
	if gen != m.gen || m.closed {
		m.mu.Unlock()
		return false
	}
	m.conn = conn
	m.transport = conn.Transport()
	m.mu.Unlock()
	m.setState(gen, model.ConnConnected)
	return true
}

// release clears conn if it is still the live connection.
func (m *Manager) release(gen uint64, conn Conn) {
	m.mu.Lock()
	if gen == m.gen && m.conn == conn {
		m.conn, m.transport = nil, ""
	}
	m.mu.Unlock()
}

func (m *Manager) run(ctx context.Context, gen uint64) {
	defer m.wg.Done()

	for {
		conn, lost, ok := m.connectWithRetry(ctx, gen)
		if !ok {
			return
		}

		var reason string
		select {
		case <-ctx.Done():
			return
		case reason = <-lost:
		}
		if !m.current(gen) {
			return
		}

		m.metrics.Disconnects.Add(1)
		m.release(gen, conn)
		m.setState(gen, model.ConnDisconnected)
		m.emit(model.TypeWarning, "Socket.IO disconnected: "+reason)

		// A deliberate disconnect is not retried until Reconnect.
		if reason == socketio.ReasonServerDisconnect || reason == socketio.ReasonClientDisconnect {
			return
		}
		m.setState(gen, model.ConnConnecting)
	}
}

// connectWithRetry makes the initial attempt plus cfg.Attempts retries.
func (m *Manager) connectWithRetry(ctx context.Context, gen uint64) (Conn, <-chan string, bool) {
	for attempt := 0; attempt <= m.cfg.Attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, nil, false
			case <-time.After(m.cfg.Delay):
			}
		}
		if !m.current(gen) {
			return nil, nil, false
		}

		m.metrics.ConnectAttempts.Add(1)
		lost := make(chan string, 1)
		conn, err := m.dial(ctx, m.cfg.URL, m.socketOptions(gen, lost))
		if err != nil {
			if ctx.Err() != nil || !m.current(gen) {
				return nil, nil, false
			}
			m.metrics.ConnectFailures.Add(1)
			m.emit(model.TypeError, "Socket.IO connection error: "+err.Error())
			continue
		}

		if !m.adopt(gen, conn) {
			_ = conn.Close()
			return nil, nil, false
		}
		log.Printf("connection: connected to %s via %s", m.cfg.URL, conn.Transport())
		m.emit(model.TypeInfo, "Socket.IO connected to server")
		return conn, lost, true
	}

	m.setState(gen, model.ConnDisconnected)
	m.emit(model.TypeError, fmt.Sprintf("Socket.IO reconnection failed after %d attempts", m.cfg.Attempts))
	return nil, nil, false
}

func (m *Manager) socketOptions(gen uint64, lost chan<- string) socketio.Options {
	return socketio.Options{
		Transports: m.cfg.Transports,
		Timeout:    m.cfg.Timeout,
		OnEvent: func(name string, args []json.RawMessage) {
			if m.current(gen) {
				m.handleEvent(name, args)
			}
		},
		OnDisconnect: func(reason string) {
			select {
			case lost <- reason:
			default:
			}
		},
	}
}

func (m *Manager) handleEvent(name string, args []json.RawMessage) {
	if name != model.LogEvent || len(args) == 0 {
		return
	}
	var entry model.LogEntry
	if err := json.Unmarshal(args[0], &entry); err != nil {
		log.Printf("connection: decode %s: %v", name, err)
		return
	}
	m.sink.OnMessage(logparse.Normalize(entry))
}

func (m *Manager) emit(t model.EntryType, msg string) {
	m.sink.AddEntry(model.LogEntry{
		Timestamp: timestamp.Now(),
		Message:   msg,
		Type:      t,
	})
}
