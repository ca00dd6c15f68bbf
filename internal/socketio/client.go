// Package socketio is a minimal Socket.IO v5 client over Engine.IO v4 with
// websocket and HTTP long-polling transports. It supports what an event
// consumer needs: namespace connect, inbound events, emits, acks for server
// events, heartbeats and disconnect reporting.
package socketio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Disconnect reasons passed to Options.OnDisconnect.
const (
	ReasonServerDisconnect = "io server disconnect"
	ReasonClientDisconnect = "io client disconnect"
	ReasonPingTimeout      = "ping timeout"
	ReasonTransportClose   = "transport close"
	ReasonTransportError   = "transport error"
)

const (
	DefaultPath    = "/socket.io/"
	DefaultTimeout = 20 * time.Second
)

// ErrClosed is returned by operations on a closed client.
var ErrClosed = errors.New("socketio: client closed")

// ConnectError is the server's rejection of a namespace connect.
type ConnectError struct {
	Message string
}

func (e *ConnectError) Error() string { return e.Message }

// Options configures Dial.
type Options struct {
	// Path is the Engine.IO endpoint path. Default "/socket.io/".
	Path string
	// Namespace defaults to the URL path, or "/".
	Namespace string
	// Transports are tried in order. Default websocket, then polling.
	Transports []string
	// Timeout bounds each transport attempt, including the handshake.
	Timeout time.Duration
	Header  http.Header
	// Auth is sent as the namespace connect payload when non-nil.
	Auth any

	HTTPClient *http.Client
	Dialer     *websocket.Dialer

	// OnEvent and OnDisconnect run on the client's read goroutine.
	OnEvent      func(name string, args []json.RawMessage)
	OnDisconnect func(reason string)
}

func (o Options) withDefaults(base *url.URL) Options {
	if o.Path == "" {
		o.Path = DefaultPath
	}
	if o.Namespace == "" {
		o.Namespace = "/"
		if p := strings.TrimRight(base.Path, "/"); p != "" {
			o.Namespace = p
		}
	}
	if len(o.Transports) == 0 {
		o.Transports = DefaultTransports
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

// ParseURL validates a server origin. http, https, ws and wss are accepted.
func ParseURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("socketio: empty server url")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("socketio: parse url: %w", err)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return nil, fmt.Errorf("socketio: unsupported url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("socketio: url %q has no host", raw)
	}
	return u, nil
}

type dialFunc func(ctx context.Context, base *url.URL, opts Options) (transport, error)

var dialers = map[string]dialFunc{
	TransportWebsocket: dialWebsocket,
	TransportPolling:   dialPolling,
}

// Client is a connected Socket.IO client.
type Client struct {
	opts       Options
	tr         transport
	sid        string
	pingWindow time.Duration

	writeMu sync.Mutex
	alive   chan struct{}
	closed  chan struct{}
	done    atomic.Bool
	reason  atomic.Value
}

// Dial connects to the server at rawURL, trying each transport in order.
// A connect_error from the server is returned as *ConnectError without
// trying further transports.
func Dial(ctx context.Context, rawURL string, opts Options) (*Client, error) {
	base, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	opts = opts.withDefaults(base)

	var lastErr error
	for _, name := range opts.Transports {
		dial, ok := dialers[name]
		if !ok {
			lastErr = fmt.Errorf("socketio: unknown transport %q", name)
			continue
		}
		c, err := dialWith(ctx, base, opts, dial)
		if err == nil {
			return c, nil
		}
		lastErr = err
		var ce *ConnectError
		if errors.As(err, &ce) || ctx.Err() != nil {
			break
		}
		log.Printf("socketio: %s transport failed: %v", name, err)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("socketio: no transports configured")
	}
	return nil, lastErr
}

func dialWith(parent context.Context, base *url.URL, opts Options, dial dialFunc) (*Client, error) {
	ctx, cancel := context.WithTimeout(parent, opts.Timeout)
	defer cancel()

	tr, err := dial(ctx, base, opts)
	if err != nil {
		return nil, err
	}
	info, err := negotiate(ctx, tr, opts)
	if err != nil {
		_ = tr.Close()
		return nil, err
	}

	c := &Client{
		opts:       opts,
		tr:         tr,
		sid:        info.SID,
		pingWindow: time.Duration(info.PingInterval+info.PingTimeout) * time.Millisecond,
		alive:      make(chan struct{}, 1),
		closed:     make(chan struct{}),
	}
	go c.readLoop()
	go c.watchPing()
	return c, nil
}

// negotiate runs the handshake, abandoning the transport if ctx expires.
func negotiate(ctx context.Context, tr transport, opts Options) (openInfo, error) {
	type result struct {
		info openInfo
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		info, err := handshake(tr, opts)
		ch <- result{info, err}
	}()

	select {
	case r := <-ch:
		return r.info, r.err
	case <-ctx.Done():
		_ = tr.Close()
		<-ch
		return openInfo{}, fmt.Errorf("socketio: %s handshake: %w", tr.Name(), ctx.Err())
	}
}

func handshake(tr transport, opts Options) (openInfo, error) {
	pkt, err := tr.Read()
	if err != nil {
		return openInfo{}, fmt.Errorf("socketio: %s handshake: %w", tr.Name(), err)
	}
	info, err := parseOpen(pkt)
	if err != nil {
		return openInfo{}, err
	}

	connect := Packet{Type: PacketConnect, Namespace: opts.Namespace}
	if opts.Auth != nil {
		if connect.Data, err = json.Marshal(opts.Auth); err != nil {
			return openInfo{}, fmt.Errorf("socketio: encode auth: %w", err)
		}
	}
	if err := tr.Write(string(eioMessage) + connect.Encode()); err != nil {
		return openInfo{}, err
	}

	for {
		pkt, err := tr.Read()
		if err != nil {
			return openInfo{}, fmt.Errorf("socketio: %s connect: %w", tr.Name(), err)
		}
		if pkt == "" {
			continue
		}
		switch pkt[0] {
		case eioPing:
			if err := tr.Write(string(eioPong)); err != nil {
				return openInfo{}, err
			}
		case eioClose:
			return openInfo{}, fmt.Errorf("socketio: %s connect: %w", tr.Name(), errTransportClosed)
		case eioMessage:
			p, err := DecodePacket(pkt[1:])
			if err != nil {
				return openInfo{}, err
			}
			if p.Namespace != opts.Namespace {
				continue
			}
			switch p.Type {
			case PacketConnect:
				return info, nil
			case PacketConnectError:
				return openInfo{}, &ConnectError{Message: connectErrorMessage(p.Data)}
			}
		}
	}
}

func (c *Client) readLoop() {
	for {
		pkt, err := c.tr.Read()
		if err != nil {
			if errors.Is(err, errTransportClosed) {
				c.shutdown(ReasonTransportClose)
			} else {
				if !c.done.Load() {
					log.Printf("socketio: read: %v", err)
				}
				c.shutdown(ReasonTransportError)
			}
			return
		}
		select {
		case c.alive <- struct{}{}:
		default:
		}
		if pkt == "" {
			continue
		}

		switch pkt[0] {
		case eioPing:
			if err := c.write(string(eioPong)); err != nil {
				c.shutdown(ReasonTransportError)
				return
			}
		case eioClose:
			c.shutdown(ReasonTransportClose)
			return
		case eioMessage:
			if stop := c.handlePacket(pkt[1:]); stop {
				return
			}
		}
	}
}

// handlePacket dispatches one Socket.IO packet and reports whether the
// read loop should stop.
func (c *Client) handlePacket(raw string) bool {
	p, err := DecodePacket(raw)
	if err != nil {
		log.Printf("socketio: dropping packet %q: %v", truncate(raw, 32), err)
		return false
	}
	if p.Namespace != c.opts.Namespace {
		return false
	}

	switch p.Type {
	case PacketEvent:
		name, args, err := parseEvent(p.Data)
		if err != nil {
			log.Printf("socketio: dropping event: %v", err)
			return false
		}
		if p.HasID {
			ack := Packet{Type: PacketAck, Namespace: c.opts.Namespace, ID: p.ID, HasID: true, Data: []byte("[]")}
			_ = c.write(string(eioMessage) + ack.Encode())
		}
		if c.opts.OnEvent != nil {
			c.opts.OnEvent(name, args)
		}
	case PacketDisconnect:
		c.shutdown(ReasonServerDisconnect)
		return true
	case PacketBinaryEvent, PacketBinaryAck:
		log.Printf("socketio: binary packets are not supported, dropped")
	}
	return false
}

func (c *Client) watchPing() {
	if c.pingWindow <= 0 {
		return
	}
	t := time.NewTimer(c.pingWindow)
	defer t.Stop()
	for {
		select {
		case <-c.closed:
			return
		case <-c.alive:
			t.Reset(c.pingWindow)
		case <-t.C:
			c.shutdown(ReasonPingTimeout)
			return
		}
	}
}

func (c *Client) write(pkt string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.tr.Write(pkt)
}

// shutdown closes the client once and reports reason. It may be re-entered
// from OnDisconnect.
func (c *Client) shutdown(reason string) {
	if !c.done.CompareAndSwap(false, true) {
		return
	}
	c.reason.Store(reason)
	close(c.closed)
	_ = c.tr.Close()
	if c.opts.OnDisconnect != nil {
		c.opts.OnDisconnect(reason)
	}
}

// Emit sends an event to the connected namespace.
func (c *Client) Emit(event string, args ...any) error {
	if c.done.Load() {
		return ErrClosed
	}
	data, err := encodeEvent(event, args)
	if err != nil {
		return err
	}
	pkt := Packet{Type: PacketEvent, Namespace: c.opts.Namespace, Data: data}
	if err := c.write(string(eioMessage) + pkt.Encode()); err != nil {
		return fmt.Errorf("socketio: emit %s: %w", event, err)
	}
	return nil
}

// Close disconnects from the namespace and closes the transport.
// OnDisconnect receives "io client disconnect".
func (c *Client) Close() error {
	if c.done.Load() {
		return nil
	}
	pkt := Packet{Type: PacketDisconnect, Namespace: c.opts.Namespace}
	_ = c.write(string(eioMessage) + pkt.Encode())
	c.shutdown(ReasonClientDisconnect)
	return nil
}

// Done is closed when the client disconnects for any reason.
func (c *Client) Done() <-chan struct{} { return c.closed }

// Reason returns the disconnect reason, or "" while connected.
func (c *Client) Reason() string {
	r, _ := c.reason.Load().(string)
	return r
}

// SID returns the Engine.IO session id.
func (c *Client) SID() string { return c.sid }

// Transport returns the name of the negotiated transport.
func (c *Client) Transport() string { return c.tr.Name() }
