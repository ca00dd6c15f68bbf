package socketio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Transport names, in the default negotiation order.
const (
	TransportWebsocket = "websocket"
	TransportPolling   = "polling"
)

// DefaultTransports is the order transports are tried in.
var DefaultTransports = []string{TransportWebsocket, TransportPolling}

// errTransportClosed marks an orderly end of the underlying transport.
var errTransportClosed = errors.New("socketio: transport closed")

// transport moves Engine.IO text packets. Read is called from a single
// goroutine; Write and Close may be called concurrently with it.
type transport interface {
	Name() string
	Read() (string, error)
	Write(pkt string) error
	Close() error
}

// engineURL builds the Engine.IO endpoint for base.
func engineURL(base *url.URL, path, transportName, sid string) *url.URL {
	u := *base
	u.Path = path
	u.RawPath = ""
	u.Fragment = ""
	q := u.Query()
	q.Set("EIO", "4")
	q.Set("transport", transportName)
	if sid != "" {
		q.Set("sid", sid)
	}
	u.RawQuery = q.Encode()
	if transportName == TransportWebsocket {
		switch u.Scheme {
		case "http":
			u.Scheme = "ws"
		case "https":
			u.Scheme = "wss"
		}
	} else {
		switch u.Scheme {
		case "ws":
			u.Scheme = "http"
		case "wss":
			u.Scheme = "https"
		}
	}
	return &u
}

// wsTransport carries one Engine.IO packet per websocket text message.
type wsTransport struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	closed atomic.Bool
}

func dialWebsocket(ctx context.Context, base *url.URL, opts Options) (transport, error) {
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	target := engineURL(base, opts.Path, TransportWebsocket, "")
	conn, resp, err := dialer.DialContext(ctx, target.String(), opts.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("socketio: websocket dial: %w", err)
	}
	return &wsTransport{conn: conn}, nil
}

func (t *wsTransport) Name() string { return TransportWebsocket }

func (t *wsTransport) Read() (string, error) {
	for {
		kind, data, err := t.conn.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if t.closed.Load() || errors.As(err, &ce) || errors.Is(err, io.ErrUnexpectedEOF) {
				return "", errTransportClosed
			}
			return "", fmt.Errorf("socketio: websocket read: %w", err)
		}
		// Binary attachments are not used by this client.
		if kind == websocket.TextMessage {
			return string(data), nil
		}
	}
}

func (t *wsTransport) Write(pkt string) error {
	if t.closed.Load() {
		return ErrClosed
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.conn.WriteMessage(websocket.TextMessage, []byte(pkt)); err != nil {
		return fmt.Errorf("socketio: websocket write: %w", err)
	}
	return nil
}

func (t *wsTransport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	t.mu.Lock()
	_ = t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	t.mu.Unlock()
	return t.conn.Close()
}

// pollingTransport implements HTTP long-polling: a GET blocks until the
// server has packets, a POST delivers client packets.
type pollingTransport struct {
	client *http.Client
	base   *url.URL
	path   string
	header http.Header
	sid    string

	ctx    context.Context
	cancel context.CancelFunc
	queue  []string
	seq    atomic.Uint64
	closed atomic.Bool
}

func dialPolling(ctx context.Context, base *url.URL, opts Options) (transport, error) {
	client := opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	lifetime, cancel := context.WithCancel(context.Background())
	t := &pollingTransport{
		client: client,
		base:   base,
		path:   opts.Path,
		header: opts.Header,
		ctx:    lifetime,
		cancel: cancel,
	}

	pkts, err := t.poll(ctx)
	if err != nil {
		cancel()
		return nil, err
	}
	if len(pkts) == 0 {
		cancel()
		return nil, fmt.Errorf("socketio: polling handshake: empty payload")
	}
	info, err := parseOpen(pkts[0])
	if err != nil {
		cancel()
		return nil, err
	}
	t.sid = info.SID
	// The open packet is replayed so the handshake reads it like any other
	// transport.
	t.queue = pkts
	return t, nil
}

func (t *pollingTransport) Name() string { return TransportPolling }

func (t *pollingTransport) target() string {
	u := engineURL(t.base, t.path, TransportPolling, t.sid)
	q := u.Query()
	q.Set("t", strconv.FormatUint(t.seq.Add(1), 36))
	u.RawQuery = q.Encode()
	return u.String()
}

func (t *pollingTransport) poll(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.target(), nil)
	if err != nil {
		return nil, fmt.Errorf("socketio: poll request: %w", err)
	}
	for k, v := range t.header {
		req.Header[k] = v
	}
	resp, err := t.client.Do(req)
	if err != nil {
		if t.closed.Load() {
			return nil, errTransportClosed
		}
		return nil, fmt.Errorf("socketio: poll: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("socketio: poll read: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("socketio: poll: status %d: %s", resp.StatusCode, truncate(strings.TrimSpace(string(body)), 64))
	}
	return splitPayload(string(body)), nil
}

func (t *pollingTransport) Read() (string, error) {
	for len(t.queue) == 0 {
		if t.closed.Load() {
			return "", errTransportClosed
		}
		pkts, err := t.poll(t.ctx)
		if err != nil {
			return "", err
		}
		t.queue = pkts
	}
	pkt := t.queue[0]
	t.queue = t.queue[1:]
	return pkt, nil
}

func (t *pollingTransport) Write(pkt string) error {
	if t.closed.Load() {
		return ErrClosed
	}
	return t.post(t.ctx, pkt)
}

func (t *pollingTransport) post(ctx context.Context, payload string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.target(), strings.NewReader(payload))
	if err != nil {
		return fmt.Errorf("socketio: post request: %w", err)
	}
	for k, v := range t.header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "text/plain;charset=UTF-8")
	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("socketio: post: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("socketio: post: status %d", resp.StatusCode)
	}
	return nil
}

func (t *pollingTransport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := t.post(ctx, string(eioClose))
	t.cancel()
	return err
}
