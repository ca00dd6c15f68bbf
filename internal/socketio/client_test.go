package socketio_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tinytelemetry/iris/internal/socketio"
)

// fakeServer is a single-session Engine.IO v4 server.
type fakeServer struct {
	noWebsocket  bool
	connectReply string
	pingInterval int
	pingTimeout  int

	outbox   chan string
	received chan string
	once     sync.Once
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		connectReply: `40{"sid":"ns-1"}`,
		pingInterval: 25000,
		pingTimeout:  20000,
		outbox:       make(chan string, 32),
		received:     make(chan string, 32),
	}
}

func (f *fakeServer) openPacket() string {
	return fmt.Sprintf(`0{"sid":"eio-1","upgrades":[],"pingInterval":%d,"pingTimeout":%d,"maxPayload":1000000}`,
		f.pingInterval, f.pingTimeout)
}

func (f *fakeServer) onClientPacket(pkt string) {
	f.received <- pkt
	if strings.HasPrefix(pkt, "40") {
		f.outbox <- f.connectReply
	}
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("transport") {
	case "websocket":
		if f.noWebsocket {
			http.Error(w, "websocket disabled", http.StatusBadRequest)
			return
		}
		f.serveWebsocket(w, r)
	case "polling":
		f.servePolling(w, r)
	default:
		http.Error(w, "bad transport", http.StatusBadRequest)
	}
}

func (f *fakeServer) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	_ = conn.WriteMessage(websocket.TextMessage, []byte(f.openPacket()))
	go func() {
		for {
			select {
			case <-done:
				return
			case pkt := <-f.outbox:
				if err := conn.WriteMessage(websocket.TextMessage, []byte(pkt)); err != nil {
					return
				}
			}
		}
	}()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		f.onClientPacket(string(data))
	}
}

func (f *fakeServer) servePolling(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		body, _ := io.ReadAll(r.Body)
		for _, pkt := range strings.Split(string(body), "\x1e") {
			f.onClientPacket(pkt)
		}
		_, _ = io.WriteString(w, "ok")
		return
	}
	if r.URL.Query().Get("sid") == "" {
		_, _ = io.WriteString(w, f.openPacket())
		return
	}
	select {
	case pkt := <-f.outbox:
		pkts := []string{pkt}
		for len(f.outbox) > 0 {
			pkts = append(pkts, <-f.outbox)
		}
		_, _ = io.WriteString(w, strings.Join(pkts, "\x1e"))
	case <-time.After(100 * time.Millisecond):
		_, _ = io.WriteString(w, "6")
	case <-r.Context().Done():
	}
}

func (f *fakeServer) expectReceived(t *testing.T, want string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case pkt := <-f.received:
			if pkt == want {
				return
			}
		case <-deadline:
			t.Fatalf("server never received %q", want)
		}
	}
}

type recorder struct {
	events  chan string
	reasons chan string
}

func newRecorder() *recorder {
	return &recorder{events: make(chan string, 16), reasons: make(chan string, 4)}
}

func (r *recorder) options(transports ...string) socketio.Options {
	return socketio.Options{
		Transports: transports,
		Timeout:    2 * time.Second,
		OnEvent: func(name string, args []json.RawMessage) {
			var parts []string
			for _, a := range args {
				parts = append(parts, string(a))
			}
			r.events <- name + " " + strings.Join(parts, ",")
		},
		OnDisconnect: func(reason string) { r.reasons <- reason },
	}
}

func (r *recorder) nextEvent(t *testing.T) string {
	t.Helper()
	select {
	case e := <-r.events:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return ""
	}
}

func (r *recorder) nextReason(t *testing.T) string {
	t.Helper()
	select {
	case reason := <-r.reasons:
		return reason
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for disconnect")
		return ""
	}
}

func TestDial_WebsocketEvent(t *testing.T) {
	fake := newFakeServer()
	srv := httptest.NewServer(fake)
	defer srv.Close()

	rec := newRecorder()
	c, err := socketio.Dial(context.Background(), srv.URL, rec.options())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	if c.Transport() != socketio.TransportWebsocket {
		t.Errorf("Transport = %q, want websocket", c.Transport())
	}
	if c.SID() != "eio-1" {
		t.Errorf("SID = %q", c.SID())
	}
	fake.expectReceived(t, "40")

	fake.outbox <- `42["log_message",{"message":"hi"}]`
	if got := rec.nextEvent(t); got != `log_message {"message":"hi"}` {
		t.Errorf("event = %q", got)
	}
}

func TestDial_AnswersPing(t *testing.T) {
	fake := newFakeServer()
	srv := httptest.NewServer(fake)
	defer srv.Close()

	rec := newRecorder()
	c, err := socketio.Dial(context.Background(), srv.URL, rec.options(socketio.TransportWebsocket))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	fake.outbox <- "2"
	fake.expectReceived(t, "3")
}

func TestDial_AcksServerEvent(t *testing.T) {
	fake := newFakeServer()
	srv := httptest.NewServer(fake)
	defer srv.Close()

	rec := newRecorder()
	c, err := socketio.Dial(context.Background(), srv.URL, rec.options(socketio.TransportWebsocket))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	fake.outbox <- `425["ping_me"]`
	rec.nextEvent(t)
	fake.expectReceived(t, "435[]")
}

func TestDial_ServerDisconnect(t *testing.T) {
	fake := newFakeServer()
	srv := httptest.NewServer(fake)
	defer srv.Close()

	rec := newRecorder()
	c, err := socketio.Dial(context.Background(), srv.URL, rec.options(socketio.TransportWebsocket))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	fake.outbox <- "41"
	if got := rec.nextReason(t); got != socketio.ReasonServerDisconnect {
		t.Errorf("reason = %q, want %q", got, socketio.ReasonServerDisconnect)
	}
	<-c.Done()
	if c.Reason() != socketio.ReasonServerDisconnect {
		t.Errorf("Reason() = %q", c.Reason())
	}
}

func TestDial_PingTimeout(t *testing.T) {
	fake := newFakeServer()
	fake.pingInterval = 30
	fake.pingTimeout = 30
	srv := httptest.NewServer(fake)
	defer srv.Close()

	rec := newRecorder()
	c, err := socketio.Dial(context.Background(), srv.URL, rec.options(socketio.TransportWebsocket))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	if got := rec.nextReason(t); got != socketio.ReasonPingTimeout {
		t.Errorf("reason = %q, want %q", got, socketio.ReasonPingTimeout)
	}
}

func TestDial_ConnectError(t *testing.T) {
	fake := newFakeServer()
	fake.connectReply = `44{"message":"not authorized"}`
	srv := httptest.NewServer(fake)
	defer srv.Close()

	rec := newRecorder()
	_, err := socketio.Dial(context.Background(), srv.URL, rec.options())
	var ce *socketio.ConnectError
	if !errors.As(err, &ce) {
		t.Fatalf("Dial err = %v, want *ConnectError", err)
	}
	if ce.Message != "not authorized" {
		t.Errorf("Message = %q", ce.Message)
	}
}

func TestDial_PollingFallback(t *testing.T) {
	fake := newFakeServer()
	fake.noWebsocket = true
	srv := httptest.NewServer(fake)
	defer srv.Close()

	rec := newRecorder()
	c, err := socketio.Dial(context.Background(), srv.URL, rec.options())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	if c.Transport() != socketio.TransportPolling {
		t.Fatalf("Transport = %q, want polling", c.Transport())
	}

	fake.outbox <- `42["log_message",{"frame_number":4}]`
	if got := rec.nextEvent(t); got != `log_message {"frame_number":4}` {
		t.Errorf("event = %q", got)
	}

	if err := c.Emit("hello", "world"); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	fake.expectReceived(t, `42["hello","world"]`)
}

func TestClose(t *testing.T) {
	fake := newFakeServer()
	srv := httptest.NewServer(fake)
	defer srv.Close()

	rec := newRecorder()
	c, err := socketio.Dial(context.Background(), srv.URL, rec.options(socketio.TransportWebsocket))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := rec.nextReason(t); got != socketio.ReasonClientDisconnect {
		t.Errorf("reason = %q, want %q", got, socketio.ReasonClientDisconnect)
	}
	if err := c.Emit("x"); !errors.Is(err, socketio.ErrClosed) {
		t.Errorf("Emit after Close = %v, want ErrClosed", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
}

func TestDial_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	rec := newRecorder()
	if _, err := socketio.Dial(context.Background(), url, rec.options()); err == nil {
		t.Fatal("Dial to a closed server should fail")
	}
}

func TestParseURL(t *testing.T) {
	t.Parallel()

	valid := []string{"http://localhost:5003", "https://model.viewer.in", "ws://h:1/ns", " wss://h "}
	for _, raw := range valid {
		if _, err := socketio.ParseURL(raw); err != nil {
			t.Errorf("ParseURL(%q): %v", raw, err)
		}
	}
	invalid := []string{"", "localhost:5003", "ftp://h", "http://", "::bad"}
	for _, raw := range invalid {
		if _, err := socketio.ParseURL(raw); err == nil {
			t.Errorf("ParseURL(%q) should fail", raw)
		}
	}
}
