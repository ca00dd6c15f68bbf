package session_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/tinytelemetry/iris/internal/connection"
	"github.com/tinytelemetry/iris/internal/httpserver"
	"github.com/tinytelemetry/iris/internal/metrics"
	"github.com/tinytelemetry/iris/internal/model"
	"github.com/tinytelemetry/iris/internal/session"
	"github.com/tinytelemetry/iris/internal/socketio"
	"github.com/tinytelemetry/iris/internal/streamapi"
)

// backend is a processing backend double: gin command API plus a
// websocket-only Socket.IO endpoint that emits whatever is queued.
type backend struct {
	events  chan model.LogEntry
	stopped chan string
}

func newBackend() *backend {
	return &backend{events: make(chan model.LogEntry, 64), stopped: make(chan string, 4)}
}

func (b *backend) handler() http.Handler {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/start_stream", func(c *gin.Context) {
		var req struct {
			URL       string `json:"url"`
			DebugMode bool   `json:"debug_mode"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.URL == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "URL is required"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"stream_id": "stream_e2e", "status": "starting"})
	})
	r.POST("/api/stop_stream/:id", func(c *gin.Context) {
		b.stopped <- c.Param("id")
		c.JSON(http.StatusOK, gin.H{"message": "Stream stopping"})
	})
	r.GET("/socket.io/", gin.WrapF(b.serveSocket))
	return r
}

func (b *backend) serveSocket(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("transport") != "websocket" {
		http.Error(w, "websocket only", http.StatusBadRequest)
		return
	}
	up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	_ = conn.WriteMessage(websocket.TextMessage,
		[]byte(`0{"sid":"e2e","upgrades":[],"pingInterval":25000,"pingTimeout":20000,"maxPayload":1000000}`))
	if _, msg, err := conn.ReadMessage(); err != nil || !strings.HasPrefix(string(msg), "40") {
		return
	}
	_ = conn.WriteMessage(websocket.TextMessage, []byte(`40{"sid":"ns-e2e"}`))

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case e := <-b.events:
			payload, _ := json.Marshal([]any{model.LogEvent, e})
			if err := conn.WriteMessage(websocket.TextMessage, append([]byte("42"), payload...)); err != nil {
				return
			}
		}
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out: %s", msg)
}

func detection(frame int64, names ...string) model.LogEntry {
	return model.LogEntry{
		Timestamp:   fmt.Sprintf("2024-01-15T10:30:%02d", frame),
		Message:     fmt.Sprintf("Frame %d", frame),
		Type:        model.TypeDetection,
		StreamID:    "stream_e2e",
		FrameNumber: model.Int64(frame),
		RawText:     fmt.Sprintf("%d: 384x640 %d %s", frame, len(names), strings.Join(names, ", ")),
		Details:     &model.Details{PersonNames: names, ValidDetections: len(names)},
	}
}

func TestPipeline_SocketToSessionToMirror(t *testing.T) {
	be := newBackend()
	srv := httptest.NewServer(be.handler())
	defer srv.Close()

	mt := metrics.New()
	api := streamapi.New(srv.URL, streamapi.WithMetrics(mt))
	sess := session.New(api, session.WithMetrics(mt))
	conn := connection.New(connection.Config{
		URL:        srv.URL,
		Transports: []string{socketio.TransportWebsocket},
		Delay:      10 * time.Millisecond,
	}, sess, connection.WithStateHook(sess.SetConnState), connection.WithMetrics(mt))
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := conn.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitFor(t, 3*time.Second, func() bool {
		snap := sess.Snapshot()
		return snap.ConnState == model.ConnConnected && len(snap.Entries) > 0 &&
			snap.Entries[0].Message == "Socket.IO connected to server"
	}, "socket connect")

	id, err := sess.StartStream(ctx, "rtsp://cam/1", true)
	if err != nil || id != "stream_e2e" {
		t.Fatalf("StartStream = %q, %v", id, err)
	}

	be.events <- detection(2, "Alice")
	be.events <- detection(5)
	be.events <- detection(2, "Alice") // duplicate delivery
	be.events <- detection(3, "Bob")
	be.events <- model.LogEntry{Timestamp: "2024-01-15T10:31:00", Message: "stream warning", Type: "WARN", StreamID: "stream_e2e"}

	waitFor(t, 3*time.Second, func() bool { return sess.Snapshot().Detections == 2 }, "detections counted")
	waitFor(t, 3*time.Second, func() bool { return len(sess.Snapshot().Entries) == 5 }, "entries buffered")

	mirror := httpserver.NewServer("127.0.0.1:0", sess, conn, mt.Handler())
	if err := mirror.Start(); err != nil {
		t.Fatalf("mirror Start: %v", err)
	}
	defer mirror.Stop()

	resp, err := http.Get("http://" + mirror.Addr() + "/api/logs?type=detection")
	if err != nil {
		t.Fatalf("GET logs: %v", err)
	}
	var body struct {
		Logs []model.LogEntry `json:"logs"`
	}
	err = json.NewDecoder(resp.Body).Decode(&body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("decode logs: %v", err)
	}
	var frames []int64
	for _, e := range body.Logs {
		frames = append(frames, e.Frame())
	}
	if fmt.Sprint(frames) != "[5 3 2]" {
		t.Errorf("detection frames = %v, want [5 3 2]", frames)
	}

	snap := sess.Snapshot()
	if snap.Entries[0].Type != model.TypeWarning {
		t.Errorf("unframed warning should be newest, got %+v", snap.Entries[0])
	}
	if got := mt.EntriesDuplicate.Load(); got != 1 {
		t.Errorf("duplicate counter = %d, want 1", got)
	}

	if err := sess.StopStream(ctx); err != nil {
		t.Fatalf("StopStream: %v", err)
	}
	select {
	case got := <-be.stopped:
		if got != "stream_e2e" {
			t.Errorf("stopped %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("backend never received stop")
	}
	if badge := sess.Snapshot().Badge(); badge != "Completed" {
		t.Errorf("badge = %q, want Completed", badge)
	}
}
