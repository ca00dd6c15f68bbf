package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tinytelemetry/iris/internal/metrics"
	"github.com/tinytelemetry/iris/internal/model"
	"github.com/tinytelemetry/iris/internal/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubSession struct {
	snap session.Snapshot
}

func (s stubSession) Snapshot() session.Snapshot { return s.snap }

type stubConn struct{}

func (stubConn) State() model.ConnState    { return model.ConnConnected }
func (stubConn) Reconnect(context.Context) {}
func (stubConn) Endpoint() string          { return "http://localhost:5003" }
func (stubConn) Transport() string         { return "websocket" }

func testSnapshot() session.Snapshot {
	return session.Snapshot{
		StreamID:      "stream_1",
		Phase:         model.PhaseRunning,
		StatusMessage: "Processing stream: rtsp://cam",
		StatusType:    model.StatusSuccess,
		Detections:    2,
		Capacity:      1000,
		Entries: []model.LogEntry{
			{Timestamp: "2024-01-15T10:30:45Z", Message: "Frame 2", Type: model.TypeDetection, FrameNumber: model.Int64(2),
				RawText: "2: 384x640 1 <Alice>", Details: &model.Details{PersonNames: []string{"<Alice>"}, ValidDetections: 1}},
			{Timestamp: "2024-01-15T10:30:44Z", Message: "Starting stream processing for: rtsp://cam", Type: model.TypeInfo},
		},
	}
}

func newTestServer(t *testing.T) (*Server, *gin.Engine) {
	t.Helper()

	srv := NewServer("", stubSession{snap: testSnapshot()}, stubConn{}, metrics.New().Handler())
	srv.startTime = time.Now()

	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/", srv.handleIndex)
	r.GET("/api/health", srv.handleHealth)
	r.GET("/api/status", srv.handleStatus)
	r.GET("/api/logs", srv.handleLogs)
	r.GET("/metrics", gin.WrapH(srv.metrics))

	return srv, r
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	_, r := newTestServer(t)

	w := get(r, "/api/health")
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d, want %d", w.Code, http.StatusOK)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal health: %v", err)
	}
	if body["status"] != "ok" || body["connection"] != "connected" || body["entries"] != float64(2) {
		t.Errorf("health = %v", body)
	}
}

func TestHealthEndpoint_WrongMethod(t *testing.T) {
	_, r := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	// Gin returns 405 for method not allowed when a route exists but not for this method
	if w.Code != http.StatusMethodNotAllowed && w.Code != http.StatusNotFound {
		t.Errorf("health POST status = %d, want 405 or 404", w.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	_, r := newTestServer(t)

	w := get(r, "/api/status")
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}

	want := map[string]interface{}{
		"stream_id":  "stream_1",
		"phase":      "running",
		"processing": true,
		"complete":   false,
		"badge":      "Active",
		"transport":  "websocket",
		"detections": float64(2),
	}
	for k, v := range want {
		if body[k] != v {
			t.Errorf("status[%s] = %v, want %v", k, body[k], v)
		}
	}
}

func TestLogsEndpoint(t *testing.T) {
	_, r := newTestServer(t)

	tests := []struct {
		query     string
		wantCode  int
		wantCount int
	}{
		{"", http.StatusOK, 2},
		{"?type=detection", http.StatusOK, 1},
		{"?limit=1", http.StatusOK, 1},
		{"?limit=0", http.StatusOK, 0},
		{"?limit=abc", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		w := get(r, "/api/logs"+tt.query)
		if w.Code != tt.wantCode {
			t.Errorf("GET /api/logs%s status = %d, want %d", tt.query, w.Code, tt.wantCode)
			continue
		}
		if tt.wantCode != http.StatusOK {
			continue
		}
		var body struct {
			Count int              `json:"count"`
			Logs  []model.LogEntry `json:"logs"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("unmarshal logs: %v", err)
		}
		if body.Count != tt.wantCount || len(body.Logs) != tt.wantCount {
			t.Errorf("GET /api/logs%s count = %d, want %d", tt.query, body.Count, tt.wantCount)
		}
	}
}

func TestIndexPage_EscapesOnce(t *testing.T) {
	_, r := newTestServer(t)

	w := get(r, "/")
	if w.Code != http.StatusOK {
		t.Fatalf("index status = %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "<mark>&lt;Alice&gt;</mark>") {
		t.Errorf("highlighted name missing or mis-escaped:\n%s", body)
	}
	if strings.Contains(body, "&amp;lt;") {
		t.Error("log markup was escaped twice")
	}
	if !strings.Contains(body, "Stream: stream_1 (Active)") {
		t.Error("status bar missing stream badge")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, r := newTestServer(t)

	w := get(r, "/metrics")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "iris_entries_accepted_total") {
		t.Errorf("metrics status = %d", w.Code)
	}
}

func TestStartStop(t *testing.T) {
	srv := NewServer("127.0.0.1:0", stubSession{snap: testSnapshot()}, nil, nil)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Stop()

	resp, err := http.Get("http://" + srv.Addr() + "/api/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d", resp.StatusCode)
	}
}
