package httpserver

import (
	"context"
	"html/template"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tinytelemetry/iris/internal/model"
	"github.com/tinytelemetry/iris/internal/render"
	"github.com/tinytelemetry/iris/internal/session"
	"github.com/tinytelemetry/iris/internal/timestamp"
)

// SessionView is the narrow session contract required by the HTTP mirror.
type SessionView interface {
	Snapshot() session.Snapshot
}

// Server mirrors the dashboard session over a read-only HTTP API.
type Server struct {
	addr      string
	session   SessionView
	conn      model.Connectivity
	metrics   http.Handler
	parser    *timestamp.Parser
	server    *http.Server
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// NewServer creates a new HTTP mirror. conn and metrics may be nil.
func NewServer(addr string, sess SessionView, conn model.Connectivity, metrics http.Handler) *Server {
	if addr == "" {
		addr = "127.0.0.1:3005"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:    addr,
		session: sess,
		conn:    conn,
		metrics: metrics,
		parser:  timestamp.NewParser(),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/", s.handleIndex)
	r.GET("/api/health", s.handleHealth)
	r.GET("/api/status", s.handleStatus)
	r.GET("/api/logs", s.handleLogs)
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics))
	}

	s.server = &http.Server{
		Handler:           r,
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.addr = listener.Addr().String()
	s.startTime = time.Now()

	go s.server.Serve(listener)
	return nil
}

// Addr returns the listen address; after Start it is the bound address.
func (s *Server) Addr() string { return s.addr }

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) connState() (string, string) {
	if s.conn == nil {
		return model.ConnDisconnected.String(), ""
	}
	return s.conn.State().String(), s.conn.Transport()
}

func (s *Server) handleHealth(c *gin.Context) {
	snap := s.session.Snapshot()
	state, _ := s.connState()
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"uptime":     time.Since(s.startTime).String(),
		"entries":    len(snap.Entries),
		"connection": state,
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	snap := s.session.Snapshot()
	state, transport := s.connState()
	endpoint := ""
	if s.conn != nil {
		endpoint = s.conn.Endpoint()
	}
	c.JSON(http.StatusOK, gin.H{
		"stream_id":       snap.StreamID,
		"phase":           snap.Phase.String(),
		"processing":      snap.IsProcessing(),
		"complete":        snap.StreamComplete(),
		"auto_detected":   snap.AutoDetected,
		"badge":           snap.Badge(),
		"status_message":  snap.StatusMessage,
		"status_type":     snap.StatusType,
		"detections":      snap.Detections,
		"url":             snap.URL,
		"debug_mode":      snap.DebugMode,
		"connection":      state,
		"transport":       transport,
		"socket_endpoint": endpoint,
	})
}

func (s *Server) handleLogs(c *gin.Context) {
	snap := s.session.Snapshot()
	entries := filterEntries(snap.Entries, model.EntryType(c.Query("type")))

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		if limit < len(entries) {
			entries = entries[:limit]
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"stream_id": snap.StreamID,
		"count":     len(entries),
		"capacity":  snap.Capacity,
		"logs":      entries,
	})
}

func filterEntries(entries []model.LogEntry, t model.EntryType) []model.LogEntry {
	if t == "" {
		return entries
	}
	out := make([]model.LogEntry, 0, len(entries))
	for _, e := range entries {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

var indexTemplate = template.Must(template.New("index").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="2">
<title>iris</title>
<style>
body { background:#020617; color:#f1f5f9; font-family:monospace; font-size:13px; margin:1rem; }
.bar span { margin-right:1rem; }
.entry { padding:.4rem; margin-bottom:.4rem; border-radius:4px; background:#1e293b; }
.entry.warning { background:#451a03; color:#fde68a; }
.entry.error { background:#450a0a; color:#fecaca; }
.entry.detection { background:#0f172a; color:#a5f3fc; }
.ts { color:#94a3b8; margin-right:.5rem; }
pre { display:inline; white-space:pre-wrap; margin:0; }
mark { background:none; color:#fde047; font-weight:bold; }
.details { margin:.3rem 0 0 1rem; padding-left:.6rem; border-left:2px solid #0e7490; color:#94a3b8; }
.badge { margin-left:.3rem; padding:0 .3rem; border:1px solid #334155; color:#6ee7b7; }
.badge.person { color:#fde047; font-weight:bold; }
.empty { text-align:center; color:#64748b; }
</style>
</head>
<body>
<div class="bar">
<span>{{.Connection}}</span>
{{if .StreamID}}<span>Stream: {{.StreamID}} ({{.Badge}}){{if .AutoDetected}} Auto-detected{{end}}</span>{{end}}
<span>Detections: {{.Detections}}</span>
<span>{{.Status}}</span>
</div>
{{.Logs}}
</body>
</html>
`))

func (s *Server) handleIndex(c *gin.Context) {
	snap := s.session.Snapshot()
	state, _ := s.connState()
	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	err := indexTemplate.Execute(c.Writer, map[string]any{
		"Connection":   state,
		"StreamID":     snap.StreamID,
		"Badge":        snap.Badge(),
		"AutoDetected": snap.AutoDetected,
		"Detections":   snap.Detections,
		"Status":       snap.StatusMessage,
		// Segments are escaped once by render.HTML.
		"Logs": template.HTML(render.HTML(render.Entries(snap.Entries, s.parser))),
	})
	if err != nil {
		_ = c.Error(err)
	}
}
