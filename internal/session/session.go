// Package session is the dashboard's single state container: the log store,
// the stream-processing phase, the bound stream id and the operator-facing
// status line. All mutation is serialized behind one mutex that is never held
// across network calls; observers are notified through coalescing channels.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/tinytelemetry/iris/internal/logstore"
	"github.com/tinytelemetry/iris/internal/metrics"
	"github.com/tinytelemetry/iris/internal/model"
	"github.com/tinytelemetry/iris/internal/timestamp"
)

var (
	// ErrEmptyURL is returned by StartStream for a blank URL.
	ErrEmptyURL = errors.New("session: empty stream url")
	// ErrNotConnected is returned by StartStream while the event connection
	// is not established.
	ErrNotConnected = errors.New("session: not connected")
)

// Status messages shown to the operator.
const (
	StatusReady        = "Ready to process stream"
	StatusEnterURL     = "Please enter a URL"
	StatusNotConnected = "Socket.IO is not connected. Please reconnect first."
	StatusConnecting   = "Connecting to stream..."
	StatusStopping     = "Stopping stream..."
	StatusStopped      = "Stream processing stopped"
	StatusStreamFailed = "Stream reported an error"
)

// Option configures a Session.
type Option func(*Session)

// WithCapacity sets the log buffer capacity.
func WithCapacity(n int) Option {
	return func(s *Session) { s.capacity = n }
}

// WithMetrics records ingestion and session gauges.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// Session implements model.EntrySink.
type Session struct {
	api      model.StreamAPI
	metrics  *metrics.Metrics
	capacity int

	mu           sync.Mutex
	store        *logstore.Store
	phase        model.Phase
	streamID     string
	autoDetected bool
	status       string
	statusType   model.StatusType
	conn         model.ConnState
	url          string
	debugMode    bool
	version      uint64
	subs         map[chan struct{}]struct{}
}

var _ model.EntrySink = (*Session)(nil)

// New creates an idle session that issues commands through api.
func New(api model.StreamAPI, opts ...Option) *Session {
	s := &Session{
		api:        api,
		status:     StatusReady,
		statusType: model.StatusDefault,
		subs:       make(map[chan struct{}]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	s.store = logstore.New(s.capacity)
	return s
}

// OnMessage ingests an entry received from the backend: stream auto-detect,
// cross-stream filtering, dedup, ordered insertion, then state side effects.
func (s *Session) OnMessage(e model.LogEntry) {
	s.mu.Lock()
	defer s.changed()

	if s.streamID == "" && e.StreamID != "" {
		s.streamID = e.StreamID
		log.Printf("session: auto-detected stream %s", e.StreamID)
		if e.Type == model.TypeDetection {
			s.phase = model.PhaseRunning
			s.autoDetected = true
			s.setStatus("Auto-detected stream: "+e.StreamID, model.StatusSuccess)
		}
	}

	if s.streamID != "" && e.StreamID != "" && e.StreamID != s.streamID {
		s.metrics.EntriesCrossStream.Add(1)
		return
	}

	if !s.insert(e) {
		return
	}

	switch {
	case e.Type == model.TypeError:
		s.metrics.UpstreamErrors.Add(1)
		s.phase = model.PhaseError
		s.setStatus("Error: "+e.Message, model.StatusError)
	case e.Type == model.TypeInfo && e.Message == model.StreamStoppedMessage:
		s.phase = model.PhaseStopped
		s.setStatus(StatusStopped, model.StatusDefault)
	case e.Type == model.TypeDetection && e.ValidDetections() > 0:
		s.store.CountDetection()
		s.metrics.Detections.Add(1)
	}
}

// AddEntry inserts a locally synthesized entry. It is deduplicated like any
// other entry but never changes session state.
func (s *Session) AddEntry(e model.LogEntry) {
	s.mu.Lock()
	defer s.changed()
	s.insert(e)
}

// StartStream validates input, resets the session and asks the backend to
// start processing url. The session is reset before the request is sent.
func (s *Session) StartStream(ctx context.Context, url string, debugMode bool) (string, error) {
	url = strings.TrimSpace(url)

	s.mu.Lock()
	if url == "" {
		s.setStatus(StatusEnterURL, model.StatusError)
		s.changed()
		return "", ErrEmptyURL
	}
	if s.conn != model.ConnConnected {
		s.setStatus(StatusNotConnected, model.StatusError)
		s.changed()
		return "", ErrNotConnected
	}

	s.store.Reset()
	s.streamID = ""
	s.autoDetected = false
	s.phase = model.PhaseStarting
	s.url = url
	s.debugMode = debugMode
	s.setStatus(StatusConnecting, model.StatusDefault)
	s.changed()

	id, err := s.api.StartStream(ctx, url, debugMode)

	s.mu.Lock()
	defer s.changed()
	if err != nil {
		msg := err.Error()
		s.phase = model.PhaseError
		s.setStatus("Error: "+msg, model.StatusError)
		s.insert(s.entry(model.TypeError, "Error starting stream: "+msg, ""))
		return "", fmt.Errorf("session: start stream: %w", err)
	}

	s.streamID = id
	s.phase = model.PhaseRunning
	s.setStatus("Processing stream: "+url, model.StatusSuccess)
	s.insert(s.entry(model.TypeInfo, "Starting stream processing for: "+url, id))
	log.Printf("session: started stream %s for %s", id, url)
	return id, nil
}

// StopStream asks the backend to stop the bound stream. It is a no-op unless
// a stream is bound and processing.
func (s *Session) StopStream(ctx context.Context) error {
	s.mu.Lock()
	id := s.streamID
	if id == "" || !s.phase.Processing() {
		s.mu.Unlock()
		return nil
	}
	s.phase = model.PhaseStopping
	s.setStatus(StatusStopping, model.StatusWarning)
	s.changed()

	err := s.api.StopStream(ctx, id)

	s.mu.Lock()
	defer s.changed()
	if err != nil {
		msg := err.Error()
		s.phase = model.PhaseError
		s.setStatus("Error: "+msg, model.StatusError)
		s.insert(s.entry(model.TypeError, "Error stopping stream: "+msg, id))
		return fmt.Errorf("session: stop stream: %w", err)
	}

	s.phase = model.PhaseStopped
	s.setStatus(StatusStopping, model.StatusDefault)
	s.insert(s.entry(model.TypeInfo, "Requested to stop stream: "+id, id))
	log.Printf("session: requested stop of %s", id)
	return nil
}

// ClearLogs empties the store, dedup set and counter, then records that it
// did so.
func (s *Session) ClearLogs() {
	s.mu.Lock()
	defer s.changed()
	s.store.Reset()
	s.insert(s.entry(model.TypeInfo, "Logs cleared", ""))
}

// Refresh polls the backend for the bound stream's status and reflects a
// terminal status locally. It returns the backend's view.
func (s *Session) Refresh(ctx context.Context) (model.StreamInfo, error) {
	s.mu.Lock()
	id := s.streamID
	s.mu.Unlock()
	if id == "" {
		return model.StreamInfo{}, nil
	}

	info, err := s.api.StreamStatus(ctx, id)
	if err != nil {
		return model.StreamInfo{}, fmt.Errorf("session: refresh %s: %w", id, err)
	}

	s.mu.Lock()
	defer s.changed()
	if s.streamID != id || !s.phase.Processing() {
		return info, nil
	}
	switch info.Status {
	case "stopped":
		s.phase = model.PhaseStopped
		s.setStatus(StatusStopped, model.StatusDefault)
	case "error":
		s.phase = model.PhaseError
		s.setStatus("Error: "+StatusStreamFailed, model.StatusError)
	}
	return info, nil
}

// Backfill fetches the bound stream's retained entries from the backend and
// ingests them in order. It returns the number of entries fetched.
func (s *Session) Backfill(ctx context.Context) (int, error) {
	s.mu.Lock()
	id := s.streamID
	s.mu.Unlock()
	if id == "" {
		return 0, nil
	}

	entries, err := s.api.StreamLogs(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("session: backfill %s: %w", id, err)
	}
	for _, e := range entries {
		if e.StreamID == "" {
			e.StreamID = id
		}
		s.OnMessage(e)
	}
	return len(entries), nil
}

// SetConnState records the event connection state. It is wired as the
// connection manager's state hook.
func (s *Session) SetConnState(state model.ConnState) {
	s.mu.Lock()
	defer s.changed()
	s.conn = state
}

// SetURL records the operator's current input without starting anything.
func (s *Session) SetURL(url string) {
	s.mu.Lock()
	defer s.changed()
	s.url = url
}

// SetDebugMode toggles the debug flag sent with the next start.
func (s *Session) SetDebugMode(on bool) {
	s.mu.Lock()
	defer s.changed()
	s.debugMode = on
}

// Snapshot returns a consistent copy of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Entries:       s.store.Entries(),
		Capacity:      s.store.Capacity(),
		Detections:    s.store.Detections(),
		Phase:         s.phase,
		StreamID:      s.streamID,
		AutoDetected:  s.autoDetected,
		StatusMessage: s.status,
		StatusType:    s.statusType,
		ConnState:     s.conn,
		URL:           s.url,
		DebugMode:     s.debugMode,
		Version:       s.version,
	}
}

// Subscribe returns a channel that receives a value after state changes.
// Sends never block: bursts coalesce into one pending notification.
func (s *Session) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()
	return ch, func() {
		s.mu.Lock()
		delete(s.subs, ch)
		s.mu.Unlock()
	}
}

// insert adds e to the store and records the outcome. Callers hold mu.
func (s *Session) insert(e model.LogEntry) bool {
	res := s.store.Add(e)
	if res.Outcome == logstore.Duplicate {
		s.metrics.EntriesDuplicate.Add(1)
		return false
	}
	s.metrics.EntriesAccepted.Add(1)
	if res.Evicted > 0 {
		s.metrics.EntriesEvicted.Add(uint64(res.Evicted))
	}
	return true
}

func (s *Session) setStatus(msg string, t model.StatusType) {
	s.status = msg
	s.statusType = t
}

func (s *Session) entry(t model.EntryType, msg, streamID string) model.LogEntry {
	return model.LogEntry{
		Timestamp: timestamp.Now(),
		Message:   msg,
		Type:      t,
		StreamID:  streamID,
	}
}

// changed bumps the version, updates gauges, notifies subscribers and
// releases mu. Callers hold mu.
func (s *Session) changed() {
	s.version++
	s.metrics.BufferedEntries.Store(uint64(s.store.Len()))
	metrics.SetBool(&s.metrics.Processing, s.phase.Processing())
	for ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	s.mu.Unlock()
}
