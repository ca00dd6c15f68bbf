package model

import (
	"strconv"
	"strings"
)

// EntryType discriminates rendering and state-machine effects of a LogEntry.
type EntryType string

const (
	TypeInfo      EntryType = "info"
	TypeWarning   EntryType = "warning"
	TypeError     EntryType = "error"
	TypeDetection EntryType = "detection"
)

// LogEntry is one received or locally synthesized event.
// It is the canonical type for transport, storage, and display.
type LogEntry struct {
	Timestamp   string    `json:"timestamp"`
	Message     string    `json:"message"`
	Type        EntryType `json:"type"`
	StreamID    string    `json:"stream_id,omitempty"`
	FrameNumber *int64    `json:"frame_number,omitempty"`
	Details     *Details  `json:"details,omitempty"`
	RawText     string    `json:"raw_text,omitempty"`
}

// Details is the structured payload attached to detection entries.
type Details struct {
	Classes         map[string]int `json:"classes,omitempty"`
	PersonNames     []string       `json:"person_names,omitempty"`
	ValidDetections int            `json:"valid_detections,omitempty"`
	Speed           string         `json:"speed,omitempty"`
	Shape           string         `json:"shape,omitempty"`
}

// Frame returns the frame number, or 0 when absent.
func (e LogEntry) Frame() int64 {
	if e.FrameNumber == nil {
		return 0
	}
	return *e.FrameNumber
}

// Ordered reports whether the entry takes part in frame ordering:
// a detection that carries a frame number. A present frame 0 counts;
// only a nil FrameNumber is unordered.
func (e LogEntry) Ordered() bool {
	return e.Type == TypeDetection && e.FrameNumber != nil
}

// ValidDetections returns details.valid_detections, or 0 without details.
func (e LogEntry) ValidDetections() int {
	if e.Details == nil {
		return 0
	}
	return e.Details.ValidDetections
}

// PersonNames returns the recognized subject names, if any.
func (e LogEntry) PersonNames() []string {
	if e.Details == nil {
		return nil
	}
	return e.Details.PersonNames
}

// DedupKey derives the key used to suppress duplicate deliveries:
// timestamp, frame number (0 when absent) and the first 20 characters of
// the message.
func (e LogEntry) DedupKey() string {
	msg := e.Message
	if r := []rune(msg); len(r) > 20 {
		msg = string(r[:20])
	}
	var b strings.Builder
	b.Grow(len(e.Timestamp) + len(msg) + 24)
	b.WriteString(e.Timestamp)
	b.WriteByte('-')
	b.WriteString(strconv.FormatInt(e.Frame(), 10))
	b.WriteByte('-')
	b.WriteString(msg)
	return b.String()
}

// Int64 returns a pointer to v, for building entries with frame numbers.
func Int64(v int64) *int64 { return &v }

// ConnState is the state of the backend event connection.
type ConnState int

const (
	ConnDisconnected ConnState = iota
	ConnConnecting
	ConnConnected
)

func (s ConnState) String() string {
	switch s {
	case ConnConnecting:
		return "connecting"
	case ConnConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Phase is the stream-processing state machine.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseStarting
	PhaseRunning
	PhaseStopping
	PhaseStopped
	PhaseError
)

// Processing reports whether the phase counts as actively processing.
func (p Phase) Processing() bool {
	return p == PhaseRunning || p == PhaseStopping
}

func (p Phase) String() string {
	switch p {
	case PhaseStarting:
		return "starting"
	case PhaseRunning:
		return "running"
	case PhaseStopping:
		return "stopping"
	case PhaseStopped:
		return "stopped"
	case PhaseError:
		return "error"
	default:
		return "idle"
	}
}

// StatusType selects how the status banner is rendered.
type StatusType string

const (
	StatusDefault StatusType = "default"
	StatusSuccess StatusType = "success"
	StatusWarning StatusType = "warning"
	StatusError   StatusType = "error"
)

// URLKind distinguishes live RTSP sources from file/HTTP video.
type URLKind string

const (
	URLKindRTSP  URLKind = "rtsp"
	URLKindVideo URLKind = "video"
)

// DetectURLKind classifies a stream URL by scheme.
func DetectURLKind(url string) URLKind {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(url)), "rtsp://") {
		return URLKindRTSP
	}
	return URLKindVideo
}

// SampleURL returns the sample URL for a kind.
func SampleURL(kind URLKind) string {
	if kind == URLKindRTSP {
		return SampleRTSPURL
	}
	return SampleVideoURL
}

// StreamInfo is the backend's view of one processing session.
type StreamInfo struct {
	StreamID  string `json:"stream_id"`
	Status    string `json:"status"`
	URL       string `json:"url"`
	StartTime string `json:"start_time"`
	DebugMode bool   `json:"debug_mode,omitempty"`
}
