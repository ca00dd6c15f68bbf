package session

import "github.com/tinytelemetry/iris/internal/model"

// Snapshot is an immutable view of a Session.
type Snapshot struct {
	Entries       []model.LogEntry
	Capacity      int
	Detections    int
	Phase         model.Phase
	StreamID      string
	AutoDetected  bool
	StatusMessage string
	StatusType    model.StatusType
	ConnState     model.ConnState
	URL           string
	DebugMode     bool
	Version       uint64
}

// IsProcessing reports whether a stream is running or being stopped.
func (s Snapshot) IsProcessing() bool { return s.Phase.Processing() }

// StreamComplete reports whether the bound stream has stopped.
func (s Snapshot) StreamComplete() bool { return s.Phase == model.PhaseStopped }

// Badge returns the stream state label shown next to the stream id.
func (s Snapshot) Badge() string {
	switch {
	case s.StreamID == "":
		return ""
	case s.StreamComplete():
		return "Completed"
	case s.IsProcessing():
		return "Active"
	default:
		return "Stopped"
	}
}
