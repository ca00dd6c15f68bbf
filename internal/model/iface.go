package model

import "context"

// EntrySink receives log entries. OnMessage runs the full ingestion pipeline
// (auto-detect, stream filtering, dedup, ordering, side effects); AddEntry
// only deduplicates and inserts, for locally synthesized entries.
type EntrySink interface {
	OnMessage(entry LogEntry)
	AddEntry(entry LogEntry)
}

// StreamAPI issues commands to the processing backend.
type StreamAPI interface {
	StartStream(ctx context.Context, url string, debugMode bool) (string, error)
	StopStream(ctx context.Context, streamID string) error
	StreamStatus(ctx context.Context, streamID string) (StreamInfo, error)
	ActiveStreams(ctx context.Context) (map[string]StreamInfo, error)
	StreamLogs(ctx context.Context, streamID string) ([]LogEntry, error)
}

// Connectivity exposes the event connection lifecycle to the UI.
type Connectivity interface {
	State() ConnState
	Reconnect(ctx context.Context)
	Endpoint() string
	Transport() string
}
