package logsource

import (
	"context"

	"github.com/tinytelemetry/iris/internal/model"
)

// EntrySource is a unified interface for offline entry inputs (file, stdin).
type EntrySource interface {
	Entries() <-chan model.LogEntry // closed when the input is exhausted or stopped
	Stop()                          // graceful shutdown
	Name() string                   // "file", "stdin"
}

// Pump feeds every entry from src through sink.OnMessage until the source
// closes or ctx is done. It returns the number of entries delivered.
func Pump(ctx context.Context, src EntrySource, sink model.EntrySink) int {
	n := 0
	for {
		select {
		case <-ctx.Done():
			src.Stop()
			return n
		case e, ok := <-src.Entries():
			if !ok {
				return n
			}
			sink.OnMessage(e)
			n++
		}
	}
}
