package logsource

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/tinytelemetry/iris/internal/logparse"
	"github.com/tinytelemetry/iris/internal/model"
)

const (
	// DefaultReplayBuffer is the default channel buffer size for replayed entries.
	DefaultReplayBuffer = 1024

	// DefaultReplayMaxLineSize is the default maximum size (in bytes) of a single line.
	DefaultReplayMaxLineSize = 1024 * 1024 // 1MB
)

// ReplayConfig holds tunable parameters for a replay source.
type ReplayConfig struct {
	BufferSize  int
	MaxLineSize int
	// Interval paces delivery; zero replays as fast as the consumer reads.
	Interval time.Duration
}

// ReplaySource reads newline-delimited entries. JSON object lines are decoded
// as log entries; any other non-empty line becomes an entry whose type is
// inferred from its text.
type ReplaySource struct {
	name   string
	ch     chan model.LogEntry
	cancel context.CancelFunc
	closer io.Closer
}

// Open replays the file at path, or stdin when path is "-".
func Open(ctx context.Context, path string, conf ...ReplayConfig) (*ReplaySource, error) {
	if path == "-" {
		return NewReplaySource(ctx, "stdin", os.Stdin, conf...), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("logsource: open %s: %w", path, err)
	}
	return newReplaySource(ctx, "file", f, f, conf...), nil
}

// NewReplaySource reads from r in a background goroutine. r is not closed.
func NewReplaySource(ctx context.Context, name string, r io.Reader, conf ...ReplayConfig) *ReplaySource {
	return newReplaySource(ctx, name, r, nil, conf...)
}

// newReplaySource closes closer, if any, once the read goroutine exits.
func newReplaySource(ctx context.Context, name string, r io.Reader, closer io.Closer, conf ...ReplayConfig) *ReplaySource {
	bufferSize := DefaultReplayBuffer
	maxLineSize := DefaultReplayMaxLineSize
	var interval time.Duration
	if len(conf) > 0 {
		if conf[0].BufferSize > 0 {
			bufferSize = conf[0].BufferSize
		}
		if conf[0].MaxLineSize > 0 {
			maxLineSize = conf[0].MaxLineSize
		}
		interval = conf[0].Interval
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &ReplaySource{
		name:   name,
		ch:     make(chan model.LogEntry, bufferSize),
		cancel: cancel,
		closer: closer,
	}
	go s.read(ctx, r, maxLineSize, interval)
	return s
}

func (s *ReplaySource) read(ctx context.Context, r io.Reader, maxLineSize int, interval time.Duration) {
	defer close(s.ch)
	defer func() {
		if s.closer != nil {
			_ = s.closer.Close()
		}
	}()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var tick <-chan time.Time
	if interval > 0 {
		t := time.NewTicker(interval)
		defer t.Stop()
		tick = t.C
	}

	var stamps stamper
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		entry, err := parseLineAt(line, stamps.next())
		if err != nil {
			log.Printf("logsource: %s line %d: %v", s.name, lineNo, err)
			continue
		}
		if tick != nil {
			select {
			case <-tick:
			case <-ctx.Done():
				return
			}
		}
		select {
		case s.ch <- entry:
		case <-ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			log.Printf("logsource: %s line exceeded max size (%d bytes), stopping replay", s.name, maxLineSize)
			return
		}
		log.Printf("logsource: %s scanner error: %v", s.name, err)
	}
}

// ParseLine converts one replay line into an entry. Lines without a
// timestamp are stamped with the current time.
func ParseLine(line string) (model.LogEntry, error) {
	return parseLineAt(line, time.Now())
}

func parseLineAt(line string, now time.Time) (model.LogEntry, error) {
	if !strings.HasPrefix(line, "{") {
		return model.LogEntry{
			Timestamp: formatStamp(now),
			Message:   line,
			Type:      logparse.TypeFromText(line),
		}, nil
	}

	var entry model.LogEntry
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		return model.LogEntry{}, fmt.Errorf("decode entry: %w", err)
	}
	if entry.Message == "" && entry.RawText != "" {
		entry.Message, _, _ = strings.Cut(entry.RawText, "\n")
	}
	if entry.Timestamp == "" {
		entry.Timestamp = formatStamp(now)
	}
	return logparse.Normalize(entry), nil
}

func formatStamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000Z07:00")
}

// stamper hands out strictly increasing microsecond stamps, so identical
// lines replayed back to back keep distinct dedup keys.
type stamper struct {
	last time.Time
}

func (s *stamper) next() time.Time {
	now := time.Now().Truncate(time.Microsecond)
	if !now.After(s.last) {
		now = s.last.Add(time.Microsecond)
	}
	s.last = now
	return now
}

func (s *ReplaySource) Entries() <-chan model.LogEntry { return s.ch }
func (s *ReplaySource) Stop()                          { s.cancel() }
func (s *ReplaySource) Name() string                   { return s.name }
