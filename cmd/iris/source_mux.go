package main

import (
	"context"
	"sync"

	"github.com/tinytelemetry/iris/internal/model"
)

// DefaultMuxBuffer is the default channel buffer size for the source multiplexer.
const DefaultMuxBuffer = 4096

// SourceMultiplexer merges multiple entry sources into a single read-only stream.
type SourceMultiplexer struct {
	ctx    context.Context
	cancel context.CancelFunc

	sources []NamedEntrySource
	entries chan model.LogEntry

	startOnce sync.Once
	stopOnce  sync.Once
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewSourceMultiplexer(parent context.Context, sources []NamedEntrySource, buffer int) *SourceMultiplexer {
	if buffer <= 0 {
		buffer = DefaultMuxBuffer
	}
	ctx, cancel := context.WithCancel(parent)
	return &SourceMultiplexer{
		ctx:     ctx,
		cancel:  cancel,
		sources: sources,
		entries: make(chan model.LogEntry, buffer),
	}
}

func (m *SourceMultiplexer) Start() {
	m.startOnce.Do(func() {
		if len(m.sources) == 0 {
			m.closeOutput()
			return
		}

		for _, src := range m.sources {
			m.wg.Add(1)
			go m.forward(src)
		}

		go func() {
			m.wg.Wait()
			m.closeOutput()
		}()
	})
}

func (m *SourceMultiplexer) Stop() {
	m.stopOnce.Do(func() {
		m.cancel()
		for _, src := range m.sources {
			src.Stop()
		}
		m.wg.Wait()
		m.closeOutput()
	})
}

func (m *SourceMultiplexer) HasSources() bool {
	return len(m.sources) > 0
}

// SourceNames lists the sources in registration order.
func (m *SourceMultiplexer) SourceNames() []string {
	names := make([]string, 0, len(m.sources))
	for _, src := range m.sources {
		names = append(names, src.Name())
	}
	return names
}

// Entries implements logsource.EntrySource so the mux can be pumped like
// any single source.
func (m *SourceMultiplexer) Entries() <-chan model.LogEntry {
	return m.entries
}

func (m *SourceMultiplexer) Name() string { return "mux" }

func (m *SourceMultiplexer) forward(src NamedEntrySource) {
	defer m.wg.Done()

	in := src.Entries()
	for {
		select {
		case <-m.ctx.Done():
			return
		case e, ok := <-in:
			if !ok {
				return
			}
			if e.Message == "" && e.RawText == "" {
				continue
			}
			select {
			case m.entries <- e:
			case <-m.ctx.Done():
				return
			}
		}
	}
}

func (m *SourceMultiplexer) closeOutput() {
	m.closeOnce.Do(func() {
		close(m.entries)
	})
}
