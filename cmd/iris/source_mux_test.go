package main

import (
	"context"
	"testing"
	"time"

	"github.com/tinytelemetry/iris/internal/model"
)

type fakeSource struct {
	name    string
	entries chan model.LogEntry
	stopped chan struct{}
}

func newFakeSource(name string, buffer int) *fakeSource {
	return &fakeSource{
		name:    name,
		entries: make(chan model.LogEntry, buffer),
		stopped: make(chan struct{}),
	}
}

func (s *fakeSource) Entries() <-chan model.LogEntry { return s.entries }
func (s *fakeSource) Name() string                   { return s.name }

func (s *fakeSource) Stop() {
	select {
	case <-s.stopped:
		return
	default:
		close(s.stopped)
		close(s.entries)
	}
}

func TestSourceMultiplexer_ForwardsFromAllSources(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := newFakeSource("a", 3)
	b := newFakeSource("b", 2)

	mux := NewSourceMultiplexer(ctx, []NamedEntrySource{a, b}, 16)
	mux.Start()
	defer mux.Stop()

	a.entries <- model.LogEntry{Message: "alpha"}
	a.entries <- model.LogEntry{} // empty entries are skipped
	b.entries <- model.LogEntry{Message: "beta"}
	a.Stop()
	b.Stop()

	got := map[string]bool{}
	timeout := time.After(2 * time.Second)
	for {
		select {
		case e, ok := <-mux.Entries():
			if !ok {
				if len(got) != 2 || !got["alpha"] || !got["beta"] {
					t.Fatalf("multiplexed entries = %+v, want alpha and beta", got)
				}
				return
			}
			got[e.Message] = true
		case <-timeout:
			t.Fatalf("timed out waiting for multiplexed entries: %+v", got)
		}
	}
}

func TestSourceMultiplexer_StopInvokesSourceStop(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := newFakeSource("x", 1)
	mux := NewSourceMultiplexer(ctx, []NamedEntrySource{src}, 8)
	mux.Start()

	mux.Stop()

	select {
	case <-src.stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("expected source Stop() to be called")
	}
}

func TestSourceMultiplexer_NoSourcesClosesImmediately(t *testing.T) {
	t.Parallel()

	mux := NewSourceMultiplexer(context.Background(), nil, 0)
	mux.Start()

	if mux.HasSources() {
		t.Fatal("HasSources should be false")
	}
	if _, ok := <-mux.Entries(); ok {
		t.Fatal("entries channel should be closed")
	}
	mux.Stop()
}
