// Package logstore holds the session-scoped log buffer: a bounded,
// most-recent-first sequence of entries plus the dedup set and the detection
// counter that must be reset together with it.
package logstore

import (
	"slices"
	"sort"

	"github.com/tinytelemetry/iris/internal/model"
)

// Outcome reports what Add did with an entry.
type Outcome int

const (
	Accepted Outcome = iota
	Duplicate
)

func (o Outcome) String() string {
	if o == Duplicate {
		return "duplicate"
	}
	return "accepted"
}

// Result is returned by Add.
type Result struct {
	Outcome Outcome
	Evicted int // entries dropped from the tail to honor capacity
}

// Store is not safe for concurrent use; the owning session serializes access.
//
// Invariant: the subsequence of ordered entries (detections with a frame
// number) is always sorted by descending frame number. Other entries keep
// the slot they were prepended into.
type Store struct {
	capacity   int
	entries    []model.LogEntry
	seen       map[string]struct{}
	detections int
}

// New returns an empty store. A non-positive capacity selects the default.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = model.DefaultLogBuffer
	}
	return &Store{
		capacity: capacity,
		entries:  make([]model.LogEntry, 0, min(capacity, 256)),
		seen:     make(map[string]struct{}),
	}
}

// Capacity returns the maximum number of retained entries.
func (s *Store) Capacity() int { return s.capacity }

// Len returns the number of retained entries.
func (s *Store) Len() int { return len(s.entries) }

// Detections returns the number of detection events with at least one valid
// detection accepted since the last reset.
func (s *Store) Detections() int { return s.detections }

// CountDetection increments the detection counter.
func (s *Store) CountDetection() { s.detections++ }

// Reset empties entries, the dedup set and the counter in one step.
func (s *Store) Reset() {
	clear(s.entries)
	s.entries = s.entries[:0]
	s.seen = make(map[string]struct{})
	s.detections = 0
}

// Seen reports whether an entry with the same dedup key was accepted since
// the last reset.
func (s *Store) Seen(e model.LogEntry) bool {
	_, ok := s.seen[e.DedupKey()]
	return ok
}

// Add deduplicates and inserts e. Ordered detections are merge-inserted into
// the detection subsequence; everything else is prepended. The store is then
// truncated to capacity, dropping the oldest entries at the tail.
func (s *Store) Add(e model.LogEntry) Result {
	key := e.DedupKey()
	if _, dup := s.seen[key]; dup {
		return Result{Outcome: Duplicate}
	}
	s.seen[key] = struct{}{}

	// Frame 0 is ordered too; see model.LogEntry.Ordered.
	if e.Ordered() {
		s.insertOrdered(e)
	} else {
		s.entries = slices.Insert(s.entries, 0, e)
	}

	var evicted int
	if over := len(s.entries) - s.capacity; over > 0 {
		clear(s.entries[s.capacity:])
		s.entries = s.entries[:s.capacity]
		evicted = over
	}
	return Result{Outcome: Accepted, Evicted: evicted}
}

// insertOrdered opens a slot at the head and shifts the ordered subsequence
// toward it so e lands after every entry with a frame >= its own. Eviction
// then drops from the tail, never the entry that just arrived unless it
// sorts last.
func (s *Store) insertOrdered(e model.LogEntry) {
	s.entries = slices.Insert(s.entries, 0, e)
	slots := make([]int, 0, 16)
	for i := range s.entries {
		if s.entries[i].Ordered() {
			slots = append(slots, i)
		}
	}

	// slots[0] is the new head slot; slots[1:] hold the existing,
	// descending subsequence.
	frame := e.Frame()
	k := sort.Search(len(slots)-1, func(k int) bool {
		return s.entries[slots[k+1]].Frame() < frame
	})
	for j := 0; j < k; j++ {
		s.entries[slots[j]] = s.entries[slots[j+1]]
	}
	s.entries[slots[k]] = e
}

// Entries returns a copy of the retained entries, top (newest) first.
func (s *Store) Entries() []model.LogEntry {
	return slices.Clone(s.entries)
}
