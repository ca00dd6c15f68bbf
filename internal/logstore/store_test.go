package logstore

import (
	"fmt"
	"testing"

	"github.com/tinytelemetry/iris/internal/model"
)

func detection(frame int64) model.LogEntry {
	return model.LogEntry{
		Timestamp:   fmt.Sprintf("2024-01-15T10:30:%02d", frame%60),
		Message:     fmt.Sprintf("frame %d", frame),
		Type:        model.TypeDetection,
		FrameNumber: model.Int64(frame),
	}
}

func info(msg string) model.LogEntry {
	return model.LogEntry{Timestamp: "2024-01-15T10:30:00", Message: msg, Type: model.TypeInfo}
}

func frames(entries []model.LogEntry) []int64 {
	out := make([]int64, 0, len(entries))
	for _, e := range entries {
		if e.Ordered() {
			out = append(out, e.Frame())
		}
	}
	return out
}

func TestAdd_OrdersDetectionsDescending(t *testing.T) {
	t.Parallel()

	s := New(10)
	for _, f := range []int64{5, 3, 8, 1} {
		s.Add(detection(f))
	}

	got := frames(s.Entries())
	want := []int64{8, 5, 3, 1}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("frames = %v, want %v", got, want)
	}
}

func TestAdd_NonDetectionsPrepend(t *testing.T) {
	t.Parallel()

	s := New(10)
	s.Add(info("first"))
	s.Add(info("second"))

	entries := s.Entries()
	if entries[0].Message != "second" || entries[1].Message != "first" {
		t.Fatalf("entries = %v, want second then first", entries)
	}
}

func TestAdd_MixedKeepsRelativeOrder(t *testing.T) {
	t.Parallel()

	s := New(10)
	s.Add(detection(2))
	s.Add(info("status"))
	s.Add(detection(7))
	s.Add(detection(4))

	entries := s.Entries()
	if len(entries) != 4 {
		t.Fatalf("Len = %d, want 4", len(entries))
	}
	if entries[2].Message != "status" || entries[3].Frame() != 2 {
		t.Errorf("entries = %v, want status between the newer detections and frame 2", entries)
	}
	if got := fmt.Sprint(frames(entries)); got != "[7 4 2]" {
		t.Errorf("frames = %s, want [7 4 2]", got)
	}
}

func TestAdd_FullOfInfoEvictsOldest(t *testing.T) {
	t.Parallel()

	s := New(3)
	s.Add(info("0"))
	s.Add(info("1"))
	s.Add(info("2"))
	r := s.Add(detection(9))

	if r.Evicted != 1 {
		t.Fatalf("Evicted = %d, want 1", r.Evicted)
	}
	entries := s.Entries()
	if entries[0].Frame() != 9 || !entries[0].Ordered() {
		t.Fatalf("entries[0] = %+v, want the frame 9 detection", entries[0])
	}
	if entries[1].Message != "2" || entries[2].Message != "1" {
		t.Errorf("entries = %v, want info 0 evicted", entries)
	}
}

func TestAdd_FrameZeroIsOrdered(t *testing.T) {
	t.Parallel()

	s := New(10)
	s.Add(detection(0))
	s.Add(detection(3))

	if got := fmt.Sprint(frames(s.Entries())); got != "[3 0]" {
		t.Fatalf("frames = %s, want [3 0]", got)
	}
}

func TestAdd_DetectionWithoutFramePrepends(t *testing.T) {
	t.Parallel()

	s := New(10)
	s.Add(detection(9))
	s.Add(model.LogEntry{Timestamp: "t", Message: "no frame", Type: model.TypeDetection})

	if s.Entries()[0].Message != "no frame" {
		t.Fatalf("entries[0] = %q, want unframed detection on top", s.Entries()[0].Message)
	}
}

func TestAdd_EqualFramesStable(t *testing.T) {
	t.Parallel()

	s := New(10)
	a := detection(4)
	a.Message = "a"
	b := detection(4)
	b.Message = "b"
	s.Add(a)
	s.Add(b)

	entries := s.Entries()
	if entries[0].Message != "a" || entries[1].Message != "b" {
		t.Fatalf("order = %q,%q want a,b", entries[0].Message, entries[1].Message)
	}
}

func TestAdd_Duplicate(t *testing.T) {
	t.Parallel()

	s := New(10)
	e := detection(1)
	if r := s.Add(e); r.Outcome != Accepted {
		t.Fatalf("first Add = %v, want accepted", r.Outcome)
	}
	if r := s.Add(e); r.Outcome != Duplicate {
		t.Fatalf("second Add = %v, want duplicate", r.Outcome)
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1", s.Len())
	}
}

func TestAdd_DuplicateKeyUsesMessagePrefix(t *testing.T) {
	t.Parallel()

	s := New(10)
	a := info("0123456789abcdefghij-tail-one")
	b := info("0123456789abcdefghij-tail-two")
	s.Add(a)
	if r := s.Add(b); r.Outcome != Duplicate {
		t.Fatalf("Add = %v, want duplicate for same 20-char prefix", r.Outcome)
	}
}

func TestAdd_Capacity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		capacity int
		adds     int
		wantLen  int
	}{
		{capacity: 5, adds: 3, wantLen: 3},
		{capacity: 5, adds: 5, wantLen: 5},
		{capacity: 5, adds: 12, wantLen: 5},
		{capacity: 0, adds: 1200, wantLen: model.DefaultLogBuffer},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("cap=%d/adds=%d", tt.capacity, tt.adds), func(t *testing.T) {
			t.Parallel()

			s := New(tt.capacity)
			evicted := 0
			for i := range tt.adds {
				evicted += s.Add(info(fmt.Sprintf("msg %d", i))).Evicted
			}
			if s.Len() != tt.wantLen {
				t.Errorf("Len = %d, want %d", s.Len(), tt.wantLen)
			}
			if evicted != tt.adds-tt.wantLen {
				t.Errorf("evicted = %d, want %d", evicted, tt.adds-tt.wantLen)
			}
		})
	}
}

func TestAdd_CapacityDropsOldestDetections(t *testing.T) {
	t.Parallel()

	s := New(3)
	for _, f := range []int64{1, 2, 3, 4, 5} {
		s.Add(detection(f))
	}
	if got := fmt.Sprint(frames(s.Entries())); got != "[5 4 3]" {
		t.Fatalf("frames = %s, want [5 4 3]", got)
	}
}

func TestReset(t *testing.T) {
	t.Parallel()

	s := New(10)
	e := detection(1)
	s.Add(e)
	s.CountDetection()
	s.Reset()

	if s.Len() != 0 || s.Detections() != 0 {
		t.Fatalf("after Reset Len=%d Detections=%d, want 0/0", s.Len(), s.Detections())
	}
	if s.Seen(e) {
		t.Fatal("dedup set should be cleared by Reset")
	}
	if r := s.Add(e); r.Outcome != Accepted {
		t.Fatalf("re-Add after Reset = %v, want accepted", r.Outcome)
	}
}

func TestEntries_ReturnsCopy(t *testing.T) {
	t.Parallel()

	s := New(10)
	s.Add(info("original"))
	snap := s.Entries()
	snap[0].Message = "mutated"

	if s.Entries()[0].Message != "original" {
		t.Fatal("Entries should return a copy")
	}
}
