package timestamp

import (
	"testing"
	"time"
)

func TestParseTimestamp_ISO8601(t *testing.T) {
	p := NewParser()

	tests := []struct {
		name  string
		input string
	}{
		{"RFC3339", "2024-01-15T10:30:45Z"},
		{"RFC3339Nano", "2024-01-15T10:30:45.123456789Z"},
		{"RFC3339 offset", "2024-01-15T10:30:45+05:00"},
		{"python isoformat", "2024-01-15T10:30:45.123456"},
		{"python isoformat no fraction", "2024-01-15T10:30:45"},
		{"space separated", "2024-01-15 10:30:45"},
		{"millis", "2024-01-15 10:30:45.123"},
		{"comma decimal", "2024-01-15 10:30:45,123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, ok := p.ParseTimestamp(tt.input)
			if !ok {
				t.Fatalf("ParseTimestamp(%q) failed", tt.input)
			}
			if ts.Year() != 2024 || ts.Month() != time.January || ts.Day() != 15 {
				t.Errorf("ParseTimestamp(%q) date = %v, want 2024-01-15", tt.input, ts)
			}
		})
	}
}

func TestParseTimestamp_ZonelessUsesLocation(t *testing.T) {
	p := &Parser{Location: time.UTC}

	ts, ok := p.ParseTimestamp("2024-01-15T10:30:45")
	if !ok {
		t.Fatal("ParseTimestamp failed")
	}
	if ts.Location() != time.UTC || ts.Hour() != 10 {
		t.Errorf("ParseTimestamp = %v, want 10:30:45 UTC", ts)
	}
}

func TestParseTimestamp_UnixSeconds(t *testing.T) {
	p := NewParser()

	// 946684800 = 2000-01-01T00:00:00Z
	ts, ok := p.ParseTimestamp(float64(946684800))
	if !ok {
		t.Fatal("ParseTimestamp unix seconds failed")
	}
	if ts.UTC().Year() != 2000 {
		t.Errorf("unix seconds year = %d, want 2000", ts.UTC().Year())
	}
}

func TestParseTimestamp_UnixMillis(t *testing.T) {
	p := NewParser()

	ts, ok := p.ParseTimestamp(int64(1600000000000))
	if !ok {
		t.Fatal("ParseTimestamp unix millis failed")
	}
	if ts.UTC().Year() != 2020 {
		t.Errorf("unix millis year = %d, want 2020", ts.UTC().Year())
	}
}

func TestParseTimestamp_UnixNanos(t *testing.T) {
	p := NewParser()

	ts, ok := p.ParseTimestamp(float64(1600000000000000000))
	if !ok {
		t.Fatal("ParseTimestamp unix nanos failed")
	}
	if ts.UTC().Year() != 2020 {
		t.Errorf("unix nanos year = %d, want 2020", ts.UTC().Year())
	}
}

func TestParseTimestamp_NumericString(t *testing.T) {
	p := NewParser()

	ts, ok := p.ParseTimestamp("946684800.5")
	if !ok {
		t.Fatal("ParseTimestamp numeric string failed")
	}
	if ts.UTC().Year() != 2000 {
		t.Errorf("numeric string year = %d, want 2000", ts.UTC().Year())
	}
}

func TestParseTimestamp_Invalid(t *testing.T) {
	p := NewParser()

	for _, input := range []any{"", "   ", "not a time", "2024-13-45T99:99:99", float64(-1), struct{}{}} {
		if _, ok := p.ParseTimestamp(input); ok {
			t.Errorf("ParseTimestamp(%v) should fail", input)
		}
	}
}

func TestDisplay(t *testing.T) {
	p := &Parser{Location: time.UTC}

	tests := []struct {
		input string
		want  string
	}{
		{"2024-01-15T10:30:45Z", "10:30:45"},
		{"2024-01-15T10:30:45.999+00:00", "10:30:45"},
		{"garbage", "garbage"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := p.Display(tt.input); got != tt.want {
			t.Errorf("Display(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNow_RoundTrips(t *testing.T) {
	p := NewParser()

	if _, ok := p.ParseTimestamp(Now()); !ok {
		t.Fatalf("Now() = %q is not parseable", Now())
	}
}
