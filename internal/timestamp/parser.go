package timestamp

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// layouts are tried in order. Backends in the field emit Python isoformat()
// strings without a zone as often as RFC 3339.
var layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05Z0700",
}

// Parser converts event timestamps to time.Time. Zone-less values are
// interpreted in Location.
type Parser struct {
	Location *time.Location
}

// NewParser returns a parser that reads zone-less timestamps as local time.
func NewParser() *Parser {
	return &Parser{Location: time.Local}
}

// ParseTimestamp parses a string or numeric timestamp.
// Numeric values are unix epochs; the unit is inferred from magnitude.
func (p *Parser) ParseTimestamp(value any) (time.Time, bool) {
	switch v := value.(type) {
	case string:
		return p.parseString(v)
	case float64:
		return parseUnix(v)
	case int64:
		return parseUnix(float64(v))
	case int:
		return parseUnix(float64(v))
	default:
		return time.Time{}, false
	}
}

func (p *Parser) parseString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	// Comma decimal separators ("10:30:45,123") are common in European locales.
	if i := strings.LastIndexByte(s, ','); i > 0 && i > strings.LastIndexByte(s, ':') {
		s = s[:i] + "." + s[i+1:]
	}
	loc := p.Location
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return parseUnix(f)
	}
	return time.Time{}, false
}

// parseUnix treats values <= 1e10 as seconds, <= 1e13 as milliseconds,
// <= 1e16 as microseconds, and anything larger as nanoseconds.
func parseUnix(v float64) (time.Time, bool) {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return time.Time{}, false
	}
	switch {
	case v <= 1e10:
		sec, frac := math.Modf(v)
		return time.Unix(int64(sec), int64(frac*1e9)), true
	case v <= 1e13:
		return time.UnixMilli(int64(v)), true
	case v <= 1e16:
		return time.UnixMicro(int64(v)), true
	default:
		return time.Unix(0, int64(v)), true
	}
}

// Display renders raw as a local wall-clock time (15:04:05). Unparseable
// input is returned unchanged.
func (p *Parser) Display(raw string) string {
	t, ok := p.parseString(raw)
	if !ok {
		return raw
	}
	loc := p.Location
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format("15:04:05")
}

// Now returns the current time formatted the way locally synthesized
// entries are stamped.
func Now() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
