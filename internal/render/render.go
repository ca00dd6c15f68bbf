// Package render turns log store snapshots into display-neutral views.
// Output is a list of segments so each sink (terminal, HTML) applies its own
// styling and escaping exactly once.
package render

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/tinytelemetry/iris/internal/model"
	"github.com/tinytelemetry/iris/internal/timestamp"
)

// Segment is a run of text with a single emphasis state.
type Segment struct {
	Text     string
	Emphasis bool
}

// Line is one rendered line.
type Line []Segment

// String returns the line's plain text.
func (l Line) String() string {
	var b strings.Builder
	for _, s := range l {
		b.WriteString(s.Text)
	}
	return b.String()
}

// detectionLineRe matches the detector's per-frame summary, e.g.
// "12: 384x640 2 alice, bob, 41.3ms".
var detectionLineRe = regexp.MustCompile(`^(\d+): (\d+)x(\d+) (\d+) (.+?)(?:, (\d+\.\d+ms))?$`)

// DetectionLine is the parsed first line of a detection's raw text.
type DetectionLine struct {
	Index  int64
	Width  int
	Height int
	Count  int
	Names  []string
	Timing string
}

// Dimensions returns "WxH".
func (d DetectionLine) Dimensions() string {
	return strconv.Itoa(d.Width) + "x" + strconv.Itoa(d.Height)
}

// ParseDetectionLine parses a detector summary line.
func ParseDetectionLine(line string) (DetectionLine, bool) {
	m := detectionLineRe.FindStringSubmatch(line)
	if m == nil {
		return DetectionLine{}, false
	}
	idx, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return DetectionLine{}, false
	}
	w, err1 := strconv.Atoi(m[2])
	h, err2 := strconv.Atoi(m[3])
	n, err3 := strconv.Atoi(m[4])
	if err1 != nil || err2 != nil || err3 != nil {
		return DetectionLine{}, false
	}
	var names []string
	for _, part := range strings.Split(m[5], ",") {
		if part = strings.TrimSpace(part); part != "" {
			names = append(names, part)
		}
	}
	return DetectionLine{
		Index:  idx,
		Width:  w,
		Height: h,
		Count:  n,
		Names:  names,
		Timing: m[6],
	}, true
}

// Highlight emphasizes whole-word, case-sensitive occurrences of names.
// Where names overlap at one position the longest wins.
func Highlight(line string, names []string) Line {
	if len(names) == 0 || line == "" {
		return Line{{Text: line}}
	}

	var out Line
	plainStart := 0
	for i := 0; i < len(line); {
		best := ""
		if wordBoundaryBefore(line, i) {
			for _, n := range names {
				if n == "" || len(n) <= len(best) {
					continue
				}
				if strings.HasPrefix(line[i:], n) && wordBoundaryAfter(line, i+len(n)) {
					best = n
				}
			}
		}
		if best != "" {
			if plainStart < i {
				out = append(out, Segment{Text: line[plainStart:i]})
			}
			out = append(out, Segment{Text: best, Emphasis: true})
			i += len(best)
			plainStart = i
			continue
		}
		_, size := utf8.DecodeRuneInString(line[i:])
		i += size
	}
	if plainStart < len(line) {
		out = append(out, Segment{Text: line[plainStart:]})
	}
	return out
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

func wordBoundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !isWordRune(r)
}

func wordBoundaryAfter(s string, j int) bool {
	if j >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[j:])
	return !isWordRune(r)
}

// Badge is one item in a detection's details block.
type Badge struct {
	Label  string
	Count  int
	Person bool
}

// Text returns the badge caption.
func (b Badge) Text() string {
	if b.Person {
		return b.Label
	}
	return b.Label + " (" + strconv.Itoa(b.Count) + ")"
}

// DetailsView is the summary block shown under a detection.
type DetailsView struct {
	Badges []Badge // class badges, or person badges when no classes
	Speed  string
	Shape  string
}

// Persons reports whether the badges are recognized subjects.
func (d DetailsView) Persons() bool {
	return len(d.Badges) > 0 && d.Badges[0].Person
}

// Empty reports whether nothing was detected.
func (d DetailsView) Empty() bool { return len(d.Badges) == 0 }

// Caption returns the lead-in for the badge row.
func (d DetailsView) Caption() string {
	switch {
	case d.Empty():
		return "No objects detected"
	case d.Persons():
		return "Detected persons:"
	default:
		return "Detected:"
	}
}

// ShapeLine returns "Image shape: <shape>", or "" without a shape.
func (d DetailsView) ShapeLine() string {
	if d.Shape == "" {
		return ""
	}
	return "Image shape: " + d.Shape
}

// EntryView is a display-ready log entry.
type EntryView struct {
	Time     string
	Type     model.EntryType
	StreamID string
	Lines    []Line
	Details  *DetailsView
}

// Entry renders a single log entry.
func Entry(e model.LogEntry, p *timestamp.Parser) EntryView {
	v := EntryView{
		Time:     p.Display(e.Timestamp),
		Type:     e.Type,
		StreamID: e.StreamID,
	}

	names := e.PersonNames()
	if e.RawText == "" {
		v.Lines = []Line{Highlight(e.Message, names)}
	} else {
		for i, line := range strings.Split(e.RawText, "\n") {
			if i == 0 && e.Type == model.TypeDetection && len(names) > 0 {
				if d, ok := ParseDetectionLine(line); ok {
					v.Lines = append(v.Lines, summaryLine(d))
					continue
				}
			}
			v.Lines = append(v.Lines, Highlight(line, names))
		}
	}

	if e.Type == model.TypeDetection {
		if e.Details != nil {
			v.Details = details(e.Details)
		} else {
			v.Details = &DetailsView{}
		}
	}
	return v
}

// summaryLine emphasizes every name of a parsed detector line.
func summaryLine(d DetectionLine) Line {
	prefix := strconv.FormatInt(d.Index, 10) + ": " + d.Dimensions() + " " + strconv.Itoa(d.Count) + " "
	out := Line{{Text: prefix}}
	for i, n := range d.Names {
		out = append(out, Segment{Text: n, Emphasis: true})
		if i < len(d.Names)-1 {
			out = append(out, Segment{Text: ", "})
		}
	}
	if d.Timing != "" {
		out = append(out, Segment{Text: ", " + d.Timing})
	}
	return out
}

func details(d *model.Details) *DetailsView {
	v := &DetailsView{Speed: d.Speed, Shape: d.Shape}
	switch {
	case len(d.Classes) > 0:
		for name, n := range d.Classes {
			v.Badges = append(v.Badges, Badge{Label: name, Count: n})
		}
		sort.Slice(v.Badges, func(i, j int) bool { return v.Badges[i].Label < v.Badges[j].Label })
	case len(d.PersonNames) > 0:
		for _, name := range d.PersonNames {
			v.Badges = append(v.Badges, Badge{Label: name, Person: true})
		}
	}
	return v
}

// Entries renders a snapshot in order.
func Entries(entries []model.LogEntry, p *timestamp.Parser) []EntryView {
	out := make([]EntryView, len(entries))
	for i, e := range entries {
		out[i] = Entry(e, p)
	}
	return out
}

// ClassCount is an aggregated detection class total.
type ClassCount struct {
	Name  string
	Count int
}

// ClassTotals sums details.classes across entries, largest first.
func ClassTotals(entries []model.LogEntry) []ClassCount {
	totals := make(map[string]int)
	for _, e := range entries {
		if e.Type != model.TypeDetection || e.Details == nil {
			continue
		}
		for name, n := range e.Details.Classes {
			totals[name] += n
		}
	}
	out := make([]ClassCount, 0, len(totals))
	for name, n := range totals {
		out = append(out, ClassCount{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}
