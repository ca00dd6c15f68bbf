package render

import (
	"html"
	"strings"
)

// HTML writes views as an HTML fragment. Each segment is escaped once;
// emphasized segments are wrapped in <mark>.
func HTML(views []EntryView) string {
	var b strings.Builder
	if len(views) == 0 {
		b.WriteString(`<div class="empty">No logs yet</div>`)
		return b.String()
	}
	for _, v := range views {
		b.WriteString(`<div class="entry `)
		b.WriteString(html.EscapeString(string(v.Type)))
		b.WriteString(`"><span class="ts">[`)
		b.WriteString(html.EscapeString(v.Time))
		b.WriteString(`]</span><pre>`)
		for i, line := range v.Lines {
			if i > 0 {
				b.WriteByte('\n')
			}
			writeLineHTML(&b, line)
		}
		b.WriteString(`</pre>`)
		if d := v.Details; d != nil {
			writeDetailsHTML(&b, d)
		}
		b.WriteString("</div>\n")
	}
	return b.String()
}

func writeLineHTML(b *strings.Builder, line Line) {
	for _, s := range line {
		if s.Emphasis {
			b.WriteString("<mark>")
			b.WriteString(html.EscapeString(s.Text))
			b.WriteString("</mark>")
			continue
		}
		b.WriteString(html.EscapeString(s.Text))
	}
}

func writeDetailsHTML(b *strings.Builder, d *DetailsView) {
	b.WriteString(`<div class="details"><span class="caption">`)
	b.WriteString(html.EscapeString(d.Caption()))
	b.WriteString(`</span>`)
	for _, badge := range d.Badges {
		if badge.Person {
			b.WriteString(`<span class="badge person">`)
		} else {
			b.WriteString(`<span class="badge">`)
		}
		b.WriteString(html.EscapeString(badge.Text()))
		b.WriteString(`</span>`)
	}
	if d.Speed != "" {
		b.WriteString(`<div class="speed">`)
		b.WriteString(html.EscapeString(d.Speed))
		b.WriteString(`</div>`)
	}
	if s := d.ShapeLine(); s != "" {
		b.WriteString(`<div class="shape">`)
		b.WriteString(html.EscapeString(s))
		b.WriteString(`</div>`)
	}
	b.WriteString(`</div>`)
}
