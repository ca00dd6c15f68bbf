package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/iris/internal/model"
	"github.com/tinytelemetry/iris/internal/render"
)

// renderLogs renders entries newest first for the logs viewport.
func renderLogs(views []render.EntryView, width int) string {
	if len(views) == 0 {
		return lipgloss.NewStyle().
			Width(width).
			Align(lipgloss.Center).
			Foreground(ColorGray).
			Italic(true).
			Render("No logs yet")
	}
	blocks := make([]string, 0, len(views))
	for _, v := range views {
		blocks = append(blocks, renderEntry(v, width))
	}
	return strings.Join(blocks, "\n")
}

func renderEntry(v render.EntryView, width int) string {
	color := entryColor(v.Type)
	tsStyle := lipgloss.NewStyle().Foreground(ColorGray)
	textStyle := lipgloss.NewStyle().Foreground(color)
	markStyle := lipgloss.NewStyle().Foreground(ColorYellow).Bold(true)

	prefix := tsStyle.Render(v.Time) + " " + typeTag(v.Type) + " "
	indent := strings.Repeat(" ", lipgloss.Width(prefix))

	var lines []string
	for i, line := range v.Lines {
		var b strings.Builder
		for _, seg := range line {
			if seg.Emphasis {
				b.WriteString(markStyle.Render(seg.Text))
			} else {
				b.WriteString(textStyle.Render(seg.Text))
			}
		}
		lead := indent
		if i == 0 {
			lead = prefix
		}
		lines = append(lines, lead+b.String())
	}
	if len(lines) == 0 {
		lines = append(lines, prefix)
	}

	if v.Details != nil {
		lines = append(lines, renderDetails(*v.Details, width-len(indent), indent))
	}

	return lipgloss.NewStyle().MaxWidth(width).Render(strings.Join(lines, "\n"))
}

func typeTag(t model.EntryType) string {
	label := strings.ToUpper(string(t))
	if t == model.TypeDetection {
		label = "DETECT"
	}
	return lipgloss.NewStyle().
		Foreground(entryColor(t)).
		Bold(true).
		Width(8).
		Render("[" + label + "]")
}

func renderDetails(d render.DetailsView, width int, indent string) string {
	muted := lipgloss.NewStyle().Foreground(ColorGray)
	badge := lipgloss.NewStyle().Foreground(ColorGreen)
	person := lipgloss.NewStyle().Foreground(ColorYellow).Bold(true)

	var rows []string
	if d.Empty() {
		rows = append(rows, muted.Italic(true).Render(d.Caption()))
	} else {
		parts := make([]string, 0, len(d.Badges))
		for _, b := range d.Badges {
			style := badge
			if b.Person {
				style = person
			}
			parts = append(parts, style.Render("["+b.Text()+"]"))
		}
		rows = append(rows, muted.Render(d.Caption())+" "+strings.Join(parts, " "))
	}
	if d.Speed != "" {
		rows = append(rows, muted.Render("Speed: "+d.Speed))
	}
	if d.Shape != "" {
		rows = append(rows, muted.Render(d.ShapeLine()))
	}

	block := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), false, false, false, true).
		BorderForeground(ColorCyan).
		PaddingLeft(1).
		MaxWidth(max(width, 10)).
		Render(strings.Join(rows, "\n"))

	out := strings.Split(block, "\n")
	for i := range out {
		out[i] = indent + out[i]
	}
	return strings.Join(out, "\n")
}
