package tui

import (
	"fmt"
	"strings"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/iris/internal/render"
)

const (
	chartBarWidth = 3
	chartBarGap   = 1
)

var chartColors = []lipgloss.Color{"39", "42", "214", "171", "203", "45", "220", "141"}

// renderClassChart draws buffered detection totals per class as a bar chart
// with a count legend underneath.
func renderClassChart(totals []render.ClassCount, width, height int) string {
	title := lipgloss.NewStyle().Foreground(ColorBlue).Bold(true).Render("Detections by class")
	if len(totals) == 0 || width < chartBarWidth || height < 6 {
		empty := lipgloss.NewStyle().Foreground(ColorGray).Italic(true).Render("No detections yet")
		return lipgloss.JoinVertical(lipgloss.Left, title, empty)
	}

	maxBars := max(1, (width+chartBarGap)/(chartBarWidth+chartBarGap))
	shown := totals[:min(len(totals), maxBars)]

	legendRows := min(len(shown), max(0, height/3))
	chartHeight := height - 1 - legendRows

	bc := barchart.New(width, chartHeight,
		barchart.WithBarGap(chartBarGap),
		barchart.WithBarWidth(chartBarWidth),
	)
	for i, c := range shown {
		color := chartColors[i%len(chartColors)]
		bc.Push(barchart.BarData{
			Label: abbreviate(c.Name, chartBarWidth),
			Values: []barchart.BarValue{
				{Name: c.Name, Value: float64(c.Count), Style: lipgloss.NewStyle().Foreground(color).Background(color)},
			},
		})
	}
	bc.Draw()

	legend := make([]string, 0, legendRows)
	for i := 0; i < legendRows; i++ {
		c := shown[i]
		style := lipgloss.NewStyle().Foreground(chartColors[i%len(chartColors)])
		legend = append(legend, style.Render(fmt.Sprintf("%-*s %6d", max(1, width-7), abbreviate(c.Name, width-7), c.Count)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, title, bc.View(), strings.Join(legend, "\n"))
}

func abbreviate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
