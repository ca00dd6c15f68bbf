package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/iris/internal/model"
	"github.com/tinytelemetry/iris/internal/render"
)

const chartPanelWidth = 34

// View renders the dashboard
func (m *DashboardModel) View(width, height int) string {
	if width <= 0 || height <= 0 {
		return "Initializing dashboard..."
	}

	if modal := m.TopModal(); modal != nil {
		return modal.View(width, height)
	}

	if height < 16 || width < 60 {
		return "Terminal too small. Resize to at least 60x16."
	}

	top := lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(width),
		m.renderControls(width),
		m.renderStatus(width),
	)
	statusLine := m.renderStatusLine(width)
	bodyHeight := height - lipgloss.Height(top) - lipgloss.Height(statusLine)

	return lipgloss.NewStyle().
		MaxWidth(width).
		MaxHeight(height).
		Render(lipgloss.JoinVertical(lipgloss.Left, top, m.renderBody(width, bodyHeight), statusLine))
}

// renderBranding renders "iris" with a cyan to violet gradient.
func renderBranding() string {
	colors := []string{"#22D3EE", "#60A5FA", "#818CF8", "#A78BFA"}
	var b strings.Builder
	for i, ch := range "iris" {
		b.WriteString(lipgloss.NewStyle().
			Background(ColorNavy).
			Foreground(lipgloss.Color(colors[i])).
			Bold(true).
			Render(string(ch)))
	}
	return b.String()
}

func (m *DashboardModel) renderHeader(width int) string {
	state := m.connState()
	dot := lipgloss.NewStyle().Foreground(connColor(state)).Render("●")

	label := "Disconnected"
	switch state {
	case model.ConnConnected:
		label = "Connected"
	case model.ConnConnecting:
		label = "Connecting..."
	}
	card := dot + " " + label
	if m.conn != nil {
		if t := m.conn.Transport(); t != "" && state == model.ConnConnected {
			card += " via " + t
		}
		card += lipgloss.NewStyle().Foreground(ColorGray).Render("  " + m.conn.Endpoint())
	}

	counter := lipgloss.NewStyle().
		Foreground(ColorNavy).
		Background(ColorCyan).
		Bold(true).
		Padding(0, 1).
		Render(fmt.Sprintf("Detections: %d", m.snap.Detections))

	left := renderBranding() + "  " + card
	gap := max(1, width-lipgloss.Width(left)-lipgloss.Width(counter))
	return left + strings.Repeat(" ", gap) + counter
}

func (m *DashboardModel) renderControls(width int) string {
	tab := func(label string, active bool) string {
		s := lipgloss.NewStyle().Padding(0, 1)
		if active {
			return s.Foreground(ColorNavy).Background(ColorBlue).Bold(true).Render(label)
		}
		return s.Foreground(ColorGray).Render(label)
	}
	tabs := tab("RTSP", m.urlKind == model.URLKindRTSP) + tab("Video", m.urlKind == model.URLKindVideo)

	debug := "Debug: off"
	debugStyle := lipgloss.NewStyle().Foreground(ColorGray)
	if m.snap.DebugMode {
		debug = "Debug: on"
		debugStyle = debugStyle.Foreground(ColorAmber).Bold(true)
	}

	inputWidth := max(10, width-lipgloss.Width(tabs)-lipgloss.Width(debug)-12)
	m.urlInput.Width = inputWidth - lipgloss.Width(m.urlInput.Prompt) - 1

	row := lipgloss.JoinHorizontal(lipgloss.Center,
		tabs, "  ",
		lipgloss.NewStyle().Width(inputWidth).Render(m.urlInput.View()),
		"  ", debugStyle.Render(debug),
	)
	return panelStyle(m.editing).Width(width - 2).Render(row)
}

func (m *DashboardModel) renderStatus(width int) string {
	msg := m.snap.StatusMessage
	if msg == "" {
		msg = "Ready to process stream"
	}
	line := lipgloss.NewStyle().Foreground(statusColor(m.snap.StatusType)).Render(msg)
	if m.snap.IsProcessing() {
		line = m.spinner.View() + " " + line
	}

	if m.snap.StreamID == "" {
		return lipgloss.NewStyle().MaxWidth(width).Render(line)
	}

	badgeColor := ColorGray
	switch m.snap.Badge() {
	case "Active":
		badgeColor = ColorGreen
	case "Completed":
		badgeColor = ColorBlue
	}
	stream := lipgloss.NewStyle().Foreground(ColorGray).Render("Stream: ") +
		lipgloss.NewStyle().Foreground(ColorWhite).Render(m.snap.StreamID) + " " +
		lipgloss.NewStyle().Foreground(badgeColor).Bold(true).Render("["+m.snap.Badge()+"]")
	if m.snap.AutoDetected {
		stream += " " + lipgloss.NewStyle().Foreground(ColorAmber).Italic(true).Render("Auto-detected")
	}
	return lipgloss.NewStyle().MaxWidth(width).Render(line + "\n" + stream)
}

func (m *DashboardModel) renderBody(width, height int) string {
	showChart := width >= 100
	logsWidth := width
	if showChart {
		logsWidth = width - chartPanelWidth - 1
	}

	logs := m.renderLogsPanel(logsWidth, height)
	if !showChart {
		return logs
	}

	chart := panelStyle(false).
		Width(chartPanelWidth - 2).
		Height(height - 2).
		Render(renderClassChart(render.ClassTotals(m.snap.Entries), chartPanelWidth-4, height-2))
	return lipgloss.JoinHorizontal(lipgloss.Top, logs, " ", chart)
}

func (m *DashboardModel) renderLogsPanel(width, height int) string {
	innerWidth := max(10, width-4)
	innerHeight := max(1, height-3)

	m.logs.Width = innerWidth
	m.logs.Height = innerHeight
	if m.snap.Version != m.renderedVersion || innerWidth != m.renderedWidth || m.renderedVersion == 0 {
		m.logs.SetContent(renderLogs(render.Entries(m.snap.Entries, m.parser), innerWidth))
		m.renderedVersion = m.snap.Version
		m.renderedWidth = innerWidth
	}

	title := lipgloss.NewStyle().Foreground(ColorBlue).Bold(true).
		Render(fmt.Sprintf("Logs (%d/%d)", len(m.snap.Entries), m.snap.Capacity))

	return panelStyle(!m.editing).
		Width(width - 2).
		Height(height - 2).
		Render(lipgloss.JoinVertical(lipgloss.Left, title, m.logs.View()))
}

// renderStatusLine renders the key hints at the bottom of the screen.
func (m *DashboardModel) renderStatusLine(width int) string {
	baseStyle := lipgloss.NewStyle().
		Background(ColorNavy).
		Foreground(ColorWhite).
		Width(width)

	var text string
	switch {
	case m.editing:
		text = "Type URL • Enter: Start • Tab: RTSP/Video • ESC: Done"
	case width < 80:
		text = "?: Help • e: URL • Enter: Start • x: Stop • q: Quit"
	case width < 120:
		text = "?: Help • e: URL • Enter: Start • x: Stop • c: Clear • d: Debug • r: Reconnect • q: Quit"
	default:
		text = "?: Help • e: Edit URL • Tab: RTSP/Video • s: Sample • Enter: Start • x: Stop • c: Clear • d: Debug • r: Reconnect • a: Streams • q: Quit"
	}
	if !m.editing && !m.canReconnect() && m.conn != nil {
		text += " (reconnecting...)"
	}
	return baseStyle.Render(" " + text)
}
