package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/iris/internal/model"
)

// StreamLister lists the backend's processing sessions.
type StreamLister interface {
	ActiveStreams(ctx context.Context) (map[string]model.StreamInfo, error)
}

type streamsLoadedMsg struct {
	streams []model.StreamInfo
	err     error
}

// StreamsPage shows every stream the backend knows about.
type StreamsPage struct {
	ctx     context.Context
	api     StreamLister
	keys    KeyMap
	timeout time.Duration

	streams  []model.StreamInfo
	loading  bool
	lastErr  error
	loadedAt time.Time
	cursor   int
}

func NewStreamsPage(ctx context.Context, api StreamLister, timeout time.Duration) *StreamsPage {
	if timeout <= 0 {
		timeout = model.DefaultCommandTimeout
	}
	return &StreamsPage{ctx: ctx, api: api, keys: DefaultKeyMap(), timeout: timeout}
}

func (p *StreamsPage) ID() string { return PageStreams }

func (p *StreamsPage) Init() tea.Cmd { return nil }

func (p *StreamsPage) Activate() tea.Cmd { return p.load() }

func (p *StreamsPage) load() tea.Cmd {
	if p.api == nil || p.loading {
		return nil
	}
	p.loading = true
	api, parent, timeout := p.api, p.ctx, p.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()
		byID, err := api.ActiveStreams(ctx)
		if err != nil {
			return streamsLoadedMsg{err: err}
		}
		return streamsLoadedMsg{streams: sortStreams(byID)}
	}
}

// sortStreams orders streams newest first, then by id.
func sortStreams(byID map[string]model.StreamInfo) []model.StreamInfo {
	out := make([]model.StreamInfo, 0, len(byID))
	for id, info := range byID {
		if info.StreamID == "" {
			info.StreamID = id
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime != out[j].StartTime {
			return out[i].StartTime > out[j].StartTime
		}
		return out[i].StreamID < out[j].StreamID
	})
	return out
}

func (p *StreamsPage) Update(msg tea.Msg) (tea.Cmd, *PageNav) {
	switch msg := msg.(type) {
	case streamsLoadedMsg:
		p.loading = false
		p.lastErr = msg.err
		if msg.err == nil {
			p.streams = msg.streams
			p.loadedAt = time.Now()
			p.cursor = min(p.cursor, max(0, len(p.streams)-1))
		}
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, p.keys.ForceQuit), key.Matches(msg, p.keys.Quit):
			return tea.Quit, nil
		case key.Matches(msg, p.keys.Escape), key.Matches(msg, p.keys.Streams):
			return nil, navTo(PageDashboard)
		case key.Matches(msg, p.keys.Reconnect):
			return p.load(), nil
		case key.Matches(msg, p.keys.Up):
			p.cursor = max(0, p.cursor-1)
		case key.Matches(msg, p.keys.Down):
			p.cursor = min(max(0, len(p.streams)-1), p.cursor+1)
		}
	}
	return nil, nil
}

func (p *StreamsPage) View(width, height int) string {
	title := lipgloss.NewStyle().Foreground(ColorBlue).Bold(true).Render("Backend streams")
	muted := lipgloss.NewStyle().Foreground(ColorGray)

	var body string
	switch {
	case p.lastErr != nil:
		body = lipgloss.NewStyle().Foreground(ColorRed).Render("Error: " + p.lastErr.Error())
	case p.loading && len(p.streams) == 0:
		body = muted.Italic(true).Render("Loading...")
	case len(p.streams) == 0:
		body = muted.Italic(true).Render("No streams")
	default:
		rows := []string{muted.Render(fmt.Sprintf("  %-24s %-9s %-20s %s", "ID", "STATUS", "STARTED", "URL"))}
		for i, s := range p.streams {
			cursor := "  "
			if i == p.cursor {
				cursor = "▸ "
			}
			status := lipgloss.NewStyle().Foreground(backendStatusColor(s.Status)).Render(fmt.Sprintf("%-9s", s.Status))
			rows = append(rows, fmt.Sprintf("%s%-24s %s %-20s %s", cursor, s.StreamID, status, s.StartTime, s.URL))
		}
		body = strings.Join(rows, "\n")
	}

	footer := "ESC/a: Back • r: Refresh • ↑↓: Select • q: Quit"
	if !p.loadedAt.IsZero() {
		footer += " • updated " + p.loadedAt.Format("15:04:05")
	}

	content := lipgloss.JoinVertical(lipgloss.Left, title, "", body)
	panel := panelStyle(true).
		Width(max(20, width-2)).
		Height(max(3, height-3)).
		Render(content)
	return lipgloss.NewStyle().MaxWidth(width).MaxHeight(height).
		Render(lipgloss.JoinVertical(lipgloss.Left, panel, muted.Render(footer)))
}

func backendStatusColor(status string) lipgloss.Color {
	switch status {
	case "running", "starting":
		return ColorGreen
	case "stopping":
		return ColorAmber
	case "error":
		return ColorRed
	default:
		return ColorGray
	}
}
