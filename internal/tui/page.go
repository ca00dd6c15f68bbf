package tui

import tea "github.com/charmbracelet/bubbletea"

// Page represents a top-level screen in the TUI (dashboard, active streams).
type Page interface {
	ID() string
	Init() tea.Cmd
	// Activate runs when the page becomes the visible one.
	Activate() tea.Cmd
	Update(msg tea.Msg) (tea.Cmd, *PageNav)
	View(width, height int) string
}

// PageNav is returned from Update to request a page switch.
type PageNav struct {
	PageID string
}

const (
	PageDashboard = "dashboard"
	PageStreams   = "streams"
)

func navTo(id string) *PageNav { return &PageNav{PageID: id} }
