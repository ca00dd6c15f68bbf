package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Modal is a self-contained modal that owns its own Update/View lifecycle.
// The topmost modal on the dashboard's stack receives all input and renders
// full-screen.
type Modal interface {
	// ID returns a unique identifier used to deduplicate pushes.
	ID() string
	// Update processes a message. Return pop=true to close the modal.
	Update(msg tea.Msg) (pop bool, cmd tea.Cmd)
	// View renders the modal content for the given terminal dimensions.
	View(width, height int) string
}

// HelpModal lists every key binding.
type HelpModal struct {
	keys               KeyMap
	viewport           viewport.Model
	reverseScrollWheel bool
}

func NewHelpModal(keys KeyMap, reverseScrollWheel bool) *HelpModal {
	return &HelpModal{
		keys:               keys,
		viewport:           viewport.New(80, 20),
		reverseScrollWheel: reverseScrollWheel,
	}
}

func (h *HelpModal) ID() string { return "help" }

func (h *HelpModal) Update(msg tea.Msg) (bool, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			h.viewport.ScrollUp(1)
			return false, nil
		case "down", "j":
			h.viewport.ScrollDown(1)
			return false, nil
		case "pgup":
			h.viewport.HalfPageUp()
			return false, nil
		case "pgdown":
			h.viewport.HalfPageDown()
			return false, nil
		case "?", "h", "q", "escape", "esc":
			return true, nil
		}
		var cmd tea.Cmd
		h.viewport, cmd = h.viewport.Update(msg)
		return false, cmd

	case tea.MouseMsg:
		if msg.Action != tea.MouseActionPress {
			return false, nil
		}
		up := msg.Button == tea.MouseButtonWheelUp
		if h.reverseScrollWheel {
			up = !up
		}
		switch msg.Button {
		case tea.MouseButtonWheelUp, tea.MouseButtonWheelDown:
			if up {
				h.viewport.ScrollUp(1)
			} else {
				h.viewport.ScrollDown(1)
			}
		}
	}
	return false, nil
}

func (h *HelpModal) View(width, height int) string {
	modalWidth := max(width-8, 20)
	modalHeight := max(height-4, 8)
	contentWidth := modalWidth - 4
	contentHeight := modalHeight - 4

	h.viewport.Width = contentWidth
	h.viewport.Height = contentHeight
	h.viewport.SetContent(h.content())

	contentPane := lipgloss.NewStyle().
		Width(contentWidth).
		Height(contentHeight).
		Border(lipgloss.NormalBorder()).
		BorderForeground(ColorGray).
		Render(h.viewport.View())

	header := lipgloss.NewStyle().
		Width(contentWidth).
		Foreground(ColorBlue).
		Bold(true).
		Render("Help")

	statusBar := lipgloss.NewStyle().
		Foreground(ColorGray).
		Render("up/down/Wheel: Scroll | PgUp/PgDn: Page | ?/h: Toggle Help | ESC: Close")

	modal := lipgloss.JoinVertical(lipgloss.Left, header, contentPane, statusBar)

	finalModal := lipgloss.NewStyle().
		Width(modalWidth).
		Height(modalHeight).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBlue).
		Render(modal)

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, finalModal)
}

func (h *HelpModal) content() string {
	sections := []struct {
		title    string
		bindings []key.Binding
	}{
		{"STREAM", []key.Binding{h.keys.EditURL, h.keys.URLKind, h.keys.Sample, h.keys.Debug, h.keys.Start, h.keys.Stop, h.keys.Clear}},
		{"CONNECTION", []key.Binding{h.keys.Reconnect, h.keys.Streams}},
		{"LOGS", []key.Binding{h.keys.Up, h.keys.Down, h.keys.PageUp, h.keys.PageDown, h.keys.Home, h.keys.End}},
		{"GENERAL", []key.Binding{h.keys.Help, h.keys.Escape, h.keys.Quit, h.keys.ForceQuit}},
	}

	var b strings.Builder
	b.WriteString("Detection Log Dashboard Help\n")
	for _, s := range sections {
		b.WriteString("\n" + s.title + ":\n")
		for _, kb := range s.bindings {
			help := kb.Help()
			fmt.Fprintf(&b, "  %-12s - %s\n", help.Key, help.Desc)
		}
	}
	b.WriteString("\nLogs are newest first. Detections are ordered by frame number;\n")
	b.WriteString("recognized persons are highlighted in each detection line.\n")
	return b.String()
}
