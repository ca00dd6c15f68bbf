package tui

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/tinytelemetry/iris/internal/model"
)

// sessionChangedMsg reports that the session state moved on.
type sessionChangedMsg struct{}

// commandDoneMsg carries the result of a backend command. Failures are
// already reflected in the session status and log.
type commandDoneMsg struct {
	op  string
	err error
}

// statusTickMsg drives periodic stream status polling.
type statusTickMsg time.Time

type refreshDoneMsg struct {
	info model.StreamInfo
	err  error
}

// waitForChange blocks until the session signals a change.
func waitForChange(ch <-chan struct{}) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return sessionChangedMsg{}
	}
}

func statusTick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return statusTickMsg(t) })
}

func (m *DashboardModel) ID() string { return PageDashboard }

func (m *DashboardModel) Init() tea.Cmd {
	return tea.Batch(waitForChange(m.changes), statusTick(m.opts.StatusInterval), m.spinIfProcessing())
}

func (m *DashboardModel) Activate() tea.Cmd {
	m.snap = m.ctl.Snapshot()
	return m.spinIfProcessing()
}

// Update handles messages
func (m *DashboardModel) Update(msg tea.Msg) (tea.Cmd, *PageNav) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return nil, nil

	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.MouseMsg:
		return m.handleMouseEvent(msg), nil

	case sessionChangedMsg:
		m.snap = m.ctl.Snapshot()
		if m.snap.URL != "" && !m.editing && m.snap.URL != m.urlInput.Value() {
			m.urlInput.SetValue(m.snap.URL)
			m.urlKind = model.DetectURLKind(m.snap.URL)
		}
		return tea.Batch(waitForChange(m.changes), m.spinIfProcessing()), nil

	case spinner.TickMsg:
		if !m.snap.IsProcessing() {
			m.spinning = false
			return nil, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return cmd, nil

	case statusTickMsg:
		cmds := []tea.Cmd{statusTick(m.opts.StatusInterval)}
		if m.snap.StreamID != "" && m.snap.IsProcessing() {
			cmds = append(cmds, m.refreshCmd())
		}
		return tea.Batch(cmds...), nil

	case refreshDoneMsg:
		if msg.err != nil {
			log.Printf("tui: stream status refresh: %v", msg.err)
		}
		return nil, nil

	case commandDoneMsg:
		if msg.err != nil {
			log.Printf("tui: %s: %v", msg.op, msg.err)
		}
		return nil, nil
	}
	return nil, nil
}

func (m *DashboardModel) spinIfProcessing() tea.Cmd {
	if m.spinning || !m.snap.IsProcessing() {
		return nil
	}
	m.spinning = true
	return m.spinner.Tick
}

func (m *DashboardModel) handleKeyPress(msg tea.KeyMsg) (tea.Cmd, *PageNav) {
	if key.Matches(msg, m.keys.ForceQuit) {
		return tea.Quit, nil
	}

	// Modal on stack gets the key first.
	if modal := m.TopModal(); modal != nil {
		pop, cmd := modal.Update(msg)
		if pop {
			m.PopModal()
		}
		return cmd, nil
	}

	if m.editing {
		return m.handleInputKey(msg), nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit, nil
	case key.Matches(msg, m.keys.Help):
		m.PushModal(NewHelpModal(m.keys, m.opts.ReverseScrollWheel))
	case key.Matches(msg, m.keys.Streams):
		return nil, navTo(PageStreams)
	case key.Matches(msg, m.keys.EditURL):
		m.editing = true
		return m.urlInput.Focus(), nil
	case key.Matches(msg, m.keys.Start):
		return m.startCmd(), nil
	case key.Matches(msg, m.keys.Stop):
		return m.stopCmd(), nil
	case key.Matches(msg, m.keys.Clear):
		m.ctl.ClearLogs()
	case key.Matches(msg, m.keys.Debug):
		m.ctl.SetDebugMode(!m.snap.DebugMode)
	case key.Matches(msg, m.keys.URLKind):
		m.toggleURLKind()
	case key.Matches(msg, m.keys.Sample):
		sample := model.SampleURL(m.urlKind)
		m.urlInput.SetValue(sample)
		m.ctl.SetURL(sample)
	case key.Matches(msg, m.keys.Reconnect):
		return m.reconnectCmd(), nil
	case key.Matches(msg, m.keys.Up):
		m.logs.ScrollUp(1)
	case key.Matches(msg, m.keys.Down):
		m.logs.ScrollDown(1)
	case key.Matches(msg, m.keys.PageUp):
		m.logs.HalfPageUp()
	case key.Matches(msg, m.keys.PageDown):
		m.logs.HalfPageDown()
	case key.Matches(msg, m.keys.Home):
		m.logs.GotoTop()
	case key.Matches(msg, m.keys.End):
		m.logs.GotoBottom()
	}
	return nil, nil
}

// handleInputKey routes keys to the URL input while it has focus.
func (m *DashboardModel) handleInputKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Start):
		m.blurInput()
		return m.startCmd()
	case key.Matches(msg, m.keys.Escape):
		m.blurInput()
		return nil
	case key.Matches(msg, m.keys.URLKind):
		m.toggleURLKind()
		return nil
	}

	var cmd tea.Cmd
	m.urlInput, cmd = m.urlInput.Update(msg)
	if v := strings.TrimSpace(m.urlInput.Value()); v != "" {
		m.urlKind = model.DetectURLKind(v)
	}
	return cmd
}

func (m *DashboardModel) blurInput() {
	m.editing = false
	m.urlInput.Blur()
	m.ctl.SetURL(m.urlInput.Value())
}

func (m *DashboardModel) toggleURLKind() {
	if m.urlKind == model.URLKindRTSP {
		m.urlKind = model.URLKindVideo
	} else {
		m.urlKind = model.URLKindRTSP
	}
	m.urlInput.Placeholder = model.SampleURL(m.urlKind)
}

func (m *DashboardModel) handleMouseEvent(msg tea.MouseMsg) tea.Cmd {
	if modal := m.TopModal(); modal != nil {
		pop, cmd := modal.Update(msg)
		if pop {
			m.PopModal()
		}
		return cmd
	}
	if msg.Action != tea.MouseActionPress {
		return nil
	}
	up := msg.Button == tea.MouseButtonWheelUp
	down := msg.Button == tea.MouseButtonWheelDown
	if m.opts.ReverseScrollWheel {
		up, down = down, up
	}
	switch {
	case up:
		m.logs.ScrollUp(3)
	case down:
		m.logs.ScrollDown(3)
	}
	return nil
}

// startCmd issues a start request. It is a no-op while a stream is starting
// or processing.
func (m *DashboardModel) startCmd() tea.Cmd {
	if m.snap.IsProcessing() || m.snap.Phase == model.PhaseStarting {
		return nil
	}
	ctl, parent, timeout := m.ctl, m.ctx, m.opts.CommandTimeout
	url, debug := m.urlInput.Value(), m.snap.DebugMode
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()
		_, err := ctl.StartStream(ctx, url, debug)
		return commandDoneMsg{op: "start stream", err: err}
	}
}

func (m *DashboardModel) stopCmd() tea.Cmd {
	if !m.canStop() {
		return nil
	}
	ctl, parent, timeout := m.ctl, m.ctx, m.opts.CommandTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()
		return commandDoneMsg{op: "stop stream", err: ctl.StopStream(ctx)}
	}
}

// reconnectCmd is disabled while an attempt is in flight.
func (m *DashboardModel) reconnectCmd() tea.Cmd {
	if !m.canReconnect() {
		return nil
	}
	conn, ctx := m.conn, m.ctx
	return func() tea.Msg {
		conn.Reconnect(ctx)
		return nil
	}
}

func (m *DashboardModel) refreshCmd() tea.Cmd {
	ctl, parent, timeout := m.ctl, m.ctx, m.opts.CommandTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()
		info, err := ctl.Refresh(ctx)
		return refreshDoneMsg{info: info, err: err}
	}
}
