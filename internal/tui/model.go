package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"

	"github.com/tinytelemetry/iris/internal/model"
	"github.com/tinytelemetry/iris/internal/session"
	"github.com/tinytelemetry/iris/internal/timestamp"
)

// Controller is the session surface the dashboard drives.
type Controller interface {
	Snapshot() session.Snapshot
	Subscribe() (<-chan struct{}, func())
	StartStream(ctx context.Context, url string, debugMode bool) (string, error)
	StopStream(ctx context.Context) error
	ClearLogs()
	SetURL(url string)
	SetDebugMode(on bool)
	Refresh(ctx context.Context) (model.StreamInfo, error)
}

// Options tunes the dashboard.
type Options struct {
	CommandTimeout     time.Duration
	StatusInterval     time.Duration
	ReverseScrollWheel bool
}

func (o Options) withDefaults() Options {
	if o.CommandTimeout <= 0 {
		o.CommandTimeout = model.DefaultCommandTimeout
	}
	if o.StatusInterval <= 0 {
		o.StatusInterval = model.DefaultStatusInterval
	}
	return o
}

// DashboardModel is the main dashboard page: connection card, stream
// controls, status banner, live logs and the detection-class chart.
type DashboardModel struct {
	ctx  context.Context
	ctl  Controller
	conn model.Connectivity
	opts Options
	keys KeyMap

	changes     <-chan struct{}
	unsubscribe func()

	snap    session.Snapshot
	parser  *timestamp.Parser
	urlKind model.URLKind

	urlInput textinput.Model
	editing  bool
	logs     viewport.Model
	spinner  spinner.Model
	spinning bool

	modalStack []Modal

	// Last rendered snapshot version, so unchanged state skips re-rendering logs.
	renderedVersion uint64
	renderedWidth   int

	width  int
	height int
}

// NewDashboardModel builds the dashboard over a session controller and the
// event connection. conn may be nil when running without a live backend.
func NewDashboardModel(ctx context.Context, ctl Controller, conn model.Connectivity, opts Options) *DashboardModel {
	in := textinput.New()
	in.Placeholder = model.SampleRTSPURL
	in.Prompt = "URL ▸ "
	in.CharLimit = 2048

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := &DashboardModel{
		ctx:      ctx,
		ctl:      ctl,
		conn:     conn,
		opts:     opts.withDefaults(),
		keys:     DefaultKeyMap(),
		parser:   timestamp.NewParser(),
		urlKind:  model.URLKindRTSP,
		urlInput: in,
		logs:     viewport.New(80, 10),
		spinner:  sp,
	}
	m.snap = ctl.Snapshot()
	if m.snap.URL != "" {
		m.urlInput.SetValue(m.snap.URL)
		m.urlKind = model.DetectURLKind(m.snap.URL)
	}
	m.changes, m.unsubscribe = ctl.Subscribe()
	return m
}

// Close releases the session subscription.
func (m *DashboardModel) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
}

func (m *DashboardModel) connState() model.ConnState {
	if m.conn == nil {
		return m.snap.ConnState
	}
	return m.conn.State()
}

// canStart mirrors the start button: connected and not already processing.
func (m *DashboardModel) canStart() bool {
	return m.connState() == model.ConnConnected && !m.snap.IsProcessing() && m.snap.Phase != model.PhaseStarting
}

func (m *DashboardModel) canStop() bool {
	return m.snap.StreamID != "" && m.snap.IsProcessing()
}

// canReconnect is false while a connection attempt is in flight.
func (m *DashboardModel) canReconnect() bool {
	return m.conn != nil && m.conn.State() != model.ConnConnecting
}

// PushModal pushes a modal unless one with the same id is already on top.
func (m *DashboardModel) PushModal(modal Modal) {
	if top := m.TopModal(); top != nil && top.ID() == modal.ID() {
		return
	}
	m.modalStack = append(m.modalStack, modal)
}

// PopModal removes the topmost modal.
func (m *DashboardModel) PopModal() {
	if len(m.modalStack) > 0 {
		m.modalStack = m.modalStack[:len(m.modalStack)-1]
	}
}

// TopModal returns the topmost modal or nil.
func (m *DashboardModel) TopModal() Modal {
	if len(m.modalStack) == 0 {
		return nil
	}
	return m.modalStack[len(m.modalStack)-1]
}

// HasModal reports whether a modal is open.
func (m *DashboardModel) HasModal() bool { return len(m.modalStack) > 0 }
