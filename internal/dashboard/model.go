// Package dashboard is the interactive terminal view of stored metrics. It
// reads through store.Reader only, so it can run next to a live server.
package dashboard

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rileyhilliard/fleetwatch/internal/config"
	"github.com/rileyhilliard/fleetwatch/internal/resample"
	"github.com/rileyhilliard/fleetwatch/internal/store"
)

// DefaultRefresh is the timer-driven refresh interval.
const DefaultRefresh = 10 * time.Second

// fetchTimeout bounds one refresh's store queries.
const fetchTimeout = 5 * time.Second

// Options configures a Model.
type Options struct {
	Refresh  time.Duration
	Resample resample.Options
	// Skip hides device ids, e.g. admin ids that also reported samples.
	Skip func(id string) bool
	// Now is the clock; tests pin it.
	Now func() time.Time
}

// OptionsFromSettings maps the dashboard section of fleetwatch.yaml.
func OptionsFromSettings(s config.DashboardSettings) Options {
	return Options{
		Refresh: s.Refresh,
		Resample: resample.Options{
			TargetPoints: s.TargetPoints,
			Steps:        s.InterpolationSteps,
		},
	}
}

func (o *Options) applyDefaults() {
	if o.Refresh <= 0 {
		o.Refresh = DefaultRefresh
	}
	if o.Resample.TargetPoints <= 0 {
		o.Resample.TargetPoints = resample.DefaultTargetPoints
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Model is the Bubble Tea model for the dashboard.
type Model struct {
	reader store.Reader
	opts   Options

	devices  []store.Device
	selected int
	deviceID string
	rangeIdx int

	series   []resample.Series
	ramTotal int64

	// seq tags each fetch so a slow reply for an old selection is dropped.
	seq        int
	loading    bool
	lastUpdate time.Time
	err        error

	width    int
	height   int
	showHelp bool
	quitting bool
	help     help.Model
}

// tickMsg fires the timer-driven refresh.
type tickMsg time.Time

// snapshotMsg carries a finished fetch.
type snapshotMsg struct {
	seq  int
	snap Snapshot
	err  error
}

// NewModel creates a dashboard over r, starting on the first device and the
// shortest time range.
func NewModel(r store.Reader, opts Options) Model {
	opts.applyDefaults()
	return Model{
		reader:  r,
		opts:    opts,
		loading: true,
		help:    help.New(),
	}
}

// Init schedules the first fetch and the refresh timer.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.fetchCmd(), m.tickCmd())
}

// Update handles messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if handled, cmd := m.HandleKeyMsg(msg); handled {
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case tickMsg:
		cmd := m.refresh()
		return m, tea.Batch(cmd, m.tickCmd())

	case snapshotMsg:
		if msg.seq != m.seq {
			return m, nil
		}
		m.apply(msg.snap, msg.err)
	}

	return m, nil
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.showHelp {
		return m.renderHelpOverlay()
	}
	return m.renderDashboard()
}

// Range returns the active time range.
func (m Model) Range() TimeRange {
	return Ranges[m.rangeIdx]
}

// Device returns the selected device, if any.
func (m Model) Device() (store.Device, bool) {
	if m.selected < 0 || m.selected >= len(m.devices) {
		return store.Device{}, false
	}
	return m.devices[m.selected], true
}

// Series returns the charts from the last successful refresh.
func (m Model) Series() []resample.Series {
	return m.series
}

// Err returns the last refresh error, if any.
func (m Model) Err() error {
	return m.err
}

func (m *Model) selectDevice(i int) {
	m.selected = i
	m.deviceID = m.devices[i].ID
}

// apply folds a finished fetch into the model. On error the previous
// charts stay on screen.
func (m *Model) apply(snap Snapshot, err error) {
	m.loading = false
	m.err = err
	if err != nil {
		return
	}
	m.devices = snap.Devices
	m.selected = snap.Selected
	m.deviceID = ""
	if d, ok := snap.Device(); ok {
		m.deviceID = d.ID
	} else {
		m.selected = 0
	}
	m.series = snap.Series
	m.ramTotal = snap.RAMTotal
	m.lastUpdate = snap.Time
}

// refresh starts a new fetch and invalidates any in flight.
func (m *Model) refresh() tea.Cmd {
	m.seq++
	m.loading = true
	return m.fetchCmd()
}

func (m Model) fetchCmd() tea.Cmd {
	r := m.reader
	seq := m.seq
	now := m.opts.Now()
	q := Query{
		DeviceID: m.deviceID,
		Fallback: m.selected,
		Window:   Ranges[m.rangeIdx].Window,
		Options:  m.opts.Resample,
		Skip:     m.opts.Skip,
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		snap, err := Fetch(ctx, r, q, now)
		return snapshotMsg{seq: seq, snap: snap, err: err}
	}
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.opts.Refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Run starts the dashboard on the terminal's alternate screen and blocks
// until the user quits or ctx is cancelled.
func Run(ctx context.Context, r store.Reader, opts Options) error {
	p := tea.NewProgram(NewModel(r, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
