package ui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/five82/progwatch/internal/logtail"
	"github.com/five82/progwatch/internal/monitor"
	"github.com/five82/progwatch/internal/prefs"
	"github.com/five82/progwatch/internal/state"
)

// Options configures the UI.
type Options struct {
	Context     context.Context
	Session     *monitor.Session
	Prefs       prefs.Prefs
	PrefsPath   string
	InitialPath string        // preselected log file
	Tick        time.Duration // refresh for relative times
	Logger      *zap.Logger
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx       context.Context
	session   *monitor.Session
	store     *state.Store
	logger    *zap.Logger
	prefs     prefs.Prefs
	prefsPath string
	tick      time.Duration

	// UI state
	theme    Theme
	keys     keyMap
	help     help.Model
	width    int
	height   int
	ready    bool
	showHelp bool

	// Data state
	snapshot state.Snapshot
	now      time.Time

	// File selection
	path      string
	editing   bool
	pathInput textinput.Model

	// Log panel
	logViewport viewport.Model
	follow      bool

	// Result of the last control action
	notice      string
	noticeLevel state.Level
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	tick := opts.Tick
	if tick <= 0 {
		tick = DefaultUIInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}

	path := strings.TrimSpace(opts.InitialPath)
	if path == "" {
		path = opts.Prefs.LastFile
	}

	ti := textinput.New()
	ti.Prompt = "file: "
	ti.Placeholder = "/path/to/progress.log"
	ti.CharLimit = 4096

	m := Model{
		ctx:       ctx,
		session:   opts.Session,
		logger:    logger,
		prefs:     opts.Prefs,
		prefsPath: prefsPath,
		tick:      tick,
		theme:     GetTheme(opts.Prefs.Theme),
		keys:      DefaultKeyMap(),
		help:      help.New(),
		now:       time.Now(),
		path:      path,
		pathInput: ti,
		follow:    true,
	}
	if opts.Session != nil {
		m.store = opts.Session.Store()
		m.snapshot = m.store.Snapshot()
	}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tea.EnterAltScreen,
		tickCmd(m.tick),
	}
	if m.store != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.store), waitSnapshotCmd(m.ctx, m.store))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		if !m.ready {
			m.logViewport = viewport.New(m.logWidth(), m.logHeight())
		} else {
			m.logViewport.Width = m.logWidth()
			m.logViewport.Height = m.logHeight()
		}
		m.ready = true
		m.updateLogViewport()
		return m, nil

	case tickMsg:
		m.now = time.Time(msg)
		cmds := []tea.Cmd{tickCmd(m.tick)}
		if m.store != nil {
			cmds = append(cmds, fetchSnapshotCmd(m.store))
		}
		return m, tea.Batch(cmds...)

	case storeUpdatedMsg:
		if m.store == nil {
			return m, nil
		}
		return m, tea.Batch(fetchSnapshotCmd(m.store), waitSnapshotCmd(m.ctx, m.store))

	case snapshotMsg:
		m.applySnapshot(state.Snapshot(msg))
		return m, nil

	case controlMsg:
		m.handleControlResult(msg)
		return m, nil
	}

	if m.editing {
		var cmd tea.Cmd
		m.pathInput, cmd = m.pathInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	return m.renderMain()
}

// applySnapshot stores snap unless an equal or newer one is already shown.
func (m *Model) applySnapshot(snap state.Snapshot) {
	if snap.Seq != 0 && snap.Seq <= m.snapshot.Seq {
		return
	}
	m.snapshot = snap
	m.updateLogViewport()
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		// Any key closes help
		m.showHelp = false
		return m, nil
	}
	if m.editing {
		return m.handleInputKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.prefs.Theme = m.theme.Name
		m.savePrefs()
		return m, nil

	case key.Matches(msg, m.keys.Toggle):
		if m.snapshot.State != state.Running && m.path == "" {
			m.notice, m.noticeLevel = "Please select a file", state.LevelWarning
			return m, nil
		}
		return m, m.toggleCmd()

	case key.Matches(msg, m.keys.Reset):
		return m, m.controlCmd(actionReset, func(s *monitor.Session) error { return s.Reset() })

	case key.Matches(msg, m.keys.CycleTemplate):
		if m.session == nil {
			return m, nil
		}
		next := m.session.Template().Next()
		m.prefs.Template = next.Short()
		m.savePrefs()
		return m, m.controlCmd(actionTemplate, func(s *monitor.Session) error { return s.SelectTemplate(next) })

	case key.Matches(msg, m.keys.EditPath):
		m.editing = true
		m.pathInput.SetValue(m.path)
		m.pathInput.CursorEnd()
		return m, m.pathInput.Focus()
	}

	return m.handleLogKey(msg)
}

// handleInputKey processes keys while the path input has focus.
func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.String() == "ctrl+c":
		return m, tea.Quit

	case key.Matches(msg, m.keys.Confirm):
		m.path = strings.TrimSpace(m.pathInput.Value())
		m.editing = false
		m.pathInput.Blur()
		m.prefs.LastFile = m.path
		m.savePrefs()
		return m, nil

	case key.Matches(msg, m.keys.Cancel):
		m.editing = false
		m.pathInput.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.pathInput, cmd = m.pathInput.Update(msg)
	return m, cmd
}

// handleLogKey scrolls the log panel. Scrolling away from the bottom pauses
// following until the view is back at the newest entry.
func (m Model) handleLogKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		m.logViewport.ScrollUp(1)
	case key.Matches(msg, m.keys.Down):
		m.logViewport.ScrollDown(1)
	case key.Matches(msg, m.keys.PageUp):
		m.logViewport.ScrollUp(max(1, m.logViewport.Height-1))
	case key.Matches(msg, m.keys.PageDown):
		m.logViewport.ScrollDown(max(1, m.logViewport.Height-1))
	case key.Matches(msg, m.keys.Top):
		m.logViewport.GotoTop()
	case key.Matches(msg, m.keys.Bottom):
		m.logViewport.GotoBottom()
	default:
		return m, nil
	}
	m.follow = m.logViewport.AtBottom()
	return m, nil
}

// toggleCmd starts monitoring the selected file, or stops the running one.
func (m Model) toggleCmd() tea.Cmd {
	if m.snapshot.State == state.Running {
		return m.controlCmd(actionStop, func(s *monitor.Session) error { return s.Stop() })
	}
	path := m.path
	return m.controlCmd(actionStart, func(s *monitor.Session) error { return s.Start(path) })
}

// controlCmd runs a session call off the update loop; Stop and Reset may
// wait for the worker.
func (m Model) controlCmd(action string, fn func(*monitor.Session) error) tea.Cmd {
	session := m.session
	if session == nil {
		return nil
	}
	return func() tea.Msg {
		return controlMsg{action: action, err: fn(session)}
	}
}

func (m *Model) handleControlResult(msg controlMsg) {
	if msg.err == nil {
		m.notice = ""
		if msg.action == actionStart {
			m.follow = true
		}
		return
	}
	m.logger.Warn("control action failed", zap.String("action", msg.action), zap.Error(msg.err))
	m.notice, m.noticeLevel = describeControlError(msg.err)
}

// describeControlError maps control failures to the message shown in the
// status panel.
func describeControlError(err error) (string, state.Level) {
	switch {
	case errors.Is(err, logtail.ErrFileNotFound):
		return "The file does not exist", state.LevelError
	case errors.Is(err, monitor.ErrStopTimeout):
		return "Monitoring did not stop in time", state.LevelWarning
	default:
		return err.Error(), state.LevelError
	}
}

func (m Model) savePrefs() {
	if m.prefsPath == "" {
		return
	}
	if err := prefs.Save(m.prefsPath, m.prefs); err != nil {
		m.logger.Warn("save prefs failed", zap.String("path", m.prefsPath), zap.Error(err))
	}
}

// Messages

type tickMsg time.Time

type snapshotMsg state.Snapshot

type storeUpdatedMsg struct{}

type controlMsg struct {
	action string
	err    error
}

const (
	actionStart    = "start"
	actionStop     = "stop"
	actionReset    = "reset"
	actionTemplate = "template"
)

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSnapshotCmd(store *state.Store) tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(store.Snapshot())
	}
}

// waitSnapshotCmd blocks until the store publishes again. A publish that
// lands between two waits is picked up by the next tick.
func waitSnapshotCmd(ctx context.Context, store *state.Store) tea.Cmd {
	changed := store.Updated()
	return func() tea.Msg {
		select {
		case <-changed:
			return storeUpdatedMsg{}
		case <-ctx.Done():
			return nil
		}
	}
}

// Run starts the Bubble Tea program and blocks until the user quits or ctx
// is cancelled.
func Run(opts Options) error {
	m := New(opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(m.ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && m.ctx.Err() != nil {
		return nil
	}
	return err
}
