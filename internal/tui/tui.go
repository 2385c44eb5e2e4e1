// Package tui provides a Bubble Tea terminal user interface for quartus-catalog.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/handiism/quartus-catalog/internal/catalog"
	"github.com/handiism/quartus-catalog/internal/config"
	xhttp "github.com/handiism/quartus-catalog/internal/http"
	ioutils "github.com/handiism/quartus-catalog/internal/io"
)

// Styles for the TUI
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#0071C5")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#95E1A3"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFE66D"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8DADC"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4ECDC4")).
			Padding(1, 2)

	groupStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F8B500"))
)

// State represents the current UI state.
type State int

const (
	StateInput State = iota
	StateInitializing
	StateCollecting
	StateComplete
	StateError
)

// maxLogs is how many progress lines stay on screen.
const maxLogs = 10

// LogEntry represents a log message in the UI.
type LogEntry struct {
	Message string
	Level   catalog.ProgressLevel
}

// Options configures Run.
type Options struct {
	Settings *config.Settings

	// CookiesFile seeds the session with a browser cookie export.
	CookiesFile string

	// Output is the default catalog path shown in the input field.
	Output string

	// Log receives structured logs. Logging to the terminal would tear the
	// screen, so callers usually point it at a file or discard it.
	Log logrus.FieldLogger
}

// Model is the Bubble Tea model for the TUI.
type Model struct {
	state     State
	textInput textinput.Model
	spinner   spinner.Model
	progress  progress.Model
	opts      Options
	logs      []LogEntry
	groups    []string
	err       error
	events    chan catalog.ProgressEvent

	// Run context
	ctx    context.Context
	cancel context.CancelFunc

	manager *catalog.Manager
	session *xhttp.Session
	output  string

	// Pipeline progress
	counters catalog.Progress
	result   *catalog.Catalog

	// Options
	skipCDN bool
	verbose bool

	width  int
	height int
}

// NewModel creates a new TUI model.
func NewModel(opts Options) Model {
	if opts.Settings == nil {
		opts.Settings = config.DefaultSettings()
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}

	ti := textinput.New()
	ti.Placeholder = "quartus-catalog.json"
	ti.SetValue(opts.Output)
	ti.Focus()
	ti.CharLimit = 500
	ti.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#0071C5"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 50

	ctx, cancel := context.WithCancel(context.Background())

	return Model{
		state:     StateInput,
		textInput: ti,
		spinner:   sp,
		progress:  prog,
		opts:      opts,
		logs:      make([]LogEntry, 0),
		events:    make(chan catalog.ProgressEvent, 256),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, waitForEvent(m.events))
}

// Message types
type (
	// ProgressMsg is sent when the pipeline reports progress.
	ProgressMsg struct {
		Event catalog.ProgressEvent
	}

	// InitDoneMsg is sent when discovery completes.
	InitDoneMsg struct {
		Groups  []string
		Manager *catalog.Manager
		Session *xhttp.Session
		Err     error
	}

	// RunDoneMsg is sent when the remaining stages complete and the catalog
	// has been written.
	RunDoneMsg struct {
		Catalog *catalog.Catalog
		Err     error
	}

	// TickMsg is for periodic progress updates.
	TickMsg struct{}
)

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = msg.Width - 20
		if m.progress.Width > 80 {
			m.progress.Width = 80
		}
		if m.progress.Width < 20 {
			m.progress.Width = 20
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.cancel()
			m.closeSession()
			return m, tea.Quit

		case "esc":
			if m.state == StateInput {
				return m, tea.Quit
			}
			if m.state == StateCollecting || m.state == StateInitializing {
				m.cancel()
				m.state = StateError
				m.err = fmt.Errorf("cancelled by user")
			}

		case "enter":
			if m.state == StateInput {
				m.output = strings.TrimSpace(m.textInput.Value())
				if m.output == "" {
					m.output = m.textInput.Placeholder
				}
				m.state = StateInitializing
				return m, tea.Batch(m.initialize(), m.spinner.Tick)
			}

		case "ctrl+n":
			if m.state == StateInput {
				m.skipCDN = !m.skipCDN
				return m, nil
			}

		case "ctrl+o":
			if m.state == StateInput {
				m.verbose = !m.verbose
				return m, nil
			}

		case "q":
			if m.state == StateComplete || m.state == StateError {
				return m, tea.Quit
			}

		case "r":
			if m.state == StateComplete || m.state == StateError {
				// Reset for a new run
				m.closeSession()
				m.state = StateInput
				m.logs = nil
				m.groups = nil
				m.err = nil
				m.counters = catalog.Progress{}
				m.result = nil
				m.manager = nil
				m.ctx, m.cancel = context.WithCancel(context.Background())
				m.textInput.Focus()
				return m, nil
			}
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case ProgressMsg:
		cmds = append(cmds, waitForEvent(m.events))
		// Filter verbose messages if not in verbose mode
		if msg.Event.Level != catalog.LevelVerbose || m.verbose {
			m.logs = append(m.logs, LogEntry{Message: msg.Event.Message, Level: msg.Event.Level})
			if len(m.logs) > maxLogs {
				m.logs = m.logs[len(m.logs)-maxLogs:]
			}
		}

	case InitDoneMsg:
		if m.state != StateInitializing {
			// Cancelled while discovering.
			if msg.Session != nil {
				msg.Session.Close()
			}
			break
		}
		m.session = msg.Session
		if msg.Err != nil {
			m.state = StateError
			m.err = msg.Err
		} else {
			m.groups = msg.Groups
			m.manager = msg.Manager
			m.state = StateCollecting
			cmds = append(cmds, m.collect(), m.tickProgress())
		}

	case RunDoneMsg:
		m.result = msg.Catalog
		if m.manager != nil {
			m.counters = m.manager.GetProgress()
		}
		m.closeSession()
		switch {
		case m.ctx.Err() != nil:
			m.state = StateError
			m.err = fmt.Errorf("cancelled by user")
		case msg.Err != nil:
			m.state = StateError
			m.err = msg.Err
		default:
			m.state = StateComplete
		}

	case TickMsg:
		if m.manager != nil && m.state == StateCollecting {
			m.counters = m.manager.GetProgress()
			cmds = append(cmds, m.progress.SetPercent(m.percent()), m.tickProgress())
		}

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		cmds = append(cmds, cmd)
	}

	// Update text input
	if m.state == StateInput {
		var cmd tea.Cmd
		m.textInput, cmd = m.textInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// percent is the share of work done in the current stage: version pages
// first, then CDN resolutions.
func (m Model) percent() float64 {
	c := m.counters
	if c.ResolvedTotal > 0 {
		return float64(c.ResolvedDone) / float64(c.ResolvedTotal)
	}
	if c.PagesTotal > 0 {
		return float64(c.PagesDone) / float64(c.PagesTotal)
	}
	return 0
}

func (m *Model) closeSession() {
	if m.session != nil {
		m.session.Close()
		m.session = nil
	}
}

// tickProgress returns a command to tick progress updates.
func (m Model) tickProgress() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(_ time.Time) tea.Msg {
		return TickMsg{}
	})
}

// waitForEvent forwards the next pipeline event to Update.
func waitForEvent(events <-chan catalog.ProgressEvent) tea.Cmd {
	return func() tea.Msg {
		return ProgressMsg{Event: <-events}
	}
}

// View renders the UI.
func (m Model) View() string {
	var b strings.Builder

	// Header
	b.WriteString(titleStyle.Render("Quartus Catalog"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Index the Intel FPGA software download center"))
	b.WriteString("\n\n")

	switch m.state {
	case StateInput:
		b.WriteString(m.viewInput())
	case StateInitializing:
		b.WriteString(m.viewInitializing())
	case StateCollecting:
		b.WriteString(m.viewCollecting())
	case StateComplete:
		b.WriteString(m.viewComplete())
	case StateError:
		b.WriteString(m.viewError())
	}

	// Footer
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.getHelpText()))

	return b.String()
}

func (m Model) viewInput() string {
	var b strings.Builder

	b.WriteString(subtitleStyle.Render("Write catalog to:"))
	b.WriteString("\n\n")
	b.WriteString(m.textInput.View())
	b.WriteString("\n\n")

	cdnCheck := "[x]"
	if m.skipCDN {
		cdnCheck = "[ ]"
	}
	verboseCheck := "[ ]"
	if m.verbose {
		verboseCheck = "[x]"
	}

	b.WriteString(infoStyle.Render("Options:"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  %s Resolve CDN URLs (ctrl+n)\n", cdnCheck))
	b.WriteString(fmt.Sprintf("  %s Verbose output (ctrl+o)\n", verboseCheck))
	b.WriteString("\n")

	source := "Landing page: " + m.opts.Settings.LandingURL
	if n := len(m.opts.Settings.Groups); n > 0 {
		source = fmt.Sprintf("Groups from settings: %d", n)
	}
	b.WriteString(dimStyle.Render(source))
	b.WriteString("\n")

	return b.String()
}

func (m Model) viewInitializing() string {
	var b strings.Builder

	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	b.WriteString(subtitleStyle.Render("Discovering distribution groups..."))
	b.WriteString("\n\n")

	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewCollecting() string {
	var b strings.Builder

	if len(m.groups) > 0 {
		b.WriteString(successStyle.Render(fmt.Sprintf("Found %d group(s):", len(m.groups))))
		b.WriteString("\n")
		for _, g := range m.groups {
			b.WriteString(groupStyle.Render("  › " + g))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	c := m.counters
	stage := "Parsing version pages"
	if c.ResolvedTotal > 0 {
		stage = "Resolving CDN URLs"
	}
	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	b.WriteString(subtitleStyle.Render(stage))
	b.WriteString("\n")

	b.WriteString(m.progress.ViewAs(m.percent()))
	b.WriteString("\n")

	b.WriteString(infoStyle.Render(fmt.Sprintf(
		"Pages: %d/%d | Artifacts: %d | Resolved: %d/%d | Failures: %d",
		c.PagesDone, c.PagesTotal, c.Artifacts, c.ResolvedDone, c.ResolvedTotal, c.Failures,
	)))
	b.WriteString("\n\n")

	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewComplete() string {
	var b strings.Builder

	groups, artifacts, resolved, failures := 0, 0, 0, 0
	var size int64
	if m.result != nil {
		groups = len(m.result.Groups)
		artifacts = len(m.result.Artifacts)
		resolved = m.result.Resolved()
		failures = len(m.result.Failures)
		size = m.result.TotalBytes()
	}

	box := boxStyle.Render(fmt.Sprintf(
		"Catalog complete\n\n"+
			"Groups: %d\n"+
			"Artifacts: %d (%s)\n"+
			"CDN URLs: %d\n"+
			"Failures: %d\n\n"+
			"Written to %s",
		groups,
		artifacts,
		humanize.IBytes(uint64(size)),
		resolved,
		failures,
		m.output,
	))
	b.WriteString(box)

	return b.String()
}

func (m Model) viewError() string {
	var b strings.Builder

	b.WriteString(errorStyle.Render("✗ Error occurred:"))
	b.WriteString("\n\n")
	if m.err != nil {
		b.WriteString(fmt.Sprintf("  %s", m.err.Error()))
	}

	return b.String()
}

func (m Model) renderLogs() string {
	var b strings.Builder

	for _, log := range m.logs {
		var style lipgloss.Style
		prefix := "•"
		switch log.Level {
		case catalog.LevelError:
			style = errorStyle
			prefix = "✗"
		case catalog.LevelWarning:
			style = warningStyle
			prefix = "!"
		case catalog.LevelSuccess:
			style = successStyle
			prefix = "✓"
		case catalog.LevelInfo:
			style = infoStyle
			prefix = "›"
		default:
			style = dimStyle
		}
		b.WriteString(style.Render(prefix + " " + log.Message))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) getHelpText() string {
	switch m.state {
	case StateInput:
		return "enter: start • ctrl+n: toggle CDN • ctrl+o: verbose • esc: quit"
	case StateInitializing, StateCollecting:
		return "esc: cancel"
	case StateComplete, StateError:
		return "r: new run • q: quit"
	}
	return ""
}

// initialize opens the session, creates the manager and discovers groups.
func (m Model) initialize() tea.Cmd {
	ctx, opts, events := m.ctx, m.opts, m.events
	return func() tea.Msg {
		session, err := opts.Settings.NewSession(opts.CookiesFile)
		if err != nil {
			return InitDoneMsg{Err: err}
		}

		manager, err := catalog.NewManager(opts.Settings, session, opts.Log, func(event catalog.ProgressEvent) {
			select {
			case events <- event:
			default:
				// The screen only shows the last few lines anyway.
			}
		})
		if err != nil {
			return InitDoneMsg{Session: session, Err: err}
		}

		if err := manager.Initialize(ctx); err != nil {
			return InitDoneMsg{Session: session, Err: err}
		}

		cat := manager.Catalog()
		names := make([]string, len(cat.Groups))
		for i, g := range cat.Groups {
			names[i] = fmt.Sprintf("%s (%d versions)", g.Key(), len(g.Pages))
		}

		return InitDoneMsg{Groups: names, Manager: manager, Session: session}
	}
}

// collect runs the remaining stages and writes the catalog.
func (m Model) collect() tea.Cmd {
	ctx, manager, skipCDN, output := m.ctx, m.manager, m.skipCDN, m.output
	return func() tea.Msg {
		if manager == nil {
			return RunDoneMsg{Err: errors.New("no manager")}
		}

		err := manager.CollectArtifacts(ctx)
		if err == nil && !skipCDN {
			err = manager.ResolveCDN(ctx)
		}
		return finishRun(output, manager.Catalog(), err)
	}
}

// finishRun writes whatever the run collected, also after a failed or
// cancelled stage. The run error wins over a write error.
func finishRun(output string, cat *catalog.Catalog, runErr error) RunDoneMsg {
	if err := ioutils.WriteJSON(context.Background(), output, cat); err != nil {
		if runErr == nil {
			runErr = err
		} else {
			runErr = fmt.Errorf("%w (catalog not written: %v)", runErr, err)
		}
	}
	return RunDoneMsg{Catalog: cat, Err: runErr}
}

// Run starts the TUI application.
func Run(opts Options) error {
	p := tea.NewProgram(NewModel(opts), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
