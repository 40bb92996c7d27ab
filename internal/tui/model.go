// Package tui is the terminal dashboard: a live tab fed by the live stream
// controller and an analysis tab fed by the analysis pipeline.
package tui

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/banshee-data/stroke.report/internal/analysis"
	"github.com/banshee-data/stroke.report/internal/live"
	"github.com/banshee-data/stroke.report/internal/telemetry"
)

// Tab selects the visible view.
type Tab int

const (
	TabLive Tab = iota
	TabAnalysis
)

// commandTimeout bounds a start or stop request.
const commandTimeout = 5 * time.Second

// Commander sends logging commands to the backend.
type Commander interface {
	StartLogging(ctx context.Context) error
	StopLogging(ctx context.Context) error
}

// Loader produces the analysis projection.
type Loader interface {
	Load(ctx context.Context) (analysis.Projection, error)
}

// Reporter returns the analysis.ErrorReporter that hands each failure to
// the dashboard through send, normally (*tea.Program).Send.
func Reporter(send func(tea.Msg)) analysis.ErrorReporter {
	return analysis.ErrorReporterFunc(func(err error) {
		send(AnalysisErrorMsg{Err: err})
	})
}

// Deps wires a Model to the rest of the dashboard.
type Deps struct {
	Board    *live.Board
	Commands Commander
	Loader   Loader
	// Export is called after every successful load and returns the files
	// it wrote. It may be nil.
	Export func() ([]string, error)
}

// Model is the root bubbletea model.
type Model struct {
	deps Deps

	tab    Tab
	width  int
	height int

	conn  live.ConnectionState
	board live.BoardSnapshot

	loading  bool
	proj     *analysis.Projection
	analysis string // notice or error text for the analysis tab
	failed   bool
	exported []string

	notice      string
	noticeError bool
}

// New returns a model on the live tab.
func New(deps Deps) Model {
	m := Model{deps: deps, conn: live.Connecting}
	if deps.Board != nil {
		m.board = deps.Board.Snapshot()
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return nil
}

// Tab returns the visible tab.
func (m Model) Tab() Tab { return m.tab }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case BoardChangedMsg:
		if m.deps.Board != nil {
			m.board = m.deps.Board.Snapshot()
		}
		return m, nil

	case ConnectionMsg:
		m.conn = msg.State
		return m, nil

	case CommandDoneMsg:
		if msg.Err != nil {
			m.notice = msg.Op + " failed: " + msg.Err.Error()
			m.noticeError = true
		} else {
			m.notice = msg.Op + " request sent."
			m.noticeError = false
		}
		return m, nil

	case AnalysisErrorMsg:
		m.analysis = analysis.Message(msg.Err)
		m.failed = !telemetry.IsUserGuidance(msg.Err)
		return m, nil

	case AnalysisLoadedMsg:
		if errors.Is(msg.Err, analysis.ErrSuperseded) {
			return m, nil
		}
		m.loading = false
		if msg.Err != nil {
			return m, nil
		}
		proj := msg.Projection
		m.proj = &proj
		m.analysis = ""
		m.failed = false
		m.exported = msg.Exported
		if msg.ExportErr != nil {
			m.notice = "Chart export failed: " + msg.ExportErr.Error()
			m.noticeError = true
		}
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyQuit, KeyCtrlC:
		return m, tea.Quit

	case KeyTab:
		if m.tab == TabLive {
			return m.enterAnalysis()
		}
		m.tab = TabLive
		return m, nil

	case KeyLiveTab:
		m.tab = TabLive
		return m, nil

	case KeyAnalysisTab:
		if m.tab == TabAnalysis {
			return m, nil
		}
		return m.enterAnalysis()

	case KeyStart:
		if m.deps.Commands == nil || !m.board.StartEnabled {
			return m, nil
		}
		return m, commandCmd("Start logging", m.deps.Commands.StartLogging)

	case KeyStop:
		if m.deps.Commands == nil || !m.board.StopEnabled {
			return m, nil
		}
		return m, commandCmd("Stop logging", m.deps.Commands.StopLogging)

	case KeyRefresh:
		if m.tab != TabAnalysis {
			return m, nil
		}
		return m.load()
	}
	return m, nil
}

// enterAnalysis switches tabs and always reloads, so the charts reflect the
// session saved by the most recent stop.
func (m Model) enterAnalysis() (tea.Model, tea.Cmd) {
	m.tab = TabAnalysis
	return m.load()
}

func (m Model) load() (tea.Model, tea.Cmd) {
	if m.deps.Loader == nil {
		return m, nil
	}
	m.loading = true
	return m, loadCmd(m.deps.Loader, m.deps.Export)
}

func commandCmd(op string, send func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		return CommandDoneMsg{Op: op, Err: send(ctx)}
	}
}

func loadCmd(loader Loader, export func() ([]string, error)) tea.Cmd {
	return func() tea.Msg {
		proj, err := loader.Load(context.Background())
		if err != nil {
			return AnalysisLoadedMsg{Err: err}
		}
		msg := AnalysisLoadedMsg{Projection: proj}
		if export != nil {
			msg.Exported, msg.ExportErr = export()
		}
		return msg
	}
}
