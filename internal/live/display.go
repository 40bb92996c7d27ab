package live

import (
	"sync"

	"github.com/banshee-data/stroke.report/internal/telemetry"
)

// ResultStyle selects how the result line is presented.
type ResultStyle int

const (
	StyleSuccess ResultStyle = iota
	StyleError
	StyleInfo
)

func (s ResultStyle) String() string {
	switch s {
	case StyleError:
		return "result-error"
	case StyleInfo:
		return "result-info"
	default:
		return "result-success"
	}
}

// Display is the live region of the dashboard that the controller writes to.
type Display interface {
	ShowResult(text string, style ResultStyle)
	SetInputs(r telemetry.SensorReading)
	SetRecording(recording bool)
	SetPredictionLog(entries []telemetry.PredictionLogEntry)
}

// Indicator classes and captions for the recording status.
const (
	IndicatorRecording     = "recording"
	IndicatorIdle          = "idle"
	IndicatorRecordingText = "Recording Data"
	IndicatorIdleText      = "Logging Idle"
)

// BoardSnapshot is a point-in-time copy of everything the live region shows.
type BoardSnapshot struct {
	Loading       bool
	ResultText    string
	ResultStyle   ResultStyle
	Inputs        *telemetry.SensorReading
	Indicator     string
	IndicatorText string
	StartEnabled  bool
	StopEnabled   bool
	Log           []telemetry.PredictionLogEntry
}

// Board is the in-memory model of the live dashboard region. It is safe for
// concurrent use: the controller writes from its reader goroutine while a UI
// reads snapshots.
type Board struct {
	mu       sync.Mutex
	state    BoardSnapshot
	onChange func()
}

// NewBoard returns a board in its initial state: loader showing, logging
// idle, start enabled and stop disabled.
func NewBoard() *Board {
	return &Board{state: BoardSnapshot{
		Loading:       true,
		Indicator:     IndicatorIdle,
		IndicatorText: IndicatorIdleText,
		StartEnabled:  true,
		StopEnabled:   false,
	}}
}

// OnChange registers f to be called after every mutation. f runs outside the
// board lock and may call Snapshot.
func (b *Board) OnChange(f func()) {
	b.mu.Lock()
	b.onChange = f
	b.mu.Unlock()
}

func (b *Board) update(mutate func(s *BoardSnapshot)) {
	b.mu.Lock()
	mutate(&b.state)
	f := b.onChange
	b.mu.Unlock()
	if f != nil {
		f()
	}
}

// ShowResult hides the loader and replaces the result line.
func (b *Board) ShowResult(text string, style ResultStyle) {
	b.update(func(s *BoardSnapshot) {
		s.Loading = false
		s.ResultText = text
		s.ResultStyle = style
	})
}

// SetInputs overwrites every sensor input field.
func (b *Board) SetInputs(r telemetry.SensorReading) {
	b.update(func(s *BoardSnapshot) {
		s.Inputs = &r
	})
}

// SetRecording switches the indicator and the start/stop controls.
func (b *Board) SetRecording(recording bool) {
	b.update(func(s *BoardSnapshot) {
		if recording {
			s.Indicator = IndicatorRecording
			s.IndicatorText = IndicatorRecordingText
		} else {
			s.Indicator = IndicatorIdle
			s.IndicatorText = IndicatorIdleText
		}
		s.StartEnabled = !recording
		s.StopEnabled = recording
	})
}

// SetPredictionLog replaces the rendered prediction history.
func (b *Board) SetPredictionLog(entries []telemetry.PredictionLogEntry) {
	cp := make([]telemetry.PredictionLogEntry, len(entries))
	copy(cp, entries)
	b.update(func(s *BoardSnapshot) {
		s.Log = cp
	})
}

// Snapshot returns a copy of the current board.
func (b *Board) Snapshot() BoardSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.state
	if b.state.Inputs != nil {
		in := *b.state.Inputs
		out.Inputs = &in
	}
	out.Log = make([]telemetry.PredictionLogEntry, len(b.state.Log))
	copy(out.Log, b.state.Log)
	return out
}
