package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/banshee-data/stroke.report/internal/httputil"
	"github.com/banshee-data/stroke.report/internal/monitoring"
	"github.com/banshee-data/stroke.report/internal/telemetry"
)

// ErrSuperseded is returned by a Load whose response arrived after a newer
// Load had started. Nothing is rendered for it.
var ErrSuperseded = errors.New("analysis load superseded")

// Pipeline fetches the saved session and keeps one rendered chart per slot.
type Pipeline struct {
	url      string
	client   httputil.HTTPClient
	renderer Renderer
	reporter ErrorReporter
	logf     func(format string, v ...interface{})

	gen atomic.Uint64

	mu     sync.Mutex
	charts map[Slot]Chart
	last   *Projection
}

// NewPipeline returns a pipeline reading from baseURL. A nil reporter only
// logs.
func NewPipeline(baseURL string, client httputil.HTTPClient, renderer Renderer, reporter ErrorReporter) *Pipeline {
	logf := monitoring.Component("analysis")
	if reporter == nil {
		reporter = ErrorReporterFunc(func(err error) { logf("%s", Message(err)) })
	}
	return &Pipeline{
		url:      strings.TrimSuffix(baseURL, "/") + "/api/analysis-data",
		client:   client,
		renderer: renderer,
		reporter: reporter,
		logf:     logf,
		charts:   make(map[Slot]Chart),
	}
}

// Load fetches the session and re-renders every chart. A fetch failure is
// reported and returned and charts from the previous load stay. A render
// failure happens after the previous charts were destroyed, so the charts
// this load managed to draw are destroyed too and every slot is left empty.
func (p *Pipeline) Load(ctx context.Context) (Projection, error) {
	gen := p.gen.Add(1)

	session, err := p.fetch(ctx)
	if p.gen.Load() != gen {
		p.logf("discarding load %d, superseded by %d", gen, p.gen.Load())
		return Projection{}, ErrSuperseded
	}
	if err != nil {
		p.reporter.ReportError(err)
		return Projection{}, err
	}
	if len(session) == 0 {
		p.reporter.ReportError(telemetry.ErrEmptySession)
		return Projection{}, telemetry.ErrEmptySession
	}

	proj := Project(session)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gen.Load() != gen {
		return Projection{}, ErrSuperseded
	}
	if err := p.renderLocked(proj); err != nil {
		p.destroyLocked()
		p.last = nil
		p.reporter.ReportError(err)
		return proj, err
	}
	p.last = &proj
	p.logf("rendered %d records, %d classified", len(session), proj.Pie.Total())
	return proj, nil
}

func (p *Pipeline) fetch(ctx context.Context) (telemetry.Session, error) {
	body, err := httputil.GetJSON(ctx, p.client, p.url)
	if err != nil {
		return nil, &telemetry.TransportError{Op: "GET /api/analysis-data", Err: err}
	}
	var session telemetry.Session
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, &telemetry.DecodeError{What: "analysis data", Err: err}
	}
	return session, nil
}

func (p *Pipeline) renderLocked(proj Projection) error {
	p.destroyLocked()

	chart, err := p.renderer.RenderPie(proj.Pie)
	if err != nil {
		return fmt.Errorf("render %s: %w", SlotPie, err)
	}
	p.charts[SlotPie] = chart

	lines := []struct {
		slot  Slot
		chart LineChart
	}{
		{SlotAccel, proj.Accel},
		{SlotGyro, proj.Gyro},
		{SlotHealth, proj.Health},
	}
	for _, l := range lines {
		chart, err := p.renderer.RenderLine(l.slot, l.chart)
		if err != nil {
			return fmt.Errorf("render %s: %w", l.slot, err)
		}
		p.charts[l.slot] = chart
	}
	return nil
}

func (p *Pipeline) destroyLocked() {
	for _, slot := range Slots {
		chart, ok := p.charts[slot]
		if !ok {
			continue
		}
		if err := chart.Destroy(); err != nil {
			p.logf("destroy %s chart: %v", slot, err)
		}
		delete(p.charts, slot)
	}
}

// Destroy releases every rendered chart.
func (p *Pipeline) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.destroyLocked()
}

// Rendered returns the slots that currently hold a chart, in render order.
func (p *Pipeline) Rendered() []Slot {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Slot
	for _, slot := range Slots {
		if _, ok := p.charts[slot]; ok {
			out = append(out, slot)
		}
	}
	return out
}

// Last returns the most recently rendered projection.
func (p *Pipeline) Last() (Projection, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return Projection{}, false
	}
	return *p.last, true
}
