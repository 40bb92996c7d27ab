package analysis

import (
	"errors"
	"fmt"

	"github.com/banshee-data/stroke.report/internal/telemetry"
)

// Chart is one rendered chart instance.
type Chart interface {
	// Destroy releases the chart. Destroying twice is a no-op.
	Destroy() error
}

// Renderer draws projections into charts.
type Renderer interface {
	RenderPie(p PieChart) (Chart, error)
	RenderLine(slot Slot, c LineChart) (Chart, error)
}

// ErrorReporter receives every analysis failure, including the empty-session
// notice.
type ErrorReporter interface {
	ReportError(err error)
}

// ErrorReporterFunc adapts a function to ErrorReporter.
type ErrorReporterFunc func(err error)

func (f ErrorReporterFunc) ReportError(err error) { f(err) }

// EmptySessionNotice is shown when there is nothing to analyse.
const EmptySessionNotice = "No data logged yet. Start and stop a logging session first."

// Message returns the text to show a user for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	if telemetry.IsUserGuidance(err) {
		return EmptySessionNotice
	}
	return fmt.Sprintf("Failed to load analysis data: %v", err)
}

// MultiRenderer draws every chart with each of its renderers in turn.
type MultiRenderer []Renderer

type multiChart []Chart

func (m multiChart) Destroy() error {
	var errs []error
	for _, c := range m {
		if err := c.Destroy(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiRenderer) each(draw func(r Renderer) (Chart, error)) (Chart, error) {
	out := make(multiChart, 0, len(m))
	for _, r := range m {
		c, err := draw(r)
		if err != nil {
			out.Destroy()
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (m MultiRenderer) RenderPie(p PieChart) (Chart, error) {
	return m.each(func(r Renderer) (Chart, error) { return r.RenderPie(p) })
}

func (m MultiRenderer) RenderLine(slot Slot, c LineChart) (Chart, error) {
	return m.each(func(r Renderer) (Chart, error) { return r.RenderLine(slot, c) })
}
