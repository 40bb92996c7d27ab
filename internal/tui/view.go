package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/banshee-data/stroke.report/internal/analysis"
	"github.com/banshee-data/stroke.report/internal/live"
	"github.com/banshee-data/stroke.report/internal/telemetry"
)

const barWidth = 30

func (m Model) View() string {
	var sections []string
	sections = append(sections, m.renderHeader())

	switch m.tab {
	case TabAnalysis:
		sections = append(sections, m.renderAnalysis())
	default:
		sections = append(sections, m.renderLive())
	}

	if m.notice != "" {
		style := infoStyle
		if m.noticeError {
			style = errorStyle
		}
		sections = append(sections, style.Render(m.notice))
	}
	sections = append(sections, m.renderFooter())
	return strings.Join(sections, "\n")
}

func (m Model) renderHeader() string {
	liveTab, analysisTab := tabStyle, tabStyle
	if m.tab == TabAnalysis {
		analysisTab = activeTabStyle
	} else {
		liveTab = activeTabStyle
	}
	return lipgloss.JoinHorizontal(lipgloss.Top,
		titleStyle.Render("STROKE.REPORT  "),
		liveTab.Render("1 Live"),
		analysisTab.Render("2 Analysis"),
		"  ",
		m.renderConnection(),
	)
}

func (m Model) renderConnection() string {
	switch m.conn {
	case live.Open:
		return successStyle.Render("● " + m.conn.String())
	case live.Errored:
		return errorStyle.Render("● " + m.conn.String())
	default:
		return dimStyle.Render("○ " + m.conn.String())
	}
}

func resultStyle(s live.ResultStyle) lipgloss.Style {
	switch s {
	case live.StyleError:
		return errorStyle
	case live.StyleInfo:
		return infoStyle
	default:
		return successStyle
	}
}

func (m Model) renderLive() string {
	b := m.board
	var lines []string

	if b.Loading {
		lines = append(lines, dimStyle.Render("Waiting for the live stream..."))
	} else {
		lines = append(lines, resultStyle(b.ResultStyle).Render(b.ResultText))
	}
	lines = append(lines, "")

	for _, f := range telemetry.SensorFields {
		value := "-"
		if b.Inputs != nil {
			v, _ := b.Inputs.Field(f)
			value = fmt.Sprintf("%.3f", v)
		}
		lines = append(lines, labelStyle.Render(f)+value)
	}
	lines = append(lines, "")

	if b.Indicator == live.IndicatorRecording {
		lines = append(lines, recordingStyle.Render("● "+b.IndicatorText))
	} else {
		lines = append(lines, dimStyle.Render("○ "+b.IndicatorText))
	}
	lines = append(lines, controlHint(KeyStart, "start", b.StartEnabled)+"  "+controlHint(KeyStop, "stop", b.StopEnabled))

	left := panelStyle.Render(strings.Join(lines, "\n"))
	return lipgloss.JoinHorizontal(lipgloss.Top, left, " ", panelStyle.Render(m.renderLog()))
}

func controlHint(key, label string, enabled bool) string {
	text := "[" + key + "] " + label
	if !enabled {
		return dimStyle.Render(text)
	}
	return text
}

// logRows is how many log entries fit beside the live panel.
func (m Model) logRows() int {
	rows := m.height - 6
	if rows < 5 {
		rows = 5
	}
	return rows
}

func (m Model) renderLog() string {
	lines := []string{titleStyle.Render("Prediction Log")}
	if len(m.board.Log) == 0 {
		return strings.Join(append(lines, dimStyle.Render("no predictions yet")), "\n")
	}
	for i, e := range m.board.Log {
		if i >= m.logRows() {
			lines = append(lines, dimStyle.Render(fmt.Sprintf("... %d more", len(m.board.Log)-i)))
			break
		}
		lines = append(lines, dimStyle.Render(e.ObservedAt.Format("15:04:05"))+"  "+e.Label)
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderAnalysis() string {
	if m.loading {
		return panelStyle.Render(dimStyle.Render("Loading analysis..."))
	}
	if m.analysis != "" {
		style := infoStyle
		if m.failed {
			style = errorStyle
		}
		return panelStyle.Render(style.Render(m.analysis))
	}
	if m.proj == nil {
		return panelStyle.Render(dimStyle.Render("Press r to load the analysis."))
	}

	sections := []string{
		panelStyle.Render(renderPie(m.proj.Pie)),
	}
	for _, c := range []analysis.LineChart{m.proj.Accel, m.proj.Gyro, m.proj.Health} {
		sections = append(sections, panelStyle.Render(renderSummary(c)))
	}
	if len(m.exported) > 0 {
		sections = append(sections, dimStyle.Render("Charts written to "+strings.Join(m.exported, ", ")))
	}
	return strings.Join(sections, "\n")
}

func renderPie(p analysis.PieChart) string {
	lines := []string{titleStyle.Render(p.Title)}
	total := p.Total()
	if total == 0 {
		return strings.Join(append(lines, dimStyle.Render("no classified records")), "\n")
	}
	for _, s := range p.Slices {
		frac := float64(s.Count) / float64(total)
		bar := lipgloss.NewStyle().Foreground(lipgloss.Color(s.Color)).
			Render(strings.Repeat("█", int(frac*barWidth+0.5)))
		lines = append(lines, fmt.Sprintf("%-12s %s %d (%.0f%%)", s.Label, bar, s.Count, frac*100))
	}
	return strings.Join(lines, "\n")
}

func renderSummary(c analysis.LineChart) string {
	lines := []string{
		titleStyle.Render(c.Title),
		dimStyle.Render(fmt.Sprintf("%-18s %9s %9s %9s %9s %7s", "series", "min", "max", "mean", "std", "gaps")),
	}
	for _, s := range analysis.Summarise(c) {
		lines = append(lines, fmt.Sprintf("%-18s %9.3f %9.3f %9.3f %9.3f %7d", s.Name, s.Min, s.Max, s.Mean, s.StdDev, s.Missing))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderFooter() string {
	help := "tab/1/2 switch  s start  x stop  q quit"
	if m.tab == TabAnalysis {
		help = "tab/1/2 switch  r refresh  q quit"
	}
	return dimStyle.Render(help)
}
