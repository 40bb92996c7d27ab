package analysis

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// EChartsRenderer keeps the current go-echarts chart for each slot and writes
// them as one HTML page.
type EChartsRenderer struct {
	mu     sync.Mutex
	title  string
	charts map[Slot]components.Charter
}

// NewEChartsRenderer returns an empty renderer whose page carries title.
func NewEChartsRenderer(title string) *EChartsRenderer {
	return &EChartsRenderer{title: title, charts: make(map[Slot]components.Charter)}
}

type echartsChart struct {
	r     *EChartsRenderer
	slot  Slot
	chart components.Charter
	once  sync.Once
}

func (c *echartsChart) Destroy() error {
	c.once.Do(func() {
		c.r.mu.Lock()
		defer c.r.mu.Unlock()
		if c.r.charts[c.slot] == c.chart {
			delete(c.r.charts, c.slot)
		}
	})
	return nil
}

func (r *EChartsRenderer) hold(slot Slot, chart components.Charter) Chart {
	r.mu.Lock()
	r.charts[slot] = chart
	r.mu.Unlock()
	return &echartsChart{r: r, slot: slot, chart: chart}
}

func globalOpts(title, subtitle string) []charts.GlobalOpts {
	return []charts.GlobalOpts{
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
	}
}

// RenderPie renders the class-frequency chart.
func (r *EChartsRenderer) RenderPie(p PieChart) (Chart, error) {
	data := make([]opts.PieData, 0, len(p.Slices))
	for _, s := range p.Slices {
		data = append(data, opts.PieData{
			Name:      s.Label,
			Value:     s.Count,
			ItemStyle: &opts.ItemStyle{Color: s.Color},
		})
	}

	pie := charts.NewPie()
	pie.SetGlobalOptions(globalOpts(p.Title, fmt.Sprintf("records=%d", p.Total()))...)
	pie.AddSeries("predictions", data,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Formatter: "{b}: {c}"}),
	)
	return r.hold(SlotPie, pie), nil
}

// RenderLine renders a series chart into slot. Missing points are drawn as
// gaps.
func (r *EChartsRenderer) RenderLine(slot Slot, c LineChart) (Chart, error) {
	line := charts.NewLine()
	line.SetGlobalOptions(globalOpts(c.Title, fmt.Sprintf("records=%d", len(c.Index)))...)
	line.SetXAxis(c.Index)
	for _, s := range c.Series {
		data := make([]opts.LineData, len(s.Points))
		for i, p := range s.Points {
			if p == nil {
				data[i] = opts.LineData{Value: "-"}
				continue
			}
			data[i] = opts.LineData{Value: *p}
		}
		line.AddSeries(s.Name, data,
			charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: s.Color}),
			charts.WithLineStyleOpts(opts.LineStyle{Color: s.Color}),
		)
	}
	return r.hold(slot, line), nil
}

// Held returns the slots with a live chart, in render order.
func (r *EChartsRenderer) Held() []Slot {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Slot
	for _, slot := range Slots {
		if _, ok := r.charts[slot]; ok {
			out = append(out, slot)
		}
	}
	return out
}

// WriteHTML renders every held chart into a single page.
func (r *EChartsRenderer) WriteHTML(w io.Writer) error {
	r.mu.Lock()
	page := components.NewPage()
	page.PageTitle = r.title
	for _, slot := range Slots {
		if c, ok := r.charts[slot]; ok {
			page.AddCharts(c)
		}
	}
	r.mu.Unlock()

	if err := page.Render(w); err != nil {
		return fmt.Errorf("render analysis page: %w", err)
	}
	return nil
}

// WriteFile writes the page to path, creating its directory.
func (r *EChartsRenderer) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := r.WriteHTML(&buf); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// WritePage renders proj straight to w as an HTML page.
func WritePage(w io.Writer, title string, proj Projection) error {
	r := NewEChartsRenderer(title)
	if _, err := r.RenderPie(proj.Pie); err != nil {
		return err
	}
	for _, l := range []struct {
		slot  Slot
		chart LineChart
	}{{SlotAccel, proj.Accel}, {SlotGyro, proj.Gyro}, {SlotHealth, proj.Health}} {
		if _, err := r.RenderLine(l.slot, l.chart); err != nil {
			return err
		}
	}
	return r.WriteHTML(w)
}
