package analysis

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"sync"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// PlotRenderer writes each chart as a PNG under Dir, named after its slot.
// Destroying a chart removes its file.
type PlotRenderer struct {
	Dir    string
	Width  vg.Length
	Height vg.Length
}

// NewPlotRenderer returns a renderer writing 10x4 inch images into dir.
func NewPlotRenderer(dir string) *PlotRenderer {
	return &PlotRenderer{Dir: dir, Width: 10 * vg.Inch, Height: 4 * vg.Inch}
}

type fileChart struct {
	path string
	once sync.Once
	err  error
}

func (c *fileChart) Destroy() error {
	c.once.Do(func() {
		if err := os.Remove(c.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			c.err = err
		}
	})
	return c.err
}

// Path returns the slot's image path.
func (r *PlotRenderer) Path(slot Slot) string {
	return filepath.Join(r.Dir, string(slot)+".png")
}

func (r *PlotRenderer) save(p *plot.Plot, slot Slot) (Chart, error) {
	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create plot dir: %w", err)
	}
	path := r.Path(slot)
	if err := p.Save(r.Width, r.Height, path); err != nil {
		return nil, fmt.Errorf("save %s: %w", path, err)
	}
	return &fileChart{path: path}, nil
}

// RenderPie draws the class counts as one coloured bar per class.
func (r *PlotRenderer) RenderPie(pc PieChart) (Chart, error) {
	p := plot.New()
	p.Title.Text = pc.Title
	p.Y.Label.Text = "Records"

	names := make([]string, len(pc.Slices))
	for i, s := range pc.Slices {
		names[i] = s.Label
		bar, err := plotter.NewBarChart(plotter.Values{float64(s.Count)}, vg.Points(30))
		if err != nil {
			return nil, fmt.Errorf("bar %q: %w", s.Label, err)
		}
		bar.XMin = float64(i)
		bar.Color = hexColor(s.Color)
		bar.LineStyle.Width = 0
		p.Add(bar)
	}
	if len(names) > 0 {
		p.NominalX(names...)
	}
	return r.save(p, SlotPie)
}

// RenderLine draws each series, breaking the line where points are missing.
func (r *PlotRenderer) RenderLine(slot Slot, c LineChart) (Chart, error) {
	p := plot.New()
	p.Title.Text = c.Title
	p.X.Label.Text = "Record"
	p.Legend.Top = true

	for _, s := range c.Series {
		col := hexColor(s.Color)
		var legend *plotter.Line
		for _, seg := range segments(c.Index, s.Points) {
			l, err := plotter.NewLine(seg)
			if err != nil {
				return nil, fmt.Errorf("series %q: %w", s.Name, err)
			}
			l.Color = col
			l.Width = vg.Points(1)
			p.Add(l)
			if legend == nil {
				legend = l
			}
		}
		if legend != nil {
			p.Legend.Add(s.Name, legend)
		}
	}
	return r.save(p, slot)
}

// segments splits points into runs of present values.
func segments(index []int, points []*float64) []plotter.XYs {
	var out []plotter.XYs
	var cur plotter.XYs
	for i, v := range points {
		if v == nil {
			if len(cur) > 0 {
				out = append(out, cur)
				cur = nil
			}
			continue
		}
		cur = append(cur, plotter.XY{X: float64(index[i]), Y: *v})
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

// hexColor parses "#rrggbb". Anything else is black.
func hexColor(s string) color.Color {
	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "#%02x%02x%02x", &r, &g, &b); err != nil {
		return color.Black
	}
	return color.RGBA{R: r, G: g, B: b, A: 255}
}
