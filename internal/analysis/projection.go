// Package analysis turns a recorded session into chart projections and
// renders them, replacing whatever the previous load rendered.
package analysis

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/stroke.report/internal/telemetry"
)

// Slot names one chart position. Each slot holds at most one rendered chart.
type Slot string

const (
	SlotPie    Slot = "pie"
	SlotAccel  Slot = "line"
	SlotGyro   Slot = "gyroLine"
	SlotHealth Slot = "health"
)

// Slots lists every slot in render order.
var Slots = []Slot{SlotPie, SlotAccel, SlotGyro, SlotHealth}

// PieColors are assigned to slices in first-occurrence order, cycling.
var PieColors = []string{"#36A2EB", "#FF6384", "#FFCE56", "#4BC0C0"}

// PieSlice is one class and the number of records carrying it.
type PieSlice struct {
	Label string
	Count int
	Color string
}

// PieChart is the class-frequency projection. Slices appear in the order each
// class was first seen.
type PieChart struct {
	Title  string
	Slices []PieSlice
}

// Counts returns the slice counts keyed by label.
func (p PieChart) Counts() map[string]int {
	out := make(map[string]int, len(p.Slices))
	for _, s := range p.Slices {
		out[s.Label] = s.Count
	}
	return out
}

// Total returns the number of classified records.
func (p PieChart) Total() int {
	n := 0
	for _, s := range p.Slices {
		n += s.Count
	}
	return n
}

// Series is one named line aligned to the session index. A nil point is a gap
// where the record lacked the field.
type Series struct {
	Name   string
	Field  string
	Color  string
	Points []*float64
}

// Values returns the points that are present, in order.
func (s Series) Values() []float64 {
	out := make([]float64, 0, len(s.Points))
	for _, p := range s.Points {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out
}

// LineChart is a set of series sharing the 1-based record index as x-axis.
type LineChart struct {
	Title  string
	Index  []int
	Series []Series
}

// Projection is every chart derived from one session.
type Projection struct {
	Pie    PieChart
	Accel  LineChart
	Gyro   LineChart
	Health LineChart
}

// Records returns the session length the projection was built from.
func (p Projection) Records() int { return len(p.Accel.Index) }

type seriesSpec struct {
	name  string
	field string
	color string
}

var (
	accelSpecs = []seriesSpec{
		{"Accel X", telemetry.FieldAccX, "#FF6384"},
		{"Accel Y", telemetry.FieldAccY, "#36A2EB"},
		{"Accel Z", telemetry.FieldAccZ, "#FFCE56"},
	}
	gyroSpecs = []seriesSpec{
		{"Gyro X", telemetry.FieldGyroX, "#4bc0c0"},
		{"Gyro Y", telemetry.FieldGyroY, "#9966ff"},
		{"Gyro Z", telemetry.FieldGyroZ, "#ff9f40"},
	}
	healthSpecs = []seriesSpec{
		{"Heart Rate (BPM)", telemetry.FieldHeartRate, "#dc3545"},
		{"SpO2 (%)", telemetry.FieldSpO2, "#007bff"},
	}
)

// PieOf counts records per class. Records with neither a prediction nor a
// label are left out.
func PieOf(s telemetry.Session) PieChart {
	pie := PieChart{Title: "Prediction Distribution"}
	pos := make(map[string]int)
	for _, rec := range s {
		label, ok := rec.Class()
		if !ok {
			continue
		}
		i, seen := pos[label]
		if !seen {
			i = len(pie.Slices)
			pos[label] = i
			pie.Slices = append(pie.Slices, PieSlice{
				Label: label,
				Color: PieColors[i%len(PieColors)],
			})
		}
		pie.Slices[i].Count++
	}
	return pie
}

// AccelSeries projects the accelerometer axes.
func AccelSeries(s telemetry.Session) LineChart {
	return lineOf("Accelerometer", s, accelSpecs)
}

// GyroSeries projects the gyroscope axes.
func GyroSeries(s telemetry.Session) LineChart {
	return lineOf("Gyroscope", s, gyroSpecs)
}

// HealthSeries projects heart rate and SpO2.
func HealthSeries(s telemetry.Session) LineChart {
	return lineOf("Health Metrics", s, healthSpecs)
}

// Project builds every projection for s.
func Project(s telemetry.Session) Projection {
	return Projection{
		Pie:    PieOf(s),
		Accel:  AccelSeries(s),
		Gyro:   GyroSeries(s),
		Health: HealthSeries(s),
	}
}

func lineOf(title string, s telemetry.Session, specs []seriesSpec) LineChart {
	chart := LineChart{
		Title:  title,
		Index:  make([]int, len(s)),
		Series: make([]Series, len(specs)),
	}
	for i := range s {
		chart.Index[i] = i + 1
	}
	for j, spec := range specs {
		points := make([]*float64, len(s))
		for i, rec := range s {
			if v := rec.Field(spec.field); v != nil {
				x := *v
				points[i] = &x
			}
		}
		chart.Series[j] = Series{Name: spec.name, Field: spec.field, Color: spec.color, Points: points}
	}
	return chart
}

// SeriesSummary describes the present points of one series.
type SeriesSummary struct {
	Name    string
	Present int
	Missing int
	Min     float64
	Max     float64
	Mean    float64
	StdDev  float64
}

// Summarise reduces each series of c to its summary statistics. A series with
// no present points reports zeros.
func Summarise(c LineChart) []SeriesSummary {
	out := make([]SeriesSummary, len(c.Series))
	for i, s := range c.Series {
		vals := s.Values()
		sum := SeriesSummary{Name: s.Name, Present: len(vals), Missing: len(s.Points) - len(vals)}
		if len(vals) > 0 {
			sum.Min = floats.Min(vals)
			sum.Max = floats.Max(vals)
			if len(vals) > 1 {
				sum.Mean, sum.StdDev = stat.MeanStdDev(vals, nil)
			} else {
				sum.Mean = vals[0]
			}
		}
		out[i] = sum
	}
	return out
}
