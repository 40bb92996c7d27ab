package analysis

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/stroke.report/internal/telemetry"
)

func sessionOf(t *testing.T, raw string) telemetry.Session {
	t.Helper()
	var s telemetry.Session
	require.NoError(t, json.Unmarshal([]byte(raw), &s))
	return s
}

func TestPieOfSkipsUnclassified(t *testing.T) {
	pie := PieOf(sessionOf(t, `[{"prediction":"swing"},{"label":"idle"},{}]`))
	assert.Equal(t, map[string]int{"swing": 1, "idle": 1}, pie.Counts())
	assert.Equal(t, 2, pie.Total())
}

func TestPieOfFirstOccurrenceOrder(t *testing.T) {
	pie := PieOf(sessionOf(t, `[
		{"prediction":"Idle"},{"prediction":"Forehand"},{"label":"Idle"},
		{"prediction":"Backhand"},{"prediction":"Forehand"},{"prediction":"Serve"},{"prediction":"Smash"}
	]`))
	want := []PieSlice{
		{Label: "Idle", Count: 2, Color: "#36A2EB"},
		{Label: "Forehand", Count: 2, Color: "#FF6384"},
		{Label: "Backhand", Count: 1, Color: "#FFCE56"},
		{Label: "Serve", Count: 1, Color: "#4BC0C0"},
		{Label: "Smash", Count: 1, Color: "#36A2EB"},
	}
	if diff := cmp.Diff(want, pie.Slices); diff != "" {
		t.Errorf("slices mismatch (-want +got):\n%s", diff)
	}
}

func TestPieOfPredictionBeatsLabel(t *testing.T) {
	pie := PieOf(sessionOf(t, `[{"prediction":"Forehand","label":"Backhand"}]`))
	assert.Equal(t, map[string]int{"Forehand": 1}, pie.Counts())
}

func TestSeriesAlignedToIndex(t *testing.T) {
	for _, n := range []int{0, 1, 7, 120} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			s := make(telemetry.Session, n)
			for i := range s {
				s[i] = telemetry.RecordFromReading(telemetry.SensorReading{AccX: float64(i), HeartRate: 70}, "Idle")
			}
			proj := Project(s)
			assert.Equal(t, n, proj.Records())
			for _, c := range []LineChart{proj.Accel, proj.Gyro, proj.Health} {
				require.Len(t, c.Index, n)
				for i, x := range c.Index {
					assert.Equal(t, i+1, x)
				}
				for _, series := range c.Series {
					assert.Len(t, series.Points, n, series.Name)
				}
			}
		})
	}
}

func TestSeriesNamesAndColours(t *testing.T) {
	proj := Project(nil)
	names := func(c LineChart) (out []string) {
		for _, s := range c.Series {
			out = append(out, s.Name+" "+s.Color)
		}
		return out
	}
	assert.Equal(t, []string{"Accel X #FF6384", "Accel Y #36A2EB", "Accel Z #FFCE56"}, names(proj.Accel))
	assert.Equal(t, []string{"Gyro X #4bc0c0", "Gyro Y #9966ff", "Gyro Z #ff9f40"}, names(proj.Gyro))
	assert.Equal(t, []string{"Heart Rate (BPM) #dc3545", "SpO2 (%) #007bff"}, names(proj.Health))
}

func TestMissingFieldLeavesGap(t *testing.T) {
	s := sessionOf(t, `[
		{"acc_x":1,"acc_y":2,"acc_z":3,"heart_rate":80,"spo2":97},
		{"acc_x":4,"acc_z":6,"heart_rate":81},
		{"acc_x":7,"acc_y":8,"acc_z":9,"heart_rate":82,"spo2":98}
	]`)
	accel := AccelSeries(s)
	require.Len(t, accel.Series[1].Points, 3)
	assert.Nil(t, accel.Series[1].Points[1])
	assert.Equal(t, []float64{2, 8}, accel.Series[1].Values())
	assert.Equal(t, []float64{1, 4, 7}, accel.Series[0].Values())

	health := HealthSeries(s)
	assert.Equal(t, []float64{80, 81, 82}, health.Series[0].Values())
	assert.Equal(t, []float64{97, 98}, health.Series[1].Values())

	gyro := GyroSeries(s)
	for _, series := range gyro.Series {
		assert.Len(t, series.Points, 3)
		assert.Empty(t, series.Values())
	}
}

func TestSummarise(t *testing.T) {
	s := sessionOf(t, `[{"heart_rate":70,"spo2":96},{"heart_rate":80},{"heart_rate":90,"spo2":98}]`)
	sums := Summarise(HealthSeries(s))
	require.Len(t, sums, 2)

	hr := sums[0]
	assert.Equal(t, "Heart Rate (BPM)", hr.Name)
	assert.Equal(t, 3, hr.Present)
	assert.Equal(t, 0, hr.Missing)
	assert.Equal(t, 70.0, hr.Min)
	assert.Equal(t, 90.0, hr.Max)
	assert.InDelta(t, 80.0, hr.Mean, 1e-9)
	assert.InDelta(t, 10.0, hr.StdDev, 1e-9)

	spo2 := sums[1]
	assert.Equal(t, 2, spo2.Present)
	assert.Equal(t, 1, spo2.Missing)
	assert.InDelta(t, 97.0, spo2.Mean, 1e-9)

	empty := Summarise(GyroSeries(s))
	assert.Equal(t, 0, empty[0].Present)
	assert.Equal(t, 0.0, empty[0].Mean)
}
