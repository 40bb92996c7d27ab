package classifier

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"strconv"
	"strings"

	"github.com/banshee-data/stroke.report/internal/telemetry"
)

// ReadCSV reads labelled samples. The header must name the six motion
// columns and a label column; other columns are ignored.
func ReadCSV(r io.Reader) ([]Sample, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(h)] = i
	}
	cols := make([]int, len(telemetry.MotionFields))
	for i, f := range telemetry.MotionFields {
		c, ok := index[f]
		if !ok {
			return nil, fmt.Errorf("missing column %q", f)
		}
		cols[i] = c
	}
	labelCol, ok := index["label"]
	if !ok {
		return nil, errors.New(`missing column "label"`)
	}

	var out []Sample
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		s := Sample{Features: make([]float64, len(cols)), Label: strings.TrimSpace(rec[labelCol])}
		for i, c := range cols {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[c]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %s: %w", line, telemetry.MotionFields[i], err)
			}
			s.Features[i] = v
		}
		out = append(out, s)
	}
	return out, nil
}

// DefaultTestFraction holds out 35% of Forehand samples and 25% of every
// other class.
func DefaultTestFraction(label string) float64 {
	if label == "Forehand" {
		return 0.35
	}
	return 0.25
}

// TrainTestSplit splits each class separately, shuffling with seed, and
// concatenates the parts in first-seen class order. The test share of a class
// is rounded up.
func TrainTestSplit(samples []Sample, fraction func(label string) float64, seed int64) (train, test []Sample) {
	if fraction == nil {
		fraction = DefaultTestFraction
	}
	var order []string
	groups := make(map[string][]Sample)
	for _, s := range samples {
		if _, ok := groups[s.Label]; !ok {
			order = append(order, s.Label)
		}
		groups[s.Label] = append(groups[s.Label], s)
	}

	for _, label := range order {
		g := groups[label]
		rng := rand.New(rand.NewSource(seed))
		rng.Shuffle(len(g), func(i, j int) { g[i], g[j] = g[j], g[i] })

		n := int(math.Ceil(float64(len(g)) * fraction(label)))
		if n > len(g) {
			n = len(g)
		}
		test = append(test, g[:n]...)
		train = append(train, g[n:]...)
	}
	return train, test
}
