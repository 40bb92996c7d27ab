package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/stroke.report/internal/telemetry"
)

// DefaultK is the neighbour count used when training.
const DefaultK = 3

// ErrNoModel is returned when classifying without a loaded model.
var ErrNoModel = errors.New("model or scaler not loaded")

// Predictor classifies one motion vector.
type Predictor interface {
	Predict(motion []float64) (string, error)
}

// Sample is one labelled feature vector.
type Sample struct {
	Features []float64
	Label    string
}

// Model is a fitted scaler plus the scaled training set it votes over.
type Model struct {
	Features []string    `json:"features"`
	K        int         `json:"k"`
	Classes  []string    `json:"classes"`
	Scaler   *Scaler     `json:"scaler"`
	Points   [][]float64 `json:"points"`
	Labels   []string    `json:"labels"`
}

// Train fits the scaler on samples and stores the scaled points.
func Train(samples []Sample, k int) (*Model, error) {
	if len(samples) == 0 {
		return nil, errors.New("no training samples")
	}
	if k <= 0 {
		k = DefaultK
	}
	rows := make([][]float64, len(samples))
	for i, s := range samples {
		rows[i] = s.Features
	}
	scaler, err := FitScaler(rows)
	if err != nil {
		return nil, err
	}

	m := &Model{
		Features: append([]string(nil), telemetry.MotionFields...),
		K:        k,
		Scaler:   scaler,
		Points:   make([][]float64, len(samples)),
		Labels:   make([]string, len(samples)),
	}
	seen := make(map[string]bool)
	for i, s := range samples {
		p, err := scaler.Transform(s.Features)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		m.Points[i] = p
		m.Labels[i] = s.Label
		if !seen[s.Label] {
			seen[s.Label] = true
			m.Classes = append(m.Classes, s.Label)
		}
	}
	sort.Strings(m.Classes)
	return m, nil
}

type neighbour struct {
	dist  float64
	label string
}

// Predict returns the majority label among the K nearest training points.
// Ties go to the class that sorts first.
func (m *Model) Predict(motion []float64) (string, error) {
	if m == nil || m.Scaler == nil || len(m.Points) == 0 {
		return "", ErrNoModel
	}
	x, err := m.Scaler.Transform(motion)
	if err != nil {
		return "", err
	}

	nb := make([]neighbour, len(m.Points))
	for i, p := range m.Points {
		nb[i] = neighbour{dist: floats.Distance(x, p, 2), label: m.Labels[i]}
	}
	sort.SliceStable(nb, func(i, j int) bool { return nb[i].dist < nb[j].dist })

	k := m.K
	if k > len(nb) {
		k = len(nb)
	}
	votes := make(map[string]int, len(m.Classes))
	for _, n := range nb[:k] {
		votes[n.label]++
	}
	best, bestVotes := "", -1
	for _, c := range m.Classes {
		if votes[c] > bestVotes {
			best, bestVotes = c, votes[c]
		}
	}
	return best, nil
}

// PredictAll classifies every sample.
func (m *Model) PredictAll(samples []Sample) ([]string, error) {
	out := make([]string, len(samples))
	for i, s := range samples {
		p, err := m.Predict(s.Features)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		out[i] = p
	}
	return out, nil
}

// Save writes the model as JSON.
func (m *Model) Save(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(m)
}

// SaveFile writes the model to path, creating parent directories.
func (m *Model) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create model file: %w", err)
	}
	if err := m.Save(f); err != nil {
		f.Close()
		return fmt.Errorf("write model: %w", err)
	}
	return f.Close()
}

// Load reads a model written by Save.
func Load(r io.Reader) (*Model, error) {
	var m Model
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if m.Scaler == nil || len(m.Points) == 0 || len(m.Points) != len(m.Labels) {
		return nil, errors.New("model is incomplete")
	}
	if len(m.Scaler.Mean) != len(m.Features) || len(m.Scaler.Scale) != len(m.Features) {
		return nil, fmt.Errorf("scaler has %d columns for %d features", len(m.Scaler.Mean), len(m.Features))
	}
	if m.K <= 0 {
		m.K = DefaultK
	}
	return &m, nil
}

// LoadFile reads a model from path.
func LoadFile(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}
