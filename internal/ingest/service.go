// Package ingest classifies incoming sensor readings, buffers them while a
// logging session is running and announces every result on the live stream.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/stroke.report/internal/classifier"
	"github.com/banshee-data/stroke.report/internal/db"
	"github.com/banshee-data/stroke.report/internal/monitoring"
	"github.com/banshee-data/stroke.report/internal/telemetry"
	"github.com/banshee-data/stroke.report/internal/timeutil"
)

// Broadcaster pushes a message to every live stream client.
type Broadcaster interface {
	Broadcast(msg telemetry.LiveMessage)
}

// Store persists the saved session.
type Store interface {
	ClearSessions(ctx context.Context) error
	SaveSession(ctx context.Context, info db.SessionInfo, records telemetry.Session) error
	SessionRecords(ctx context.Context) (telemetry.Session, error)
}

// Reading is one reading as posted by the bridge. Vitals are optional.
type Reading struct {
	AccX      *float64 `json:"acc_x"`
	AccY      *float64 `json:"acc_y"`
	AccZ      *float64 `json:"acc_z"`
	GyroX     *float64 `json:"gyro_x"`
	GyroY     *float64 `json:"gyro_y"`
	GyroZ     *float64 `json:"gyro_z"`
	HeartRate *float64 `json:"heart_rate,omitempty"`
	SpO2      *float64 `json:"spo2,omitempty"`
}

// DecodeReading parses a posted reading. The six motion fields are required.
func DecodeReading(body []byte) (Reading, error) {
	var r Reading
	if err := json.Unmarshal(body, &r); err != nil {
		return Reading{}, &telemetry.DecodeError{What: "sensor reading", Err: err}
	}
	motion := []struct {
		name string
		v    *float64
	}{
		{telemetry.FieldAccX, r.AccX}, {telemetry.FieldAccY, r.AccY}, {telemetry.FieldAccZ, r.AccZ},
		{telemetry.FieldGyroX, r.GyroX}, {telemetry.FieldGyroY, r.GyroY}, {telemetry.FieldGyroZ, r.GyroZ},
	}
	for _, f := range motion {
		if f.v == nil {
			return Reading{}, &telemetry.DecodeError{What: "sensor reading", Err: fmt.Errorf("missing field %q", f.name)}
		}
	}
	return r, nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// Options tunes a Service. Zero values select the defaults.
type Options struct {
	// SimulateVitals fills a missing or zero heart rate or SpO2 with a
	// plausible random value.
	SimulateVitals bool
	Rand           *rand.Rand
	Clock          timeutil.Clock
	NewID          func() string
}

// Service owns the logging flag and the in-memory session buffer.
type Service struct {
	store     Store
	predictor classifier.Predictor
	hub       Broadcaster
	opts      Options
	logf      func(format string, v ...interface{})

	randMu sync.Mutex

	// storeMu orders clears and saves so a start cannot clear the store
	// underneath a stop that is still saving. Taken before mu.
	storeMu sync.Mutex

	mu        sync.Mutex
	logging   bool
	sessionID string
	startedAt time.Time
	buffer    telemetry.Session
}

// NewService wires a service. predictor may be nil, in which case Ingest
// fails with classifier.ErrNoModel.
func NewService(store Store, predictor classifier.Predictor, hub Broadcaster, opts Options) *Service {
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.NewString() }
	}
	return &Service{
		store:     store,
		predictor: predictor,
		hub:       hub,
		opts:      opts,
		logf:      monitoring.Component("ingest"),
	}
}

// Logging reports whether a session is being recorded.
func (s *Service) Logging() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logging
}

// SessionID returns the id of the running session, or "" when idle.
func (s *Service) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.logging {
		return ""
	}
	return s.sessionID
}

// Buffered returns the number of records held for the running session.
func (s *Service) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buffer)
}

// StartLogging discards the saved session and starts buffering a new one.
// Starting while already logging restarts with an empty buffer.
func (s *Service) StartLogging(ctx context.Context) string {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()

	if err := s.store.ClearSessions(ctx); err != nil {
		s.logf("error clearing saved session: %v", err)
	}

	s.mu.Lock()
	s.logging = true
	s.buffer = nil
	s.sessionID = s.opts.NewID()
	s.startedAt = s.opts.Clock.Now()
	id := s.sessionID
	s.mu.Unlock()

	s.logf("started logging session %s", id)
	s.hub.Broadcast(telemetry.LiveMessage{Status: telemetry.StatusLoggingStarted})
	return id
}

// StopLogging stops buffering and saves what was buffered. It returns the
// number of records saved; an empty buffer saves nothing.
func (s *Service) StopLogging(ctx context.Context) (int, error) {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()

	s.mu.Lock()
	s.logging = false
	records := s.buffer
	info := db.SessionInfo{ID: s.sessionID, StartedAt: s.startedAt, StoppedAt: s.opts.Clock.Now()}
	s.mu.Unlock()

	if len(records) == 0 {
		s.logf("data buffer is empty, nothing to save")
	} else {
		if info.ID == "" {
			info.ID = s.opts.NewID()
		}
		info.RecordCount = len(records)
		if err := s.store.SaveSession(ctx, info, records); err != nil {
			return 0, fmt.Errorf("save session %s: %w", info.ID, err)
		}
		s.mu.Lock()
		s.buffer = nil
		s.mu.Unlock()
		s.logf("saved %d records for session %s", len(records), info.ID)
	}

	s.hub.Broadcast(telemetry.LiveMessage{Status: telemetry.StatusLoggingStopped})
	return len(records), nil
}

// Ingest classifies r, records it while logging and broadcasts the result.
func (s *Service) Ingest(ctx context.Context, r Reading) (string, error) {
	if s.predictor == nil {
		return "", classifier.ErrNoModel
	}

	reading := telemetry.SensorReading{
		AccX: deref(r.AccX), AccY: deref(r.AccY), AccZ: deref(r.AccZ),
		GyroX: deref(r.GyroX), GyroY: deref(r.GyroY), GyroZ: deref(r.GyroZ),
		HeartRate: deref(r.HeartRate), SpO2: deref(r.SpO2),
	}
	if s.opts.SimulateVitals {
		s.simulateVitals(&reading)
	}

	prediction, err := s.predictor.Predict(reading.Motion())
	if err != nil {
		return "", fmt.Errorf("predict: %w", err)
	}

	s.mu.Lock()
	if s.logging {
		s.buffer = append(s.buffer, telemetry.RecordFromReading(reading, prediction))
	}
	s.mu.Unlock()

	s.hub.Broadcast(telemetry.LiveMessage{Prediction: prediction, Data: &reading})
	return prediction, nil
}

func (s *Service) simulateVitals(r *telemetry.SensorReading) {
	s.randMu.Lock()
	defer s.randMu.Unlock()
	if r.HeartRate == 0 {
		r.HeartRate = float64(70 + s.opts.Rand.Intn(31))
	}
	if r.SpO2 == 0 {
		r.SpO2 = float64(95 + s.opts.Rand.Intn(5))
	}
}

// SessionRecords returns the saved session.
func (s *Service) SessionRecords(ctx context.Context) (telemetry.Session, error) {
	return s.store.SessionRecords(ctx)
}

// IsNoModel reports whether err means no classifier is loaded.
func IsNoModel(err error) bool {
	return errors.Is(err, classifier.ErrNoModel)
}
