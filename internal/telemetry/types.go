// Package telemetry defines the wire and display types shared by the live
// stream, the analysis pipeline and the ingest service.
package telemetry

import (
	"encoding/json"
	"fmt"
	"time"
)

// Field keys as they appear on the wire and in stored sessions.
const (
	FieldAccX      = "acc_x"
	FieldAccY      = "acc_y"
	FieldAccZ      = "acc_z"
	FieldGyroX     = "gyro_x"
	FieldGyroY     = "gyro_y"
	FieldGyroZ     = "gyro_z"
	FieldHeartRate = "heart_rate"
	FieldSpO2      = "spo2"
)

// SensorFields lists every sensor field in display order.
var SensorFields = []string{
	FieldAccX, FieldAccY, FieldAccZ,
	FieldGyroX, FieldGyroY, FieldGyroZ,
	FieldHeartRate, FieldSpO2,
}

// MotionFields are the six IMU features the classifier consumes.
var MotionFields = []string{
	FieldAccX, FieldAccY, FieldAccZ,
	FieldGyroX, FieldGyroY, FieldGyroZ,
}

// SensorReading is one instant's measurement from the wearable.
type SensorReading struct {
	AccX      float64 `json:"acc_x"`
	AccY      float64 `json:"acc_y"`
	AccZ      float64 `json:"acc_z"`
	GyroX     float64 `json:"gyro_x"`
	GyroY     float64 `json:"gyro_y"`
	GyroZ     float64 `json:"gyro_z"`
	HeartRate float64 `json:"heart_rate"`
	SpO2      float64 `json:"spo2"`
}

// Field returns the value of the named sensor field.
func (r SensorReading) Field(name string) (float64, bool) {
	switch name {
	case FieldAccX:
		return r.AccX, true
	case FieldAccY:
		return r.AccY, true
	case FieldAccZ:
		return r.AccZ, true
	case FieldGyroX:
		return r.GyroX, true
	case FieldGyroY:
		return r.GyroY, true
	case FieldGyroZ:
		return r.GyroZ, true
	case FieldHeartRate:
		return r.HeartRate, true
	case FieldSpO2:
		return r.SpO2, true
	}
	return 0, false
}

// Motion returns the six motion features in MotionFields order.
func (r SensorReading) Motion() []float64 {
	return []float64{r.AccX, r.AccY, r.AccZ, r.GyroX, r.GyroY, r.GyroZ}
}

func (r SensorReading) String() string {
	return fmt.Sprintf("acc=(%.3f, %.3f, %.3f) gyro=(%.3f, %.3f, %.3f) hr=%.0f spo2=%.0f",
		r.AccX, r.AccY, r.AccZ, r.GyroX, r.GyroY, r.GyroZ, r.HeartRate, r.SpO2)
}

// Status is a logging-state notification pushed over the live stream.
type Status string

const (
	StatusLoggingStarted Status = "Logging Started"
	StatusLoggingStopped Status = "Logging Stopped"
)

// Recognised reports whether s is one of the known logging statuses.
func (s Status) Recognised() bool {
	return s == StatusLoggingStarted || s == StatusLoggingStopped
}

// LiveMessage is a single payload pushed by the server on /ws/live. A message
// carries a prediction with its reading, a status, both, or neither.
type LiveMessage struct {
	Prediction string         `json:"prediction,omitempty"`
	Data       *SensorReading `json:"data,omitempty"`
	Status     Status         `json:"status,omitempty"`
}

// HasPrediction reports whether the message carries a prediction update.
func (m LiveMessage) HasPrediction() bool { return m.Prediction != "" }

// HasStatus reports whether the message carries a status update.
func (m LiveMessage) HasStatus() bool { return m.Status != "" }

// wireReading mirrors SensorReading with optional fields so that decoding can
// tell a missing field from a zero value.
type wireReading struct {
	AccX      *float64 `json:"acc_x"`
	AccY      *float64 `json:"acc_y"`
	AccZ      *float64 `json:"acc_z"`
	GyroX     *float64 `json:"gyro_x"`
	GyroY     *float64 `json:"gyro_y"`
	GyroZ     *float64 `json:"gyro_z"`
	HeartRate *float64 `json:"heart_rate"`
	SpO2      *float64 `json:"spo2"`
}

func (w wireReading) complete() (SensorReading, error) {
	fields := []struct {
		name string
		v    *float64
	}{
		{FieldAccX, w.AccX}, {FieldAccY, w.AccY}, {FieldAccZ, w.AccZ},
		{FieldGyroX, w.GyroX}, {FieldGyroY, w.GyroY}, {FieldGyroZ, w.GyroZ},
		{FieldHeartRate, w.HeartRate}, {FieldSpO2, w.SpO2},
	}
	for _, f := range fields {
		if f.v == nil {
			return SensorReading{}, fmt.Errorf("data is missing field %q", f.name)
		}
	}
	return SensorReading{
		AccX: *w.AccX, AccY: *w.AccY, AccZ: *w.AccZ,
		GyroX: *w.GyroX, GyroY: *w.GyroY, GyroZ: *w.GyroZ,
		HeartRate: *w.HeartRate, SpO2: *w.SpO2,
	}, nil
}

// DecodeLiveMessage parses a live stream payload. A prediction must arrive
// with a complete reading; anything else is a DecodeError and the message is
// rejected as a whole.
func DecodeLiveMessage(payload []byte) (LiveMessage, error) {
	var raw struct {
		Prediction string          `json:"prediction"`
		Data       *wireReading    `json:"data"`
		Status     json.RawMessage `json:"status"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return LiveMessage{}, &DecodeError{What: "live message", Err: err}
	}

	msg := LiveMessage{Prediction: raw.Prediction, Status: decodeStatus(raw.Status)}
	if msg.HasPrediction() {
		if raw.Data == nil {
			return LiveMessage{}, &DecodeError{What: "live message", Err: fmt.Errorf("prediction %q without data", raw.Prediction)}
		}
		reading, err := raw.Data.complete()
		if err != nil {
			return LiveMessage{}, &DecodeError{What: "live message", Err: err}
		}
		msg.Data = &reading
	}
	return msg, nil
}

// decodeStatus keeps string statuses as sent. Any other JSON value is an
// unrecognised status and decodes as empty, which is ignored downstream.
func decodeStatus(raw json.RawMessage) Status {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return Status(s)
}

// PredictionLogEntry is one row of the live prediction history.
type PredictionLogEntry struct {
	Label      string    `json:"label"`
	ObservedAt time.Time `json:"observed_at"`
}
