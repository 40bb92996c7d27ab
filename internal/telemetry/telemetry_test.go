package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullReading = `{"acc_x":-0.351,"acc_y":0.7,"acc_z":0.02,"gyro_x":16.6,"gyro_y":31.6,"gyro_z":-108,"heart_rate":82,"spo2":97}`

func TestDecodeLiveMessage_Prediction(t *testing.T) {
	msg, err := DecodeLiveMessage([]byte(`{"prediction":"Forehand","data":` + fullReading + `}`))
	require.NoError(t, err)

	assert.True(t, msg.HasPrediction())
	assert.False(t, msg.HasStatus())
	want := &SensorReading{AccX: -0.351, AccY: 0.7, AccZ: 0.02, GyroX: 16.6, GyroY: 31.6, GyroZ: -108, HeartRate: 82, SpO2: 97}
	if diff := cmp.Diff(want, msg.Data); diff != "" {
		t.Errorf("reading mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeLiveMessage_StatusOnly(t *testing.T) {
	msg, err := DecodeLiveMessage([]byte(`{"status":"Logging Started"}`))
	require.NoError(t, err)
	assert.False(t, msg.HasPrediction())
	assert.Nil(t, msg.Data)
	assert.Equal(t, StatusLoggingStarted, msg.Status)
	assert.True(t, msg.Status.Recognised())
}

func TestDecodeLiveMessage_EmptyPredictionIsAbsent(t *testing.T) {
	msg, err := DecodeLiveMessage([]byte(`{"prediction":"","status":"Logging Stopped"}`))
	require.NoError(t, err)
	assert.False(t, msg.HasPrediction())
	assert.Equal(t, StatusLoggingStopped, msg.Status)
}

func TestDecodeLiveMessage_NonStringStatusIsUnrecognised(t *testing.T) {
	msg, err := DecodeLiveMessage([]byte(`{"status":7}`))
	require.NoError(t, err)
	assert.False(t, msg.Status.Recognised())

	msg, err = DecodeLiveMessage([]byte(`{"prediction":"Smash","status":["Logging Started"],"data":{"acc_x":1,"acc_y":1,"acc_z":1,"gyro_x":1,"gyro_y":1,"gyro_z":1,"heart_rate":80,"spo2":97}}`))
	require.NoError(t, err)
	assert.True(t, msg.HasPrediction())
	assert.Equal(t, Status(""), msg.Status)
	require.NotNil(t, msg.Data)
	assert.Equal(t, 97.0, msg.Data.SpO2)
}

func TestDecodeLiveMessage_Errors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"malformed json", `{"prediction":`},
		{"not an object", `[1,2,3]`},
		{"prediction without data", `{"prediction":"Idle"}`},
		{"missing spo2", `{"prediction":"Idle","data":{"acc_x":1,"acc_y":1,"acc_z":1,"gyro_x":1,"gyro_y":1,"gyro_z":1,"heart_rate":80}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeLiveMessage([]byte(tt.payload))
			var decErr *DecodeError
			require.ErrorAs(t, err, &decErr)
			assert.Equal(t, "live message", decErr.What)
		})
	}
}

func TestStatusRecognised(t *testing.T) {
	assert.True(t, StatusLoggingStarted.Recognised())
	assert.True(t, StatusLoggingStopped.Recognised())
	assert.False(t, Status("Paused").Recognised())
	assert.False(t, Status("").Recognised())
}

func TestPredictionLog_BoundAndOrder(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	for _, n := range []int{0, 1, 49, 50, 51, 120} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			log := NewPredictionLog(0)
			for i := 0; i < n; i++ {
				log.Push(PredictionLogEntry{Label: fmt.Sprint(i), ObservedAt: base.Add(time.Duration(i) * time.Second)})
			}

			want := n
			if want > DefaultPredictionLogLimit {
				want = DefaultPredictionLogLimit
			}
			entries := log.Entries()
			require.Len(t, entries, want)
			assert.Equal(t, want, log.Len())

			for i, e := range entries {
				assert.Equal(t, fmt.Sprint(n-1-i), e.Label, "entry %d out of order", i)
			}
		})
	}
}

func TestPredictionLog_CustomLimit(t *testing.T) {
	log := NewPredictionLog(3)
	assert.Equal(t, 3, log.Limit())
	for _, l := range []string{"a", "b", "c", "d", "e"} {
		log.Push(PredictionLogEntry{Label: l})
	}
	var got []string
	for _, e := range log.Entries() {
		got = append(got, e.Label)
	}
	assert.Equal(t, []string{"e", "d", "c"}, got)
}

func TestPredictionLog_EntriesIsCopy(t *testing.T) {
	log := NewPredictionLog(5)
	log.Push(PredictionLogEntry{Label: "Idle"})
	entries := log.Entries()
	entries[0].Label = "mutated"
	assert.Equal(t, "Idle", log.Entries()[0].Label)
}

func TestSessionRecordClass(t *testing.T) {
	var session Session
	require.NoError(t, json.Unmarshal([]byte(`[{"prediction":"swing","label":"other"},{"label":"idle"},{},{"prediction":"","label":""}]`), &session))

	cls, ok := session[0].Class()
	assert.True(t, ok)
	assert.Equal(t, "swing", cls)

	cls, ok = session[1].Class()
	assert.True(t, ok)
	assert.Equal(t, "idle", cls)

	_, ok = session[2].Class()
	assert.False(t, ok)
	_, ok = session[3].Class()
	assert.False(t, ok)
}

func TestSessionRecordMissingFields(t *testing.T) {
	var rec SessionRecord
	require.NoError(t, json.Unmarshal([]byte(`{"acc_x":1.5,"spo2":null}`), &rec))
	require.NotNil(t, rec.Field(FieldAccX))
	assert.Equal(t, 1.5, *rec.Field(FieldAccX))
	assert.Nil(t, rec.Field(FieldSpO2))
	assert.Nil(t, rec.Field(FieldGyroZ))
	assert.Nil(t, rec.Field("unknown"))
}

func TestRecordFromReading(t *testing.T) {
	r := SensorReading{AccX: 1, AccY: 2, AccZ: 3, GyroX: 4, GyroY: 5, GyroZ: 6, HeartRate: 70, SpO2: 98}
	rec := RecordFromReading(r, "Backhand")
	for _, f := range SensorFields {
		want, _ := r.Field(f)
		require.NotNil(t, rec.Field(f), f)
		assert.Equal(t, want, *rec.Field(f), f)
	}
	assert.Equal(t, "Backhand", rec.Prediction)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, r.Motion())
}

func TestErrorTaxonomy(t *testing.T) {
	base := errors.New("connection refused")
	terr := &TransportError{Op: "GET /api/analysis-data", Err: base}
	assert.ErrorIs(t, terr, base)
	assert.Contains(t, terr.Error(), "GET /api/analysis-data")

	wrapped := fmt.Errorf("load: %w", ErrEmptySession)
	assert.True(t, IsUserGuidance(wrapped))
	assert.False(t, IsUserGuidance(terr))
}
