package api

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/stroke.report/internal/classifier"
	"github.com/banshee-data/stroke.report/internal/db"
	"github.com/banshee-data/stroke.report/internal/ingest"
	"github.com/banshee-data/stroke.report/internal/monitoring"
	"github.com/banshee-data/stroke.report/internal/telemetry"
	"github.com/banshee-data/stroke.report/internal/testutil"
	"github.com/banshee-data/stroke.report/internal/timeutil"
)

func init() {
	monitoring.SetLogger(nil)
}

type constPredictor string

func (p constPredictor) Predict(motion []float64) (string, error) { return string(p), nil }

func newTestServer(t *testing.T, p classifier.Predictor) (*Server, *Hub, *db.DB) {
	t.Helper()
	database := testutil.NewTestDB(t)

	hub := NewHub()
	t.Cleanup(hub.Close)
	ids := 0
	svc := ingest.NewService(database, p, hub, ingest.Options{
		Rand:  rand.New(rand.NewSource(1)),
		Clock: timeutil.NewMockClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)),
		NewID: func() string {
			ids++
			return "session-" + strconv.Itoa(ids)
		},
	})
	return NewServer(svc, hub), hub, database
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestLoggingSessionRoundTrip(t *testing.T) {
	s, _, _ := newTestServer(t, constPredictor("Forehand"))
	mux := s.ServeMux()

	w := do(t, mux, http.MethodPost, "/api/start-logging", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := testutil.DecodeJSON(t, w)
	assert.Equal(t, "Logging started.", body["message"])
	assert.Equal(t, "session-1", body["session_id"])

	for i := 0; i < 3; i++ {
		w = do(t, mux, http.MethodPost, "/api/data-stream", testutil.ReadingJSON)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		body = testutil.DecodeJSON(t, w)
		assert.Equal(t, "success", body["status"])
		assert.Equal(t, "Forehand", body["prediction"])
	}

	w = do(t, mux, http.MethodPost, "/api/stop-logging", "")
	require.Equal(t, http.StatusOK, w.Code)
	body = testutil.DecodeJSON(t, w)
	assert.Equal(t, "Logging stopped and data saved.", body["message"])
	assert.Equal(t, float64(3), body["records"])

	w = do(t, mux, http.MethodGet, "/api/analysis-data", "")
	require.Equal(t, http.StatusOK, w.Code)
	var session telemetry.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))
	require.Len(t, session, 3)
	assert.Equal(t, "Forehand", session[0].Prediction)
	require.NotNil(t, session[0].HeartRate)
	assert.Equal(t, 80.0, *session[0].HeartRate)
}

func TestAnalysisDataEmpty(t *testing.T) {
	s, _, _ := newTestServer(t, constPredictor("Idle"))
	w := do(t, s.ServeMux(), http.MethodGet, "/api/analysis-data", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestDataStreamErrors(t *testing.T) {
	s, _, _ := newTestServer(t, constPredictor("Idle"))
	mux := s.ServeMux()

	w := do(t, mux, http.MethodPost, "/api/data-stream", `{"acc_x":1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, mux, http.MethodPost, "/api/data-stream", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, mux, http.MethodGet, "/api/data-stream", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "POST", w.Header().Get("Allow"))

	w = do(t, mux, http.MethodPost, "/api/data-stream", strings.Repeat(" ", maxReadingBytes+1))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestDataStreamWithoutModel(t *testing.T) {
	var model *classifier.Model
	s, _, _ := newTestServer(t, model)
	w := do(t, s.ServeMux(), http.MethodPost, "/api/data-stream", testutil.ReadingJSON)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "Model or scaler not loaded.")
}

func TestMethodChecks(t *testing.T) {
	s, _, _ := newTestServer(t, constPredictor("Idle"))
	mux := s.ServeMux()
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, mux, http.MethodGet, "/api/start-logging", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, mux, http.MethodGet, "/api/stop-logging", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, mux, http.MethodPost, "/api/analysis-data", "").Code)
}

func TestDashboardAndAnalysisPages(t *testing.T) {
	s, _, _ := newTestServer(t, constPredictor("Backhand"))
	mux := s.ServeMux()

	w := do(t, mux, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/ws/live")

	assert.Equal(t, http.StatusNotFound, do(t, mux, http.MethodGet, "/missing", "").Code)

	w = do(t, mux, http.MethodGet, "/analysis", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "No data logged yet")

	do(t, mux, http.MethodPost, "/api/start-logging", "")
	do(t, mux, http.MethodPost, "/api/data-stream", testutil.ReadingJSON)
	do(t, mux, http.MethodPost, "/api/stop-logging", "")

	w = do(t, mux, http.MethodGet, "/analysis", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "Backhand")
}

func TestDashboardPageFollowsLiveBoard(t *testing.T) {
	s, _, _ := newTestServer(t, constPredictor("Idle"))
	w := do(t, s.ServeMux(), http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, w.Code)
	page := w.Body.String()

	for _, field := range telemetry.SensorFields {
		assert.Contains(t, page, `id="`+field+`"`, "input field %s", field)
	}
	assert.Contains(t, page, `<p id="indicator" class="idle">Logging Idle</p>`)
	assert.Contains(t, page, `<button id="stop" disabled>`)
	for _, want := range []string{
		`"Logging Started"`, `"Logging Stopped"`,
		`"Recording Data"`, `"Live Prediction: "`,
		`"Live stream disconnected."`, `"Connection error."`,
		`"result-success"`, `"result-error"`, `"result-info"`,
	} {
		assert.Contains(t, page, want)
	}
	assert.Regexp(t, `LOG_LIMIT =\s*50\s*;`, page)
	assert.Regexp(t, `MAX_ATTEMPTS =\s*5\s*;`, page)
	assert.Regexp(t, `BASE_DELAY_MS =\s*1000\s*;`, page)
	assert.Regexp(t, `MAX_DELAY_MS =\s*30000\s*;`, page)
	assert.NotContains(t, page, "{{")
}

func TestLoggingMiddlewarePassesStatus(t *testing.T) {
	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	w := do(t, h, http.MethodGet, "/x", "")
	assert.Equal(t, http.StatusTeapot, w.Code)
}

func TestStatusCodeColor(t *testing.T) {
	assert.Equal(t, colorBoldGreen+"200"+colorReset, statusCodeColor(200))
	assert.Equal(t, colorYellow+"302"+colorReset, statusCodeColor(302))
	assert.Equal(t, colorBoldRed+"503"+colorReset, statusCodeColor(503))
	assert.Equal(t, "100", statusCodeColor(100))
}

func TestStartLoggingBroadcastsStatus(t *testing.T) {
	s, hub, _ := newTestServer(t, constPredictor("Idle"))
	_, ch := hub.Subscribe()

	do(t, s.ServeMux(), http.MethodPost, "/api/start-logging", "")

	select {
	case payload := <-ch:
		msg, err := telemetry.DecodeLiveMessage(payload)
		require.NoError(t, err)
		assert.Equal(t, telemetry.StatusLoggingStarted, msg.Status)
	case <-time.After(time.Second):
		t.Fatal("no status broadcast")
	}
}
