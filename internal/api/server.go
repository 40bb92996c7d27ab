package api

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/stroke.report/internal/analysis"
	"github.com/banshee-data/stroke.report/internal/httputil"
	"github.com/banshee-data/stroke.report/internal/ingest"
	"github.com/banshee-data/stroke.report/internal/live"
	"github.com/banshee-data/stroke.report/internal/monitoring"
	"github.com/banshee-data/stroke.report/internal/telemetry"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// maxReadingBytes bounds a single posted reading.
const maxReadingBytes = 64 << 10

//go:embed static/index.html
var dashboardTemplate string

// dashboardHTML is the browser dashboard, rendered once with the same
// fields, statuses, captions and reconnect policy as the live package.
var dashboardHTML = renderDashboard()

type dashboardPage struct {
	Fields              []string
	LogLimit            int
	MaxAttempts         int
	BaseDelayMillis     int64
	MaxDelayMillis      int64
	StatusStarted       string
	StatusStopped       string
	TextConnected       string
	TextDisconnected    string
	TextConnectionError string
	PredictionPrefix    string
	RecordingClass      string
	RecordingText       string
	IdleClass           string
	IdleText            string
	StyleSuccess        string
	StyleError          string
	StyleInfo           string
}

func renderDashboard() []byte {
	policy := live.DefaultReconnectPolicy()
	page := dashboardPage{
		Fields:              telemetry.SensorFields,
		LogLimit:            telemetry.DefaultPredictionLogLimit,
		MaxAttempts:         policy.MaxAttempts,
		BaseDelayMillis:     policy.BaseDelay.Milliseconds(),
		MaxDelayMillis:      policy.MaxDelay.Milliseconds(),
		StatusStarted:       string(telemetry.StatusLoggingStarted),
		StatusStopped:       string(telemetry.StatusLoggingStopped),
		TextConnected:       live.TextConnected,
		TextDisconnected:    live.TextDisconnected,
		TextConnectionError: live.TextConnectionError,
		PredictionPrefix:    live.PredictionPrefix,
		RecordingClass:      live.IndicatorRecording,
		RecordingText:       live.IndicatorRecordingText,
		IdleClass:           live.IndicatorIdle,
		IdleText:            live.IndicatorIdleText,
		StyleSuccess:        live.StyleSuccess.String(),
		StyleError:          live.StyleError.String(),
		StyleInfo:           live.StyleInfo.String(),
	}
	tmpl := template.Must(template.New("dashboard").Parse(dashboardTemplate))
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, page); err != nil {
		panic(fmt.Sprintf("render dashboard: %v", err))
	}
	return buf.Bytes()
}

type Server struct {
	svc  *ingest.Service
	hub  *Hub
	logf func(format string, v ...interface{})
}

func NewServer(svc *ingest.Service, hub *Hub) *Server {
	return &Server{
		svc:  svc,
		hub:  hub,
		logf: monitoring.Component("api"),
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Unwrap lets http.ResponseController and the websocket upgrade reach the
// underlying writer.
func (lrw *loggingResponseWriter) Unwrap() http.ResponseWriter {
	return lrw.ResponseWriter
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/start-logging", s.startLogging)
	mux.HandleFunc("/api/stop-logging", s.stopLogging)
	mux.HandleFunc("/api/data-stream", s.dataStream)
	mux.HandleFunc("/api/analysis-data", s.analysisData)
	mux.Handle("/ws/live", s.hub)
	mux.HandleFunc("/analysis", s.analysisPage)
	mux.HandleFunc("/", s.dashboard)
	return mux
}

func (s *Server) startLogging(w http.ResponseWriter, r *http.Request) {
	if !httputil.AllowMethods(w, r, http.MethodPost) {
		return
	}
	id := s.svc.StartLogging(r.Context())
	httputil.WriteJSONOK(w, map[string]string{
		"message":    "Logging started.",
		"session_id": id,
	})
}

func (s *Server) stopLogging(w http.ResponseWriter, r *http.Request) {
	if !httputil.AllowMethods(w, r, http.MethodPost) {
		return
	}
	n, err := s.svc.StopLogging(r.Context())
	if err != nil {
		s.logf("stop logging: %v", err)
		httputil.InternalServerError(w, fmt.Sprintf("failed to save session: %v", err))
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"message": "Logging stopped and data saved.",
		"records": n,
	})
}

func (s *Server) dataStream(w http.ResponseWriter, r *http.Request) {
	if !httputil.AllowMethods(w, r, http.MethodPost) {
		return
	}
	body, ok := httputil.ReadBody(w, r, maxReadingBytes)
	if !ok {
		return
	}
	reading, err := ingest.DecodeReading(body)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	prediction, err := s.svc.Ingest(r.Context(), reading)
	switch {
	case ingest.IsNoModel(err):
		httputil.ServiceUnavailable(w, "Model or scaler not loaded.")
		return
	case err != nil:
		s.logf("ingest: %v", err)
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, map[string]string{
		"status":     "success",
		"prediction": prediction,
	})
}

func (s *Server) sessionRecords(ctx context.Context, w http.ResponseWriter) (telemetry.Session, bool) {
	records, err := s.svc.SessionRecords(ctx)
	if err != nil {
		s.logf("read session: %v", err)
		httputil.InternalServerError(w, "failed to read session")
		return nil, false
	}
	if records == nil {
		records = telemetry.Session{}
	}
	return records, true
}

func (s *Server) analysisData(w http.ResponseWriter, r *http.Request) {
	if !httputil.AllowMethods(w, r, http.MethodGet) {
		return
	}
	records, ok := s.sessionRecords(r.Context(), w)
	if !ok {
		return
	}
	httputil.WriteJSONOK(w, records)
}

func (s *Server) analysisPage(w http.ResponseWriter, r *http.Request) {
	if !httputil.AllowMethods(w, r, http.MethodGet) {
		return
	}
	records, ok := s.sessionRecords(r.Context(), w)
	if !ok {
		return
	}
	if len(records) == 0 {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, analysis.Message(telemetry.ErrEmptySession)+"\n")
		return
	}

	var buf bytes.Buffer
	if err := analysis.WritePage(&buf, "Stroke Session Analysis", analysis.Project(records)); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render error: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if !httputil.AllowMethods(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(dashboardHTML)
}
