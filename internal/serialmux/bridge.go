package serialmux

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"tailscale.com/tsweb"

	"github.com/banshee-data/stroke.report/internal/httputil"
	"github.com/banshee-data/stroke.report/internal/monitoring"
	"github.com/banshee-data/stroke.report/internal/timeutil"
)

const (
	DefaultPostTimeout = time.Second
	DefaultRetryDelay  = 5 * time.Second
)

// ErrStreamEnded is reported when the port stops producing data without an
// error, which for a USB serial adapter usually means it was unplugged.
var ErrStreamEnded = errors.New("serial stream ended")

// BridgeStats counts what happened to each line.
type BridgeStats struct {
	Forwarded int64 `json:"forwarded"`
	Skipped   int64 `json:"skipped"`
	Malformed int64 `json:"malformed"`
	Failed    int64 `json:"failed"`
}

// Bridge forwards readings from the serial link to the backend's
// /api/data-stream endpoint, reopening the port whenever it fails.
type Bridge struct {
	Factory SerialPortFactory
	Path    string
	Mode    *SerialPortMode

	// URL is the full data-stream endpoint.
	URL         string
	Client      httputil.HTTPClient
	PostTimeout time.Duration
	RetryDelay  time.Duration
	Clock       timeutil.Clock

	logf func(format string, v ...interface{})

	mu      sync.Mutex
	current SerialMuxInterface

	forwarded atomic.Int64
	skipped   atomic.Int64
	malformed atomic.Int64
	failed    atomic.Int64
}

func (b *Bridge) defaults() {
	if b.Mode == nil {
		b.Mode = DefaultSerialPortMode()
	}
	if b.PostTimeout <= 0 {
		b.PostTimeout = DefaultPostTimeout
	}
	if b.RetryDelay <= 0 {
		b.RetryDelay = DefaultRetryDelay
	}
	if b.Clock == nil {
		b.Clock = timeutil.RealClock{}
	}
	if b.logf == nil {
		b.logf = monitoring.Component("bridge")
	}
}

// Stats returns the line counters.
func (b *Bridge) Stats() BridgeStats {
	return BridgeStats{
		Forwarded: b.forwarded.Load(),
		Skipped:   b.skipped.Load(),
		Malformed: b.malformed.Load(),
		Failed:    b.failed.Load(),
	}
}

// Run keeps the bridge up until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	b.defaults()
	for {
		err := b.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b.logf("serial link %s: %v; retrying in %s", b.Path, err, b.RetryDelay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.Clock.After(b.RetryDelay):
		}
	}
}

func (b *Bridge) session(ctx context.Context) error {
	port, err := b.Factory.Open(b.Path, b.Mode)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	mux := NewSerialMux(port)
	b.setCurrent(mux)
	defer func() {
		b.setCurrent(nil)
		mux.Close()
	}()
	b.logf("opened %s at %s", b.Path, b.Mode)

	id, lines := mux.Subscribe()
	defer mux.Unsubscribe(id)

	monitorErr := make(chan error, 1)
	go func() { monitorErr <- mux.Monitor(ctx) }()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-monitorErr:
			b.drain(ctx, lines)
			if err == nil {
				err = ErrStreamEnded
			}
			return err
		case line, ok := <-lines:
			if !ok {
				return ErrStreamEnded
			}
			b.handle(ctx, line)
		}
	}
}

// drain forwards whatever the monitor queued before it stopped.
func (b *Bridge) drain(ctx context.Context, lines <-chan string) {
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return
			}
			b.handle(ctx, line)
		default:
			return
		}
	}
}

func (b *Bridge) handle(ctx context.Context, line string) {
	prediction, err := b.Forward(ctx, line)
	switch {
	case errors.Is(err, errSkipped):
		b.skipped.Add(1)
	case errors.Is(err, errMalformed):
		b.malformed.Add(1)
		b.logf("skipping malformed line %q: %v", strings.TrimSpace(line), err)
	case err != nil:
		b.failed.Add(1)
		b.logf("forward failed: %v", err)
	default:
		b.forwarded.Add(1)
		b.logf("sent reading, prediction %s", prediction)
	}
}

var (
	errSkipped   = errors.New("not a reading")
	errMalformed = errors.New("malformed reading")
)

// Forward parses one serial line and POSTs it. It returns the server's
// prediction for the reading.
func (b *Bridge) Forward(ctx context.Context, line string) (string, error) {
	b.defaults()
	switch ClassifyLine(line) {
	case LineBlank:
		return "", errSkipped
	case LineUnknown:
		b.logf("device: %s", strings.TrimSpace(line))
		return "", errSkipped
	}
	reading, err := ParseLine(line)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errMalformed, err)
	}

	ctx, cancel := context.WithTimeout(ctx, b.PostTimeout)
	defer cancel()
	body, err := httputil.PostJSON(ctx, b.Client, b.URL, reading)
	if err != nil {
		return "", fmt.Errorf("POST %s: %w", b.URL, err)
	}
	var resp struct {
		Prediction string `json:"prediction"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return resp.Prediction, nil
}

func (b *Bridge) setCurrent(m SerialMuxInterface) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = m
}

func (b *Bridge) currentMux() SerialMuxInterface {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// AttachAdminRoutes serves the serial debug pages against whichever port is
// currently open.
func (b *Bridge) AttachAdminRoutes(mux *http.ServeMux) {
	attachAdminRoutes(mux, b.currentMux)
	tsweb.Debugger(mux).HandleSilentFunc("bridge-stats", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSONOK(w, b.Stats())
	})
}
