// Package live keeps the live region of the dashboard in step with the
// server's /ws/live push stream.
package live

import (
	"context"
	"errors"
	"sync"

	"github.com/banshee-data/stroke.report/internal/monitoring"
	"github.com/banshee-data/stroke.report/internal/telemetry"
	"github.com/banshee-data/stroke.report/internal/timeutil"
)

// Result line texts.
const (
	TextConnected       = "Connected to live stream..."
	TextDisconnected    = "Live stream disconnected."
	TextConnectionError = "Connection error."
	PredictionPrefix    = "Live Prediction: "
)

// Options configures a Controller. Zero values select the defaults.
type Options struct {
	// LogLimit bounds the prediction log; zero means 50.
	LogLimit int
	// Reconnect controls re-dialling after a connection ends. The zero value
	// never reconnects.
	Reconnect ReconnectPolicy
	Clock     timeutil.Clock
	Dialer    Dialer
	// OnStateChange observes every ConnectionState transition.
	OnStateChange func(ConnectionState)
}

// Controller owns the single live stream connection for a dashboard. Messages
// are handled one at a time on the controller's reader goroutine.
type Controller struct {
	url     string
	display Display
	log     *telemetry.PredictionLog
	clock   timeutil.Clock
	dialer  Dialer
	policy  ReconnectPolicy
	onState func(ConnectionState)
	logf    func(format string, v ...interface{})

	once sync.Once
	done chan struct{}

	mu        sync.Mutex
	state     ConnectionState
	recording RecordingState
}

// NewController returns a controller for the stream at url that writes to
// display. Nothing is dialled until Connect.
func NewController(url string, display Display, opts Options) *Controller {
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.Dialer == nil {
		opts.Dialer = WebsocketDialer{}
	}
	return &Controller{
		url:     url,
		display: display,
		log:     telemetry.NewPredictionLog(opts.LogLimit),
		clock:   opts.Clock,
		dialer:  opts.Dialer,
		policy:  opts.Reconnect,
		onState: opts.OnStateChange,
		logf:    monitoring.Component("live"),
		done:    make(chan struct{}),
		state:   Connecting,
	}
}

// Connect starts the connection loop. Only the first call has any effect;
// every call returns the channel closed when the loop ends, which happens
// when ctx is cancelled or the reconnect policy is exhausted.
func (c *Controller) Connect(ctx context.Context) <-chan struct{} {
	c.once.Do(func() {
		go c.run(ctx)
	})
	return c.done
}

// Done is closed when the connection loop has ended.
func (c *Controller) Done() <-chan struct{} { return c.done }

// State returns the current connection state.
func (c *Controller) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Recording returns the last logging status received.
func (c *Controller) Recording() RecordingState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recording
}

// Log returns the prediction log, most recent first.
func (c *Controller) Log() []telemetry.PredictionLogEntry {
	return c.log.Entries()
}

func (c *Controller) setState(s ConnectionState) {
	c.mu.Lock()
	changed := c.state != s
	c.state = s
	c.mu.Unlock()
	if changed && c.onState != nil {
		c.onState(s)
	}
}

func (c *Controller) run(ctx context.Context) {
	defer close(c.done)

	attempt := 0
	for {
		opened := c.serve(ctx)
		if ctx.Err() != nil {
			return
		}
		if opened {
			attempt = 0
		}
		if !c.policy.Allows(attempt) {
			c.logf("not reconnecting after %d attempts", attempt)
			return
		}

		delay := c.policy.Backoff(attempt)
		attempt++
		c.logf("reconnecting in %v (attempt %d of %d)", delay, attempt, c.policy.MaxAttempts)
		select {
		case <-ctx.Done():
			return
		case <-c.clock.After(delay):
		}
		c.setState(Connecting)
	}
}

// serve runs one connection attempt to completion and reports whether it
// reached Open.
func (c *Controller) serve(ctx context.Context) bool {
	conn, err := c.dialer.Dial(ctx, c.url)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		c.logf("dial %s: %v", c.url, err)
		c.onError()
		return false
	}
	defer conn.Close()

	c.onOpen()
	for {
		payload, err := conn.Read(ctx)
		if err != nil {
			switch {
			case ctx.Err() != nil:
			case errors.Is(err, ErrStreamClosed):
				c.logf("stream closed: %v", err)
				c.onClose()
			default:
				c.logf("stream read failed: %v", err)
				c.onError()
			}
			return true
		}
		// decode failures are reported by HandleMessage and never end the
		// connection
		_ = c.HandleMessage(payload)
	}
}

func (c *Controller) onOpen() {
	c.setState(Open)
	c.display.ShowResult(TextConnected, StyleInfo)
}

func (c *Controller) onClose() {
	c.setState(Closed)
	c.display.ShowResult(TextDisconnected, StyleError)
}

func (c *Controller) onError() {
	c.setState(Errored)
	c.display.ShowResult(TextConnectionError, StyleError)
}

// HandleMessage decodes one live payload and applies it to the display. A
// malformed payload returns a *telemetry.DecodeError and changes nothing.
func (c *Controller) HandleMessage(payload []byte) error {
	msg, err := telemetry.DecodeLiveMessage(payload)
	if err != nil {
		c.logf("dropping message: %v", err)
		return err
	}

	if msg.HasPrediction() {
		c.display.ShowResult(PredictionPrefix+msg.Prediction, StyleSuccess)
		c.display.SetInputs(*msg.Data)
		c.log.Push(telemetry.PredictionLogEntry{
			Label:      msg.Prediction,
			ObservedAt: c.clock.Now(),
		})
		c.display.SetPredictionLog(c.log.Entries())
	}

	if msg.HasStatus() {
		c.applyStatus(msg.Status)
	}
	return nil
}

func (c *Controller) applyStatus(status telemetry.Status) {
	var recording bool
	switch status {
	case telemetry.StatusLoggingStarted:
		recording = true
	case telemetry.StatusLoggingStopped:
		recording = false
	default:
		c.logf("ignoring unrecognised status %q", status)
		return
	}

	c.mu.Lock()
	if recording {
		c.recording = Recording
	} else {
		c.recording = Idle
	}
	c.mu.Unlock()
	c.display.SetRecording(recording)
}
