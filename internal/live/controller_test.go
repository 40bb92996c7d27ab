package live

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/stroke.report/internal/monitoring"
	"github.com/banshee-data/stroke.report/internal/telemetry"
	"github.com/banshee-data/stroke.report/internal/timeutil"
)

const predictionPayload = `{"prediction":"Forehand","data":{"acc_x":0.1,"acc_y":0.2,"acc_z":0.3,"gyro_x":1,"gyro_y":2,"gyro_z":3,"heart_rate":80,"spo2":98}}`

func init() {
	monitoring.SetLogger(nil)
}

type readResult struct {
	payload []byte
	err     error
}

type fakeConn struct {
	reads  chan readResult
	closed chan struct{}
	once   sync.Once
}

func newFakeConn(results ...readResult) *fakeConn {
	c := &fakeConn{reads: make(chan readResult, len(results)+8), closed: make(chan struct{})}
	for _, r := range results {
		c.reads <- r
	}
	return c
}

func (c *fakeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-c.reads:
		return r.payload, r.err
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

type dialOutcome struct {
	conn Conn
	err  error
}

type fakeDialer struct {
	mu       sync.Mutex
	outcomes []dialOutcome
	dials    int
	urls     []string
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	d.urls = append(d.urls, url)
	if len(d.outcomes) == 0 {
		return nil, errors.New("connection refused")
	}
	o := d.outcomes[0]
	d.outcomes = d.outcomes[1:]
	return o.conn, o.err
}

func (d *fakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

type stateRecorder struct {
	mu     sync.Mutex
	states []ConnectionState
}

func (r *stateRecorder) record(s ConnectionState) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
}

func (r *stateRecorder) all() []ConnectionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ConnectionState(nil), r.states...)
}

func closeFrame() readResult {
	return readResult{err: ErrStreamClosed}
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("controller did not finish")
	}
}

// driveClock advances clock until done closes so that backoff waits fire.
func driveClock(t *testing.T, clock *timeutil.MockClock, done <-chan struct{}) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case <-done:
			return
		case <-deadline:
			t.Fatal("controller did not finish")
		default:
			clock.Advance(time.Hour)
			time.Sleep(time.Millisecond)
		}
	}
}

func newTestController(board *Board, opts Options) *Controller {
	if opts.Clock == nil {
		opts.Clock = timeutil.NewMockClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	}
	return NewController("ws://stroke.test/ws/live", board, opts)
}

func TestHandleMessage_Prediction(t *testing.T) {
	board := NewBoard()
	clock := timeutil.NewMockClock(time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC))
	c := newTestController(board, Options{Clock: clock, Dialer: &fakeDialer{}})

	require.NoError(t, c.HandleMessage([]byte(predictionPayload)))

	snap := board.Snapshot()
	assert.False(t, snap.Loading)
	assert.Equal(t, "Live Prediction: Forehand", snap.ResultText)
	assert.Equal(t, StyleSuccess, snap.ResultStyle)
	require.NotNil(t, snap.Inputs)
	assert.Equal(t, 0.1, snap.Inputs.AccX)
	assert.Equal(t, 98.0, snap.Inputs.SpO2)
	require.Len(t, snap.Log, 1)
	assert.Equal(t, "Forehand", snap.Log[0].Label)
	assert.Equal(t, clock.Now(), snap.Log[0].ObservedAt)
	assert.Equal(t, RecordingUnknown, c.Recording())
}

func TestHandleMessage_StatusOnlyLeavesLogAndInputs(t *testing.T) {
	board := NewBoard()
	c := newTestController(board, Options{Dialer: &fakeDialer{}})
	require.NoError(t, c.HandleMessage([]byte(predictionPayload)))
	before := board.Snapshot()

	require.NoError(t, c.HandleMessage([]byte(`{"status":"Logging Started"}`)))

	after := board.Snapshot()
	assert.Equal(t, before.Inputs, after.Inputs)
	assert.Equal(t, before.Log, after.Log)
	assert.Equal(t, before.ResultText, after.ResultText)
	assert.Equal(t, IndicatorRecording, after.Indicator)
}

func TestHandleMessage_StatusControlsIgnorePriorState(t *testing.T) {
	started := []byte(`{"status":"Logging Started"}`)
	stopped := []byte(`{"status":"Logging Stopped"}`)

	tests := []struct {
		name  string
		prior [][]byte
		msg   []byte
		want  bool
	}{
		{"start from initial", nil, started, true},
		{"start twice", [][]byte{started}, started, true},
		{"start after stop", [][]byte{started, stopped}, started, true},
		{"stop from initial", nil, stopped, false},
		{"stop twice", [][]byte{started, stopped}, stopped, false},
		{"stop after start", [][]byte{started}, stopped, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			board := NewBoard()
			c := newTestController(board, Options{Dialer: &fakeDialer{}})
			for _, p := range tt.prior {
				require.NoError(t, c.HandleMessage(p))
			}
			require.NoError(t, c.HandleMessage(tt.msg))

			snap := board.Snapshot()
			if tt.want {
				assert.Equal(t, IndicatorRecording, snap.Indicator)
				assert.Equal(t, IndicatorRecordingText, snap.IndicatorText)
				assert.Equal(t, Recording, c.Recording())
			} else {
				assert.Equal(t, IndicatorIdle, snap.Indicator)
				assert.Equal(t, IndicatorIdleText, snap.IndicatorText)
				assert.Equal(t, Idle, c.Recording())
			}
			assert.Equal(t, !tt.want, snap.StartEnabled)
			assert.Equal(t, tt.want, snap.StopEnabled)
		})
	}
}

func TestHandleMessage_UnrecognisedStatusChangesNothing(t *testing.T) {
	board := NewBoard()
	c := newTestController(board, Options{Dialer: &fakeDialer{}})
	require.NoError(t, c.HandleMessage([]byte(`{"status":"Logging Started"}`)))
	before := board.Snapshot()

	require.NoError(t, c.HandleMessage([]byte(`{"status":"Paused"}`)))

	assert.Equal(t, before, board.Snapshot())
	assert.Equal(t, Recording, c.Recording())
}

func TestHandleMessage_NonStringStatusKeepsPrediction(t *testing.T) {
	for _, status := range []string{`7`, `true`, `{"state":"on"}`, `null`} {
		t.Run(status, func(t *testing.T) {
			board := NewBoard()
			c := newTestController(board, Options{Dialer: &fakeDialer{}})
			require.NoError(t, c.HandleMessage([]byte(`{"status":"Logging Started"}`)))

			payload := `{"prediction":"Forehand","status":` + status + `,"data":{"acc_x":0.1,"acc_y":0.2,"acc_z":0.3,"gyro_x":1,"gyro_y":2,"gyro_z":3,"heart_rate":80,"spo2":98}}`
			require.NoError(t, c.HandleMessage([]byte(payload)))

			snap := board.Snapshot()
			assert.Equal(t, "Live Prediction: Forehand", snap.ResultText)
			assert.Len(t, snap.Log, 1)
			require.NotNil(t, snap.Inputs)
			assert.Equal(t, 3.0, snap.Inputs.GyroZ)
			assert.Equal(t, IndicatorRecording, snap.Indicator, "unrecognised status leaves the controls alone")
			assert.Equal(t, Recording, c.Recording())
		})
	}
}

func TestHandleMessage_PredictionAndStatusTogether(t *testing.T) {
	board := NewBoard()
	c := newTestController(board, Options{Dialer: &fakeDialer{}})

	payload := `{"prediction":"Idle","status":"Logging Started","data":{"acc_x":0,"acc_y":0,"acc_z":0,"gyro_x":0,"gyro_y":0,"gyro_z":0,"heart_rate":72,"spo2":99}}`
	require.NoError(t, c.HandleMessage([]byte(payload)))

	snap := board.Snapshot()
	assert.Equal(t, "Live Prediction: Idle", snap.ResultText)
	assert.Len(t, snap.Log, 1)
	assert.Equal(t, IndicatorRecording, snap.Indicator)
}

func TestHandleMessage_MalformedChangesNothing(t *testing.T) {
	board := NewBoard()
	c := newTestController(board, Options{Dialer: &fakeDialer{}})
	before := board.Snapshot()

	err := c.HandleMessage([]byte(`{"prediction":"Forehand"}`))
	var decErr *telemetry.DecodeError
	require.ErrorAs(t, err, &decErr)

	assert.Equal(t, before, board.Snapshot())
	assert.Empty(t, c.Log())
}

func TestHandleMessage_LogBound(t *testing.T) {
	board := NewBoard()
	c := newTestController(board, Options{Dialer: &fakeDialer{}, LogLimit: 3})
	for _, label := range []string{"a", "b", "c", "d"} {
		payload := `{"prediction":"` + label + `","data":{"acc_x":0,"acc_y":0,"acc_z":0,"gyro_x":0,"gyro_y":0,"gyro_z":0,"heart_rate":72,"spo2":99}}`
		require.NoError(t, c.HandleMessage([]byte(payload)))
	}

	var labels []string
	for _, e := range board.Snapshot().Log {
		labels = append(labels, e.Label)
	}
	assert.Equal(t, []string{"d", "c", "b"}, labels)
}

func TestConnect_OpenMessageClose(t *testing.T) {
	board := NewBoard()
	states := &stateRecorder{}
	conn := newFakeConn(readResult{payload: []byte(predictionPayload)}, closeFrame())
	dialer := &fakeDialer{outcomes: []dialOutcome{{conn: conn}}}
	c := newTestController(board, Options{Dialer: dialer, OnStateChange: states.record})

	waitDone(t, c.Connect(context.Background()))

	assert.Equal(t, Closed, c.State())
	assert.Equal(t, []ConnectionState{Open, Closed}, states.all())
	snap := board.Snapshot()
	assert.Equal(t, TextDisconnected, snap.ResultText)
	assert.Equal(t, StyleError, snap.ResultStyle)
	assert.Len(t, snap.Log, 1)
	select {
	case <-conn.closed:
	default:
		t.Error("connection was not closed")
	}
}

func TestConnect_ReadErrorIsErrored(t *testing.T) {
	board := NewBoard()
	conn := newFakeConn(readResult{err: errors.New("connection reset by peer")})
	dialer := &fakeDialer{outcomes: []dialOutcome{{conn: conn}}}
	c := newTestController(board, Options{Dialer: dialer})

	waitDone(t, c.Connect(context.Background()))

	assert.Equal(t, Errored, c.State())
	assert.Equal(t, TextConnectionError, board.Snapshot().ResultText)
}

func TestConnect_DialFailureIsErrored(t *testing.T) {
	board := NewBoard()
	states := &stateRecorder{}
	dialer := &fakeDialer{}
	c := newTestController(board, Options{Dialer: dialer, OnStateChange: states.record})

	waitDone(t, c.Connect(context.Background()))

	assert.Equal(t, 1, dialer.Dials())
	assert.Equal(t, []ConnectionState{Errored}, states.all())
	snap := board.Snapshot()
	assert.Equal(t, TextConnectionError, snap.ResultText)
	assert.Equal(t, StyleError, snap.ResultStyle)
}

func TestConnect_MalformedMessageKeepsReading(t *testing.T) {
	board := NewBoard()
	conn := newFakeConn(
		readResult{payload: []byte(`not json`)},
		readResult{payload: []byte(predictionPayload)},
		closeFrame(),
	)
	c := newTestController(board, Options{Dialer: &fakeDialer{outcomes: []dialOutcome{{conn: conn}}}})

	waitDone(t, c.Connect(context.Background()))

	assert.Len(t, c.Log(), 1)
	assert.Equal(t, Closed, c.State())
}

func TestConnect_Idempotent(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{outcomes: []dialOutcome{{conn: conn}}}
	c := newTestController(NewBoard(), Options{Dialer: dialer})

	ctx, cancel := context.WithCancel(context.Background())
	first := c.Connect(ctx)
	second := c.Connect(ctx)
	assert.Equal(t, first, second)

	cancel()
	waitDone(t, first)
	assert.Equal(t, 1, dialer.Dials())
}

func TestConnect_CancelIsQuiet(t *testing.T) {
	board := NewBoard()
	conn := newFakeConn()
	c := newTestController(board, Options{
		Dialer:    &fakeDialer{outcomes: []dialOutcome{{conn: conn}}},
		Reconnect: DefaultReconnectPolicy(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := c.Connect(ctx)
	require.Eventually(t, func() bool { return c.State() == Open }, 5*time.Second, time.Millisecond)

	cancel()
	waitDone(t, done)
	assert.Equal(t, TextConnected, board.Snapshot().ResultText)
	assert.Equal(t, StyleInfo, board.Snapshot().ResultStyle)
}

func TestConnect_ReconnectBacksOffUntilExhausted(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	dialer := &fakeDialer{}
	states := &stateRecorder{}
	c := newTestController(NewBoard(), Options{
		Clock:         clock,
		Dialer:        dialer,
		Reconnect:     ReconnectPolicy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second},
		OnStateChange: states.record,
	})

	done := c.Connect(context.Background())
	driveClock(t, clock, done)

	assert.Equal(t, 4, dialer.Dials())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, clock.Waits())
	assert.Equal(t, []ConnectionState{
		Errored, Connecting, Errored, Connecting, Errored, Connecting, Errored,
	}, states.all())
}

func TestConnect_OpenResetsAttempts(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	dialer := &fakeDialer{outcomes: []dialOutcome{
		{err: errors.New("connection refused")},
		{conn: newFakeConn(closeFrame())},
		{err: errors.New("connection refused")},
	}}
	c := newTestController(NewBoard(), Options{
		Clock:     clock,
		Dialer:    dialer,
		Reconnect: ReconnectPolicy{MaxAttempts: 1, BaseDelay: time.Second},
	})

	done := c.Connect(context.Background())
	driveClock(t, clock, done)

	assert.Equal(t, 3, dialer.Dials())
	assert.Equal(t, []time.Duration{time.Second, time.Second}, clock.Waits())
	assert.Equal(t, Errored, c.State())
}
