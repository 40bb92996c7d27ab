package live

import (
	"fmt"
	"time"
)

// ConnectionState is the lifecycle of one live stream connection.
type ConnectionState int

const (
	Connecting ConnectionState = iota
	Open
	Closed
	Errored
)

func (s ConnectionState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closed:
		return "closed"
	case Errored:
		return "errored"
	default:
		return fmt.Sprintf("ConnectionState(%d)", int(s))
	}
}

// Terminal reports whether s ends a connection attempt.
func (s ConnectionState) Terminal() bool {
	return s == Closed || s == Errored
}

// RecordingState mirrors the last logging status seen on the stream.
type RecordingState int

const (
	RecordingUnknown RecordingState = iota
	Recording
	Idle
)

func (s RecordingState) String() string {
	switch s {
	case Recording:
		return "recording"
	case Idle:
		return "idle"
	default:
		return "unknown"
	}
}

// ReconnectPolicy bounds how a controller re-dials after its connection ends.
// A zero MaxAttempts disables reconnection: the first Closed or Errored state
// is final.
type ReconnectPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// NoReconnect returns a policy that never re-dials.
func NoReconnect() ReconnectPolicy { return ReconnectPolicy{} }

// DefaultReconnectPolicy retries five times, backing off 1s, 2s, 4s, 8s, 16s.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// Allows reports whether a retry numbered attempt (0-based) may be made.
func (p ReconnectPolicy) Allows(attempt int) bool {
	return attempt < p.MaxAttempts
}

// Backoff returns the wait before retry number attempt: BaseDelay doubled per
// attempt, capped at MaxDelay when MaxDelay is set.
func (p ReconnectPolicy) Backoff(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	}
	d := p.BaseDelay
	for i := 0; i < attempt; i++ {
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			break
		}
		if d > time.Duration(1<<62) {
			break
		}
		d *= 2
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}
