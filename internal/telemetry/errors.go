package telemetry

import (
	"errors"
	"fmt"
)

// ErrEmptySession is returned when an analysis fetch yields no records. It is
// user guidance rather than a fault.
var ErrEmptySession = errors.New("no data logged yet. Start and stop a logging session first")

// TransportError wraps a connection, dial or HTTP failure.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError wraps a malformed message or response body. It is scoped to the
// single message or request that failed.
type DecodeError struct {
	What string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode %s: %v", e.What, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsUserGuidance reports whether err should be shown as a notice instead of a
// failure.
func IsUserGuidance(err error) bool {
	return errors.Is(err, ErrEmptySession)
}
