package telemetry

import "sync"

// DefaultPredictionLogLimit is the number of entries kept in the live log.
const DefaultPredictionLogLimit = 50

// PredictionLog is a bounded, most-recent-first history of live predictions.
// The bound is a hard limit: Push never leaves more than Limit entries.
type PredictionLog struct {
	mu      sync.Mutex
	limit   int
	entries []PredictionLogEntry
}

// NewPredictionLog returns a log bounded at limit entries. A non-positive
// limit selects DefaultPredictionLogLimit.
func NewPredictionLog(limit int) *PredictionLog {
	if limit <= 0 {
		limit = DefaultPredictionLogLimit
	}
	return &PredictionLog{
		limit:   limit,
		entries: make([]PredictionLogEntry, 0, limit+1),
	}
}

// Limit returns the configured bound.
func (l *PredictionLog) Limit() int { return l.limit }

// Push prepends e and evicts from the tail while the log exceeds its bound.
func (l *PredictionLog) Push(e PredictionLogEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, PredictionLogEntry{})
	copy(l.entries[1:], l.entries)
	l.entries[0] = e

	for len(l.entries) > l.limit {
		l.entries = l.entries[:len(l.entries)-1]
	}
}

// Len returns the number of entries currently held.
func (l *PredictionLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Entries returns a copy of the log, most recent first.
func (l *PredictionLog) Entries() []PredictionLogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]PredictionLogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}
