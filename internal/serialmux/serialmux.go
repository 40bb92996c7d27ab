// Package serialmux reads newline-delimited readings from the wearable's
// serial link and fans each line out to any number of subscribers. The bridge
// is one subscriber; the /debug/ tail page is another.
package serialmux

import (
	"bufio"
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/banshee-data/stroke.report/internal/monitoring"
)

var ErrWriteFailed = errors.New("failed to write to serial port")

// subscriberBuffer lets a subscriber fall briefly behind, for example while
// the bridge waits on a POST, before lines to it are dropped.
const subscriberBuffer = 64

// MuxStats counts lines read from the port and lines a full subscriber
// missed.
type MuxStats struct {
	Lines   int64 `json:"lines"`
	Dropped int64 `json:"dropped"`
}

// SerialMuxInterface is what the bridge and the debug pages need from a mux.
type SerialMuxInterface interface {
	// Subscribe returns an id and a channel receiving every line read after
	// the call. The channel is closed by Unsubscribe or Close.
	Subscribe() (string, chan string)
	Unsubscribe(string)
	// SendCommand writes a newline terminated command to the device.
	SendCommand(string) error
	// Monitor reads lines until the port fails, ends or ctx is cancelled.
	Monitor(context.Context) error
	Close() error
	Stats() MuxStats

	// AttachAdminRoutes serves the tail and send-command pages under
	// /debug/. tsweb limits them to localhost and the tailnet.
	AttachAdminRoutes(*http.ServeMux)
}

// SerialMux multiplexes the lines read from one serial port.
type SerialMux struct {
	port SerialPorter
	logf func(format string, v ...interface{})

	subscriberMu sync.Mutex
	subscribers  map[string]chan string

	commandMu sync.Mutex
	closing   atomic.Bool

	lines   atomic.Int64
	dropped atomic.Int64
}

// NewSerialMux wraps an already opened port.
func NewSerialMux(port SerialPorter) *SerialMux {
	return &SerialMux{
		port:        port,
		logf:        monitoring.Component("serialmux"),
		subscribers: make(map[string]chan string),
	}
}

func (s *SerialMux) Subscribe() (string, chan string) {
	id := uuid.NewString()
	ch := make(chan string, subscriberBuffer)
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	s.subscribers[id] = ch
	return id, ch
}

func (s *SerialMux) Unsubscribe(id string) {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	if ch, ok := s.subscribers[id]; ok {
		close(ch)
		delete(s.subscribers, id)
	}
}

// SendCommand writes a newline terminated command to the device. The IMU
// firmware only understands a reset, but the debug page can send anything.
func (s *SerialMux) SendCommand(command string) error {
	s.commandMu.Lock()
	defer s.commandMu.Unlock()
	if !strings.HasSuffix(command, "\n") {
		command += "\n"
	}
	n, err := s.port.Write([]byte(command))
	if err != nil {
		return err
	}
	if n != len(command) {
		return ErrWriteFailed
	}
	return nil
}

// Stats returns the line counters.
func (s *SerialMux) Stats() MuxStats {
	return MuxStats{Lines: s.lines.Load(), Dropped: s.dropped.Load()}
}

// Monitor reads lines and hands each to every subscriber. It returns nil when
// the port reaches EOF or the mux is closed, the read error if the port
// fails, and ctx.Err() on cancellation.
func (s *SerialMux) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(s.port)

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// scan.Scan blocks, so reading happens on its own goroutine and the loop
	// below stays responsive to ctx.
	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			select {
			case scanErrChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			return err

		case line, ok := <-lineChan:
			if !ok {
				return scan.Err()
			}
			if s.closing.Load() {
				return nil
			}
			s.publish(line)
		}
	}
}

func (s *SerialMux) publish(line string) {
	s.lines.Add(1)
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	for id, ch := range s.subscribers {
		select {
		case ch <- line:
		default:
			// never block the reader on a slow subscriber
			if s.dropped.Add(1) == 1 {
				s.logf("subscriber %s is full, dropping lines", id)
			}
		}
	}
}

// Close closes every subscriber channel and then the port.
func (s *SerialMux) Close() error {
	s.closing.Store(true)

	s.subscriberMu.Lock()
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	s.subscriberMu.Unlock()
	return s.port.Close()
}

func (s *SerialMux) AttachAdminRoutes(mux *http.ServeMux) {
	attachAdminRoutes(mux, func() SerialMuxInterface { return s })
}
