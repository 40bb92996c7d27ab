package serialmux

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/banshee-data/stroke.report/internal/monitoring"
)

// ErrPortClosed is returned by reads and writes on a closed fixture or test
// port.
var ErrPortClosed = errors.New("serial port closed")

// FixturePort replays recorded device lines in a loop, one per interval,
// standing in for the IMU when no hardware is attached. Commands written to
// it are logged and discarded.
type FixturePort struct {
	r    *io.PipeReader
	w    *io.PipeWriter
	done chan struct{}
	once sync.Once
}

// NewFixturePort starts replaying lines. An empty lines slice produces a
// port that never yields data.
func NewFixturePort(lines []string, interval time.Duration) *FixturePort {
	r, w := io.Pipe()
	p := &FixturePort{r: r, w: w, done: make(chan struct{})}
	go p.replay(lines, interval)
	return p
}

func (p *FixturePort) replay(lines []string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for i := 0; ; i++ {
		select {
		case <-p.done:
			return
		case <-ticker.C:
		}
		if len(lines) == 0 {
			continue
		}
		line := lines[i%len(lines)]
		if _, err := io.WriteString(p.w, line+"\n"); err != nil {
			return
		}
	}
}

func (p *FixturePort) Read(b []byte) (int, error) {
	return p.r.Read(b)
}

func (p *FixturePort) Write(b []byte) (int, error) {
	select {
	case <-p.done:
		return 0, ErrPortClosed
	default:
	}
	monitoring.Logf("fixture port received command %q", strings.TrimSpace(string(b)))
	return len(b), nil
}

func (p *FixturePort) Close() error {
	p.once.Do(func() {
		close(p.done)
		p.w.CloseWithError(ErrPortClosed)
	})
	return nil
}

// FixturePortFactory opens a fresh FixturePort on every call so the bridge's
// retry loop behaves the same as with hardware.
type FixturePortFactory struct {
	Lines    []string
	Interval time.Duration
}

func (f FixturePortFactory) Open(path string, mode *SerialPortMode) (SerialPorter, error) {
	interval := f.Interval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return NewFixturePort(f.Lines, interval), nil
}

// LoadFixtureLines reads the non-blank lines of a fixtures file.
func LoadFixtureLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scan := bufio.NewScanner(f)
	for scan.Scan() {
		if line := strings.TrimSpace(scan.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scan.Err(); err != nil {
		return nil, fmt.Errorf("read fixtures %s: %w", path, err)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("fixtures %s: no lines", path)
	}
	return lines, nil
}
