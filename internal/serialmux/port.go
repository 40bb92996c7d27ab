package serialmux

import (
	"fmt"
	"io"

	"go.bug.st/serial"
)

// DefaultBaudRate is the IMU firmware's link speed.
const DefaultBaudRate = 115200

// SerialPorter defines the minimal interface needed for a serial port.
// This abstraction enables unit testing without real serial hardware.
type SerialPorter interface {
	io.ReadWriter
	io.Closer
}

// SerialPortMode defines serial port configuration parameters.
type SerialPortMode struct {
	BaudRate int
	DataBits int
	Parity   Parity
	StopBits StopBits
}

// Parity defines serial port parity options.
type Parity int

const (
	NoParity Parity = iota
	OddParity
	EvenParity
)

// StopBits defines serial port stop bit options.
type StopBits int

const (
	OneStopBit StopBits = iota
	TwoStopBits
)

// DefaultSerialPortMode returns 115200 8N1, which is what the IMU firmware
// writes at.
func DefaultSerialPortMode() *SerialPortMode {
	return &SerialPortMode{
		BaudRate: DefaultBaudRate,
		DataBits: 8,
		Parity:   NoParity,
		StopBits: OneStopBit,
	}
}

// Validate rejects framings the USB adapters cannot open.
func (m *SerialPortMode) Validate() error {
	if m.BaudRate <= 0 {
		return fmt.Errorf("invalid baud rate %d", m.BaudRate)
	}
	if m.DataBits < 5 || m.DataBits > 8 {
		return fmt.Errorf("invalid data bits %d: must be between 5 and 8", m.DataBits)
	}
	switch m.Parity {
	case NoParity, OddParity, EvenParity:
	default:
		return fmt.Errorf("unsupported parity %d", m.Parity)
	}
	switch m.StopBits {
	case OneStopBit, TwoStopBits:
	default:
		return fmt.Errorf("unsupported stop bits %d", m.StopBits)
	}
	return nil
}

// SerialMode converts the mode into the structure go.bug.st/serial opens
// ports with.
func (m *SerialPortMode) SerialMode() (*serial.Mode, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	mode := &serial.Mode{
		BaudRate: m.BaudRate,
		DataBits: m.DataBits,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	switch m.Parity {
	case OddParity:
		mode.Parity = serial.OddParity
	case EvenParity:
		mode.Parity = serial.EvenParity
	}
	if m.StopBits == TwoStopBits {
		mode.StopBits = serial.TwoStopBits
	}
	return mode, nil
}

// String formats the mode the way it is usually written, e.g. "115200 8N1".
func (m *SerialPortMode) String() string {
	parity := "N"
	switch m.Parity {
	case OddParity:
		parity = "O"
	case EvenParity:
		parity = "E"
	}
	stop := 1
	if m.StopBits == TwoStopBits {
		stop = 2
	}
	return fmt.Sprintf("%d %d%s%d", m.BaudRate, m.DataBits, parity, stop)
}

// SerialPortFactory defines an interface for creating serial ports.
// This abstraction enables dependency injection of serial port creation.
type SerialPortFactory interface {
	// Open opens a serial port at the specified path with the given mode.
	Open(path string, mode *SerialPortMode) (SerialPorter, error)
}
