package serialmux

import (
	"fmt"

	"go.bug.st/serial"
)

// RealPortFactory opens hardware ports through go.bug.st/serial.
type RealPortFactory struct{}

func (RealPortFactory) Open(path string, mode *SerialPortMode) (SerialPorter, error) {
	if mode == nil {
		mode = DefaultSerialPortMode()
	}
	m, err := mode.SerialMode()
	if err != nil {
		return nil, fmt.Errorf("serial mode for %s: %w", path, err)
	}
	return serial.Open(path, m)
}
