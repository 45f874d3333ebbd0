// Package serialport opens the acquisition UART and provides test doubles
// for it.
package serialport

import (
	"errors"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"

	"github.com/banshee-data/telemetry.report/internal/monitoring"
)

// ErrPortUnavailable wraps every failure to open or configure a port.
var ErrPortUnavailable = errors.New("serial port unavailable")

// Port is the minimal interface needed for a serial port.
// This abstraction enables unit testing without real serial hardware.
type Port interface {
	io.ReadWriter
	io.Closer
}

// TimeoutPort is a Port whose reads return after a bounded wait.
type TimeoutPort interface {
	Port
	// SetReadTimeout bounds how long Read waits for the first byte.
	SetReadTimeout(timeout time.Duration) error
}

// InputResetter is implemented by ports that can drop stale input.
type InputResetter interface {
	ResetInputBuffer() error
}

// Factory creates serial ports. Production code uses RealFactory; tests
// inject MockFactory.
type Factory interface {
	Open(path string, opts PortOptions) (Port, error)
}

// RealFactory opens hardware ports through go.bug.st/serial.
type RealFactory struct{}

func (RealFactory) Open(path string, opts PortOptions) (Port, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	return serial.Open(path, mode)
}

// Connect opens path through f, bounds reads by readTimeout and discards
// whatever the device buffered before the capture started. A partially
// configured port is closed before returning an error.
func Connect(f Factory, path string, opts PortOptions, readTimeout time.Duration) (Port, error) {
	port, err := f.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrPortUnavailable, path, err)
	}

	if readTimeout > 0 {
		tp, ok := port.(TimeoutPort)
		if !ok {
			port.Close()
			return nil, fmt.Errorf("%w: %s does not support read timeouts", ErrPortUnavailable, path)
		}
		if err := tp.SetReadTimeout(readTimeout); err != nil {
			port.Close()
			return nil, fmt.Errorf("%w: set read timeout on %s: %v", ErrPortUnavailable, path, err)
		}
	}

	if r, ok := port.(InputResetter); ok {
		if err := r.ResetInputBuffer(); err != nil {
			monitoring.Logf("serial: could not reset input buffer on %s: %v", path, err)
		}
	}
	return port, nil
}

// Open connects to a hardware port.
func Open(path string, opts PortOptions, readTimeout time.Duration) (Port, error) {
	return Connect(RealFactory{}, path, opts, readTimeout)
}

// ListPorts returns the serial devices visible to the OS.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	return ports, nil
}
