package serialport

import (
	"bytes"
	"errors"
	"sync"
	"time"
)

var errClosed = errors.New("serial port closed")

// TestableSerialPort implements TimeoutPort with configurable behaviour for
// testing. An empty read waits up to ReadTimeout for data and then returns
// (0, nil), as a hardware port with a read timeout does.
type TestableSerialPort struct {
	mu sync.Mutex

	// ReadBuffer holds data to be returned by Read calls
	ReadBuffer *bytes.Buffer

	// WriteBuffer captures data written to the port
	WriteBuffer *bytes.Buffer

	// ReadError is returned by the next Read call if set
	ReadError error

	// CloseError is returned by Close if set
	CloseError error

	// TimeoutError, when set, is returned by SetReadTimeout
	TimeoutError error

	// Closed indicates whether Close was called
	Closed bool

	// ReadCalls records the number of Read calls
	ReadCalls int

	// ReadTimeout is the current read timeout
	ReadTimeout time.Duration

	// InputResets counts ResetInputBuffer calls
	InputResets int

	dataReady *sync.Cond
}

// NewTestableSerialPort creates a new TestableSerialPort for testing.
func NewTestableSerialPort() *TestableSerialPort {
	p := &TestableSerialPort{
		ReadBuffer:  bytes.NewBuffer(nil),
		WriteBuffer: bytes.NewBuffer(nil),
	}
	p.dataReady = sync.NewCond(&p.mu)
	return p
}

// Read returns buffered data, waiting up to ReadTimeout when there is none.
func (p *TestableSerialPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ReadCalls++
	if p.Closed {
		return 0, errClosed
	}
	if p.ReadError != nil {
		err := p.ReadError
		p.ReadError = nil
		return 0, err
	}

	if p.ReadBuffer.Len() == 0 && p.ReadTimeout > 0 {
		deadline := time.AfterFunc(p.ReadTimeout, func() {
			p.mu.Lock()
			p.dataReady.Broadcast()
			p.mu.Unlock()
		})
		start := time.Now()
		for !p.Closed && p.ReadBuffer.Len() == 0 && time.Since(start) < p.ReadTimeout {
			p.dataReady.Wait()
		}
		deadline.Stop()
		if p.Closed {
			return 0, errClosed
		}
	}
	if p.ReadBuffer.Len() == 0 {
		return 0, nil
	}
	return p.ReadBuffer.Read(b)
}

// Write captures data written to the port.
func (p *TestableSerialPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Closed {
		return 0, errClosed
	}
	return p.WriteBuffer.Write(b)
}

// Close marks the port as closed and wakes blocked readers.
func (p *TestableSerialPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed = true
	p.dataReady.Broadcast()
	return p.CloseError
}

// SetReadTimeout implements TimeoutPort.
func (p *TestableSerialPort) SetReadTimeout(timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.TimeoutError != nil {
		return p.TimeoutError
	}
	p.ReadTimeout = timeout
	return nil
}

// ResetInputBuffer implements InputResetter by dropping unread data.
func (p *TestableSerialPort) ResetInputBuffer() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.InputResets++
	p.ReadBuffer.Reset()
	return nil
}

// AddReadData adds data to be returned by subsequent Read calls.
func (p *TestableSerialPort) AddReadData(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ReadBuffer.Write(data)
	p.dataReady.Broadcast()
}

// IsClosed reports whether Close was called.
func (p *TestableSerialPort) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Closed
}

// MockFactory implements Factory for testing.
type MockFactory struct {
	mu sync.Mutex

	// Port is the port to return from Open
	Port Port

	// Error is returned by Open if set
	Error error

	// OpenCalls records all Open calls
	OpenCalls []MockOpenCall
}

// MockOpenCall records details of an Open call.
type MockOpenCall struct {
	Path string
	Opts PortOptions
}

// NewMockFactory creates a MockFactory returning port.
func NewMockFactory(port Port) *MockFactory {
	return &MockFactory{Port: port}
}

// Open records the call and returns the configured port or error.
func (f *MockFactory) Open(path string, opts PortOptions) (Port, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.OpenCalls = append(f.OpenCalls, MockOpenCall{Path: path, Opts: opts})
	if f.Error != nil {
		return nil, f.Error
	}
	return f.Port, nil
}
