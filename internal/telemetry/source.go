package telemetry

import (
	"fmt"
	"io"
	"math"
	"os"
	"sync"

	"github.com/banshee-data/telemetry.report/internal/telemetry/parse"
)

// Source is a byte stream the decoder polls. Read must not block
// indefinitely: it returns whatever is available, possibly nothing, within a
// bounded time. Close releases the underlying device.
type Source interface {
	io.Reader
	io.Closer
}

// FileSource replays a raw capture file. Read returns io.EOF once the file
// is exhausted.
type FileSource struct {
	f     *os.File
	chunk int
}

// OpenFileSource opens a raw capture. chunk bounds the bytes handed out per
// Read to mimic the device cadence; zero means unbounded.
func OpenFileSource(path string, chunk int) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open replay file %s: %w", path, err)
	}
	return &FileSource{f: f, chunk: chunk}, nil
}

func (s *FileSource) Read(p []byte) (int, error) {
	if s.chunk > 0 && len(p) > s.chunk {
		p = p[:s.chunk]
	}
	return s.f.Read(p)
}

func (s *FileSource) Close() error {
	return s.f.Close()
}

// Tone is one simulated channel: A*sin(2*pi*F*t + Phase) + Offset.
type Tone struct {
	Amplitude float64
	Frequency float64
	Phase     float64
	Offset    float64
}

// SimulatedSource synthesizes valid packets for development without the
// acquisition board. Each Read emits PacketsPerRead packets whose sample
// times advance by SamplePeriod. Noise, when non-zero, inserts that many
// garbage bytes ahead of every packet to exercise resynchronization.
type SimulatedSource struct {
	Layout         parse.Layout
	Tones          []Tone
	SamplePeriod   float64
	PacketsPerRead int
	Noise          int

	mu      sync.Mutex
	n       uint64
	pending []byte
	closed  bool
}

// NewSimulatedSource returns a source emitting the converter's five states
// as 50 Hz tones with staggered phase.
func NewSimulatedSource(layout parse.Layout, samplePeriod float64) *SimulatedSource {
	tones := make([]Tone, layout.Channels)
	for i := range tones {
		tones[i] = Tone{
			Amplitude: 1 + float64(i),
			Frequency: 50,
			Phase:     float64(i) * math.Pi / 4,
		}
	}
	return &SimulatedSource{
		Layout:         layout,
		Tones:          tones,
		SamplePeriod:   samplePeriod,
		PacketsPerRead: 64,
	}
}

// Values returns the channel values of the i-th simulated sample.
func (s *SimulatedSource) Values(i uint64) []float64 {
	t := float64(i) * s.SamplePeriod
	out := make([]float64, s.Layout.Channels)
	for c := range out {
		if c >= len(s.Tones) {
			continue
		}
		tone := s.Tones[c]
		out[c] = tone.Amplitude*math.Sin(2*math.Pi*tone.Frequency*t+tone.Phase) + tone.Offset
	}
	return out
}

func (s *SimulatedSource) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrSourceClosed
	}
	if len(s.pending) == 0 {
		for i := 0; i < max(s.PacketsPerRead, 1); i++ {
			for j := 0; j < s.Noise; j++ {
				s.pending = append(s.pending, byte(0x55+j%0x40))
			}
			pkt, err := parse.EncodePacket(s.Layout, s.Values(s.n))
			if err != nil {
				return 0, err
			}
			s.pending = append(s.pending, pkt...)
			s.n++
		}
	}
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

func (s *SimulatedSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.pending = nil
	return nil
}
