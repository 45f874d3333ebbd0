package parse

import (
	"bytes"
)

// Sample is one decoded packet: one value per channel in wire order.
// Seq counts packets decoded by the framer that produced it, from zero.
type Sample struct {
	Seq    uint64
	Values []float64
}

// Stats counts framing activity. Framing noise is never an error; it only
// shows up here.
type Stats struct {
	Packets        uint64 `json:"packets"`
	DiscardedBytes uint64 `json:"discarded_bytes"`
	Resyncs        uint64 `json:"resyncs"`
}

// Framer turns an append-only byte stream into samples. It is not safe for
// concurrent use; the owning decoder serializes access.
type Framer struct {
	layout Layout
	buf    bytes.Buffer
	seq    uint64
	stats  Stats
}

// NewFramer returns a framer for layout.
func NewFramer(layout Layout) (*Framer, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	return &Framer{layout: layout}, nil
}

// Layout returns the packet shape.
func (f *Framer) Layout() Layout { return f.layout }

// Write appends raw bytes. It never fails.
func (f *Framer) Write(p []byte) (int, error) {
	return f.buf.Write(p)
}

// Buffered is the number of bytes waiting for a complete packet.
func (f *Framer) Buffered() int { return f.buf.Len() }

// Stats returns a copy of the framing counters.
func (f *Framer) Stats() Stats { return f.stats }

// Reset drops buffered bytes. Counters and sequence numbers are kept.
func (f *Framer) Reset() {
	f.buf.Reset()
}

// ExtractAll decodes every complete packet currently buffered, in arrival
// order. Bytes before a header are discarded; a buffer with no header at all
// is dropped entirely. A trailing partial packet stays buffered.
func (f *Framer) ExtractAll() []Sample {
	size := f.layout.PacketSize()
	var out []Sample
	for f.buf.Len() >= size {
		idx := bytes.IndexByte(f.buf.Bytes(), f.layout.HeaderByte)
		if idx < 0 {
			f.discard(f.buf.Len())
			break
		}
		if idx > 0 {
			f.discard(idx)
		}
		if f.buf.Len() < size {
			break
		}
		out = append(out, f.decode(f.buf.Next(size)))
	}
	return out
}

func (f *Framer) discard(n int) {
	f.buf.Next(n)
	f.stats.DiscardedBytes += uint64(n)
	f.stats.Resyncs++
}

func (f *Framer) decode(pkt []byte) Sample {
	width := f.layout.BytesPerChannel
	values := make([]float64, f.layout.Channels)
	for i := range values {
		off := 1 + i*width
		values[i] = f.layout.Format.Decode(f.layout.Format.Unpack(pkt[off : off+width]))
	}
	s := Sample{Seq: f.seq, Values: values}
	f.seq++
	f.stats.Packets++
	return s
}
