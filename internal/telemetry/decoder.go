// Package telemetry decodes the acquisition board's packet stream into
// bounded per-channel histories for live display and recording.
package telemetry

import (
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/telemetry.report/internal/monitoring"
	"github.com/banshee-data/telemetry.report/internal/telemetry/parse"
	"github.com/banshee-data/telemetry.report/internal/timeutil"
)

const (
	// DefaultHistoryWindow is the number of values kept per channel.
	DefaultHistoryWindow = 1000
	// DefaultPollInterval is the live update cadence.
	DefaultPollInterval = 100 * time.Millisecond
	// DefaultReadSize bounds one poll. At 3 Mbaud a 100 ms tick carries
	// about 30 KB.
	DefaultReadSize = 64 * 1024
)

var (
	ErrSourceClosed   = errors.New("telemetry source closed")
	ErrDecoderRunning = errors.New("decoder is already running")
)

// Options configures a Decoder.
type Options struct {
	Layout        parse.Layout
	HistoryWindow int
	ReadSize      int
	// RawTee, when set, receives every byte read from the source before
	// framing. Write errors are logged and the tee is dropped.
	RawTee  io.Writer
	Metrics *Metrics
	// Clock drives Run's ticker. Nil uses the wall clock.
	Clock timeutil.Clock
}

// Stats is a point-in-time view of decoder activity.
type Stats struct {
	parse.Stats
	BytesRead       uint64 `json:"bytes_read"`
	Ticks           uint64 `json:"ticks"`
	Buffered        int    `json:"buffered"`
	Paused          bool   `json:"paused"`
	SubscriberDrops uint64 `json:"subscriber_drops"`
}

// Snapshot is a copy of every channel window, oldest value first.
type Snapshot struct {
	Channels [][]float64
	Samples  uint64
}

// Decoder owns a byte source, the framer and the channel histories. Tick and
// Run drive it; every other method is safe to call concurrently with them.
type Decoder struct {
	src     Source
	framer  *parse.Framer
	readBuf []byte
	tee     io.Writer
	metrics *Metrics
	clock   timeutil.Clock

	mu        sync.RWMutex
	histories []*ChannelHistory
	samples   uint64
	bytesRead uint64
	ticks     uint64

	paused    atomic.Bool
	running   atomic.Bool
	drops     atomic.Uint64
	closeOnce sync.Once
	closeErr  error

	subscriberMu sync.Mutex
	subscribers  map[string]chan parse.Sample
}

// NewDecoder builds a decoder reading from src.
func NewDecoder(src Source, opts Options) (*Decoder, error) {
	if src == nil {
		return nil, fmt.Errorf("decoder requires a source")
	}
	framer, err := parse.NewFramer(opts.Layout)
	if err != nil {
		return nil, err
	}
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = DefaultHistoryWindow
	}
	if opts.ReadSize <= 0 {
		opts.ReadSize = DefaultReadSize
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	histories := make([]*ChannelHistory, opts.Layout.Channels)
	for i := range histories {
		histories[i] = NewChannelHistory(opts.HistoryWindow)
	}
	return &Decoder{
		src:         src,
		framer:      framer,
		readBuf:     make([]byte, opts.ReadSize),
		tee:         opts.RawTee,
		metrics:     opts.Metrics,
		clock:       opts.Clock,
		histories:   histories,
		subscribers: make(map[string]chan parse.Sample),
	}, nil
}

// Layout returns the packet shape being decoded.
func (d *Decoder) Layout() parse.Layout { return d.framer.Layout() }

// Pause stops polling the source. Bytes already buffered are still decoded.
func (d *Decoder) Pause() {
	d.paused.Store(true)
	if d.metrics != nil {
		d.metrics.paused.Set(1)
	}
}

// Resume restarts polling where the buffer left off.
func (d *Decoder) Resume() {
	d.paused.Store(false)
	if d.metrics != nil {
		d.metrics.paused.Set(0)
	}
}

// Paused reports whether polling is suspended.
func (d *Decoder) Paused() bool { return d.paused.Load() }

// Tick performs one update cycle: poll the source unless paused, feed the
// framer, append decoded samples to the histories and fan them out to
// subscribers. It returns the number of samples decoded. io.EOF is returned
// after the final extraction once a finite source is exhausted.
func (d *Decoder) Tick() (int, error) {
	var n int
	var readErr error
	if !d.paused.Load() {
		n, readErr = d.src.Read(d.readBuf)
		if n > 0 {
			d.teeBytes(d.readBuf[:n])
		}
	}

	d.mu.Lock()
	d.ticks++
	d.bytesRead += uint64(n)
	before := d.framer.Stats()
	if n > 0 {
		_, _ = d.framer.Write(d.readBuf[:n])
	}
	samples := d.framer.ExtractAll()
	for _, s := range samples {
		for ch, v := range s.Values {
			d.histories[ch].Append(v)
		}
	}
	d.samples += uint64(len(samples))
	after := d.framer.Stats()
	d.mu.Unlock()

	d.observe(n, before, after)
	d.publish(samples)

	if readErr != nil {
		if errors.Is(readErr, io.EOF) {
			return len(samples), io.EOF
		}
		if d.metrics != nil {
			d.metrics.readErrors.Inc()
		}
		return len(samples), fmt.Errorf("read telemetry source: %w", readErr)
	}
	return len(samples), nil
}

func (d *Decoder) teeBytes(p []byte) {
	if d.tee == nil {
		return
	}
	if _, err := d.tee.Write(p); err != nil {
		monitoring.Logf("raw capture write failed, disabling: %v", err)
		d.tee = nil
	}
}

func (d *Decoder) observe(n int, before, after parse.Stats) {
	if d.metrics == nil {
		return
	}
	d.metrics.bytesRead.Add(float64(n))
	d.metrics.packets.Add(float64(after.Packets - before.Packets))
	d.metrics.discardedBytes.Add(float64(after.DiscardedBytes - before.DiscardedBytes))
	d.metrics.resyncs.Add(float64(after.Resyncs - before.Resyncs))
}

// Run ticks every interval until ctx is cancelled, the source is exhausted
// or a read fails. The source is closed on return in every case.
func (d *Decoder) Run(ctx context.Context, interval time.Duration) error {
	if !d.running.CompareAndSwap(false, true) {
		return ErrDecoderRunning
	}
	defer d.running.Store(false)
	defer d.closeSubscribers()
	defer d.Close()

	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := d.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			if _, err := d.Tick(); err != nil {
				if errors.Is(err, io.EOF) {
					monitoring.Logf("telemetry source exhausted after %d samples", d.Stats().Packets)
					return nil
				}
				return err
			}
		}
	}
}

// Close releases the source. It is safe to call more than once.
func (d *Decoder) Close() error {
	d.closeOnce.Do(func() {
		d.closeErr = d.src.Close()
	})
	return d.closeErr
}

// Snapshot copies every channel window.
func (d *Decoder) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := Snapshot{
		Channels: make([][]float64, len(d.histories)),
		Samples:  d.samples,
	}
	for i, h := range d.histories {
		out.Channels[i] = h.Values()
	}
	return out
}

// Stats returns framing and polling counters.
func (d *Decoder) Stats() Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return Stats{
		Stats:           d.framer.Stats(),
		BytesRead:       d.bytesRead,
		Ticks:           d.ticks,
		Buffered:        d.framer.Buffered(),
		Paused:          d.paused.Load(),
		SubscriberDrops: d.drops.Load(),
	}
}

// randomID generates a random subscriber ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	_, _ = crand.Read(b)
	return hex.EncodeToString(b)
}

// Subscribe returns a channel receiving every decoded sample. Delivery never
// blocks the decoder: when the channel is full the sample is dropped for
// that subscriber. The channel is closed by Unsubscribe or when Run returns.
func (d *Decoder) Subscribe(buffer int) (string, <-chan parse.Sample) {
	if buffer < 1 {
		buffer = 1
	}
	id := randomID()
	ch := make(chan parse.Sample, buffer)
	d.subscriberMu.Lock()
	defer d.subscriberMu.Unlock()
	d.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes and closes a subscriber channel.
func (d *Decoder) Unsubscribe(id string) {
	d.subscriberMu.Lock()
	defer d.subscriberMu.Unlock()
	if ch, ok := d.subscribers[id]; ok {
		close(ch)
		delete(d.subscribers, id)
	}
}

func (d *Decoder) publish(samples []parse.Sample) {
	if len(samples) == 0 {
		return
	}
	d.subscriberMu.Lock()
	defer d.subscriberMu.Unlock()
	for _, ch := range d.subscribers {
		for _, s := range samples {
			select {
			case ch <- s:
			default:
				// a slow subscriber must not stall decoding
				d.drops.Add(1)
				if d.metrics != nil {
					d.metrics.droppedSamples.Inc()
				}
			}
		}
	}
}

func (d *Decoder) closeSubscribers() {
	d.subscriberMu.Lock()
	defer d.subscriberMu.Unlock()
	for id, ch := range d.subscribers {
		close(ch)
		delete(d.subscribers, id)
	}
}
