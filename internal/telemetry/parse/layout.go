package parse

import (
	"errors"
	"fmt"

	"github.com/banshee-data/telemetry.report/internal/telemetry/fixedpoint"
)

/*
Telemetry Packet Layout

The acquisition board streams fixed-shape packets over the UART:

	[header: 1 byte = 0xFA][channel_0: 6 bytes]...[channel_{N-1}: 6 bytes]

Each channel field is little-endian. Bytes 0-4 carry bits 0-39 of the sample
and the two low bits of byte 5 carry bits 40-41; the remaining 6 bits of byte
5 are unused. Samples are signed Q14.28.

There is no length, sequence number or checksum. The header byte is the only
synchronization point, so a corrupted stream heals at the next header.
*/

const (
	// DefaultHeaderByte marks the start of every packet.
	DefaultHeaderByte byte = 0xFA
	// DefaultChannels is the channel count of the five-state converter board.
	DefaultChannels = 5
	// DefaultBytesPerChannel is the width of one channel field on the wire.
	DefaultBytesPerChannel = 6
)

var ErrInvalidLayout = errors.New("invalid packet layout")

// Layout is the immutable packet shape.
type Layout struct {
	HeaderByte      byte
	Channels        int
	BytesPerChannel int
	Format          fixedpoint.Format
}

// DefaultLayout returns the 5-channel Q14.28 layout.
func DefaultLayout() Layout {
	return Layout{
		HeaderByte:      DefaultHeaderByte,
		Channels:        DefaultChannels,
		BytesPerChannel: DefaultBytesPerChannel,
		Format:          fixedpoint.Q14_28,
	}
}

// Validate checks that the sample width fits the channel field.
func (l Layout) Validate() error {
	if l.Channels <= 0 {
		return fmt.Errorf("%w: channel count must be positive, got %d", ErrInvalidLayout, l.Channels)
	}
	if l.BytesPerChannel <= 0 || l.BytesPerChannel > 8 {
		return fmt.Errorf("%w: bytes per channel must be in 1..8, got %d", ErrInvalidLayout, l.BytesPerChannel)
	}
	if !l.Format.Valid() {
		return fmt.Errorf("%w: unsupported sample format %d.%d", ErrInvalidLayout, l.Format.Bits, l.Format.FracBits)
	}
	if int(l.Format.Bits) > 8*l.BytesPerChannel {
		return fmt.Errorf("%w: %d-bit samples do not fit %d-byte fields", ErrInvalidLayout, l.Format.Bits, l.BytesPerChannel)
	}
	return nil
}

// PayloadSize is the number of bytes after the header.
func (l Layout) PayloadSize() int {
	return l.Channels * l.BytesPerChannel
}

// PacketSize is the header plus payload.
func (l Layout) PacketSize() int {
	return 1 + l.PayloadSize()
}

// EncodePacket builds one wire packet from channel values. Values outside the
// format's range wrap. Used by fixtures and the simulated source.
func EncodePacket(l Layout, values []float64) ([]byte, error) {
	if len(values) != l.Channels {
		return nil, fmt.Errorf("encode packet: got %d values for %d channels", len(values), l.Channels)
	}
	pkt := make([]byte, l.PacketSize())
	pkt[0] = l.HeaderByte
	for i, v := range values {
		off := 1 + i*l.BytesPerChannel
		l.Format.Pack(pkt[off:off+l.BytesPerChannel], l.Format.Encode(v))
	}
	return pkt, nil
}
