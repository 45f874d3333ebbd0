// Package fixedpoint converts between raw two's-complement sample words and
// the fractional values they carry.
//
// The acquisition board emits Q14.28 samples: 42 significant bits, 14 integer
// bits including the sign and 28 fractional bits, scale 2^-28. Each sample
// travels in a 6-byte little-endian field whose top 6 bits are unused.
package fixedpoint

import (
	"math"
)

// Format describes a signed fixed-point word of Bits bits with FracBits bits
// after the binary point.
type Format struct {
	Bits     uint
	FracBits uint
}

// Q14_28 is the sample format produced by the acquisition board.
var Q14_28 = Format{Bits: 42, FracBits: 28}

// Valid reports whether the format fits a 64-bit word.
func (f Format) Valid() bool {
	return f.Bits > 0 && f.Bits <= 63 && f.FracBits <= f.Bits
}

// Mask returns the bit mask covering the significant bits.
func (f Format) Mask() uint64 {
	return (uint64(1) << f.Bits) - 1
}

// SignExtend interprets the low Bits bits of raw as two's complement.
// Bits above the word are ignored.
func (f Format) SignExtend(raw uint64) int64 {
	raw &= f.Mask()
	if raw&(uint64(1)<<(f.Bits-1)) != 0 {
		return int64(raw) - int64(uint64(1)<<f.Bits)
	}
	return int64(raw)
}

// Decode maps a raw word to its fractional value. Every input is valid.
func (f Format) Decode(raw uint64) float64 {
	return math.Ldexp(float64(f.SignExtend(raw)), -int(f.FracBits))
}

// Encode is the inverse of Decode, rounding to the nearest representable
// step and wrapping to the word width. Used to build fixtures and simulated
// streams.
func (f Format) Encode(v float64) uint64 {
	scaled := math.Round(math.Ldexp(v, int(f.FracBits)))
	return uint64(int64(scaled)) & f.Mask()
}

// Resolution is the value of one least-significant bit.
func (f Format) Resolution() float64 {
	return math.Ldexp(1, -int(f.FracBits))
}

// Max is the largest representable value.
func (f Format) Max() float64 {
	return math.Ldexp(float64(int64(1)<<(f.Bits-1)-1), -int(f.FracBits))
}

// Min is the most negative representable value.
func (f Format) Min() float64 {
	return math.Ldexp(-float64(int64(1)<<(f.Bits-1)), -int(f.FracBits))
}

// Unpack reads a little-endian field and masks it to the significant bits.
// Fields longer than 8 bytes only contribute their first 8 bytes.
func (f Format) Unpack(chunk []byte) uint64 {
	var raw uint64
	for i := len(chunk) - 1; i >= 0; i-- {
		if i >= 8 {
			continue
		}
		raw = raw<<8 | uint64(chunk[i])
	}
	return raw & f.Mask()
}

// Pack writes raw little-endian into dst, filling every byte of dst.
// Unused high bits are written as zero.
func (f Format) Pack(dst []byte, raw uint64) {
	raw &= f.Mask()
	for i := range dst {
		dst[i] = byte(raw)
		raw >>= 8
	}
}
