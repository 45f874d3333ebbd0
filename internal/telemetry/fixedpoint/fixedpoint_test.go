package fixedpoint

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQ14_28_Constants(t *testing.T) {
	f := Q14_28
	require.True(t, f.Valid())
	assert.Equal(t, uint64(0x3FF_FFFF_FFFF), f.Mask())
	assert.Equal(t, math.Ldexp(1, -28), f.Resolution())
	assert.InDelta(t, 8192.0, f.Max(), 1e-6)
	assert.Equal(t, -8192.0, f.Min())
}

func TestDecode_KnownValues(t *testing.T) {
	tests := []struct {
		name string
		raw  uint64
		want float64
	}{
		{"zero", 0, 0},
		{"one lsb", 1, math.Ldexp(1, -28)},
		{"one", 1 << 28, 1},
		{"minus one", (1 << 42) - (1 << 28), -1},
		{"minus lsb", (1 << 42) - 1, -math.Ldexp(1, -28)},
		{"most negative", 1 << 41, -8192},
		{"most positive", (1 << 41) - 1, 8192 - math.Ldexp(1, -28)},
		{"high bits ignored", 0xFC00_0000_0000 | 1<<28, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Q14_28.Decode(tt.raw))
		})
	}
}

func TestRoundTrip(t *testing.T) {
	f := Q14_28
	edges := []uint64{0, 1, 2, 1<<28 - 1, 1 << 28, 1<<41 - 1, 1 << 41, 1<<41 + 1, f.Mask()}
	for _, v := range edges {
		assert.Equal(t, v, f.Encode(f.Decode(v)), "edge %#x", v)
	}

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 100000; i++ {
		v := rng.Uint64() & f.Mask()
		require.Equal(t, v, f.Encode(f.Decode(v)), "random %#x", v)
	}
}

func TestDecode_Linear(t *testing.T) {
	f := Q14_28
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 10000; i++ {
		v := rng.Uint64() & f.Mask()
		signed := float64(v)
		if v >= 1<<41 {
			signed = float64(int64(v) - 1<<42)
		}
		require.Equal(t, signed/(1<<28), f.Decode(v))
	}
}

func TestUnpack_LittleEndian(t *testing.T) {
	f := Q14_28
	chunk := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0xFE}
	// only the 2 low bits of the last byte count
	want := uint64(0x02_05_04_03_02_01)
	assert.Equal(t, want, f.Unpack(chunk))

	var buf [6]byte
	f.Pack(buf[:], want)
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x02}, buf[:])
}

func TestEncode_Negative(t *testing.T) {
	f := Q14_28
	raw := f.Encode(-1.5)
	assert.Equal(t, int64(-3)<<27, f.SignExtend(raw))
	assert.Equal(t, -1.5, f.Decode(raw))
}
