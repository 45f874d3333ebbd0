package waveform

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var approx = cmpopts.EquateApprox(0, 1e-9)

func TestNew_LengthMismatch(t *testing.T) {
	_, err := New([]float64{0, 1}, []float64{1})
	assert.Error(t, err)

	w, err := New(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, w.Len())
}

func TestShiftBoundsTrim(t *testing.T) {
	w := Uniform(1, 0.5, []float64{1, 2, 3, 4, 5})
	s := w.Shift(-1)
	assert.Equal(t, []float64{0, 0.5, 1, 1.5, 2}, s.Time)
	assert.Equal(t, 1.0, w.Time[0], "shift copies")

	lo, hi := s.Bounds()
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 2.0, hi)

	lo, hi = Waveform{}.Bounds()
	assert.True(t, math.IsNaN(lo) && math.IsNaN(hi))

	tail := w.TrimTail(1)
	assert.Equal(t, []float64{2, 2.5, 3}, tail.Time)
	assert.Equal(t, []float64{3, 4, 5}, tail.Value)
}

func TestAlign_InterpolatesOntoReferenceGrid(t *testing.T) {
	ref := Uniform(0, 0.5, []float64{9, 9, 9, 9, 9, 9, 9, 9, 9})          // 0..4
	test := Waveform{Time: []float64{4, 0, 2}, Value: []float64{4, 0, 2}} // unsorted, y = t

	a, ok := Align(ref, test, 0)
	require.True(t, ok)
	assert.Equal(t, ref.Time, a.Time)
	if diff := cmp.Diff(ref.Time, a.Test, approx); diff != "" {
		t.Errorf("interpolated test mismatch (-want +got):\n%s", diff)
	}
}

func TestAlign_ClipsToOverlap(t *testing.T) {
	ref := Uniform(0, 1, []float64{0, 1, 2, 3, 4, 5})
	test := Uniform(0, 1, []float64{10, 11, 12, 13})

	a, ok := Align(ref, test, 2.5) // test now covers [2.5, 5.5]
	require.True(t, ok)
	assert.Equal(t, 2.5, a.Offset)
	assert.Equal(t, []float64{3, 4, 5}, a.Time)
	assert.Equal(t, []float64{3, 4, 5}, a.Reference)
	if diff := cmp.Diff([]float64{10.5, 11.5, 12.5}, a.Test, approx); diff != "" {
		t.Errorf("test values mismatch (-want +got):\n%s", diff)
	}
}

func TestAlign_DuplicateTimestampsAveraged(t *testing.T) {
	ref := Uniform(0, 1, []float64{0, 0, 0})
	test := Waveform{Time: []float64{0, 1, 1, 2}, Value: []float64{0, 1, 3, 4}}
	a, ok := Align(ref, test, 0)
	require.True(t, ok)
	assert.Equal(t, []float64{0, 2, 4}, a.Test)
}

func TestAlign_NoResult(t *testing.T) {
	ref := Uniform(0, 1, seq(10))
	tests := []struct {
		name   string
		test   Waveform
		offset float64
	}{
		{"disjoint", Uniform(100, 1, seq(10)), 0},
		{"shifted away", Uniform(0, 1, seq(10)), 50},
		{"touching at one instant", Uniform(9, 1, seq(10)), 0},
		{"single test sample", Uniform(0, 1, []float64{1}), 0},
		{"empty test", Waveform{}, 0},
		{"infinite offset", Uniform(0, 1, seq(10)), math.Inf(1)},
		{"nan offset", Uniform(0, 1, seq(10)), math.NaN()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, ok := Align(ref, tt.test, tt.offset)
			assert.False(t, ok)
			assert.Nil(t, a)
		})
	}
}

func TestAutoOffset(t *testing.T) {
	ref := Uniform(0, 1, []float64{-1, -1, 1, 1, -1})
	test := Uniform(0, 1, []float64{-1, -1, -1, -1, 1})

	off, ok := AutoOffset(ref, test, 0.25, DefaultReferenceOptions())
	require.True(t, ok)
	assert.Equal(t, Offset{Auto: -2, Manual: 0.25, Total: -1.75}, off)

	flat := Uniform(0, 1, []float64{0, 0, 0})
	off, ok = AutoOffset(ref, flat, 0.25, DefaultReferenceOptions())
	assert.False(t, ok)
	assert.Equal(t, Offset{Manual: 0.25, Total: 0.25}, off, "manual correction still applies")
}

func TestDecimate(t *testing.T) {
	t.Run("buckets by left edge", func(t *testing.T) {
		w := Uniform(0, 1, []float64{1, 3, 5, 7, 9})
		got := Decimate(w, 2)
		assert.Equal(t, []float64{0, 2, 4}, got.Time)
		assert.Equal(t, []float64{2, 6, 9}, got.Value)
	})

	t.Run("float rounding at bucket edges", func(t *testing.T) {
		values := make([]float64, 100)
		for i := range values {
			values[i] = float64(i / 25)
		}
		got := Decimate(Uniform(0, 1e-6, values), 25e-6)
		require.Len(t, got.Time, 4)
		assert.Equal(t, []float64{0, 1, 2, 3}, got.Value)
		if diff := cmp.Diff([]float64{0, 25e-6, 50e-6, 75e-6}, got.Time, approx); diff != "" {
			t.Errorf("bucket times mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("empty buckets dropped", func(t *testing.T) {
		got := Decimate(Waveform{Time: []float64{0, 10}, Value: []float64{1, 2}}, 1)
		assert.Equal(t, []float64{0, 10}, got.Time)
	})

	t.Run("invalid step is identity", func(t *testing.T) {
		w := Uniform(0, 1, []float64{1, 2})
		assert.Equal(t, w, Decimate(w, 0))
	})
}
