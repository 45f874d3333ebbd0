// Package waveform synchronizes two independently sampled time series and
// scores their agreement.
//
// The flow is: FindReferencePoint on each series gives a coarse anchor,
// AutoOffset turns the two anchors into a time offset, Align puts the
// offset test series onto the reference timestamps and ComputeMetrics
// scores the pair. Decimate is an explicit preprocessing step for a
// reference sampled much faster than the device.
//
// Undefined results are NaN (see Undefined) or a false ok value; nothing in
// this package panics on degenerate input.
package waveform

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Waveform is a time series. Time is ordered but need not be uniformly
// spaced or strictly increasing.
type Waveform struct {
	Time  []float64
	Value []float64
}

// New checks lengths and wraps the slices without copying.
func New(time, value []float64) (Waveform, error) {
	if len(time) != len(value) {
		return Waveform{}, fmt.Errorf("waveform: %d timestamps for %d values", len(time), len(value))
	}
	return Waveform{Time: time, Value: value}, nil
}

// Uniform builds a waveform sampled every period seconds from t0.
func Uniform(t0, period float64, value []float64) Waveform {
	time := make([]float64, len(value))
	for i := range time {
		time[i] = t0 + float64(i)*period
	}
	return Waveform{Time: time, Value: value}
}

// Len is the number of samples.
func (w Waveform) Len() int { return len(w.Time) }

// Shift returns a copy with every timestamp moved by offset seconds.
func (w Waveform) Shift(offset float64) Waveform {
	time := make([]float64, len(w.Time))
	copy(time, w.Time)
	floats.AddConst(offset, time)
	return Waveform{Time: time, Value: w.Value}
}

// Bounds returns the earliest and latest timestamps, NaN when empty.
func (w Waveform) Bounds() (lo, hi float64) {
	if len(w.Time) == 0 {
		return math.NaN(), math.NaN()
	}
	return floats.Min(w.Time), floats.Max(w.Time)
}

// TrimTail keeps the samples within duration seconds of the last timestamp.
func (w Waveform) TrimTail(duration float64) Waveform {
	if len(w.Time) == 0 {
		return w
	}
	start := w.Time[len(w.Time)-1] - duration
	out := Waveform{}
	for i, t := range w.Time {
		if t >= start {
			out.Time = append(out.Time, t)
			out.Value = append(out.Value, w.Value[i])
		}
	}
	return out
}
