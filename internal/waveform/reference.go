package waveform

import (
	"math"
)

const (
	// DefaultZeroThreshold is the dead zone below which values count as zero
	// when searching for a crossing, in the signal's own units.
	DefaultZeroThreshold = 0.01
	// DefaultWindowMax caps the forward peak search.
	DefaultWindowMax = 1000
	// DefaultWindowDivisor sizes the peak search as a fraction of the series.
	DefaultWindowDivisor = 4
)

// ReferenceOptions tune the anchor search. The defaults were chosen
// empirically against the converter waveforms and depend on amplitude scale.
type ReferenceOptions struct {
	Threshold     float64
	WindowMax     int
	WindowDivisor int
}

// DefaultReferenceOptions returns the stock dead zone and window.
func DefaultReferenceOptions() ReferenceOptions {
	return ReferenceOptions{
		Threshold:     DefaultZeroThreshold,
		WindowMax:     DefaultWindowMax,
		WindowDivisor: DefaultWindowDivisor,
	}
}

func (o ReferenceOptions) normalize() ReferenceOptions {
	if o.Threshold < 0 || math.IsNaN(o.Threshold) {
		o.Threshold = DefaultZeroThreshold
	}
	if o.WindowMax < 1 {
		o.WindowMax = DefaultWindowMax
	}
	if o.WindowDivisor < 1 {
		o.WindowDivisor = DefaultWindowDivisor
	}
	return o
}

// ReferencePoint is the synchronization anchor of one series.
type ReferencePoint struct {
	CrossingIndex int
	CrossingTime  float64
	PeakTime      float64
	PeakValue     float64
	RMS           float64
}

// FindReferencePoint locates the first ascending zero crossing, a sample
// whose sign is positive after a non-positive one, with values inside the
// dead zone counted as zero. It then finds the largest magnitude within
// min(len/divisor, max) samples from the crossing. RMS covers the whole
// series. ok is false when there is no crossing, which is a normal result
// for flat or one-signed signals.
func FindReferencePoint(w Waveform, opts ReferenceOptions) (ReferencePoint, bool) {
	opts = opts.normalize()
	n := w.Len()
	if n < 2 {
		return ReferencePoint{}, false
	}

	idx := -1
	prev := deadZoneSign(w.Value[0], opts.Threshold)
	for i := 1; i < n; i++ {
		cur := deadZoneSign(w.Value[i], opts.Threshold)
		if prev <= 0 && cur > 0 {
			idx = i
			break
		}
		prev = cur
	}
	if idx < 0 {
		return ReferencePoint{}, false
	}

	window := max(min(n/opts.WindowDivisor, opts.WindowMax), 1)
	end := min(idx+window, n)
	peak := idx
	for i := idx + 1; i < end; i++ {
		if math.Abs(w.Value[i]) > math.Abs(w.Value[peak]) {
			peak = i
		}
	}

	return ReferencePoint{
		CrossingIndex: idx,
		CrossingTime:  w.Time[idx],
		PeakTime:      w.Time[peak],
		PeakValue:     w.Value[peak],
		RMS:           rms(w.Value),
	}, true
}

func deadZoneSign(v, threshold float64) int {
	switch {
	case math.Abs(v) < threshold:
		return 0
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0 // NaN
}
