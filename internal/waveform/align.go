package waveform

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/interp"
)

// Offset is the time shift applied to the test series.
type Offset struct {
	Auto   float64 // from the reference anchors, 0 when unavailable
	Manual float64 // per-channel override
	Total  float64
}

// AutoOffset derives the coarse shift ref.crossing - test.crossing and adds
// the manual correction. When either series has no reference point the
// automatic part is zero, ok is false and only the manual correction
// applies.
func AutoOffset(ref, test Waveform, manual float64, opts ReferenceOptions) (Offset, bool) {
	off := Offset{Manual: manual, Total: manual}
	rp, ok := FindReferencePoint(ref, opts)
	if !ok {
		return off, false
	}
	tp, ok := FindReferencePoint(test, opts)
	if !ok {
		return off, false
	}
	off.Auto = rp.CrossingTime - tp.CrossingTime
	off.Total = off.Auto + manual
	return off, true
}

// Alignment is a reference/test pair on a shared time grid.
type Alignment struct {
	Offset    float64
	Time      []float64
	Reference []float64
	Test      []float64
}

// Len is the number of grid points.
func (a *Alignment) Len() int { return len(a.Time) }

// Align shifts test by offset, clips both series to their common time range
// and interpolates the test series onto the reference timestamps inside it.
// The reference is never resampled. ok is false when either series has
// fewer than two samples or the ranges do not overlap.
func Align(ref, test Waveform, offset float64) (*Alignment, bool) {
	if ref.Len() < 2 || test.Len() < 2 {
		return nil, false
	}
	shifted := test.Shift(offset)

	refLo, refHi := ref.Bounds()
	tstLo, tstHi := shifted.Bounds()
	t0 := math.Max(refLo, tstLo)
	t1 := math.Min(refHi, tstHi)
	if math.IsNaN(t0) || math.IsNaN(t1) || math.IsInf(t0, 0) || math.IsInf(t1, 0) || t1 <= t0 {
		return nil, false
	}

	out := &Alignment{Offset: offset}
	for i, t := range ref.Time {
		if t >= t0 && t <= t1 {
			out.Time = append(out.Time, t)
			out.Reference = append(out.Reference, ref.Value[i])
		}
	}
	if len(out.Time) == 0 {
		return nil, false
	}

	xs, ys := sortedUnique(shifted)
	if len(xs) == 0 {
		return nil, false
	}
	out.Test = make([]float64, len(out.Time))
	if len(xs) == 1 {
		for i := range out.Test {
			out.Test[i] = ys[0]
		}
		return out, true
	}
	var pl interp.PiecewiseLinear
	_ = pl.Fit(xs, ys) // cannot fail: xs is strictly increasing with len >= 2
	for i, t := range out.Time {
		out.Test[i] = pl.Predict(t) // clamps outside [xs[0], xs[n-1]]
	}
	return out, true
}

// sortedUnique orders w by time, drops NaN timestamps and averages samples
// sharing a timestamp so the result is strictly increasing.
func sortedUnique(w Waveform) (xs, ys []float64) {
	order := make([]int, 0, w.Len())
	for i, t := range w.Time {
		if !math.IsNaN(t) {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, b int) bool { return w.Time[order[a]] < w.Time[order[b]] })

	for i := 0; i < len(order); {
		t := w.Time[order[i]]
		sum, n := 0.0, 0
		for ; i < len(order) && w.Time[order[i]] == t; i++ {
			sum += w.Value[order[i]]
			n++
		}
		xs = append(xs, t)
		ys = append(ys, sum/float64(n))
	}
	return xs, ys
}

// Decimate averages w into step-second buckets labelled by their left edge,
// dropping empty buckets. Use it to bring a densely sampled reference down
// to the device rate before alignment.
func Decimate(w Waveform, step float64) Waveform {
	if w.Len() == 0 || !(step > 0) {
		return w
	}
	type bucket struct {
		sum float64
		n   int
	}
	buckets := make(map[int64]*bucket)
	var keys []int64
	for i, t := range w.Time {
		// epsilon absorbs t/step landing just below an integer
		k := int64(math.Floor(t/step + 1e-9))
		b, ok := buckets[k]
		if !ok {
			b = &bucket{}
			buckets[k] = b
			keys = append(keys, k)
		}
		b.sum += w.Value[i]
		b.n++
	}
	sort.Slice(keys, func(a, b int) bool { return keys[a] < keys[b] })

	out := Waveform{
		Time:  make([]float64, len(keys)),
		Value: make([]float64, len(keys)),
	}
	for i, k := range keys {
		b := buckets[k]
		out.Time[i] = float64(k) * step
		out.Value[i] = b.sum / float64(b.n)
	}
	return out
}
