package waveform

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Undefined marks a metric whose precondition was not met. It is never a
// substitute for zero.
var Undefined = math.NaN()

// IsDefined reports whether x carries a value.
func IsDefined(x float64) bool { return !math.IsNaN(x) }

// Report is the agreement summary of a reference/test pair. Any field may
// be Undefined.
type Report struct {
	DurationS   float64 `json:"duration_s"`
	DtS         float64 `json:"dt_s"`
	MAE         float64 `json:"mae"`
	RMSE        float64 `json:"rmse"`
	NRMSEPct    float64 `json:"nrmse_pct"`
	Corr        float64 `json:"corr"`
	MeanRef     float64 `json:"mean_ref"`
	MeanTst     float64 `json:"mean_tst"`
	RMSRef      float64 `json:"rms_ref"`
	RMSTst      float64 `json:"rms_tst"`
	CrestRef    float64 `json:"crest_ref"`
	CrestTst    float64 `json:"crest_tst"`
	P2PRef      float64 `json:"p2p_ref"`
	P2PTst      float64 `json:"p2p_tst"`
	AmpRatio    float64 `json:"amp_ratio"`
	Offset      float64 `json:"offset"`
	PhaseLagS   float64 `json:"phase_lag_s"`
	PhaseLagMs  float64 `json:"phase_lag_ms"`
	PhaseLagDeg float64 `json:"phase_lag_deg"`
	F0EstHz     float64 `json:"f0_est_hz"`
}

func undefinedReport() Report {
	nan := Undefined
	return Report{
		DurationS: nan, DtS: nan, MAE: nan, RMSE: nan, NRMSEPct: nan, Corr: nan,
		MeanRef: nan, MeanTst: nan, RMSRef: nan, RMSTst: nan,
		CrestRef: nan, CrestTst: nan, P2PRef: nan, P2PTst: nan,
		AmpRatio: nan, Offset: nan,
		PhaseLagS: nan, PhaseLagMs: nan, PhaseLagDeg: nan, F0EstHz: nan,
	}
}

// ComputeMetrics scores test against ref on a shared time grid. The three
// slices are truncated to the shortest. A positive phase lag means the test
// series trails the reference.
func ComputeMetrics(time, ref, test []float64) Report {
	m := min(len(time), len(ref), len(test))
	r := undefinedReport()
	if m == 0 {
		return r
	}
	time, ref, test = time[:m], ref[:m], test[:m]

	r.DurationS = 0
	if m > 1 {
		r.DurationS = time[m-1] - time[0]
		r.DtS = medianStep(time)
	}

	var absSum, sqSum float64
	for i := range ref {
		e := test[i] - ref[i]
		absSum += math.Abs(e)
		sqSum += e * e
	}
	r.MAE = absSum / float64(m)
	r.RMSE = math.Sqrt(sqSum / float64(m))

	r.P2PRef = floats.Max(ref) - floats.Min(ref)
	r.P2PTst = floats.Max(test) - floats.Min(test)
	if r.P2PRef > 0 {
		r.NRMSEPct = 100 * r.RMSE / r.P2PRef
	}

	r.MeanRef = stat.Mean(ref, nil)
	r.MeanTst = stat.Mean(test, nil)
	r.RMSRef = rms(ref)
	r.RMSTst = rms(test)
	if r.RMSRef > 0 {
		r.CrestRef = maxAbs(ref) / r.RMSRef
	}
	if r.RMSTst > 0 {
		r.CrestTst = maxAbs(test) / r.RMSTst
	}

	// constant series get exactly zero spread, not a rounding residue
	if m > 1 && r.P2PRef > 0 && r.P2PTst > 0 {
		r.Corr = stat.Correlation(ref, test, nil)
	}
	if varRef := stat.PopVariance(ref, nil); r.P2PRef > 0 && varRef > 0 {
		r.AmpRatio = stat.BivariateMoment(1, 1, ref, test, nil) / varRef
		r.Offset = r.MeanTst - r.AmpRatio*r.MeanRef
	}

	if lag, ok := xcorrLag(ref, test, r.MeanRef, r.MeanTst); ok && m > 1 && IsDefined(r.DtS) && !math.IsInf(r.DtS, 0) {
		r.PhaseLagS = float64(lag) * r.DtS
		r.PhaseLagMs = r.PhaseLagS * 1e3
	}

	r.F0EstHz = zeroCrossFrequency(time, ref)
	if IsDefined(r.F0EstHz) {
		r.PhaseLagDeg = r.PhaseLagS * r.F0EstHz * 360
	}
	return r
}

// xcorrLag returns the lag, in samples, maximizing the normalized full
// cross-correlation of the zero-mean series. The first maximum wins, scanning
// from the most negative lag.
func xcorrLag(ref, test []float64, meanRef, meanTst float64) (int, bool) {
	m := len(ref)
	refZM := make([]float64, m)
	tstZM := make([]float64, m)
	for i := range ref {
		refZM[i] = ref[i] - meanRef
		tstZM[i] = test[i] - meanTst
	}
	denom := floats.Norm(refZM, 2) * floats.Norm(tstZM, 2)
	if !(denom > 0) || m < 2 {
		return 0, false
	}

	best, bestLag := math.Inf(-1), 0
	for lag := -(m - 1); lag <= m-1; lag++ {
		var c float64
		if lag >= 0 {
			c = floats.Dot(tstZM[lag:], refZM[:m-lag])
		} else {
			c = floats.Dot(tstZM[:m+lag], refZM[-lag:])
		}
		if c/denom > best {
			best, bestLag = c/denom, lag
		}
	}
	return bestLag, true
}

// zeroCrossFrequency estimates the fundamental from the mean interval
// between ascending zero crossings. Exact zeros count as positive. It needs
// at least two crossings.
func zeroCrossFrequency(time, x []float64) float64 {
	if len(time) < 2 || len(x) < 2 {
		return Undefined
	}
	var crossings []float64
	for i := 0; i+1 < len(x); i++ {
		if x[i] < 0 && x[i+1] >= 0 {
			crossings = append(crossings, time[i])
		}
	}
	if len(crossings) < 2 {
		return Undefined
	}
	var periods []float64
	for i := 1; i < len(crossings); i++ {
		p := crossings[i] - crossings[i-1]
		if p > 0 && !math.IsInf(p, 0) {
			periods = append(periods, p)
		}
	}
	if len(periods) == 0 {
		return Undefined
	}
	return 1 / stat.Mean(periods, nil)
}

func medianStep(time []float64) float64 {
	diffs := make([]float64, len(time)-1)
	for i := range diffs {
		diffs[i] = time[i+1] - time[i]
	}
	sort.Float64s(diffs)
	n := len(diffs)
	if n%2 == 1 {
		return diffs[n/2]
	}
	return (diffs[n/2-1] + diffs[n/2]) / 2
}

func rms(x []float64) float64 {
	if len(x) == 0 {
		return Undefined
	}
	return math.Sqrt(floats.Dot(x, x) / float64(len(x)))
}

func maxAbs(x []float64) float64 {
	var out float64
	for _, v := range x {
		out = math.Max(out, math.Abs(v))
	}
	return out
}
