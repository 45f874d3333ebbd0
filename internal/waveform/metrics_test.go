package waveform

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/telemetry.report/internal/testutil"
)

func TestComputeMetrics_KnownValues(t *testing.T) {
	time := []float64{0, 1, 2, 3}
	ref := []float64{1, 2, 3, 4}
	test := []float64{3, 5, 7, 9} // 2*ref + 1

	r := ComputeMetrics(time, ref, test)
	assert.Equal(t, 3.0, r.DurationS)
	assert.Equal(t, 1.0, r.DtS)
	assert.InDelta(t, 3.5, r.MAE, 1e-12)
	assert.InDelta(t, math.Sqrt((4+9+16+25)/4.0), r.RMSE, 1e-12)
	assert.InDelta(t, 100*r.RMSE/3, r.NRMSEPct, 1e-9)
	assert.InDelta(t, 1, r.Corr, 1e-12)
	assert.InDelta(t, 2, r.AmpRatio, 1e-12)
	assert.InDelta(t, 1, r.Offset, 1e-12)
	assert.Equal(t, 2.5, r.MeanRef)
	assert.Equal(t, 6.0, r.MeanTst)
	assert.Equal(t, 3.0, r.P2PRef)
	assert.Equal(t, 6.0, r.P2PTst)
	assert.InDelta(t, math.Sqrt(30.0/4), r.RMSRef, 1e-12)
	assert.InDelta(t, 4/math.Sqrt(30.0/4), r.CrestRef, 1e-12)
	assert.Equal(t, 0.0, r.PhaseLagS)
	assert.True(t, math.IsNaN(r.F0EstHz), "no zero crossings")
	assert.True(t, math.IsNaN(r.PhaseLagDeg))
}

func TestComputeMetrics_TruncatesToShortest(t *testing.T) {
	r := ComputeMetrics([]float64{0, 1, 2, 3}, []float64{1, 2}, []float64{1, 2, 3})
	assert.Equal(t, 1.0, r.DurationS)
	assert.Equal(t, 0.0, r.MAE)
}

func TestComputeMetrics_Empty(t *testing.T) {
	r := ComputeMetrics(nil, nil, nil)
	testutil.AssertUndefined(t, map[string]float64{
		"duration_s": r.DurationS, "mae": r.MAE, "rmse": r.RMSE, "corr": r.Corr,
		"rms_ref": r.RMSRef, "phase_lag_s": r.PhaseLagS, "f0_est_hz": r.F0EstHz,
	})
}

func TestComputeMetrics_SingleSample(t *testing.T) {
	r := ComputeMetrics([]float64{5}, []float64{1}, []float64{2})
	assert.Equal(t, 0.0, r.DurationS)
	assert.Equal(t, 1.0, r.MAE)
	testutil.AssertUndefined(t, map[string]float64{
		"dt_s": r.DtS, "corr": r.Corr, "phase_lag_s": r.PhaseLagS, "nrmse_pct": r.NRMSEPct,
	})
}

func TestComputeMetrics_ConstantReference(t *testing.T) {
	time := []float64{0, 1, 2, 3, 4, 5}
	ref := []float64{0, 0, 0, 0, 0, 0}
	test := []float64{1, -1, 1, -1, 1, -1}

	r := ComputeMetrics(time, ref, test)
	testutil.AssertUndefined(t, map[string]float64{
		"amp_ratio": r.AmpRatio,
		"offset":    r.Offset,
		"nrmse_pct": r.NRMSEPct,
		"crest_ref": r.CrestRef,
		"corr":      r.Corr,
		"phase_lag": r.PhaseLagS,
	})
	testutil.AssertDefined(t, map[string]float64{
		"mae":       r.MAE,
		"rmse":      r.RMSE,
		"crest_tst": r.CrestTst,
		"p2p_ref":   r.P2PRef,
	})
	assert.Equal(t, 1.0, r.MAE)
	assert.Equal(t, 1.0, r.RMSE)
}

func TestComputeMetrics_NonZeroConstantReference(t *testing.T) {
	ref := []float64{0.1, 0.1, 0.1, 0.1, 0.1}
	r := ComputeMetrics(seq(5), ref, []float64{0, 1, 0, 1, 0})
	assert.True(t, math.IsNaN(r.AmpRatio))
	assert.True(t, math.IsNaN(r.NRMSEPct))
	assert.InDelta(t, 1.0, r.CrestRef, 1e-12)
}

func TestComputeMetrics_ZeroCrossingFrequency(t *testing.T) {
	const period = 1e-3
	time, value := testutil.Sine(1000, period, 10, 1, 0.0123)
	r := ComputeMetrics(time, value, value)
	assert.InDelta(t, 10, r.F0EstHz, 0.1)
	assert.Equal(t, 0.0, r.PhaseLagS)
	assert.Equal(t, 0.0, r.PhaseLagDeg)
}

func TestComputeMetrics_MedianStep(t *testing.T) {
	r := ComputeMetrics([]float64{0, 1, 2, 10, 11}, seq(5), seq(5))
	assert.Equal(t, 1.0, r.DtS)
	r = ComputeMetrics([]float64{0, 1, 3, 6}, seq(4), seq(4))
	assert.Equal(t, 2.0, r.DtS)
}

// The worked example: a square-ish wave and the same wave one sample late.
func TestEndToEnd_ShiftedByOneSample(t *testing.T) {
	ref := Uniform(0, 1, []float64{0, 1, 0, -1, 0, 1, 0, -1})
	test := Uniform(0, 1, []float64{0, 0, 1, 0, -1, 0, 1, 0})

	// On the shared grid the cross-correlation peaks one sample late.
	raw := ComputeMetrics(ref.Time, ref.Value, test.Value)
	assert.Equal(t, 1.0, raw.PhaseLagS)
	assert.Equal(t, 1000.0, raw.PhaseLagMs)

	// Anchoring removes the lag and the aligned pair is identical.
	c := Compare(ref, test, 0, DefaultReferenceOptions())
	require.NotNil(t, c.ReferencePoint)
	require.NotNil(t, c.TestPoint)
	assert.Equal(t, 1.0, c.ReferencePoint.CrossingTime)
	assert.Equal(t, 2.0, c.TestPoint.CrossingTime)
	assert.Equal(t, -1.0, c.Offset.Total)
	assert.Equal(t, -raw.PhaseLagS, c.Offset.Auto)

	require.NotNil(t, c.Alignment)
	assert.Equal(t, []float64{0, 1, 2, 3, 4, 5, 6}, c.Alignment.Time)
	require.NotNil(t, c.Metrics)
	assert.InDelta(t, 1.0, c.Metrics.Corr, 1e-12)
	assert.Equal(t, 0.0, c.Metrics.PhaseLagS)
	assert.Equal(t, 0.0, c.Metrics.MAE)
}

func TestAlignment_RecoversSinePhaseShift(t *testing.T) {
	const (
		period = 25e-6
		freq   = 50.0
		shift  = 8 * period // 0.2 ms
		n      = 2401       // three cycles
	)
	tr, vr := testutil.Sine(n, period, freq, 1, 0)
	tt, vt := testutil.Sine(n, period, freq, 1, shift)
	ref := Waveform{Time: tr, Value: vr}
	test := Waveform{Time: tt, Value: vt}

	a, ok := Align(ref, test, 0)
	require.True(t, ok)
	r := ComputeMetrics(a.Time, a.Reference, a.Test)
	assert.InDelta(t, shift, r.PhaseLagS, period)
	assert.GreaterOrEqual(t, r.Corr, 0.99)
	assert.InDelta(t, freq, r.F0EstHz, 0.2)
	assert.InDelta(t, shift*freq*360, r.PhaseLagDeg, 0.5)

	off, ok := AutoOffset(ref, test, 0, DefaultReferenceOptions())
	require.True(t, ok)
	assert.InDelta(t, -shift, off.Auto, period)

	c := Compare(ref, test, 0, DefaultReferenceOptions())
	require.NotNil(t, c.Metrics)
	assert.InDelta(t, 0, c.Metrics.PhaseLagS, period)
	assert.GreaterOrEqual(t, c.Metrics.Corr, 0.999)
}

func TestCompare_DisjointRanges(t *testing.T) {
	ref := Uniform(0, 1, []float64{-1, 1, -1, 1})
	test := Uniform(100, 1, []float64{-1, 1, -1, 1})

	c := Compare(ref, test, -1000, DefaultReferenceOptions())
	assert.Nil(t, c.Alignment)
	assert.Nil(t, c.Metrics)
	assert.Equal(t, -1000.0, c.Offset.Manual)
}

func TestCompare_SinglePointOverlapHasNoMetrics(t *testing.T) {
	ref := Uniform(0, 0.5, []float64{0, 0, 0})
	test := Uniform(0.6, 0.5, []float64{1, 1})
	c := Compare(ref, test, 0, DefaultReferenceOptions())
	require.NotNil(t, c.Alignment)
	assert.Equal(t, 1, c.Alignment.Len())
	assert.Nil(t, c.Metrics)
}
