package waveform

// Comparison is the outcome of one reference/test run.
type Comparison struct {
	ReferencePoint *ReferencePoint
	TestPoint      *ReferencePoint
	Offset         Offset
	// Alignment is nil when the series do not overlap.
	Alignment *Alignment
	// Metrics is nil when there is no alignment or it has fewer than two
	// grid points.
	Metrics *Report
}

// Compare runs anchor search, offset, alignment and metrics. Any
// preprocessing of the reference (tail trimming, Decimate) is the caller's
// job.
func Compare(ref, test Waveform, manual float64, opts ReferenceOptions) Comparison {
	var c Comparison
	if rp, ok := FindReferencePoint(ref, opts); ok {
		c.ReferencePoint = &rp
	}
	if tp, ok := FindReferencePoint(test, opts); ok {
		c.TestPoint = &tp
	}

	c.Offset, _ = AutoOffset(ref, test, manual, opts)

	a, ok := Align(ref, test, c.Offset.Total)
	if !ok {
		return c
	}
	c.Alignment = a
	if a.Len() > 1 {
		r := ComputeMetrics(a.Time, a.Reference, a.Test)
		c.Metrics = &r
	}
	return c
}
