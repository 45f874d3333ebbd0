// Package report renders comparison results as CSV, text, PDF and PNG.
package report

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/banshee-data/telemetry.report/internal/waveform"
)

// Row is the outcome for one channel.
type Row struct {
	Channel string
	Unit    string
	Offset  waveform.Offset
	// Metrics holds Undefined fields when the channel could not be scored.
	Metrics waveform.Report
	// Note explains a missing or partial result.
	Note string
}

// NewRow summarises a comparison. A comparison without metrics gets an
// all-Undefined report.
func NewRow(channel, unit string, c waveform.Comparison) Row {
	row := Row{Channel: channel, Unit: unit, Offset: c.Offset}
	switch {
	case c.Metrics != nil:
		row.Metrics = *c.Metrics
	default:
		row.Metrics = waveform.ComputeMetrics(nil, nil, nil)
		if c.Alignment == nil {
			row.Note = "no overlap"
		} else {
			row.Note = "overlap too short"
		}
	}
	return row
}

// SkippedRow records a channel that had no data to compare.
func SkippedRow(channel, unit, note string) Row {
	return Row{
		Channel: channel,
		Unit:    unit,
		Metrics: waveform.ComputeMetrics(nil, nil, nil),
		Note:    note,
	}
}

// Run is one comparison invocation.
type Run struct {
	ID        string
	CreatedAt time.Time
	Reference string
	DeviceDir string
	Rows      []Row
}

// WriteText prints the final report, one block per channel.
func WriteText(w io.Writer, run Run) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Comparison %s (%s)\n", run.ID, run.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "reference: %s\n", run.Reference)
	if run.DeviceDir != "" {
		fmt.Fprintf(&b, "device data: %s\n", run.DeviceDir)
	}
	for _, r := range run.Rows {
		fmt.Fprintf(&b, "\n[%s]", r.Channel)
		if r.Note != "" {
			fmt.Fprintf(&b, " %s", r.Note)
		}
		b.WriteString("\n")
		fmt.Fprintf(&b, "  offset      %s s (auto %s, manual %s)\n",
			formatValue(r.Offset.Total), formatValue(r.Offset.Auto), formatValue(r.Offset.Manual))
		m := r.Metrics
		fmt.Fprintf(&b, "  nrmse       %s %%\n", formatValue(m.NRMSEPct))
		fmt.Fprintf(&b, "  corr        %s\n", formatValue(m.Corr))
		fmt.Fprintf(&b, "  amp ratio   %s\n", formatValue(m.AmpRatio))
		fmt.Fprintf(&b, "  dc offset   %s %s\n", formatValue(m.Offset), r.Unit)
		fmt.Fprintf(&b, "  rms         %s / %s %s\n", formatValue(m.RMSRef), formatValue(m.RMSTst), r.Unit)
		fmt.Fprintf(&b, "  p2p         %s / %s %s\n", formatValue(m.P2PRef), formatValue(m.P2PTst), r.Unit)
		fmt.Fprintf(&b, "  phase lag   %s ms (%s deg)\n", formatValue(m.PhaseLagMs), formatValue(m.PhaseLagDeg))
		fmt.Fprintf(&b, "  f0          %s Hz\n", formatValue(m.F0EstHz))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.6g", v)
}
