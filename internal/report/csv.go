package report

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"
)

// CSVHeader is the column order of WriteCSV.
var CSVHeader = []string{
	"channel", "offset_s", "nrmse_pct", "corr", "amp_ratio", "offset",
	"rms_ref", "rms_tst", "p2p_ref", "p2p_tst",
	"phase_lag_ms", "phase_lag_deg", "f0_est_hz", "unit",
}

// WriteCSV writes one line per row. Undefined values are left empty.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, r := range rows {
		m := r.Metrics
		rec := []string{
			r.Channel,
			csvFloat(r.Offset.Total),
			csvFloat(m.NRMSEPct),
			csvFloat(m.Corr),
			csvFloat(m.AmpRatio),
			csvFloat(m.Offset),
			csvFloat(m.RMSRef),
			csvFloat(m.RMSTst),
			csvFloat(m.P2PRef),
			csvFloat(m.P2PTst),
			csvFloat(m.PhaseLagMs),
			csvFloat(m.PhaseLagDeg),
			csvFloat(m.F0EstHz),
			r.Unit,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
