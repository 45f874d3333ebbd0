package db

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/banshee-data/telemetry.report/internal/report"
	"github.com/banshee-data/telemetry.report/internal/waveform"
)

// ErrRunNotFound is returned for an unknown comparison run id.
var ErrRunNotFound = errors.New("comparison run not found")

var rowFloatColumns = []string{
	"offset_auto", "offset_manual", "offset_total",
	"duration_s", "dt_s", "mae", "rmse", "nrmse_pct", "corr",
	"mean_ref", "mean_tst", "rms_ref", "rms_tst", "crest_ref", "crest_tst",
	"p2p_ref", "p2p_tst", "amp_ratio", "dc_offset",
	"phase_lag_s", "phase_lag_ms", "phase_lag_deg", "f0_est_hz",
}

// rowFloats lists the float fields of r in rowFloatColumns order.
func rowFloats(r *report.Row) []*float64 {
	m := &r.Metrics
	return []*float64{
		&r.Offset.Auto, &r.Offset.Manual, &r.Offset.Total,
		&m.DurationS, &m.DtS, &m.MAE, &m.RMSE, &m.NRMSEPct, &m.Corr,
		&m.MeanRef, &m.MeanTst, &m.RMSRef, &m.RMSTst, &m.CrestRef, &m.CrestTst,
		&m.P2PRef, &m.P2PTst, &m.AmpRatio, &m.Offset,
		&m.PhaseLagS, &m.PhaseLagMs, &m.PhaseLagDeg, &m.F0EstHz,
	}
}

func nullable(v float64) sql.NullFloat64 {
	if !waveform.IsDefined(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

// RecordComparison stores a run and its rows in one transaction.
func (db *DB) RecordComparison(run report.Run) error {
	if run.ID == "" {
		return fmt.Errorf("record comparison: empty run id")
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO comparison_runs (run_id, created_at, reference, device_dir) VALUES (?, ?, ?, ?)`,
		run.ID, run.CreatedAt.UTC().Format(time.RFC3339Nano), run.Reference, run.DeviceDir); err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	cols := append([]string{"run_id", "position", "channel", "unit", "note"}, rowFloatColumns...)
	query := fmt.Sprintf("INSERT INTO comparison_rows (%s) VALUES (%s)",
		strings.Join(cols, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "))
	stmt, err := tx.Prepare(query)
	if err != nil {
		return fmt.Errorf("prepare row insert: %w", err)
	}
	defer stmt.Close()

	for i := range run.Rows {
		r := run.Rows[i]
		args := []any{run.ID, i, r.Channel, r.Unit, r.Note}
		for _, f := range rowFloats(&r) {
			args = append(args, nullable(*f))
		}
		if _, err := stmt.Exec(args...); err != nil {
			return fmt.Errorf("insert row %s: %w", r.Channel, err)
		}
	}
	return tx.Commit()
}

// Comparison loads a stored run with its rows in their original order.
// Undefined metrics come back as NaN.
func (db *DB) Comparison(runID string) (*report.Run, error) {
	var (
		run     report.Run
		created string
	)
	err := db.QueryRow(`SELECT run_id, created_at, reference, device_dir FROM comparison_runs WHERE run_id = ?`, runID).
		Scan(&run.ID, &created, &run.Reference, &run.DeviceDir)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return nil, err
	}
	if run.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, fmt.Errorf("run %s created_at: %w", runID, err)
	}

	rows, err := db.Comparisons(runID)
	if err != nil {
		return nil, err
	}
	run.Rows = rows
	return &run, nil
}

// Comparisons returns the rows of a run.
func (db *DB) Comparisons(runID string) ([]report.Row, error) {
	query := fmt.Sprintf("SELECT channel, unit, note, %s FROM comparison_rows WHERE run_id = ? ORDER BY position",
		strings.Join(rowFloatColumns, ", "))
	rows, err := db.Query(query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []report.Row
	for rows.Next() {
		var r report.Row
		nulls := make([]sql.NullFloat64, len(rowFloatColumns))
		dest := []any{&r.Channel, &r.Unit, &r.Note}
		for i := range nulls {
			dest = append(dest, &nulls[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		for i, f := range rowFloats(&r) {
			*f = waveform.Undefined
			if nulls[i].Valid {
				*f = nulls[i].Float64
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ComparisonRuns lists run ids, newest first.
func (db *DB) ComparisonRuns() ([]string, error) {
	rows, err := db.Query(`SELECT run_id FROM comparison_runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
