package db

import (
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/telemetry.report/internal/report"
	"github.com/banshee-data/telemetry.report/internal/telemetry/parse"
	"github.com/banshee-data/telemetry.report/internal/waveform"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "telemetry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPragmasApplied(t *testing.T) {
	db := newTestDB(t)

	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var busyTimeout int
	require.NoError(t, db.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout))
	assert.Equal(t, 5000, busyTimeout)

	var foreignKeys int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys))
	assert.Equal(t, 1, foreignKeys)
}

func TestMigrations(t *testing.T) {
	db := newTestDB(t)

	version, dirty, err := db.MigrateVersion(MigrationsFS())
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	// Re-running is a no-op.
	require.NoError(t, db.MigrateUp(MigrationsFS()))

	require.NoError(t, db.MigrateDown(MigrationsFS()))
	version, _, err = db.MigrateVersion(MigrationsFS())
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	var n int
	err = db.QueryRow("SELECT COUNT(*) FROM comparison_runs").Scan(&n)
	assert.Error(t, err, "comparison tables are dropped")
}

func TestSessionsAndSamples(t *testing.T) {
	db := newTestDB(t)

	s := &Session{Source: "dev", Channels: []string{"il1", "ild"}, SamplePeriod: 25e-6}
	require.NoError(t, db.CreateSession(s))
	require.NotEmpty(t, s.ID)

	samples := []parse.Sample{
		{Seq: 0, Values: []float64{1.5, -2}},
		{Seq: 1, Values: []float64{0.25, 3}},
		{Seq: 2, Values: []float64{-1, 0}},
	}
	require.NoError(t, db.RecordSamples(s.ID, samples[:2]))
	require.NoError(t, db.RecordSamples(s.ID, samples[2:]))
	require.NoError(t, db.RecordSamples(s.ID, nil))

	got, err := db.SessionSamples(s.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(samples, got); diff != "" {
		t.Errorf("samples mismatch (-want +got):\n%s", diff)
	}

	end := s.StartedAt.Add(time.Second)
	require.NoError(t, db.EndSession(s.ID, end))

	loaded, err := db.Session(s.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), loaded.SampleCount)
	assert.Equal(t, []string{"il1", "ild"}, loaded.Channels)
	require.NotNil(t, loaded.EndedAt)
	assert.True(t, loaded.EndedAt.Equal(end))

	all, err := db.Sessions()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSessionErrors(t *testing.T) {
	db := newTestDB(t)

	_, err := db.Session("missing")
	assert.True(t, errors.Is(err, ErrSessionNotFound))

	assert.True(t, errors.Is(db.EndSession("missing", time.Now()), ErrSessionNotFound))

	err = db.RecordSamples("missing", []parse.Sample{{Seq: 1, Values: []float64{1}}})
	assert.Error(t, err, "foreign key rejects unknown sessions")
}

func TestRecordComparison(t *testing.T) {
	db := newTestDB(t)

	metrics := waveform.ComputeMetrics([]float64{0, 1, 2, 3}, []float64{0, 1, 0, -1}, []float64{0, 0.9, 0.1, -1})
	run := report.Run{
		ID:        "run-1",
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Reference: "sim.csv",
		DeviceDir: "captures",
		Rows: []report.Row{
			{Channel: "vcf", Unit: "V", Offset: waveform.Offset{Auto: 1e-4, Manual: 2e-5, Total: 1.2e-4}, Metrics: metrics},
			report.SkippedRow("ild", "A", "device file missing"),
		},
	}
	require.NoError(t, db.RecordComparison(run))

	got, err := db.Comparison("run-1")
	require.NoError(t, err)
	assert.True(t, got.CreatedAt.Equal(run.CreatedAt))
	got.CreatedAt = run.CreatedAt
	if diff := cmp.Diff(run, *got, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("run mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, math.IsNaN(got.Rows[1].Metrics.Corr))

	ids, err := db.ComparisonRuns()
	require.NoError(t, err)
	assert.Equal(t, []string{"run-1"}, ids)

	_, err = db.Comparison("nope")
	assert.True(t, errors.Is(err, ErrRunNotFound))

	assert.Error(t, db.RecordComparison(run), "duplicate run id")
	assert.Error(t, db.RecordComparison(report.Run{}))
}

func TestAttachAdminRoutes(t *testing.T) {
	db := newTestDB(t)
	mux := http.NewServeMux()
	db.AttachAdminRoutes(mux)

	for _, path := range []string{"/debug/backup", "/debug/tailsql/"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		// Debug access control may answer 403 off-tailnet.
		assert.NotEqual(t, http.StatusNotFound, rec.Code, path)
		if path == "/debug/backup" && rec.Code == http.StatusOK {
			assert.Equal(t, "application/gzip", rec.Header().Get("Content-Type"))
			assert.NotZero(t, rec.Body.Len())
		}
	}
}
