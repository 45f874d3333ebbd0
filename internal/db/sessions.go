package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/telemetry.report/internal/telemetry/parse"
)

// ErrSessionNotFound is returned for an unknown session id.
var ErrSessionNotFound = errors.New("capture session not found")

// Session describes one capture run.
type Session struct {
	ID           string
	Source       string
	Channels     []string
	SamplePeriod float64
	StartedAt    time.Time
	EndedAt      *time.Time
	SampleCount  int64
}

// CreateSession stores s, assigning an id and start time when missing.
func (db *DB) CreateSession(s *Session) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now().UTC()
	}
	_, err := db.Exec(`
		INSERT INTO capture_sessions (session_id, source, channels, sample_period, started_at)
		VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.Source, strings.Join(s.Channels, ","), s.SamplePeriod, s.StartedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// EndSession stamps the end time.
func (db *DB) EndSession(id string, at time.Time) error {
	res, err := db.Exec(`UPDATE capture_sessions SET ended_at = ? WHERE session_id = ?`,
		at.UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("end session %s: %w", id, ErrSessionNotFound)
	}
	return nil
}

// RecordSamples appends decoded samples to a session in one transaction.
func (db *DB) RecordSamples(sessionID string, samples []parse.Sample) error {
	if len(samples) == 0 {
		return nil
	}
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO capture_samples (session_id, seq, channel, value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare sample insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range samples {
		for ch, v := range s.Values {
			if _, err := stmt.Exec(sessionID, int64(s.Seq), ch, v); err != nil {
				return fmt.Errorf("insert sample %d: %w", s.Seq, err)
			}
		}
	}
	res, err := tx.Exec(`UPDATE capture_sessions SET sample_count = sample_count + ? WHERE session_id = ?`,
		len(samples), sessionID)
	if err != nil {
		return fmt.Errorf("update sample count: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("record samples for %s: %w", sessionID, ErrSessionNotFound)
	}
	return tx.Commit()
}

// Session loads one session.
func (db *DB) Session(id string) (*Session, error) {
	row := db.QueryRow(`
		SELECT session_id, source, channels, sample_period, started_at, ended_at, sample_count
		FROM capture_sessions WHERE session_id = ?`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	return s, err
}

// Sessions lists all sessions, newest first.
func (db *DB) Sessions() ([]Session, error) {
	rows, err := db.Query(`
		SELECT session_id, source, channels, sample_period, started_at, ended_at, sample_count
		FROM capture_sessions ORDER BY started_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(r rowScanner) (*Session, error) {
	var (
		s        Session
		channels string
		started  string
		ended    sql.NullString
	)
	if err := r.Scan(&s.ID, &s.Source, &channels, &s.SamplePeriod, &started, &ended, &s.SampleCount); err != nil {
		return nil, err
	}
	if channels != "" {
		s.Channels = strings.Split(channels, ",")
	}
	var err error
	if s.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return nil, fmt.Errorf("session %s start time: %w", s.ID, err)
	}
	if ended.Valid {
		t, err := time.Parse(time.RFC3339Nano, ended.String)
		if err != nil {
			return nil, fmt.Errorf("session %s end time: %w", s.ID, err)
		}
		s.EndedAt = &t
	}
	return &s, nil
}

// SessionSamples returns the recorded samples of a session in sequence
// order.
func (db *DB) SessionSamples(sessionID string) ([]parse.Sample, error) {
	rows, err := db.Query(`
		SELECT seq, channel, value FROM capture_samples
		WHERE session_id = ? ORDER BY seq, channel`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []parse.Sample
	for rows.Next() {
		var (
			seq int64
			ch  int
			v   float64
		)
		if err := rows.Scan(&seq, &ch, &v); err != nil {
			return nil, err
		}
		if len(out) == 0 || out[len(out)-1].Seq != uint64(seq) {
			out = append(out, parse.Sample{Seq: uint64(seq)})
		}
		last := &out[len(out)-1]
		for len(last.Values) < ch {
			last.Values = append(last.Values, 0)
		}
		last.Values = append(last.Values, v)
	}
	return out, rows.Err()
}
