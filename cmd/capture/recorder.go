package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/telemetry.report/internal/dataio"
	"github.com/banshee-data/telemetry.report/internal/db"
	"github.com/banshee-data/telemetry.report/internal/monitoring"
	"github.com/banshee-data/telemetry.report/internal/security"
	"github.com/banshee-data/telemetry.report/internal/telemetry/parse"
)

const recordBatchSize = 500

// recorder consumes decoded samples, persists them in batches and keeps
// the first limit samples for the CSV export.
type recorder struct {
	db        *db.DB
	sessionID string
	limit     int
	// done is called once limit samples have been kept.
	done func()

	batch []parse.Sample
	kept  []parse.Sample
	seen  int
}

func (r *recorder) record(s parse.Sample) error {
	r.seen++
	if r.limit > 0 && len(r.kept) >= r.limit {
		return nil
	}
	if r.limit > 0 {
		r.kept = append(r.kept, s)
	}
	if r.db != nil {
		r.batch = append(r.batch, s)
		if len(r.batch) >= recordBatchSize {
			if err := r.flush(); err != nil {
				return err
			}
		}
	}
	if r.limit > 0 && len(r.kept) == r.limit && r.done != nil {
		monitoring.Logf("captured %d samples", r.limit)
		r.done()
	}
	return nil
}

func (r *recorder) flush() error {
	if r.db == nil || len(r.batch) == 0 {
		return nil
	}
	if err := r.db.RecordSamples(r.sessionID, r.batch); err != nil {
		return fmt.Errorf("record samples: %w", err)
	}
	r.batch = r.batch[:0]
	return nil
}

// run drains samples until the channel closes or ctx ends, then flushes.
func (r *recorder) run(ctx context.Context, samples <-chan parse.Sample) error {
	for {
		select {
		case s, ok := <-samples:
			if !ok {
				return r.flush()
			}
			if err := r.record(s); err != nil {
				return err
			}
		case <-ctx.Done():
			// Keep what was already delivered.
			for {
				select {
				case s, ok := <-samples:
					if !ok {
						return r.flush()
					}
					if err := r.record(s); err != nil {
						return err
					}
				default:
					return r.flush()
				}
			}
		}
	}
}

// channelValues transposes the kept samples into one series per channel.
func (r *recorder) channelValues(channels int) [][]float64 {
	out := make([][]float64, channels)
	for i := range out {
		out[i] = make([]float64, 0, len(r.kept))
	}
	for _, s := range r.kept {
		for i := 0; i < channels && i < len(s.Values); i++ {
			out[i] = append(out[i], s.Values[i])
		}
	}
	return out
}

// writeDeviceCSVs writes one file per channel and a combined file into dir.
func writeDeviceCSVs(dir string, ids []string, values [][]float64, period float64, fracBits uint) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}
	var written []string
	write := func(name string, fn func(f *os.File) error) error {
		path := filepath.Join(dir, name)
		if err := security.WithinDir(path, dir); err != nil {
			return err
		}
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		if err := fn(f); err != nil {
			f.Close()
			return fmt.Errorf("write %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("close %s: %w", path, err)
		}
		written = append(written, path)
		return nil
	}

	for i, v := range values {
		id := fmt.Sprintf("ch%d", i)
		if i < len(ids) {
			id = ids[i]
		}
		if err := write(dataio.DeviceFileName(id, period), func(f *os.File) error {
			return dataio.WriteDevice(f, v, fracBits)
		}); err != nil {
			return written, err
		}
	}
	if err := write(dataio.MultiChannelFileName(period), func(f *os.File) error {
		return dataio.WriteMultiChannel(f, values)
	}); err != nil {
		return written, err
	}
	return written, nil
}
