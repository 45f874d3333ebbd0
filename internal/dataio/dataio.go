// Package dataio reads and writes the CSV files exchanged between the
// capture tool, the circuit simulator and the comparison tool.
//
// Reference files come from the simulator: comma separated, a Time column
// in seconds and one column per state variable. Device files come from the
// capture tool: semicolon separated with decimal commas, one row per sample
// and no time column; time is the row index times the sample period.
package dataio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/banshee-data/telemetry.report/internal/security"
	"github.com/banshee-data/telemetry.report/internal/waveform"
)

const (
	// TimeColumn is the simulator's time column.
	TimeColumn = "Time"
	// DeviceValueColumn holds decoded values in single-channel device files.
	DeviceValueColumn = "DadoReal"
	// DeviceRawColumn holds the signed fixed-point integers.
	DeviceRawColumn = "DadoBrutoInt_ComSinal"
	// DefaultChunkRows bounds how many rows are parsed before being folded
	// into the result.
	DefaultChunkRows = 10000
)

var ErrMissingColumn = errors.New("missing column")

// ReadOptions tune CSV loading.
type ReadOptions struct {
	ChunkRows int
}

func (o ReadOptions) chunkRows() int {
	if o.ChunkRows <= 0 {
		return DefaultChunkRows
	}
	return o.ChunkRows
}

// ReferenceTable is the simulator output restricted to the requested
// columns.
type ReferenceTable struct {
	Time    []float64
	Columns map[string][]float64
}

// Waveform returns one column against Time.
func (t *ReferenceTable) Waveform(column string) (waveform.Waveform, bool) {
	v, ok := t.Columns[column]
	if !ok {
		return waveform.Waveform{}, false
	}
	return waveform.Waveform{Time: t.Time, Value: v}, true
}

// DeviceFileName is the per-channel device file name for a sample period.
// Channel ids come from configuration and are sanitized.
func DeviceFileName(channel string, period float64) string {
	return fmt.Sprintf("device_%s_%dus.csv", security.SanitizeName(channel), int(math.Round(period*1e6)))
}

// MultiChannelFileName is the combined device file name for a sample
// period.
func MultiChannelFileName(period float64) string {
	return fmt.Sprintf("device_multi_%dus.csv", int(math.Round(period*1e6)))
}

// LoadReference reads the Time column and the requested columns of a
// simulator CSV. Requested columns absent from the file are skipped; the
// caller checks Columns. A missing Time column is an error.
func LoadReference(path string, columns []string, opts ReadOptions) (*ReferenceTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open reference %s: %w", path, err)
	}
	defer f.Close()

	table, err := readColumns(f, ',', false, append([]string{TimeColumn}, columns...), opts)
	if err != nil {
		return nil, fmt.Errorf("reference %s: %w", path, err)
	}
	if _, ok := table[TimeColumn]; !ok {
		return nil, fmt.Errorf("reference %s: %w %q", path, ErrMissingColumn, TimeColumn)
	}
	out := &ReferenceTable{Time: table[TimeColumn], Columns: map[string][]float64{}}
	for _, c := range columns {
		if v, ok := table[c]; ok {
			out.Columns[c] = v
		}
	}
	return out, nil
}

// LoadDevice reads one value column from a device CSV and stamps row i with
// time i*period.
func LoadDevice(path, column string, period float64, opts ReadOptions) (waveform.Waveform, error) {
	f, err := os.Open(path)
	if err != nil {
		return waveform.Waveform{}, fmt.Errorf("open device file %s: %w", path, err)
	}
	defer f.Close()

	if column == "" {
		column = DeviceValueColumn
	}
	table, err := readColumns(f, ';', true, []string{column}, opts)
	if err != nil {
		return waveform.Waveform{}, fmt.Errorf("device file %s: %w", path, err)
	}
	values, ok := table[column]
	if !ok {
		return waveform.Waveform{}, fmt.Errorf("device file %s: %w %q", path, ErrMissingColumn, column)
	}
	return waveform.Uniform(0, period, values), nil
}

// readColumns parses the wanted columns in chunks of ChunkRows rows so only
// the selected columns are ever held in memory.
func readColumns(r io.Reader, comma rune, decimalComma bool, wanted []string, opts ReadOptions) (map[string][]float64, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	index := map[string]int{}
	for i, h := range header {
		name := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		for _, w := range wanted {
			if name == w {
				if _, dup := index[w]; !dup {
					index[w] = i
				}
			}
		}
	}

	out := make(map[string][]float64, len(index))
	chunkRows := opts.chunkRows()
	chunk := make(map[string][]float64, len(index))
	rows := 0
	flush := func() {
		for name, vals := range chunk {
			out[name] = append(out[name], vals...)
			chunk[name] = vals[:0]
		}
		rows = 0
	}

	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		for name, col := range index {
			if col >= len(rec) {
				return nil, fmt.Errorf("line %d: %w %q", line, ErrMissingColumn, name)
			}
			v, err := parseNumber(rec[col], decimalComma)
			if err != nil {
				return nil, fmt.Errorf("line %d column %q: %w", line, name, err)
			}
			chunk[name] = append(chunk[name], v)
		}
		rows++
		if rows >= chunkRows {
			flush()
		}
	}
	flush()
	for name := range index {
		if _, ok := out[name]; !ok {
			out[name] = []float64{}
		}
	}
	return out, nil
}

func parseNumber(s string, decimalComma bool) (float64, error) {
	s = strings.TrimSpace(s)
	if decimalComma {
		s = strings.Replace(s, ",", ".", 1)
	}
	return strconv.ParseFloat(s, 64)
}
