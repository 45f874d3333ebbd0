package report

import (
	"bytes"
	"encoding/csv"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/telemetry.report/internal/testutil"
	"github.com/banshee-data/telemetry.report/internal/waveform"
)

func sampleRun(t *testing.T) Run {
	t.Helper()
	tm, v := testutil.Sine(401, 25e-6, 50, 2, 0)
	ref := waveform.Waveform{Time: tm, Value: v}
	_, tv := testutil.Sine(401, 25e-6, 50, 2, 4*25e-6)
	test := waveform.Waveform{Time: tm, Value: tv}

	c := waveform.Compare(ref, test, 0, waveform.DefaultReferenceOptions())
	require.NotNil(t, c.Metrics)

	return Run{
		ID:        "6f1c2d4e-0000-4000-8000-000000000001",
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Reference: "sim.csv",
		DeviceDir: "captures",
		Rows: []Row{
			NewRow("vcf", "V", c),
			SkippedRow("ild", "A", "device file missing"),
		},
	}
}

func TestNewRow(t *testing.T) {
	run := sampleRun(t)
	assert.Empty(t, run.Rows[0].Note)
	assert.True(t, waveform.IsDefined(run.Rows[0].Metrics.Corr))

	noOverlap := NewRow("il1", "A", waveform.Comparison{})
	assert.Equal(t, "no overlap", noOverlap.Note)
	assert.True(t, math.IsNaN(noOverlap.Metrics.NRMSEPct))

	short := NewRow("il1", "A", waveform.Comparison{Alignment: &waveform.Alignment{Time: []float64{0}}})
	assert.Equal(t, "overlap too short", short.Note)
}

func TestWriteCSV(t *testing.T) {
	run := sampleRun(t)
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, run.Rows))

	recs, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, CSVHeader, recs[0])

	assert.Equal(t, "vcf", recs[1][0])
	assert.Equal(t, "V", recs[1][13])
	assert.NotEmpty(t, recs[1][3])

	assert.Equal(t, "ild", recs[2][0])
	for _, cell := range recs[2][2:13] {
		assert.Empty(t, cell, "undefined metrics are written empty")
	}
}

func TestWriteText(t *testing.T) {
	run := sampleRun(t)
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, run))

	out := buf.String()
	assert.Contains(t, out, "Comparison "+run.ID)
	assert.Contains(t, out, "[vcf]")
	assert.Contains(t, out, "[ild] device file missing")
	assert.Contains(t, out, "n/a")
}

func TestRunIDToQR(t *testing.T) {
	b, err := RunIDToQR("run-1", 0)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(b))
	require.NoError(t, err)
	assert.Equal(t, 128, img.Bounds().Dx())

	_, err = RunIDToQR("  ", 64)
	assert.Error(t, err)
}

func TestPlotAndPDF(t *testing.T) {
	run := sampleRun(t)
	tm, v := testutil.Sine(401, 25e-6, 50, 2, 0)
	ref := waveform.Waveform{Time: tm, Value: v}
	dec := waveform.Decimate(ref, 100e-6)
	v[10] = math.NaN()

	var plotBuf bytes.Buffer
	require.NoError(t, WritePlot(&plotBuf, []Panel{
		ComparisonPanel("V_Cf", "V", ref, dec, ref, 1e-4),
		{Title: "empty", Unit: "A"},
	}))
	_, err := png.Decode(bytes.NewReader(plotBuf.Bytes()))
	require.NoError(t, err)

	assert.Error(t, WritePlot(&plotBuf, nil))

	dir := t.TempDir()
	pngPath := filepath.Join(dir, "comparison.png")
	require.NoError(t, SavePlot(pngPath, []Panel{ComparisonPanel("V_Cf", "V", ref, dec, ref, 0)}))

	pdfPath := filepath.Join(dir, "report.pdf")
	require.NoError(t, SavePDF(run, plotBuf.Bytes(), pdfPath))
	data, err := os.ReadFile(pdfPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "%PDF-"))

	var pdfBuf bytes.Buffer
	require.NoError(t, WritePDF(&pdfBuf, Run{CreatedAt: run.CreatedAt}, nil))
	assert.True(t, bytes.HasPrefix(pdfBuf.Bytes(), []byte("%PDF-")))
}
