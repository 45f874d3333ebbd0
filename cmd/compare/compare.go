// Command compare scores device captures against the simulation reference.
// Each channel's device CSV is aligned to the reference's steady-state tail
// and the metrics are printed and exported as CSV, PNG and PDF.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/telemetry.report/internal/config"
	"github.com/banshee-data/telemetry.report/internal/dataio"
	"github.com/banshee-data/telemetry.report/internal/db"
	"github.com/banshee-data/telemetry.report/internal/monitoring"
	"github.com/banshee-data/telemetry.report/internal/overrides"
	"github.com/banshee-data/telemetry.report/internal/report"
	"github.com/banshee-data/telemetry.report/internal/units"
	"github.com/banshee-data/telemetry.report/internal/version"
	"github.com/banshee-data/telemetry.report/internal/waveform"
)

var (
	referencePath = flag.String("reference", "", "Simulation reference CSV (required)")
	deviceDir     = flag.String("device-dir", ".", "Directory holding the device CSV files")
	overridesPath = flag.String("overrides", "phase_offsets.yaml", "Manual phase corrections (YAML)")
	configPath    = flag.String("config", "", "Telemetry config JSON (defaults apply when empty)")
	csvOut        = flag.String("out", "metrics_report.csv", "Metrics CSV output; empty disables")
	pngOut        = flag.String("png", "comparison.png", "Comparison plot output; empty disables")
	pdfOut        = flag.String("pdf", "", "PDF report output; empty disables")
	dbPath        = flag.String("db", "", "Record the run to this sqlite database")
	channelList   = flag.String("channels", "", "Comma-separated channel ids to compare (default all)")
	adjust        = flag.String("adjust", "", "Manual corrections for this run, e.g. vcf=2e-5,il1=-1e-5")
	saveOverrides = flag.Bool("save-overrides", false, "Write the manual corrections back to -overrides")
	showVersion   = flag.Bool("version", false, "Print the build version and exit")
)

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if *referencePath == "" {
		fmt.Fprintln(os.Stderr, "compare: -reference is required")
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, compareOptions{
		Reference:     *referencePath,
		DeviceDir:     *deviceDir,
		Overrides:     *overridesPath,
		ConfigPath:    *configPath,
		CSVOut:        *csvOut,
		PNGOut:        *pngOut,
		PDFOut:        *pdfOut,
		DBPath:        *dbPath,
		Channels:      splitList(*channelList),
		Adjust:        *adjust,
		SaveOverrides: *saveOverrides,
	}, os.Stdout); err != nil {
		log.Fatalf("compare failed: %v", err)
	}
}

type compareOptions struct {
	Reference     string
	DeviceDir     string
	Overrides     string
	ConfigPath    string
	CSVOut        string
	PNGOut        string
	PDFOut        string
	DBPath        string
	Channels      []string
	Adjust        string
	SaveOverrides bool
}

func splitList(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.ToLower(strings.TrimSpace(f)); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// parseAdjust reads id=seconds pairs separated by commas.
func parseAdjust(s string) (overrides.Store, error) {
	out := overrides.Store{}
	for _, pair := range splitList(s) {
		id, v, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(id) == "" {
			return nil, fmt.Errorf("adjustment %q: want id=seconds", pair)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("adjustment %q: bad value", pair)
		}
		out[strings.TrimSpace(id)] = f
	}
	return out, nil
}

func selectChannels(requested []string) ([]string, error) {
	if len(requested) == 0 {
		return append([]string(nil), units.ComparisonOrder...), nil
	}
	for _, id := range requested {
		if _, ok := units.Lookup(id); !ok {
			return nil, fmt.Errorf("unknown channel %q", id)
		}
	}
	return requested, nil
}

func run(ctx context.Context, o compareOptions, stdout io.Writer) error {
	cfg, err := config.LoadOrDefault(o.ConfigPath)
	if err != nil {
		return err
	}
	channels, err := selectChannels(o.Channels)
	if err != nil {
		return err
	}
	store, _, err := overrides.Load(o.Overrides)
	if err != nil {
		return err
	}
	adjusted, err := parseAdjust(o.Adjust)
	if err != nil {
		return err
	}
	for id, v := range adjusted {
		store[id] = v
	}

	columns := make([]string, len(channels))
	for i, id := range channels {
		columns[i] = units.ReferenceColumn(id)
	}
	monitoring.Logf("compare %s: reference=%s device-dir=%s channels=%s",
		version.String(), o.Reference, o.DeviceDir, strings.Join(channels, ","))
	table, err := dataio.LoadReference(o.Reference, columns, dataio.ReadOptions{})
	if err != nil {
		return err
	}

	period := cfg.GetTestSamplePeriod()
	opts := cfg.ReferenceOptions()
	res := report.Run{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Reference: o.Reference,
		DeviceDir: o.DeviceDir,
	}
	var panels []report.Panel
	for _, id := range channels {
		if err := ctx.Err(); err != nil {
			return err
		}
		unit := units.UnitFor(id)
		ref, ok := table.Waveform(units.ReferenceColumn(id))
		if !ok {
			monitoring.Logf("%s: reference column %s missing, skipped", id, units.ReferenceColumn(id))
			res.Rows = append(res.Rows, report.SkippedRow(id, unit, "reference column missing"))
			continue
		}
		path := filepath.Join(o.DeviceDir, dataio.DeviceFileName(id, period))
		test, err := dataio.LoadDevice(path, "", period, dataio.ReadOptions{})
		switch {
		case errors.Is(err, fs.ErrNotExist):
			monitoring.Logf("%s: %s not found, skipped", id, path)
			res.Rows = append(res.Rows, report.SkippedRow(id, unit, "device file missing"))
			continue
		case errors.Is(err, dataio.ErrMissingColumn):
			monitoring.Logf("%s: %v", id, err)
			res.Rows = append(res.Rows, report.SkippedRow(id, unit, "device column missing"))
			continue
		case err != nil:
			return err
		}

		tail := ref.TrimTail(cfg.GetSteadyStateDuration())
		decimated := waveform.Decimate(tail, period)
		c := waveform.Compare(decimated, test, store.Get(id), opts)
		row := report.NewRow(id, unit, c)
		res.Rows = append(res.Rows, row)
		if c.ReferencePoint == nil || c.TestPoint == nil {
			monitoring.Logf("%s: no reference crossing found, using manual offset only", id)
		}
		panels = append(panels, report.ComparisonPanel(units.Label(id), unit, tail, decimated, test, c.Offset.Total))
	}

	if err := report.WriteText(stdout, res); err != nil {
		return err
	}
	if err := writeOutputs(o, res, panels); err != nil {
		return err
	}

	if o.DBPath != "" {
		database, err := db.NewDB(o.DBPath)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer database.Close()
		if err := database.RecordComparison(res); err != nil {
			return err
		}
		monitoring.Logf("recorded run %s to %s", res.ID, o.DBPath)
	}

	if o.SaveOverrides {
		if err := overrides.Save(o.Overrides, store, cfg.GetPhaseStep()); err != nil {
			return err
		}
		monitoring.Logf("saved %d phase corrections to %s", len(store), o.Overrides)
	}
	return nil
}

func writeOutputs(o compareOptions, res report.Run, panels []report.Panel) error {
	if o.CSVOut != "" {
		f, err := os.Create(o.CSVOut)
		if err != nil {
			return fmt.Errorf("create metrics CSV: %w", err)
		}
		if err := report.WriteCSV(f, res.Rows); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		monitoring.Logf("metrics written to %s", o.CSVOut)
	}

	if len(panels) == 0 {
		if o.PNGOut != "" || o.PDFOut != "" {
			monitoring.Logf("no channel was compared, skipping plot")
		}
		if o.PDFOut != "" {
			return report.SavePDF(res, nil, o.PDFOut)
		}
		return nil
	}

	var png []byte
	if o.PNGOut != "" || o.PDFOut != "" {
		var buf bytes.Buffer
		if err := report.WritePlot(&buf, panels); err != nil {
			return err
		}
		png = buf.Bytes()
	}
	if o.PNGOut != "" {
		if err := os.WriteFile(o.PNGOut, png, 0o644); err != nil {
			return fmt.Errorf("write plot: %w", err)
		}
		monitoring.Logf("plot written to %s", o.PNGOut)
	}
	if o.PDFOut != "" {
		if err := report.SavePDF(res, png, o.PDFOut); err != nil {
			return err
		}
		monitoring.Logf("report written to %s", o.PDFOut)
	}
	return nil
}
