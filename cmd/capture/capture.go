// Command capture reads the acquisition board's telemetry stream, shows the
// live channel histories over HTTP and optionally records the samples to
// sqlite and device CSV files.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/telemetry.report/internal/config"
	"github.com/banshee-data/telemetry.report/internal/db"
	"github.com/banshee-data/telemetry.report/internal/monitor"
	"github.com/banshee-data/telemetry.report/internal/monitoring"
	"github.com/banshee-data/telemetry.report/internal/serialport"
	"github.com/banshee-data/telemetry.report/internal/telemetry"
	"github.com/banshee-data/telemetry.report/internal/telemetry/parse"
	"github.com/banshee-data/telemetry.report/internal/version"
)

var (
	port       = flag.String("port", "/dev/ttyUSB0", "Serial port to use (ignored with -dev or -replay)")
	devMode    = flag.Bool("dev", false, "Use the simulated signal source instead of hardware")
	replay     = flag.String("replay", "", "Replay a raw capture file instead of reading the port")
	configPath = flag.String("config", "", "Telemetry config JSON (defaults apply when empty)")
	listen     = flag.String("listen", ":8080", "HTTP listen address; empty disables the web view")
	dbPath     = flag.String("db", "", "Record samples to this sqlite database")
	rawOut     = flag.String("raw-out", "", "Append every byte read to this file")
	csvDir     = flag.String("csv-dir", "", "Write device CSV files here when the capture ends")
	count      = flag.Int("count", 0, "Stop after this many samples (0 runs until interrupted)")
	logDir     = flag.String("log-dir", "", "Also write rotating logs to this directory")
	listPorts  = flag.Bool("list", false, "List serial ports and exit")
	showVer    = flag.Bool("version", false, "Print the build version and exit")
)

func main() {
	flag.Parse()
	if *showVer {
		fmt.Println(version.String())
		return
	}

	if *logDir != "" {
		closer, err := monitoring.SetupRotatingLog(monitoring.RotateOptions{Dir: *logDir, FileName: "capture.log"})
		if err != nil {
			log.Fatalf("failed to set up log rotation: %v", err)
		}
		defer closer.Close()
	}

	if *listPorts {
		ports, err := serialport.ListPorts()
		if err != nil {
			log.Fatal(err)
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, captureOptions{
		Port:       *port,
		Dev:        *devMode,
		Replay:     *replay,
		ConfigPath: *configPath,
		Listen:     *listen,
		DBPath:     *dbPath,
		RawOut:     *rawOut,
		CSVDir:     *csvDir,
		Count:      *count,
	}); err != nil {
		log.Fatalf("capture failed: %v", err)
	}
}

type captureOptions struct {
	Port       string
	Dev        bool
	Replay     string
	ConfigPath string
	Listen     string
	DBPath     string
	RawOut     string
	CSVDir     string
	Count      int
	// factory overrides the hardware port opener in tests.
	factory serialport.Factory
}

func (o captureOptions) sourceName() string {
	switch {
	case o.Replay != "":
		return "replay:" + o.Replay
	case o.Dev:
		return "simulated"
	default:
		return "serial:" + o.Port
	}
}

func openSource(o captureOptions, cfg *config.TelemetryConfig, layout parse.Layout) (telemetry.Source, error) {
	switch {
	case o.Replay != "":
		return telemetry.OpenFileSource(o.Replay, 0)
	case o.Dev:
		src := telemetry.NewSimulatedSource(layout, cfg.GetTestSamplePeriod())
		// One poll interval worth of packets per read, bounded by the
		// decoder's read buffer.
		perRead := int(cfg.GetPollInterval().Seconds() / cfg.GetTestSamplePeriod())
		src.PacketsPerRead = max(1, min(perRead, telemetry.DefaultReadSize/layout.PacketSize()))
		return src, nil
	default:
		f := o.factory
		if f == nil {
			f = serialport.RealFactory{}
		}
		return serialport.Connect(f, o.Port, serialport.PortOptions{BaudRate: cfg.GetBaudRate()}, cfg.GetReadTimeout())
	}
}

func run(ctx context.Context, o captureOptions) error {
	cfg, err := config.LoadOrDefault(o.ConfigPath)
	if err != nil {
		return err
	}
	layout := cfg.Layout()
	if err := layout.Validate(); err != nil {
		return err
	}
	channels := cfg.GetChannels()
	monitoring.Logf("capture %s starting: source=%s channels=%s", version.String(), o.sourceName(), strings.Join(channels, ","))

	src, err := openSource(o, cfg, layout)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	metrics, err := telemetry.NewMetrics(reg)
	if err != nil {
		src.Close()
		return err
	}

	decOpts := telemetry.Options{
		Layout:        layout,
		HistoryWindow: cfg.GetHistoryWindow(),
		Metrics:       metrics,
	}
	if o.RawOut != "" {
		raw, err := os.OpenFile(o.RawOut, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			src.Close()
			return fmt.Errorf("open raw output: %w", err)
		}
		defer raw.Close()
		decOpts.RawTee = raw
	}

	dec, err := telemetry.NewDecoder(src, decOpts)
	if err != nil {
		src.Close()
		return err
	}
	defer dec.Close()

	var database *db.DB
	var session *db.Session
	if o.DBPath != "" {
		database, err = db.NewDB(o.DBPath)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer database.Close()
		session = &db.Session{Source: o.sourceName(), Channels: channels, SamplePeriod: cfg.GetTestSamplePeriod()}
		if err := database.CreateSession(session); err != nil {
			return err
		}
		monitoring.Logf("recording session %s to %s", session.ID, o.DBPath)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rec := &recorder{db: database, limit: o.Count, done: cancel}
	if o.CSVDir != "" && rec.limit == 0 {
		rec.limit = defaultCSVSamples
	}
	if session != nil {
		rec.sessionID = session.ID
	}
	subID, samples := dec.Subscribe(subscriberBuffer)
	defer dec.Unsubscribe(subID)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// A finished replay ends the whole capture.
		defer cancel()
		err := dec.Run(gctx, cfg.GetPollInterval())
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		return rec.run(gctx, samples)
	})
	if o.Listen != "" {
		ws := monitor.NewWebServer(monitor.WebServerConfig{
			Address:      o.Listen,
			Decoder:      dec,
			Channels:     channels,
			SamplePeriod: cfg.GetTestSamplePeriod(),
			Gatherer:     reg,
			DB:           database,
			SessionID:    rec.sessionID,
		})
		g.Go(func() error {
			return ws.Start(gctx)
		})
	}

	runErr := g.Wait()

	if session != nil {
		if err := database.EndSession(session.ID, time.Now()); err != nil {
			monitoring.Logf("failed to close session: %v", err)
		}
	}
	st := dec.Stats()
	monitoring.Logf("capture stopped: samples=%d discarded=%d resyncs=%d drops=%d",
		st.Packets, st.DiscardedBytes, st.Resyncs, st.SubscriberDrops)

	if o.CSVDir != "" && len(rec.kept) > 0 {
		paths, err := writeDeviceCSVs(o.CSVDir, channels, rec.channelValues(layout.Channels),
			cfg.GetTestSamplePeriod(), layout.Format.FracBits)
		if err != nil {
			return errors.Join(runErr, err)
		}
		monitoring.Logf("wrote %d samples to %s", len(rec.kept), strings.Join(paths, ", "))
	}
	return runErr
}

// subscriberBuffer holds a few polls of samples for the recorder.
const subscriberBuffer = 1 << 14

// defaultCSVSamples is the CSV export length when -count is not given.
const defaultCSVSamples = 5000
