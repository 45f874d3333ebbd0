// Package monitor serves the live view of a running decoder: channel
// histories as JSON and as an HTML chart, pause control, prometheus metrics
// and the /debug/ pages.
package monitor

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"tailscale.com/tsweb"

	"github.com/banshee-data/telemetry.report/internal/db"
	"github.com/banshee-data/telemetry.report/internal/httputil"
	"github.com/banshee-data/telemetry.report/internal/monitoring"
	"github.com/banshee-data/telemetry.report/internal/telemetry"
)

// Decoder is the part of telemetry.Decoder the web server drives.
type Decoder interface {
	Snapshot() telemetry.Snapshot
	Stats() telemetry.Stats
	Pause()
	Resume()
	Paused() bool
}

// WebServerConfig contains configuration options for the web server
type WebServerConfig struct {
	Address string
	Decoder Decoder
	// Channels names the decoder channels in packet order. Missing names
	// fall back to ch<i>.
	Channels []string
	// SamplePeriod labels the chart's time axis; zero plots sample index.
	SamplePeriod float64
	Gatherer     prometheus.Gatherer
	DB           *db.DB
	SessionID    string
}

// WebServer handles the HTTP interface of a capture.
type WebServer struct {
	cfg    WebServerConfig
	server *http.Server
}

func NewWebServer(cfg WebServerConfig) *WebServer {
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	ws := &WebServer{cfg: cfg}
	ws.server = &http.Server{
		Addr:              cfg.Address,
		Handler:           ws.setupRoutes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return ws
}

// Handler exposes the routes without a listener.
func (ws *WebServer) Handler() http.Handler { return ws.server.Handler }

// Start serves until ctx is done, then shuts down gracefully.
func (ws *WebServer) Start(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		monitoring.Logf("Starting HTTP server on %s", ws.cfg.Address)
		if err := ws.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err, ok := <-errc:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	monitoring.Logf("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("HTTP server shutdown error: %v", err)
		if err := ws.server.Close(); err != nil {
			monitoring.Logf("HTTP server force close error: %v", err)
		}
	}
	monitoring.Logf("HTTP server routine stopped")
	return nil
}

func (ws *WebServer) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/channels", ws.handleChannels)
	mux.HandleFunc("/api/pause", ws.handlePause)
	mux.HandleFunc("/api/resume", ws.handleResume)
	mux.HandleFunc("/chart", ws.handleChart)
	mux.Handle("/metrics", promhttp.HandlerFor(ws.cfg.Gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/", ws.handleRoot)

	var debug *tsweb.DebugHandler
	if ws.cfg.DB != nil {
		debug = ws.cfg.DB.AttachAdminRoutes(mux)
	} else {
		debug = tsweb.Debugger(mux)
	}
	debug.Handle("decoder", "Decoder counters", http.HandlerFunc(ws.handleStats))
	return mux
}

func (ws *WebServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		httputil.WriteJSONError(w, http.StatusNotFound, "not found")
		return
	}
	http.Redirect(w, r, "/chart", http.StatusFound)
}

func (ws *WebServer) handleStats(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, ws.cfg.Decoder.Stats())
}

func (ws *WebServer) handlePause(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodPost) {
		return
	}
	ws.cfg.Decoder.Pause()
	httputil.WriteJSONOK(w, map[string]bool{"paused": ws.cfg.Decoder.Paused()})
}

func (ws *WebServer) handleResume(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodPost) {
		return
	}
	ws.cfg.Decoder.Resume()
	httputil.WriteJSONOK(w, map[string]bool{"paused": ws.cfg.Decoder.Paused()})
}
