package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/telemetry.report/internal/telemetry"
	"github.com/banshee-data/telemetry.report/internal/telemetry/parse"
	"github.com/banshee-data/telemetry.report/internal/testutil"
)

func newTestServer(t *testing.T) (*WebServer, *telemetry.Decoder) {
	t.Helper()
	reg := prometheus.NewRegistry()
	metrics, err := telemetry.NewMetrics(reg)
	require.NoError(t, err)

	layout := parse.DefaultLayout()
	src := telemetry.NewSimulatedSource(layout, 25e-6)
	dec, err := telemetry.NewDecoder(src, telemetry.Options{Layout: layout, HistoryWindow: 200, Metrics: metrics})
	require.NoError(t, err)
	t.Cleanup(func() { dec.Close() })

	// 64 packets per tick, enough to fill the 200-sample window.
	for i := 0; i < 4; i++ {
		_, err := dec.Tick()
		require.NoError(t, err)
	}

	ws := NewWebServer(WebServerConfig{
		Decoder:      dec,
		Channels:     []string{"il1", "ild", "il2", "vcf", "vcd"},
		SamplePeriod: 25e-6,
		Gatherer:     reg,
		SessionID:    "session-1",
	})
	return ws, dec
}

func serve(ws *WebServer, method, target string) *httptest.ResponseRecorder {
	rec := testutil.NewTestRecorder()
	ws.Handler().ServeHTTP(rec, testutil.NewTestRequest(method, target))
	return rec
}

func TestHandleChannels(t *testing.T) {
	ws, dec := newTestServer(t)

	rec := serve(ws, http.MethodGet, "/api/channels?last=10")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var resp ChannelsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "session-1", resp.SessionID)
	assert.Equal(t, dec.Snapshot().Samples, resp.Samples)
	assert.NotZero(t, resp.Stats.Packets)
	require.Len(t, resp.Channels, 5)

	vcf := resp.Channels[3]
	assert.Equal(t, "vcf", vcf.ID)
	assert.Equal(t, "V_Cf", vcf.Label)
	assert.Equal(t, "V", vcf.Unit)
	assert.Len(t, vcf.Values, 10)
	require.NotNil(t, vcf.Last)
	assert.Equal(t, vcf.Values[9], *vcf.Last)

	rec = serve(ws, http.MethodGet, "/api/channels?channel=IL1,vcd")
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Channels, 2)
	assert.Equal(t, "il1", resp.Channels[0].ID)
	assert.Equal(t, "vcd", resp.Channels[1].ID)
	assert.Len(t, resp.Channels[0].Values, 200)
}

func TestHandleChannels_BadRequests(t *testing.T) {
	ws, _ := newTestServer(t)

	rec := serve(ws, http.MethodGet, "/api/channels?last=abc")
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)

	rec = serve(ws, http.MethodPost, "/api/channels")
	testutil.AssertStatusCode(t, rec.Code, http.StatusMethodNotAllowed)
}

func TestPauseResume(t *testing.T) {
	ws, dec := newTestServer(t)

	rec := serve(ws, http.MethodGet, "/api/pause")
	testutil.AssertStatusCode(t, rec.Code, http.StatusMethodNotAllowed)
	assert.False(t, dec.Paused())

	rec = serve(ws, http.MethodPost, "/api/pause")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.JSONEq(t, `{"paused":true}`, rec.Body.String())
	assert.True(t, dec.Paused())

	before := dec.Snapshot()
	_, err := dec.Tick()
	require.NoError(t, err)
	assert.Equal(t, before.Samples, dec.Snapshot().Samples, "paused view is frozen")

	rec = serve(ws, http.MethodPost, "/api/resume")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.JSONEq(t, `{"paused":false}`, rec.Body.String())
	assert.False(t, dec.Paused())
}

func TestHandleChart(t *testing.T) {
	ws, _ := newTestServer(t)

	rec := serve(ws, http.MethodGet, "/chart?last=50")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "Channels (V)")
	assert.Contains(t, body, "Channels (A)")
	assert.Contains(t, body, "I_Ld")

	rec = serve(ws, http.MethodGet, "/chart?channel=nope")
	testutil.AssertStatusCode(t, rec.Code, http.StatusNotFound)

	rec = serve(ws, http.MethodGet, "/")
	testutil.AssertStatusCode(t, rec.Code, http.StatusFound)
}

func TestMetricsAndDebug(t *testing.T) {
	ws, _ := newTestServer(t)

	rec := serve(ws, http.MethodGet, "/metrics")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.True(t, strings.Contains(rec.Body.String(), "telemetry_decoder_packets_total"))

	rec = serve(ws, http.MethodGet, "/debug/decoder")
	assert.NotEqual(t, http.StatusNotFound, rec.Code)
}

func TestXAxis(t *testing.T) {
	labels, name := xAxis(3, 1e-3)
	assert.Equal(t, []string{"-2.000", "-1.000", "0.000"}, labels)
	assert.Equal(t, "t (ms)", name)

	labels, name = xAxis(2, 0)
	assert.Equal(t, []string{"0", "1"}, labels)
	assert.Equal(t, "sample", name)
}

func TestStart_StopsOnCancel(t *testing.T) {
	_, dec := newTestServer(t)
	ws := NewWebServer(WebServerConfig{Address: "127.0.0.1:0", Decoder: dec})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ws.Start(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
