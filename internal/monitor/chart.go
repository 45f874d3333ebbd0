package monitor

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/telemetry.report/internal/httputil"
)

const echartsAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// chartGroups splits views by unit so voltages and currents get separate
// y axes. Channels without a unit share one group.
func chartGroups(views []ChannelView) (order []string, groups map[string][]ChannelView) {
	groups = map[string][]ChannelView{}
	for _, v := range views {
		if _, ok := groups[v.Unit]; !ok {
			order = append(order, v.Unit)
		}
		groups[v.Unit] = append(groups[v.Unit], v)
	}
	return order, groups
}

// xAxis labels n points oldest first. With a sample period the newest
// point sits at 0 ms and older ones are negative.
func xAxis(n int, period float64) (labels []string, name string) {
	labels = make([]string, n)
	for i := range labels {
		if period > 0 {
			labels[i] = strconv.FormatFloat(float64(i-(n-1))*period*1e3, 'f', 3, 64)
		} else {
			labels[i] = strconv.Itoa(i)
		}
	}
	if period > 0 {
		return labels, "t (ms)"
	}
	return labels, "sample"
}

func (ws *WebServer) handleChart(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	last, err := httputil.QueryInt(r, "last", 0, 0, maxHistoryQuery)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap := ws.cfg.Decoder.Snapshot()
	views := ws.views(snap, last, channelFilter(r))
	if len(views) == 0 {
		httputil.WriteJSONError(w, http.StatusNotFound, "no matching channels")
		return
	}

	status := "running"
	if ws.cfg.Decoder.Paused() {
		status = "paused"
	}

	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsHost)
	page.SetPageTitle("Telemetry")

	order, groups := chartGroups(views)
	for _, unit := range order {
		group := groups[unit]
		n := 0
		for _, v := range group {
			n = max(n, len(v.Values))
		}
		labels, axisName := xAxis(n, ws.cfg.SamplePeriod)

		title := "Channels"
		if unit != "" {
			title = fmt.Sprintf("Channels (%s)", unit)
		}
		line := charts.NewLine()
		line.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px", AssetsHost: echartsAssetsHost}),
			charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("samples=%d %s", snap.Samples, status)}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
			charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
			charts.WithXAxisOpts(opts.XAxis{Name: axisName, NameLocation: "middle", NameGap: 25}),
			charts.WithYAxisOpts(opts.YAxis{Name: unit}),
			charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}, opts.DataZoom{Type: "slider"}),
		)
		line.SetXAxis(labels)
		for _, v := range group {
			data := make([]opts.LineData, 0, n)
			// Right-align shorter histories with the newest point.
			for i := 0; i < n-len(v.Values); i++ {
				data = append(data, opts.LineData{Value: "-"})
			}
			for _, x := range v.Values {
				data = append(data, opts.LineData{Value: x})
			}
			line.AddSeries(v.Label, data, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
		}
		page.AddCharts(line)
	}

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("render error: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
