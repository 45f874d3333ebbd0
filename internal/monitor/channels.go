package monitor

import (
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/banshee-data/telemetry.report/internal/httputil"
	"github.com/banshee-data/telemetry.report/internal/telemetry"
	"github.com/banshee-data/telemetry.report/internal/units"
)

const maxHistoryQuery = 1 << 20

// ChannelView is one channel of /api/channels.
type ChannelView struct {
	ID     string    `json:"id"`
	Label  string    `json:"label"`
	Unit   string    `json:"unit,omitempty"`
	Last   *float64  `json:"last"`
	Values []float64 `json:"values"`
}

// ChannelsResponse is the body of /api/channels.
type ChannelsResponse struct {
	SessionID string          `json:"session_id,omitempty"`
	Samples   uint64          `json:"samples"`
	Paused    bool            `json:"paused"`
	Stats     telemetry.Stats `json:"stats"`
	Channels  []ChannelView   `json:"channels"`
}

func (ws *WebServer) channelID(i int) string {
	if i < len(ws.cfg.Channels) && ws.cfg.Channels[i] != "" {
		return ws.cfg.Channels[i]
	}
	return fmt.Sprintf("ch%d", i)
}

// views builds the per-channel views, keeping the newest last values of
// each and only the channels named in filter when it is not empty.
func (ws *WebServer) views(snap telemetry.Snapshot, last int, filter []string) []ChannelView {
	out := make([]ChannelView, 0, len(snap.Channels))
	for i, values := range snap.Channels {
		id := ws.channelID(i)
		if len(filter) > 0 && !slices.Contains(filter, id) {
			continue
		}
		if last > 0 && len(values) > last {
			values = values[len(values)-last:]
		}
		v := ChannelView{ID: id, Label: units.Label(id), Unit: units.UnitFor(id), Values: values}
		if len(values) > 0 {
			l := values[len(values)-1]
			v.Last = &l
		}
		out = append(out, v)
	}
	return out
}

func channelFilter(r *http.Request) []string {
	var ids []string
	for _, raw := range r.URL.Query()["channel"] {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.ToLower(strings.TrimSpace(id)); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

func (ws *WebServer) handleChannels(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	last, err := httputil.QueryInt(r, "last", 0, 0, maxHistoryQuery)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	snap := ws.cfg.Decoder.Snapshot()
	httputil.WriteJSONOK(w, ChannelsResponse{
		SessionID: ws.cfg.SessionID,
		Samples:   snap.Samples,
		Paused:    ws.cfg.Decoder.Paused(),
		Stats:     ws.cfg.Decoder.Stats(),
		Channels:  ws.views(snap, last, channelFilter(r)),
	})
}
