package report

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/banshee-data/telemetry.report/internal/waveform"
)

// Trace is one line of a panel.
type Trace struct {
	Label string
	Wave  waveform.Waveform
}

// Panel is one channel's subplot.
type Panel struct {
	Title  string
	Unit   string
	Traces []Trace
}

var traceColors = []color.Color{
	color.RGBA{R: 31, G: 119, B: 180, A: 255},
	color.RGBA{R: 255, G: 127, B: 14, A: 255},
	color.RGBA{R: 44, G: 160, B: 44, A: 255},
	color.RGBA{R: 214, G: 39, B: 40, A: 255},
}

// ComparisonPanel builds the usual three traces: the reference, its
// decimated version, and the test series shifted by offset.
func ComparisonPanel(title, unit string, ref, decimated, test waveform.Waveform, offset float64) Panel {
	return Panel{
		Title: title,
		Unit:  unit,
		Traces: []Trace{
			{Label: "reference", Wave: ref},
			{Label: "reference (decimated)", Wave: decimated},
			{Label: fmt.Sprintf("device (%+.3g s)", offset), Wave: test.Shift(offset)},
		},
	}
}

// SavePlot writes the panels stacked vertically into a PNG file.
func SavePlot(path string, panels []Panel) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create plot %s: %w", path, err)
	}
	if err := WritePlot(f, panels); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WritePlot renders the panels as a PNG.
func WritePlot(w io.Writer, panels []Panel) error {
	if len(panels) == 0 {
		return fmt.Errorf("no panels to plot")
	}
	plots := make([][]*plot.Plot, len(panels))
	for i, panel := range panels {
		p, err := newPanelPlot(panel)
		if err != nil {
			return fmt.Errorf("panel %q: %w", panel.Title, err)
		}
		plots[i] = []*plot.Plot{p}
	}

	width := 14 * vg.Inch
	height := vg.Length(len(panels)) * 3 * vg.Inch
	img := vgimg.New(width, height)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows:      len(panels),
		Cols:      1,
		PadY:      vg.Points(12),
		PadTop:    vg.Points(4),
		PadBottom: vg.Points(4),
		PadLeft:   vg.Points(4),
		PadRight:  vg.Points(8),
	}
	canvases := plot.Align(plots, tiles, dc)
	for i := range plots {
		plots[i][0].Draw(canvases[i][0])
	}

	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(w); err != nil {
		return fmt.Errorf("encode plot: %w", err)
	}
	return nil
}

func newPanelPlot(panel Panel) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = panel.Title
	p.X.Label.Text = "Time (ms)"
	p.Y.Label.Text = panel.Unit
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	for i, tr := range panel.Traces {
		pts := toXYs(tr.Wave)
		if len(pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("trace %q: %w", tr.Label, err)
		}
		line.Color = traceColors[i%len(traceColors)]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(tr.Label, line)
	}
	return p, nil
}

// toXYs converts seconds to milliseconds and drops non-finite points,
// which plotter rejects.
func toXYs(w waveform.Waveform) plotter.XYs {
	n := min(len(w.Time), len(w.Value))
	pts := make(plotter.XYs, 0, n)
	for i := 0; i < n; i++ {
		x, y := w.Time[i]*1e3, w.Value[i]
		if math.IsNaN(x) || math.IsInf(x, 0) || math.IsNaN(y) || math.IsInf(y, 0) {
			continue
		}
		pts = append(pts, plotter.XY{X: x, Y: y})
	}
	return pts
}
