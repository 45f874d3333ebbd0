package report

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

const qrImageName = "run-id-qr"

// SavePDF renders the run into a PDF file. plotPNG, when not empty, is
// placed after the table.
func SavePDF(run Run, plotPNG []byte, out string) error {
	pdf, err := buildPDF(run, plotPNG)
	if err != nil {
		return err
	}
	return pdf.OutputFileAndClose(out)
}

// WritePDF is SavePDF for an arbitrary writer.
func WritePDF(w io.Writer, run Run, plotPNG []byte) error {
	pdf, err := buildPDF(run, plotPNG)
	if err != nil {
		return err
	}
	return pdf.Output(w)
}

func buildPDF(run Run, plotPNG []byte) (*gofpdf.Fpdf, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Telemetry Comparison Report", false)
	pdf.SetAuthor("compare", false)
	pdf.SetCreator("compare", false)
	pdf.SetMargins(15, 20, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	if err := addHeader(pdf, run); err != nil {
		return nil, err
	}
	addMetricsTable(pdf, run.Rows)
	addNotes(pdf, run.Rows)
	if len(plotPNG) > 0 {
		addPlot(pdf, plotPNG)
	}

	if pdf.Err() {
		return nil, pdf.Error()
	}
	return pdf, nil
}

func addHeader(pdf *gofpdf.Fpdf, run Run) error {
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "Telemetry Comparison Report")
	pdf.Ln(12)

	if run.ID != "" {
		png, err := RunIDToQR(run.ID, 256)
		if err != nil {
			return fmt.Errorf("run id qr: %w", err)
		}
		opts := gofpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader(qrImageName, opts, bytes.NewReader(png))
		pdf.ImageOptions(qrImageName, 165, 15, 30, 30, false, opts, 0, "")
	}

	pdf.SetFont("Helvetica", "", 11)
	items := []struct {
		label string
		value string
	}{
		{label: "Run", value: emptyFallback(run.ID, "-")},
		{label: "Created", value: run.CreatedAt.Format(time.RFC3339)},
		{label: "Reference", value: emptyFallback(run.Reference, "-")},
		{label: "Device data", value: emptyFallback(run.DeviceDir, "-")},
	}
	for _, item := range items {
		pdf.CellFormat(35, 6, item.label, "", 0, "L", false, 0, "")
		pdf.CellFormat(110, 6, item.value, "", 1, "L", false, 0, "")
	}
	pdf.Ln(8)
	return nil
}

func addMetricsTable(pdf *gofpdf.Fpdf, rows []Row) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Metrics")
	pdf.Ln(9)

	headers := []string{"Channel", "Offset (s)", "NRMSE %", "Corr", "Amp ratio", "DC offset", "Lag (ms)", "Lag (deg)", "f0 (Hz)"}
	widths := []float64{18, 24, 18, 18, 20, 20, 20, 20, 20}

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Helvetica", "B", 9)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for _, r := range rows {
		m := r.Metrics
		values := []string{
			r.Channel,
			formatValue(r.Offset.Total),
			formatValue(m.NRMSEPct),
			formatValue(m.Corr),
			formatValue(m.AmpRatio),
			strings.TrimSpace(formatValue(m.Offset) + " " + r.Unit),
			formatValue(m.PhaseLagMs),
			formatValue(m.PhaseLagDeg),
			formatValue(m.F0EstHz),
		}
		for i, v := range values {
			pdf.CellFormat(widths[i], 6, v, "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(4)
}

func addNotes(pdf *gofpdf.Fpdf, rows []Row) {
	var notes []string
	for _, r := range rows {
		if r.Note != "" {
			notes = append(notes, fmt.Sprintf("%s: %s", r.Channel, r.Note))
		}
	}
	if len(notes) == 0 {
		return
	}
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Notes")
	pdf.Ln(9)
	pdf.SetFont("Helvetica", "", 10)
	for _, n := range notes {
		pdf.MultiCell(0, 5, n, "", "L", false)
	}
	pdf.Ln(4)
}

func addPlot(pdf *gofpdf.Fpdf, png []byte) {
	opts := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
	pdf.RegisterImageOptionsReader("comparison-plot", opts, bytes.NewReader(png))
	pdf.AddPage()
	pdf.ImageOptions("comparison-plot", 15, 20, 180, 0, false, opts, 0, "")
}

func emptyFallback(val, fallback string) string {
	if strings.TrimSpace(val) == "" {
		return fallback
	}
	return val
}
