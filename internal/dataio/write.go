package dataio

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// WriteDevice writes one channel as a device CSV: the signed fixed-point
// integer and the decoded value, semicolon separated with decimal commas.
func WriteDevice(w io.Writer, values []float64, fracBits uint) error {
	cw := csv.NewWriter(w)
	cw.Comma = ';'
	if err := cw.Write([]string{DeviceRawColumn, DeviceValueColumn}); err != nil {
		return err
	}
	for _, v := range values {
		raw := int64(math.Round(math.Ldexp(v, int(fracBits))))
		if err := cw.Write([]string{strconv.FormatInt(raw, 10), formatDecimalComma(v)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteMultiChannel writes every channel side by side, one row per sample,
// with Estado_<i>_Real headers.
func WriteMultiChannel(w io.Writer, channels [][]float64) error {
	cw := csv.NewWriter(w)
	cw.Comma = ';'
	header := make([]string, len(channels))
	rows := 0
	for i, ch := range channels {
		header[i] = MultiChannelColumn(i)
		rows = max(rows, len(ch))
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	rec := make([]string, len(channels))
	for r := 0; r < rows; r++ {
		for i, ch := range channels {
			rec[i] = ""
			if r < len(ch) {
				rec[i] = formatDecimalComma(ch[r])
			}
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// MultiChannelColumn is the header of channel i in a multi-channel file.
func MultiChannelColumn(i int) string {
	return fmt.Sprintf("Estado_%d_Real", i)
}

func formatDecimalComma(v float64) string {
	return strings.Replace(strconv.FormatFloat(v, 'g', -1, 64), ".", ",", 1)
}
