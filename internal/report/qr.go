package report

import (
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// RunIDToQR encodes a run id as a QR code PNG.
func RunIDToQR(id string, size int) ([]byte, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("run id is empty")
	}
	if size <= 0 {
		size = 128
	}
	return qrcode.Encode(id, qrcode.Medium, size)
}
