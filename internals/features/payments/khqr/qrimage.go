// file: internals/features/payments/khqr/qrimage.go
package khqr

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
)

// ImagePNG renders the assembled payload as a scannable PNG, size x size
// pixels.
func ImagePNG(payload string, size int) ([]byte, error) {
	if size <= 0 {
		size = 512
	}
	code, err := qr.Encode(payload, qr.M, qr.Auto)
	if err != nil {
		return nil, fmt.Errorf("khqr: encode qr: %w", err)
	}
	scaled, err := barcode.Scale(code, size, size)
	if err != nil {
		return nil, fmt.Errorf("khqr: scale qr: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, scaled); err != nil {
		return nil, fmt.Errorf("khqr: render png: %w", err)
	}
	return buf.Bytes(), nil
}
