// Package qrlabel renders product verification links as QR code PNGs for
// packaging labels.
package qrlabel

import (
	"errors"
	"fmt"

	"github.com/skip2/go-qrcode"
)

// DefaultSize is the edge length in pixels of a rendered label.
const DefaultSize = 256

// Render encodes link as a PNG QR code of size pixels.
func Render(link string, size int) ([]byte, error) {
	if link == "" {
		return nil, errors.New("empty label link")
	}
	if size <= 0 {
		size = DefaultSize
	}
	png, err := qrcode.Encode(link, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}
