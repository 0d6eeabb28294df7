package service

import (
	"encoding/base64"
	"fmt"

	"github.com/skip2/go-qrcode"
)

const defaultQRSize = 256

// PNGQRRenderer implements ports.QRRenderer with go-qrcode.
type PNGQRRenderer struct {
	size  int
	level qrcode.RecoveryLevel
}

// NewPNGQRRenderer creates a renderer producing size x size PNGs.
// A non-positive size falls back to 256.
func NewPNGQRRenderer(size int) *PNGQRRenderer {
	if size <= 0 {
		size = defaultQRSize
	}
	return &PNGQRRenderer{size: size, level: qrcode.Medium}
}

// Render encodes content as a base64 PNG.
func (r *PNGQRRenderer) Render(content string) (string, error) {
	png, err := qrcode.Encode(content, r.level, r.size)
	if err != nil {
		return "", fmt.Errorf("encoding qr: %w", err)
	}
	return base64.StdEncoding.EncodeToString(png), nil
}
