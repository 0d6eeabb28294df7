package service

import (
	"bytes"
	"encoding/base64"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPNGQRRenderer_Render(t *testing.T) {
	r := NewPNGQRRenderer(128)

	out, err := r.Render("healthpay://pay?paymentId=HP0123456789ABCDEF")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(out)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 128, img.Bounds().Dx())
}

func TestPNGQRRenderer_DefaultSize(t *testing.T) {
	r := NewPNGQRRenderer(0)
	assert.Equal(t, defaultQRSize, r.size)
}
