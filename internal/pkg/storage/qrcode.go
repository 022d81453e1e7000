package storage

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/disintegration/imaging"
	"github.com/skip2/go-qrcode"
)

// QRRenderer produces printable PNG labels for unit codes.
type QRRenderer struct {
	size int
}

// NewQRRenderer creates a renderer whose labels are size x size pixels.
func NewQRRenderer(size int) *QRRenderer {
	if size < 64 {
		size = 64
	}
	return &QRRenderer{size: size}
}

// Render encodes payload as a QR code centred on a white square with a quiet margin.
func (r *QRRenderer) Render(payload string) (io.Reader, error) {
	qr, err := qrcode.New(payload, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("failed to encode qr payload: %w", err)
	}
	qr.DisableBorder = true

	margin := r.size / 10
	inner := r.size - 2*margin
	code := imaging.Resize(qr.Image(inner), inner, inner, imaging.NearestNeighbor)

	canvas := imaging.New(r.size, r.size, color.White)
	label := imaging.Paste(canvas, code, image.Pt(margin, margin))

	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, label, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode qr label: %w", err)
	}
	return buf, nil
}
