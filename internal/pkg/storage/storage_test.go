package storage

import (
	"context"
	"image/png"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Save(ctx, "qrcodes/item/abc.png", strings.NewReader("payload")))

	rc, err := s.Get(ctx, "qrcodes/item/abc.png")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "payload", string(data))

	require.NoError(t, s.Delete(ctx, "qrcodes/item/abc.png"))
	_, err = s.Get(ctx, "qrcodes/item/abc.png")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, s.Delete(ctx, "qrcodes/item/abc.png"), "deleting a missing file is not an error")
}

func TestLocalStorageStaysInsideBase(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	s, err := NewLocalStorage(base)
	require.NoError(t, err)

	require.NoError(t, s.Save(ctx, "../../escape.txt", strings.NewReader("x")))

	rc, err := s.Get(ctx, "escape.txt")
	require.NoError(t, err, "traversal segments are cleaned into the base directory")
	rc.Close()
}

func TestQRRendererProducesSquarePNG(t *testing.T) {
	r := NewQRRenderer(200)

	out, err := r.Render("7d3c1b6e-2f4a-4c1e-9a51-1c0f2e3d4b5a")
	require.NoError(t, err)

	img, err := png.Decode(out)
	require.NoError(t, err)
	assert.Equal(t, 200, img.Bounds().Dx())
	assert.Equal(t, 200, img.Bounds().Dy())

	// The quiet margin stays white.
	red, green, blue, _ := img.At(1, 1).RGBA()
	assert.Equal(t, uint32(0xffff), red)
	assert.Equal(t, uint32(0xffff), green)
	assert.Equal(t, uint32(0xffff), blue)

	// The code is pasted inside the margin.
	margin := 200 / 10
	dark := 0
	for y := 0; y < 200; y++ {
		for x := 0; x < 200; x++ {
			if v, _, _, _ := img.At(x, y).RGBA(); v < 0x8000 {
				dark++
				assert.True(t, x >= margin && x < 200-margin && y >= margin && y < 200-margin,
					"dark pixel at (%d,%d) outside the code area", x, y)
			}
		}
	}
	assert.Positive(t, dark)
}
