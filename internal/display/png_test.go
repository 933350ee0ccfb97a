package display

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPNGWriterThrottles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "led.png")
	w := NewPNGWriter(path, time.Second)
	clock := time.Unix(1000, 0)
	w.now = func() time.Time { return clock }

	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.SetRGBA(1, 1, color.RGBA{R: 255, A: 255})
	require.NoError(t, w.Present(img))

	saved := readPNG(t, path)
	assert.Equal(t, color.RGBA{R: 255, A: 255}, rgbaAt(saved, 1, 1))

	img.SetRGBA(1, 1, color.RGBA{G: 255, A: 255})
	clock = clock.Add(500 * time.Millisecond)
	require.NoError(t, w.Present(img))
	assert.Equal(t, color.RGBA{R: 255, A: 255}, rgbaAt(readPNG(t, path), 1, 1), "write within interval is skipped")

	clock = clock.Add(time.Second)
	require.NoError(t, w.Present(img))
	assert.Equal(t, color.RGBA{G: 255, A: 255}, rgbaAt(readPNG(t, path), 1, 1))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are cleaned up")
}

func TestPNGWriterMissingDir(t *testing.T) {
	w := NewPNGWriter(filepath.Join(t.TempDir(), "missing", "led.png"), 0)
	assert.Error(t, w.Present(image.NewRGBA(image.Rect(0, 0, 1, 1))))
}

func readPNG(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	return img
}

func rgbaAt(img image.Image, x, y int) color.Color {
	return color.RGBAModel.Convert(img.At(x, y))
}
