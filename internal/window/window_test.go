package window

import (
	"image"
	"image/color"
	"testing"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresentKeepsCopy(t *testing.T) {
	w := New("test", image.Rect(0, 0, 12, 24), 2)

	img := image.NewRGBA(image.Rect(0, 0, 12, 24))
	img.SetRGBA(3, 4, color.RGBA{R: 255, A: 255})
	require.NoError(t, w.Present(img))
	img.SetRGBA(3, 4, color.RGBA{G: 255, A: 255})

	assert.Equal(t, color.RGBA{R: 255, A: 255}, w.latest.RGBAAt(3, 4))
	assert.True(t, w.dirty)
}

func TestLayoutIsCanvasSize(t *testing.T) {
	w := New("test", image.Rect(0, 0, 1536, 384), 0)
	assert.Equal(t, 1, w.scale)

	width, height := w.Layout(800, 600)
	assert.Equal(t, 1536, width)
	assert.Equal(t, 384, height)
}

func TestCloseTerminates(t *testing.T) {
	w := New("test", image.Rect(0, 0, 1, 1), 1)
	assert.NoError(t, w.Update())
	w.Close()
	assert.ErrorIs(t, w.Update(), ebiten.Termination)
}
