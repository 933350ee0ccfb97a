package display

import (
	"image/color"

	"github.com/fkcurrie/ledmatrix-viewer/internal/types"
)

// Layout places LEDs on the canvas. Each LED owns a square footprint of
// Size plus Space on every side.
type Layout struct {
	Size  float64
	Space float64
}

// Pitch returns the distance between neighbouring LED centres
func (l Layout) Pitch() float64 {
	return 2*l.Space + l.Size
}

// Center returns the centre coordinate of the LED at index i (row or column)
func (l Layout) Center(i int) float64 {
	return float64(i)*l.Pitch() + l.Space + l.Size/2
}

// CanvasSize returns the pixel size of a canvas holding cols x rows LEDs
func (l Layout) CanvasSize(cols, rows int) (width, height int) {
	return int(float64(cols) * l.Pitch()), int(float64(rows) * l.Pitch())
}

// Clamp raises each channel to at least floor so "off" LEDs still show a faint glow
func Clamp(p types.Pixel, floor uint8) color.RGBA {
	return color.RGBA{
		R: max8(p.R, floor),
		G: max8(p.G, floor),
		B: max8(p.B, floor),
		A: 255,
	}
}

// Glows reports whether a clamped colour is bright enough to get a halo
func Glows(c color.RGBA, threshold int) bool {
	return int(c.R)+int(c.G)+int(c.B) > threshold
}

func max8(a, b uint8) uint8 {
	if a > b {
		return a
	}
	return b
}
