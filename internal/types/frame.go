package types

import (
	"fmt"
	"image/color"
)

// Pixel is one LED colour
type Pixel struct {
	R uint8
	G uint8
	B uint8
}

// RGBA returns the pixel as an opaque color.RGBA
func (p Pixel) RGBA() color.RGBA {
	return color.RGBA{R: p.R, G: p.G, B: p.B, A: 255}
}

// String renders the pixel in CSS form, e.g. rgb(255,0,0)
func (p Pixel) String() string {
	return fmt.Sprintf("rgb(%d,%d,%d)", p.R, p.G, p.B)
}

// Frame is one complete snapshot of the display, indexed [row][col]
type Frame [][]Pixel

// Rows returns the number of rows in the frame
func (f Frame) Rows() int {
	return len(f)
}

// Cols returns the length of the first row
func (f Frame) Cols() int {
	if len(f) == 0 {
		return 0
	}
	return len(f[0])
}

// NewFrame returns a rows x cols frame with every pixel off
func NewFrame(rows, cols int) Frame {
	f := make(Frame, rows)
	for j := range f {
		f[j] = make([]Pixel, cols)
	}
	return f
}
