package types

import "image/color"

// Matrix represents a grid of persistent, individually colourable cells
type Matrix interface {
	// SetPixel sets the cell at the given coordinates to the given color
	SetPixel(x, y int, c color.Color) error
	// Show makes the changes since the last Show visible
	Show() error
	// GetDimensions returns the number of columns and rows
	GetDimensions() (width, height int)
	// Close releases the matrix
	Close() error
}
