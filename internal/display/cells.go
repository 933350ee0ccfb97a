package display

import (
	"fmt"

	"github.com/fkcurrie/ledmatrix-viewer/internal/types"
)

// OutOfBoundsError reports frame pixels that have no cell on the matrix
type OutOfBoundsError struct {
	Row, Col   int
	Rows, Cols int
	Unpainted  int
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("pixel (%d,%d) outside %dx%d matrix (%d pixels skipped)",
		e.Row, e.Col, e.Rows, e.Cols, e.Unpainted)
}

// Cells recolours a persistent matrix in place. There is no brightness floor,
// no glow and no clearing step: cells missing from a partial frame keep
// their previous colour.
type Cells struct {
	matrix types.Matrix
}

// NewCells creates a cell renderer over an already built matrix
func NewCells(matrix types.Matrix) *Cells {
	return &Cells{matrix: matrix}
}

// Render sets each cell covered by f to its pixel colour and shows the result
func (c *Cells) Render(f types.Frame) error {
	cols, rows := c.matrix.GetDimensions()

	var oob *OutOfBoundsError
	for j, row := range f {
		for i, p := range row {
			if j >= rows || i >= cols {
				if oob == nil {
					oob = &OutOfBoundsError{Row: j, Col: i, Rows: rows, Cols: cols}
				}
				oob.Unpainted++
				continue
			}
			if err := c.matrix.SetPixel(i, j, p.RGBA()); err != nil {
				return fmt.Errorf("failed to set cell (%d,%d): %w", j, i, err)
			}
		}
	}

	if err := c.matrix.Show(); err != nil {
		return fmt.Errorf("failed to show matrix: %w", err)
	}
	if oob != nil {
		return oob
	}
	return nil
}
