package display

import (
	"errors"
	"fmt"
	"image/color"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkcurrie/ledmatrix-viewer/internal/types"
)

// fakeMatrix records cell colours and Show calls
type fakeMatrix struct {
	width, height int
	cells         map[[2]int]color.Color
	sets          int
	shows         int
}

func newFakeMatrix(width, height int) *fakeMatrix {
	return &fakeMatrix{width: width, height: height, cells: map[[2]int]color.Color{}}
}

func (m *fakeMatrix) SetPixel(x, y int, c color.Color) error {
	if x < 0 || x >= m.width || y < 0 || y >= m.height {
		return fmt.Errorf("coordinates out of bounds: (%d, %d)", x, y)
	}
	m.cells[[2]int{x, y}] = c
	m.sets++
	return nil
}

func (m *fakeMatrix) Show() error                        { m.shows++; return nil }
func (m *fakeMatrix) GetDimensions() (width, height int) { return m.width, m.height }
func (m *fakeMatrix) Close() error                       { return nil }

func TestCellsRenderSetsEveryCell(t *testing.T) {
	m := newFakeMatrix(2, 2)
	r := NewCells(m)

	f := types.Frame{
		{{R: 255}, {G: 255}},
		{{B: 255}, {}},
	}
	require.NoError(t, r.Render(f))

	assert.Equal(t, 4, m.sets)
	assert.Equal(t, 1, m.shows)
	assert.Equal(t, color.RGBA{255, 0, 0, 255}, m.cells[[2]int{0, 0}])
	assert.Equal(t, color.RGBA{0, 255, 0, 255}, m.cells[[2]int{1, 0}])
	assert.Equal(t, color.RGBA{0, 0, 255, 255}, m.cells[[2]int{0, 1}])
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, m.cells[[2]int{1, 1}], "no brightness floor")
}

func TestCellsPartialFrameKeepsStaleColours(t *testing.T) {
	m := newFakeMatrix(2, 2)
	r := NewCells(m)

	full := types.Frame{
		{{R: 9}, {R: 9}},
		{{R: 9}, {R: 9}},
	}
	require.NoError(t, r.Render(full))
	require.NoError(t, r.Render(types.Frame{{{G: 7}}}))

	assert.Equal(t, color.RGBA{0, 7, 0, 255}, m.cells[[2]int{0, 0}])
	assert.Equal(t, color.RGBA{9, 0, 0, 255}, m.cells[[2]int{1, 0}])
	assert.Equal(t, color.RGBA{9, 0, 0, 255}, m.cells[[2]int{0, 1}])
	assert.Equal(t, color.RGBA{9, 0, 0, 255}, m.cells[[2]int{1, 1}])
}

func TestCellsOutOfBounds(t *testing.T) {
	m := newFakeMatrix(1, 1)
	r := NewCells(m)

	err := r.Render(types.Frame{
		{{R: 1}, {R: 2}},
		{{R: 3}},
	})
	var oob *OutOfBoundsError
	require.True(t, errors.As(err, &oob))
	assert.Equal(t, 0, oob.Row)
	assert.Equal(t, 1, oob.Col)
	assert.Equal(t, 2, oob.Unpainted)

	assert.Equal(t, color.RGBA{1, 0, 0, 255}, m.cells[[2]int{0, 0}], "in-bounds cells are still painted")
	assert.Equal(t, 1, m.shows)
}

func newSimMatrix(t *testing.T, width, height int) (*TerminalMatrix, tcell.SimulationScreen) {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	m, err := NewTerminalMatrix(screen, width, height)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m, screen
}

func TestTerminalMatrixCells(t *testing.T) {
	m, screen := newSimMatrix(t, 3, 2)

	w, h := m.GetDimensions()
	assert.Equal(t, 3, w)
	assert.Equal(t, 2, h)

	require.NoError(t, NewCells(m).Render(types.Frame{{{R: 200, G: 100, B: 50}}}))

	got, err := m.GetPixel(0, 0)
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{200, 100, 50, 255}, got)

	for x := 0; x < cellWidth; x++ {
		_, _, style, _ := screen.GetContent(x, 0)
		_, bg, _ := style.Decompose()
		assert.Equal(t, tcell.NewRGBColor(200, 100, 50), bg)
	}

	assert.Error(t, m.SetPixel(3, 0, color.Black))
	assert.Error(t, m.SetPixel(0, -1, color.Black))
}

func TestTerminalMatrixStatus(t *testing.T) {
	m, screen := newSimMatrix(t, 4, 1)

	m.SetStatus("connected")
	assert.Equal(t, "connect…", m.Status(), "status is truncated to the grid width")

	r, _, _, _ := screen.GetContent(0, 1)
	assert.Equal(t, 'c', r)
}

func TestTerminalMatrixTooSmall(t *testing.T) {
	screen := tcell.NewSimulationScreen("UTF-8")
	_, err := NewTerminalMatrix(screen, 100, 10)

	var tooSmall ErrScreenTooSmall
	require.True(t, errors.As(err, &tooSmall))
	assert.Equal(t, [2]int{200, 11}, tooSmall.Need)
}

func TestTerminalMatrixInterrupt(t *testing.T) {
	m, screen := newSimMatrix(t, 1, 1)

	screen.InjectKey(tcell.KeyCtrlC, 0, tcell.ModNone)
	select {
	case <-m.Interrupted():
	case <-time.After(2 * time.Second):
		t.Fatal("interrupt was not signalled")
	}
}
