package display

import (
	"fmt"
	"image/color"
	"sync"

	"github.com/gdamore/tcell/v2"
	runewidth "github.com/mattn/go-runewidth"
)

// cellWidth is the number of terminal columns per LED, which keeps LEDs roughly square
const cellWidth = 2

// ErrScreenTooSmall is returned when the terminal cannot hold the grid and its status row
type ErrScreenTooSmall struct {
	Width, Height int
	Need          [2]int
}

func (e ErrScreenTooSmall) Error() string {
	return fmt.Sprintf("terminal is %dx%d, need at least %dx%d", e.Width, e.Height, e.Need[0], e.Need[1])
}

// TerminalMatrix represents an LED matrix drawn with terminal cell backgrounds
type TerminalMatrix struct {
	width  int
	height int
	screen tcell.Screen
	cells  [][]tcell.Style
	status string

	mu        sync.Mutex
	interrupt chan struct{}
	closeOnce sync.Once
}

// NewTerminalMatrix initializes screen and creates one cell per LED, all off
func NewTerminalMatrix(screen tcell.Screen, width, height int) (*TerminalMatrix, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid dimensions: %dx%d", width, height)
	}

	tcell.SetEncodingFallback(tcell.EncodingFallbackASCII)
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize screen: %w", err)
	}

	sw, sh := screen.Size()
	need := [2]int{width * cellWidth, height + 1}
	if sw < need[0] || sh < need[1] {
		screen.Fini()
		return nil, ErrScreenTooSmall{Width: sw, Height: sh, Need: need}
	}

	m := &TerminalMatrix{
		width:     width,
		height:    height,
		screen:    screen,
		cells:     make([][]tcell.Style, height),
		interrupt: make(chan struct{}),
	}
	off := tcell.StyleDefault.Background(tcell.ColorBlack)
	for y := range m.cells {
		m.cells[y] = make([]tcell.Style, width)
		for x := range m.cells[y] {
			m.cells[y][x] = off
			m.paint(x, y)
		}
	}
	screen.Show()

	go m.pollLoop()
	return m, nil
}

// SetPixel sets the background of the cell at the given coordinates
func (m *TerminalMatrix) SetPixel(x, y int, c color.Color) error {
	if x < 0 || x >= m.width || y < 0 || y >= m.height {
		return fmt.Errorf("coordinates out of bounds: (%d, %d)", x, y)
	}

	r, g, b, _ := c.RGBA()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cells[y][x] = tcell.StyleDefault.Background(tcell.NewRGBColor(int32(r>>8), int32(g>>8), int32(b>>8)))
	m.paint(x, y)
	return nil
}

// GetPixel returns the current colour of the cell at the given coordinates
func (m *TerminalMatrix) GetPixel(x, y int) (color.RGBA, error) {
	if x < 0 || x >= m.width || y < 0 || y >= m.height {
		return color.RGBA{}, fmt.Errorf("coordinates out of bounds: (%d, %d)", x, y)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	_, bg, _ := m.cells[y][x].Decompose()
	r, g, b := bg.RGB()
	return color.RGBA{R: uint8(r), G: uint8(g), B: uint8(b), A: 255}, nil
}

// SetStatus replaces the text of the status row under the grid
func (m *TerminalMatrix) SetStatus(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.status = runewidth.Truncate(text, m.width*cellWidth, "…")
	row := m.height
	x := 0
	for _, r := range m.status {
		m.screen.SetContent(x, row, r, nil, tcell.StyleDefault)
		x += runewidth.RuneWidth(r)
	}
	for ; x < m.width*cellWidth; x++ {
		m.screen.SetContent(x, row, ' ', nil, tcell.StyleDefault)
	}
	m.screen.Show()
}

// Status returns the text currently shown in the status row
func (m *TerminalMatrix) Status() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Show makes all cell changes visible
func (m *TerminalMatrix) Show() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.screen.Show()
	return nil
}

// GetDimensions returns the dimensions of the LED matrix
func (m *TerminalMatrix) GetDimensions() (width, height int) {
	return m.width, m.height
}

// Interrupted is closed when the user presses Ctrl-C or Esc. tcell owns the
// terminal, so the usual SIGINT never arrives while the matrix is up.
func (m *TerminalMatrix) Interrupted() <-chan struct{} {
	return m.interrupt
}

// Close restores the terminal
func (m *TerminalMatrix) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.screen.Fini()
	return nil
}

// paint must be called with mu held or before the matrix is shared
func (m *TerminalMatrix) paint(x, y int) {
	style := m.cells[y][x]
	for k := 0; k < cellWidth; k++ {
		m.screen.SetContent(x*cellWidth+k, y, ' ', nil, style)
	}
}

func (m *TerminalMatrix) pollLoop() {
	for {
		event := m.screen.PollEvent()
		if event == nil {
			return
		}

		switch event := event.(type) {
		case *tcell.EventKey:
			switch event.Key() {
			case tcell.KeyCtrlC, tcell.KeyEscape:
				m.closeOnce.Do(func() { close(m.interrupt) })
			}
		case *tcell.EventResize:
			m.mu.Lock()
			m.screen.Sync()
			m.mu.Unlock()
		}
	}
}
