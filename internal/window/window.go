// Package window shows the rendered canvas in a desktop window.
package window

import (
	"image"
	"sync"
	"sync/atomic"

	"github.com/hajimehoshi/ebiten/v2"
	log "github.com/sirupsen/logrus"
)

// Window is a canvas presenter backed by an ebiten game. Present may be called
// from any goroutine; ebiten reads the latest image on its own thread.
type Window struct {
	title  string
	width  int
	height int
	scale  int

	mu     sync.Mutex
	latest *image.RGBA
	dirty  bool
	closed atomic.Bool

	screenImg *ebiten.Image
}

// New creates a window sized to bounds, magnified by scale
func New(title string, bounds image.Rectangle, scale int) *Window {
	if scale < 1 {
		scale = 1
	}
	return &Window{
		title:  title,
		width:  bounds.Dx(),
		height: bounds.Dy(),
		scale:  scale,
	}
}

// Present stores a copy of img for the next Draw
func (w *Window) Present(img *image.RGBA) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.latest == nil || w.latest.Bounds() != img.Bounds() {
		w.latest = image.NewRGBA(img.Bounds())
	}
	copy(w.latest.Pix, img.Pix)
	w.dirty = true
	return nil
}

// Run opens the window and blocks until it is closed or Close is called
func (w *Window) Run() error {
	ebiten.SetWindowTitle(w.title)
	ebiten.SetWindowSize(w.width*w.scale, w.height*w.scale)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)

	log.WithFields(log.Fields{
		"width":  w.width,
		"height": w.height,
		"scale":  w.scale,
	}).Info("Opening display window.")
	return ebiten.RunGame(w)
}

// Close makes Run return at the next update
func (w *Window) Close() {
	w.closed.Store(true)
}

func (w *Window) Update() error {
	if w.closed.Load() {
		return ebiten.Termination
	}
	return nil
}

func (w *Window) Draw(screen *ebiten.Image) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.latest == nil {
		return
	}
	if w.screenImg == nil {
		w.screenImg = ebiten.NewImage(w.width, w.height)
	}
	if w.dirty && w.latest.Bounds().Dx() == w.width && w.latest.Bounds().Dy() == w.height {
		w.screenImg.WritePixels(w.latest.Pix)
		w.dirty = false
	}
	screen.DrawImage(w.screenImg, nil)
}

func (w *Window) Layout(outsideWidth, outsideHeight int) (int, int) {
	return w.width, w.height
}
