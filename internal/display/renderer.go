package display

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	"github.com/lucasb-eyer/go-colorful"
	log "github.com/sirupsen/logrus"
	"github.com/srwiley/rasterx"

	"github.com/fkcurrie/ledmatrix-viewer/internal/types"
)

// Renderer paints one frame onto a surface
type Renderer interface {
	Render(f types.Frame) error
}

// Presenter receives the canvas after every completed frame. The image is
// only valid for the duration of the call.
type Presenter interface {
	Present(img *image.RGBA) error
}

// Dot is one planned LED paint operation
type Dot struct {
	X      float64
	Y      float64
	Radius float64
	Color  color.RGBA
	Glow   bool
}

// Canvas renders frames as round LED dots with a brightness floor and an
// optional halo, redrawing the whole image every frame
type Canvas struct {
	cfg        types.DisplayConfig
	layout     Layout
	background color.RGBA
	presenters []Presenter

	mu     sync.RWMutex
	img    *image.RGBA
	filler *rasterx.Filler
}

// NewCanvas creates a canvas sized for the configured display
func NewCanvas(cfg types.DisplayConfig, presenters ...Presenter) (*Canvas, error) {
	bg, err := colorful.Hex(cfg.Background)
	if err != nil {
		return nil, fmt.Errorf("failed to parse background colour: %w", err)
	}
	r, g, b := bg.RGB255()

	layout := Layout{Size: cfg.LEDSize, Space: cfg.LEDSpace}
	w, h := layout.CanvasSize(cfg.Width, cfg.Height)
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid canvas size: %dx%d", w, h)
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())

	return &Canvas{
		cfg:        cfg,
		layout:     layout,
		background: color.RGBA{R: r, G: g, B: b, A: 255},
		presenters: presenters,
		img:        img,
		filler:     rasterx.NewFiller(w, h, scanner),
	}, nil
}

// AddPresenter attaches another presenter
func (c *Canvas) AddPresenter(p Presenter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.presenters = append(c.presenters, p)
}

// Bounds returns the canvas rectangle
func (c *Canvas) Bounds() image.Rectangle {
	return c.img.Bounds()
}

// Plan returns one dot per pixel of f, in row-major order
func (c *Canvas) Plan(f types.Frame) []Dot {
	dots := make([]Dot, 0, f.Rows()*f.Cols())
	for j, row := range f {
		for i, p := range row {
			clr := Clamp(p, c.cfg.MinBrightness)
			dots = append(dots, Dot{
				X:      c.layout.Center(i),
				Y:      c.layout.Center(j),
				Radius: c.layout.Size / 2,
				Color:  clr,
				Glow:   Glows(clr, c.cfg.GlowThreshold),
			})
		}
	}
	return dots
}

// Render clears the canvas, paints every dot of f and hands the result to
// the presenters
func (c *Canvas) Render(f types.Frame) error {
	dots := c.Plan(f)

	c.mu.Lock()
	draw.Draw(c.img, c.img.Bounds(), image.NewUniform(c.background), image.Point{}, draw.Src)
	for _, d := range dots {
		if d.Glow {
			c.fillGlow(d)
		}
		c.fillDot(d)
	}
	c.mu.Unlock()

	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.presenters {
		if err := p.Present(c.img); err != nil {
			log.WithFields(log.Fields{
				"error": err,
			}).Warn("Presenter failed.")
		}
	}
	return nil
}

// Snapshot returns a copy of the last rendered canvas
func (c *Canvas) Snapshot() *image.RGBA {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := image.NewRGBA(c.img.Bounds())
	copy(out.Pix, c.img.Pix)
	return out
}

func (c *Canvas) fillDot(d Dot) {
	c.filler.Clear()
	c.filler.SetColor(d.Color)
	rasterx.AddCircle(d.X, d.Y, d.Radius, c.filler)
	c.filler.Draw()
}

// fillGlow paints a halo under the dot that fades from the dot colour at its
// rim to transparent GlowBlur pixels further out
func (c *Canvas) fillGlow(d Dot) {
	r := d.Radius + c.cfg.GlowBlur
	if r <= d.Radius {
		return
	}
	g := rasterx.Gradient{
		Points:   [5]float64{d.X, d.Y, d.X, d.Y, r},
		IsRadial: true,
		Units:    rasterx.UserSpaceOnUse,
		Matrix:   rasterx.Identity,
		Stops: []rasterx.GradStop{
			{StopColor: d.Color, Offset: d.Radius / r, Opacity: 1},
			{StopColor: d.Color, Offset: 1, Opacity: 0},
		},
	}
	g.Bounds.X, g.Bounds.Y, g.Bounds.W, g.Bounds.H = d.X-r, d.Y-r, 2*r, 2*r

	c.filler.Clear()
	c.filler.SetColor(g.GetColorFunction(1))
	rasterx.AddCircle(d.X, d.Y, r, c.filler)
	c.filler.Draw()
}
