package display

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/fkcurrie/ledmatrix-viewer/internal/types"
)

// Pattern is a named full-grid test frame
type Pattern struct {
	Name  string
	Frame types.Frame
}

// TestPatterns returns solid red, green and blue frames, an alternating
// white/black frame and an all-black frame, each width x height
func TestPatterns(width, height int) []Pattern {
	solid := func(p types.Pixel) types.Frame {
		f := types.NewFrame(height, width)
		for j := range f {
			for i := range f[j] {
				f[j][i] = p
			}
		}
		return f
	}

	alternating := types.NewFrame(height, width)
	for j := range alternating {
		for i := range alternating[j] {
			if (j*width+i)%2 == 0 {
				alternating[j][i] = types.Pixel{R: 255, G: 255, B: 255}
			}
		}
	}

	return []Pattern{
		{"red", solid(types.Pixel{R: 255})},
		{"green", solid(types.Pixel{G: 255})},
		{"blue", solid(types.Pixel{B: 255})},
		{"alternating", alternating},
		{"clear", solid(types.Pixel{})},
	}
}

// RunTestPatterns renders each pattern in turn, holding it for hold
func RunTestPatterns(ctx context.Context, r Renderer, width, height int, hold time.Duration) error {
	for _, p := range TestPatterns(width, height) {
		log.WithField("pattern", p.Name).Info("Showing test pattern.")
		if err := r.Render(p.Frame); err != nil {
			return err
		}
		select {
		case <-time.After(hold):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
