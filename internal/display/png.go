package display

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
)

// PNGWriter saves the canvas to a file, at most once per MinInterval
type PNGWriter struct {
	Path        string
	MinInterval time.Duration

	now     func() time.Time
	written time.Time
}

// NewPNGWriter creates a presenter writing to path
func NewPNGWriter(path string, minInterval time.Duration) *PNGWriter {
	return &PNGWriter{
		Path:        path,
		MinInterval: minInterval,
		now:         time.Now,
	}
}

// Present writes img unless the last write was less than MinInterval ago.
// The file is replaced atomically so readers never see a partial image.
func (w *PNGWriter) Present(img *image.RGBA) error {
	now := w.now()
	if !w.written.IsZero() && now.Sub(w.written) < w.MinInterval {
		return nil
	}

	dir := filepath.Dir(w.Path)
	tmp, err := os.CreateTemp(dir, ".ledview-*.png")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode png: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), w.Path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", w.Path, err)
	}

	w.written = now
	log.WithFields(log.Fields{
		"file": w.Path,
	}).Debug("Saved rendering of frame.")
	return nil
}
