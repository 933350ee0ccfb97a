// Package indicator mirrors the stream connection state onto an output line.
package indicator

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/warthog618/go-gpiocdev"
)

// Indicator shows whether the frame stream is connected
type Indicator interface {
	Set(on bool) error
	Close() error
}

// Noop is used when no indicator is configured
type Noop struct{}

func (Noop) Set(bool) error { return nil }
func (Noop) Close() error   { return nil }

// GPIO drives a single output line high while connected
type GPIO struct {
	mu     sync.Mutex
	line   *gpiocdev.Line
	chip   string
	offset int
}

// NewGPIO requests offset on chip as an output, initially low
func NewGPIO(chip string, offset int) (*GPIO, error) {
	line, err := gpiocdev.RequestLine(chip, offset, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("failed to request line %d on %s: %w", offset, chip, err)
	}

	log.WithFields(log.Fields{
		"chip": chip,
		"line": offset,
	}).Info("Connection indicator ready.")
	return &GPIO{line: line, chip: chip, offset: offset}, nil
}

// Set drives the line high when on is true
func (g *GPIO) Set(on bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.line == nil {
		return fmt.Errorf("indicator %s:%d is closed", g.chip, g.offset)
	}
	value := 0
	if on {
		value = 1
	}
	if err := g.line.SetValue(value); err != nil {
		return fmt.Errorf("failed to set value: %w", err)
	}
	return nil
}

// Close drives the line low and releases it
func (g *GPIO) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.line == nil {
		return nil
	}
	g.line.SetValue(0)
	err := g.line.Close()
	g.line = nil
	return err
}
