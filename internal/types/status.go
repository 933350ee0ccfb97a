package types

import (
	"time"
)

// ConnectionState represents where the stream client is in its connection lifecycle
type ConnectionState int32

const (
	// Possible connection states
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
)

// String returns the lower-case name of the state
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	}
	return "unknown"
}

// Strategy selects how frames are painted
type Strategy string

const (
	// StrategyCanvas paints round LED dots onto an image
	StrategyCanvas Strategy = "canvas"
	// StrategyCells recolours a grid of persistent cells
	StrategyCells Strategy = "cells"
)

// DisplayConfig represents the configuration for the display surface
type DisplayConfig struct {
	Width         int
	Height        int
	Strategy      Strategy
	LEDSize       float64
	LEDSpace      float64
	MinBrightness uint8
	GlowThreshold int
	GlowBlur      float64
	Background    string
}

// StreamConfig represents the configuration for the frame stream connection
type StreamConfig struct {
	Endpoint         string
	ReconnectDelay   time.Duration
	HandshakeTimeout time.Duration
	ReadLimit        int64
}

// OutputConfig represents where a rendered canvas goes besides memory
type OutputConfig struct {
	PNGPath        string
	PNGMinInterval time.Duration
	Window         bool
	WindowScale    int
	HTTPAddr       string
}

// IndicatorConfig represents the configuration for the connection indicator LED
type IndicatorConfig struct {
	Enabled bool
	Chip    string
	Line    int
}

// DiscoveryConfig represents the configuration for frame endpoint discovery
type DiscoveryConfig struct {
	Port    int
	Path    string
	Timeout int
}
