package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/fkcurrie/ledmatrix-viewer/internal/types"
)

// DefaultEndpoint is the frame stream address used when none is configured
const DefaultEndpoint = "ws://localhost:8000/ws"

// Config represents the application configuration
type Config struct {
	Display   types.DisplayConfig
	Stream    types.StreamConfig
	Output    types.OutputConfig
	Indicator types.IndicatorConfig
	Discovery types.DiscoveryConfig
}

// fileConfig is the on-disk form; durations are written as strings like "500ms"
type fileConfig struct {
	Display   types.DisplayConfig   `json:"display"`
	Stream    fileStreamConfig      `json:"stream"`
	Output    fileOutputConfig      `json:"output"`
	Indicator types.IndicatorConfig `json:"indicator"`
	Discovery types.DiscoveryConfig `json:"discovery"`
}

type fileStreamConfig struct {
	Endpoint         string `json:"endpoint"`
	ReconnectDelay   string `json:"reconnectDelay"`
	HandshakeTimeout string `json:"handshakeTimeout"`
	ReadLimit        int64  `json:"readLimit"`
}

type fileOutputConfig struct {
	PNGPath        string `json:"pngPath"`
	PNGMinInterval string `json:"pngMinInterval"`
	Window         bool   `json:"window"`
	WindowScale    int    `json:"windowScale"`
	HTTPAddr       string `json:"httpAddr"`
}

// LoadConfig loads the configuration from a file, starting from the defaults
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	cfg := DefaultConfig()
	fc := fileConfig{
		Display:   cfg.Display,
		Indicator: cfg.Indicator,
		Discovery: cfg.Discovery,
		Stream: fileStreamConfig{
			Endpoint:  cfg.Stream.Endpoint,
			ReadLimit: cfg.Stream.ReadLimit,
		},
		Output: fileOutputConfig{
			WindowScale: cfg.Output.WindowScale,
		},
	}
	if err := json.NewDecoder(file).Decode(&fc); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}

	cfg.Display = fc.Display
	cfg.Indicator = fc.Indicator
	cfg.Discovery = fc.Discovery
	cfg.Stream.Endpoint = fc.Stream.Endpoint
	cfg.Stream.ReadLimit = fc.Stream.ReadLimit
	cfg.Output.PNGPath = fc.Output.PNGPath
	cfg.Output.Window = fc.Output.Window
	cfg.Output.WindowScale = fc.Output.WindowScale
	cfg.Output.HTTPAddr = fc.Output.HTTPAddr

	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"stream.reconnectDelay", fc.Stream.ReconnectDelay, &cfg.Stream.ReconnectDelay},
		{"stream.handshakeTimeout", fc.Stream.HandshakeTimeout, &cfg.Stream.HandshakeTimeout},
		{"output.pngMinInterval", fc.Output.PNGMinInterval, &cfg.Output.PNGMinInterval},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.name, d.raw, err)
		}
		*d.dst = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Display: types.DisplayConfig{
			Width:         128,
			Height:        32,
			Strategy:      types.StrategyCanvas,
			LEDSize:       8,
			LEDSpace:      2,
			MinBrightness: 40,
			GlowThreshold: 100,
			GlowBlur:      15,
			Background:    "#000000",
		},
		Stream: types.StreamConfig{
			Endpoint:       DefaultEndpoint,
			ReconnectDelay: 500 * time.Millisecond,
			ReadLimit:      1 << 20,
		},
		Output: types.OutputConfig{
			PNGMinInterval: time.Second,
			WindowScale:    1,
		},
		Indicator: types.IndicatorConfig{
			Chip: "gpiochip0",
			Line: 17,
		},
		Discovery: types.DiscoveryConfig{
			Port:    8000,
			Path:    "/ws",
			Timeout: 2,
		},
	}
}

// Validate checks the configuration for values the client cannot run with
func (c *Config) Validate() error {
	d := c.Display
	if d.Width <= 0 || d.Height <= 0 {
		return fmt.Errorf("invalid dimensions: %dx%d", d.Width, d.Height)
	}
	if d.Strategy != types.StrategyCanvas && d.Strategy != types.StrategyCells {
		return fmt.Errorf("unknown strategy %q", d.Strategy)
	}
	if d.LEDSize <= 0 || d.LEDSpace < 0 {
		return fmt.Errorf("invalid LED geometry: size %v space %v", d.LEDSize, d.LEDSpace)
	}
	if d.GlowBlur < 0 {
		return fmt.Errorf("glow blur must not be negative")
	}
	if _, err := colorful.Hex(d.Background); err != nil {
		return fmt.Errorf("invalid background colour %q: %w", d.Background, err)
	}

	u, err := url.Parse(c.Stream.Endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint %q: %w", c.Stream.Endpoint, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("endpoint %q must use ws or wss", c.Stream.Endpoint)
	}
	if c.Stream.ReconnectDelay <= 0 {
		return fmt.Errorf("reconnect delay must be positive")
	}
	if c.Stream.HandshakeTimeout < 0 {
		return fmt.Errorf("handshake timeout must not be negative")
	}
	if c.Output.WindowScale < 1 {
		return fmt.Errorf("window scale must be at least 1")
	}
	if c.Discovery.Timeout <= 0 {
		return fmt.Errorf("discovery timeout must be positive")
	}
	if c.Discovery.Port <= 0 || c.Discovery.Port > 65535 {
		return fmt.Errorf("invalid discovery port %d", c.Discovery.Port)
	}
	return nil
}
