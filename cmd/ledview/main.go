package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	log "github.com/sirupsen/logrus"

	"github.com/fkcurrie/ledmatrix-viewer/internal/config"
	"github.com/fkcurrie/ledmatrix-viewer/internal/discovery"
	"github.com/fkcurrie/ledmatrix-viewer/internal/display"
	"github.com/fkcurrie/ledmatrix-viewer/internal/indicator"
	"github.com/fkcurrie/ledmatrix-viewer/internal/stream"
	"github.com/fkcurrie/ledmatrix-viewer/internal/types"
	"github.com/fkcurrie/ledmatrix-viewer/internal/window"
)

var (
	configPath  = flag.String("config", "", "Path to JSON configuration file")
	strategy    = flag.String("strategy", "", "Rendering strategy: canvas or cells")
	endpoint    = flag.String("endpoint", "", "Frame stream WebSocket URL")
	debugLog    = flag.Bool("debug_log", false, "Enable debug logging")
	logFile     = flag.String("log_file", "", "Write logs to this file instead of stderr")
	pngPath     = flag.String("png", "", "Save the canvas to this PNG file")
	showWindow  = flag.Bool("window", false, "Show the canvas in a desktop window")
	httpAddr    = flag.String("http", "", "Serve /health and /snapshot.png on this address")
	discover    = flag.Bool("discover", false, "Scan the local network for frame endpoints and exit")
	testPattern = flag.Bool("test_pattern", false, "Show test patterns instead of connecting")
)

// viewer holds everything main wires together
type viewer struct {
	cfg      *config.Config
	renderer display.Renderer
	canvas   *display.Canvas
	terminal *display.TerminalMatrix
	win      *window.Window
	ind      indicator.Indicator
}

func main() {
	flag.Parse()

	if err := run(); err != nil {
		log.WithField("error", err).Fatal("Viewer stopped.")
	}
}

// run wires and runs the viewer; its deferred cleanup has finished by the
// time an error reaches main
func run() error {
	if *debugLog {
		log.SetLevel(log.DebugLevel)
	}
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if *discover {
		runDiscovery(cfg)
		return nil
	}

	// Route logs away from the terminal
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
		log.SetOutput(f)
		defer log.SetOutput(os.Stderr)
	} else if cfg.Display.Strategy == types.StrategyCells {
		// the terminal is the display
		log.SetOutput(io.Discard)
		defer log.SetOutput(os.Stderr)
	}

	v, err := newViewer(cfg)
	if err != nil {
		return fmt.Errorf("failed to create display: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if v.terminal != nil {
		go func() {
			select {
			case <-v.terminal.Interrupted():
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	runner := v.runStream
	if *testPattern {
		runner = v.runTestPatterns
	}
	return v.serve(ctx, cancel, runner)
}

// serve runs fn until it returns and then releases the viewer, whatever the
// outcome. With a window, ebiten takes the calling goroutine and fn runs
// beside it.
func (v *viewer) serve(ctx context.Context, cancel context.CancelFunc, fn func(context.Context) error) error {
	defer v.Close()

	if v.win == nil {
		return fn(ctx)
	}

	errc := make(chan error, 1)
	go func() {
		errc <- fn(ctx)
		v.win.Close()
	}()
	if err := v.win.Run(); err != nil {
		log.WithField("error", err).Error("Window failed.")
	}
	cancel()
	return <-errc
}

// loadConfig reads the config file if one is given and applies flag overrides
func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if *strategy != "" {
		cfg.Display.Strategy = types.Strategy(*strategy)
	}
	if *endpoint != "" {
		cfg.Stream.Endpoint = *endpoint
	}
	if *pngPath != "" {
		cfg.Output.PNGPath = *pngPath
	}
	if *showWindow {
		cfg.Output.Window = true
	}
	if *httpAddr != "" {
		cfg.Output.HTTPAddr = *httpAddr
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newViewer(cfg *config.Config) (*viewer, error) {
	v := &viewer{cfg: cfg, ind: indicator.Noop{}}

	switch cfg.Display.Strategy {
	case types.StrategyCanvas:
		canvas, err := display.NewCanvas(cfg.Display)
		if err != nil {
			return nil, err
		}
		if cfg.Output.PNGPath != "" {
			canvas.AddPresenter(display.NewPNGWriter(cfg.Output.PNGPath, cfg.Output.PNGMinInterval))
		}
		if cfg.Output.Window {
			v.win = window.New("LED Matrix", canvas.Bounds(), cfg.Output.WindowScale)
			canvas.AddPresenter(v.win)
		}
		v.canvas = canvas
		v.renderer = canvas

	case types.StrategyCells:
		screen, err := tcell.NewScreen()
		if err != nil {
			return nil, fmt.Errorf("failed to create screen: %w", err)
		}
		terminal, err := display.NewTerminalMatrix(screen, cfg.Display.Width, cfg.Display.Height)
		if err != nil {
			return nil, err
		}
		v.terminal = terminal
		v.renderer = display.NewCells(terminal)
	}

	if cfg.Indicator.Enabled {
		ind, err := indicator.NewGPIO(cfg.Indicator.Chip, cfg.Indicator.Line)
		if err != nil {
			log.WithField("error", err).Warn("Connection indicator unavailable.")
		} else {
			v.ind = ind
		}
	}

	log.WithFields(log.Fields{
		"strategy": cfg.Display.Strategy,
		"width":    cfg.Display.Width,
		"height":   cfg.Display.Height,
	}).Info("Display ready.")
	return v, nil
}

// runStream connects to the frame stream and renders until ctx is done
func (v *viewer) runStream(ctx context.Context) error {
	opts := []stream.Option{stream.WithIndicator(v.ind)}
	if v.terminal != nil {
		v.terminal.SetStatus(types.StateDisconnected.String())
		opts = append(opts, stream.WithStateHook(func(s types.ConnectionState) {
			v.terminal.SetStatus(s.String())
		}))
	}

	client := stream.NewClient(v.cfg.Stream, v.renderer, opts...)

	var server *http.Server
	if v.cfg.Output.HTTPAddr != "" {
		var snap snapshotSource
		if v.canvas != nil {
			snap = v.canvas
		}
		server = &http.Server{
			Addr:              v.cfg.Output.HTTPAddr,
			Handler:           newStatusHandler(client, snap),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithField("error", err).Error("Status server failed.")
			}
		}()
		log.WithField("addr", server.Addr).Info("Status server listening.")
	}

	if err := client.Start(ctx); err != nil {
		return err
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-hup:
			client.Reconnect()
		case <-ctx.Done():
			log.Info("Shutting down...")
			client.Stop()
			if server != nil {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					log.WithField("error", err).Warn("Failed to shutdown status server.")
				}
			}
			return nil
		}
	}
}

func (v *viewer) runTestPatterns(ctx context.Context) error {
	if v.terminal != nil {
		v.terminal.SetStatus("test pattern")
	}
	err := display.RunTestPatterns(ctx, v.renderer, v.cfg.Display.Width, v.cfg.Display.Height, 2*time.Second)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (v *viewer) Close() {
	if err := v.ind.Close(); err != nil {
		log.WithField("error", err).Warn("Failed to release connection indicator.")
	}
	if v.terminal != nil {
		v.terminal.Close()
	}
}

func runDiscovery(cfg *config.Config) {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	scanner := discovery.NewScanner(cfg.Discovery)
	results, err := scanner.ScanNetwork(ctx)
	if err != nil {
		log.WithField("error", err).Warn("Scan ended early.")
	}
	if len(results) == 0 {
		fmt.Println("No frame endpoints found.")
		return
	}
	for _, r := range results {
		if r.Rows > 0 {
			fmt.Printf("%s  %dx%d\n", r.Endpoint(cfg.Discovery.Path), r.Cols, r.Rows)
		} else {
			fmt.Println(r.Endpoint(cfg.Discovery.Path))
		}
	}
}
