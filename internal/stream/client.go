package stream

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	log "github.com/sirupsen/logrus"

	"github.com/fkcurrie/ledmatrix-viewer/internal/display"
	"github.com/fkcurrie/ledmatrix-viewer/internal/frame"
	"github.com/fkcurrie/ledmatrix-viewer/internal/indicator"
	"github.com/fkcurrie/ledmatrix-viewer/internal/types"
)

// ErrAlreadyStarted is returned by a second call to Start
var ErrAlreadyStarted = errors.New("client already started")

// Dialer opens WebSocket connections; *websocket.Dialer satisfies it
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

// Timer is a cancelable one-shot callback; *time.Timer satisfies it
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f to run once after d
type AfterFunc func(d time.Duration, f func()) Timer

// Stats counts what the client has done since Start
type Stats struct {
	Attempts     uint64
	Connects     uint64
	Reconnects   uint64
	Retries      uint64
	Frames       uint64
	DecodeErrors uint64
	RenderErrors uint64
}

type eventKind int

const (
	eventOpen eventKind = iota
	eventMessage
	eventClose
	eventRetry
	eventReconnect
)

type event struct {
	kind    eventKind
	gen     uint64
	conn    *websocket.Conn
	payload []byte
	err     error
}

// Client represents a frame stream client. A single loop goroutine owns the
// connection, the retry timer and the state; every other goroutine talks to
// it through the events channel.
type Client struct {
	cfg       types.StreamConfig
	renderer  display.Renderer
	dialer    Dialer
	afterFunc AfterFunc
	indicator indicator.Indicator
	onState   func(types.ConnectionState)

	events chan event
	done   chan struct{}
	state  atomic.Int32

	// mu guards ctx and cancel, which are nil until Start
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc

	attempts, connects, reconnects, retries atomic.Uint64
	frames, decodeErrors, renderErrors      atomic.Uint64

	// loop-owned
	conn         *websocket.Conn
	gen          uint64
	retry        Timer
	retrySeq     uint64
	reconnecting bool
	session      ulid.ULID
}

// Option configures a Client
type Option func(*Client)

// WithDialer replaces the default gorilla dialer
func WithDialer(d Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// WithAfterFunc replaces time.AfterFunc for the retry timer
func WithAfterFunc(f AfterFunc) Option {
	return func(c *Client) { c.afterFunc = f }
}

// WithIndicator mirrors the connected state onto ind
func WithIndicator(ind indicator.Indicator) Option {
	return func(c *Client) { c.indicator = ind }
}

// WithStateHook calls f on the loop goroutine after every state change
func WithStateHook(f func(types.ConnectionState)) Option {
	return func(c *Client) { c.onState = f }
}

// NewClient creates a new frame stream client that renders with r
func NewClient(cfg types.StreamConfig, r display.Renderer, opts ...Option) *Client {
	c := &Client{
		cfg:      cfg,
		renderer: r,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		afterFunc: func(d time.Duration, f func()) Timer {
			return time.AfterFunc(d, f)
		},
		indicator: indicator.Noop{},
		events:    make(chan event),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start starts the event loop and the first connection attempt
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		return ErrAlreadyStarted
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	go c.loop()
	return nil
}

// Stop closes the connection, cancels any pending retry and waits for the
// loop to exit. It is safe to call more than once.
func (c *Client) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-c.done
}

// Done is closed once the loop has exited
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Reconnect asks for an immediate connection attempt. It does nothing unless
// the client is disconnected; a pending retry stays pending until the
// attempt opens.
func (c *Client) Reconnect() {
	c.mu.Lock()
	started := c.cancel != nil
	c.mu.Unlock()

	if !started {
		return
	}
	c.send(event{kind: eventReconnect})
}

// State returns the current connection state
func (c *Client) State() types.ConnectionState {
	return types.ConnectionState(c.state.Load())
}

// Stats returns a snapshot of the client counters
func (c *Client) Stats() Stats {
	return Stats{
		Attempts:     c.attempts.Load(),
		Connects:     c.connects.Load(),
		Reconnects:   c.reconnects.Load(),
		Retries:      c.retries.Load(),
		Frames:       c.frames.Load(),
		DecodeErrors: c.decodeErrors.Load(),
		RenderErrors: c.renderErrors.Load(),
	}
}

func (c *Client) loop() {
	defer close(c.done)

	c.connect()
	for {
		select {
		case <-c.ctx.Done():
			c.shutdown()
			return
		case ev := <-c.events:
			c.handle(ev)
		}
	}
}

// send delivers ev to the loop, giving up once the client is stopping
func (c *Client) send(ev event) bool {
	select {
	case c.events <- ev:
		return true
	case <-c.ctx.Done():
		return false
	}
}

func (c *Client) handle(ev event) {
	switch ev.kind {
	case eventOpen:
		c.handleOpen(ev)
	case eventMessage:
		if ev.gen == c.gen {
			c.handleMessage(ev.payload)
		}
	case eventClose:
		c.handleClose(ev)
	case eventRetry:
		c.handleRetry(ev)
	case eventReconnect:
		if c.State() != types.StateDisconnected {
			c.logger().WithField("state", c.State()).Debug("Ignoring reconnect request.")
			return
		}
		c.logger().Info("Reconnect requested.")
		c.connect()
	}
}

// connect starts one dial attempt in the background
func (c *Client) connect() {
	c.gen++
	gen := c.gen
	c.session = ulid.Make()
	c.attempts.Add(1)
	c.setState(types.StateConnecting)
	c.logger().Debug("Connecting to frame stream.")

	go func() {
		conn, _, err := c.dialer.DialContext(c.ctx, c.cfg.Endpoint, nil)
		if err != nil {
			c.send(event{kind: eventClose, gen: gen, err: err})
			return
		}
		if !c.send(event{kind: eventOpen, gen: gen, conn: conn}) {
			conn.Close()
		}
	}()
}

func (c *Client) handleOpen(ev event) {
	if ev.gen != c.gen || c.conn != nil {
		ev.conn.Close()
		return
	}

	c.conn = ev.conn
	if c.cfg.ReadLimit > 0 {
		c.conn.SetReadLimit(c.cfg.ReadLimit)
	}

	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	reconnected := c.reconnecting
	c.reconnecting = false

	c.connects.Add(1)
	c.setState(types.StateConnected)
	if reconnected {
		c.reconnects.Add(1)
		c.logger().Info("Socket reconnected.")
	} else {
		c.logger().Info("Socket is open.")
	}

	go c.readPump(ev.gen, ev.conn)
}

func (c *Client) handleMessage(payload []byte) {
	f, err := frame.Decode(payload)
	if err != nil {
		c.decodeErrors.Add(1)
		c.logger().WithFields(log.Fields{
			"error": err,
			"bytes": len(payload),
		}).Warn("Dropping malformed frame.")
		return
	}

	if err := c.renderer.Render(f); err != nil {
		c.renderErrors.Add(1)
		c.logger().WithFields(log.Fields{
			"error": err,
			"rows":  f.Rows(),
			"cols":  f.Cols(),
		}).Warn("Frame render failed.")
		return
	}
	c.frames.Add(1)
}

func (c *Client) handleClose(ev event) {
	if ev.gen != c.gen {
		return
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.setState(types.StateDisconnected)

	entry := c.logger()
	if ev.err != nil {
		entry = entry.WithField("error", ev.err)
	}
	entry.Info("Socket closed.")

	c.scheduleRetry()
}

// scheduleRetry arms the retry timer unless one is already outstanding
func (c *Client) scheduleRetry() {
	if c.retry != nil {
		c.logger().Debug("Retry already pending.")
		return
	}

	c.reconnecting = true
	c.retrySeq++
	seq := c.retrySeq
	c.retries.Add(1)
	c.retry = c.afterFunc(c.cfg.ReconnectDelay, func() {
		c.send(event{kind: eventRetry, gen: seq})
	})
	c.logger().WithField("delay", c.cfg.ReconnectDelay).Debug("Retry scheduled.")
}

func (c *Client) handleRetry(ev event) {
	// A timer stopped after it already fired can still deliver its event
	if c.retry == nil || ev.gen != c.retrySeq {
		return
	}
	c.retry = nil

	if c.State() != types.StateDisconnected {
		// the attempt in flight decides what happens next
		return
	}
	c.connect()
}

// readPump forwards messages from conn to the loop until the connection fails
func (c *Client) readPump(gen uint64, conn *websocket.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithField("error", err).Debug("Unexpected close.")
			}
			c.send(event{kind: eventClose, gen: gen, err: err})
			return
		}
		if !c.send(event{kind: eventMessage, gen: gen, payload: message}) {
			return
		}
	}
}

func (c *Client) shutdown() {
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	if c.conn != nil {
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.conn.Close()
		c.conn = nil
	}
	c.setState(types.StateDisconnected)
	c.logger().Info("Stream client stopped.")
}

func (c *Client) setState(s types.ConnectionState) {
	prev := types.ConnectionState(c.state.Swap(int32(s)))
	if prev == s {
		return
	}

	if prev == types.StateConnected || s == types.StateConnected {
		if err := c.indicator.Set(s == types.StateConnected); err != nil {
			log.WithField("error", err).Warn("Failed to update connection indicator.")
		}
	}
	if c.onState != nil {
		c.onState(s)
	}
}

func (c *Client) logger() *log.Entry {
	return log.WithFields(log.Fields{
		"endpoint": c.cfg.Endpoint,
		"session":  c.session.String(),
	})
}
