// Package stream owns the connection to the message feed: it opens one
// transport subscription at a time, decodes frames for the View, and
// re-establishes the connection after terminal failures.
package stream

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/feedwatch/feedwatch/internal/client"
	"github.com/feedwatch/feedwatch/internal/feed"
)

var (
	// ErrTransportConstruction is returned by Connect when the transport
	// could not even start an attempt (bad URL, unsupported scheme).
	ErrTransportConstruction = errors.New("stream: transport construction failed")
	// ErrClosed is returned by Connect after Close.
	ErrClosed = errors.New("stream: controller closed")

	errStale = errors.New("stream: no activity within stale timeout")
)

// Config holds the endpoint and the timing policy of a Controller.
type Config struct {
	URL string
	// ReconnectDelay is the fixed wait between a terminal error and the
	// automatic reconnect attempt.
	ReconnectDelay time.Duration
	// VisibilityDelay is the wait between regaining focus and reconnecting.
	VisibilityDelay time.Duration
	// TickInterval is how often the uptime display is refreshed.
	TickInterval time.Duration
	// StaleTimeout closes an open stream that has been silent this long.
	// Zero disables the check.
	StaleTimeout time.Duration
}

// Option customises a Controller.
type Option func(*Controller)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(clk clock.Clock) Option {
	return func(c *Controller) { c.clock = clk }
}

// WithLogger sets the logger used for lifecycle events and dropped frames.
func WithLogger(logger *zerolog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.log = logger
		}
	}
}

type session struct {
	id    uuid.UUID
	start time.Time
}

// Controller is the StreamConnectionController. All transitions happen
// under one mutex; View updates are queued while it is held and delivered,
// in order, after it is released.
type Controller struct {
	cfg       Config
	transport client.Transport
	view      View
	clock     clock.Clock
	log       *zerolog.Logger

	mu      sync.Mutex
	viewMu  sync.Mutex
	pending []func(View)

	state    State
	sub      client.Subscription
	gen      uint64
	count    int
	session  *session
	shutdown bool

	// closedEpoch changes every time the controller enters Closed, so a
	// reconnect timer scheduled for an earlier loss is a no-op.
	closedEpoch     uint64
	reconnectTimer  *clock.Timer
	visibilityTimer *clock.Timer
	staleTimer      *clock.Timer
	staleSeq        uint64

	ticker     *clock.Ticker
	tickerDone chan struct{}
}

// New creates an idle Controller. Nothing is opened until Connect.
func New(cfg Config, transport client.Transport, view View, opts ...Option) *Controller {
	if view == nil {
		view = NopView{}
	}
	nop := zerolog.Nop()
	c := &Controller{
		cfg:       cfg,
		transport: transport,
		view:      view,
		clock:     clock.New(),
		log:       &nop,
		state:     Idle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connected reports whether the stream is open.
func (c *Controller) Connected() bool {
	return c.State() == Open
}

// Count returns the number of messages received since the last clear.
func (c *Controller) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// Elapsed returns the current session uptime as m:ss, or feed.Placeholder.
func (c *Controller) Elapsed() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsedLocked()
}

// Connect opens a subscription unless one is already connecting or open.
// A construction failure is reported as "Connection Failed", leaves the
// controller Idle and is not retried.
func (c *Controller) Connect() error {
	c.mu.Lock()
	defer c.unlock()
	return c.connectLocked("user")
}

// Disconnect closes the subscription, if any, and cancels pending automatic
// reconnects. Displayed messages and the count are kept. Calling it again
// has no further effect.
func (c *Controller) Disconnect() {
	c.mu.Lock()
	defer c.unlock()
	if c.shutdown {
		return
	}

	c.stopTimer(&c.reconnectTimer)
	c.stopTimer(&c.visibilityTimer)
	if c.sub != nil {
		c.log.Info().Str("url", c.cfg.URL).Str("state", c.state.String()).Msg("disconnecting")
	}
	c.dropSubscription()
	c.endSession()
	c.state = Idle
	c.status(StatusDisconnected, false)
}

// Toggle is the connect/disconnect control: it disconnects an open stream,
// ignores presses while a connection attempt is in flight, and connects
// otherwise.
func (c *Controller) Toggle() error {
	switch c.State() {
	case Open:
		c.Disconnect()
		return nil
	case Connecting:
		return nil
	default:
		return c.Connect()
	}
}

// ClearMessages resets the count and clears the View. The connection is
// left untouched.
func (c *Controller) ClearMessages() {
	c.mu.Lock()
	defer c.unlock()
	c.count = 0
	c.emit(func(v View) {
		v.Clear()
		v.UpdateCount(0)
	})
}

// VisibilityRegained schedules a reconnect after VisibilityDelay when the
// stream is not connected. The timer re-checks the state when it fires.
func (c *Controller) VisibilityRegained() {
	c.mu.Lock()
	defer c.unlock()
	if c.shutdown || c.state == Open || c.state == Connecting {
		return
	}
	c.stopTimer(&c.visibilityTimer)
	c.visibilityTimer = c.clock.AfterFunc(c.cfg.VisibilityDelay, c.visibilityFired)
}

// Close tears the controller down: the subscription, every timer and the
// uptime ticker are released and later calls are ignored.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.unlock()
	if c.shutdown {
		return
	}
	c.shutdown = true
	c.stopTimer(&c.reconnectTimer)
	c.stopTimer(&c.visibilityTimer)
	c.dropSubscription()
	c.endSession()
	c.pending = nil
	c.state = Idle
}

func (c *Controller) connectLocked(reason string) error {
	if c.shutdown {
		return ErrClosed
	}
	if c.state == Connecting || c.state == Open {
		return nil
	}

	c.stopTimer(&c.reconnectTimer)
	c.gen++
	sub, err := c.transport.Open(c.cfg.URL, c.handlers(c.gen))
	if err != nil {
		c.state = Idle
		c.log.Error().Err(err).Str("url", c.cfg.URL).Msg("failed to create stream transport")
		c.status(StatusFailed, false)
		return fmt.Errorf("%w: %w", ErrTransportConstruction, err)
	}

	c.sub = sub
	c.state = Connecting
	c.log.Info().Str("url", c.cfg.URL).Str("reason", reason).Msg("connecting")
	c.status(StatusConnecting, false)
	return nil
}

func (c *Controller) handlers(gen uint64) client.Handlers {
	return client.Handlers{
		OnOpen:    func() { c.handleOpen(gen) },
		OnMessage: func(data string) { c.handleMessage(gen, data) },
		OnError:   func(err error, terminal bool) { c.handleError(gen, err, terminal) },
	}
}

// current reports whether gen belongs to the live subscription.
func (c *Controller) current(gen uint64) bool {
	return !c.shutdown && c.sub != nil && gen == c.gen
}

func (c *Controller) handleOpen(gen uint64) {
	c.mu.Lock()
	defer c.unlock()
	if !c.current(gen) {
		return
	}

	c.state = Open
	c.session = &session{id: uuid.New(), start: c.clock.Now()}
	c.log.Info().Str("url", c.cfg.URL).Str("session", c.session.id.String()).Msg("connected to message stream")
	c.status(StatusConnected, true)
	c.startTicker()
	c.emitElapsed()
	c.armStale(gen)
}

func (c *Controller) handleMessage(gen uint64, data string) {
	c.mu.Lock()
	defer c.unlock()
	if !c.current(gen) {
		return
	}
	c.armStale(gen)

	msg, err := feed.Decode([]byte(data))
	if err != nil {
		c.log.Warn().Err(err).Int("bytes", len(data)).Msg("failed to parse message")
		return
	}

	c.count++
	n := c.count
	c.emit(func(v View) {
		v.AppendMessage(msg)
		v.UpdateCount(n)
	})
}

func (c *Controller) handleError(gen uint64, err error, terminal bool) {
	c.mu.Lock()
	defer c.unlock()
	if !c.current(gen) {
		return
	}

	if !terminal {
		// The transport is retrying on its own; nothing changes here.
		c.log.Warn().Err(err).Str("state", c.state.String()).Msg("stream error, transport retrying")
		return
	}
	c.loseLocked(err)
}

// loseLocked moves to Closed and schedules the fixed-delay reconnect.
func (c *Controller) loseLocked(cause error) {
	ev := c.log.Warn().Err(cause).Str("url", c.cfg.URL).Dur("retry_in", c.cfg.ReconnectDelay)
	if c.session != nil {
		ev = ev.Str("session", c.session.id.String())
	}
	ev.Msg("connection lost")

	c.dropSubscription()
	c.endSession()
	c.state = Closed
	c.status(StatusLost, false)

	c.closedEpoch++
	epoch := c.closedEpoch
	c.stopTimer(&c.reconnectTimer)
	c.reconnectTimer = c.clock.AfterFunc(c.cfg.ReconnectDelay, func() { c.reconnectFired(epoch) })
}

func (c *Controller) reconnectFired(epoch uint64) {
	c.mu.Lock()
	defer c.unlock()
	if c.shutdown || c.state != Closed || epoch != c.closedEpoch {
		return
	}
	c.connectLocked("reconnect")
}

func (c *Controller) visibilityFired() {
	c.mu.Lock()
	defer c.unlock()
	if c.state == Open || c.state == Connecting {
		return
	}
	c.connectLocked("visibility")
}

func (c *Controller) armStale(gen uint64) {
	if c.cfg.StaleTimeout <= 0 || c.state != Open {
		return
	}
	c.stopTimer(&c.staleTimer)
	c.staleSeq++
	seq := c.staleSeq
	c.staleTimer = c.clock.AfterFunc(c.cfg.StaleTimeout, func() { c.staleFired(gen, seq) })
}

func (c *Controller) staleFired(gen, seq uint64) {
	c.mu.Lock()
	defer c.unlock()
	if !c.current(gen) || c.state != Open || seq != c.staleSeq {
		return
	}
	c.loseLocked(errStale)
}

func (c *Controller) dropSubscription() {
	c.stopTimer(&c.staleTimer)
	if c.sub == nil {
		return
	}
	if err := c.sub.Close(); err != nil {
		c.log.Debug().Err(err).Msg("closing subscription")
	}
	c.sub = nil
}

func (c *Controller) endSession() {
	c.stopTicker()
	if c.session == nil {
		return
	}
	c.session = nil
	c.emitElapsed()
}

func (c *Controller) startTicker() {
	if c.ticker != nil || c.cfg.TickInterval <= 0 {
		return
	}
	c.ticker = c.clock.Ticker(c.cfg.TickInterval)
	c.tickerDone = make(chan struct{})
	go c.tickLoop(c.ticker, c.tickerDone)
}

func (c *Controller) stopTicker() {
	if c.ticker == nil {
		return
	}
	c.ticker.Stop()
	close(c.tickerDone)
	c.ticker = nil
	c.tickerDone = nil
}

func (c *Controller) tickLoop(t *clock.Ticker, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-t.C:
			c.mu.Lock()
			if c.session != nil {
				c.emitElapsed()
			}
			c.unlock()
		}
	}
}

func (c *Controller) stopTimer(t **clock.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

func (c *Controller) elapsedLocked() string {
	if c.session == nil {
		return feed.Placeholder
	}
	return feed.FormatElapsed(c.clock.Since(c.session.start))
}

func (c *Controller) emitElapsed() {
	s := c.elapsedLocked()
	c.emit(func(v View) { v.UpdateElapsed(s) })
}

func (c *Controller) status(label string, connected bool) {
	c.emit(func(v View) { v.UpdateStatus(label, connected) })
}

func (c *Controller) emit(fn func(View)) {
	c.pending = append(c.pending, fn)
}

// unlock releases mu and then delivers the queued View updates. viewMu is
// taken before mu is released so deliveries keep the order of transitions.
func (c *Controller) unlock() {
	if len(c.pending) == 0 {
		c.mu.Unlock()
		return
	}
	c.viewMu.Lock()
	fx := c.pending
	c.pending = nil
	c.mu.Unlock()
	for _, fn := range fx {
		fn(c.view)
	}
	c.viewMu.Unlock()
}
