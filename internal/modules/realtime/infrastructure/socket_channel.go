package infrastructure

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"courtsync/internal/modules/realtime/application/port"
	"courtsync/internal/modules/realtime/domain"
	"courtsync/internal/shared/metrics"
)

const (
	defaultMinBackoff = time.Second
	defaultMaxBackoff = 30 * time.Second
	readLimit         = 1 << 20
)

// ChannelOptions configures the upstream event channel.
type ChannelOptions struct {
	// URL is the upstream websocket endpoint, ws:// or wss://.
	URL   string
	Token string

	// AutoConnect dials as soon as the channel is built.
	AutoConnect bool

	// OnReconnect fires after every re-established connection, never on
	// the first connect. The attempt counter is cumulative for the life
	// of the channel.
	OnReconnect func(attempt int)

	// OnStateChange observes every transition. Optional.
	OnStateChange func(state domain.ConnectionState)

	MinBackoff time.Duration
	MaxBackoff time.Duration

	Dialer *websocket.Dialer
}

// SocketChannel keeps a single upstream websocket alive, redialing with
// exponential backoff, and feeds every decoded envelope into the sink.
type SocketChannel struct {
	opts ChannelOptions
	sink port.EventSink

	mu          sync.Mutex
	state       domain.ConnectionState
	socketID    string
	connections int
	attempts    int
	conn        *websocket.Conn
	running     bool
	closed      bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSocketChannel(opts ChannelOptions, sink port.EventSink) *SocketChannel {
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = defaultMinBackoff
	}
	if opts.MaxBackoff < opts.MinBackoff {
		opts.MaxBackoff = defaultMaxBackoff
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &SocketChannel{
		opts:   opts,
		sink:   sink,
		state:  domain.StateIdle,
		ctx:    ctx,
		cancel: cancel,
	}
	if opts.AutoConnect {
		c.Connect()
	}
	return c
}

// Connect starts the dial loop. Calling it again while the loop runs, or
// after Close, is a no-op.
func (c *SocketChannel) Connect() {
	c.mu.Lock()
	if c.running || c.closed {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.mu.Unlock()

	c.wg.Add(1)
	go c.run()
}

// Close tears the channel down for good. The state lands on idle and no
// further redial happens.
func (c *SocketChannel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	conn := c.conn
	c.mu.Unlock()

	c.cancel()
	if conn != nil {
		_ = conn.Close()
	}
	c.wg.Wait()
	c.setState(domain.StateIdle)
}

func (c *SocketChannel) State() domain.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SocketID is the identifier of the current connection. Each successful
// dial mints a new one.
func (c *SocketChannel) SocketID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.socketID
}

// Reconnects reports how many times the channel has re-established a
// dropped connection.
func (c *SocketChannel) Reconnects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

func (c *SocketChannel) run() {
	defer c.wg.Done()

	backoff := c.opts.MinBackoff
	for {
		if c.ctx.Err() != nil {
			return
		}
		c.setState(domain.StateConnecting)

		header := http.Header{}
		if c.opts.Token != "" {
			header.Set("Authorization", "Bearer "+c.opts.Token)
		}
		conn, res, err := c.opts.Dialer.DialContext(c.ctx, c.opts.URL, header)
		if res != nil && res.Body != nil {
			_ = res.Body.Close()
		}
		if err != nil {
			slog.Warn("upstream dial failed", slog.String("url", c.opts.URL), slog.Any("error", err))
			c.setState(domain.StateDisconnected)
			if !c.sleep(backoff) {
				return
			}
			backoff = nextBackoff(backoff, c.opts.MaxBackoff)
			continue
		}
		backoff = c.opts.MinBackoff

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			_ = conn.Close()
			return
		}
		c.conn = conn
		c.socketID = uuid.NewString()
		c.state = domain.StateConnected
		c.connections++
		reconnect := c.connections > 1
		if reconnect {
			c.attempts++
		}
		attempt := c.attempts
		socketID := c.socketID
		c.mu.Unlock()

		c.notifyState(domain.StateConnected)
		slog.Info("upstream connected", slog.String("socket", socketID), slog.Bool("reconnect", reconnect))
		if reconnect {
			metrics.SocketReconnects.Inc()
			c.fireReconnect(attempt)
		}

		c.readLoop(conn)

		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		if c.ctx.Err() != nil {
			return
		}
		c.setState(domain.StateDisconnected)
		if !c.sleep(backoff) {
			return
		}
		backoff = nextBackoff(backoff, c.opts.MaxBackoff)
	}
}

func (c *SocketChannel) readLoop(conn *websocket.Conn) {
	conn.SetReadLimit(readLimit)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("upstream read error", slog.Any("error", err))
			}
			_ = conn.Close()
			return
		}
		env, err := domain.DecodeEnvelope(data)
		if err != nil {
			metrics.EventsDropped.WithLabelValues("decode").Inc()
			slog.Warn("upstream frame rejected", slog.Any("error", err))
			continue
		}
		if err := c.sink.Dispatch(c.ctx, env); err != nil {
			slog.Warn("event dispatch failed", slog.String("event", env.Name), slog.Any("error", err))
		}
	}
}

// fireReconnect runs the resync callback. A panic inside the callback
// must not take down the dial loop.
func (c *SocketChannel) fireReconnect(attempt int) {
	if c.opts.OnReconnect == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Error("reconnect callback panic", slog.Int("attempt", attempt), slog.Any("error", r))
		}
	}()
	c.opts.OnReconnect(attempt)
}

func (c *SocketChannel) setState(state domain.ConnectionState) {
	c.mu.Lock()
	if c.state == state || (c.closed && state != domain.StateIdle) {
		c.mu.Unlock()
		return
	}
	c.state = state
	c.mu.Unlock()
	c.notifyState(state)
}

func (c *SocketChannel) notifyState(state domain.ConnectionState) {
	if c.opts.OnStateChange != nil {
		c.opts.OnStateChange(state)
	}
}

func (c *SocketChannel) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-c.ctx.Done():
		return false
	}
}

func nextBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		return max
	}
	return next
}
