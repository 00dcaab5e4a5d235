// Package control implements the bidirectional framed-JSON control channel:
// permission replies, cancel, steering, and mode-change requests go out over
// it; permission requests and command-response correlations come back.
// Reconnection uses exponential backoff so the channel degrades gracefully
// rather than hammering a backend that is down.
package control

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/spoq-dev/spoq/internal/spoqerr"
)

// BackoffConfig configures the reconnect schedule. The control channel is
// treated as best-effort-forever background reconnection: MaxElapsedTime is
// always 0 (never gives up) regardless of the configured value, matching
// the "degrades gracefully" requirement rather than a hard retry ceiling.
type BackoffConfig struct {
	InitialInterval time.Duration
	Multiplier      float64
	MaxInterval     time.Duration
}

// DefaultBackoffConfig is base 1s, factor 2, capped at 30s.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{InitialInterval: time.Second, Multiplier: 2, MaxInterval: 30 * time.Second}
}

// Client is the control-channel connection: one background goroutine owns
// the socket and all reconnection; callers interact only through Send,
// Subscribe, and State.
type Client struct {
	url    string
	dialer Dialer
	logger *zap.Logger
	cfg    BackoffConfig

	writeMu sync.Mutex
	connMu  sync.Mutex
	conn    Conn

	incoming *Broadcaster[Incoming]
	state    *Watch[ConnState]

	pendingMu sync.Mutex
	pending   map[string]chan *CommandResponseFrame
}

// NewClient constructs a Client. It does not dial until Run is called.
func NewClient(url string, dialer Dialer, logger *zap.Logger, cfg BackoffConfig) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		url:      url,
		dialer:   dialer,
		logger:   logger,
		cfg:      cfg,
		incoming: NewBroadcaster[Incoming](),
		state:    NewWatch(ConnState{Status: StatusDisconnected}),
		pending:  make(map[string]chan *CommandResponseFrame),
	}
}

// Subscribe returns a broadcast feed of incoming control-channel frames.
func (c *Client) Subscribe() (Subscription[Incoming], func()) {
	return c.incoming.Subscribe()
}

// State returns the watch over the channel's connection lifecycle.
func (c *Client) State() *Watch[ConnState] {
	return c.state
}

// Run dials and maintains the connection until ctx is cancelled, retrying
// with exponential backoff on every failure or drop. Run is intended to be
// started in its own goroutine; a failed first attempt does not return an
// error; it transitions into Reconnecting and keeps trying, so the caller
// can continue in SSE-only mode without waiting on Run.
func (c *Client) Run(ctx context.Context) {
	attempt := 0
	bo := c.newBackoff()

	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := c.dialer.Dial(ctx, c.url)
		if err != nil {
			attempt++
			c.state.Set(ConnState{Status: StatusReconnecting, Attempt: attempt})
			wait := bo.NextBackOff()
			c.logger.Debug("control channel dial failed", zap.Error(err), zap.Int("attempt", attempt), zap.Duration("backoff", wait))
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return
			}
			continue
		}

		attempt = 0
		bo.Reset()
		c.setConn(conn)
		c.state.Set(ConnState{Status: StatusConnected})
		c.logger.Debug("control channel connected")

		c.listen(ctx, conn)

		c.setConn(nil)
		c.failPending()
		if ctx.Err() != nil {
			return
		}
		c.state.Set(ConnState{Status: StatusDisconnected})
	}
}

func (c *Client) newBackoff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.InitialInterval
	bo.Multiplier = c.cfg.Multiplier
	bo.MaxInterval = c.cfg.MaxInterval
	bo.MaxElapsedTime = 0 // never stop retrying
	bo.Reset()
	return bo
}

func (c *Client) setConn(conn Conn) {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	c.conn = conn
}

func (c *Client) currentConn() Conn {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.conn
}

// listen reads frames until the connection errors or closes, decoding and
// dispatching each one. It returns when the read loop ends; Run then
// transitions state and redials.
func (c *Client) listen(ctx context.Context, conn Conn) {
	for {
		if ctx.Err() != nil {
			_ = conn.Close()
			return
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.logger.Debug("control channel read error", zap.Error(err))
			return
		}
		incoming, err := decodeIncoming(data)
		if err != nil {
			c.logger.Warn("control channel frame decode failed", zap.Error(err))
			continue
		}
		if incoming == nil {
			continue
		}
		c.dispatch(incoming)
	}
}

func (c *Client) dispatch(incoming *Incoming) {
	if incoming.Kind == IncomingCommandResponse && incoming.CommandResponse != nil {
		c.pendingMu.Lock()
		ch, ok := c.pending[incoming.CommandResponse.RequestID]
		if ok {
			delete(c.pending, incoming.CommandResponse.RequestID)
		}
		c.pendingMu.Unlock()
		if ok {
			ch <- incoming.CommandResponse
			close(ch)
		}
	}
	c.incoming.Publish(*incoming)
}

func (c *Client) failPending() {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

// Send writes an outgoing frame and returns immediately once the write
// completes; it does not wait for a correlated command response. It fails
// with spoqerr.ErrNotConnected if no socket is currently established.
func (c *Client) Send(outgoing Outgoing) error {
	if outgoing.RequestID == "" {
		outgoing.RequestID = uuid.NewString()
	}
	conn := c.currentConn()
	if conn == nil {
		return spoqerr.New(spoqerr.KindNetwork, "control channel send", spoqerr.ErrNotConnected)
	}
	payload, err := json.Marshal(outgoing)
	if err != nil {
		return spoqerr.New(spoqerr.KindClient, "marshal outgoing frame", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return spoqerr.New(spoqerr.KindNetwork, "control channel write", err)
	}
	return nil
}

// SendAwait writes an outgoing frame and blocks until its correlated
// command response arrives, ctx is cancelled, or the connection drops
// (pending waiters are failed on disconnect).
func (c *Client) SendAwait(ctx context.Context, outgoing Outgoing) (*CommandResponseFrame, error) {
	if outgoing.RequestID == "" {
		outgoing.RequestID = uuid.NewString()
	}

	waitCh := make(chan *CommandResponseFrame, 1)
	c.pendingMu.Lock()
	c.pending[outgoing.RequestID] = waitCh
	c.pendingMu.Unlock()

	if err := c.Send(outgoing); err != nil {
		c.pendingMu.Lock()
		delete(c.pending, outgoing.RequestID)
		c.pendingMu.Unlock()
		return nil, err
	}

	select {
	case resp, ok := <-waitCh:
		if !ok || resp == nil {
			return nil, spoqerr.New(spoqerr.KindNetwork, "control channel send_await", spoqerr.ErrStreamClosed)
		}
		return resp, nil
	case <-ctx.Done():
		c.pendingMu.Lock()
		delete(c.pending, outgoing.RequestID)
		c.pendingMu.Unlock()
		return nil, fmt.Errorf("control channel send_await: %w", ctx.Err())
	}
}
