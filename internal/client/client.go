// Package client implements the device side of the relay socket: a
// connection manager that dials the relay, re-dials with exponential backoff
// when the link drops, correlates request/response pairs, and replays
// unanswered requests after a reconnect.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ggokuldas06/senior-launcher-sub001/internal/protocol"
)

// Backoff schedule for re-dialing a dropped relay link. The delay doubles on
// every consecutive failure and resets after a successful connect.
const (
	DefaultInitialBackoff = 5 * time.Second
	DefaultMaxBackoff     = 5 * time.Minute
)

// Read/write tuning mirrored from the relay side of the socket.
const (
	dialTimeout  = 10 * time.Second
	writeTimeout = 10 * time.Second
	readTimeout  = 90 * time.Second
)

var (
	// ErrNotConnected is returned by Send and Request while the link is down.
	ErrNotConnected = errors.New("relay link is down")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("client closed")
)

// Handler receives envelopes that are not replies to an in-flight Request:
// routed commands on an elder client, pushed events on a guardian client.
type Handler func(ctx context.Context, env protocol.Envelope)

// Options configures a Client.
type Options struct {
	// URL is the relay base, e.g. "ws://relay.example.com:8080/ws". The
	// deviceId and role query parameters are appended by the client.
	URL      string
	DeviceID string
	Role     string

	// Handler receives non-reply envelopes. Required.
	Handler Handler

	// OnConnect fires after every successful registration, including
	// reconnects. Optional.
	OnConnect func()

	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

type pendingCall struct {
	env protocol.Envelope // kept for replay across reconnects
	ch  chan protocol.Envelope
}

// Client is a reconnecting relay connection. All methods are safe for
// concurrent use.
type Client struct {
	opts Options

	writeMu sync.Mutex // serializes writes on the active socket
	connMu  sync.RWMutex
	conn    *websocket.Conn

	pendingMu sync.Mutex
	pending   map[string]*pendingCall

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New builds a client. Start must be called to open the link.
func New(opts Options) (*Client, error) {
	if opts.URL == "" || opts.DeviceID == "" {
		return nil, errors.New("client: URL and DeviceID are required")
	}
	if opts.Role != protocol.RoleElder && opts.Role != protocol.RoleGuardian {
		return nil, fmt.Errorf("client: invalid role %q", opts.Role)
	}
	if opts.Handler == nil {
		return nil, errors.New("client: Handler is required")
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = DefaultInitialBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = DefaultMaxBackoff
	}
	return &Client{
		opts:    opts,
		pending: make(map[string]*pendingCall),
		done:    make(chan struct{}),
	}, nil
}

// Start launches the dial/read loop. It returns immediately; connection
// state is observable through IsConnected and OnConnect.
func (c *Client) Start(ctx context.Context) {
	c.wg.Add(1)
	go c.run(ctx)
}

// Close tears the link down and fails all in-flight requests.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.connMu.Lock()
		if c.conn != nil {
			c.conn.Close()
		}
		c.connMu.Unlock()
		c.failAllPending()
	})
	c.wg.Wait()
	return nil
}

// IsConnected reports whether the relay link is currently up.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.conn != nil
}

// Send transmits a single envelope without waiting for a reply. Used for
// events and for replies to routed requests.
func (c *Client) Send(env protocol.Envelope) error {
	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}
	return c.write(conn, env)
}

// Request sends a request envelope and blocks until the correlated reply
// arrives or ctx expires. If the link drops and comes back before ctx
// expires, the request is replayed with its original requestId so the
// responder's deduplication still applies.
func (c *Client) Request(ctx context.Context, msgType, to string, payload any) (protocol.Envelope, error) {
	env, err := protocol.NewRequest(msgType, c.opts.DeviceID, to, payload)
	if err != nil {
		return protocol.Envelope{}, err
	}

	call := &pendingCall{env: env, ch: make(chan protocol.Envelope, 1)}
	c.pendingMu.Lock()
	c.pending[env.RequestID] = call
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, env.RequestID)
		c.pendingMu.Unlock()
	}()

	// A down link at send time is not fatal: the replay on reconnect will
	// carry the request if the link recovers inside ctx.
	if err := c.Send(env); err != nil && !errors.Is(err, ErrNotConnected) {
		return protocol.Envelope{}, err
	}

	select {
	case reply := <-call.ch:
		return reply, nil
	case <-ctx.Done():
		return protocol.Envelope{}, ctx.Err()
	case <-c.done:
		return protocol.Envelope{}, ErrClosed
	}
}

func (c *Client) run(ctx context.Context) {
	defer c.wg.Done()

	backoff := c.opts.InitialBackoff
	for {
		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		default:
		}

		conn, err := c.dial(ctx)
		if err != nil {
			log.Printf("client %s: dial failed: %v, retrying in %s", c.opts.DeviceID, err, backoff)
			if !c.sleep(ctx, backoff) {
				return
			}
			backoff = min(backoff*2, c.opts.MaxBackoff)
			continue
		}
		backoff = c.opts.InitialBackoff

		c.connMu.Lock()
		c.conn = conn
		c.connMu.Unlock()

		if c.opts.OnConnect != nil {
			c.opts.OnConnect()
		}
		c.replayPending(conn)

		c.readLoop(ctx, conn)

		c.connMu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.connMu.Unlock()
		conn.Close()
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(c.opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse relay url: %w", err)
	}
	q := u.Query()
	q.Set("deviceId", c.opts.DeviceID)
	q.Set("role", c.opts.Role)
	u.RawQuery = q.Encode()

	dctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	conn, _, err := websocket.DefaultDialer.DialContext(dctx, u.String(), nil)
	return conn, err
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeTimeout))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				log.Printf("client %s: link lost: %v", c.opts.DeviceID, err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		env, err := protocol.Decode(data)
		if err != nil {
			log.Printf("client %s: dropping malformed frame: %v", c.opts.DeviceID, err)
			continue
		}
		c.dispatch(ctx, env)
	}
}

func (c *Client) dispatch(ctx context.Context, env protocol.Envelope) {
	switch {
	case env.Type == protocol.TypeConnectionAck:
		log.Printf("client %s: registered with relay", c.opts.DeviceID)
	case protocol.IsResponse(env.Type) || env.Type == protocol.TypeError:
		if c.resolve(env) {
			return
		}
		// Late replies whose Request already gave up fall through to the
		// handler so the application can at least observe them.
		c.opts.Handler(ctx, env)
	default:
		c.opts.Handler(ctx, env)
	}
}

// resolve completes the pending request matching the reply. Each pending
// entry resolves at most once; the buffered channel absorbs the reply even
// if the caller has already moved on.
func (c *Client) resolve(env protocol.Envelope) bool {
	c.pendingMu.Lock()
	call, ok := c.pending[env.RequestID]
	if ok {
		delete(c.pending, env.RequestID)
	}
	c.pendingMu.Unlock()
	if !ok {
		return false
	}
	call.ch <- env
	return true
}

// replayPending re-sends every request still awaiting a reply. Replays keep
// their original requestId so the peer sees a duplicate of the same logical
// request, not a new one.
func (c *Client) replayPending(conn *websocket.Conn) {
	c.pendingMu.Lock()
	replays := make([]protocol.Envelope, 0, len(c.pending))
	for _, call := range c.pending {
		replays = append(replays, call.env)
	}
	c.pendingMu.Unlock()

	for _, env := range replays {
		if err := c.write(conn, env); err != nil {
			log.Printf("client %s: replay of %s failed: %v", c.opts.DeviceID, env.RequestID, err)
			return
		}
	}
	if len(replays) > 0 {
		log.Printf("client %s: replayed %d unanswered request(s)", c.opts.DeviceID, len(replays))
	}
}

func (c *Client) write(conn *websocket.Conn, env protocol.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode %s: %w", env.Type, err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) failAllPending() {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for id := range c.pending {
		delete(c.pending, id)
	}
}

func (c *Client) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-c.done:
		return false
	case <-ctx.Done():
		return false
	}
}
