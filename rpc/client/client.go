package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/yaumlabs/bridge/rpc/codec"
	"github.com/yaumlabs/bridge/rpc/common"
)

var logger = common.GetLogger("client")

var (
	requestsTotal  = metrics.GetOrCreateCounter(`bridge_client_requests_total`)
	timeoutsTotal  = metrics.GetOrCreateCounter(`bridge_client_timeouts_total`)
	unmatchedTotal = metrics.GetOrCreateCounter(`bridge_client_unmatched_responses_total`)
)

// --------------------------------------------------------------------------
// Connection State
// --------------------------------------------------------------------------

// State is the client connection state machine:
// Disconnected -> Connecting -> Handshaking -> Connected -> Disconnecting
// -> Disconnected.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateHandshaking
	StateConnected
	StateDisconnecting
)

// String returns the string representation of a State.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateHandshaking:
		return "handshaking"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}

// --------------------------------------------------------------------------
// Client
// --------------------------------------------------------------------------

// PeerHandler serves an unsolicited request from the host (the peer
// asking the client for data). The returned value becomes a success
// response; a returned error becomes an error response.
type PeerHandler func(ctx context.Context, params map[string]any) (any, error)

// pendingResult is the single-assignment slot for one in-flight request.
type pendingResult struct {
	env *common.Envelope
	err error
}

// link is the per-connection state shared with the background loops. A
// reconnect creates a fresh link, so the loops of a torn-down connection
// hold no reference to its successor and can never close it.
type link struct {
	conn     net.Conn
	stopCh   chan struct{}
	stopOnce sync.Once
}

// Client is one connection to a bridge host. All methods are safe for
// concurrent use; any number of goroutines may issue requests over the
// same connection.
type Client struct {
	config common.ClientConfig

	state   atomic.Int32
	link    atomic.Pointer[link]
	writeMu sync.Mutex

	pending  *xsync.MapOf[string, chan pendingResult]
	handlers map[string]PeerHandler

	wg sync.WaitGroup

	onDisconnect func(reason string)
}

// New creates a client. Register peer handlers and the disconnect
// callback before calling Connect.
func New(config common.ClientConfig) *Client {
	return &Client{
		config:   config,
		pending:  xsync.NewMapOf[string, chan pendingResult](),
		handlers: make(map[string]PeerHandler),
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	return State(c.state.Load())
}

// Handle registers a client-local handler for unsolicited requests from
// the host. Must be called before Connect.
func (c *Client) Handle(command string, handler PeerHandler) {
	c.handlers[command] = handler
}

// OnDisconnect registers a callback fired once per connection loss with
// the reason. Must be called before Connect.
func (c *Client) OnDisconnect(f func(reason string)) {
	c.onDisconnect = f
}

// --------------------------------------------------------------------------
// Connect / Close
// --------------------------------------------------------------------------

// Connect dials the host and performs the handshake. On any failure the
// client returns to the disconnected state and the error is surfaced;
// Connect never retries inline.
func (c *Client) Connect(ctx context.Context) error {
	if !c.state.CompareAndSwap(int32(StateDisconnected), int32(StateConnecting)) {
		return fmt.Errorf("connect called in state %s", c.State())
	}

	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", c.config.Endpoint)
	if err != nil {
		c.state.Store(int32(StateDisconnected))
		return fmt.Errorf("failed to connect to %s: %w", c.config.Endpoint, err)
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(c.config.Socket.TCPNoDelay)
	}

	c.state.Store(int32(StateHandshaking))
	if err := c.handshake(conn); err != nil {
		_ = conn.Close()
		c.state.Store(int32(StateDisconnected))
		return err
	}

	l := &link{conn: conn, stopCh: make(chan struct{})}
	c.link.Store(l)
	c.state.Store(int32(StateConnected))
	logger.Infof("connected to %s", c.config.Endpoint)

	c.wg.Add(2)
	go c.readLoop(l)
	go c.pingLoop(l)
	return nil
}

// handshake sends the request token and waits for the exact response
// token within the configured budget.
func (c *Client) handshake(conn net.Conn) error {
	timeout := time.Duration(c.config.HandshakeTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	defer conn.SetDeadline(time.Time{})

	if _, err := conn.Write([]byte(common.HandshakeRequest)); err != nil {
		return fmt.Errorf("sending handshake: %w", err)
	}

	buf := make([]byte, len(common.HandshakeResponse))
	if _, err := io.ReadFull(conn, buf); err != nil {
		return fmt.Errorf("reading handshake response: %w", err)
	}
	if string(buf) != common.HandshakeResponse {
		return fmt.Errorf("invalid handshake response %q", string(buf))
	}
	return nil
}

// Close disconnects cleanly and waits for the background loops to exit.
func (c *Client) Close() error {
	if !c.state.CompareAndSwap(int32(StateConnected), int32(StateDisconnecting)) {
		return nil
	}
	if l := c.link.Swap(nil); l != nil {
		l.stopOnce.Do(func() { close(l.stopCh) })
		_ = l.conn.Close()
	}
	c.wg.Wait()
	c.state.Store(int32(StateDisconnected))
	logger.Infof("disconnected from %s", c.config.Endpoint)
	return nil
}

// disconnect tears down one connection generation after a transport
// failure. The link swap claims the teardown: a call holding a stale link
// (its connection already replaced by a reconnect, or removed by Close)
// is a no-op. The disconnected state is only published after the socket
// and stop channel of that generation are gone. In-flight requests are
// left to resolve through their own timeouts.
func (c *Client) disconnect(l *link, reason string) {
	if !c.link.CompareAndSwap(l, nil) {
		return
	}
	l.stopOnce.Do(func() { close(l.stopCh) })
	_ = l.conn.Close()
	if c.state.CompareAndSwap(int32(StateConnected), int32(StateDisconnected)) {
		logger.Warnf("connection lost: %s", reason)
		if c.onDisconnect != nil {
			c.onDisconnect(reason)
		}
	}
}

// --------------------------------------------------------------------------
// Request / Response
// --------------------------------------------------------------------------

// Request sends a command and awaits its response. Each call resolves
// exactly once: with the command result, a timeout error after the
// configured request timeout, or a cancellation error from the context.
// On a response with error status the host's error message is returned.
func (c *Client) Request(ctx context.Context, command string, parameters any) (any, error) {
	if c.State() != StateConnected {
		return nil, fmt.Errorf("not connected")
	}

	var raw json.RawMessage
	if parameters != nil {
		encoded, err := json.Marshal(parameters)
		if err != nil {
			return nil, fmt.Errorf("failed to encode parameters: %w", err)
		}
		raw = encoded
	}

	id := newRequestID()
	ch := make(chan pendingResult, 1)
	c.pending.Store(id, ch)
	defer c.pending.Delete(id)

	env := common.NewRequest(id, command, raw)
	if err := c.sendEnvelope(env); err != nil {
		return nil, fmt.Errorf("failed to send %s: %w", command, err)
	}
	requestsTotal.Inc()
	logger.Debugf("sent request %s: %s", id, command)

	timeout := c.config.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, res.err
		}
		if res.env.Status == common.StatusError {
			return nil, fmt.Errorf("error executing command %s: %s", command, res.env.Error)
		}
		return res.env.Result, nil
	case <-timer.C:
		timeoutsTotal.Inc()
		return nil, fmt.Errorf("timeout waiting for response to command %s", command)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// newRequestID generates a process-unique correlation id in the wire
// format "req_<32 hex chars>".
func newRequestID() string {
	return "req_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// sendEnvelope writes the envelope as one atomic frame on the current
// connection.
func (c *Client) sendEnvelope(env *common.Envelope) error {
	l := c.link.Load()
	if l == nil {
		return fmt.Errorf("not connected")
	}
	return c.sendEnvelopeOn(l, env)
}

// sendEnvelopeOn writes the envelope as one atomic frame on the given
// connection generation.
func (c *Client) sendEnvelopeOn(l *link, env *common.Envelope) error {
	payload, err := env.Encode()
	if err != nil {
		return err
	}
	return c.sendRawOn(l, codec.Encode(payload))
}

// sendTokenOn writes a plaintext keepalive token outside the framing.
func (c *Client) sendTokenOn(l *link, token string) error {
	return c.sendRawOn(l, []byte(token))
}

func (c *Client) sendRawOn(l *link, buf []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := l.conn.Write(buf)
	return err
}

// --------------------------------------------------------------------------
// Background loops
// --------------------------------------------------------------------------

// readLoop decodes frames and routes them: responses resolve their
// pending request, requests from the peer go through the client-local
// handler set, keepalive tokens are answered or ignored. The loop only
// ever touches its own connection generation; a fatal error tears that
// generation down, which is a no-op if Close or a reconnect got there
// first.
func (c *Client) readLoop(l *link) {
	defer c.wg.Done()

	reader := bufio.NewReaderSize(l.conn, 64*1024)
	for {
		payload, kind, err := codec.ReadFrame(reader, c.config.MaxMessageSize)
		if err != nil {
			if codec.IsRecoverable(err) {
				logger.Warnf("frame error: %v", err)
				continue
			}
			c.disconnect(l, err.Error())
			return
		}

		switch kind {
		case codec.KindPing:
			if err := c.sendTokenOn(l, common.PongToken); err != nil {
				c.disconnect(l, fmt.Sprintf("pong write failed: %v", err))
				return
			}
		case codec.KindPong:
			logger.Debugf("received pong")
		case codec.KindMessage:
			env, err := common.DecodeEnvelope(payload)
			if err != nil {
				logger.Warnf("invalid JSON payload: %v", err)
				continue
			}
			c.routeEnvelope(l, env)
		}
	}
}

// routeEnvelope resolves a response against the correlation table or
// serves a request from the peer.
func (c *Client) routeEnvelope(l *link, env *common.Envelope) {
	if env.IsResponse() {
		// LoadAndDelete claims the slot so a duplicate response can
		// never resolve the same request twice.
		ch, found := c.pending.LoadAndDelete(env.ID)
		if !found {
			unmatchedTotal.Inc()
			logger.Warnf("dropping response with no pending request: %s", env.ID)
			return
		}
		ch <- pendingResult{env: env}
		return
	}

	if env.IsRequest() {
		c.servePeerRequest(l, env)
		return
	}

	logger.Warnf("dropping envelope with neither command nor status: %s", env.ID)
}

// servePeerRequest dispatches an unsolicited request to the client-local
// handler set and replies with a response carrying the same id.
func (c *Client) servePeerRequest(l *link, env *common.Envelope) {
	handler, ok := c.handlers[env.Command]
	if !ok {
		c.replyTo(l, env, common.NewErrorResponse(env, fmt.Sprintf("Unknown command: %s", env.Command)))
		return
	}

	var params map[string]any
	if len(env.Parameters) > 0 {
		if err := json.Unmarshal(env.Parameters, &params); err != nil {
			c.replyTo(l, env, common.NewErrorResponse(env, fmt.Sprintf("parameters must be a JSON object: %v", err)))
			return
		}
	}

	timeout := c.config.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	result, err := handler(ctx, params)
	if err != nil {
		c.replyTo(l, env, common.NewErrorResponse(env, err.Error()))
		return
	}
	c.replyTo(l, env, common.NewSuccessResponse(env, result))
}

func (c *Client) replyTo(l *link, req *common.Envelope, resp *common.Envelope) {
	if err := c.sendEnvelopeOn(l, resp); err != nil {
		logger.Errorf("failed to reply to peer request %s: %v", req.ID, err)
	}
}

// pingLoop sends the plaintext ping on a fixed interval while its
// connection generation is current. A failed ping write means the link
// is gone and is treated as a disconnect signal.
func (c *Client) pingLoop(l *link) {
	defer c.wg.Done()

	interval := c.config.PingInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			if c.link.Load() != l {
				return
			}
			if err := c.sendTokenOn(l, common.PingToken); err != nil {
				c.disconnect(l, fmt.Sprintf("ping write failed: %v", err))
				return
			}
			logger.Debugf("sent ping")
		}
	}
}
