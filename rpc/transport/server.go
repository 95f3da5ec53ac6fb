package transport

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/yaumlabs/bridge/lib/queue"
	"github.com/yaumlabs/bridge/rpc/codec"
	"github.com/yaumlabs/bridge/rpc/common"
)

var logger = common.GetLogger("transport")

var (
	acceptedTotal          = metrics.GetOrCreateCounter(`bridge_connections_accepted_total`)
	handshakeFailuresTotal = metrics.GetOrCreateCounter(`bridge_handshake_failures_total`)
	framesReceivedTotal    = metrics.GetOrCreateCounter(`bridge_frames_received_total`)
	frameErrorsTotal       = metrics.GetOrCreateCounter(`bridge_frame_errors_total`)
	pingsTotal             = metrics.GetOrCreateCounter(`bridge_pings_total`)
	broadcastFailuresTotal = metrics.GetOrCreateCounter(`bridge_broadcast_failures_total`)
)

// handshakeByteBudget bounds how much noise the server tolerates while
// waiting for the handshake token.
const handshakeByteBudget = 512

// --------------------------------------------------------------------------
// Server
// --------------------------------------------------------------------------

// Server accepts connections, runs the handshake and owns the per
// connection receive loops. Every decoded frame and every lifecycle event
// is pushed onto the inbound queue; the server itself never invokes a
// command handler.
type Server struct {
	config   common.ServerConfig
	listener net.Listener
	conns    *xsync.MapOf[string, *Connection]
	inbound  *queue.MPSC[Inbound]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer creates a server. Call Start to bind and begin accepting.
func NewServer(config common.ServerConfig) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		config:  config,
		conns:   xsync.NewMapOf[string, *Connection](),
		inbound: queue.NewMPSC[Inbound](),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Inbound returns the queue the host pump must drain. Single consumer.
func (s *Server) Inbound() *queue.MPSC[Inbound] {
	return s.inbound
}

// Start binds the listener and launches the accept loop. A bind failure is
// the one unrecoverable startup error and is returned to the caller.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.config.Endpoint)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", s.config.Endpoint, err)
	}
	s.listener = listener

	logger.Infof("listening on %s", listener.Addr())

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Addr returns the bound listener address. Valid after Start.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// ConnectionCount returns the number of active connections. Connections
// still in their handshake are not counted.
func (s *Server) ConnectionCount() int {
	return s.conns.Size()
}

// acceptLoop accepts sockets until the server stops. Each socket gets its
// own goroutine for handshake and receive.
func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
			}
			logger.Errorf("accept error: %v", err)
			continue
		}

		acceptedTotal.Inc()
		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// handleConnection upgrades, handshakes and then receives until the
// connection dies. A failed handshake never surfaces as a connection: no
// notice is pushed and the count never includes it.
func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()

	upgradeConn(conn, s.config.Socket)

	if err := s.handshake(conn); err != nil {
		handshakeFailuresTotal.Inc()
		logger.Warnf("handshake with %s failed: %v", conn.RemoteAddr(), err)
		_ = conn.Close()
		return
	}

	c := newConnection(conn)
	s.conns.Store(c.ID, c)
	logger.Infof("connection %s from %s active (%d total)", c.ID, c.Remote, s.conns.Size())
	s.inbound.Push(NewConnectNotice(c))

	s.receiveLoop(c)
}

// handshake waits for the literal request token within a bounded time and
// byte budget, then answers with the response token. The token may arrive
// split across any number of reads.
func (s *Server) handshake(conn net.Conn) error {
	timeout := time.Duration(s.config.HandshakeTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	defer conn.SetDeadline(time.Time{})

	token := []byte(common.HandshakeRequest)
	buf := make([]byte, 0, handshakeByteBudget)
	tmp := make([]byte, 64)

	for !bytes.Contains(buf, token) {
		if len(buf) >= handshakeByteBudget {
			return fmt.Errorf("no handshake token within %d bytes", handshakeByteBudget)
		}
		n, err := conn.Read(tmp)
		if err != nil {
			return fmt.Errorf("reading handshake: %w", err)
		}
		buf = append(buf, tmp[:n]...)
	}

	if _, err := conn.Write([]byte(common.HandshakeResponse)); err != nil {
		return fmt.Errorf("writing handshake response: %w", err)
	}
	return nil
}

// receiveLoop decodes frames until a fatal error or server stop. Protocol
// errors are connection-scoped: recoverable ones resynchronize, fatal ones
// remove only this connection.
func (s *Server) receiveLoop(c *Connection) {
	readSize := s.config.Socket.ReadBufferSize
	if readSize <= 0 {
		readSize = 64 * 1024
	}
	reader := bufio.NewReaderSize(c.conn, readSize)

	for {
		select {
		case <-s.ctx.Done():
			s.removeConnection(c, "server stopped")
			return
		default:
		}

		payload, kind, err := codec.ReadFrame(reader, s.config.MaxMessageSize)
		if err != nil {
			if codec.IsRecoverable(err) {
				frameErrorsTotal.Inc()
				logger.Warnf("connection %s: %v", c.ID, err)
				s.inbound.Push(NewErrorNotice(fmt.Sprintf("connection %s: %v", c.ID, err)))
				continue
			}
			reason := "connection closed by peer"
			if err != io.EOF {
				reason = err.Error()
			}
			s.removeConnection(c, reason)
			return
		}

		switch kind {
		case codec.KindPing:
			// Answered immediately, never queued through the dispatcher.
			pingsTotal.Inc()
			if err := c.sendToken(common.PongToken); err != nil {
				s.removeConnection(c, fmt.Sprintf("pong write failed: %v", err))
				return
			}
		case codec.KindPong:
			logger.Debugf("connection %s: pong", c.ID)
		case codec.KindMessage:
			framesReceivedTotal.Inc()
			env, err := common.DecodeEnvelope(payload)
			if err != nil {
				frameErrorsTotal.Inc()
				s.inbound.Push(NewErrorNotice(
					fmt.Sprintf("connection %s: invalid JSON payload: %v", c.ID, err)))
				continue
			}
			s.inbound.Push(NewJSONMessage(env, c))
		}
	}
}

// removeConnection closes the socket, drops the connection from the table
// and pushes a disconnect notice. Safe to call more than once; only the
// first call has any effect.
func (s *Server) removeConnection(c *Connection, reason string) {
	if !c.close() {
		return
	}
	s.conns.Delete(c.ID)
	logger.Infof("connection %s removed: %s (%d remaining)", c.ID, reason, s.conns.Size())
	s.inbound.Push(NewDisconnectNotice(c, reason))
}

// --------------------------------------------------------------------------
// Send / Broadcast
// --------------------------------------------------------------------------

// Broadcast sends the envelope to a snapshot of the current connections.
// A failed send marks that connection for removal but the broadcast
// continues to the others. Returns the number of successful sends.
func (s *Server) Broadcast(env *common.Envelope) int {
	snapshot := make([]*Connection, 0, s.conns.Size())
	s.conns.Range(func(_ string, c *Connection) bool {
		snapshot = append(snapshot, c)
		return true
	})

	sent := 0
	for _, c := range snapshot {
		if err := c.SendEnvelope(env); err != nil {
			broadcastFailuresTotal.Inc()
			logger.Warnf("broadcast to %s failed: %v", c.ID, err)
			s.removeConnection(c, fmt.Sprintf("broadcast write failed: %v", err))
			continue
		}
		sent++
	}
	return sent
}

// --------------------------------------------------------------------------
// Shutdown
// --------------------------------------------------------------------------

// Stop cancels all background loops, sends a best-effort close notice to
// every connection with a bounded wait, clears the connection state and
// surfaces a stopped event on the inbound queue.
func (s *Server) Stop() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}

	closeNotice := &common.Envelope{
		ID:              "server_shutdown",
		Command:         "server_stopping",
		ServerTimestamp: common.NowMillis(),
	}
	s.conns.Range(func(_ string, c *Connection) bool {
		_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
		if payload, err := closeNotice.Encode(); err == nil {
			_ = c.sendRaw(codec.Encode(payload))
		}
		s.removeConnection(c, "server stopped")
		return true
	})

	s.wg.Wait()
	s.inbound.Push(NewStatusNotice("server stopped", "info"))
	s.inbound.Close()
	logger.Infof("server stopped")
}

// --------------------------------------------------------------------------
// Socket tuning
// --------------------------------------------------------------------------

// upgradeConn applies TCP tuning options to an accepted socket.
func upgradeConn(conn net.Conn, sc common.SocketConf) {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}

	if err := tcpConn.SetNoDelay(sc.TCPNoDelay); err != nil {
		logger.Debugf("set nodelay: %v", err)
	}
	if sc.WriteBufferSize > 0 {
		if err := tcpConn.SetWriteBuffer(sc.WriteBufferSize); err != nil {
			logger.Debugf("set write buffer: %v", err)
		}
	}
	if sc.ReadBufferSize > 0 {
		if err := tcpConn.SetReadBuffer(sc.ReadBufferSize); err != nil {
			logger.Debugf("set read buffer: %v", err)
		}
	}
	if sc.TCPKeepAliveSec > 0 {
		if err := tcpConn.SetKeepAlive(true); err == nil {
			_ = tcpConn.SetKeepAlivePeriod(time.Duration(sc.TCPKeepAliveSec) * time.Second)
		}
	}
}
