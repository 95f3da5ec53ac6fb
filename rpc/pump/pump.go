package pump

import (
	"context"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/yaumlabs/bridge/lib/queue"
	"github.com/yaumlabs/bridge/rpc/common"
	"github.com/yaumlabs/bridge/rpc/dispatch"
	"github.com/yaumlabs/bridge/rpc/transport"
)

var logger = common.GetLogger("pump")

var (
	drainedTotal       = metrics.GetOrCreateCounter(`bridge_pump_messages_total`)
	highWaterWarnTotal = metrics.GetOrCreateCounter(`bridge_pump_high_water_total`)
)

// highWaterLogInterval throttles repeated back-pressure warnings.
const highWaterLogInterval = 5 * time.Second

// --------------------------------------------------------------------------
// Events
// --------------------------------------------------------------------------

// Events are the explicit callbacks the embedding application registers
// at construction for connection lifecycle changes. All callbacks run on
// the host turn, inside Drain. Nil callbacks are skipped.
type Events struct {
	OnConnect    func(conn *transport.Connection)
	OnDisconnect func(conn *transport.Connection, reason string)
	OnError      func(text string)
}

// --------------------------------------------------------------------------
// Pump
// --------------------------------------------------------------------------

// Pump drains the inbound queue and routes each message by kind: requests
// go through the dispatcher, lifecycle notices fire the registered
// callbacks, status lines are logged.
type Pump struct {
	inbound    *queue.MPSC[transport.Inbound]
	dispatcher *dispatch.Dispatcher
	events     Events

	budget       time.Duration
	maxMessages  int
	highWater    int
	lastHighWarn time.Time
}

// New creates a pump over the server's inbound queue. The budget,
// per-tick message cap and high-water mark come from the server config.
func New(inbound *queue.MPSC[transport.Inbound], dispatcher *dispatch.Dispatcher, events Events, config common.ServerConfig) *Pump {
	budget := config.PumpBudget
	if budget <= 0 {
		budget = 3 * time.Millisecond
	}
	maxMessages := config.PumpMaxMessages
	if maxMessages <= 0 {
		maxMessages = 64
	}
	return &Pump{
		inbound:     inbound,
		dispatcher:  dispatcher,
		events:      events,
		budget:      budget,
		maxMessages: maxMessages,
		highWater:   config.QueueHighWater,
	}
}

// Drain processes queued messages until the queue is empty, the time
// budget is spent or the message cap is reached. It never blocks waiting
// for new messages and returns the number processed. Call once per host
// tick, always from the same goroutine.
func (p *Pump) Drain(ctx context.Context) int {
	p.checkHighWater()

	deadline := time.Now().Add(p.budget)
	processed := 0

	for processed < p.maxMessages && time.Now().Before(deadline) {
		select {
		case msg, ok := <-p.inbound.Recv():
			if !ok {
				return processed
			}
			p.process(ctx, msg)
			processed++
			drainedTotal.Inc()
		default:
			return processed
		}
	}
	return processed
}

// checkHighWater logs a throttled warning when the queue depth crosses
// the configured mark.
func (p *Pump) checkHighWater() {
	if p.highWater <= 0 {
		return
	}
	depth := p.inbound.Len()
	if depth > p.highWater && time.Since(p.lastHighWarn) > highWaterLogInterval {
		highWaterWarnTotal.Inc()
		p.lastHighWarn = time.Now()
		logger.Warnf("inbound queue depth %d exceeds high water mark %d", depth, p.highWater)
	}
}

// process handles one message to completion. No reentrant interleaving:
// the next message is not dequeued until this returns.
func (p *Pump) process(ctx context.Context, msg *transport.Inbound) {
	switch msg.Kind {
	case transport.InboundJSON:
		p.processEnvelope(ctx, msg)

	case transport.InboundError:
		logger.Errorf("transport error: %s", msg.Text)
		if p.events.OnError != nil {
			p.events.OnError(msg.Text)
		}

	case transport.InboundConnect:
		logger.Infof("client connected: %s (%s)", msg.Conn.ID, msg.Conn.Remote)
		if p.events.OnConnect != nil {
			p.events.OnConnect(msg.Conn)
		}

	case transport.InboundDisconnect:
		logger.Infof("client disconnected: %s (%s)", msg.Conn.ID, msg.Text)
		if p.events.OnDisconnect != nil {
			p.events.OnDisconnect(msg.Conn, msg.Text)
		}

	case transport.InboundStatus:
		switch msg.Level {
		case "warn":
			logger.Warnf("%s", msg.Text)
		case "debug":
			logger.Debugf("%s", msg.Text)
		default:
			logger.Infof("%s", msg.Text)
		}
	}
}

// processEnvelope dispatches one request and writes its response back to
// the source connection. Non-request envelopes are logged and dropped.
func (p *Pump) processEnvelope(ctx context.Context, msg *transport.Inbound) {
	env := msg.Envelope
	if !env.IsRequest() {
		logger.Warnf("dropping non-request envelope id=%s from %s", env.ID, msg.Conn.ID)
		return
	}

	resp := p.dispatcher.Dispatch(ctx, env)
	if err := msg.Conn.SendEnvelope(resp); err != nil {
		// The receive loop for this connection will observe the dead
		// socket and raise the disconnect notice.
		logger.Errorf("failed to send response for %s to %s: %v", env.ID, msg.Conn.ID, err)
	}
}
