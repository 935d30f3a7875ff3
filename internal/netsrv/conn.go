package netsrv

import (
	"context"
	"net"
	"sync"

	"github.com/cockroachdb/errors"
)

// errNotificationInFlight signals that a coalesced notification was
// dropped because an earlier instance is still queued.
var errNotificationInFlight = errors.New("netsrv: notification already in flight")

// outboundQueueSize bounds the writer goroutine's backlog. A client that
// stops reading its socket must not be allowed to block the rest of the
// server; once the queue is full the connection is torn down instead.
const outboundQueueSize = 64

var errOutboundQueueFull = errors.New("netsrv: outbound queue full, connection closed")

// outboundItem is one queued write. key is non-empty only for coalesced
// notifications; the writer clears the pending flag for key once this
// item is actually dequeued, not merely enqueued.
type outboundItem struct {
	key  string
	data []byte
}

// Conn is one accepted, loopback-verified TCP connection. It owns its own
// reassembly buffer (read side, inside Server.readLoop) and a dedicated
// writer goroutine draining outbox, matching the one-reader/one-writer
// goroutine-per-connection shape spec §5 requires.
type Conn struct {
	id  string
	raw net.Conn

	outbox chan outboundItem

	notifyMu      sync.Mutex
	pendingNotify map[string]bool

	closeOnce sync.Once
	done      chan struct{}
}

func newConn(id string, raw net.Conn) *Conn {
	return &Conn{
		id:            id,
		raw:           raw,
		outbox:        make(chan outboundItem, outboundQueueSize),
		pendingNotify: make(map[string]bool),
		done:          make(chan struct{}),
	}
}

// ID returns the connection's server-assigned identifier, stable for its
// lifetime.
func (c *Conn) ID() string { return c.id }

// RemoteAddr returns the peer address the connection was accepted from.
func (c *Conn) RemoteAddr() net.Addr { return c.raw.RemoteAddr() }

type connContextKey struct{}

// WithConn attaches conn to ctx so a tool handler dispatched from this
// connection's request can look up its identity (e.g. to register a
// client endpoint) without threading *Conn through the dispatcher.
func WithConn(ctx context.Context, conn *Conn) context.Context {
	return context.WithValue(ctx, connContextKey{}, conn)
}

// ConnFromContext returns the connection a request arrived on, if any.
// Requests dispatched outside a connection (tests, internal calls) yield
// ok == false.
func ConnFromContext(ctx context.Context) (*Conn, bool) {
	conn, ok := ctx.Value(connContextKey{}).(*Conn)
	return conn, ok
}

// Send enqueues an already-framed message for write. It never blocks: a
// full queue closes the connection rather than stall the caller.
func (c *Conn) Send(framed []byte) error {
	return c.enqueue(outboundItem{data: framed})
}

// SendNotification enqueues a named, server-originated notification,
// coalescing: if an earlier instance with the same key is still queued
// (not yet written), this call enqueues nothing and returns
// errNotificationInFlight rather than double-enqueuing
// (spec §4.4's "at most one tools/list_changed in flight per connection").
func (c *Conn) SendNotification(key string, framed []byte) error {
	c.notifyMu.Lock()
	if c.pendingNotify[key] {
		c.notifyMu.Unlock()
		return errNotificationInFlight
	}
	c.pendingNotify[key] = true
	c.notifyMu.Unlock()

	if err := c.enqueue(outboundItem{key: key, data: framed}); err != nil {
		c.clearNotification(key)
		return err
	}
	return nil
}

func (c *Conn) clearNotification(key string) {
	c.notifyMu.Lock()
	delete(c.pendingNotify, key)
	c.notifyMu.Unlock()
}

func (c *Conn) enqueue(item outboundItem) error {
	select {
	case <-c.done:
		return net.ErrClosed
	default:
	}
	select {
	case c.outbox <- item:
		return nil
	case <-c.done:
		return net.ErrClosed
	default:
		c.Close()
		return errOutboundQueueFull
	}
}

// Close shuts the connection down idempotently.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.raw.Close()
	})
}

// Done returns a channel closed once the connection has been torn down.
func (c *Conn) Done() <-chan struct{} { return c.done }
