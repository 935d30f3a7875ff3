// Package netsrv implements the loopback-only TCP listener (C3): one
// goroutine pair per accepted connection (reader owning a reassembly
// buffer, writer draining a bounded outbound queue), rejecting any peer
// that did not originate from 127.0.0.1 or ::1 at accept time (spec §4.3,
// Non-goal: remote access).
package netsrv

import (
	"context"
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"

	"github.com/brennhill/editor-bridge/internal/util"
	"github.com/brennhill/editor-bridge/internal/wire"
	"go.uber.org/zap"
)

// Handler processes one decoded request payload from a connection. It is
// invoked synchronously from that connection's reader goroutine, so a slow
// handler only delays that one connection's next frame.
type Handler func(ctx context.Context, conn *Conn, payload []byte)

// readBufSize is the chunk size read() fills per syscall; reassembly
// across chunk boundaries is wire.ReassemblyBuffer's job, not this loop's.
const readBufSize = 4096

// Server accepts loopback TCP connections and dispatches decoded frames to
// a Handler, tracking the live connection set for broadcast.
type Server struct {
	handler Handler
	logger  *zap.Logger

	mu     sync.Mutex
	conns  map[string]*Conn
	nextID uint64
}

// New constructs a Server. handler must not be nil.
func New(handler Handler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		handler: handler,
		logger:  logger,
		conns:   make(map[string]*Conn),
	}
}

// Serve accepts connections from ln until ctx is done or Accept fails.
// Each accepted connection is verified loopback-only before a reader and
// writer goroutine are spawned for it.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	util.SafeGo(func() {
		<-ctx.Done()
		_ = ln.Close()
	})

	for {
		raw, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return err
		}
		if !isLoopback(raw.RemoteAddr()) {
			s.logger.Warn("rejected non-loopback connection", zap.String("remote", raw.RemoteAddr().String()))
			_ = raw.Close()
			continue
		}

		id := strconv.FormatUint(atomic.AddUint64(&s.nextID, 1), 10)
		conn := newConn(id, raw)
		s.register(conn)

		util.SafeGo(func() { s.readLoop(ctx, conn) })
		util.SafeGo(func() { s.writeLoop(conn) })
	}
}

func (s *Server) register(c *Conn) {
	s.mu.Lock()
	s.conns[c.id] = c
	s.mu.Unlock()
}

func (s *Server) unregister(c *Conn) {
	s.mu.Lock()
	delete(s.conns, c.id)
	s.mu.Unlock()
}

// Conns returns a snapshot of the currently connected clients.
func (s *Server) Conns() []*Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Conn, 0, len(s.conns))
	for _, c := range s.conns {
		out = append(out, c)
	}
	return out
}

// Broadcast sends the same payload to every connected client, logging
// (rather than failing) per-connection send errors so one stalled client
// cannot block delivery to the rest.
func (s *Server) Broadcast(payload []byte) {
	framed, err := wire.Encode(string(payload))
	if err != nil {
		s.logger.Error("broadcast encode failed", zap.Error(err))
		return
	}
	for _, c := range s.Conns() {
		if err := c.Send(framed); err != nil {
			s.logger.Warn("broadcast send failed", zap.String("conn", c.ID()), zap.Error(err))
		}
	}
}

// BroadcastNotification is Broadcast for the named, coalesced push
// notifications spec §4.4 names (tools/list_changed,
// environment_reload_recovered): per connection, at most one instance of
// the same key may be queued at a time.
func (s *Server) BroadcastNotification(key string, payload []byte) {
	framed, err := wire.Encode(string(payload))
	if err != nil {
		s.logger.Error("broadcast encode failed", zap.Error(err))
		return
	}
	for _, c := range s.Conns() {
		if err := c.SendNotification(key, framed); err != nil && !errors.Is(err, errNotificationInFlight) {
			s.logger.Warn("broadcast notification failed", zap.String("conn", c.ID()), zap.Error(err))
		}
	}
}

func (s *Server) readLoop(ctx context.Context, c *Conn) {
	defer s.unregister(c)
	defer c.Close()

	buf := wire.NewReassemblyBuffer()
	chunk := make([]byte, readBufSize)

	for {
		n, err := c.raw.Read(chunk)
		if n > 0 {
			if appendErr := buf.Append(chunk[:n]); appendErr != nil {
				s.logger.Warn("reassembly overflow, closing connection", zap.String("conn", c.ID()), zap.Error(appendErr))
				return
			}
			buf.ValidateAndCleanup()
			for {
				payload, ok, extractErr := buf.TryExtractOne()
				if extractErr != nil {
					s.logger.Warn("malformed frame, closing connection", zap.String("conn", c.ID()), zap.Error(extractErr))
					return
				}
				if !ok {
					break
				}
				s.handler(ctx, c, payload)
			}
		}
		if err != nil {
			return
		}
	}
}

func (s *Server) writeLoop(c *Conn) {
	for {
		select {
		case item := <-c.outbox:
			_, err := c.raw.Write(item.data)
			if item.key != "" {
				c.clearNotification(item.key)
			}
			if err != nil {
				c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

func isLoopback(addr net.Addr) bool {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return false
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
