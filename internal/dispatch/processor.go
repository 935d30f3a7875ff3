package dispatch

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/brennhill/editor-bridge/internal/netsrv"
	"github.com/brennhill/editor-bridge/internal/rpc"
	"github.com/brennhill/editor-bridge/internal/wire"
)

// NewHandler builds the JSON-RPC processor (C4) as a netsrv.Handler: it
// deserializes one frame payload, routes well-formed requests to d, and
// writes the framed reply back onto the same connection. Notifications
// (no id) are dispatched but never replied to, per JSON-RPC 2.0.
func NewHandler(d *Dispatcher, logger *zap.Logger) netsrv.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, conn *netsrv.Conn, payload []byte) {
		var req rpc.Request
		if err := json.Unmarshal(payload, &req); err != nil {
			reply(conn, logger, rpc.NewErrorResponse(nil, &rpc.Error{
				Code:    -32700,
				Message: "parse error: " + err.Error(),
			}))
			return
		}

		if req.Method == "" || req.HasInvalidID() {
			reply(conn, logger, rpc.NewErrorResponse(nil, &rpc.Error{
				Code:    -32600,
				Message: "invalid request",
			}))
			return
		}

		result, derr := d.Dispatch(netsrv.WithConn(ctx, conn), req.Method, req.Params)

		if req.IsNotification() {
			if derr != nil {
				logger.Warn("notification handler failed", zap.String("method", req.Method), zap.Error(derr))
			}
			return
		}

		if derr != nil {
			if !rpc.HasReply(derr.Kind) {
				logger.Error("dispatch returned a connection-faulting kind on a request", zap.String("method", req.Method), zap.String("kind", string(derr.Kind)))
				conn.Close()
				return
			}
			reply(conn, logger, rpc.NewErrorResponse(req.ID, derr.ToWireError()))
			return
		}

		resp, err := rpc.NewResponse(req.ID, result)
		if err != nil {
			reply(conn, logger, rpc.NewErrorResponse(req.ID, &rpc.Error{
				Code:    -32603,
				Message: "internal error: failed to encode result",
			}))
			return
		}
		reply(conn, logger, resp)
	}
}

func reply(conn *netsrv.Conn, logger *zap.Logger, resp rpc.Response) {
	body, err := json.Marshal(resp)
	if err != nil {
		logger.Error("failed to marshal response", zap.Error(err))
		return
	}
	framed, err := wire.Encode(string(body))
	if err != nil {
		logger.Error("failed to frame response", zap.Error(err))
		return
	}
	if err := conn.Send(framed); err != nil {
		logger.Warn("failed to send response", zap.Error(err))
	}
}
