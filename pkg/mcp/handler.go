package mcp

import (
	"context"
	"encoding/json"

	"github.com/pagegate/pagegate/pkg/gateway"
	"github.com/pagegate/pagegate/pkg/logging"
	"github.com/pagegate/pagegate/pkg/session"
)

// Handler processes MCP messages for live sessions. One handler serves every
// session; per-caller state lives on the session itself.
type Handler struct {
	gateway *gateway.Gateway
	logger  *logging.Logger
	info    ServerInfo
}

// NewHandler creates a handler dispatching tool calls through the gateway.
func NewHandler(gw *gateway.Gateway, logger *logging.Logger, version string) *Handler {
	return &Handler{
		gateway: gw,
		logger:  logger,
		info:    ServerInfo{Name: "pagegate", Version: version},
	}
}

// Handle processes one raw client message for the given session and delivers
// any response over the session's channel. Handle itself only fails when
// delivery fails; protocol-level problems become JSON-RPC error responses.
func (h *Handler) Handle(ctx context.Context, sess *session.Session, raw []byte) error {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return h.send(ctx, sess, NewErrorResponse(nil, CodeParseError, "parse error"))
	}

	switch req.Method {
	case "initialize":
		return h.send(ctx, sess, NewResponse(req.ID, InitializeResult{
			ProtocolVersion: ProtocolVersion,
			Capabilities:    map[string]any{"tools": map[string]any{}},
			ServerInfo:      h.info,
		}))

	case "notifications/initialized":
		h.logger.Session(sess.ID, "initialized", "client completed initialization")
		return nil

	case "ping":
		return h.send(ctx, sess, NewResponse(req.ID, map[string]any{}))

	case "tools/list":
		return h.send(ctx, sess, NewResponse(req.ID, map[string]any{"tools": gateway.Catalog()}))

	case "tools/call":
		var params CallToolParams
		if err := json.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
			return h.send(ctx, sess, NewErrorResponse(req.ID, CodeInvalidParams, "invalid tool call params"))
		}
		result := h.gateway.Call(ctx, sess.ID, sess.User, sess.Permissions, params.Name, params.Arguments)
		return h.send(ctx, sess, NewResponse(req.ID, result))

	default:
		if req.IsNotification() {
			return nil
		}
		return h.send(ctx, sess, NewErrorResponse(req.ID, CodeMethodNotFound, "method not found: "+req.Method))
	}
}

func (h *Handler) send(ctx context.Context, sess *session.Session, resp Response) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return sess.Send(ctx, payload)
}
