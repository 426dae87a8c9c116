package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"nhooyr.io/websocket"

	"github.com/pagegate/pagegate/pkg/access"
	"github.com/pagegate/pagegate/pkg/logging"
	"github.com/pagegate/pagegate/pkg/mcp"
	"github.com/pagegate/pagegate/pkg/session"
)

// authenticatedUser is the resolved identity behind an inbound connection.
type authenticatedUser struct {
	Name        string
	APIKey      string
	Permissions access.PermissionRecord
}

const (
	heartbeatInterval = 30 * time.Second
	maxMessageBytes   = 1 << 20
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSSE opens a streaming session. The first event tells the client
// where to POST follow-up messages; every later event carries one JSON-RPC
// response. The session lives exactly as long as this request.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	user, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	ch := newSSEChannel()
	sess := s.registry.Create(user.Name, user.Permissions, ch)
	defer s.registry.Destroy(sess.ID)

	activeSessions.Inc()
	defer activeSessions.Dec()
	s.logger.Session(sess.ID, "session_open", "sse session opened for "+user.Name)
	defer s.logger.Session(sess.ID, "session_close", "sse session closed")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	endpoint := fmt.Sprintf("/mcp/messages?sessionId=%s", sess.ID)
	fmt.Fprintf(w, "event: endpoint\ndata: %s\n\n", endpoint)
	flusher.Flush()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ch.done:
			// Session destroyed from the registry side (shutdown or an
			// admin kill). Terminate the stream rather than waiting for
			// the client to hang up.
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case payload := <-ch.out:
			if _, err := fmt.Fprintf(w, "event: message\ndata: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// handleMessages accepts one follow-up message for an open session. The
// synchronous reply only acknowledges receipt; the JSON-RPC response arrives
// on the session's streaming channel.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	// The credential here is a liveness check only. Authorization always
	// follows the permission record snapshotted when the session opened,
	// so a leaked session id is useless without a currently-valid key and
	// a presented key cannot borrow another session's permissions.
	credential := credentialFromRequest(r)
	if _, ok := s.directory.Lookup(credential); !ok {
		s.logger.Warn(logging.CategoryAuth, "rejected", "message with invalid credential", nil)
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	sessionID := r.URL.Query().Get("sessionId")
	sess, ok := s.registry.Get(sessionID)
	if !ok {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}

	if !s.limiter.Allow(credential) {
		respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMessageBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(w, http.StatusRequestEntityTooLarge, "message too large")
			return
		}
		respondError(w, http.StatusBadRequest, "failed to read message")
		return
	}

	// Dispatch outlives this POST. If the session dies mid-flight the
	// send fails against a closed channel and the result is discarded.
	go s.dispatch(context.WithoutCancel(r.Context()), sess, body)

	respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) dispatch(ctx context.Context, sess *session.Session, body []byte) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	if err := s.handler.Handle(ctx, sess, body); err != nil {
		s.logger.Log(logging.Event{
			Level:     logging.LevelWarn,
			Category:  logging.CategorySession,
			EventType: "delivery_failed",
			SessionID: sess.ID,
			Message:   err.Error(),
		})
	}
}

// handleWebSocket runs an MCP session over a single WebSocket connection.
// Requests arrive as text frames and responses go back the same way; there is
// no separate message endpoint.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	user, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	acceptOpts := &websocket.AcceptOptions{}
	if len(s.cfg.AllowedOrigins) > 0 {
		acceptOpts.OriginPatterns = s.cfg.AllowedOrigins
	} else {
		acceptOpts.InsecureSkipVerify = true
	}
	conn, err := websocket.Accept(w, r, acceptOpts)
	if err != nil {
		return
	}

	ch := newWSChannel(conn)
	sess := s.registry.Create(user.Name, user.Permissions, ch)
	defer s.registry.Destroy(sess.ID)

	activeSessions.Inc()
	defer activeSessions.Dec()
	s.logger.Session(sess.ID, "session_open", "websocket session opened for "+user.Name)
	defer s.logger.Session(sess.ID, "session_close", "websocket session closed")

	ctx := r.Context()
	for {
		kind, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if kind != websocket.MessageText {
			continue
		}
		if !s.limiter.Allow(user.APIKey) {
			// A dropped frame would leave the call unanswered; report
			// the throttle as a call-scoped error instead.
			var req mcp.Request
			if json.Unmarshal(data, &req) == nil && !req.IsNotification() {
				resp, err := json.Marshal(mcp.NewErrorResponse(req.ID, mcp.CodeRateLimited, "rate limit exceeded"))
				if err == nil {
					if err := ch.Send(ctx, resp); err != nil {
						return
					}
				}
			}
			continue
		}
		if err := s.handler.Handle(ctx, sess, data); err != nil {
			return
		}
	}
}

func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (user authenticatedUser, ok bool) {
	credential := credentialFromRequest(r)
	u, found := s.directory.Lookup(credential)
	if !found {
		s.logger.Warn(logging.CategoryAuth, "rejected", "connection with invalid credential", nil)
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return authenticatedUser{}, false
	}
	return authenticatedUser{Name: u.Name, APIKey: u.APIKey, Permissions: u.Permissions}, true
}
