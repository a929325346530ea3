package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"evalgo.org/playground/internal/event"
	"evalgo.org/playground/internal/handler"
	"evalgo.org/playground/internal/playground"
	"evalgo.org/playground/internal/publish"
	"evalgo.org/playground/internal/validation"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum inbound frame size
	maxFrameSize = 64 * 1024

	// Frames read but not yet dispatched
	inboxSize = 16
)

// session is one connected WebSocket client. Frames are read by readPump,
// dispatched in arrival order by work, and payloads are written by writePump.
type session struct {
	id     string
	conn   *websocket.Conn
	sub    *publish.Subscriber
	server *Server
	logger *zap.Logger

	inbox   chan []byte
	replies chan []byte
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.config.Security.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// handleWebSocket upgrades the connection and subscribes the new session to
// every published payload.
func (s *Server) handleWebSocket(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return nil
	}

	id := uuid.NewString()
	sess := &session{
		id:      id,
		conn:    conn,
		sub:     s.publisher.Subscribe(id),
		server:  s,
		logger:  s.logger.With(zap.String("session", id)),
		inbox:   make(chan []byte, inboxSize),
		replies: make(chan []byte, inboxSize),
	}
	s.conns.Store(id, conn)
	sess.logger.Info("session connected", zap.Int("sessions", s.publisher.Count()))

	s.sessions.Add(2)
	go sess.writePump()
	go sess.work()
	sess.readPump()
	return nil
}

// handleWebSocketStats returns WebSocket connection statistics
func (s *Server) handleWebSocketStats(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"connected_clients": s.publisher.Count(),
		"status":            "operational",
	})
}

// readPump reads frames until the peer goes away, then unsubscribes. Work
// already queued keeps running.
func (ss *session) readPump() {
	defer func() {
		close(ss.inbox)
		ss.server.publisher.Unsubscribe(ss.id)
		ss.server.conns.Delete(ss.id)
		ss.logger.Info("session disconnected")
	}()

	ss.conn.SetReadLimit(maxFrameSize)
	_ = ss.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck // Deadline errors are handled by ReadMessage
	ss.conn.SetPongHandler(func(string) error {
		_ = ss.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck // Deadline errors are handled by ReadMessage
		return nil
	})

	for {
		_, frame, err := ss.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				ss.logger.Debug("websocket read failed", zap.Error(err))
			}
			return
		}
		select {
		case ss.inbox <- frame:
		case <-ss.server.baseCtx.Done():
			return
		}
	}
}

// work dispatches frames one at a time so a session's envelopes are handled
// in the order they arrived. Handlers run on the server context, so a
// disconnect does not cancel engine calls in flight.
func (ss *session) work() {
	defer ss.server.sessions.Done()

	for frame := range ss.inbox {
		err := ss.server.playground.HandleFrame(ss.server.baseCtx, ss.id, frame)
		if err == nil {
			continue
		}
		ss.logger.Debug("frame not handled", zap.Error(err))
		if needsReply(err) {
			ss.reply(err)
		}
	}
}

// needsReply reports errors the dispatcher did not already send back to the
// session: frames that failed to decode and envelopes that never reached a
// handler.
func needsReply(err error) bool {
	var invalid *validation.ValidationError
	if errors.As(err, &invalid) && invalid.Field == playground.DocumentField {
		return true
	}
	return handler.IsRoutingError(err)
}

func (ss *session) reply(err error) {
	frame, encErr := publish.Encode(event.KindErrors, event.Payload{"message": err.Error()})
	if encErr != nil {
		return
	}
	select {
	case ss.replies <- frame:
	default:
		ss.logger.Debug("reply dropped", zap.Error(err))
	}
}

// writePump writes published payloads and replies to the connection.
func (ss *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = ss.conn.Close()
		ss.server.sessions.Done()
	}()

	for {
		select {
		case frame := <-ss.sub.Messages():
			if !ss.write(websocket.TextMessage, frame) {
				return
			}

		case frame := <-ss.replies:
			if !ss.write(websocket.TextMessage, frame) {
				return
			}

		case <-ss.sub.Done():
			_ = ss.write(websocket.CloseMessage, []byte{})
			return

		case <-ticker.C:
			if !ss.write(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (ss *session) write(messageType int, data []byte) bool {
	_ = ss.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck // Deadline errors are handled by WriteMessage
	if err := ss.conn.WriteMessage(messageType, data); err != nil {
		ss.logger.Debug("websocket write failed", zap.Error(err))
		return false
	}
	return true
}
