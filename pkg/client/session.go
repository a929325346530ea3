package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"evalgo.org/playground/internal/publish"
)

// Session is an open WebSocket session. It receives every payload the
// server publishes and can send envelopes of its own.
type Session struct {
	conn *websocket.Conn
}

// Subscribe opens a WebSocket session.
func (c *Client) Subscribe(ctx context.Context) (*Session, error) {
	u, err := url.Parse(c.baseURL + "/ws")
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial failed with %s: %w", resp.Status, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return &Session{conn: conn}, nil
}

// Next blocks until the next payload arrives.
func (s *Session) Next() (publish.Message, error) {
	var msg publish.Message
	_, frame, err := s.conn.ReadMessage()
	if err != nil {
		return msg, err
	}
	if err := json.Unmarshal(frame, &msg); err != nil {
		return msg, fmt.Errorf("failed to decode frame %q: %w", strings.TrimSpace(string(frame)), err)
	}
	return msg, nil
}

// Send writes one envelope, for example
// {"kind": "proxy", "action": "create", "name": "edge", "configuration": "..."}.
func (s *Session) Send(envelope map[string]interface{}) error {
	return s.conn.WriteJSON(envelope)
}

func (s *Session) Close() error {
	_ = s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return s.conn.Close()
}
