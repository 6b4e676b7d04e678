// Package socket provides an interface for managing socket.
package socket

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// ErrSubprotocolRejected is returned when the peer did not select the
// requested subprotocol.
var ErrSubprotocolRejected = errors.New("subprotocol rejected")

// WebSocket wraps the gorilla/websocket connection.
type WebSocket struct {
	conn *websocket.Conn
}

// Dial opens a WebSocket connection to url negotiating subprotocol.
func Dial(ctx context.Context, url, subprotocol string, timeout time.Duration) (*WebSocket, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: timeout,
		Subprotocols:     []string{subprotocol},
	}

	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: status %d: %w", url, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	if conn.Subprotocol() != subprotocol {
		_ = conn.Close()
		return nil, fmt.Errorf("%q: %w", subprotocol, ErrSubprotocolRejected)
	}
	return &WebSocket{
		conn: conn,
	}, nil
}

// New creates a new WebSocket connection by upgrading the HTTP request.
func New(w http.ResponseWriter, r *http.Request, subprotocols ...string) (*WebSocket, error) {
	ug := websocket.Upgrader{
		Subprotocols: subprotocols,
		CheckOrigin: func(_ *http.Request) bool {
			return true
		},
	}

	conn, err := ug.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return &WebSocket{
		conn: conn,
	}, nil
}

// Close closes the WebSocket connection.
func (s *WebSocket) Close() error {
	return s.conn.Close()
}

// WriteJSON sends a text message to the WebSocket connection.
func (s *WebSocket) WriteJSON(data any) error {
	if err := s.conn.WriteJSON(data); err != nil {
		return err
	}
	return nil
}

// ReadMessage reads the next text or binary message.
func (s *WebSocket) ReadMessage() ([]byte, error) {
	_, data, err := s.conn.ReadMessage()
	return data, err
}

// IsClosed reports whether err means the connection was closed.
func IsClosed(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
		errors.Is(err, net.ErrClosed)
}
