package conn

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const wsWriteWait = 10 * time.Second

// WebSocketDialer connects to the server hub, passing the access token as a
// query parameter.
type WebSocketDialer struct {
	URL    string
	Token  string
	Dialer *websocket.Dialer
}

// Dial opens a WebSocket transport.
func (d WebSocketDialer) Dial(ctx context.Context) (Transport, error) {
	target, err := url.Parse(d.URL)
	if err != nil {
		return nil, fmt.Errorf("parse realtime url: %w", err)
	}
	if d.Token != "" {
		q := target.Query()
		q.Set("token", d.Token)
		target.RawQuery = q.Encode()
	}

	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, resp, err := dialer.DialContext(ctx, target.String(), nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("realtime handshake rejected: %s", resp.Status)
		}
		return nil, err
	}
	return &wsTransport{conn: conn}, nil
}

type wsTransport struct {
	writeMu sync.Mutex
	conn    *websocket.Conn
}

func (t *wsTransport) ReadMessage() (Message, error) {
	var msg Message
	if err := t.conn.ReadJSON(&msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}

func (t *wsTransport) WriteMessage(ctx context.Context, msg Message) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	deadline := time.Now().Add(wsWriteWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = t.conn.SetWriteDeadline(deadline)
	return t.conn.WriteJSON(msg)
}

func (t *wsTransport) Close() error {
	t.writeMu.Lock()
	_ = t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	t.writeMu.Unlock()
	return t.conn.Close()
}
