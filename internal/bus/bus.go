// Package bus publishes finished turns as JSON text frames over a websocket.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	log "log/slog"
	"net/url"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"voxloop/internal/turn"
)

const (
	From     = "voxloop"
	KindTurn = "turn"
)

type Message struct {
	turn.Record
	From string `json:"from"`
	Kind string `json:"kind"`
}

// Bus keeps one websocket connection and redials once when a write fails.
type Bus struct {
	url    string
	dialer *ws.Dialer

	mu   sync.Mutex
	conn *ws.Conn
}

func Dial(ctx context.Context, wsURL string) (*Bus, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("bus url must be ws:// or wss://, got %q", wsURL)
	}

	b := &Bus{
		url:    u.String(),
		dialer: &ws.Dialer{HandshakeTimeout: 5 * time.Second},
	}
	if err := b.connect(ctx); err != nil {
		return nil, err
	}

	log.Info("Connected to bus", "url", b.url)
	return b, nil
}

func (b *Bus) connect(ctx context.Context) error {
	conn, _, err := b.dialer.DialContext(ctx, b.url, nil)
	if err != nil {
		return fmt.Errorf("dial bus: %w", err)
	}
	b.conn = conn
	return nil
}

func (b *Bus) Publish(ctx context.Context, rec turn.Record) error {
	data, err := json.Marshal(Message{Record: rec, From: From, Kind: KindTurn})
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn != nil {
		if err = b.write(data); err == nil {
			return nil
		}
		log.Warn("Bus write failed, reconnecting", "url", b.url, "err", err)
		b.conn.Close()
		b.conn = nil
	}

	if err := b.connect(ctx); err != nil {
		return err
	}
	return b.write(data)
}

func (b *Bus) write(data []byte) error {
	b.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return b.conn.WriteMessage(ws.TextMessage, data)
}

func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn == nil {
		return nil
	}
	b.conn.WriteMessage(ws.CloseMessage, ws.FormatCloseMessage(ws.CloseNormalClosure, ""))
	err := b.conn.Close()
	b.conn = nil
	return err
}
