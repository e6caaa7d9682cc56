package client

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second
)

// WebSocket subscribes to a ws:// or wss:// endpoint that pushes one message
// per text frame. It has no retry of its own: every failure is terminal.
type WebSocket struct {
	Dialer *websocket.Dialer
	Logger *zerolog.Logger
}

type wsSubscription struct {
	*subscription

	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSubscription) Close() error {
	err := s.subscription.Close()
	s.mu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.mu.Unlock()
	return err
}

// Open implements Transport.
func (t *WebSocket) Open(rawURL string, h Handlers) (Subscription, error) {
	u, err := parseURL(rawURL, "ws", "wss")
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	sub := &wsSubscription{subscription: &subscription{h: h, cancel: cancel}}

	dialer := t.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	go t.run(ctx, dialer, u.String(), sub)
	return sub, nil
}

func (t *WebSocket) run(ctx context.Context, dialer *websocket.Dialer, url string, sub *wsSubscription) {
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		sub.fail(err, true)
		return
	}

	sub.mu.Lock()
	if sub.closed.Load() {
		sub.mu.Unlock()
		conn.Close()
		return
	}
	sub.conn = conn
	sub.mu.Unlock()
	defer conn.Close()

	pingCtx, stopPing := context.WithCancel(ctx)
	defer stopPing()
	var writeMu sync.Mutex
	go t.pingLoop(pingCtx, conn, &writeMu)

	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})
	conn.SetReadDeadline(time.Now().Add(pongTimeout))

	sub.open()

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			sub.fail(err, true)
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		sub.message(string(data))
	}
}

// pingLoop sends periodic pings on conn until ctx is cancelled or a write fails.
func (t *WebSocket) pingLoop(ctx context.Context, conn *websocket.Conn, writeMu *sync.Mutex) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			writeMu.Unlock()
			if err != nil {
				if t.Logger != nil {
					t.Logger.Debug().Err(err).Msg("ws ping failed")
				}
				return
			}
		}
	}
}
