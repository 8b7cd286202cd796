// Package transport carries JSON text messages over a persistent
// websocket connection.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

// ErrNotConnected is returned by Send once the connection is down.
// Requests fail fast; nothing is queued or retried here.
var ErrNotConnected = errors.New("transport not connected")

// Transport is the abstract send/receive surface the session depends on.
type Transport interface {
	Send(ctx context.Context, v any) error
	// Messages yields raw inbound frames. The channel closes when the
	// connection dies.
	Messages() <-chan []byte
	Connected() bool
	Close() error
}

// WS is the websocket transport.
type WS struct {
	conn        *websocket.Conn
	logger      *zap.Logger
	msgs        chan []byte
	closed      chan struct{}
	closeOnce   sync.Once
	sendTimeout time.Duration
}

// Dial connects to the server and starts the read loop.
func Dial(ctx context.Context, url string, sendTimeout time.Duration, logger *zap.Logger) (*WS, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	w := &WS{
		conn:        conn,
		logger:      logger,
		msgs:        make(chan []byte, 32),
		closed:      make(chan struct{}),
		sendTimeout: sendTimeout,
	}
	go w.readLoop()
	return w, nil
}

func (w *WS) readLoop() {
	defer close(w.msgs)
	defer w.markClosed()
	for {
		_, data, err := w.conn.Read(context.Background())
		if err != nil {
			// Treat clean close/going-away as normal.
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				if !w.isClosed() {
					w.logger.Warn("websocket read failed", zap.Error(err))
				}
			}
			return
		}
		w.msgs <- data
	}
}

// Send marshals v and writes it as one text frame with a bounded write
// deadline.
func (w *WS) Send(ctx context.Context, v any) error {
	if w.isClosed() {
		return ErrNotConnected
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal outbound: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, w.sendTimeout)
	defer cancel()
	if err := w.conn.Write(ctx, websocket.MessageText, payload); err != nil {
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	return nil
}

func (w *WS) Messages() <-chan []byte { return w.msgs }

func (w *WS) Connected() bool { return !w.isClosed() }

func (w *WS) Close() error {
	w.markClosed()
	return w.conn.Close(websocket.StatusNormalClosure, "bye")
}

func (w *WS) markClosed() {
	w.closeOnce.Do(func() { close(w.closed) })
}

func (w *WS) isClosed() bool {
	select {
	case <-w.closed:
		return true
	default:
		return false
	}
}
