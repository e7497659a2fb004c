package signal

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type channelKind int

const (
	controlChannel channelKind = iota
	eventChannel
)

func (k channelKind) String() string {
	if k == eventChannel {
		return "events"
	}
	return "control"
}

// wsChannel is one websocket with a buffered write pump.
type wsChannel struct {
	kind channelKind
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func newChannel(kind channelKind, conn *websocket.Conn) *wsChannel {
	return &wsChannel{
		kind: kind,
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
}

func (c *wsChannel) TrySend(b []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- b:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsChannel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

func (c *wsChannel) writePump(ctx context.Context, logger zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				logger.Debug().Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logger.Error().Err(err).Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Error().Err(err).Msg("writePump write error")
				return
			}
		}
	}
}

// readPump hands every frame to onFrame until the socket fails, then
// reports the error once through onErr.
func (c *wsChannel) readPump(ctx context.Context, logger zerolog.Logger, onFrame func([]byte), onErr func(error)) {
	defer c.Close()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				logger.Debug().Msg("readPump ctx done")
				return
			}
			logger.Error().Err(err).Msg("readPump read error")
			onErr(err)
			return
		}
		onFrame(data)
	}
}
