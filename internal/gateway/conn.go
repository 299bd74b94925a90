package gateway

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
)

// writeTimeout bounds a single frame write so one slow companion cannot
// wedge the goroutine that triggered the send.
const writeTimeout = 10 * time.Second

// wsConn wraps a websocket connection with serialized frame writes and op
// id allocation. Reads stay single-goroutine in the session loop.
type wsConn struct {
	conn *websocket.Conn

	// ctx is the connection's lifetime; sends from machine goroutines
	// derive their deadlines from it.
	ctx context.Context

	writeMu sync.Mutex
	seq     atomic.Uint64
}

func newWSConn(ctx context.Context, conn *websocket.Conn) *wsConn {
	return &wsConn{conn: conn, ctx: ctx}
}

// nextID allocates a connection-unique op id.
func (c *wsConn) nextID() string {
	return fmt.Sprintf("op-%d", c.seq.Add(1))
}

// send encodes and writes one frame.
func (c *wsConn) send(typ string, payload any) error {
	data, err := Encode(typ, payload)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.ctx, writeTimeout)
	defer cancel()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("gateway: write %s frame: %w", typ, err)
	}
	return nil
}

// sendBinary writes one binary frame. Binary frames carry PCM audio:
// narration towards the companion, microphone towards the gateway.
func (c *wsConn) sendBinary(ctx context.Context, data []byte) error {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.Write(wctx, websocket.MessageBinary, data); err != nil {
		return fmt.Errorf("gateway: write audio frame: %w", err)
	}
	return nil
}

// read blocks for the next message of either kind.
func (c *wsConn) read(ctx context.Context) (websocket.MessageType, []byte, error) {
	typ, data, err := c.conn.Read(ctx)
	if err != nil {
		return typ, nil, fmt.Errorf("gateway: read frame: %w", err)
	}
	return typ, data, nil
}
