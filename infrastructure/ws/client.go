package ws

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"tradegate/domain"
	"tradegate/errors"
)

// Client wraps one upgraded socket behind the contract.Conn interface.
// gorilla/websocket allows a single concurrent writer, so every outbound
// frame goes through the write mutex; within one connection this also
// guarantees submission-order delivery.
type Client struct {
	identity domain.Identity
	conn     *websocket.Conn
	writeMu  sync.Mutex
	closed   atomic.Bool

	writeTimeout time.Duration
	log          *slog.Logger
}

func NewClient(identity domain.Identity, conn *websocket.Conn, writeTimeout time.Duration, log *slog.Logger) *Client {
	return &Client{
		identity:     identity,
		conn:         conn,
		writeTimeout: writeTimeout,
		log:          log,
	}
}

func (c *Client) Send(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed.Load() {
		return errors.ErrConnectionNotReady
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.conn.WriteJSON(v)
}

func (c *Client) Ready() bool {
	return !c.closed.Load()
}

// Ping sends a liveness probe. The read pump's pong handler pushes the
// read deadline forward when the client answers.
func (c *Client) Ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed.Load() {
		return errors.ErrConnectionNotReady
	}
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout))
}

// Close sends a close frame with the application code, then tears the
// socket down. Calling it twice is a no-op.
func (c *Client) Close(code int, reason string) error {
	if c.closed.Swap(true) {
		return nil
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	message := websocket.FormatCloseMessage(code, reason)
	if err := c.conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(c.writeTimeout)); err != nil {
		c.log.Debug("Error while writing close frame", "identity", c.identity, "err", err)
	}
	return c.conn.Close()
}
