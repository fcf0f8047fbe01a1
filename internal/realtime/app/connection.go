package app

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"daycare_realtime_service/internal/realtime/domain"
	"daycare_realtime_service/pkg/logger"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrSendQueueFull the connection's outbound queue overflowed
	ErrSendQueueFull = errors.New("connection send queue is full")
	// ErrConnClosed push after the connection closed
	ErrConnClosed = errors.New("connection is closed")
)

const (
	// sendQueueSize bounded outbound queue per connection. A stalled
	// client overflows its own queue, it never stalls the router.
	sendQueueSize = 64

	writeTimeout = 5 * time.Second
)

// wsConn wraps one websocket connection behind the Sender interface.
// All writes funnel through a single writer goroutine, the websocket is
// never written from two goroutines.
type wsConn struct {
	id     string
	conn   *websocket.Conn
	sendCh chan []byte
	ctx    context.Context
	cancel context.CancelFunc
}

func newWSConn(conn *websocket.Conn) *wsConn {
	ctx, cancel := context.WithCancel(context.Background())
	c := &wsConn{
		id:     uuid.New().String(),
		conn:   conn,
		sendCh: make(chan []byte, sendQueueSize),
		ctx:    ctx,
		cancel: cancel,
	}

	go c.writeLoop()

	return c
}

// ID transport-assigned connection id
func (c *wsConn) ID() string {
	return c.id
}

// Push enqueue an event without blocking. On a full queue the event is
// dropped and an error returned, the recipient catches up from history.
func (c *wsConn) Push(resp domain.WSResponse) error {
	select {
	case <-c.ctx.Done():
		return ErrConnClosed
	default:
	}

	b, err := json.Marshal(resp)
	if err != nil {
		return err
	}

	select {
	case c.sendCh <- b:
		return nil
	case <-c.ctx.Done():
		return ErrConnClosed
	default:
		return ErrSendQueueFull
	}
}

func (c *wsConn) writeLoop() {
	for {
		select {
		case b := <-c.sendCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				logger.Log.Errorf("write message error:", err, zap.String("connID", c.id))
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// Stop end the writer goroutine. The handler owns the websocket itself
// and stays responsible for closing it.
func (c *wsConn) Stop() {
	c.cancel()
}
