package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/codefionn/wsbridge/internal/consts"
	"github.com/codefionn/wsbridge/internal/logger"
	"github.com/codefionn/wsbridge/internal/protocol"
)

// Client owns one accepted connection and runs its
// read -> parse -> dispatch -> encode -> write loop until the peer
// closes or a fatal protocol violation occurs. Responses leave in the
// order their requests were framed; nothing is shared with other
// sessions.
type Client struct {
	// Connection identifier for log correlation
	ID string

	conn        net.Conn
	handler     *Handler
	codec       *protocol.FrameCodec
	readTimeout time.Duration
	ctx         context.Context

	// Outbound frames, already encoded. FIFO; the write pump preserves
	// per-connection response ordering.
	send chan []byte

	// Control
	mu       sync.Mutex
	closed   bool
	stopOnce sync.Once
	stopChan chan struct{}

	// onClose is invoked once when the session ends (server untracking)
	onClose func(id string)
}

// NewClient creates a session for an accepted connection.
func NewClient(id string, conn net.Conn, handler *Handler, codec *protocol.FrameCodec, readTimeout time.Duration, onClose func(id string)) *Client {
	return &Client{
		ID:          id,
		conn:        conn,
		handler:     handler,
		codec:       codec,
		readTimeout: readTimeout,
		send:        make(chan []byte, 64),
		stopChan:    make(chan struct{}),
		onClose:     onClose,
	}
}

// Start begins the read and write pumps.
func (c *Client) Start(ctx context.Context) {
	c.ctx = ctx
	go c.readPump()
	go c.writePump()
	logger.Info("client %s connected from %s", c.ID, c.conn.RemoteAddr())
}

// Stop closes the session. Safe to call more than once.
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopChan)

		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		if c.conn != nil {
			c.conn.Close()
		}

		if c.onClose != nil {
			c.onClose(c.ID)
		}

		logger.Info("client %s disconnected", c.ID)
	})
}

// readPump reads frames until the peer closes or a fatal error occurs
func (c *Client) readPump() {
	defer c.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		default:
		}

		// No deadline between frames; an idle client may sit quietly.
		if err := c.conn.SetReadDeadline(time.Time{}); err != nil {
			logger.Error("client %s failed to clear read deadline: %v", c.ID, err)
			return
		}

		length, err := c.codec.ReadHeader(c.conn)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				logger.Info("client %s closed the connection", c.ID)
			case errors.Is(err, net.ErrClosed):
				// Shutdown path.
			case errors.Is(err, protocol.ErrFrameTooLarge):
				logger.Warn("client %s declared oversized frame of %d bytes (max %d)", c.ID, length, c.codec.MaxSize())
				c.enqueueError(protocol.MsgMessageTooLarge)
				if c.drainOversized(length) {
					continue
				}
			default:
				logger.Error("client %s header read failed: %v", c.ID, err)
			}
			return
		}

		// Payload phase is the only one with a built-in timeout.
		if err := c.conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			logger.Error("client %s failed to set read deadline: %v", c.ID, err)
			return
		}

		payload, n, err := c.codec.ReadPayload(c.conn, length)
		if err != nil {
			if isTimeout(err) {
				logger.Warn("client %s payload read timed out after %s (%d of %d bytes)", c.ID, c.readTimeout, n, length)
				c.enqueueError(protocol.MsgReadTimeout)
				continue
			}
			if n == 0 {
				// Declared a non-zero length and then sent nothing.
				logger.Warn("client %s sent an unexpected empty message (declared %d bytes)", c.ID, length)
				return
			}
			logger.Error("client %s payload read failed after %d of %d bytes: %v", c.ID, n, length, err)
			return
		}

		c.handleFrame(payload)
	}
}

// writePump writes queued response frames to the connection
func (c *Client) writePump() {
	defer c.Stop()

	for {
		select {
		case <-c.stopChan:
			return

		case payload := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(consts.WriteTimeout)); err != nil {
				logger.Error("client %s failed to set write deadline: %v", c.ID, err)
				return
			}
			if err := c.codec.WriteFrame(c.conn, payload); err != nil {
				logger.Error("client %s response write failed: %v", c.ID, err)
				return
			}
		}
	}
}

// handleFrame parses, dispatches, and queues the response for one
// frame. A panic escaping a handler is converted into a best-effort
// error frame instead of killing the process.
func (c *Client) handleFrame(payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("client %s handler panic: %v", c.ID, r)
			c.enqueueError(fmt.Sprintf("%v", r))
		}
	}()

	req, err := protocol.Parse(payload)
	if err != nil {
		logger.Warn("client %s sent an undecodable payload (%d bytes)", c.ID, len(payload))
		c.enqueueError(protocol.MsgInvalidJSON)
		return
	}

	response := c.handler.Handle(c.ctx, req)
	c.enqueueResponse(response)
}

// drainOversized discards the declared body of an oversized frame so
// the next header lines up. Returns false when the stream cannot be
// re-synchronized and the connection must close.
func (c *Client) drainOversized(length uint32) bool {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
		return false
	}
	if err := c.codec.Discard(c.conn, length); err != nil {
		logger.Warn("client %s stream desynchronized after oversized frame: %v", c.ID, err)
		return false
	}
	return true
}

// enqueueResponse encodes a response payload and queues it for writing
func (c *Client) enqueueResponse(response interface{}) {
	payload, err := protocol.Encode(response)
	if err != nil {
		logger.Error("client %s failed to encode response: %v", c.ID, err)
		c.Stop()
		return
	}
	c.enqueue(payload)
}

// enqueueError queues a generic {"error": ...} frame
func (c *Client) enqueueError(message string) {
	c.enqueueResponse(protocol.ErrorResponse{Error: message})
}

func (c *Client) enqueue(payload []byte) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		logger.Warn("client %s dropped a response, session already closed", c.ID)
		return
	}

	select {
	case c.send <- payload:
	case <-c.stopChan:
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
