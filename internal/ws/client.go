package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"teamhub-backend/internal/domain"
	"teamhub-backend/pkg/logger"
	"teamhub-backend/pkg/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 64 * 1024
	sendBufferSize = 256
)

// Client is one websocket connection bound to a verified identity
type Client struct {
	gateway  *Gateway
	conn     *websocket.Conn
	send     chan []byte
	connID   string
	identity *domain.Identity

	closeOnce sync.Once
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// readPump reads inbound frames and hands them to the gateway dispatcher.
// Runs once per connection; tears the connection down on exit.
func (c *Client) readPump() {
	defer func() {
		c.gateway.disconnect(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket read failed", zap.String("conn_id", c.connID), zap.Error(err))
			}
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.sendError("message", "INVALID_INPUT", "Malformed event frame")
			continue
		}

		c.gateway.dispatch(c, &frame)
	}
}

// writePump drains the send channel to the socket and keeps the connection
// alive with pings
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.gateway.refreshPresence(c)
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendEvent delivers an event to this connection only
func (c *Client) sendEvent(event string, payload interface{}) {
	data, err := json.Marshal(envelope{Event: event, Data: payload, Timestamp: time.Now()})
	if err != nil {
		logger.Error("failed to marshal event", zap.String("event", event))
		return
	}
	select {
	case c.send <- data:
	default:
		metrics.ChatBroadcastDroppedTotal.Inc()
	}
}

// sendError reports a failed inbound event back to the origin connection
// as "<scope>:error"; nothing is broadcast
func (c *Client) sendError(scope, code, message string) {
	c.sendEvent(scope+":error", errorPayload{Code: code, Message: message})
}
