package fanout

import (
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const maxMissedPongs = 2

// Client is one connected streaming subscriber.
type Client struct {
	id     string
	hub    *Hub
	conn   *websocket.Conn
	sendCh chan []byte

	missedPongs atomic.Int32
}

func newClient(h *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:     uuid.New().String(),
		hub:    h,
		conn:   conn,
		sendCh: make(chan []byte, h.fanoutCfg.QueueSize),
	}
}

// send enqueues data for delivery. A full queue means this client is a
// slow consumer: per spec §4.9 it is disconnected outright rather than
// silently dropping messages, so the client's own reconnect gets a fresh
// snapshot instead of a stream with silent gaps. Sending on a channel the
// hub concurrently closed (client already unregistered) is recovered from
// rather than allowed to panic the caller's goroutine.
func (c *Client) send(data []byte) {
	defer func() { _ = recover() }()
	select {
	case c.sendCh <- data:
	default:
		c.hub.log.Warn("closing slow fanout client", "client_id", c.id)
		c.closeReason("slow-consumer")
	}
}

func (c *Client) closeReason(reason string) {
	c.hub.unregister(c)
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, reason),
		time.Now().Add(time.Second))
	c.conn.Close()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	maxSize := c.hub.wsCfg.MaxMessageSize
	if maxSize <= 0 {
		maxSize = 8192
	}
	c.conn.SetReadLimit(int64(maxSize))

	pingInterval := time.Duration(c.hub.wsCfg.PingInterval) * time.Second
	pongTimeout := time.Duration(c.hub.wsCfg.PongTimeout) * time.Second
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	if pongTimeout <= 0 {
		pongTimeout = 10 * time.Second
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(pingInterval*(maxMissedPongs+1) + pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.missedPongs.Store(0)
		return c.conn.SetReadDeadline(time.Now().Add(pingInterval*(maxMissedPongs+1) + pongTimeout))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.handleMessage(data)
	}
}

func (c *Client) handleMessage(data []byte) {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	if msg.Type != typePing {
		return
	}
	if payload, err := json.Marshal(Message{Type: TypePong}); err == nil {
		c.send(payload)
	}
}

func (c *Client) writePump() {
	pingInterval := time.Duration(c.hub.wsCfg.PingInterval) * time.Second
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	pongTimeout := time.Duration(c.hub.wsCfg.PongTimeout) * time.Second
	if pongTimeout <= 0 {
		pongTimeout = 10 * time.Second
	}

	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.sendCh:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(pongTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			if c.missedPongs.Add(1) > maxMissedPongs {
				c.hub.log.Warn("closing fanout client after missed pongs", "client_id", c.id)
				c.hub.unregister(c)
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(pongTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
