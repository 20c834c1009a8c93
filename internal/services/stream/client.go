package stream

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Timeouts follow the Gorilla chat example.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 64 * 1024
	sendBuffer     = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// The platform runs behind an authenticated admin UI.
		return true
	},
}

// Client is one live websocket connection. It stays anonymous until the
// peer sends the register handshake carrying its chosen client id.
type Client struct {
	router *Router
	log    *logrus.Logger
	conn   *websocket.Conn

	send      chan []byte
	closeOnce sync.Once
}

type inboundMessage struct {
	Event    string `json:"event"`
	ClientID string `json:"client_id"`
}

// ServeWS upgrades the request and runs the connection's pumps.
func ServeWS(router *Router, log *logrus.Logger, w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Error("Websocket upgrade failed")
		return
	}
	c := &Client{
		router: router,
		log:    log,
		conn:   ws,
		send:   make(chan []byte, sendBuffer),
	}
	go c.writePump()
	go c.readPump()
}

// Push queues a payload without blocking; reports false when the send
// buffer is full (slow client) or the connection is closing.
func (c *Client) Push(payload []byte) bool {
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *Client) readPump() {
	defer func() {
		c.router.Unregister(c)
		c.close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.WithError(err).Debug("Websocket closed unexpectedly")
			}
			return
		}
		var msg inboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.WithError(err).Debug("Ignoring malformed websocket message")
			continue
		}
		if msg.Event == "register" && msg.ClientID != "" {
			c.router.Register(msg.ClientID, c)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		_ = c.conn.Close()
	})
}
