package chat

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 5120
)

// Client is one websocket connection. It satisfies session.Conn.
type Client struct {
	Hub    *Hub
	Conn   *websocket.Conn
	Send   chan []byte
	userID int64
	id     string

	limiter *rate.Limiter
	done    chan struct{}
	once    sync.Once
}

func NewClient(hub *Hub, conn *websocket.Conn, userID int64) *Client {
	return &Client{
		Hub:     hub,
		Conn:    conn,
		Send:    make(chan []byte, hub.opts.SendBuffer),
		userID:  userID,
		id:      uuid.NewString(),
		limiter: rate.NewLimiter(rate.Limit(hub.opts.EventsPerSec), hub.opts.EventsBurst),
		done:    make(chan struct{}),
	}
}

func (c *Client) ID() string    { return c.id }
func (c *Client) UserID() int64 { return c.userID }

// Deliver queues payload without blocking. A full queue means the peer is not
// keeping up; the connection is closed and the payload dropped.
func (c *Client) Deliver(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.Send <- payload:
		return true
	case <-c.done:
		return false
	default:
		c.close()
		return false
	}
}

func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
		c.Conn.Close()
	})
}

func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister(c)
		c.close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, msg, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.Hub.log.Debug("[hub] read failed", "conn", c.id, "err", err)
			}
			break
		}
		var in Inbound
		if err := json.Unmarshal(msg, &in); err != nil {
			c.Hub.reject(c, Inbound{}, "malformed frame", "validation")
			continue
		}
		if !c.limiter.Allow() {
			c.Hub.reject(c, in, "too many events", "rate_limited")
			continue
		}
		c.Hub.handle(c, in)
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
		case message := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
