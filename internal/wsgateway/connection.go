package wsgateway

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mohamedkhairy/trade-breakout/pkg/logger"
)

// ErrConnectionClosed is returned when sending on a closed connection
var ErrConnectionClosed = errors.New("connection closed")

// Connection represents a WebSocket connection with a chart client.
// All writes go through Send and are performed by the hub's write pump.
type Connection struct {
	ID            string
	UserID        string
	Conn          *websocket.Conn
	Send          chan []byte
	Subscriptions map[string]bool // topic -> subscribed
	mu            sync.RWMutex
	closed        bool
	closeOnce     sync.Once
	lastPong      time.Time
	createdAt     time.Time
}

// NewConnection creates a new WebSocket connection
func NewConnection(id string, userID string, conn *websocket.Conn) *Connection {
	return &Connection{
		ID:            id,
		UserID:        userID,
		Conn:          conn,
		Send:          make(chan []byte, 256),
		Subscriptions: make(map[string]bool),
		createdAt:     time.Now(),
		lastPong:      time.Now(),
	}
}

// Subscribe subscribes to a topic
func (c *Connection) Subscribe(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Subscriptions[topic] = true
}

// Unsubscribe unsubscribes from a topic
func (c *Connection) Unsubscribe(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.Subscriptions, topic)
}

// IsSubscribed checks if the connection is subscribed to a topic
func (c *Connection) IsSubscribed(topic string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Subscriptions[topic]
}

// ShouldReceive reports whether a message of type t is delivered.
// A connection without subscriptions receives everything.
func (c *Connection) ShouldReceive(t MessageType) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.Subscriptions) == 0 {
		return true
	}
	return c.Subscriptions[topicOf(t)]
}

// UpdateLastPong updates the last pong time
func (c *Connection) UpdateLastPong() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastPong = time.Now()
}

// GetLastPong returns the last pong time
func (c *Connection) GetLastPong() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastPong
}

// Close closes the connection. It is safe to call more than once.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.Send)
		c.mu.Unlock()
		if c.Conn != nil {
			c.Conn.Close()
		}
	})
}

// SendMessage queues msg for the write pump. Messages are dropped when the
// send buffer is full.
func (c *Connection) SendMessage(msg ServerMessage) error {
	data, err := encode(msg)
	if err != nil {
		return err
	}
	return c.enqueue(data)
}

func (c *Connection) enqueue(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return ErrConnectionClosed
	}
	select {
	case c.Send <- data:
		return nil
	default:
		logger.Warn("Dropping message, send buffer full",
			logger.String("connection_id", c.ID),
			logger.String("user_id", c.UserID),
		)
		return nil
	}
}
