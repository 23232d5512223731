package wsgateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mohamedkhairy/trade-breakout/internal/config"
	"github.com/mohamedkhairy/trade-breakout/pkg/logger"
)

var (
	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "breakout_ws_connections_active",
		Help: "Active chart client WebSocket connections",
	})

	wsMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "breakout_ws_messages_sent_total",
			Help: "Messages queued to chart clients by type",
		},
		[]string{"type"},
	)
)

// Hub manages chart client connections and broadcasts annotation and alert
// events to them
type Hub struct {
	config   config.WSGatewayConfig
	registry *ConnectionRegistry
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.RWMutex
	running  bool
	stats    HubStats
}

// HubStats holds statistics about the hub
type HubStats struct {
	ConnectionsTotal  int64     `json:"connections_total"`
	ConnectionsActive int64     `json:"connections_active"`
	Users             int64     `json:"users"`
	Broadcasts        int64     `json:"broadcasts"`
	MessagesSent      int64     `json:"messages_sent"`
	MessagesFailed    int64     `json:"messages_failed"`
	LastBroadcastTime time.Time `json:"last_broadcast_time"`
	mu                sync.RWMutex
}

// NewHub creates a new WebSocket hub
func NewHub(cfg config.WSGatewayConfig) *Hub {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 60 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		config:   cfg,
		registry: NewConnectionRegistry(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start starts the connection health monitor
func (h *Hub) Start() error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return nil
	}
	h.running = true
	h.mu.Unlock()

	logger.Info("Starting WebSocket hub",
		logger.Int("max_connections", h.config.MaxConnections),
	)

	h.wg.Add(1)
	go h.monitorConnections()
	return nil
}

// Stop closes every connection and waits for the pumps to exit
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()

	logger.Info("Stopping WebSocket hub")
	h.cancel()
	for _, conn := range h.registry.GetAll() {
		h.Unregister(conn)
	}
	h.wg.Wait()
	logger.Info("WebSocket hub stopped")
}

// Register registers a new connection and starts its pumps
func (h *Hub) Register(conn *Connection) {
	userConns := h.registry.Add(conn)
	wsConnectionsActive.Inc()

	h.stats.mu.Lock()
	h.stats.ConnectionsTotal++
	h.stats.mu.Unlock()

	logger.Info("Connection registered",
		logger.String("connection_id", conn.ID),
		logger.String("user_id", conn.UserID),
		logger.Int("user_connections", userConns),
		logger.Int("total_connections", h.registry.Count()),
	)

	if conn.Conn == nil {
		return
	}
	h.wg.Add(2)
	go h.writePump(conn)
	go h.readPump(conn)
}

// Unregister removes and closes a connection
func (h *Hub) Unregister(conn *Connection) {
	if !h.registry.Remove(conn.ID) {
		return
	}
	wsConnectionsActive.Dec()
	conn.Close()

	logger.Info("Connection unregistered",
		logger.String("connection_id", conn.ID),
		logger.String("user_id", conn.UserID),
		logger.Int("total_connections", h.registry.Count()),
	)
}

// Broadcast queues a message of type msgType to every interested connection
// and returns the number of connections it was queued for
func (h *Hub) Broadcast(msgType MessageType, data interface{}) int {
	payload, err := encode(ServerMessage{Type: string(msgType), Data: data})
	if err != nil {
		logger.Error("Failed to encode broadcast",
			logger.ErrorField(err),
			logger.String("type", string(msgType)),
		)
		return 0
	}

	sent, failed := 0, 0
	for _, conn := range h.registry.GetAll() {
		if !conn.ShouldReceive(msgType) {
			continue
		}
		if err := conn.enqueue(payload); err != nil {
			failed++
			continue
		}
		sent++
	}
	wsMessagesSent.WithLabelValues(string(msgType)).Add(float64(sent))

	h.stats.mu.Lock()
	h.stats.Broadcasts++
	h.stats.MessagesSent += int64(sent)
	h.stats.MessagesFailed += int64(failed)
	h.stats.LastBroadcastTime = time.Now()
	h.stats.mu.Unlock()

	logger.Debug("Broadcast message",
		logger.String("type", string(msgType)),
		logger.Int("sent", sent),
		logger.Int("failed", failed),
	)
	return sent
}

// Accepting reports whether another connection can be registered
func (h *Hub) Accepting() bool {
	return h.config.MaxConnections <= 0 || h.registry.Count() < h.config.MaxConnections
}

// writePump pumps queued messages to the WebSocket connection
func (h *Hub) writePump(conn *Connection) {
	defer h.wg.Done()
	defer h.Unregister(conn)

	ticker := time.NewTicker(h.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return

		case message, ok := <-conn.Send:
			conn.Conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if !ok {
				conn.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			conn.Conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := conn.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads client messages until the connection fails
func (h *Hub) readPump(conn *Connection) {
	defer h.wg.Done()
	defer h.Unregister(conn)

	conn.Conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.UpdateLastPong()
		conn.Conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Debug("WebSocket error",
					logger.ErrorField(err),
					logger.String("connection_id", conn.ID),
				)
			}
			return
		}

		var clientMsg ClientMessage
		if err := json.Unmarshal(message, &clientMsg); err != nil {
			conn.SendError("invalid_message", "failed to parse message")
			continue
		}
		if err := conn.HandleClientMessage(&clientMsg); err != nil {
			logger.Debug("Failed to handle client message",
				logger.ErrorField(err),
				logger.String("connection_id", conn.ID),
			)
		}
	}
}

// monitorConnections removes connections that stopped answering pings
func (h *Hub) monitorConnections() {
	defer h.wg.Done()

	ticker := time.NewTicker(h.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case now := <-ticker.C:
			stale := h.config.ReadTimeout * 2
			for _, conn := range h.registry.GetAll() {
				if idle := now.Sub(conn.GetLastPong()); idle > stale {
					logger.Info("Removing stale connection",
						logger.String("connection_id", conn.ID),
						logger.String("user_id", conn.UserID),
						logger.Duration("idle_time", idle),
					)
					h.Unregister(conn)
				}
			}
		}
	}
}

// GetStats returns hub statistics
func (h *Hub) GetStats() HubStats {
	h.stats.mu.RLock()
	defer h.stats.mu.RUnlock()

	return HubStats{
		ConnectionsTotal:  h.stats.ConnectionsTotal,
		ConnectionsActive: int64(h.registry.Count()),
		Users:             int64(h.registry.Users()),
		Broadcasts:        h.stats.Broadcasts,
		MessagesSent:      h.stats.MessagesSent,
		MessagesFailed:    h.stats.MessagesFailed,
		LastBroadcastTime: h.stats.LastBroadcastTime,
	}
}

// ServeStats writes the hub statistics as JSON
func (h *Hub) ServeStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.GetStats()); err != nil {
		logger.Error("Failed to encode hub stats", logger.ErrorField(err))
	}
}
