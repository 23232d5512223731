package wsgateway

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mohamedkhairy/trade-breakout/pkg/logger"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Handler authenticates and upgrades chart client connections
type Handler struct {
	hub  *Hub
	auth *AuthManager
}

// NewHandler creates the /ws handler
func NewHandler(hub *Hub, auth *AuthManager) *Handler {
	return &Handler{hub: hub, auth: auth}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.hub.Accepting() {
		logger.Warn("Max connections reached, rejecting new connection",
			logger.Int("max_connections", h.hub.config.MaxConnections),
		)
		http.Error(w, "Max connections reached", http.StatusServiceUnavailable)
		return
	}

	userID, err := h.authenticate(r)
	if err != nil {
		logger.Warn("Rejecting connection", logger.ErrorField(err))
		http.Error(w, "Invalid authentication token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Failed to upgrade connection", logger.ErrorField(err))
		return
	}

	connectionID := uuid.New().String()
	h.hub.Register(NewConnection(connectionID, userID, conn))

	logger.Info("WebSocket connection established",
		logger.String("connection_id", connectionID),
		logger.String("user_id", userID),
		logger.Int("user_connections", h.hub.registry.UserConnections(userID)),
		logger.String("remote_addr", r.RemoteAddr),
	)
}

// authenticate reads the token from the Authorization header or the
// "token" query parameter
func (h *Handler) authenticate(r *http.Request) (string, error) {
	if !h.auth.Enabled() {
		return DefaultUser, nil
	}
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		authHeader = r.URL.Query().Get("token")
	}
	token, err := h.auth.ExtractTokenFromHeader(authHeader)
	if err != nil {
		return "", err
	}
	return h.auth.ValidateToken(token)
}
