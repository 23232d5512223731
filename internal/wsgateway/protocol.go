package wsgateway

import (
	"encoding/json"
	"fmt"

	"github.com/mohamedkhairy/trade-breakout/pkg/logger"
)

// MessageType represents the type of WebSocket message
type MessageType string

const (
	MessageTypeSubscribe   MessageType = "subscribe"
	MessageTypeUnsubscribe MessageType = "unsubscribe"
	MessageTypePing        MessageType = "ping"
	MessageTypePong        MessageType = "pong"

	MessageTypeArrowDraw   MessageType = "arrow.draw"
	MessageTypeArrowRemove MessageType = "arrow.remove"
	MessageTypeAlert       MessageType = "alert"
)

// Topics a client can subscribe to
const (
	TopicArrows = "arrows"
	TopicAlerts = "alerts"
)

// topicOf maps a server message type to its subscription topic
func topicOf(t MessageType) string {
	switch t {
	case MessageTypeArrowDraw, MessageTypeArrowRemove:
		return TopicArrows
	case MessageTypeAlert:
		return TopicAlerts
	}
	return ""
}

// ClientMessage represents a message from the client
type ClientMessage struct {
	Type   string   `json:"type"`
	Topic  string   `json:"topic,omitempty"`
	Topics []string `json:"topics,omitempty"`
}

// ServerMessage represents a message to the client
type ServerMessage struct {
	Type    string      `json:"type"`
	Data    interface{} `json:"data,omitempty"`
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message,omitempty"`
}

func validTopic(topic string) bool {
	return topic == TopicArrows || topic == TopicAlerts
}

// HandleClientMessage handles a message from the client
func (c *Connection) HandleClientMessage(msg *ClientMessage) error {
	topics := msg.Topics
	if msg.Topic != "" {
		topics = append([]string{msg.Topic}, topics...)
	}

	switch MessageType(msg.Type) {
	case MessageTypeSubscribe, MessageTypeUnsubscribe:
		if len(topics) == 0 {
			return c.SendError("invalid_request", "topic or topics field required")
		}
		for _, topic := range topics {
			if !validTopic(topic) {
				return c.SendError("invalid_topic", fmt.Sprintf("unknown topic: %s", topic))
			}
		}

		action := "subscribed"
		for _, topic := range topics {
			if MessageType(msg.Type) == MessageTypeSubscribe {
				c.Subscribe(topic)
			} else {
				c.Unsubscribe(topic)
				action = "unsubscribed"
			}
		}
		logger.Debug("Client subscription changed",
			logger.String("connection_id", c.ID),
			logger.String("user_id", c.UserID),
			logger.String("action", action),
			logger.Int("count", len(topics)),
		)
		return c.SendSuccess(action, map[string]interface{}{"topics": topics})

	case MessageTypePing:
		return c.SendMessage(ServerMessage{Type: string(MessageTypePong)})

	default:
		return c.SendError("unknown_message_type", fmt.Sprintf("unknown message type: %s", msg.Type))
	}
}

// SendSuccess sends a success message to the client
func (c *Connection) SendSuccess(action string, data interface{}) error {
	return c.SendMessage(ServerMessage{
		Type: "success",
		Data: map[string]interface{}{
			"action": action,
			"data":   data,
		},
	})
}

// SendError sends an error message to the client
func (c *Connection) SendError(code string, message string) error {
	return c.SendMessage(ServerMessage{Type: "error", Code: code, Message: message})
}

func encode(msg ServerMessage) ([]byte, error) {
	return json.Marshal(msg)
}
