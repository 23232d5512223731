package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/mohamedkhairy/trade-breakout/internal/models"
	"github.com/mohamedkhairy/trade-breakout/internal/storage"
	"github.com/mohamedkhairy/trade-breakout/pkg/logger"
)

const (
	// PopupTitle is the title of popup notifications
	PopupTitle = "TradeBreakOut Alert"
	// EmailSubject is the subject of email notifications
	EmailSubject = "TBO Alert"
)

// Channel delivers an alert over one medium
type Channel interface {
	Name() string
	Send(ctx context.Context, alert *models.BreakoutAlert) error
}

// Popup is the pub/sub payload of a popup notification
type Popup struct {
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	AlertID   string    `json:"alert_id"`
	Symbol    string    `json:"symbol"`
	Side      string    `json:"side"`
	Timestamp time.Time `json:"timestamp"`
}

// Email is an outbox entry picked up by the mail relay
type Email struct {
	To      string `json:"to"`
	From    string `json:"from"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	AlertID string `json:"alert_id"`
}

// Sound is the pub/sub payload asking chart clients to play a sound
type Sound struct {
	Type    string `json:"type"`
	AlertID string `json:"alert_id"`
	Symbol  string `json:"symbol"`
}

// StreamChannel appends alerts to a Redis stream for downstream consumers
type StreamChannel struct {
	redis  storage.RedisClient
	stream string
}

func NewStreamChannel(redis storage.RedisClient, stream string) *StreamChannel {
	return &StreamChannel{redis: redis, stream: stream}
}

func (c *StreamChannel) Name() string { return "stream" }

func (c *StreamChannel) Send(ctx context.Context, alert *models.BreakoutAlert) error {
	if err := c.redis.PublishToStream(ctx, c.stream, "alert", alert); err != nil {
		return fmt.Errorf("failed to publish alert to stream: %w", err)
	}
	logger.Debug("Routed alert to stream",
		logger.String("alert_id", alert.ID),
		logger.Symbol(alert.Symbol),
		logger.String("stream", c.stream),
	)
	return nil
}

// PopupChannel publishes popup notifications
type PopupChannel struct {
	redis   storage.RedisClient
	channel string
}

func NewPopupChannel(redis storage.RedisClient, channel string) *PopupChannel {
	return &PopupChannel{redis: redis, channel: channel}
}

func (c *PopupChannel) Name() string { return "popup" }

func (c *PopupChannel) Send(ctx context.Context, alert *models.BreakoutAlert) error {
	return c.redis.Publish(ctx, c.channel, Popup{
		Title:     PopupTitle,
		Message:   alert.Message,
		AlertID:   alert.ID,
		Symbol:    alert.Symbol,
		Side:      alert.Side,
		Timestamp: alert.Timestamp,
	})
}

// EmailChannel queues emails in a Redis stream outbox. Nothing is queued
// while the recipient address is empty.
type EmailChannel struct {
	redis  storage.RedisClient
	stream string
	to     string
}

func NewEmailChannel(redis storage.RedisClient, stream, to string) *EmailChannel {
	return &EmailChannel{redis: redis, stream: stream, to: to}
}

func (c *EmailChannel) Name() string { return "email" }

func (c *EmailChannel) Send(ctx context.Context, alert *models.BreakoutAlert) error {
	if c.to == "" {
		return nil
	}
	return c.redis.PublishToStream(ctx, c.stream, "email", Email{
		To:      c.to,
		From:    c.to,
		Subject: EmailSubject,
		Body:    alert.Message,
		AlertID: alert.ID,
	})
}

// SoundChannel asks chart clients to play a sound
type SoundChannel struct {
	redis     storage.RedisClient
	channel   string
	soundType string
}

func NewSoundChannel(redis storage.RedisClient, channel, soundType string) *SoundChannel {
	return &SoundChannel{redis: redis, channel: channel, soundType: soundType}
}

func (c *SoundChannel) Name() string { return "sound" }

func (c *SoundChannel) Send(ctx context.Context, alert *models.BreakoutAlert) error {
	return c.redis.Publish(ctx, c.channel, Sound{
		Type:    c.soundType,
		AlertID: alert.ID,
		Symbol:  alert.Symbol,
	})
}
