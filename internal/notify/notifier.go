package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/multierr"

	"github.com/mohamedkhairy/trade-breakout/internal/config"
	"github.com/mohamedkhairy/trade-breakout/internal/models"
	"github.com/mohamedkhairy/trade-breakout/internal/storage"
	"github.com/mohamedkhairy/trade-breakout/pkg/logger"
)

var (
	notificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "breakout_notifications_sent_total",
			Help: "Notifications delivered by channel",
		},
		[]string{"channel"},
	)

	notificationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "breakout_notification_failures_total",
			Help: "Notification failures by channel",
		},
		[]string{"channel"},
	)
)

// Notifier fans an alert out to every configured channel
type Notifier struct {
	channels []Channel
	timeout  time.Duration
}

// NewNotifier creates a notifier over channels. A zero timeout means 5s.
func NewNotifier(timeout time.Duration, channels ...Channel) *Notifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Notifier{channels: channels, timeout: timeout}
}

// FromConfig builds the notifier for the enabled alert channels. The alert
// stream channel is always present.
func FromConfig(redis storage.RedisClient, cfg config.AlertsConfig) *Notifier {
	channels := []Channel{NewStreamChannel(redis, cfg.Stream)}
	if cfg.Popup {
		channels = append(channels, NewPopupChannel(redis, cfg.PopupChannel))
	}
	if cfg.Email {
		channels = append(channels, NewEmailChannel(redis, cfg.EmailStream, cfg.EmailAddress))
	}
	if cfg.Sound {
		channels = append(channels, NewSoundChannel(redis, cfg.SoundChannel, cfg.SoundType))
	}
	return NewNotifier(cfg.Timeout, channels...)
}

// Channels returns the channel names in delivery order
func (n *Notifier) Channels() []string {
	names := make([]string, len(n.channels))
	for i, c := range n.channels {
		names[i] = c.Name()
	}
	return names
}

// Notify delivers alert on every channel. A failing channel does not stop
// the others; all failures are combined into the returned error.
func (n *Notifier) Notify(ctx context.Context, alert *models.BreakoutAlert) error {
	var err error
	for _, c := range n.channels {
		sendCtx, cancel := context.WithTimeout(ctx, n.timeout)
		sendErr := c.Send(sendCtx, alert)
		cancel()

		if sendErr != nil {
			notificationFailures.WithLabelValues(c.Name()).Inc()
			logger.Warn("Notification failed",
				logger.String("channel", c.Name()),
				logger.String("alert_id", alert.ID),
				logger.ErrorField(sendErr),
			)
			err = multierr.Append(err, fmt.Errorf("%s: %w", c.Name(), sendErr))
			continue
		}
		notificationsSent.WithLabelValues(c.Name()).Inc()
	}
	return err
}
