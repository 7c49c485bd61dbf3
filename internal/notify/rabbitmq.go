package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"savings-intents-go/internal/models"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// publisher is the subset of *amqp091.Channel used for delivery
type publisher interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// RabbitNotifier publishes notifications to a durable topic exchange
type RabbitNotifier struct {
	conn       *amqp091.Connection
	channel    publisher
	exchange   string
	routingKey string

	mu       sync.Mutex
	declared bool
}

func sanitizeAmqpUrl(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	if !strings.HasSuffix(clean, "/") {
		clean += "/"
	}
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

func NewRabbitNotifier(cfg models.NotifyConfig) (*RabbitNotifier, error) {
	cleanUrl, err := sanitizeAmqpUrl(cfg.RabbitMqUrl)
	if err != nil {
		return nil, fmt.Errorf("invalid rabbitmq url: %w", err)
	}

	conn, err := amqp091.Dial(cleanUrl)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to rabbitmq: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			zap.L().Warn("Failed to close rabbitmq connection", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("unable to open rabbitmq channel: %w", err)
	}

	return newRabbitNotifier(conn, channel, cfg), nil
}

func newRabbitNotifier(conn *amqp091.Connection, channel publisher, cfg models.NotifyConfig) *RabbitNotifier {
	routingKey := cfg.RoutingKey
	if routingKey == "" {
		routingKey = EventIntentCompleted
	}
	return &RabbitNotifier{conn: conn, channel: channel, exchange: cfg.Exchange, routingKey: routingKey}
}

func (n *RabbitNotifier) NotifyCompletion(ctx context.Context, userId string, summary models.IntentSummary) error {
	if err := n.declareExchange(); err != nil {
		return err
	}

	body, err := json.Marshal(Notification{Event: EventIntentCompleted, UserId: userId, Summary: summary})
	if err != nil {
		return fmt.Errorf("unable to encode notification: %w", err)
	}

	err = n.channel.PublishWithContext(ctx, n.exchange, n.routingKey, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    summary.IntentId,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("unable to publish notification: %w", err)
	}

	zap.L().Debug("Published completion notification",
		zap.String("exchange", n.exchange),
		zap.String("routing_key", n.routingKey),
		zap.String("reference", summary.ReferenceNumber))
	return nil
}

func (n *RabbitNotifier) declareExchange() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.declared {
		return nil
	}
	if err := n.channel.ExchangeDeclare(n.exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("unable to declare exchange %s: %w", n.exchange, err)
	}
	n.declared = true
	return nil
}

func (n *RabbitNotifier) Close() {
	if n.channel != nil {
		if err := n.channel.Close(); err != nil {
			zap.L().Warn("Failed to close rabbitmq channel", zap.Error(err))
		}
	}
	if n.conn != nil {
		if err := n.conn.Close(); err != nil {
			zap.L().Warn("Failed to close rabbitmq connection", zap.Error(err))
		}
	}
}
