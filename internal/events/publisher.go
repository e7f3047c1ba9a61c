package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"github.com/bridgelet/bridgelet/internal/config"
)

const roomFanoutFailedKey = "chatroom.fanout.failed"

// RoomFanoutFailed records a room whose queue fan-out did not complete after
// the relational fact was committed. Consumers reconcile the listed
// organizations' pending queues.
type RoomFanoutFailed struct {
	ChatRoomID           string    `json:"chatRoomId"`
	ChannelID            string    `json:"channelId"`
	ClientID             string    `json:"clientId"`
	PendingOrganizations []string  `json:"pendingOrganizations"`
	Reason               string    `json:"reason"`
	OccurredAt           time.Time `json:"occurredAt"`
}

// Publisher emits reconciliation events onto the broker.
type Publisher interface {
	PublishRoomFanoutFailed(ctx context.Context, event RoomFanoutFailed) error
	Close() error
}

type amqpPublisher struct {
	conn     *amqp091.Connection
	exchange string
	logger   *slog.Logger
}

// NewAMQPPublisher connects to the broker and declares the topic exchange.
func NewAMQPPublisher(log *slog.Logger, cfg config.EventsConfig) (Publisher, error) {
	if log == nil {
		log = slog.Default()
	}
	conn, err := amqp091.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	defer func() {
		_ = ch.Close()
	}()
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &amqpPublisher{
		conn:     conn,
		exchange: cfg.Exchange,
		logger:   log.With(slog.String("component", "events")),
	}, nil
}

func (p *amqpPublisher) PublishRoomFanoutFailed(ctx context.Context, event RoomFanoutFailed) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	return p.publish(ctx, roomFanoutFailedKey, event)
}

func (p *amqpPublisher) publish(ctx context.Context, key string, payload any) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer func() {
		_ = ch.Close()
	}()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return err
	}
	p.logger.Info("published", slog.String("key", key), slog.String("exchange", p.exchange))
	return nil
}

func (p *amqpPublisher) Close() error {
	return p.conn.Close()
}
