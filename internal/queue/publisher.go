package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/altamontana/booking-api/internal/config"
)

// Publisher sends booking events.  Errors are logged and returned so the
// caller can choose to ignore them without interrupting the request flow.
type Publisher interface {
	PublishBookingConfirmed(ctx context.Context, event BookingConfirmedEvent) error
}

// RabbitPublisher dials the broker per publish.  Confirmations are rare
// (one per paid booking), so a long-lived channel is not worth its
// reconnect handling.
type RabbitPublisher struct {
	url    string
	queue  string
	logger *zap.Logger
}

// NewPublisher returns a RabbitPublisher, or a NopPublisher when the broker
// is disabled.
func NewPublisher(cfg config.BrokerConfig, logger *zap.Logger) Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled {
		return NopPublisher{}
	}
	return &RabbitPublisher{url: cfg.URL, queue: cfg.Queue, logger: logger.Named("rabbitmq")}
}

// PublishBookingConfirmed publishes event to the booking queue.  Messages
// are marked as persistent.
func (p *RabbitPublisher) PublishBookingConfirmed(ctx context.Context, event BookingConfirmedEvent) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.logger.Warn("dial failed", zap.Error(err))
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.logger.Warn("channel open failed", zap.Error(err))
		return err
	}
	defer func() { _ = ch.Close() }()

	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		p.logger.Warn("queue declare failed", zap.String("queue", p.queue), zap.Error(err))
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		MessageId:    event.BuyOrder,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		p.logger.Warn("publish failed", zap.String("buy_order", event.BuyOrder), zap.Error(err))
		return err
	}
	p.logger.Info("booking confirmed event published", zap.String("buy_order", event.BuyOrder))
	return nil
}

// NopPublisher drops events; used when RABBITMQ_ENABLED is off.
type NopPublisher struct{}

func (NopPublisher) PublishBookingConfirmed(context.Context, BookingConfirmedEvent) error { return nil }
