package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	dbm "zapmenu/internal/models/db_models"
)

const (
	BillingExchange         = "zapmenu.billing.events"
	RoutingKeyStatusChanged = "billing.status_changed"
)

// StatusChangedEvent tells dependent clients to re-fetch the subscription
// before their next mutation.
type StatusChangedEvent struct {
	MerchantID  uuid.UUID              `json:"merchant_id"`
	From        dbm.SubscriptionStatus `json:"from"`
	To          dbm.SubscriptionStatus `json:"to"`
	NextDueDate *time.Time             `json:"next_due_date,omitempty"`
	Source      string                 `json:"source"`
	OccurredAt  time.Time              `json:"occurred_at"`
}

type BillingEventPublisher interface {
	PublishStatusChanged(ctx context.Context, event StatusChangedEvent) error
	Close() error
}

type rabbitEventPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	mu      sync.Mutex
}

// NewRabbitEventPublisher connects and declares the billing topic exchange.
func NewRabbitEventPublisher(url string) (BillingEventPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(BillingExchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	log.Info().Str("exchange", BillingExchange).Msg("billing events publisher connected")
	return &rabbitEventPublisher{conn: conn, channel: ch}, nil
}

func (p *rabbitEventPublisher) PublishStatusChanged(ctx context.Context, event StatusChangedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.channel.PublishWithContext(ctx, BillingExchange, RoutingKeyStatusChanged, false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    event.OccurredAt,
			MessageId:    uuid.NewString(),
			Body:         body,
		})
}

func (p *rabbitEventPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.channel.Close(); err != nil {
		log.Warn().Err(err).Msg("close rabbitmq channel")
	}
	return p.conn.Close()
}

type logEventPublisher struct{}

// NewLogEventPublisher is used when no broker is configured.
func NewLogEventPublisher() BillingEventPublisher {
	return logEventPublisher{}
}

func (logEventPublisher) PublishStatusChanged(_ context.Context, event StatusChangedEvent) error {
	log.Info().
		Str("merchant_id", event.MerchantID.String()).
		Str("from", string(event.From)).
		Str("to", string(event.To)).
		Str("source", event.Source).
		Msg("billing status changed")
	return nil
}

func (logEventPublisher) Close() error { return nil }
