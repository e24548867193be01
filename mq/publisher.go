// Package mq bridges the booking service to RabbitMQ: booking changes are
// published on a topic exchange and gateway settlements are consumed from it.
package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

type Publisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func NewPublisher(url, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &Publisher{conn: conn, ch: ch, exchange: exchange}, nil
}

func (p *Publisher) PublishJSON(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         b,
	})
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// JSONPublisher is the part of Publisher the event bridge needs.
type JSONPublisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

// Envelope wraps every booking event put on the bus.
type Envelope struct {
	EventID    string    `json:"event_id"`
	Event      string    `json:"event"`
	CourtID    uint      `json:"court_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// Routing keys. Scoped events carry the court id as the last segment so
// consumers can bind to booking.court.*.
const (
	KeyGlobal      = "booking.global"
	keyCourtPrefix = "booking.court."
)

func CourtKey(courtID uint) string {
	return fmt.Sprintf("%s%d", keyCourtPrefix, courtID)
}

// ErrQueueFull is returned when the bridge cannot take another event
// without blocking the caller. The event is dropped.
var ErrQueueFull = errors.New("event queue full")

const (
	defaultQueueSize = 256
	publishTimeout   = 5 * time.Second
)

type outbound struct {
	key string
	env Envelope
}

// EventBridge publishes booking notifications to the event bus. Emit only
// enqueues; Run owns the broker round-trips so a slow broker never holds a
// booking request.
type EventBridge struct {
	pub   JSONPublisher
	log   *logrus.Logger
	now   func() time.Time
	queue chan outbound
}

func NewEventBridge(pub JSONPublisher, log *logrus.Logger) *EventBridge {
	return &EventBridge{
		pub:   pub,
		log:   log,
		now:   time.Now,
		queue: make(chan outbound, defaultQueueSize),
	}
}

func (b *EventBridge) EmitGlobal(_ context.Context, event string, payload any) error {
	return b.enqueue(KeyGlobal, event, 0, payload)
}

func (b *EventBridge) EmitScoped(_ context.Context, courtID uint, event string, payload any) error {
	return b.enqueue(CourtKey(courtID), event, courtID, payload)
}

func (b *EventBridge) enqueue(key, event string, courtID uint, payload any) error {
	msg := outbound{key: key, env: Envelope{
		EventID:    uuid.NewString(),
		Event:      event,
		CourtID:    courtID,
		OccurredAt: b.now().UTC(),
		Payload:    payload,
	}}
	select {
	case b.queue <- msg:
		return nil
	default:
		return fmt.Errorf("publish %s: %w", key, ErrQueueFull)
	}
}

// Pending returns the number of events waiting to be published.
func (b *EventBridge) Pending() int {
	return len(b.queue)
}

// Run publishes queued events until ctx is done.
func (b *EventBridge) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			if n := len(b.queue); n > 0 {
				b.log.WithField("pending", n).Warn("⚠️ Event bridge stopped with unpublished events")
			}
			return
		case msg := <-b.queue:
			b.publish(ctx, msg)
		}
	}
}

func (b *EventBridge) publish(ctx context.Context, msg outbound) {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := b.pub.PublishJSON(ctx, msg.key, msg.env); err != nil {
		b.log.WithFields(logrus.Fields{
			"key":      msg.key,
			"event":    msg.env.Event,
			"event_id": msg.env.EventID,
		}).WithError(err).Warn("⚠️ Event publish failed")
	}
}
