package mq

import (
	"context"
	"encoding/json"
	"errors"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"court-booking-server/booking"
	"court-booking-server/models"
	"court-booking-server/services"
)

// KeyPaymentSettled is the routing key the payment side publishes on.
const KeyPaymentSettled = "payment.settled"

type SettlementHandler interface {
	OnSettlement(ctx context.Context, st services.Settlement) (*models.Booking, error)
}

// SettlementConsumer applies payment.settled messages to bookings.
type SettlementConsumer struct {
	handler SettlementHandler
	log     *logrus.Logger
}

func NewSettlementConsumer(handler SettlementHandler, log *logrus.Logger) *SettlementConsumer {
	return &SettlementConsumer{handler: handler, log: log}
}

// Run handles deliveries until ctx is done or the channel closes.
func (c *SettlementConsumer) Run(ctx context.Context, msgs <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-msgs:
			if !ok {
				c.log.Info("[settlement] delivery channel closed, stopping consumer")
				return
			}
			c.handle(ctx, d)
		}
	}
}

// handle acks applied or replayed settlements. Malformed bodies and
// settlements the booking rejects are dropped; anything else is requeued.
func (c *SettlementConsumer) handle(ctx context.Context, d amqp.Delivery) {
	fields := logrus.Fields{"routing_key": d.RoutingKey, "message_id": d.MessageId}

	var st services.Settlement
	if err := json.Unmarshal(d.Body, &st); err != nil || st.BookingCode == "" {
		c.log.WithFields(fields).WithError(err).Warn("[settlement] malformed message, dropping")
		_ = d.Nack(false, false)
		return
	}
	fields["code"] = st.BookingCode

	if _, err := c.handler.OnSettlement(ctx, st); err != nil {
		if permanent(err) {
			c.log.WithFields(fields).WithError(err).Warn("[settlement] rejected, dropping")
			_ = d.Nack(false, false)
			return
		}
		c.log.WithFields(fields).WithError(err).Error("[settlement] failed, requeueing")
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}

func permanent(err error) bool {
	return errors.Is(err, booking.ErrNotFound) ||
		errors.Is(err, booking.ErrInvalidInput) ||
		errors.Is(err, booking.ErrInvalidTransition) ||
		errors.Is(err, booking.ErrForbidden)
}
