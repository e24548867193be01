package mq

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"court-booking-server/booking"
	"court-booking-server/logging"
	"court-booking-server/models"
	"court-booking-server/services"
	"court-booking-server/store/memory"
)

type published struct {
	key string
	env Envelope
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (p *fakePublisher) PublishJSON(_ context.Context, key string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, published{key: key, env: v.(Envelope)})
	return nil
}

func (p *fakePublisher) sent() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.msgs...)
}

// stalledPublisher holds every publish until the bridge gives up on it.
type stalledPublisher struct {
	calls atomic.Int32
}

func (p *stalledPublisher) PublishJSON(ctx context.Context, _ string, _ any) error {
	p.calls.Add(1)
	<-ctx.Done()
	return ctx.Err()
}

func runBridge(t *testing.T, pub JSONPublisher) *EventBridge {
	t.Helper()
	bridge := NewEventBridge(pub, logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go bridge.Run(ctx)
	return bridge
}

func TestEventBridge_RoutingKeys(t *testing.T) {
	pub := &fakePublisher{}
	bridge := runBridge(t, pub)
	ctx := context.Background()

	require.NoError(t, bridge.EmitScoped(ctx, 4, "booking_updated", map[string]any{"code": "DS00000001"}))
	require.NoError(t, bridge.EmitGlobal(ctx, "booking_global_updated", map[string]any{"code": "DS00000001"}))

	require.Eventually(t, func() bool { return len(pub.sent()) == 2 }, time.Second, 5*time.Millisecond)
	msgs := pub.sent()
	assert.Equal(t, "booking.court.4", msgs[0].key)
	assert.Equal(t, uint(4), msgs[0].env.CourtID)
	assert.Equal(t, "booking_updated", msgs[0].env.Event)
	assert.Equal(t, KeyGlobal, msgs[1].key)
	assert.NotEmpty(t, msgs[1].env.EventID)
	assert.NotEqual(t, msgs[0].env.EventID, msgs[1].env.EventID)
}

func TestEventBridge_PublishFailureKeepsDraining(t *testing.T) {
	pub := &fakePublisher{err: errors.New("channel closed")}
	bridge := runBridge(t, pub)

	for i := 0; i < 3; i++ {
		require.NoError(t, bridge.EmitGlobal(context.Background(), "booking_global_updated", i))
	}
	require.Eventually(t, func() bool { return bridge.Pending() == 0 }, time.Second, 5*time.Millisecond)
}

func TestEventBridge_DropsWhenQueueFull(t *testing.T) {
	bridge := NewEventBridge(&fakePublisher{}, logging.Discard())

	for i := 0; i < defaultQueueSize; i++ {
		require.NoError(t, bridge.EmitGlobal(context.Background(), "booking_global_updated", i))
	}
	err := bridge.EmitScoped(context.Background(), 2, "booking_updated", nil)
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.ErrorContains(t, err, "booking.court.2")
	assert.Equal(t, defaultQueueSize, bridge.Pending())
}

func TestEventBridge_StalledBrokerDoesNotHoldCreate(t *testing.T) {
	pub := &stalledPublisher{}
	bridge := runBridge(t, pub)

	rules := booking.DefaultRules()
	rules.Location = time.FixedZone("ICT", 7*3600)
	machine := booking.NewMachine(rules).WithClock(func() time.Time {
		return time.Date(2025, 6, 10, 12, 0, 0, 0, rules.Location)
	})
	db := memory.New()
	court := &models.Court{Code: "C01", Name: "Court 1", Type: models.CourtTypeIndoor, Status: models.CourtStatusActive, BasePrice: 100000, PeakPrice: 150000}
	require.NoError(t, db.Courts().Create(context.Background(), court))
	svc := services.NewBookingService(db.Bookings(), db.Courts(), machine, services.Fanout{bridge}, logging.Discard())

	start := time.Now()
	d, err := svc.Create(context.Background(), services.CreateBookingInput{
		CourtID: court.ID, Date: "2025-06-11", StartTime: "10:00", EndTime: "11:00",
	}, models.Actor{ID: 7, Role: models.RoleUser})
	require.NoError(t, err)
	assert.NotZero(t, d.ID)
	assert.Less(t, time.Since(start), time.Second)

	require.Eventually(t, func() bool { return pub.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
}

type ackRecorder struct {
	acked, nacked, requeued bool
}

func (a *ackRecorder) Ack(uint64, bool) error { a.acked = true; return nil }
func (a *ackRecorder) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked, a.requeued = true, requeue
	return nil
}
func (a *ackRecorder) Reject(_ uint64, requeue bool) error {
	a.nacked, a.requeued = true, requeue
	return nil
}

type fakeHandler struct {
	got []services.Settlement
	err error
}

func (h *fakeHandler) OnSettlement(_ context.Context, st services.Settlement) (*models.Booking, error) {
	h.got = append(h.got, st)
	if h.err != nil {
		return nil, h.err
	}
	return &models.Booking{Code: st.BookingCode}, nil
}

func deliver(t *testing.T, h SettlementHandler, body []byte) *ackRecorder {
	t.Helper()
	ack := &ackRecorder{}
	c := NewSettlementConsumer(h, logging.Discard())
	c.handle(context.Background(), amqp.Delivery{Acknowledger: ack, RoutingKey: KeyPaymentSettled, Body: body})
	return ack
}

func settlementBody(t *testing.T) []byte {
	t.Helper()
	b, err := json.Marshal(services.Settlement{BookingCode: "DS12345678", Success: true, TransactionID: "T1", Amount: 250000})
	require.NoError(t, err)
	return b
}

func TestSettlementConsumer_AcksApplied(t *testing.T) {
	h := &fakeHandler{}
	ack := deliver(t, h, settlementBody(t))

	assert.True(t, ack.acked)
	assert.False(t, ack.nacked)
	require.Len(t, h.got, 1)
	assert.Equal(t, "DS12345678", h.got[0].BookingCode)
	assert.Equal(t, 250000.0, h.got[0].Amount)
}

func TestSettlementConsumer_DropsMalformed(t *testing.T) {
	for _, body := range [][]byte{[]byte("{not json"), []byte(`{"success":true}`)} {
		h := &fakeHandler{}
		ack := deliver(t, h, body)
		assert.True(t, ack.nacked)
		assert.False(t, ack.requeued)
		assert.Empty(t, h.got)
	}
}

func TestSettlementConsumer_RejectionVersusOutage(t *testing.T) {
	ack := deliver(t, &fakeHandler{err: booking.NotFound("booking DS12345678 not found")}, settlementBody(t))
	assert.True(t, ack.nacked)
	assert.False(t, ack.requeued)

	ack = deliver(t, &fakeHandler{err: errors.New("connection refused")}, settlementBody(t))
	assert.True(t, ack.nacked)
	assert.True(t, ack.requeued)
}
