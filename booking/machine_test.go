package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"court-booking-server/models"
)

var (
	admin    = models.Actor{ID: 1, Role: models.RoleAdmin}
	owner    = models.Actor{ID: 7, Role: models.RoleUser}
	stranger = models.Actor{ID: 8, Role: models.RoleUser}
)

// machineAt returns a machine whose clock reads hh:mm local time on 2025-06-10.
func machineAt(hh, mm int) *Machine {
	rules := testRules()
	now := time.Date(2025, 6, 10, hh, mm, 0, 0, rules.Location)
	return NewMachine(rules).WithClock(func() time.Time { return now })
}

func pendingBooking(t *testing.T, m *Machine) *models.Booking {
	t.Helper()
	ownerID := owner.ID
	b := &models.Booking{
		ID:          42,
		CourtID:     1,
		CustomerID:  &ownerID,
		Date:        time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC),
		StartTime:   "15:00",
		EndTime:     "17:00",
		StartMinute: 15 * 60,
		EndMinute:   17 * 60,
	}
	_, err := m.Open(b, owner, false, "", "")
	require.NoError(t, err)
	return b
}

func TestOpen_UserBookingStartsPendingUnpaid(t *testing.T) {
	m := machineAt(9, 0)
	b := pendingBooking(t, m)

	assert.Equal(t, models.BookingStatusPending, b.Status)
	assert.Equal(t, models.PaymentStatusUnpaid, b.PaymentStatus)
	assert.Equal(t, models.CreatedByUser, b.CreatedBy)
	require.Len(t, b.StatusHistory, 1)
	assert.Equal(t, string(EventCreate), b.StatusHistory[0].Action)
}

func TestOpen_AdminOfflineStartsConfirmed(t *testing.T) {
	m := machineAt(9, 0)
	b := &models.Booking{}

	_, err := m.Open(b, admin, true, models.PaymentStatusPaid, "walk-in")
	require.NoError(t, err)

	assert.Equal(t, models.BookingStatusConfirmed, b.Status)
	assert.Equal(t, models.PaymentStatusPaid, b.PaymentStatus)
	assert.Equal(t, models.CreatedByAdmin, b.CreatedBy)
	assert.Equal(t, models.BookingStatusConfirmed, b.StatusHistory[0].Status)
}

func TestOpen_UserCannotCreateOffline(t *testing.T) {
	_, err := machineAt(9, 0).Open(&models.Booking{}, owner, true, "", "")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCancel_Window(t *testing.T) {
	// Booking starts at 15:00.
	t.Run("three hours ahead is allowed", func(t *testing.T) {
		m := machineAt(12, 0)
		b := pendingBooking(t, m)

		h, err := m.Transition(b, EventCancel, owner, Options{})
		require.NoError(t, err)
		assert.Equal(t, models.BookingStatusCancelled, b.Status)
		assert.Equal(t, models.BookingStatusCancelled, h.Status)
		require.NotNil(t, b.CancelReason)
		assert.Equal(t, defaultUserCancelReason, *b.CancelReason)
	})

	t.Run("one hour ahead is rejected", func(t *testing.T) {
		m := machineAt(14, 0)
		b := pendingBooking(t, m)

		_, err := m.Transition(b, EventCancel, owner, Options{})
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.Equal(t, models.BookingStatusPending, b.Status)
		assert.Len(t, b.StatusHistory, 1)
	})

	t.Run("exactly at the window is allowed", func(t *testing.T) {
		m := machineAt(13, 0)
		b := pendingBooking(t, m)

		_, err := m.Transition(b, EventCancel, owner, Options{})
		assert.NoError(t, err)
	})

	t.Run("admin ignores the window", func(t *testing.T) {
		m := machineAt(14, 30)
		b := pendingBooking(t, m)

		_, err := m.Transition(b, EventCancel, admin, Options{})
		require.NoError(t, err)
		assert.Equal(t, defaultAdminCancelReason, *b.CancelReason)
	})
}

func TestCancel_StoresRefundDetailsAndRefundsPayment(t *testing.T) {
	m := machineAt(9, 0)
	b := pendingBooking(t, m)
	b.PaymentStatus = models.PaymentStatusPaid
	b.DepositRequired = true
	b.DepositStatus = models.DepositStatusPaid

	_, err := m.Transition(b, EventCancel, owner, Options{
		Reason: "rain",
		Refund: &RefundDetails{AccountNumber: "0123", AccountName: "NGUYEN A", BankName: "VCB"},
	})
	require.NoError(t, err)

	assert.Equal(t, "rain", *b.CancelReason)
	assert.Equal(t, "0123", *b.RefundAccountNo)
	assert.Equal(t, "VCB", *b.RefundBankName)
	assert.Nil(t, b.RefundNote)
	assert.Equal(t, models.PaymentStatusRefunded, b.PaymentStatus)
	assert.Equal(t, models.DepositStatusRefunded, b.DepositStatus)
}

func TestCancel_OwnershipAndStatus(t *testing.T) {
	m := machineAt(9, 0)

	b := pendingBooking(t, m)
	_, err := m.Transition(b, EventCancel, stranger, Options{})
	assert.ErrorIs(t, err, ErrForbidden)

	b.Status = models.BookingStatusConfirmed
	_, err = m.Transition(b, EventCancel, owner, Options{})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	for _, s := range []models.BookingStatus{models.BookingStatusInUse, models.BookingStatusCompleted, models.BookingStatusCancelled} {
		b.Status = s
		_, err = m.Transition(b, EventCancel, admin, Options{})
		assert.ErrorIs(t, err, ErrInvalidTransition, s)
	}
}

func TestAdminEvents_RejectNonAdmins(t *testing.T) {
	m := machineAt(9, 0)
	for _, ev := range []Event{EventConfirm, EventCheckin, EventComplete, EventRefund, EventNoShow} {
		b := pendingBooking(t, m)
		_, err := m.Transition(b, ev, owner, Options{})
		assert.ErrorIs(t, err, ErrForbidden, ev)
		assert.Len(t, b.StatusHistory, 1, ev)
	}

	b := pendingBooking(t, m)
	_, err := m.AddNote(b, owner, "hello", false)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = m.UpdatePaymentStatus(b, owner, models.PaymentStatusPaid, "")
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = m.Transition(b, EventPaymentSuccess, owner, Options{})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestFullLifecycle_OneHistoryEntryPerTransition(t *testing.T) {
	m := machineAt(9, 0)
	b := pendingBooking(t, m)

	steps := []struct {
		ev   Event
		want models.BookingStatus
	}{
		{EventConfirm, models.BookingStatusConfirmed},
		{EventCheckin, models.BookingStatusInUse},
		{EventComplete, models.BookingStatusCompleted},
	}
	for i, s := range steps {
		h, err := m.Transition(b, s.ev, admin, Options{Note: "ok"})
		require.NoError(t, err, s.ev)
		assert.Equal(t, s.want, b.Status)
		assert.Equal(t, s.want, h.Status)
		assert.Equal(t, string(s.ev), h.Action)
		assert.Len(t, b.StatusHistory, i+2)
	}

	assert.NotNil(t, b.CheckinAt)
	assert.NotNil(t, b.CheckoutAt)
	assert.Equal(t, models.PaymentStatusPaid, b.PaymentStatus)
	require.Len(t, b.AdminNotes, 1)
	assert.Equal(t, "[COMPLETED] ok", b.AdminNotes[0].Text)

	_, err := m.AddNote(b, admin, "late note", false)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestConfirm_PaymentOverride(t *testing.T) {
	m := machineAt(9, 0)
	b := pendingBooking(t, m)

	_, err := m.Transition(b, EventConfirm, admin, Options{PaymentStatus: models.PaymentStatusPartial})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPartial, b.PaymentStatus)

	b = pendingBooking(t, m)
	_, err = m.Transition(b, EventConfirm, admin, Options{PaymentStatus: "bogus"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCheckin_UsesSuppliedTime(t *testing.T) {
	m := machineAt(9, 0)
	b := pendingBooking(t, m)
	_, err := m.Transition(b, EventConfirm, admin, Options{})
	require.NoError(t, err)

	at := time.Date(2025, 6, 10, 14, 55, 0, 0, time.UTC)
	_, err = m.Transition(b, EventCheckin, admin, Options{At: &at})
	require.NoError(t, err)
	assert.Equal(t, at, *b.CheckinAt)
}

func TestPaymentSuccess_ConfirmsPendingAndIsIdempotent(t *testing.T) {
	m := machineAt(9, 0)
	b := pendingBooking(t, m)
	b.DepositRequired = true

	h, err := m.Transition(b, EventPaymentSuccess, models.GatewayActor, Options{TransactionID: "T1", Method: "vnpay"})
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, models.BookingStatusConfirmed, b.Status)
	assert.Equal(t, models.PaymentStatusPaid, b.PaymentStatus)
	assert.Equal(t, models.DepositStatusPaid, b.DepositStatus)
	assert.Equal(t, "T1", *b.DepositTxnID)
	assert.Len(t, b.StatusHistory, 2)

	h, err = m.Transition(b, EventPaymentSuccess, models.GatewayActor, Options{TransactionID: "T1"})
	require.NoError(t, err)
	assert.Nil(t, h)
	assert.Len(t, b.StatusHistory, 2)
}

func TestPaymentSuccess_InUseRecordsHistoryWithoutStatusChange(t *testing.T) {
	m := machineAt(9, 0)
	b := pendingBooking(t, m)
	b.Status = models.BookingStatusInUse

	h, err := m.Transition(b, EventPaymentSuccess, models.GatewayActor, Options{})
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusInUse, b.Status)
	assert.Equal(t, models.BookingStatusInUse, h.Status)
	assert.Len(t, b.StatusHistory, 2)
}

func TestPaymentSuccess_RejectedOnTerminalStatus(t *testing.T) {
	m := machineAt(9, 0)
	b := pendingBooking(t, m)
	b.Status = models.BookingStatusCancelled

	_, err := m.Transition(b, EventPaymentSuccess, models.GatewayActor, Options{})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRefund(t *testing.T) {
	m := machineAt(9, 0)

	b := pendingBooking(t, m)
	_, err := m.Transition(b, EventRefund, admin, Options{})
	assert.ErrorIs(t, err, ErrInvalidTransition, "unpaid booking cannot be refunded")

	b.PaymentStatus = models.PaymentStatusPaid
	b.DepositStatus = models.DepositStatusPaid
	_, err = m.Transition(b, EventRefund, admin, Options{})
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCancelledRefunded, b.Status)
	assert.Equal(t, models.PaymentStatusRefunded, b.PaymentStatus)
	assert.Equal(t, models.DepositStatusRefunded, b.DepositStatus)

	_, err = m.Transition(b, EventRefund, admin, Options{})
	assert.ErrorIs(t, err, ErrInvalidTransition, "terminal")
}

func TestNoShow_ForfeitsDeposit(t *testing.T) {
	m := machineAt(9, 0)
	b := pendingBooking(t, m)
	_, err := m.Transition(b, EventNoShow, admin, Options{})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = m.Transition(b, EventConfirm, admin, Options{})
	require.NoError(t, err)
	b.DepositStatus = models.DepositStatusPaid

	_, err = m.Transition(b, EventNoShow, admin, Options{})
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusNoShow, b.Status)
	assert.Equal(t, models.DepositStatusForfeited, b.DepositStatus)

	_, err = m.Transition(b, EventCheckin, admin, Options{})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestUpdatePaymentStatus_AppendsAuditEntry(t *testing.T) {
	m := machineAt(9, 0)
	b := pendingBooking(t, m)

	h, err := m.UpdatePaymentStatus(b, admin, models.PaymentStatusPartial, "")
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusPending, h.Status)
	assert.Equal(t, string(EventPaymentStatusUpdate), h.Action)
	assert.Equal(t, "payment status unpaid -> partial", h.Note)
	assert.Len(t, b.StatusHistory, 2)

	_, err = m.UpdatePaymentStatus(b, admin, "free", "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAddNote(t *testing.T) {
	m := machineAt(9, 0)
	b := pendingBooking(t, m)

	_, err := m.AddNote(b, admin, "   ", false)
	assert.ErrorIs(t, err, ErrInvalidInput)

	n, err := m.AddNote(b, admin, " VIP guest ", true)
	require.NoError(t, err)
	assert.Equal(t, "VIP guest", n.Text)
	assert.True(t, n.Pinned)
	assert.Len(t, b.StatusHistory, 1)
}

func TestAdminCapabilities(t *testing.T) {
	m := machineAt(9, 0)
	b := pendingBooking(t, m)

	c := m.AdminCapabilities(b)
	assert.True(t, c.CanConfirm)
	assert.True(t, c.CanCancel)
	assert.False(t, c.CanCheckin)
	assert.False(t, c.CanRefund)

	b.Status = models.BookingStatusConfirmed
	b.PaymentStatus = models.PaymentStatusPaid
	c = m.AdminCapabilities(b)
	assert.True(t, c.CanCheckin)
	assert.True(t, c.CanNoShow)
	assert.True(t, c.CanRefund)
	assert.True(t, c.CanViewReceipt)
	assert.False(t, c.CanConfirm)
}

func TestCancelPolicyAndActions(t *testing.T) {
	m := machineAt(12, 0)
	b := pendingBooking(t, m)

	p := m.CancelPolicy(b, owner)
	assert.Equal(t, 2, p.WindowHours)
	assert.Equal(t, 3.0, p.HoursUntilStart)
	assert.True(t, p.CanCancel)
	assert.Equal(t, []string{"cancel", "pay"}, m.AvailableActions(b, owner))
	assert.False(t, m.CancelPolicy(b, stranger).CanCancel)
}
