package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"court-booking-server/booking"
	"court-booking-server/models"
	"court-booking-server/store"
)

func newInvoice(code string, bookingID uint) *models.Invoice {
	return &models.Invoice{
		Code:      code,
		BookingID: bookingID,
		Total:     100000,
		Method:    models.PaymentMethodCash,
		Status:    models.InvoiceStatusPaid,
		Items: []models.InvoiceItem{
			{Name: "Court 1", Qty: 1, Unit: "hour", Price: 100000, Type: models.InvoiceItemField, Subtotal: 100000},
		},
	}
}

func TestInvoiceStore_UniqueCodeAndBooking(t *testing.T) {
	invoices := New().Invoices()
	ctx := context.Background()

	first := newInvoice("HD202506101234", 1)
	require.NoError(t, invoices.Create(ctx, first))
	assert.NotZero(t, first.ID)
	assert.Equal(t, first.ID, first.Items[0].InvoiceID)

	assert.ErrorIs(t, invoices.Create(ctx, newInvoice("HD202506105678", 1)), store.ErrAlreadyInvoiced)
	assert.ErrorIs(t, invoices.Create(ctx, newInvoice("HD202506101234", 2)), store.ErrInvoiceCodeTaken)

	got, err := invoices.FindByBookingID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "HD202506101234", got.Code)

	_, err = invoices.FindByBookingID(ctx, 2)
	assert.ErrorIs(t, err, booking.ErrNotFound)
}

func TestInvoiceStore_UpdateKeepsLines(t *testing.T) {
	invoices := New().Invoices()
	ctx := context.Background()
	inv := newInvoice("HD202506101234", 1)
	require.NoError(t, invoices.Create(ctx, inv))

	got, err := invoices.Update(ctx, inv.ID, func(inv *models.Invoice) error {
		inv.Status = models.InvoiceStatusRefunded
		inv.Items = nil
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusRefunded, got.Status)
	assert.Len(t, got.Items, 1)

	page, total, err := invoices.List(ctx, store.InvoiceFilter{Status: models.InvoiceStatusRefunded})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, page, 1)
	assert.Nil(t, page[0].Items)

	_, err = invoices.Update(ctx, 99, func(*models.Invoice) error { return nil })
	assert.ErrorIs(t, err, booking.ErrNotFound)
}
