package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karibuhq/karibu-ai-platform/internal/bookings"
	"github.com/karibuhq/karibu-ai-platform/pkg/logging"
)

type captureSender struct {
	messages []EmailMessage
	err      error
}

func (c *captureSender) Send(_ context.Context, msg EmailMessage) error {
	if c.err != nil {
		return c.err
	}
	c.messages = append(c.messages, msg)
	return nil
}

func testBooking() *bookings.Booking {
	return &bookings.Booking{
		ID:            "BK-TEST0001",
		OrgID:         "org-1",
		CustomerName:  "Asha",
		CustomerPhone: "+255711111111",
		ServiceName:   "Haircut",
		DateBooked:    "2026-03-05",
		TimeSlot:      "10:00 AM",
		Price:         "TZS 15,000",
		Status:        bookings.StatusPending,
		Notes:         "Created via WhatsApp",
	}
}

func TestBookingCreatedEmailsOperator(t *testing.T) {
	sender := &captureSender{}
	notifier := NewBookingNotifier(sender, "owner@zurisalon.co.tz", logging.Default())

	notifier.BookingCreated(context.Background(), testBooking())

	require.Len(t, sender.messages, 1)
	msg := sender.messages[0]
	assert.Equal(t, "owner@zurisalon.co.tz", msg.To)
	assert.Contains(t, msg.Subject, "BK-TEST0001")
	assert.Contains(t, msg.Body, "Asha")
	assert.Contains(t, msg.Body, "2026-03-05")
}

func TestBookingUpdatedEmailsOperator(t *testing.T) {
	sender := &captureSender{}
	notifier := NewBookingNotifier(sender, "owner@zurisalon.co.tz", logging.Default())

	notifier.BookingUpdated(context.Background(), testBooking())

	require.Len(t, sender.messages, 1)
	assert.Contains(t, sender.messages[0].Subject, "updated")
}

func TestNotifierWithoutSenderIsQuiet(t *testing.T) {
	notifier := NewBookingNotifier(nil, "", logging.Default())
	assert.NotPanics(t, func() {
		notifier.BookingCreated(context.Background(), testBooking())
	})
}

func TestNotifierAbsorbsSendFailures(t *testing.T) {
	sender := &captureSender{err: errors.New("rate limited")}
	notifier := NewBookingNotifier(sender, "owner@zurisalon.co.tz", logging.Default())

	assert.NotPanics(t, func() {
		notifier.BookingCreated(context.Background(), testBooking())
	})
}
