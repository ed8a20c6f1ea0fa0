package notify

import (
	"context"
	"fmt"

	"github.com/karibuhq/karibu-ai-platform/internal/bookings"
	"github.com/karibuhq/karibu-ai-platform/pkg/logging"
)

// BookingNotifier emails the operator when customers create or change
// bookings over WhatsApp. Failures are logged and absorbed; notification is
// best-effort and never blocks the conversation.
type BookingNotifier struct {
	sender        EmailSender
	operatorEmail string
	logger        *logging.Logger
}

// NewBookingNotifier creates a notifier. A nil sender or empty operator
// email yields a notifier that drops everything.
func NewBookingNotifier(sender EmailSender, operatorEmail string, logger *logging.Logger) *BookingNotifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &BookingNotifier{
		sender:        sender,
		operatorEmail: operatorEmail,
		logger:        logger,
	}
}

var _ bookings.Notifier = (*BookingNotifier)(nil)

// BookingCreated emails the operator about a new pending booking.
func (n *BookingNotifier) BookingCreated(ctx context.Context, b *bookings.Booking) {
	n.send(ctx, fmt.Sprintf("New booking %s", b.ID), bookingBody("A new booking was made via WhatsApp.", b))
}

// BookingUpdated emails the operator about a customer-driven change.
func (n *BookingNotifier) BookingUpdated(ctx context.Context, b *bookings.Booking) {
	n.send(ctx, fmt.Sprintf("Booking %s updated", b.ID), bookingBody("A booking was changed via WhatsApp.", b))
}

func (n *BookingNotifier) send(ctx context.Context, subject, body string) {
	if n.sender == nil || n.operatorEmail == "" {
		return
	}
	err := n.sender.Send(ctx, EmailMessage{
		To:      n.operatorEmail,
		Subject: subject,
		Body:    body,
	})
	if err != nil {
		n.logger.Error("booking notification failed", "error", err, "subject", subject)
	}
}

func bookingBody(lead string, b *bookings.Booking) string {
	return fmt.Sprintf(`%s

Reference: %s
Customer:  %s (%s)
Service:   %s
Date:      %s
Time:      %s
Price:     %s
Status:    %s
Notes:     %s
`, lead, b.ID, b.CustomerName, b.CustomerPhone, b.ServiceName, b.DateBooked, b.TimeSlot, b.Price, b.Status, b.Notes)
}
