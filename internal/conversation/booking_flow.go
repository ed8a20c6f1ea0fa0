package conversation

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/karibuhq/karibu-ai-platform/internal/bookings"
	"github.com/karibuhq/karibu-ai-platform/internal/catalog"
	"github.com/karibuhq/karibu-ai-platform/internal/tenancy"
)

// defaultTimeSlots is offered when a service has no configured slots and the
// customer sent a date without a parseable time.
var defaultTimeSlots = []string{
	"9:00 AM", "10:00 AM", "11:00 AM", "12:00 PM", "1:00 PM",
	"2:00 PM", "3:00 PM", "4:00 PM", "5:00 PM",
}

const (
	createdNote     = "Created via WhatsApp"
	editNote        = " | Updated via WhatsApp"
	nameEditNote    = " | Name updated via WhatsApp"
	maxRetrySlots   = 8
	maxDateOnlySlot = 12
)

// handleBookingFlow routes a message into the booking dialogue: flow entry
// when no sub-state exists, otherwise the step the customer is on.
func (e *Engine) handleBookingFlow(ctx context.Context, settings *tenancy.Settings, state *ConversationState, text string) string {
	if state.Booking == nil {
		return e.enterBookingFlow(ctx, settings, state, text)
	}

	switch state.Booking.Step {
	case StepAwaitingService:
		return e.stepService(ctx, settings, state, text)
	case StepAwaitingName:
		return e.stepName(state, text)
	case StepAwaitingTime:
		return e.stepTime(ctx, settings, state, text)
	case StepAwaitingEditChoice:
		return e.stepEditChoice(state, text)
	case StepAwaitingEditName:
		return e.stepEditName(ctx, settings, state, text)
	default:
		// Unknown step means corrupted state; recover by starting over.
		e.logger.Warn("unknown booking step, resetting flow", "step", state.Booking.Step, "phone", state.PhoneNumber)
		state.Booking = nil
		return e.enterBookingFlow(ctx, settings, state, text)
	}
}

// enterBookingFlow detects the flow language once, lists services and moves
// to service selection. No sub-state is created when nothing is bookable.
func (e *Engine) enterBookingFlow(ctx context.Context, settings *tenancy.Settings, state *ConversationState, text string) string {
	lang := DetectLanguage(text)
	if state.Language != "" {
		lang = state.Language
	}

	if !settings.BookingsEnabled {
		return renderMessage(msgBookingUnavailable, lang)
	}

	services := e.listServices(ctx, settings.OrgID)
	if len(services) == 0 {
		return renderMessage(msgBookingUnavailable, lang)
	}

	state.Language = lang
	state.Booking = &BookingState{
		Step:     StepAwaitingService,
		Language: lang,
	}
	return formatServiceList(services, lang)
}

func (e *Engine) stepService(ctx context.Context, settings *tenancy.Settings, state *ConversationState, text string) string {
	bs := state.Booking
	lang := bs.Language

	services := e.listServices(ctx, settings.OrgID)
	if len(services) == 0 {
		state.Booking = nil
		return renderMessage(msgBookingUnavailable, lang)
	}

	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || n < 1 || n > len(services) {
		return renderMessage(msgInvalidService, lang, len(services))
	}

	selected := services[n-1]
	if len(selected.AvailableDates) == 0 {
		return renderMessage(msgServiceNoDates, lang, selected.Name)
	}

	bs.ServiceID = selected.ID
	bs.ServiceName = selected.Name
	bs.Price = selected.Price
	bs.Duration = selected.Duration
	bs.AvailableDates = append([]string(nil), selected.AvailableDates...)
	bs.TimeSlots = append([]string(nil), selected.TimeSlots...)
	bs.Step = StepAwaitingName

	return renderMessage(msgAskName, lang, selected.Name, selected.Price, selected.Duration)
}

func (e *Engine) stepName(state *ConversationState, text string) string {
	bs := state.Booking
	lang := bs.Language

	name := strings.TrimSpace(text)
	if len(name) <= 1 || len(name) >= 50 {
		return renderMessage(msgInvalidName, lang)
	}

	bs.CustomerName = name
	state.CustomerName = name
	bs.Step = StepAwaitingTime

	exDate, exTime := e.exampleDateTime(bs)
	return renderMessage(msgAskDateTime, lang, name, formatDateList(bs.AvailableDates), exDate, exTime)
}

// stepTime resolves the date and time from free text and either finishes the
// flow (create or edit) or re-prompts with targeted guidance.
func (e *Engine) stepTime(ctx context.Context, settings *tenancy.Settings, state *ConversationState, text string) string {
	bs := state.Booking
	lang := bs.Language

	date, dateOK := MatchDate(bs.AvailableDates, text)
	timeStr, timeOK := MatchTime(text)

	switch {
	case !dateOK && !timeOK:
		slotSection := ""
		if len(bs.TimeSlots) > 0 {
			slotSection = "\n" + formatSlotList(bs.TimeSlots, maxRetrySlots)
		}
		exDate, exTime := e.exampleDateTime(bs)
		return renderMessage(msgRetryDateTime, lang, formatDateList(bs.AvailableDates), slotSection, exDate, exTime)

	case timeOK && !dateOK:
		return renderMessage(msgTimeOnly, lang, timeStr, formatDateList(bs.AvailableDates))

	case dateOK && !timeOK:
		slots := bs.TimeSlots
		if len(slots) == 0 {
			slots = defaultTimeSlots
		}
		return renderMessage(msgDateOnly, lang, date, formatSlotList(slots, maxDateOnlySlot))
	}

	// Both matched. Enforce the configured slot list when one exists; keep
	// the sub-state so the customer can retry the same step.
	if len(bs.TimeSlots) > 0 && !SlotAllowed(timeStr, bs.TimeSlots) {
		return renderMessage(msgSlotUnavailable, lang, timeStr, bs.ServiceName, formatSlotList(bs.TimeSlots, maxRetrySlots))
	}

	if bs.EditingBookingID != "" {
		return e.finishEdit(ctx, settings, state, date, timeStr)
	}
	return e.finishNewBooking(ctx, settings, state, date, timeStr)
}

func (e *Engine) finishEdit(ctx context.Context, settings *tenancy.Settings, state *ConversationState, date, timeStr string) string {
	bs := state.Booking
	lang := bs.Language

	booking, err := e.bookings.GetByID(ctx, settings.OrgID, bs.EditingBookingID)
	if err != nil {
		if !errors.Is(err, bookings.ErrNotFound) {
			e.logger.Error("failed to load booking for edit", "error", err, "booking_id", bs.EditingBookingID)
		}
		state.Booking = nil
		return renderMessage(msgBookingGone, lang)
	}

	booking.DateBooked = date
	booking.TimeSlot = timeStr
	if bs.CustomerName != "" {
		booking.CustomerName = bs.CustomerName
		state.CustomerName = bs.CustomerName
	}
	if err := e.bookings.AppendEdit(ctx, booking, editNote); err != nil {
		e.logger.Error("failed to update booking", "error", err, "booking_id", booking.ID)
		state.Booking = nil
		return renderMessage(msgBookingGone, lang)
	}

	state.Booking = nil
	return renderMessage(msgEditConfirmed, lang, booking.ID, booking.CustomerName, booking.ServiceName, booking.DateBooked, booking.TimeSlot)
}

func (e *Engine) finishNewBooking(ctx context.Context, settings *tenancy.Settings, state *ConversationState, date, timeStr string) string {
	bs := state.Booking
	lang := bs.Language

	if bs.CustomerName == "" {
		// Unreachable through the normal step ordering; recover instead of
		// booking under an empty name.
		e.logger.Warn("time captured before name, re-prompting", "phone", state.PhoneNumber)
		bs.Step = StepAwaitingName
		return renderMessage(msgAskNameRetry, lang)
	}

	booking := &bookings.Booking{
		ID:            e.newID(),
		OrgID:         settings.OrgID,
		CustomerName:  bs.CustomerName,
		CustomerPhone: state.PhoneNumber,
		ServiceID:     bs.ServiceID,
		ServiceName:   bs.ServiceName,
		DateBooked:    date,
		TimeSlot:      timeStr,
		Price:         bs.Price,
		Status:        bookings.StatusPending,
		Notes:         createdNote,
	}
	if err := e.bookings.Create(ctx, booking); err != nil {
		e.logger.Error("failed to create booking", "error", err, "phone", state.PhoneNumber)
		state.Booking = nil
		return renderMessage(msgBookingGone, lang)
	}

	state.CustomerName = bs.CustomerName
	state.LastBookingID = booking.ID
	state.Booking = nil

	return renderMessage(msgBookingConfirmed, lang,
		booking.ID, booking.CustomerName, booking.ServiceName,
		booking.DateBooked, booking.TimeSlot, booking.Price)
}

func (e *Engine) stepEditChoice(state *ConversationState, text string) string {
	bs := state.Booking
	lang := bs.Language

	switch strings.TrimSpace(text) {
	case "1":
		bs.EditBoth = false
		bs.Step = StepAwaitingEditName
		return renderMessage(msgEditAskName, lang)
	case "2":
		bs.EditBoth = false
		bs.Step = StepAwaitingTime
		exDate, exTime := e.exampleDateTime(bs)
		return renderMessage(msgAskDateTime, lang, state.CustomerName, formatDateList(bs.AvailableDates), exDate, exTime)
	case "3":
		bs.EditBoth = true
		bs.Step = StepAwaitingEditName
		return renderMessage(msgEditAskName, lang)
	default:
		return renderMessage(msgEditChoiceRetry, lang)
	}
}

func (e *Engine) stepEditName(ctx context.Context, settings *tenancy.Settings, state *ConversationState, text string) string {
	bs := state.Booking
	lang := bs.Language

	name := strings.TrimSpace(text)
	if len(name) <= 1 || len(name) >= 50 {
		return renderMessage(msgInvalidName, lang)
	}

	if bs.EditBoth {
		bs.CustomerName = name
		bs.EditBoth = false
		bs.Step = StepAwaitingTime
		exDate, exTime := e.exampleDateTime(bs)
		return renderMessage(msgAskDateTime, lang, name, formatDateList(bs.AvailableDates), exDate, exTime)
	}

	booking, err := e.bookings.GetByID(ctx, settings.OrgID, bs.EditingBookingID)
	if err != nil {
		if !errors.Is(err, bookings.ErrNotFound) {
			e.logger.Error("failed to load booking for name edit", "error", err, "booking_id", bs.EditingBookingID)
		}
		state.Booking = nil
		return renderMessage(msgBookingGone, lang)
	}

	booking.CustomerName = name
	if err := e.bookings.AppendEdit(ctx, booking, nameEditNote); err != nil {
		e.logger.Error("failed to update booking name", "error", err, "booking_id", booking.ID)
		state.Booking = nil
		return renderMessage(msgBookingGone, lang)
	}

	state.CustomerName = name
	state.Booking = nil
	return renderMessage(msgNameUpdated, lang, name)
}

// listServices fetches the tenant's catalog, degrading to an empty list on
// error so the flow replies "unavailable" instead of failing.
func (e *Engine) listServices(ctx context.Context, orgID string) []catalog.Service {
	services, err := e.catalog.ListServices(ctx, orgID)
	if err != nil {
		e.logger.Error("failed to list services", "error", err, "org_id", orgID)
		return nil
	}
	return services
}

// exampleDateTime picks the values used in "for example" prompts.
func (e *Engine) exampleDateTime(bs *BookingState) (string, string) {
	exDate := "January 5"
	if len(bs.AvailableDates) > 0 {
		if t, err := parseISODate(bs.AvailableDates[0]); err == nil {
			exDate = t.Format("January 2")
		} else {
			exDate = bs.AvailableDates[0]
		}
	}
	exTime := "10:00 AM"
	if len(bs.TimeSlots) > 0 {
		exTime = bs.TimeSlots[0]
	}
	return exDate, exTime
}
