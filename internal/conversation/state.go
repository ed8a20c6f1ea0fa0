package conversation

import "time"

// maxHistoryEntries caps the per-conversation transcript kept for AI
// context: 10 entries, five exchanges. Oldest entries drop first.
const maxHistoryEntries = 10

// Booking flow steps.
const (
	StepAwaitingService    = "awaiting_service"
	StepAwaitingName       = "awaiting_name"
	StepAwaitingTime       = "awaiting_time"
	StepAwaitingEditChoice = "awaiting_edit_choice"
	StepAwaitingEditName   = "awaiting_edit_name"
)

// BookingState is the transient sub-state carried while a conversation is
// mid-booking-flow. Its presence on ConversationState is the sole
// discriminator of "this phone number is in a booking dialogue".
type BookingState struct {
	Step string `json:"step"`

	// Snapshot of the selected service, copied at selection time. Later
	// edits to the service definition do not affect an in-flight booking.
	ServiceID      string   `json:"service_id,omitempty"`
	ServiceName    string   `json:"service_name,omitempty"`
	Price          string   `json:"price,omitempty"`
	Duration       string   `json:"duration,omitempty"`
	AvailableDates []string `json:"available_dates,omitempty"`
	TimeSlots      []string `json:"time_slots,omitempty"`

	CustomerName string `json:"customer_name,omitempty"`

	// Set only when the flow is editing an existing booking.
	EditingBookingID string `json:"editing_booking_id,omitempty"`
	EditBoth         bool   `json:"edit_both,omitempty"`

	// Language snapshot taken at flow entry; replies stay consistent even
	// if later messages mix languages.
	Language Language `json:"language,omitempty"`
}

// HistoryEntry is one turn in the capped conversation transcript.
type HistoryEntry struct {
	Role string `json:"role"` // "user" or "assistant"
	Text string `json:"text"`
}

// ConversationState is everything the engine remembers about one phone
// number. It lives in the conversation store, not in a system of record:
// eviction or restart simply starts the customer fresh.
type ConversationState struct {
	OrgID         string         `json:"org_id"`
	PhoneNumber   string         `json:"phone_number"`
	History       []HistoryEntry `json:"history,omitempty"`
	LastActivity  time.Time      `json:"last_activity"`
	Language      Language       `json:"language,omitempty"`
	CustomerName  string         `json:"customer_name,omitempty"`
	LastBookingID string         `json:"last_booking_id,omitempty"`
	Booking       *BookingState  `json:"booking,omitempty"`
}

// NewConversationState returns a fresh state for a first-contact phone
// number.
func NewConversationState(orgID, phone string) *ConversationState {
	return &ConversationState{OrgID: orgID, PhoneNumber: phone}
}

// AppendHistory adds a turn and enforces the cap, dropping oldest first.
func (s *ConversationState) AppendHistory(role, text string) {
	s.History = append(s.History, HistoryEntry{Role: role, Text: text})
	if len(s.History) > maxHistoryEntries {
		s.History = s.History[len(s.History)-maxHistoryEntries:]
	}
}

// Touch updates the activity timestamp used by the expiry sweeper.
func (s *ConversationState) Touch(now time.Time) {
	s.LastActivity = now
}
