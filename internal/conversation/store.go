package conversation

import (
	"context"
	"sync"
	"time"
)

// Store keys conversation state by (org, phone). GetOrCreate returns a
// private copy; mutations are invisible until Save writes them back. The
// dispatcher serializes access per phone, so lost updates between a
// GetOrCreate/Save pair are not a concern.
type Store interface {
	GetOrCreate(ctx context.Context, orgID, phone string) (*ConversationState, error)
	Save(ctx context.Context, state *ConversationState) error
	Delete(ctx context.Context, orgID, phone string) error
	Count(ctx context.Context) (int, error)
}

// MemoryStore is the in-process conversation store. The expiry sweeper
// evicts idle entries; Redis deployments rely on key TTLs instead.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]*ConversationState
	clock  func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states: make(map[string]*ConversationState),
		clock:  time.Now,
	}
}

func stateKey(orgID, phone string) string {
	return orgID + ":" + phone
}

// GetOrCreate returns a copy of the state for a phone number, creating it
// lazily on first contact. The sweeper scans the stored entries under the
// same mutex, so callers never share memory with it.
func (s *MemoryStore) GetOrCreate(_ context.Context, orgID, phone string) (*ConversationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := stateKey(orgID, phone)
	if state, ok := s.states[key]; ok {
		return cloneState(state), nil
	}
	state := &ConversationState{
		OrgID:        orgID,
		PhoneNumber:  phone,
		LastActivity: s.clock(),
	}
	s.states[key] = state
	return cloneState(state), nil
}

// Save writes the caller's state back, replacing the stored entry.
func (s *MemoryStore) Save(_ context.Context, state *ConversationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[stateKey(state.OrgID, state.PhoneNumber)] = cloneState(state)
	return nil
}

// cloneState deep-copies a state so the store and its callers never alias
// the history slice or booking sub-state.
func cloneState(state *ConversationState) *ConversationState {
	out := *state
	if state.History != nil {
		out.History = append([]HistoryEntry(nil), state.History...)
	}
	if state.Booking != nil {
		booking := *state.Booking
		if state.Booking.AvailableDates != nil {
			booking.AvailableDates = append([]string(nil), state.Booking.AvailableDates...)
		}
		if state.Booking.TimeSlots != nil {
			booking.TimeSlots = append([]string(nil), state.Booking.TimeSlots...)
		}
		out.Booking = &booking
	}
	return &out
}

// Delete removes the state for a phone number.
func (s *MemoryStore) Delete(_ context.Context, orgID, phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, stateKey(orgID, phone))
	return nil
}

// Count returns the number of live conversations.
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states), nil
}

// SweepIdle evicts conversations idle longer than ttl and reports how many
// were removed.
func (s *MemoryStore) SweepIdle(ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.clock().Add(-ttl)
	removed := 0
	for key, state := range s.states {
		if state.LastActivity.Before(cutoff) {
			delete(s.states, key)
			removed++
		}
	}
	return removed
}
