package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/karibuhq/karibu-ai-platform/internal/conversation"
	"github.com/karibuhq/karibu-ai-platform/pkg/logging"
)

const defaultTranscriptPageSize = 50

// AdminConversationsHandler serves operator views over conversations. Live
// state comes from the ephemeral store; full transcripts come from the
// message archive, which survives the hourly idle sweep.
type AdminConversationsHandler struct {
	store   conversation.Store
	archive *conversation.MessageArchive
	logger  *logging.Logger
}

// NewAdminConversationsHandler creates the handler. The archive may be nil
// when the deployment runs without Postgres; transcript requests then
// return 404s.
func NewAdminConversationsHandler(store conversation.Store, archive *conversation.MessageArchive, logger *logging.Logger) *AdminConversationsHandler {
	if store == nil {
		panic("handlers: conversation store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminConversationsHandler{store: store, archive: archive, logger: logger}
}

// ConversationsListResponse lists archived conversations for an org.
type ConversationsListResponse struct {
	OrgID         string                             `json:"org_id"`
	Conversations []conversation.ConversationSummary `json:"conversations"`
	Count         int                                `json:"count"`
}

// ListConversations returns per-phone conversation summaries, most
// recently active first.
// GET /admin/orgs/{orgID}/conversations?limit=50
func (h *AdminConversationsHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	if orgID == "" {
		respondError(w, http.StatusBadRequest, "missing orgID")
		return
	}
	if h.archive == nil {
		respondError(w, http.StatusNotFound, "message archive not configured")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 500 {
		limit = defaultTranscriptPageSize
	}

	summaries, err := h.archive.ListConversations(r.Context(), orgID, limit)
	if err != nil {
		h.logger.Error("conversation list failed", "org_id", orgID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}
	if summaries == nil {
		summaries = []conversation.ConversationSummary{}
	}

	respondJSON(w, http.StatusOK, ConversationsListResponse{
		OrgID:         orgID,
		Conversations: summaries,
		Count:         len(summaries),
	})
}

// TranscriptMessage is one archived turn in API form.
type TranscriptMessage struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Body      string `json:"body"`
	Strategy  string `json:"strategy,omitempty"`
	Provider  string `json:"provider,omitempty"`
	Timestamp string `json:"timestamp"`
}

// TranscriptResponse is the transcript payload for one phone number.
type TranscriptResponse struct {
	OrgID    string              `json:"org_id"`
	Phone    string              `json:"phone"`
	Messages []TranscriptMessage `json:"messages"`
}

// GetTranscript returns the archived transcript for a phone number, newest
// first.
// GET /admin/orgs/{orgID}/conversations/{phone}?limit=50
func (h *AdminConversationsHandler) GetTranscript(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	phone := chi.URLParam(r, "phone")
	if orgID == "" || phone == "" {
		respondError(w, http.StatusBadRequest, "missing orgID or phone")
		return
	}
	if h.archive == nil {
		respondError(w, http.StatusNotFound, "message archive not configured")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 500 {
		limit = defaultTranscriptPageSize
	}

	entries, err := h.archive.ListForPhone(r.Context(), orgID, phone, limit)
	if err != nil {
		h.logger.Error("transcript lookup failed", "org_id", orgID, "phone", phone, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load transcript")
		return
	}

	messages := make([]TranscriptMessage, 0, len(entries))
	for _, e := range entries {
		messages = append(messages, TranscriptMessage{
			ID:        e.ID,
			Role:      e.Role,
			Body:      e.Body,
			Strategy:  e.Strategy,
			Provider:  e.Provider,
			Timestamp: e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	respondJSON(w, http.StatusOK, TranscriptResponse{
		OrgID:    orgID,
		Phone:    phone,
		Messages: messages,
	})
}

// EndConversation deletes the live state for a phone number, forcing the
// next inbound message to start fresh. The archive is untouched.
// DELETE /admin/orgs/{orgID}/conversations/{phone}
func (h *AdminConversationsHandler) EndConversation(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	phone := chi.URLParam(r, "phone")
	if orgID == "" || phone == "" {
		respondError(w, http.StatusBadRequest, "missing orgID or phone")
		return
	}
	if err := h.store.Delete(r.Context(), orgID, phone); err != nil {
		h.logger.Error("end conversation failed", "org_id", orgID, "phone", phone, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to end conversation")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ended"})
}

// ActiveConversationsResponse reports the live state count across all orgs.
type ActiveConversationsResponse struct {
	Active int `json:"active"`
}

// ActiveConversations returns the number of conversations with live state.
// GET /admin/conversations/active
func (h *AdminConversationsHandler) ActiveConversations(w http.ResponseWriter, r *http.Request) {
	n, err := h.store.Count(r.Context())
	if err != nil {
		h.logger.Error("active conversation count failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to count conversations")
		return
	}
	respondJSON(w, http.StatusOK, ActiveConversationsResponse{Active: n})
}
