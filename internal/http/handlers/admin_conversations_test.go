package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karibuhq/karibu-ai-platform/internal/conversation"
	"github.com/karibuhq/karibu-ai-platform/pkg/logging"
)

func conversationsRouter(h *AdminConversationsHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/admin/conversations/active", h.ActiveConversations)
	r.Route("/admin/orgs/{orgID}", func(org chi.Router) {
		org.Get("/conversations", h.ListConversations)
		org.Get("/conversations/{phone}", h.GetTranscript)
		org.Delete("/conversations/{phone}", h.EndConversation)
	})
	return r
}

func TestListConversationsSummaries(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"phone", "count", "max"}).
		AddRow("+255700000001", 6, now).
		AddRow("+255700000002", 2, now.Add(-time.Hour))
	mock.ExpectQuery("SELECT phone, COUNT").
		WithArgs("org-1", 50).
		WillReturnRows(rows)

	h := NewAdminConversationsHandler(conversation.NewMemoryStore(), conversation.NewMessageArchive(db), logging.Default())

	rec := httptest.NewRecorder()
	conversationsRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/orgs/org-1/conversations", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp ConversationsListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, "+255700000001", resp.Conversations[0].Phone)
	assert.Equal(t, 6, resp.Conversations[0].MessageCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTranscriptFromArchive(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "org_id", "phone", "role", "body", "strategy", "provider", "created_at"}).
		AddRow("m-2", "org-1", "+255700000001", "assistant", "Karibu! How can I help?", "ai", "twilio", now).
		AddRow("m-1", "org-1", "+255700000001", "user", "hello", "", "twilio", now.Add(-time.Minute))
	mock.ExpectQuery("SELECT id, org_id, phone, role, body").
		WithArgs("org-1", "+255700000001", 50).
		WillReturnRows(rows)

	h := NewAdminConversationsHandler(conversation.NewMemoryStore(), conversation.NewMessageArchive(db), logging.Default())

	rec := httptest.NewRecorder()
	conversationsRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/orgs/org-1/conversations/+255700000001", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp TranscriptResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "assistant", resp.Messages[0].Role)
	assert.Equal(t, "ai", resp.Messages[0].Strategy)
	assert.Equal(t, "user", resp.Messages[1].Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTranscriptWithoutArchive(t *testing.T) {
	h := NewAdminConversationsHandler(conversation.NewMemoryStore(), nil, logging.Default())

	rec := httptest.NewRecorder()
	conversationsRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/orgs/org-1/conversations/+255700000001", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestActiveConversations(t *testing.T) {
	store := conversation.NewMemoryStore()
	_, err := store.GetOrCreate(context.Background(), "org-1", "+255700000001")
	require.NoError(t, err)
	_, err = store.GetOrCreate(context.Background(), "org-1", "+255700000002")
	require.NoError(t, err)

	h := NewAdminConversationsHandler(store, nil, logging.Default())

	rec := httptest.NewRecorder()
	conversationsRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/conversations/active", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp ActiveConversationsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Active)
}

func TestEndConversationClearsState(t *testing.T) {
	store := conversation.NewMemoryStore()
	_, err := store.GetOrCreate(context.Background(), "org-1", "+255700000001")
	require.NoError(t, err)

	h := NewAdminConversationsHandler(store, nil, logging.Default())

	rec := httptest.NewRecorder()
	conversationsRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/admin/orgs/org-1/conversations/+255700000001", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
