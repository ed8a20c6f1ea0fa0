package conversation

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ArchiveEntry is one durably stored message turn. The conversation store
// is ephemeral by design; the archive is the system of record operators
// query after the hour-long state has been swept.
type ArchiveEntry struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"org_id"`
	Phone     string    `json:"phone"`
	Role      string    `json:"role"` // "user" or "assistant"
	Body      string    `json:"body"`
	Strategy  string    `json:"strategy,omitempty"`
	Provider  string    `json:"provider,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// MessageArchive persists message turns to Postgres over database/sql. A
// nil archive is valid and drops everything, so archival stays optional.
type MessageArchive struct {
	db *sql.DB
}

func NewMessageArchive(db *sql.DB) *MessageArchive {
	if db == nil {
		return nil
	}
	return &MessageArchive{db: db}
}

// Record inserts one turn.
func (a *MessageArchive) Record(ctx context.Context, entry ArchiveEntry) error {
	if a == nil || a.db == nil {
		return nil
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO message_archive (
			id, org_id, phone, role, body, strategy, provider, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := a.db.ExecContext(ctx, query,
		entry.ID,
		entry.OrgID,
		entry.Phone,
		entry.Role,
		entry.Body,
		nullString(entry.Strategy),
		nullString(entry.Provider),
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("conversation: failed to archive message: %w", err)
	}
	return nil
}

// ConversationSummary aggregates the archived turns for one phone number.
type ConversationSummary struct {
	Phone         string    `json:"phone"`
	MessageCount  int       `json:"message_count"`
	LastMessageAt time.Time `json:"last_message_at"`
}

// ListConversations summarizes archived traffic for an org, most recently
// active first.
func (a *MessageArchive) ListConversations(ctx context.Context, orgID string, limit int) ([]ConversationSummary, error) {
	if a == nil || a.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT phone, COUNT(*), MAX(created_at)
		FROM message_archive
		WHERE org_id = $1
		GROUP BY phone
		ORDER BY MAX(created_at) DESC
		LIMIT $2
	`

	rows, err := a.db.QueryContext(ctx, query, orgID, limit)
	if err != nil {
		return nil, fmt.Errorf("conversation: failed to list conversations: %w", err)
	}
	defer rows.Close()

	var out []ConversationSummary
	for rows.Next() {
		var s ConversationSummary
		if err := rows.Scan(&s.Phone, &s.MessageCount, &s.LastMessageAt); err != nil {
			return nil, fmt.Errorf("conversation: failed to scan conversation summary: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conversation: archive rows error: %w", err)
	}
	return out, nil
}

// ListForPhone returns the most recent archived turns for a customer,
// newest first.
func (a *MessageArchive) ListForPhone(ctx context.Context, orgID, phone string, limit int) ([]ArchiveEntry, error) {
	if a == nil || a.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, org_id, phone, role, body,
		       COALESCE(strategy, ''), COALESCE(provider, ''), created_at
		FROM message_archive
		WHERE org_id = $1 AND phone = $2
		ORDER BY created_at DESC
		LIMIT $3
	`

	rows, err := a.db.QueryContext(ctx, query, orgID, phone, limit)
	if err != nil {
		return nil, fmt.Errorf("conversation: failed to list archived messages: %w", err)
	}
	defer rows.Close()

	var entries []ArchiveEntry
	for rows.Next() {
		var e ArchiveEntry
		if err := rows.Scan(&e.ID, &e.OrgID, &e.Phone, &e.Role, &e.Body, &e.Strategy, &e.Provider, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("conversation: failed to scan archived message: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conversation: archive rows error: %w", err)
	}
	return entries, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
