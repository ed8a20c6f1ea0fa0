package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageArchiveRecord(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	archive := NewMessageArchive(db)

	mock.ExpectExec("INSERT INTO message_archive").
		WithArgs(sqlmock.AnyArg(), "org-1", "+255711111111", ChatRoleUser, "habari",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = archive.Record(context.Background(), ArchiveEntry{
		OrgID: "org-1",
		Phone: "+255711111111",
		Role:  ChatRoleUser,
		Body:  "habari",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageArchiveListForPhone(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	archive := NewMessageArchive(db)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "org_id", "phone", "role", "body", "strategy", "provider", "created_at"}).
		AddRow("m-2", "org-1", "+255711111111", ChatRoleAssistant, "Karibu!", StrategyAI, "twilio", now).
		AddRow("m-1", "org-1", "+255711111111", ChatRoleUser, "habari", "", "twilio", now.Add(-time.Minute))

	mock.ExpectQuery("SELECT id, org_id, phone, role, body").
		WithArgs("org-1", "+255711111111", 50).
		WillReturnRows(rows)

	entries, err := archive.ListForPhone(context.Background(), "org-1", "+255711111111", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "m-2", entries[0].ID)
	assert.Equal(t, StrategyAI, entries[0].Strategy)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageArchiveNilIsSafe(t *testing.T) {
	var archive *MessageArchive

	require.NoError(t, archive.Record(context.Background(), ArchiveEntry{Body: "dropped"}))
	entries, err := archive.ListForPhone(context.Background(), "org-1", "+255711111111", 10)
	require.NoError(t, err)
	assert.Nil(t, entries)
}
