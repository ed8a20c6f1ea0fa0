package catalog

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryReader(t *testing.T) {
	reader := NewMemoryReader(map[string][]Service{
		"org-1": {{ID: "svc-1", Name: "Haircut", Price: "KSh 500"}},
	})

	services, err := reader.ListServices(context.Background(), "org-1")
	require.NoError(t, err)
	require.Len(t, services, 1)
	assert.Equal(t, "Haircut", services[0].Name)

	// Mutating the returned slice must not affect the reader.
	services[0].Name = "mutated"
	again, err := reader.ListServices(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Equal(t, "Haircut", again[0].Name)

	empty, err := reader.ListServices(context.Background(), "org-missing")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemoryReaderSetServices(t *testing.T) {
	reader := NewMemoryReader(nil)
	reader.SetServices("org-2", []Service{{ID: "svc-9", Name: "Massage"}})

	services, err := reader.ListServices(context.Background(), "org-2")
	require.NoError(t, err)
	require.Len(t, services, 1)
	assert.Equal(t, "Massage", services[0].Name)
}

func TestPostgresReader(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	reader := NewPostgresReaderWithQuerier(mock)

	rows := pgxmock.NewRows([]string{"id", "name", "price", "duration", "description", "available_dates", "time_slots"}).
		AddRow("svc-1", "Haircut", "KSh 500", "30 min", "Classic cut", []string{"2025-01-05"}, []string{"10:00 AM"}).
		AddRow("svc-2", "Braiding", "KSh 1500", "2 hrs", "", []string{"2025-01-06", "2025-01-07"}, []string(nil))
	mock.ExpectQuery("SELECT id, name, price").WithArgs("org-1").WillReturnRows(rows)

	services, err := reader.ListServices(context.Background(), "org-1")
	require.NoError(t, err)
	require.Len(t, services, 2)
	assert.Equal(t, "Braiding", services[1].Name)
	assert.Equal(t, []string{"2025-01-05"}, services[0].AvailableDates)
	require.NoError(t, mock.ExpectationsWereMet())
}
