// Package catalog exposes the tenant-configured service list the booking
// flow reads. The conversation engine never mutates services; edits happen
// through the dashboard, outside this backend's scope.
package catalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Service is a bookable offering configured by a tenant.
type Service struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Price          string   `json:"price"`
	Duration       string   `json:"duration"`
	Description    string   `json:"description"`
	AvailableDates []string `json:"available_dates"`
	TimeSlots      []string `json:"time_slots"`
}

// Reader lists the services a tenant offers.
type Reader interface {
	ListServices(ctx context.Context, orgID string) ([]Service, error)
}

// MemoryReader serves a static per-org service list. Used in development and
// tests.
type MemoryReader struct {
	mu       sync.RWMutex
	services map[string][]Service
}

// NewMemoryReader builds a reader from a per-org service map.
func NewMemoryReader(services map[string][]Service) *MemoryReader {
	if services == nil {
		services = make(map[string][]Service)
	}
	return &MemoryReader{services: services}
}

// ListServices implements Reader.
func (r *MemoryReader) ListServices(_ context.Context, orgID string) ([]Service, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Service(nil), r.services[orgID]...), nil
}

// SetServices replaces the service list for an org.
func (r *MemoryReader) SetServices(orgID string, services []Service) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services[orgID] = append([]Service(nil), services...)
}

// PgxQuerier is the slice of pgxpool.Pool the reader needs.
type PgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresReader loads services from the services table.
type PostgresReader struct {
	db PgxQuerier
}

// NewPostgresReader initializes a reader backed by pgxpool.
func NewPostgresReader(pool *pgxpool.Pool) *PostgresReader {
	if pool == nil {
		panic("catalog: pgx pool required")
	}
	return &PostgresReader{db: pool}
}

// NewPostgresReaderWithQuerier allows injecting mocks for tests.
func NewPostgresReaderWithQuerier(db PgxQuerier) *PostgresReader {
	return &PostgresReader{db: db}
}

// ListServices implements Reader.
func (r *PostgresReader) ListServices(ctx context.Context, orgID string) ([]Service, error) {
	query := `
		SELECT id, name, price, duration, COALESCE(description, ''),
		       available_dates, time_slots
		FROM services
		WHERE org_id = $1
		ORDER BY position ASC, created_at ASC
	`
	rows, err := r.db.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("catalog: list services: %w", err)
	}
	defer rows.Close()

	var services []Service
	for rows.Next() {
		var s Service
		if err := rows.Scan(&s.ID, &s.Name, &s.Price, &s.Duration, &s.Description, &s.AvailableDates, &s.TimeSlots); err != nil {
			return nil, fmt.Errorf("catalog: scan service: %w", err)
		}
		services = append(services, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: iterate services: %w", err)
	}
	return services, nil
}
