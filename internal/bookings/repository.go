package bookings

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists bookings.
type Repository interface {
	Create(ctx context.Context, b *Booking) error
	GetByID(ctx context.Context, orgID, id string) (*Booking, error)
	Update(ctx context.Context, b *Booking) error
	ListForOrg(ctx context.Context, orgID string, limit int) ([]Booking, error)
}

// MemoryRepository keeps bookings in a map. Used in development and tests.
type MemoryRepository struct {
	mu       sync.RWMutex
	bookings map[string]*Booking
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{bookings: make(map[string]*Booking)}
}

// Create implements Repository.
func (r *MemoryRepository) Create(_ context.Context, b *Booking) error {
	if b == nil || b.ID == "" {
		return errors.New("bookings: booking id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	stored := *b
	r.bookings[b.ID] = &stored
	return nil
}

// GetByID implements Repository.
func (r *MemoryRepository) GetByID(_ context.Context, orgID, id string) (*Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bookings[id]
	if !ok || (orgID != "" && b.OrgID != orgID) {
		return nil, ErrNotFound
	}
	out := *b
	return &out, nil
}

// Update implements Repository.
func (r *MemoryRepository) Update(_ context.Context, b *Booking) error {
	if b == nil || b.ID == "" {
		return errors.New("bookings: booking id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bookings[b.ID]; !ok {
		return ErrNotFound
	}
	stored := *b
	r.bookings[b.ID] = &stored
	return nil
}

// ListForOrg implements Repository.
func (r *MemoryRepository) ListForOrg(_ context.Context, orgID string, limit int) ([]Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Booking
	for _, b := range r.bookings {
		if b.OrgID == orgID {
			out = append(out, *b)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// PgxQuerier is the slice of pgxpool.Pool the repository needs.
type PgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores bookings in the relational database.
type PostgresRepository struct {
	db PgxQuerier
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("bookings: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

// NewPostgresRepositoryWithQuerier allows injecting mocks for tests.
func NewPostgresRepositoryWithQuerier(db PgxQuerier) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new booking row.
func (r *PostgresRepository) Create(ctx context.Context, b *Booking) error {
	if b == nil || b.ID == "" {
		return errors.New("bookings: booking id required")
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO bookings (
			id, org_id, customer_name, customer_phone,
			service_id, service_name, date_booked, time_slot,
			price, status, notes, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.Exec(ctx, query,
		b.ID, b.OrgID, b.CustomerName, b.CustomerPhone,
		b.ServiceID, b.ServiceName, b.DateBooked, b.TimeSlot,
		b.Price, b.Status, b.Notes, b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("bookings: insert: %w", err)
	}
	return nil
}

// GetByID fetches a booking scoped to the org.
func (r *PostgresRepository) GetByID(ctx context.Context, orgID, id string) (*Booking, error) {
	query := `
		SELECT id, org_id, customer_name, customer_phone,
		       service_id, service_name, date_booked, time_slot,
		       price, status, COALESCE(notes, ''), created_at
		FROM bookings
		WHERE id = $1 AND org_id = $2
	`
	var b Booking
	err := r.db.QueryRow(ctx, query, id, orgID).Scan(
		&b.ID, &b.OrgID, &b.CustomerName, &b.CustomerPhone,
		&b.ServiceID, &b.ServiceName, &b.DateBooked, &b.TimeSlot,
		&b.Price, &b.Status, &b.Notes, &b.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("bookings: load: %w", err)
	}
	return &b, nil
}

// Update rewrites the mutable booking fields in place.
func (r *PostgresRepository) Update(ctx context.Context, b *Booking) error {
	if b == nil || b.ID == "" {
		return errors.New("bookings: booking id required")
	}
	query := `
		UPDATE bookings SET
			customer_name = $1, date_booked = $2, time_slot = $3,
			status = $4, notes = $5
		WHERE id = $6 AND org_id = $7
	`
	tag, err := r.db.Exec(ctx, query,
		b.CustomerName, b.DateBooked, b.TimeSlot,
		b.Status, b.Notes, b.ID, b.OrgID,
	)
	if err != nil {
		return fmt.Errorf("bookings: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListForOrg returns the most recent bookings for an org.
func (r *PostgresRepository) ListForOrg(ctx context.Context, orgID string, limit int) ([]Booking, error) {
	query := `
		SELECT id, org_id, customer_name, customer_phone,
		       service_id, service_name, date_booked, time_slot,
		       price, status, COALESCE(notes, ''), created_at
		FROM bookings
		WHERE org_id = $1
		ORDER BY created_at DESC
	`
	args := []any{orgID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("bookings: list: %w", err)
	}
	defer rows.Close()

	var out []Booking
	for rows.Next() {
		var b Booking
		if err := rows.Scan(
			&b.ID, &b.OrgID, &b.CustomerName, &b.CustomerPhone,
			&b.ServiceID, &b.ServiceName, &b.DateBooked, &b.TimeSlot,
			&b.Price, &b.Status, &b.Notes, &b.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("bookings: scan: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bookings: iterate: %w", err)
	}
	return out, nil
}
