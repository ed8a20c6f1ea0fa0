package tenancy

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrTenantNotFound is returned when no tenant owns the destination number.
var ErrTenantNotFound = errors.New("tenancy: tenant not found for number")

var phoneDigitsRe = regexp.MustCompile(`\d+`)

// Settings holds the per-tenant configuration the conversation engine reads.
// Empty credential fields mean "fall back to the process-wide defaults".
type Settings struct {
	OrgID               string
	BusinessName        string
	BusinessDescription string
	Tone                string
	BypassAI            bool
	BypassReply         string
	RedirectKeywords    []string
	SupportName         string
	SupportPhone        string
	BookingsEnabled     bool

	GeminiAPIKey string

	WhatsAppNumber   string
	TwilioAccountSID string
	TwilioAuthToken  string
	MetaAccessToken  string
	MetaPhoneNumID   string
}

// Defaults carries the process-wide fallbacks applied when a tenant has no
// credential of its own.
type Defaults struct {
	GeminiAPIKey     string
	WhatsAppNumber   string
	TwilioAccountSID string
	TwilioAuthToken  string
	MetaAccessToken  string
	MetaPhoneNumID   string
}

// Resolver maps a destination WhatsApp number to tenant settings.
type Resolver interface {
	ResolveByNumber(ctx context.Context, toNumber string) (*Settings, error)
}

// ApplyDefaults fills empty credential fields from process-wide defaults.
func (s *Settings) ApplyDefaults(d Defaults) {
	if s == nil {
		return
	}
	if s.GeminiAPIKey == "" {
		s.GeminiAPIKey = d.GeminiAPIKey
	}
	if s.WhatsAppNumber == "" {
		s.WhatsAppNumber = d.WhatsAppNumber
	}
	if s.TwilioAccountSID == "" {
		s.TwilioAccountSID = d.TwilioAccountSID
	}
	if s.TwilioAuthToken == "" {
		s.TwilioAuthToken = d.TwilioAuthToken
	}
	if s.MetaAccessToken == "" {
		s.MetaAccessToken = d.MetaAccessToken
	}
	if s.MetaPhoneNumID == "" {
		s.MetaPhoneNumID = d.MetaPhoneNumID
	}
}

// StaticResolver maps sanitized phone numbers to tenant settings in memory.
type StaticResolver struct {
	byNumber map[string]*Settings
	defaults Defaults
}

// NewStaticResolver constructs a resolver backed by an in-memory map.
func NewStaticResolver(tenants []*Settings, defaults Defaults) *StaticResolver {
	byNumber := make(map[string]*Settings, len(tenants))
	for _, t := range tenants {
		if t == nil {
			continue
		}
		key := sanitizePhone(t.WhatsAppNumber)
		if key == "" {
			continue
		}
		byNumber[key] = t
	}
	return &StaticResolver{byNumber: byNumber, defaults: defaults}
}

// ResolveByNumber implements Resolver.
func (r *StaticResolver) ResolveByNumber(_ context.Context, toNumber string) (*Settings, error) {
	if r == nil {
		return nil, ErrTenantNotFound
	}
	key := sanitizePhone(toNumber)
	if key == "" {
		return nil, ErrTenantNotFound
	}
	t, ok := r.byNumber[key]
	if !ok {
		return nil, ErrTenantNotFound
	}
	out := *t
	out.RedirectKeywords = append([]string(nil), t.RedirectKeywords...)
	out.ApplyDefaults(r.defaults)
	return &out, nil
}

// PgxQuerier is the slice of pgxpool.Pool the resolver needs. Tests inject
// pgxmock through it.
type PgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresResolver loads tenant settings from the tenants table.
type PostgresResolver struct {
	db       PgxQuerier
	defaults Defaults
}

// NewPostgresResolver initializes a resolver backed by pgxpool.
func NewPostgresResolver(pool *pgxpool.Pool, defaults Defaults) *PostgresResolver {
	if pool == nil {
		panic("tenancy: pgx pool required")
	}
	return &PostgresResolver{db: pool, defaults: defaults}
}

// NewPostgresResolverWithQuerier allows injecting mocks for tests.
func NewPostgresResolverWithQuerier(db PgxQuerier, defaults Defaults) *PostgresResolver {
	return &PostgresResolver{db: db, defaults: defaults}
}

// ResolveByNumber implements Resolver.
func (r *PostgresResolver) ResolveByNumber(ctx context.Context, toNumber string) (*Settings, error) {
	key := sanitizePhone(toNumber)
	if key == "" {
		return nil, ErrTenantNotFound
	}

	query := `
		SELECT org_id, business_name, business_description, tone,
		       bypass_ai, COALESCE(bypass_reply, ''), redirect_keywords,
		       COALESCE(support_name, ''), COALESCE(support_phone, ''),
		       bookings_enabled, COALESCE(gemini_api_key, ''),
		       whatsapp_number,
		       COALESCE(twilio_account_sid, ''), COALESCE(twilio_auth_token, ''),
		       COALESCE(meta_access_token, ''), COALESCE(meta_phone_number_id, '')
		FROM tenants
		WHERE whatsapp_number_digits = $1
	`
	var s Settings
	err := r.db.QueryRow(ctx, query, key).Scan(
		&s.OrgID, &s.BusinessName, &s.BusinessDescription, &s.Tone,
		&s.BypassAI, &s.BypassReply, &s.RedirectKeywords,
		&s.SupportName, &s.SupportPhone,
		&s.BookingsEnabled, &s.GeminiAPIKey,
		&s.WhatsAppNumber,
		&s.TwilioAccountSID, &s.TwilioAuthToken,
		&s.MetaAccessToken, &s.MetaPhoneNumID,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("tenancy: load tenant: %w", err)
	}

	s.ApplyDefaults(r.defaults)
	return &s, nil
}

func sanitizePhone(value string) string {
	if value == "" {
		return ""
	}
	digits := phoneDigitsRe.FindAllString(value, -1)
	return strings.Join(digits, "")
}
