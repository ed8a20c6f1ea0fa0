package bootstrap

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/karibuhq/karibu-ai-platform/internal/bookings"
	"github.com/karibuhq/karibu-ai-platform/internal/catalog"
	appconfig "github.com/karibuhq/karibu-ai-platform/internal/config"
	"github.com/karibuhq/karibu-ai-platform/internal/conversation"
	"github.com/karibuhq/karibu-ai-platform/internal/notify"
	"github.com/karibuhq/karibu-ai-platform/internal/tenancy"
	"github.com/karibuhq/karibu-ai-platform/pkg/logging"
)

// DataLayer bundles the storage-backed services. Postgres-backed when
// DATABASE_URL is set; otherwise in-memory, which is only useful for local
// development and tests.
type DataLayer struct {
	Pool     *pgxpool.Pool
	SQL      *sql.DB
	Tenants  tenancy.Resolver
	Catalog  catalog.Reader
	Bookings *bookings.Service
	Archive  *conversation.MessageArchive
}

// Close releases the database handles.
func (d *DataLayer) Close() {
	if d == nil {
		return
	}
	if d.Pool != nil {
		d.Pool.Close()
	}
	if d.SQL != nil {
		_ = d.SQL.Close()
	}
}

// BuildDataLayer connects to Postgres and wires the tenant resolver,
// service catalog, bookings service, and message archive. Tenant
// credential fallbacks come from process-wide config.
func BuildDataLayer(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*DataLayer, error) {
	if logger == nil {
		logger = logging.Default()
	}
	defaults := tenancy.Defaults{
		GeminiAPIKey:     cfg.GeminiAPIKey,
		WhatsAppNumber:   cfg.TwilioWhatsAppNumber,
		TwilioAccountSID: cfg.TwilioAccountSID,
		TwilioAuthToken:  cfg.TwilioAuthToken,
		MetaAccessToken:  cfg.MetaAccessToken,
		MetaPhoneNumID:   cfg.MetaPhoneNumberID,
	}

	notifier := buildNotifier(cfg, logger)

	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory data layer")
		return &DataLayer{
			Tenants:  tenancy.NewStaticResolver(nil, defaults),
			Catalog:  catalog.NewMemoryReader(nil),
			Bookings: bookings.NewService(bookings.NewMemoryRepository(), notifier, logger),
		}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
	}

	// The archive runs on database/sql so go-sqlmock can drive its tests;
	// everything else shares the pgx pool.
	sqlDB, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: open sql db: %w", err)
	}

	return &DataLayer{
		Pool:     pool,
		SQL:      sqlDB,
		Tenants:  tenancy.NewPostgresResolver(pool, defaults),
		Catalog:  catalog.NewPostgresReader(pool),
		Bookings: bookings.NewService(bookings.NewPostgresRepository(pool), notifier, logger),
		Archive:  conversation.NewMessageArchive(sqlDB),
	}, nil
}

func buildNotifier(cfg *appconfig.Config, logger *logging.Logger) bookings.Notifier {
	var sender notify.EmailSender
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sg != nil {
		sender = sg
	}
	return notify.NewBookingNotifier(sender, cfg.OperatorEmail, logger)
}
