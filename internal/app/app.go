// Package app assembles the engine from configuration for the binaries.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"boxrental-backend/internal/config"
	"boxrental-backend/internal/domain"
	"boxrental-backend/internal/events"
	"boxrental-backend/internal/logger"
	"boxrental-backend/internal/notify"
	"boxrental-backend/internal/ratelimit"
	"boxrental-backend/internal/repository"
	"boxrental-backend/internal/repository/memory"
	"boxrental-backend/internal/repository/postgres"
	"boxrental-backend/internal/service"
	"boxrental-backend/internal/tracking"

	_ "github.com/lib/pq"
)

// Engine is a fully wired rental service plus the resources behind it.
type Engine struct {
	Service *service.Service
	Store   repository.Store
	Bus     *events.Bus
	Limiter *ratelimit.Keyed
	db      *sql.DB
}

// Close waits for in-flight notifications and releases the database.
func (e *Engine) Close() error {
	if e.Bus != nil {
		e.Bus.Wait()
	}
	if e.db != nil {
		return e.db.Close()
	}
	return nil
}

// OpenDatabase connects to PostgreSQL and verifies the connection.
func OpenDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	logger.Info("Connecting to database...", "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database)
	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if cfg.Database.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	}
	if cfg.Database.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	logger.Info("Database connection established")
	return db, nil
}

// New builds the engine. Notifiers are only attached when their
// credentials are configured.
func New(ctx context.Context, cfg *config.Config) (*Engine, error) {
	logger.SetBusinessErrorMatcher(func(err error) bool {
		return domain.KindOf(err) != domain.KindInternal
	})

	e := &Engine{}
	switch cfg.Store.Type {
	case "memory":
		logger.Warn("Using in-memory store; data is lost on restart")
		e.Store = memory.NewStore(memory.WithLockTimeout(cfg.AllocationTimeout()))
	case "postgres":
		db, err := OpenDatabase(ctx, cfg)
		if err != nil {
			return nil, err
		}
		e.db = db
		e.Store = postgres.NewStore(db, cfg.AllocationTimeout())
	default:
		return nil, fmt.Errorf("unsupported store type %q", cfg.Store.Type)
	}

	table, err := cfg.PricingTable()
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("pricing table: %w", err)
	}
	codes, err := tracking.NewGenerator(cfg.Tracking.CodeLength)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("tracking codes: %w", err)
	}

	e.Bus = events.NewBus(events.WithHandlerTimeout(10 * time.Second))
	if err := subscribeNotifiers(ctx, cfg, e.Bus, e.Store.Repos().Customers); err != nil {
		e.Close()
		return nil, err
	}

	e.Limiter = ratelimit.NewKeyed(cfg.Tracking.LookupRatePerMinute, cfg.Tracking.LookupBurst)
	e.Service = service.New(e.Store, table, codes, e.Limiter, e.Bus, service.Options{
		CountPendingAsCommitted: cfg.Inventory.CountPendingAsCommitted,
	})
	return e, nil
}

func subscribeNotifiers(ctx context.Context, cfg *config.Config, bus *events.Bus, customers notify.CustomerFinder) error {
	if cfg.Email.SendGridAPIKey != "" {
		email := notify.NewSendGridNotifier(cfg.Email.SendGridAPIKey, customers, notify.EmailConfig{
			FromEmail:   cfg.Email.FromEmail,
			FromName:    cfg.Email.FromName,
			TrackingURL: cfg.Tracking.URL,
		})
		bus.Subscribe(email, notify.EmailEvents...)
		logger.Info("Email notifications enabled", "from", cfg.Email.FromEmail)
	} else {
		logger.Info("Email notifications disabled (no SendGrid API key)")
	}

	if cfg.Push.CredentialsFile != "" {
		push, err := notify.NewFirebasePushNotifier(ctx, cfg.Push.CredentialsFile, cfg.Push.DispatchTopic)
		if err != nil {
			return fmt.Errorf("firebase messaging: %w", err)
		}
		bus.Subscribe(push, notify.PushEvents...)
		logger.Info("Dispatch push notifications enabled", "topic", cfg.Push.DispatchTopic)
	} else {
		logger.Info("Dispatch push notifications disabled (no Firebase credentials)")
	}
	return nil
}
