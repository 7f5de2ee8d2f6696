package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/shelfkeep/shelfkeep-server/internal/config"
	"github.com/shelfkeep/shelfkeep-server/internal/logger"
	"github.com/shelfkeep/shelfkeep-server/internal/retry"
	"github.com/shelfkeep/shelfkeep-server/internal/store/sqldb"
)

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	*sqldb.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore opens the configured database and applies the schema.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	db, err := sqldb.Open(ctx, sqldb.Config{
		Driver:   cfg.Database.Driver,
		Path:     cfg.Database.Path,
		DSN:      cfg.Database.DSN,
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	}, log.Logger)
	if err != nil {
		return nil, err
	}

	if cfg.Database.Driver == sqldb.DriverSQLite {
		log.Info("Database initialized", "driver", db.Driver(), "path", cfg.Database.Path)
	} else {
		log.Info("Database initialized", "driver", db.Driver())
	}

	return &StoreHandle{Store: db}, nil
}

// ProvideRetryPolicy provides the retry policy for transactions that hit a
// transient storage conflict.
func ProvideRetryPolicy(i do.Injector) (*retry.Policy, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	return retry.New(
		retry.WithMaxAttempts(cfg.Retry.MaxAttempts),
		retry.WithBaseDelay(cfg.Retry.BaseDelay),
		retry.WithJitterFactor(cfg.Retry.JitterFactor),
		retry.WithLogger(log.Logger),
	)
}
