package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/suppscan/score-cli/internal/config"
)

// Open returns a Store for the configured driver. Postgres is the production
// backend; sqlite serves local fixture runs.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "", "postgres":
		return NewPostgres(ctx, cfg)
	case "sqlite":
		if cfg.SQLitePath == "" {
			return nil, eris.New("store: sqlite driver requires store.sqlite_path")
		}
		return NewSQLite(cfg.SQLitePath)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
