package main

import (
	"context"

	"github.com/suppscan/score-cli/internal/store"
)

// openStore opens the configured store backend. Callers own Close.
func openStore(ctx context.Context) (store.Store, error) {
	return store.Open(ctx, cfg.Store)
}
