package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nomadsim/esim_api/internal/service"
)

// CatalogSyncWorker periodically refreshes the catalog feed and mirrors it
// into the Postgres snapshot.
type CatalogSyncWorker struct {
	catalog  *service.CatalogService
	interval time.Duration
}

// NewCatalogSyncWorker constructs a CatalogSyncWorker.
func NewCatalogSyncWorker(catalog *service.CatalogService, interval time.Duration) *CatalogSyncWorker {
	return &CatalogSyncWorker{
		catalog:  catalog,
		interval: interval,
	}
}

// Start begins the periodic sync loop and listens for context cancellation.
func (w *CatalogSyncWorker) Start(ctx context.Context) {
	log.Info().Dur("interval", w.interval).Msg("Starting catalog sync worker")

	// Run immediately on start
	w.run(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.run(ctx)
		case <-ctx.Done():
			log.Info().Msg("Catalog sync worker stopped")
			return
		}
	}
}

func (w *CatalogSyncWorker) run(ctx context.Context) {
	log.Info().Msg("Syncing catalog from Mobimatter...")

	start := time.Now()
	if err := w.catalog.SyncSnapshot(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to sync catalog")
		return
	}

	log.Info().Dur("duration", time.Since(start)).Msg("Catalog sync completed")
}
