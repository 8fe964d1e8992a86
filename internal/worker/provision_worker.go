package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nomadsim/esim_api/internal/models"
)

// provisioner is the slice of ESIMService the worker needs.
type provisioner interface {
	ProvisionOrder(ctx context.Context, order *models.Order) error
}

// provisionStore is the slice of the order repository the worker needs.
type provisionStore interface {
	FindPaidUnprovisioned(minCreatedAt time.Time, limit int) ([]models.Order, error)
	FindStaleProvisioning(cutoff time.Time, minCreatedAt time.Time, limit int) ([]models.Order, error)
}

// ProvisionWorker turns paid orders into delivered eSIM profiles. It also
// re-drives orders stuck in provisioning, which happens when the process
// dies between the provider call and the final status write.
type ProvisionWorker struct {
	esimService provisioner
	orderRepo   provisionStore
	interval    time.Duration
	staleAfter  time.Duration
	maxAge      time.Duration
}

const provisionBatchSize = 20

// NewProvisionWorker constructs a ProvisionWorker. Orders older than
// maxAge are left alone: after that long an automated retry is more
// likely to double-provision than to help, so those go to an operator.
// A zero maxAge disables the guard.
func NewProvisionWorker(
	esimService provisioner,
	orderRepo provisionStore,
	interval time.Duration,
	staleAfter time.Duration,
	maxAge time.Duration,
) *ProvisionWorker {
	return &ProvisionWorker{
		esimService: esimService,
		orderRepo:   orderRepo,
		interval:    interval,
		staleAfter:  staleAfter,
		maxAge:      maxAge,
	}
}

// Start begins the periodic provisioning loop until context is canceled.
func (w *ProvisionWorker) Start(ctx context.Context) {
	log.Info().Dur("interval", w.interval).Msg("Starting provision worker")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.run(ctx)
		case <-ctx.Done():
			log.Info().Msg("Provision worker stopped")
			return
		}
	}
}

func (w *ProvisionWorker) run(ctx context.Context) {
	var minCreatedAt time.Time
	if w.maxAge > 0 {
		minCreatedAt = time.Now().Add(-w.maxAge)
	}

	orders, err := w.orderRepo.FindPaidUnprovisioned(minCreatedAt, provisionBatchSize)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get paid orders")
		return
	}

	stale, err := w.orderRepo.FindStaleProvisioning(time.Now().Add(-w.staleAfter), minCreatedAt, provisionBatchSize)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get stale provisioning orders")
	} else {
		orders = append(orders, stale...)
	}

	if len(orders) == 0 {
		return
	}
	log.Info().Int("count", len(orders)).Msg("Processing orders for provisioning")

	for i := range orders {
		// Respect cancellation between items
		select {
		case <-ctx.Done():
			return
		default:
			w.processOrder(ctx, &orders[i])
		}
	}
}

func (w *ProvisionWorker) processOrder(ctx context.Context, order *models.Order) {
	log.Info().
		Str("order_id", order.OrderID).
		Str("status", string(order.Status)).
		Msg("Provisioning order")

	if err := w.esimService.ProvisionOrder(ctx, order); err != nil {
		log.Error().
			Err(err).
			Str("order_id", order.OrderID).
			Msg("Failed to provision order")
	}
}
