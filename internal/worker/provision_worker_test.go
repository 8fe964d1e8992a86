package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nomadsim/esim_api/internal/models"
)

type fakeProvisionStore struct {
	mu sync.Mutex

	paid  []models.Order
	stale []models.Order

	paidMinCreatedAt  time.Time
	staleCutoff       time.Time
	staleMinCreatedAt time.Time
}

func (f *fakeProvisionStore) FindPaidUnprovisioned(minCreatedAt time.Time, limit int) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paidMinCreatedAt = minCreatedAt
	return f.paid, nil
}

func (f *fakeProvisionStore) FindStaleProvisioning(cutoff time.Time, minCreatedAt time.Time, limit int) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.staleCutoff = cutoff
	f.staleMinCreatedAt = minCreatedAt
	return f.stale, nil
}

type fakeProvisioner struct {
	mu       sync.Mutex
	orderIDs []string
}

func (f *fakeProvisioner) ProvisionOrder(ctx context.Context, order *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orderIDs = append(f.orderIDs, order.OrderID)
	return nil
}

func TestProvisionRunProcessesPaidAndStale(t *testing.T) {
	store := &fakeProvisionStore{
		paid:  []models.Order{{OrderID: "NS-PAID-1", Status: models.OrderStatusPaid}},
		stale: []models.Order{{OrderID: "NS-STUCK-1", Status: models.OrderStatusProvisioning}},
	}
	prov := &fakeProvisioner{}
	w := NewProvisionWorker(prov, store, time.Minute, 10*time.Minute, 0)

	w.run(context.Background())

	if len(prov.orderIDs) != 2 {
		t.Fatalf("provisioned %d orders, want 2", len(prov.orderIDs))
	}
	if prov.orderIDs[0] != "NS-PAID-1" || prov.orderIDs[1] != "NS-STUCK-1" {
		t.Errorf("provisioned %v, want paid before stale", prov.orderIDs)
	}
	if !store.staleCutoff.Before(time.Now().Add(-9 * time.Minute)) {
		t.Errorf("stale cutoff %v not pushed back by staleAfter", store.staleCutoff)
	}
}

func TestProvisionRunAppliesMaxAge(t *testing.T) {
	store := &fakeProvisionStore{}
	w := NewProvisionWorker(&fakeProvisioner{}, store, time.Minute, 10*time.Minute, 48*time.Hour)

	before := time.Now().Add(-48 * time.Hour)
	w.run(context.Background())
	after := time.Now().Add(-48 * time.Hour)

	for name, got := range map[string]time.Time{
		"paid":  store.paidMinCreatedAt,
		"stale": store.staleMinCreatedAt,
	} {
		if got.Before(before) || got.After(after) {
			t.Errorf("%s minCreatedAt = %v, want about 48h ago", name, got)
		}
	}
}

func TestProvisionRunZeroMaxAgeDisablesGuard(t *testing.T) {
	store := &fakeProvisionStore{}
	w := NewProvisionWorker(&fakeProvisioner{}, store, time.Minute, 10*time.Minute, 0)

	w.run(context.Background())

	if !store.paidMinCreatedAt.IsZero() {
		t.Errorf("paid minCreatedAt = %v, want zero", store.paidMinCreatedAt)
	}
	if !store.staleMinCreatedAt.IsZero() {
		t.Errorf("stale minCreatedAt = %v, want zero", store.staleMinCreatedAt)
	}
}
