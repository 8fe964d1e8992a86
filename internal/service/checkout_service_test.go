package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nomadsim/esim_api/internal/models"
	"github.com/nomadsim/esim_api/internal/sse"
	"github.com/nomadsim/esim_api/internal/utils"
	"github.com/nomadsim/esim_api/pkg/qpay"
)

type fakeCatalog struct {
	packages map[string]*models.Package
}

func (f *fakeCatalog) GetPackageBySKU(ctx context.Context, sku string) (*models.Package, error) {
	pkg, ok := f.packages[sku]
	if !ok {
		return nil, utils.ErrPackageNotFound
	}
	return pkg, nil
}

type fakeOrderStore struct {
	mu            sync.Mutex
	orders        map[string]*models.Order
	markPaidCalls int
	hasPaid       bool
	providers     []string
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{orders: make(map[string]*models.Order)}
}

func (f *fakeOrderStore) Create(order *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *order
	f.orders[order.OrderID] = &cp
	return nil
}

func (f *fakeOrderStore) GetByID(orderID string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderID]
	if !ok {
		return nil, utils.ErrOrderNotFound
	}
	cp := *order
	return &cp, nil
}

func (f *fakeOrderStore) SetInvoice(orderID string, invoice *models.Invoice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderID]
	if !ok {
		return utils.ErrOrderNotFound
	}
	order.Invoice = invoice
	return nil
}

func (f *fakeOrderStore) MarkPaid(orderID string, paidAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderID]
	if !ok {
		return false, utils.ErrOrderNotFound
	}
	if order.Status != models.OrderStatusPending {
		return false, nil
	}
	f.markPaidCalls++
	order.Status = models.OrderStatusPaid
	order.PaidAt = &paidAt
	return true, nil
}

func (f *fakeOrderStore) UpdateFields(orderID string, fields map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderID]
	if !ok {
		return utils.ErrOrderNotFound
	}
	if v, ok := fields["status"]; ok {
		order.Status = v.(models.OrderStatus)
	}
	if v, ok := fields["failed_reason"]; ok {
		order.FailedReason = v.(string)
	}
	if v, ok := fields["payment_id"]; ok {
		order.PaymentID = v.(string)
	}
	return nil
}

func (f *fakeOrderStore) HasPaidOrders(email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hasPaid, nil
}

func (f *fakeOrderStore) PaidProviders(email string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.providers, nil
}

func (f *fakeOrderStore) paidTransitions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.markPaidCalls
}

func (f *fakeOrderStore) orderStatus(orderID string) models.OrderStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.orders[orderID].Status
}

type fakeGateway struct {
	mu         sync.Mutex
	paid       bool
	invoiceErr error
	checkErr   error
}

func (f *fakeGateway) CreateInvoice(ctx context.Context, orderID, description string, amountMNT int) (*qpay.InvoiceResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.invoiceErr != nil {
		return nil, f.invoiceErr
	}
	return &qpay.InvoiceResponse{
		InvoiceID: "inv-" + orderID,
		QRText:    "qr-text",
		QRImage:   "qr-image",
		ShortURL:  "https://s.qpay.mn/x",
	}, nil
}

func (f *fakeGateway) CheckPayment(ctx context.Context, invoiceID string) (*qpay.PaymentStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.checkErr != nil {
		return nil, f.checkErr
	}
	return &qpay.PaymentStatus{IsPaid: f.paid, PaymentID: "pay-1"}, nil
}

func (f *fakeGateway) setPaid(paid bool) {
	f.mu.Lock()
	f.paid = paid
	f.mu.Unlock()
}

func (f *fakeGateway) setCheckErr(err error) {
	f.mu.Lock()
	f.checkErr = err
	f.mu.Unlock()
}

type checkoutFixture struct {
	svc     *CheckoutService
	catalog *fakeCatalog
	store   *fakeOrderStore
	gateway *fakeGateway
}

func newCheckoutFixture(t *testing.T, cfg CheckoutConfig) *checkoutFixture {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	catalog := &fakeCatalog{packages: map[string]*models.Package{
		"mn-3gb-7d": {
			SKU: "mn-3gb-7d", Title: "Mongolia 3GB", Provider: "SkyRoam",
			Countries: models.StringSet{"MN"}, DataAmountMB: 3072,
			DurationDays: 7, SellPriceMNT: 25000, Currency: "MNT", IsActive: true,
		},
		"mn-topup-1gb": {
			SKU: "mn-topup-1gb", Title: "Mongolia Top-up 1GB", Provider: "SkyRoam",
			Countries: models.StringSet{"MN"}, DataAmountMB: 1024,
			DurationDays: 7, SellPriceMNT: 9000, Currency: "MNT", IsTopUp: true, IsActive: true,
		},
	}}
	store := newFakeOrderStore()
	gateway := &fakeGateway{}

	svc := NewCheckoutService(ctx, catalog, store, gateway, &sse.NopNotifier{}, cfg)
	return &checkoutFixture{svc: svc, catalog: catalog, store: store, gateway: gateway}
}

func fastCheckoutConfig() CheckoutConfig {
	return CheckoutConfig{
		PollInterval:    5 * time.Millisecond,
		PollTimeout:     time.Second,
		ProcessingDelay: 0,
		SessionTTL:      time.Minute,
	}
}

func waitForState(t *testing.T, svc *CheckoutService, sessionID string, want CheckoutState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		session, err := svc.GetSession(sessionID)
		if err != nil {
			t.Fatalf("GetSession: %v", err)
		}
		if session.State == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	session, _ := svc.GetSession(sessionID)
	t.Fatalf("session never reached %s, stuck in %s", want, session.State)
}

func TestStartCheckoutRejectsBadEmail(t *testing.T) {
	fx := newCheckoutFixture(t, fastCheckoutConfig())

	for _, email := range []string{"", "not-an-email", "a@b", "two@@at.mn", "spaces in@mail.mn"} {
		_, err := fx.svc.StartCheckout(context.Background(), email, "mn-3gb-7d")
		if !errors.Is(err, utils.ErrInvalidEmail) {
			t.Errorf("email %q: got %v, want ErrInvalidEmail", email, err)
		}
	}
	if n := len(fx.store.orders); n != 0 {
		t.Errorf("rejected checkout must not create orders, got %d", n)
	}
}

func TestStartCheckoutUnknownPackage(t *testing.T) {
	fx := newCheckoutFixture(t, fastCheckoutConfig())

	_, err := fx.svc.StartCheckout(context.Background(), "buyer@test.mn", "nope")
	if !errors.Is(err, utils.ErrPackageNotFound) {
		t.Fatalf("got %v, want ErrPackageNotFound", err)
	}
}

func TestStartCheckoutReachesQR(t *testing.T) {
	fx := newCheckoutFixture(t, fastCheckoutConfig())

	session, err := fx.svc.StartCheckout(context.Background(), "Buyer@Test.MN ", "mn-3gb-7d")
	if err != nil {
		t.Fatalf("StartCheckout: %v", err)
	}
	if session.State != CheckoutStateQR {
		t.Errorf("State = %s, want qr", session.State)
	}
	if session.Invoice == nil || session.Invoice.InvoiceID == "" {
		t.Fatal("session has no invoice")
	}
	if session.Invoice.AmountMNT != 25000 {
		t.Errorf("invoice amount = %d, want 25000", session.Invoice.AmountMNT)
	}

	order, err := fx.store.GetByID(session.OrderID)
	if err != nil {
		t.Fatalf("order not persisted: %v", err)
	}
	if order.Status != models.OrderStatusPending {
		t.Errorf("order status = %s, want pending", order.Status)
	}
	if order.ContactEmail != "buyer@test.mn" {
		t.Errorf("email not normalized: %q", order.ContactEmail)
	}
	if order.Invoice == nil {
		t.Error("invoice not attached to order")
	}
}

func TestStartCheckoutInvoiceFailure(t *testing.T) {
	fx := newCheckoutFixture(t, fastCheckoutConfig())
	fx.gateway.invoiceErr = errors.New("gateway down")

	session, err := fx.svc.StartCheckout(context.Background(), "buyer@test.mn", "mn-3gb-7d")
	if !errors.Is(err, utils.ErrInvoiceFailed) {
		t.Fatalf("got %v, want ErrInvoiceFailed", err)
	}
	if session.State != CheckoutStateError {
		t.Errorf("session state = %s, want error", session.State)
	}
	if got := fx.store.orderStatus(session.OrderID); got != models.OrderStatusFailed {
		t.Errorf("order status = %s, want failed", got)
	}
}

func TestTopUpEligibility(t *testing.T) {
	fx := newCheckoutFixture(t, fastCheckoutConfig())

	// No settled order at all.
	_, err := fx.svc.StartCheckout(context.Background(), "new@test.mn", "mn-topup-1gb")
	if !errors.Is(err, utils.ErrNoESIM) {
		t.Fatalf("no history: got %v, want ErrNoESIM", err)
	}

	// Settled order exists but from another provider.
	fx.store.mu.Lock()
	fx.store.hasPaid = true
	fx.store.providers = []string{"OtherTel"}
	fx.store.mu.Unlock()
	_, err = fx.svc.StartCheckout(context.Background(), "new@test.mn", "mn-topup-1gb")
	if !errors.Is(err, utils.ErrProviderMismatch) {
		t.Fatalf("wrong provider: got %v, want ErrProviderMismatch", err)
	}

	// Matching provider history unlocks the top-up. The stored name is a
	// looser variant of the package's provider.
	fx.store.mu.Lock()
	fx.store.providers = []string{"OtherTel", "skyroam global"}
	fx.store.mu.Unlock()
	session, err := fx.svc.StartCheckout(context.Background(), "new@test.mn", "mn-topup-1gb")
	if err != nil {
		t.Fatalf("eligible top-up refused: %v", err)
	}
	if session.State != CheckoutStateQR {
		t.Errorf("State = %s, want qr", session.State)
	}
}

func TestProviderMatches(t *testing.T) {
	tests := []struct {
		stored, requested string
		want              bool
	}{
		{"SkyRoam", "SkyRoam", true},
		{"skyroam", "SKYROAM", true},
		{"SkyRoam Global", "SkyRoam", true},
		{"SkyRoam", "SkyRoam Global", true},
		{"OtherTel", "SkyRoam", false},
		{"", "SkyRoam", false},
		{"SkyRoam", "", false},
	}
	for _, tt := range tests {
		if got := providerMatches(tt.stored, tt.requested); got != tt.want {
			t.Errorf("providerMatches(%q, %q) = %v, want %v", tt.stored, tt.requested, got, tt.want)
		}
	}
}

func TestTopUpRequiresEmail(t *testing.T) {
	fx := newCheckoutFixture(t, fastCheckoutConfig())

	if err := fx.svc.checkTopUpEligibility("", "SkyRoam"); !errors.Is(err, utils.ErrLoginRequired) {
		t.Errorf("got %v, want ErrLoginRequired", err)
	}
}

func TestWatcherConfirmsPayment(t *testing.T) {
	fx := newCheckoutFixture(t, fastCheckoutConfig())

	session, err := fx.svc.StartCheckout(context.Background(), "buyer@test.mn", "mn-3gb-7d")
	if err != nil {
		t.Fatalf("StartCheckout: %v", err)
	}

	fx.gateway.setPaid(true)
	waitForState(t, fx.svc, session.ID, CheckoutStateSuccess)

	if got := fx.store.orderStatus(session.OrderID); got != models.OrderStatusPaid {
		t.Errorf("order status = %s, want paid", got)
	}
	if n := fx.store.paidTransitions(); n != 1 {
		t.Errorf("paid transitions = %d, want exactly 1", n)
	}
	order, _ := fx.store.GetByID(session.OrderID)
	if order.PaymentID != "pay-1" {
		t.Errorf("payment id = %q, want pay-1", order.PaymentID)
	}
}

func TestPollErrorLeavesSessionInQR(t *testing.T) {
	fx := newCheckoutFixture(t, fastCheckoutConfig())
	fx.gateway.setCheckErr(errors.New("gateway flake"))

	session, err := fx.svc.StartCheckout(context.Background(), "buyer@test.mn", "mn-3gb-7d")
	if err != nil {
		t.Fatalf("StartCheckout: %v", err)
	}

	time.Sleep(40 * time.Millisecond)

	got, err := fx.svc.GetSession(session.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.State != CheckoutStateQR {
		t.Errorf("State = %s, want qr after poll errors", got.State)
	}

	// Gateway recovers, watcher picks the payment up.
	fx.gateway.setCheckErr(nil)
	fx.gateway.setPaid(true)
	waitForState(t, fx.svc, session.ID, CheckoutStateSuccess)
}

func TestWatcherTimeoutLeavesSessionInQR(t *testing.T) {
	cfg := fastCheckoutConfig()
	cfg.PollTimeout = 20 * time.Millisecond
	fx := newCheckoutFixture(t, cfg)

	session, err := fx.svc.StartCheckout(context.Background(), "buyer@test.mn", "mn-3gb-7d")
	if err != nil {
		t.Fatalf("StartCheckout: %v", err)
	}

	time.Sleep(60 * time.Millisecond)

	got, err := fx.svc.GetSession(session.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.State != CheckoutStateQR {
		t.Errorf("State = %s, want qr after watcher timeout", got.State)
	}

	// A manual recheck still completes the stalled checkout.
	fx.gateway.setPaid(true)
	if _, err := fx.svc.RecheckPayment(context.Background(), session.ID); err != nil {
		t.Fatalf("RecheckPayment: %v", err)
	}
	waitForState(t, fx.svc, session.ID, CheckoutStateSuccess)
	if got := fx.store.orderStatus(session.OrderID); got != models.OrderStatusPaid {
		t.Errorf("order status = %s, want paid", got)
	}
}

func TestRecheckSwallowsGatewayError(t *testing.T) {
	cfg := fastCheckoutConfig()
	cfg.PollInterval = time.Hour // keep the watcher out of the way
	fx := newCheckoutFixture(t, cfg)

	session, err := fx.svc.StartCheckout(context.Background(), "buyer@test.mn", "mn-3gb-7d")
	if err != nil {
		t.Fatalf("StartCheckout: %v", err)
	}

	fx.gateway.setCheckErr(errors.New("gateway flake"))
	got, err := fx.svc.RecheckPayment(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("recheck must not surface gateway errors, got %v", err)
	}
	if got.State != CheckoutStateQR {
		t.Errorf("State = %s, want qr", got.State)
	}
}

func TestRecheckOnFinishedSession(t *testing.T) {
	fx := newCheckoutFixture(t, fastCheckoutConfig())

	session, err := fx.svc.StartCheckout(context.Background(), "buyer@test.mn", "mn-3gb-7d")
	if err != nil {
		t.Fatalf("StartCheckout: %v", err)
	}
	fx.gateway.setPaid(true)
	waitForState(t, fx.svc, session.ID, CheckoutStateSuccess)

	_, err = fx.svc.RecheckPayment(context.Background(), session.ID)
	if !errors.Is(err, utils.ErrCheckoutFinished) {
		t.Errorf("got %v, want ErrCheckoutFinished", err)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	fx := newCheckoutFixture(t, fastCheckoutConfig())

	if _, err := fx.svc.GetSession("missing"); !errors.Is(err, utils.ErrCheckoutNotFound) {
		t.Errorf("got %v, want ErrCheckoutNotFound", err)
	}
}

func TestConfirmExactlyOnceUnderRace(t *testing.T) {
	cfg := fastCheckoutConfig()
	fx := newCheckoutFixture(t, cfg)

	session, err := fx.svc.StartCheckout(context.Background(), "buyer@test.mn", "mn-3gb-7d")
	if err != nil {
		t.Fatalf("StartCheckout: %v", err)
	}
	fx.gateway.setPaid(true)

	// Watcher, manual rechecks and webhook callbacks all race for the
	// confirmation at once.
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			fx.svc.RecheckPayment(context.Background(), session.ID)
		}()
		go func() {
			defer wg.Done()
			fx.svc.ConfirmFromCallback(context.Background(), session.OrderID)
		}()
	}
	wg.Wait()
	waitForState(t, fx.svc, session.ID, CheckoutStateSuccess)

	if n := fx.store.paidTransitions(); n != 1 {
		t.Errorf("paid transitions = %d, want exactly 1", n)
	}
}

func TestConfirmFromCallbackDetachedOrder(t *testing.T) {
	fx := newCheckoutFixture(t, fastCheckoutConfig())

	// Order survived a restart; no live session exists for it.
	order := &models.Order{
		OrderID:      "NS-RESTART-1",
		ContactEmail: "buyer@test.mn",
		TotalAmount:  25000,
		Status:       models.OrderStatusPending,
		Invoice:      &models.Invoice{InvoiceID: "inv-old"},
	}
	if err := fx.store.Create(order); err != nil {
		t.Fatalf("Create: %v", err)
	}

	fx.gateway.setPaid(true)
	if err := fx.svc.ConfirmFromCallback(context.Background(), order.OrderID); err != nil {
		t.Fatalf("ConfirmFromCallback: %v", err)
	}
	if got := fx.store.orderStatus(order.OrderID); got != models.OrderStatusPaid {
		t.Errorf("order status = %s, want paid", got)
	}

	// A duplicate callback is a no-op.
	if err := fx.svc.ConfirmFromCallback(context.Background(), order.OrderID); err != nil {
		t.Fatalf("duplicate callback: %v", err)
	}
	if n := fx.store.paidTransitions(); n != 1 {
		t.Errorf("paid transitions = %d, want exactly 1", n)
	}
}

func TestCallbackNeverTrustsPayload(t *testing.T) {
	cfg := fastCheckoutConfig()
	cfg.PollInterval = time.Hour
	fx := newCheckoutFixture(t, cfg)

	session, err := fx.svc.StartCheckout(context.Background(), "buyer@test.mn", "mn-3gb-7d")
	if err != nil {
		t.Fatalf("StartCheckout: %v", err)
	}

	// Gateway still reports unpaid: the callback alone must not move the
	// order no matter what the payload claimed.
	if err := fx.svc.ConfirmFromCallback(context.Background(), session.OrderID); err != nil {
		t.Fatalf("ConfirmFromCallback: %v", err)
	}
	if got := fx.store.orderStatus(session.OrderID); got != models.OrderStatusPending {
		t.Errorf("order status = %s, want pending", got)
	}
	got, _ := fx.svc.GetSession(session.ID)
	if got.State != CheckoutStateQR {
		t.Errorf("session state = %s, want qr", got.State)
	}
}

func TestRecheckAndCallbackBeforeInvoiceAttached(t *testing.T) {
	fx := newCheckoutFixture(t, fastCheckoutConfig())

	order := &models.Order{
		OrderID:      "NS-EARLY-1",
		ContactEmail: "buyer@test.mn",
		TotalAmount:  25000,
		Status:       models.OrderStatusPending,
	}
	if err := fx.store.Create(order); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Session registered but the invoice has not been attached yet. A
	// recheck or webhook landing in this window must treat the session as
	// not ready instead of dereferencing a missing invoice.
	session := &checkoutSession{
		id:        order.OrderID,
		orderID:   order.OrderID,
		state:     CheckoutStateDetails,
		createdAt: time.Now(),
		updatedAt: time.Now(),
	}
	fx.svc.mu.Lock()
	fx.svc.sessions[session.id] = session
	fx.svc.mu.Unlock()

	fx.gateway.setPaid(true)

	got, err := fx.svc.RecheckPayment(context.Background(), session.id)
	if err != nil {
		t.Fatalf("RecheckPayment: %v", err)
	}
	if got.State != CheckoutStateDetails {
		t.Errorf("State = %s, want details", got.State)
	}

	if err := fx.svc.ConfirmFromCallback(context.Background(), order.OrderID); err != nil {
		t.Fatalf("ConfirmFromCallback: %v", err)
	}
	if status := fx.store.orderStatus(order.OrderID); status != models.OrderStatusPending {
		t.Errorf("order status = %s, want pending", status)
	}
	if n := fx.store.paidTransitions(); n != 0 {
		t.Errorf("paid transitions = %d, want 0", n)
	}
}
