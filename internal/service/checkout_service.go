package service

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nomadsim/esim_api/internal/models"
	"github.com/nomadsim/esim_api/internal/sse"
	"github.com/nomadsim/esim_api/internal/utils"
	"github.com/nomadsim/esim_api/pkg/qpay"
)

// CheckoutState is the state of an in-flight checkout session.
type CheckoutState string

const (
	CheckoutStateDetails    CheckoutState = "details"    // collecting contact details
	CheckoutStateQR         CheckoutState = "qr"         // invoice created, waiting for payment
	CheckoutStateProcessing CheckoutState = "processing" // payment seen, finishing up
	CheckoutStateSuccess    CheckoutState = "success"
	CheckoutStateError      CheckoutState = "error"
)

// CheckoutSession is the lock-free view of a checkout handed to handlers.
type CheckoutSession struct {
	ID        string          `json:"id"`
	OrderID   string          `json:"orderId"`
	State     CheckoutState   `json:"state"`
	Invoice   *models.Invoice `json:"invoice,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
	// ExpiresAt is when the payment watcher stops polling. Zero until the
	// session reaches the qr state.
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

// checkoutSession is one customer's in-flight checkout. Sessions live in
// process memory: a checkout that outlives the process restarts from the
// order, which is the durable record.
type checkoutSession struct {
	id        string
	orderID   string
	state     CheckoutState
	invoice   *models.Invoice
	errMsg    string
	createdAt time.Time
	updatedAt time.Time
	expiresAt time.Time

	// confirmed latches the pending-to-paid transition. Whoever wins the
	// compare-and-swap runs the paid side effects; every later observer of
	// a paid invoice is a no-op. See confirmPaid.
	confirmed atomic.Bool

	cancel context.CancelFunc

	mu sync.Mutex
}

// snapshot returns a view safe to hand to handlers.
func (cs *checkoutSession) snapshot() CheckoutSession {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return CheckoutSession{
		ID:        cs.id,
		OrderID:   cs.orderID,
		State:     cs.state,
		Invoice:   cs.invoice,
		Error:     cs.errMsg,
		CreatedAt: cs.createdAt,
		UpdatedAt: cs.updatedAt,
		ExpiresAt: cs.expiresAt,
	}
}

func (cs *checkoutSession) setState(state CheckoutState) {
	cs.mu.Lock()
	cs.state = state
	cs.updatedAt = time.Now()
	cs.mu.Unlock()
}

func (cs *checkoutSession) setError(msg string) {
	cs.mu.Lock()
	cs.state = CheckoutStateError
	cs.errMsg = msg
	cs.updatedAt = time.Now()
	cs.mu.Unlock()
}

func (cs *checkoutSession) currentState() CheckoutState {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.state
}

// invoiceID returns the invoice id, or "" while no invoice is attached yet.
func (cs *checkoutSession) invoiceID() string {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.invoice == nil {
		return ""
	}
	return cs.invoice.InvoiceID
}

// CheckoutConfig tunes the payment watcher.
type CheckoutConfig struct {
	PollInterval    time.Duration
	PollTimeout     time.Duration
	ProcessingDelay time.Duration
	SessionTTL      time.Duration
}

// packageSource resolves skus to priced packages. Satisfied by
// CatalogService.
type packageSource interface {
	GetPackageBySKU(ctx context.Context, sku string) (*models.Package, error)
}

// orderStore is the slice of the order repository checkout needs.
type orderStore interface {
	Create(order *models.Order) error
	GetByID(orderID string) (*models.Order, error)
	SetInvoice(orderID string, invoice *models.Invoice) error
	MarkPaid(orderID string, paidAt time.Time) (bool, error)
	UpdateFields(orderID string, fields map[string]interface{}) error
	HasPaidOrders(email string) (bool, error)
	PaidProviders(email string) ([]string, error)
}

// paymentGateway is the slice of the QPay client checkout needs.
type paymentGateway interface {
	CreateInvoice(ctx context.Context, orderID, description string, amountMNT int) (*qpay.InvoiceResponse, error)
	CheckPayment(ctx context.Context, invoiceID string) (*qpay.PaymentStatus, error)
}

// CheckoutService runs the storefront purchase flow: create a pending
// order, attach a QR invoice, watch the gateway until the invoice is paid,
// then hand the order to provisioning.
type CheckoutService struct {
	catalog   packageSource
	orderRepo orderStore
	qpay      paymentGateway
	notifier  sse.OrderNotifier
	cfg       CheckoutConfig

	mu       sync.RWMutex
	sessions map[string]*checkoutSession

	rootCtx context.Context
}

// NewCheckoutService constructs a CheckoutService. Watcher goroutines are
// children of rootCtx and stop with it on shutdown.
func NewCheckoutService(rootCtx context.Context, catalog packageSource, orderRepo orderStore, qp paymentGateway, notifier sse.OrderNotifier, cfg CheckoutConfig) *CheckoutService {
	s := &CheckoutService{
		catalog:   catalog,
		orderRepo: orderRepo,
		qpay:      qp,
		notifier:  notifier,
		cfg:       cfg,
		sessions:  make(map[string]*checkoutSession),
		rootCtx:   rootCtx,
	}
	go s.runSessionJanitor(rootCtx)
	return s
}

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// StartCheckout validates the purchase, creates a pending order with a QR
// invoice, and begins watching the gateway for payment. The returned
// session is in the qr state on success.
func (s *CheckoutService) StartCheckout(ctx context.Context, email, sku string) (CheckoutSession, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !emailPattern.MatchString(email) {
		return CheckoutSession{}, utils.ErrInvalidEmail
	}

	pkg, err := s.catalog.GetPackageBySKU(ctx, sku)
	if err != nil {
		return CheckoutSession{}, err
	}

	if pkg.IsTopUp {
		if err := s.checkTopUpEligibility(email, pkg.Provider); err != nil {
			return CheckoutSession{}, err
		}
	}

	order := &models.Order{
		OrderID:       utils.GenerateOrderID(),
		ContactEmail:  email,
		TotalAmount:   pkg.SellPriceMNT,
		Currency:      "MNT",
		Status:        models.OrderStatusPending,
		PaymentMethod: "qpay",
		Items: []models.OrderItem{{
			SKU:      pkg.SKU,
			Name:     pkg.Title,
			Price:    pkg.SellPriceMNT,
			Quantity: 1,
			Metadata: map[string]string{"provider": pkg.Provider},
		}},
	}
	if err := s.orderRepo.Create(order); err != nil {
		return CheckoutSession{}, err
	}
	s.notifier.NotifyOrderCreated(order)

	session := &checkoutSession{
		id:        order.OrderID,
		orderID:   order.OrderID,
		state:     CheckoutStateDetails,
		createdAt: time.Now(),
		updatedAt: time.Now(),
	}
	s.mu.Lock()
	s.sessions[session.id] = session
	s.mu.Unlock()

	invoice, err := s.createInvoice(ctx, order, pkg.Title)
	if err != nil {
		log.Error().Err(err).Str("order_id", order.OrderID).Msg("checkout: invoice creation failed")
		s.failOrder(order, "invoice creation failed")
		session.setError("payment invoice could not be created")
		return session.snapshot(), utils.ErrInvoiceFailed
	}

	session.mu.Lock()
	session.invoice = invoice
	session.state = CheckoutStateQR
	session.updatedAt = time.Now()
	session.expiresAt = time.Now().Add(s.cfg.PollTimeout)
	session.mu.Unlock()

	watchCtx, cancel := context.WithCancel(s.rootCtx)
	session.cancel = cancel
	go s.watchPayment(watchCtx, session)

	return session.snapshot(), nil
}

// checkTopUpEligibility gates top-up packages: the customer must identify
// by email and have a settled order from the same provider.
func (s *CheckoutService) checkTopUpEligibility(email, provider string) error {
	if email == "" {
		return utils.ErrLoginRequired
	}
	hasAny, err := s.orderRepo.HasPaidOrders(email)
	if err != nil {
		return err
	}
	if !hasAny {
		return utils.ErrNoESIM
	}
	providers, err := s.orderRepo.PaidProviders(email)
	if err != nil {
		return err
	}
	for _, p := range providers {
		if providerMatches(p, provider) {
			return nil
		}
	}
	return utils.ErrProviderMismatch
}

// providerMatches compares provider names loosely: case-insensitive, and a
// substring hit in either direction counts. Feed provider names drift
// between syncs ("SkyRoam" vs "SkyRoam Global").
func providerMatches(stored, requested string) bool {
	a := strings.ToLower(strings.TrimSpace(stored))
	b := strings.ToLower(strings.TrimSpace(requested))
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// GetSession returns the current session snapshot.
func (s *CheckoutService) GetSession(sessionID string) (CheckoutSession, error) {
	s.mu.RLock()
	session, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return CheckoutSession{}, utils.ErrCheckoutNotFound
	}
	return session.snapshot(), nil
}

// RecheckPayment asks the gateway about a session's invoice right now,
// outside the watcher's cadence. It goes through the same latch as the
// watcher, so a race between the two confirms exactly once.
func (s *CheckoutService) RecheckPayment(ctx context.Context, sessionID string) (CheckoutSession, error) {
	s.mu.RLock()
	session, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return CheckoutSession{}, utils.ErrCheckoutNotFound
	}

	switch session.currentState() {
	case CheckoutStateSuccess, CheckoutStateError:
		return session.snapshot(), utils.ErrCheckoutFinished
	case CheckoutStateProcessing:
		return session.snapshot(), nil
	}

	invoiceID := session.invoiceID()
	if invoiceID == "" {
		// Invoice not attached yet; nothing to check.
		return session.snapshot(), nil
	}

	status, err := s.qpay.CheckPayment(ctx, invoiceID)
	if err != nil {
		// Same contract as the watcher: a failed check is not a failed
		// payment, the session stays where it was.
		log.Warn().Err(err).Str("session_id", sessionID).Msg("checkout: manual recheck failed")
		return session.snapshot(), nil
	}
	if status.IsPaid {
		s.confirmPaid(session, status.PaymentID)
	}
	return session.snapshot(), nil
}

// ConfirmFromCallback handles a gateway webhook for an invoice. Polling
// remains the source of truth; the callback only short-circuits the wait.
// The payload's claim is never trusted directly, the gateway is re-queried.
func (s *CheckoutService) ConfirmFromCallback(ctx context.Context, orderID string) error {
	s.mu.RLock()
	session, ok := s.sessions[orderID]
	s.mu.RUnlock()
	if !ok {
		// Session may have been lost in a restart; fall back to the order.
		return s.confirmDetached(ctx, orderID)
	}

	invoiceID := session.invoiceID()
	if invoiceID == "" {
		// Callback raced invoice attachment; the watcher will catch up.
		return nil
	}

	status, err := s.qpay.CheckPayment(ctx, invoiceID)
	if err != nil {
		return err
	}
	if status.IsPaid {
		s.confirmPaid(session, status.PaymentID)
	}
	return nil
}

// confirmDetached confirms payment for an order with no live session, e.g.
// after a process restart. The conditional write in MarkPaid provides the
// exactly-once guarantee here.
func (s *CheckoutService) confirmDetached(ctx context.Context, orderID string) error {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return err
	}
	if order.Status != models.OrderStatusPending || order.Invoice == nil {
		return nil
	}
	status, err := s.qpay.CheckPayment(ctx, order.Invoice.InvoiceID)
	if err != nil {
		return err
	}
	if !status.IsPaid {
		return nil
	}
	transitioned, err := s.orderRepo.MarkPaid(orderID, time.Now())
	if err != nil {
		return err
	}
	if transitioned {
		order.Status = models.OrderStatusPaid
		s.notifier.NotifyOrderStatusChanged(order)
		log.Info().Str("order_id", orderID).Msg("checkout: detached order confirmed paid")
	}
	return nil
}

// watchPayment polls the gateway until the invoice is paid or the timeout
// elapses. Poll errors are swallowed: a flaky gateway must not fail a
// checkout the customer may still complete. On timeout the session is left
// in the qr state; the customer can still trigger a manual recheck.
func (s *CheckoutService) watchPayment(ctx context.Context, session *checkoutSession) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	deadline := time.NewTimer(s.cfg.PollTimeout)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			log.Info().Str("session_id", session.id).Msg("checkout: payment watch timed out")
			return
		case <-ticker.C:
			if session.confirmed.Load() {
				return
			}
			status, err := s.qpay.CheckPayment(ctx, session.invoiceID())
			if err != nil {
				log.Debug().Err(err).Str("session_id", session.id).Msg("checkout: poll failed")
				continue
			}
			if status.IsPaid {
				s.confirmPaid(session, status.PaymentID)
				return
			}
		}
	}
}

// confirmPaid runs the paid transition exactly once per session. The latch
// decides the winner between the watcher, a manual recheck and a webhook;
// the conditional order update backs it up across processes.
func (s *CheckoutService) confirmPaid(session *checkoutSession, paymentID string) {
	if !session.confirmed.CompareAndSwap(false, true) {
		return
	}

	session.setState(CheckoutStateProcessing)

	transitioned, err := s.orderRepo.MarkPaid(session.orderID, time.Now())
	if err != nil {
		// The latch stays set: the money moved, so the session must not
		// flip back to qr. Reconciliation happens through the order.
		log.Error().Err(err).Str("order_id", session.orderID).Msg("checkout: failed to persist paid status")
		session.setError("payment received but order update failed")
		return
	}
	if !transitioned {
		log.Warn().Str("order_id", session.orderID).Msg("checkout: order already left pending")
	}

	if paymentID != "" {
		if err := s.orderRepo.UpdateFields(session.orderID, map[string]interface{}{"payment_id": paymentID}); err != nil {
			log.Error().Err(err).Str("order_id", session.orderID).Msg("checkout: failed to store payment id")
		}
	}

	if order, err := s.orderRepo.GetByID(session.orderID); err == nil {
		s.notifier.NotifyOrderStatusChanged(order)
	}

	log.Info().Str("order_id", session.orderID).Msg("checkout: payment confirmed")

	// Brief processing pause so the storefront can show the transition
	// instead of jumping straight from QR to done.
	time.Sleep(s.cfg.ProcessingDelay)
	session.setState(CheckoutStateSuccess)
}

func (s *CheckoutService) createInvoice(ctx context.Context, order *models.Order, description string) (*models.Invoice, error) {
	resp, err := s.qpay.CreateInvoice(ctx, order.OrderID, description, order.TotalAmount)
	if err != nil {
		return nil, err
	}

	invoice := &models.Invoice{
		InvoiceID: resp.InvoiceID,
		QRImage:   resp.QRImage,
		QRText:    resp.QRText,
		ShortURL:  resp.ShortURL,
		AmountMNT: order.TotalAmount,
	}
	for _, u := range resp.URLs {
		invoice.Deeplinks = append(invoice.Deeplinks, models.Deeplink{
			Name: u.Name,
			Link: u.Link,
			Logo: u.Logo,
		})
	}

	if err := s.orderRepo.SetInvoice(order.OrderID, invoice); err != nil {
		return nil, err
	}
	return invoice, nil
}

func (s *CheckoutService) failOrder(order *models.Order, reason string) {
	if err := s.orderRepo.UpdateFields(order.OrderID, map[string]interface{}{
		"status":        models.OrderStatusFailed,
		"failed_reason": reason,
	}); err != nil {
		log.Error().Err(err).Str("order_id", order.OrderID).Msg("checkout: failed to mark order failed")
		return
	}
	order.Status = models.OrderStatusFailed
	order.FailedReason = reason
	s.notifier.NotifyOrderStatusChanged(order)
}

// runSessionJanitor drops finished or abandoned sessions after the TTL so
// the registry does not grow unbounded.
func (s *CheckoutService) runSessionJanitor(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-s.cfg.SessionTTL)
			s.mu.Lock()
			for id, session := range s.sessions {
				session.mu.Lock()
				expired := session.updatedAt.Before(cutoff)
				session.mu.Unlock()
				if expired {
					if session.cancel != nil {
						session.cancel()
					}
					delete(s.sessions, id)
				}
			}
			s.mu.Unlock()
		}
	}
}

// SessionCount reports live sessions, for the health endpoint.
func (s *CheckoutService) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
