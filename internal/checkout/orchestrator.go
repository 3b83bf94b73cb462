// Package checkout drives one shopper's checkout from address selection to a
// settled order.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	d "github.com/fjod/go_cart/storefront/domain"
	"github.com/fjod/go_cart/storefront/internal/idempotency"
	"github.com/fjod/go_cart/storefront/internal/payment"
	"github.com/fjod/go_cart/storefront/internal/pricing"
	"github.com/fjod/go_cart/storefront/internal/receipt"
	"github.com/fjod/go_cart/storefront/pkg/logger"
)

const (
	defaultCurrency    = "INR"
	defaultDescription = "Thank you for your purchase"
	defaultSaveTimeout = 5 * time.Second
	defaultClaimTTL    = 24 * time.Hour
)

type OrderSaver interface {
	SaveOrder(ctx context.Context, order *d.Order) error
}

type CartClearer interface {
	Clear(ctx context.Context, id d.Identity, lines []d.CartLine) error
}

// Outbox keeps orders the backend did not accept for later retry.
type Outbox interface {
	Enqueue(ctx context.Context, order *d.Order, cause error) error
}

// Deps are shared by every orchestrator. Claims, Outbox and ReceiptStore are
// optional.
type Deps struct {
	Provider     payment.Provider
	Engine       *pricing.Engine
	Receipts     *receipt.Generator
	ReceiptStore receipt.Store
	Orders       OrderSaver
	Outbox       Outbox
	Cart         CartClearer
	Claims       idempotency.Store
	Currency     string
	Description  string
	SaveTimeout  time.Duration
	ClaimTTL     time.Duration
	Logger       *zap.Logger
}

type BeginRequest struct {
	Identity d.Identity
	Address  *d.Address
	Cart     *d.CartSnapshot
	Coupon   *d.Coupon
}

// Status is a point-in-time view of an orchestrator. PersistenceError is set
// when the last settled order did not reach the backend.
type Status struct {
	State            d.CheckoutState   `json:"state"`
	Error            string            `json:"error,omitempty"`
	Err              error             `json:"-"`
	Receipt          *d.Receipt        `json:"receipt,omitempty"`
	PersistenceError string            `json:"persistence_error,omitempty"`
	Session          *payment.Session  `json:"session,omitempty"`
	Breakdown        *d.PriceBreakdown `json:"breakdown,omitempty"`
}

type attempt struct {
	id        string
	identity  d.Identity
	address   *d.Address
	cart      *d.CartSnapshot
	coupon    *d.Coupon
	breakdown d.PriceBreakdown
	session   *payment.Session
	done      chan struct{}
}

// Orchestrator is the checkout state machine of a single shopper. Only one
// payment attempt is in flight at a time.
type Orchestrator struct {
	deps Deps
	log  *zap.Logger
	now  func() time.Time

	mu          sync.Mutex
	state       d.CheckoutState
	busy        bool // Begin is talking to the provider
	settling    bool // a settled attempt is still clearing the cart
	current     *attempt
	lastErr     error
	lastReceipt *d.Receipt
	persistErr  error
}

func New(deps Deps) *Orchestrator {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Engine == nil {
		deps.Engine = pricing.Default()
	}
	if deps.Receipts == nil {
		deps.Receipts = receipt.NewGenerator(deps.Engine)
	}
	if deps.Currency == "" {
		deps.Currency = defaultCurrency
	}
	if deps.Description == "" {
		deps.Description = defaultDescription
	}
	if deps.SaveTimeout <= 0 {
		deps.SaveTimeout = defaultSaveTimeout
	}
	if deps.ClaimTTL <= 0 {
		deps.ClaimTTL = defaultClaimTTL
	}
	return &Orchestrator{
		deps:  deps,
		log:   deps.Logger,
		now:   time.Now,
		state: d.CheckoutStateIdle,
	}
}

// Begin starts a payment attempt and returns what the browser needs to open
// the provider's payment UI. Without an address it halts in AwaitingAddress.
func (o *Orchestrator) Begin(ctx context.Context, req BeginRequest) (*payment.Session, error) {
	if req.Identity.IsZero() {
		return nil, d.ErrNotAuthenticated
	}
	if req.Cart.IsEmpty() {
		return nil, d.ErrEmptyCart
	}
	log := logger.FromContext(ctx, o.log).With(zap.String("username", req.Identity.Username))

	o.mu.Lock()
	if o.busy || o.settling || !o.state.CanBegin() {
		o.mu.Unlock()
		return nil, d.ErrCheckoutInProgress
	}
	if err := o.enter(d.CheckoutStateAwaitingAddress); err != nil {
		o.mu.Unlock()
		return nil, err
	}
	o.lastErr, o.persistErr = nil, nil
	if req.Address == nil {
		o.lastErr = d.ErrAddressRequired
		o.mu.Unlock()
		log.Info("checkout halted, no shipping address selected")
		return nil, d.ErrAddressRequired
	}
	if err := o.transition(d.CheckoutStateAwaitingPaymentProviderReady); err != nil {
		o.mu.Unlock()
		return nil, err
	}
	o.busy = true
	o.mu.Unlock()

	a, session, err := o.open(ctx, req)

	o.mu.Lock()
	defer o.mu.Unlock()
	o.busy = false
	if err != nil {
		o.lastErr = err
		log.Warn("payment provider not ready", zap.Error(err))
		return nil, err
	}
	if err := o.transition(d.CheckoutStatePaymentInFlight); err != nil {
		o.deps.Provider.Abandon(session.ProviderOrderID)
		return nil, err
	}
	o.current = a

	log.Info("payment in flight",
		zap.String("attempt_id", a.id),
		zap.String("provider_order_id", session.ProviderOrderID),
		zap.Int64("amount_minor", session.AmountMinor))
	return session, nil
}

func (o *Orchestrator) open(ctx context.Context, req BeginRequest) (*attempt, *payment.Session, error) {
	if !o.deps.Provider.Loaded() {
		if err := o.deps.Provider.Load(ctx); err != nil {
			if !errors.Is(err, d.ErrPaymentProviderUnavailable) {
				err = fmt.Errorf("%w: %v", d.ErrPaymentProviderUnavailable, err)
			}
			return nil, nil, err
		}
		if !o.deps.Provider.Loaded() {
			return nil, nil, fmt.Errorf("%w: checkout script did not initialise", d.ErrPaymentProviderUnavailable)
		}
	}

	a := &attempt{
		id:       uuid.NewString(),
		identity: req.Identity,
		address:  req.Address,
		cart:     req.Cart.Clone(),
		done:     make(chan struct{}),
	}
	if req.Coupon != nil {
		c := *req.Coupon
		a.coupon = &c
	}
	a.breakdown = o.deps.Engine.ComputeBreakdown(a.cart, a.coupon)

	contact := req.Identity.Phone
	if contact == "" {
		contact = req.Address.PhoneNumber
	}
	session, err := o.deps.Provider.Open(ctx, payment.Request{
		AmountMinor: d.MinorUnits(a.breakdown.Total),
		Currency:    o.deps.Currency,
		Description: o.deps.Description,
		Reference:   a.id,
		Prefill: payment.Prefill{
			Name:    req.Identity.Username,
			Email:   req.Identity.ContactEmail(),
			Contact: contact,
		},
		Notes: map[string]string{"address": req.Address.Flatten()},
	}, payment.Handlers{
		OnSuccess: func(ctx context.Context, ids d.PaymentIDs) { o.settle(ctx, a, ids) },
		OnFailure: func(ctx context.Context, f d.PaymentFailure) { o.fail(ctx, a, f) },
		OnDismiss: func(ctx context.Context) { o.dismiss(ctx, a) },
	})
	if err != nil {
		return nil, nil, err
	}
	a.session = session
	return a, session, nil
}

// Cancel resets a checkout the shopper gave up on. An in-flight payment is
// abandoned and recorded as cancelled.
func (o *Orchestrator) Cancel(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch o.state {
	case d.CheckoutStatePaymentInFlight:
		a := o.current
		o.deps.Provider.Abandon(a.session.ProviderOrderID)
		logger.FromContext(ctx, o.log).Info("payment cancelled by shopper",
			zap.String("username", a.identity.Username),
			zap.String("attempt_id", a.id))
		return o.resolve(a, d.CheckoutStatePaymentCancelled, d.ErrPaymentCancelled)
	case d.CheckoutStateAwaitingAddress, d.CheckoutStateAwaitingPaymentProviderReady:
		if o.busy {
			return d.ErrCheckoutInProgress
		}
		o.lastErr = nil
		return o.transition(d.CheckoutStateIdle)
	case d.CheckoutStatePaymentSucceeded, d.CheckoutStateOrderPersisting:
		return fmt.Errorf("%w: payment already captured", d.ErrIllegalTransition)
	}
	return d.ErrNoCheckoutInFlight
}

// Await blocks until the in-flight attempt resolves or ctx ends, then
// returns the status.
func (o *Orchestrator) Await(ctx context.Context) (Status, error) {
	o.mu.Lock()
	a := o.current
	o.mu.Unlock()

	if a != nil {
		select {
		case <-a.done:
		case <-ctx.Done():
			return o.Status(), ctx.Err()
		}
	}
	return o.Status(), nil
}

func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()

	s := Status{State: o.state, Err: o.lastErr, Receipt: o.lastReceipt}
	if o.lastErr != nil {
		s.Error = o.lastErr.Error()
	}
	if o.persistErr != nil {
		s.PersistenceError = o.persistErr.Error()
	}
	if o.current != nil {
		s.Session = o.current.session
		b := o.current.breakdown
		s.Breakdown = &b
	}
	return s
}

// InFlight reports whether a payment has been opened and not yet resolved,
// or was paid and is still clearing the cart.
func (o *Orchestrator) InFlight() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current != nil || o.settling
}

// enter moves to target from wherever a new attempt may start.
// Must be called with o.mu held.
func (o *Orchestrator) enter(target d.CheckoutState) error {
	if o.state == target {
		return nil
	}
	if o.state == d.CheckoutStateAwaitingPaymentProviderReady && target == d.CheckoutStateAwaitingAddress {
		return o.transition(target)
	}
	if o.state == d.CheckoutStateIdle || o.state == d.CheckoutStateSettled {
		return o.transition(target)
	}
	return fmt.Errorf("%w: %s -> %s", d.ErrIllegalTransition, o.state, target)
}

// Must be called with o.mu held.
func (o *Orchestrator) transition(to d.CheckoutState) error {
	if !d.CanTransitionTo(o.state, to) {
		o.log.Error("illegal checkout transition",
			zap.String("from", o.state.String()),
			zap.String("to", to.String()))
		return fmt.Errorf("%w: %s -> %s", d.ErrIllegalTransition, o.state, to)
	}
	o.log.Debug("checkout transition",
		zap.String("from", o.state.String()),
		zap.String("to", to.String()))
	o.state = to
	return nil
}

// resolve ends attempt a in a failed or cancelled outcome and returns to Idle.
// Must be called with o.mu held.
func (o *Orchestrator) resolve(a *attempt, outcome d.CheckoutState, cause error) error {
	if err := o.transition(outcome); err != nil {
		return err
	}
	o.lastErr = cause
	o.current = nil
	close(a.done)
	return o.transition(d.CheckoutStateIdle)
}
