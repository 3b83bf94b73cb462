package checkout

import (
	"context"
	"fmt"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	d "github.com/fjod/go_cart/storefront/domain"
	"github.com/fjod/go_cart/storefront/pkg/logger"
)

const orderIDPrefix = "ORD-"

// settle runs once the provider reports a captured payment. A failed order
// save is recorded for reconciliation and never undoes the settlement.
func (o *Orchestrator) settle(ctx context.Context, a *attempt, ids d.PaymentIDs) {
	// the caller's request may end before settlement does
	ctx = context.WithoutCancel(ctx)
	log := logger.FromContext(ctx, o.log).With(
		zap.String("username", a.identity.Username),
		zap.String("attempt_id", a.id),
		zap.String("payment_id", ids.PaymentID))

	o.mu.Lock()
	if o.current != a || o.state != d.CheckoutStatePaymentInFlight {
		o.mu.Unlock()
		log.Warn("ignoring success callback for a resolved attempt")
		return
	}
	if err := o.transition(d.CheckoutStatePaymentSucceeded); err != nil {
		o.mu.Unlock()
		return
	}
	o.mu.Unlock()

	if !o.claim(ctx, log, ids.PaymentID) {
		o.mu.Lock()
		_ = o.transition(d.CheckoutStateOrderPersisting)
		_ = o.transition(d.CheckoutStateSettled)
		o.current = nil
		close(a.done)
		o.mu.Unlock()
		log.Error("payment already settled, skipping order")
		return
	}

	order := o.buildOrder(a)
	rcpt := o.deps.Receipts.Build(order, ids)
	log = log.With(zap.String("order_id", order.OrderID))

	o.mu.Lock()
	_ = o.transition(d.CheckoutStateOrderPersisting)
	o.mu.Unlock()

	persistErr := o.persist(ctx, log, order)

	if o.deps.ReceiptStore != nil {
		if err := o.deps.ReceiptStore.Put(ctx, a.identity.Username, &rcpt); err != nil {
			log.Warn("failed to store receipt", zap.Error(err))
		}
	}

	o.mu.Lock()
	_ = o.transition(d.CheckoutStateSettled)
	o.lastReceipt = &rcpt
	o.lastErr = nil
	o.persistErr = persistErr
	o.current = nil
	o.settling = true
	o.mu.Unlock()

	log.Info("checkout settled", zap.String("total", order.TotalAmount.StringFixed(d.MinorUnitPlaces)))

	if err := o.deps.Cart.Clear(ctx, a.identity, a.cart.Lines); err != nil {
		log.Error("cart not fully cleared after payment", zap.Error(err))
	}

	o.mu.Lock()
	o.settling = false
	o.mu.Unlock()
	close(a.done)
}

// claim reports whether this payment id is seen for the first time. A store
// error lets the settlement through.
func (o *Orchestrator) claim(ctx context.Context, log *zap.Logger, paymentID string) bool {
	if o.deps.Claims == nil || paymentID == "" {
		return true
	}
	ok, err := o.deps.Claims.Claim(ctx, paymentID, o.deps.ClaimTTL)
	if err != nil {
		log.Warn("idempotency store unavailable", zap.Error(err))
		return true
	}
	return ok
}

func (o *Orchestrator) persist(ctx context.Context, log *zap.Logger, order *d.Order) error {
	saveCtx, cancel := context.WithTimeout(ctx, o.deps.SaveTimeout)
	err := o.deps.Orders.SaveOrder(saveCtx, order)
	cancel()
	if err == nil {
		return nil
	}

	log.Error("order save failed after payment", zap.Error(err))
	if o.deps.Outbox != nil {
		if qerr := o.deps.Outbox.Enqueue(ctx, order, err); qerr != nil {
			log.Error("failed to queue order for reconciliation", zap.Error(qerr))
		}
	}
	return fmt.Errorf("%w: %v", d.ErrOrderPersistenceFailure, err)
}

func (o *Orchestrator) buildOrder(a *attempt) *d.Order {
	b := a.breakdown
	order := &d.Order{
		OrderID:         orderIDPrefix + ulid.Make().String(),
		Username:        a.identity.Username,
		CustomerName:    a.identity.Username,
		CustomerEmail:   a.identity.ContactEmail(),
		OrderDate:       o.now().UTC(),
		Items:           d.ItemsFromCart(a.cart),
		ShippingAddress: a.address.Flatten(),
		DiscountAmount:  b.Discount,
		TotalAmount:     b.Total,
		Status:          d.OrderStatusConfirmed,
		Breakdown:       &b,
	}
	if a.coupon != nil {
		code := a.coupon.Code
		order.CouponCode = &code
	}
	return order
}

// fail records a provider-reported failure and returns to Idle.
func (o *Orchestrator) fail(ctx context.Context, a *attempt, f d.PaymentFailure) {
	log := logger.FromContext(ctx, o.log).With(
		zap.String("username", a.identity.Username),
		zap.String("attempt_id", a.id))

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current != a || o.state != d.CheckoutStatePaymentInFlight {
		log.Warn("ignoring failure callback for a resolved attempt")
		return
	}
	reason := f.Description
	if reason == "" {
		reason = "payment was not completed"
	}
	log.Warn("payment failed", zap.String("code", f.Code), zap.String("reason", reason))
	_ = o.resolve(a, d.CheckoutStatePaymentFailed, fmt.Errorf("%w: %s", d.ErrPaymentFailed, reason))
}

func (o *Orchestrator) dismiss(ctx context.Context, a *attempt) {
	log := logger.FromContext(ctx, o.log).With(
		zap.String("username", a.identity.Username),
		zap.String("attempt_id", a.id))

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current != a || o.state != d.CheckoutStatePaymentInFlight {
		log.Warn("ignoring dismiss for a resolved attempt")
		return
	}
	log.Info("payment dialog dismissed")
	_ = o.resolve(a, d.CheckoutStatePaymentCancelled, d.ErrPaymentCancelled)
}
