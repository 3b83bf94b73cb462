package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/cucumber/godog"
	"github.com/shopspring/decimal"

	d "github.com/fjod/go_cart/storefront/domain"
	"github.com/fjod/go_cart/storefront/internal/coupon"
	"github.com/fjod/go_cart/storefront/internal/pricing"
)

type checkoutFeature struct {
	identity  d.Identity
	cart      *d.CartSnapshot
	coupon    *d.Coupon
	address   *d.Address
	breakdown d.PriceBreakdown

	provider  *fakeProvider
	orders    *fakeOrders
	cartStore *fakeCart
	outbox    *fakeOutbox
	o         *Orchestrator
	validator *coupon.Validator

	providerOrderID string
	err             error
}

func (f *checkoutFeature) reset() {
	*f = checkoutFeature{
		cart:      &d.CartSnapshot{Lines: []d.CartLine{}},
		provider:  newFakeProvider(),
		orders:    &fakeOrders{},
		cartStore: &fakeCart{},
		outbox:    &fakeOutbox{},
	}
	f.o = New(Deps{Provider: f.provider, Orders: f.orders, Cart: f.cartStore, Outbox: f.outbox})
	f.validator = coupon.NewValidator(nil, nil)
}

func (f *checkoutFeature) shopperIsSignedIn(username string) error {
	f.identity = d.Identity{Username: username}
	return nil
}

func (f *checkoutFeature) cartWithLine(price, qty int) error {
	f.cart.Lines = append(f.cart.Lines, d.CartLine{
		ProductID: int64(len(f.cart.Lines) + 1),
		UnitPrice: decimal.NewFromInt(int64(price)),
		Quantity:  qty,
		Product:   d.ProductSnapshot{Name: fmt.Sprintf("Item %d", len(f.cart.Lines)+1)},
	})
	return nil
}

func (f *checkoutFeature) aCoupon(kind, code string, value int) error {
	dt, ok := d.ParseDiscountType(kind)
	if !ok {
		return fmt.Errorf("unknown discount type %q", kind)
	}
	f.coupon = &d.Coupon{Code: code, DiscountType: dt, DiscountValue: decimal.NewFromInt(int64(value))}
	return nil
}

func (f *checkoutFeature) addressSelected() error {
	f.address = homeAddress()
	return nil
}

func (f *checkoutFeature) noAddressSelected() error {
	f.address = nil
	return nil
}

func (f *checkoutFeature) savingOrdersFails() error {
	f.orders.err = d.ErrNetworkFailure
	return nil
}

func (f *checkoutFeature) orderIsPriced() error {
	f.breakdown = pricing.Default().ComputeBreakdown(f.cart, f.coupon)
	return nil
}

func (f *checkoutFeature) amountIs(field string, want int) error {
	var got decimal.Decimal
	switch field {
	case "subtotal":
		got = f.breakdown.Subtotal
	case "tax":
		got = f.breakdown.TaxAmount
	case "shipping":
		got = f.breakdown.Shipping
	case "discount":
		got = f.breakdown.Discount
	case "total":
		got = f.breakdown.Total
	}
	if !got.Equal(decimal.NewFromInt(int64(want))) {
		return fmt.Errorf("expected %s %d, got %s", field, want, got)
	}
	return nil
}

func (f *checkoutFeature) totalWithinBounds() error {
	b := f.breakdown
	if b.Total.IsNegative() {
		return fmt.Errorf("negative total %s", b.Total)
	}
	if b.Discount.IsNegative() {
		return fmt.Errorf("negative discount %s", b.Discount)
	}
	if b.Total.GreaterThan(b.PreDiscountTotal()) {
		return fmt.Errorf("total %s above pre-discount total %s", b.Total, b.PreDiscountTotal())
	}
	return nil
}

func (f *checkoutFeature) startsCheckout() error {
	s, err := f.o.Begin(context.Background(), BeginRequest{Identity: f.identity, Address: f.address, Cart: f.cart, Coupon: f.coupon})
	f.err = err
	if s != nil {
		f.providerOrderID = s.ProviderOrderID
	}
	return nil
}

func (f *checkoutFeature) checkoutRefused(msg string) error {
	if f.err == nil {
		return errors.New("expected checkout to be refused")
	}
	if !strings.Contains(f.err.Error(), msg) {
		return fmt.Errorf("expected error %q, got %q", msg, f.err)
	}
	return nil
}

func (f *checkoutFeature) providerNotInvoked() error {
	if loads, opens := f.provider.counts(); loads != 0 || opens != 0 {
		return fmt.Errorf("provider invoked: %d loads, %d opens", loads, opens)
	}
	return nil
}

func (f *checkoutFeature) stateIs(want string) error {
	if got := f.o.Status().State; string(got) != want {
		return fmt.Errorf("expected state %s, got %s", want, got)
	}
	return nil
}

func (f *checkoutFeature) providerOpenedPayment(minor int) error {
	if f.err != nil {
		return f.err
	}
	if got := f.provider.lastReq.AmountMinor; got != int64(minor) {
		return fmt.Errorf("expected amount %d, got %d", minor, got)
	}
	return nil
}

func (f *checkoutFeature) providerReportsSuccess(paymentID string) error {
	if f.err != nil {
		return f.err
	}
	f.provider.succeed(f.providerOrderID, paymentID)
	return nil
}

func (f *checkoutFeature) providerReportsFailure(reason string) error {
	if f.err != nil {
		return f.err
	}
	f.provider.fail(f.providerOrderID, reason)
	return nil
}

func (f *checkoutFeature) receiptIssued(total int) error {
	r := f.o.Status().Receipt
	if r == nil {
		return errors.New("no receipt issued")
	}
	if !r.Total.Equal(decimal.NewFromInt(int64(total))) {
		return fmt.Errorf("expected receipt total %d, got %s", total, r.Total)
	}
	return nil
}

func (f *checkoutFeature) cartCleared() error {
	if len(f.cartStore.cleared) != 1 {
		return fmt.Errorf("expected one cart clear, got %d", len(f.cartStore.cleared))
	}
	return nil
}

func (f *checkoutFeature) cartNotCleared() error {
	if len(f.cartStore.cleared) != 0 {
		return errors.New("cart was cleared")
	}
	return nil
}

func (f *checkoutFeature) orderQueued() error {
	if len(f.outbox.orders) != 1 {
		return fmt.Errorf("expected one queued order, got %d", len(f.outbox.orders))
	}
	return nil
}

func (f *checkoutFeature) checkoutErrorMentions(s string) error {
	st := f.o.Status()
	if !strings.Contains(st.Error, s) {
		return fmt.Errorf("expected error mentioning %q, got %q", s, st.Error)
	}
	return nil
}

func (f *checkoutFeature) removesCoupon() error {
	f.validator.Remove()
	return nil
}

func (f *checkoutFeature) noCouponApplied() error {
	if f.validator.Applied() != nil || f.validator.State() != coupon.StateNoCoupon {
		return fmt.Errorf("expected no coupon, state %s", f.validator.State())
	}
	return nil
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	f := &checkoutFeature{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		f.reset()
		return ctx, nil
	})

	ctx.Step(`^the shopper "([^"]*)" is signed in$`, f.shopperIsSignedIn)
	ctx.Step(`^a cart with a line priced (\d+) with quantity (\d+)$`, f.cartWithLine)
	ctx.Step(`^a (PERCENTAGE|FIXED) coupon "([^"]*)" worth (-?\d+)$`, f.aCoupon)
	ctx.Step(`^the shopper has selected a shipping address$`, f.addressSelected)
	ctx.Step(`^the shopper has not selected a shipping address$`, f.noAddressSelected)
	ctx.Step(`^saving orders fails$`, f.savingOrdersFails)

	ctx.Step(`^the order is priced$`, f.orderIsPriced)
	ctx.Step(`^the shopper starts checkout$`, f.startsCheckout)
	ctx.Step(`^the payment provider reports success with payment "([^"]*)"$`, f.providerReportsSuccess)
	ctx.Step(`^the payment provider reports failure "([^"]*)"$`, f.providerReportsFailure)
	ctx.Step(`^the shopper removes the coupon$`, f.removesCoupon)

	ctx.Step(`^the (subtotal|tax|shipping|discount|total) is (\d+)$`, f.amountIs)
	ctx.Step(`^the total is not negative and not above the pre-discount total$`, f.totalWithinBounds)
	ctx.Step(`^checkout is refused with "([^"]*)"$`, f.checkoutRefused)
	ctx.Step(`^the payment provider was not invoked$`, f.providerNotInvoked)
	ctx.Step(`^the checkout state is "([^"]*)"$`, f.stateIs)
	ctx.Step(`^the payment provider opened a payment of (\d+) minor units$`, f.providerOpenedPayment)
	ctx.Step(`^a receipt with total (\d+) is issued$`, f.receiptIssued)
	ctx.Step(`^the cart was cleared$`, f.cartCleared)
	ctx.Step(`^the cart was not cleared$`, f.cartNotCleared)
	ctx.Step(`^the order was queued for reconciliation$`, f.orderQueued)
	ctx.Step(`^the checkout error mentions "([^"]*)"$`, f.checkoutErrorMentions)
	ctx.Step(`^no coupon is applied$`, f.noCouponApplied)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"../../features/checkout.feature"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
