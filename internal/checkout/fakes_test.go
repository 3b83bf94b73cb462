package checkout

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	d "github.com/fjod/go_cart/storefront/domain"
	"github.com/fjod/go_cart/storefront/internal/payment"
)

type fakeProvider struct {
	mu        sync.Mutex
	loadErr   error
	stuck     bool // Load succeeds but the script never initialises
	loaded    bool
	loads     int
	opens     int
	seq       int
	lastReq   payment.Request
	handlers  map[string]payment.Handlers
	abandoned []string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{handlers: make(map[string]payment.Handlers)}
}

func (p *fakeProvider) Load(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loads++
	if p.loadErr != nil {
		return fmt.Errorf("%w: script unreachable", d.ErrPaymentProviderUnavailable)
	}
	p.loaded = !p.stuck
	return nil
}

func (p *fakeProvider) Loaded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loaded
}

func (p *fakeProvider) Open(_ context.Context, req payment.Request, h payment.Handlers) (*payment.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opens++
	p.seq++
	p.lastReq = req
	id := fmt.Sprintf("order_%d", p.seq)
	p.handlers[id] = h
	return &payment.Session{
		ProviderOrderID: id,
		AmountMinor:     req.AmountMinor,
		Currency:        req.Currency,
		Description:     req.Description,
		Prefill:         req.Prefill,
		Notes:           req.Notes,
	}, nil
}

func (p *fakeProvider) Abandon(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.handlers[id]
	delete(p.handlers, id)
	p.abandoned = append(p.abandoned, id)
	return ok
}

func (p *fakeProvider) take(id string) payment.Handlers {
	p.mu.Lock()
	defer p.mu.Unlock()
	h := p.handlers[id]
	delete(p.handlers, id)
	return h
}

func (p *fakeProvider) succeed(id, paymentID string) {
	if h := p.take(id); h.OnSuccess != nil {
		h.OnSuccess(context.Background(), d.PaymentIDs{PaymentID: paymentID, ProviderOrderID: id, Signature: "sig"})
	}
}

func (p *fakeProvider) fail(id, reason string) {
	if h := p.take(id); h.OnFailure != nil {
		h.OnFailure(context.Background(), d.PaymentFailure{ProviderOrderID: id, Description: reason})
	}
}

func (p *fakeProvider) dismiss(id string) {
	if h := p.take(id); h.OnDismiss != nil {
		h.OnDismiss(context.Background())
	}
}

func (p *fakeProvider) counts() (loads, opens int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loads, p.opens
}

type fakeOrders struct {
	mu     sync.Mutex
	err    error
	saved  []*d.Order
	trials int
}

func (f *fakeOrders) SaveOrder(_ context.Context, o *d.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trials++
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, o)
	return nil
}

type fakeCart struct {
	mu      sync.Mutex
	cleared [][]d.CartLine

	// when set, Clear signals entered and blocks until release is closed
	entered chan struct{}
	release chan struct{}
}

func (f *fakeCart) Clear(_ context.Context, _ d.Identity, lines []d.CartLine) error {
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, lines)
	return nil
}

type fakeOutbox struct {
	mu     sync.Mutex
	orders []*d.Order
}

func (f *fakeOutbox) Enqueue(_ context.Context, o *d.Order, _ error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, o)
	return nil
}

func oneLineCart() *d.CartSnapshot {
	return &d.CartSnapshot{Lines: []d.CartLine{{
		ProductID: 1,
		UnitPrice: decimal.NewFromInt(500),
		Quantity:  2,
		Product:   d.ProductSnapshot{Name: "Kettle"},
	}}}
}

func homeAddress() *d.Address {
	return &d.Address{
		ID:          7,
		FullName:    "Asha Rao",
		PhoneNumber: "9000090000",
		Street:      "1 MG Road",
		City:        "Bengaluru",
		State:       "KA",
		ZipCode:     "560001",
		AddressType: d.AddressHome,
		IsDefault:   true,
	}
}

func percentCoupon(v int64) *d.Coupon {
	return &d.Coupon{Code: "SAVE10", DiscountType: d.DiscountPercentage, DiscountValue: decimal.NewFromInt(v)}
}
