package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	d "github.com/fjod/go_cart/storefront/domain"
	"github.com/fjod/go_cart/storefront/internal/address"
	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/idempotency"
	"github.com/fjod/go_cart/storefront/internal/identity"
	"github.com/fjod/go_cart/storefront/internal/payment"
	"github.com/fjod/go_cart/storefront/internal/pricing"
	"github.com/fjod/go_cart/storefront/internal/receipt"
	"github.com/fjod/go_cart/storefront/internal/session"
)

const jwtSecret = "test-secret"

var asha = d.Identity{Username: "asha", Email: "asha@example.com", Phone: "9999999999"}

// fakeBackend stands in for the storefront backend: cart, coupons, addresses
// and orders for every user.
type fakeBackend struct {
	mu        sync.Mutex
	lines     []d.CartLine
	coupons   map[string]*d.Coupon
	addresses []d.Address
	orders    []d.Order
	cartErr   error
	saveErr   error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		lines: []d.CartLine{{
			ProductID: 7,
			UnitPrice: decimal.NewFromInt(500),
			Quantity:  2,
			Product:   d.ProductSnapshot{Name: "Desk Lamp", Category: "Home"},
		}},
		coupons: map[string]*d.Coupon{
			"SAVE10": {Code: "SAVE10", DiscountType: d.DiscountPercentage, DiscountValue: decimal.NewFromInt(10)},
		},
		addresses: []d.Address{
			{ID: 1, FullName: "Asha Rao", Street: "1 MG Road", City: "Pune", State: "MH", ZipCode: "411001", AddressType: d.AddressWork},
			{ID: 2, FullName: "Asha Rao", PhoneNumber: "8888888888", Street: "12 Park St", City: "Pune", State: "MH", ZipCode: "411002", AddressType: d.AddressHome, IsDefault: true},
		},
	}
}

func (b *fakeBackend) GetCart(context.Context, string) (*d.CartSnapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cartErr != nil {
		return nil, b.cartErr
	}
	lines := make([]d.CartLine, len(b.lines))
	copy(lines, b.lines)
	return &d.CartSnapshot{Lines: lines, FetchedAt: time.Now()}, nil
}

func (b *fakeBackend) UpdateQuantity(_ context.Context, _ string, productID int64, quantity int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.lines {
		if b.lines[i].ProductID == productID {
			b.lines[i].Quantity = quantity
		}
	}
	return nil
}

func (b *fakeBackend) RemoveItem(_ context.Context, _ string, productID int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.lines[:0]
	for _, l := range b.lines {
		if l.ProductID != productID {
			kept = append(kept, l)
		}
	}
	b.lines = kept
	return nil
}

func (b *fakeBackend) ValidateCoupon(_ context.Context, code string, _ decimal.Decimal) (*d.Coupon, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.coupons[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", d.ErrInvalidCoupon, "Invalid coupon code")
	}
	cp := *c
	return &cp, nil
}

func (b *fakeBackend) ListAddresses(context.Context, string) ([]d.Address, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]d.Address, len(b.addresses))
	copy(out, b.addresses)
	return out, nil
}

func (b *fakeBackend) SaveOrder(_ context.Context, order *d.Order) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.saveErr != nil {
		return b.saveErr
	}
	b.orders = append(b.orders, *order)
	return nil
}

func (b *fakeBackend) ListOrders(context.Context, string) ([]d.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]d.Order, len(b.orders))
	copy(out, b.orders)
	return out, nil
}

func (b *fakeBackend) savedOrders() []d.Order {
	orders, _ := b.ListOrders(context.Background(), "")
	return orders
}

type harness struct {
	t        *testing.T
	backend  *fakeBackend
	hosted   *payment.Hosted
	receipts *receipt.MemoryStore
	server   *httptest.Server
	token    string
}

func newProviderServer(t *testing.T) *httptest.Server {
	t.Helper()
	var n int
	var mu sync.Mutex
	mux := http.NewServeMux()
	mux.HandleFunc("GET /checkout.js", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("// checkout"))
	})
	mux.HandleFunc("POST /v1/orders", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		n++
		id := fmt.Sprintf("order_%d", n)
		mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]string{"id": id, "status": "created"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	backend := newFakeBackend()
	provider := newProviderServer(t)
	hosted := payment.NewHosted(payment.HostedConfig{
		BaseURL:   provider.URL,
		ScriptURL: provider.URL + "/checkout.js",
		KeyID:     "rzp_test",
		StoreName: "SalesSavvy Store",
	}, nil)

	engine := pricing.Default()
	generator := receipt.NewGenerator(engine)
	receipts := receipt.NewMemoryStore()
	claims := idempotency.NewMemoryStore()
	t.Cleanup(func() { _ = claims.Close() })

	store := cart.NewStore(backend, nil)
	registry := session.NewRegistry(backend, checkout.Deps{
		Provider:     hosted,
		Engine:       engine,
		Receipts:     generator,
		ReceiptStore: receipts,
		Orders:       backend,
		Cart:         store,
		Claims:       claims,
	}, time.Hour, nil)
	t.Cleanup(registry.Watch(store))

	verifier := identity.NewVerifier(jwtSecret, "")
	token, err := verifier.Issue(asha, time.Hour)
	require.NoError(t, err)

	router := NewRouter(RouterConfig{
		RequestTimeout:     5 * time.Second,
		MaxRequestBodySize: 1 << 20,
		Auth:               verifier.Middleware(nil),
	},
		NewCartHandler(store, registry, engine, 5*time.Second),
		NewCheckoutHandler(store, address.NewBook(backend), registry, hosted, 5*time.Second),
		NewReceiptHandler(generator, receipts, backend, 5*time.Second),
	)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &harness{t: t, backend: backend, hosted: hosted, receipts: receipts, server: srv, token: token}
}

func (h *harness) do(method, path string, body interface{}) *http.Response {
	return h.doAs(h.token, method, path, body)
}

func (h *harness) doAs(token, method, path string, body interface{}) *http.Response {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, h.server.URL+path, &buf)
	require.NoError(h.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := h.server.Client().Do(req)
	require.NoError(h.t, err)
	h.t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

// statusDTO mirrors the JSON of checkout.Status.
type statusDTO struct {
	State            d.CheckoutState   `json:"state"`
	Error            string            `json:"error"`
	Receipt          *d.Receipt        `json:"receipt"`
	PersistenceError string            `json:"persistence_error"`
	Session          *payment.Session  `json:"session"`
	Breakdown        *d.PriceBreakdown `json:"breakdown"`
}

// beginCheckout selects the default address and opens a payment.
func (h *harness) beginCheckout() statusDTO {
	h.t.Helper()
	resp := h.do(http.MethodGet, "/api/v1/addresses", nil)
	require.Equal(h.t, http.StatusOK, resp.StatusCode)

	resp = h.do(http.MethodPost, "/api/v1/checkout", nil)
	require.Equal(h.t, http.StatusCreated, resp.StatusCode)
	st := decodeBody[statusDTO](h.t, resp)
	require.NotNil(h.t, st.Session)
	return st
}
