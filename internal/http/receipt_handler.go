package http

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	d "github.com/fjod/go_cart/storefront/domain"
	"github.com/fjod/go_cart/storefront/internal/identity"
	"github.com/fjod/go_cart/storefront/internal/receipt"
)

type OrderHistory interface {
	ListOrders(ctx context.Context, username string) ([]d.Order, error)
}

type ReceiptHandler struct {
	generator *receipt.Generator
	store     receipt.Store
	history   OrderHistory
	timeout   time.Duration
}

func NewReceiptHandler(generator *receipt.Generator, store receipt.Store, history OrderHistory, timeout time.Duration) *ReceiptHandler {
	return &ReceiptHandler{
		generator: generator,
		store:     store,
		history:   history,
		timeout:   timeout,
	}
}

// GET /api/v1/receipts/{order_id}
func (h *ReceiptHandler) GetReceipt(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.receipt(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// GET /api/v1/receipts/{order_id}/print?format=html|text
func (h *ReceiptHandler) PrintReceipt(w http.ResponseWriter, r *http.Request) {
	format, err := receipt.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_format", err.Error())
		return
	}
	rec, ok := h.receipt(w, r)
	if !ok {
		return
	}
	h.render(w, r, *rec, format)
}

// GET /api/v1/orders
func (h *ReceiptHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id := identity.FromContext(r.Context())
	if id.IsZero() {
		respondDomainError(w, r, d.ErrNotAuthenticated)
		return
	}

	orders, err := h.history.ListOrders(ctx, id.Username)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if orders == nil {
		orders = []d.Order{}
	}
	respondJSON(w, http.StatusOK, orders)
}

// GET /api/v1/orders/{order_id}/receipt?format=html|text
//
// Rebuilds a printable receipt for a past order. Payment ids are not part of
// the order history and are left blank.
func (h *ReceiptHandler) OrderReceipt(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id := identity.FromContext(r.Context())
	if id.IsZero() {
		respondDomainError(w, r, d.ErrNotAuthenticated)
		return
	}

	format, err := receipt.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_format", err.Error())
		return
	}

	orderID := chi.URLParam(r, "order_id")
	orders, err := h.history.ListOrders(ctx, id.Username)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	for i := range orders {
		if orders[i].OrderID == orderID {
			h.render(w, r, h.generator.Build(&orders[i], d.PaymentIDs{}), format)
			return
		}
	}
	respondDomainError(w, r, fmt.Errorf("%w: order %s", d.ErrReceiptNotFound, orderID))
}

func (h *ReceiptHandler) receipt(w http.ResponseWriter, r *http.Request) (*d.Receipt, bool) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id := identity.FromContext(r.Context())
	if id.IsZero() {
		respondDomainError(w, r, d.ErrNotAuthenticated)
		return nil, false
	}

	rec, err := h.store.Get(ctx, id.Username, chi.URLParam(r, "order_id"))
	if err != nil {
		respondDomainError(w, r, err)
		return nil, false
	}
	return rec, true
}

func (h *ReceiptHandler) render(w http.ResponseWriter, r *http.Request, rec d.Receipt, format receipt.Format) {
	var buf bytes.Buffer
	if err := h.generator.Render(&buf, rec, format); err != nil {
		respondDomainError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
