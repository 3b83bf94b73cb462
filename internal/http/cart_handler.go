package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	d "github.com/fjod/go_cart/storefront/domain"
	"github.com/fjod/go_cart/storefront/internal/coupon"
	"github.com/fjod/go_cart/storefront/internal/identity"
	"github.com/fjod/go_cart/storefront/internal/pricing"
	"github.com/fjod/go_cart/storefront/internal/session"
)

const maxQuantity = 99

type CartService interface {
	Load(ctx context.Context, id d.Identity) (*d.CartSnapshot, error)
	Snapshot(id d.Identity) (*d.CartSnapshot, bool)
	SetQuantity(ctx context.Context, id d.Identity, productID int64, quantity int) (*d.CartSnapshot, error)
	Remove(ctx context.Context, id d.Identity, productID int64) (*d.CartSnapshot, error)
}

type Sessions interface {
	Get(id d.Identity) *session.Session
}

type CartHandler struct {
	cart     CartService
	sessions Sessions
	engine   *pricing.Engine
	timeout  time.Duration
}

func NewCartHandler(cart CartService, sessions Sessions, engine *pricing.Engine, timeout time.Duration) *CartHandler {
	if engine == nil {
		engine = pricing.Default()
	}
	return &CartHandler{
		cart:     cart,
		sessions: sessions,
		engine:   engine,
		timeout:  timeout,
	}
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type ApplyCouponRequestDTO struct {
	Code string `json:"code"`
}

type CartLineDTO struct {
	ProductID int64             `json:"product_id"`
	Product   d.ProductSnapshot `json:"product"`
	UnitPrice d.Money           `json:"unit_price"`
	Quantity  int               `json:"quantity"`
	ItemTotal d.Money           `json:"item_total"`
}

type CartResponseDTO struct {
	Items         []CartLineDTO    `json:"items"`
	Breakdown     d.PriceBreakdown `json:"breakdown"`
	Coupon        *d.Coupon        `json:"coupon,omitempty"`
	CouponState   coupon.State     `json:"coupon_state"`
	CouponMessage string           `json:"coupon_message,omitempty"`
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id := identity.FromContext(r.Context())
	if id.IsZero() {
		respondDomainError(w, r, d.ErrNotAuthenticated)
		return
	}

	snap, err := h.cart.Load(ctx, id)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.cartResponse(h.sessions.Get(id), snap))
}

// PUT /api/v1/cart/items/{product_id}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id := identity.FromContext(r.Context())
	if id.IsZero() {
		respondDomainError(w, r, d.ErrNotAuthenticated)
		return
	}

	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	var req UpdateQuantityRequestDTO
	if !decodeJSON(r, &req) {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	// zero removes the line
	if req.Quantity < 0 || req.Quantity > maxQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 0 and 99")
		return
	}

	snap, err := h.cart.SetQuantity(ctx, id, productID, req.Quantity)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.cartResponse(h.sessions.Get(id), snap))
}

// DELETE /api/v1/cart/items/{product_id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id := identity.FromContext(r.Context())
	if id.IsZero() {
		respondDomainError(w, r, d.ErrNotAuthenticated)
		return
	}

	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	snap, err := h.cart.Remove(ctx, id, productID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.cartResponse(h.sessions.Get(id), snap))
}

// POST /api/v1/cart/coupon
func (h *CartHandler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id := identity.FromContext(r.Context())
	if id.IsZero() {
		respondDomainError(w, r, d.ErrNotAuthenticated)
		return
	}

	var req ApplyCouponRequestDTO
	if !decodeJSON(r, &req) {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	snap, err := h.current(ctx, id)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	sess := h.sessions.Get(id)
	if _, err := sess.Coupon.Apply(ctx, id, req.Code, h.engine.PreDiscountTotal(snap)); err != nil {
		if msg := sess.Coupon.Message(); msg != "" && sess.Coupon.State() == coupon.StateRejected && !errors.Is(err, coupon.ErrSuperseded) {
			respondError(w, http.StatusUnprocessableEntity, "invalid_coupon", msg)
			return
		}
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.cartResponse(sess, snap))
}

// DELETE /api/v1/cart/coupon
func (h *CartHandler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id := identity.FromContext(r.Context())
	if id.IsZero() {
		respondDomainError(w, r, d.ErrNotAuthenticated)
		return
	}

	sess := h.sessions.Get(id)
	sess.Coupon.Remove()

	snap, err := h.current(ctx, id)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.cartResponse(sess, snap))
}

// current prefers the cached snapshot and loads the cart only on a miss.
func (h *CartHandler) current(ctx context.Context, id d.Identity) (*d.CartSnapshot, error) {
	if snap, ok := h.cart.Snapshot(id); ok {
		return snap, nil
	}
	return h.cart.Load(ctx, id)
}

func (h *CartHandler) cartResponse(sess *session.Session, snap *d.CartSnapshot) CartResponseDTO {
	applied := sess.Coupon.Applied()
	resp := CartResponseDTO{
		Items:         make([]CartLineDTO, 0, len(snap.Lines)),
		Breakdown:     h.engine.ComputeBreakdown(snap, applied),
		Coupon:        applied,
		CouponState:   sess.Coupon.State(),
		CouponMessage: sess.Coupon.Message(),
	}
	for _, l := range snap.Lines {
		resp.Items = append(resp.Items, CartLineDTO{
			ProductID: l.ProductID,
			Product:   l.Product,
			UnitPrice: l.UnitPrice,
			Quantity:  l.Quantity,
			ItemTotal: l.ItemTotal(),
		})
	}
	return resp
}

func productIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil || productID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return 0, false
	}
	return productID, true
}
