package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	d "github.com/fjod/go_cart/storefront/domain"
	"github.com/fjod/go_cart/storefront/internal/address"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/identity"
	"github.com/fjod/go_cart/storefront/internal/payment"
	"github.com/fjod/go_cart/storefront/internal/session"
)

const maxOutcomeWait = 25 * time.Second

type AddressBook interface {
	List(ctx context.Context, id d.Identity) ([]d.Address, error)
	Find(ctx context.Context, id d.Identity, addressID int64) (*d.Address, error)
}

// PaymentCallbacks resolves pending provider sessions with what the browser
// reports back.
type PaymentCallbacks interface {
	Succeed(ctx context.Context, ids d.PaymentIDs) error
	Fail(ctx context.Context, f d.PaymentFailure) error
	Dismiss(ctx context.Context, providerOrderID string) error
}

type CheckoutHandler struct {
	cart      CartService
	addresses AddressBook
	sessions  Sessions
	payments  PaymentCallbacks
	timeout   time.Duration
}

func NewCheckoutHandler(cart CartService, addresses AddressBook, sessions Sessions, payments PaymentCallbacks, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		cart:      cart,
		addresses: addresses,
		sessions:  sessions,
		payments:  payments,
		timeout:   timeout,
	}
}

type AddressesResponseDTO struct {
	Addresses  []d.Address `json:"addresses"`
	SelectedID int64       `json:"selected_id,omitempty"`
}

type SelectAddressRequestDTO struct {
	AddressID int64 `json:"address_id"`
}

type PaymentSuccessRequestDTO struct {
	PaymentID       string `json:"payment_id"`
	ProviderOrderID string `json:"provider_order_id"`
	Signature       string `json:"signature"`
}

type PaymentFailureRequestDTO struct {
	ProviderOrderID string `json:"provider_order_id"`
	Error           struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

type PaymentDismissRequestDTO struct {
	ProviderOrderID string `json:"provider_order_id"`
}

// GET /api/v1/addresses
func (h *CheckoutHandler) ListAddresses(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id := identity.FromContext(r.Context())
	if id.IsZero() {
		respondDomainError(w, r, d.ErrNotAuthenticated)
		return
	}

	addrs, err := h.addresses.List(ctx, id)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	sess := h.sessions.Get(id)
	selected := sess.Address()
	if selected == nil || !containsAddress(addrs, selected.ID) {
		selected = address.Preferred(addrs)
		sess.SelectAddress(selected)
	}

	resp := AddressesResponseDTO{Addresses: addrs}
	if resp.Addresses == nil {
		resp.Addresses = []d.Address{}
	}
	if selected != nil {
		resp.SelectedID = selected.ID
	}
	respondJSON(w, http.StatusOK, resp)
}

// PUT /api/v1/checkout/address
func (h *CheckoutHandler) SelectAddress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id := identity.FromContext(r.Context())
	if id.IsZero() {
		respondDomainError(w, r, d.ErrNotAuthenticated)
		return
	}

	var req SelectAddressRequestDTO
	if !decodeJSON(r, &req) {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.AddressID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_address_id", "address_id must be positive")
		return
	}

	addr, err := h.addresses.Find(ctx, id, req.AddressID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	h.sessions.Get(id).SelectAddress(addr)
	respondJSON(w, http.StatusOK, addr)
}

// POST /api/v1/checkout
func (h *CheckoutHandler) Begin(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id := identity.FromContext(r.Context())
	if id.IsZero() {
		respondDomainError(w, r, d.ErrNotAuthenticated)
		return
	}

	// totals are computed from the backend's cart, never a stale cache
	snap, err := h.cart.Load(ctx, id)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	sess := h.sessions.Get(id)
	if _, err := sess.Checkout.Begin(ctx, checkout.BeginRequest{
		Identity: id,
		Address:  sess.Address(),
		Cart:     snap,
		Coupon:   sess.Coupon.Applied(),
	}); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, sess.Checkout.Status())
}

// GET /api/v1/checkout
func (h *CheckoutHandler) Status(w http.ResponseWriter, r *http.Request) {
	id := identity.FromContext(r.Context())
	if id.IsZero() {
		respondDomainError(w, r, d.ErrNotAuthenticated)
		return
	}
	respondJSON(w, http.StatusOK, h.sessions.Get(id).Checkout.Status())
}

// GET /api/v1/checkout/outcome?wait=30s
//
// Long-polls until the in-flight payment resolves. When the wait runs out the
// current status is returned as is.
func (h *CheckoutHandler) Outcome(w http.ResponseWriter, r *http.Request) {
	id := identity.FromContext(r.Context())
	if id.IsZero() {
		respondDomainError(w, r, d.ErrNotAuthenticated)
		return
	}

	wait := h.timeout
	if raw := r.URL.Query().Get("wait"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed < 0 {
			respondError(w, http.StatusBadRequest, "invalid_wait", "wait must be a duration such as 30s")
			return
		}
		wait = parsed
	}
	if wait > maxOutcomeWait {
		wait = maxOutcomeWait
	}

	ctx, cancel := context.WithTimeout(r.Context(), wait)
	defer cancel()

	status, err := h.sessions.Get(id).Checkout.Await(ctx)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

// POST /api/v1/checkout/cancel
func (h *CheckoutHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := identity.FromContext(r.Context())
	if id.IsZero() {
		respondDomainError(w, r, d.ErrNotAuthenticated)
		return
	}

	sess := h.sessions.Get(id)
	if err := sess.Checkout.Cancel(r.Context()); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sess.Checkout.Status())
}

// POST /api/v1/checkout/payment/success
func (h *CheckoutHandler) PaymentSucceeded(w http.ResponseWriter, r *http.Request) {
	id := identity.FromContext(r.Context())
	if id.IsZero() {
		respondDomainError(w, r, d.ErrNotAuthenticated)
		return
	}

	var req PaymentSuccessRequestDTO
	if !decodeJSON(r, &req) {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.PaymentID == "" || req.ProviderOrderID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "payment_id and provider_order_id are required")
		return
	}

	sess, ok := h.owner(w, r, id, req.ProviderOrderID)
	if !ok {
		return
	}
	err := h.payments.Succeed(r.Context(), d.PaymentIDs{
		PaymentID:       req.PaymentID,
		ProviderOrderID: req.ProviderOrderID,
		Signature:       req.Signature,
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sess.Checkout.Status())
}

// POST /api/v1/checkout/payment/failure
func (h *CheckoutHandler) PaymentFailed(w http.ResponseWriter, r *http.Request) {
	id := identity.FromContext(r.Context())
	if id.IsZero() {
		respondDomainError(w, r, d.ErrNotAuthenticated)
		return
	}

	var req PaymentFailureRequestDTO
	if !decodeJSON(r, &req) || req.ProviderOrderID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "provider_order_id is required")
		return
	}

	sess, ok := h.owner(w, r, id, req.ProviderOrderID)
	if !ok {
		return
	}
	err := h.payments.Fail(r.Context(), d.PaymentFailure{
		ProviderOrderID: req.ProviderOrderID,
		Code:            req.Error.Code,
		Description:     req.Error.Description,
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sess.Checkout.Status())
}

// POST /api/v1/checkout/payment/dismiss
func (h *CheckoutHandler) PaymentDismissed(w http.ResponseWriter, r *http.Request) {
	id := identity.FromContext(r.Context())
	if id.IsZero() {
		respondDomainError(w, r, d.ErrNotAuthenticated)
		return
	}

	var req PaymentDismissRequestDTO
	if !decodeJSON(r, &req) || req.ProviderOrderID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "provider_order_id is required")
		return
	}

	sess, ok := h.owner(w, r, id, req.ProviderOrderID)
	if !ok {
		return
	}
	if err := h.payments.Dismiss(r.Context(), req.ProviderOrderID); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sess.Checkout.Status())
}

// owner makes sure a provider callback belongs to the caller's in-flight
// payment, so one shopper cannot resolve another's session.
func (h *CheckoutHandler) owner(w http.ResponseWriter, r *http.Request, id d.Identity, providerOrderID string) (*session.Session, bool) {
	sess := h.sessions.Get(id)
	st := sess.Checkout.Status()
	if st.State != d.CheckoutStatePaymentInFlight || st.Session == nil || st.Session.ProviderOrderID != providerOrderID {
		respondDomainError(w, r, payment.ErrUnknownSession)
		return nil, false
	}
	return sess, true
}

func containsAddress(addrs []d.Address, addressID int64) bool {
	for _, a := range addrs {
		if a.ID == addressID {
			return true
		}
	}
	return false
}
