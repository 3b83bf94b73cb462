package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	d "github.com/fjod/go_cart/storefront/domain"
	"github.com/fjod/go_cart/storefront/internal/backend"
	"github.com/fjod/go_cart/storefront/internal/coupon"
	"github.com/fjod/go_cart/storefront/internal/payment"
	"github.com/fjod/go_cart/storefront/pkg/logger"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// respondDomainError converts storefront errors to HTTP status codes.
func respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var httpStatus int
	var code string
	message := err.Error()

	switch {
	case errors.Is(err, d.ErrNotAuthenticated):
		httpStatus, code = http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, d.ErrInvalidCoupon):
		httpStatus, code = http.StatusUnprocessableEntity, "invalid_coupon"
	case errors.Is(err, coupon.ErrSuperseded):
		httpStatus, code = http.StatusConflict, "coupon_superseded"
	case errors.Is(err, d.ErrAddressRequired):
		httpStatus, code = http.StatusUnprocessableEntity, "address_required"
	case errors.Is(err, d.ErrEmptyCart):
		httpStatus, code = http.StatusUnprocessableEntity, "empty_cart"
	case errors.Is(err, d.ErrPaymentProviderUnavailable):
		httpStatus, code = http.StatusServiceUnavailable, "payment_provider_unavailable"
		message = d.ErrPaymentProviderUnavailable.Error()
	case errors.Is(err, payment.ErrSignatureMismatch), errors.Is(err, d.ErrPaymentFailed):
		httpStatus, code = http.StatusPaymentRequired, "payment_failed"
	case errors.Is(err, payment.ErrUnknownSession):
		httpStatus, code = http.StatusNotFound, "unknown_payment_session"
	case errors.Is(err, d.ErrPaymentCancelled):
		httpStatus, code = http.StatusConflict, "payment_cancelled"
	case errors.Is(err, d.ErrCheckoutInProgress):
		httpStatus, code = http.StatusConflict, "checkout_in_progress"
	case errors.Is(err, d.ErrNoCheckoutInFlight):
		httpStatus, code = http.StatusConflict, "no_checkout_in_flight"
	case errors.Is(err, d.ErrIllegalTransition):
		httpStatus, code = http.StatusConflict, "illegal_transition"
	case errors.Is(err, d.ErrReceiptNotFound):
		httpStatus, code = http.StatusNotFound, "not_found"
	case errors.Is(err, d.ErrOrderPersistenceFailure):
		httpStatus, code = http.StatusBadGateway, "order_persistence_failed"
	case errors.Is(err, backend.ErrRejected):
		httpStatus, code = http.StatusBadRequest, "rejected"
	case errors.Is(err, context.DeadlineExceeded):
		httpStatus, code = http.StatusGatewayTimeout, "timeout"
		message = "request timed out"
	case errors.Is(err, d.ErrNetworkFailure):
		httpStatus, code = http.StatusBadGateway, "network_failure"
		message = "Network error. Please try again."
	default:
		httpStatus, code = http.StatusInternalServerError, "internal_error"
		message = "internal server error"
	}

	if httpStatus >= http.StatusInternalServerError {
		logger.FromContext(r.Context(), zap.L()).Error("request failed",
			zap.String("code", code),
			zap.Error(err))
	}
	respondError(w, httpStatus, code, message)
}

func decodeJSON(r *http.Request, v interface{}) bool {
	return json.NewDecoder(r.Body).Decode(v) == nil
}
