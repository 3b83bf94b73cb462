package domain

import "errors"

var (
	ErrNotAuthenticated           = errors.New("not authenticated")
	ErrNetworkFailure             = errors.New("network failure")
	ErrInvalidCoupon              = errors.New("invalid coupon")
	ErrAddressRequired            = errors.New("please select a shipping address")
	ErrPaymentProviderUnavailable = errors.New("payment service is temporarily unavailable")
	ErrPaymentFailed              = errors.New("payment failed")
	ErrPaymentCancelled           = errors.New("payment cancelled")
	ErrOrderPersistenceFailure    = errors.New("order could not be saved")

	ErrEmptyCart          = errors.New("cart is empty, nothing to checkout")
	ErrIllegalTransition  = errors.New("illegal transition of checkout state")
	ErrCheckoutInProgress = errors.New("a payment is already in progress")
	ErrNoCheckoutInFlight = errors.New("no checkout in progress")
	ErrReceiptNotFound    = errors.New("receipt not found")
)
