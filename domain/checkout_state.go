package domain

type CheckoutState string

const (
	CheckoutStateIdle                         CheckoutState = "IDLE"
	CheckoutStateAwaitingAddress              CheckoutState = "AWAITING_ADDRESS"
	CheckoutStateAwaitingPaymentProviderReady CheckoutState = "AWAITING_PAYMENT_PROVIDER_READY"
	CheckoutStatePaymentInFlight              CheckoutState = "PAYMENT_IN_FLIGHT"
	CheckoutStatePaymentSucceeded             CheckoutState = "PAYMENT_SUCCEEDED"
	CheckoutStateOrderPersisting              CheckoutState = "ORDER_PERSISTING"
	CheckoutStateSettled                      CheckoutState = "SETTLED"
	CheckoutStatePaymentFailed                CheckoutState = "PAYMENT_FAILED"
	CheckoutStatePaymentCancelled             CheckoutState = "PAYMENT_CANCELLED"
)

var checkoutTransitions = map[CheckoutState][]CheckoutState{
	CheckoutStateIdle: {CheckoutStateAwaitingAddress},
	CheckoutStateAwaitingAddress: {
		CheckoutStateAwaitingPaymentProviderReady,
		CheckoutStateIdle,
	},
	CheckoutStateAwaitingPaymentProviderReady: {
		CheckoutStatePaymentInFlight,
		CheckoutStateAwaitingAddress,
		CheckoutStateIdle,
	},
	CheckoutStatePaymentInFlight: {
		CheckoutStatePaymentSucceeded,
		CheckoutStatePaymentFailed,
		CheckoutStatePaymentCancelled,
	},
	CheckoutStatePaymentSucceeded: {CheckoutStateOrderPersisting},
	CheckoutStateOrderPersisting:  {CheckoutStateSettled},
	CheckoutStateSettled:          {CheckoutStateIdle, CheckoutStateAwaitingAddress},
	CheckoutStatePaymentFailed:    {CheckoutStateIdle},
	CheckoutStatePaymentCancelled: {CheckoutStateIdle},
}

// CanTransitionTo reports whether the checkout may move from one state to another.
func CanTransitionTo(from, to CheckoutState) bool {
	for _, next := range checkoutTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal is true for the outcomes of a payment attempt.
func (s CheckoutState) IsTerminal() bool {
	return s == CheckoutStateSettled || s == CheckoutStatePaymentFailed || s == CheckoutStatePaymentCancelled
}

// CanBegin is true when a new checkout attempt may start from s.
func (s CheckoutState) CanBegin() bool {
	switch s {
	case CheckoutStateIdle, CheckoutStateAwaitingAddress, CheckoutStateAwaitingPaymentProviderReady, CheckoutStateSettled:
		return true
	}
	return false
}

// String representation (for logging)
func (s CheckoutState) String() string {
	return string(s)
}
