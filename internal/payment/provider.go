// Package payment is the contract with the external payment provider and a
// client for a hosted-checkout provider.
package payment

import (
	"context"
	"errors"

	d "github.com/fjod/go_cart/storefront/domain"
)

var (
	ErrUnknownSession    = errors.New("unknown payment session")
	ErrSignatureMismatch = errors.New("payment signature verification failed")
)

type Prefill struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Contact string `json:"contact"`
}

type Request struct {
	AmountMinor int64
	Currency    string
	Description string
	// Reference is our id for the attempt, echoed by the provider as its receipt.
	Reference string
	Prefill   Prefill
	Notes     map[string]string
}

// Handlers receive the provider's verdict. Exactly one of them is called per
// session, on the goroutine that reported the outcome.
type Handlers struct {
	OnSuccess func(ctx context.Context, ids d.PaymentIDs)
	OnFailure func(ctx context.Context, f d.PaymentFailure)
	OnDismiss func(ctx context.Context)
}

// Session is what a browser needs to open the provider's payment UI.
type Session struct {
	ProviderOrderID string            `json:"provider_order_id"`
	KeyID           string            `json:"key_id"`
	AmountMinor     int64             `json:"amount"`
	Currency        string            `json:"currency"`
	Name            string            `json:"name"`
	Description     string            `json:"description"`
	ScriptURL       string            `json:"script_url"`
	ThemeColor      string            `json:"theme_color,omitempty"`
	Prefill         Prefill           `json:"prefill"`
	Notes           map[string]string `json:"notes,omitempty"`
}

type Provider interface {
	// Load makes the provider usable. It is idempotent.
	Load(ctx context.Context) error
	Loaded() bool
	// Open starts a payment; the outcome arrives later through h.
	Open(ctx context.Context, req Request, h Handlers) (*Session, error)
	// Abandon forgets a pending session without calling its handlers.
	Abandon(providerOrderID string) bool
}
