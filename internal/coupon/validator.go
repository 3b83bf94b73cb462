// Package coupon tracks the coupon applied to a shopper's pending order.
package coupon

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	d "github.com/fjod/go_cart/storefront/domain"
	"github.com/fjod/go_cart/storefront/pkg/logger"
)

const msgEmptyCode = "Please enter a coupon code"

// ErrSuperseded is returned by an Apply overtaken by a later Apply or Remove.
// The validator's state belongs to the later call.
var ErrSuperseded = errors.New("coupon change superseded by a later one")

type State string

const (
	StateNoCoupon   State = "NO_COUPON"
	StateValidating State = "VALIDATING"
	StateApplied    State = "APPLIED"
	StateRejected   State = "REJECTED"
)

type Backend interface {
	ValidateCoupon(ctx context.Context, code string, orderAmount decimal.Decimal) (*d.Coupon, error)
}

// Validator holds at most one applied coupon. Applying a new code replaces
// the previous one.
type Validator struct {
	backend Backend
	logger  *zap.Logger

	mu      sync.Mutex
	state   State
	applied *d.Coupon
	message string
	seq     uint64
}

func NewValidator(backend Backend, log *zap.Logger) *Validator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Validator{backend: backend, logger: log, state: StateNoCoupon}
}

// Apply validates code against orderAmount, the pre-discount total.
// A later Apply or Remove supersedes one still waiting on the backend.
func (v *Validator) Apply(ctx context.Context, id d.Identity, code string, orderAmount decimal.Decimal) (*d.Coupon, error) {
	if id.IsZero() {
		return nil, d.ErrNotAuthenticated
	}
	code = strings.TrimSpace(code)

	v.mu.Lock()
	if code == "" {
		v.state, v.applied, v.message = StateRejected, nil, msgEmptyCode
		v.seq++
		v.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", d.ErrInvalidCoupon, msgEmptyCode)
	}
	prevState, prevApplied, prevMessage := v.state, v.applied, v.message
	if prevState == StateRejected {
		prevState, prevMessage = StateNoCoupon, ""
	}
	v.seq++
	seq := v.seq
	v.state, v.message = StateValidating, ""
	v.mu.Unlock()

	coupon, err := v.backend.ValidateCoupon(ctx, code, orderAmount)

	v.mu.Lock()
	defer v.mu.Unlock()
	if seq != v.seq {
		logger.FromContext(ctx, v.logger).Debug("discarding stale coupon validation",
			zap.String("username", id.Username),
			zap.String("code", code))
		return nil, ErrSuperseded
	}

	switch {
	case err == nil:
		v.state, v.applied, v.message = StateApplied, coupon, ""
		logger.FromContext(ctx, v.logger).Info("coupon applied",
			zap.String("username", id.Username),
			zap.String("code", coupon.Code),
			zap.String("type", string(coupon.DiscountType)))
		return coupon, nil
	case errors.Is(err, d.ErrInvalidCoupon):
		v.state, v.applied, v.message = StateRejected, nil, rejectionMessage(err)
		return nil, err
	default:
		// not the coupon's fault: keep what was there and let the user retry
		v.state, v.applied, v.message = prevState, prevApplied, prevMessage
		logger.FromContext(ctx, v.logger).Warn("coupon validation failed",
			zap.String("username", id.Username),
			zap.Error(err))
		return nil, err
	}
}

// Remove clears the coupon and any message. It is always safe to call.
func (v *Validator) Remove() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.seq++
	v.state, v.applied, v.message = StateNoCoupon, nil, ""
}

// Applied returns the applied coupon, or nil.
func (v *Validator) Applied() *d.Coupon {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.applied == nil {
		return nil
	}
	c := *v.applied
	return &c
}

func (v *Validator) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Message is the user-facing rejection reason, if any.
func (v *Validator) Message() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.message
}

func rejectionMessage(err error) string {
	msg := err.Error()
	prefix := d.ErrInvalidCoupon.Error() + ": "
	if i := strings.Index(msg, prefix); i >= 0 {
		return msg[i+len(prefix):]
	}
	return msg
}
