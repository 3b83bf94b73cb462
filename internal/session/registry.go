// Package session keeps the per-shopper state of the storefront: the applied
// coupon, the selected address and the checkout in progress.
package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	d "github.com/fjod/go_cart/storefront/domain"
	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/coupon"
)

const sweepInterval = time.Minute

type Session struct {
	Username string
	Coupon   *coupon.Validator
	Checkout *checkout.Orchestrator

	mu       sync.Mutex
	address  *d.Address
	lastSeen time.Time
}

func (s *Session) SelectAddress(a *d.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a == nil {
		s.address = nil
		return
	}
	c := *a
	s.address = &c
}

// Address returns the selected address, or nil.
func (s *Session) Address() *d.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.address == nil {
		return nil
	}
	c := *s.address
	return &c
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Registry hands out one Session per username.
type Registry struct {
	coupons  coupon.Backend
	checkout checkout.Deps
	idleTTL  time.Duration
	logger   *zap.Logger
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session

	cart        *cart.Store
	unsubscribe func()
}

func NewRegistry(coupons coupon.Backend, deps checkout.Deps, idleTTL time.Duration, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	if idleTTL <= 0 {
		idleTTL = 30 * time.Minute
	}
	return &Registry{
		coupons:  coupons,
		checkout: deps,
		idleTTL:  idleTTL,
		logger:   log,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Get returns the session of id, creating it on first use.
func (r *Registry) Get(id d.Identity) *Session {
	now := r.now()

	r.mu.Lock()
	s, ok := r.sessions[id.Username]
	if !ok {
		s = &Session{
			Username: id.Username,
			Coupon:   coupon.NewValidator(r.coupons, r.logger),
			Checkout: checkout.New(r.checkout),
		}
		r.sessions[id.Username] = s
	}
	r.mu.Unlock()

	s.touch(now)
	return s
}

func (r *Registry) lookup(username string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[username]
	return s, ok
}

// Watch follows cart changes so that a coupon never outlives the cart it was
// applied to. The returned func stops watching.
func (r *Registry) Watch(store *cart.Store) func() {
	r.cart = store
	r.unsubscribe = store.Subscribe(func(ev cart.Event) {
		if ev.Kind == cart.EventOptimistic || !ev.Snapshot.IsEmpty() {
			return
		}
		s, ok := r.lookup(ev.Username)
		if !ok || s.Coupon.Applied() == nil {
			return
		}
		s.Coupon.Remove()
		r.logger.Debug("coupon removed from emptied cart", zap.String("username", ev.Username))
	})
	return r.unsubscribe
}

// Sweep drops sessions idle for longer than the TTL until ctx ends. Sessions
// with a payment in flight are kept.
func (r *Registry) Sweep(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.expire()
		case <-ctx.Done():
			return
		}
	}
}

func (r *Registry) expire() int {
	cutoff := r.now().Add(-r.idleTTL)

	r.mu.Lock()
	var dropped []string
	for name, s := range r.sessions {
		if s.idleSince().Before(cutoff) && !s.Checkout.InFlight() {
			delete(r.sessions, name)
			dropped = append(dropped, name)
		}
	}
	r.mu.Unlock()

	for _, name := range dropped {
		if r.cart != nil {
			r.cart.Forget(name)
		}
	}
	if len(dropped) > 0 {
		r.logger.Info("expired idle sessions", zap.Int("count", len(dropped)))
	}
	return len(dropped)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
