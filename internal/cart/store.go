package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	d "github.com/fjod/go_cart/storefront/domain"
	"github.com/fjod/go_cart/storefront/pkg/logger"
)

const clearConcurrency = 8

// Backend is the part of the storefront backend the store talks to.
type Backend interface {
	GetCart(ctx context.Context, username string) (*d.CartSnapshot, error)
	UpdateQuantity(ctx context.Context, username string, productID int64, quantity int) error
	RemoveItem(ctx context.Context, username string, productID int64) error
}

// Store owns every user's cart snapshot. Mutations are applied optimistically,
// confirmed by the backend and reconciled by refetching when a request fails.
// Concurrent mutations for the same user are last-response-wins.
type Store struct {
	backend Backend
	logger  *zap.Logger
	sfg     singleflight.Group // collapses concurrent loads for one user

	mu    sync.RWMutex
	carts map[string]*d.CartSnapshot

	subsMu  sync.RWMutex
	subs    map[int]Listener
	nextSub int
}

func NewStore(backend Backend, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		backend: backend,
		logger:  log,
		carts:   make(map[string]*d.CartSnapshot),
		subs:    make(map[int]Listener),
	}
}

// Load fetches the authoritative cart. Without an identity it fails closed
// before any network call.
func (s *Store) Load(ctx context.Context, id d.Identity) (*d.CartSnapshot, error) {
	if id.IsZero() {
		return nil, d.ErrNotAuthenticated
	}
	snap, err := s.fetch(ctx, id.Username)
	if err != nil {
		return nil, err
	}
	s.commit(id.Username, snap, EventConfirmed)
	return snap.Clone(), nil
}

// Snapshot returns the last confirmed snapshot without a network call.
func (s *Store) Snapshot(id d.Identity) (*d.CartSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.carts[id.Username]
	if !ok {
		return nil, false
	}
	return snap.Clone(), true
}

// SetQuantity replaces the line's quantity. A quantity below one removes the line.
func (s *Store) SetQuantity(ctx context.Context, id d.Identity, productID int64, quantity int) (*d.CartSnapshot, error) {
	if id.IsZero() {
		return nil, d.ErrNotAuthenticated
	}
	if quantity < 1 {
		return s.Remove(ctx, id, productID)
	}

	prev, known := s.cached(id.Username)
	s.publish(Event{Username: id.Username, Snapshot: prev.WithQuantity(productID, quantity), Kind: EventOptimistic})

	if err := s.backend.UpdateQuantity(ctx, id.Username, productID, quantity); err != nil {
		logger.FromContext(ctx, s.logger).Warn("cart update failed, reconciling",
			zap.String("username", id.Username),
			zap.Int64("product_id", productID),
			zap.Int("quantity", quantity),
			zap.Error(err))
		s.reconcile(ctx, id.Username, lastKnown(prev, known))
		return nil, fmt.Errorf("update quantity of product %d: %w", productID, err)
	}

	next, err := s.confirm(ctx, id.Username, productID, true, func(c *d.CartSnapshot) *d.CartSnapshot {
		return c.WithQuantity(productID, quantity)
	})
	if err != nil {
		return nil, err
	}
	return next.Clone(), nil
}

// Remove deletes the line for productID.
func (s *Store) Remove(ctx context.Context, id d.Identity, productID int64) (*d.CartSnapshot, error) {
	if id.IsZero() {
		return nil, d.ErrNotAuthenticated
	}

	prev, known := s.cached(id.Username)
	s.publish(Event{Username: id.Username, Snapshot: prev.Without(productID), Kind: EventOptimistic})

	if err := s.backend.RemoveItem(ctx, id.Username, productID); err != nil {
		logger.FromContext(ctx, s.logger).Warn("cart remove failed, reconciling",
			zap.String("username", id.Username),
			zap.Int64("product_id", productID),
			zap.Error(err))
		s.reconcile(ctx, id.Username, lastKnown(prev, known))
		return nil, fmt.Errorf("remove product %d: %w", productID, err)
	}

	next, err := s.confirm(ctx, id.Username, productID, false, func(c *d.CartSnapshot) *d.CartSnapshot {
		return c.Without(productID)
	})
	if err != nil {
		return nil, err
	}
	return next.Clone(), nil
}

// Clear removes the given lines concurrently. Failures are logged and returned
// joined; they are not retried.
func (s *Store) Clear(ctx context.Context, id d.Identity, lines []d.CartLine) error {
	if id.IsZero() {
		return d.ErrNotAuthenticated
	}
	log := logger.FromContext(ctx, s.logger)

	var (
		mu   sync.Mutex
		errs []error
		g    errgroup.Group
	)
	g.SetLimit(clearConcurrency)
	for _, line := range lines {
		productID := line.ProductID
		g.Go(func() error {
			if err := s.backend.RemoveItem(ctx, id.Username, productID); err != nil {
				log.Error("failed to remove cart line after payment",
					zap.String("username", id.Username),
					zap.Int64("product_id", productID),
					zap.Error(err))
				mu.Lock()
				errs = append(errs, fmt.Errorf("remove product %d: %w", productID, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	s.commit(id.Username, &d.CartSnapshot{Lines: []d.CartLine{}, FetchedAt: time.Now()}, EventCleared)

	if len(errs) > 0 {
		s.reconcile(ctx, id.Username, nil)
		return errors.Join(errs...)
	}
	return nil
}

// Forget drops the cached snapshot of a user.
func (s *Store) Forget(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, username)
}

func (s *Store) fetch(ctx context.Context, username string) (*d.CartSnapshot, error) {
	v, err, _ := s.sfg.Do(username, func() (interface{}, error) {
		return s.backend.GetCart(ctx, username)
	})
	if err != nil {
		return nil, err
	}
	return v.(*d.CartSnapshot), nil
}

// reconcile replaces local state with the backend's. If the refetch fails too,
// fallback (the last known-good snapshot) is restored.
func (s *Store) reconcile(ctx context.Context, username string, fallback *d.CartSnapshot) {
	snap, err := s.fetch(ctx, username)
	if err != nil {
		logger.FromContext(ctx, s.logger).Warn("cart refetch failed",
			zap.String("username", username),
			zap.Error(err))
		if fallback == nil {
			return
		}
		snap = fallback
	}
	s.commit(username, snap, EventReconciled)
}

// confirm applies a mutation the backend accepted. When there is no local
// line to patch, the backend's cart is fetched instead. With nothing cached
// and no refetch there is no cart to confirm, so nothing is committed.
func (s *Store) confirm(ctx context.Context, username string, productID int64, needsLine bool, apply func(*d.CartSnapshot) *d.CartSnapshot) (*d.CartSnapshot, error) {
	cur, ok := s.cached(username)
	if ok {
		if _, has := cur.Line(productID); has || !needsLine {
			next := apply(cur)
			s.commit(username, next, EventConfirmed)
			return next, nil
		}
	}

	snap, err := s.fetch(ctx, username)
	if err != nil {
		logger.FromContext(ctx, s.logger).Warn("cart refetch after mutation failed",
			zap.String("username", username),
			zap.Error(err))
		if !ok {
			return nil, fmt.Errorf("refetch cart after change to product %d: %w", productID, err)
		}
		snap = apply(cur)
	}
	s.commit(username, snap, EventConfirmed)
	return snap, nil
}

// lastKnown is the reconcile fallback: nil when the cart was never loaded.
func lastKnown(snap *d.CartSnapshot, known bool) *d.CartSnapshot {
	if !known {
		return nil
	}
	return snap
}

func (s *Store) cached(username string) (*d.CartSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.carts[username]
	return snap.Clone(), ok
}

func (s *Store) commit(username string, snap *d.CartSnapshot, kind EventKind) {
	s.mu.Lock()
	s.carts[username] = snap
	s.mu.Unlock()

	s.publish(Event{Username: username, Snapshot: snap, Kind: kind})
}
