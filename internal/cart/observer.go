package cart

import d "github.com/fjod/go_cart/storefront/domain"

type EventKind string

const (
	// EventOptimistic is a local change not yet confirmed by the backend.
	EventOptimistic EventKind = "optimistic"
	EventConfirmed  EventKind = "confirmed"
	// EventReconciled follows a failed mutation once backend state was refetched.
	EventReconciled EventKind = "reconciled"
	EventCleared    EventKind = "cleared"
)

type Event struct {
	Username string
	Snapshot *d.CartSnapshot
	Kind     EventKind
}

// Listener is called synchronously on the goroutine that changed the cart.
// It must not call back into the store's mutating methods.
type Listener func(Event)

// Subscribe registers l for cart changes of every user.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = l
	s.subsMu.Unlock()

	return func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
}

func (s *Store) publish(ev Event) {
	s.subsMu.RLock()
	listeners := make([]Listener, 0, len(s.subs))
	for _, l := range s.subs {
		listeners = append(listeners, l)
	}
	s.subsMu.RUnlock()

	for _, l := range listeners {
		l(Event{Username: ev.Username, Snapshot: ev.Snapshot.Clone(), Kind: ev.Kind})
	}
}
