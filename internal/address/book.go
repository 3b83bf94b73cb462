package address

import (
	"context"
	"fmt"

	d "github.com/fjod/go_cart/storefront/domain"
)

type Backend interface {
	ListAddresses(ctx context.Context, username string) ([]d.Address, error)
}

// Book reads a shopper's saved addresses. Editing them is the backend's job.
type Book struct {
	backend Backend
}

func NewBook(backend Backend) *Book {
	return &Book{backend: backend}
}

func (b *Book) List(ctx context.Context, id d.Identity) ([]d.Address, error) {
	if id.IsZero() {
		return nil, d.ErrNotAuthenticated
	}
	addrs, err := b.backend.ListAddresses(ctx, id.Username)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	return addrs, nil
}

// Find returns the address with the given id.
func (b *Book) Find(ctx context.Context, id d.Identity, addressID int64) (*d.Address, error) {
	addrs, err := b.List(ctx, id)
	if err != nil {
		return nil, err
	}
	for i := range addrs {
		if addrs[i].ID == addressID {
			return &addrs[i], nil
		}
	}
	return nil, fmt.Errorf("%w: address %d not found", d.ErrAddressRequired, addressID)
}

// Preferred picks the default address, else the first one, else nil.
func Preferred(addrs []d.Address) *d.Address {
	for i := range addrs {
		if addrs[i].IsDefault {
			return &addrs[i]
		}
	}
	if len(addrs) > 0 {
		return &addrs[0]
	}
	return nil
}
