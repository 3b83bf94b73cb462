package backend

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	d "github.com/fjod/go_cart/storefront/domain"
)

const (
	pathGetCart    = "/api/cart/getCart"
	pathUpdateCart = "/api/cart/update"
	pathRemoveCart = "/api/cart/remove"
)

type productDTO struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
	Photo       string  `json:"photo"`
	Description string  `json:"description"`
}

type cartItemDTO struct {
	Product  productDTO `json:"product"`
	Quantity int        `json:"quantity"`
}

type cartDTO struct {
	Items      []cartItemDTO `json:"items"`
	TotalPrice float64       `json:"totalPrice"`
}

type updateCartDTO struct {
	ProductID int64  `json:"productId"`
	Username  string `json:"username"`
	Quantity  int    `json:"quantity"`
}

// GetCart fetches the authoritative cart. The backend answers either with
// {items, totalPrice} or with a bare item array.
func (c *Client) GetCart(ctx context.Context, username string) (*d.CartSnapshot, error) {
	q := url.Values{"username": {username}}
	resp, err := c.do(ctx, http.MethodGet, pathGetCart, q, nil)
	if err != nil {
		return nil, err
	}
	if err := expectOK(http.MethodGet, pathGetCart, resp); err != nil {
		return nil, err
	}

	var dto cartDTO
	if trimmed := bytes.TrimSpace(resp.body); len(trimmed) > 0 && trimmed[0] == '[' {
		if err := decode(http.MethodGet, pathGetCart, resp, &dto.Items); err != nil {
			return nil, err
		}
		if dto.Items == nil {
			dto.Items = []cartItemDTO{}
		}
	} else if err := decode(http.MethodGet, pathGetCart, resp, &dto); err != nil {
		return nil, err
	}

	return toSnapshot(dto, time.Now()), nil
}

func (c *Client) UpdateQuantity(ctx context.Context, username string, productID int64, quantity int) error {
	body := updateCartDTO{ProductID: productID, Username: username, Quantity: quantity}
	resp, err := c.do(ctx, http.MethodPost, pathUpdateCart, nil, body)
	if err != nil {
		return err
	}
	return expectOK(http.MethodPost, pathUpdateCart, resp)
}

func (c *Client) RemoveItem(ctx context.Context, username string, productID int64) error {
	q := url.Values{
		"productId": {strconv.FormatInt(productID, 10)},
		"username":  {username},
	}
	resp, err := c.do(ctx, http.MethodDelete, pathRemoveCart, q, nil)
	if err != nil {
		return err
	}
	return expectOK(http.MethodDelete, pathRemoveCart, resp)
}

// toSnapshot keeps lines unique by product id, summing duplicate rows.
func toSnapshot(dto cartDTO, now time.Time) *d.CartSnapshot {
	snap := &d.CartSnapshot{
		TotalPriceHint: d.NewMoney(dto.TotalPrice),
		FetchedAt:      now,
	}
	if dto.Items == nil {
		return snap
	}

	snap.Lines = make([]d.CartLine, 0, len(dto.Items))
	index := make(map[int64]int, len(dto.Items))
	for _, it := range dto.Items {
		if it.Quantity < 1 {
			continue
		}
		if i, ok := index[it.Product.ID]; ok {
			snap.Lines[i].Quantity += it.Quantity
			continue
		}
		index[it.Product.ID] = len(snap.Lines)
		snap.Lines = append(snap.Lines, d.CartLine{
			ProductID: it.Product.ID,
			UnitPrice: d.NewMoney(it.Product.Price),
			Quantity:  it.Quantity,
			Product: d.ProductSnapshot{
				Name:        it.Product.Name,
				Category:    it.Product.Category,
				PhotoRef:    it.Product.Photo,
				Description: it.Product.Description,
			},
		})
	}
	return snap
}
