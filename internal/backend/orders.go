package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	d "github.com/fjod/go_cart/storefront/domain"
)

const (
	pathSaveOrder   = "/api/orders/save"
	pathUserOrders  = "/api/orders/user/"
	orderDateLayout = "2006-01-02T15:04:05.000Z"
)

type orderItemDTO struct {
	ProductID   int64   `json:"productId"`
	ProductName string  `json:"productName"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
	ItemTotal   float64 `json:"itemTotal"`
}

type orderDTO struct {
	OrderID         string         `json:"orderId"`
	Username        string         `json:"username"`
	CustomerName    string         `json:"customerName"`
	CustomerEmail   string         `json:"customerEmail"`
	OrderDate       string         `json:"orderDate"`
	TotalAmount     float64        `json:"totalAmount"`
	Status          string         `json:"status"`
	ShippingAddress string         `json:"shippingAddress"`
	Items           []orderItemDTO `json:"items"`
	CouponCode      *string        `json:"couponCode"`
	DiscountAmount  float64        `json:"discountAmount"`
}

// SaveOrder persists a settled order. Any failure wraps
// ErrOrderPersistenceFailure as well as the transport cause.
func (c *Client) SaveOrder(ctx context.Context, order *d.Order) error {
	resp, err := c.do(ctx, http.MethodPost, pathSaveOrder, nil, fromOrder(order))
	if err != nil {
		return fmt.Errorf("%w: %w", d.ErrOrderPersistenceFailure, err)
	}
	if err := expectOK(http.MethodPost, pathSaveOrder, resp); err != nil {
		return fmt.Errorf("%w: %w", d.ErrOrderPersistenceFailure, err)
	}
	return nil
}

// ListOrders returns the user's order history as stored by the backend.
func (c *Client) ListOrders(ctx context.Context, username string) ([]d.Order, error) {
	path := pathUserOrders + url.PathEscape(username)
	resp, err := c.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	if err := expectOK(http.MethodGet, path, resp); err != nil {
		return nil, err
	}

	var dtos []orderDTO
	if err := decode(http.MethodGet, path, resp, &dtos); err != nil {
		return nil, err
	}
	orders := make([]d.Order, 0, len(dtos))
	for _, o := range dtos {
		orders = append(orders, toOrder(o))
	}
	return orders, nil
}

func fromOrder(o *d.Order) orderDTO {
	items := make([]orderItemDTO, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemDTO{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Price:       it.Price.InexactFloat64(),
			Quantity:    it.Quantity,
			ItemTotal:   it.ItemTotal.InexactFloat64(),
		})
	}
	return orderDTO{
		OrderID:         o.OrderID,
		Username:        o.Username,
		CustomerName:    o.CustomerName,
		CustomerEmail:   o.CustomerEmail,
		OrderDate:       o.OrderDate.UTC().Format(orderDateLayout),
		TotalAmount:     o.TotalAmount.InexactFloat64(),
		Status:          string(o.Status),
		ShippingAddress: o.ShippingAddress,
		Items:           items,
		CouponCode:      o.CouponCode,
		DiscountAmount:  o.DiscountAmount.InexactFloat64(),
	}
}

func toOrder(o orderDTO) d.Order {
	items := make([]d.OrderItem, 0, len(o.Items))
	for _, it := range o.Items {
		price := d.NewMoney(it.Price)
		total := d.NewMoney(it.ItemTotal)
		if total.IsZero() {
			total = d.CartLine{UnitPrice: price, Quantity: it.Quantity}.ItemTotal()
		}
		items = append(items, d.OrderItem{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Price:       price,
			Quantity:    it.Quantity,
			ItemTotal:   total,
		})
	}
	return d.Order{
		OrderID:         o.OrderID,
		Username:        o.Username,
		CustomerName:    o.CustomerName,
		CustomerEmail:   o.CustomerEmail,
		OrderDate:       parseOrderDate(o.OrderDate),
		Items:           items,
		ShippingAddress: o.ShippingAddress,
		CouponCode:      o.CouponCode,
		DiscountAmount:  d.NewMoney(o.DiscountAmount),
		TotalAmount:     d.NewMoney(o.TotalAmount),
		Status:          d.OrderStatus(o.Status),
	}
}

// parseOrderDate accepts RFC 3339 and the zone-less local date-time the
// backend serializes.
func parseOrderDate(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
