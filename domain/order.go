package domain

import "time"

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusConfirmed  OrderStatus = "CONFIRMED"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

type OrderItem struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Price       Money  `json:"price"`
	Quantity    int    `json:"quantity"`
	ItemTotal   Money  `json:"item_total"`
}

// Order is created once per successful payment and is immutable afterwards.
// Breakdown is only known for orders built in this process; history fetched
// from the backend leaves it nil.
type Order struct {
	OrderID         string          `json:"order_id"`
	Username        string          `json:"username"`
	CustomerName    string          `json:"customer_name"`
	CustomerEmail   string          `json:"customer_email"`
	OrderDate       time.Time       `json:"order_date"`
	Items           []OrderItem     `json:"items"`
	ShippingAddress string          `json:"shipping_address"`
	CouponCode      *string         `json:"coupon_code,omitempty"`
	DiscountAmount  Money           `json:"discount_amount"`
	TotalAmount     Money           `json:"total_amount"`
	Status          OrderStatus     `json:"status"`
	Breakdown       *PriceBreakdown `json:"-"`
}

// ItemsFromCart snapshots cart lines into order items.
func ItemsFromCart(cart *CartSnapshot) []OrderItem {
	if cart == nil {
		return nil
	}
	items := make([]OrderItem, 0, len(cart.Lines))
	for _, l := range cart.Lines {
		items = append(items, OrderItem{
			ProductID:   l.ProductID,
			ProductName: l.Product.Name,
			Price:       l.UnitPrice,
			Quantity:    l.Quantity,
			ItemTotal:   l.ItemTotal(),
		})
	}
	return items
}
