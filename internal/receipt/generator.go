// Package receipt builds, renders and keeps the receipts of a session.
package receipt

import (
	"time"

	"github.com/shopspring/decimal"

	d "github.com/fjod/go_cart/storefront/domain"
	"github.com/fjod/go_cart/storefront/internal/pricing"
)

const (
	dateLayout = "02 Jan 2006"
	timeLayout = "15:04:05"

	addressNotSpecified = "Address not specified"
)

// Header is printed at the top of every receipt.
type Header struct {
	StoreName string
	Address   string
	Contact   string
}

func DefaultHeader() Header {
	return Header{
		StoreName: "SalesSavvy Store",
		Address:   "123 Shopping Street, Retail City",
		Contact:   "Phone: +91 9876543210 | Email: info@salesavvy.com",
	}
}

type Generator struct {
	engine *pricing.Engine
	header Header
	loc    *time.Location
	now    func() time.Time
}

type Option func(*Generator)

func WithHeader(h Header) Option {
	return func(g *Generator) { g.header = h }
}

func WithLocation(loc *time.Location) Option {
	return func(g *Generator) { g.loc = loc }
}

func NewGenerator(engine *pricing.Engine, opts ...Option) *Generator {
	if engine == nil {
		engine = pricing.Default()
	}
	g := &Generator{
		engine: engine,
		header: DefaultHeader(),
		loc:    time.UTC,
		now:    time.Now,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Build derives a receipt from an order. Orders built in this process carry
// their breakdown; historical ones are re-priced from their items and keep
// the amount that was actually charged.
func (g *Generator) Build(order *d.Order, ids d.PaymentIDs) d.Receipt {
	items := make([]d.OrderItem, len(order.Items))
	subtotal := decimal.Zero
	for i, it := range order.Items {
		it.ItemTotal = it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		items[i] = it
		subtotal = subtotal.Add(it.ItemTotal)
	}

	var b d.PriceBreakdown
	if order.Breakdown != nil {
		b = *order.Breakdown
	} else {
		b = g.engine.FromSubtotal(subtotal, order.DiscountAmount)
		if !order.TotalAmount.IsZero() {
			b.Total = order.TotalAmount
		}
	}

	customer := order.CustomerName
	if customer == "" {
		customer = order.Username
	}
	email := order.CustomerEmail
	if email == "" {
		email = d.Identity{Username: order.Username}.ContactEmail()
	}
	address := order.ShippingAddress
	if address == "" {
		address = addressNotSpecified
	}

	date := order.OrderDate
	if date.IsZero() {
		date = g.now()
	}
	date = date.In(g.loc)

	return d.Receipt{
		OrderID:         order.OrderID,
		Date:            date.Format(dateLayout),
		Time:            date.Format(timeLayout),
		Customer:        customer,
		CustomerEmail:   email,
		ShippingAddress: address,
		Items:           items,
		Subtotal:        b.Subtotal,
		Tax:             b.TaxAmount,
		Shipping:        b.Shipping,
		Discount:        b.Discount,
		Total:           b.Total,
		CouponCode:      order.CouponCode,
		Payment:         ids,
		IssuedAt:        g.now().UTC(),
	}
}
