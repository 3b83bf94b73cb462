package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ProductSnapshot struct {
	Name        string `json:"name"`
	Category    string `json:"category,omitempty"`
	PhotoRef    string `json:"photo_ref,omitempty"`
	Description string `json:"description,omitempty"`
}

type CartLine struct {
	ProductID int64           `json:"product_id"`
	UnitPrice Money           `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Product   ProductSnapshot `json:"product"`
}

// ItemTotal is unitPrice × quantity.
func (l CartLine) ItemTotal() Money {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// CartSnapshot represents the cart as last reported by the backend.
// TotalPriceHint is the server's own total and is only trusted when the
// payload carried no line list at all.
type CartSnapshot struct {
	Lines          []CartLine `json:"lines"`
	TotalPriceHint Money      `json:"total_price_hint"`
	FetchedAt      time.Time  `json:"fetched_at"`
}

func (c *CartSnapshot) IsEmpty() bool {
	return c == nil || len(c.Lines) == 0
}

// Subtotal recomputes Σ unitPrice × quantity.
func (c *CartSnapshot) Subtotal() Money {
	if c == nil {
		return Zero
	}
	if c.Lines == nil {
		return MaxZero(c.TotalPriceHint)
	}
	return linesTotal(c.Lines)
}

func linesTotal(lines []CartLine) Money {
	sum := Zero
	for _, l := range lines {
		sum = sum.Add(l.ItemTotal())
	}
	return sum
}

func (c *CartSnapshot) Line(productID int64) (CartLine, bool) {
	if c == nil {
		return CartLine{}, false
	}
	for _, l := range c.Lines {
		if l.ProductID == productID {
			return l, true
		}
	}
	return CartLine{}, false
}

// Clone returns a copy whose line slice can be changed without touching c.
func (c *CartSnapshot) Clone() *CartSnapshot {
	if c == nil {
		return &CartSnapshot{Lines: []CartLine{}}
	}
	lines := make([]CartLine, len(c.Lines))
	copy(lines, c.Lines)
	if c.Lines == nil {
		lines = nil
	}
	return &CartSnapshot{Lines: lines, TotalPriceHint: c.TotalPriceHint, FetchedAt: c.FetchedAt}
}

// WithQuantity returns a copy with the line's quantity replaced.
func (c *CartSnapshot) WithQuantity(productID int64, quantity int) *CartSnapshot {
	next := c.Clone()
	for i := range next.Lines {
		if next.Lines[i].ProductID == productID {
			next.Lines[i].Quantity = quantity
		}
	}
	next.TotalPriceHint = linesTotal(next.Lines)
	return next
}

// Without returns a copy with the line removed.
func (c *CartSnapshot) Without(productID int64) *CartSnapshot {
	next := c.Clone()
	lines := next.Lines[:0]
	for _, l := range next.Lines {
		if l.ProductID != productID {
			lines = append(lines, l)
		}
	}
	next.Lines = lines
	next.TotalPriceHint = linesTotal(lines)
	return next
}
