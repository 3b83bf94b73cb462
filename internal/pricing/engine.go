// Package pricing computes cart totals. Everything here is a pure function of
// its inputs.
package pricing

import (
	"github.com/shopspring/decimal"

	d "github.com/fjod/go_cart/storefront/domain"
)

var (
	DefaultTaxRate     = decimal.RequireFromString("0.18")
	DefaultShippingFee = decimal.NewFromInt(50)

	hundred = decimal.NewFromInt(100)
)

type Engine struct {
	TaxRate     decimal.Decimal
	ShippingFee decimal.Decimal
}

func NewEngine(taxRate, shippingFee decimal.Decimal) *Engine {
	return &Engine{TaxRate: taxRate, ShippingFee: shippingFee}
}

// Default uses an 18% tax rate and a flat shipping fee of 50.
func Default() *Engine {
	return NewEngine(DefaultTaxRate, DefaultShippingFee)
}

// ComputeBreakdown derives subtotal, tax, shipping, discount and total.
// The discount never exceeds subtotal+tax+shipping and the total never goes
// below zero.
func (e *Engine) ComputeBreakdown(cart *d.CartSnapshot, coupon *d.Coupon) d.PriceBreakdown {
	return e.breakdown(cart.Subtotal(), coupon)
}

// FromSubtotal prices an already known subtotal with a fixed discount amount,
// as recorded on a historical order.
func (e *Engine) FromSubtotal(subtotal, discount decimal.Decimal) d.PriceBreakdown {
	b := e.breakdown(subtotal, nil)
	b.Discount = decimal.Min(d.MaxZero(discount), b.PreDiscountTotal())
	b.Total = d.MaxZero(b.PreDiscountTotal().Sub(b.Discount))
	return b
}

// PreDiscountTotal is the order amount coupons are validated against.
func (e *Engine) PreDiscountTotal(cart *d.CartSnapshot) decimal.Decimal {
	return e.breakdown(cart.Subtotal(), nil).PreDiscountTotal()
}

func (e *Engine) breakdown(subtotal decimal.Decimal, coupon *d.Coupon) d.PriceBreakdown {
	subtotal = d.MaxZero(subtotal)
	tax := d.RoundMinor(subtotal.Mul(e.TaxRate))

	shipping := decimal.Zero
	if subtotal.IsPositive() {
		shipping = e.ShippingFee
	}

	gross := subtotal.Add(tax).Add(shipping)
	discount := decimal.Min(Discount(gross, coupon), gross)

	return d.PriceBreakdown{
		Subtotal:  subtotal,
		TaxAmount: tax,
		Shipping:  shipping,
		Discount:  discount,
		Total:     d.MaxZero(gross.Sub(discount)),
	}
}

// Discount is the uncapped discount a coupon grants on a pre-discount total.
func Discount(gross decimal.Decimal, coupon *d.Coupon) decimal.Decimal {
	if coupon == nil {
		return decimal.Zero
	}
	switch coupon.DiscountType {
	case d.DiscountPercentage:
		return d.MaxZero(d.RoundMinor(gross.Mul(coupon.DiscountValue).Div(hundred)))
	case d.DiscountFixed:
		return d.MaxZero(coupon.DiscountValue)
	}
	return decimal.Zero
}
