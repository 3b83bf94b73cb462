package domain

// PriceBreakdown is derived from a cart and an optional coupon; it is never stored.
type PriceBreakdown struct {
	Subtotal  Money `json:"subtotal"`
	TaxAmount Money `json:"tax_amount"`
	Shipping  Money `json:"shipping"`
	Discount  Money `json:"discount"`
	Total     Money `json:"total"`
}

// PreDiscountTotal is subtotal + tax + shipping.
func (b PriceBreakdown) PreDiscountTotal() Money {
	return b.Subtotal.Add(b.TaxAmount).Add(b.Shipping)
}
