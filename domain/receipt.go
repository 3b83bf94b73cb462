package domain

import "time"

type PaymentIDs struct {
	PaymentID       string `json:"payment_id"`
	ProviderOrderID string `json:"provider_order_id"`
	Signature       string `json:"signature"`
}

// PaymentFailure is what a provider reports when a payment does not go through.
type PaymentFailure struct {
	ProviderOrderID string `json:"provider_order_id"`
	Code            string `json:"code,omitempty"`
	Description     string `json:"description"`
}

type Receipt struct {
	OrderID         string      `json:"order_id"`
	Date            string      `json:"date"`
	Time            string      `json:"time"`
	Customer        string      `json:"customer"`
	CustomerEmail   string      `json:"customer_email"`
	ShippingAddress string      `json:"shipping_address"`
	Items           []OrderItem `json:"items"`
	Subtotal        Money       `json:"subtotal"`
	Tax             Money       `json:"tax"`
	Shipping        Money       `json:"shipping"`
	Discount        Money       `json:"discount"`
	Total           Money       `json:"total"`
	CouponCode      *string     `json:"coupon_code,omitempty"`
	Payment         PaymentIDs  `json:"payment"`
	IssuedAt        time.Time   `json:"issued_at"`
}
