package domain

import "strings"

type DiscountType string

const (
	DiscountPercentage DiscountType = "PERCENTAGE"
	DiscountFixed      DiscountType = "FIXED"
)

// ParseDiscountType accepts the backend's spellings; FIXED_AMOUNT is FIXED.
func ParseDiscountType(s string) (DiscountType, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PERCENTAGE", "PERCENT":
		return DiscountPercentage, true
	case "FIXED", "FIXED_AMOUNT":
		return DiscountFixed, true
	}
	return "", false
}

type Coupon struct {
	Code           string       `json:"code"`
	DiscountType   DiscountType `json:"discount_type"`
	DiscountValue  Money        `json:"discount_value"`
	MinOrderAmount Money        `json:"min_order_amount"`
}
