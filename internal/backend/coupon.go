package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	d "github.com/fjod/go_cart/storefront/domain"
)

const pathValidateCoupon = "/api/coupons/validate"

type couponDTO struct {
	Code           string  `json:"code"`
	DiscountType   string  `json:"discountType"`
	DiscountValue  float64 `json:"discountValue"`
	MinOrderAmount float64 `json:"minOrderAmount"`
}

// couponValidationDTO accepts both a bare coupon and the
// {coupon, discountAmount, finalAmount, discountType} envelope.
type couponValidationDTO struct {
	couponDTO
	Coupon *couponDTO `json:"coupon"`
}

// ValidateCoupon asks the backend whether code applies to orderAmount, the
// pre-discount total.
func (c *Client) ValidateCoupon(ctx context.Context, code string, orderAmount decimal.Decimal) (*d.Coupon, error) {
	q := url.Values{
		"code":        {code},
		"orderAmount": {orderAmount.StringFixed(d.MinorUnitPlaces)},
	}
	resp, err := c.do(ctx, http.MethodGet, pathValidateCoupon, q, nil)
	if err != nil {
		return nil, err
	}
	if err := expectOK(http.MethodGet, pathValidateCoupon, resp); err != nil {
		var se *StatusError
		if errors.As(err, &se) && errors.Is(err, ErrRejected) {
			msg := se.Message
			if msg == "" {
				msg = "Invalid coupon code"
			}
			return nil, fmt.Errorf("%w: %s", d.ErrInvalidCoupon, msg)
		}
		return nil, err
	}

	var dto couponValidationDTO
	if err := decode(http.MethodGet, pathValidateCoupon, resp, &dto); err != nil {
		return nil, err
	}

	src := dto.couponDTO
	if dto.Coupon != nil {
		src = *dto.Coupon
		if src.DiscountType == "" {
			src.DiscountType = dto.DiscountType
		}
	}
	dt, ok := d.ParseDiscountType(src.DiscountType)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported discount type %q", d.ErrInvalidCoupon, src.DiscountType)
	}
	if src.Code == "" {
		src.Code = code
	}

	return &d.Coupon{
		Code:           src.Code,
		DiscountType:   dt,
		DiscountValue:  d.NewMoney(src.DiscountValue),
		MinOrderAmount: d.NewMoney(src.MinOrderAmount),
	}, nil
}
