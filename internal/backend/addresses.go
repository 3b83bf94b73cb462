package backend

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	d "github.com/fjod/go_cart/storefront/domain"
)

const pathUserAddresses = "/api/addresses/user/"

type addressDTO struct {
	ID          int64  `json:"id"`
	AddressType string `json:"addressType"`
	FullName    string `json:"fullName"`
	PhoneNumber string `json:"phoneNumber"`
	Street      string `json:"street"`
	City        string `json:"city"`
	State       string `json:"state"`
	ZipCode     string `json:"zipCode"`
	Country     string `json:"country"`
	IsDefault   bool   `json:"isDefault"`
}

func (c *Client) ListAddresses(ctx context.Context, username string) ([]d.Address, error) {
	path := pathUserAddresses + url.PathEscape(username)
	resp, err := c.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	if err := expectOK(http.MethodGet, path, resp); err != nil {
		return nil, err
	}

	var dtos []addressDTO
	if err := decode(http.MethodGet, path, resp, &dtos); err != nil {
		return nil, err
	}
	out := make([]d.Address, 0, len(dtos))
	for _, a := range dtos {
		out = append(out, d.Address{
			ID:          a.ID,
			FullName:    a.FullName,
			PhoneNumber: a.PhoneNumber,
			Street:      a.Street,
			City:        a.City,
			State:       a.State,
			ZipCode:     a.ZipCode,
			Country:     a.Country,
			AddressType: addressType(a.AddressType),
			IsDefault:   a.IsDefault,
		})
	}
	return out, nil
}

func addressType(s string) d.AddressType {
	switch d.AddressType(strings.ToUpper(s)) {
	case d.AddressHome:
		return d.AddressHome
	case d.AddressWork:
		return d.AddressWork
	}
	return d.AddressOther
}
