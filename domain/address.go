package domain

import "fmt"

type AddressType string

const (
	AddressHome  AddressType = "HOME"
	AddressWork  AddressType = "WORK"
	AddressOther AddressType = "OTHER"
)

const unspecifiedAddress = "Address not specified"

type Address struct {
	ID          int64       `json:"id"`
	FullName    string      `json:"full_name"`
	PhoneNumber string      `json:"phone_number"`
	Street      string      `json:"street"`
	City        string      `json:"city"`
	State       string      `json:"state"`
	ZipCode     string      `json:"zip_code"`
	Country     string      `json:"country,omitempty"`
	AddressType AddressType `json:"address_type"`
	IsDefault   bool        `json:"is_default"`
}

// Flatten renders the address the way orders store it.
func (a *Address) Flatten() string {
	if a == nil {
		return unspecifiedAddress
	}
	return fmt.Sprintf("%s, %s, %s %s", a.Street, a.City, a.State, a.ZipCode)
}
