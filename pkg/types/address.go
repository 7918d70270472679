package types

import "strings"

// ShippingAddress is the destination a physical order ships to.
type ShippingAddress struct {
	Name    string `json:"name" validate:"required"`
	Address string `json:"address" validate:"required"`
	City    string `json:"city" validate:"required"`
	Pincode string `json:"pincode" validate:"required"`
	Country string `json:"country" validate:"required"`
	Phone   string `json:"phone" validate:"required"`
}

// Complete reports whether every field required for dispatch is present.
func (a ShippingAddress) Complete() bool {
	for _, field := range []string{a.Name, a.Address, a.City, a.Pincode, a.Country, a.Phone} {
		if strings.TrimSpace(field) == "" {
			return false
		}
	}
	return true
}
