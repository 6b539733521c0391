package types

import "strings"

// Address is the shipping destination captured on an order. Stored as jsonb
// on the order row; immutable once the order is created.
type Address struct {
	Line1      string  `json:"line1" validate:"required"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city" validate:"required"`
	State      string  `json:"state" validate:"required"`
	PostalCode string  `json:"postal_code" validate:"required"`
	Country    string  `json:"country"`
}

// Normalize trims fields and defaults the country.
func (a *Address) Normalize() {
	a.Line1 = strings.TrimSpace(a.Line1)
	a.City = strings.TrimSpace(a.City)
	a.State = strings.TrimSpace(a.State)
	a.PostalCode = strings.TrimSpace(a.PostalCode)
	a.Country = strings.TrimSpace(a.Country)
	if a.Country == "" {
		a.Country = "IN"
	}
}

// Complete reports whether all required fields are present.
func (a Address) Complete() bool {
	return a.Line1 != "" && a.City != "" && a.State != "" && a.PostalCode != ""
}
