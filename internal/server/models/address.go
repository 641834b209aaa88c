package models

// AddressKind selects the table an address lives in.
type AddressKind string

const (
	ShippingAddress AddressKind = "shipping"
	BillingAddress  AddressKind = "billing"
)

// Address is a postal address. Each user has at most one of each kind.
type Address struct {
	Street string `json:"street"`
	City   string `json:"city"`
	State  string `json:"state"`
	Zip    string `json:"zip"`
}
