package types

// Address is the shipping/contact address snapshot denormalized onto an
// order at creation time. Stored as jsonb; later profile edits never touch
// historical orders.
type Address struct {
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	State      string  `json:"state"`
	PostalCode string  `json:"postal_code"`
	Country    string  `json:"country"`
}
