package enums

// CartStatus tracks whether a cart can still be mutated.
type CartStatus string

const (
	CartStatusActive    CartStatus = "active"
	CartStatusConverted CartStatus = "converted"
	CartStatusAbandoned CartStatus = "abandoned"
)

// IsValid reports whether the value is a known cart status.
func (s CartStatus) IsValid() bool {
	switch s {
	case CartStatusActive, CartStatusConverted, CartStatusAbandoned:
		return true
	}
	return false
}
