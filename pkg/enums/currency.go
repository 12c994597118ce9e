package enums

// Currency is the ISO 4217 currency code orders are priced in.
type Currency string

const (
	CurrencyUSD Currency = "USD"
)
