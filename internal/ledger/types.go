package ledger

// AccountType represents the type of TigerBeetle account.
type AccountType uint8

const (
	// AccountTypeCustomerFunds is the per-customer clearing account fees are
	// collected from.
	AccountTypeCustomerFunds AccountType = 0x01

	// AccountTypeFeeIncome holds collected platform fees per currency.
	AccountTypeFeeIncome AccountType = 0x02

	// AccountTypeDiscountGrants tracks discount value given away per currency.
	AccountTypeDiscountGrants AccountType = 0x03
)

// String returns a human-readable name for the account type.
func (t AccountType) String() string {
	switch t {
	case AccountTypeCustomerFunds:
		return "CUSTOMER_FUNDS"
	case AccountTypeFeeIncome:
		return "FEE_INCOME"
	case AccountTypeDiscountGrants:
		return "DISCOUNT_GRANTS"
	default:
		return "UNKNOWN"
	}
}

// Currency represents ISO 4217 currency codes as ledger IDs.
type Currency uint32

const (
	CurrencyUSD Currency = 840
	CurrencyEUR Currency = 978
	CurrencyGBP Currency = 826
	CurrencyNGN Currency = 566
	CurrencyKES Currency = 404
	CurrencyINR Currency = 356
)

// String returns the ISO 4217 code for the currency.
func (c Currency) String() string {
	switch c {
	case CurrencyUSD:
		return "USD"
	case CurrencyEUR:
		return "EUR"
	case CurrencyGBP:
		return "GBP"
	case CurrencyNGN:
		return "NGN"
	case CurrencyKES:
		return "KES"
	case CurrencyINR:
		return "INR"
	default:
		return "UNKNOWN"
	}
}

// CurrencyFromString converts a currency code string to Currency.
func CurrencyFromString(s string) Currency {
	switch s {
	case "USD":
		return CurrencyUSD
	case "EUR":
		return CurrencyEUR
	case "GBP":
		return CurrencyGBP
	case "NGN":
		return CurrencyNGN
	case "KES":
		return CurrencyKES
	case "INR":
		return CurrencyINR
	default:
		return 0
	}
}
