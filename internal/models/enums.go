package models

// FeeType categorizes the financial operation being priced.
type FeeType string

const (
	FeeTypeDeposit      FeeType = "DEPOSIT"
	FeeTypeTransfer     FeeType = "TRANSFER"
	FeeTypeWithdrawal   FeeType = "WITHDRAWAL"
	FeeTypeCard         FeeType = "CARD"
	FeeTypeLoan         FeeType = "LOAN"
	FeeTypeSubscription FeeType = "SUBSCRIPTION"
)

// Valid returns true if the fee type is a known category.
func (t FeeType) Valid() bool {
	switch t {
	case FeeTypeDeposit, FeeTypeTransfer, FeeTypeWithdrawal, FeeTypeCard, FeeTypeLoan, FeeTypeSubscription:
		return true
	default:
		return false
	}
}

// FeeValueType describes how a fee definition's value is interpreted.
type FeeValueType string

const (
	FeeValuePercentage FeeValueType = "PERCENTAGE"
	FeeValueFlat       FeeValueType = "FLAT"
)

// Valid returns true if the value type is known.
func (t FeeValueType) Valid() bool {
	return t == FeeValuePercentage || t == FeeValueFlat
}

// DiscountValueType describes how a discount rule's value is interpreted.
type DiscountValueType string

const (
	DiscountPercentageOff DiscountValueType = "PERCENTAGE_OFF"
	DiscountFlatOff       DiscountValueType = "FLAT_OFF"
)

// Valid returns true if the discount type is known.
func (t DiscountValueType) Valid() bool {
	return t == DiscountPercentageOff || t == DiscountFlatOff
}

// AccountType represents the kind of customer account making a request.
type AccountType string

const (
	AccountTypePersonal AccountType = "PERSONAL"
	AccountTypeBusiness AccountType = "BUSINESS"
)

// Valid returns true if the account type is known.
func (t AccountType) Valid() bool {
	return t == AccountTypePersonal || t == AccountTypeBusiness
}
