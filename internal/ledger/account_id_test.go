package ledger

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestAccountIDRoundTrip(t *testing.T) {
	id := NewAccountID(0xDEADBEEF, AccountTypeFeeIncome, CurrencyEUR)

	assert.Equal(t, uint64(0xDEADBEEF), id.Owner())
	assert.Equal(t, AccountTypeFeeIncome, id.AccountType())
	assert.Equal(t, CurrencyEUR, id.Currency())
	assert.False(t, id.IsSystemAccount())
}

func TestAccountIDSystemAccount(t *testing.T) {
	id := NewAccountID(SystemOwnerID, AccountTypeDiscountGrants, CurrencyUSD)

	assert.True(t, id.IsSystemAccount())
	assert.Equal(t, AccountTypeDiscountGrants, id.AccountType())
}

func TestAccountIDFromUUIDIsStable(t *testing.T) {
	owner := uuid.New()

	first := NewAccountIDFromUUID(owner, AccountTypeCustomerFunds, CurrencyGBP)
	second := NewAccountIDFromUUID(owner, AccountTypeCustomerFunds, CurrencyGBP)

	assert.Equal(t, first, second, "same owner must map to the same account")
	assert.NotEqual(t, first, NewAccountIDFromUUID(uuid.New(), AccountTypeCustomerFunds, CurrencyGBP))
}

func TestCurrencyFromString(t *testing.T) {
	assert.Equal(t, CurrencyNGN, CurrencyFromString("NGN"))
	assert.Equal(t, Currency(0), CurrencyFromString("XYZ"))
}
