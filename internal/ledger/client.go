package ledger

import (
	"fmt"

	"github.com/google/uuid"
	tb "github.com/tigerbeetle/tigerbeetle-go"
	tbtypes "github.com/tigerbeetle/tigerbeetle-go/pkg/types"

	"tariff/internal/config"
)

// Client wraps the TigerBeetle client with fee accounting operations.
type Client struct {
	tb        tb.Client
	clusterID uint64
}

// NewClient creates a new TigerBeetle client.
func NewClient(cfg config.TigerBeetleConfig) (*Client, error) {
	addresses := make([]string, len(cfg.Addresses))
	copy(addresses, cfg.Addresses)

	client, err := tb.NewClient(tbtypes.ToUint128(cfg.ClusterID), addresses)
	if err != nil {
		return nil, fmt.Errorf("create TigerBeetle client: %w", err)
	}

	return &Client{
		tb:        client,
		clusterID: cfg.ClusterID,
	}, nil
}

// Close closes the TigerBeetle client connection.
func (c *Client) Close() {
	c.tb.Close()
}

// EnsureSystemAccounts creates the platform fee income and discount grant
// accounts for the given currencies. Already-existing accounts are fine.
func (c *Client) EnsureSystemAccounts(currencies []string) error {
	var accounts []tbtypes.Account
	for _, code := range currencies {
		currency := CurrencyFromString(code)
		if currency == 0 {
			return fmt.Errorf("unsupported currency %q", code)
		}
		for _, accountType := range []AccountType{AccountTypeFeeIncome, AccountTypeDiscountGrants} {
			id := NewAccountID(SystemOwnerID, accountType, currency)
			accounts = append(accounts, tbtypes.Account{
				ID:     tbtypes.BytesToUint128(id),
				Ledger: uint32(currency),
				Code:   uint16(accountType),
			})
		}
	}

	results, err := c.tb.CreateAccounts(accounts)
	if err != nil {
		return fmt.Errorf("create system accounts: %w", err)
	}

	for _, result := range results {
		if result.Result != tbtypes.AccountOK && result.Result != tbtypes.AccountExists {
			return fmt.Errorf("create system account %d failed: %s", result.Index, result.Result.String())
		}
	}

	return nil
}

// PostFeeCollection records a collected fee in the ledger: the customer's
// clearing account is debited for the final fee, and when a discount was
// granted a linked transfer books its value to the discount grants account.
// Amounts are in minor units.
func (c *Client) PostFeeCollection(userID uuid.UUID, transactionID uuid.UUID, currencyCode string, finalFee, discount uint64) error {
	currency := CurrencyFromString(currencyCode)
	if currency == 0 {
		return fmt.Errorf("unsupported currency %q", currencyCode)
	}

	customer := NewAccountIDFromUUID(userID, AccountTypeCustomerFunds, currency)
	feeIncome := NewAccountID(SystemOwnerID, AccountTypeFeeIncome, currency)
	discountGrants := NewAccountID(SystemOwnerID, AccountTypeDiscountGrants, currency)

	ledgerID := uint32(currency)

	// Correlate ledger entries with the originating transaction.
	userData := [16]byte(transactionID)

	transfers := []tbtypes.Transfer{{
		ID:              tbtypes.BytesToUint128([16]byte(uuid.New())),
		DebitAccountID:  tbtypes.BytesToUint128(customer),
		CreditAccountID: tbtypes.BytesToUint128(feeIncome),
		Amount:          tbtypes.ToUint128(finalFee),
		Ledger:          ledgerID,
		Code:            uint16(AccountTypeFeeIncome),
		UserData128:     tbtypes.BytesToUint128(userData),
	}}

	if discount > 0 {
		transfers[0].Flags = tbtypes.TransferFlags{Linked: true}.ToUint16()
		transfers = append(transfers, tbtypes.Transfer{
			ID:              tbtypes.BytesToUint128([16]byte(uuid.New())),
			DebitAccountID:  tbtypes.BytesToUint128(feeIncome),
			CreditAccountID: tbtypes.BytesToUint128(discountGrants),
			Amount:          tbtypes.ToUint128(discount),
			Ledger:          ledgerID,
			Code:            uint16(AccountTypeDiscountGrants),
			UserData128:     tbtypes.BytesToUint128(userData),
		})
	}

	results, err := c.tb.CreateTransfers(transfers)
	if err != nil {
		return fmt.Errorf("post fee collection: %w", err)
	}

	for _, result := range results {
		if result.Result != tbtypes.TransferOK {
			return fmt.Errorf("post fee collection transfer %d failed: %s", result.Index, result.Result.String())
		}
	}

	return nil
}

// GetBalance retrieves the posted balance for a system account, in minor units.
func (c *Client) GetBalance(accountType AccountType, currencyCode string) (credits, debits uint64, err error) {
	currency := CurrencyFromString(currencyCode)
	if currency == 0 {
		return 0, 0, fmt.Errorf("unsupported currency %q", currencyCode)
	}

	id := NewAccountID(SystemOwnerID, accountType, currency)
	accounts, err := c.tb.LookupAccounts([]tbtypes.Uint128{tbtypes.BytesToUint128(id)})
	if err != nil {
		return 0, 0, fmt.Errorf("lookup account: %w", err)
	}
	if len(accounts) == 0 {
		return 0, 0, fmt.Errorf("account %s not found", id)
	}

	creditsBig := accounts[0].CreditsPosted.BigInt()
	debitsBig := accounts[0].DebitsPosted.BigInt()
	return creditsBig.Uint64(), debitsBig.Uint64(), nil
}
