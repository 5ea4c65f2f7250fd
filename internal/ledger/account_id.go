package ledger

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// AccountID represents a 128-bit TigerBeetle account ID.
// Structure: [owner: 64 bits][account_type: 8 bits][currency: 24 bits][reserved: 32 bits]
type AccountID [16]byte

// SystemOwnerID is used for platform-owned accounts (fee income, discount grants).
const SystemOwnerID uint64 = 0

// NewAccountID creates a new AccountID from components.
func NewAccountID(owner uint64, accountType AccountType, currency Currency) AccountID {
	var id AccountID

	// Bytes 0-7: owner (big-endian)
	binary.BigEndian.PutUint64(id[0:8], owner)

	// Byte 8: account type
	id[8] = byte(accountType)

	// Bytes 9-11: currency (24 bits, big-endian)
	id[9] = byte(currency >> 16)
	id[10] = byte(currency >> 8)
	id[11] = byte(currency)

	// Bytes 12-15 stay zero (reserved)

	return id
}

// NewAccountIDFromUUID creates an AccountID using a UUID's lower 64 bits as owner.
func NewAccountIDFromUUID(owner uuid.UUID, accountType AccountType, currency Currency) AccountID {
	return NewAccountID(binary.BigEndian.Uint64(owner[8:16]), accountType, currency)
}

// Owner returns the owner component.
func (id AccountID) Owner() uint64 {
	return binary.BigEndian.Uint64(id[0:8])
}

// AccountType returns the account type component.
func (id AccountID) AccountType() AccountType {
	return AccountType(id[8])
}

// Currency returns the currency component.
func (id AccountID) Currency() Currency {
	return Currency(uint32(id[9])<<16 | uint32(id[10])<<8 | uint32(id[11]))
}

// IsSystemAccount returns true if this is a platform-owned account.
func (id AccountID) IsSystemAccount() bool {
	return id.Owner() == SystemOwnerID
}

// String returns a human-readable representation of the AccountID.
func (id AccountID) String() string {
	return fmt.Sprintf("%s:%s:%016x",
		id.AccountType().String(),
		id.Currency().String(),
		id.Owner(),
	)
}
