package wallet

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet represents a registered account: a Stellar address bound to an
// application user, with the secret key held encrypted at rest.
type Wallet struct {
	ID              string
	UserID          string
	Email           string
	Address         string
	EncryptedSecret string
	CreatedAt       time.Time
}

// BalanceSnapshot pairs the mirror balance with the network's authoritative
// value at query time. The two may transiently diverge; both are reported.
type BalanceSnapshot struct {
	Address  string
	Local    decimal.Decimal
	External decimal.Decimal
	AsOf     time.Time
}
