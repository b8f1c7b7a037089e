package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientFunds occurs when the source account lacks available balance
	// to cover a requested posting.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrDuplicateTransaction indicates the provided client token already exists
	// and therefore the operation should be treated as idempotent.
	ErrDuplicateTransaction = errors.New("duplicate transaction")

	// ErrUnknownAccount occurs when an address has no ledger account.
	ErrUnknownAccount = errors.New("unknown account")

	// ErrInvalidAmount occurs for non-positive posting amounts.
	ErrInvalidAmount = errors.New("amount must be positive")
)

const (
	// StatusPendingSettlement marks a posting applied to the mirror but not yet
	// confirmed on the Stellar network.
	StatusPendingSettlement = "pending_settlement"
	// StatusCompleted marks a posting confirmed on the network with a tx hash.
	StatusCompleted = "completed"

	// IssuerAccountCode is the ledger account backing token issuance. Mints
	// debit it, burns credit it, so the sum over all accounts stays zero.
	IssuerAccountCode = "issuer"

	// KindDeposit, KindSend and KindWithdraw classify postings and scope
	// client-token dedup.
	KindDeposit  = "deposit"
	KindSend     = "send"
	KindWithdraw = "withdraw"
)

// Places is the amount precision used throughout, matching Stellar asset amounts.
const Places = 7

// MintResult captures the outcome of crediting freshly issued tokens.
type MintResult struct {
	TransactionID string
	NewBalance    decimal.Decimal
	Status        string
}

// BurnResult captures the outcome of retiring tokens back to the issuer.
type BurnResult struct {
	TransactionID string
	NewBalance    decimal.Decimal
	Status        string
}

// TransferResult captures the outcome of a fee-splitting wallet transfer.
type TransferResult struct {
	TransactionID string
	FromBalance   decimal.Decimal
	ToBalance     decimal.Decimal
	FeeBalance    decimal.Decimal
	Status        string
}

// Record is an immutable view of a recorded posting, newest-first in History.
type Record struct {
	TransactionID string
	ClientToken   string
	Kind          string
	FromAddress   string
	ToAddress     string
	Amount        decimal.Decimal
	Fee           decimal.Decimal
	TxHash        string
	Status        string
	CreatedAt     time.Time
}

// Ledger defines the contract implemented by mirror backends (e.g. Postgres).
// All mutating operations dedup on (kind, clientToken): a replay returns the
// recorded result together with ErrDuplicateTransaction and applies nothing.
type Ledger interface {
	EnsureAccount(ctx context.Context, address string) error
	Balance(ctx context.Context, address string) (decimal.Decimal, error)
	Mint(ctx context.Context, address, clientToken string, amount decimal.Decimal) (MintResult, error)
	Burn(ctx context.Context, address, clientToken string, amount decimal.Decimal) (BurnResult, error)
	Transfer(ctx context.Context, from, to, feeAddress, clientToken string, gross, fee decimal.Decimal) (TransferResult, error)
	Settle(ctx context.Context, transactionID, txHash string) error
	History(ctx context.Context, address string, limit int) ([]Record, error)
}
