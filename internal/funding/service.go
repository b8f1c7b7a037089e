package funding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/qoin-labs/qoin-wallet/internal/ledger"
	"github.com/qoin-labs/qoin-wallet/internal/stellar"
	"github.com/qoin-labs/qoin-wallet/internal/wallet"
)

// Service coordinates mint (deposit) and burn (withdraw) operations across
// the mirror ledger and the Stellar network.
type Service struct {
	ledger        ledger.Ledger
	wallets       *wallet.Service
	network       stellar.Network
	logger        *slog.Logger
	mintMax       decimal.Decimal
	submitTimeout time.Duration
}

// Options carries the optional knobs of the funding service.
type Options struct {
	Logger *slog.Logger
	// MintMax caps a single deposit; zero disables the cap.
	MintMax decimal.Decimal
	// SubmitTimeout bounds the wait on the network leg of each operation.
	SubmitTimeout time.Duration
}

// NewService prepares a funding service ensuring the issuer account exists.
func NewService(ctx context.Context, ledgerBackend ledger.Ledger, wallets *wallet.Service, network stellar.Network, opts Options) (*Service, error) {
	if wallets == nil {
		return nil, fmt.Errorf("wallet service is required")
	}
	if network == nil {
		return nil, fmt.Errorf("network connector is required")
	}
	if err := ledgerBackend.EnsureAccount(ctx, ledger.IssuerAccountCode); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.SubmitTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Service{
		ledger:        ledgerBackend,
		wallets:       wallets,
		network:       network,
		logger:        logger,
		mintMax:       opts.MintMax,
		submitTimeout: timeout,
	}, nil
}

// DepositInput captures the required data for a mint.
type DepositInput struct {
	Address     string
	Amount      decimal.Decimal
	ClientToken string
}

// WithdrawInput captures the required data for a burn.
type WithdrawInput struct {
	Address     string
	Amount      decimal.Decimal
	SecretKey   string
	ClientToken string
}

// Result represents the domain outcome of a funding operation. Status is
// completed once the network confirmed the movement; pending_settlement means
// the mirror applied but the network leg has not been confirmed.
type Result struct {
	TransactionID string
	Amount        decimal.Decimal
	NewBalance    decimal.Decimal
	TxHash        string
	Status        string
	CompletedAt   time.Time
}

// Deposit mints tokens into the wallet and settles the issuance on Stellar.
func (s *Service) Deposit(ctx context.Context, input DepositInput) (Result, error) {
	amount, err := s.validAmount(input.Amount)
	if err != nil {
		return Result{}, err
	}
	if s.mintMax.Sign() > 0 && amount.GreaterThan(s.mintMax) {
		return Result{}, fmt.Errorf("%w: deposit exceeds limit of %s", ledger.ErrInvalidAmount, s.mintMax)
	}

	w, err := s.wallets.Get(ctx, input.Address)
	if err != nil {
		return Result{}, err
	}

	token := input.ClientToken
	if token == "" {
		token = uuid.NewString()
	}

	minted, err := s.ledger.Mint(ctx, w.Address, token, amount)
	if err != nil {
		if errors.Is(err, ledger.ErrDuplicateTransaction) {
			return Result{
				TransactionID: minted.TransactionID,
				Amount:        amount,
				NewBalance:    minted.NewBalance,
				Status:        minted.Status,
				CompletedAt:   time.Now().UTC(),
			}, err
		}
		return Result{}, err
	}

	res := Result{
		TransactionID: minted.TransactionID,
		Amount:        amount,
		NewBalance:    minted.NewBalance,
		Status:        minted.Status,
		CompletedAt:   time.Now().UTC(),
	}

	res.TxHash, res.Status = s.settle(ctx, minted.TransactionID, func(ctx context.Context) (string, error) {
		return s.network.Mint(ctx, w.Address, amount)
	})
	return res, nil
}

// Withdraw burns tokens from the wallet and settles the retirement on Stellar.
func (s *Service) Withdraw(ctx context.Context, input WithdrawInput) (Result, error) {
	amount, err := s.validAmount(input.Amount)
	if err != nil {
		return Result{}, err
	}

	w, err := s.wallets.Get(ctx, input.Address)
	if err != nil {
		return Result{}, err
	}
	if err := wallet.Authenticate(input.SecretKey, w.Address); err != nil {
		return Result{}, err
	}

	token := input.ClientToken
	if token == "" {
		token = uuid.NewString()
	}

	burned, err := s.ledger.Burn(ctx, w.Address, token, amount)
	if err != nil {
		if errors.Is(err, ledger.ErrDuplicateTransaction) {
			return Result{
				TransactionID: burned.TransactionID,
				Amount:        amount,
				NewBalance:    burned.NewBalance,
				Status:        burned.Status,
				CompletedAt:   time.Now().UTC(),
			}, err
		}
		return Result{}, err
	}

	res := Result{
		TransactionID: burned.TransactionID,
		Amount:        amount,
		NewBalance:    burned.NewBalance,
		Status:        burned.Status,
		CompletedAt:   time.Now().UTC(),
	}

	res.TxHash, res.Status = s.settle(ctx, burned.TransactionID, func(ctx context.Context) (string, error) {
		return s.network.Burn(ctx, input.SecretKey, amount)
	})
	return res, nil
}

// settle runs the network leg under the submit timeout. The mirror posting is
// already committed; a network failure leaves it pending_settlement and the
// caller reports that state instead of full success.
func (s *Service) settle(ctx context.Context, transactionID string, submit func(context.Context) (string, error)) (string, string) {
	submitCtx, cancel := context.WithTimeout(ctx, s.submitTimeout)
	defer cancel()

	txHash, err := submit(submitCtx)
	if err != nil {
		s.logger.Warn("network settlement deferred", "transaction_id", transactionID, "error", err)
		return "", ledger.StatusPendingSettlement
	}
	if err := s.ledger.Settle(ctx, transactionID, txHash); err != nil {
		s.logger.Error("record settlement", "transaction_id", transactionID, "tx_hash", txHash, "error", err)
		return txHash, ledger.StatusPendingSettlement
	}
	return txHash, ledger.StatusCompleted
}

func (s *Service) validAmount(amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.Sign() <= 0 {
		return decimal.Decimal{}, fmt.Errorf("%w", ledger.ErrInvalidAmount)
	}
	rounded := amount.Round(ledger.Places)
	if !rounded.Equal(amount) {
		return decimal.Decimal{}, fmt.Errorf("%w: at most %d decimal places", ledger.ErrInvalidAmount, ledger.Places)
	}
	return amount, nil
}
