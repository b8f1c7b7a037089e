package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/qoin-labs/qoin-wallet/internal/ledger"
	"github.com/qoin-labs/qoin-wallet/internal/notification"
	"github.com/qoin-labs/qoin-wallet/internal/stellar"
	"github.com/qoin-labs/qoin-wallet/internal/wallet"
)

// FeeRate is the fixed transfer fee: 1% of the gross amount.
var FeeRate = decimal.New(1, -2)

// FeeReserveAccountCode collects fees when no fee wallet address is configured.
const FeeReserveAccountCode = "fees:reserve"

// Service moves tokens between wallets, charging the transfer fee and
// settling the movement on the Stellar network.
type Service struct {
	ledger        ledger.Ledger
	wallets       *wallet.Service
	network       stellar.Network
	notifier      notification.Notifier
	logger        *slog.Logger
	feeAccount    string
	feeOnNetwork  bool
	submitTimeout time.Duration
}

// Options carries the optional collaborators of the payment service.
type Options struct {
	Notifier notification.Notifier
	Logger   *slog.Logger
	// SubmitTimeout bounds the wait on the network leg.
	SubmitTimeout time.Duration
}

// NewService constructs a payment service. feeWalletAddress names where fees
// accrue; when empty they accrue to an internal reserve account on the mirror
// only.
func NewService(ctx context.Context, ledgerBackend ledger.Ledger, wallets *wallet.Service, network stellar.Network, feeWalletAddress string, opts Options) (*Service, error) {
	if wallets == nil {
		return nil, fmt.Errorf("wallet service is required")
	}
	if network == nil {
		return nil, fmt.Errorf("network connector is required")
	}

	feeAccount := feeWalletAddress
	feeOnNetwork := true
	if feeAccount == "" {
		feeAccount = FeeReserveAccountCode
		feeOnNetwork = false
	}
	if err := ledgerBackend.EnsureAccount(ctx, feeAccount); err != nil {
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
		notifier:      opts.Notifier,
		logger:        logger,
		feeAccount:    feeAccount,
		feeOnNetwork:  feeOnNetwork,
		submitTimeout: timeout,
	}, nil
}

// SendInput captures the data needed to move tokens between wallets.
type SendInput struct {
	From        string
	To          string
	Amount      decimal.Decimal
	SecretKey   string
	ClientToken string
}

// SendResult describes the outcome of a transfer. AmountSent is the net
// credited to the recipient; NewBalance is the sender's balance.
type SendResult struct {
	TransactionID string
	AmountSent    decimal.Decimal
	FeeCharged    decimal.Decimal
	NewBalance    decimal.Decimal
	TxHash        string
	Status        string
	CompletedAt   time.Time
}

// Send debits the sender by the gross amount, credits the recipient with the
// net and accrues the fee, all in one mirror posting, then settles on Stellar.
func (s *Service) Send(ctx context.Context, input SendInput) (SendResult, error) {
	if input.Amount.Sign() <= 0 {
		return SendResult{}, fmt.Errorf("%w", ledger.ErrInvalidAmount)
	}
	if !input.Amount.Round(ledger.Places).Equal(input.Amount) {
		return SendResult{}, fmt.Errorf("%w: at most %d decimal places", ledger.ErrInvalidAmount, ledger.Places)
	}

	sender, err := s.wallets.Get(ctx, input.From)
	if err != nil {
		return SendResult{}, err
	}
	if err := wallet.Authenticate(input.SecretKey, sender.Address); err != nil {
		return SendResult{}, err
	}
	recipient, err := s.wallets.Get(ctx, input.To)
	if err != nil {
		return SendResult{}, err
	}

	fee := input.Amount.Mul(FeeRate).Round(ledger.Places)
	net := input.Amount.Sub(fee)

	token := input.ClientToken
	if token == "" {
		token = uuid.NewString()
	}

	posted, err := s.ledger.Transfer(ctx, sender.Address, recipient.Address, s.feeAccount, token, input.Amount, fee)
	if err != nil {
		if errors.Is(err, ledger.ErrDuplicateTransaction) {
			return SendResult{
				TransactionID: posted.TransactionID,
				AmountSent:    net,
				FeeCharged:    fee,
				NewBalance:    posted.FromBalance,
				Status:        posted.Status,
				CompletedAt:   time.Now().UTC(),
			}, err
		}
		return SendResult{}, err
	}

	res := SendResult{
		TransactionID: posted.TransactionID,
		AmountSent:    net,
		FeeCharged:    fee,
		NewBalance:    posted.FromBalance,
		Status:        posted.Status,
		CompletedAt:   time.Now().UTC(),
	}
	res.TxHash, res.Status = s.settle(ctx, posted.TransactionID, input, net, fee)

	if s.notifier != nil && recipient.Email != "" {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:    notification.KindPaymentReceived,
			Email:   recipient.Email,
			Subject: "You received Qoins",
			Body:    fmt.Sprintf("<p>%s Qoins arrived from %s.</p>", net, sender.Address),
		})
	}

	return res, nil
}

// settle submits the payment legs under the submit timeout. The fee leg is
// best effort: the fee already accrued on the mirror, and the main leg's hash
// is the transaction reference.
func (s *Service) settle(ctx context.Context, transactionID string, input SendInput, net, fee decimal.Decimal) (string, string) {
	submitCtx, cancel := context.WithTimeout(ctx, s.submitTimeout)
	defer cancel()

	txHash, err := s.network.Pay(submitCtx, input.SecretKey, input.To, net)
	if err != nil {
		s.logger.Warn("network settlement deferred", "transaction_id", transactionID, "error", err)
		return "", ledger.StatusPendingSettlement
	}

	if s.feeOnNetwork && fee.Sign() > 0 {
		if _, err := s.network.Pay(submitCtx, input.SecretKey, s.feeAccount, fee); err != nil {
			s.logger.Warn("fee settlement deferred", "transaction_id", transactionID, "error", err)
		}
	}

	if err := s.ledger.Settle(ctx, transactionID, txHash); err != nil {
		s.logger.Error("record settlement", "transaction_id", transactionID, "tx_hash", txHash, "error", err)
		return txHash, ledger.StatusPendingSettlement
	}
	return txHash, ledger.StatusCompleted
}
