package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/qoin-labs/qoin-wallet/internal/ledger"
	"github.com/qoin-labs/qoin-wallet/internal/notification"
	"github.com/qoin-labs/qoin-wallet/internal/stellar"
)

// ErrInvalidInput occurs when registration fields fail validation.
var ErrInvalidInput = errors.New("invalid input")

// ErrAuthentication occurs when a supplied secret key does not derive the
// wallet address it claims to control.
var ErrAuthentication = errors.New("secret key does not match wallet")

// Authenticate verifies that the secret key controls the address.
func Authenticate(secretKey, address string) error {
	kp, err := stellar.KeypairFromSecret(secretKey)
	if err != nil {
		return ErrAuthentication
	}
	if kp.Address() != address {
		return ErrAuthentication
	}
	return nil
}

// Service is the account registry: it issues keypairs, holds wallet records
// and answers reconciled balance queries.
type Service struct {
	repo       Repository
	ledger     ledger.Ledger
	network    stellar.Network
	secrets    *SecretBox
	notifier   notification.Notifier
	logger     *slog.Logger
	threshold  decimal.Decimal
	fundOnInit bool
}

// Options carries the optional collaborators of the registry.
type Options struct {
	Notifier notification.Notifier
	Logger   *slog.Logger
	// DivergenceThreshold is the mirror-vs-network gap that triggers a warning.
	DivergenceThreshold decimal.Decimal
	// FundNewAccounts provisions base reserves for fresh addresses (testnet).
	FundNewAccounts bool
}

// NewService builds the registry service.
func NewService(repo Repository, led ledger.Ledger, net stellar.Network, secrets *SecretBox, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:       repo,
		ledger:     led,
		network:    net,
		secrets:    secrets,
		notifier:   opts.Notifier,
		logger:     logger,
		threshold:  opts.DivergenceThreshold,
		fundOnInit: opts.FundNewAccounts,
	}
}

// Create provisions a wallet for the user: fresh keypair, sealed secret,
// mirror account. The plaintext secret is returned exactly once.
func (s *Service) Create(ctx context.Context, userID, email string) (Wallet, string, error) {
	userID = strings.TrimSpace(userID)
	email = strings.TrimSpace(email)
	if userID == "" {
		return Wallet{}, "", fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	if at := strings.IndexByte(email, '@'); at < 1 || at == len(email)-1 {
		return Wallet{}, "", fmt.Errorf("%w: email %q is malformed", ErrInvalidInput, email)
	}

	if _, err := s.repo.GetByUser(ctx, userID); err == nil {
		return Wallet{}, "", ErrDuplicateUser
	} else if !errors.Is(err, ErrUnknownWallet) {
		return Wallet{}, "", err
	}

	kp, err := stellar.NewKeypair()
	if err != nil {
		return Wallet{}, "", err
	}

	sealed, err := s.secrets.Seal(kp.Secret())
	if err != nil {
		return Wallet{}, "", err
	}

	wallet := Wallet{
		ID:              uuid.NewString(),
		UserID:          userID,
		Email:           email,
		Address:         kp.Address(),
		EncryptedSecret: sealed,
		CreatedAt:       time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, wallet); err != nil {
		return Wallet{}, "", err
	}
	if err := s.ledger.EnsureAccount(ctx, wallet.Address); err != nil {
		return Wallet{}, "", err
	}

	if s.fundOnInit {
		if err := s.network.FundAccount(ctx, wallet.Address); err != nil {
			s.logger.Warn("fund new account", "address", wallet.Address, "error", err)
		}
	}

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:    notification.KindWalletCreated,
			Email:   email,
			Subject: "Your Qoin wallet is ready",
			Body:    fmt.Sprintf("<p>Your wallet address is <b>%s</b>. Store your secret key safely; it cannot be recovered.</p>", wallet.Address),
		})
	}

	return wallet, kp.Secret(), nil
}

// Get fetches the wallet registered for the address.
func (s *Service) Get(ctx context.Context, address string) (Wallet, error) {
	return s.repo.GetByAddress(ctx, address)
}

// Balance reports the mirror and network balances side by side. Divergence
// beyond the configured threshold is an operational signal, logged but never
// surfaced as an error.
func (s *Service) Balance(ctx context.Context, address string) (BalanceSnapshot, error) {
	wallet, err := s.repo.GetByAddress(ctx, address)
	if err != nil {
		return BalanceSnapshot{}, err
	}

	local, err := s.ledger.Balance(ctx, wallet.Address)
	if err != nil {
		return BalanceSnapshot{}, err
	}
	external, err := s.network.Balance(ctx, wallet.Address)
	if err != nil {
		return BalanceSnapshot{}, err
	}

	if s.threshold.Sign() > 0 && local.Sub(external).Abs().GreaterThan(s.threshold) {
		s.logger.Warn("balance divergence",
			"address", wallet.Address,
			"balance_db", local.String(),
			"balance_stellar", external.String())
	}

	return BalanceSnapshot{Address: wallet.Address, Local: local, External: external, AsOf: time.Now().UTC()}, nil
}

// History lists postings touching the wallet, newest first.
func (s *Service) History(ctx context.Context, address string, limit int) ([]ledger.Record, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if _, err := s.repo.GetByAddress(ctx, address); err != nil {
		return nil, err
	}
	return s.ledger.History(ctx, address, limit)
}
