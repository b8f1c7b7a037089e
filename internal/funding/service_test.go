package funding

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/qoin-labs/qoin-wallet/internal/ledger"
	"github.com/qoin-labs/qoin-wallet/internal/logging"
	"github.com/qoin-labs/qoin-wallet/internal/stellar"
	"github.com/qoin-labs/qoin-wallet/internal/wallet"
)

type unreachableNetwork struct{}

func (unreachableNetwork) Mint(context.Context, string, decimal.Decimal) (string, error) {
	return "", fmt.Errorf("%w: horizon unreachable", stellar.ErrNetwork)
}
func (unreachableNetwork) Pay(context.Context, string, string, decimal.Decimal) (string, error) {
	return "", fmt.Errorf("%w: horizon unreachable", stellar.ErrNetwork)
}
func (unreachableNetwork) Burn(context.Context, string, decimal.Decimal) (string, error) {
	return "", fmt.Errorf("%w: horizon unreachable", stellar.ErrNetwork)
}
func (unreachableNetwork) Balance(context.Context, string) (decimal.Decimal, error) {
	return decimal.Zero, fmt.Errorf("%w: horizon unreachable", stellar.ErrNetwork)
}
func (unreachableNetwork) FundAccount(context.Context, string) error { return nil }

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func setup(t *testing.T, network stellar.Network, opts Options) (*Service, *wallet.Service, ledger.Ledger) {
	t.Helper()
	secrets, err := wallet.NewSecretBox("")
	if err != nil {
		t.Fatalf("secret box: %v", err)
	}
	led := ledger.NewInMemory()
	opts.Logger = logging.Discard()
	wallets := wallet.NewService(wallet.NewMemoryRepository(), led, network, secrets, wallet.Options{Logger: logging.Discard()})
	svc, err := NewService(context.Background(), led, wallets, network, opts)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, wallets, led
}

func TestDepositMintsAndSettles(t *testing.T) {
	svc, wallets, _ := setup(t, stellar.NewSimulated(), Options{})
	ctx := context.Background()

	w, _, err := wallets.Create(ctx, "user-1", "u1@example.com")
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}

	res, err := svc.Deposit(ctx, DepositInput{Address: w.Address, Amount: dec("1000")})
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if !res.NewBalance.Equal(dec("1000")) {
		t.Fatalf("expected balance 1000, got %s", res.NewBalance)
	}
	if res.TxHash == "" {
		t.Fatal("expected a settlement hash")
	}
	if res.Status != ledger.StatusCompleted {
		t.Fatalf("expected completed, got %s", res.Status)
	}
}

func TestDepositRejectsInvalidAmounts(t *testing.T) {
	svc, wallets, led := setup(t, stellar.NewSimulated(), Options{MintMax: dec("500")})
	ctx := context.Background()

	w, _, err := wallets.Create(ctx, "user-1", "u1@example.com")
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}

	for _, amount := range []string{"0", "-10", "0.00000001", "501"} {
		if _, err := svc.Deposit(ctx, DepositInput{Address: w.Address, Amount: dec(amount)}); !errors.Is(err, ledger.ErrInvalidAmount) {
			t.Fatalf("amount %s: expected invalid amount, got %v", amount, err)
		}
	}

	balance, err := led.Balance(ctx, w.Address)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !balance.IsZero() {
		t.Fatalf("rejected deposits must not mutate state, balance=%s", balance)
	}
}

func TestDepositUnknownWallet(t *testing.T) {
	svc, _, _ := setup(t, stellar.NewSimulated(), Options{})

	if _, err := svc.Deposit(context.Background(), DepositInput{Address: "GMISSING", Amount: dec("10")}); !errors.Is(err, wallet.ErrUnknownWallet) {
		t.Fatalf("expected unknown wallet, got %v", err)
	}
}

func TestDepositReplayDoesNotDoubleApply(t *testing.T) {
	svc, wallets, led := setup(t, stellar.NewSimulated(), Options{})
	ctx := context.Background()

	w, _, err := wallets.Create(ctx, "user-1", "u1@example.com")
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}

	if _, err := svc.Deposit(ctx, DepositInput{Address: w.Address, Amount: dec("100"), ClientToken: "tok-1"}); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	replay, err := svc.Deposit(ctx, DepositInput{Address: w.Address, Amount: dec("100"), ClientToken: "tok-1"})
	if !errors.Is(err, ledger.ErrDuplicateTransaction) {
		t.Fatalf("expected duplicate transaction, got %v", err)
	}
	if !replay.NewBalance.Equal(dec("100")) {
		t.Fatalf("replay double-applied, balance=%s", replay.NewBalance)
	}

	balance, _ := led.Balance(ctx, w.Address)
	if !balance.Equal(dec("100")) {
		t.Fatalf("expected balance 100, got %s", balance)
	}
}

func TestDepositNetworkFailureLeavesPendingSettlement(t *testing.T) {
	svc, wallets, led := setup(t, unreachableNetwork{}, Options{})
	ctx := context.Background()

	w, _, err := wallets.Create(ctx, "user-1", "u1@example.com")
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}

	res, err := svc.Deposit(ctx, DepositInput{Address: w.Address, Amount: dec("50")})
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if res.Status != ledger.StatusPendingSettlement {
		t.Fatalf("expected pending_settlement, got %s", res.Status)
	}
	if res.TxHash != "" {
		t.Fatalf("unsettled deposit must not carry a hash, got %s", res.TxHash)
	}

	// the mirror keeps the credit; divergence is observable, not rolled back
	balance, _ := led.Balance(ctx, w.Address)
	if !balance.Equal(dec("50")) {
		t.Fatalf("expected mirror balance 50, got %s", balance)
	}
}

func TestWithdrawRequiresMatchingSecret(t *testing.T) {
	svc, wallets, led := setup(t, stellar.NewSimulated(), Options{})
	ctx := context.Background()

	w, _, err := wallets.Create(ctx, "user-1", "u1@example.com")
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	if _, err := svc.Deposit(ctx, DepositInput{Address: w.Address, Amount: dec("100")}); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	intruder, err := stellar.NewKeypair()
	if err != nil {
		t.Fatalf("keypair: %v", err)
	}

	_, err = svc.Withdraw(ctx, WithdrawInput{Address: w.Address, Amount: dec("10"), SecretKey: intruder.Secret()})
	if !errors.Is(err, wallet.ErrAuthentication) {
		t.Fatalf("expected authentication error, got %v", err)
	}

	balance, _ := led.Balance(ctx, w.Address)
	if !balance.Equal(dec("100")) {
		t.Fatalf("failed auth must not mutate state, balance=%s", balance)
	}
}

func TestWithdrawBurns(t *testing.T) {
	svc, wallets, _ := setup(t, stellar.NewSimulated(), Options{})
	ctx := context.Background()

	w, secret, err := wallets.Create(ctx, "user-1", "u1@example.com")
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	if _, err := svc.Deposit(ctx, DepositInput{Address: w.Address, Amount: dec("100")}); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	res, err := svc.Withdraw(ctx, WithdrawInput{Address: w.Address, Amount: dec("40"), SecretKey: secret})
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if !res.NewBalance.Equal(dec("60")) {
		t.Fatalf("expected balance 60, got %s", res.NewBalance)
	}
	if res.Status != ledger.StatusCompleted {
		t.Fatalf("expected completed, got %s", res.Status)
	}

	if _, err := svc.Withdraw(ctx, WithdrawInput{Address: w.Address, Amount: dec("100"), SecretKey: secret}); !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
}
