package payments

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/qoin-labs/qoin-wallet/internal/ledger"
	"github.com/qoin-labs/qoin-wallet/internal/logging"
	"github.com/qoin-labs/qoin-wallet/internal/notification"
	"github.com/qoin-labs/qoin-wallet/internal/stellar"
	"github.com/qoin-labs/qoin-wallet/internal/wallet"
)

type testNotifier struct {
	last notification.Message
}

func (n *testNotifier) Send(_ context.Context, msg notification.Message) error {
	n.last = msg
	return nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func setup(t *testing.T, notifier notification.Notifier) (*Service, *wallet.Service, ledger.Ledger) {
	t.Helper()
	secrets, err := wallet.NewSecretBox("")
	if err != nil {
		t.Fatalf("secret box: %v", err)
	}
	led := ledger.NewInMemory()
	net := stellar.NewSimulated()
	wallets := wallet.NewService(wallet.NewMemoryRepository(), led, net, secrets, wallet.Options{Logger: logging.Discard()})
	svc, err := NewService(context.Background(), led, wallets, net, "", Options{Notifier: notifier, Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, wallets, led
}

func TestSendChargesOnePercentFee(t *testing.T) {
	notifier := &testNotifier{}
	svc, wallets, led := setup(t, notifier)
	ctx := context.Background()

	sender, secret, err := wallets.Create(ctx, "alice", "alice@example.com")
	if err != nil {
		t.Fatalf("create sender: %v", err)
	}
	recipient, _, err := wallets.Create(ctx, "bob", "bob@example.com")
	if err != nil {
		t.Fatalf("create recipient: %v", err)
	}

	ledger.SeedBalance(led, sender.Address, dec("1000"))
	seedNetwork(t, svc, sender.Address, dec("1000"))

	res, err := svc.Send(ctx, SendInput{
		From:      sender.Address,
		To:        recipient.Address,
		Amount:    dec("100"),
		SecretKey: secret,
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if !res.AmountSent.Equal(dec("99")) {
		t.Fatalf("expected net 99, got %s", res.AmountSent)
	}
	if !res.FeeCharged.Equal(dec("1")) {
		t.Fatalf("expected fee 1, got %s", res.FeeCharged)
	}
	if !res.NewBalance.Equal(dec("900")) {
		t.Fatalf("expected sender balance 900, got %s", res.NewBalance)
	}
	if res.TxHash == "" {
		t.Fatal("expected a settlement hash")
	}
	if res.Status != ledger.StatusCompleted {
		t.Fatalf("expected completed, got %s", res.Status)
	}

	toBalance, _ := led.Balance(ctx, recipient.Address)
	if !toBalance.Equal(dec("99")) {
		t.Fatalf("expected recipient balance 99, got %s", toBalance)
	}
	feeBalance, _ := led.Balance(ctx, FeeReserveAccountCode)
	if !feeBalance.Equal(dec("1")) {
		t.Fatalf("expected fee reserve 1, got %s", feeBalance)
	}
	if notifier.last.Kind != notification.KindPaymentReceived {
		t.Fatal("expected recipient notification")
	}
}

func TestSendWrongSecretNoStateChange(t *testing.T) {
	svc, wallets, led := setup(t, nil)
	ctx := context.Background()

	sender, _, err := wallets.Create(ctx, "alice", "alice@example.com")
	if err != nil {
		t.Fatalf("create sender: %v", err)
	}
	recipient, _, err := wallets.Create(ctx, "bob", "bob@example.com")
	if err != nil {
		t.Fatalf("create recipient: %v", err)
	}
	ledger.SeedBalance(led, sender.Address, dec("500"))

	intruder, err := stellar.NewKeypair()
	if err != nil {
		t.Fatalf("keypair: %v", err)
	}

	_, err = svc.Send(ctx, SendInput{From: sender.Address, To: recipient.Address, Amount: dec("100"), SecretKey: intruder.Secret()})
	if !errors.Is(err, wallet.ErrAuthentication) {
		t.Fatalf("expected authentication error, got %v", err)
	}

	fromBalance, _ := led.Balance(ctx, sender.Address)
	toBalance, _ := led.Balance(ctx, recipient.Address)
	if !fromBalance.Equal(dec("500")) || !toBalance.IsZero() {
		t.Fatalf("failed auth mutated balances: %s/%s", fromBalance, toBalance)
	}
}

func TestSendInsufficientFundsNoStateChange(t *testing.T) {
	svc, wallets, led := setup(t, nil)
	ctx := context.Background()

	sender, secret, err := wallets.Create(ctx, "alice", "alice@example.com")
	if err != nil {
		t.Fatalf("create sender: %v", err)
	}
	recipient, _, err := wallets.Create(ctx, "bob", "bob@example.com")
	if err != nil {
		t.Fatalf("create recipient: %v", err)
	}
	ledger.SeedBalance(led, sender.Address, dec("100"))

	_, err = svc.Send(ctx, SendInput{From: sender.Address, To: recipient.Address, Amount: dec("101"), SecretKey: secret})
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	fromBalance, _ := led.Balance(ctx, sender.Address)
	toBalance, _ := led.Balance(ctx, recipient.Address)
	if !fromBalance.Equal(dec("100")) || !toBalance.IsZero() {
		t.Fatalf("rejected send mutated balances: %s/%s", fromBalance, toBalance)
	}
}

func TestSendInvalidAmount(t *testing.T) {
	svc, wallets, _ := setup(t, nil)
	ctx := context.Background()

	sender, secret, err := wallets.Create(ctx, "alice", "alice@example.com")
	if err != nil {
		t.Fatalf("create sender: %v", err)
	}
	recipient, _, err := wallets.Create(ctx, "bob", "bob@example.com")
	if err != nil {
		t.Fatalf("create recipient: %v", err)
	}

	for _, amount := range []string{"0", "-1"} {
		_, err := svc.Send(ctx, SendInput{From: sender.Address, To: recipient.Address, Amount: dec(amount), SecretKey: secret})
		if !errors.Is(err, ledger.ErrInvalidAmount) {
			t.Fatalf("amount %s: expected invalid amount, got %v", amount, err)
		}
	}
}

func TestSendUnknownRecipient(t *testing.T) {
	svc, wallets, led := setup(t, nil)
	ctx := context.Background()

	sender, secret, err := wallets.Create(ctx, "alice", "alice@example.com")
	if err != nil {
		t.Fatalf("create sender: %v", err)
	}
	ledger.SeedBalance(led, sender.Address, dec("100"))

	_, err = svc.Send(ctx, SendInput{From: sender.Address, To: "GNOBODY", Amount: dec("10"), SecretKey: secret})
	if !errors.Is(err, wallet.ErrUnknownWallet) {
		t.Fatalf("expected unknown wallet, got %v", err)
	}
}

func TestSendReplaySameToken(t *testing.T) {
	svc, wallets, led := setup(t, nil)
	ctx := context.Background()

	sender, secret, err := wallets.Create(ctx, "alice", "alice@example.com")
	if err != nil {
		t.Fatalf("create sender: %v", err)
	}
	recipient, _, err := wallets.Create(ctx, "bob", "bob@example.com")
	if err != nil {
		t.Fatalf("create recipient: %v", err)
	}
	ledger.SeedBalance(led, sender.Address, dec("1000"))
	seedNetwork(t, svc, sender.Address, dec("1000"))

	if _, err := svc.Send(ctx, SendInput{From: sender.Address, To: recipient.Address, Amount: dec("100"), SecretKey: secret, ClientToken: "tok"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	replay, err := svc.Send(ctx, SendInput{From: sender.Address, To: recipient.Address, Amount: dec("100"), SecretKey: secret, ClientToken: "tok"})
	if !errors.Is(err, ledger.ErrDuplicateTransaction) {
		t.Fatalf("expected duplicate transaction, got %v", err)
	}
	if !replay.NewBalance.Equal(dec("900")) {
		t.Fatalf("replay double-applied, balance=%s", replay.NewBalance)
	}
}

// seedNetwork funds the simulated chain so payment legs can settle.
func seedNetwork(t *testing.T, svc *Service, address string, amount decimal.Decimal) {
	t.Helper()
	sim, ok := svc.network.(*stellar.Simulated)
	if !ok {
		t.Fatal("expected simulated network")
	}
	if _, err := sim.Mint(context.Background(), address, amount); err != nil {
		t.Fatalf("seed network: %v", err)
	}
}
