package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestInMemoryLedger_TransferSplitsFee(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()

	for _, addr := range []string{"GA", "GB", "GFEE"} {
		if err := l.EnsureAccount(ctx, addr); err != nil {
			t.Fatalf("ensure account %s: %v", addr, err)
		}
	}
	SeedBalance(l, "GA", dec("1000"))

	res, err := l.Transfer(ctx, "GA", "GB", "GFEE", "client-1", dec("100"), dec("1"))
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}

	if !res.FromBalance.Equal(dec("900")) {
		t.Fatalf("expected from balance 900, got %s", res.FromBalance)
	}
	if !res.ToBalance.Equal(dec("99")) {
		t.Fatalf("expected to balance 99, got %s", res.ToBalance)
	}
	if !res.FeeBalance.Equal(dec("1")) {
		t.Fatalf("expected fee balance 1, got %s", res.FeeBalance)
	}
	if res.Status != StatusPendingSettlement {
		t.Fatalf("unexpected status: %s", res.Status)
	}

	ledgerImpl := l.(*inMemoryLedger)
	total := ledgerImpl.balances["GA"].Add(ledgerImpl.balances["GB"]).Add(ledgerImpl.balances["GFEE"])
	if !total.Equal(dec("1000")) {
		t.Fatalf("ledger not balanced, total=%s", total)
	}
}

func TestInMemoryLedger_DuplicateToken(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	l.EnsureAccount(ctx, "GA")
	l.EnsureAccount(ctx, "GB")
	l.EnsureAccount(ctx, "GFEE")
	SeedBalance(l, "GA", dec("500"))

	first, err := l.Transfer(ctx, "GA", "GB", "GFEE", "dup", dec("50"), dec("0.5"))
	if err != nil {
		t.Fatalf("initial transfer failed: %v", err)
	}
	replay, err := l.Transfer(ctx, "GA", "GB", "GFEE", "dup", dec("50"), dec("0.5"))
	if err != ErrDuplicateTransaction {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if replay.TransactionID != first.TransactionID {
		t.Fatalf("replay returned a different transaction id")
	}
	if !replay.FromBalance.Equal(dec("450")) {
		t.Fatalf("replay re-applied the debit: %s", replay.FromBalance)
	}
}

func TestInMemoryLedger_InsufficientFundsNoChange(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	l.EnsureAccount(ctx, "GA")
	l.EnsureAccount(ctx, "GB")
	l.EnsureAccount(ctx, "GFEE")
	SeedBalance(l, "GA", dec("10"))

	if _, err := l.Transfer(ctx, "GA", "GB", "GFEE", "t1", dec("11"), dec("0.11")); err != ErrInsufficientFunds {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	balance, err := l.Balance(ctx, "GA")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !balance.Equal(dec("10")) {
		t.Fatalf("sender balance changed: %s", balance)
	}
}

func TestInMemoryLedger_MintAndBurn(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	l.EnsureAccount(ctx, "GA")
	l.EnsureAccount(ctx, IssuerAccountCode)

	res, err := l.Mint(ctx, "GA", "mint-1", dec("250"))
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if !res.NewBalance.Equal(dec("250")) {
		t.Fatalf("expected balance 250, got %s", res.NewBalance)
	}

	if _, err := l.Mint(ctx, "GA", "mint-1", dec("250")); err != ErrDuplicateTransaction {
		t.Fatalf("expected duplicate mint error, got %v", err)
	}
	if balance, _ := l.Balance(ctx, "GA"); !balance.Equal(dec("250")) {
		t.Fatalf("duplicate mint re-applied: %s", balance)
	}

	burn, err := l.Burn(ctx, "GA", "burn-1", dec("100"))
	if err != nil {
		t.Fatalf("burn failed: %v", err)
	}
	if !burn.NewBalance.Equal(dec("150")) {
		t.Fatalf("expected balance 150, got %s", burn.NewBalance)
	}

	if _, err := l.Burn(ctx, "GA", "burn-2", dec("1000")); err != ErrInsufficientFunds {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
}

func TestInMemoryLedger_InvalidAmount(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	l.EnsureAccount(ctx, "GA")
	l.EnsureAccount(ctx, IssuerAccountCode)

	if _, err := l.Mint(ctx, "GA", "m", decimal.Zero); err != ErrInvalidAmount {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	if _, err := l.Mint(ctx, "GA", "m", dec("-5")); err != ErrInvalidAmount {
		t.Fatalf("expected invalid amount, got %v", err)
	}
}

func TestInMemoryLedger_SettleRecordsHash(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	l.EnsureAccount(ctx, "GA")
	l.EnsureAccount(ctx, IssuerAccountCode)

	res, err := l.Mint(ctx, "GA", "mint-1", dec("10"))
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	if err := l.Settle(ctx, res.TransactionID, "abc123"); err != nil {
		t.Fatalf("settle failed: %v", err)
	}

	history, err := l.History(ctx, "GA", 10)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected one record, got %d", len(history))
	}
	if history[0].TxHash != "abc123" || history[0].Status != StatusCompleted {
		t.Fatalf("settlement not recorded: %+v", history[0])
	}
}

func TestInMemoryLedger_ConcurrentTransfers(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	l.EnsureAccount(ctx, "GA")
	l.EnsureAccount(ctx, "GB")
	l.EnsureAccount(ctx, "GFEE")
	SeedBalance(l, "GA", dec("100000"))
	ledgerImpl := l.(*inMemoryLedger)

	const workers = 10

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			token := fmt.Sprintf("tx-%d", i)
			if _, err := l.Transfer(ctx, "GA", "GB", "GFEE", token, dec("500"), dec("5")); err != nil {
				t.Errorf("transfer %d failed: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	total := ledgerImpl.balances["GA"].Add(ledgerImpl.balances["GB"]).Add(ledgerImpl.balances["GFEE"])
	if !total.Equal(dec("100000")) {
		t.Fatalf("ledger not balanced after concurrency, total=%s", total)
	}
}
