package ledger

import "github.com/shopspring/decimal"

// SeedBalance is a test helper that seeds the balance for an address when
// using the in-memory ledger.
func SeedBalance(l Ledger, address string, amount decimal.Decimal) {
	if mem, ok := l.(*inMemoryLedger); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.balances[address] = amount
	}
}
