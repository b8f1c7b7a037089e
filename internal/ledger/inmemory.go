package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type inMemoryLedger struct {
	mu       sync.RWMutex
	balances map[string]decimal.Decimal
	byToken  map[string]*Record
	byTxID   map[string]*Record
	records  []*Record
}

// NewInMemory creates a concurrency-safe in-memory ledger used in development
// mode and unit tests.
func NewInMemory() Ledger {
	return &inMemoryLedger{
		balances: make(map[string]decimal.Decimal),
		byToken:  make(map[string]*Record),
		byTxID:   make(map[string]*Record),
	}
}

func (l *inMemoryLedger) EnsureAccount(_ context.Context, address string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.balances[address]; !exists {
		l.balances[address] = decimal.Zero
	}
	return nil
}

func (l *inMemoryLedger) Balance(_ context.Context, address string) (decimal.Decimal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	balance, exists := l.balances[address]
	if !exists {
		return decimal.Zero, ErrUnknownAccount
	}
	return balance, nil
}

func (l *inMemoryLedger) Mint(_ context.Context, address, clientToken string, amount decimal.Decimal) (MintResult, error) {
	if amount.Sign() <= 0 {
		return MintResult{}, ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if rec, exists := l.byToken[KindDeposit+":"+clientToken]; exists {
		return MintResult{TransactionID: rec.TransactionID, NewBalance: l.balances[address], Status: rec.Status}, ErrDuplicateTransaction
	}

	balance, ok := l.balances[address]
	if !ok {
		return MintResult{}, ErrUnknownAccount
	}

	balance = balance.Add(amount)
	l.balances[address] = balance
	l.balances[IssuerAccountCode] = l.balances[IssuerAccountCode].Sub(amount)

	rec := l.record(KindDeposit, clientToken, IssuerAccountCode, address, amount, decimal.Zero)
	return MintResult{TransactionID: rec.TransactionID, NewBalance: balance, Status: rec.Status}, nil
}

func (l *inMemoryLedger) Burn(_ context.Context, address, clientToken string, amount decimal.Decimal) (BurnResult, error) {
	if amount.Sign() <= 0 {
		return BurnResult{}, ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if rec, exists := l.byToken[KindWithdraw+":"+clientToken]; exists {
		return BurnResult{TransactionID: rec.TransactionID, NewBalance: l.balances[address], Status: rec.Status}, ErrDuplicateTransaction
	}

	balance, ok := l.balances[address]
	if !ok {
		return BurnResult{}, ErrUnknownAccount
	}
	if balance.LessThan(amount) {
		return BurnResult{}, ErrInsufficientFunds
	}

	balance = balance.Sub(amount)
	l.balances[address] = balance
	l.balances[IssuerAccountCode] = l.balances[IssuerAccountCode].Add(amount)

	rec := l.record(KindWithdraw, clientToken, address, IssuerAccountCode, amount, decimal.Zero)
	return BurnResult{TransactionID: rec.TransactionID, NewBalance: balance, Status: rec.Status}, nil
}

func (l *inMemoryLedger) Transfer(_ context.Context, from, to, feeAddress, clientToken string, gross, fee decimal.Decimal) (TransferResult, error) {
	if gross.Sign() <= 0 || fee.Sign() < 0 || fee.GreaterThanOrEqual(gross) {
		return TransferResult{}, ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if rec, exists := l.byToken[KindSend+":"+clientToken]; exists {
		return TransferResult{
			TransactionID: rec.TransactionID,
			FromBalance:   l.balances[from],
			ToBalance:     l.balances[to],
			FeeBalance:    l.balances[feeAddress],
			Status:        rec.Status,
		}, ErrDuplicateTransaction
	}

	fromBalance, ok := l.balances[from]
	if !ok {
		return TransferResult{}, ErrUnknownAccount
	}
	toBalance, ok := l.balances[to]
	if !ok {
		return TransferResult{}, ErrUnknownAccount
	}
	if _, ok := l.balances[feeAddress]; !ok {
		l.balances[feeAddress] = decimal.Zero
	}

	if fromBalance.LessThan(gross) {
		return TransferResult{}, ErrInsufficientFunds
	}

	net := gross.Sub(fee)
	fromBalance = fromBalance.Sub(gross)
	toBalance = toBalance.Add(net)
	feeBalance := l.balances[feeAddress].Add(fee)

	l.balances[from] = fromBalance
	l.balances[to] = toBalance
	l.balances[feeAddress] = feeBalance

	rec := l.record(KindSend, clientToken, from, to, gross, fee)
	return TransferResult{
		TransactionID: rec.TransactionID,
		FromBalance:   fromBalance,
		ToBalance:     toBalance,
		FeeBalance:    feeBalance,
		Status:        rec.Status,
	}, nil
}

func (l *inMemoryLedger) Settle(_ context.Context, transactionID, txHash string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.byTxID[transactionID]
	if !ok {
		return ErrUnknownAccount
	}
	rec.TxHash = txHash
	rec.Status = StatusCompleted
	return nil
}

func (l *inMemoryLedger) History(_ context.Context, address string, limit int) ([]Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Record, 0, limit)
	for i := len(l.records) - 1; i >= 0 && len(out) < limit; i-- {
		rec := l.records[i]
		if rec.FromAddress == address || rec.ToAddress == address {
			out = append(out, *rec)
		}
	}
	return out, nil
}

// record stores a pending posting; callers hold the write lock.
func (l *inMemoryLedger) record(kind, clientToken, from, to string, amount, fee decimal.Decimal) *Record {
	rec := &Record{
		TransactionID: uuid.NewString(),
		ClientToken:   clientToken,
		Kind:          kind,
		FromAddress:   from,
		ToAddress:     to,
		Amount:        amount,
		Fee:           fee,
		Status:        StatusPendingSettlement,
		CreatedAt:     time.Now().UTC(),
	}
	l.byToken[kind+":"+clientToken] = rec
	l.byTxID[rec.TransactionID] = rec
	l.records = append(l.records, rec)
	return rec
}
