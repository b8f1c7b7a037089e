package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresLedger persists the balance mirror in PostgreSQL ensuring
// double-entry balance across wallet, fee and issuer accounts.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// EnsureAccount guarantees an account exists for the provided address.
func (l *PostgresLedger) EnsureAccount(ctx context.Context, address string) error {
	_, err := l.db.Exec(ctx, `INSERT INTO accounts (id, address) VALUES ($1, $2)
        ON CONFLICT (address) DO NOTHING`, uuid.New(), address)
	return err
}

// Balance returns the summed entry balance for the specified address.
func (l *PostgresLedger) Balance(ctx context.Context, address string) (decimal.Decimal, error) {
	const query = `
        SELECT a.id, COALESCE(SUM(e.amount), 0)::text
        FROM accounts a
        LEFT JOIN entries e ON e.account_id = a.id
        WHERE a.address = $1
        GROUP BY a.id`
	var (
		id  uuid.UUID
		raw string
	)
	if err := l.db.QueryRow(ctx, query, address).Scan(&id, &raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ErrUnknownAccount
		}
		return decimal.Zero, err
	}
	return decimal.NewFromString(raw)
}

// Mint credits freshly issued tokens to the address, debiting the issuer account.
func (l *PostgresLedger) Mint(ctx context.Context, address, clientToken string, amount decimal.Decimal) (MintResult, error) {
	if amount.Sign() <= 0 {
		return MintResult{}, ErrInvalidAmount
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return MintResult{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	ids, err := lockAccounts(ctx, tx, address, IssuerAccountCode)
	if err != nil {
		return MintResult{}, err
	}

	if rec, found, err := existingRecord(ctx, tx, KindDeposit, clientToken); err != nil {
		return MintResult{}, err
	} else if found {
		balance, err := balanceForAccount(ctx, tx, ids[address])
		if err != nil {
			return MintResult{}, err
		}
		return MintResult{TransactionID: rec.TransactionID, NewBalance: balance, Status: rec.Status}, ErrDuplicateTransaction
	}

	txID := uuid.New()
	if err := insertTransaction(ctx, tx, txID, clientToken, KindDeposit, IssuerAccountCode, address, amount, decimal.Zero); err != nil {
		return MintResult{}, err
	}
	if err := insertEntry(ctx, tx, txID, ids[IssuerAccountCode], amount.Neg()); err != nil {
		return MintResult{}, err
	}
	if err := insertEntry(ctx, tx, txID, ids[address], amount); err != nil {
		return MintResult{}, err
	}

	balance, err := balanceForAccount(ctx, tx, ids[address])
	if err != nil {
		return MintResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return MintResult{}, err
	}

	return MintResult{TransactionID: txID.String(), NewBalance: balance, Status: StatusPendingSettlement}, nil
}

// Burn retires tokens from the address back to the issuer account.
func (l *PostgresLedger) Burn(ctx context.Context, address, clientToken string, amount decimal.Decimal) (BurnResult, error) {
	if amount.Sign() <= 0 {
		return BurnResult{}, ErrInvalidAmount
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return BurnResult{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	ids, err := lockAccounts(ctx, tx, address, IssuerAccountCode)
	if err != nil {
		return BurnResult{}, err
	}

	if rec, found, err := existingRecord(ctx, tx, KindWithdraw, clientToken); err != nil {
		return BurnResult{}, err
	} else if found {
		balance, err := balanceForAccount(ctx, tx, ids[address])
		if err != nil {
			return BurnResult{}, err
		}
		return BurnResult{TransactionID: rec.TransactionID, NewBalance: balance, Status: rec.Status}, ErrDuplicateTransaction
	}

	balance, err := balanceForAccount(ctx, tx, ids[address])
	if err != nil {
		return BurnResult{}, err
	}
	if balance.LessThan(amount) {
		return BurnResult{}, ErrInsufficientFunds
	}

	txID := uuid.New()
	if err := insertTransaction(ctx, tx, txID, clientToken, KindWithdraw, address, IssuerAccountCode, amount, decimal.Zero); err != nil {
		return BurnResult{}, err
	}
	if err := insertEntry(ctx, tx, txID, ids[address], amount.Neg()); err != nil {
		return BurnResult{}, err
	}
	if err := insertEntry(ctx, tx, txID, ids[IssuerAccountCode], amount); err != nil {
		return BurnResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return BurnResult{}, err
	}

	return BurnResult{TransactionID: txID.String(), NewBalance: balance.Sub(amount), Status: StatusPendingSettlement}, nil
}

// Transfer atomically debits the sender by gross, credits the recipient with
// gross-fee and accrues the fee to the fee account.
func (l *PostgresLedger) Transfer(ctx context.Context, from, to, feeAddress, clientToken string, gross, fee decimal.Decimal) (TransferResult, error) {
	if gross.Sign() <= 0 || fee.Sign() < 0 || fee.GreaterThanOrEqual(gross) {
		return TransferResult{}, ErrInvalidAmount
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return TransferResult{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	ids, err := lockAccounts(ctx, tx, from, to, feeAddress)
	if err != nil {
		return TransferResult{}, err
	}

	if rec, found, err := existingRecord(ctx, tx, KindSend, clientToken); err != nil {
		return TransferResult{}, err
	} else if found {
		res := TransferResult{TransactionID: rec.TransactionID, Status: rec.Status}
		if res.FromBalance, err = balanceForAccount(ctx, tx, ids[from]); err != nil {
			return TransferResult{}, err
		}
		if res.ToBalance, err = balanceForAccount(ctx, tx, ids[to]); err != nil {
			return TransferResult{}, err
		}
		if res.FeeBalance, err = balanceForAccount(ctx, tx, ids[feeAddress]); err != nil {
			return TransferResult{}, err
		}
		return res, ErrDuplicateTransaction
	}

	fromBalance, err := balanceForAccount(ctx, tx, ids[from])
	if err != nil {
		return TransferResult{}, err
	}
	if fromBalance.LessThan(gross) {
		return TransferResult{}, ErrInsufficientFunds
	}

	net := gross.Sub(fee)
	txID := uuid.New()
	if err := insertTransaction(ctx, tx, txID, clientToken, KindSend, from, to, gross, fee); err != nil {
		return TransferResult{}, err
	}
	if err := insertEntry(ctx, tx, txID, ids[from], gross.Neg()); err != nil {
		return TransferResult{}, err
	}
	if err := insertEntry(ctx, tx, txID, ids[to], net); err != nil {
		return TransferResult{}, err
	}
	if fee.Sign() > 0 {
		if err := insertEntry(ctx, tx, txID, ids[feeAddress], fee); err != nil {
			return TransferResult{}, err
		}
	}

	res := TransferResult{TransactionID: txID.String(), Status: StatusPendingSettlement}
	if res.FromBalance, err = balanceForAccount(ctx, tx, ids[from]); err != nil {
		return TransferResult{}, err
	}
	if res.ToBalance, err = balanceForAccount(ctx, tx, ids[to]); err != nil {
		return TransferResult{}, err
	}
	if res.FeeBalance, err = balanceForAccount(ctx, tx, ids[feeAddress]); err != nil {
		return TransferResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return TransferResult{}, err
	}

	return res, nil
}

// Settle records the network transaction hash and marks the posting completed.
func (l *PostgresLedger) Settle(ctx context.Context, transactionID, txHash string) error {
	id, err := uuid.Parse(transactionID)
	if err != nil {
		return err
	}
	cmd, err := l.db.Exec(ctx, `UPDATE transactions SET status = $1, tx_hash = $2 WHERE id = $3`,
		StatusCompleted, txHash, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("transaction %s not found", transactionID)
	}
	return nil
}

// History lists postings touching the address, newest first.
func (l *PostgresLedger) History(ctx context.Context, address string, limit int) ([]Record, error) {
	const query = `
        SELECT id, client_token, kind, from_address, to_address, amount::text, fee::text, tx_hash, status, created_at
        FROM transactions
        WHERE from_address = $1 OR to_address = $1
        ORDER BY created_at DESC
        LIMIT $2`
	rows, err := l.db.Query(ctx, query, address, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec       Record
			id        uuid.UUID
			amountRaw string
			feeRaw    string
			createdAt time.Time
		)
		if err := rows.Scan(&id, &rec.ClientToken, &rec.Kind, &rec.FromAddress, &rec.ToAddress,
			&amountRaw, &feeRaw, &rec.TxHash, &rec.Status, &createdAt); err != nil {
			return nil, err
		}
		rec.TransactionID = id.String()
		rec.CreatedAt = createdAt.UTC()
		if rec.Amount, err = decimal.NewFromString(amountRaw); err != nil {
			return nil, err
		}
		if rec.Fee, err = decimal.NewFromString(feeRaw); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// lockAccounts acquires row locks for every address in sort order so that two
// opposite-direction transfers cannot deadlock.
func lockAccounts(ctx context.Context, tx pgx.Tx, addresses ...string) (map[string]uuid.UUID, error) {
	uniq := make([]string, 0, len(addresses))
	seen := make(map[string]bool, len(addresses))
	for _, a := range addresses {
		if !seen[a] {
			seen[a] = true
			uniq = append(uniq, a)
		}
	}
	sort.Strings(uniq)

	ids := make(map[string]uuid.UUID, len(uniq))
	const query = `SELECT id FROM accounts WHERE address = $1 FOR UPDATE`
	for _, address := range uniq {
		var id uuid.UUID
		if err := tx.QueryRow(ctx, query, address).Scan(&id); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrUnknownAccount
			}
			return nil, err
		}
		ids[address] = id
	}
	return ids, nil
}

func existingRecord(ctx context.Context, tx pgx.Tx, kind, clientToken string) (Record, bool, error) {
	const query = `SELECT id, status FROM transactions WHERE client_token = $1 AND kind = $2`
	var (
		id     uuid.UUID
		status string
	)
	if err := tx.QueryRow(ctx, query, clientToken, kind).Scan(&id, &status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, false, nil
		}
		return Record{}, false, err
	}
	return Record{TransactionID: id.String(), ClientToken: clientToken, Kind: kind, Status: status}, true, nil
}

func insertTransaction(ctx context.Context, tx pgx.Tx, id uuid.UUID, clientToken, kind, from, to string, amount, fee decimal.Decimal) error {
	_, err := tx.Exec(ctx, `INSERT INTO transactions (id, client_token, kind, status, from_address, to_address, amount, fee)
        VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8::numeric)`,
		id, clientToken, kind, StatusPendingSettlement, from, to, amount.String(), fee.String())
	return err
}

func insertEntry(ctx context.Context, tx pgx.Tx, txID, accountID uuid.UUID, amount decimal.Decimal) error {
	_, err := tx.Exec(ctx, `INSERT INTO entries (id, transaction_id, account_id, amount)
        VALUES ($1, $2, $3, $4::numeric)`, uuid.New(), txID, accountID, amount.String())
	return err
}

func balanceForAccount(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) (decimal.Decimal, error) {
	const query = `SELECT COALESCE(SUM(amount), 0)::text FROM entries WHERE account_id = $1`
	var raw string
	if err := tx.QueryRow(ctx, query, accountID).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return decimal.NewFromString(raw)
}
