package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrUnknownWallet occurs when no wallet is registered for an address.
	ErrUnknownWallet = errors.New("wallet not found")
	// ErrDuplicateUser occurs when a user id already owns a wallet.
	ErrDuplicateUser = errors.New("user already has a wallet")
)

// Repository persists wallet records.
type Repository interface {
	Create(ctx context.Context, wallet Wallet) error
	GetByAddress(ctx context.Context, address string) (Wallet, error)
	GetByUser(ctx context.Context, userID string) (Wallet, error)
}

// PostgresRepository stores wallets in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a wallet record.
func (r *PostgresRepository) Create(ctx context.Context, wallet Wallet) error {
	walletID, err := uuid.Parse(wallet.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO wallets (id, user_id, email, address, encrypted_secret, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		walletID, wallet.UserID, wallet.Email, wallet.Address, wallet.EncryptedSecret, wallet.CreatedAt.UTC())
	if err != nil && isUniqueViolation(err) {
		return ErrDuplicateUser
	}
	return err
}

// GetByAddress fetches a wallet by its Stellar address.
func (r *PostgresRepository) GetByAddress(ctx context.Context, address string) (Wallet, error) {
	return r.get(ctx, `SELECT id, user_id, email, address, encrypted_secret, created_at
        FROM wallets WHERE address = $1`, address)
}

// GetByUser fetches a wallet by the owning user id.
func (r *PostgresRepository) GetByUser(ctx context.Context, userID string) (Wallet, error) {
	return r.get(ctx, `SELECT id, user_id, email, address, encrypted_secret, created_at
        FROM wallets WHERE user_id = $1`, userID)
}

func (r *PostgresRepository) get(ctx context.Context, query, arg string) (Wallet, error) {
	row := r.db.QueryRow(ctx, query, arg)
	var (
		w         Wallet
		id        uuid.UUID
		createdAt time.Time
	)
	if err := row.Scan(&id, &w.UserID, &w.Email, &w.Address, &w.EncryptedSecret, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrUnknownWallet
		}
		return Wallet{}, err
	}
	w.ID = id.String()
	w.CreatedAt = createdAt.UTC()
	return w, nil
}

func isUniqueViolation(err error) bool {
	type sqlState interface{ SQLState() string }
	var state sqlState
	return errors.As(err, &state) && state.SQLState() == "23505"
}
