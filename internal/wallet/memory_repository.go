package wallet

import (
	"context"
	"sync"
)

type memoryRepository struct {
	mu        sync.RWMutex
	byAddress map[string]Wallet
	byUser    map[string]Wallet
}

// NewMemoryRepository constructs an in-memory repository for development and tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		byAddress: make(map[string]Wallet),
		byUser:    make(map[string]Wallet),
	}
}

func (r *memoryRepository) Create(_ context.Context, wallet Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byUser[wallet.UserID]; exists {
		return ErrDuplicateUser
	}
	r.byAddress[wallet.Address] = wallet
	r.byUser[wallet.UserID] = wallet
	return nil
}

func (r *memoryRepository) GetByAddress(_ context.Context, address string) (Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	wallet, ok := r.byAddress[address]
	if !ok {
		return Wallet{}, ErrUnknownWallet
	}
	return wallet, nil
}

func (r *memoryRepository) GetByUser(_ context.Context, userID string) (Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	wallet, ok := r.byUser[userID]
	if !ok {
		return Wallet{}, ErrUnknownWallet
	}
	return wallet, nil
}
