package stellar

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// ErrNetwork wraps failures talking to the Stellar network; callers use it to
// distinguish settlement problems from local validation errors.
var ErrNetwork = errors.New("stellar network error")

// ErrAccountNotFound indicates the address has no funded account on the network.
var ErrAccountNotFound = errors.New("account not found on network")

// Network is the connector to the external ledger the mirror settles against.
type Network interface {
	// Mint submits an issuer payment crediting destination and returns the tx hash.
	Mint(ctx context.Context, destination string, amount decimal.Decimal) (string, error)
	// Pay submits a payment signed with the sender secret and returns the tx hash.
	Pay(ctx context.Context, fromSecret, destination string, amount decimal.Decimal) (string, error)
	// Burn pays tokens back to the issuer, retiring them, and returns the tx hash.
	Burn(ctx context.Context, fromSecret string, amount decimal.Decimal) (string, error)
	// Balance returns the asset balance held by the address, zero when unfunded.
	Balance(ctx context.Context, address string) (decimal.Decimal, error)
	// FundAccount provisions a new account with base reserves where supported.
	FundAccount(ctx context.Context, address string) error
}

// Simulated is an in-process network used in development mode and tests. It
// keeps its own balance table so the balance endpoint exercises both sides of
// the reconciliation.
type Simulated struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
	seq      uint64
}

// NewSimulated builds an empty simulated network.
func NewSimulated() *Simulated {
	return &Simulated{balances: make(map[string]decimal.Decimal)}
}

// Mint credits the destination unconditionally, as the issuer can always pay.
func (s *Simulated) Mint(_ context.Context, destination string, amount decimal.Decimal) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[destination] = s.balances[destination].Add(amount)
	return s.hash("mint", destination, amount), nil
}

// Pay moves the amount between the derived sender address and the destination.
func (s *Simulated) Pay(_ context.Context, fromSecret, destination string, amount decimal.Decimal) (string, error) {
	kp, err := KeypairFromSecret(fromSecret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	from := kp.Address()
	if s.balances[from].LessThan(amount) {
		return "", fmt.Errorf("%w: underfunded payment from %s", ErrNetwork, from)
	}
	s.balances[from] = s.balances[from].Sub(amount)
	s.balances[destination] = s.balances[destination].Add(amount)
	return s.hash("pay", destination, amount), nil
}

// Burn retires tokens held by the secret's account.
func (s *Simulated) Burn(_ context.Context, fromSecret string, amount decimal.Decimal) (string, error) {
	kp, err := KeypairFromSecret(fromSecret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	from := kp.Address()
	if s.balances[from].LessThan(amount) {
		return "", fmt.Errorf("%w: underfunded burn from %s", ErrNetwork, from)
	}
	s.balances[from] = s.balances[from].Sub(amount)
	return s.hash("burn", from, amount), nil
}

// Balance reports the simulated holding, zero for unknown accounts.
func (s *Simulated) Balance(_ context.Context, address string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[address], nil
}

// FundAccount is a no-op; simulated accounts need no reserves.
func (s *Simulated) FundAccount(_ context.Context, _ string) error {
	return nil
}

func (s *Simulated) hash(kind, address string, amount decimal.Decimal) string {
	s.seq++
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%s:%d", kind, address, amount, s.seq)))
	return hex.EncodeToString(sum[:])
}
