// Package memory provides an in-process implementation of the store.Ledger
// interface.
package memory

import (
	"context"
	"sync"

	"github.com/rohan-js/automated-api-testing-framework/store"
)

// Ensure MemoryLedger implements store.Ledger
var _ store.Ledger = (*MemoryLedger)(nil)

// MemoryLedger holds accounts in a map guarded by one mutex. Each operation
// runs as a single scoped critical section, so a request observes and mutates
// a consistent ledger.
type MemoryLedger struct {
	mu        sync.Mutex
	accounts  map[string]float64
	txCounter int64
}

// New creates a ledger seeded with the given accounts. A nil seed creates an
// empty ledger.
func New(accounts map[string]float64) *MemoryLedger {
	l := &MemoryLedger{
		accounts: make(map[string]float64, len(accounts)),
	}
	for account, balance := range accounts {
		l.accounts[account] = balance
	}
	return l
}

// Accounts returns a copy of all accounts and their balances.
func (l *MemoryLedger) Accounts(_ context.Context) (map[string]float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	accounts := make(map[string]float64, len(l.accounts))
	for account, balance := range l.accounts {
		accounts[account] = balance
	}
	return accounts, nil
}

// Balance returns one account's balance.
func (l *MemoryLedger) Balance(_ context.Context, account string) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	balance, ok := l.accounts[account]
	if !ok {
		return 0, store.ErrAccountNotFound
	}
	return balance, nil
}

// Deposit adds amount to the account, creating it at zero if absent.
func (l *MemoryLedger) Deposit(_ context.Context, account string, amount float64) (store.TxRecord, error) {
	if amount <= 0 {
		return store.TxRecord{}, store.ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.accounts[account] += amount
	l.txCounter++

	return store.TxRecord{
		ID:       l.txCounter,
		Balances: map[string]float64{account: l.accounts[account]},
	}, nil
}

// Transfer moves amount between two existing accounts.
func (l *MemoryLedger) Transfer(_ context.Context, from, to string, amount float64, allowOverdraft bool) (store.TxRecord, error) {
	if from == to {
		return store.TxRecord{}, store.ErrSameAccount
	}
	if amount <= 0 {
		return store.TxRecord{}, store.ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	sourceBalance, ok := l.accounts[from]
	if !ok {
		return store.TxRecord{}, store.ErrAccountNotFound
	}
	if _, ok := l.accounts[to]; !ok {
		return store.TxRecord{}, store.ErrAccountNotFound
	}
	if !allowOverdraft && sourceBalance < amount {
		return store.TxRecord{}, store.ErrInsufficientFunds
	}

	l.accounts[from] -= amount
	l.accounts[to] += amount
	l.txCounter++

	return store.TxRecord{
		ID: l.txCounter,
		Balances: map[string]float64{
			from: l.accounts[from],
			to:   l.accounts[to],
		},
	}, nil
}

// Reset replaces all accounts and restarts the transaction counter.
func (l *MemoryLedger) Reset(_ context.Context, accounts map[string]float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.accounts = make(map[string]float64, len(accounts))
	for account, balance := range accounts {
		l.accounts[account] = balance
	}
	l.txCounter = 0
	return nil
}
