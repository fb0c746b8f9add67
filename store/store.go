// Package store defines the account ledger behind the mock bank. The ledger
// is an explicitly owned object passed to request handlers; it is never
// ambient shared state.
package store

import (
	"context"
	"errors"
)

// Ledger errors
var (
	// ErrAccountNotFound indicates the account does not exist
	ErrAccountNotFound = errors.New("account not found")

	// ErrInsufficientFunds indicates the source balance cannot cover a transfer
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrSameAccount indicates a transfer names the same account twice
	ErrSameAccount = errors.New("source and destination must differ")

	// ErrInvalidAmount indicates a non-positive amount
	ErrInvalidAmount = errors.New("amount must be > 0")
)

// TxRecord is the durable record of one applied operation.
type TxRecord struct {
	// ID is a monotonically increasing transaction identifier
	ID int64
	// Balances holds the post-operation balances of the involved accounts
	Balances map[string]float64
}

// Ledger is the account store the mock bank's handlers operate on. Every
// mutation happens inside the implementation's own critical section; callers
// never hold locks.
type Ledger interface {
	// Accounts returns all accounts and their balances.
	Accounts(ctx context.Context) (map[string]float64, error)

	// Balance returns one account's balance, or ErrAccountNotFound.
	Balance(ctx context.Context, account string) (float64, error)

	// Deposit adds amount to the account, creating it at zero if absent.
	// Returns ErrInvalidAmount for non-positive amounts.
	Deposit(ctx context.Context, account string, amount float64) (TxRecord, error)

	// Transfer moves amount between two existing accounts. When
	// allowOverdraft is false a transfer exceeding the source balance
	// returns ErrInsufficientFunds and leaves the ledger unchanged.
	Transfer(ctx context.Context, from, to string, amount float64, allowOverdraft bool) (TxRecord, error)

	// Reset replaces all accounts and restarts the transaction counter.
	Reset(ctx context.Context, accounts map[string]float64) error
}
