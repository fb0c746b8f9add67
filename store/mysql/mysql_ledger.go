// Package mysql provides a MySQL implementation of the store.Ledger
// interface, for running the mock bank with a persistent ledger.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rohan-js/automated-api-testing-framework/store"
)

// Ensure MySQLLedger implements store.Ledger
var _ store.Ledger = (*MySQLLedger)(nil)

// Schema creates the tables the ledger needs.
const Schema = `
CREATE TABLE IF NOT EXISTS bank_accounts (
	account VARCHAR(64) PRIMARY KEY,
	balance DOUBLE NOT NULL
);
CREATE TABLE IF NOT EXISTS bank_transactions (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	operation VARCHAR(16) NOT NULL,
	account_from VARCHAR(64),
	account_to VARCHAR(64),
	amount DOUBLE NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

// MySQLLedger stores accounts in MySQL. Transfers run inside a database
// transaction with the source row locked, so the insufficient-funds check and
// the balance updates are atomic.
type MySQLLedger struct {
	db *sql.DB
}

// New creates a new MySQLLedger with the given database connection.
func New(db *sql.DB) *MySQLLedger {
	return &MySQLLedger{db: db}
}

// Accounts returns all accounts and their balances.
func (l *MySQLLedger) Accounts(ctx context.Context) (map[string]float64, error) {
	rows, err := l.db.QueryContext(ctx, "SELECT account, balance FROM bank_accounts")
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	accounts := make(map[string]float64)
	for rows.Next() {
		var account string
		var balance float64
		if err := rows.Scan(&account, &balance); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts[account] = balance
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return accounts, nil
}

// Balance returns one account's balance.
func (l *MySQLLedger) Balance(ctx context.Context, account string) (float64, error) {
	var balance float64
	err := l.db.QueryRowContext(ctx,
		"SELECT balance FROM bank_accounts WHERE account = ?", account).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, store.ErrAccountNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("query balance: %w", err)
	}
	return balance, nil
}

// Deposit adds amount to the account, creating it at zero if absent.
func (l *MySQLLedger) Deposit(ctx context.Context, account string, amount float64) (store.TxRecord, error) {
	if amount <= 0 {
		return store.TxRecord{}, store.ErrInvalidAmount
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return store.TxRecord{}, fmt.Errorf("begin deposit: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO bank_accounts (account, balance) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE balance = balance + VALUES(balance)`,
		account, amount)
	if err != nil {
		return store.TxRecord{}, fmt.Errorf("apply deposit: %w", err)
	}

	var balance float64
	if err := tx.QueryRowContext(ctx,
		"SELECT balance FROM bank_accounts WHERE account = ?", account).Scan(&balance); err != nil {
		return store.TxRecord{}, fmt.Errorf("read balance after deposit: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO bank_transactions (operation, account_to, amount)
		VALUES ('deposit', ?, ?)`,
		account, amount)
	if err != nil {
		return store.TxRecord{}, fmt.Errorf("record deposit: %w", err)
	}
	txID, err := result.LastInsertId()
	if err != nil {
		return store.TxRecord{}, fmt.Errorf("deposit id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return store.TxRecord{}, fmt.Errorf("commit deposit: %w", err)
	}

	return store.TxRecord{
		ID:       txID,
		Balances: map[string]float64{account: balance},
	}, nil
}

// Transfer moves amount between two existing accounts.
func (l *MySQLLedger) Transfer(ctx context.Context, from, to string, amount float64, allowOverdraft bool) (store.TxRecord, error) {
	if from == to {
		return store.TxRecord{}, store.ErrSameAccount
	}
	if amount <= 0 {
		return store.TxRecord{}, store.ErrInvalidAmount
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return store.TxRecord{}, fmt.Errorf("begin transfer: %w", err)
	}
	defer tx.Rollback()

	var sourceBalance float64
	err = tx.QueryRowContext(ctx,
		"SELECT balance FROM bank_accounts WHERE account = ? FOR UPDATE", from).Scan(&sourceBalance)
	if errors.Is(err, sql.ErrNoRows) {
		return store.TxRecord{}, store.ErrAccountNotFound
	}
	if err != nil {
		return store.TxRecord{}, fmt.Errorf("lock source account: %w", err)
	}

	var destBalance float64
	err = tx.QueryRowContext(ctx,
		"SELECT balance FROM bank_accounts WHERE account = ? FOR UPDATE", to).Scan(&destBalance)
	if errors.Is(err, sql.ErrNoRows) {
		return store.TxRecord{}, store.ErrAccountNotFound
	}
	if err != nil {
		return store.TxRecord{}, fmt.Errorf("lock destination account: %w", err)
	}

	if !allowOverdraft && sourceBalance < amount {
		return store.TxRecord{}, store.ErrInsufficientFunds
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE bank_accounts SET balance = balance - ? WHERE account = ?", amount, from); err != nil {
		return store.TxRecord{}, fmt.Errorf("debit source: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE bank_accounts SET balance = balance + ? WHERE account = ?", amount, to); err != nil {
		return store.TxRecord{}, fmt.Errorf("credit destination: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO bank_transactions (operation, account_from, account_to, amount)
		VALUES ('transfer', ?, ?, ?)`,
		from, to, amount)
	if err != nil {
		return store.TxRecord{}, fmt.Errorf("record transfer: %w", err)
	}
	txID, err := result.LastInsertId()
	if err != nil {
		return store.TxRecord{}, fmt.Errorf("transfer id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return store.TxRecord{}, fmt.Errorf("commit transfer: %w", err)
	}

	return store.TxRecord{
		ID: txID,
		Balances: map[string]float64{
			from: sourceBalance - amount,
			to:   destBalance + amount,
		},
	}, nil
}

// Reset replaces all accounts and clears the transaction log.
func (l *MySQLLedger) Reset(ctx context.Context, accounts map[string]float64) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reset: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM bank_accounts"); err != nil {
		return fmt.Errorf("clear accounts: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM bank_transactions"); err != nil {
		return fmt.Errorf("clear transactions: %w", err)
	}
	for account, balance := range accounts {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO bank_accounts (account, balance) VALUES (?, ?)", account, balance); err != nil {
			return fmt.Errorf("seed account %s: %w", account, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reset: %w", err)
	}
	return nil
}
