package apitest

import (
	"fmt"
	"sort"
	"strings"
)

// Invariant names as they appear in specs and reports.
const (
	InvariantBalanceNonNegative = "balance_non_negative"
	InvariantMoneyConserved     = "money_conserved"
	InvariantIdempotent         = "idempotent"
)

// DefaultTolerance is the fixed epsilon used when comparing balances.
// Monetary arithmetic in the target may accumulate floating-point rounding
// error; an absolute epsilon is appropriate for the bounded magnitudes in
// scope.
const DefaultTolerance = 1e-9

// InvariantChecker evaluates domain invariants over snapshots. All checks are
// pure functions of their inputs and independent of transport.
type InvariantChecker struct {
	tolerance float64
}

// InvariantCheckerOption configures an InvariantChecker.
type InvariantCheckerOption func(*InvariantChecker)

// WithTolerance overrides the comparison epsilon.
func WithTolerance(tolerance float64) InvariantCheckerOption {
	return func(c *InvariantChecker) {
		c.tolerance = tolerance
	}
}

// NewInvariantChecker creates a checker with DefaultTolerance unless
// overridden.
func NewInvariantChecker(opts ...InvariantCheckerOption) *InvariantChecker {
	c := &InvariantChecker{tolerance: DefaultTolerance}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CheckBalanceNonNegative fails when any account balance is below zero.
// Offending accounts are enumerated sorted by name.
func (c *InvariantChecker) CheckBalanceNonNegative(state Snapshot) InvariantResult {
	var negatives []string
	for account, balance := range state {
		if balance < 0 {
			negatives = append(negatives, fmt.Sprintf("%s=%.2f", account, balance))
		}
	}

	if len(negatives) > 0 {
		sort.Strings(negatives)
		return InvariantResult{
			Name:    InvariantBalanceNonNegative,
			Passed:  false,
			Message: "Negative balances detected: " + strings.Join(negatives, ", "),
		}
	}
	return InvariantResult{
		Name:    InvariantBalanceNonNegative,
		Passed:  true,
		Message: "All account balances are non-negative",
	}
}

// CheckMoneyConserved fails when the balance totals of the two snapshots
// drift apart by more than the tolerance.
func (c *InvariantChecker) CheckMoneyConserved(before, after Snapshot) InvariantResult {
	totalBefore := before.Total()
	totalAfter := after.Total()
	delta := totalAfter - totalBefore

	if abs(delta) <= c.tolerance {
		return InvariantResult{
			Name:   InvariantMoneyConserved,
			Passed: true,
			Message: fmt.Sprintf("Total money conserved (before=%.2f, after=%.2f)",
				totalBefore, totalAfter),
		}
	}
	return InvariantResult{
		Name:   InvariantMoneyConserved,
		Passed: false,
		Message: fmt.Sprintf("Money drift detected (before=%.2f, after=%.2f, delta=%.2f)",
			totalBefore, totalAfter, delta),
	}
}

// CheckIdempotent fails when any account differs between the two snapshots by
// more than the tolerance. The comparison runs over the union of account
// names; an absent account counts as balance 0.
func (c *InvariantChecker) CheckIdempotent(afterFirst, afterRetries Snapshot) InvariantResult {
	seen := make(map[string]struct{}, len(afterFirst)+len(afterRetries))
	var accounts []string
	for account := range afterFirst {
		seen[account] = struct{}{}
		accounts = append(accounts, account)
	}
	for account := range afterRetries {
		if _, ok := seen[account]; !ok {
			accounts = append(accounts, account)
		}
	}
	sort.Strings(accounts)

	var changed []string
	for _, account := range accounts {
		first := afterFirst[account]
		retry := afterRetries[account]
		if abs(first-retry) > c.tolerance {
			changed = append(changed, fmt.Sprintf("%s: %.2f -> %.2f", account, first, retry))
		}
	}

	if len(changed) > 0 {
		return InvariantResult{
			Name:    InvariantIdempotent,
			Passed:  false,
			Message: "State changed across retries: " + strings.Join(changed, "; "),
		}
	}
	return InvariantResult{
		Name:    InvariantIdempotent,
		Passed:  true,
		Message: "Replayed request produced identical final state",
	}
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
