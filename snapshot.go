package apitest

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/rohan-js/automated-api-testing-framework/metrics"
)

// Snapshot is an immutable account → balance mapping captured from one
// balance-query response. Snapshots are compared only by value and never
// mutated after capture.
type Snapshot map[string]float64

// Total returns the sum of all balances.
func (s Snapshot) Total() float64 {
	var total float64
	for _, balance := range s {
		total += balance
	}
	return total
}

// Equal reports whether two snapshots hold exactly the same accounts with
// exactly the same balances. Used for the fuzz runner's "state changed"
// decision, which is deliberately exact rather than tolerance-based.
func (s Snapshot) Equal(other Snapshot) bool {
	if len(s) != len(other) {
		return false
	}
	for account, balance := range s {
		otherBalance, ok := other[account]
		if !ok || otherBalance != balance {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	clone := make(Snapshot, len(s))
	for account, balance := range s {
		clone[account] = balance
	}
	return clone
}

// StateTracker captures account balances from the target's balance-query
// endpoint. The query has no side-effecting semantics; the tracker never
// retries a failed capture.
type StateTracker struct {
	engine      *RequestEngine
	balancePath string
	metrics     metrics.Metrics
}

// StateTrackerOption configures a StateTracker.
type StateTrackerOption func(*StateTracker)

// WithBalancePath overrides the balance-query path, default "/balance".
func WithBalancePath(path string) StateTrackerOption {
	return func(t *StateTracker) {
		t.balancePath = path
	}
}

// WithTrackerMetrics sets the metrics collector for the tracker.
func WithTrackerMetrics(m metrics.Metrics) StateTrackerOption {
	return func(t *StateTracker) {
		t.metrics = m
	}
}

// NewStateTracker creates a StateTracker backed by the given request engine.
func NewStateTracker(engine *RequestEngine, opts ...StateTrackerOption) *StateTracker {
	t := &StateTracker{
		engine:      engine,
		balancePath: "/balance",
		metrics:     &metrics.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Capture queries the target and returns a fresh snapshot.
// The error wraps ErrStateCapture when the transport fails, the status is not
// 200, or the body is not an object mapping account names to numbers (either
// directly or under an "accounts" key).
func (t *StateTracker) Capture(ctx context.Context) (Snapshot, error) {
	return t.capture(ctx, "")
}

// CaptureAccount queries the balance of a single account.
func (t *StateTracker) CaptureAccount(ctx context.Context, account string) (Snapshot, error) {
	return t.capture(ctx, account)
}

func (t *StateTracker) capture(ctx context.Context, account string) (Snapshot, error) {
	opts := RequestOptions{EndpointName: "balance"}
	if account != "" {
		opts.Query = url.Values{"account": []string{account}}
	}

	started := time.Now()
	result := t.engine.Request(ctx, "GET", t.balancePath, opts)
	if result.Err != nil {
		t.metrics.SnapshotFailed("transport")
		return nil, fmt.Errorf("%w: %v", ErrStateCapture, result.Err)
	}
	if result.StatusCode != 200 {
		t.metrics.SnapshotFailed("status")
		return nil, fmt.Errorf("%w: HTTP %d returned by %s", ErrStateCapture, result.StatusCode, t.balancePath)
	}

	body, ok := result.Body.(map[string]any)
	if !ok {
		t.metrics.SnapshotFailed("body")
		return nil, fmt.Errorf("%w: %s did not return a JSON object", ErrStateCapture, t.balancePath)
	}

	raw := any(body)
	if nested, present := body["accounts"]; present {
		raw = nested
	}
	accounts, ok := raw.(map[string]any)
	if !ok {
		t.metrics.SnapshotFailed("body")
		return nil, fmt.Errorf("%w: accounts payload is not a mapping", ErrStateCapture)
	}

	snapshot := make(Snapshot, len(accounts))
	for name, value := range accounts {
		balance, ok := numericValue(value)
		if !ok {
			t.metrics.SnapshotFailed("body")
			return nil, fmt.Errorf("%w: balance for account %q is not numeric", ErrStateCapture, name)
		}
		snapshot[name] = balance
	}

	t.metrics.SnapshotCaptured(time.Since(started))
	return snapshot, nil
}
