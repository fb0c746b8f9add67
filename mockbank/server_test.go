package mockbank

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// ============================================================================
// Unit Tests for the mock bank handlers
// ============================================================================

func startServer(t *testing.T, opts ...ServerOption) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(NewServer(opts...).Handler())
	t.Cleanup(server.Close)
	return server
}

func call(t *testing.T, server *httptest.Server, method, path string, body any, headers map[string]string) (int, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, server.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	for name, value := range headers {
		req.Header.Set(name, value)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp.StatusCode, decoded
}

func TestHealth(t *testing.T) {
	server := startServer(t)
	status, body := call(t, server, "GET", "/health", nil, nil)
	if status != 200 || body["status"] != "ok" {
		t.Errorf("unexpected response: %d %v", status, body)
	}
}

func TestBalance(t *testing.T) {
	server := startServer(t)

	status, body := call(t, server, "GET", "/balance", nil, nil)
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	accounts := body["accounts"].(map[string]any)
	if accounts["A"] != 1000.0 || accounts["B"] != 1000.0 {
		t.Errorf("unexpected accounts: %v", accounts)
	}

	status, body = call(t, server, "GET", "/balance?account=A", nil, nil)
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	accounts = body["accounts"].(map[string]any)
	if len(accounts) != 1 || accounts["A"] != 1000.0 {
		t.Errorf("unexpected accounts: %v", accounts)
	}

	status, body = call(t, server, "GET", "/balance?account=Z", nil, nil)
	if status != 404 {
		t.Fatalf("expected 404, got %d", status)
	}
	if body["error"] != "Account Z not found" {
		t.Errorf("unexpected error: %v", body["error"])
	}
}

func TestDeposit(t *testing.T) {
	server := startServer(t)

	status, body := call(t, server, "POST", "/deposit",
		map[string]any{"account": "A", "amount": 250.0}, nil)
	if status != 200 {
		t.Fatalf("expected 200, got %d: %v", status, body)
	}
	if body["balance"] != 1250.0 {
		t.Errorf("expected balance 1250, got %v", body["balance"])
	}
	if body["transaction_id"] == nil {
		t.Errorf("transaction_id missing: %v", body)
	}

	tests := []struct {
		name      string
		payload   map[string]any
		wantError string
	}{
		{"missing account", map[string]any{"amount": 10.0}, "`account` must be a string"},
		{"non-string account", map[string]any{"account": 5, "amount": 10.0}, "`account` must be a string"},
		{"missing amount", map[string]any{"account": "A"}, "`amount` must be numeric"},
		{"string amount", map[string]any{"account": "A", "amount": "x"}, "`amount` must be numeric"},
		{"zero amount", map[string]any{"account": "A", "amount": 0.0}, "`amount` must be > 0"},
		{"negative amount", map[string]any{"account": "A", "amount": -5.0}, "`amount` must be > 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := call(t, server, "POST", "/deposit", tt.payload, nil)
			if status != 400 {
				t.Errorf("expected 400, got %d", status)
			}
			if body["error"] != tt.wantError {
				t.Errorf("expected %q, got %v", tt.wantError, body["error"])
			}
		})
	}
}

func TestTransfer(t *testing.T) {
	server := startServer(t)

	status, body := call(t, server, "POST", "/transfer",
		map[string]any{"from": "A", "to": "B", "amount": 100.0}, nil)
	if status != 200 {
		t.Fatalf("expected 200, got %d: %v", status, body)
	}
	balances := body["balances"].(map[string]any)
	if balances["A"] != 900.0 || balances["B"] != 1100.0 {
		t.Errorf("unexpected balances: %v", balances)
	}

	tests := []struct {
		name       string
		payload    map[string]any
		wantStatus int
		wantError  string
	}{
		{"missing from", map[string]any{"to": "B", "amount": 10.0}, 400, "`from` must be a string"},
		{"missing to", map[string]any{"from": "A", "amount": 10.0}, 400, "`to` must be a string"},
		{"same account", map[string]any{"from": "A", "to": "A", "amount": 10.0}, 400, "`from` and `to` must be different accounts"},
		{"string amount", map[string]any{"from": "A", "to": "B", "amount": "x"}, 400, "`amount` must be numeric"},
		{"zero amount", map[string]any{"from": "A", "to": "B", "amount": 0.0}, 400, "`amount` must be > 0"},
		{"unknown account", map[string]any{"from": "Z", "to": "B", "amount": 10.0}, 404, "Account not found"},
		{"insufficient funds", map[string]any{"from": "A", "to": "B", "amount": 99999.0}, 400, "Insufficient funds"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := call(t, server, "POST", "/transfer", tt.payload, nil)
			if status != tt.wantStatus {
				t.Errorf("expected %d, got %d", tt.wantStatus, status)
			}
			if body["error"] != tt.wantError {
				t.Errorf("expected %q, got %v", tt.wantError, body["error"])
			}
		})
	}
}

func TestTransferIdempotentReplay(t *testing.T) {
	server := startServer(t)
	payload := map[string]any{"from": "A", "to": "B", "amount": 100.0}
	headers := map[string]string{"Idempotency-Key": "key-1"}

	status, first := call(t, server, "POST", "/transfer", payload, headers)
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	if first["idempotent_replay"] != nil {
		t.Errorf("first call must not be a replay")
	}

	status, second := call(t, server, "POST", "/transfer", payload, headers)
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	if second["idempotent_replay"] != true {
		t.Errorf("second call must be flagged as a replay: %v", second)
	}
	if second["transaction_id"] != first["transaction_id"] {
		t.Errorf("replay must return the original transaction")
	}

	// Money moved exactly once.
	_, body := call(t, server, "GET", "/balance", nil, nil)
	accounts := body["accounts"].(map[string]any)
	if accounts["A"] != 900.0 || accounts["B"] != 1100.0 {
		t.Errorf("replay moved money: %v", accounts)
	}
}

func TestTransferDuplicateOnRetryBug(t *testing.T) {
	server := startServer(t, WithBugFlags(BugFlags{DuplicateOnRetry: true}))
	payload := map[string]any{"from": "A", "to": "B", "amount": 100.0}
	headers := map[string]string{"Idempotency-Key": "key-1"}

	call(t, server, "POST", "/transfer", payload, headers)
	call(t, server, "POST", "/transfer", payload, headers)

	_, body := call(t, server, "GET", "/balance", nil, nil)
	accounts := body["accounts"].(map[string]any)
	if accounts["A"] != 800.0 || accounts["B"] != 1200.0 {
		t.Errorf("bug must apply the transfer twice: %v", accounts)
	}
}

func TestTransferAllowNegativeBug(t *testing.T) {
	server := startServer(t, WithBugFlags(BugFlags{AllowNegativeBalance: true}))

	status, body := call(t, server, "POST", "/transfer",
		map[string]any{"from": "A", "to": "B", "amount": 5000.0}, nil)
	if status != 200 {
		t.Fatalf("expected overdraft to be accepted, got %d: %v", status, body)
	}
	balances := body["balances"].(map[string]any)
	if balances["A"] != -4000.0 {
		t.Errorf("expected A=-4000, got %v", balances)
	}
}

func TestReset(t *testing.T) {
	server := startServer(t)

	// Drift the state, then reset to defaults.
	call(t, server, "POST", "/deposit", map[string]any{"account": "A", "amount": 10.0}, nil)
	status, body := call(t, server, "POST", "/reset", map[string]any{}, nil)
	if status != 200 || body["status"] != "reset" {
		t.Fatalf("unexpected response: %d %v", status, body)
	}
	accounts := body["accounts"].(map[string]any)
	if accounts["A"] != 1000.0 || accounts["B"] != 1000.0 {
		t.Errorf("expected default accounts, got %v", accounts)
	}

	// Reset with custom accounts.
	status, body = call(t, server, "POST", "/reset",
		map[string]any{"accounts": map[string]any{"X": 5.0}}, nil)
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	_, body = call(t, server, "GET", "/balance", nil, nil)
	accounts = body["accounts"].(map[string]any)
	if len(accounts) != 1 || accounts["X"] != 5.0 {
		t.Errorf("unexpected accounts after reset: %v", accounts)
	}
}

func TestResetValidation(t *testing.T) {
	server := startServer(t)

	status, body := call(t, server, "POST", "/reset",
		map[string]any{"bug_flags": "nope"}, nil)
	if status != 400 || body["error"] != "`bug_flags` must be a mapping" {
		t.Errorf("unexpected response: %d %v", status, body)
	}

	status, body = call(t, server, "POST", "/reset",
		map[string]any{"accounts": []any{"A"}}, nil)
	if status != 400 || body["error"] != "`accounts` must be a mapping" {
		t.Errorf("unexpected response: %d %v", status, body)
	}

	status, body = call(t, server, "POST", "/reset",
		map[string]any{"accounts": map[string]any{"A": "x"}}, nil)
	if status != 400 || body["error"] != "Account balances must be numeric" {
		t.Errorf("unexpected response: %d %v", status, body)
	}
}

func TestResetTogglesBugFlags(t *testing.T) {
	srv := NewServer()
	server := httptest.NewServer(srv.Handler())
	defer server.Close()

	status, body := call(t, server, "POST", "/reset",
		map[string]any{"bug_flags": map[string]any{"duplicate_on_retry": true}}, nil)
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	flags := body["bug_flags"].(map[string]any)
	if flags["duplicate_on_retry"] != true || flags["allow_negative_balance"] != false {
		t.Errorf("unexpected flags: %v", flags)
	}
	if !srv.Bugs().DuplicateOnRetry {
		t.Errorf("flag not applied to the server")
	}

	// Omitted flags keep their current value.
	status, body = call(t, server, "POST", "/reset",
		map[string]any{"bug_flags": map[string]any{"allow_negative_balance": true}}, nil)
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	flags = body["bug_flags"].(map[string]any)
	if flags["duplicate_on_retry"] != true || flags["allow_negative_balance"] != true {
		t.Errorf("unexpected flags: %v", flags)
	}
}

func TestResetClearsReplayCache(t *testing.T) {
	server := startServer(t)
	payload := map[string]any{"from": "A", "to": "B", "amount": 100.0}
	headers := map[string]string{"Idempotency-Key": "key-1"}

	call(t, server, "POST", "/transfer", payload, headers)
	call(t, server, "POST", "/reset", map[string]any{}, nil)

	// After a reset the same key applies again.
	_, body := call(t, server, "POST", "/transfer", payload, headers)
	if body["idempotent_replay"] != nil {
		t.Errorf("reset must clear the replay cache: %v", body)
	}
}
