package apitest

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

// ============================================================================
// Unit Tests for spec.go
// Tests YAML parsing, defaulting, and validation of run specs
// ============================================================================

const validSpecYAML = `
base_url: http://localhost:5000/
timeout_seconds: 2.5
response_sla_ms: 150
invariants:
  - balance_non_negative
  - money_conserved
retry_count: 5
retry_endpoint: transfer
retry_idempotency_key: my-key
fuzz_enabled: false
fuzz_endpoint: transfer
endpoints:
  reset:
    method: post
    path: /reset
  deposit:
    method: POST
    path: /deposit
    body:
      account: A
      amount: 100
  transfer:
    method: POST
    path: /transfer
    body:
      from: A
      to: B
      amount: 100
    valid_cases:
      - from: A
        to: B
        amount: 50
  balance:
    method: GET
    path: /balance
stateful_sequence:
  - endpoint: deposit
    body:
      account: A
      amount: 10
  - endpoint: transfer
    headers:
      Idempotency-Key: seq-1
`

func TestParseTestSpecValid(t *testing.T) {
	spec, err := ParseTestSpec([]byte(validSpecYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if spec.BaseURL != "http://localhost:5000" {
		t.Errorf("BaseURL: trailing slash must be trimmed, got %q", spec.BaseURL)
	}
	if spec.Timeout != 2500*time.Millisecond {
		t.Errorf("Timeout: expected 2.5s, got %v", spec.Timeout)
	}
	if spec.ResponseSLA != 150*time.Millisecond {
		t.Errorf("ResponseSLA: expected 150ms, got %v", spec.ResponseSLA)
	}
	if spec.RetryCount != 5 {
		t.Errorf("RetryCount: expected 5, got %d", spec.RetryCount)
	}
	if spec.RetryIdempotencyKey != "my-key" {
		t.Errorf("RetryIdempotencyKey: expected my-key, got %q", spec.RetryIdempotencyKey)
	}
	if spec.FuzzEnabled {
		t.Errorf("FuzzEnabled: expected false")
	}

	wantOrder := []string{"reset", "deposit", "transfer", "balance"}
	if !reflect.DeepEqual(spec.EndpointOrder, wantOrder) {
		t.Errorf("EndpointOrder: expected %v, got %v", wantOrder, spec.EndpointOrder)
	}

	reset, ok := spec.Endpoint("reset")
	if !ok {
		t.Fatalf("reset endpoint missing")
	}
	if reset.Method != "POST" {
		t.Errorf("method must be uppercased, got %q", reset.Method)
	}
	if reset.ExpectStatus != 200 {
		t.Errorf("ExpectStatus: expected default 200, got %d", reset.ExpectStatus)
	}

	transfer, _ := spec.Endpoint("transfer")
	if len(transfer.ValidCases) != 1 {
		t.Errorf("expected 1 valid case, got %d", len(transfer.ValidCases))
	}
	if !transfer.TransferLike() {
		t.Errorf("transfer endpoint must be transfer-like")
	}
	deposit, _ := spec.Endpoint("deposit")
	if deposit.TransferLike() {
		t.Errorf("deposit endpoint must not be transfer-like")
	}

	if len(spec.StatefulSequence) != 2 {
		t.Fatalf("expected 2 sequence steps, got %d", len(spec.StatefulSequence))
	}
	if spec.StatefulSequence[1].Headers[IdempotencyHeader] != "seq-1" {
		t.Errorf("sequence headers lost: %v", spec.StatefulSequence[1].Headers)
	}

	if !spec.HasInvariant(InvariantMoneyConserved) {
		t.Errorf("money_conserved must be enabled")
	}
	if spec.HasInvariant(InvariantIdempotent) {
		t.Errorf("idempotent must not be enabled when the list omits it")
	}
}

func TestParseTestSpecDefaults(t *testing.T) {
	spec, err := ParseTestSpec([]byte(`
base_url: http://localhost:5000
endpoints:
  transfer:
    method: POST
    path: /transfer
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if spec.Timeout != 5*time.Second {
		t.Errorf("Timeout: expected default 5s, got %v", spec.Timeout)
	}
	if spec.ResponseSLA != 200*time.Millisecond {
		t.Errorf("ResponseSLA: expected default 200ms, got %v", spec.ResponseSLA)
	}
	if spec.RetryCount != 3 {
		t.Errorf("RetryCount: expected default 3, got %d", spec.RetryCount)
	}
	if spec.RetryEndpoint != "transfer" {
		t.Errorf("RetryEndpoint: expected default transfer, got %q", spec.RetryEndpoint)
	}
	if spec.RetryIdempotencyKey != "retry-simulation-key" {
		t.Errorf("RetryIdempotencyKey: expected default, got %q", spec.RetryIdempotencyKey)
	}
	if !spec.FuzzEnabled {
		t.Errorf("FuzzEnabled: expected default true")
	}
	if spec.FuzzEndpoint != "transfer" {
		t.Errorf("FuzzEndpoint: expected default transfer, got %q", spec.FuzzEndpoint)
	}

	// All three invariants enabled by default.
	for _, name := range []string{InvariantBalanceNonNegative, InvariantMoneyConserved, InvariantIdempotent} {
		if !spec.HasInvariant(name) {
			t.Errorf("invariant %s must be enabled by default", name)
		}
	}
}

func TestParseTestSpecInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"not yaml", `{]`},
		{"missing base_url", "endpoints:\n  transfer:\n    method: POST\n    path: /transfer\n"},
		{"blank base_url", "base_url: '   '\nendpoints:\n  transfer:\n    method: POST\n    path: /transfer\n"},
		{"missing endpoints", "base_url: http://localhost:5000\n"},
		{"empty endpoints", "base_url: http://localhost:5000\nendpoints: {}\n"},
		{"endpoints not a mapping", "base_url: http://localhost:5000\nendpoints:\n  - transfer\n"},
		{"missing method", "base_url: http://localhost:5000\nendpoints:\n  transfer:\n    path: /transfer\n"},
		{"missing path", "base_url: http://localhost:5000\nendpoints:\n  transfer:\n    method: POST\n"},
		{"unsupported method", "base_url: http://localhost:5000\nendpoints:\n  transfer:\n    method: PATCH\n    path: /transfer\n"},
		{"relative path", "base_url: http://localhost:5000\nendpoints:\n  transfer:\n    method: POST\n    path: transfer\n"},
		{"sequence names unknown endpoint", "base_url: http://localhost:5000\nendpoints:\n  transfer:\n    method: POST\n    path: /transfer\nstateful_sequence:\n  - endpoint: nope\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseTestSpec([]byte(tt.yaml)); !errors.Is(err, ErrSpecValidation) {
				t.Errorf("expected ErrSpecValidation, got %v", err)
			}
		})
	}
}

func TestLoadTestSpec(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spec.yaml")
	if err := os.WriteFile(path, []byte(validSpecYAML), 0o644); err != nil {
		t.Fatalf("write temp spec: %v", err)
	}

	spec, err := LoadTestSpec(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spec.BaseURL == "" {
		t.Errorf("loaded spec is empty")
	}
}

func TestLoadTestSpecMissingFile(t *testing.T) {
	if _, err := LoadTestSpec(filepath.Join(t.TempDir(), "absent.yaml")); !errors.Is(err, ErrSpecValidation) {
		t.Errorf("expected ErrSpecValidation, got %v", err)
	}
}

func TestSpecConfig(t *testing.T) {
	spec, err := ParseTestSpec([]byte(validSpecYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg := spec.Config()
	if cfg.RequestTimeout != spec.Timeout {
		t.Errorf("RequestTimeout: expected %v, got %v", spec.Timeout, cfg.RequestTimeout)
	}
	if cfg.RetryCount != 5 {
		t.Errorf("RetryCount: expected 5, got %d", cfg.RetryCount)
	}
	if cfg.IdempotencyKey != "my-key" {
		t.Errorf("IdempotencyKey: expected my-key, got %q", cfg.IdempotencyKey)
	}
	if cfg.FuzzEnabled {
		t.Errorf("FuzzEnabled: expected false")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("derived config must validate: %v", err)
	}
}
