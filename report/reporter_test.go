package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	apitest "github.com/rohan-js/automated-api-testing-framework"
)

// ============================================================================
// Unit Tests for the report renderer
// ============================================================================

func sampleReporter(opts ...ReporterOption) *Reporter {
	r := NewReporter(opts...)
	r.AddCheck(apitest.PhaseSetup, "reset_ready", true, "Target reset")
	r.AddInvariant(apitest.PhaseRetry, apitest.InvariantResult{
		Name: "idempotent", Passed: false, Message: "State changed across retries: A: 100.00 -> 95.00",
	})
	r.AddRequest(apitest.PhaseNormal, apitest.RequestResult{
		Method: "POST", Path: "/transfer", StatusCode: 200, Latency: 10 * time.Millisecond,
	}, 0)
	return r
}

func TestRenderPlain(t *testing.T) {
	rendered := sampleReporter(WithColor(false)).Render()

	if !strings.HasPrefix(rendered, "========== TEST REPORT ==========\n") {
		t.Errorf("header missing:\n%s", rendered)
	}
	if !strings.Contains(rendered, "[PASS] setup: reset_ready - Target reset") {
		t.Errorf("pass line missing:\n%s", rendered)
	}
	if !strings.Contains(rendered, "[FAIL] retry: Invariant idempotent - State changed across retries") {
		t.Errorf("fail line missing:\n%s", rendered)
	}
	if !strings.Contains(rendered, "Summary: passed=2, failed=1, total=3") {
		t.Errorf("summary missing:\n%s", rendered)
	}
	if strings.Contains(rendered, "\x1b[") {
		t.Errorf("plain render must carry no escape codes")
	}
}

func TestRenderColored(t *testing.T) {
	rendered := sampleReporter().Render()
	if !strings.Contains(rendered, "\x1b[") {
		t.Errorf("colored render must carry escape codes")
	}
}

func TestWriteStripsColor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.txt")

	if err := sampleReporter().Write(path); err != nil {
		t.Fatalf("write: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if strings.Contains(string(raw), "\x1b[") {
		t.Errorf("written report must be plain text")
	}
	if !strings.Contains(string(raw), "Summary: passed=2, failed=1, total=3") {
		t.Errorf("summary missing from file:\n%s", raw)
	}
}

func TestReporterIsASink(t *testing.T) {
	var sink apitest.Sink = NewReporter()
	sink.AddCheck(apitest.PhaseNormal, "x", false, "")
	if !sink.HasFailures() {
		t.Errorf("failures recorded through the Sink interface must count")
	}
}
