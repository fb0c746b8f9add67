package apitest

import (
	"fmt"
	"sync"
	"time"
)

// ReportEntry is one recorded check: a request, an invariant verdict, a fuzz
// case, or a custom diagnostic.
type ReportEntry struct {
	Phase   Phase
	Name    string
	Passed  bool
	Message string
}

// Sink receives every request and invariant outcome of a run. The runner
// never lets a failing entry stop the suite; the sink decides how outcomes
// are aggregated and presented.
type Sink interface {
	// AddRequest records one HTTP exchange; sla of 0 disables the latency check.
	AddRequest(phase Phase, result RequestResult, sla time.Duration)
	// AddInvariant records one invariant verdict.
	AddInvariant(phase Phase, result InvariantResult)
	// AddFuzzCase records one evaluated fuzz case.
	AddFuzzCase(phase Phase, result FuzzCaseResult)
	// AddCheck records a custom named check.
	AddCheck(phase Phase, name string, passed bool, message string)
	// HasFailures reports whether any recorded entry failed.
	HasFailures() bool
}

// RunReport is the default Sink: an in-memory, value-producing collector of
// report entries. Safe for use from a single runner goroutine; the mutex only
// guards against concurrent readers.
type RunReport struct {
	mu      sync.Mutex
	entries []ReportEntry
}

var _ Sink = (*RunReport)(nil)

// NewRunReport creates an empty RunReport.
func NewRunReport() *RunReport {
	return &RunReport{}
}

// AddRequest records one HTTP exchange. The entry fails when the transport
// errored, no response arrived, the target answered 5xx, or the latency
// exceeded the SLA.
func (r *RunReport) AddRequest(phase Phase, result RequestResult, sla time.Duration) {
	noError := result.Err == nil
	notServerError := result.StatusCode > 0 && result.StatusCode < 500
	withinSLA := sla <= 0 || result.Latency <= sla
	passed := noError && notServerError && withinSLA

	statusDisplay := "ERR"
	if result.StatusCode > 0 {
		statusDisplay = fmt.Sprintf("%d", result.StatusCode)
	}
	message := fmt.Sprintf("HTTP %s, latency=%.1fms", statusDisplay, float64(result.Latency)/float64(time.Millisecond))
	if result.Err != nil {
		message += fmt.Sprintf(", error=%v", result.Err)
	}
	if sla > 0 {
		message += fmt.Sprintf(", SLA<%dms", sla/time.Millisecond)
	}

	r.append(ReportEntry{
		Phase:   phase,
		Name:    fmt.Sprintf("Request %s %s", result.Method, result.Path),
		Passed:  passed,
		Message: message,
	})
}

// AddInvariant records one invariant verdict.
func (r *RunReport) AddInvariant(phase Phase, result InvariantResult) {
	r.append(ReportEntry{
		Phase:   phase,
		Name:    "Invariant " + result.Name,
		Passed:  result.Passed,
		Message: result.Message,
	})
}

// AddFuzzCase records one evaluated fuzz case.
func (r *RunReport) AddFuzzCase(phase Phase, result FuzzCaseResult) {
	r.append(ReportEntry{
		Phase:   phase,
		Name:    "Fuzz " + result.CaseName,
		Passed:  result.Passed,
		Message: result.Message,
	})
}

// AddCheck records a custom named check.
func (r *RunReport) AddCheck(phase Phase, name string, passed bool, message string) {
	r.append(ReportEntry{
		Phase:   phase,
		Name:    name,
		Passed:  passed,
		Message: message,
	})
}

func (r *RunReport) append(entry ReportEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

// HasFailures reports whether any recorded entry failed. This single boolean
// rollup drives the run's overall result, independent of which invariants
// failed.
func (r *RunReport) HasFailures() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entry := range r.entries {
		if !entry.Passed {
			return true
		}
	}
	return false
}

// Entries returns a copy of all recorded entries in insertion order.
func (r *RunReport) Entries() []ReportEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := make([]ReportEntry, len(r.entries))
	copy(entries, r.entries)
	return entries
}

// Summary returns the counts of passed and failed entries.
func (r *RunReport) Summary() (passed, failed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entry := range r.entries {
		if entry.Passed {
			passed++
		} else {
			failed++
		}
	}
	return passed, failed
}
