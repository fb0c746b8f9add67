package apitest

import "time"

// IdempotencyHeader is the header the target uses to deduplicate replayed
// requests. The name is part of the HTTP contract with the system under test.
const IdempotencyHeader = "Idempotency-Key"

// Phase identifies one of the fixed suite phases.
type Phase string

const (
	// PhaseSetup resets the target before the suite runs
	PhaseSetup Phase = "setup"
	// PhaseNormal exercises each endpoint with its valid payloads
	PhaseNormal Phase = "normal"
	// PhaseRetry replays one payload under a single idempotency key
	PhaseRetry Phase = "retry"
	// PhaseFuzz sends deterministic adversarial payloads
	PhaseFuzz Phase = "fuzz"
	// PhaseStateful executes a scripted endpoint sequence
	PhaseStateful Phase = "stateful"
)

// RequestResult captures the outcome of a single HTTP exchange.
// A transport failure is recorded in Err; it is data, never a panic or an
// abort of the surrounding phase.
type RequestResult struct {
	// EndpointName is the spec name of the endpoint, empty for raw requests
	EndpointName string
	// Method is the uppercased HTTP method
	Method string
	// URL is the full request URL
	URL string
	// Path is the request path relative to the base URL
	Path string
	// StatusCode is the HTTP status, 0 when the transport failed
	StatusCode int
	// Body is the decoded response body: a JSON value when the response was
	// JSON, the raw text otherwise, nil on transport failure
	Body any
	// Latency is the wall-clock duration of the exchange
	Latency time.Duration
	// Err is the transport error, nil when a response was received
	Err error
}

// OutcomeClass classifies an HTTP exchange for invariant evaluation.
type OutcomeClass string

const (
	// OutcomeServerError is a transport failure or a 5xx response
	OutcomeServerError OutcomeClass = "server_error"
	// OutcomeRejected is a 4xx response: the target refused the input
	OutcomeRejected OutcomeClass = "rejected"
	// OutcomeAccepted is anything else, including unexpected success codes
	OutcomeAccepted OutcomeClass = "accepted"
)

// Classify maps the result onto exactly one outcome class.
func (r RequestResult) Classify() OutcomeClass {
	if r.Err != nil || r.StatusCode >= 500 {
		return OutcomeServerError
	}
	if r.StatusCode >= 400 && r.StatusCode < 500 {
		return OutcomeRejected
	}
	return OutcomeAccepted
}

// InvariantResult is the verdict of a single invariant check.
// Immutable once created.
type InvariantResult struct {
	// Name is the invariant identifier, e.g. "money_conserved"
	Name string
	// Passed reports whether the invariant held
	Passed bool
	// Message is a human-readable diagnostic
	Message string
}

// FuzzCase is one deterministic adversarial payload derived from a seed.
type FuzzCase struct {
	// Name identifies the mutation, referenced by name in reports
	Name string
	// Payload is the mutated request body
	Payload Payload
}

// FuzzCaseResult is the evaluated outcome of one fuzz case.
type FuzzCaseResult struct {
	CaseName string
	Payload  Payload
	Request  RequestResult
	// StateChanged reports whether the before/after snapshots differed
	StateChanged bool
	Passed       bool
	Message      string
}

// RetrySimulationResult is the outcome of one retry simulation: the three
// bracketing snapshots, every request issued, and the invariant verdicts.
// Built incrementally across the N calls; immutable once returned.
type RetrySimulationResult struct {
	EndpointName      string
	IdempotencyKey    string
	StateBefore       Snapshot
	StateAfterFirst   Snapshot
	StateAfterRetries Snapshot
	Requests          []RequestResult
	Invariants        []InvariantResult
}
