package apitest

import (
	"context"

	"github.com/google/uuid"
)

// RetrySimulator replays one payload under a single idempotency key to test
// that the target deduplicates client retries. It does not retry failed
// requests as a resilience feature; the replays are the test input.
type RetrySimulator struct {
	engine  *RequestEngine
	tracker *StateTracker
	checker *InvariantChecker
}

// NewRetrySimulator creates a RetrySimulator from its collaborators.
func NewRetrySimulator(engine *RequestEngine, tracker *StateTracker, checker *InvariantChecker) *RetrySimulator {
	return &RetrySimulator{
		engine:  engine,
		tracker: tracker,
		checker: checker,
	}
}

// Simulate issues retryCount identical calls under one idempotency key,
// snapshotting before the first call, after the first call, and after the
// final replay. retryCount below 2 cannot test idempotency and is silently
// raised to 2; an empty idempotencyKey gets a generated one.
//
// All three invariant verdicts (idempotent, money_conserved,
// balance_non_negative) are always produced together; an early failure never
// short-circuits the later checks. A state-capture failure returns the
// partial result alongside the error.
func (s *RetrySimulator) Simulate(ctx context.Context, endpoint EndpointSpec, payload Payload, retryCount int, idempotencyKey string) (*RetrySimulationResult, error) {
	if retryCount < 2 {
		retryCount = 2
	}
	if idempotencyKey == "" {
		idempotencyKey = "retry-" + uuid.NewString()
	}

	headers := map[string]string{IdempotencyHeader: idempotencyKey}

	result := &RetrySimulationResult{
		EndpointName:   endpoint.Name,
		IdempotencyKey: idempotencyKey,
	}

	stateBefore, err := s.tracker.Capture(ctx)
	if err != nil {
		return result, err
	}
	result.StateBefore = stateBefore

	result.Requests = append(result.Requests, s.engine.SendEndpoint(ctx, endpoint, payload, headers))

	stateAfterFirst, err := s.tracker.Capture(ctx)
	if err != nil {
		return result, err
	}
	result.StateAfterFirst = stateAfterFirst

	for i := 1; i < retryCount; i++ {
		result.Requests = append(result.Requests, s.engine.SendEndpoint(ctx, endpoint, payload, headers))
	}

	stateAfterRetries, err := s.tracker.Capture(ctx)
	if err != nil {
		return result, err
	}
	result.StateAfterRetries = stateAfterRetries

	result.Invariants = []InvariantResult{
		s.checker.CheckIdempotent(stateAfterFirst, stateAfterRetries),
		s.checker.CheckMoneyConserved(stateBefore, stateAfterRetries),
		s.checker.CheckBalanceNonNegative(stateAfterRetries),
	}

	return result, nil
}
