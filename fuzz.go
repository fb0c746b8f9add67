package apitest

import (
	"context"
	"fmt"
	"math"
)

// hugeAmount is the fuzz constant exceeding any plausible account balance.
const hugeAmount = float64(99999999999)

// GenerateFuzzCases derives the fixed adversarial case set from a seed
// payload. Generation is a pure function of the seed: it is deterministic,
// produces exactly eight cases in a fixed order, and never mutates the seed.
// The mutations pivot on the "amount" and "from" fields; a missing or
// non-numeric amount defaults to 100.
func GenerateFuzzCases(seed Payload) []FuzzCase {
	amount := 100.0
	if v, ok := seed["amount"]; ok {
		if n, numeric := numericValue(v); numeric {
			amount = n
		}
	}

	negative := seed.Clone()
	negative["amount"] = -math.Abs(amount)

	huge := seed.Clone()
	huge["amount"] = hugeAmount

	missingFrom := seed.Clone()
	delete(missingFrom, "from")

	missingAmount := seed.Clone()
	delete(missingAmount, "amount")

	wrongTypeAmount := seed.Clone()
	wrongTypeAmount["amount"] = "abc"

	wrongTypeFrom := seed.Clone()
	wrongTypeFrom["from"] = 12345

	boundaryZero := seed.Clone()
	boundaryZero["amount"] = 0.0

	boundaryFraction := seed.Clone()
	boundaryFraction["amount"] = 0.001

	return []FuzzCase{
		{Name: "negative_amount", Payload: negative},
		{Name: "huge_amount", Payload: huge},
		{Name: "missing_from", Payload: missingFrom},
		{Name: "missing_amount", Payload: missingAmount},
		{Name: "wrong_type_amount", Payload: wrongTypeAmount},
		{Name: "wrong_type_from", Payload: wrongTypeFrom},
		{Name: "boundary_zero", Payload: boundaryZero},
		{Name: "boundary_fraction", Payload: boundaryFraction},
	}
}

// BeforeCaseHook runs before each fuzz case, typically to reset the target to
// a known starting state so cases stay independent. The hook reports its own
// failures to the result sink; a failing hook never aborts the case.
type BeforeCaseHook func(ctx context.Context)

// FuzzTester sends each generated case against one endpoint and judges the
// target's reaction by outcome class:
//
//   - server error: always a failure, adversarial input must never 500
//   - rejected (4xx): passes iff state is unchanged and non-negativity holds
//   - accepted: passes iff non-negativity holds on the post-state
type FuzzTester struct {
	engine  *RequestEngine
	tracker *StateTracker
	checker *InvariantChecker
}

// NewFuzzTester creates a FuzzTester from its collaborators.
func NewFuzzTester(engine *RequestEngine, tracker *StateTracker, checker *InvariantChecker) *FuzzTester {
	return &FuzzTester{
		engine:  engine,
		tracker: tracker,
		checker: checker,
	}
}

// Run executes every fuzz case derived from the seed, in order, snapshotting
// state around each request. A state-capture failure aborts the remainder of
// the fuzz phase and returns the results gathered so far alongside the error;
// individual request failures are classified, not raised.
func (f *FuzzTester) Run(ctx context.Context, endpoint EndpointSpec, seed Payload, hook BeforeCaseHook) ([]FuzzCaseResult, error) {
	var results []FuzzCaseResult

	for _, fuzzCase := range GenerateFuzzCases(seed) {
		if hook != nil {
			hook(ctx)
		}

		stateBefore, err := f.tracker.Capture(ctx)
		if err != nil {
			return results, err
		}

		request := f.engine.SendEndpoint(ctx, endpoint, fuzzCase.Payload, nil)

		stateAfter, err := f.tracker.Capture(ctx)
		if err != nil {
			return results, err
		}

		results = append(results, f.evaluate(fuzzCase, request, stateBefore, stateAfter))
	}

	return results, nil
}

func (f *FuzzTester) evaluate(fuzzCase FuzzCase, request RequestResult, before, after Snapshot) FuzzCaseResult {
	stateChanged := !before.Equal(after)
	nonNegative := f.checker.CheckBalanceNonNegative(after).Passed

	var passed bool
	var message string
	switch request.Classify() {
	case OutcomeServerError:
		passed = false
		message = fmt.Sprintf("Server error for case `%s` (status=%d, error=%v)",
			fuzzCase.Name, request.StatusCode, request.Err)
	case OutcomeRejected:
		passed = !stateChanged && nonNegative
		message = fmt.Sprintf("Rejected invalid input with status %d; state_changed=%t",
			request.StatusCode, stateChanged)
	default:
		// Graceful handling is accepted if invariants still hold.
		passed = nonNegative
		message = fmt.Sprintf("Handled input without server error (status=%d); state_changed=%t",
			request.StatusCode, stateChanged)
	}

	return FuzzCaseResult{
		CaseName:     fuzzCase.Name,
		Payload:      fuzzCase.Payload,
		Request:      request,
		StateChanged: stateChanged,
		Passed:       passed,
		Message:      message,
	}
}
