package apitest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rohan-js/automated-api-testing-framework/event"
	"github.com/rohan-js/automated-api-testing-framework/metrics"
	"github.com/rohan-js/automated-api-testing-framework/tracing"
)

// Runner sequences the four suite phases against the target described by a
// run spec: normal valid-case checks, one retry simulation, the fuzz corpus,
// and the scripted stateful sequence. Each phase is independent; a capture or
// transport failure in one step is recorded and that step is skipped, but
// later steps and phases still execute.
//
// The runner issues one HTTP exchange at a time and assumes nothing else
// mutates the target concurrently; that assumption is what lets invariant
// checks attribute state deltas to a specific call. It is documented, not
// enforced.
type Runner struct {
	spec   *TestSpec
	config Config

	engine    *RequestEngine
	tracker   *StateTracker
	checker   *InvariantChecker
	generator *CaseGenerator
	fuzz      *FuzzTester
	retry     *RetrySimulator

	sink    Sink
	events  event.EventBus
	metrics metrics.Metrics
	tracer  tracing.Tracer

	runID string
}

// RunnerOption is a function that configures the Runner.
type RunnerOption func(*Runner)

// WithRunnerConfig overrides the config derived from the spec.
func WithRunnerConfig(cfg Config) RunnerOption {
	return func(r *Runner) {
		r.config = cfg
	}
}

// WithRunnerSink sets the result sink, default an in-memory RunReport.
func WithRunnerSink(sink Sink) RunnerOption {
	return func(r *Runner) {
		r.sink = sink
	}
}

// WithRunnerEventBus sets the event bus for run-lifecycle events.
func WithRunnerEventBus(bus event.EventBus) RunnerOption {
	return func(r *Runner) {
		r.events = bus
	}
}

// WithRunnerMetrics sets the metrics collector.
func WithRunnerMetrics(m metrics.Metrics) RunnerOption {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithRunnerTracer sets the tracer.
func WithRunnerTracer(t tracing.Tracer) RunnerOption {
	return func(r *Runner) {
		r.tracer = t
	}
}

// NewRunner creates a Runner for the given spec. The spec must already be
// validated (LoadTestSpec/ParseTestSpec do this).
func NewRunner(spec *TestSpec, opts ...RunnerOption) *Runner {
	r := &Runner{
		spec:    spec,
		config:  spec.Config(),
		events:  event.NewNoOpEventBus(),
		metrics: &metrics.NoopMetrics{},
		tracer:  &tracing.NoopTracer{},
		runID:   uuid.NewString(),
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.sink == nil {
		r.sink = NewRunReport()
	}

	r.engine = NewRequestEngine(spec.BaseURL,
		WithRequestTimeout(r.config.RequestTimeout),
		WithEngineMetrics(r.metrics),
		WithEngineTracer(r.tracer),
	)
	r.tracker = NewStateTracker(r.engine,
		WithBalancePath(r.config.BalancePath),
		WithTrackerMetrics(r.metrics),
	)
	r.checker = NewInvariantChecker(WithTolerance(r.config.Tolerance))
	r.generator = NewCaseGenerator()
	r.fuzz = NewFuzzTester(r.engine, r.tracker, r.checker)
	r.retry = NewRetrySimulator(r.engine, r.tracker, r.checker)

	return r
}

// RunID returns the identifier attached to this run's events and traces.
func (r *Runner) RunID() string {
	return r.runID
}

// Sink returns the sink collecting this run's outcomes.
func (r *Runner) Sink() Sink {
	return r.sink
}

// Tracker returns the state tracker, useful for inspecting final state.
func (r *Runner) Tracker() *StateTracker {
	return r.tracker
}

// Run executes the suite. The only error it returns is a fatal setup failure
// (the target could not be reset before the suite); every other failure is
// recorded in the sink and the suite keeps going. Check Sink().HasFailures()
// for the overall result.
func (r *Runner) Run(ctx context.Context) error {
	ctx, span := r.tracer.StartRun(ctx, r.runID)
	defer span.End()

	r.publish(ctx, event.NewEvent(event.EventRunStarted).WithRunID(r.runID))

	if err := r.runSetup(ctx); err != nil {
		span.SetError(err)
		r.publish(ctx, event.NewEvent(event.EventRunCompleted).WithRunID(r.runID).
			WithData("has_failures", true).WithError(err))
		return err
	}

	r.runPhase(ctx, PhaseNormal, r.runNormal)
	r.runPhase(ctx, PhaseRetry, r.runRetry)
	r.runPhase(ctx, PhaseFuzz, r.runFuzz)
	r.runPhase(ctx, PhaseStateful, r.runStateful)

	r.publish(ctx, event.NewEvent(event.EventRunCompleted).WithRunID(r.runID).
		WithData("has_failures", r.sink.HasFailures()))
	return nil
}

// runSetup resets the target if a reset endpoint is configured. A failing
// reset is the one fatal condition of a run: without a known starting state
// no phase result would be meaningful.
func (r *Runner) runSetup(ctx context.Context) error {
	reset, ok := r.spec.Endpoint("reset")
	if !ok {
		return nil
	}

	result := r.engine.SendEndpoint(ctx, reset, reset.Body, nil)
	r.addRequest(ctx, PhaseSetup, result)
	if result.Err != nil || result.StatusCode >= 500 {
		r.sink.AddCheck(PhaseSetup, "reset_ready", false, "Target reset failed")
		return fmt.Errorf("%w: status=%d err=%v", ErrTargetReset, result.StatusCode, result.Err)
	}
	return nil
}

func (r *Runner) runPhase(ctx context.Context, phase Phase, fn func(ctx context.Context)) {
	ctx, span := r.tracer.StartPhase(ctx, r.runID, string(phase))
	defer span.End()

	r.publish(ctx, event.NewEvent(event.EventPhaseStarted).WithRunID(r.runID).WithPhase(string(phase)))

	started := time.Now()
	fn(ctx)
	r.metrics.PhaseCompleted(string(phase), time.Since(started))
}

// runNormal sends each endpoint's valid payloads, bracketing every call with
// snapshots. Non-negativity is checked after every call; conservation only
// around transfer-like calls.
func (r *Runner) runNormal(ctx context.Context) {
	for _, name := range r.spec.EndpointOrder {
		if name == "reset" || name == "balance" {
			continue
		}
		endpoint := r.spec.Endpoints[name]

		for _, payload := range r.generator.ValidCases(endpoint) {
			stateBefore, err := r.tracker.Capture(ctx)
			if err != nil {
				r.captureFailed(ctx, PhaseNormal, err)
				return
			}

			result := r.engine.SendEndpoint(ctx, endpoint, payload, nil)
			r.addRequest(ctx, PhaseNormal, result)
			if result.Err != nil {
				r.sink.AddCheck(PhaseNormal, endpoint.Name+"_executed", false,
					fmt.Sprintf("Request failed before invariants: %v", result.Err))
				continue
			}

			stateAfter, err := r.tracker.Capture(ctx)
			if err != nil {
				r.captureFailed(ctx, PhaseNormal, err)
				return
			}

			if r.spec.HasInvariant(InvariantBalanceNonNegative) {
				r.addInvariant(ctx, PhaseNormal, r.checker.CheckBalanceNonNegative(stateAfter))
			}
			if endpoint.TransferLike() && r.spec.HasInvariant(InvariantMoneyConserved) {
				r.addInvariant(ctx, PhaseNormal, r.checker.CheckMoneyConserved(stateBefore, stateAfter))
			}
		}
	}
}

// runRetry replays the configured endpoint's payload under one idempotency
// key and records all three verdicts of the simulation.
func (r *Runner) runRetry(ctx context.Context) {
	endpoint, ok := r.spec.Endpoint(r.spec.RetryEndpoint)
	if !ok {
		r.sink.AddCheck(PhaseRetry, "retry_endpoint_present", false,
			fmt.Sprintf("Configured retry endpoint `%s` not found", r.spec.RetryEndpoint))
		return
	}

	payload := r.spec.RetryBody
	if len(payload) == 0 {
		payload = endpoint.Body
	}

	simulation, err := r.retry.Simulate(ctx, endpoint, payload, r.config.RetryCount, r.config.IdempotencyKey)
	for _, request := range simulation.Requests {
		r.addRequest(ctx, PhaseRetry, request)
	}
	for _, invariant := range simulation.Invariants {
		r.addInvariant(ctx, PhaseRetry, invariant)
	}
	if err != nil {
		r.captureFailed(ctx, PhaseRetry, err)
		return
	}
	r.metrics.RetrySimulated(endpoint.Name, len(simulation.Requests))
}

// runFuzz sends the deterministic adversarial corpus, resetting the target
// before each case when a reset endpoint is configured.
func (r *Runner) runFuzz(ctx context.Context) {
	if !r.config.FuzzEnabled {
		r.publish(ctx, event.NewEvent(event.EventPhaseSkipped).WithRunID(r.runID).WithPhase(string(PhaseFuzz)))
		return
	}

	endpoint, ok := r.spec.Endpoint(r.spec.FuzzEndpoint)
	if !ok {
		r.sink.AddCheck(PhaseFuzz, "fuzz_endpoint_present", false,
			fmt.Sprintf("Configured fuzz endpoint `%s` not found", r.spec.FuzzEndpoint))
		return
	}

	var hook BeforeCaseHook
	if reset, hasReset := r.spec.Endpoint("reset"); hasReset {
		hook = func(ctx context.Context) {
			result := r.engine.SendEndpoint(ctx, reset, reset.Body, nil)
			if result.Err != nil || result.StatusCode >= 500 {
				detail := fmt.Sprintf("%d", result.StatusCode)
				if result.Err != nil {
					detail = result.Err.Error()
				}
				r.sink.AddCheck(PhaseFuzz, "fuzz_case_reset", false,
					"Failed to reset before fuzz case: "+detail)
			}
		}
	}

	results, err := r.fuzz.Run(ctx, endpoint, endpoint.Body, hook)
	for _, result := range results {
		r.sink.AddFuzzCase(PhaseFuzz, result)
		r.metrics.FuzzCaseCompleted(result.CaseName, result.Passed)
		r.publish(ctx, event.NewEvent(event.EventFuzzCaseFinished).WithRunID(r.runID).
			WithPhase(string(PhaseFuzz)).WithEndpoint(endpoint.Name).
			WithData("case", result.CaseName).WithData("passed", result.Passed))
	}
	if err != nil {
		r.captureFailed(ctx, PhaseFuzz, err)
	}
}

// runStateful executes the scripted sequence in order, checking
// non-negativity after every step and conservation after transfer-like steps.
func (r *Runner) runStateful(ctx context.Context) {
	sequence := r.generator.StatefulSequence(r.spec)
	if len(sequence) == 0 {
		return
	}

	for index, step := range sequence {
		stepName := fmt.Sprintf("step_%d", index+1)

		endpoint, ok := r.spec.Endpoint(step.Endpoint)
		if !ok {
			r.sink.AddCheck(PhaseStateful, stepName, false,
				fmt.Sprintf("Unknown endpoint `%s`", step.Endpoint))
			continue
		}

		stateBefore, err := r.tracker.Capture(ctx)
		if err != nil {
			r.captureFailed(ctx, PhaseStateful, err)
			return
		}

		result := r.engine.SendEndpoint(ctx, endpoint, step.Body, step.Headers)
		r.addRequest(ctx, PhaseStateful, result)
		if result.Err != nil {
			r.sink.AddCheck(PhaseStateful, stepName+"_"+endpoint.Name, false, result.Err.Error())
			continue
		}

		stateAfter, err := r.tracker.Capture(ctx)
		if err != nil {
			r.captureFailed(ctx, PhaseStateful, err)
			return
		}

		r.addInvariant(ctx, PhaseStateful, r.checker.CheckBalanceNonNegative(stateAfter))
		if endpoint.TransferLike() {
			r.addInvariant(ctx, PhaseStateful, r.checker.CheckMoneyConserved(stateBefore, stateAfter))
		}
	}
}

// captureFailed records a state-capture failure and the abandonment of the
// current phase. Later phases still run.
func (r *Runner) captureFailed(ctx context.Context, phase Phase, err error) {
	r.sink.AddCheck(phase, "state_capture", false, err.Error())
	r.publish(ctx, event.NewEvent(event.EventStateCaptureFailed).WithRunID(r.runID).
		WithPhase(string(phase)).WithError(err))
}

func (r *Runner) addRequest(ctx context.Context, phase Phase, result RequestResult) {
	r.sink.AddRequest(phase, result, r.config.ResponseSLA)
	r.publish(ctx, event.NewEvent(event.EventRequestCompleted).WithRunID(r.runID).
		WithPhase(string(phase)).WithEndpoint(result.EndpointName).
		WithData("status", result.StatusCode).WithData("method", result.Method))
}

func (r *Runner) addInvariant(ctx context.Context, phase Phase, result InvariantResult) {
	r.sink.AddInvariant(phase, result)
	r.metrics.InvariantChecked(result.Name, result.Passed)
	r.publish(ctx, event.NewEvent(event.EventInvariantChecked).WithRunID(r.runID).
		WithPhase(string(phase)).WithData("invariant", result.Name).WithData("passed", result.Passed))
}

func (r *Runner) publish(ctx context.Context, e event.Event) {
	_ = r.events.Publish(ctx, e)
}
