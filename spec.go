package apitest

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// allowedMethods lists the HTTP methods an endpoint may declare.
var allowedMethods = map[string]bool{
	"GET":    true,
	"POST":   true,
	"PUT":    true,
	"DELETE": true,
}

// EndpointSpec describes one endpoint of the system under test. The oracle
// treats endpoints as opaque configuration: it never inspects their semantics
// beyond the transfer/reset/balance naming conventions of the suite phases.
type EndpointSpec struct {
	Name         string
	Method       string
	Path         string
	Body         Payload
	ExpectStatus int
	ValidCases   []Payload
}

// SequenceStep is one entry of a scripted stateful sequence.
type SequenceStep struct {
	Endpoint string
	Body     Payload
	Headers  map[string]string
}

// TestSpec is a validated run spec. Load it with LoadTestSpec or
// ParseTestSpec; a zero TestSpec is not usable.
type TestSpec struct {
	BaseURL   string
	Endpoints map[string]EndpointSpec
	// EndpointOrder preserves the declaration order of the endpoints mapping
	// so phase iteration is deterministic.
	EndpointOrder []string

	Timeout     time.Duration
	ResponseSLA time.Duration
	Invariants  []string

	RetryCount          int
	RetryEndpoint       string
	RetryBody           Payload
	RetryIdempotencyKey string

	FuzzEnabled  bool
	FuzzEndpoint string

	StatefulSequence []SequenceStep
}

// TransferLike reports whether the endpoint moves money between accounts.
// Conservation is checked around such calls. The suite identifies transfer
// endpoints by the conventional name "transfer".
func (e EndpointSpec) TransferLike() bool {
	return e.Name == "transfer"
}

// Endpoint returns the named endpoint, if defined.
func (s *TestSpec) Endpoint(name string) (EndpointSpec, bool) {
	endpoint, ok := s.Endpoints[name]
	return endpoint, ok
}

// HasInvariant reports whether the named invariant is enabled for this run.
func (s *TestSpec) HasInvariant(name string) bool {
	for _, inv := range s.Invariants {
		if inv == name {
			return true
		}
	}
	return false
}

// Config derives the engine configuration from the spec's run-level settings.
func (s *TestSpec) Config() Config {
	cfg := DefaultConfig()
	cfg.RequestTimeout = s.Timeout
	cfg.ResponseSLA = s.ResponseSLA
	cfg.RetryCount = s.RetryCount
	cfg.IdempotencyKey = s.RetryIdempotencyKey
	cfg.FuzzEnabled = s.FuzzEnabled
	return cfg
}

type rawSpec struct {
	BaseURL             string    `yaml:"base_url"`
	Endpoints           yaml.Node `yaml:"endpoints"`
	TimeoutSeconds      *float64  `yaml:"timeout_seconds"`
	ResponseSLAMS       *int      `yaml:"response_sla_ms"`
	Invariants          []string  `yaml:"invariants"`
	RetryCount          *int      `yaml:"retry_count"`
	RetryEndpoint       *string   `yaml:"retry_endpoint"`
	RetryBody           Payload   `yaml:"retry_body"`
	RetryIdempotencyKey *string   `yaml:"retry_idempotency_key"`
	FuzzEnabled         *bool     `yaml:"fuzz_enabled"`
	FuzzEndpoint        *string   `yaml:"fuzz_endpoint"`
	StatefulSequence    []rawStep `yaml:"stateful_sequence"`
}

type rawEndpoint struct {
	Method       string    `yaml:"method"`
	Path         string    `yaml:"path"`
	Body         Payload   `yaml:"body"`
	ExpectStatus *int      `yaml:"expect_status"`
	ValidCases   []Payload `yaml:"valid_cases"`
}

type rawStep struct {
	Endpoint string            `yaml:"endpoint"`
	Body     Payload           `yaml:"body"`
	Headers  map[string]string `yaml:"headers"`
}

// LoadTestSpec reads and validates a YAML run spec from disk.
// All validation failures wrap ErrSpecValidation.
func LoadTestSpec(path string) (*TestSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read %s: %v", ErrSpecValidation, path, err)
	}
	return ParseTestSpec(data)
}

// ParseTestSpec parses and validates a YAML run spec.
func ParseTestSpec(data []byte) (*TestSpec, error) {
	var raw rawSpec
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSpecValidation, err)
	}

	if strings.TrimSpace(raw.BaseURL) == "" {
		return nil, fmt.Errorf("%w: `base_url` is required and must be a non-empty string", ErrSpecValidation)
	}

	endpoints, order, err := parseEndpoints(&raw.Endpoints)
	if err != nil {
		return nil, err
	}

	spec := &TestSpec{
		BaseURL:             strings.TrimRight(raw.BaseURL, "/"),
		Endpoints:           endpoints,
		EndpointOrder:       order,
		Timeout:             5 * time.Second,
		ResponseSLA:         200 * time.Millisecond,
		Invariants:          raw.Invariants,
		RetryCount:          3,
		RetryEndpoint:       "transfer",
		RetryBody:           raw.RetryBody,
		RetryIdempotencyKey: "retry-simulation-key",
		FuzzEnabled:         true,
		FuzzEndpoint:        "transfer",
	}

	if raw.TimeoutSeconds != nil {
		spec.Timeout = time.Duration(*raw.TimeoutSeconds * float64(time.Second))
	}
	if raw.ResponseSLAMS != nil {
		spec.ResponseSLA = time.Duration(*raw.ResponseSLAMS) * time.Millisecond
	}
	if spec.Invariants == nil {
		spec.Invariants = []string{InvariantBalanceNonNegative, InvariantMoneyConserved, InvariantIdempotent}
	}
	if raw.RetryCount != nil {
		spec.RetryCount = *raw.RetryCount
	}
	if raw.RetryEndpoint != nil {
		spec.RetryEndpoint = *raw.RetryEndpoint
	}
	if raw.RetryIdempotencyKey != nil {
		spec.RetryIdempotencyKey = *raw.RetryIdempotencyKey
	}
	if raw.FuzzEnabled != nil {
		spec.FuzzEnabled = *raw.FuzzEnabled
	}
	if raw.FuzzEndpoint != nil {
		spec.FuzzEndpoint = *raw.FuzzEndpoint
	}

	for idx, step := range raw.StatefulSequence {
		if _, ok := endpoints[step.Endpoint]; !ok {
			return nil, fmt.Errorf("%w: stateful_sequence[%d].endpoint must reference a known endpoint",
				ErrSpecValidation, idx)
		}
		spec.StatefulSequence = append(spec.StatefulSequence, SequenceStep{
			Endpoint: step.Endpoint,
			Body:     step.Body,
			Headers:  step.Headers,
		})
	}

	return spec, nil
}

// parseEndpoints decodes the endpoints mapping while preserving its
// declaration order.
func parseEndpoints(node *yaml.Node) (map[string]EndpointSpec, []string, error) {
	if node.Kind == 0 || node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return nil, nil, fmt.Errorf("%w: `endpoints` is required and must be a non-empty mapping", ErrSpecValidation)
	}
	if node.Kind != yaml.MappingNode || len(node.Content) == 0 {
		return nil, nil, fmt.Errorf("%w: `endpoints` is required and must be a non-empty mapping", ErrSpecValidation)
	}

	endpoints := make(map[string]EndpointSpec, len(node.Content)/2)
	var order []string

	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value

		var raw rawEndpoint
		if err := node.Content[i+1].Decode(&raw); err != nil {
			return nil, nil, fmt.Errorf("%w: endpoint `%s` must be a mapping: %v", ErrSpecValidation, name, err)
		}

		endpoint, err := buildEndpoint(name, raw)
		if err != nil {
			return nil, nil, err
		}
		endpoints[name] = endpoint
		order = append(order, name)
	}

	return endpoints, order, nil
}

func buildEndpoint(name string, raw rawEndpoint) (EndpointSpec, error) {
	if raw.Method == "" {
		return EndpointSpec{}, fmt.Errorf("%w: endpoint `%s` is missing string `method`", ErrSpecValidation, name)
	}
	if raw.Path == "" {
		return EndpointSpec{}, fmt.Errorf("%w: endpoint `%s` is missing string `path`", ErrSpecValidation, name)
	}

	method := strings.ToUpper(raw.Method)
	if !allowedMethods[method] {
		return EndpointSpec{}, fmt.Errorf("%w: endpoint `%s` has unsupported method `%s`",
			ErrSpecValidation, name, method)
	}
	if !strings.HasPrefix(raw.Path, "/") {
		return EndpointSpec{}, fmt.Errorf("%w: endpoint `%s` path must start with '/'", ErrSpecValidation, name)
	}

	endpoint := EndpointSpec{
		Name:         name,
		Method:       method,
		Path:         raw.Path,
		Body:         raw.Body,
		ExpectStatus: 200,
		ValidCases:   raw.ValidCases,
	}
	if raw.ExpectStatus != nil {
		endpoint.ExpectStatus = *raw.ExpectStatus
	}
	if endpoint.Body == nil {
		endpoint.Body = Payload{}
	}
	return endpoint, nil
}
