package apitest

import (
	"encoding/json"
	"reflect"
	"testing"
)

// ============================================================================
// Unit Tests for generator.go
// Tests valid-case derivation and the default stateful script
// ============================================================================

func TestValidCasesConfiguredWin(t *testing.T) {
	configured := []Payload{{"from": "A", "to": "B", "amount": 1.0}}
	endpoint := EndpointSpec{
		Name: "transfer", Method: "POST", Path: "/transfer",
		Body:       Payload{"from": "A", "to": "B", "amount": 100.0},
		ValidCases: configured,
	}

	cases := NewCaseGenerator().ValidCases(endpoint)
	if !reflect.DeepEqual(cases, configured) {
		t.Errorf("configured valid_cases must win, got %v", cases)
	}
}

func TestValidCasesGET(t *testing.T) {
	endpoint := EndpointSpec{Name: "balance", Method: "GET", Path: "/balance"}
	cases := NewCaseGenerator().ValidCases(endpoint)
	if len(cases) != 1 || len(cases[0]) != 0 {
		t.Errorf("GET endpoints get a single empty payload, got %v", cases)
	}
}

func TestValidCasesEmptyBody(t *testing.T) {
	endpoint := EndpointSpec{Name: "reset", Method: "POST", Path: "/reset", Body: Payload{}}
	cases := NewCaseGenerator().ValidCases(endpoint)
	if len(cases) != 1 || len(cases[0]) != 0 {
		t.Errorf("empty bodies get a single empty payload, got %v", cases)
	}
}

func TestValidCasesAmountDerivation(t *testing.T) {
	endpoint := EndpointSpec{
		Name: "transfer", Method: "POST", Path: "/transfer",
		Body: Payload{"from": "A", "to": "B", "amount": 100.0},
	}

	cases := NewCaseGenerator().ValidCases(endpoint)
	if len(cases) != 4 {
		t.Fatalf("expected base + 3 derived cases, got %d: %v", len(cases), cases)
	}

	amounts := make([]float64, 0, len(cases))
	for _, c := range cases {
		v, ok := numericValue(c["amount"])
		if !ok {
			t.Fatalf("case without numeric amount: %v", c)
		}
		amounts = append(amounts, v)
		if c["from"] != "A" || c["to"] != "B" {
			t.Errorf("non-amount fields must carry over: %v", c)
		}
	}
	want := []float64{100.0, 10.0, 1000.0, 1.0}
	if !reflect.DeepEqual(amounts, want) {
		t.Errorf("amounts: expected %v, got %v", want, amounts)
	}
}

func TestValidCasesDeduped(t *testing.T) {
	// amount 10: derived tenth is 1.0, which collides with the fixed 1.0 case.
	endpoint := EndpointSpec{
		Name: "deposit", Method: "POST", Path: "/deposit",
		Body: Payload{"account": "A", "amount": 10.0},
	}

	cases := NewCaseGenerator().ValidCases(endpoint)
	seen := make(map[string]bool, len(cases))
	for _, c := range cases {
		marker, err := json.Marshal(c)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if seen[string(marker)] {
			t.Errorf("duplicate case: %s", marker)
		}
		seen[string(marker)] = true
	}
	if len(cases) != 3 {
		t.Errorf("expected 3 deduped cases, got %d: %v", len(cases), cases)
	}
}

func TestValidCasesSmallAmountFloor(t *testing.T) {
	endpoint := EndpointSpec{
		Name: "deposit", Method: "POST", Path: "/deposit",
		Body: Payload{"account": "A", "amount": 0.05},
	}

	for _, c := range NewCaseGenerator().ValidCases(endpoint) {
		v, ok := numericValue(c["amount"])
		if !ok {
			t.Fatalf("case without numeric amount: %v", c)
		}
		if v < 0.01 {
			t.Errorf("derived amount below floor: %v", v)
		}
	}
}

func TestStatefulSequenceConfiguredWins(t *testing.T) {
	spec := &TestSpec{
		Endpoints:        map[string]EndpointSpec{"transfer": {Name: "transfer"}},
		StatefulSequence: []SequenceStep{{Endpoint: "transfer"}},
	}
	sequence := NewCaseGenerator().StatefulSequence(spec)
	if len(sequence) != 1 || sequence[0].Endpoint != "transfer" {
		t.Errorf("configured sequence must win, got %v", sequence)
	}
}

func TestStatefulSequenceDefaultScript(t *testing.T) {
	spec := &TestSpec{
		Endpoints: map[string]EndpointSpec{
			"reset":    {Name: "reset"},
			"deposit":  {Name: "deposit"},
			"transfer": {Name: "transfer"},
		},
	}

	sequence := NewCaseGenerator().StatefulSequence(spec)
	wantEndpoints := []string{"reset", "deposit", "transfer", "transfer", "transfer", "transfer"}
	if len(sequence) != len(wantEndpoints) {
		t.Fatalf("expected %d steps, got %d", len(wantEndpoints), len(sequence))
	}
	for i, step := range sequence {
		if step.Endpoint != wantEndpoints[i] {
			t.Errorf("step %d: expected %s, got %s", i, wantEndpoints[i], step.Endpoint)
		}
	}

	// The replay pair shares one idempotency key.
	if sequence[3].Headers[IdempotencyHeader] == "" {
		t.Errorf("replay step missing idempotency key")
	}
	if sequence[3].Headers[IdempotencyHeader] != sequence[4].Headers[IdempotencyHeader] {
		t.Errorf("replay pair must share a key")
	}
	if !reflect.DeepEqual(sequence[3].Body, sequence[4].Body) {
		t.Errorf("replay pair must share a body")
	}

	// The closing transfer reverses direction.
	if sequence[5].Body["from"] != "B" || sequence[5].Body["to"] != "A" {
		t.Errorf("closing transfer must reverse direction: %v", sequence[5].Body)
	}
}

func TestStatefulSequenceWithoutEndpoints(t *testing.T) {
	spec := &TestSpec{Endpoints: map[string]EndpointSpec{"balance": {Name: "balance"}}}
	if sequence := NewCaseGenerator().StatefulSequence(spec); len(sequence) != 0 {
		t.Errorf("no script can be derived without deposit/transfer, got %v", sequence)
	}
}
