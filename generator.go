package apitest

import (
	"encoding/json"
	"math"
)

// CaseGenerator produces the deterministic valid-case payloads for the normal
// phase and the default stateful script. No randomness anywhere: identical
// specs yield identical cases.
type CaseGenerator struct{}

// NewCaseGenerator creates a CaseGenerator.
func NewCaseGenerator() *CaseGenerator {
	return &CaseGenerator{}
}

// ValidCases returns the payloads the normal phase sends against an endpoint.
// Configured valid_cases win; otherwise the endpoint's default body is
// supplemented with amount-derived edge values (a tenth, ten times, and
// exactly 1.0) when the body carries a numeric "amount".
func (g *CaseGenerator) ValidCases(endpoint EndpointSpec) []Payload {
	if len(endpoint.ValidCases) > 0 {
		return endpoint.ValidCases
	}

	if endpoint.Method == "GET" {
		return []Payload{{}}
	}

	body := endpoint.Body.Clone()
	if len(body) == 0 {
		return []Payload{{}}
	}

	generated := []Payload{body}

	if v, ok := body["amount"]; ok {
		if amount, numeric := numericValue(v); numeric {
			candidates := []float64{
				math.Max(0.01, round3(amount/10)),
				round3(amount * 10),
				1.0,
			}
			for _, candidate := range candidates {
				clone := body.Clone()
				clone["amount"] = candidate
				generated = append(generated, clone)
			}
		}
	}

	return dedupePayloads(generated)
}

// StatefulSequence returns the scripted sequence for the stateful phase. A
// script configured in the spec wins; otherwise a default deposit/transfer
// script (including an idempotent replay pair) is derived from the endpoints
// the spec defines.
func (g *CaseGenerator) StatefulSequence(spec *TestSpec) []SequenceStep {
	if len(spec.StatefulSequence) > 0 {
		return spec.StatefulSequence
	}

	var sequence []SequenceStep
	if _, ok := spec.Endpoint("reset"); ok {
		sequence = append(sequence, SequenceStep{Endpoint: "reset", Body: Payload{}})
	}
	if _, ok := spec.Endpoint("deposit"); ok {
		sequence = append(sequence, SequenceStep{
			Endpoint: "deposit",
			Body:     DepositRequest{Account: "A", Amount: 500}.Payload(),
		})
	}
	if _, ok := spec.Endpoint("transfer"); ok {
		replay := TransferRequest{From: "A", To: "B", Amount: 100}.Payload()
		replayHeaders := map[string]string{IdempotencyHeader: "stateful-retry-1"}
		sequence = append(sequence,
			SequenceStep{Endpoint: "transfer", Body: TransferRequest{From: "A", To: "B", Amount: 100}.Payload()},
			SequenceStep{Endpoint: "transfer", Body: replay, Headers: replayHeaders},
			SequenceStep{Endpoint: "transfer", Body: replay, Headers: replayHeaders},
			SequenceStep{Endpoint: "transfer", Body: TransferRequest{From: "B", To: "A", Amount: 50}.Payload()},
		)
	}

	return sequence
}

func round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}

// dedupePayloads drops payloads identical to an earlier one, preserving
// order. JSON encoding sorts map keys, making it a stable identity.
func dedupePayloads(payloads []Payload) []Payload {
	seen := make(map[string]struct{}, len(payloads))
	var deduped []Payload
	for _, payload := range payloads {
		marker, err := json.Marshal(payload)
		if err != nil {
			deduped = append(deduped, payload)
			continue
		}
		if _, dup := seen[string(marker)]; dup {
			continue
		}
		seen[string(marker)] = struct{}{}
		deduped = append(deduped, payload)
	}
	return deduped
}
