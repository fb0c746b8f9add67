package apitest

// Payload is a JSON request body. Fuzz cases intentionally carry malformed
// shapes, so the type stays permissive; well-formed payloads should be built
// through the typed request records below.
type Payload map[string]any

// Clone returns a shallow copy of the payload.
// A nil payload clones to nil.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	clone := make(Payload, len(p))
	for k, v := range p {
		clone[k] = v
	}
	return clone
}

// TransferRequest is the canonical body for a transfer endpoint.
type TransferRequest struct {
	From   string
	To     string
	Amount float64
}

// Payload converts the request to its wire form.
func (r TransferRequest) Payload() Payload {
	return Payload{
		"from":   r.From,
		"to":     r.To,
		"amount": r.Amount,
	}
}

// DepositRequest is the canonical body for a deposit endpoint.
type DepositRequest struct {
	Account string
	Amount  float64
}

// Payload converts the request to its wire form.
func (r DepositRequest) Payload() Payload {
	return Payload{
		"account": r.Account,
		"amount":  r.Amount,
	}
}

// ResetRequest is the canonical body for a reset endpoint. Zero values mean
// "keep the target's defaults".
type ResetRequest struct {
	Accounts map[string]float64
	BugFlags map[string]bool
}

// Payload converts the request to its wire form.
func (r ResetRequest) Payload() Payload {
	p := Payload{}
	if r.Accounts != nil {
		accounts := make(map[string]any, len(r.Accounts))
		for name, balance := range r.Accounts {
			accounts[name] = balance
		}
		p["accounts"] = accounts
	}
	if r.BugFlags != nil {
		flags := make(map[string]any, len(r.BugFlags))
		for name, on := range r.BugFlags {
			flags[name] = on
		}
		p["bug_flags"] = flags
	}
	return p
}

// numericValue extracts a float64 from a decoded JSON value.
func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
