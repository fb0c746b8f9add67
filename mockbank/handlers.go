package mockbank

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rohan-js/automated-api-testing-framework/store"
)

// decodeBody parses the request body as a JSON object. Malformed or
// non-object bodies become an empty map, validation then rejects the
// missing fields.
func decodeBody(r *http.Request) map[string]any {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body == nil {
		return map[string]any{}
	}
	return body
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

// numeric reports whether a decoded JSON value is a number.
func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if account := r.URL.Query().Get("account"); account != "" {
		balance, err := s.ledger.Balance(ctx, account)
		if errors.Is(err, store.ErrAccountNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("Account %s not found", account))
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"accounts": map[string]float64{account: balance},
		})
		return
	}

	accounts, err := s.ledger.Accounts(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	body := decodeBody(r)

	account, ok := body["account"].(string)
	if !ok {
		writeError(w, http.StatusBadRequest, "`account` must be a string")
		return
	}
	amount, ok := numeric(body["amount"])
	if !ok {
		writeError(w, http.StatusBadRequest, "`amount` must be numeric")
		return
	}
	if amount <= 0 {
		writeError(w, http.StatusBadRequest, "`amount` must be > 0")
		return
	}

	record, err := s.ledger.Deposit(r.Context(), account, amount)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"transaction_id": record.ID,
		"account":        account,
		"amount":         amount,
		"balance":        record.Balances[account],
	})
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body := decodeBody(r)

	from, ok := body["from"].(string)
	if !ok {
		writeError(w, http.StatusBadRequest, "`from` must be a string")
		return
	}
	to, ok := body["to"].(string)
	if !ok {
		writeError(w, http.StatusBadRequest, "`to` must be a string")
		return
	}
	if from == to {
		writeError(w, http.StatusBadRequest, "`from` and `to` must be different accounts")
		return
	}
	amount, ok := numeric(body["amount"])
	if !ok {
		writeError(w, http.StatusBadRequest, "`amount` must be numeric")
		return
	}
	if amount <= 0 {
		writeError(w, http.StatusBadRequest, "`amount` must be > 0")
		return
	}

	for _, account := range []string{from, to} {
		if _, err := s.ledger.Balance(ctx, account); err != nil {
			if errors.Is(err, store.ErrAccountNotFound) {
				writeError(w, http.StatusNotFound, "Account not found")
			} else {
				writeError(w, http.StatusInternalServerError, err.Error())
			}
			return
		}
	}

	bugs := s.Bugs()
	key := r.Header.Get("Idempotency-Key")
	dedupe := key != "" && !bugs.DuplicateOnRetry

	if dedupe {
		cached, result, err := s.cache.Get(ctx, key)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if cached {
			var replay map[string]any
			if err := json.Unmarshal(result, &replay); err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			replay["idempotent_replay"] = true
			writeJSON(w, http.StatusOK, replay)
			return
		}
	}

	record, err := s.ledger.Transfer(ctx, from, to, amount, bugs.AllowNegativeBalance)
	switch {
	case errors.Is(err, store.ErrInsufficientFunds):
		writeError(w, http.StatusBadRequest, "Insufficient funds")
		return
	case errors.Is(err, store.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, "Account not found")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response := map[string]any{
		"transaction_id": record.ID,
		"from":           from,
		"to":             to,
		"amount":         amount,
		"balances":       record.Balances,
	}

	if dedupe {
		serialized, err := json.Marshal(response)
		if err == nil {
			err = s.cache.Put(ctx, key, serialized, s.idempotencyTTL)
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body := decodeBody(r)

	rawFlags, ok := body["bug_flags"]
	if !ok {
		rawFlags = map[string]any{}
	}
	flags, ok := rawFlags.(map[string]any)
	if !ok {
		writeError(w, http.StatusBadRequest, "`bug_flags` must be a mapping")
		return
	}

	accounts := s.defaultAccounts
	if rawAccounts, ok := body["accounts"]; ok {
		mapping, ok := rawAccounts.(map[string]any)
		if !ok {
			writeError(w, http.StatusBadRequest, "`accounts` must be a mapping")
			return
		}
		accounts = make(map[string]float64, len(mapping))
		for account, balance := range mapping {
			value, ok := numeric(balance)
			if !ok {
				writeError(w, http.StatusBadRequest, "Account balances must be numeric")
				return
			}
			accounts[account] = value
		}
	}

	if err := s.ledger.Reset(ctx, accounts); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.cache.Clear(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.mu.Lock()
	if v, ok := flags["allow_negative_balance"].(bool); ok {
		s.bugs.AllowNegativeBalance = v
	}
	if v, ok := flags["duplicate_on_retry"].(bool); ok {
		s.bugs.DuplicateOnRetry = v
	}
	bugs := s.bugs
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "reset",
		"accounts": accounts,
		"bug_flags": map[string]bool{
			"allow_negative_balance": bugs.AllowNegativeBalance,
			"duplicate_on_retry":     bugs.DuplicateOnRetry,
		},
	})
}
