// Package mockbank implements the reference bank service the oracle runs
// against: accounts with balances, deposits, idempotent transfers, and a
// reset endpoint for re-establishing deterministic state. Bugs the oracle is
// designed to catch can be switched on deliberately via bug flags.
package mockbank

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/rohan-js/automated-api-testing-framework/idempotency"
	idemmemory "github.com/rohan-js/automated-api-testing-framework/idempotency/memory"
	"github.com/rohan-js/automated-api-testing-framework/store"
	storememory "github.com/rohan-js/automated-api-testing-framework/store/memory"
)

// BugFlags deliberately break the bank's guarantees so the oracle's failure
// detection can be exercised end to end.
type BugFlags struct {
	// AllowNegativeBalance disables the insufficient-funds check
	AllowNegativeBalance bool
	// DuplicateOnRetry disables idempotency-key deduplication
	DuplicateOnRetry bool
}

// DefaultAccounts returns the ledger seed used when a reset body names none.
func DefaultAccounts() map[string]float64 {
	return map[string]float64{"A": 1000.0, "B": 1000.0}
}

// Server is the mock bank HTTP server.
type Server struct {
	addr            string
	ledger          store.Ledger
	cache           idempotency.Cache
	idempotencyTTL  time.Duration
	defaultAccounts map[string]float64
	mux             *http.ServeMux
	server          *http.Server

	// State
	mu   sync.Mutex
	bugs BugFlags
}

// ServerOption is a function that configures the Server.
type ServerOption func(*Server)

// WithAddr sets the listen address, default ":5000".
func WithAddr(addr string) ServerOption {
	return func(s *Server) {
		s.addr = addr
	}
}

// WithLedger sets the account ledger, default an in-memory ledger seeded
// with DefaultAccounts.
func WithLedger(ledger store.Ledger) ServerOption {
	return func(s *Server) {
		s.ledger = ledger
	}
}

// WithCache sets the idempotency replay cache, default in-memory.
func WithCache(cache idempotency.Cache) ServerOption {
	return func(s *Server) {
		s.cache = cache
	}
}

// WithBugFlags sets the initial bug flags.
func WithBugFlags(bugs BugFlags) ServerOption {
	return func(s *Server) {
		s.bugs = bugs
	}
}

// WithDefaultAccounts sets the accounts a bare reset restores.
func WithDefaultAccounts(accounts map[string]float64) ServerOption {
	return func(s *Server) {
		s.defaultAccounts = accounts
	}
}

// WithIdempotencyTTL sets how long replay records are kept, default 24h.
func WithIdempotencyTTL(ttl time.Duration) ServerOption {
	return func(s *Server) {
		s.idempotencyTTL = ttl
	}
}

// NewServer creates a mock bank server with the given options.
func NewServer(opts ...ServerOption) *Server {
	s := &Server{
		addr:            ":5000",
		idempotencyTTL:  24 * time.Hour,
		defaultAccounts: DefaultAccounts(),
		mux:             http.NewServeMux(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.ledger == nil {
		s.ledger = storememory.New(s.defaultAccounts)
	}
	if s.cache == nil {
		s.cache = idemmemory.New()
	}

	s.initHandlers()
	return s
}

func (s *Server) initHandlers() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /balance", s.handleBalance)
	s.mux.HandleFunc("POST /deposit", s.handleDeposit)
	s.mux.HandleFunc("POST /transfer", s.handleTransfer)
	s.mux.HandleFunc("POST /reset", s.handleReset)
}

// Handler returns the server's HTTP handler, useful for httptest.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Bugs returns the current bug flags.
func (s *Server) Bugs() BugFlags {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bugs
}

// Start starts the HTTP server and blocks until it shuts down.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    s.addr,
		Handler: s.mux,
	}
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
