package apitest

import (
	"strings"
	"time"
)

// Config holds the tunable settings of a suite run. Endpoint definitions and
// phase scripts come from the run spec; Config covers everything else.
type Config struct {
	// Transport configuration
	RequestTimeout time.Duration // Per-exchange timeout, default 5s
	ResponseSLA    time.Duration // Latency budget per request, default 200ms, 0 disables

	// Invariant configuration
	Tolerance float64 // Balance comparison epsilon, default 1e-9

	// Retry simulation configuration
	RetryCount     int    // Calls per simulation, clamped to >= 2, default 3
	IdempotencyKey string // Key for retry simulation, default "retry-simulation-key"

	// Fuzz configuration
	FuzzEnabled bool // Whether the fuzz phase runs, default true

	// State capture configuration
	BalancePath string // Balance-query path, default "/balance"
}

// DefaultConfig returns the default suite configuration.
func DefaultConfig() Config {
	return Config{
		RequestTimeout: 5 * time.Second,
		ResponseSLA:    200 * time.Millisecond,
		Tolerance:      DefaultTolerance,
		RetryCount:     3,
		IdempotencyKey: "retry-simulation-key",
		FuzzEnabled:    true,
		BalancePath:    "/balance",
	}
}

// Option is a function that modifies the Config.
type Option func(*Config)

// WithTimeout sets the per-exchange timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.RequestTimeout = timeout
	}
}

// WithResponseSLA sets the latency budget enforced on every request entry.
func WithResponseSLA(sla time.Duration) Option {
	return func(c *Config) {
		c.ResponseSLA = sla
	}
}

// WithInvariantTolerance sets the balance comparison epsilon.
func WithInvariantTolerance(tolerance float64) Option {
	return func(c *Config) {
		c.Tolerance = tolerance
	}
}

// WithRetryCount sets the number of calls per retry simulation.
func WithRetryCount(count int) Option {
	return func(c *Config) {
		c.RetryCount = count
	}
}

// WithIdempotencyKey sets the idempotency key used by the retry phase.
func WithIdempotencyKey(key string) Option {
	return func(c *Config) {
		c.IdempotencyKey = key
	}
}

// WithFuzzEnabled toggles the fuzz phase.
func WithFuzzEnabled(enabled bool) Option {
	return func(c *Config) {
		c.FuzzEnabled = enabled
	}
}

// WithConfigBalancePath sets the balance-query path.
func WithConfigBalancePath(path string) Option {
	return func(c *Config) {
		c.BalancePath = path
	}
}

// WithConfig applies a complete Config, overriding all values.
func WithConfig(cfg Config) Option {
	return func(c *Config) {
		*c = cfg
	}
}

// ApplyOptions applies the given options to a default config and returns the result.
func ApplyOptions(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.RequestTimeout <= 0 {
		return ErrInvalidConfig
	}
	if c.ResponseSLA < 0 {
		return ErrInvalidConfig
	}
	if c.Tolerance <= 0 {
		return ErrInvalidConfig
	}
	if c.RetryCount < 0 {
		return ErrInvalidConfig
	}
	if c.IdempotencyKey == "" {
		return ErrInvalidConfig
	}
	if !strings.HasPrefix(c.BalancePath, "/") {
		return ErrInvalidConfig
	}
	return nil
}
