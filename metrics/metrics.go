// Package metrics provides the metrics interface for the invariant-testing
// oracle.
package metrics

import (
	"time"
)

// Metrics defines the interface for collecting observability metrics.
// Implementations can use Prometheus, StatsD, or other metrics backends.
type Metrics interface {
	// Request metrics
	RequestCompleted(endpoint, method string, status int, duration time.Duration)
	RequestFailed(endpoint, method, reason string)

	// Snapshot metrics
	SnapshotCaptured(duration time.Duration)
	SnapshotFailed(reason string)

	// Check metrics
	InvariantChecked(name string, passed bool)
	FuzzCaseCompleted(caseName string, passed bool)
	RetrySimulated(endpoint string, calls int)

	// Phase metrics
	PhaseCompleted(phase string, duration time.Duration)
}

// NoopMetrics is a no-op implementation of Metrics for testing or when metrics are disabled.
type NoopMetrics struct{}

var _ Metrics = (*NoopMetrics)(nil)

func (n *NoopMetrics) RequestCompleted(endpoint, method string, status int, d time.Duration) {}
func (n *NoopMetrics) RequestFailed(endpoint, method, reason string)                         {}
func (n *NoopMetrics) SnapshotCaptured(duration time.Duration)                               {}
func (n *NoopMetrics) SnapshotFailed(reason string)                                          {}
func (n *NoopMetrics) InvariantChecked(name string, passed bool)                             {}
func (n *NoopMetrics) FuzzCaseCompleted(caseName string, passed bool)                        {}
func (n *NoopMetrics) RetrySimulated(endpoint string, calls int)                             {}
func (n *NoopMetrics) PhaseCompleted(phase string, duration time.Duration)                   {}
