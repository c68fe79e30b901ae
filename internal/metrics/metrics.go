// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Authorization verdict labels.
const (
	VerdictAuthorized = "authorized"
	VerdictDenied     = "denied"
)

// Issue failure labels.
const (
	FailureInvalidCount     = "invalid_count"
	FailureStoreUnavailable = "store_unavailable"
	FailureCollision        = "collision"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Admin gate metrics
	IncAuthorization(verdict string)

	// License issuance metrics
	IncLicensesIssued(count int)
	IncIssueFailure(kind string)
	ObserveIssueDuration(duration time.Duration)

	// Session metrics
	IncSessionRevoked()
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
