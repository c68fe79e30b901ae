package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncAuthorization is a no-op.
func (n *NoopRecorder) IncAuthorization(verdict string) {}

// IncLicensesIssued is a no-op.
func (n *NoopRecorder) IncLicensesIssued(count int) {}

// IncIssueFailure is a no-op.
func (n *NoopRecorder) IncIssueFailure(kind string) {}

// ObserveIssueDuration is a no-op.
func (n *NoopRecorder) ObserveIssueDuration(duration time.Duration) {}

// IncSessionRevoked is a no-op.
func (n *NoopRecorder) IncSessionRevoked() {}
