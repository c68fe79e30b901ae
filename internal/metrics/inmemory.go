package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	Authorized           uint64
	Denied               uint64
	LicensesIssued       uint64
	IssueInvalidCount    uint64
	IssueStoreFailures   uint64
	IssueCollisions      uint64
	IssueDurationCount   uint64
	IssueDurationTotalNs int64
	SessionsRevoked      uint64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	authorized           uint64
	denied               uint64
	licensesIssued       uint64
	issueInvalidCount    uint64
	issueStoreFailures   uint64
	issueCollisions      uint64
	issueDurationCount   uint64
	issueDurationTotalNs int64
	sessionsRevoked      uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		Authorized:           atomic.LoadUint64(&m.authorized),
		Denied:               atomic.LoadUint64(&m.denied),
		LicensesIssued:       atomic.LoadUint64(&m.licensesIssued),
		IssueInvalidCount:    atomic.LoadUint64(&m.issueInvalidCount),
		IssueStoreFailures:   atomic.LoadUint64(&m.issueStoreFailures),
		IssueCollisions:      atomic.LoadUint64(&m.issueCollisions),
		IssueDurationCount:   atomic.LoadUint64(&m.issueDurationCount),
		IssueDurationTotalNs: atomic.LoadInt64(&m.issueDurationTotalNs),
		SessionsRevoked:      atomic.LoadUint64(&m.sessionsRevoked),
	}
}

// IncAuthorization counts gate verdicts.
func (m *InMemoryRecorder) IncAuthorization(verdict string) {
	if verdict == VerdictAuthorized {
		atomic.AddUint64(&m.authorized, 1)
		return
	}
	atomic.AddUint64(&m.denied, 1)
}

// IncLicensesIssued adds committed keys to the issued counter.
func (m *InMemoryRecorder) IncLicensesIssued(count int) {
	if count <= 0 {
		return
	}
	atomic.AddUint64(&m.licensesIssued, uint64(count))
}

// IncIssueFailure counts failed issue calls by kind.
func (m *InMemoryRecorder) IncIssueFailure(kind string) {
	switch kind {
	case FailureInvalidCount:
		atomic.AddUint64(&m.issueInvalidCount, 1)
	case FailureCollision:
		atomic.AddUint64(&m.issueCollisions, 1)
	default:
		atomic.AddUint64(&m.issueStoreFailures, 1)
	}
}

// ObserveIssueDuration records issue duration.
func (m *InMemoryRecorder) ObserveIssueDuration(duration time.Duration) {
	atomic.AddUint64(&m.issueDurationCount, 1)
	atomic.AddInt64(&m.issueDurationTotalNs, duration.Nanoseconds())
}

// IncSessionRevoked counts revoked sessions.
func (m *InMemoryRecorder) IncSessionRevoked() {
	atomic.AddUint64(&m.sessionsRevoked, 1)
}
