package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder exports metrics through a Prometheus registry.
type PrometheusRecorder struct {
	registry        *prometheus.Registry
	authorizations  *prometheus.CounterVec
	licensesIssued  prometheus.Counter
	issueFailures   *prometheus.CounterVec
	issueDuration   prometheus.Histogram
	sessionsRevoked prometheus.Counter
}

// NewPrometheus registers keydesk collectors on a fresh registry.
func NewPrometheus() *PrometheusRecorder {
	reg := prometheus.NewRegistry()

	p := &PrometheusRecorder{
		registry: reg,
		authorizations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "keydesk",
			Name:      "admin_authorizations_total",
			Help:      "Admin gate verdicts by outcome.",
		}, []string{"verdict"}),
		licensesIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "keydesk",
			Name:      "licenses_issued_total",
			Help:      "License keys committed to the store.",
		}),
		issueFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "keydesk",
			Name:      "license_issue_failures_total",
			Help:      "Failed issue calls by kind.",
		}, []string{"kind"}),
		issueDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "keydesk",
			Name:      "license_issue_duration_seconds",
			Help:      "Time spent generating and committing a batch.",
			Buckets:   prometheus.DefBuckets,
		}),
		sessionsRevoked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "keydesk",
			Name:      "sessions_revoked_total",
			Help:      "Sessions terminated by sign-out or a denied gate check.",
		}),
	}

	reg.MustRegister(
		p.authorizations,
		p.licensesIssued,
		p.issueFailures,
		p.issueDuration,
		p.sessionsRevoked,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	return p
}

// Handler serves the registry in Prometheus exposition format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (p *PrometheusRecorder) Registry() *prometheus.Registry {
	return p.registry
}

// IncAuthorization counts gate verdicts.
func (p *PrometheusRecorder) IncAuthorization(verdict string) {
	p.authorizations.WithLabelValues(verdict).Inc()
}

// IncLicensesIssued adds committed keys to the issued counter.
func (p *PrometheusRecorder) IncLicensesIssued(count int) {
	if count <= 0 {
		return
	}
	p.licensesIssued.Add(float64(count))
}

// IncIssueFailure counts failed issue calls by kind.
func (p *PrometheusRecorder) IncIssueFailure(kind string) {
	p.issueFailures.WithLabelValues(kind).Inc()
}

// ObserveIssueDuration records issue duration.
func (p *PrometheusRecorder) ObserveIssueDuration(duration time.Duration) {
	p.issueDuration.Observe(duration.Seconds())
}

// IncSessionRevoked counts revoked sessions.
func (p *PrometheusRecorder) IncSessionRevoked() {
	p.sessionsRevoked.Inc()
}
