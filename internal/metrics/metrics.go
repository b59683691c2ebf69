// Package metrics exposes Prometheus metrics for realcv.
//
// Features:
//   - HTTP request counts and latency per route
//   - Rate-limit rejections
//   - Score distributions and tier counts per policy preset
//   - Certificate issuance and verification outcomes
//   - Active recorder gauge
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"realcv/internal/forensics"
)

// Namespace prefixes every realcv metric.
const Namespace = "realcv"

// Metrics holds the realcv collectors and the registry they live in.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests        *prometheus.CounterVec
	HTTPDuration        *prometheus.HistogramVec
	RateLimited         *prometheus.CounterVec
	QuestionSets        prometheus.Counter
	Submissions         *prometheus.CounterVec
	ResponsesScored     *prometheus.CounterVec
	HumanLikelihood     *prometheus.HistogramVec
	AISignature         *prometheus.HistogramVec
	CertificatesIssued  *prometheus.CounterVec
	CertificateVerifies *prometheus.CounterVec
}

// New creates the realcv collectors on a fresh registry, together with
// the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),

		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),

		RateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-client rate limiter.",
		}, []string{"route"}),

		QuestionSets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "portal",
			Name:      "question_sets_created_total",
			Help:      "Question sets created by employers.",
		}),

		Submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "portal",
			Name:      "submissions_total",
			Help:      "Candidate submissions by outcome.",
		}, []string{"result"}),

		ResponsesScored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "scoring",
			Name:      "sessions_scored_total",
			Help:      "Writing sessions scored by policy preset and trust tier.",
		}, []string{"preset", "tier"}),

		HumanLikelihood: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "scoring",
			Name:      "human_likelihood",
			Help:      "Distribution of human likelihood scores.",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
		}, []string{"preset"}),

		AISignature: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "scoring",
			Name:      "ai_signature",
			Help:      "Distribution of AI signature scores.",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		}, []string{"preset"}),

		CertificatesIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "certificates",
			Name:      "issued_total",
			Help:      "Certificates issued by trust tier.",
		}, []string{"tier"}),

		CertificateVerifies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "certificates",
			Name:      "verifications_total",
			Help:      "Certificate verifications by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequests,
		m.HTTPDuration,
		m.RateLimited,
		m.QuestionSets,
		m.Submissions,
		m.ResponsesScored,
		m.HumanLikelihood,
		m.AISignature,
		m.CertificatesIssued,
		m.CertificateVerifies,
	)

	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		Registry: m.registry,
	})
}

// ObserveRequest records one finished HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(d.Seconds())
}

// ObserveRateLimited counts a request rejected with 429.
func (m *Metrics) ObserveRateLimited(route string) {
	m.RateLimited.WithLabelValues(route).Inc()
}

// ObserveScore records a server-side score. It satisfies
// portal.ScoreObserver.
func (m *Metrics) ObserveScore(preset string, tier forensics.Tier, tm *forensics.TypingMetrics) {
	m.ResponsesScored.WithLabelValues(preset, tier.Label()).Inc()
	if tm == nil {
		return
	}
	m.HumanLikelihood.WithLabelValues(preset).Observe(float64(tm.HumanLikelihood))
	m.AISignature.WithLabelValues(preset).Observe(tm.AISignatureScore)
}

// ObserveSubmission counts a submission attempt by result, such as
// "accepted", "rejected" or "error".
func (m *Metrics) ObserveSubmission(result string) {
	m.Submissions.WithLabelValues(result).Inc()
}

// ObserveQuestionSet counts a created question set.
func (m *Metrics) ObserveQuestionSet() {
	m.QuestionSets.Inc()
}

// ObserveCertificate counts an issued certificate.
func (m *Metrics) ObserveCertificate(tier forensics.Tier) {
	m.CertificatesIssued.WithLabelValues(tier.Label()).Inc()
}

// ObserveVerification counts a certificate verification, valid or not.
func (m *Metrics) ObserveVerification(valid bool) {
	result := "valid"
	if !valid {
		result = "invalid"
	}
	m.CertificateVerifies.WithLabelValues(result).Inc()
}
