// Package telemetry exports Prometheus counters for the contact and FAQ flows.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "jertine"

// Metrics holds the site counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	ContactSubmissions *prometheus.CounterVec
	WebhookAttempts    *prometheus.CounterVec
	FAQAnswers         *prometheus.CounterVec
	RateStoreErrors    prometheus.Counter

	gatherer prometheus.Gatherer
}

// NewMetrics registers the counters on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		ContactSubmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contact_submissions_total",
			Help:      "Contact submissions by outcome.",
		}, []string{"outcome"}),
		WebhookAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_attempts_total",
			Help:      "Webhook delivery attempts by result.",
		}, []string{"result"}),
		FAQAnswers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "faq_answers_total",
			Help:      "FAQ answers by source (ai or fallback).",
		}, []string{"source"}),
		RateStoreErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_store_errors_total",
			Help:      "Rate limit store failures; the request was allowed.",
		}),
		gatherer: reg,
	}
	reg.MustRegister(m.ContactSubmissions, m.WebhookAttempts, m.FAQAnswers, m.RateStoreErrors)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) Contact(outcome string) {
	if m == nil {
		return
	}
	m.ContactSubmissions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) WebhookAttempt(result string) {
	if m == nil {
		return
	}
	m.WebhookAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) FAQAnswer(source string) {
	if m == nil {
		return
	}
	m.FAQAnswers.WithLabelValues(source).Inc()
}

func (m *Metrics) RateStoreError() {
	if m == nil {
		return
	}
	m.RateStoreErrors.Inc()
}
