// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ecoledger/carbon-dashboard/internal/crudapi"
)

const namespace = "carbon_dashboard"

// Metrics groups the service's collectors. A nil *Metrics is valid and
// records nothing, so components can be constructed without metrics in tests.
type Metrics struct {
	Registry *prometheus.Registry

	calculations   prometheus.Counter
	emissionsKg    *prometheus.CounterVec
	recordsSaved   *prometheus.CounterVec
	reportsSent    *prometheus.CounterVec
	apiCalls       *prometheus.HistogramVec
	apiRetries     *prometheus.CounterVec
	publishFailure prometheus.Counter
}

// New registers all collectors on a fresh registry, plus the Go and process
// collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		calculations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calculations_total",
			Help:      "Number of emission calculations served.",
		}),
		emissionsKg: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recorded_emissions_kg_total",
			Help:      "kg CO2e of saved consumption records, by scope.",
		}, []string{"scope"}),
		recordsSaved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_saved_total",
			Help:      "Consumption records saved, by store driver.",
		}, []string{"driver"}),
		reportsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_sent_total",
			Help:      "Scheduled reports delivered, by outcome.",
		}, []string{"outcome"}),
		apiCalls: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "crud_api_call_duration_seconds",
			Help:      "Latency of remote CRUD API calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "resource", "outcome"}),
		apiRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crud_api_retries_total",
			Help:      "Remote CRUD API attempts that were repeated, by failure.",
		}, []string{"operation", "resource", "reason"}),
		publishFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_failures_total",
			Help:      "Assessment publications that failed.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.calculations,
		m.emissionsKg,
		m.recordsSaved,
		m.reportsSent,
		m.apiCalls,
		m.apiRetries,
		m.publishFailure,
	)
	return m
}

// Calculation counts one served calculation.
func (m *Metrics) Calculation() {
	if m == nil {
		return
	}
	m.calculations.Inc()
}

// RecordSaved counts a saved record and its per-scope emissions.
func (m *Metrics) RecordSaved(driver string, scope1, scope2, scope3 float64) {
	if m == nil {
		return
	}
	m.recordsSaved.WithLabelValues(driver).Inc()
	// Counters reject negative deltas.
	for label, kg := range map[string]float64{"scope1": scope1, "scope2": scope2, "scope3": scope3} {
		if kg > 0 {
			m.emissionsKg.WithLabelValues(label).Add(kg)
		}
	}
}

// ReportSent counts a delivery attempt.
func (m *Metrics) ReportSent(err error) {
	if m == nil {
		return
	}
	m.reportsSent.WithLabelValues(outcome(err)).Inc()
}

// PublishFailed counts a failed publication.
func (m *Metrics) PublishFailed() {
	if m == nil {
		return
	}
	m.publishFailure.Inc()
}

// ObserveCall implements crudapi.MetricsRecorder. The outcome label is the
// remote error kind, so auth failures and upstream outages graph apart.
func (m *Metrics) ObserveCall(call crudapi.Call, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.apiCalls.WithLabelValues(call.Operation, call.Resource, crudapi.Outcome(err)).Observe(d.Seconds())
}

// ObserveRetry implements crudapi.MetricsRecorder.
func (m *Metrics) ObserveRetry(call crudapi.Call, err error) {
	if m == nil {
		return
	}
	m.apiRetries.WithLabelValues(call.Operation, call.Resource, crudapi.Outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
