// Package monitoring - prometheus-метрики сервиса. Все методы безопасны для nil-получателя,
// поэтому в тестах метрики можно не передавать.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "business_api"

type Metrics struct {
	resolutions   *prometheus.CounterVec
	poolsOpen     prometheus.Gauge
	erpRequests   *prometheus.CounterVec
	erpRetries    *prometheus.CounterVec
	syncRecords   *prometheus.CounterVec
	syncRejected  *prometheus.CounterVec
	syncDuration  *prometheus.HistogramVec
	bookingChecks *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		resolutions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "tenant_resolutions_total",
			Help: "Tenant resolutions by part and outcome.",
		}, []string{"part", "outcome"}),
		poolsOpen: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "tenant_pools_open",
			Help: "Open per-tenant database pools.",
		}),
		erpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "erp_requests_total",
			Help: "Business Central fetches by resource and outcome.",
		}, []string{"resource", "outcome"}),
		erpRetries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "erp_retries_total",
			Help: "Retried Business Central requests.",
		}, []string{"resource"}),
		syncRecords: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "sync_records_total",
			Help: "Synchronized records by resource and classification.",
		}, []string{"resource", "classification"}),
		syncRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "sync_rejected_total",
			Help: "Remote records rejected for data quality.",
		}, []string{"resource"}),
		syncDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "sync_run_duration_seconds",
			Help:    "Duration of synchronization runs.",
			Buckets: prometheus.DefBuckets,
		}, []string{"resource", "outcome"}),
		bookingChecks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "booking_checks_total",
			Help: "Equipment booking conflict checks by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) Resolution(part, outcome string) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(part, outcome).Inc()
}

func (m *Metrics) PoolOpened() {
	if m == nil {
		return
	}
	m.poolsOpen.Inc()
}

func (m *Metrics) PoolClosed() {
	if m == nil {
		return
	}
	m.poolsOpen.Dec()
}

func (m *Metrics) ERPRequest(resource, outcome string) {
	if m == nil {
		return
	}
	m.erpRequests.WithLabelValues(resource, outcome).Inc()
}

func (m *Metrics) ERPRetry(resource string) {
	if m == nil {
		return
	}
	m.erpRetries.WithLabelValues(resource).Inc()
}

func (m *Metrics) SyncRecords(resource string, created, updated, rejected int) {
	if m == nil {
		return
	}
	m.syncRecords.WithLabelValues(resource, "new").Add(float64(created))
	m.syncRecords.WithLabelValues(resource, "existing").Add(float64(updated))
	m.syncRejected.WithLabelValues(resource).Add(float64(rejected))
}

func (m *Metrics) SyncDuration(resource, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.syncDuration.WithLabelValues(resource, outcome).Observe(d.Seconds())
}

func (m *Metrics) BookingCheck(outcome string) {
	if m == nil {
		return
	}
	m.bookingChecks.WithLabelValues(outcome).Inc()
}
