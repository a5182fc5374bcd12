package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Значения label result.
const (
	ResultOK          = "ok"
	ResultNotFound    = "not_found"
	ResultError       = "error"
	ResultPartial     = "partial"
	ResultRejected    = "rejected"
	ResultCircuitOpen = "circuit_open"
)

var storeLatencyBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0}

// StoreMetrics — метрики вызовов протокола хранилища.
type StoreMetrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	breaker  prometheus.Gauge
}

// NewStoreMetrics регистрирует метрики хранилища в DefaultRegisterer.
func NewStoreMetrics() *StoreMetrics {
	return NewStoreMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewStoreMetricsWithRegisterer регистрирует метрики хранилища в заданном registerer.
func NewStoreMetricsWithRegisterer(registerer prometheus.Registerer) *StoreMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &StoreMetrics{
		calls: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orderdesk_store_calls_total",
			Help: "Total number of record store calls grouped by collection, operation and result",
		}, []string{"collection", "op", "result"}),
		duration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "orderdesk_store_call_duration_seconds",
			Help:    "Duration of record store calls in seconds",
			Buckets: storeLatencyBuckets,
		}, []string{"op"}),
		breaker: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "orderdesk_store_circuit_state",
			Help: "Record store circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
	}
}

// ObserveCall учитывает один вызов хранилища.
func (m *StoreMetrics) ObserveCall(collection, op, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(collection, op, result).Inc()
	m.duration.WithLabelValues(op).Observe(duration.Seconds())
}

// SetCircuitState публикует текущее состояние circuit breaker.
func (m *StoreMetrics) SetCircuitState(state int) {
	if m == nil {
		return
	}
	m.breaker.Set(float64(state))
}

// RepositoryMetrics — метрики операций репозитория заказов.
type RepositoryMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	itemWrites *prometheus.CounterVec
}

// NewRepositoryMetrics регистрирует метрики репозитория в DefaultRegisterer.
func NewRepositoryMetrics() *RepositoryMetrics {
	return NewRepositoryMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewRepositoryMetricsWithRegisterer регистрирует метрики репозитория в заданном registerer.
func NewRepositoryMetricsWithRegisterer(registerer prometheus.Registerer) *RepositoryMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &RepositoryMetrics{
		operations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orderdesk_repository_operations_total",
			Help: "Total number of order repository operations grouped by result",
		}, []string{"op", "result"}),
		duration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "orderdesk_repository_operation_duration_seconds",
			Help:    "Duration of order repository operations in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		itemWrites: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orderdesk_repository_item_writes_total",
			Help: "Total number of line item writes issued by the repository",
		}, []string{"kind"}),
	}
}

// ObserveOperation учитывает завершение операции репозитория.
func (m *RepositoryMetrics) ObserveOperation(op, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, result).Inc()
	m.duration.WithLabelValues(op).Observe(duration.Seconds())
}

// AddItemWrites учитывает записи позиций: kind = create|update|delete.
func (m *RepositoryMetrics) AddItemWrites(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.itemWrites.WithLabelValues(kind).Add(float64(n))
}
