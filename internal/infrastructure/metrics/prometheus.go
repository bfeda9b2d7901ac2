package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jhoicas/stockledger/internal/application/ports"
)

var _ ports.MetricsRecorder = (*PrometheusRecorder)(nil)

// PrometheusRecorder publica las métricas del ledger en un prometheus.Registerer.
type PrometheusRecorder struct {
	appended       *prometheus.CounterVec
	retries        *prometheus.CounterVec
	failures       *prometheus.CounterVec
	issued         *prometheus.CounterVec
	reconstruction *prometheus.HistogramVec
}

// NewPrometheusRecorder registra los colectores bajo el namespace dado (ej. "stockledger").
func NewPrometheusRecorder(reg prometheus.Registerer, namespace string) (*PrometheusRecorder, error) {
	r := &PrometheusRecorder{
		appended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "movements_appended_total",
			Help:      "Movimientos registrados en el ledger por tipo.",
		}, []string{"kind"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "append_retries_total",
			Help:      "Reintentos por contención transitoria por operación.",
		}, []string{"operation"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "append_failures_total",
			Help:      "Appends rechazados por motivo.",
		}, []string{"reason"}),
		issued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sequence_values_issued_total",
			Help:      "Valores emitidos por categoría de secuencia.",
		}, []string{"category"}),
		reconstruction: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconstruction_duration_seconds",
			Help:      "Duración de la reconstrucción de cantidad en mano.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"outcome"}),
	}
	for _, c := range []prometheus.Collector{r.appended, r.retries, r.failures, r.issued, r.reconstruction} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *PrometheusRecorder) MovementAppended(kind string) {
	r.appended.WithLabelValues(kind).Inc()
}

func (r *PrometheusRecorder) AppendRetried(operation string) {
	r.retries.WithLabelValues(operation).Inc()
}

func (r *PrometheusRecorder) AppendFailed(reason string) {
	r.failures.WithLabelValues(reason).Inc()
}

// SequenceIssued las categorías derivadas (sub-lotes, unidades) se agregan bajo su familia para no
// crear una serie por fecha.
func (r *PrometheusRecorder) SequenceIssued(category string) {
	r.issued.WithLabelValues(categoryLabel(category)).Inc()
}

func (r *PrometheusRecorder) ReconstructionObserved(elapsed time.Duration, cancelled bool) {
	outcome := "ok"
	if cancelled {
		outcome = "cancelled"
	}
	r.reconstruction.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func categoryLabel(category string) string {
	for i := 0; i < len(category); i++ {
		if category[i] == '-' {
			return category[:i]
		}
	}
	return category
}
