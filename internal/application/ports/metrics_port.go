package ports

import "time"

// MetricsRecorder puerto de métricas del ledger. La implementación real vive en
// infrastructure/metrics (Prometheus); NopMetrics sirve para tests y herramientas.
type MetricsRecorder interface {
	MovementAppended(kind string)
	AppendRetried(operation string)
	AppendFailed(reason string)
	SequenceIssued(category string)
	ReconstructionObserved(elapsed time.Duration, cancelled bool)
}

// NopMetrics descarta todas las observaciones.
type NopMetrics struct{}

func (NopMetrics) MovementAppended(string)                   {}
func (NopMetrics) AppendRetried(string)                      {}
func (NopMetrics) AppendFailed(string)                       {}
func (NopMetrics) SequenceIssued(string)                     {}
func (NopMetrics) ReconstructionObserved(time.Duration, bool) {}

var _ MetricsRecorder = NopMetrics{}
