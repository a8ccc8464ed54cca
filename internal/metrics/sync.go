package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/promptdeck/promptdeck-backend/internal/library/domain"
)

const namespace = "promptdeck"

// Outcomes of one remote sync call.
const (
	OutcomeOK          = "ok"
	OutcomeRejected    = "rejected"
	OutcomeUnavailable = "unavailable"
	OutcomeError       = "error"
)

// SyncRecorder exports library sync results. It implements library.Recorder.
type SyncRecorder struct {
	results *prometheus.CounterVec
	pending prometheus.Gauge
}

// NewSyncRecorder registers the sync metrics on reg. Pass
// prometheus.DefaultRegisterer to expose them on the default /metrics handler.
func NewSyncRecorder(reg prometheus.Registerer) *SyncRecorder {
	factory := promauto.With(reg)
	return &SyncRecorder{
		results: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_results_total",
				Help:      "Remote sync calls, partitioned by entity, operation and outcome.",
			},
			[]string{"entity", "op", "outcome"},
		),
		pending: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sync_pending_entities",
				Help:      "Entities changed locally and not yet confirmed remotely.",
			},
		),
	}
}

func (r *SyncRecorder) SyncResult(entity, op string, err error) {
	r.results.WithLabelValues(entity, op, Outcome(err)).Inc()
}

func (r *SyncRecorder) PendingCount(n int) {
	r.pending.Set(float64(n))
}

// Outcome maps a sync error to its metric label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, domain.ErrRemoteRejected):
		return OutcomeRejected
	case errors.Is(err, domain.ErrRemoteUnavailable):
		return OutcomeUnavailable
	default:
		return OutcomeError
	}
}
