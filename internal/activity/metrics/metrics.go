package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ActivitiesLogged    *prometheus.CounterVec
	SubStepsRecorded    prometheus.Counter
	ActivitiesCompleted prometheus.Counter
	ExportsGenerated    *prometheus.CounterVec
	StorageErrors       prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		ActivitiesLogged: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vaulttrail_activities_logged_total",
			Help: "Total number of activity records created",
		}, []string{"type"}),
		SubStepsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vaulttrail_substeps_recorded_total",
			Help: "Total number of sub-steps appended to activities",
		}),
		ActivitiesCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vaulttrail_activities_completed_total",
			Help: "Total number of activities completed with a final status",
		}),
		ExportsGenerated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vaulttrail_exports_generated_total",
			Help: "Total number of successful activity log exports",
		}, []string{"format"}),
		StorageErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vaulttrail_storage_errors_total",
			Help: "Total number of durable store failures observed by the activity engine",
		}),
	}
}

func (m *Metrics) IncrementActivitiesLogged(activityType string) {
	m.ActivitiesLogged.WithLabelValues(activityType).Inc()
}

func (m *Metrics) IncrementSubStepsRecorded() {
	m.SubStepsRecorded.Inc()
}

func (m *Metrics) IncrementActivitiesCompleted() {
	m.ActivitiesCompleted.Inc()
}

func (m *Metrics) IncrementExportsGenerated(format string) {
	m.ExportsGenerated.WithLabelValues(format).Inc()
}

func (m *Metrics) IncrementStorageErrors() {
	m.StorageErrors.Inc()
}
