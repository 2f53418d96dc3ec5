package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "varflow_tasks_total",
		Help: "Finished pipeline tasks by kind and terminal status",
	}, []string{"kind", "status"})

	gateWait = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "varflow_gate_wait_seconds",
		Help:    "Time spent waiting in fan-in gates",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	}, []string{"gate_kind"})

	groupMembers = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "varflow_group_members",
		Help:    "Number of input files per analysis group",
		Buckets: []float64{1, 2, 4, 8, 16, 32, 64},
	})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "varflow_runs_total",
		Help: "Finished pipeline runs by pipeline and status",
	}, []string{"pipeline", "status"})
)

// ObserveTask учитывает завершённый task.
func ObserveTask(kind, status string) {
	tasksTotal.WithLabelValues(kind, status).Inc()
}

// ObserveGateWait учитывает время ожидания gate.
func ObserveGateWait(gateKind string, d time.Duration) {
	gateWait.WithLabelValues(gateKind).Observe(d.Seconds())
}

// ObserveGroup учитывает размер группы.
func ObserveGroup(members int) {
	groupMembers.Observe(float64(members))
}

// ObserveRun учитывает завершённый run.
func ObserveRun(pipeline, status string) {
	runsTotal.WithLabelValues(pipeline, status).Inc()
}
