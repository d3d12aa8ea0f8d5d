package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus метрики. Регистрируются в default registry и отдаются
// промежуточным /metrics endpoint'ом каждого сервиса.
var (
	// SnapshotsStarted — снапшоты, взятые оркестратором в обработку.
	SnapshotsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reputa_snapshots_started_total",
		Help: "Snapshots picked up by the orchestrator.",
	})

	// SnapshotsFinished — завершённые снапшоты по терминальному статусу.
	SnapshotsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reputa_snapshots_finished_total",
		Help: "Snapshots that reached a terminal status.",
	}, []string{"status"})

	// ComputeInvocations — отправленные compute-вызовы по очередям.
	ComputeInvocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reputa_compute_invocations_total",
		Help: "Compute invocations published, by queue.",
	}, []string{"queue"})

	// StaleResults — отброшенные поздние результаты compute.
	StaleResults = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reputa_stale_results_total",
		Help: "Compute results discarded because the snapshot was already terminal.",
	})

	// DependencyResolveDuration — длительность материализации зависимостей.
	DependencyResolveDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reputa_dependency_resolve_seconds",
		Help:    "Time spent materializing one data dependency.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"dependency"})

	// ComputeDuration — длительность выполнения алгоритма воркером.
	ComputeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reputa_compute_seconds",
		Help:    "Time spent executing one algorithm in a worker.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
	}, []string{"algorithm"})
)
