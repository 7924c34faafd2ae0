package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RecordsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tillbook_records_ingested_total",
		Help: "Total number of records accepted, labelled by kind.",
	}, []string{"kind"})

	ReportsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tillbook_reports_generated_total",
		Help: "Total number of bucketed reports produced, labelled by grain.",
	}, []string{"grain"})

	ReconciliationMatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tillbook_reconciliation_matches_total",
		Help: "Total number of payout/deposit links created.",
	})

	ReconciliationUnmatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tillbook_reconciliation_unmatched_total",
		Help: "Total number of records left unmatched, labelled by side (payout, deposit).",
	}, []string{"side"})

	BatchesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tillbook_reconciliation_batches_failed_total",
		Help: "Total number of reconciliation batches that errored, timed out or were rejected.",
	})

	AlertsFired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tillbook_alerts_fired_total",
		Help: "Total number of alerts raised, labelled by rule and severity.",
	}, []string{"rule", "severity"})

	BatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tillbook_reconciliation_batch_duration_ms",
		Help:    "Reconciliation batch latency in milliseconds.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	})

	QueueUtilization = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tillbook_queue_utilization_ratio",
		Help: "Current reconciliation queue utilization (0..1).",
	})

	ConfigReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tillbook_config_reloads_total",
		Help: "Total number of settings reloads, labelled by result (applied, rejected).",
	}, []string{"result"})
)
