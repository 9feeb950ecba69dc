package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ThermalFallbacks counts corrections that degraded to FCV=1.0.
	ThermalFallbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tankcontrol",
		Name:      "thermal_fallback_total",
		Help:      "Density corrections that fell back to FCV=1.0, by caller and reason.",
	}, []string{"source", "reason"})

	// EmptyCalibrationLookups counts corrections run against a tank with no calibration rows.
	EmptyCalibrationLookups = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tankcontrol",
		Name:      "empty_calibration_total",
		Help:      "Operation corrections computed against an empty calibration table.",
	})

	ReportRecomputes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tankcontrol",
		Name:      "report_recompute_total",
		Help:      "Daily report recomputations, by trigger.",
	}, []string{"trigger"})

	ReportRecomputeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "tankcontrol",
		Name:      "report_recompute_duration_seconds",
		Help:      "Time spent aggregating a day and regenerating its ledger tail.",
		Buckets:   prometheus.DefBuckets,
	})

	LedgerRowsWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tankcontrol",
		Name:      "ledger_rows_written_total",
		Help:      "Ledger rows persisted after a forward recompute.",
	})

	ClosedReportConflicts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tankcontrol",
		Name:      "closed_report_conflicts_total",
		Help:      "Writes rejected because the production day is closed.",
	})

	// AuditEmitFailures counts audit entries lost after the write committed.
	AuditEmitFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tankcontrol",
		Name:      "audit_emit_failures_total",
		Help:      "Audit entries the sink rejected after the write was committed, by entity type.",
	}, []string{"entity_type"})
)

var registerOnce sync.Once

// Register adds every collector to reg once. Safe to call from each entrypoint.
func Register(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		reg.MustRegister(
			ThermalFallbacks,
			EmptyCalibrationLookups,
			ReportRecomputes,
			ReportRecomputeDuration,
			LedgerRowsWritten,
			ClosedReportConflicts,
			AuditEmitFailures,
		)
	})
}
