package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// OrderSummariesTotal counts order summary computations by source and outcome.
	OrderSummariesTotal *prometheus.CounterVec
	// CouponEvaluationsTotal counts coupon evaluations by outcome.
	CouponEvaluationsTotal *prometheus.CounterVec
	// PivotRowsTotal counts child rows removed or reported new per table.
	PivotRowsTotal *prometheus.CounterVec
	// PivotSyncTotal counts synchronizations per table.
	PivotSyncTotal *prometheus.CounterVec
	// ImportBatchesTotal counts catalog import batches by outcome.
	ImportBatchesTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		OrderSummariesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_summaries_total",
			Help:      "Count of order summary computations.",
		}, []string{"source", "result"})
		CouponEvaluationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coupon_evaluations_total",
			Help:      "Count of coupon evaluations by outcome.",
		}, []string{"result"})
		PivotRowsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pivot_rows_total",
			Help:      "Child rows removed or detected as new during pivot synchronization.",
		}, []string{"table", "op"})
		PivotSyncTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pivot_sync_total",
			Help:      "Count of pivot synchronizations per table.",
		}, []string{"table"})
		ImportBatchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_import_batches_total",
			Help:      "Count of catalog import batches by outcome.",
		}, []string{"result"})

		for _, collector := range []**prometheus.CounterVec{
			&OrderSummariesTotal, &CouponEvaluationsTotal, &PivotRowsTotal, &PivotSyncTotal, &ImportBatchesTotal,
		} {
			target := collector
			mustRegisterCollector(reg, *target, func(existing prometheus.Collector) {
				if v, ok := existing.(*prometheus.CounterVec); ok {
					*target = v
				}
			})
		}
	})
}

// RecordPivotSync is a no-op until MustRegisterDomainMetrics ran.
func RecordPivotSync(table string, removed, added int) {
	if PivotSyncTotal == nil || PivotRowsTotal == nil {
		return
	}
	PivotSyncTotal.WithLabelValues(table).Inc()
	PivotRowsTotal.WithLabelValues(table, "removed").Add(float64(removed))
	PivotRowsTotal.WithLabelValues(table, "new").Add(float64(added))
}

// RecordOrderSummary counts a computation for source ("preview", "order", "recalculate").
func RecordOrderSummary(source string, err error) {
	if OrderSummariesTotal == nil {
		return
	}
	OrderSummariesTotal.WithLabelValues(source, resultLabel(err)).Inc()
}

// RecordCouponEvaluation counts a coupon outcome such as "applied" or "out_of_scope".
func RecordCouponEvaluation(result string) {
	if CouponEvaluationsTotal == nil {
		return
	}
	CouponEvaluationsTotal.WithLabelValues(result).Inc()
}

// RecordImportBatch counts an import batch outcome.
func RecordImportBatch(err error) {
	if ImportBatchesTotal == nil {
		return
	}
	ImportBatchesTotal.WithLabelValues(resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register metric: %w", err))
	}
}
