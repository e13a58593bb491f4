package obs

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestDomainMetricsRecord(t *testing.T) {
	MustRegisterDomainMetrics("toko_test", prometheus.NewRegistry())

	before := testutil.ToFloat64(PivotRowsTotal.WithLabelValues("product_tags", "removed"))
	RecordPivotSync("product_tags", 2, 1)
	require.Equal(t, before+2, testutil.ToFloat64(PivotRowsTotal.WithLabelValues("product_tags", "removed")))

	failed := testutil.ToFloat64(OrderSummariesTotal.WithLabelValues("preview", "error"))
	RecordOrderSummary("preview", errors.New("boom"))
	require.Equal(t, failed+1, testutil.ToFloat64(OrderSummariesTotal.WithLabelValues("preview", "error")))

	applied := testutil.ToFloat64(CouponEvaluationsTotal.WithLabelValues("applied"))
	RecordCouponEvaluation("applied")
	require.Equal(t, applied+1, testutil.ToFloat64(CouponEvaluationsTotal.WithLabelValues("applied")))
}
