package jobs

import "github.com/prometheus/client_golang/prometheus"

var (
	JobsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_processed_total",
			Help: "Total background tasks processed grouped by status",
		},
		[]string{"type", "status"},
	)
)

func init() {
	prometheus.MustRegister(JobsProcessedTotal)
}

func recordProcessed(taskType string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	JobsProcessedTotal.WithLabelValues(taskType, status).Inc()
}
