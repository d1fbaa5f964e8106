package database

import (
	"io"
	"sync/atomic"

	vm "github.com/VictoriaMetrics/metrics"

	"github.com/safing/dbdriver/log"
)

var (
	commitsTotal   = vm.NewCounter(`dbdriver_commits_total`)
	rollbacksTotal = vm.NewCounter(`dbdriver_rollbacks_total`)
	callbacksTotal = vm.NewCounter(`dbdriver_subscription_callbacks_total`)

	activeSubscriptions atomic.Int64
)

func init() {
	vm.NewGauge(`dbdriver_subscriptions_active`, func() float64 {
		return float64(activeSubscriptions.Load())
	})
	vm.NewGauge(`dbdriver_log_lines_total{level="warning"}`, func() float64 {
		return float64(log.TotalWarningLogLines())
	})
	vm.NewGauge(`dbdriver_log_lines_total{level="error"}`, func() float64 {
		return float64(log.TotalErrorLogLines())
	})
	vm.NewGauge(`dbdriver_log_lines_total{level="critical"}`, func() float64 {
		return float64(log.TotalCriticalLogLines())
	})
}

// WriteMetrics writes all metrics of the database layer and the process in
// the Prometheus text format.
func WriteMetrics(w io.Writer) {
	vm.WritePrometheus(w, true)
}
