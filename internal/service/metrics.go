package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// resourceHooksTotal 记录生命周期钩子的执行结果
	resourceHooksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dropkeep_resource_hooks_total",
			Help: "Total number of resource lifecycle hook runs",
		},
		[]string{"hook", "result"},
	)

	// resourceHookDuration 记录钩子耗时
	resourceHookDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dropkeep_resource_hook_duration_seconds",
			Help:    "Resource lifecycle hook duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
		},
		[]string{"hook"},
	)
)

func observeHook(hook string, ok bool, seconds float64) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	resourceHooksTotal.WithLabelValues(hook, result).Inc()
	resourceHookDuration.WithLabelValues(hook).Observe(seconds)
}
