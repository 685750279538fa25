package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// httpRequestsTotal 按路由模式统计请求数
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dropkeep_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// httpRequestDuration 记录请求耗时
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dropkeep_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "route"},
	)

	// uploadBytes 记录写请求的请求体大小
	uploadBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dropkeep_upload_bytes",
			Help:    "Request body size of mutating requests in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		},
		[]string{"route"},
	)

	// downloadBytes 记录下载的响应大小
	downloadBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dropkeep_response_bytes_total",
			Help: "Total response bytes written",
		},
		[]string{"route"},
	)
)

// statusRecorder 包装 http.ResponseWriter 以捕获状态码和响应大小
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}

// Metrics 创建 Prometheus 指标收集中间件
func Metrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)

			// 使用路由模式而非实际路径，避免高基数
			route := "unknown"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}

			httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.status)).Inc()
			httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
			downloadBytes.WithLabelValues(route).Add(float64(rw.bytes))

			if !isReadOnly(r.Method) && r.ContentLength > 0 {
				uploadBytes.WithLabelValues(route).Observe(float64(r.ContentLength))
			}
		})
	}
}
