package api

import (
	"log/slog"
	"net/http"

	"dropkeep/internal/config"
	dkmiddleware "dropkeep/internal/middleware"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter 构建 HTTP 路由，集中注册所有对外服务的端点。
func NewRouter(cfg *config.Config, logger *slog.Logger, recordHandler *RecordHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(dkmiddleware.Metrics())

	// 健康检查不需要鉴权
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Prometheus 指标端点
	r.Handle("/metrics", promhttp.Handler())

	if recordHandler != nil {
		r.Group(func(r chi.Router) {
			if cfg.AuthEnabled {
				r.Use(dkmiddleware.Auth(dkmiddleware.AuthOptions{
					APIKeys:   cfg.APIKeys,
					JWTSecret: cfg.JWTSecret,
					JWKSURL:   cfg.JWKSURL,
					Logger:    logger,
				}))
			}
			// 限流放在鉴权之后，以便按 owner 计数
			r.Use(dkmiddleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
			recordHandler.RegisterRoutes(r)
		})
	}

	return r
}
