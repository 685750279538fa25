package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dropkeep/internal/api"
	"dropkeep/internal/config"
	"dropkeep/internal/database"
	"dropkeep/internal/logging"
	"dropkeep/internal/repository/postgres"
	"dropkeep/internal/resource"
	"dropkeep/internal/service"
	"dropkeep/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("info").Error("load config", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("配置加载完成，开始启动服务", "storage", cfg.StorageDriver, "root", cfg.Resources.WebRoot)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resourceCfg, err := cfg.Resource()
	if err != nil {
		logger.Error("resource config", "error", err)
		os.Exit(1)
	}

	fsys, err := storage.Open(ctx, storage.Options{
		Driver: cfg.StorageDriver,
		Root:   resourceCfg.Root,
		S3:     cfg.S3,
	})
	if err != nil {
		logger.Error("open storage", "error", err)
		os.Exit(1)
	}

	db, err := database.Connect(ctx, cfg.PostgresDSN(), database.DefaultPoolOptions(), logger)
	if err != nil {
		logger.Error("connect database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	records := service.NewRecordService(postgres.NewRecordRepository(db), service.Options{
		Resource:   resourceCfg,
		Attributes: cfg.Resources.Attributes,
		FS:         fsys,
		Logger:     logger,
	})
	handler := api.NewRecordHandler(records, cfg.MaxUploadBytes, cfg.Resources.PublicURL)

	sweeper := resource.NewSweeper(resourceCfg, fsys, cfg.Resources.TempTTL, logger.With("component", "sweeper"))
	go sweeper.Run(ctx, cfg.Resources.SweepInterval)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
		Handler:      api.NewRouter(cfg, logger, handler),
	}

	go func() {
		logger.Info("服务监听端口", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("监听失败", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("优雅关闭失败", "error", err)
	}

	logger.Info("服务已停止")
}
