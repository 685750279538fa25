package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PoolOptions 控制连接池大小和启动时的等待策略。
type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// PingAttempts 次数内数据库未就绪则放弃，容器编排时数据库往往晚于服务启动。
	PingAttempts int
	PingInterval time.Duration
}

// DefaultPoolOptions 返回默认连接池配置。
func DefaultPoolOptions() PoolOptions {
	return PoolOptions{
		MaxOpenConns:    15,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		PingAttempts:    5,
		PingInterval:    2 * time.Second,
	}
}

// Connect 建立到 PostgreSQL 的连接，并等待数据库可用。
func Connect(ctx context.Context, dsn string, opts PoolOptions, logger *slog.Logger) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("dsn is empty")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	attempts := opts.PingAttempts
	if attempts <= 0 {
		attempts = 1
	}

	for attempt := 1; ; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = db.PingContext(pingCtx)
		cancel()
		if err == nil {
			return db, nil
		}
		if attempt >= attempts {
			break
		}
		if logger != nil {
			logger.Warn("postgres not ready", "attempt", attempt, "error", err)
		}
		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(opts.PingInterval):
		}
	}

	db.Close()
	return nil, fmt.Errorf("ping postgres: %w", err)
}
