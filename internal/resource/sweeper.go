package resource

import (
	"context"
	"io"
	"log/slog"
	"time"
)

// Sweeper 定期删除临时区中超过保留期的文件。
// 被回退的资源在保留期内都可以恢复。
type Sweeper struct {
	fs       Filesystem
	resolver *Resolver
	ttl      time.Duration
	logger   *slog.Logger
}

func NewSweeper(cfg Config, fs Filesystem, ttl time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Sweeper{
		fs:       fs,
		resolver: NewResolver(cfg),
		ttl:      ttl,
		logger:   logger,
	}
}

// Sweep 删除 now-ttl 之前修改过的临时文件，返回删除数量。
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (int, error) {
	if s.ttl <= 0 {
		return 0, nil
	}

	entries, err := s.fs.List(ctx, s.resolver.TempDir(true))
	if err != nil {
		return 0, err
	}

	cutoff := now.Add(-s.ttl)
	removed := 0
	for _, entry := range entries {
		if !entry.ModTime.Before(cutoff) {
			continue
		}
		if err := s.fs.Remove(ctx, entry.Path); err != nil {
			s.logger.Warn("sweep temp file failed", "path", entry.Path, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}

// Run 按 interval 周期执行 Sweep，直到 ctx 取消。
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	if s.ttl <= 0 || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := s.Sweep(ctx, now)
			if err != nil {
				s.logger.Error("sweep temp folder", "error", err)
				continue
			}
			if n > 0 {
				s.logger.Info("swept temp folder", "removed", n)
			}
		}
	}
}
