package resource

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"
)

// Options 是构造 Engine / Binding 所需的依赖。
type Options struct {
	Config Config
	FS     Filesystem
	// NewIdentifier 为空时使用 NewIdentifier。
	NewIdentifier func() string
	Logger        *slog.Logger
}

// Engine 管理单条记录上单个属性的资源放置。
// 一个实例只服务于一次保存流程，superseded 不跨保存复用。
type Engine struct {
	record    Record
	attribute string
	cfg       Config
	resolver  *Resolver
	fs        Filesystem
	newID     func() string
	logger    *slog.Logger

	superseded string
}

func NewEngine(record Record, attribute string, opts Options) *Engine {
	resolver := NewResolver(opts.Config)
	newID := opts.NewIdentifier
	if newID == nil {
		newID = NewIdentifier
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{
		record:    record,
		attribute: attribute,
		cfg:       resolver.Config(),
		resolver:  resolver,
		fs:        opts.FS,
		newID:     newID,
		logger:    logger.With("attribute", attribute),
	}
}

// Attribute 返回引擎负责的属性名。
func (e *Engine) Attribute() string { return e.attribute }

// Superseded 返回本次提交替换掉、等待回收的旧引用。
func (e *Engine) Superseded() string { return e.superseded }

// State 返回当前属性值的状态。
func (e *Engine) State() State {
	return e.resolver.Classify(e.record.Value(e.attribute))
}

// Path 解析当前属性值的位置，不会触发上传。
func (e *Engine) Path(absolute bool) (string, error) {
	value := e.record.Value(e.attribute)
	if err := e.resolver.Check(value.Ref); err != nil {
		return "", err
	}
	switch e.resolver.Classify(value) {
	case StateEmpty:
		return "", nil
	case StatePendingUpload:
		return "", ErrPendingUpload
	case StateTemp:
		return e.resolver.TempPath(value.Ref, absolute), nil
	default:
		return e.resolver.CommittedPath(value.Ref, absolute)
	}
}

// Stage 在校验前调用：把待上传内容写入临时区，或确认已暂存的临时文件仍然存在。
func (e *Engine) Stage(ctx context.Context) error {
	value := e.record.Value(e.attribute)
	if err := e.resolver.Check(value.Ref); err != nil {
		return &ExistenceError{Path: value.Ref, Err: err}
	}
	switch e.resolver.Classify(value) {
	case StatePendingUpload:
		return e.upload(ctx, value.Upload)
	case StateTemp:
		return e.requireExists(ctx, e.resolver.TempPath(value.Ref, true))
	default:
		return nil
	}
}

// Commit 在插入/更新前调用：把临时文件复制进分片存储并改写属性。
// 临时文件保留到清理阶段，上游回滚时不会丢失原始上传。
func (e *Engine) Commit(ctx context.Context) error {
	value := e.record.Value(e.attribute)
	if err := e.resolver.Check(value.Ref); err != nil {
		return &ExistenceError{Path: value.Ref, Err: err}
	}
	state := e.resolver.Classify(value)

	if state == StatePendingUpload {
		if err := e.upload(ctx, value.Upload); err != nil {
			return err
		}
		value = e.record.Value(e.attribute)
		state = e.resolver.Classify(value)
	}

	switch state {
	case StateTemp:
		return e.commitTemp(ctx, value.Ref)
	case StateCommitted:
		full, err := e.resolver.CommittedPath(value.Ref, true)
		if err != nil {
			return &ExistenceError{Path: value.Ref, Err: err}
		}
		return e.requireExists(ctx, full)
	default:
		return nil
	}
}

// Cleanup 在更新完成后调用：回收被替换的旧资源。
func (e *Engine) Cleanup(ctx context.Context) error {
	var errs error

	reverted := e.superseded
	if reverted != "" {
		e.superseded = ""
		errs = multierr.Append(errs, e.Revert(ctx, reverted))
	}

	previous := e.record.OldValue(e.attribute)
	current := e.record.Value(e.attribute).Ref
	if previous != "" && previous != current && previous != reverted {
		errs = multierr.Append(errs, e.Revert(ctx, previous))
	}

	return errs
}

// Delete 在删除记录后调用：把当前资源移回临时区。
func (e *Engine) Delete(ctx context.Context) error {
	value := e.record.Value(e.attribute)
	if e.resolver.Classify(value) != StateCommitted {
		return nil
	}
	return e.Revert(ctx, value.Ref)
}

// Revert 把已提交的资源及其派生文件移回临时区。
// 主文件移动失败立即返回；派生文件逐个尽力移动，失败汇总为一个 MoveError。
func (e *Engine) Revert(ctx context.Context, ref string) error {
	if err := e.resolver.Check(ref); err != nil {
		return &MoveError{Path: ref, Err: err}
	}
	if ref == "" || e.resolver.IsTemporary(ref) {
		return nil
	}

	tempDir := e.resolver.TempDir(true)
	if err := e.fs.MkdirAll(ctx, tempDir, e.cfg.DirMode); err != nil {
		return &MoveError{Path: tempDir, Err: err}
	}

	src, err := e.resolver.CommittedPath(ref, true)
	if err != nil {
		return &MoveError{Path: ref, Err: err}
	}

	exists, err := e.fs.Exists(ctx, src)
	if err != nil {
		return &MoveError{Path: src, Err: err}
	}
	if exists {
		if err := e.relocate(ctx, src); err != nil {
			return err
		}
	}

	var errs error
	for variant, err := range Variants(ctx, e.fs, ref, filepath.Dir(src)) {
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if err := e.relocate(ctx, variant); err != nil {
			e.logger.Warn("variant relocation failed", "path", variant, "error", err)
			errs = multierr.Append(errs, err)
		}
	}
	if errs != nil {
		return &MoveError{Path: src, Err: errs}
	}
	return nil
}

func (e *Engine) upload(ctx context.Context, upload Upload) error {
	name := e.newID() + extension(upload.Extension())

	tempDir := e.resolver.TempDir(true)
	if err := e.fs.MkdirAll(ctx, tempDir, e.cfg.DirMode); err != nil {
		return &SaveError{Path: tempDir, Err: err}
	}

	savePath := e.resolver.TempPath(name, true)
	body, err := upload.Open()
	if err != nil {
		return &SaveError{Path: savePath, Err: err}
	}
	defer body.Close()

	if err := e.fs.WriteFrom(ctx, savePath, body); err != nil {
		return &SaveError{Path: savePath, Err: err}
	}
	if err := e.fs.Chmod(ctx, savePath, e.cfg.FileMode); err != nil {
		return &SaveError{Path: savePath, Err: err}
	}

	e.record.SetValue(e.attribute, RefValue(e.resolver.TempPath(name, false)))
	if e.cfg.OriginalNameAttribute != "" {
		e.record.SetValue(e.cfg.OriginalNameAttribute, RefValue(upload.Name()))
	}
	e.logger.Debug("resource staged", "path", savePath)
	return nil
}

func (e *Engine) commitTemp(ctx context.Context, ref string) error {
	src := e.resolver.TempPath(ref, true)
	ext := path.Ext(baseName(ref))
	name := e.newID() + ext

	dir, err := e.resolver.ShardDir(name, true)
	if err != nil {
		return &SaveError{Path: name, Err: err}
	}
	if err := e.fs.MkdirAll(ctx, dir, e.cfg.DirMode); err != nil {
		return &SaveError{Path: dir, Err: err}
	}

	name, err = e.uniqueName(ctx, dir, name)
	if err != nil {
		return &SaveError{Path: dir, Err: err}
	}

	dst := filepath.Join(dir, name)
	if err := e.fs.Copy(ctx, src, dst); err != nil {
		return &SaveError{Path: dst, Err: err}
	}

	if previous := e.record.OldValue(e.attribute); previous != "" && !e.resolver.IsTemporary(previous) {
		e.superseded = previous
	}
	e.record.SetValue(e.attribute, RefValue(name))
	e.logger.Debug("resource committed", "from", src, "to", dst)
	return nil
}

// uniqueName 在同一分片目录内避免文件名冲突：<hash>_<n>.<ext>。
// 检查与写入之间没有加锁，并发提交到同一分片仍可能竞争。
func (e *Engine) uniqueName(ctx context.Context, dir, name string) (string, error) {
	taken, err := e.fs.Exists(ctx, filepath.Join(dir, name))
	if err != nil || !taken {
		return name, err
	}

	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	siblings, err := e.fs.Glob(ctx, filepath.Join(dir, stem+"_*"+ext))
	if err != nil {
		return "", err
	}

	for n := len(siblings) + 1; ; n++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, n, ext)
		taken, err := e.fs.Exists(ctx, filepath.Join(dir, candidate))
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
}

// relocate 把文件移入临时区，同名的临时文件先删除。
func (e *Engine) relocate(ctx context.Context, src string) error {
	dst := e.resolver.TempPath(filepath.Base(src), true)

	exists, err := e.fs.Exists(ctx, dst)
	if err != nil {
		return &MoveError{Path: src, Err: err}
	}
	if exists {
		if err := e.fs.Remove(ctx, dst); err != nil {
			return &MoveError{Path: dst, Err: err}
		}
	}
	if err := e.fs.Rename(ctx, src, dst); err != nil {
		return &MoveError{Path: src, Err: err}
	}
	e.logger.Debug("resource moved to temp", "from", src, "to", dst)
	return nil
}

func (e *Engine) requireExists(ctx context.Context, full string) error {
	exists, err := e.fs.Exists(ctx, full)
	if err != nil {
		return &ExistenceError{Path: full, Err: err}
	}
	if !exists {
		return &ExistenceError{Path: full}
	}
	return nil
}

// extension 只补上前导点，保留上传声明的大小写。
func extension(ext string) string {
	ext = strings.TrimLeft(strings.TrimSpace(ext), ".")
	if ext == "" {
		return ""
	}
	return "." + ext
}
