package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"dropkeep/internal/repository"
	"dropkeep/internal/resource"

	"github.com/google/uuid"
)

// RecordService 封装记录的保存流程，并在各阶段驱动资源生命周期钩子。
type RecordService struct {
	repo       repository.RecordRepository
	fs         resource.Filesystem
	cfg        resource.Config
	attributes []string
	newID      func() string
	logger     *slog.Logger
}

// Options 是 RecordService 的资源相关依赖。
type Options struct {
	Resource   resource.Config
	Attributes []string
	FS         resource.Filesystem
	// NewIdentifier 为空时使用 resource.NewIdentifier。
	NewIdentifier func() string
	Logger        *slog.Logger
}

func NewRecordService(repo repository.RecordRepository, opts Options) *RecordService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &RecordService{
		repo:       repo,
		fs:         opts.FS,
		cfg:        opts.Resource,
		attributes: opts.Attributes,
		newID:      opts.NewIdentifier,
		logger:     logger.With("component", "records"),
	}
}

// SaveRecordInput 描述创建或更新记录所需的信息。
type SaveRecordInput struct {
	Kind    string
	Fields  map[string]string
	Uploads map[string]resource.Upload
}

// CreateRecord 暂存并提交上传的资源，然后插入记录。
func (s *RecordService) CreateRecord(ctx context.Context, input SaveRecordInput) (*repository.Record, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if err := s.checkReferences(input, nil); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	record := &repository.Record{
		ID:        uuid.NewString(),
		Kind:      input.Kind,
		Fields:    copyFields(input.Fields),
		Status:    repository.RecordStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	host := newHostRecord(record, nil, input.Uploads)
	binding := s.binding(host)

	if !s.runHook(ctx, "validate", binding.OnValidate) {
		return nil, host.validationError()
	}
	if !s.runHook(ctx, "save", binding.OnSave) {
		return nil, host.validationError()
	}

	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("create record: %w", err)
	}
	return created, nil
}

// UpdateRecord 覆盖字段和资源；新资源提交后，被替换的旧资源移回临时区。
func (s *RecordService) UpdateRecord(ctx context.Context, id string, input SaveRecordInput) (*repository.Record, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkReferences(input, existing.Fields); err != nil {
		return nil, err
	}

	record := existing.Clone()
	for k, v := range input.Fields {
		record.Fields[k] = v
	}

	host := newHostRecord(record, existing.Fields, input.Uploads)
	binding := s.binding(host)

	if !s.runHook(ctx, "validate", binding.OnValidate) {
		return nil, host.validationError()
	}
	if !s.runHook(ctx, "save", binding.OnSave) {
		return nil, host.validationError()
	}

	updated, err := s.repo.Update(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("update record: %w", err)
	}

	// 记录已经保存，清理失败只会留下孤立的旧文件
	if !s.runHook(ctx, "clear", binding.OnClear) {
		s.logger.Warn("superseded resources not reclaimed", "id", id, "error", host.validationError())
	}
	return updated, nil
}

// DeleteRecord 软删除记录，并把它的资源移回临时区以便恢复。
func (s *RecordService) DeleteRecord(ctx context.Context, id string) error {
	if err := s.ready(); err != nil {
		return err
	}

	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.MarkDeleted(ctx, id); err != nil {
		return err
	}

	host := newHostRecord(existing, existing.Fields, nil)
	if !s.runHook(ctx, "delete", s.binding(host).OnDelete) {
		return host.validationError()
	}
	return nil
}

// GetRecord 查询单条记录。
func (s *RecordService) GetRecord(ctx context.Context, id string) (*repository.Record, error) {
	if s == nil || s.repo == nil {
		return nil, errors.New("record service not initialized")
	}
	return s.repo.GetByID(ctx, id)
}

// ListRecords 以分页形式列出记录。
func (s *RecordService) ListRecords(ctx context.Context, params repository.ListRecordsParams) ([]repository.Record, error) {
	if s == nil || s.repo == nil {
		return nil, errors.New("record service not initialized")
	}
	return s.repo.List(ctx, params)
}

// ResourcePath 返回记录某个资源属性的路径；未配置的属性返回 resource.ErrUnknownAttribute。
func (s *RecordService) ResourcePath(ctx context.Context, id, attribute string, absolute bool) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}

	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	host := newHostRecord(record, record.Fields, nil)
	return s.binding(host).ResourcePath(attribute, absolute)
}

// OpenResource 打开记录某个资源属性对应的文件。
func (s *RecordService) OpenResource(ctx context.Context, id, attribute string) (io.ReadCloser, error) {
	full, err := s.ResourcePath(ctx, id, attribute, true)
	if err != nil {
		return nil, err
	}
	if full == "" {
		return nil, &resource.ExistenceError{Path: attribute}
	}
	exists, err := s.fs.Exists(ctx, full)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &resource.ExistenceError{Path: full}
	}
	return s.fs.Open(ctx, full)
}

// checkReferences 限制客户端直接写入资源属性的值：只能清空、保持原值或引用临时区文件。
// 已提交的引用只属于一条记录。
func (s *RecordService) checkReferences(input SaveRecordInput, previous map[string]string) error {
	resolver := resource.NewResolver(s.cfg)
	errs := map[string][]string{}
	for _, attr := range s.attributes {
		ref, ok := input.Fields[attr]
		if !ok || ref == "" || ref == previous[attr] {
			continue
		}
		if _, uploaded := input.Uploads[attr]; uploaded {
			continue
		}
		if err := resolver.Check(ref); err != nil {
			errs[attr] = append(errs[attr], err.Error())
			continue
		}
		if !resolver.IsTemporary(ref) {
			errs[attr] = append(errs[attr], fmt.Sprintf("reference %q is not owned by this record", ref))
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

func (s *RecordService) ready() error {
	if s == nil || s.repo == nil || s.fs == nil {
		return errors.New("record service not initialized")
	}
	return nil
}

// binding 每次保存流程创建新的 Binding，避免 superseded 槽位泄漏到下一次保存。
func (s *RecordService) binding(host *hostRecord) *resource.Binding {
	return resource.NewBinding(host, s.attributes, resource.Options{
		Config:        s.cfg,
		FS:            s.fs,
		NewIdentifier: s.newID,
		Logger:        s.logger,
	})
}

func (s *RecordService) runHook(ctx context.Context, hook string, fn func(context.Context) bool) bool {
	start := time.Now()
	ok := fn(ctx)
	observeHook(hook, ok, time.Since(start).Seconds())
	return ok
}

func copyFields(fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
