package resource

import (
	"context"
	"io"
	"log/slog"
)

// Binding 把宿主记录的四个生命周期钩子分发给每个属性的 Engine。
// 单个属性失败只记录到该属性上，不会中断其余属性。
type Binding struct {
	record     Record
	attributes []string
	opts       Options
	logger     *slog.Logger

	engines map[string]*Engine
}

func NewBinding(record Record, attributes []string, opts Options) *Binding {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Binding{
		record:     record,
		attributes: append([]string(nil), attributes...),
		opts:       opts,
		logger:     logger,
	}
}

// Attributes 返回配置的属性列表。
func (b *Binding) Attributes() []string {
	return append([]string(nil), b.attributes...)
}

// Engine 返回属性对应的引擎，首次访问时构建并缓存。
func (b *Binding) Engine(attribute string) (*Engine, bool) {
	b.build()
	e, ok := b.engines[attribute]
	return e, ok
}

// Reset 丢弃缓存的引擎，下一次保存使用全新的 superseded 槽位。
func (b *Binding) Reset() {
	b.engines = nil
}

func (b *Binding) build() {
	if b.engines != nil {
		return
	}
	b.engines = make(map[string]*Engine, len(b.attributes))
	for _, attr := range b.attributes {
		b.engines[attr] = NewEngine(b.record, attr, b.opts)
	}
}

// OnValidate 对应 before-validate。
func (b *Binding) OnValidate(ctx context.Context) bool {
	return b.each(ctx, "validate", (*Engine).Stage)
}

// OnSave 对应 before-insert / before-update。
func (b *Binding) OnSave(ctx context.Context) bool {
	return b.each(ctx, "save", (*Engine).Commit)
}

// OnClear 对应 after-update。
func (b *Binding) OnClear(ctx context.Context) bool {
	return b.each(ctx, "clear", (*Engine).Cleanup)
}

// OnDelete 对应 after-delete。
func (b *Binding) OnDelete(ctx context.Context) bool {
	return b.each(ctx, "delete", (*Engine).Delete)
}

// ResourcePath 返回属性当前资源的路径。未配置的属性返回 UnknownAttributeError。
func (b *Binding) ResourcePath(attribute string, absolute bool) (string, error) {
	if !b.configured(attribute) {
		return "", &UnknownAttributeError{Attribute: attribute}
	}
	e, _ := b.Engine(attribute)
	return e.Path(absolute)
}

func (b *Binding) configured(attribute string) bool {
	for _, attr := range b.attributes {
		if attr == attribute {
			return true
		}
	}
	return false
}

func (b *Binding) each(ctx context.Context, hook string, fn func(*Engine, context.Context) error) bool {
	b.build()

	ok := true
	for _, attr := range b.attributes {
		if err := fn(b.engines[attr], ctx); err != nil {
			b.logger.Warn("resource hook failed", "hook", hook, "attribute", attr, "error", err)
			b.record.AddError(attr, err.Error())
			ok = false
		}
	}
	return ok
}
