package resource

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// State 是属性值在放置状态机中的位置。
type State int

const (
	StateEmpty State = iota
	StatePendingUpload
	StateTemp
	StateCommitted
)

func (s State) String() string {
	switch s {
	case StatePendingUpload:
		return "pending_upload"
	case StateTemp:
		return "temp"
	case StateCommitted:
		return "committed"
	default:
		return "empty"
	}
}

// Resolver 根据配置计算资源在临时区或分片存储中的位置。
// 相对路径使用 "/" 分隔，是记录上持久化的形式。
type Resolver struct {
	cfg Config
}

func NewResolver(cfg Config) *Resolver {
	return &Resolver{cfg: cfg.Normalize()}
}

// Config 返回规整后的配置。
func (r *Resolver) Config() Config { return r.cfg }

// IsTemporary 判断引用是否指向临时区：首个路径段必须恰好是临时目录名，且不含 ".." 段。
func (r *Resolver) IsTemporary(ref string) bool {
	if hasParentSegment(ref) {
		return false
	}
	trimmed := strings.TrimLeft(filepath.ToSlash(ref), "/")
	return isPathPrefix(r.cfg.TempFolder, trimmed) && trimmed != r.cfg.TempFolder
}

// Check 拒绝含 ".." 段的引用，这类引用可能解析到临时区或分片目录之外。
func (r *Resolver) Check(ref string) error {
	if hasParentSegment(ref) {
		return fmt.Errorf("%w: %q", ErrInvalidReference, ref)
	}
	return nil
}

// Classify 一次性计算属性值的状态。
func (r *Resolver) Classify(v Value) State {
	switch {
	case v.Upload != nil:
		return StatePendingUpload
	case v.Ref == "":
		return StateEmpty
	case r.IsTemporary(v.Ref):
		return StateTemp
	default:
		return StateCommitted
	}
}

// TempDir 返回临时目录。
func (r *Resolver) TempDir(absolute bool) string {
	return r.join(absolute, "/"+r.cfg.TempFolder)
}

// TempPath 返回引用在临时区中的路径，引用上的临时目录前缀只剥离一次。
func (r *Resolver) TempPath(ref string, absolute bool) string {
	name := "/" + strings.TrimLeft(filepath.ToSlash(ref), "/")
	name = strings.TrimPrefix(name, "/"+r.cfg.TempFolder+"/")
	name = strings.Trim(name, "/")
	return r.join(absolute, path.Join("/", r.cfg.TempFolder, name))
}

// ShardDir 返回引用所在的分片目录，分片由文件名推导。
func (r *Resolver) ShardDir(ref string, absolute bool) (string, error) {
	shard, err := ShardPath(baseName(ref), r.cfg.ShardDepth, r.cfg.ShardGroupSize)
	if err != nil {
		return "", err
	}
	return r.join(absolute, path.Join("/", r.cfg.ResourceFolder, shard)), nil
}

// CommittedPath 返回引用在分片存储中的完整路径。
// 引用可以是裸文件名，也可以已经带有分片目录，两者解析到同一位置。
func (r *Resolver) CommittedPath(ref string, absolute bool) (string, error) {
	shard, err := ShardPath(baseName(ref), r.cfg.ShardDepth, r.cfg.ShardGroupSize)
	if err != nil {
		return "", err
	}
	return r.join(absolute, path.Join("/", r.cfg.ResourceFolder, shard, baseName(ref))), nil
}

// Path 按状态解析引用的位置。
func (r *Resolver) Path(ref string, absolute bool) (string, error) {
	if err := r.Check(ref); err != nil {
		return "", err
	}
	if r.IsTemporary(ref) {
		return r.TempPath(ref, absolute), nil
	}
	return r.CommittedPath(ref, absolute)
}

func (r *Resolver) join(absolute bool, rel string) string {
	if !absolute {
		return rel
	}
	return filepath.Join(r.cfg.Root, filepath.FromSlash(rel))
}

func hasParentSegment(ref string) bool {
	for _, seg := range strings.FieldsFunc(ref, isSeparator) {
		if seg == ".." {
			return true
		}
	}
	return false
}

func isSeparator(r rune) bool { return r == '/' || r == '\\' }

func baseName(ref string) string {
	return path.Base(filepath.ToSlash(ref))
}
