package resource

import (
	"context"
	"io"
	"os"
	"time"
)

// Upload 是尚未落盘的上传内容，由传输层提供。
type Upload interface {
	// Name 返回客户端声明的原始文件名。
	Name() string
	// Extension 返回不带点的扩展名，可以为空。
	Extension() string
	Open() (io.ReadCloser, error)
}

// Value 是记录属性上的值：要么是资源引用字符串，要么是待暂存的上传。
type Value struct {
	Ref    string
	Upload Upload
}

// RefValue 包装一个资源引用。
func RefValue(ref string) Value { return Value{Ref: ref} }

// UploadValue 包装一个待暂存的上传。
func UploadValue(u Upload) Value { return Value{Upload: u} }

// Record 是宿主记录需要暴露的最小能力。
type Record interface {
	Value(attribute string) Value
	SetValue(attribute string, value Value)
	// OldValue 返回上一次持久化时的属性值，新记录返回空串。
	OldValue(attribute string) string
	AddError(attribute, message string)
}

// Entry 描述目录中的一个文件。
type Entry struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// Filesystem 是引擎使用的文件系统抽象，路径均为绝对路径。
type Filesystem interface {
	Exists(ctx context.Context, path string) (bool, error)
	MkdirAll(ctx context.Context, path string, perm os.FileMode) error
	Remove(ctx context.Context, path string) error
	Rename(ctx context.Context, oldpath, newpath string) error
	Copy(ctx context.Context, src, dst string) error
	WriteFrom(ctx context.Context, path string, r io.Reader) error
	Chmod(ctx context.Context, path string, mode os.FileMode) error
	Glob(ctx context.Context, pattern string) ([]string, error)
	List(ctx context.Context, dir string) ([]Entry, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}
