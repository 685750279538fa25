package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"dropkeep/internal/resource"

	"github.com/spf13/afero"
)

// FS 基于 afero 实现 resource.Filesystem，可以落在真实磁盘或内存中。
type FS struct {
	fs afero.Fs
}

func New(fs afero.Fs) *FS {
	return &FS{fs: fs}
}

// NewOS 返回操作真实磁盘的实现。
func NewOS() *FS {
	return New(afero.NewOsFs())
}

// NewMemory 返回纯内存实现，适合测试和演示。
func NewMemory() *FS {
	return New(afero.NewMemMapFs())
}

// Afero 暴露底层文件系统。
func (f *FS) Afero() afero.Fs { return f.fs }

func (f *FS) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return afero.Exists(f.fs, path)
}

func (f *FS) MkdirAll(ctx context.Context, path string, perm os.FileMode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := f.fs.MkdirAll(path, perm); err != nil {
		return fmt.Errorf("ensure dir: %w", err)
	}
	return nil
}

func (f *FS) Remove(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return f.fs.Remove(path)
}

func (f *FS) Rename(ctx context.Context, oldpath, newpath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return f.fs.Rename(oldpath, newpath)
}

// Copy 复制 src 到 dst，写入过程与 WriteFrom 相同，失败不会留下半个文件。
func (f *FS) Copy(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	in, err := f.fs.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	return f.writeAtomic(dst, in)
}

func (f *FS) WriteFrom(ctx context.Context, path string, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return f.writeAtomic(path, r)
}

func (f *FS) Chmod(ctx context.Context, path string, mode os.FileMode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return f.fs.Chmod(path, mode)
}

func (f *FS) Glob(ctx context.Context, pattern string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return afero.Glob(f.fs, pattern)
}

// List 返回目录下的普通文件，目录不存在时返回空列表。
func (f *FS) List(ctx context.Context, dir string) ([]resource.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	infos, err := afero.ReadDir(f.fs, dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read dir: %w", err)
	}

	entries := make([]resource.Entry, 0, len(infos))
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		entries = append(entries, resource.Entry{
			Path:    filepath.Join(dir, info.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	return entries, nil
}

func (f *FS) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := f.fs.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("file not found: %s", path)
		}
		return nil, fmt.Errorf("open file: %w", err)
	}
	return file, nil
}

// writeAtomic 先写 <target>.tmp，sync 后再 rename 到目标位置。
func (f *FS) writeAtomic(targetPath string, r io.Reader) error {
	tempPath := targetPath + ".tmp"
	file, err := f.fs.Create(tempPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	if _, err := io.Copy(file, r); err != nil {
		file.Close()
		f.fs.Remove(tempPath)
		return fmt.Errorf("write file: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		f.fs.Remove(tempPath)
		return fmt.Errorf("sync file: %w", err)
	}

	if err := file.Close(); err != nil {
		f.fs.Remove(tempPath)
		return fmt.Errorf("close file: %w", err)
	}

	if err := f.fs.Rename(tempPath, targetPath); err != nil {
		f.fs.Remove(tempPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
