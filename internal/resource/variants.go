package resource

import (
	"context"
	"iter"
	"path"
	"path/filepath"
	"strings"
)

// VariantPattern 返回与资源同目录的派生文件匹配模式：<base>.*.<ext>。
func VariantPattern(name, dir string) string {
	base := baseName(name)
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return filepath.Join(dir, stem+".*"+ext)
}

// Variants 列出 dir 中 name 的派生文件（缩略图、滤镜图等）。
// 每次调用只做一次目录列举；结果顺序取决于文件系统。列举失败时产出一次错误。
func Variants(ctx context.Context, fsys Filesystem, name, dir string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		matches, err := fsys.Glob(ctx, VariantPattern(name, dir))
		if err != nil {
			yield("", err)
			return
		}
		for _, m := range matches {
			if !yield(m, nil) {
				return
			}
		}
	}
}
