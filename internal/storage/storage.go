package storage

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"dropkeep/internal/resource"
	"dropkeep/internal/storage/local"
	"dropkeep/internal/storage/s3"
)

const (
	DriverLocal  = "local"
	DriverMemory = "memory"
	DriverS3     = "s3"
)

// Options 选择并配置资源文件系统驱动。
type Options struct {
	Driver string
	Root   string
	S3     s3.Config
}

// Open 按驱动名构建 resource.Filesystem。
func Open(ctx context.Context, opts Options) (resource.Filesystem, error) {
	switch strings.ToLower(opts.Driver) {
	case "", DriverLocal:
		return local.NewOS(), nil
	case DriverMemory:
		return local.NewMemory(), nil
	case DriverS3:
		return s3.New(ctx, opts.Root, opts.S3)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}

// Location 描述资源的可访问信息。
type Location struct {
	Path string `json:"path"`
	URL  string `json:"url,omitempty"`
}

// Locate 根据相对路径拼出公开 URL，baseURL 为空时只返回路径。
func Locate(baseURL, relative string) Location {
	loc := Location{Path: relative}
	if baseURL == "" || relative == "" {
		return loc
	}
	if u, err := url.JoinPath(baseURL, path.Clean("/"+relative)); err == nil {
		loc.URL = u
	}
	return loc
}
