package resource

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	DefaultResourceFolder = "image"
	DefaultTempFolder     = "upload_temp"
	DefaultShardDepth     = 3
	DefaultShardGroupSize = 2
	DefaultFileMode       = os.FileMode(0o775)
	DefaultDirMode        = os.FileMode(0o755)
)

// Config 是放置引擎的全部配置，构造时显式注入。
type Config struct {
	// Root 是文档根目录的绝对路径，absolute 形式的路径都以它为前缀。
	Root           string
	ResourceFolder string
	TempFolder     string
	ShardDepth     int
	ShardGroupSize int
	FileMode       os.FileMode
	DirMode        os.FileMode
	// OriginalNameAttribute 非空时，暂存上传会把原始文件名写入该属性。
	OriginalNameAttribute string
}

// Normalize 填充默认值并规整目录名。
func (c Config) Normalize() Config {
	c.ResourceFolder = strings.Trim(filepath.ToSlash(c.ResourceFolder), "/")
	if c.ResourceFolder == "" {
		c.ResourceFolder = DefaultResourceFolder
	}
	c.TempFolder = strings.Trim(filepath.ToSlash(c.TempFolder), "/")
	if c.TempFolder == "" {
		c.TempFolder = DefaultTempFolder
	}
	if c.ShardDepth <= 0 {
		c.ShardDepth = DefaultShardDepth
	}
	if c.ShardGroupSize <= 0 {
		c.ShardGroupSize = DefaultShardGroupSize
	}
	if c.FileMode == 0 {
		c.FileMode = DefaultFileMode
	}
	if c.DirMode == 0 {
		c.DirMode = DefaultDirMode
	}
	if c.Root != "" {
		c.Root = filepath.Clean(c.Root)
	}
	return c
}

// Validate 检查配置；临时目录与资源目录互为前缀时引用分类会产生歧义，直接拒绝。
func (c Config) Validate() error {
	if c.Root == "" {
		return fmt.Errorf("resource root is required")
	}
	if c.ResourceFolder == "" || c.TempFolder == "" {
		return fmt.Errorf("resource and temp folders are required")
	}
	if isPathPrefix(c.ResourceFolder, c.TempFolder) || isPathPrefix(c.TempFolder, c.ResourceFolder) {
		return fmt.Errorf("resource folder %q and temp folder %q overlap", c.ResourceFolder, c.TempFolder)
	}
	if c.ShardDepth <= 0 || c.ShardGroupSize <= 0 {
		return fmt.Errorf("shard depth and group size must be positive")
	}
	return nil
}

func isPathPrefix(prefix, p string) bool {
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}
