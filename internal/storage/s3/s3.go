package s3

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"dropkeep/internal/resource"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config 包含 S3/MinIO 存储所需的配置。
type Config struct {
	Endpoint  string // 不含协议，如 "localhost:9000" 或 "s3.amazonaws.com"
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool // 是否使用 HTTPS
	PathStyle bool // 是否使用路径风格（MinIO 需要 true）
}

// FS 用 S3 兼容存储实现 resource.Filesystem。
// 绝对路径去掉 root 前缀后作为对象 key；对象存储没有目录，也没有原子 rename，
// Rename 由 copy + remove 组成。
type FS struct {
	client *minio.Client
	bucket string
	root   string
}

// New 创建新的 S3 文件系统，bucket 不存在时自动创建。
func New(ctx context.Context, root string, cfg Config) (*FS, error) {
	lookup := minio.BucketLookupAuto
	if cfg.PathStyle {
		lookup = minio.BucketLookupPath
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       cfg.UseSSL,
		Region:       cfg.Region,
		BucketLookup: lookup,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket exists: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{
			Region: cfg.Region,
		}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	return &FS{
		client: client,
		bucket: cfg.Bucket,
		root:   filepath.Clean(root),
	}, nil
}

func (s *FS) Exists(ctx context.Context, p string) (bool, error) {
	key, err := s.key(p)
	if err != nil {
		return false, err
	}
	_, err = s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat object: %w", err)
	}
	return true, nil
}

// MkdirAll 在对象存储上无需操作。
func (s *FS) MkdirAll(ctx context.Context, p string, perm os.FileMode) error {
	return nil
}

func (s *FS) Remove(ctx context.Context, p string) error {
	key, err := s.key(p)
	if err != nil {
		return err
	}
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}

func (s *FS) Rename(ctx context.Context, oldpath, newpath string) error {
	if err := s.Copy(ctx, oldpath, newpath); err != nil {
		return err
	}
	return s.Remove(ctx, oldpath)
}

func (s *FS) Copy(ctx context.Context, src, dst string) error {
	srcKey, err := s.key(src)
	if err != nil {
		return err
	}
	dstKey, err := s.key(dst)
	if err != nil {
		return err
	}
	_, err = s.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: s.bucket, Object: dstKey},
		minio.CopySrcOptions{Bucket: s.bucket, Object: srcKey},
	)
	if err != nil {
		return fmt.Errorf("copy object: %w", err)
	}
	return nil
}

func (s *FS) WriteFrom(ctx context.Context, p string, r io.Reader) error {
	key, err := s.key(p)
	if err != nil {
		return err
	}
	// -1 表示未知大小，让 SDK 自动分片
	if _, err := s.client.PutObject(ctx, s.bucket, key, r, -1, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	}); err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

// Chmod 对象存储没有权限位。
func (s *FS) Chmod(ctx context.Context, p string, mode os.FileMode) error {
	return nil
}

// Glob 只支持最后一个路径段中的通配符。
func (s *FS) Glob(ctx context.Context, pattern string) ([]string, error) {
	keyPattern, err := s.key(pattern)
	if err != nil {
		return nil, err
	}
	if _, err := path.Match(keyPattern, ""); err != nil {
		return nil, err
	}

	objects, err := s.list(ctx, path.Dir(keyPattern))
	if err != nil {
		return nil, err
	}

	var matches []string
	for _, obj := range objects {
		if ok, _ := path.Match(keyPattern, obj.Key); ok {
			matches = append(matches, s.abs(obj.Key))
		}
	}
	return matches, nil
}

func (s *FS) List(ctx context.Context, dir string) ([]resource.Entry, error) {
	key, err := s.key(dir)
	if err != nil {
		return nil, err
	}
	objects, err := s.list(ctx, key)
	if err != nil {
		return nil, err
	}

	entries := make([]resource.Entry, 0, len(objects))
	for _, obj := range objects {
		entries = append(entries, resource.Entry{
			Path:    s.abs(obj.Key),
			Size:    obj.Size,
			ModTime: obj.LastModified,
		})
	}
	return entries, nil
}

func (s *FS) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	key, err := s.key(p)
	if err != nil {
		return nil, err
	}

	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object: %w", err)
	}

	// 验证对象是否存在
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if isNotFound(err) {
			return nil, fmt.Errorf("file not found: %s", p)
		}
		return nil, fmt.Errorf("stat object: %w", err)
	}
	return obj, nil
}

func (s *FS) list(ctx context.Context, prefix string) ([]minio.ObjectInfo, error) {
	if prefix != "" && prefix != "." {
		prefix = strings.TrimSuffix(prefix, "/") + "/"
	} else {
		prefix = ""
	}

	var out []minio.ObjectInfo
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list objects: %w", obj.Err)
		}
		if strings.HasSuffix(obj.Key, "/") {
			continue
		}
		out = append(out, obj)
	}
	return out, nil
}

func (s *FS) key(p string) (string, error) {
	rel, err := filepath.Rel(s.root, p)
	if err != nil {
		return "", fmt.Errorf("resolve key for %s: %w", p, err)
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("path %s is outside storage root %s", p, s.root)
	}
	return rel, nil
}

func (s *FS) abs(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

func isNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}
