package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"dropkeep/internal/resource"
	"dropkeep/internal/storage/s3"

	"gopkg.in/yaml.v3"
)

// Config 聚合服务启动需要的关键配置。
type Config struct {
	HTTPPort          string
	LogLevel          string
	RateLimitRequests int
	RateLimitWindow   time.Duration
	MaxUploadBytes    int64
	DBHost            string
	DBPort            int
	DBUser            string
	DBPassword        string
	DBName            string
	DBSSLMode         string
	// 鉴权配置
	AuthEnabled bool     // 是否启用 API Key 鉴权
	APIKeys     []string // 有效的 API Keys 列表
	JWTSecret   string   // HMAC 签名的 Bearer Token
	JWKSURL     string   // 远程公钥，优先于 JWTSecret
	// 资源配置
	Resources ResourceConfig
	// 存储配置
	StorageDriver string // "local"、"memory" 或 "s3"
	S3            s3.Config
}

// ResourceConfig 是资源放置相关的配置，可以由 RESOURCE_CONFIG 指向的 YAML 文件覆盖。
type ResourceConfig struct {
	WebRoot               string        `yaml:"web_root"`
	PublicURL             string        `yaml:"public_url"`
	ResourceFolder        string        `yaml:"resource_folder"`
	TempFolder            string        `yaml:"temp_folder"`
	Attributes            []string      `yaml:"attributes"`
	OriginalNameAttribute string        `yaml:"original_name_attribute"`
	ShardDepth            int           `yaml:"shard_depth"`
	ShardGroupSize        int           `yaml:"shard_group_size"`
	FileMode              uint32        `yaml:"file_mode"`
	TempTTL               time.Duration `yaml:"temp_ttl"`
	SweepInterval         time.Duration `yaml:"sweep_interval"`
}

// Load 从环境变量加载配置，并提供默认值。
func Load() (*Config, error) {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	rateLimitRequests, err := parseIntEnv("RATE_LIMIT_REQUESTS", 60)
	if err != nil {
		return nil, err
	}

	rateLimitWindow, err := parseDurationEnv("RATE_LIMIT_WINDOW", time.Minute)
	if err != nil {
		return nil, err
	}

	maxUploadMB, err := parseIntEnv("MAX_UPLOAD_MB", 100)
	if err != nil {
		return nil, err
	}

	dbPort, err := parseIntEnv("DB_PORT", 5432)
	if err != nil {
		return nil, err
	}

	apiKeys := parseList(os.Getenv("API_KEYS"))
	if len(apiKeys) == 0 {
		// 开发环境默认 key
		apiKeys = []string{"dev-api-key-123456"}
	}

	resources, err := loadResourceConfig()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPPort:          port,
		LogLevel:          envOrDefault("LOG_LEVEL", "info"),
		RateLimitRequests: rateLimitRequests,
		RateLimitWindow:   rateLimitWindow,
		MaxUploadBytes:    int64(maxUploadMB) * 1024 * 1024,
		DBHost:            envOrDefault("DB_HOST", "127.0.0.1"),
		DBPort:            dbPort,
		DBUser:            envOrDefault("DB_USER", "dropkeep"),
		DBPassword:        envOrDefault("DB_PASSWORD", "dropkeep"),
		DBName:            envOrDefault("DB_NAME", "dropkeep"),
		DBSSLMode:         envOrDefault("DB_SSL_MODE", "disable"),
		AuthEnabled:       parseBoolEnv("AUTH_ENABLED", true),
		APIKeys:           apiKeys,
		JWTSecret:         os.Getenv("JWT_SECRET"),
		JWKSURL:           os.Getenv("JWKS_URL"),
		Resources:         resources,
		StorageDriver:     envOrDefault("STORAGE_DRIVER", "local"),
		S3: s3.Config{
			Endpoint:  envOrDefault("S3_ENDPOINT", "localhost:9000"),
			AccessKey: envOrDefault("S3_ACCESS_KEY", "minioadmin"),
			SecretKey: envOrDefault("S3_SECRET_KEY", "minioadmin"),
			Bucket:    envOrDefault("S3_BUCKET", "dropkeep"),
			Region:    envOrDefault("S3_REGION", "us-east-1"),
			UseSSL:    parseBoolEnv("S3_USE_SSL", false),
			PathStyle: parseBoolEnv("S3_PATH_STYLE", true),
		},
	}

	if _, err := cfg.Resource(); err != nil {
		return nil, err
	}

	if cfg.StorageDriver == "local" {
		if err := ensureDir(cfg.Resources.WebRoot); err != nil {
			return nil, fmt.Errorf("确保存储目录失败: %w", err)
		}
	}

	return cfg, nil
}

func loadResourceConfig() (ResourceConfig, error) {
	shardDepth, err := parseIntEnv("SHARD_DEPTH", resource.DefaultShardDepth)
	if err != nil {
		return ResourceConfig{}, err
	}
	shardGroup, err := parseIntEnv("SHARD_GROUP_SIZE", resource.DefaultShardGroupSize)
	if err != nil {
		return ResourceConfig{}, err
	}
	fileMode, err := parseModeEnv("RESOURCE_FILE_MODE", uint32(resource.DefaultFileMode))
	if err != nil {
		return ResourceConfig{}, err
	}
	tempTTL, err := parseDurationEnv("TEMP_TTL", 24*time.Hour)
	if err != nil {
		return ResourceConfig{}, err
	}
	sweepInterval, err := parseDurationEnv("SWEEP_INTERVAL", time.Hour)
	if err != nil {
		return ResourceConfig{}, err
	}

	attributes := parseList(os.Getenv("RESOURCE_ATTRIBUTES"))
	if len(attributes) == 0 {
		attributes = []string{"image"}
	}

	rc := ResourceConfig{
		WebRoot:               envOrDefault("WEB_ROOT", "./data"),
		PublicURL:             os.Getenv("PUBLIC_URL"),
		ResourceFolder:        envOrDefault("RESOURCE_FOLDER", resource.DefaultResourceFolder),
		TempFolder:            envOrDefault("TEMP_FOLDER", resource.DefaultTempFolder),
		Attributes:            attributes,
		OriginalNameAttribute: os.Getenv("ORIGINAL_NAME_ATTRIBUTE"),
		ShardDepth:            shardDepth,
		ShardGroupSize:        shardGroup,
		FileMode:              fileMode,
		TempTTL:               tempTTL,
		SweepInterval:         sweepInterval,
	}

	if file := os.Getenv("RESOURCE_CONFIG"); file != "" {
		if err := rc.mergeFile(file); err != nil {
			return ResourceConfig{}, err
		}
	}

	root, err := filepath.Abs(rc.WebRoot)
	if err != nil {
		return ResourceConfig{}, fmt.Errorf("解析 WEB_ROOT 失败: %w", err)
	}
	rc.WebRoot = root
	return rc, nil
}

// mergeFile 用 YAML 文件中出现的字段覆盖当前值。
func (rc *ResourceConfig) mergeFile(file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("读取 %s 失败: %w", file, err)
	}
	var doc struct {
		Resources ResourceConfig `yaml:"resources"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("解析 %s 失败: %w", file, err)
	}

	o := doc.Resources
	if o.WebRoot != "" {
		rc.WebRoot = o.WebRoot
	}
	if o.PublicURL != "" {
		rc.PublicURL = o.PublicURL
	}
	if o.ResourceFolder != "" {
		rc.ResourceFolder = o.ResourceFolder
	}
	if o.TempFolder != "" {
		rc.TempFolder = o.TempFolder
	}
	if len(o.Attributes) > 0 {
		rc.Attributes = o.Attributes
	}
	if o.OriginalNameAttribute != "" {
		rc.OriginalNameAttribute = o.OriginalNameAttribute
	}
	if o.ShardDepth > 0 {
		rc.ShardDepth = o.ShardDepth
	}
	if o.ShardGroupSize > 0 {
		rc.ShardGroupSize = o.ShardGroupSize
	}
	if o.FileMode > 0 {
		rc.FileMode = o.FileMode
	}
	if o.TempTTL > 0 {
		rc.TempTTL = o.TempTTL
	}
	if o.SweepInterval > 0 {
		rc.SweepInterval = o.SweepInterval
	}
	return nil
}

// Resource 返回校验过的放置引擎配置。
func (c *Config) Resource() (resource.Config, error) {
	rc := resource.Config{
		Root:                  c.Resources.WebRoot,
		ResourceFolder:        c.Resources.ResourceFolder,
		TempFolder:            c.Resources.TempFolder,
		ShardDepth:            c.Resources.ShardDepth,
		ShardGroupSize:        c.Resources.ShardGroupSize,
		FileMode:              os.FileMode(c.Resources.FileMode),
		OriginalNameAttribute: c.Resources.OriginalNameAttribute,
	}.Normalize()
	if err := rc.Validate(); err != nil {
		return resource.Config{}, fmt.Errorf("资源配置无效: %w", err)
	}
	return rc, nil
}

func ensureDir(path string) error {
	info, err := os.Stat(path)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("路径 %s 已存在但不是目录", path)
		}
		return nil
	}

	if os.IsNotExist(err) {
		return os.MkdirAll(path, 0o755)
	}

	return err
}

func parseList(raw string) []string {
	if raw == "" {
		return nil
	}

	items := strings.Split(raw, ",")
	out := make([]string, 0, len(items))
	for _, item := range items {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("解析 %s 失败: %w", key, err)
	}
	if value <= 0 {
		return defaultValue, nil
	}
	return value, nil
}

// parseModeEnv 解析八进制权限位，如 "0775"。
func parseModeEnv(key string, defaultValue uint32) (uint32, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	value, err := strconv.ParseUint(raw, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("解析 %s 失败: %w", key, err)
	}
	if value == 0 || value > 0o777 {
		return defaultValue, nil
	}
	return uint32(value), nil
}

// parseDurationEnv 允许显式设置 "0" 关闭功能。
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}

	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("解析 %s 失败: %w", key, err)
	}
	if value < 0 {
		return defaultValue, nil
	}
	return value, nil
}

func parseBoolEnv(key string, defaultValue bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue
	}
	lower := strings.ToLower(raw)
	return lower == "true" || lower == "1" || lower == "yes"
}

// PostgresDSN 生成标准 postgres:// 连接串，供数据访问层直接使用。
func (c *Config) PostgresDSN() string {
	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.DBUser, c.DBPassword),
		Host:   fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:   c.DBName,
	}

	q := url.Values{}
	if c.DBSSLMode != "" {
		q.Set("sslmode", c.DBSSLMode)
	}
	u.RawQuery = q.Encode()

	return u.String()
}

func envOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
