package resource

import (
	"strings"

	"github.com/google/uuid"
)

// NewIdentifier 生成 32 位小写十六进制的随机标识，用作落盘文件名。
func NewIdentifier() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ShardPath 取标识前 depth*group 个字符，按 group 切分为嵌套目录，末尾带 "/"。
// 标识长度不足时返回 ErrShortIdentifier，而不是生成残缺路径。
func ShardPath(identifier string, depth, group int) (string, error) {
	if depth <= 0 || group <= 0 {
		return "", ErrShortIdentifier
	}

	cleaned := strings.NewReplacer("/", "", "\\", "").Replace(identifier)
	need := depth * group
	if len(cleaned) < need {
		return "", ErrShortIdentifier
	}

	var b strings.Builder
	b.Grow(need + depth)
	for i := 0; i < need; i += group {
		b.WriteString(cleaned[i : i+group])
		b.WriteByte('/')
	}
	return b.String(), nil
}
