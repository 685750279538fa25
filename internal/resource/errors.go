package resource

import (
	"errors"
	"fmt"
)

// 错误类别哨兵，配合 errors.Is 使用。
var (
	ErrSave             = errors.New("resource: save failed")
	ErrExistence        = errors.New("resource: file does not exist")
	ErrMove             = errors.New("resource: move to temp failed")
	ErrUnknownAttribute = errors.New("resource: unknown attribute")
	ErrPendingUpload    = errors.New("resource: upload not staged yet")
	ErrShortIdentifier  = errors.New("resource: identifier too short for shard path")
	ErrInvalidReference = errors.New("resource: invalid reference")
)

// SaveError 表示写入或复制文件到目标位置失败。
type SaveError struct {
	Path string
	Err  error
}

func (e *SaveError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cant save resource %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("cant save resource %s", e.Path)
}

func (e *SaveError) Unwrap() error { return e.Err }

func (e *SaveError) Is(target error) bool { return target == ErrSave }

// ExistenceError 表示记录引用的文件在磁盘上不存在。
type ExistenceError struct {
	Path string
	Err  error
}

func (e *ExistenceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resource %s not exists: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("resource %s not exists", e.Path)
}

func (e *ExistenceError) Unwrap() error { return e.Err }

func (e *ExistenceError) Is(target error) bool { return target == ErrExistence }

// MoveError 表示将资源移回临时目录时失败。
type MoveError struct {
	Path string
	Err  error
}

func (e *MoveError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cant move resource %s to temp: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("cant move resource %s to temp", e.Path)
}

func (e *MoveError) Unwrap() error { return e.Err }

func (e *MoveError) Is(target error) bool { return target == ErrMove }

// UnknownAttributeError 表示查询了未配置的属性，属于配置错误，不会被 Binding 吞掉。
type UnknownAttributeError struct {
	Attribute string
}

func (e *UnknownAttributeError) Error() string {
	return fmt.Sprintf("resource: attribute %q is not configured", e.Attribute)
}

func (e *UnknownAttributeError) Is(target error) bool { return target == ErrUnknownAttribute }
