package processor

import (
	"errors"
	"fmt"
)

// 定义基础错误类型
var (
	ErrVectorSearchUnavailable = errors.New("向量检索未配置")
	ErrObjectStoreFailed       = errors.New("对象存储操作失败")
	ErrVectorIndexFailed       = errors.New("向量索引操作失败")
	ErrCacheFailed             = errors.New("缓存操作失败")
)

// ResumeProcessError 外部存储的副作用失败。MySQL 是唯一事实来源，
// 这类错误只记录日志，不让请求失败。
type ResumeProcessError struct {
	ResumeID string
	Op       string
	BaseErr  error
	Detail   string
}

func (e *ResumeProcessError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (操作:%s, ID:%s): %s", e.BaseErr, e.Op, e.ResumeID, e.Detail)
	}
	return fmt.Sprintf("%s (操作:%s, ID:%s)", e.BaseErr, e.Op, e.ResumeID)
}

func (e *ResumeProcessError) Unwrap() error {
	return e.BaseErr
}

// Is 实现 errors.Is 接口以支持错误比较
func (e *ResumeProcessError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

func NewObjectStoreError(id, op string, err error) error {
	return &ResumeProcessError{ResumeID: id, Op: op, BaseErr: ErrObjectStoreFailed, Detail: err.Error()}
}

func NewVectorIndexError(id, op string, err error) error {
	return &ResumeProcessError{ResumeID: id, Op: op, BaseErr: ErrVectorIndexFailed, Detail: err.Error()}
}

func NewCacheError(id, op string, err error) error {
	return &ResumeProcessError{ResumeID: id, Op: op, BaseErr: ErrCacheFailed, Detail: err.Error()}
}
