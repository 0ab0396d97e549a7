package matching

import (
	"errors"
	"fmt"
	"math"
)

// 错误类别，处理层据此映射为 400/404/500
var (
	ErrValidation  = errors.New("参数校验失败")
	ErrNotFound    = errors.New("资源不存在")
	ErrComputation = errors.New("计算失败")
)

// MatchError 携带操作名与错误类别的自定义错误
type MatchError struct {
	Op      string
	Kind    error
	Detail  string
	BaseErr error
}

func (e *MatchError) Error() string {
	msg := fmt.Sprintf("%s (操作:%s)", e.Kind, e.Op)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.BaseErr != nil {
		msg += ": " + e.BaseErr.Error()
	}
	return msg
}

func (e *MatchError) Unwrap() error {
	return e.BaseErr
}

// Is 实现 errors.Is 接口，既匹配类别也匹配底层错误
func (e *MatchError) Is(target error) bool {
	return target == e.Kind
}

// NewValidationError 输入不合法
func NewValidationError(op, detail string) error {
	return &MatchError{Op: op, Kind: ErrValidation, Detail: detail}
}

// NewNotFoundError 引用的岗位/简历/匹配集不存在
func NewNotFoundError(op, detail string) error {
	return &MatchError{Op: op, Kind: ErrNotFound, Detail: detail}
}

// NewComputationError 向量化后端不可用或输出异常
func NewComputationError(op string, err error) error {
	return &MatchError{Op: op, Kind: ErrComputation, BaseErr: err}
}

// roundScore 四舍五入（远离零）为整数分
func roundScore(v float64) int {
	return int(math.Round(v))
}

// ToPercent 把 [0,1] 相似度换算成整数百分制
func ToPercent(similarity float64) int {
	return roundScore(similarity * 100)
}
