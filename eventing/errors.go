package eventing

import (
	stdErrors "errors"
	"fmt"

	"github.com/google/uuid"

	"wenjuan/errors"
)

// ConcurrencyError 乐观锁版本冲突
//
// 追加事件时 expectedVersion 与存储中当前版本不一致。调用方应重新
// 加载聚合后重试命令；本错误不代表任何部分写入（追加是原子的）。
type ConcurrencyError struct {
	AggregateID     uuid.UUID
	ExpectedVersion uint64
	ActualVersion   uint64
}

func NewConcurrencyError(aggregateID uuid.UUID, expected, actual uint64) *ConcurrencyError {
	return &ConcurrencyError{AggregateID: aggregateID, ExpectedVersion: expected, ActualVersion: actual}
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("[%s] 聚合 %s 版本冲突: 期望 %d, 实际 %d",
		errors.ErrCodeConcurrency, e.AggregateID, e.ExpectedVersion, e.ActualVersion)
}

// IsConcurrencyError 判断是否为版本冲突
func IsConcurrencyError(err error) bool {
	var ce *ConcurrencyError
	return stdErrors.As(err, &ce)
}

// UnknownEventTypeError 重放时遇到无法解析的事件标签
//
// 这是致命的配置错误：跳过事件会使状态与历史脱节，重放必须停止。
type UnknownEventTypeError struct {
	EventType string
}

func NewUnknownEventTypeError(eventType string) *UnknownEventTypeError {
	return &UnknownEventTypeError{EventType: eventType}
}

func (e *UnknownEventTypeError) Error() string {
	return fmt.Sprintf("[%s] 未注册的事件类型: %s（请检查事件注册表与别名映射）",
		errors.ErrCodeSerialization, e.EventType)
}

// NewSerializationError 创建序列化错误
func NewSerializationError(eventType string, cause error) error {
	return errors.WrapError(errors.ErrCodeSerialization,
		fmt.Sprintf("事件 %s 序列化失败", eventType), cause)
}

// NewStoreFailedError 创建存储失败错误
func NewStoreFailedError(message string, cause error) error {
	return errors.WrapError(errors.ErrCodeDatabase, message, cause)
}

// NewInvalidEventError 创建非法事件错误
func NewInvalidEventError(eventID, eventType, reason string) error {
	return errors.NewError(errors.ErrCodeInvalidInput,
		fmt.Sprintf("事件 %s(%s) 非法: %s", eventType, eventID, reason))
}
