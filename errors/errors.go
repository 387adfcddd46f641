// Package errors 提供统一的错误类型与错误代码
//
// 核心错误分类（按问卷域语义）：
//   - STATE_TRANSITION_ERROR：非法生命周期流转或状态外的变更
//   - CONCURRENCY_ERROR：事件存储乐观锁版本冲突（可重试）
//   - VALIDATION_ERROR：提交校验失败（携带按题目分组的错误明细）
//   - DUPLICATE_SUBMISSION：重复提交被防重策略拒绝
//   - QUESTIONNAIRE_CLOSED：问卷未开放（状态/时间窗口/数量上限）
//   - SERIALIZATION_ERROR：事件序列化/反序列化失败（重放时视为致命）
package errors

import (
	stdErrors "errors"
	"fmt"
)

// ErrorCode 错误代码类型
type ErrorCode string

// 预定义错误代码
const (
	// 通用错误代码
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeConflict     ErrorCode = "CONFLICT"

	// 业务错误代码
	ErrCodeStateTransition     ErrorCode = "STATE_TRANSITION_ERROR"
	ErrCodeValidation          ErrorCode = "VALIDATION_ERROR"
	ErrCodeDuplicateSubmission ErrorCode = "DUPLICATE_SUBMISSION"
	ErrCodeQuestionnaireClosed ErrorCode = "QUESTIONNAIRE_CLOSED"
	ErrCodeConcurrency         ErrorCode = "CONCURRENCY_ERROR"

	// 基础设施错误代码
	ErrCodeDatabase      ErrorCode = "DATABASE_ERROR"
	ErrCodeSerialization ErrorCode = "SERIALIZATION_ERROR"
	ErrCodeMessaging     ErrorCode = "MESSAGING_ERROR"
)

// Error 统一错误实现
type Error struct {
	code    ErrorCode
	message string
	cause   error
	details map[string]any
}

// NewError 创建错误
func NewError(code ErrorCode, message string) *Error {
	return &Error{code: code, message: message}
}

// WrapError 包装底层错误
func WrapError(code ErrorCode, message string, cause error) *Error {
	return &Error{code: code, message: message, cause: cause}
}

// Code 获取错误代码
func (e *Error) Code() ErrorCode { return e.code }

// Message 获取错误消息
func (e *Error) Message() string { return e.message }

// Cause 获取原始错误
func (e *Error) Cause() error { return e.cause }

// Details 获取错误详情
func (e *Error) Details() map[string]any { return e.details }

// WithDetail 附加错误详情，返回原错误便于链式调用
func (e *Error) WithDetail(key string, value any) *Error {
	if e.details == nil {
		e.details = make(map[string]any)
	}
	e.details[key] = value
	return e
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.code, e.message)
}

// Unwrap 支持 errors.Is / errors.As 链
func (e *Error) Unwrap() error { return e.cause }

// Is 按错误代码比较
func (e *Error) Is(target error) bool {
	var t *Error
	if stdErrors.As(target, &t) {
		return e.code == t.code
	}
	return false
}

// 便捷构造函数

// NewStateTransitionError 创建状态流转错误
func NewStateTransitionError(message string) *Error {
	return NewError(ErrCodeStateTransition, message)
}

// NewValidationError 创建校验错误
func NewValidationError(message string) *Error {
	return NewError(ErrCodeValidation, message)
}

// NewDuplicateSubmissionError 创建重复提交错误
func NewDuplicateSubmissionError(reason string) *Error {
	return NewError(ErrCodeDuplicateSubmission, reason)
}

// NewQuestionnaireClosedError 创建问卷未开放错误
func NewQuestionnaireClosedError(reason string) *Error {
	return NewError(ErrCodeQuestionnaireClosed, reason)
}

// NewNotFoundError 创建资源不存在错误
func NewNotFoundError(message string) *Error {
	return NewError(ErrCodeNotFound, message)
}

// NewInvalidInputError 创建无效输入错误
func NewInvalidInputError(message string) *Error {
	return NewError(ErrCodeInvalidInput, message)
}

// IsCode 判断错误（或其包装链）是否携带指定错误代码
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if stdErrors.As(err, &e) {
		return e.code == code
	}
	return false
}

// CodeOf 提取错误代码，非本包错误返回 ErrCodeInternal
func CodeOf(err error) ErrorCode {
	var e *Error
	if stdErrors.As(err, &e) {
		return e.code
	}
	return ErrCodeInternal
}
