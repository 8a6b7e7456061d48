package errors

import (
	"errors"
	"fmt"
)

// ErrorCode 错误码类型
type ErrorCode string

const (
	CodeInvalidInput      ErrorCode = "INVALID_INPUT"
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeAlreadyExists     ErrorCode = "ALREADY_EXISTS"
	CodeConflict          ErrorCode = "CONFLICT"
	CodeDecryption        ErrorCode = "DECRYPTION_FAILED"
	CodeTransactionFailed ErrorCode = "TRANSACTION_FAILED"
	CodeInternal          ErrorCode = "INTERNAL_ERROR"
)

// AppError 应用错误
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 实现 errors.Unwrap
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewInvalidInputError 创建无效输入错误
func NewInvalidInputError(message string) *AppError {
	return &AppError{
		Code:    CodeInvalidInput,
		Message: message,
	}
}

// NewInvalidInputErrorWithCause 创建带原因的无效输入错误
func NewInvalidInputErrorWithCause(message string, cause error) *AppError {
	return &AppError{
		Code:    CodeInvalidInput,
		Message: message,
		Err:     cause,
	}
}

// NewNotFoundError 创建未找到错误
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: message,
	}
}

// NewAlreadyExistsError 创建已存在错误（唯一约束冲突）
func NewAlreadyExistsError(message string) *AppError {
	return &AppError{
		Code:    CodeAlreadyExists,
		Message: message,
	}
}

// NewConflictError 创建并发修改冲突错误
func NewConflictError(message string) *AppError {
	return &AppError{
		Code:    CodeConflict,
		Message: message,
	}
}

// NewDecryptionError 创建解密失败错误
func NewDecryptionError(message string, cause error) *AppError {
	return &AppError{
		Code:    CodeDecryption,
		Message: message,
		Err:     cause,
	}
}

// NewTransactionError 创建事务失败错误
func NewTransactionError(message string, cause error) *AppError {
	return &AppError{
		Code:    CodeTransactionFailed,
		Message: message,
		Err:     cause,
	}
}

// NewInternalError 创建内部错误
func NewInternalError(message string) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: message,
	}
}

// NewInternalErrorWithCause 创建带原因的内部错误
func NewInternalErrorWithCause(message string, cause error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: message,
		Err:     cause,
	}
}

// CodeOf 返回错误链中第一个 AppError 的错误码，非 AppError 返回空串
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsNotFound 判断是否为未找到错误
func IsNotFound(err error) bool {
	return CodeOf(err) == CodeNotFound
}

// IsInvalidInput 判断是否为无效输入错误
func IsInvalidInput(err error) bool {
	return CodeOf(err) == CodeInvalidInput
}

// IsAlreadyExists 判断是否为唯一约束冲突
func IsAlreadyExists(err error) bool {
	return CodeOf(err) == CodeAlreadyExists
}

// IsConflict 判断是否为并发修改冲突
func IsConflict(err error) bool {
	return CodeOf(err) == CodeConflict
}

// IsDecryption 判断是否为解密失败
func IsDecryption(err error) bool {
	return CodeOf(err) == CodeDecryption
}

// IsTransactionFailure 判断是否为事务失败
func IsTransactionFailure(err error) bool {
	return CodeOf(err) == CodeTransactionFailed
}
