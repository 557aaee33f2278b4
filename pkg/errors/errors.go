package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode 错误码类型
type ErrorCode string

const (
	CodeInvalidInput   ErrorCode = "INVALID_INPUT"
	CodeNotFound       ErrorCode = "NOT_FOUND"
	CodeInternal       ErrorCode = "INTERNAL_ERROR"
	CodeServiceUnavail ErrorCode = "SERVICE_UNAVAILABLE"

	// 订单/回复流水线
	CodeMissingCustomerInfo    ErrorCode = "MISSING_CUSTOMER_INFO"
	CodeProductNotFound        ErrorCode = "PRODUCT_NOT_FOUND"
	CodeOutOfStock             ErrorCode = "OUT_OF_STOCK"
	CodeOrderPersistenceFailed ErrorCode = "ORDER_PERSISTENCE_FAILED"
	CodeGenerationFailed       ErrorCode = "GENERATION_FAILED"
	CodeDeliveryFailed         ErrorCode = "DELIVERY_FAILED"
)

// AppError 应用错误
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
	// Fields names the missing inputs for CodeMissingCustomerInfo.
	Fields []string
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	msg := e.Message
	if len(e.Fields) > 0 {
		msg = fmt.Sprintf("%s (%s)", msg, strings.Join(e.Fields, ", "))
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, msg, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, msg)
}

// Unwrap 实现 errors.Unwrap
func (e *AppError) Unwrap() error {
	return e.Err
}

// New 创建指定错误码的错误
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap 创建带原因的错误
func Wrap(code ErrorCode, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Err: cause}
}

// NewInvalidInputError 创建无效输入错误
func NewInvalidInputError(message string) *AppError {
	return New(CodeInvalidInput, message)
}

// NewNotFoundError 创建未找到错误
func NewNotFoundError(message string) *AppError {
	return New(CodeNotFound, message)
}

// NewInternalError 创建内部错误
func NewInternalError(message string) *AppError {
	return New(CodeInternal, message)
}

// NewInternalErrorWithCause 创建带原因的内部错误
func NewInternalErrorWithCause(message string, cause error) *AppError {
	return Wrap(CodeInternal, message, cause)
}

// NewMissingCustomerInfoError lists the customer fields an order still needs.
func NewMissingCustomerInfoError(fields ...string) *AppError {
	return &AppError{
		Code:    CodeMissingCustomerInfo,
		Message: "customer information incomplete",
		Fields:  fields,
	}
}

// NewProductNotFoundError 商品不存在
func NewProductNotFoundError(name string) *AppError {
	return New(CodeProductNotFound, fmt.Sprintf("product %q not found", name))
}

// NewOutOfStockError 库存不足
func NewOutOfStockError(name string, requested int) *AppError {
	return New(CodeOutOfStock, fmt.Sprintf("insufficient stock for %q (requested %d)", name, requested))
}

// NewOrderPersistenceError 订单写入失败
func NewOrderPersistenceError(cause error) *AppError {
	return Wrap(CodeOrderPersistenceFailed, "failed to persist order", cause)
}

// CodeOf returns the code of the first AppError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// Is 判断错误链中是否包含指定错误码
func Is(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// IsNotFound 判断是否为未找到错误
func IsNotFound(err error) bool {
	return Is(err, CodeNotFound)
}

// IsInvalidInput 判断是否为无效输入错误
func IsInvalidInput(err error) bool {
	return Is(err, CodeInvalidInput)
}

// MissingFields returns the missing field names carried by a MISSING_CUSTOMER_INFO error.
func MissingFields(err error) []string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Code == CodeMissingCustomerInfo {
		return appErr.Fields
	}
	return nil
}
