package translation

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// 预定义错误
var (
	// ErrEmptyText 空文本错误
	ErrEmptyText = errors.New("empty text provided")

	// ErrInvalidConfig 无效配置
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNoTranslator 没有可用的翻译器
	ErrNoTranslator = errors.New("no translator configured")

	// ErrNoChange 译文为空或与原文相同
	ErrNoChange = errors.New("translation returned empty or unchanged text")

	// ErrTimeout 超时错误
	ErrTimeout = errors.New("translation timeout")

	// ErrRateLimited 速率限制错误
	ErrRateLimited = errors.New("rate limited")
)

// TranslationError 翻译错误
type TranslationError struct {
	Code    string // 错误代码
	Message string // 错误消息
	Cause   error  // 原因
	Retry   bool   // 是否可重试
}

// Error 实现error接口
func (e *TranslationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 返回原因错误
func (e *TranslationError) Unwrap() error {
	return e.Cause
}

// IsRetryable 是否可重试
func (e *TranslationError) IsRetryable() bool {
	return e.Retry
}

// NewTranslationError 创建翻译错误
func NewTranslationError(code, message string, cause error) *TranslationError {
	return &TranslationError{
		Code:    code,
		Message: message,
		Cause:   cause,
		Retry:   false,
	}
}

// NewRetryableError 创建可重试错误
func NewRetryableError(code, message string, cause error) *TranslationError {
	return &TranslationError{
		Code:    code,
		Message: message,
		Cause:   cause,
		Retry:   true,
	}
}

// 错误代码
const (
	ErrCodeConfig    = "CONFIG_ERROR"
	ErrCodeProvider  = "PROVIDER_ERROR"
	ErrCodeNetwork   = "NETWORK_ERROR"
	ErrCodeTimeout   = "TIMEOUT_ERROR"
	ErrCodeRateLimit = "RATE_LIMIT_ERROR"
	ErrCodeUnknown   = "UNKNOWN_ERROR"
)

// WrapError 包装错误
func WrapError(err error, code, message string) *TranslationError {
	if err == nil {
		return nil
	}

	// 如果已经是TranslationError，保留原有信息
	var te *TranslationError
	if errors.As(err, &te) {
		return &TranslationError{
			Code:    te.Code,
			Message: message + ": " + te.Message,
			Cause:   te.Cause,
			Retry:   te.Retry,
		}
	}

	return &TranslationError{
		Code:    code,
		Message: message,
		Cause:   err,
		Retry:   IsRetryable(err),
	}
}

// IsRetryable 判断错误是否可重试
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var te *TranslationError
	if errors.As(err, &te) {
		return te.Retry
	}

	switch {
	case errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, ErrTimeout),
		errors.Is(err, ErrRateLimited),
		errors.Is(err, context.DeadlineExceeded):
		return true
	}

	// 检查是否包含特定的错误信息
	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"timeout",
		"deadline exceeded",
		"connection refused",
		"temporary failure",
		"rate limit",
		"429",
		"503",
		"504",
		"connection reset",
		"broken pipe",
		"no such host",
		"network is unreachable",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}
