package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nerdneilsfield/mail-translator/pkg/providers/retry"
	"github.com/nerdneilsfield/mail-translator/pkg/translation"
)

// BaseConfig 基础配置
type BaseConfig struct {
	// API配置
	APIKey      string `json:"api_key,omitempty"`
	APIEndpoint string `json:"api_endpoint,omitempty"`

	// 超时和重试
	Timeout    time.Duration `json:"timeout"`
	MaxRetries int           `json:"max_retries"`
	RetryDelay time.Duration `json:"retry_delay"`

	// 自定义头部
	Headers map[string]string `json:"headers,omitempty"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() BaseConfig {
	return BaseConfig{
		Timeout:    30 * time.Second,
		MaxRetries: 1,
		RetryDelay: 300 * time.Millisecond,
		Headers:    make(map[string]string),
	}
}

// Provider 翻译提供商接口
type Provider interface {
	translation.Translator

	// GetCapabilities 获取提供商能力
	GetCapabilities() Capabilities

	// HealthCheck 健康检查
	HealthCheck(ctx context.Context) error
}

// Capabilities 提供商能力
type Capabilities struct {
	// 最大文本长度
	MaxTextLength int `json:"max_text_length"`

	// 是否需要API密钥
	RequiresAPIKey bool `json:"requires_api_key"`

	// 是否支持语言识别
	SupportsDetection bool `json:"supports_detection"`
}

// 错误代码
const (
	ErrCodeAuth        = "auth"
	ErrCodeQuota       = "quota"
	ErrCodeRateLimit   = "rate_limit"
	ErrCodeBadRequest  = "bad_request"
	ErrCodeServerError = "server_error"
	ErrCodeTimeout     = "timeout"
	ErrCodeEmpty       = "empty_response"
	ErrCodeUnknown     = "unknown"
)

// Error 提供商错误
type Error struct {
	Provider   string `json:"provider"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code,omitempty"`
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: %s (HTTP %d)", e.Provider, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// IsRetryable 判断错误是否可重试
func (e *Error) IsRetryable() bool {
	switch e.Code {
	case ErrCodeRateLimit, ErrCodeTimeout, ErrCodeServerError:
		return true
	default:
		return false
	}
}

// NewError 创建提供商错误
func NewError(provider, code, message string) *Error {
	return &Error{
		Provider: provider,
		Code:     code,
		Message:  message,
	}
}

// StatusError 根据HTTP状态码和响应内容创建错误
func StatusError(provider string, statusCode int, message string) *Error {
	code := ErrCodeUnknown
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		code = ErrCodeAuth
	case statusCode == http.StatusTooManyRequests:
		code = ErrCodeRateLimit
	case statusCode == 456:
		code = ErrCodeQuota
	case statusCode >= 500:
		code = ErrCodeServerError
	case statusCode >= 400:
		code = ErrCodeBadRequest
	}

	message = strings.TrimSpace(message)
	if message == "" {
		message = http.StatusText(statusCode)
	}

	return &Error{
		Provider:   provider,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// NewHTTPClient 按配置创建带重试的HTTP客户端
func NewHTTPClient(config BaseConfig) *retry.RetryableHTTPClient {
	retryConfig := retry.DefaultRetryConfig()
	retryConfig.MaxRetries = config.MaxRetries
	if config.RetryDelay > 0 {
		retryConfig.InitialDelay = config.RetryDelay
	}

	return retry.NewNetworkRetrier(retryConfig).WrapHTTPClient(&http.Client{
		Timeout: config.Timeout,
	})
}

// ReadBody 读取响应体，限制最大长度
func ReadBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(io.LimitReader(resp.Body, 10<<20))
}

// ApplyHeaders 设置自定义头部
func ApplyHeaders(req *http.Request, headers map[string]string) {
	for k, v := range headers {
		req.Header.Set(k, v)
	}
}
