package retry

import (
	"context"
	"errors"
	"io"
	"math"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"
)

// RetryConfig 重试配置
type RetryConfig struct {
	// 最大重试次数
	MaxRetries int `json:"max_retries"`

	// 初始延迟时间
	InitialDelay time.Duration `json:"initial_delay"`

	// 最大延迟时间
	MaxDelay time.Duration `json:"max_delay"`

	// 退避因子（指数退避）
	BackoffFactor float64 `json:"backoff_factor"`
}

// DefaultRetryConfig 返回默认重试配置
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    1,
		InitialDelay:  300 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
	}
}

// ErrorType 错误类型枚举
type ErrorType int

const (
	ErrorTypeNone          ErrorType = iota
	ErrorTypeNetwork                 // 网络瞬时错误
	ErrorTypeRetryableHTTP           // 可重试的HTTP错误
	ErrorTypeClientError             // 客户端错误（4xx）
	ErrorTypeServerError             // 服务端错误（5xx）
	ErrorTypePermanent               // 永久性错误
)

// NetworkRetrier 网络重试器
type NetworkRetrier struct {
	config RetryConfig
}

// NewNetworkRetrier 创建网络重试器
func NewNetworkRetrier(config RetryConfig) *NetworkRetrier {
	return &NetworkRetrier{
		config: config,
	}
}

// RetryableFunc 可重试的函数类型
type RetryableFunc func() (*http.Response, error)

// ExecuteWithRetry 执行带重试的函数
// 非 2xx 的最终响应原样返回，由调用方解析错误内容
func (nr *NetworkRetrier) ExecuteWithRetry(ctx context.Context, fn RetryableFunc) (*http.Response, error) {
	var lastErr error
	var lastResp *http.Response

	for attempt := 0; attempt <= nr.config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			closeBody(lastResp)
			return nil, err
		}

		resp, err := fn()
		if err == nil && resp != nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
			closeBody(lastResp)
			return resp, nil
		}

		closeBody(lastResp)
		lastErr, lastResp = err, resp

		if !nr.shouldRetry(nr.classifyError(err, resp)) || attempt == nr.config.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			closeBody(lastResp)
			return nil, ctx.Err()
		case <-time.After(nr.calculateDelay(attempt)):
		}
	}

	if lastErr != nil {
		closeBody(lastResp)
		return nil, lastErr
	}
	if lastResp != nil {
		return lastResp, nil
	}
	return nil, errors.New("no response received")
}

// classifyError 分类错误
func (nr *NetworkRetrier) classifyError(err error, resp *http.Response) ErrorType {
	if err != nil {
		if IsNetworkError(err) {
			return ErrorTypeNetwork
		}
		return ErrorTypePermanent
	}

	if resp != nil {
		switch {
		case resp.StatusCode >= 500:
			return ErrorTypeServerError
		case resp.StatusCode == http.StatusTooManyRequests:
			return ErrorTypeRetryableHTTP
		case resp.StatusCode >= 400:
			return ErrorTypeClientError
		}
	}

	return ErrorTypeNone
}

// IsNetworkError 判断是否为网络错误
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && IsNetworkError(urlErr.Err) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection refused",
		"connection reset",
		"timeout",
		"temporary failure",
		"network is unreachable",
		"no such host",
		"broken pipe",
		"eof",
	} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// shouldRetry 判断是否应该重试
func (nr *NetworkRetrier) shouldRetry(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeServerError, ErrorTypeRetryableHTTP:
		return true
	default:
		return false
	}
}

// calculateDelay 计算延迟时间
func (nr *NetworkRetrier) calculateDelay(attempt int) time.Duration {
	delay := nr.config.InitialDelay

	// 指数退避
	if attempt > 0 {
		backoffFactor := nr.config.BackoffFactor
		if backoffFactor <= 1.0 {
			backoffFactor = 2.0
		}
		delay = time.Duration(float64(delay) * math.Pow(backoffFactor, float64(attempt)))
	}

	if nr.config.MaxDelay > 0 && delay > nr.config.MaxDelay {
		delay = nr.config.MaxDelay
	}
	return delay
}

func closeBody(resp *http.Response) {
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
}

// WrapHTTPClient 包装HTTP客户端，添加重试功能
func (nr *NetworkRetrier) WrapHTTPClient(client *http.Client) *RetryableHTTPClient {
	return &RetryableHTTPClient{
		client:  client,
		retrier: nr,
	}
}

// RetryableHTTPClient 可重试的HTTP客户端
type RetryableHTTPClient struct {
	client  *http.Client
	retrier *NetworkRetrier
}

// Do 执行HTTP请求（带重试）
func (rc *RetryableHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return rc.retrier.ExecuteWithRetry(req.Context(), func() (*http.Response, error) {
		clonedReq := req.Clone(req.Context())
		// 每次重试重新获取请求体
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			clonedReq.Body = body
		}
		return rc.client.Do(clonedReq)
	})
}
