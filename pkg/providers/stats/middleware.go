package stats

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nerdneilsfield/mail-translator/pkg/providers"
	"github.com/nerdneilsfield/mail-translator/pkg/translation"
)

// StatisticsMiddleware 统计中间件
type StatisticsMiddleware struct {
	next         translation.Translator
	statsManager *StatsManager
}

// NewStatisticsMiddleware 创建统计中间件
func NewStatisticsMiddleware(next translation.Translator, statsManager *StatsManager) *StatisticsMiddleware {
	return &StatisticsMiddleware{
		next:         next,
		statsManager: statsManager,
	}
}

// Translate 带统计的翻译方法
func (sm *StatisticsMiddleware) Translate(ctx context.Context, text, source, target string) (string, error) {
	startTime := time.Now()

	resp, err := sm.next.Translate(ctx, text, source, target)

	result := RequestResult{
		Success:          err == nil,
		Latency:          time.Since(startTime),
		CharactersIn:     utf8.RuneCountInString(text),
		PlaceholdersSent: countPlaceholders(text),
	}
	if err != nil {
		result.ErrorType = classifyError(err)
	} else {
		result.CharactersOut = utf8.RuneCountInString(resp)
		result.Unchanged = strings.TrimSpace(resp) == strings.TrimSpace(text)
		if lost := result.PlaceholdersSent - countPlaceholders(resp); lost > 0 {
			result.PlaceholdersLost = lost
		}
	}

	sm.statsManager.RecordRequest(sm.next.GetName(), result)
	return resp, err
}

// GetName 返回被包装服务的名称
func (sm *StatisticsMiddleware) GetName() string {
	return sm.next.GetName()
}

// Unwrap 返回被包装的服务
func (sm *StatisticsMiddleware) Unwrap() translation.Translator {
	return sm.next
}

// countPlaceholders 统计不重复的占位符数量
func countPlaceholders(text string) int {
	links, images := translation.ScanPlaceholders(text)
	return len(links) + len(images)
}

// classifyError 分类错误类型
func classifyError(err error) string {
	var providerErr *providers.Error
	if errors.As(err, &providerErr) {
		return providerErr.Code
	}

	switch {
	case errors.Is(err, context.Canceled):
		return "context_canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return providers.ErrCodeTimeout
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "timeout"):
		return providers.ErrCodeTimeout
	case strings.Contains(errStr, "rate limit") || strings.Contains(errStr, "429"):
		return providers.ErrCodeRateLimit
	case strings.Contains(errStr, "connection") || strings.Contains(errStr, "network"):
		return "network_error"
	case strings.Contains(errStr, "401") || strings.Contains(errStr, "unauthorized"):
		return providers.ErrCodeAuth
	case strings.Contains(errStr, "quota"):
		return providers.ErrCodeQuota
	default:
		return providers.ErrCodeUnknown
	}
}
