package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/nerdneilsfield/mail-translator/pkg/providers"
	"github.com/nerdneilsfield/mail-translator/pkg/providers/retry"
)

const (
	// FreeEndpoint 免费网页接口
	FreeEndpoint = "https://translate.googleapis.com/translate_a/single"
	// CloudEndpoint Cloud Translation v2 接口
	CloudEndpoint = "https://translation.googleapis.com/language/translate/v2"

	// 语言识别只取开头一段文本
	detectSampleRunes = 500
)

// Config Google Translate配置
type Config struct {
	providers.BaseConfig
	// Free 为 true 时使用免费网页接口，无需密钥
	Free bool `json:"free"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	config := Config{
		BaseConfig: providers.DefaultConfig(),
		Free:       true,
	}
	config.APIEndpoint = FreeEndpoint
	return config
}

// Provider Google Translate提供商
type Provider struct {
	config     Config
	httpClient *retry.RetryableHTTPClient
}

// New 创建新的Google Translate提供商
func New(config Config) *Provider {
	if config.APIEndpoint == "" {
		if config.Free {
			config.APIEndpoint = FreeEndpoint
		} else {
			config.APIEndpoint = CloudEndpoint
		}
	}

	return &Provider{
		config:     config,
		httpClient: providers.NewHTTPClient(config.BaseConfig),
	}
}

// GetName 获取提供商名称
func (p *Provider) GetName() string {
	if p.config.Free {
		return "google_free"
	}
	return "google"
}

// GetCapabilities 获取提供商能力
func (p *Provider) GetCapabilities() providers.Capabilities {
	return providers.Capabilities{
		MaxTextLength:     5000,
		RequiresAPIKey:    !p.config.Free,
		SupportsDetection: true,
	}
}

// Translate 执行翻译
func (p *Provider) Translate(ctx context.Context, text, source, target string) (string, error) {
	if p.config.Free {
		resp, err := p.freeTranslate(ctx, text, source, target)
		if err != nil {
			return "", err
		}
		return resp.Text, nil
	}

	params := url.Values{}
	params.Set("q", text)
	params.Set("target", normalizeLanguageCode(target))
	params.Set("format", "text")
	if source != "" && source != "auto" {
		params.Set("source", normalizeLanguageCode(source))
	}

	var resp TranslateResponse
	if err := p.cloudCall(ctx, p.config.APIEndpoint, params, &resp); err != nil {
		return "", err
	}
	if len(resp.Data.Translations) == 0 {
		return "", providers.NewError(p.GetName(), providers.ErrCodeEmpty, "no translation returned")
	}
	return resp.Data.Translations[0].TranslatedText, nil
}

// Detect 识别文本语言
func (p *Provider) Detect(ctx context.Context, text string) (string, float64, error) {
	sample := []rune(text)
	if len(sample) > detectSampleRunes {
		sample = sample[:detectSampleRunes]
	}

	if p.config.Free {
		resp, err := p.freeTranslate(ctx, string(sample), "auto", "en")
		if err != nil {
			return "", 0, err
		}
		return resp.DetectedLanguage, resp.Confidence, nil
	}

	params := url.Values{}
	params.Set("q", string(sample))

	var resp DetectResponse
	endpoint := strings.TrimSuffix(p.config.APIEndpoint, "/") + "/detect"
	if err := p.cloudCall(ctx, endpoint, params, &resp); err != nil {
		return "", 0, err
	}
	if len(resp.Data.Detections) == 0 || len(resp.Data.Detections[0]) == 0 {
		return "", 0, providers.NewError(p.GetName(), providers.ErrCodeEmpty, "no detection returned")
	}
	d := resp.Data.Detections[0][0]
	return d.Language, d.Confidence, nil
}

// HealthCheck 健康检查
func (p *Provider) HealthCheck(ctx context.Context) error {
	_, err := p.Translate(ctx, "hello", "en", "zh-TW")
	return err
}

// freeResult 免费接口的解析结果
type freeResult struct {
	Text             string
	DetectedLanguage string
	Confidence       float64
}

// freeTranslate 调用免费网页接口
func (p *Provider) freeTranslate(ctx context.Context, text, source, target string) (*freeResult, error) {
	if source == "" {
		source = "auto"
	}

	query := url.Values{}
	query.Set("client", "gtx")
	query.Set("sl", normalizeLanguageCode(source))
	query.Set("tl", normalizeLanguageCode(target))
	query.Set("dt", "t")

	form := url.Values{}
	form.Set("q", text)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.config.APIEndpoint+"?"+query.Encode(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	providers.ApplyHeaders(httpReq, p.config.Headers)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	body, err := providers.ReadBody(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, providers.StatusError(p.GetName(), resp.StatusCode, string(body))
	}

	return parseFreeResponse(body)
}

// parseFreeResponse 解析形如 [[["译文","原文",...],...],null,"en",...] 的响应
func parseFreeResponse(body []byte) (*freeResult, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(raw) == 0 {
		return nil, providers.NewError("google_free", providers.ErrCodeEmpty, "empty response")
	}

	var segments [][]interface{}
	if err := json.Unmarshal(raw[0], &segments); err != nil {
		return nil, fmt.Errorf("failed to decode segments: %w", err)
	}

	var b strings.Builder
	for _, seg := range segments {
		if len(seg) == 0 {
			continue
		}
		if s, ok := seg[0].(string); ok {
			b.WriteString(s)
		}
	}

	result := &freeResult{Text: b.String(), Confidence: 1}
	if len(raw) > 2 {
		_ = json.Unmarshal(raw[2], &result.DetectedLanguage)
	}
	if len(raw) > 6 {
		var confidence float64
		if err := json.Unmarshal(raw[6], &confidence); err == nil && confidence > 0 {
			result.Confidence = confidence
		}
	}

	if result.Text == "" {
		return nil, providers.NewError("google_free", providers.ErrCodeEmpty, "no translation returned")
	}
	return result, nil
}

// cloudCall 调用 Cloud Translation v2 接口
func (p *Provider) cloudCall(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	params.Set("key", p.config.APIKey)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	providers.ApplyHeaders(httpReq, p.config.Headers)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	body, err := providers.ReadBody(resp)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr APIError
		message := string(body)
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
			message = apiErr.Error.Message
		}
		return providers.StatusError(p.GetName(), resp.StatusCode, message)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// normalizeLanguageCode 标准化语言代码
func normalizeLanguageCode(lang string) string {
	replacements := map[string]string{
		"chinese":             "zh",
		"chinese_simplified":  "zh-CN",
		"chinese_traditional": "zh-TW",
		"zh-hant":             "zh-TW",
		"zh-hans":             "zh-CN",
		"english":             "en",
		"japanese":            "ja",
		"korean":              "ko",
	}

	lower := strings.ToLower(lang)
	if normalized, ok := replacements[lower]; ok {
		return normalized
	}

	// 处理 xx_YY 格式到 xx-YY
	if strings.Contains(lang, "_") {
		return strings.Replace(lang, "_", "-", 1)
	}

	return lang
}

// TranslateResponse 翻译响应
type TranslateResponse struct {
	Data struct {
		Translations []struct {
			TranslatedText         string `json:"translatedText"`
			DetectedSourceLanguage string `json:"detectedSourceLanguage,omitempty"`
		} `json:"translations"`
	} `json:"data"`
}

// DetectResponse 语言识别响应
type DetectResponse struct {
	Data struct {
		Detections [][]struct {
			Language   string  `json:"language"`
			Confidence float64 `json:"confidence"`
		} `json:"detections"`
	} `json:"data"`
}

// APIError API错误
type APIError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
