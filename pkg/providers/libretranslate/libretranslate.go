package libretranslate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/nerdneilsfield/mail-translator/pkg/providers"
	"github.com/nerdneilsfield/mail-translator/pkg/providers/retry"
)

// Config LibreTranslate配置
type Config struct {
	providers.BaseConfig
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	config := Config{
		BaseConfig: providers.DefaultConfig(),
	}
	// 默认使用官方演示服务器
	config.APIEndpoint = "https://libretranslate.com"
	return config
}

// Provider LibreTranslate提供商
type Provider struct {
	config     Config
	httpClient *retry.RetryableHTTPClient
}

// New 创建新的LibreTranslate提供商
func New(config Config) *Provider {
	if config.APIEndpoint == "" {
		config.APIEndpoint = "https://libretranslate.com"
	}
	config.APIEndpoint = strings.TrimSuffix(config.APIEndpoint, "/")

	return &Provider{
		config:     config,
		httpClient: providers.NewHTTPClient(config.BaseConfig),
	}
}

// Translate 执行翻译
func (p *Provider) Translate(ctx context.Context, text, source, target string) (string, error) {
	req := TranslateRequest{
		Q:      text,
		Source: normalizeLanguageCode(source),
		Target: normalizeLanguageCode(target),
		Format: "text",
		APIKey: p.config.APIKey,
	}

	var resp TranslateResponse
	if err := p.post(ctx, "/translate", req, &resp); err != nil {
		return "", err
	}
	if resp.TranslatedText == "" {
		return "", providers.NewError(p.GetName(), providers.ErrCodeEmpty, "no translation returned")
	}
	return resp.TranslatedText, nil
}

// Detect 识别文本语言，置信度换算为 0 到 1
func (p *Provider) Detect(ctx context.Context, text string) (string, float64, error) {
	var resp []DetectResult
	if err := p.post(ctx, "/detect", DetectRequest{Q: text, APIKey: p.config.APIKey}, &resp); err != nil {
		return "", 0, err
	}
	if len(resp) == 0 {
		return "", 0, providers.NewError(p.GetName(), providers.ErrCodeEmpty, "no detection returned")
	}
	return resp[0].Language, resp[0].Confidence / 100, nil
}

// GetName 获取提供商名称
func (p *Provider) GetName() string {
	return "libretranslate"
}

// GetCapabilities 获取提供商能力
func (p *Provider) GetCapabilities() providers.Capabilities {
	return providers.Capabilities{
		MaxTextLength:     5000,
		RequiresAPIKey:    false,
		SupportsDetection: true,
	}
}

// HealthCheck 获取支持的语言列表
func (p *Provider) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.APIEndpoint+"/languages", nil)
	if err != nil {
		return err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	body, _ := providers.ReadBody(resp)

	if resp.StatusCode != http.StatusOK {
		return providers.StatusError(p.GetName(), resp.StatusCode, string(body))
	}
	return nil
}

// post 发送JSON请求并解析响应
func (p *Provider) post(ctx context.Context, path string, payload, out interface{}) error {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.APIEndpoint+path, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	providers.ApplyHeaders(httpReq, p.config.Headers)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	respBody, err := providers.ReadBody(resp)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := string(respBody)
		var errorResp ErrorResponse
		if err := json.Unmarshal(respBody, &errorResp); err == nil && errorResp.Error != "" {
			message = errorResp.Error
		}
		return providers.StatusError(p.GetName(), resp.StatusCode, message)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// normalizeLanguageCode 标准化语言代码，繁体中文为 zt
func normalizeLanguageCode(lang string) string {
	lower := strings.ToLower(strings.ReplaceAll(lang, "_", "-"))

	switch lower {
	case "", "auto":
		return "auto"
	case "zh-tw", "zh-hk", "zh-hant":
		return "zt"
	case "zh-cn", "zh-hans":
		return "zh"
	}

	if i := strings.Index(lower, "-"); i > 0 {
		return lower[:i]
	}
	return lower
}

// TranslateRequest 翻译请求
type TranslateRequest struct {
	Q      string `json:"q"`                 // 要翻译的文本
	Source string `json:"source"`            // 源语言
	Target string `json:"target"`            // 目标语言
	Format string `json:"format"`            // 文本格式
	APIKey string `json:"api_key,omitempty"` // API密钥（如果需要）
}

// TranslateResponse 翻译响应
type TranslateResponse struct {
	TranslatedText   string `json:"translatedText"`
	DetectedLanguage *struct {
		Confidence float64 `json:"confidence"`
		Language   string  `json:"language"`
	} `json:"detectedLanguage,omitempty"`
}

// DetectRequest 语言识别请求
type DetectRequest struct {
	Q      string `json:"q"`
	APIKey string `json:"api_key,omitempty"`
}

// DetectResult 语言识别结果
type DetectResult struct {
	Confidence float64 `json:"confidence"`
	Language   string  `json:"language"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Error string `json:"error"`
}
