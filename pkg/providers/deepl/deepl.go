package deepl

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
	freeEndpoint = "https://api-free.deepl.com/v2"
	proEndpoint  = "https://api.deepl.com/v2"
)

// Config DeepL配置
type Config struct {
	providers.BaseConfig
	UseFreeAPI bool `json:"use_free_api"` // 是否使用免费API
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		BaseConfig: providers.DefaultConfig(),
	}
}

// Provider DeepL提供商
type Provider struct {
	config     Config
	httpClient *retry.RetryableHTTPClient
}

// New 创建新的DeepL提供商，免费版密钥以 ":fx" 结尾
func New(config Config) *Provider {
	if strings.HasSuffix(config.APIKey, ":fx") {
		config.UseFreeAPI = true
	}
	if config.APIEndpoint == "" {
		if config.UseFreeAPI {
			config.APIEndpoint = freeEndpoint
		} else {
			config.APIEndpoint = proEndpoint
		}
	}

	return &Provider{
		config:     config,
		httpClient: providers.NewHTTPClient(config.BaseConfig),
	}
}

// Translate 执行翻译
func (p *Provider) Translate(ctx context.Context, text, source, target string) (string, error) {
	params := url.Values{}
	params.Set("text", text)
	params.Set("target_lang", normalizeLanguageCode(target, false))
	if source != "" && source != "auto" {
		params.Set("source_lang", normalizeLanguageCode(source, true))
	}

	resp, err := p.translate(ctx, params)
	if err != nil {
		return "", err
	}

	if len(resp.Translations) == 0 {
		return "", providers.NewError(p.GetName(), providers.ErrCodeEmpty, "no translation returned")
	}

	return resp.Translations[0].Text, nil
}

// GetName 获取提供商名称
func (p *Provider) GetName() string {
	return "deepl"
}

// GetCapabilities 获取提供商能力
func (p *Provider) GetCapabilities() providers.Capabilities {
	return providers.Capabilities{
		MaxTextLength:  130000,
		RequiresAPIKey: true,
	}
}

// HealthCheck 检查使用量接口
func (p *Provider) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.APIEndpoint+"/usage", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "DeepL-Auth-Key "+p.config.APIKey)

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

// translate 执行翻译请求
func (p *Provider) translate(ctx context.Context, params url.Values) (*TranslateResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.config.APIEndpoint+"/translate",
		strings.NewReader(params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Authorization", "DeepL-Auth-Key "+p.config.APIKey)
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
		message := string(body)
		var errResp ErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Message != "" {
			message = errResp.Message
		}
		switch resp.StatusCode {
		case http.StatusForbidden:
			message = "authentication failed: " + message
		case 456:
			message = "quota exceeded: " + message
		}
		return nil, providers.StatusError(p.GetName(), resp.StatusCode, message)
	}

	var translateResp TranslateResponse
	if err := json.Unmarshal(body, &translateResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &translateResp, nil
}

// normalizeLanguageCode 标准化语言代码为DeepL格式
func normalizeLanguageCode(lang string, isSource bool) string {
	upper := strings.ToUpper(strings.ReplaceAll(lang, "_", "-"))

	// 源语言只接受不带地区的代码
	if isSource {
		if i := strings.Index(upper, "-"); i > 0 {
			return upper[:i]
		}
		return upper
	}

	switch upper {
	case "ZH-TW", "ZH-HK", "ZH-HANT":
		return "ZH-HANT"
	case "ZH", "ZH-CN", "ZH-HANS":
		return "ZH-HANS"
	case "EN":
		return "EN-US"
	case "PT":
		return "PT-BR"
	}

	return upper
}

// TranslateResponse 翻译响应
type TranslateResponse struct {
	Translations []struct {
		DetectedSourceLanguage string `json:"detected_source_language"`
		Text                   string `json:"text"`
	} `json:"translations"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Message string `json:"message"`
}
