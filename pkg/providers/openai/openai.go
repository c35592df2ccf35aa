package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/nerdneilsfield/mail-translator/pkg/providers"
)

const systemPrompt = "You are a professional translator. Translate accurately while preserving the original meaning and tone. " +
	"Keep every placeholder such as [LINK_0] or [IMAGE_0] exactly as written. " +
	"Reply with the translation only."

// Config OpenAI配置（使用官方SDK）
type Config struct {
	providers.BaseConfig
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		BaseConfig:  providers.DefaultConfig(),
		Model:       "gpt-4o-mini",
		Temperature: 0.3,
		MaxTokens:   4096,
	}
}

// Provider OpenAI提供商，也可用于兼容接口
type Provider struct {
	config Config
	client openai.Client
}

// New 创建新的OpenAI提供商
func New(config Config) *Provider {
	if config.Model == "" {
		config.Model = DefaultConfig().Model
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithMaxRetries(config.MaxRetries),
	}

	// 添加自定义端点（如果有）
	if config.APIEndpoint != "" {
		opts = append(opts, option.WithBaseURL(config.APIEndpoint))
	}

	for k, v := range config.Headers {
		opts = append(opts, option.WithHeader(k, v))
	}

	if config.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(config.Timeout))
	}

	return &Provider{
		config: config,
		client: openai.NewClient(opts...),
	}
}

// Translate 执行翻译
func (p *Provider) Translate(ctx context.Context, text, source, target string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(fmt.Sprintf("Translate the following text from %s to %s:\n\n%s",
				languageName(source), languageName(target), text)),
		},
		Model: openai.ChatModel(p.config.Model),
	}

	if p.config.Temperature > 0 {
		params.Temperature = openai.Float(float64(p.config.Temperature))
	}
	if p.config.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(p.config.MaxTokens))
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai chat completion failed: %w", err)
	}

	if len(completion.Choices) == 0 {
		return "", providers.NewError(p.GetName(), providers.ErrCodeEmpty, "no choices returned")
	}

	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}

// GetName 获取提供商名称
func (p *Provider) GetName() string {
	return "openai"
}

// GetCapabilities 获取提供商能力
func (p *Provider) GetCapabilities() providers.Capabilities {
	return providers.Capabilities{
		MaxTextLength:  8000,
		RequiresAPIKey: true,
	}
}

// HealthCheck 健康检查
func (p *Provider) HealthCheck(ctx context.Context) error {
	_, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage("Hello"),
		},
		Model:     openai.ChatModel(p.config.Model),
		MaxTokens: openai.Int(10),
	})
	return err
}

// languageName 将语言代码转为英文名称，供提示词使用
func languageName(code string) string {
	if code == "" || code == "auto" {
		return "the detected source language"
	}
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return code
}
