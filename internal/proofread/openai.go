package proofread

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/nerdneilsfield/mail-translator/internal/config"
)

// DefaultOpenAIModel 默认模型
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAIReviewer 使用 OpenAI 兼容接口复核
type OpenAIReviewer struct {
	client *openai.Client
	model  string
}

// NewOpenAIReviewer 创建 OpenAI 复核，baseURL 为空时使用官方接口
func NewOpenAIReviewer(apiKey, baseURL, model string) (*OpenAIReviewer, error) {
	if config.IsPlaceholder(apiKey) {
		return nil, fmt.Errorf("openai: %w", ErrNoAPIKey)
	}
	if model == "" {
		model = DefaultOpenAIModel
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	}

	return &OpenAIReviewer{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}, nil
}

// Name 返回名称
func (o *OpenAIReviewer) Name() string {
	return "openai"
}

// Review 发送校对请求
func (o *OpenAIReviewer) Review(ctx context.Context, text string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(text)},
		},
		Temperature: reviewTemperature,
		MaxTokens:   reviewMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: empty response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// NewReviewer 按配置创建复核，未配置时返回 nil
func NewReviewer(cfg config.ProofreadConfig) (Reviewer, error) {
	switch strings.ToLower(cfg.AIProvider) {
	case "gemini":
		r, err := NewGeminiReviewer(cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		return r, nil
	case "openai":
		r, err := NewOpenAIReviewer(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
		if err != nil {
			return nil, err
		}
		return r, nil
	case "", "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.AIProvider)
	}
}
