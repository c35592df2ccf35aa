package proofread

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/nerdneilsfield/mail-translator/internal/config"
)

// DefaultGeminiModel 默认 Gemini 模型
const DefaultGeminiModel = "gemini-1.5-flash"

// GeminiReviewer 使用 Gemini 复核
type GeminiReviewer struct {
	apiKey string
	model  string
	opts   []option.ClientOption
}

// NewGeminiReviewer 创建 Gemini 复核
func NewGeminiReviewer(apiKey, model string, opts ...option.ClientOption) (*GeminiReviewer, error) {
	if config.IsPlaceholder(apiKey) || apiKey == "your_gemini_api_key_here" {
		return nil, fmt.Errorf("gemini: %w", ErrNoAPIKey)
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiReviewer{apiKey: apiKey, model: model, opts: opts}, nil
}

// Name 返回名称
func (g *GeminiReviewer) Name() string {
	return "gemini"
}

// Review 发送校对请求
func (g *GeminiReviewer) Review(ctx context.Context, text string) (string, error) {
	opts := append([]option.ClientOption{option.WithAPIKey(g.apiKey)}, g.opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("gemini: failed to create client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(g.model)
	model.SetTemperature(reviewTemperature)
	model.SetMaxOutputTokens(reviewMaxTokens)

	resp, err := model.GenerateContent(ctx, genai.Text(BuildPrompt(text)))
	if err != nil {
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}

	out := responseText(resp)
	if out == "" {
		return "", fmt.Errorf("gemini: empty response")
	}
	return out, nil
}

// responseText 拼接第一个候选的文本部分
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(sb.String())
}
