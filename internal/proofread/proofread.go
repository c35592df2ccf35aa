// Package proofread 按台湾用语习惯校对译文，可选 AI 复核
package proofread

import (
	"context"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/nerdneilsfield/mail-translator/internal/config"
	"github.com/nerdneilsfield/mail-translator/pkg/translation"
)

// DefaultAIMaxChars 超过此长度的正文不做 AI 校对
const DefaultAIMaxChars = 1000

// 校对方式
const (
	MethodBasic = "basic"
	MethodAI    = "ai"
)

// Result 校对结果
type Result struct {
	Source       string // 原文
	Translated   string // 校对前的译文
	Proofread    string
	Improvements []string
	Method       string
}

// Proofreader 译文校对器
type Proofreader struct {
	terms      []Replacement
	reviewer   Reviewer
	aiMaxChars int
	logger     *zap.Logger
}

// Option 校对器选项
type Option func(*Proofreader)

// WithReviewer 设置 AI 复核
func WithReviewer(r Reviewer) Option {
	return func(p *Proofreader) {
		p.reviewer = r
	}
}

// WithGlossary 追加词表
func WithGlossary(g *config.Glossary) Option {
	return func(p *Proofreader) {
		p.terms = append(p.terms, glossaryTerms(g)...)
	}
}

// WithAIMaxChars 设置 AI 校对的长度上限
func WithAIMaxChars(n int) Option {
	return func(p *Proofreader) {
		if n > 0 {
			p.aiMaxChars = n
		}
	}
}

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(p *Proofreader) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New 创建校对器
func New(opts ...Option) *Proofreader {
	p := &Proofreader{
		terms:      append([]Replacement(nil), taiwanTerms...),
		aiMaxChars: DefaultAIMaxChars,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Basic 用词、标点、空白和叠字修正
func (p *Proofreader) Basic(text string) Result {
	input := text
	var improvements []string

	text, improvements = applyReplacements(text, p.terms, "用詞統一", improvements)
	text, improvements = applyReplacements(text, punctuationFixes, "標點修正", improvements)

	before := text
	text = normalizeSpacing(text)
	if text != before {
		improvements = append(improvements, "移除多餘空格和標點前後空格")
	}

	text, improvements = applyReplacements(text, grammarFixes, "語法修正", improvements)

	return Result{
		Translated:   input,
		Proofread:    text,
		Improvements: improvements,
		Method:       MethodBasic,
	}
}

// review 调用 AI 复核，失败或丢失参考标记时返回 ok=false
func (p *Proofreader) review(ctx context.Context, text string) (Result, bool) {
	response, err := p.reviewer.Review(ctx, text)
	if err != nil {
		p.logger.Warn("ai proofreading failed", zap.String("reviewer", p.reviewer.Name()), zap.Error(err))
		return Result{}, false
	}

	improved, improvements := ParseAIResponse(response, text)
	if improved == "" || improved == text {
		return Result{}, false
	}
	if markerCount(improved) < markerCount(text) {
		p.logger.Warn("ai proofreading dropped reference markers, ignoring", zap.String("reviewer", p.reviewer.Name()))
		return Result{}, false
	}

	return Result{
		Translated:   text,
		Proofread:    improved,
		Improvements: append(improvements, "AI 校對完成"),
		Method:       MethodAI,
	}, true
}

func markerCount(text string) int {
	links, images := translation.ScanPlaceholders(text)
	return len(links) + len(images)
}

// Enhance 校对译文正文，参考区块原样保留；任何异常都退回校对前的文本
func (p *Proofreader) Enhance(ctx context.Context, original, translated string) Result {
	body, sections := translation.SplitReferenceSections(translated)

	result := p.Basic(body)
	p.logger.Debug("basic proofreading done", zap.Int("improvements", len(result.Improvements)))

	if p.reviewer != nil && utf8.RuneCountInString(body) < p.aiMaxChars {
		if ai, ok := p.review(ctx, result.Proofread); ok && len(ai.Improvements) > len(result.Improvements) {
			result = ai
			p.logger.Debug("ai proofreading accepted", zap.Int("improvements", len(result.Improvements)))
		}
	}

	final := result.Proofread + sections
	if utf8.RuneCountInString(final) < utf8.RuneCountInString(translated)/2 {
		final = translated
		result.Improvements = append(result.Improvements, "校對後文本異常，保留原翻譯")
	}

	result.Source = original
	result.Translated = translated
	result.Proofread = final
	return result
}
