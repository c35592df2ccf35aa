package translation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// service 翻译服务实现
type service struct {
	config  *Config
	options serviceOptions
	logger  *zap.Logger
}

// New 创建新的翻译服务
func New(config *Config, opts ...Option) (Service, error) {
	// 检查配置是否为nil
	if config == nil {
		return nil, WrapError(ErrInvalidConfig, ErrCodeConfig, "config is nil")
	}

	// 验证配置
	if err := config.Validate(); err != nil {
		return nil, WrapError(err, ErrCodeConfig, "invalid configuration")
	}

	// 应用选项
	options := serviceOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	if len(options.translators) == 0 {
		return nil, ErrNoTranslator
	}

	// 如果没有提供分块器，使用默认的
	if options.chunker == nil {
		options.chunker = NewDefaultChunker(config.ChunkSize)
	}
	if options.cache == nil && config.EnableCache {
		options.cache = NewMemoryCache()
	}

	logger := options.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &service{
		config:  config.Clone(),
		options: options,
		logger:  logger,
	}, nil
}

// TranslateText 翻译整段文本
func (s *service) TranslateText(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	if s.alreadyTarget(ctx, text) {
		s.logger.Info("text already in target language, skipping translation",
			zap.String("target", s.config.TargetLanguage))
		return text, nil
	}

	protected, links, images := ProtectLinks(text)
	chunks := s.options.chunker.Chunk(protected)

	s.logger.Info("translating text",
		zap.Int("chunks", len(chunks)),
		zap.Int("links", len(links)),
		zap.Int("images", len(images)))

	start := time.Now()
	translated := s.translateChunks(ctx, chunks)
	s.logger.Debug("chunks translated", zap.Duration("elapsed", time.Since(start)))

	return RestoreLinks(strings.Join(translated, "\n\n"), links, images), nil
}

// alreadyTarget 识别源语言，已是目标语言时返回 true
func (s *service) alreadyTarget(ctx context.Context, text string) bool {
	if !s.config.SkipSameLanguage || s.options.detector == nil {
		return false
	}

	lang, confidence, err := s.options.detector.Detect(ctx, text)
	if err != nil {
		s.logger.Debug("language detection failed", zap.Error(err))
		return false
	}

	s.logger.Debug("detected language", zap.String("language", lang), zap.Float64("confidence", confidence))
	return SameLanguage(lang, s.config.TargetLanguage)
}

// translateChunks 有界并发翻译所有块，结果按原顺序写入
func (s *service) translateChunks(ctx context.Context, chunks []string) []string {
	results := make([]string, len(chunks))
	if len(chunks) == 0 {
		return results
	}

	var wg sync.WaitGroup

	// 限制并发数
	semaphore := make(chan struct{}, min(s.config.MaxConcurrency, len(chunks)))

	for i, chunk := range chunks {
		wg.Add(1)
		go func(idx int, text string) {
			defer wg.Done()

			// 获取信号量
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			results[idx] = s.translateChunk(ctx, idx, text)
		}(i, chunk)
	}

	wg.Wait()
	return results
}

// translateChunk 带重试翻译单个块，全部失败时返回原文
func (s *service) translateChunk(ctx context.Context, index int, chunk string) string {
	if strings.TrimSpace(chunk) == "" {
		return chunk
	}

	key := cacheKey(s.config.TargetLanguage, chunk)
	if s.options.cache != nil {
		if cached, ok := s.options.cache.Get(key); ok {
			return cached
		}
	}

	var lastErr error
	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
			case <-time.After(s.config.RetryDelay):
			}
			if ctx.Err() != nil {
				break
			}
		}

		result, err := s.translateOnce(ctx, chunk)
		if err == nil {
			if s.options.cache != nil {
				_ = s.options.cache.Set(key, result)
			}
			return result
		}

		lastErr = err
		s.logger.Debug("chunk translation attempt failed",
			zap.Int("chunk", index),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}

	s.logger.Warn("chunk translation failed, keeping source text",
		zap.Int("chunk", index),
		zap.Error(lastErr))
	return chunk
}

// translateOnce 按顺序尝试各翻译器，第一个有效结果胜出
func (s *service) translateOnce(ctx context.Context, chunk string) (string, error) {
	var errs []error
	for _, t := range s.options.translators {
		result, err := t.Translate(ctx, chunk, s.config.SourceLanguage, s.config.TargetLanguage)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", t.GetName(), err))
			continue
		}

		result = strings.TrimSpace(result)
		if result == "" || result == strings.TrimSpace(chunk) {
			errs = append(errs, fmt.Errorf("%s: %w", t.GetName(), ErrNoChange))
			continue
		}

		if ContainsInvalidChars(result) {
			result = s.repairWithPivot(ctx, t, chunk, result)
		}
		return result, nil
	}

	return "", NewRetryableError(ErrCodeProvider, "all translators failed", errors.Join(errs...))
}

// repairWithPivot 经由中转语言重新翻译，保留得分较高的译文
func (s *service) repairWithPivot(ctx context.Context, t Translator, chunk, result string) string {
	pivot := s.config.PivotLanguage
	if pivot == "" {
		return result
	}

	intermediate, err := t.Translate(ctx, chunk, s.config.SourceLanguage, pivot)
	if err != nil || strings.TrimSpace(intermediate) == "" {
		s.logger.Debug("pivot translation failed", zap.String("pivot", pivot), zap.Error(err))
		return result
	}

	converted, err := t.Translate(ctx, intermediate, pivot, s.config.TargetLanguage)
	if err != nil || strings.TrimSpace(converted) == "" {
		s.logger.Debug("pivot conversion failed", zap.String("pivot", pivot), zap.Error(err))
		return result
	}

	best, score := PickBest([]string{result, strings.TrimSpace(converted)})
	s.logger.Debug("pivot repair", zap.Float64("score", score), zap.Bool("replaced", best != result))
	return best
}

// GetConfig 获取当前配置
func (s *service) GetConfig() *Config {
	return s.config.Clone()
}
