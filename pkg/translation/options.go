package translation

import "go.uber.org/zap"

// Option 服务配置选项函数
type Option func(*serviceOptions)

// serviceOptions 服务内部选项
type serviceOptions struct {
	translators []Translator
	detector    Detector
	cache       Cache
	chunker     Chunker
	logger      *zap.Logger
}

// WithTranslators 设置翻译策略列表，按顺序尝试
func WithTranslators(translators ...Translator) Option {
	return func(o *serviceOptions) {
		o.translators = append(o.translators, translators...)
	}
}

// WithDetector 设置语言识别器
func WithDetector(detector Detector) Option {
	return func(o *serviceOptions) {
		o.detector = detector
	}
}

// WithCache 设置缓存
func WithCache(cache Cache) Option {
	return func(o *serviceOptions) {
		o.cache = cache
	}
}

// WithChunker 设置文本分块器
func WithChunker(chunker Chunker) Option {
	return func(o *serviceOptions) {
		o.chunker = chunker
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger *zap.Logger) Option {
	return func(o *serviceOptions) {
		o.logger = logger
	}
}
