package translation

import (
	"context"
)

// Service 高层翻译服务接口
type Service interface {
	// TranslateText 保护链接、分块并发翻译、还原链接
	TranslateText(ctx context.Context, text string) (string, error)

	// GetConfig 获取当前配置
	GetConfig() *Config
}

// Translator 单次翻译调用，source 为 "auto" 时由服务端识别源语言
type Translator interface {
	// Translate 翻译文本
	Translate(ctx context.Context, text, source, target string) (string, error)

	// GetName 获取翻译器名称
	GetName() string
}

// Detector 语言识别接口
type Detector interface {
	// Detect 返回识别出的语言代码和置信度
	Detect(ctx context.Context, text string) (string, float64, error)
}

// Chunker 文本分块器接口
type Chunker interface {
	// Chunk 将文本分块
	Chunk(text string) []string

	// GetConfig 获取分块配置
	GetConfig() ChunkConfig
}

// ChunkConfig 分块配置
type ChunkConfig struct {
	Size int // 块大小（字符数）
}

// Cache 缓存接口
type Cache interface {
	// Get 获取缓存
	Get(key string) (string, bool)

	// Set 设置缓存
	Set(key string, value string) error
}

// CacheStats 缓存统计信息
type CacheStats struct {
	Hits   int64
	Misses int64
	Size   int64
}
