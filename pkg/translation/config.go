package translation

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// Config 翻译服务配置
type Config struct {
	// 语言设置
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
	// 译文含乱码时经由的中转语言，为空则不中转
	PivotLanguage string `json:"pivot_language"`

	// 分块设置
	ChunkSize int `json:"chunk_size"`

	// 并发与重试
	MaxConcurrency int           `json:"max_concurrency"`
	MaxRetries     int           `json:"max_retries"`
	RetryDelay     time.Duration `json:"retry_delay"`

	// 缓存设置
	EnableCache bool `json:"enable_cache"`

	// 目标语言已是源语言时跳过翻译
	SkipSameLanguage bool `json:"skip_same_language"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		SourceLanguage:   "auto",
		TargetLanguage:   "zh-TW",
		PivotLanguage:    "zh-CN",
		ChunkSize:        DefaultChunkSize,
		MaxConcurrency:   6,
		MaxRetries:       2,
		RetryDelay:       500 * time.Millisecond,
		EnableCache:      true,
		SkipSameLanguage: true,
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if strings.TrimSpace(c.TargetLanguage) == "" {
		return fmt.Errorf("%w: target language is required", ErrInvalidConfig)
	}
	if _, err := language.Parse(c.TargetLanguage); err != nil {
		return fmt.Errorf("%w: target language %q: %v", ErrInvalidConfig, c.TargetLanguage, err)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive", ErrInvalidConfig)
	}
	if c.MaxConcurrency <= 0 {
		return fmt.Errorf("%w: max concurrency must be positive", ErrInvalidConfig)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries cannot be negative", ErrInvalidConfig)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("%w: retry delay cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// Clone 克隆配置
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// PivotFor 返回目标语言适用的中转语言，繁体中文经由简体中文
func PivotFor(target string) string {
	tag, err := language.Parse(target)
	if err != nil {
		return ""
	}
	base, _ := tag.Base()
	script, _ := tag.Script()
	if base.String() == "zh" && script.String() == "Hant" {
		return "zh-CN"
	}
	return ""
}

// SameLanguage 判断识别出的语言是否已属于目标语言
// 只识别出语种时按语种比较，带地区时需完全一致
func SameLanguage(detected, target string) bool {
	dt, err := language.Parse(detected)
	if err != nil {
		return false
	}
	tt, err := language.Parse(target)
	if err != nil {
		return false
	}
	if dt == tt {
		return true
	}
	dBase, _ := dt.Base()
	tBase, _ := tt.Base()
	return dt == language.Make(dBase.String()) && dBase == tBase
}
