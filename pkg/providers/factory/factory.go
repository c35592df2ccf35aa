package factory

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/nerdneilsfield/mail-translator/internal/config"
	"github.com/nerdneilsfield/mail-translator/pkg/providers"
	"github.com/nerdneilsfield/mail-translator/pkg/providers/deepl"
	"github.com/nerdneilsfield/mail-translator/pkg/providers/google"
	"github.com/nerdneilsfield/mail-translator/pkg/providers/libretranslate"
	"github.com/nerdneilsfield/mail-translator/pkg/providers/openai"
	"github.com/nerdneilsfield/mail-translator/pkg/providers/stats"
	"github.com/nerdneilsfield/mail-translator/pkg/translation"
)

// 支持的提供商名称
const (
	GoogleFree     = "google_free"
	Google         = "google"
	DeepL          = "deepl"
	LibreTranslate = "libretranslate"
	OpenAI         = "openai"
)

// ProviderFactory 提供商工厂
type ProviderFactory struct {
	registry *providers.Registry
	stats    *stats.StatsManager
	logger   *zap.Logger
}

// Result 按配置顺序排列的翻译策略
type Result struct {
	Translators []translation.Translator
	// Detector 第一个支持语言识别的提供商，可能为 nil
	Detector translation.Detector
}

// New 创建新的提供商工厂，statsManager 为 nil 时不记录统计
func New(statsManager *stats.StatsManager, logger *zap.Logger) *ProviderFactory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProviderFactory{
		registry: providers.NewRegistry(),
		stats:    statsManager,
		logger:   logger,
	}
}

// Registry 返回已创建的提供商
func (f *ProviderFactory) Registry() *providers.Registry {
	return f.registry
}

// Build 根据配置创建提供商，缺少密钥的提供商会被跳过
func (f *ProviderFactory) Build(cfg config.TranslationConfig) (*Result, error) {
	var names []string
	for _, name := range cfg.Providers {
		name = strings.ToLower(strings.TrimSpace(name))
		if _, err := f.registry.Get(name); err == nil {
			continue
		}

		provider, err := f.CreateProvider(name, cfg)
		if err != nil {
			f.logger.Warn("skipping translation provider", zap.String("provider", name), zap.Error(err))
			continue
		}
		if err := f.registry.Register(name, provider); err != nil {
			return nil, err
		}
		names = append(names, name)
	}

	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no usable provider in %v", translation.ErrNoTranslator, cfg.Providers)
	}

	ordered, err := f.registry.Ordered(names)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for _, p := range ordered {
		var t translation.Translator = p
		if f.stats != nil {
			t = stats.NewStatisticsMiddleware(p, f.stats)
		}
		result.Translators = append(result.Translators, t)

		if d, ok := p.(translation.Detector); ok && result.Detector == nil && cfg.DetectLanguage {
			result.Detector = d
		}
	}

	f.logger.Debug("translation providers ready", zap.Strings("providers", names))
	return result, nil
}

// CreateProvider 根据配置创建提供商
func (f *ProviderFactory) CreateProvider(name string, cfg config.TranslationConfig) (providers.Provider, error) {
	switch name {
	case GoogleFree:
		c := google.DefaultConfig()
		applyBase(&c.BaseConfig, cfg)
		return google.New(c), nil
	case Google:
		if config.IsPlaceholder(cfg.GoogleAPIKey) {
			return nil, fmt.Errorf("google_api_key is not set")
		}
		c := google.Config{BaseConfig: providers.DefaultConfig()}
		applyBase(&c.BaseConfig, cfg)
		c.APIKey = cfg.GoogleAPIKey
		return google.New(c), nil
	case DeepL:
		if config.IsPlaceholder(cfg.DeepLAPIKey) {
			return nil, fmt.Errorf("deepl_api_key is not set")
		}
		c := deepl.DefaultConfig()
		applyBase(&c.BaseConfig, cfg)
		c.APIKey = cfg.DeepLAPIKey
		return deepl.New(c), nil
	case LibreTranslate:
		if cfg.LibreTranslateURL == "" {
			return nil, fmt.Errorf("libretranslate_url is not set")
		}
		c := libretranslate.DefaultConfig()
		applyBase(&c.BaseConfig, cfg)
		c.APIEndpoint = cfg.LibreTranslateURL
		c.APIKey = cfg.LibreTranslateAPIKey
		return libretranslate.New(c), nil
	case OpenAI:
		if config.IsPlaceholder(cfg.OpenAIAPIKey) {
			return nil, fmt.Errorf("openai_api_key is not set")
		}
		c := openai.DefaultConfig()
		applyBase(&c.BaseConfig, cfg)
		c.APIKey = cfg.OpenAIAPIKey
		c.APIEndpoint = cfg.OpenAIBaseURL
		if cfg.OpenAIModel != "" {
			c.Model = cfg.OpenAIModel
		}
		return openai.New(c), nil
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", name)
	}
}

// applyBase 设置请求超时，重试由翻译服务负责
func applyBase(base *providers.BaseConfig, cfg config.TranslationConfig) {
	if cfg.RequestTimeout > 0 {
		base.Timeout = cfg.Timeout()
	}
	if base.Headers == nil {
		base.Headers = make(map[string]string)
	}
}

// GetSupportedProviders 获取支持的提供商列表
func GetSupportedProviders() []string {
	return []string{GoogleFree, Google, DeepL, LibreTranslate, OpenAI}
}
