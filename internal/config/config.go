package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/spf13/viper"
)

// DefaultConfigFile 默认配置文件
const DefaultConfigFile = "config.json"

// ErrSearchNotFound 保存的搜索不存在
var ErrSearchNotFound = errors.New("saved search not found")

// TelegramConfig Telegram 机器人配置
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

// TranslationConfig 翻译配置
type TranslationConfig struct {
	Providers            []string `mapstructure:"providers"`       // 按顺序尝试的翻译服务
	TargetLanguage       string   `mapstructure:"target_language"` // 目标语言
	DeepLAPIKey          string   `mapstructure:"deepl_api_key"`
	GoogleAPIKey         string   `mapstructure:"google_api_key"`
	LibreTranslateURL    string   `mapstructure:"libretranslate_url"`
	LibreTranslateAPIKey string   `mapstructure:"libretranslate_api_key"`
	OpenAIAPIKey         string   `mapstructure:"openai_api_key"`
	OpenAIBaseURL        string   `mapstructure:"openai_base_url"`
	OpenAIModel          string   `mapstructure:"openai_model"`
	ChunkSize            int      `mapstructure:"chunk_size"`      // 分块大小（字符数）
	Concurrency          int      `mapstructure:"concurrency"`     // 并行翻译请求数
	MaxRetries           int      `mapstructure:"max_retries"`     // 每块最大重试次数
	RetryDelayMS         int      `mapstructure:"retry_delay_ms"`  // 重试间隔（毫秒）
	RequestTimeout       int      `mapstructure:"request_timeout"` // 请求超时时间（秒）
	DetectLanguage       bool     `mapstructure:"detect_language"` // 已是目标语言时跳过翻译
	StatsFile            string   `mapstructure:"stats_file"`      // 翻译服务统计文件
}

// ProofreadConfig 校对配置
type ProofreadConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	AIProvider    string `mapstructure:"ai_provider"` // gemini、openai 或留空
	GeminiAPIKey  string `mapstructure:"gemini_api_key"`
	GeminiModel   string `mapstructure:"gemini_model"`
	OpenAIAPIKey  string `mapstructure:"openai_api_key"`
	OpenAIBaseURL string `mapstructure:"openai_base_url"`
	OpenAIModel   string `mapstructure:"openai_model"`
	GlossaryPath  string `mapstructure:"glossary_path"`
	AIMaxChars    int    `mapstructure:"ai_max_chars"` // 超过此长度不做 AI 校对
}

// MailConfig 邮件来源配置
type MailConfig struct {
	Source          string `mapstructure:"source"` // gmail 或 imap
	CredentialsFile string `mapstructure:"credentials_file"`
	TokenFile       string `mapstructure:"token_file"`
	IMAPServer      string `mapstructure:"imap_server"`
	IMAPUsername    string `mapstructure:"imap_username"`
	IMAPPassword    string `mapstructure:"imap_password"`
	Mailbox         string `mapstructure:"mailbox"`
}

// SearchCriteria 邮件搜索条件
type SearchCriteria struct {
	Subject   string `mapstructure:"subject" json:"subject"`
	Sender    string `mapstructure:"sender" json:"sender"`
	DateAfter string `mapstructure:"date_after" json:"date_after"` // YYYY/MM/DD
}

// IsEmpty 是否没有任何条件
func (c SearchCriteria) IsEmpty() bool {
	return c.Subject == "" && c.Sender == "" && c.DateAfter == ""
}

// EmailSearchConfig 搜索配置
type EmailSearchConfig struct {
	DefaultCriteria SearchCriteria            `mapstructure:"default_criteria"`
	SavedSearches   map[string]SearchCriteria `mapstructure:"saved_searches"`
}

// Config 保存应用的所有配置
type Config struct {
	Telegram    TelegramConfig    `mapstructure:"telegram"`
	Translation TranslationConfig `mapstructure:"translation"`
	Proofread   ProofreadConfig   `mapstructure:"proofread"`
	Mail        MailConfig        `mapstructure:"mail"`
	EmailSearch EmailSearchConfig `mapstructure:"email_search"`
	OutputDir   string            `mapstructure:"output_dir"`
	HistoryDB   string            `mapstructure:"history_db"`
	Debug       bool              `mapstructure:"debug"`
}

// LoadConfig 从文件加载配置，文件不存在时写入默认配置
func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = DefaultConfigFile
	}

	v := viper.New()

	// 设置默认值
	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	// 读取环境变量
	v.SetEnvPrefix("MAILTRANSLATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("proofread.gemini_api_key", "MAILTRANSLATOR_PROOFREAD_GEMINI_API_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv("telegram.bot_token", "MAILTRANSLATOR_TELEGRAM_BOT_TOKEN", "TELEGRAM_BOT_TOKEN")
	_ = v.BindEnv("telegram.chat_id", "MAILTRANSLATOR_TELEGRAM_CHAT_ID", "TELEGRAM_CHAT_ID")

	created := false
	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config %s: %w", configPath, err)
			}
		}
		created = true
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", configPath, err)
	}
	if config.EmailSearch.SavedSearches == nil {
		config.EmailSearch.SavedSearches = make(map[string]SearchCriteria)
	}

	if created {
		if err := SaveConfig(&config, configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	return &config, nil
}

// SaveConfig 将配置保存到文件
func SaveConfig(config *Config, configPath string) error {
	if configPath == "" {
		configPath = DefaultConfigFile
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	// 添加所有配置项
	if err := v.MergeConfigMap(structToMap(config)); err != nil {
		return err
	}

	// 创建父目录（如果不存在）
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return err
	}

	return v.WriteConfigAs(configPath)
}

// NewDefaultConfig 创建一个新的默认配置
func NewDefaultConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{
			BotToken: "[your_bot_token]",
			ChatID:   "[your_chat_id]",
		},
		Translation: TranslationConfig{
			Providers:      []string{"google_free"},
			TargetLanguage: "zh-TW",
			ChunkSize:      2000,
			Concurrency:    6,
			MaxRetries:     2,
			RetryDelayMS:   500,
			RequestTimeout: 30,
			DetectLanguage: true,
			StatsFile:      "translation_stats.json",
		},
		Proofread: ProofreadConfig{
			Enabled:     true,
			AIProvider:  "gemini",
			GeminiModel: "gemini-1.5-flash",
			OpenAIModel: "gpt-4o-mini",
			AIMaxChars:  1000,
		},
		Mail: MailConfig{
			Source:          "gmail",
			CredentialsFile: "credentials.json",
			TokenFile:       "token.json",
			IMAPServer:      "imap.gmail.com:993",
			Mailbox:         "INBOX",
		},
		EmailSearch: EmailSearchConfig{
			SavedSearches: make(map[string]SearchCriteria),
		},
		OutputDir: ".",
		HistoryDB: "history.db",
	}
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("telegram.bot_token", d.Telegram.BotToken)
	v.SetDefault("telegram.chat_id", d.Telegram.ChatID)

	v.SetDefault("translation.providers", d.Translation.Providers)
	v.SetDefault("translation.target_language", d.Translation.TargetLanguage)
	v.SetDefault("translation.deepl_api_key", "")
	v.SetDefault("translation.google_api_key", "")
	v.SetDefault("translation.libretranslate_url", "")
	v.SetDefault("translation.libretranslate_api_key", "")
	v.SetDefault("translation.openai_api_key", "")
	v.SetDefault("translation.openai_base_url", "")
	v.SetDefault("translation.openai_model", "")
	v.SetDefault("translation.chunk_size", d.Translation.ChunkSize)
	v.SetDefault("translation.concurrency", d.Translation.Concurrency)
	v.SetDefault("translation.max_retries", d.Translation.MaxRetries)
	v.SetDefault("translation.retry_delay_ms", d.Translation.RetryDelayMS)
	v.SetDefault("translation.request_timeout", d.Translation.RequestTimeout)
	v.SetDefault("translation.detect_language", d.Translation.DetectLanguage)
	v.SetDefault("translation.stats_file", d.Translation.StatsFile)

	v.SetDefault("proofread.enabled", d.Proofread.Enabled)
	v.SetDefault("proofread.ai_provider", d.Proofread.AIProvider)
	v.SetDefault("proofread.gemini_api_key", "")
	v.SetDefault("proofread.gemini_model", d.Proofread.GeminiModel)
	v.SetDefault("proofread.openai_api_key", "")
	v.SetDefault("proofread.openai_base_url", "")
	v.SetDefault("proofread.openai_model", d.Proofread.OpenAIModel)
	v.SetDefault("proofread.glossary_path", "")
	v.SetDefault("proofread.ai_max_chars", d.Proofread.AIMaxChars)

	v.SetDefault("mail.source", d.Mail.Source)
	v.SetDefault("mail.credentials_file", d.Mail.CredentialsFile)
	v.SetDefault("mail.token_file", d.Mail.TokenFile)
	v.SetDefault("mail.imap_server", d.Mail.IMAPServer)
	v.SetDefault("mail.imap_username", "")
	v.SetDefault("mail.imap_password", "")
	v.SetDefault("mail.mailbox", d.Mail.Mailbox)

	v.SetDefault("email_search.default_criteria.subject", "")
	v.SetDefault("email_search.default_criteria.sender", "")
	v.SetDefault("email_search.default_criteria.date_after", "")

	v.SetDefault("output_dir", d.OutputDir)
	v.SetDefault("history_db", d.HistoryDB)
	v.SetDefault("debug", false)
}

// structToMap 将结构体转换为map
func structToMap(config *Config) map[string]interface{} {
	searches := make(map[string]interface{}, len(config.EmailSearch.SavedSearches))
	for name, c := range config.EmailSearch.SavedSearches {
		searches[name] = criteriaToMap(c)
	}

	return map[string]interface{}{
		"telegram": map[string]interface{}{
			"bot_token": config.Telegram.BotToken,
			"chat_id":   config.Telegram.ChatID,
		},
		"translation": map[string]interface{}{
			"providers":              config.Translation.Providers,
			"target_language":        config.Translation.TargetLanguage,
			"deepl_api_key":          config.Translation.DeepLAPIKey,
			"google_api_key":         config.Translation.GoogleAPIKey,
			"libretranslate_url":     config.Translation.LibreTranslateURL,
			"libretranslate_api_key": config.Translation.LibreTranslateAPIKey,
			"openai_api_key":         config.Translation.OpenAIAPIKey,
			"openai_base_url":        config.Translation.OpenAIBaseURL,
			"openai_model":           config.Translation.OpenAIModel,
			"chunk_size":             config.Translation.ChunkSize,
			"concurrency":            config.Translation.Concurrency,
			"max_retries":            config.Translation.MaxRetries,
			"retry_delay_ms":         config.Translation.RetryDelayMS,
			"request_timeout":        config.Translation.RequestTimeout,
			"detect_language":        config.Translation.DetectLanguage,
			"stats_file":             config.Translation.StatsFile,
		},
		"proofread": map[string]interface{}{
			"enabled":         config.Proofread.Enabled,
			"ai_provider":     config.Proofread.AIProvider,
			"gemini_api_key":  config.Proofread.GeminiAPIKey,
			"gemini_model":    config.Proofread.GeminiModel,
			"openai_api_key":  config.Proofread.OpenAIAPIKey,
			"openai_base_url": config.Proofread.OpenAIBaseURL,
			"openai_model":    config.Proofread.OpenAIModel,
			"glossary_path":   config.Proofread.GlossaryPath,
			"ai_max_chars":    config.Proofread.AIMaxChars,
		},
		"mail": map[string]interface{}{
			"source":           config.Mail.Source,
			"credentials_file": config.Mail.CredentialsFile,
			"token_file":       config.Mail.TokenFile,
			"imap_server":      config.Mail.IMAPServer,
			"imap_username":    config.Mail.IMAPUsername,
			"imap_password":    config.Mail.IMAPPassword,
			"mailbox":          config.Mail.Mailbox,
		},
		"email_search": map[string]interface{}{
			"default_criteria": criteriaToMap(config.EmailSearch.DefaultCriteria),
			"saved_searches":   searches,
		},
		"output_dir": config.OutputDir,
		"history_db": config.HistoryDB,
		"debug":      config.Debug,
	}
}

func criteriaToMap(c SearchCriteria) map[string]interface{} {
	return map[string]interface{}{
		"subject":    c.Subject,
		"sender":     c.Sender,
		"date_after": c.DateAfter,
	}
}

// IsPlaceholder 判断是否为未填写的值，如 "[your_bot_token]"
func IsPlaceholder(value string) bool {
	value = strings.TrimSpace(value)
	return value == "" || (strings.HasPrefix(value, "[") && strings.HasSuffix(value, "]"))
}

// TelegramConfigured Telegram 是否已配置
func (c *Config) TelegramConfigured() bool {
	return !IsPlaceholder(c.Telegram.BotToken) && !IsPlaceholder(c.Telegram.ChatID)
}

// RetryDelay 返回重试间隔
func (c *TranslationConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMS) * time.Millisecond
}

// Timeout 返回请求超时时间
func (c *TranslationConfig) Timeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// Validate 验证配置
func (c *Config) Validate() error {
	if len(c.Translation.Providers) == 0 {
		return fmt.Errorf("translation.providers must list at least one provider")
	}
	if c.Translation.ChunkSize <= 0 {
		return fmt.Errorf("translation.chunk_size must be positive")
	}
	if c.Translation.Concurrency <= 0 {
		return fmt.Errorf("translation.concurrency must be positive")
	}
	if c.Translation.MaxRetries < 0 {
		return fmt.Errorf("translation.max_retries cannot be negative")
	}
	switch c.Mail.Source {
	case "gmail", "imap":
	default:
		return fmt.Errorf("mail.source must be gmail or imap, got %q", c.Mail.Source)
	}
	for _, criteria := range append([]SearchCriteria{c.EmailSearch.DefaultCriteria}, c.savedCriteria()...) {
		if err := ValidateDate(criteria.DateAfter); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) savedCriteria() []SearchCriteria {
	result := make([]SearchCriteria, 0, len(c.EmailSearch.SavedSearches))
	for _, s := range c.EmailSearch.SavedSearches {
		result = append(result, s)
	}
	return result
}

// ValidateDate 校验 YYYY/MM/DD 日期，空值合法
func ValidateDate(date string) error {
	if date == "" {
		return nil
	}
	if _, err := time.Parse("2006/01/02", date); err != nil {
		return fmt.Errorf("invalid date %q, expected YYYY/MM/DD", date)
	}
	return nil
}

// normalizeName 搜索名称统一为小写，配置键不区分大小写
func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// SearchNames 返回排序后的保存搜索名称
func (c *Config) SearchNames() []string {
	names := make([]string, 0, len(c.EmailSearch.SavedSearches))
	for name := range c.EmailSearch.SavedSearches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveSearch 按名称查找保存的搜索，名称为空时返回默认条件
// 找不到时返回默认条件、相近名称建议和 ErrSearchNotFound
func (c *Config) ResolveSearch(name string) (SearchCriteria, []string, error) {
	key := normalizeName(name)
	if key == "" {
		return c.EmailSearch.DefaultCriteria, nil, nil
	}
	if criteria, ok := c.EmailSearch.SavedSearches[key]; ok {
		return criteria, nil, nil
	}
	return c.EmailSearch.DefaultCriteria, c.SuggestSearches(key), fmt.Errorf("%w: %s", ErrSearchNotFound, name)
}

// SuggestSearches 返回与输入相近的保存搜索名称
func (c *Config) SuggestSearches(name string) []string {
	names := c.SearchNames()
	seen := make(map[string]bool)
	var suggestions []string

	ranks := fuzzy.RankFindNormalizedFold(name, names)
	sort.Sort(ranks)
	for _, r := range ranks {
		if !seen[r.Target] {
			seen[r.Target] = true
			suggestions = append(suggestions, r.Target)
		}
	}

	for _, candidate := range names {
		if !seen[candidate] && fuzzy.LevenshteinDistance(name, candidate) <= 2 {
			seen[candidate] = true
			suggestions = append(suggestions, candidate)
		}
	}
	return suggestions
}

// AddSearch 新增或覆盖保存的搜索
func (c *Config) AddSearch(name string, criteria SearchCriteria) error {
	key := normalizeName(name)
	if key == "" {
		return fmt.Errorf("search name cannot be empty")
	}
	if strings.Contains(key, ".") {
		return fmt.Errorf("search name %q cannot contain '.'", name)
	}
	if criteria.IsEmpty() {
		return fmt.Errorf("search %q needs at least one criterion", name)
	}
	if err := ValidateDate(criteria.DateAfter); err != nil {
		return err
	}
	if c.EmailSearch.SavedSearches == nil {
		c.EmailSearch.SavedSearches = make(map[string]SearchCriteria)
	}
	c.EmailSearch.SavedSearches[key] = criteria
	return nil
}

// RemoveSearch 删除保存的搜索
func (c *Config) RemoveSearch(name string) error {
	key := normalizeName(name)
	if _, ok := c.EmailSearch.SavedSearches[key]; !ok {
		return fmt.Errorf("%w: %s", ErrSearchNotFound, name)
	}
	delete(c.EmailSearch.SavedSearches, key)
	return nil
}

// SetDefaultCriteria 设置默认搜索条件
func (c *Config) SetDefaultCriteria(criteria SearchCriteria) error {
	if err := ValidateDate(criteria.DateAfter); err != nil {
		return err
	}
	c.EmailSearch.DefaultCriteria = criteria
	return nil
}
