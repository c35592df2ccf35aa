package pipeline

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/nerdneilsfield/mail-translator/internal/config"
	"github.com/nerdneilsfield/mail-translator/internal/logger"
	"github.com/nerdneilsfield/mail-translator/internal/mail"
	"github.com/nerdneilsfield/mail-translator/internal/proofread"
	"github.com/nerdneilsfield/mail-translator/pkg/providers/factory"
	"github.com/nerdneilsfield/mail-translator/pkg/providers/stats"
	"github.com/nerdneilsfield/mail-translator/pkg/translation"
)

// NewSource 按配置创建邮件来源
func NewSource(cfg config.MailConfig, log *zap.Logger) (mail.Source, error) {
	switch strings.ToLower(cfg.Source) {
	case "", "gmail":
		return mail.NewGmailSource(mail.GmailConfig{
			CredentialsFile: cfg.CredentialsFile,
			TokenFile:       cfg.TokenFile,
			Prompt:          os.Stdout,
			Input:           os.Stdin,
		}, logger.Component(log, "gmail")), nil
	case "imap":
		return mail.NewIMAPSource(mail.IMAPConfig{
			Server:   cfg.IMAPServer,
			Username: cfg.IMAPUsername,
			Password: cfg.IMAPPassword,
			Mailbox:  cfg.Mailbox,
		}, logger.Component(log, "imap")), nil
	default:
		return nil, fmt.Errorf("unsupported mail source: %s", cfg.Source)
	}
}

// TranslationConfig 将配置文件中的翻译设置转换为服务配置
func TranslationConfig(cfg config.TranslationConfig) *translation.Config {
	tc := translation.DefaultConfig()
	if cfg.TargetLanguage != "" {
		tc.TargetLanguage = cfg.TargetLanguage
	}
	tc.PivotLanguage = translation.PivotFor(tc.TargetLanguage)
	if cfg.ChunkSize > 0 {
		tc.ChunkSize = cfg.ChunkSize
	}
	if cfg.Concurrency > 0 {
		tc.MaxConcurrency = cfg.Concurrency
	}
	if cfg.MaxRetries >= 0 {
		tc.MaxRetries = cfg.MaxRetries
	}
	tc.RetryDelay = cfg.RetryDelay()
	tc.SkipSameLanguage = cfg.DetectLanguage
	return tc
}

// NewTranslationService 创建翻译服务，sm 为 nil 时不记录提供商统计
func NewTranslationService(cfg config.TranslationConfig, sm *stats.StatsManager, log *zap.Logger) (translation.Service, error) {
	built, err := factory.New(sm, logger.Component(log, "providers")).Build(cfg)
	if err != nil {
		return nil, err
	}

	opts := []translation.Option{
		translation.WithTranslators(built.Translators...),
		translation.WithLogger(logger.Component(log, "translation")),
	}
	if built.Detector != nil {
		opts = append(opts, translation.WithDetector(built.Detector))
	}
	return translation.New(TranslationConfig(cfg), opts...)
}

// NewProofreader 创建校对器，未启用时返回 nil；AI 复核不可用时只做基础校对
func NewProofreader(cfg config.ProofreadConfig, log *zap.Logger) (*proofread.Proofreader, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	log = logger.Component(log, "proofread")

	opts := []proofread.Option{
		proofread.WithLogger(log),
		proofread.WithAIMaxChars(cfg.AIMaxChars),
	}

	reviewer, err := proofread.NewReviewer(cfg)
	if err != nil {
		log.Warn("ai proofreading unavailable, using rule-based proofreading only", zap.Error(err))
	} else if reviewer != nil {
		opts = append(opts, proofread.WithReviewer(reviewer))
	}

	if cfg.GlossaryPath != "" {
		glossary, err := config.LoadGlossary(cfg.GlossaryPath)
		if err != nil {
			return nil, err
		}
		opts = append(opts, proofread.WithGlossary(glossary))
	}

	return proofread.New(opts...), nil
}
