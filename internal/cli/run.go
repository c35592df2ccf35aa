package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/mail-translator/internal/config"
	"github.com/nerdneilsfield/mail-translator/internal/history"
	"github.com/nerdneilsfield/mail-translator/internal/logger"
	"github.com/nerdneilsfield/mail-translator/internal/mail"
	"github.com/nerdneilsfield/mail-translator/internal/pipeline"
	"github.com/nerdneilsfield/mail-translator/internal/report"
	"github.com/nerdneilsfield/mail-translator/internal/telegram"
	"github.com/nerdneilsfield/mail-translator/pkg/providers/stats"
)

// runOptions run 命令的标志
type runOptions struct {
	dryRun        bool
	skipProcessed bool
	outputDir     string
}

func addRunFlags(cmd *cobra.Command, opts *runOptions) {
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "只生成报告，不传送到 Telegram")
	cmd.Flags().BoolVar(&opts.skipProcessed, "skip-processed", false, "跳过已传送过的邮件")
	cmd.Flags().StringVarP(&opts.outputDir, "output-dir", "o", "", "报告输出目录，覆盖配置文件")
}

func newRunCommand(root *rootOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run [search-name]",
		Short: "翻譯最新一封符合條件的郵件",
		Example: `  # 使用預設搜尋條件
  mailtranslator run

  # 使用保存的搜尋條件，只產生報告
  mailtranslator run newsletter --dry-run`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(cmd, root, opts, args)
		},
	}
	addRunFlags(cmd, opts)
	return cmd
}

// resolveCriteria 按名称取得搜索条件，找不到时提示相近名称并使用默认条件
func resolveCriteria(p *printer, cfg *config.Config, args []string) (config.SearchCriteria, error) {
	name := ""
	if len(args) > 0 {
		name = args[0]
	}

	criteria, suggestions, err := cfg.ResolveSearch(name)
	if err != nil {
		if !errors.Is(err, config.ErrSearchNotFound) {
			return criteria, err
		}
		p.warn("找不到搜尋條件 %q，使用預設搜尋條件", name)
		if len(suggestions) > 0 {
			p.info("您是不是要找: %s", strings.Join(suggestions, ", "))
		}
	} else if name == "" {
		p.info("使用預設搜尋條件，可以用 mailtranslator run [搜尋條件名稱] 指定特定條件")
	}

	if criteria.IsEmpty() {
		p.fail("搜尋條件為空，請先設定搜尋條件")
		p.info("執行 mailtranslator search default --subject ... 設定預設條件")
		return criteria, pipeline.ErrEmptyCriteria
	}
	return criteria, nil
}

func runTranslate(cmd *cobra.Command, root *rootOptions, opts *runOptions, args []string) error {
	p := newPrinter(cmd.OutOrStdout())

	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	if opts.outputDir != "" {
		cfg.OutputDir = opts.outputDir
	}

	criteria, err := resolveCriteria(p, cfg, args)
	if err != nil {
		return err
	}
	p.criteria(criteria)

	log := logger.NewLogger(root.debug || cfg.Debug)
	defer func() {
		_ = log.Sync()
	}()

	source, err := pipeline.NewSource(cfg.Mail, log)
	if err != nil {
		return err
	}

	statsManager := stats.NewStatsManager(cfg.Translation.StatsFile, logger.Component(log, "stats"))
	if err := statsManager.Load(); err != nil {
		log.Warn("failed to load provider statistics", zap.Error(err))
	}
	defer func() {
		if err := statsManager.Save(); err != nil {
			log.Warn("failed to save provider statistics", zap.Error(err))
		}
	}()

	translator, err := pipeline.NewTranslationService(cfg.Translation, statsManager, log)
	if err != nil {
		return err
	}

	runnerOpts := []pipeline.Option{
		pipeline.WithLogger(log),
		pipeline.WithDryRun(opts.dryRun),
		pipeline.WithSkipProcessed(opts.skipProcessed),
		pipeline.WithStageHook(p.stage),
	}

	proofreader, err := pipeline.NewProofreader(cfg.Proofread, log)
	if err != nil {
		return err
	}
	if proofreader != nil {
		runnerOpts = append(runnerOpts, pipeline.WithProofreader(proofreader))
	}

	if cfg.TelegramConfigured() {
		bot := telegram.New(cfg.Telegram.BotToken, telegram.WithLogger(logger.Component(log, "telegram")))
		runnerOpts = append(runnerOpts, pipeline.WithDeliverer(bot, cfg.Telegram.ChatID))
	} else if !opts.dryRun {
		p.warn("Telegram 尚未設定，報告只會保存在本機")
	}

	if cfg.HistoryDB != "" {
		store, err := history.Open(cfg.HistoryDB)
		if err != nil {
			log.Warn("history disabled", zap.Error(err))
		} else {
			defer store.Close()
			runnerOpts = append(runnerOpts, pipeline.WithLedger(store))
		}
	}

	runner := pipeline.New(source, translator, report.NewWriter(cfg.OutputDir), runnerOpts...)

	p.title("🚀 開始處理郵件...")
	outcome, err := runner.Run(cmd.Context(), mail.Criteria{
		Subject:   criteria.Subject,
		Sender:    criteria.Sender,
		DateAfter: criteria.DateAfter,
	})
	printOutcome(p, outcome, err)
	return err
}

// printOutcome 打印运行结果
func printOutcome(p *printer, outcome *pipeline.Outcome, err error) {
	if outcome != nil && len(outcome.Improvements) > 0 {
		p.success("翻譯校對完成，改進了 %d 個地方", len(outcome.Improvements))
		for i, improvement := range outcome.Improvements {
			if i == 3 {
				break
			}
			fmt.Fprintf(p.w, "   - %s\n", truncate(improvement, displayWidth))
		}
	}

	switch {
	case err == nil && outcome != nil && outcome.Delivered:
		p.success("處理完成！報告已傳送: %s", outcome.ReportPath)
	case err == nil && outcome != nil:
		p.success("處理完成！報告已保存: %s", outcome.ReportPath)
	case errors.Is(err, pipeline.ErrAuth):
		p.fail("郵箱授權失敗，請執行 mailtranslator auth 重新授權")
	case errors.Is(err, pipeline.ErrNotFound):
		p.fail("沒有找到符合條件的郵件")
	case errors.Is(err, pipeline.ErrDelivery):
		p.fail("Telegram 傳送失敗，報告已保存: %s", outcome.ReportPath)
	default:
		p.fail("處理過程發生錯誤: %v", err)
	}
}

func newAuthCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "完成郵箱授權並保存憑證",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPrinter(cmd.OutOrStdout())
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}

			log := logger.NewLogger(root.debug || cfg.Debug)
			defer func() {
				_ = log.Sync()
			}()

			source, err := pipeline.NewSource(cfg.Mail, log)
			if err != nil {
				return err
			}
			if err := source.Authenticate(cmd.Context()); err != nil {
				p.fail("郵箱授權失敗: %v", err)
				return fmt.Errorf("%w: %w", pipeline.ErrAuth, err)
			}
			defer source.Close()

			p.success("%s 授權成功", cfg.Mail.Source)
			return nil
		},
	}
}
