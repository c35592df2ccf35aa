// Package cli 定义 mailtranslator 的命令行
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerdneilsfield/mail-translator/internal/config"
)

// rootOptions 全局标志
type rootOptions struct {
	cfgFile string
	debug   bool
}

// NewRootCommand 创建根命令，不带子命令时执行一次翻译
func NewRootCommand(version, commit, buildDate string) *cobra.Command {
	opts := &rootOptions{}
	runOpts := &runOptions{}

	rootCmd := &cobra.Command{
		Use:   "mailtranslator [search-name]",
		Short: "將郵件翻譯成繁體中文並透過 Telegram 傳送",
		Long: `mailtranslator 依照保存的搜尋條件找到最新的一封郵件，
保護其中的連結後翻譯成繁體中文，校對後輸出 Markdown 報告並傳送到 Telegram。

支援的翻譯提供商:
  - google_free: Google 翻譯網頁端點（不需金鑰）
  - google: Google Cloud Translation v2
  - deepl: DeepL API
  - libretranslate: LibreTranslate
  - openai: OpenAI 相容模型`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, buildDate),
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(cmd, opts, runOpts, args)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.cfgFile, "config", "c", config.DefaultConfigFile, "配置文件路径")
	rootCmd.PersistentFlags().BoolVarP(&opts.debug, "debug", "d", false, "启用调试日志")
	addRunFlags(rootCmd, runOpts)

	rootCmd.AddCommand(
		newRunCommand(opts),
		newSearchCommand(opts),
		newTelegramCommand(opts),
		newAuthCommand(opts),
		newStatsCommand(opts),
		newHistoryCommand(opts),
		newVersionCommand(version, commit, buildDate),
	)

	return rootCmd
}

// loadConfig 加载配置并校验
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(o.cfgFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newVersionCommand(version, commit, buildDate string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "顯示版本資訊",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mailtranslator %s (commit %s, built %s)\n", version, commit, buildDate)
		},
	}
}
