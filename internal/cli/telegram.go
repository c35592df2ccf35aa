package cli

import (
	"github.com/spf13/cobra"

	"github.com/nerdneilsfield/mail-translator/internal/config"
	"github.com/nerdneilsfield/mail-translator/internal/telegram"
)

func newTelegramCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "telegram",
		Short: "管理 Telegram 設定",
	}

	setCmd := &cobra.Command{
		Use:   "set <bot-token> <chat-id>",
		Short: "保存 Bot Token 和 Chat ID",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			cfg.Telegram.BotToken = args[0]
			cfg.Telegram.ChatID = args[1]
			if err := config.SaveConfig(cfg, root.cfgFile); err != nil {
				return err
			}
			newPrinter(cmd.OutOrStdout()).success("Telegram 設定已保存")
			return nil
		},
	}

	testCmd := &cobra.Command{
		Use:   "test",
		Short: "傳送一則測試訊息",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPrinter(cmd.OutOrStdout())
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if !cfg.TelegramConfigured() {
				p.fail("Telegram 尚未設定，請執行 mailtranslator telegram set <bot-token> <chat-id>")
				return telegram.ErrDelivery
			}

			bot := telegram.New(cfg.Telegram.BotToken)
			if err := bot.SendMessage(cmd.Context(), cfg.Telegram.ChatID, "🔔 mailtranslator 測試訊息"); err != nil {
				p.fail("Telegram 傳送失敗: %v", err)
				return err
			}
			p.success("測試訊息已傳送")
			return nil
		},
	}

	cmd.AddCommand(setCmd, testCmd)
	return cmd
}
