package cli

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/nerdneilsfield/mail-translator/internal/history"
	"github.com/nerdneilsfield/mail-translator/pkg/providers/stats"
)

// newStatsCommand 查看翻译提供商统计
func newStatsCommand(root *rootOptions) *cobra.Command {
	var reset bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "查看翻譯提供商統計",
		Long: `查看各翻譯提供商的請求數、成功率、連結標記保留率、延遲和錯誤類型。

Examples:
  # 顯示統計
  mailtranslator stats

  # 清除統計
  mailtranslator stats --reset`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			path := cfg.Translation.StatsFile

			if reset {
				if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("failed to reset statistics: %w", err)
				}
				newPrinter(cmd.OutOrStdout()).success("統計資料已清除")
				return nil
			}

			sm := stats.NewStatsManager(path, nil)
			if err := sm.Load(); err != nil {
				return err
			}
			sm.PrintStatsTable(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "清除所有统计")
	return cmd
}

// newHistoryCommand 查看已处理的邮件
func newHistoryCommand(root *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "查看已處理的郵件",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if cfg.HistoryDB == "" {
				return fmt.Errorf("history database is not configured")
			}

			store, err := history.Open(cfg.HistoryDB)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "尚無處理記錄。")
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetTitle("📬 處理記錄")
			t.AppendHeader(table.Row{"Time", "Subject", "Delivered", "Report"})
			for _, r := range records {
				delivered := "no"
				if r.Delivered {
					delivered = "yes"
				}
				t.AppendRow(table.Row{formatTime(r.ProcessedAt), truncate(r.Subject, 40), delivered, r.ReportPath})
			}
			t.SetStyle(table.StyleLight)
			t.Render()
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "显示的记录数")
	return cmd
}
