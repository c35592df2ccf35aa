package cli

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/nerdneilsfield/mail-translator/internal/config"
)

func newSearchCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search",
		Short: "管理保存的搜尋條件",
	}
	cmd.AddCommand(
		newSearchListCommand(root),
		newSearchAddCommand(root),
		newSearchRemoveCommand(root),
		newSearchDefaultCommand(root),
	)
	return cmd
}

// bindCriteriaFlags 注册搜索条件标志
func bindCriteriaFlags(cmd *cobra.Command, c *config.SearchCriteria) {
	cmd.Flags().StringVar(&c.Subject, "subject", "", "主旨关键字")
	cmd.Flags().StringVar(&c.Sender, "sender", "", "寄件者地址")
	cmd.Flags().StringVar(&c.DateAfter, "after", "", "起始日期 (YYYY/MM/DD)")
}

func newSearchListCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "列出保存的搜尋條件",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetTitle("📋 搜尋條件")
			t.AppendHeader(table.Row{"Name", "Subject", "Sender", "After"})

			def := cfg.EmailSearch.DefaultCriteria
			t.AppendRow(table.Row{"(default)", truncate(def.Subject, 40), def.Sender, def.DateAfter})
			t.AppendSeparator()
			for _, name := range cfg.SearchNames() {
				c := cfg.EmailSearch.SavedSearches[name]
				t.AppendRow(table.Row{name, truncate(c.Subject, 40), c.Sender, c.DateAfter})
			}

			t.SetStyle(table.StyleLight)
			t.Render()
			return nil
		},
	}
}

func newSearchAddCommand(root *rootOptions) *cobra.Command {
	var criteria config.SearchCriteria
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "新增或覆蓋搜尋條件",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.AddSearch(args[0], criteria); err != nil {
				return err
			}
			if err := config.SaveConfig(cfg, root.cfgFile); err != nil {
				return err
			}
			newPrinter(cmd.OutOrStdout()).success("已保存搜尋條件 %q: %s", args[0], describeCriteria(criteria))
			return nil
		},
	}
	bindCriteriaFlags(cmd, &criteria)
	return cmd
}

func newSearchRemoveCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm"},
		Short:   "刪除搜尋條件",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.RemoveSearch(args[0]); err != nil {
				return err
			}
			if err := config.SaveConfig(cfg, root.cfgFile); err != nil {
				return err
			}
			newPrinter(cmd.OutOrStdout()).success("已刪除搜尋條件 %q", args[0])
			return nil
		},
	}
}

func newSearchDefaultCommand(root *rootOptions) *cobra.Command {
	var criteria config.SearchCriteria
	cmd := &cobra.Command{
		Use:   "default",
		Short: "設定預設搜尋條件",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.SetDefaultCriteria(criteria); err != nil {
				return err
			}
			if err := config.SaveConfig(cfg, root.cfgFile); err != nil {
				return err
			}
			newPrinter(cmd.OutOrStdout()).success("已更新預設搜尋條件: %s", describeCriteria(criteria))
			return nil
		},
	}
	bindCriteriaFlags(cmd, &criteria)
	return cmd
}
