package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/educrawler/internal/aggregator"
	"github.com/jmylchreest/educrawler/internal/config"
	"github.com/jmylchreest/educrawler/internal/portal"
	"github.com/jmylchreest/educrawler/internal/usage"
)

func newUsageCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Usage report commands",
	}

	var dir string
	download := &cobra.Command{
		Use:   "download",
		Short: "Download the usage report and print its rows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.crawl(cmd.Context(), func(ctx context.Context, cfg config.Config, c *aggregator.Crawl) error {
				if dir == "" {
					dir = cfg.DownloadDir
				}
				report := usage.New(c.Session.Page, usage.Config{
					Dir:          dir,
					PollInterval: cfg.PollInterval,
					SettleDelay:  cfg.SettleDelay,
					Timeout:      cfg.PanelTimeout,
					Selectors:    portal.DefaultSelectors(),
				})
				return render(cmd, a, report.Records(ctx), nil)
			})
		},
	}
	download.Flags().StringVar(&dir, "dir", "", "directory the report is saved into (default: download_dir)")

	cmd.AddCommand(download)
	return cmd
}
