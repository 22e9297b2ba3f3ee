package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/educrawler/internal/aggregator"
	"github.com/jmylchreest/educrawler/internal/config"
	"github.com/jmylchreest/educrawler/internal/logger"
	"github.com/jmylchreest/educrawler/internal/model"
)

func newHandoutCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "handout",
		Short: "Handout commands",
	}

	var filter model.Filter
	list := &cobra.Command{
		Use:   "list",
		Short: "List handouts with their subscription details",
		Long: `List the handouts of every course, or of one course, lab or handout.

Lab names match regardless of case; course and handout names must match
exactly. --lab and --handout require --course.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.ValidateFilter(filter); err != nil {
				return err
			}
			logger.Debug("handout filter", "course", filter.Course, "lab", filter.Lab, "handout", filter.Handout)

			return a.crawl(cmd.Context(), func(ctx context.Context, _ config.Config, c *aggregator.Crawl) error {
				return render(cmd, a, c.Run(ctx, filter), model.HandoutRecord{}.Header())
			})
		},
	}
	flags := list.Flags()
	flags.StringVarP(&filter.Course, "course", "c", "", "course name")
	flags.StringVarP(&filter.Lab, "lab", "l", "", "lab name")
	flags.StringVar(&filter.Handout, "handout", "", "handout name")

	cmd.AddCommand(list)
	return cmd
}
