package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/educrawler/internal/aggregator"
	"github.com/jmylchreest/educrawler/internal/config"
	"github.com/jmylchreest/educrawler/internal/model"
)

func newCourseCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "course",
		Short: "Course commands",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the courses with their credit, consumption and enrolment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.crawl(cmd.Context(), func(ctx context.Context, _ config.Config, c *aggregator.Crawl) error {
				return render(cmd, a, c.Courses(ctx), model.CourseRecord{}.Header())
			})
		},
	})
	return cmd
}
