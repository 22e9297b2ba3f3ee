package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/educrawler/internal/aggregator"
	"github.com/jmylchreest/educrawler/internal/config"
	"github.com/jmylchreest/educrawler/internal/logger"
	"github.com/jmylchreest/educrawler/internal/outcome"
	"github.com/jmylchreest/educrawler/internal/output"
)

// crawl signs in and runs fn on the authenticated crawl. The session is
// closed when fn returns.
func (a *app) crawl(ctx context.Context, fn func(ctx context.Context, cfg config.Config, c *aggregator.Crawl) error) error {
	cfg, err := a.config()
	if err != nil {
		return err
	}

	started := aggregator.Start(ctx, a.newLauncher(cfg.Browser()), cfg.Settings())
	c, ok := started.Value()
	if !ok {
		logger.Error("sign-in failed", "error", started.Err())
		return started.Err()
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Warn("failed to close browser", "error", err)
		}
	}()

	return fn(ctx, cfg, c)
}

// render writes every gathered record, including those of a failed outcome,
// and then reports the failure.
func render[T output.Row](cmd *cobra.Command, a *app, out outcome.Outcome[[]T], header []string) error {
	records := out.Gathered()
	if err := write(cmd, a, records, header); err != nil {
		return err
	}
	if !out.Succeeded() {
		logger.Error("crawl incomplete", "records", len(records), "error", out.Err())
		return fmt.Errorf("crawl stopped after %d records: %w", len(records), out.Err())
	}
	return nil
}

// write renders records in the chosen format to --output, stdout, or the
// default CSV file.
func write[T output.Row](cmd *cobra.Command, a *app, records []T, header []string) error {
	flags := cmd.Root().PersistentFlags()
	formatStr, _ := flags.GetString("output-format")
	format, err := output.ParseFormat(formatStr)
	if err != nil {
		return err
	}

	path, _ := flags.GetString("output")
	if path == "" && format == output.FormatCSV {
		path = output.DefaultCSVName(a.now())
	}

	var dst io.Writer = cmd.OutOrStdout()
	if path != "" {
		f, err := os.Create(path) //#nosec G304 -- CLI tool writes to user-specified output file
		if err != nil {
			logger.Error("failed to create output file", "path", path, "error", err)
			return err
		}
		defer func() { _ = f.Close() }()
		dst = f
	}

	w, err := output.NewWriter(dst, format, output.WithHeader(header))
	if err != nil {
		return err
	}
	if err := output.WriteAll(w, records); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	if path != "" {
		logger.Info("output written", "path", path, "format", format)
	}
	return nil
}
