// Package usage downloads the portal's usage report and parses it into
// records.
package usage

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/educrawler/internal/browser"
	"github.com/jmylchreest/educrawler/internal/failure"
	"github.com/jmylchreest/educrawler/internal/logger"
	"github.com/jmylchreest/educrawler/internal/model"
	"github.com/jmylchreest/educrawler/internal/outcome"
	"github.com/jmylchreest/educrawler/internal/portal"
	"github.com/jmylchreest/educrawler/internal/wait"
)

// partialSuffix marks a download Chrome has not finished writing.
const partialSuffix = ".crdownload"

var bom = []byte("\xef\xbb\xbf")

// Config holds download settings.
type Config struct {
	Dir          string        // Directory the report is saved into
	PollInterval time.Duration // Poll cadence while the usage control renders
	SettleDelay  time.Duration // Interval between checks for the finished file
	Timeout      time.Duration // Bound for each of the two waits
	Selectors    portal.Selectors
}

// Report downloads usage reports through an authenticated page.
type Report struct {
	page   browser.Page
	config Config
}

// New creates a Report reading through page.
func New(page browser.Page, cfg Config) *Report {
	return &Report{page: page, config: cfg}
}

// Path is where the downloaded report is saved.
func (r *Report) Path() string {
	return filepath.Join(r.config.Dir, portal.UsageFileName)
}

// Records downloads the report and parses it. Rows read before a malformed
// row are kept in a failed outcome.
func (r *Report) Records(ctx context.Context) outcome.Outcome[[]model.UsageRecord] {
	path, err := r.Download(ctx)
	if err != nil {
		return outcome.Fail[[]model.UsageRecord](err)
	}
	records, err := ReadFile(path)
	if err != nil {
		return outcome.Partial(records, err)
	}
	return outcome.Ok(records)
}

// Download opens the education overview, activates the usage download and
// waits until the report is written. It returns the report's path.
func (r *Report) Download(ctx context.Context) (string, error) {
	dl, ok := r.page.(browser.Downloader)
	if !ok {
		return "", errors.New("download usage: page cannot save downloads")
	}

	path := r.Path()
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("remove previous report: %w", err)
	}

	logger.Info("downloading usage report", "dir", r.config.Dir)
	if err := r.page.Open(ctx, portal.OverviewAddress); err != nil {
		return "", err
	}
	if err := dl.AllowDownloads(ctx, r.config.Dir); err != nil {
		return "", fmt.Errorf("allow downloads: %w", err)
	}

	control, err := browser.Await(ctx, r.page, wait.Options{
		Operation: "find usage download",
		Timeout:   r.config.Timeout,
		Interval:  r.config.PollInterval,
	}, r.config.Selectors.UsageDownload)
	if err != nil {
		return "", failure.Structural("download usage", portal.OverviewAddress, "usage download control not found", err)
	}

	start := time.Now()
	if err := control.Click(ctx); err != nil {
		return "", fmt.Errorf("download usage: %w", err)
	}

	size, err := wait.For(ctx, wait.Options{
		Operation: "wait for usage report",
		Timeout:   r.config.Timeout,
		Interval:  r.config.SettleDelay,
	}, func(context.Context) (int64, bool, error) {
		return complete(path)
	})
	if err != nil {
		return "", err
	}

	logger.Info("usage report downloaded",
		"path", path,
		"size", humanize.Bytes(uint64(size)),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return path, nil
}

// complete reports whether path exists, is non-empty and has no partial
// download beside it.
func complete(path string) (int64, bool, error) {
	if _, err := os.Stat(path + partialSuffix); err == nil {
		return 0, false, nil
	}
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return info.Size(), info.Size() > 0, nil
}

// ReadFile parses the report at path.
func ReadFile(path string) ([]model.UsageRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a usage report: a header row naming the fields followed by
// one row per usage line. Every row must have as many cells as the header.
func Parse(r io.Reader) ([]model.UsageRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	cr := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, bom)))
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, failure.Structural("parse usage", portal.UsageFileName, "empty usage report", nil)
	}
	if err != nil {
		return nil, failure.Structural("parse usage", portal.UsageFileName, "unreadable header", err)
	}

	var records []model.UsageRecord
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return records, failure.Structural("parse usage", portal.UsageFileName,
				fmt.Sprintf("row %d", len(records)+1), err)
		}
		records = append(records, model.UsageRecord{Fields: header, Cells: row})
	}
	logger.Debug("usage report parsed", "fields", len(header), "rows", len(records))
	return records, nil
}
