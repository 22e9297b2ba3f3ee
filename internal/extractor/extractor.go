// Package extractor reads the portal's leaf panels into typed records.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmylchreest/educrawler/internal/browser"
	"github.com/jmylchreest/educrawler/internal/failure"
	"github.com/jmylchreest/educrawler/internal/logger"
	"github.com/jmylchreest/educrawler/internal/model"
	"github.com/jmylchreest/educrawler/internal/outcome"
	"github.com/jmylchreest/educrawler/internal/portal"
	"github.com/jmylchreest/educrawler/internal/wait"
)

// Extractor reads records from the page.
type Extractor struct {
	page   browser.Page
	config Config
}

// Config holds extractor settings.
type Config struct {
	PollInterval time.Duration
	Timeout      time.Duration // Bound for each panel read
	Selectors    portal.Selectors
	Now          func() time.Time
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		PollInterval: wait.DefaultInterval,
		Timeout:      30 * time.Second,
		Selectors:    portal.DefaultSelectors(),
		Now:          time.Now,
	}
}

// Option configures the extractor.
type Option func(*Config)

// WithPolling sets the poll interval and the per-panel timeout.
func WithPolling(interval, timeout time.Duration) Option {
	return func(c *Config) {
		c.PollInterval = interval
		c.Timeout = timeout
	}
}

// WithSelectors overrides the DOM contract.
func WithSelectors(s portal.Selectors) Option {
	return func(c *Config) {
		c.Selectors = s
	}
}

// WithClock sets the source of crawl timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Config) {
		c.Now = now
	}
}

// New creates an Extractor reading from page.
func New(page browser.Page, opts ...Option) *Extractor {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Extractor{page: page, config: cfg}
}

func (x *Extractor) waitOpts(op string) wait.Options {
	return wait.Options{Operation: op, Timeout: x.config.Timeout, Interval: x.config.PollInterval}
}

// ReadCourses converts course-list rows into records. Rows without cells are
// skipped; missing trailing cells read as empty.
func (x *Extractor) ReadCourses(ctx context.Context, rows []browser.Element) ([]model.CourseRecord, error) {
	records := make([]model.CourseRecord, 0, len(rows))
	for _, row := range rows {
		cells, err := row.FindMany(ctx, x.config.Selectors.GridCell)
		if err != nil {
			return records, err
		}
		if len(cells) == 0 {
			continue
		}

		values := make([]string, 5)
		for i := 0; i < len(values) && i < len(cells); i++ {
			if values[i], err = cells[i].Text(ctx); err != nil {
				return records, err
			}
		}
		records = append(records, model.CourseRecord{
			Name:           values[0],
			AssignedCredit: values[1],
			Consumed:       values[2],
			Students:       values[3],
			ProjectGroups:  values[4],
		})
	}
	return records, nil
}

// handoutRow is one fully loaded row of the handout grid.
type handoutRow struct {
	name     string
	budget   string
	consumed string
	status   string
	link     browser.Element
}

// Handouts reads the open handout list of nav's lab and the subscription of
// every handout in it. When only is set, other handouts are skipped without
// opening their detail and reading stops after the first match.
//
// The list is accepted only once a full pass finds no placeholder values;
// a single loading row makes the whole pass retry, since rows can shift
// while others finish loading. An empty list must be read twice in a row.
func (x *Extractor) Handouts(ctx context.Context, nav model.NavigationContext, only string) outcome.Outcome[[]model.HandoutRecord] {
	log := logger.With("course", nav.Course, "lab", nav.Lab)

	// An empty grid may still be loading; accept it only when a second pass agrees.
	empty := 0
	rows, err := wait.For(ctx, x.waitOpts("handout consumption"), func(ctx context.Context) ([]handoutRow, bool, error) {
		rows, ok, err := x.readHandoutRows(ctx)
		if !ok || err != nil || len(rows) > 0 {
			empty = 0
			return rows, ok, err
		}
		empty++
		return rows, empty > 1, nil
	})
	if err != nil {
		log.Error("handout list did not load", "error", err)
		return outcome.Fail[[]model.HandoutRecord](fmt.Errorf("read handouts (%s): %w", nav, err))
	}
	log.Debug("handout list loaded", "handouts", len(rows))

	var records []model.HandoutRecord
	for _, row := range rows {
		if only != "" && row.name != only {
			continue
		}

		here := nav.WithHandout(row.name)
		if err := x.openHandout(ctx, row); err != nil {
			return outcome.Partial(records, fmt.Errorf("open handout (%s): %w", here, err))
		}

		sub, crawled, err := x.Subscription(ctx, here)
		if err != nil {
			log.Error("subscription details could not be read", "handout", row.name, "error", err)
			return outcome.Partial(records, err)
		}

		records = append(records, model.HandoutRecord{
			CourseName:             nav.Course,
			LabName:                nav.Lab,
			HandoutName:            row.name,
			HandoutBudget:          row.budget,
			HandoutConsumed:        row.consumed,
			HandoutStatus:          row.status,
			SubscriptionName:       sub.Name,
			SubscriptionID:         sub.ID,
			SubscriptionStatus:     sub.Status,
			SubscriptionExpiryDate: sub.ExpiryDate,
			SubscriptionUsers:      sub.Users,
			CrawlTimeUTC:           crawled,
		})
		log.Info("handout read", "handout", row.name)

		if only != "" {
			break
		}
	}
	return outcome.Ok(records)
}

// readHandoutRows is one pass over the handout grid.
func (x *Extractor) readHandoutRows(ctx context.Context) ([]handoutRow, bool, error) {
	sel := x.config.Selectors

	grid, err := x.page.FindOne(ctx, sel.HandoutGrid)
	if browser.IsTransient(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	els, err := grid.FindMany(ctx, sel.HandoutRow)
	if err != nil {
		return nil, false, transient(err)
	}

	rows := make([]handoutRow, 0, len(els))
	for _, el := range els {
		cells, err := el.FindMany(ctx, sel.GridCell)
		if err != nil {
			return nil, false, transient(err)
		}
		if len(cells) < portal.HandoutCells {
			logger.Trace("skipping handout row", "cells", len(cells))
			continue
		}

		link, err := cells[0].FindOne(ctx, sel.GridLink)
		if browser.IsTransient(err) {
			logger.Trace("skipping handout row without link")
			continue
		}
		if err != nil {
			return nil, false, err
		}

		texts, err := readTexts(ctx, link, cells[3], cells[4], cells[5])
		if err != nil {
			return nil, false, transient(err)
		}
		row := handoutRow{
			name:     texts[0],
			budget:   strings.ToLower(texts[1]),
			consumed: strings.ToLower(texts[2]),
			status:   strings.ToLower(texts[3]),
			link:     link,
		}
		if row.consumed == portal.Placeholder {
			logger.Trace("handout consumption still loading", "handout", row.name)
			return nil, false, nil
		}
		rows = append(rows, row)
	}
	return rows, true, nil
}

// openHandout clicks the row's link, relocating it by name if the grid
// re-rendered since the pass that found it.
func (x *Extractor) openHandout(ctx context.Context, row handoutRow) error {
	err := row.link.Click(ctx)
	if !errors.Is(err, browser.ErrStale) {
		return err
	}

	logger.Debug("handout link went stale, relocating", "handout", row.name)
	links, err := x.page.FindMany(ctx, x.config.Selectors.HandoutGrid+" "+x.config.Selectors.GridLink)
	if err != nil {
		return err
	}
	for _, link := range links {
		if text, err := link.Text(ctx); err == nil && text == row.name {
			return link.Click(ctx)
		}
	}
	return fmt.Errorf("handout link %q: %w", row.name, browser.ErrNotFound)
}

// Subscription polls the open handout detail panel until it shows the
// subscription of nav.Handout with at least one user, and returns it with the
// UTC time the successful read started. A panel that keeps showing another
// subscription fails with an identity mismatch; no record is substituted.
func (x *Extractor) Subscription(ctx context.Context, nav model.NavigationContext) (model.Subscription, time.Time, error) {
	sel := x.config.Selectors
	var (
		crawled  time.Time
		lastSeen string
	)

	sub, err := wait.For(ctx, x.waitOpts("handout details"), func(ctx context.Context) (model.Subscription, bool, error) {
		crawled = x.config.Now().UTC()

		name, err := browser.TextOf(ctx, x.page, sel.SubscriptionName)
		if err != nil {
			return model.Subscription{}, false, transient(err)
		}
		lastSeen = name
		if name != nav.Handout {
			return model.Subscription{}, false, nil
		}

		id, err := browser.TextOf(ctx, x.page, sel.SubscriptionID)
		if err != nil {
			return model.Subscription{}, false, transient(err)
		}
		statusData, err := x.page.FindMany(ctx, sel.SubscriptionStatus)
		if err != nil {
			return model.Subscription{}, false, transient(err)
		}
		userEls, err := x.page.FindMany(ctx, sel.UserEmail)
		if err != nil {
			return model.Subscription{}, false, transient(err)
		}
		if len(statusData) < 2 || len(userEls) == 0 {
			return model.Subscription{}, false, nil
		}

		status, err := readTexts(ctx, statusData[0], statusData[1])
		if err != nil {
			return model.Subscription{}, false, transient(err)
		}
		users, err := readTexts(ctx, userEls...)
		if err != nil {
			return model.Subscription{}, false, transient(err)
		}

		return model.Subscription{
			Name:       name,
			ID:         id,
			Status:     status[0],
			ExpiryDate: ParseExpiry(status[1]),
			Users:      users,
		}, true, nil
	})

	if err != nil {
		if wait.IsTimeout(err) && lastSeen != "" && lastSeen != nav.Handout {
			return model.Subscription{}, time.Time{}, failure.IdentityMismatch("read handout details", nav.String(), nav.Handout, lastSeen, err)
		}
		return model.Subscription{}, time.Time{}, fmt.Errorf("read handout details (%s): %w", nav, err)
	}
	return sub, crawled, nil
}

// ParseExpiry converts the portal's expiry text ("Mar 4, 2022") to
// YYYY-MM-DD. Unparseable text yields "".
func ParseExpiry(text string) string {
	t, err := time.Parse(portal.ExpiryLayout, strings.TrimSpace(text))
	if err != nil {
		return ""
	}
	return t.Format(portal.ExpiryOutputLayout)
}

func readTexts(ctx context.Context, els ...browser.Element) ([]string, error) {
	texts := make([]string, len(els))
	for i, el := range els {
		text, err := el.Text(ctx)
		if err != nil {
			return nil, err
		}
		texts[i] = text
	}
	return texts, nil
}

// transient swallows not-yet-rendered errors so the poll retries.
func transient(err error) error {
	if browser.IsTransient(err) {
		return nil
	}
	return err
}
