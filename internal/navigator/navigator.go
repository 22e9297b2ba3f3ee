// Package navigator walks the portal's panel hierarchy:
// course list -> course -> lab -> handout list.
//
// Each level opens its panel, waits for the panel's marker, verifies that
// the panel shows the requested target, and then descends or extracts.
package navigator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmylchreest/educrawler/internal/browser"
	"github.com/jmylchreest/educrawler/internal/extractor"
	"github.com/jmylchreest/educrawler/internal/failure"
	"github.com/jmylchreest/educrawler/internal/logger"
	"github.com/jmylchreest/educrawler/internal/model"
	"github.com/jmylchreest/educrawler/internal/outcome"
	"github.com/jmylchreest/educrawler/internal/portal"
	"github.com/jmylchreest/educrawler/internal/wait"
)

// Config holds navigator settings.
type Config struct {
	PollInterval time.Duration
	Timeout      time.Duration // Bound for each panel to render
	SettleDelay  time.Duration // Fixed delay after opening a course or lab
	Selectors    portal.Selectors
}

// Navigator drives one page through the hierarchy.
type Navigator struct {
	page    browser.Page
	extract *extractor.Extractor
	config  Config
}

// New creates a Navigator. Records are read with x, which must read from page.
func New(page browser.Page, x *extractor.Extractor, cfg Config) *Navigator {
	return &Navigator{page: page, extract: x, config: cfg}
}

func (n *Navigator) waitOpts(op string) wait.Options {
	return wait.Options{Operation: op, Timeout: n.config.Timeout, Interval: n.config.PollInterval}
}

// CourseRows opens the course list and waits until at least one row renders.
func (n *Navigator) CourseRows(ctx context.Context) ([]browser.Element, error) {
	logger.Info("getting the list of courses")
	if err := n.page.Open(ctx, portal.CoursesAddress); err != nil {
		return nil, err
	}
	rows, err := browser.AwaitAll(ctx, n.page, n.waitOpts("load course list"), n.config.Selectors.CourseRow)
	if err != nil {
		return nil, err
	}
	logger.Info("course list loaded", "courses", len(rows))
	return rows, nil
}

// Courses reads every row of the course list.
func (n *Navigator) Courses(ctx context.Context) outcome.Outcome[[]model.CourseRecord] {
	rows, err := n.CourseRows(ctx)
	if err != nil {
		return outcome.Fail[[]model.CourseRecord](err)
	}
	return outcome.From(n.extract.ReadCourses(ctx, rows))
}

// CourseHandouts reads the handouts of filter.Course, restricted to
// filter.Lab and filter.Handout when set. Lab names are compared
// case-insensitively; handout names exactly.
//
// A failure in any lab stops the walk; the records of earlier labs are kept
// in the partial outcome.
func (n *Navigator) CourseHandouts(ctx context.Context, filter model.Filter) outcome.Outcome[[]model.HandoutRecord] {
	nav := model.NavigationContext{Course: filter.Course}
	log := logger.With("course", filter.Course)
	log.Info("looking for course details")

	if err := n.openCourse(ctx, filter.Course); err != nil {
		return outcome.Fail[[]model.HandoutRecord](err)
	}

	links, err := n.labLinks(ctx, nav)
	if err != nil {
		return outcome.Fail[[]model.HandoutRecord](err)
	}

	wantLab := strings.ToLower(filter.Lab)
	var (
		records  []model.HandoutRecord
		labFound bool
	)
	for _, link := range links {
		name, err := link.Text(ctx)
		if err != nil {
			return outcome.Partial(records, fmt.Errorf("read lab name (%s): %w", nav, err))
		}
		name = strings.ToLower(name)
		if wantLab != "" && name != wantLab {
			continue
		}

		here := nav.WithLab(name)
		lab := n.openLab(ctx, here, link, filter.Handout)
		got := lab.Gathered()
		records = append(records, got...)
		if !lab.Succeeded() {
			return outcome.Partial(records, lab.Err())
		}

		if wantLab != "" {
			labFound = true
			break
		}
		if filter.Handout != "" && len(got) > 0 {
			break
		}
	}

	switch {
	case wantLab != "" && !labFound:
		log.Error("lab not found", "lab", filter.Lab)
		return outcome.Partial(records, failure.NotFound("select lab", nav.String(), fmt.Sprintf("lab %q", filter.Lab)))
	case filter.Handout != "" && len(records) == 0:
		log.Error("handout not found", "handout", filter.Handout)
		return outcome.Partial(records, failure.NotFound("select handout", nav.String(), fmt.Sprintf("handout %q", filter.Handout)))
	}

	log.Info("finished course", "handouts", len(records))
	return outcome.Ok(records)
}

// openCourse selects course in the course list and waits for its overview.
func (n *Navigator) openCourse(ctx context.Context, course string) error {
	sel := n.config.Selectors

	rows, err := n.CourseRows(ctx)
	if err != nil {
		return err
	}

	var target browser.Element
	for _, row := range rows {
		cells, err := row.FindMany(ctx, sel.GridCell)
		if err != nil {
			return err
		}
		if len(cells) == 0 {
			continue
		}
		name, err := cells[0].Text(ctx)
		if err != nil {
			return err
		}
		if name == course {
			target = cells[0]
			break
		}
	}
	if target == nil {
		logger.Error("course not found", "course", course)
		return failure.NotFound("select course", course, fmt.Sprintf("course %q", course))
	}

	logger.Info("loading course", "course", course)
	if err := target.Click(ctx); err != nil {
		return fmt.Errorf("select course (%s): %w", course, err)
	}

	titleEl, err := browser.Await(ctx, n.page, n.waitOpts("load course overview"), sel.CourseTitle)
	if err != nil {
		return fmt.Errorf("load course (%s): %w", course, err)
	}
	title, err := titleEl.Text(ctx)
	if err != nil {
		return fmt.Errorf("load course (%s): %w", course, err)
	}
	if title != course {
		logger.Error("loaded course does not match", "course", course, "title", title)
		return failure.IdentityMismatch("load course", course, course, title, nil)
	}
	logger.Debug("course overview loaded", "course", course)
	return nil
}

// labLinks returns the lab links of the open course overview.
func (n *Navigator) labLinks(ctx context.Context, nav model.NavigationContext) ([]browser.Element, error) {
	if err := wait.Settle(ctx, n.config.SettleDelay, "course overview"); err != nil {
		return nil, err
	}
	grid, err := browser.Await(ctx, n.page, n.waitOpts("load lab list"), n.config.Selectors.LabGrid)
	if err != nil {
		return nil, failure.Structural("list labs", nav.String(), "lab grid not found", err)
	}
	links, err := grid.FindMany(ctx, n.config.Selectors.GridLink)
	if err != nil {
		return nil, err
	}
	logger.Info("labs found", "course", nav.Course, "labs", len(links))
	return links, nil
}

// openLab opens the lab behind link, expands its handout list and reads it.
func (n *Navigator) openLab(ctx context.Context, nav model.NavigationContext, link browser.Element, handout string) outcome.Outcome[[]model.HandoutRecord] {
	sel := n.config.Selectors
	log := logger.With("course", nav.Course, "lab", nav.Lab)
	fail := outcome.Fail[[]model.HandoutRecord]

	log.Info("loading lab")
	if err := link.Click(ctx); err != nil {
		return fail(fmt.Errorf("select lab (%s): %w", nav, err))
	}
	if err := wait.Settle(ctx, n.config.SettleDelay, "lab blade"); err != nil {
		return fail(err)
	}

	more, err := browser.Await(ctx, n.page, n.waitOpts("find more button"), sel.MoreHandouts)
	if err != nil {
		log.Error("more button not found", "error", err)
		return fail(failure.Structural("open lab", nav.String(), "more button not found", err))
	}
	if err := more.Click(ctx); err != nil {
		return fail(fmt.Errorf("expand handouts (%s): %w", nav, err))
	}

	if _, err := browser.Await(ctx, n.page, n.waitOpts("load handout list"), sel.HandoutGrid); err != nil {
		log.Error("handout list did not load", "error", err)
		return fail(fmt.Errorf("load handout list (%s): %w", nav, err))
	}
	if err := n.verifyDepth(ctx, nav); err != nil {
		return fail(err)
	}

	log.Info("getting handout details")
	return n.extract.Handouts(ctx, nav, handout)
}

// verifyDepth requires exactly portal.HandoutListDepth open blades, so data
// is never read from a panel other than the one the walk believes is open.
func (n *Navigator) verifyDepth(ctx context.Context, nav model.NavigationContext) error {
	titles, err := n.page.FindMany(ctx, n.config.Selectors.BladeTitle)
	if err != nil {
		return err
	}
	if len(titles) == portal.HandoutListDepth {
		return nil
	}

	summary := browser.Summarize(ctx, n.page, n.config.Selectors.BladeTitle)
	logger.Error("unexpected blade depth",
		"course", nav.Course,
		"lab", nav.Lab,
		"want", portal.HandoutListDepth,
		"got", len(titles))
	logger.Debug("page at depth failure", "page", summary.String())

	return failure.Structural("verify depth", nav.String(),
		fmt.Sprintf("expected depth %d, current depth %d", portal.HandoutListDepth, len(titles)), nil)
}
