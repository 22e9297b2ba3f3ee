// Package aggregator runs crawls across courses and merges their records
// into one ordered dataset.
package aggregator

import (
	"context"
	"fmt"

	"github.com/jmylchreest/educrawler/internal/logger"
	"github.com/jmylchreest/educrawler/internal/model"
	"github.com/jmylchreest/educrawler/internal/outcome"
)

// Walker is the navigation the aggregator drives.
type Walker interface {
	Courses(ctx context.Context) outcome.Outcome[[]model.CourseRecord]
	CourseHandouts(ctx context.Context, filter model.Filter) outcome.Outcome[[]model.HandoutRecord]
}

// Aggregator merges per-course results.
type Aggregator struct {
	walker Walker
}

// New creates an Aggregator over w.
func New(w Walker) *Aggregator {
	return &Aggregator{walker: w}
}

// Courses returns the course list.
func (a *Aggregator) Courses(ctx context.Context) outcome.Outcome[[]model.CourseRecord] {
	return a.walker.Courses(ctx)
}

// Run collects the handouts of every listed course, or of filter.Course
// alone when set, in portal order. It stops at the first failing course and
// returns the records of the courses before it as a partial outcome; the
// failing course contributes nothing.
func (a *Aggregator) Run(ctx context.Context, filter model.Filter) outcome.Outcome[[]model.HandoutRecord] {
	courses, err := a.targets(ctx, filter)
	if err != nil {
		return outcome.Fail[[]model.HandoutRecord](err)
	}

	var records []model.HandoutRecord
	for i, course := range courses {
		if err := ctx.Err(); err != nil {
			return outcome.Partial(records, err)
		}

		logger.Info("crawling course", "course", course, "index", i+1, "of", len(courses))
		f := filter
		f.Course = course
		out := a.walker.CourseHandouts(ctx, f)
		if !out.Succeeded() {
			logger.Error("course failed, stopping", "course", course, "records", len(records), "error", out.Err())
			return outcome.Partial(records, out.Err())
		}
		records = append(records, out.Gathered()...)
	}

	logger.Info("crawl complete", "courses", len(courses), "records", len(records))
	return outcome.Ok(records)
}

func (a *Aggregator) targets(ctx context.Context, filter model.Filter) ([]string, error) {
	if filter.Course != "" {
		return []string{filter.Course}, nil
	}

	out := a.walker.Courses(ctx)
	list, ok := out.Value()
	if !ok {
		return nil, fmt.Errorf("list courses: %w", out.Err())
	}
	names := make([]string, 0, len(list))
	for _, c := range list {
		if c.Name != "" {
			names = append(names, c.Name)
		}
	}
	return names, nil
}
