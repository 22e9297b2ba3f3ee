package aggregator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/jmylchreest/educrawler/internal/browser/browsertest"
	"github.com/jmylchreest/educrawler/internal/failure"
	"github.com/jmylchreest/educrawler/internal/model"
	"github.com/jmylchreest/educrawler/internal/outcome"
)

// stubWalker serves one record per course and fails the courses in fail,
// keeping the failing course's record as partial data.
type stubWalker struct {
	courses []string
	listErr error
	fail    map[string]error
	visited []string
}

func (w *stubWalker) Courses(ctx context.Context) outcome.Outcome[[]model.CourseRecord] {
	if w.listErr != nil {
		return outcome.Fail[[]model.CourseRecord](w.listErr)
	}
	recs := make([]model.CourseRecord, len(w.courses))
	for i, c := range w.courses {
		recs[i] = model.CourseRecord{Name: c}
	}
	return outcome.Ok(recs)
}

func (w *stubWalker) CourseHandouts(ctx context.Context, f model.Filter) outcome.Outcome[[]model.HandoutRecord] {
	w.visited = append(w.visited, f.Course)
	recs := []model.HandoutRecord{{CourseName: f.Course, HandoutName: f.Course + "-h"}}
	if err := w.fail[f.Course]; err != nil {
		return outcome.Partial(recs, err)
	}
	return outcome.Ok(recs)
}

func courseNames(records []model.HandoutRecord) []string {
	names := make([]string, len(records))
	for i, r := range records {
		names[i] = r.CourseName
	}
	return names
}

func TestRun_AllCoursesInOrder(t *testing.T) {
	w := &stubWalker{courses: []string{"a", "b", "c"}}

	out := New(w).Run(context.Background(), model.Filter{})

	got, ok := out.Value()
	if !ok {
		t.Fatalf("Run() failed: %v", out.Err())
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, courseNames(got)); diff != "" {
		t.Errorf("Run() mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_PrefixPreservingOnFailure(t *testing.T) {
	for k := 1; k <= 4; k++ {
		courses := []string{"c1", "c2", "c3", "c4"}
		failing := courses[k-1]
		w := &stubWalker{courses: courses, fail: map[string]error{failing: errors.New("boom")}}

		out := New(w).Run(context.Background(), model.Filter{})

		if out.Succeeded() {
			t.Fatalf("k=%d: Run() should fail", k)
		}
		if diff := cmp.Diff(courses[:k-1], courseNames(out.Gathered()), cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("k=%d: gathered mismatch (-want +got):\n%s", k, diff)
		}
		if diff := cmp.Diff(courses[:k], w.visited); diff != "" {
			t.Errorf("k=%d: courses after the failure must not be visited (-want +got):\n%s", k, diff)
		}
		if _, ok := out.Value(); ok {
			t.Errorf("k=%d: Value() must not expose partial data", k)
		}
	}
}

func TestRun_SingleCourseFilter(t *testing.T) {
	w := &stubWalker{listErr: errors.New("list must not be read")}

	out := New(w).Run(context.Background(), model.Filter{Course: "b", Lab: "x"})

	if !out.Succeeded() {
		t.Fatalf("Run() failed: %v", out.Err())
	}
	if diff := cmp.Diff([]string{"b"}, w.visited); diff != "" {
		t.Errorf("visited mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_CourseListFails(t *testing.T) {
	w := &stubWalker{listErr: errors.New("timeout")}

	out := New(w).Run(context.Background(), model.Filter{})

	if out.Succeeded() || len(out.Gathered()) != 0 {
		t.Errorf("Run() = %v, %v", out.Gathered(), out.Err())
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := New(&stubWalker{courses: []string{"a"}}).Run(ctx, model.Filter{})

	if !errors.Is(out.Err(), context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", out.Err())
	}
}

func testSettings() Settings {
	return Settings{
		Email:        "educator@uni.ac.uk",
		Password:     "hunter2",
		PollInterval: time.Millisecond,
		PanelTimeout: 100 * time.Millisecond,
		MFATimeout:   100 * time.Millisecond,
	}
}

func TestStart_CrawlsPortal(t *testing.T) {
	p := &browsertest.Portal{Email: "educator@uni.ac.uk", Password: "hunter2", Courses: browsertest.SampleCourses()}

	started := Start(context.Background(), p, testSettings())
	crawl, ok := started.Value()
	if !ok {
		t.Fatalf("Start() failed: %v", started.Err())
	}
	defer crawl.Close()

	out := crawl.Run(context.Background(), model.Filter{})
	got, ok := out.Value()
	if !ok {
		t.Fatalf("Run() failed: %v", out.Err())
	}

	want := []string{"uahandout1", "uahandout2", "uahandout3", "dshandout1"}
	names := make([]string, len(got))
	for i, r := range got {
		names[i] = r.HandoutName
	}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("Run() mismatch (-want +got):\n%s", diff)
	}

	if err := crawl.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if !p.Closed() {
		t.Error("page should be closed")
	}
}

func TestStart_FailsOnLaterCourseKeepsPrefix(t *testing.T) {
	courses := browsertest.SampleCourses()
	courses[1].Labs[0].NoMore = true
	p := &browsertest.Portal{Email: "educator@uni.ac.uk", Password: "hunter2", Courses: courses}

	crawl, ok := Start(context.Background(), p, testSettings()).Value()
	if !ok {
		t.Fatal("Start() failed")
	}
	defer crawl.Close()

	out := crawl.Run(context.Background(), model.Filter{})

	if !errors.Is(out.Err(), failure.ErrStructural) {
		t.Fatalf("error = %v, want structural failure", out.Err())
	}
	for _, r := range out.Gathered() {
		if r.CourseName != "Urban analytics" {
			t.Errorf("unexpected record from %q", r.CourseName)
		}
	}
	if len(out.Gathered()) != 3 {
		t.Errorf("gathered %d records, want 3", len(out.Gathered()))
	}
}

func TestStart_CredentialError(t *testing.T) {
	p := &browsertest.Portal{Email: "educator@uni.ac.uk", Password: "other"}

	out := Start(context.Background(), p, testSettings())

	if !errors.Is(out.Err(), failure.ErrCredential) {
		t.Fatalf("error = %v, want credential error", out.Err())
	}
	if !p.Closed() {
		t.Error("page should be torn down")
	}
}
