package navigator

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/jmylchreest/educrawler/internal/browser/browsertest"
	"github.com/jmylchreest/educrawler/internal/extractor"
	"github.com/jmylchreest/educrawler/internal/failure"
	"github.com/jmylchreest/educrawler/internal/model"
	"github.com/jmylchreest/educrawler/internal/portal"
)

func newTestPortal(courses []browsertest.Course) *browsertest.Portal {
	p := &browsertest.Portal{Courses: courses}
	p.Authenticate()
	return p
}

func newTestNavigator(p *browsertest.Portal) *Navigator {
	x := extractor.New(p, extractor.WithPolling(time.Millisecond, 100*time.Millisecond))
	return New(p, x, Config{
		PollInterval: time.Millisecond,
		Timeout:      100 * time.Millisecond,
		Selectors:    portal.DefaultSelectors(),
	})
}

func handoutNames(records []model.HandoutRecord) []string {
	names := make([]string, len(records))
	for i, r := range records {
		names[i] = r.LabName + "/" + r.HandoutName
	}
	return names
}

func TestCourses(t *testing.T) {
	p := newTestPortal(browsertest.SampleCourses())
	p.CourseListPolls = 3

	out := newTestNavigator(p).Courses(context.Background())

	got, ok := out.Value()
	if !ok {
		t.Fatalf("Courses() failed: %v", out.Err())
	}
	want := []model.CourseRecord{
		{Name: "Urban analytics", AssignedCredit: "100", Consumed: "10", Students: "5", ProjectGroups: "1"},
		{Name: "Data science", AssignedCredit: "200", Consumed: "20", Students: "8", ProjectGroups: "2"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Courses() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{portal.CoursesAddress}, p.Opened()); diff != "" {
		t.Errorf("Opened() mismatch (-want +got):\n%s", diff)
	}
}

func TestCourses_ListNeverRenders(t *testing.T) {
	p := newTestPortal(nil)

	out := newTestNavigator(p).Courses(context.Background())

	if out.Succeeded() {
		t.Fatal("Courses() should fail")
	}
	if !errors.Is(out.Err(), failure.ErrTimeout) {
		t.Errorf("error = %v, want timeout", out.Err())
	}
}

func TestCourseHandouts_AllLabs(t *testing.T) {
	p := newTestPortal(browsertest.SampleCourses())

	out := newTestNavigator(p).CourseHandouts(context.Background(), model.Filter{Course: "Urban analytics"})

	got, ok := out.Value()
	if !ok {
		t.Fatalf("CourseHandouts() failed: %v", out.Err())
	}
	want := []string{"week 1/uahandout1", "week 1/uahandout2", "week 2/uahandout3"}
	if diff := cmp.Diff(want, handoutNames(got)); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
	for _, r := range got {
		if r.CourseName != "Urban analytics" || r.SubscriptionName != r.HandoutName {
			t.Errorf("bad record %+v", r)
		}
	}
}

func TestCourseHandouts_CourseNotFound(t *testing.T) {
	p := newTestPortal(browsertest.SampleCourses())

	out := newTestNavigator(p).CourseHandouts(context.Background(), model.Filter{Course: "Astrophysics"})

	if !errors.Is(out.Err(), failure.ErrNotFound) {
		t.Fatalf("error = %v, want not found", out.Err())
	}
	if !strings.Contains(out.Err().Error(), "Astrophysics") {
		t.Errorf("error should name the course: %v", out.Err())
	}
	if len(p.Clicks()) != 0 {
		t.Errorf("Clicks() = %v", p.Clicks())
	}
}

func TestCourseHandouts_LoadedWrongCourse(t *testing.T) {
	courses := browsertest.SampleCourses()
	courses[0].Title = "Data science"
	p := newTestPortal(courses)

	out := newTestNavigator(p).CourseHandouts(context.Background(), model.Filter{Course: "Urban analytics"})

	if !errors.Is(out.Err(), failure.ErrIdentityMismatch) {
		t.Fatalf("error = %v, want identity mismatch", out.Err())
	}
	if len(out.Gathered()) != 0 {
		t.Error("no records expected")
	}
}

func TestCourseHandouts_LabFilterIgnoresCase(t *testing.T) {
	p := newTestPortal(browsertest.SampleCourses())

	out := newTestNavigator(p).CourseHandouts(context.Background(),
		model.Filter{Course: "Urban analytics", Lab: "WEEK 2"})

	got, ok := out.Value()
	if !ok {
		t.Fatalf("CourseHandouts() failed: %v", out.Err())
	}
	if diff := cmp.Diff([]string{"week 2/uahandout3"}, handoutNames(got)); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
	if slices.Contains(p.Clicks(), "lab:0:0") {
		t.Error("labs outside the filter must not be opened")
	}
}

func TestCourseHandouts_LabNotFound(t *testing.T) {
	p := newTestPortal(browsertest.SampleCourses())

	out := newTestNavigator(p).CourseHandouts(context.Background(),
		model.Filter{Course: "Urban analytics", Lab: "Project"})

	if out.Succeeded() {
		t.Fatal("CourseHandouts() should fail")
	}
	if !errors.Is(out.Err(), failure.ErrNotFound) {
		t.Errorf("error = %v, want not found", out.Err())
	}
	if !strings.Contains(out.Err().Error(), "lab") {
		t.Errorf("error should mention the lab: %v", out.Err())
	}
	if len(out.Gathered()) != 0 {
		t.Errorf("Gathered() = %v", out.Gathered())
	}
	for _, c := range p.Clicks() {
		if strings.HasPrefix(c, "lab:") {
			t.Errorf("no lab should be opened, got click %q", c)
		}
	}
}

func TestCourseHandouts_HandoutFilterStopsEarly(t *testing.T) {
	p := newTestPortal(browsertest.SampleCourses())

	out := newTestNavigator(p).CourseHandouts(context.Background(),
		model.Filter{Course: "Urban analytics", Handout: "uahandout2"})

	got, ok := out.Value()
	if !ok {
		t.Fatalf("CourseHandouts() failed: %v", out.Err())
	}
	if diff := cmp.Diff([]string{"week 1/uahandout2"}, handoutNames(got)); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
	if slices.Contains(p.Clicks(), "lab:0:1") {
		t.Error("lab enumeration should stop once the handout is read")
	}
}

func TestCourseHandouts_HandoutNotFound(t *testing.T) {
	p := newTestPortal(browsertest.SampleCourses())

	out := newTestNavigator(p).CourseHandouts(context.Background(),
		model.Filter{Course: "Urban analytics", Handout: "missing"})

	if !errors.Is(out.Err(), failure.ErrNotFound) {
		t.Fatalf("error = %v, want not found", out.Err())
	}
}

func TestCourseHandouts_MissingMoreButton(t *testing.T) {
	courses := browsertest.SampleCourses()
	courses[0].Labs[1].NoMore = true
	p := newTestPortal(courses)

	out := newTestNavigator(p).CourseHandouts(context.Background(), model.Filter{Course: "Urban analytics"})

	if out.Succeeded() {
		t.Fatal("CourseHandouts() should fail")
	}
	if !errors.Is(out.Err(), failure.ErrStructural) || !errors.Is(out.Err(), failure.ErrTimeout) {
		t.Errorf("error = %v, want structural failure caused by a timeout", out.Err())
	}
	if !strings.Contains(out.Err().Error(), "more button not found") {
		t.Errorf("error = %v", out.Err())
	}
	want := []string{"week 1/uahandout1", "week 1/uahandout2"}
	if diff := cmp.Diff(want, handoutNames(out.Gathered())); diff != "" {
		t.Errorf("partial records mismatch (-want +got):\n%s", diff)
	}
}

func TestCourseHandouts_UnexpectedDepth(t *testing.T) {
	p := newTestPortal(browsertest.SampleCourses())
	p.ExtraBlades = []string{"Notifications"}

	out := newTestNavigator(p).CourseHandouts(context.Background(), model.Filter{Course: "Urban analytics"})

	if !errors.Is(out.Err(), failure.ErrStructural) {
		t.Fatalf("error = %v, want structural failure", out.Err())
	}
	if !strings.Contains(out.Err().Error(), "current depth 5") {
		t.Errorf("error = %v", out.Err())
	}
	if len(out.Gathered()) != 0 {
		t.Error("no records may be read at the wrong depth")
	}
	for _, c := range p.Clicks() {
		if strings.HasPrefix(c, "handout:") {
			t.Errorf("no handout should be opened, got click %q", c)
		}
	}
}
