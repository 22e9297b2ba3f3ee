package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/educrawler/internal/model"
)

func sampleCourses() []model.CourseRecord {
	return []model.CourseRecord{
		{Name: "Urban analytics", AssignedCredit: "100", Consumed: "10", Students: "5", ProjectGroups: "1"},
		{Name: "Data science", AssignedCredit: "200", Consumed: "20", Students: "8", ProjectGroups: "2"},
	}
}

// --- NewWriter Factory Tests ---

func TestNewWriter_Formats(t *testing.T) {
	tests := []struct {
		format Format
		want   string
	}{
		{FormatTable, "*output.TableWriter"},
		{FormatCSV, "*output.TableWriter"},
		{FormatJSON, "*output.JSONWriter"},
		{FormatJSONL, "*output.JSONLWriter"},
		{FormatYAML, "*output.YAMLWriter"},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			w, err := NewWriter(&bytes.Buffer{}, tt.format)
			if err != nil {
				t.Fatalf("NewWriter() error = %v", err)
			}
			if got := fmt.Sprintf("%T", w); got != tt.want {
				t.Errorf("NewWriter() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNewWriter_UnsupportedFormat(t *testing.T) {
	_, err := NewWriter(&bytes.Buffer{}, Format("xml"))
	if err == nil {
		t.Fatal("expected error for unsupported format")
	}
	if !strings.Contains(err.Error(), "unsupported") {
		t.Errorf("expected error containing 'unsupported', got %v", err)
	}
}

func TestParseFormat(t *testing.T) {
	for _, f := range Formats {
		got, err := ParseFormat(string(f))
		if err != nil || got != f {
			t.Errorf("ParseFormat(%q) = %q, %v", f, got, err)
		}
	}
	if _, err := ParseFormat("TABLE"); err == nil {
		t.Error("ParseFormat should be case-sensitive")
	}
}

func TestDefaultCSVName(t *testing.T) {
	now := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	if got, want := DefaultCSVName(now), "ec_output_20240309-140507.csv"; got != want {
		t.Errorf("DefaultCSVName() = %q, want %q", got, want)
	}
}

// --- JSONWriter Tests ---

func TestJSONWriter_AlwaysArray(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewJSONWriter(buf, false, "")

	if err := w.Write(sampleCourses()[0]); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	var got []model.CourseRecord
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not a JSON array: %v\n%s", err, buf.String())
	}
	if diff := cmp.Diff(sampleCourses()[:1], got); diff != "" {
		t.Errorf("decoded mismatch (-want +got):\n%s", diff)
	}
}

func TestJSONWriter_Empty(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewJSONWriter(buf, true, "  ")

	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != "[]" {
		t.Errorf("empty output = %q, want []", got)
	}
}

func TestJSONWriter_Pretty(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewJSONWriter(buf, true, "    ")
	if err := WriteAll(w, sampleCourses()); err != nil {
		t.Fatalf("WriteAll() error = %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	if !strings.Contains(buf.String(), "\n        \"name\": \"Urban analytics\"") {
		t.Errorf("expected 4-space indented objects, got:\n%s", buf.String())
	}
}

func TestJSONWriter_CloseAfterFlushWritesOnce(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewJSONWriter(buf, false, "")
	_ = WriteAll(w, sampleCourses())

	if err := w.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if n := strings.Count(buf.String(), "\n"); n != 1 {
		t.Errorf("expected one document, got %d lines:\n%s", n, buf.String())
	}
}

func TestJSONWriter_HandoutFieldNames(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewJSONWriter(buf, false, "")
	rec := model.HandoutRecord{
		CourseName:        "Urban analytics",
		HandoutName:       "uahandout2",
		SubscriptionUsers: []string{"bob@uni.ac.uk", "carol@uni.ac.uk"},
		CrawlTimeUTC:      time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	_ = w.Write(rec)
	_ = w.Close()

	var got []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d objects", len(got))
	}
	if got[0]["crawl_time_utc"] != "2024-01-02T03:04:05Z" {
		t.Errorf("crawl_time_utc = %v", got[0]["crawl_time_utc"])
	}
	users, _ := got[0]["subscription_users"].([]any)
	if len(users) != 2 {
		t.Errorf("subscription_users = %v", got[0]["subscription_users"])
	}
}

// --- JSONLWriter Tests ---

func TestJSONLWriter_OneLinePerRecord(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewJSONLWriter(buf)
	if err := WriteAll(w, sampleCourses()); err != nil {
		t.Fatalf("WriteAll() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	for i, line := range lines {
		var rec model.CourseRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Errorf("line %d is not valid JSON: %v", i, err)
		}
		if rec.Name != sampleCourses()[i].Name {
			t.Errorf("line %d name = %q", i, rec.Name)
		}
	}
}

func TestJSONLWriter_UsageRecord(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewJSONLWriter(buf)
	rec := model.UsageRecord{Fields: []string{"SubscriptionId", "Cost"}, Cells: []string{"sub-1", "1.25"}}
	if err := w.Write(rec); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	var got map[string]string
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if diff := cmp.Diff(map[string]string{"SubscriptionId": "sub-1", "Cost": "1.25"}, got); diff != "" {
		t.Errorf("usage record mismatch (-want +got):\n%s", diff)
	}
}

// --- YAMLWriter Tests ---

func TestYAMLWriter_Sequence(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewYAMLWriter(buf)
	_ = w.Write(sampleCourses()[1])
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	var got []model.CourseRecord
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not a YAML sequence: %v\n%s", err, buf.String())
	}
	if diff := cmp.Diff(sampleCourses()[1:], got); diff != "" {
		t.Errorf("decoded mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(buf.String(), "assigned_credit: \"200\"") {
		t.Errorf("expected snake_case keys, got:\n%s", buf.String())
	}
}

// --- TableWriter Tests ---

func TestTableWriter_Render(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewTableWriter(buf, nil)
	if err := WriteAll(w, sampleCourses()); err != nil {
		t.Fatalf("WriteAll() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{"Urban analytics", "Data science", "200", "╭", "╰"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestTableWriter_EmptyWithoutHeader(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := NewTableWriter(buf, nil).Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestCSVWriter_Render(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewCSVWriter(buf, nil)
	if err := WriteAll(w, sampleCourses()); err != nil {
		t.Fatalf("WriteAll() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	want := []string{
		"Name,Assigned credit,Consumed,Students,Project groups",
		"Urban analytics,100,10,5,1",
		"Data science,200,20,8,2",
	}
	if diff := cmp.Diff(want, lines); diff != "" {
		t.Errorf("csv mismatch (-want +got):\n%s", diff)
	}
}

func TestCSVWriter_QuotesJoinedUsers(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewCSVWriter(buf, nil)
	_ = w.Write(model.HandoutRecord{HandoutName: "uahandout2", SubscriptionUsers: []string{"bob", "carol"}})
	_ = w.Close()

	if !strings.Contains(buf.String(), `,"bob`) || !strings.Contains(buf.String(), `carol"`) {
		t.Errorf("joined users should be quoted:\n%s", buf.String())
	}
}

func TestCSVWriter_HeaderOnlyWhenEmpty(t *testing.T) {
	buf := &bytes.Buffer{}
	header := model.CourseRecord{}.Header()
	if err := NewCSVWriter(buf, header).Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != strings.Join(header, ",") {
		t.Errorf("header-only csv = %q", got)
	}
}
