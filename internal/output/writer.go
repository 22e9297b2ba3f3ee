// Package output renders crawl records as tables, CSV, JSON, JSONL or YAML.
package output

import (
	"fmt"
	"io"
	"time"
)

// Format represents output format types.
type Format string

const (
	FormatTable Format = "table"
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
)

// Formats lists every supported format in flag-help order.
var Formats = []Format{FormatTable, FormatCSV, FormatJSON, FormatJSONL, FormatYAML}

// DefaultCSVLayout is the timestamp layout of DefaultCSVName.
const DefaultCSVLayout = "20060102-150405"

// Row is one uniform record. Every row handed to a writer must report the
// same header.
type Row interface {
	Header() []string
	Values() []string
}

// Writer handles output serialization.
type Writer interface {
	// Write outputs a single record.
	Write(row Row) error

	// Flush ensures all data is written.
	Flush() error

	// Close releases resources.
	Close() error
}

// WriteAll writes rows to w in order.
func WriteAll[T Row](w Writer, rows []T) error {
	for _, r := range rows {
		if err := w.Write(r); err != nil {
			return err
		}
	}
	return nil
}

// WriterOption configures a writer.
type WriterOption func(*writerConfig)

type writerConfig struct {
	pretty bool
	indent string
	header []string
}

// WithPretty enables pretty-printing.
func WithPretty(enabled bool) WriterOption {
	return func(c *writerConfig) {
		c.pretty = enabled
	}
}

// WithIndent sets the indentation string.
func WithIndent(indent string) WriterOption {
	return func(c *writerConfig) {
		c.indent = indent
	}
}

// WithHeader sets the table and CSV header used when no rows are written.
func WithHeader(header []string) WriterOption {
	return func(c *writerConfig) {
		c.header = header
	}
}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported output format: %s", s)
}

// DefaultCSVName is the file CSV output goes to when no path is given.
func DefaultCSVName(now time.Time) string {
	return "ec_output_" + now.Format(DefaultCSVLayout) + ".csv"
}

// NewWriter creates a writer for the specified format.
func NewWriter(w io.Writer, format Format, opts ...WriterOption) (Writer, error) {
	cfg := &writerConfig{
		pretty: true,
		indent: "  ",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	switch format {
	case FormatTable:
		return NewTableWriter(w, cfg.header), nil
	case FormatCSV:
		return NewCSVWriter(w, cfg.header), nil
	case FormatJSON:
		return NewJSONWriter(w, cfg.pretty, cfg.indent), nil
	case FormatJSONL:
		return NewJSONLWriter(w), nil
	case FormatYAML:
		return NewYAMLWriter(w), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}
