package output

import (
	"bufio"
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLWriter writes every record as one YAML sequence.
type YAMLWriter struct {
	w    *bufio.Writer
	rows []Row
}

// NewYAMLWriter creates a YAML writer.
func NewYAMLWriter(w io.Writer) *YAMLWriter {
	return &YAMLWriter{
		w:    bufio.NewWriter(w),
		rows: make([]Row, 0),
	}
}

// Write buffers a record.
func (w *YAMLWriter) Write(row Row) error {
	w.rows = append(w.rows, row)
	return nil
}

// Flush writes the buffered records and empties the buffer.
func (w *YAMLWriter) Flush() error {
	if w.rows == nil {
		return w.w.Flush()
	}

	enc := yaml.NewEncoder(w.w)
	enc.SetIndent(2)
	if err := enc.Encode(w.rows); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	w.rows = nil
	return w.w.Flush()
}

// Close flushes the writer.
func (w *YAMLWriter) Close() error {
	return w.Flush()
}
