package output

import (
	"bufio"
	"encoding/json"
	"io"
)

// JSONWriter writes every record into one JSON array, empty included.
type JSONWriter struct {
	w      *bufio.Writer
	pretty bool
	indent string
	rows   []Row
}

// NewJSONWriter creates a JSON writer.
func NewJSONWriter(w io.Writer, pretty bool, indent string) *JSONWriter {
	return &JSONWriter{
		w:      bufio.NewWriter(w),
		pretty: pretty,
		indent: indent,
		rows:   make([]Row, 0),
	}
}

// Write buffers a record for the array.
func (w *JSONWriter) Write(row Row) error {
	w.rows = append(w.rows, row)
	return nil
}

// Flush writes the buffered records and empties the buffer.
func (w *JSONWriter) Flush() error {
	if w.rows == nil {
		return w.w.Flush()
	}

	var (
		data []byte
		err  error
	)
	if w.pretty {
		data, err = json.MarshalIndent(w.rows, "", w.indent)
	} else {
		data, err = json.Marshal(w.rows)
	}
	if err != nil {
		return err
	}
	w.rows = nil

	if _, err := w.w.Write(data); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

// Close flushes the writer.
func (w *JSONWriter) Close() error {
	return w.Flush()
}

// JSONLWriter writes one JSON object per line as records arrive.
type JSONLWriter struct {
	w *bufio.Writer
}

// NewJSONLWriter creates a JSONL writer.
func NewJSONLWriter(w io.Writer) *JSONLWriter {
	return &JSONLWriter{w: bufio.NewWriter(w)}
}

// Write writes a single record as a JSON line.
func (w *JSONLWriter) Write(row Row) error {
	data, err := json.Marshal(row)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(data); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

// Flush flushes the buffer.
func (w *JSONLWriter) Flush() error {
	return w.w.Flush()
}

// Close flushes the writer.
func (w *JSONLWriter) Close() error {
	return w.Flush()
}
