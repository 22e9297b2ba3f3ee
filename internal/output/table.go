package output

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
)

// TableWriter buffers records and renders them with go-pretty on Flush,
// either as a boxed table or as CSV.
type TableWriter struct {
	w      io.Writer
	csv    bool
	header []string
	rows   []table.Row
}

// NewTableWriter creates a writer rendering a rounded table. header is used
// when no record is written.
func NewTableWriter(w io.Writer, header []string) *TableWriter {
	return &TableWriter{w: w, header: header}
}

// NewCSVWriter creates a writer rendering CSV with a header line.
func NewCSVWriter(w io.Writer, header []string) *TableWriter {
	return &TableWriter{w: w, csv: true, header: header}
}

// Write buffers a record. The first record fixes the header.
func (w *TableWriter) Write(row Row) error {
	if len(w.rows) == 0 {
		w.header = row.Header()
	}
	w.rows = append(w.rows, toRow(row.Values()))
	return nil
}

// Flush renders the buffered records and empties the buffer.
func (w *TableWriter) Flush() error {
	if len(w.header) == 0 && len(w.rows) == 0 {
		return nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(toRow(w.header))
	t.AppendRows(w.rows)
	w.rows = nil

	var out string
	if w.csv {
		out = t.RenderCSV()
	} else {
		out = t.Render()
	}
	w.header = nil
	_, err := io.WriteString(w.w, out+"\n")
	return err
}

// Close flushes the writer.
func (w *TableWriter) Close() error {
	return w.Flush()
}

func toRow(values []string) table.Row {
	row := make(table.Row, len(values))
	for i, v := range values {
		row[i] = v
	}
	return row
}
