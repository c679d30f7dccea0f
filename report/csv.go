package report

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Header is the first row of every results file.
var Header = []string{"NP", "GridX", "Iterations", "Time_Sec", "Total_GFLOPs", "GFLOPs_Sec"}

// CSVWriter appends solver rows to a results file. Rows are written
// exactly as the solver printed them; a field is quoted only when it
// contains a comma, a double quote or a line break.
type CSVWriter struct {
	path string
	f    *os.File
	w    *bufio.Writer
	rows int
}

// Create truncates or creates path and writes Header.
func Create(path string) (*CSVWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}

	cw := &CSVWriter{path: path, f: f, w: bufio.NewWriter(f)}

	if err := cw.write(Header); err != nil {
		f.Close()

		return nil, err
	}

	return cw, nil
}

// WriteRow appends one row and flushes it to the file.
func (c *CSVWriter) WriteRow(fields []string) error {
	if err := c.write(fields); err != nil {
		return err
	}

	c.rows++

	return nil
}

// Rows returns the number of data rows written so far.
func (c *CSVWriter) Rows() int { return c.rows }

// Path returns the file being written.
func (c *CSVWriter) Path() string { return c.path }

// Close flushes pending data and releases the file. It is safe to call
// more than once.
func (c *CSVWriter) Close() error {
	if c.f == nil {
		return nil
	}

	flushErr := c.w.Flush()
	closeErr := c.f.Close()
	c.f = nil

	if flushErr != nil {
		return fmt.Errorf("flush %s: %w", c.path, flushErr)
	}

	if closeErr != nil {
		return fmt.Errorf("close %s: %w", c.path, closeErr)
	}

	return nil
}

func (c *CSVWriter) write(fields []string) error {
	if c.f == nil {
		return fmt.Errorf("write %s: file is closed", c.path)
	}

	if _, err := c.w.WriteString(formatRow(fields)); err != nil {
		return fmt.Errorf("write %s: %w", c.path, err)
	}

	if err := c.w.Flush(); err != nil {
		return fmt.Errorf("write %s: %w", c.path, err)
	}

	return nil
}

// formatRow joins fields with commas and terminates the line. A row made
// of a single empty field is written as "" so it still reads back as a
// field.
func formatRow(fields []string) string {
	if len(fields) == 1 && fields[0] == "" {
		return "\"\"\n"
	}

	var b strings.Builder

	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}

		b.WriteString(quoteField(f))
	}

	b.WriteByte('\n')

	return b.String()
}

func quoteField(f string) string {
	if !strings.ContainsAny(f, ",\"\r\n") {
		return f
	}

	return `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
}
