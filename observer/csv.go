package observer

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/sarchlab/neurosim/integrator"
	"github.com/sarchlab/neurosim/state"
)

// CSVWriter writes one row per accepted step: the time followed by the
// watched values.
type CSVWriter struct {
	selection

	w             *csv.Writer
	header        bool
	headerWritten bool
	interval      int
	pending       int
}

// NewCSVWriter creates a writer with a header and a comma delimiter that
// flushes after every row.
func NewCSVWriter(eng *state.Engine, out io.Writer) *CSVWriter {
	return &CSVWriter{
		selection: selection{eng: eng},
		w:         csv.NewWriter(out),
		header:    true,
		interval:  1,
	}
}

// SetDelimiter changes the column separator.
func (c *CSVWriter) SetDelimiter(delim rune) {
	c.w.Comma = delim
}

// SetHeader enables or disables the header row.
func (c *CSVWriter) SetHeader(enabled bool) {
	c.header = enabled
}

// SetStepInterval makes the writer flush once every n rows.
func (c *CSVWriter) SetStepInterval(n int) {
	if n < 1 {
		n = 1
	}

	c.interval = n
}

// Observe writes the row of a snapshot.
func (c *CSVWriter) Observe(s integrator.Snapshot) error {
	if c.header && !c.headerWritten {
		err := c.w.Write(append([]string{"time"}, c.Headers()...))
		if err != nil {
			return err
		}

		c.headerWritten = true
	}

	record := make([]string, 0, len(c.cols)+1)
	record = append(record, formatFloat(s.Time))

	for _, col := range c.cols {
		record = append(record, formatFloat(col.read(s.State)))
	}

	err := c.w.Write(record)
	if err != nil {
		return err
	}

	c.pending++
	if c.pending >= c.interval {
		return c.Flush()
	}

	return nil
}

// Flush writes the buffered rows.
func (c *CSVWriter) Flush() error {
	c.pending = 0
	c.w.Flush()

	return c.w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
