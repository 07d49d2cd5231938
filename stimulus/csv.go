package stimulus

import (
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"
)

// ReadCSV reads a stimulus table laid out as one column of sample times
// followed by one column per neuron:
//
//	time, 0, 3
//	0.00, 0, 0
//	0.05, 5, 2.5
//
// Lines starting with '#' are ignored.
func ReadCSV(r io.Reader, tolerance float64) (*Table, error) {
	reader := csv.NewReader(r)
	reader.Comment = '#'
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, malformed("empty stimulus file")
	}
	if err != nil {
		return nil, malformed("reading header: %v", err)
	}

	if !strings.EqualFold(strings.TrimSpace(header[0]), "time") {
		return nil, malformed("first column must be time, got %q", header[0])
	}

	ids := make([]int, len(header)-1)
	for i, h := range header[1:] {
		ids[i], err = strconv.Atoi(strings.TrimSpace(h))
		if err != nil {
			return nil, malformed("column %d: neuron id %q is not an integer",
				i+2, h)
		}
	}

	times, columns, err := readRows(reader, len(ids))
	if err != nil {
		return nil, err
	}

	b := MakeBuilder().WithTolerance(tolerance).WithTimes(times...)
	for i, id := range ids {
		b = b.WithNeuron(id, columns[i]...)
	}

	return b.Build()
}

func readRows(reader *csv.Reader, numNeurons int) ([]float64, [][]float64, error) {
	var times []float64
	columns := make([][]float64, numNeurons)

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return times, columns, nil
		}
		if err != nil {
			return nil, nil, malformed("%v", err)
		}

		line, _ := reader.FieldPos(0)

		values := make([]float64, len(record))
		for i, field := range record {
			values[i], err = strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, nil, malformed("line %d column %d: %q is not a number",
					line, i+1, field)
			}
		}

		times = append(times, values[0])
		for i := range columns {
			columns[i] = append(columns[i], values[i+1])
		}
	}
}
