package observer

import (
	"github.com/sarchlab/neurosim/datarecording"
	"github.com/sarchlab/neurosim/integrator"
	"github.com/sarchlab/neurosim/state"
)

// Sample is a row of a recorded trace. Owner is "n<id>" for a neuron and
// "s<id>" for a synapse.
type Sample struct {
	Step     int
	Time     float64
	Owner    string
	Variable string
	Value    float64
}

// Recorder stores the watched values of every accepted step as rows of a
// data recording table.
type Recorder struct {
	selection

	recorder datarecording.DataRecorder
	table    string
	interval int
}

// NewRecorder creates the trace table in the data recorder.
func NewRecorder(
	eng *state.Engine,
	recorder datarecording.DataRecorder,
	table string,
) (*Recorder, error) {
	err := recorder.CreateTable(table, Sample{})
	if err != nil {
		return nil, err
	}

	return &Recorder{
		selection: selection{eng: eng},
		recorder:  recorder,
		table:     table,
		interval:  1,
	}, nil
}

// SetStepInterval makes the recorder keep only every n-th step.
func (r *Recorder) SetStepInterval(n int) {
	if n < 1 {
		n = 1
	}

	r.interval = n
}

// Observe inserts one row per watched value.
func (r *Recorder) Observe(s integrator.Snapshot) error {
	if s.Step%r.interval != 0 {
		return nil
	}

	for _, col := range r.cols {
		err := r.recorder.InsertData(r.table, Sample{
			Step:     s.Step,
			Time:     s.Time,
			Owner:    col.owner,
			Variable: col.name,
			Value:    col.read(s.State),
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// Flush writes the buffered rows to the database.
func (r *Recorder) Flush() error {
	return r.recorder.Flush()
}
