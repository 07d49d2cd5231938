package datarecording

import (
	"os"
	"strings"
	"time"
)

// ExecInfo is one property of a program execution.
type ExecInfo struct {
	Property string
	Value    string
}

// ExecTableName is the table that holds execution properties.
const ExecTableName = "exec_info"

const timeLayout = "2006-01-02 15:04:05.000000000"

// ExecRecorder records how and when a simulation was run.
type ExecRecorder struct {
	recorder DataRecorder
	entries  []ExecInfo
}

// NewExecRecorder creates the execution table in the recorder.
func NewExecRecorder(recorder DataRecorder) (*ExecRecorder, error) {
	err := recorder.CreateTable(ExecTableName, ExecInfo{})
	if err != nil {
		return nil, err
	}

	return &ExecRecorder{recorder: recorder}, nil
}

// Start records the start time, the command and the working directory.
func (e *ExecRecorder) Start() {
	e.Add("Start Time", time.Now().Format(timeLayout))
	e.Add("Command", strings.Join(os.Args, " "))

	cwd, err := os.Getwd()
	if err == nil {
		e.Add("Working Directory", cwd)
	}
}

// Add records an extra property, such as the session id or the
// configuration file.
func (e *ExecRecorder) Add(property, value string) {
	e.entries = append(e.entries, ExecInfo{Property: property, Value: value})
}

// End records the end time and writes all properties into the database.
func (e *ExecRecorder) End() error {
	e.Add("End Time", time.Now().Format(timeLayout))

	for _, entry := range e.entries {
		err := e.recorder.InsertData(ExecTableName, entry)
		if err != nil {
			return err
		}
	}

	e.entries = nil

	return e.recorder.Flush()
}
