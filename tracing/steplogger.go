package tracing

import (
	"context"
	"log/slog"

	"github.com/sarchlab/neurosim/integrator"
	"github.com/sarchlab/neurosim/logging"
	"github.com/sarchlab/neurosim/rhs"
)

// StepLogger logs every accepted step at the trace level and every failed
// evaluation at the error level.
type StepLogger struct {
	logger *slog.Logger
}

// NewStepLogger creates a StepLogger writing to the logger.
func NewStepLogger(logger *slog.Logger) *StepLogger {
	return &StepLogger{logger: logger}
}

// StartEvaluation does nothing.
func (l *StepLogger) StartEvaluation(rhs.Evaluation) {}

// EndEvaluation logs a failed evaluation.
func (l *StepLogger) EndEvaluation(e rhs.Evaluation) {
	if e.Err == nil {
		return
	}

	l.logger.Error("evaluation failed", "t", e.Time, "err", e.Err)
}

// AcceptStep logs the step.
func (l *StepLogger) AcceptStep(s integrator.Snapshot) {
	ctx := context.Background()
	if !l.logger.Enabled(ctx, logging.LevelTrace) {
		return
	}

	l.logger.Log(ctx, logging.LevelTrace, "step accepted",
		"step", s.Step, "t", s.Time)
}
