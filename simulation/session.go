package simulation

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/sarchlab/neurosim/datarecording"
	"github.com/sarchlab/neurosim/integrator"
	"github.com/sarchlab/neurosim/monitoring"
	"github.com/sarchlab/neurosim/neuron"
	"github.com/sarchlab/neurosim/observer"
	"github.com/sarchlab/neurosim/rhs"
	"github.com/sarchlab/neurosim/sim"
	"github.com/sarchlab/neurosim/state"
	"github.com/sarchlab/neurosim/stimulus"
	"github.com/sarchlab/neurosim/synapse"
	"github.com/sarchlab/neurosim/tracing"
)

// State is the lifecycle stage of a session.
type State int

// The lifecycle of a session. Aborted and Finalized are terminal.
const (
	Uninitialized State = iota
	Built
	Running
	Finalized
	Aborted
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "Uninitialized"
	case Built:
		return "Built"
	case Running:
		return "Running"
	case Finalized:
		return "Finalized"
	case Aborted:
		return "Aborted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ErrInvalidTransition is returned when a session is asked to move to a state
// it cannot reach from its current state.
var ErrInvalidTransition = errors.New("invalid session transition")

var transitions = map[State][]State{
	Uninitialized: {Built, Aborted},
	Built:         {Running, Aborted},
	Running:       {Finalized, Aborted},
}

// TraceTableName is the recording table that holds the observed values.
const TraceTableName = "trace"

// A Session owns everything one simulation run needs: the state layout, the
// neurons, the stimulus, the integrator and the outputs. Sessions share no
// state, so several can exist in the same process.
type Session struct {
	id     string
	name   string
	logger *slog.Logger

	lock  sync.Mutex
	state State
	err   error

	engine      *sim.SerialEngine
	stateEngine *state.Engine
	stimulus    stimulus.Source
	neurons     []*neuron.Model
	synapses    []*synapse.Synapse
	driver      *rhs.Driver
	integrator  *integrator.Integrator

	csv       *observer.CSVWriter
	csvCloser io.Closer
	hooks     []*observer.Hook

	dataRecorder datarecording.DataRecorder
	execRecorder *datarecording.ExecRecorder
	recorder     *observer.Recorder

	counter  *tracing.CountTracer
	busyTime *tracing.BusyTimeTracer

	monitor     *monitoring.Monitor
	progressBar *monitoring.ProgressBar
}

// ID returns the unique id of the session.
func (s *Session) ID() string {
	return s.id
}

// Name returns the configured name of the session.
func (s *Session) Name() string {
	return s.name
}

// State returns the lifecycle stage.
func (s *Session) State() State {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.state
}

// Err returns the error that aborted the session.
func (s *Session) Err() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.err
}

// Engine returns the event engine that drives the integration.
func (s *Session) Engine() *sim.SerialEngine {
	return s.engine
}

// StateEngine returns the layout of the state vector.
func (s *Session) StateEngine() *state.Engine {
	return s.stateEngine
}

// Stimulus returns the source of the injected currents.
func (s *Session) Stimulus() stimulus.Source {
	return s.stimulus
}

// Neurons returns the neurons in registration order.
func (s *Session) Neurons() []*neuron.Model {
	return append([]*neuron.Model(nil), s.neurons...)
}

// Synapses returns the synapses in registration order.
func (s *Session) Synapses() []*synapse.Synapse {
	return append([]*synapse.Synapse(nil), s.synapses...)
}

// Driver returns the right-hand side driver.
func (s *Session) Driver() *rhs.Driver {
	return s.driver
}

// Integrator returns the integrator.
func (s *Session) Integrator() *integrator.Integrator {
	return s.integrator
}

// DataRecorder returns the recording database, or nil when recording is
// disabled.
func (s *Session) DataRecorder() datarecording.DataRecorder {
	return s.dataRecorder
}

// Monitor returns the web monitor, or nil when monitoring is disabled.
func (s *Session) Monitor() *monitoring.Monitor {
	return s.monitor
}

// Counter returns the tracer that counts evaluations and steps.
func (s *Session) Counter() *tracing.CountTracer {
	return s.counter
}

// Values returns the named variable of every neuron that has it, in neuron
// registration order, read from the current state.
func (s *Session) Values(name string) ([]float64, error) {
	indices := s.stateEngine.IndicesWithName(name)
	if len(indices) == 0 {
		return nil, fmt.Errorf("%w: no neuron has variable %q",
			state.ErrUnknownVariable, name)
	}

	x := s.integrator.State()
	values := make([]float64, len(indices))

	for i, idx := range indices {
		values[i] = x[idx]
	}

	return values, nil
}

// AddObserver registers an observer of the accepted steps. Observers can only
// be added before the session runs. An observer error aborts the run.
func (s *Session) AddObserver(o observer.Observer) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.state != Uninitialized && s.state != Built {
		return fmt.Errorf("%w: cannot add an observer to a %s session",
			ErrInvalidTransition, s.state)
	}

	h := observer.NewHook(o, s.integrator.Fail)
	s.hooks = append(s.hooks, h)
	s.integrator.AcceptHook(h)

	return nil
}

// Run integrates over the whole time span. On failure the session is aborted
// and the error is returned.
func (s *Session) Run() error {
	err := s.transition(Running)
	if err != nil {
		return err
	}

	s.logger.Info("simulation started",
		"session", s.id,
		"neurons", len(s.neurons),
		"variables", s.stateEngine.Len(),
		"steps", s.integrator.Steps())

	s.integrator.Start()

	err = s.engine.Run()
	if err == nil && !s.integrator.Done() {
		err = fmt.Errorf("integration stopped at step %d of %d",
			s.integrator.Step(), s.integrator.Steps())
	}

	if err != nil {
		abortErr := s.Abort(err)
		if abortErr != nil {
			s.logger.Error("abort failed", "err", abortErr)
		}

		return err
	}

	s.logger.Info("simulation completed",
		"steps", s.counter.Steps(),
		"evaluations", s.counter.Evaluations(),
		"busy", s.busyTime.BusyTime())

	return nil
}

// Finalize flushes and closes the outputs of a session that has run.
func (s *Session) Finalize() error {
	s.lock.Lock()
	if s.state == Running && !s.integrator.Done() {
		s.lock.Unlock()
		return fmt.Errorf("%w: the integration has not completed",
			ErrInvalidTransition)
	}
	s.lock.Unlock()

	err := s.transition(Finalized)
	if err != nil {
		return err
	}

	err = s.release(nil)
	s.engine.Finished()

	if err != nil {
		s.lock.Lock()
		s.state = Aborted
		s.err = err
		s.lock.Unlock()

		s.logger.Error("finalization failed", "err", err)

		return err
	}

	s.logger.Debug("simulation finalized",
		"average_evaluation", s.busyTime.AverageTime())

	return nil
}

// Abort moves the session to the terminal Aborted state and releases its
// outputs. Output written before the failure is kept but is not guaranteed to
// be complete.
func (s *Session) Abort(cause error) error {
	if cause == nil {
		cause = errors.New("aborted")
	}

	err := s.transition(Aborted)
	if err != nil {
		return err
	}

	s.lock.Lock()
	s.err = cause
	s.lock.Unlock()

	s.logger.Error("simulation aborted", "session", s.id, "err", cause)

	return s.release(cause)
}

func (s *Session) transition(to State) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	for _, allowed := range transitions[s.state] {
		if allowed == to {
			s.state = to
			return nil
		}
	}

	return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, s.state, to)
}

// release flushes and closes every output, returning the first error.
func (s *Session) release(cause error) error {
	var errs []error

	if s.csv != nil {
		errs = append(errs, s.csv.Flush())
	}

	if s.csvCloser != nil {
		errs = append(errs, s.csvCloser.Close())
		s.csvCloser = nil
	}

	if s.recorder != nil {
		errs = append(errs, s.recorder.Flush())
	}

	if s.execRecorder != nil {
		if cause != nil {
			s.execRecorder.Add("Abort", cause.Error())
		}

		errs = append(errs, s.execRecorder.End())
		s.execRecorder = nil
	}

	if s.dataRecorder != nil {
		errs = append(errs, s.dataRecorder.Close())
		s.dataRecorder = nil
	}

	if s.monitor != nil {
		if s.progressBar != nil {
			s.monitor.CompleteProgressBar(s.progressBar)
			s.progressBar = nil
		}

		errs = append(errs, s.monitor.StopServer())
	}

	return errors.Join(errs...)
}
