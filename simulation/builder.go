// Package simulation assembles sessions from a configuration and drives them
// through their lifecycle.
package simulation

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/rs/xid"
	"github.com/sarchlab/neurosim/config"
	"github.com/sarchlab/neurosim/current"
	"github.com/sarchlab/neurosim/datarecording"
	"github.com/sarchlab/neurosim/integrator"
	"github.com/sarchlab/neurosim/logging"
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

type neuronDecl struct {
	config.NeuronConfig
	models []current.Model
}

type synapseDecl struct {
	config.SynapseConfig
	kinetics synapse.Kinetics
}

// Builder can be used to build a session.
type Builder struct {
	cfg      *config.Config
	neurons  []neuronDecl
	synapses []synapseDecl
	stim     stimulus.Source
	output   io.Writer
	logger   *slog.Logger
	noOutput bool

	monitorOff  bool
	monitorOn   bool
	monitorPort int
}

// MakeBuilder creates a new builder. Without a configuration the session
// integrates from 0 to 100 with RK4 and a step of 0.05.
func MakeBuilder() Builder {
	return Builder{}
}

// WithConfig sets the configuration the session is built from.
func (b Builder) WithConfig(cfg *config.Config) Builder {
	b.cfg = cfg
	return b
}

// WithNeuron adds a neuron after the configured ones. Current models are
// evaluated after the currents the neuron names by kind.
func (b Builder) WithNeuron(
	n config.NeuronConfig,
	models ...current.Model,
) Builder {
	decl := neuronDecl{NeuronConfig: n, models: models}
	b.neurons = append(append([]neuronDecl(nil), b.neurons...), decl)

	return b
}

// WithSynapse adds a synapse after the configured ones. Without kinetics,
// the synapse uses the registered kind it names.
func (b Builder) WithSynapse(
	sc config.SynapseConfig,
	kinetics synapse.Kinetics,
) Builder {
	decl := synapseDecl{SynapseConfig: sc, kinetics: kinetics}
	b.synapses = append(append([]synapseDecl(nil), b.synapses...), decl)

	return b
}

// WithStimulus replaces the configured stimulus.
func (b Builder) WithStimulus(src stimulus.Source) Builder {
	b.stim = src
	return b
}

// WithOutput writes the CSV output to w instead of the configured file.
func (b Builder) WithOutput(w io.Writer) Builder {
	b.output = w
	b.noOutput = false

	return b
}

// WithoutOutput disables the CSV output.
func (b Builder) WithoutOutput() Builder {
	b.output = nil
	b.noOutput = true

	return b
}

// WithLogger sets the logger. By default the session logs to stderr at the
// configured level.
func (b Builder) WithLogger(logger *slog.Logger) Builder {
	b.logger = logger
	return b
}

// WithMonitor enables the web monitor on a port; 0 picks a random port.
func (b Builder) WithMonitor(port int) Builder {
	b.monitorOn = true
	b.monitorOff = false
	b.monitorPort = port

	return b
}

// WithoutMonitoring disables the web monitor even if the configuration
// enables it.
func (b Builder) WithoutMonitoring() Builder {
	b.monitorOff = true
	b.monitorOn = false

	return b
}

// Build builds the session. The returned session is in the Built state.
func (b Builder) Build() (*Session, error) {
	cfg := b.cfg
	if cfg == nil {
		cfg = config.Default()
	}

	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	s := &Session{
		id:     xid.New().String(),
		name:   cfg.Name,
		logger: b.logger,
		state:  Uninitialized,
	}

	if s.logger == nil {
		s.logger = logging.NewLogger(cfg.Logging.Level, os.Stderr)
	}

	s.logger = s.logger.With("session", s.id)

	err = b.build(s, cfg)
	if err != nil {
		abortErr := s.Abort(err)
		if abortErr != nil {
			s.logger.Error("cleaning up failed", "err", abortErr)
		}

		return nil, err
	}

	err = s.transition(Built)
	if err != nil {
		return nil, err
	}

	return s, nil
}

func (b Builder) build(s *Session, cfg *config.Config) error {
	decls, err := b.declarations(cfg)
	if err != nil {
		return err
	}

	synDecls, err := b.synapseDeclarations(cfg, decls)
	if err != nil {
		return err
	}

	s.stateEngine, err = buildStateEngine(decls, synDecls)
	if err != nil {
		return err
	}

	s.stimulus, err = b.buildStimulus(cfg)
	if err != nil {
		return err
	}

	b.warnUnknownStimulusNeurons(s)

	err = b.buildNeurons(s, decls, synDecls)
	if err != nil {
		return err
	}

	err = b.buildSynapses(s, decls, synDecls)
	if err != nil {
		return err
	}

	err = b.buildIntegration(s, cfg)
	if err != nil {
		return err
	}

	b.buildTracers(s)

	err = b.buildOutputs(s, cfg)
	if err != nil {
		return err
	}

	return b.buildMonitor(s, cfg)
}

func (b Builder) declarations(cfg *config.Config) ([]neuronDecl, error) {
	configured, err := cfg.AllNeurons()
	if err != nil {
		return nil, err
	}

	decls := make([]neuronDecl, 0, len(configured)+len(b.neurons))
	for _, n := range configured {
		decls = append(decls, neuronDecl{NeuronConfig: n})
	}

	decls = append(decls, b.neurons...)

	seen := make(map[int]bool, len(decls))
	for _, d := range decls {
		if seen[d.ID] {
			return nil, fmt.Errorf("neuron %d is defined twice", d.ID)
		}

		seen[d.ID] = true
	}

	return decls, nil
}

// synapseDeclarations collects the synapses and checks that they connect
// declared neurons.
func (b Builder) synapseDeclarations(
	cfg *config.Config,
	neurons []neuronDecl,
) ([]synapseDecl, error) {
	configured, err := cfg.AllSynapses()
	if err != nil {
		return nil, err
	}

	decls := make([]synapseDecl, 0, len(configured)+len(b.synapses))
	for _, sc := range configured {
		decls = append(decls, synapseDecl{SynapseConfig: sc})
	}

	decls = append(decls, b.synapses...)

	declared := make(map[int]bool, len(neurons))
	for _, n := range neurons {
		declared[n.ID] = true
	}

	seen := make(map[int]bool, len(decls))
	for _, d := range decls {
		if seen[d.ID] {
			return nil, fmt.Errorf("synapse %d is defined twice", d.ID)
		}

		seen[d.ID] = true

		if !declared[d.Pre] {
			return nil, fmt.Errorf("synapse %d: unknown pre-synaptic neuron %d",
				d.ID, d.Pre)
		}

		if !declared[d.Post] {
			return nil, fmt.Errorf(
				"synapse %d: unknown post-synaptic neuron %d", d.ID, d.Post)
		}
	}

	return decls, nil
}

// buildStateEngine lays out the variables of all neurons, then the variables
// of all synapses.
func buildStateEngine(
	decls []neuronDecl,
	synDecls []synapseDecl,
) (*state.Engine, error) {
	eng := state.NewEngine()

	for _, d := range decls {
		err := eng.RegisterNeuron(d.ID)
		if err != nil {
			return nil, err
		}

		for _, v := range d.Variables {
			_, err = eng.Bind(d.ID, v.Name)
			if err != nil {
				return nil, err
			}

			err = eng.SetInitialValue(d.ID, v.Name, v.Initial)
			if err != nil {
				return nil, err
			}
		}

		for _, name := range d.ParameterNames() {
			err = eng.SetParameter(d.ID, name, d.Parameters[name])
			if err != nil {
				return nil, err
			}
		}
	}

	for _, d := range synDecls {
		err := eng.RegisterSynapse(d.ID)
		if err != nil {
			return nil, err
		}

		for _, v := range d.Variables {
			_, err = eng.BindSynapse(d.ID, v.Name)
			if err != nil {
				return nil, err
			}

			err = eng.SetSynapseInitialValue(d.ID, v.Name, v.Initial)
			if err != nil {
				return nil, err
			}
		}

		for _, name := range d.ParameterNames() {
			err = eng.SetSynapseParameter(d.ID, name, d.Parameters[name])
			if err != nil {
				return nil, err
			}
		}
	}

	return eng, nil
}

func (b Builder) buildStimulus(cfg *config.Config) (stimulus.Source, error) {
	if b.stim != nil {
		return b.stim, nil
	}

	sc := cfg.Stimulus
	if sc == nil {
		return stimulus.None, nil
	}

	tolerance := sc.Tolerance
	if tolerance == 0 {
		tolerance = stimulus.DefaultTolerance
	}

	if sc.File != "" {
		return readStimulusFile(cfg.Resolve(sc.File), tolerance)
	}

	ids := make([]int, 0, len(sc.Currents))
	for id := range sc.Currents {
		ids = append(ids, id)
	}

	sort.Ints(ids)

	tb := stimulus.MakeBuilder().
		WithTolerance(tolerance).
		WithTimes(sc.Times...)
	for _, id := range ids {
		tb = tb.WithNeuron(id, sc.Currents[id]...)
	}

	return tb.Build()
}

func readStimulusFile(path string, tolerance float64) (*stimulus.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading stimulus: %w", err)
	}
	defer f.Close()

	tb, err := stimulus.ReadCSV(f, tolerance)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return tb, nil
}

func (b Builder) warnUnknownStimulusNeurons(s *Session) {
	tb, ok := s.stimulus.(*stimulus.Table)
	if !ok || tb == nil {
		return
	}

	for _, id := range tb.Neurons() {
		if !s.stateEngine.HasNeuron(id) {
			s.logger.Warn("stimulus for an unknown neuron is ignored",
				"neuron", id)
		}
	}
}

func (b Builder) buildNeurons(
	s *Session,
	decls []neuronDecl,
	synDecls []synapseDecl,
) error {
	inputs := make(map[int][]string)
	for _, d := range synDecls {
		inputs[d.Post] = append(inputs[d.Post], synapse.CurrentName(d.ID))
	}

	for _, d := range decls {
		models := make([]current.Model, 0, len(d.Currents)+len(d.models))

		for _, kind := range d.Currents {
			m, err := current.New(kind)
			if err != nil {
				return fmt.Errorf("neuron %d: %w", d.ID, err)
			}

			models = append(models, m)
		}

		models = append(models, d.models...)

		nb := neuron.MakeBuilder().
			WithID(d.ID).
			WithCurrents(models...).
			WithInputs(inputs[d.ID]...).
			WithStimulus(s.stimulus)
		if d.Membrane != "" {
			nb = nb.WithMembrane(d.Membrane)
		}

		n, err := nb.Build()
		if err != nil {
			return err
		}

		err = n.Attach(s.stateEngine)
		if err != nil {
			return err
		}

		s.neurons = append(s.neurons, n)
	}

	return nil
}

func (b Builder) buildSynapses(
	s *Session,
	decls []neuronDecl,
	synDecls []synapseDecl,
) error {
	membranes := make(map[int]string, len(decls))
	for _, d := range decls {
		membranes[d.ID] = d.Membrane
	}

	for _, d := range synDecls {
		kinetics := d.kinetics
		if kinetics == nil {
			var err error

			kinetics, err = synapse.New(d.Kind)
			if err != nil {
				return fmt.Errorf("synapse %d: %w", d.ID, err)
			}
		}

		syn, err := synapse.MakeBuilder().
			WithID(d.ID).
			WithPre(d.Pre, membranes[d.Pre]).
			WithPost(d.Post, membranes[d.Post]).
			WithKinetics(kinetics).
			Build()
		if err != nil {
			return err
		}

		err = syn.Attach(s.stateEngine)
		if err != nil {
			return err
		}

		s.synapses = append(s.synapses, syn)
	}

	return nil
}

func (b Builder) buildIntegration(s *Session, cfg *config.Config) error {
	neurons := make([]rhs.Neuron, len(s.neurons))
	for i, n := range s.neurons {
		neurons[i] = n
	}

	synapses := make([]rhs.Synapse, len(s.synapses))
	for i, syn := range s.synapses {
		synapses[i] = syn
	}

	db := rhs.MakeBuilder().
		WithStateEngine(s.stateEngine).
		WithSynapses(synapses...).
		WithNeurons(neurons...)
	if cfg.Integration.Parallel {
		db = db.WithParallelNeurons(cfg.Integration.Workers)
	}

	driver, err := db.Build()
	if err != nil {
		return err
	}

	stepper, ok := integrator.NewStepper(cfg.Integration.Method)
	if !ok {
		return fmt.Errorf("unknown integration method %q",
			cfg.Integration.Method)
	}

	s.driver = driver
	s.engine = sim.NewSerialEngine()
	s.engine.AcceptHook(sim.NewEventLogger(s.logger, logging.LevelTrace))

	in := cfg.Integration
	s.integrator, err = integrator.MakeBuilder().
		WithEngine(s.engine).
		WithFunc(driver).
		WithStepper(stepper).
		WithInitialState(s.stateEngine.InitialState()).
		WithTimeSpan(in.Start, in.End, in.Step).
		Build()

	return err
}

func (b Builder) buildTracers(s *Session) {
	s.counter = tracing.NewCountTracer()
	s.busyTime = tracing.NewBusyTimeTracer()
	stepLogger := tracing.NewStepLogger(s.logger)

	for _, t := range []tracing.Tracer{s.counter, s.busyTime, stepLogger} {
		tracing.CollectTrace(s.driver, t)
		tracing.CollectTrace(s.integrator, t)
	}
}

func (b Builder) buildOutputs(s *Session, cfg *config.Config) error {
	variables := cfg.Observe.Variables
	if len(variables) == 0 {
		variables = []string{"v"}
	}

	err := b.buildCSV(s, cfg, variables)
	if err != nil {
		return err
	}

	if cfg.Record == "" {
		return nil
	}

	return b.buildRecording(s, cfg, variables)
}

func (b Builder) buildCSV(
	s *Session,
	cfg *config.Config,
	variables []string,
) error {
	out := b.output
	if out == nil && !b.noOutput {
		switch path := cfg.OutputPath(); path {
		case "":
		case "-":
			out = os.Stdout
		default:
			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("creating output: %w", err)
			}

			out = f
			s.csvCloser = f
		}
	}

	if out == nil {
		return nil
	}

	w := observer.NewCSVWriter(s.stateEngine, out)
	s.csv = w

	if delim := []rune(cfg.Observe.Delimiter); len(delim) == 1 {
		w.SetDelimiter(delim[0])
	}

	if cfg.Observe.Header != nil {
		w.SetHeader(*cfg.Observe.Header)
	}

	w.SetStepInterval(cfg.Observe.StepInterval)

	for _, name := range variables {
		err := w.Watch(name)
		if err != nil {
			return err
		}
	}

	return s.AddObserver(w)
}

func (b Builder) buildRecording(
	s *Session,
	cfg *config.Config,
	variables []string,
) error {
	dr, err := datarecording.New(cfg.RecordPath())
	if err != nil {
		return err
	}

	s.dataRecorder = dr

	s.execRecorder, err = datarecording.NewExecRecorder(dr)
	if err != nil {
		return err
	}

	s.execRecorder.Start()
	s.execRecorder.Add("Session", s.id)

	if s.name != "" {
		s.execRecorder.Add("Name", s.name)
	}

	r, err := observer.NewRecorder(s.stateEngine, dr, TraceTableName)
	if err != nil {
		return err
	}

	r.SetStepInterval(cfg.Observe.StepInterval)

	for _, name := range variables {
		err = r.Watch(name)
		if err != nil {
			return err
		}
	}

	s.recorder = r

	return s.AddObserver(r)
}

func (b Builder) buildMonitor(s *Session, cfg *config.Config) error {
	enabled := (cfg.Monitor.Enabled || b.monitorOn) && !b.monitorOff
	if !enabled {
		return nil
	}

	port := cfg.Monitor.Port
	if b.monitorOn {
		port = b.monitorPort
	}

	m := monitoring.NewMonitor().WithPortNumber(port)
	m.RegisterEngine(s.engine)
	m.RegisterStateEngine(s.stateEngine)
	s.integrator.AcceptHook(m)

	s.progressBar = m.CreateProgressBar("Integration",
		uint64(s.integrator.Steps()))
	s.integrator.AcceptHook(monitoring.StepCounter{Bar: s.progressBar})

	err := m.StartServer()
	if err != nil {
		return err
	}

	s.monitor = m

	if cfg.Monitor.OpenBrowser {
		err = m.OpenInBrowser()
		if err != nil {
			s.logger.Warn("cannot open the monitor in a browser", "err", err)
		}
	}

	return nil
}
