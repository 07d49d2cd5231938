// Package config loads simulation descriptions from YAML files, applies
// environment overrides, and reads the legacy key:value neuron and synapse
// formats.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Config describes one simulation.
type Config struct {
	// Name labels the run in logs and recordings.
	Name string `yaml:"name,omitempty"`

	// Output is the CSV file the observed values are written to. "-" writes
	// to stdout; empty disables CSV output.
	Output string `yaml:"output,omitempty"`

	// Record is the path, without extension, of a SQLite recording.
	// Empty disables recording.
	Record string `yaml:"record,omitempty"`

	// SequentialIDs numbers events 1, 2, 3 and so on, which keeps two
	// recordings of the same run comparable. Otherwise ids are globally
	// unique.
	SequentialIDs bool `yaml:"sequential_ids,omitempty"`

	Logging     LoggingConfig     `yaml:"logging,omitempty"`
	Integration IntegrationConfig `yaml:"integration"`
	Observe     ObserveConfig     `yaml:"observe,omitempty"`
	Monitor     MonitorConfig     `yaml:"monitor,omitempty"`

	// LegacyNeurons is a neuron file in the key:value format. Its neurons
	// are appended after the ones listed in Neurons.
	LegacyNeurons string `yaml:"legacy_neurons,omitempty"`

	// LegacyCurrents are the current kinds given to every legacy neuron.
	// Defaults to na, k and leak.
	LegacyCurrents []string `yaml:"legacy_currents,omitempty"`

	// LegacySynapses is a synapse file in the key:value format. Its pre and
	// post keys count the neurons of LegacyNeurons from 0.
	LegacySynapses string `yaml:"legacy_synapses,omitempty"`

	// LegacySynapseKind is the kind given to every legacy synapse. Defaults
	// to chemical.
	LegacySynapseKind string `yaml:"legacy_synapse_kind,omitempty"`

	Neurons  []NeuronConfig  `yaml:"neurons"`
	Synapses []SynapseConfig `yaml:"synapses,omitempty"`
	Stimulus *StimulusConfig `yaml:"stimulus,omitempty"`

	// dir is the directory relative paths are resolved against.
	dir string

	// external marks the paths given on the command line or in the
	// environment, which are relative to the working directory.
	external map[string]bool
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	// Level is one of "error", "warn", "info", "debug" or "trace".
	Level string `yaml:"level,omitempty"`
}

// IntegrationConfig sets the fixed step integration.
type IntegrationConfig struct {
	// Method is "rk4" or "euler".
	Method string  `yaml:"method,omitempty"`
	Start  float64 `yaml:"start"`
	End    float64 `yaml:"end"`
	Step   float64 `yaml:"dt"`

	// Parallel evaluates neurons concurrently with the given number of
	// workers; 0 uses one worker per CPU.
	Parallel bool `yaml:"parallel,omitempty"`
	Workers  int  `yaml:"workers,omitempty"`
}

// ObserveConfig selects what goes into the outputs.
type ObserveConfig struct {
	// Variables are the variable or parameter names written for every neuron
	// that has them.
	Variables []string `yaml:"variables,omitempty"`

	Delimiter    string `yaml:"delimiter,omitempty"`
	Header       *bool  `yaml:"header,omitempty"`
	StepInterval int    `yaml:"step_interval,omitempty"`
}

// MonitorConfig configures the web monitor.
type MonitorConfig struct {
	Enabled     bool `yaml:"enabled,omitempty"`
	Port        int  `yaml:"port,omitempty"`
	OpenBrowser bool `yaml:"open_browser,omitempty"`
}

// NeuronConfig describes a neuron.
type NeuronConfig struct {
	ID int `yaml:"id"`

	// Membrane names the membrane potential variable, "v" by default.
	Membrane string `yaml:"membrane,omitempty"`

	// Variables are the integrated variables with their initial values, in
	// state vector order.
	Variables Variables `yaml:"variables"`

	// Parameters are constants, such as conductances, that override the
	// defaults of the currents.
	Parameters map[string]float64 `yaml:"parameters,omitempty"`

	// Currents are kinds of registered currents, evaluated in order.
	Currents []string `yaml:"currents"`
}

// ParameterNames returns the parameter names in sorted order.
func (n NeuronConfig) ParameterNames() []string {
	names := make([]string, 0, len(n.Parameters))
	for name := range n.Parameters {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// SynapseConfig describes a synapse from the Pre neuron to the Post neuron.
type SynapseConfig struct {
	ID int `yaml:"id"`

	// Kind is a registered synapse kind, such as "chemical" or "gap".
	Kind string `yaml:"kind"`

	Pre  int `yaml:"pre"`
	Post int `yaml:"post"`

	// Variables are the integrated variables of the synapse, placed after
	// the variables of all neurons.
	Variables Variables `yaml:"variables,omitempty"`

	Parameters map[string]float64 `yaml:"parameters,omitempty"`
}

// ParameterNames returns the parameter names in sorted order.
func (s SynapseConfig) ParameterNames() []string {
	names := make([]string, 0, len(s.Parameters))
	for name := range s.Parameters {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// StimulusConfig describes injected currents, either inline or as a CSV
// file.
type StimulusConfig struct {
	Tolerance float64           `yaml:"tolerance,omitempty"`
	File      string            `yaml:"file,omitempty"`
	Times     []float64         `yaml:"times,omitempty"`
	Currents  map[int][]float64 `yaml:"currents,omitempty"`
}

// Default returns a configuration with the integration span of the classic
// single neuron example, 0 to 100 with a step of 0.05, and info logging.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info"},
		Integration: IntegrationConfig{
			Method: "rk4",
			Start:  0,
			End:    100,
			Step:   0.05,
		},
		Observe: ObserveConfig{
			Delimiter: ",",
		},
	}
}

// LoadFromFile loads a configuration file. Relative paths inside it are
// resolved against the file's directory.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	c, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	c.dir = filepath.Dir(path)

	return c, nil
}

// Parse reads a YAML configuration on top of the defaults. Unknown keys are
// errors.
func Parse(r io.Reader) (*Config, error) {
	c := Default()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	err := dec.Decode(c)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, &ParseError{Reason: err.Error()}
	}

	return c, nil
}

// AllNeurons returns the neurons of the configuration followed by the
// neurons of the legacy neuron file. Legacy neurons are numbered after the
// largest configured id.
func (c *Config) AllNeurons() ([]NeuronConfig, error) {
	neurons := append([]NeuronConfig(nil), c.Neurons...)
	if c.LegacyNeurons == "" {
		return neurons, nil
	}

	f, err := os.Open(c.LegacyNeuronsPath())
	if err != nil {
		return nil, err
	}
	defer f.Close()

	legacy, err := ParseLegacy(f, c.firstLegacyNeuron())
	if err != nil {
		return nil, withSource(err, c.LegacyNeurons)
	}

	currents := c.LegacyCurrents
	if len(currents) == 0 {
		currents = []string{"na", "k", "leak"}
	}

	for i := range legacy {
		legacy[i].Currents = append([]string(nil), currents...)
	}

	return append(neurons, legacy...), nil
}

// AllSynapses returns the synapses of the configuration followed by the
// synapses of the legacy synapse file. Legacy synapses are numbered after the
// largest configured id, and their neuron references are shifted the way the
// legacy neurons are.
func (c *Config) AllSynapses() ([]SynapseConfig, error) {
	synapses := append([]SynapseConfig(nil), c.Synapses...)
	if c.LegacySynapses == "" {
		return synapses, nil
	}

	f, err := os.Open(c.LegacySynapsesPath())
	if err != nil {
		return nil, err
	}
	defer f.Close()

	firstID := 0
	for _, s := range synapses {
		if s.ID >= firstID {
			firstID = s.ID + 1
		}
	}

	legacy, err := ParseLegacySynapses(f, firstID)
	if err != nil {
		return nil, withSource(err, c.LegacySynapses)
	}

	kind := c.LegacySynapseKind
	if kind == "" {
		kind = "chemical"
	}

	offset := c.firstLegacyNeuron()
	for i := range legacy {
		legacy[i].Kind = kind
		legacy[i].Pre += offset
		legacy[i].Post += offset
	}

	return append(synapses, legacy...), nil
}

// firstLegacyNeuron is the id of the first neuron of the legacy neuron file.
func (c *Config) firstLegacyNeuron() int {
	firstID := 0
	for _, n := range c.Neurons {
		if n.ID >= firstID {
			firstID = n.ID + 1
		}
	}

	return firstID
}

func withSource(err error, source string) error {
	var pe *ParseError
	if errors.As(err, &pe) {
		pe.Source = source
	}

	return err
}

// Resolve returns path relative to the directory of the configuration file.
func (c *Config) Resolve(path string) string {
	if path == "" || path == "-" || filepath.IsAbs(path) || c.dir == "" {
		return path
	}

	return filepath.Join(c.dir, path)
}

// Paths that can be set from outside the configuration file.
const (
	pathOutput         = "output"
	pathRecord         = "record"
	pathLegacyNeurons  = "legacy_neurons"
	pathLegacySynapses = "legacy_synapses"
)

// SetOutput sets the CSV output path. Unlike a path written in the
// configuration file, it is relative to the working directory.
func (c *Config) SetOutput(path string) {
	c.Output = path
	c.markExternal(pathOutput)
}

// SetRecord sets the recording path, relative to the working directory.
func (c *Config) SetRecord(path string) {
	c.Record = path
	c.markExternal(pathRecord)
}

// SetLegacyNeurons sets the legacy neuron file, relative to the working
// directory.
func (c *Config) SetLegacyNeurons(path string) {
	c.LegacyNeurons = path
	c.markExternal(pathLegacyNeurons)
}

// SetLegacySynapses sets the legacy synapse file, relative to the working
// directory.
func (c *Config) SetLegacySynapses(path string) {
	c.LegacySynapses = path
	c.markExternal(pathLegacySynapses)
}

func (c *Config) markExternal(field string) {
	if c.external == nil {
		c.external = make(map[string]bool)
	}

	c.external[field] = true
}

func (c *Config) resolveField(field, path string) string {
	if c.external[field] {
		return path
	}

	return c.Resolve(path)
}

// OutputPath returns the CSV output path.
func (c *Config) OutputPath() string {
	return c.resolveField(pathOutput, c.Output)
}

// RecordPath returns the recording path.
func (c *Config) RecordPath() string {
	return c.resolveField(pathRecord, c.Record)
}

// LegacyNeuronsPath returns the path of the legacy neuron file.
func (c *Config) LegacyNeuronsPath() string {
	return c.resolveField(pathLegacyNeurons, c.LegacyNeurons)
}

// LegacySynapsesPath returns the path of the legacy synapse file.
func (c *Config) LegacySynapsesPath() string {
	return c.resolveField(pathLegacySynapses, c.LegacySynapses)
}

// Validate checks the values that cannot be checked while building.
func (c *Config) Validate() error {
	in := c.Integration
	if !(in.Step > 0) {
		return fmt.Errorf("integration dt must be positive, got %g", in.Step)
	}

	if in.End < in.Start {
		return fmt.Errorf("integration end %g is before start %g",
			in.End, in.Start)
	}

	if in.Method != "" && in.Method != "rk4" && in.Method != "euler" {
		return fmt.Errorf("unknown integration method %q", in.Method)
	}

	if len([]rune(c.Observe.Delimiter)) > 1 {
		return fmt.Errorf("delimiter must be a single character, got %q",
			c.Observe.Delimiter)
	}

	if c.Monitor.Port < 0 || c.Monitor.Port > 65535 {
		return fmt.Errorf("invalid monitor port %d", c.Monitor.Port)
	}

	seen := make(map[int]bool, len(c.Neurons))
	for _, n := range c.Neurons {
		if seen[n.ID] {
			return fmt.Errorf("neuron %d is defined twice", n.ID)
		}

		seen[n.ID] = true
	}

	seenSynapses := make(map[int]bool, len(c.Synapses))
	for _, syn := range c.Synapses {
		if seenSynapses[syn.ID] {
			return fmt.Errorf("synapse %d is defined twice", syn.ID)
		}

		if syn.Kind == "" {
			return fmt.Errorf("synapse %d has no kind", syn.ID)
		}

		seenSynapses[syn.ID] = true
	}

	return nil
}

// Marshal writes the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
