package cmd

import (
	"github.com/sarchlab/neurosim/config"
	"github.com/sarchlab/neurosim/sim"
	"github.com/sarchlab/neurosim/simulation"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [config.yaml]",
	Short: "Run a simulation.",
	Long: "`run [config.yaml]` builds the simulation described by the file, " +
		"integrates it to the end time and writes the outputs. Without a " +
		"file, the neurons are read from --legacy.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, args)
		if err != nil {
			return err
		}

		useIDGenerator(cfg)

		s, err := simulation.MakeBuilder().WithConfig(cfg).Build()
		if err != nil {
			return err
		}

		err = s.Run()
		if err != nil {
			return err
		}

		return s.Finalize()
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	addConfigFlags(runCmd)
}

// addConfigFlags adds the flags that override the configuration file.
func addConfigFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("legacy", "", "Legacy key:value neuron file")
	f.String("legacy-synapses", "", "Legacy key:value synapse file")
	f.StringP("output", "o", "", "CSV output file, - for stdout")
	f.String("record", "", "SQLite recording path, without extension")
	f.String("method", "", "Integration method, rk4 or euler")
	f.Float64("start", 0, "Start time")
	f.Float64("end", 0, "End time")
	f.Float64("dt", 0, "Step size")
	f.Bool("parallel", false, "Evaluate neurons concurrently")
	f.Int("workers", 0, "Number of parallel workers, 0 for one per CPU")
	f.String("log-level", "", "error, warn, info, debug or trace")
	f.Bool("monitor", false, "Serve the web monitor")
	f.Int("port", 0, "Port of the web monitor, 0 for a random port")
	f.Bool("open-browser", false, "Open the web monitor in a browser")
	f.Bool("sequential-ids", false, "Number events in sequence")
}

// useIDGenerator picks the event id generator. It can only be picked once
// per process.
func useIDGenerator(cfg *config.Config) {
	if cfg.SequentialIDs {
		sim.UseSequentialIDGenerator()
		return
	}

	sim.UseGlobalIDGenerator()
}

// loadConfig reads the configuration, then applies the environment and the
// flags, in increasing order of priority.
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	var envFiles []string
	if envFile, _ := cmd.Flags().GetString("env-file"); envFile != "" {
		envFiles = append(envFiles, envFile)
	}

	err := config.LoadDotEnv(envFiles...)
	if err != nil {
		return nil, err
	}

	cfg := config.Default()
	if len(args) > 0 {
		cfg, err = config.LoadFromFile(args[0])
		if err != nil {
			return nil, err
		}
	}

	err = cfg.ApplyEnv()
	if err != nil {
		return nil, err
	}

	applyFlags(cmd, cfg)

	return cfg, cfg.Validate()
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()

	if f.Changed("legacy") {
		path, _ := f.GetString("legacy")
		cfg.SetLegacyNeurons(path)
	}

	if f.Changed("legacy-synapses") {
		path, _ := f.GetString("legacy-synapses")
		cfg.SetLegacySynapses(path)
	}

	if f.Changed("output") {
		path, _ := f.GetString("output")
		cfg.SetOutput(path)
	}

	if f.Changed("record") {
		path, _ := f.GetString("record")
		cfg.SetRecord(path)
	}

	if f.Changed("method") {
		cfg.Integration.Method, _ = f.GetString("method")
	}

	if f.Changed("start") {
		cfg.Integration.Start, _ = f.GetFloat64("start")
	}

	if f.Changed("end") {
		cfg.Integration.End, _ = f.GetFloat64("end")
	}

	if f.Changed("dt") {
		cfg.Integration.Step, _ = f.GetFloat64("dt")
	}

	if f.Changed("parallel") {
		cfg.Integration.Parallel, _ = f.GetBool("parallel")
	}

	if f.Changed("workers") {
		cfg.Integration.Workers, _ = f.GetInt("workers")
	}

	if f.Changed("log-level") {
		cfg.Logging.Level, _ = f.GetString("log-level")
	}

	if f.Changed("monitor") {
		cfg.Monitor.Enabled, _ = f.GetBool("monitor")
	}

	if f.Changed("port") {
		cfg.Monitor.Enabled = true
		cfg.Monitor.Port, _ = f.GetInt("port")
	}

	if f.Changed("open-browser") {
		cfg.Monitor.OpenBrowser, _ = f.GetBool("open-browser")
	}

	if f.Changed("sequential-ids") {
		cfg.SequentialIDs, _ = f.GetBool("sequential-ids")
	}
}
