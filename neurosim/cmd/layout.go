package cmd

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/sarchlab/neurosim/current"
	"github.com/sarchlab/neurosim/logging"
	"github.com/sarchlab/neurosim/simulation"
	"github.com/sarchlab/neurosim/state"
	"github.com/sarchlab/neurosim/synapse"
	"github.com/spf13/cobra"
)

var layoutCmd = &cobra.Command{
	Use:   "layout [config.yaml]",
	Short: "Print the state vector layout of a simulation.",
	Long: "`layout [config.yaml]` builds the simulation without running it " +
		"and prints the index of every variable and the parameters of " +
		"every neuron and synapse.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, args)
		if err != nil {
			return err
		}

		cfg.Record = ""
		cfg.Monitor.Enabled = false

		s, err := simulation.MakeBuilder().
			WithConfig(cfg).
			WithoutOutput().
			WithLogger(logging.Discard()).
			Build()
		if err != nil {
			return err
		}

		return printLayout(cmd.OutOrStdout(), s.StateEngine(),
			s.Integrator().State())
	},
}

var currentsCmd = &cobra.Command{
	Use:   "currents",
	Short: "List the current kinds neurons can use.",
	Run: func(cmd *cobra.Command, _ []string) {
		for _, kind := range current.Kinds() {
			fmt.Fprintln(cmd.OutOrStdout(), kind)
		}
	},
}

var synapsesCmd = &cobra.Command{
	Use:   "synapses",
	Short: "List the synapse kinds.",
	Run: func(cmd *cobra.Command, _ []string) {
		for _, kind := range synapse.Kinds() {
			fmt.Fprintln(cmd.OutOrStdout(), kind)
		}
	},
}

func init() {
	rootCmd.AddCommand(layoutCmd)
	rootCmd.AddCommand(currentsCmd)
	rootCmd.AddCommand(synapsesCmd)

	addConfigFlags(layoutCmd)
}

func printLayout(out io.Writer, eng *state.Engine, x []float64) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, "INDEX\tOWNER\tVARIABLE\tINITIAL")
	for _, b := range eng.Bindings() {
		fmt.Fprintf(w, "%d\t%s\t%s\t%g\n", b.Index, b.Owner(), b.Name, x[b.Index])
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "OWNER\tPARAMETER\tVALUE")

	for _, id := range eng.Neurons() {
		printParameters(w, fmt.Sprintf("n%d", id), eng.ParametersOf(id))
	}

	for _, id := range eng.Synapses() {
		printParameters(w, fmt.Sprintf("s%d", id), eng.SynapseParametersOf(id))
	}

	return w.Flush()
}

func printParameters(w io.Writer, owner string, params map[string]float64) {
	for _, name := range sortedKeys(params) {
		fmt.Fprintf(w, "%s\t%s\t%g\n", owner, name, params[name])
	}
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}
