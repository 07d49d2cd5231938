// Package cmd provides the command-line interface of neurosim.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "neurosim",
	Short: "Neurosim integrates networks of conductance-based neurons.",
	Long: `Neurosim integrates networks of conductance-based neurons ` +
		`described by a YAML file or a legacy key:value neuron file, and ` +
		`writes the observed variables as CSV or into a SQLite recording.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("env-file", "",
		"Load environment overrides from this file instead of .env")
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		fail(err)
	}
}

// fail reports a fatal error and exits, running the registered flushers.
func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	fmt.Fprintln(os.Stderr, "***...SIMULATION FAILED...***")
	atexit.Exit(1)
}
