package cmd

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/sarchlab/neurosim/datarecording"
	"github.com/sarchlab/neurosim/observer"
	"github.com/sarchlab/neurosim/simulation"
	"github.com/spf13/cobra"
)

var traceCmd = &cobra.Command{
	Use:   "trace <recording>",
	Short: "Print a recorded trace as CSV.",
	Long: "`trace <recording>` reads the trace table of a SQLite recording " +
		"and prints one line per recorded step, with a column per neuron " +
		"or synapse value, the same way `run` writes its CSV output.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := datarecording.OpenReader(args[0])
		if err != nil {
			return err
		}
		defer r.Close()

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		if info, _ := cmd.Flags().GetBool("info"); info {
			return writeExecInfo(ctx, cmd.OutOrStdout(), r)
		}

		delimiter, _ := cmd.Flags().GetString("delimiter")
		runes := []rune(delimiter)
		if len(runes) != 1 {
			return fmt.Errorf("delimiter must be a single character, got %q",
				delimiter)
		}

		return writeTrace(ctx, cmd.OutOrStdout(), r, runes[0])
	},
}

func init() {
	rootCmd.AddCommand(traceCmd)

	traceCmd.Flags().String("delimiter", ",", "Column delimiter")
	traceCmd.Flags().Bool("info", false,
		"Print the execution properties instead of the trace")
}

type tracedStep struct {
	step   int
	time   float64
	values map[int]float64
}

// writeTrace pivots the trace rows into one line per step. Columns appear in
// the order the recorder wrote them.
func writeTrace(
	ctx context.Context,
	out io.Writer,
	r *datarecording.Reader,
	delimiter rune,
) error {
	r.Register(simulation.TraceTableName, observer.Sample{})

	var (
		columns []string
		steps   []tracedStep
	)

	index := make(map[string]int)

	err := r.Each(ctx, simulation.TraceTableName,
		datarecording.Filter{OrderBy: "rowid"},
		func(row any) error {
			s := row.(*observer.Sample)

			label := s.Owner + s.Variable
			col, ok := index[label]
			if !ok {
				col = len(columns)
				index[label] = col
				columns = append(columns, label)
			}

			if len(steps) == 0 || steps[len(steps)-1].step != s.Step {
				steps = append(steps, tracedStep{
					step:   s.Step,
					time:   s.Time,
					values: make(map[int]float64),
				})
			}

			steps[len(steps)-1].values[col] = s.Value

			return nil
		})
	if err != nil {
		return err
	}

	w := csv.NewWriter(out)
	w.Comma = delimiter

	err = w.Write(append([]string{"time"}, columns...))
	if err != nil {
		return err
	}

	for _, s := range steps {
		record := make([]string, len(columns)+1)
		record[0] = formatValue(s.time)

		for col, v := range s.values {
			record[col+1] = formatValue(v)
		}

		err = w.Write(record)
		if err != nil {
			return err
		}
	}

	w.Flush()

	return w.Error()
}

func writeExecInfo(
	ctx context.Context,
	out io.Writer,
	r *datarecording.Reader,
) error {
	r.Register(datarecording.ExecTableName, datarecording.ExecInfo{})

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	err := r.Each(ctx, datarecording.ExecTableName,
		datarecording.Filter{OrderBy: "rowid"},
		func(row any) error {
			info := row.(*datarecording.ExecInfo)
			_, err := fmt.Fprintf(w, "%s\t%s\n", info.Property, info.Value)

			return err
		})
	if err != nil {
		return err
	}

	return w.Flush()
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
