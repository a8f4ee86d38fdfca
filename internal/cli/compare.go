package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/audd/internal/diff"
)

// CompareOptions holds flags for the compare command.
type CompareOptions struct {
	*RootOptions
	Output string
}

// DiffSummary counts the changes of a diff.
type DiffSummary struct {
	Strategy      string `json:"strategy"`
	SchemaChanges int    `json:"schema_changes"`
	RowChanges    int    `json:"row_changes"`
	Output        string `json:"output"`
}

func (s DiffSummary) String() string {
	return fmt.Sprintf("Compared (%s): %d schema changes, %d row changes → %s", s.Strategy, s.SchemaChanges, s.RowChanges, s.Output)
}

// NewCompareCommand creates the compare command.
func NewCompareCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompareOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compare <a.ir.json> <b.ir.json>",
		Short: "Diff two IRs",
		Long: `Compare a baseline IR (A) with a candidate IR (B) and emit the Diff.
Either path may be "-" for standard input.

Examples:
  audd compare a.ir.json b.ir.json -o diff.json
  audd compare a.ir.json b.ir.json --strategy semantic --threshold 0.9`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompare(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the diff to this file instead of stdout")
	cmd.Flags().String("strategy", string(diff.Hybrid), "comparison strategy (structural|semantic|hybrid)")
	cmd.Flags().Float64("threshold", diff.DefaultThreshold, "similarity below which values count as modified")
	cmd.Flags().StringSlice("ignore", nil, "fields to leave out of the comparison")
	configKey(cmd.Flags(), "strategy", "compare.strategy")
	configKey(cmd.Flags(), "threshold", "compare.threshold")
	configKey(cmd.Flags(), "ignore", "compare.ignore_fields")

	return cmd
}

func runCompare(opts *CompareOptions, pathA, pathB string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	if pathA == "-" && pathB == "-" {
		return NewExitError(ExitCommandError, "only one input may be read from stdin")
	}

	a, err := readIR(cmd, pathA)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read IR A", err)
	}
	b, err := readIR(cmd, pathB)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read IR B", err)
	}

	d, err := diff.Compare(a, b, opts.Config.CompareOptions())
	if err != nil {
		return WrapExitError(ExitCommandError, "compare failed", err)
	}
	return emit(f, opts.Output, d, DiffSummary{
		Strategy:      d.Strategy,
		SchemaChanges: len(d.SchemaChanges),
		RowChanges:    len(d.RowChanges),
		Output:        opts.Output,
	})
}
