package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/audd/internal/build"
	"github.com/roach88/audd/internal/ir"
)

// BuildOptions holds flags for the build command.
type BuildOptions struct {
	*RootOptions
	Source SourceFlags
	Output string
}

// BuildSummary describes a built IR.
type BuildSummary struct {
	Source    string   `json:"source"`
	Records   int      `json:"records"`
	Fields    int      `json:"fields"`
	Key       []string `json:"primary_key"`
	Synthetic bool     `json:"synthetic_key"`
	Output    string   `json:"output"`
}

func (s BuildSummary) String() string {
	key := strings.Join(s.Key, ", ")
	if s.Synthetic {
		key += " (synthetic)"
	}
	return fmt.Sprintf("Built %s: %d records, %d fields, key [%s] → %s", s.Source, s.Records, s.Fields, key, s.Output)
}

// NewBuildCommand creates the build command.
func NewBuildCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BuildOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "build [location]",
		Short: "Build an IR from a source",
		Long: `Read a file or database source and build its canonical IR: inferred
schema, detected primary key and typed records.

The source is either a location whose kind follows from its extension
(.json, .csv, .db/.sqlite) or --kind, or a descriptor file given with
--source for database sources.

Examples:
  audd build customers.csv -o a.ir.json
  audd build shop.db --table customers
  audd build --source prod.yaml --pk id --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			location := ""
			if len(args) == 1 {
				location = args[0]
			}
			return runBuild(opts, location, cmd)
		},
	}

	opts.Source.register(cmd)
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the IR to this file instead of stdout")
	cmd.Flags().StringSlice("pk", nil, "primary key fields, overriding detection")
	cmd.Flags().Int("sample-size", build.DefaultSampleSize, "records sampled for type inference and key detection")
	cmd.Flags().Int("max-key-width", build.DefaultMaxKeyWidth, "widest composite key tried")
	configKey(cmd.Flags(), "pk", "build.primary_key")
	configKey(cmd.Flags(), "sample-size", "build.sample_size")
	configKey(cmd.Flags(), "max-key-width", "build.max_key_width")

	return cmd
}

func runBuild(opts *BuildOptions, location string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	d, err := opts.Source.Descriptor(location)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid source", err)
	}
	f.VerboseLog("building %s", d)

	x, err := build.Build(cmd.Context(), d, opts.Config.BuildOptions())
	if err != nil {
		return WrapExitError(ExitCommandError, "build failed", err)
	}
	return emit(f, opts.Output, x, summarizeIR(d.String(), x, opts.Output))
}

func summarizeIR(src string, x *ir.IR, output string) BuildSummary {
	return BuildSummary{
		Source:    src,
		Records:   len(x.Data),
		Fields:    len(x.Schema.Fields),
		Key:       x.Schema.PrimaryKey,
		Synthetic: x.Schema.SyntheticKey,
		Output:    output,
	}
}
