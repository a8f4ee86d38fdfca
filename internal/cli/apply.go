package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/audd/internal/apply"
	"github.com/roach88/audd/internal/ir"
)

// ApplyOptions holds flags for the apply command.
type ApplyOptions struct {
	*RootOptions
	Dataset string // store dataset to apply to
	Base    string // IR file to apply to in memory
	Final   string // where the in-memory result goes
	Output  string
}

// ApplySummary counts the outcome of an apply.
type ApplySummary struct {
	Applied     bool           `json:"applied"`
	DryRun      bool           `json:"dry_run"`
	Statuses    map[string]int `json:"statuses"`
	Backup      string         `json:"backup,omitempty"`
	Interrupted string         `json:"interrupted,omitempty"`
	Output      string         `json:"output,omitempty"`
}

func (s ApplySummary) String() string {
	verb := "Applied"
	if s.DryRun {
		verb = "Dry run"
	}
	out := fmt.Sprintf("%s: %d succeeded, %d failed, %d skipped",
		verb, s.Statuses[string(ir.StatusSucceeded)], s.Statuses[string(ir.StatusFailed)], s.Statuses[string(ir.StatusSkipped)])
	if s.Backup != "" {
		out += fmt.Sprintf(", backup %s", s.Backup)
	}
	if s.Interrupted != "" {
		out += fmt.Sprintf(" (%s)", s.Interrupted)
	}
	return out
}

func summarizeApply(res *ir.ApplyResult, output string) ApplySummary {
	s := ApplySummary{
		Applied:     res.Applied,
		DryRun:      res.DryRun,
		Statuses:    map[string]int{},
		Interrupted: res.Interrupted,
		Output:      output,
	}
	for status, n := range res.Counts() {
		s.Statuses[string(status)] = n
	}
	if res.Backup != nil {
		s.Backup = res.Backup.ID
	}
	return s
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ApplyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "apply <plan.json>",
		Short: "Apply a plan to a target",
		Long: `Execute a Plan against a stored dataset (--dataset) or an in-memory
copy of an IR (--ir). Manual actions are skipped; a failed action does not
stop the others.

Exit codes:
  0 - Every executable action succeeded
  1 - One or more actions failed, or the apply was interrupted
  2 - Command error (unreadable plan, missing dataset, etc.)

Examples:
  audd apply plan.json --dataset customers --db audd.db
  audd apply plan.json --ir a.ir.json --final merged.ir.json
  audd apply plan.json --dataset customers --dry-run`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Dataset, "dataset", "", "store dataset to apply to")
	cmd.Flags().StringVar(&opts.Base, "ir", "", "IR file to apply to in memory instead of a store dataset")
	cmd.Flags().StringVar(&opts.Final, "final", "", "with --ir, write the resulting IR to this file")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the apply result to this file")
	cmd.Flags().String("db", "audd.db", "path to the SQLite store")
	cmd.Flags().Bool("dry-run", false, "validate every action without mutating the target")
	cmd.Flags().Bool("backup", true, "snapshot affected records before mutating")
	configKey(cmd.Flags(), "db", "store.path")
	configKey(cmd.Flags(), "dry-run", "apply.dry_run")
	configKey(cmd.Flags(), "backup", "apply.backup")
	cmd.MarkFlagsMutuallyExclusive("dataset", "ir")
	cmd.MarkFlagsOneRequired("dataset", "ir")

	return cmd
}

func runApply(opts *ApplyOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()

	p, err := readPlan(cmd, path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read plan", err)
	}

	var res *ir.ApplyResult
	if opts.Base != "" {
		res, err = applyInMemory(ctx, opts, cmd, p)
	} else {
		res, err = applyToStore(ctx, opts, p)
	}
	if err != nil {
		return err
	}

	if opts.Output != "" {
		if err := writeEntity(opts.Output, res); err != nil {
			return WrapExitError(ExitCommandError, "failed to write output", err)
		}
	}
	summary := summarizeApply(res, opts.Output)
	if !res.Applied {
		return f.Failure(summary, "partial_apply", applyFailureMessage(res))
	}
	return f.Success(summary)
}

func applyInMemory(ctx context.Context, opts *ApplyOptions, cmd *cobra.Command, p *ir.Plan) (*ir.ApplyResult, error) {
	base, err := readIR(cmd, opts.Base)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read IR", err)
	}
	mt, err := apply.NewMemoryTarget(base)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid IR", err)
	}
	res, err := apply.New(mt).Apply(ctx, p, opts.Config.ApplyOptions())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "apply failed", err)
	}
	if opts.Final != "" {
		if err := writeEntity(opts.Final, mt.IR(base)); err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to write final IR", err)
		}
	}
	return res, nil
}

func applyToStore(ctx context.Context, opts *ApplyOptions, p *ir.Plan) (*ir.ApplyResult, error) {
	st, err := openStore(opts.RootOptions)
	if err != nil {
		return nil, err
	}
	defer closeStore(st)

	ds, err := st.Dataset(ctx, opts.Dataset)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open dataset", err)
	}
	res, err := apply.New(ds).Apply(ctx, p, opts.Config.ApplyOptions())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "apply failed", err)
	}
	// The log entry is written even when ctx was cancelled mid-apply.
	if err := st.LogApply(context.WithoutCancel(ctx), opts.Dataset, p, res); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to record apply", err)
	}
	return res, nil
}

func applyFailureMessage(res *ir.ApplyResult) string {
	if res.Interrupted != "" {
		return fmt.Sprintf("apply %s after %d actions", res.Interrupted, len(res.Results))
	}
	return fmt.Sprintf("%d action(s) failed", res.Counts()[ir.StatusFailed])
}
