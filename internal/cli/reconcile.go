package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/audd/internal/diff"
	"github.com/roach88/audd/internal/engine"
	"github.com/roach88/audd/internal/resolve"
	"github.com/roach88/audd/internal/store"
)

// ReconcileOptions holds flags for the reconcile command.
type ReconcileOptions struct {
	*RootOptions
	Target string
	Output string

	// RunIDs allows overriding the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs engine.RunIDGenerator
}

// ReconcileSummary is the short form of a run report.
type ReconcileSummary struct {
	RunID   string         `json:"run_id"`
	Job     string         `json:"job,omitempty"`
	Target  string         `json:"target,omitempty"`
	Seeded  bool           `json:"seeded,omitempty"`
	Applied bool           `json:"applied"`
	Counts  map[string]int `json:"counts"`
	Output  string         `json:"output,omitempty"`
}

func (s ReconcileSummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s", s.RunID)
	if s.Job != "" {
		fmt.Fprintf(&b, " (%s)", s.Job)
	}
	if s.Target != "" {
		fmt.Fprintf(&b, " → %s", s.Target)
		if s.Seeded {
			b.WriteString(" (seeded from A)")
		}
	}
	names := make([]string, 0, len(s.Counts))
	for k := range s.Counts {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		fmt.Fprintf(&b, "\n  %-22s %d", k, s.Counts[k])
	}
	return b.String()
}

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReconcileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reconcile <job.yaml>",
		Short: "Run build, compare, propose and apply in one go",
		Long: `Run a reconciliation job: build sources A and B in parallel, diff them,
plan a resolution and apply it.

With a target the plan is applied to that store dataset, which is seeded
from A when it does not exist yet. Without one it is applied to an
in-memory copy of A.

Exit codes:
  0 - Every executable action succeeded
  1 - One or more actions failed, or the run was interrupted
  2 - Command error

Examples:
  audd reconcile job.yaml
  audd reconcile job.yaml --target customers --db audd.db
  audd reconcile job.yaml --strategy aggressive --prefer b --dry-run`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Target, "target", "", "store dataset to apply to, overriding the job")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the full run report to this file")
	cmd.Flags().String("db", "audd.db", "path to the SQLite store")
	cmd.Flags().StringSlice("pk", nil, "primary key fields, overriding detection")
	cmd.Flags().String("compare-strategy", string(diff.Hybrid), "comparison strategy (structural|semantic|hybrid)")
	cmd.Flags().Float64("threshold", diff.DefaultThreshold, "similarity below which values count as modified")
	cmd.Flags().String("strategy", string(resolve.Balanced), "resolution strategy (conservative|aggressive|balanced)")
	cmd.Flags().String("prefer", string(resolve.PreferMerge), "preferred source (a|b|merge)")
	cmd.Flags().Bool("dry-run", false, "validate every action without mutating the target")
	cmd.Flags().Bool("backup", true, "snapshot affected records before mutating")
	configKey(cmd.Flags(), "db", "store.path")
	configKey(cmd.Flags(), "pk", "build.primary_key")
	configKey(cmd.Flags(), "compare-strategy", "compare.strategy")
	configKey(cmd.Flags(), "threshold", "compare.threshold")
	configKey(cmd.Flags(), "strategy", "resolve.strategy")
	configKey(cmd.Flags(), "prefer", "resolve.prefer_source")
	configKey(cmd.Flags(), "dry-run", "apply.dry_run")
	configKey(cmd.Flags(), "backup", "apply.backup")

	return cmd
}

func runReconcile(opts *ReconcileOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	job, err := engine.LoadJob(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load job", err)
	}
	if opts.Target != "" {
		job.Target = opts.Target
	}

	engineOpts := []engine.Option{}
	if opts.RunIDs != nil {
		engineOpts = append(engineOpts, engine.WithRunIDs(opts.RunIDs))
	}
	var st *store.Store
	if job.Target != "" {
		if st, err = openStore(opts.RootOptions); err != nil {
			return err
		}
		defer closeStore(st)
		engineOpts = append(engineOpts, engine.WithStore(st))
	}

	// Cancellation stops the apply at the next action boundary; the partial
	// result is still reported and logged.
	rep, err := engine.New(opts.Config, engineOpts...).Reconcile(cmd.Context(), job)
	if err != nil {
		return WrapExitError(ExitCommandError, "reconcile failed", err)
	}

	if opts.Output != "" {
		if err := writeEntity(opts.Output, rep); err != nil {
			return WrapExitError(ExitCommandError, "failed to write report", err)
		}
	}
	summary := ReconcileSummary{
		RunID:   rep.RunID,
		Job:     rep.Job,
		Target:  rep.Target,
		Seeded:  rep.Seeded,
		Applied: rep.Result.Applied,
		Counts:  rep.Counts,
		Output:  opts.Output,
	}
	if !rep.Result.Applied {
		return f.Failure(summary, "partial_apply", applyFailureMessage(rep.Result))
	}
	return f.Success(summary)
}
