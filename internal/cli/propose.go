package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/audd/internal/ir"
	"github.com/roach88/audd/internal/resolve"
)

// ProposeOptions holds flags for the propose command.
type ProposeOptions struct {
	*RootOptions
	Output string
}

// PlanSummary counts the actions of a plan by kind.
type PlanSummary struct {
	Strategy     string         `json:"strategy"`
	PreferSource string         `json:"prefer_source"`
	Actions      map[string]int `json:"actions"`
	Output       string         `json:"output"`
}

func (s PlanSummary) String() string {
	return fmt.Sprintf("Planned (%s, prefer %s): %d accept, %d reject, %d merge, %d manual → %s",
		s.Strategy, s.PreferSource,
		s.Actions[string(ir.ActionAccept)], s.Actions[string(ir.ActionReject)],
		s.Actions[string(ir.ActionMerge)], s.Actions[string(ir.ActionManual)], s.Output)
}

// NewProposeCommand creates the propose command.
func NewProposeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProposeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "propose <diff.json>",
		Short: "Plan a resolution for a diff",
		Long: `Turn a Diff into a Plan with one action per change.

Examples:
  audd propose diff.json -o plan.json
  audd propose diff.json --strategy aggressive --prefer b`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPropose(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the plan to this file instead of stdout")
	cmd.Flags().String("strategy", string(resolve.Balanced), "resolution strategy (conservative|aggressive|balanced)")
	cmd.Flags().String("prefer", string(resolve.PreferMerge), "preferred source (a|b|merge)")
	cmd.Flags().Float64("auto-threshold", resolve.DefaultAutoResolveThreshold, "confidence above which balanced resolves automatically")
	configKey(cmd.Flags(), "strategy", "resolve.strategy")
	configKey(cmd.Flags(), "prefer", "resolve.prefer_source")
	configKey(cmd.Flags(), "auto-threshold", "resolve.auto_resolve_threshold")

	return cmd
}

func runPropose(opts *ProposeOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	d, err := readDiff(cmd, path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read diff", err)
	}
	p, err := resolve.Propose(d, opts.Config.ResolveOptions())
	if err != nil {
		return WrapExitError(ExitCommandError, "propose failed", err)
	}
	return emit(f, opts.Output, p, summarizePlan(p, opts.Output))
}

func summarizePlan(p *ir.Plan, output string) PlanSummary {
	s := PlanSummary{Strategy: p.Strategy, PreferSource: p.PreferSource, Actions: map[string]int{}, Output: output}
	for _, a := range p.Actions {
		s.Actions[string(a.Kind)]++
	}
	return s
}
