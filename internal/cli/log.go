package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/audd/internal/ir"
	"github.com/roach88/audd/internal/store"
)

// LogOptions holds flags for the log command.
type LogOptions struct {
	*RootOptions
	Dataset string
}

// LogEntrySummary is one apply log line.
type LogEntrySummary struct {
	Seq         int64          `json:"seq"`
	PlanID      string         `json:"plan_id"`
	BackupID    string         `json:"backup_id,omitempty"`
	DryRun      bool           `json:"dry_run"`
	Applied     bool           `json:"applied"`
	Interrupted string         `json:"interrupted,omitempty"`
	Statuses    map[string]int `json:"statuses"`
	CreatedAt   time.Time      `json:"created_at"`
}

// LogResult lists the applies recorded for a dataset.
type LogResult struct {
	Dataset string            `json:"dataset"`
	Entries []LogEntrySummary `json:"entries"`
}

func (r LogResult) String() string {
	if len(r.Entries) == 0 {
		return fmt.Sprintf("No applies recorded for %s.", r.Dataset)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Applies to %s:", r.Dataset)
	for _, e := range r.Entries {
		state := "applied"
		switch {
		case e.Interrupted != "":
			state = e.Interrupted
		case !e.Applied:
			state = "partial"
		}
		if e.DryRun {
			state += " (dry run)"
		}
		fmt.Fprintf(&b, "\n  #%d %s plan %s  %s  ok=%d failed=%d skipped=%d",
			e.Seq, e.CreatedAt.Format(time.RFC3339), shortHash(e.PlanID), state,
			e.Statuses[string(ir.StatusSucceeded)], e.Statuses[string(ir.StatusFailed)], e.Statuses[string(ir.StatusSkipped)])
		if e.BackupID != "" {
			fmt.Fprintf(&b, "  backup %s", e.BackupID)
		}
	}
	return b.String()
}

// NewLogCommand creates the log command.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show the apply log of a dataset",
		Long: `List every plan applied to a stored dataset, oldest first, with its
outcome and the backup taken before it.

Examples:
  audd log --dataset customers
  audd log --dataset customers --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLog(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Dataset, "dataset", "", "dataset whose log to show (required)")
	cmd.Flags().String("db", "audd.db", "path to the SQLite store")
	configKey(cmd.Flags(), "db", "store.path")
	_ = cmd.MarkFlagRequired("dataset")

	return cmd
}

func runLog(opts *LogOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	st, err := openStore(opts.RootOptions)
	if err != nil {
		return err
	}
	defer closeStore(st)

	entries, err := st.ApplyLog(cmd.Context(), opts.Dataset)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read apply log", err)
	}
	result := LogResult{Dataset: opts.Dataset, Entries: make([]LogEntrySummary, 0, len(entries))}
	for _, e := range entries {
		result.Entries = append(result.Entries, summarizeLogEntry(e))
	}
	return f.Success(result)
}

func summarizeLogEntry(e store.LogEntry) LogEntrySummary {
	s := LogEntrySummary{
		Seq:         e.Seq,
		PlanID:      e.PlanID,
		BackupID:    e.BackupID,
		DryRun:      e.DryRun,
		Applied:     e.Applied,
		Interrupted: e.Interrupted,
		Statuses:    map[string]int{},
		CreatedAt:   e.CreatedAt,
	}
	if e.Result != nil {
		for status, n := range e.Result.Counts() {
			s.Statuses[string(status)] = n
		}
	}
	return s
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

func contentHash(x *ir.IR) (string, error) {
	h, err := ir.ContentHash(x)
	if err != nil {
		return "", WrapExitError(ExitCommandError, "failed to hash dataset", err)
	}
	return h, nil
}
