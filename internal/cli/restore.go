package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// RestoreOptions holds flags for the restore command.
type RestoreOptions struct {
	*RootOptions
	Dataset string
	Backup  string
}

// RestoreResult describes a completed restore.
type RestoreResult struct {
	Dataset     string `json:"dataset"`
	Backup      string `json:"backup"`
	Records     int    `json:"records"`
	ContentHash string `json:"content_hash"`
}

func (r RestoreResult) String() string {
	return fmt.Sprintf("Restored backup %s of %s: %d records (%s)", r.Backup, r.Dataset, r.Records, shortHash(r.ContentHash))
}

// NewRestoreCommand creates the restore command.
func NewRestoreCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RestoreOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Roll a dataset back to a pre-apply backup",
		Long: `Put the records saved by an apply's backup back as they were. Backup
ids are printed by apply and reconcile and listed by "audd log".

Examples:
  audd restore --dataset customers --backup 0192f7c4-...
  audd restore --dataset customers --backup 0192f7c4-... --db ./audd.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRestore(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Dataset, "dataset", "", "dataset to restore (required)")
	cmd.Flags().StringVar(&opts.Backup, "backup", "", "backup id (required)")
	cmd.Flags().String("db", "audd.db", "path to the SQLite store")
	configKey(cmd.Flags(), "db", "store.path")
	_ = cmd.MarkFlagRequired("dataset")
	_ = cmd.MarkFlagRequired("backup")

	return cmd
}

func runRestore(opts *RestoreOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()

	st, err := openStore(opts.RootOptions)
	if err != nil {
		return err
	}
	defer closeStore(st)

	ds, err := st.Dataset(ctx, opts.Dataset)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open dataset", err)
	}
	if err := ds.Restore(ctx, opts.Backup); err != nil {
		return WrapExitError(ExitCommandError, "restore failed", err)
	}

	x, err := ds.Export(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read restored dataset", err)
	}
	hash, err := contentHash(x)
	if err != nil {
		return err
	}
	return f.Success(RestoreResult{Dataset: opts.Dataset, Backup: opts.Backup, Records: len(x.Data), ContentHash: hash})
}
