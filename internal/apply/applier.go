package apply

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/roach88/audd/internal/errs"
	"github.com/roach88/audd/internal/ir"
)

// Options configure one Apply call.
type Options struct {
	// DryRun validates every action without mutating the target.
	DryRun bool

	// Backup snapshots affected records before the first mutation.
	// Ignored in dry runs.
	Backup bool
}

// Applier executes plans against one target.
type Applier struct {
	target  Target
	backups BackupStore
}

// Option configures an Applier.
type Option func(*Applier)

// WithBackupStore sets where snapshots go. Without it, a target that also
// implements BackupStore snapshots itself.
func WithBackupStore(b BackupStore) Option {
	return func(a *Applier) {
		a.backups = b
	}
}

// New creates an Applier for target.
func New(target Target, opts ...Option) *Applier {
	a := &Applier{target: target}
	if b, ok := target.(BackupStore); ok {
		a.backups = b
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Apply executes p. The returned error covers failures that stop the apply
// before any action runs (invalid plan, unreadable target, failed backup);
// per-action failures are reported in the result.
func (ap *Applier) Apply(ctx context.Context, p *ir.Plan, opts Options) (*ir.ApplyResult, error) {
	if p == nil {
		return nil, errs.InvalidInput("apply", "plan is missing")
	}
	if err := ir.CheckVersion("plan", p.Version); err != nil {
		return nil, errs.Wrap(errs.KindInvalidInput, "apply", err, "plan")
	}
	if opts.Backup && !opts.DryRun && ap.backups == nil {
		return nil, errs.InvalidInput("apply", "backup requested but no backup store is configured")
	}

	result := &ir.ApplyResult{
		Version: ir.IRVersion,
		DryRun:  opts.DryRun,
		Results: make([]ir.ActionResult, 0, len(p.Actions)),
	}
	if err := ctx.Err(); err != nil {
		result.Interrupted = interruption(err)
		return result, nil
	}

	schema, err := ap.target.Schema(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, "apply", err, "read target schema")
	}
	if len(p.KeyFields) > 0 && !slices.Equal(p.KeyFields, schema.PrimaryKey) {
		return nil, errs.InvalidInput("apply", "plan is keyed by %v but the target by %v", p.KeyFields, schema.PrimaryKey)
	}

	if opts.Backup && !opts.DryRun {
		ref, err := ap.backup(ctx, p)
		if err != nil {
			return nil, err
		}
		result.Backup = ref
	}

	v := newView(ap.target, schema)
	failed := 0
	for i, a := range p.Actions {
		if err := ctx.Err(); err != nil {
			result.Interrupted = interruption(err)
			slog.Warn("apply interrupted", "reason", result.Interrupted, "processed", i, "total", len(p.Actions))
			break
		}

		res := ir.ActionResult{Index: i, Ref: a.Ref, Kind: a.Kind}
		if !a.Executable() {
			res.Status = ir.StatusSkipped
			result.Results = append(result.Results, res)
			continue
		}

		// A started mutation completes even if ctx is cancelled meanwhile.
		if err := ap.execute(context.WithoutCancel(ctx), v, a, schema.PrimaryKey, opts.DryRun); err != nil {
			failed++
			res.Status = ir.StatusFailed
			res.Error = err.Error()
			res.ErrorKind = string(errs.KindOf(err))
			slog.Warn("action failed", "index", i, "ref", a.Ref.String(), "kind", string(a.Kind), "error", err)
		} else {
			res.Status = ir.StatusSucceeded
			res.Value = a.Value
			res.ValueType = a.ValueType
		}
		result.Results = append(result.Results, res)
	}

	result.Applied = failed == 0 && result.Interrupted == ""
	counts := result.Counts()
	slog.Info("plan applied",
		"dry_run", opts.DryRun,
		"applied", result.Applied,
		"succeeded", counts[ir.StatusSucceeded],
		"failed", counts[ir.StatusFailed],
		"skipped", counts[ir.StatusSkipped])
	return result, nil
}

func (ap *Applier) execute(ctx context.Context, v *view, a ir.Action, keyFields []string, dryRun bool) error {
	st, err := translate(a, keyFields)
	if err != nil {
		return err
	}
	if v.redundant(st) {
		return nil
	}
	if err := v.check(ctx, st); err != nil {
		return err
	}
	if !dryRun {
		if st.schema != nil {
			err = ap.target.MutateSchema(ctx, *st.schema)
		} else {
			err = ap.target.Mutate(ctx, *st.row)
		}
		if err != nil {
			if errs.KindOf(err) == errs.KindInternal {
				return errs.Wrap(errs.KindIO, "apply", err, "mutate")
			}
			return err
		}
	}
	v.record(st)
	return nil
}

// backup snapshots the records the plan's executable actions touch, or the
// whole dataset when a field is dropped or retyped.
func (ap *Applier) backup(ctx context.Context, p *ir.Plan) (*ir.BackupRef, error) {
	var keys []ir.Key
	seen := make(map[string]bool)
	whole := false
	for _, a := range p.Actions {
		if !a.Executable() {
			continue
		}
		if a.Ref.Section == ir.SectionSchema {
			if a.Value == nil || ir.IsNull(a.Value) || a.Change == ir.ChangeTypeChanged {
				whole = true
			}
			continue
		}
		if s := a.Key.String(); !seen[s] {
			seen[s] = true
			keys = append(keys, a.Key)
		}
	}
	if whole {
		keys = nil
	} else if len(keys) == 0 {
		return nil, nil
	}

	id, n, err := ap.backups.Snapshot(ctx, keys)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errs.FromContext("apply.backup", ctx.Err())
		}
		// Always io_failure, whatever the store classified it as.
		return nil, &errs.Error{Kind: errs.KindIO, Op: "apply.backup", Message: "snapshot failed, nothing was mutated", Err: err}
	}
	slog.Info("backup taken", "id", id, "records", n)
	return &ir.BackupRef{ID: id, Records: n}, nil
}

func interruption(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return string(errs.KindTimeout)
	}
	return string(errs.KindCancelled)
}
