package engine

import (
	"context"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/audd/internal/apply"
	"github.com/roach88/audd/internal/build"
	"github.com/roach88/audd/internal/config"
	"github.com/roach88/audd/internal/diff"
	"github.com/roach88/audd/internal/errs"
	"github.com/roach88/audd/internal/ir"
	"github.com/roach88/audd/internal/resolve"
	"github.com/roach88/audd/internal/store"
)

// Engine runs reconciliation jobs with one configuration.
//
// Thread-safety: Reconcile may be called concurrently; jobs against the same
// target dataset interleave at record granularity.
type Engine struct {
	cfg    *config.Config
	store  *store.Store
	clock  build.Clock
	runIDs RunIDGenerator
}

// Option configures an Engine.
type Option func(*Engine)

// WithStore sets the store target datasets live in.
func WithStore(s *store.Store) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithClock sets the clock stamping built IRs.
func WithClock(c build.Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithRunIDs sets the run id generator.
func WithRunIDs(g RunIDGenerator) Option {
	return func(e *Engine) {
		e.runIDs = g
	}
}

// New creates an Engine. A nil cfg means config.Default().
func New(cfg *config.Config, opts ...Option) *Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	e := &Engine{cfg: cfg, runIDs: UUIDv7Generator{}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Report is everything one run produced.
type Report struct {
	RunID  string          `json:"run_id"`
	Job    string          `json:"job,omitempty"`
	Target string          `json:"target,omitempty"`
	IRA    *ir.IR          `json:"ir_a"`
	IRB    *ir.IR          `json:"ir_b"`
	Diff   *ir.Diff        `json:"diff"`
	Plan   *ir.Plan        `json:"plan"`
	Result *ir.ApplyResult `json:"result"`
	Final  *ir.IR          `json:"final,omitempty"`
	Seeded bool            `json:"seeded,omitempty"`
	Counts map[string]int  `json:"counts"`
}

// Reconcile runs job through build, compare, propose and apply.
func (e *Engine) Reconcile(ctx context.Context, job Job) (*Report, error) {
	if err := job.Validate(); err != nil {
		return nil, err
	}
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}
	if job.Target != "" && e.store == nil {
		return nil, errs.InvalidInput("reconcile", "target %q given but no store is configured", job.Target)
	}

	rep := &Report{RunID: e.runIDs.Generate(), Job: job.Name, Target: job.Target}
	log := slog.With("run", rep.RunID)
	log.Info("reconcile starting", "job", job.Name, "a", job.A.String(), "b", job.B.String(), "target", job.Target)

	var err error
	if rep.IRA, rep.IRB, err = e.buildBoth(ctx, job); err != nil {
		return nil, err
	}
	log.Info("sources built", "a_records", len(rep.IRA.Data), "b_records", len(rep.IRB.Data))

	if rep.Diff, err = diff.Compare(rep.IRA, rep.IRB, e.cfg.CompareOptions()); err != nil {
		return nil, err
	}
	log.Info("compared", "schema_changes", len(rep.Diff.SchemaChanges), "row_changes", len(rep.Diff.RowChanges))

	if rep.Plan, err = resolve.Propose(rep.Diff, e.cfg.ResolveOptions()); err != nil {
		return nil, err
	}
	log.Info("plan proposed", "actions", len(rep.Plan.Actions))

	if err := e.applyPlan(ctx, job, rep); err != nil {
		return nil, err
	}
	rep.Counts = counts(rep)
	log.Info("reconcile finished", "applied", rep.Result.Applied, "interrupted", rep.Result.Interrupted)
	return rep, nil
}

// buildBoth builds A and B concurrently. The first failure cancels the other.
func (e *Engine) buildBoth(ctx context.Context, job Job) (*ir.IR, *ir.IR, error) {
	opts := e.cfg.BuildOptions()
	opts.Clock = e.clock
	if len(job.PrimaryKey) > 0 {
		opts.PrimaryKey = slices.Clone(job.PrimaryKey)
	}

	var a, b *ir.IR
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		x, err := build.Build(gctx, job.A, opts)
		if err != nil {
			return errs.Wrap(errs.KindInternal, "reconcile", err, "build a")
		}
		a = x
		return nil
	})
	g.Go(func() error {
		x, err := build.Build(gctx, job.B, opts)
		if err != nil {
			return errs.Wrap(errs.KindInternal, "reconcile", err, "build b")
		}
		b = x
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

func (e *Engine) applyPlan(ctx context.Context, job Job, rep *Report) error {
	applyOpts := e.cfg.ApplyOptions()

	if job.Target == "" {
		mt, err := apply.NewMemoryTarget(rep.IRA)
		if err != nil {
			return err
		}
		if rep.Result, err = apply.New(mt).Apply(ctx, rep.Plan, applyOpts); err != nil {
			return err
		}
		rep.Final = mt.IR(rep.IRA)
		return nil
	}

	exists, err := e.store.HasDataset(ctx, job.Target)
	if err != nil {
		return err
	}
	if !exists {
		if err := e.store.Import(ctx, job.Target, rep.IRA); err != nil {
			return err
		}
		rep.Seeded = true
		slog.Info("target seeded from a", "run", rep.RunID, "dataset", job.Target, "records", len(rep.IRA.Data))
	}
	ds, err := e.store.Dataset(ctx, job.Target)
	if err != nil {
		return err
	}

	if rep.Result, err = apply.New(ds).Apply(ctx, rep.Plan, applyOpts); err != nil {
		return err
	}
	// The log outlives a cancelled run.
	if err := e.store.LogApply(context.WithoutCancel(ctx), job.Target, rep.Plan, rep.Result); err != nil {
		return err
	}
	if rep.Final, err = ds.Export(context.WithoutCancel(ctx)); err != nil {
		return err
	}
	return nil
}

func counts(rep *Report) map[string]int {
	c := map[string]int{
		"schema_changes": len(rep.Diff.SchemaChanges),
		"row_changes":    len(rep.Diff.RowChanges),
		"actions":        len(rep.Plan.Actions),
	}
	for _, a := range rep.Plan.Actions {
		c["actions_"+string(a.Kind)]++
	}
	for status, n := range rep.Result.Counts() {
		c[string(status)] = n
	}
	return c
}
