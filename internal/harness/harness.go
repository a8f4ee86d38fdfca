package harness

import (
	"context"
	"fmt"

	"github.com/roach88/audd/internal/build"
	"github.com/roach88/audd/internal/config"
	"github.com/roach88/audd/internal/engine"
	"github.com/roach88/audd/internal/errs"
	"github.com/roach88/audd/internal/store"
	"github.com/roach88/audd/internal/testutil"
)

// targetDataset is the store dataset every scenario applies to.
const targetDataset = "target"

// Run executes a scenario and evaluates its expectations.
//
// Each scenario runs in a fresh in-memory database for isolation. The
// returned error covers harness failures (bad settings, unexpected pipeline
// errors); failed expectations are reported in Result.
func Run(sc *Scenario) (*Result, error) {
	return RunContext(context.Background(), sc)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, sc *Scenario) (*Result, error) {
	clock := testutil.NewFixedClock(testutil.Epoch)
	st, err := store.Open(":memory:",
		store.WithClock(clock.Now),
		store.WithIDGenerator(testutil.NewSequentialIDs("backup").Generate))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	result := NewResult()
	cfg, err := sc.config()
	if err != nil {
		return result.failed(sc, err)
	}

	if sc.Target != nil {
		if err := seedTarget(ctx, st, sc, cfg, clock); err != nil {
			return nil, fmt.Errorf("failed to seed target: %w", err)
		}
	}

	eng := engine.New(cfg,
		engine.WithStore(st),
		engine.WithClock(clock),
		engine.WithRunIDs(testutil.NewSequentialIDs("run")))
	job := engine.Job{
		Name:       sc.Name,
		A:          sc.A.Descriptor(sc.dir),
		B:          sc.B.Descriptor(sc.dir),
		Target:     targetDataset,
		PrimaryKey: sc.PrimaryKey,
	}

	rep, err := eng.Reconcile(ctx, job)
	if err != nil {
		return result.failed(sc, err)
	}
	result.Report = rep

	if sc.Expect.Error != "" {
		result.AddError(fmt.Sprintf("expected error %s, run succeeded", sc.Expect.Error))
	}
	for _, msg := range checkExpect(rep, sc.Expect) {
		result.AddError(msg)
	}
	for _, msg := range EvaluateAssertions(rep, sc.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// failed records a pipeline error. An error the scenario expects is an
// outcome; any other is returned.
func (r *Result) failed(sc *Scenario, err error) (*Result, error) {
	if sc.Expect.Error == "" {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}
	r.ErrorKind = string(errs.KindOf(err))
	if r.ErrorKind != sc.Expect.Error {
		r.AddError(fmt.Sprintf("expected error %s, got %s: %v", sc.Expect.Error, r.ErrorKind, err))
	}
	return r, nil
}

// config layers the scenario's settings over the defaults.
func (sc *Scenario) config() (*config.Config, error) {
	cfg := config.Default()
	if sc.Compare.Strategy != "" {
		cfg.Compare.Strategy = sc.Compare.Strategy
	}
	if sc.Compare.Threshold != nil {
		cfg.Compare.Threshold = *sc.Compare.Threshold
	}
	cfg.Compare.IgnoreFields = sc.Compare.IgnoreFields
	if sc.Resolve.Strategy != "" {
		cfg.Resolve.Strategy = sc.Resolve.Strategy
	}
	if sc.Resolve.PreferSource != "" {
		cfg.Resolve.PreferSource = sc.Resolve.PreferSource
	}
	if sc.Resolve.AutoResolveThreshold != nil {
		cfg.Resolve.AutoResolveThreshold = *sc.Resolve.AutoResolveThreshold
	}
	cfg.Apply.DryRun = sc.Apply.DryRun
	if sc.Apply.Backup != nil {
		cfg.Apply.Backup = *sc.Apply.Backup
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}
	return cfg, nil
}

func seedTarget(ctx context.Context, st *store.Store, sc *Scenario, cfg *config.Config, clock build.Clock) error {
	opts := cfg.BuildOptions()
	opts.Clock = clock
	if len(sc.PrimaryKey) > 0 {
		opts.PrimaryKey = sc.PrimaryKey
	}
	x, err := build.Build(ctx, sc.Target.Descriptor(sc.dir), opts)
	if err != nil {
		return err
	}
	return st.Import(ctx, targetDataset, x)
}
