package resolve

import (
	"math"

	"github.com/roach88/audd/internal/errs"
)

// Strategy decides which changes resolve without a human.
type Strategy string

const (
	// Conservative auto-resolves additions only.
	Conservative Strategy = "conservative"
	// Aggressive auto-resolves everything.
	Aggressive Strategy = "aggressive"
	// Balanced auto-resolves changes whose confidence clears AutoResolveThreshold.
	Balanced Strategy = "balanced"
)

// Source names the side whose values win.
type Source string

const (
	PreferA     Source = "a"
	PreferB     Source = "b"
	PreferMerge Source = "merge"
)

// DefaultAutoResolveThreshold is the balanced strategy's confidence bar.
const DefaultAutoResolveThreshold = 0.95

// Options configure Propose. A zero AutoResolveThreshold means
// DefaultAutoResolveThreshold.
type Options struct {
	Strategy             Strategy
	PreferSource         Source
	AutoResolveThreshold float64
}

// DefaultOptions returns balanced merging at DefaultAutoResolveThreshold.
func DefaultOptions() Options {
	return Options{Strategy: Balanced, PreferSource: PreferMerge, AutoResolveThreshold: DefaultAutoResolveThreshold}
}

// ParseStrategy maps a name to a Strategy. The empty name is Balanced.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "":
		return Balanced, nil
	case Conservative, Aggressive, Balanced:
		return Strategy(s), nil
	}
	return "", errs.InvalidInput("propose", "unknown strategy %q (want conservative, aggressive or balanced)", s)
}

// ParseSource maps a name to a Source. The empty name is PreferMerge.
func ParseSource(s string) (Source, error) {
	switch Source(s) {
	case "":
		return PreferMerge, nil
	case PreferA, PreferB, PreferMerge:
		return Source(s), nil
	}
	return "", errs.InvalidInput("propose", "unknown prefer source %q (want a, b or merge)", s)
}

func (o Options) validate() (Options, error) {
	var err error
	if o.Strategy, err = ParseStrategy(string(o.Strategy)); err != nil {
		return o, err
	}
	if o.PreferSource, err = ParseSource(string(o.PreferSource)); err != nil {
		return o, err
	}
	if o.AutoResolveThreshold == 0 {
		o.AutoResolveThreshold = DefaultAutoResolveThreshold
	}
	t := o.AutoResolveThreshold
	if math.IsNaN(t) || t <= 0 || t > 1 {
		return o, errs.InvalidInput("propose", "auto-resolve threshold must be within (0, 1], got %v", t)
	}
	return o, nil
}
