package diff

import (
	"math"

	"github.com/roach88/audd/internal/errs"
)

// Strategy selects what Compare reports.
type Strategy string

const (
	Structural Strategy = "structural"
	Semantic   Strategy = "semantic"
	Hybrid     Strategy = "hybrid"
)

// DefaultThreshold is the similarity below which a field counts as modified.
const DefaultThreshold = 0.8

// Options configure a comparison.
type Options struct {
	Strategy     Strategy
	Threshold    float64
	IgnoreFields []string
}

// DefaultOptions returns hybrid comparison at DefaultThreshold.
func DefaultOptions() Options {
	return Options{Strategy: Hybrid, Threshold: DefaultThreshold}
}

// ParseStrategy maps a name to a Strategy. The empty name is Hybrid.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "":
		return Hybrid, nil
	case Structural, Semantic, Hybrid:
		return Strategy(s), nil
	}
	return "", errs.InvalidInput("compare", "unknown strategy %q (want structural, semantic or hybrid)", s)
}

func (o Options) validate() (Options, error) {
	s, err := ParseStrategy(string(o.Strategy))
	if err != nil {
		return o, err
	}
	o.Strategy = s
	if o.Threshold < 0 || o.Threshold > 1 || math.IsNaN(o.Threshold) {
		return o, errs.InvalidInput("compare", "threshold must be within [0, 1], got %v", o.Threshold)
	}
	return o, nil
}

func (o Options) schemaChanges() bool { return o.Strategy != Semantic }
func (o Options) rowChanges() bool    { return o.Strategy != Structural }
