package build

import (
	"time"

	"github.com/roach88/audd/internal/errs"
)

// Defaults for Options.
const (
	DefaultSampleSize  = 1000
	DefaultMaxKeyWidth = 2
)

// Clock supplies the IR creation timestamp.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Options configure a build.
type Options struct {
	// SampleSize bounds the rows examined for type inference and key
	// candidates. Zero means DefaultSampleSize.
	SampleSize int

	// MaxKeyWidth bounds the number of fields in a detected composite key.
	// Zero means DefaultMaxKeyWidth.
	MaxKeyWidth int

	// PrimaryKey overrides key detection. The fields must exist and be
	// unique and non-null across all records.
	PrimaryKey []string

	// Clock stamps metadata.created_at. Nil means the system clock.
	Clock Clock
}

func (o Options) withDefaults() (Options, error) {
	if o.SampleSize < 0 {
		return o, errs.InvalidInput("build", "sample size must not be negative, got %d", o.SampleSize)
	}
	if o.MaxKeyWidth < 0 {
		return o, errs.InvalidInput("build", "max key width must not be negative, got %d", o.MaxKeyWidth)
	}
	if o.SampleSize == 0 {
		o.SampleSize = DefaultSampleSize
	}
	if o.MaxKeyWidth == 0 {
		o.MaxKeyWidth = DefaultMaxKeyWidth
	}
	if o.Clock == nil {
		o.Clock = systemClock{}
	}
	return o, nil
}
