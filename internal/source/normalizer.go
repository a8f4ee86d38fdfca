package source

import (
	"context"

	"github.com/roach88/audd/internal/errs"
)

// Normalizer reads one kind of source into a RawSet.
type Normalizer interface {
	Read(ctx context.Context, d Descriptor) (*RawSet, error)
}

// For returns the normalizer for a kind.
func For(kind Kind) (Normalizer, error) {
	switch kind {
	case KindFileJSON:
		return jsonNormalizer{}, nil
	case KindFileCSV:
		return csvNormalizer{}, nil
	case KindSQLite:
		return sqliteNormalizer, nil
	case KindMySQL:
		return mysqlNormalizer, nil
	case KindPostgres:
		return postgresNormalizer, nil
	case KindMemory:
		return memoryNormalizer{}, nil
	default:
		return nil, errs.New(errs.KindUnsupportedSource, "source", "unsupported source kind %q", kind)
	}
}

// Read validates d, then reads it with the normalizer for its kind.
func Read(ctx context.Context, d Descriptor) (*RawSet, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.FromContext("source.read", err)
	}
	n, err := For(d.Kind)
	if err != nil {
		return nil, err
	}
	set, err := n.Read(ctx, d)
	if err != nil {
		return nil, err
	}
	set.Info = d.Info()
	return set, nil
}
