package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/roach88/audd/internal/errs"
	"github.com/roach88/audd/internal/ir"
)

// Dataset is a handle on one stored dataset. It implements apply.Target
// and apply.BackupStore.
type Dataset struct {
	s    *Store
	name string
}

// Name returns the dataset name.
func (d *Dataset) Name() string { return d.name }

// DatasetInfo summarizes a stored dataset.
type DatasetInfo struct {
	Name        string    `json:"name"`
	Records     int       `json:"records"`
	ContentHash string    `json:"content_hash"`
	CreatedAt   time.Time `json:"created_at"`
}

// LogEntry is one recorded apply.
type LogEntry struct {
	Seq         int64           `json:"seq"`
	Dataset     string          `json:"dataset"`
	PlanID      string          `json:"plan_id"`
	BackupID    string          `json:"backup_id,omitempty"`
	DryRun      bool            `json:"dry_run"`
	Applied     bool            `json:"applied"`
	Interrupted string          `json:"interrupted,omitempty"`
	Result      *ir.ApplyResult `json:"result"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Dataset returns a handle on the named dataset.
func (s *Store) Dataset(ctx context.Context, name string) (*Dataset, error) {
	ok, err := s.HasDataset(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.InvalidInput("store.dataset", "dataset %q not found", name)
	}
	return &Dataset{s: s, name: name}, nil
}

// HasDataset reports whether name is stored.
func (s *Store) HasDataset(ctx context.Context, name string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM datasets WHERE name = ?`, name).Scan(&n); err != nil {
		return false, errs.Wrap(errs.KindIO, "store.has_dataset", err, "lookup %q", name)
	}
	return n > 0, nil
}

// Datasets lists stored datasets by name.
func (s *Store) Datasets(ctx context.Context) ([]DatasetInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.name, d.content_hash, d.created_at,
		       (SELECT COUNT(*) FROM records r WHERE r.dataset = d.name)
		FROM datasets d
		ORDER BY d.name COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, "store.datasets", err, "query")
	}
	defer rows.Close()

	var out []DatasetInfo
	for rows.Next() {
		var info DatasetInfo
		var created string
		if err := rows.Scan(&info.Name, &info.ContentHash, &created, &info.Records); err != nil {
			return nil, errs.Wrap(errs.KindIO, "store.datasets", err, "scan")
		}
		if info.CreatedAt, err = parseTime(created); err != nil {
			return nil, errs.Wrap(errs.KindIO, "store.datasets", err, "dataset %q", info.Name)
		}
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.KindIO, "store.datasets", err, "iterate")
	}
	return out, nil
}

// Schema implements apply.Target.
func (d *Dataset) Schema(ctx context.Context) (ir.Schema, error) {
	schema, err := loadSchema(ctx, d.s.db, d.name)
	if err != nil {
		return ir.Schema{}, errs.Wrap(errs.KindIO, "store.schema", err, "dataset %q", d.name)
	}
	return schema, nil
}

// Lookup implements apply.Target.
func (d *Dataset) Lookup(ctx context.Context, key ir.Key) (ir.IRObject, bool, error) {
	keyJSON, err := marshalKey(key)
	if err != nil {
		return nil, false, errs.Wrap(errs.KindInvalidInput, "store.lookup", err, "key")
	}
	schema, err := loadSchema(ctx, d.s.db, d.name)
	if err != nil {
		return nil, false, errs.Wrap(errs.KindIO, "store.lookup", err, "dataset %q", d.name)
	}
	rec, ok, err := lookupRecord(ctx, d.s.db, d.name, keyJSON, schema.Types())
	if err != nil {
		return nil, false, errs.Wrap(errs.KindIO, "store.lookup", err, "record %s", keyJSON)
	}
	return rec, ok, nil
}

// Export rebuilds the dataset as an IR with records in key order.
func (d *Dataset) Export(ctx context.Context) (*ir.IR, error) {
	var (
		version, sourceJSON, created string
		low                          int
	)
	err := d.s.db.QueryRowContext(ctx, `
		SELECT version, source, low_confidence, created_at
		FROM datasets WHERE name = ?
	`, d.name).Scan(&version, &sourceJSON, &low, &created)
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, "store.export", err, "dataset %q", d.name)
	}

	x := &ir.IR{Version: version}
	if err := json.Unmarshal([]byte(sourceJSON), &x.Source); err != nil {
		return nil, errs.Wrap(errs.KindIO, "store.export", err, "source of %q", d.name)
	}
	if x.Schema, err = loadSchema(ctx, d.s.db, d.name); err != nil {
		return nil, errs.Wrap(errs.KindIO, "store.export", err, "dataset %q", d.name)
	}
	records, err := scanRecords(ctx, d.s.db, d.name, x.Schema.Types())
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, "store.export", err, "dataset %q", d.name)
	}
	x.Data = make([]ir.IRObject, len(records))
	for i, r := range records {
		x.Data[i] = r.rec
	}
	createdAt, err := parseTime(created)
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, "store.export", err, "dataset %q", d.name)
	}
	x.Metadata = ir.Metadata{RowCount: len(x.Data), CreatedAt: createdAt, LowConfidence: low != 0}
	return x, nil
}

// ApplyLog lists recorded applies for dataset, oldest first.
func (s *Store) ApplyLog(ctx context.Context, dataset string) ([]LogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, dataset, plan_id, backup_id, dry_run, applied, interrupted, result, created_at
		FROM apply_log
		WHERE dataset = ?
		ORDER BY seq ASC
	`, dataset)
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, "store.apply_log", err, "query")
	}
	defer rows.Close()

	var out []LogEntry
	for rows.Next() {
		var (
			e                 LogEntry
			backup            sql.NullString
			dry, applied      int
			result, createdAt string
		)
		if err := rows.Scan(&e.Seq, &e.Dataset, &e.PlanID, &backup, &dry, &applied, &e.Interrupted, &result, &createdAt); err != nil {
			return nil, errs.Wrap(errs.KindIO, "store.apply_log", err, "scan")
		}
		e.BackupID = backup.String
		e.DryRun, e.Applied = dry != 0, applied != 0
		if e.Result, err = ir.DecodeApplyResult([]byte(result)); err != nil {
			return nil, errs.Wrap(errs.KindIO, "store.apply_log", err, "entry %d", e.Seq)
		}
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, errs.Wrap(errs.KindIO, "store.apply_log", err, "entry %d", e.Seq)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.KindIO, "store.apply_log", err, "iterate")
	}
	return out, nil
}

func loadSchema(ctx context.Context, q querier, dataset string) (ir.Schema, error) {
	var pkJSON string
	var synthetic, declared int
	err := q.QueryRowContext(ctx,
		`SELECT primary_key, synthetic_key, declared FROM datasets WHERE name = ?`, dataset).Scan(&pkJSON, &synthetic, &declared)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Schema{}, errs.InvalidInput("store", "dataset %q not found", dataset)
	}
	if err != nil {
		return ir.Schema{}, fmt.Errorf("read dataset: %w", err)
	}

	schema := ir.Schema{SyntheticKey: synthetic != 0, Declared: declared != 0}
	if err := json.Unmarshal([]byte(pkJSON), &schema.PrimaryKey); err != nil {
		return ir.Schema{}, fmt.Errorf("unmarshal primary key: %w", err)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT name, type, nullable FROM dataset_fields
		WHERE dataset = ?
		ORDER BY position ASC
	`, dataset)
	if err != nil {
		return ir.Schema{}, fmt.Errorf("read fields: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var f ir.Field
		var typ string
		var nullable int
		if err := rows.Scan(&f.Name, &typ, &nullable); err != nil {
			return ir.Schema{}, fmt.Errorf("scan field: %w", err)
		}
		f.Type, f.Nullable = ir.Type(typ), nullable != 0
		schema.Fields = append(schema.Fields, f)
	}
	return schema, rows.Err()
}

func lookupRecord(ctx context.Context, q querier, dataset, keyJSON string, hints map[string]ir.Type) (ir.IRObject, bool, error) {
	var data string
	err := q.QueryRowContext(ctx,
		`SELECT data FROM records WHERE dataset = ? AND record_key = ?`, dataset, keyJSON).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read record: %w", err)
	}
	rec, err := unmarshalRecord(data, hints)
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

type storedRecord struct {
	key ir.Key
	rec ir.IRObject
}

// scanRecords reads every record of dataset in primary key order.
func scanRecords(ctx context.Context, q querier, dataset string, hints map[string]ir.Type) ([]storedRecord, error) {
	schema, err := loadSchema(ctx, q, dataset)
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT record_key, data FROM records
		WHERE dataset = ?
		ORDER BY record_key COLLATE BINARY ASC
	`, dataset)
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	defer rows.Close()

	var out []storedRecord
	for rows.Next() {
		var keyJSON, data string
		if err := rows.Scan(&keyJSON, &data); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		key, err := unmarshalKey(keyJSON)
		if err != nil {
			return nil, err
		}
		rec, err := unmarshalRecord(data, hints)
		if err != nil {
			return nil, err
		}
		out = append(out, storedRecord{key: typedKey(key, schema.PrimaryKey, hints), rec: rec})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	slices.SortStableFunc(out, func(a, b storedRecord) int { return ir.CompareKeys(a.key, b.key) })
	return out, nil
}
