package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/audd/internal/apply"
	"github.com/roach88/audd/internal/errs"
	"github.com/roach88/audd/internal/ir"
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Import stores x as dataset name, replacing any dataset of that name
// together with its backups. The IR must be valid.
func (s *Store) Import(ctx context.Context, name string, x *ir.IR) error {
	if name == "" {
		return errs.InvalidInput("store.import", "dataset name is empty")
	}
	if x == nil {
		return errs.InvalidInput("store.import", "IR is missing")
	}
	if res := ir.ValidateIR(x); !res.OK {
		return errs.InvalidInput("store.import", "invalid IR: %s", res.Errors[0])
	}

	hash, err := ir.ContentHash(x)
	if err != nil {
		return errs.Wrap(errs.KindInternal, "store.import", err, "hash")
	}
	sourceJSON, err := marshalJSON(x.Source)
	if err != nil {
		return errs.Wrap(errs.KindInternal, "store.import", err, "marshal source")
	}
	pkJSON, err := marshalJSON(x.Schema.PrimaryKey)
	if err != nil {
		return errs.Wrap(errs.KindInternal, "store.import", err, "marshal primary key")
	}

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM datasets WHERE name = ?`, name); err != nil {
			return fmt.Errorf("clear dataset: %w", err)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO datasets
			(name, version, source, primary_key, synthetic_key, declared, low_confidence, content_hash, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			name,
			x.Version,
			sourceJSON,
			pkJSON,
			boolInt(x.Schema.SyntheticKey),
			boolInt(x.Schema.Declared),
			boolInt(x.Metadata.LowConfidence),
			hash,
			formatTime(x.Metadata.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("insert dataset: %w", err)
		}

		for i, f := range x.Schema.Fields {
			if err := insertField(ctx, tx, name, i, f); err != nil {
				return err
			}
		}

		for _, rec := range x.Data {
			if err := upsertRecord(ctx, tx, name, ir.KeyOf(rec, x.Schema.PrimaryKey), rec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errs.Wrap(errs.KindIO, "store.import", err, "import %q", name)
	}
	return nil
}

func insertField(ctx context.Context, q querier, dataset string, pos int, f ir.Field) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO dataset_fields (dataset, position, name, type, nullable)
		VALUES (?, ?, ?, ?, ?)
	`, dataset, pos, f.Name, string(f.Type), boolInt(f.Nullable))
	if err != nil {
		return fmt.Errorf("insert field %q: %w", f.Name, err)
	}
	return nil
}

func upsertRecord(ctx context.Context, q querier, dataset string, key ir.Key, rec ir.IRObject) error {
	keyJSON, err := marshalKey(key)
	if err != nil {
		return err
	}
	data, err := marshalRecord(rec)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO records (dataset, record_key, data)
		VALUES (?, ?, ?)
		ON CONFLICT(dataset, record_key) DO UPDATE SET data = excluded.data
	`, dataset, keyJSON, data)
	if err != nil {
		return fmt.Errorf("upsert record %s: %w", keyJSON, err)
	}
	return nil
}

func deleteRecord(ctx context.Context, q querier, dataset, keyJSON string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM records WHERE dataset = ? AND record_key = ?`, dataset, keyJSON)
	if err != nil {
		return fmt.Errorf("delete record %s: %w", keyJSON, err)
	}
	return nil
}

// Mutate implements apply.Target. Each mutation is one transaction.
func (d *Dataset) Mutate(ctx context.Context, m apply.Mutation) error {
	keyJSON, err := marshalKey(m.Key)
	if err != nil {
		return errs.Wrap(errs.KindInvalidInput, "store.mutate", err, "key")
	}

	err = d.s.inTx(ctx, func(tx *sql.Tx) error {
		switch m.Op {
		case apply.OpUpsert:
			return upsertRecord(ctx, tx, d.name, m.Key, m.Record)
		case apply.OpDelete:
			return deleteRecord(ctx, tx, d.name, keyJSON)
		case apply.OpSet:
			schema, err := loadSchema(ctx, tx, d.name)
			if err != nil {
				return err
			}
			rec, found, err := lookupRecord(ctx, tx, d.name, keyJSON, schema.Types())
			if err != nil {
				return err
			}
			if !found {
				return errs.InvalidInput("store.mutate", "record %s not found", keyJSON)
			}
			rec[m.Field] = m.Value
			return upsertRecord(ctx, tx, d.name, m.Key, rec)
		}
		return errs.Internal("store.mutate", "unknown mutation %q", m.Op)
	})
	if err != nil {
		return errs.Wrap(errs.KindIO, "store.mutate", err, "%s %s", m.Op, keyJSON)
	}
	return nil
}

// MutateSchema implements apply.Target. Dropping or retyping a field
// rewrites the affected records in the same transaction.
func (d *Dataset) MutateSchema(ctx context.Context, m apply.SchemaMutation) error {
	err := d.s.inTx(ctx, func(tx *sql.Tx) error {
		if m.Drop {
			return dropField(ctx, tx, d.name, m.Field)
		}

		rewritten, err := retypeRecords(ctx, tx, d.name, m)
		if err != nil {
			return err
		}
		for _, r := range rewritten {
			if err := upsertRecord(ctx, tx, d.name, r.Key, r.Record); err != nil {
				return err
			}
		}

		var pos int
		err = tx.QueryRowContext(ctx,
			`SELECT position FROM dataset_fields WHERE dataset = ? AND name = ?`, d.name, m.Field).Scan(&pos)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if err := tx.QueryRowContext(ctx,
				`SELECT COALESCE(MAX(position), -1) + 1 FROM dataset_fields WHERE dataset = ?`, d.name).Scan(&pos); err != nil {
				return fmt.Errorf("next field position: %w", err)
			}
			return insertField(ctx, tx, d.name, pos, ir.Field{Name: m.Field, Type: m.Type, Nullable: true})
		case err != nil:
			return fmt.Errorf("read field %q: %w", m.Field, err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE dataset_fields SET type = ? WHERE dataset = ? AND name = ?`, string(m.Type), d.name, m.Field); err != nil {
			return fmt.Errorf("retype field %q: %w", m.Field, err)
		}
		return nil
	})
	if err != nil {
		return errs.Wrap(errs.KindIO, "store.mutate_schema", err, "field %q", m.Field)
	}
	return nil
}

// CheckSchema implements apply.Target.
func (d *Dataset) CheckSchema(ctx context.Context, m apply.SchemaMutation) error {
	if m.Drop {
		return nil
	}
	if _, err := retypeRecords(ctx, d.s.db, d.name, m); err != nil {
		return errs.Wrap(errs.KindIO, "store.check_schema", err, "field %q", m.Field)
	}
	return nil
}

// retypeRecords reads the records as currently typed and returns those the
// retype rewrites.
func retypeRecords(ctx context.Context, q querier, dataset string, m apply.SchemaMutation) ([]apply.KeyedRecord, error) {
	schema, err := loadSchema(ctx, q, dataset)
	if err != nil {
		return nil, err
	}
	stored, err := scanRecords(ctx, q, dataset, schema.Types())
	if err != nil {
		return nil, err
	}
	records := make([]apply.KeyedRecord, len(stored))
	for i, r := range stored {
		records[i] = apply.KeyedRecord{Key: r.key, Record: r.rec}
	}
	return apply.Retype(m, records)
}

func dropField(ctx context.Context, tx *sql.Tx, dataset, field string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM dataset_fields WHERE dataset = ? AND name = ?`, dataset, field)
	if err != nil {
		return fmt.Errorf("drop field %q: %w", field, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}

	schema, err := loadSchema(ctx, tx, dataset)
	if err != nil {
		return err
	}
	records, err := scanRecords(ctx, tx, dataset, schema.Types())
	if err != nil {
		return err
	}
	for _, r := range records {
		if _, ok := r.rec[field]; !ok {
			continue
		}
		delete(r.rec, field)
		if err := upsertRecord(ctx, tx, dataset, r.key, r.rec); err != nil {
			return err
		}
	}
	return nil
}

// LogApply records the outcome of applying p to dataset.
func (s *Store) LogApply(ctx context.Context, dataset string, p *ir.Plan, res *ir.ApplyResult) error {
	planID, err := ir.PlanID(p)
	if err != nil {
		return errs.Wrap(errs.KindInternal, "store.log_apply", err, "plan id")
	}
	resultJSON, err := marshalJSON(res)
	if err != nil {
		return errs.Wrap(errs.KindInternal, "store.log_apply", err, "marshal result")
	}
	var backupID sql.NullString
	if res.Backup != nil {
		backupID = sql.NullString{String: res.Backup.ID, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO apply_log
		(dataset, plan_id, backup_id, dry_run, applied, interrupted, result, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		dataset,
		planID,
		backupID,
		boolInt(res.DryRun),
		boolInt(res.Applied),
		res.Interrupted,
		resultJSON,
		formatTime(s.now()),
	)
	if err != nil {
		return errs.Wrap(errs.KindIO, "store.log_apply", err, "dataset %q", dataset)
	}
	return nil
}
