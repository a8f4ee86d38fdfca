package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/audd/internal/errs"
	"github.com/roach88/audd/internal/ir"
)

// Snapshot implements apply.BackupStore. Nil keys snapshots the whole
// dataset including its fields; otherwise each key is saved with its
// current record, or as absent.
func (d *Dataset) Snapshot(ctx context.Context, keys []ir.Key) (string, int, error) {
	id := d.s.newID()
	saved := 0

	err := d.s.inTx(ctx, func(tx *sql.Tx) error {
		schema, err := loadSchema(ctx, tx, d.name)
		if err != nil {
			return err
		}
		fieldsJSON, err := json.Marshal(schema.Fields)
		if err != nil {
			return fmt.Errorf("marshal fields: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO backups (id, dataset, whole, fields, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, id, d.name, boolInt(keys == nil), string(fieldsJSON), formatTime(d.s.now())); err != nil {
			return fmt.Errorf("insert backup: %w", err)
		}

		if keys == nil {
			res, err := tx.ExecContext(ctx, `
				INSERT INTO backup_records (backup_id, record_key, data)
				SELECT ?, record_key, data FROM records WHERE dataset = ?
			`, id, d.name)
			if err != nil {
				return fmt.Errorf("copy records: %w", err)
			}
			n, _ := res.RowsAffected()
			saved = int(n)
			return nil
		}

		for _, key := range keys {
			keyJSON, err := marshalKey(key)
			if err != nil {
				return err
			}
			var data sql.NullString
			err = tx.QueryRowContext(ctx,
				`SELECT data FROM records WHERE dataset = ? AND record_key = ?`, d.name, keyJSON).Scan(&data)
			switch {
			case errors.Is(err, sql.ErrNoRows):
			case err != nil:
				return fmt.Errorf("read record %s: %w", keyJSON, err)
			default:
				saved++
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO backup_records (backup_id, record_key, data)
				VALUES (?, ?, ?)
				ON CONFLICT(backup_id, record_key) DO NOTHING
			`, id, keyJSON, data); err != nil {
				return fmt.Errorf("save record %s: %w", keyJSON, err)
			}
		}
		return nil
	})
	if err != nil {
		return "", 0, errs.Wrap(errs.KindIO, "store.snapshot", err, "dataset %q", d.name)
	}
	return id, saved, nil
}

// Restore puts the records saved by backup id back as they were. A whole
// backup also restores the field list and removes records created since.
func (d *Dataset) Restore(ctx context.Context, id string) error {
	err := d.s.inTx(ctx, func(tx *sql.Tx) error {
		var whole int
		var fieldsJSON string
		err := tx.QueryRowContext(ctx,
			`SELECT whole, fields FROM backups WHERE id = ? AND dataset = ?`, id, d.name).Scan(&whole, &fieldsJSON)
		if errors.Is(err, sql.ErrNoRows) {
			return errs.InvalidInput("store.restore", "backup %q of dataset %q not found", id, d.name)
		}
		if err != nil {
			return fmt.Errorf("read backup: %w", err)
		}

		if whole != 0 {
			var fields []ir.Field
			if err := json.Unmarshal([]byte(fieldsJSON), &fields); err != nil {
				return fmt.Errorf("unmarshal fields: %w", err)
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM dataset_fields WHERE dataset = ?`, d.name); err != nil {
				return fmt.Errorf("clear fields: %w", err)
			}
			for i, f := range fields {
				if err := insertField(ctx, tx, d.name, i, f); err != nil {
					return err
				}
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE dataset = ?`, d.name); err != nil {
				return fmt.Errorf("clear records: %w", err)
			}
		}

		rows, err := tx.QueryContext(ctx,
			`SELECT record_key, data FROM backup_records WHERE backup_id = ? ORDER BY record_key COLLATE BINARY ASC`, id)
		if err != nil {
			return fmt.Errorf("read backup records: %w", err)
		}
		type saved struct {
			key  string
			data sql.NullString
		}
		var all []saved
		for rows.Next() {
			var s saved
			if err := rows.Scan(&s.key, &s.data); err != nil {
				rows.Close()
				return fmt.Errorf("scan backup record: %w", err)
			}
			all = append(all, s)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate backup records: %w", err)
		}

		for _, s := range all {
			if !s.data.Valid {
				if err := deleteRecord(ctx, tx, d.name, s.key); err != nil {
					return err
				}
				continue
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO records (dataset, record_key, data)
				VALUES (?, ?, ?)
				ON CONFLICT(dataset, record_key) DO UPDATE SET data = excluded.data
			`, d.name, s.key, s.data.String); err != nil {
				return fmt.Errorf("restore record %s: %w", s.key, err)
			}
		}
		return nil
	})
	if err != nil {
		return errs.Wrap(errs.KindIO, "store.restore", err, "backup %q", id)
	}
	return nil
}
