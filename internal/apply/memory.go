package apply

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/audd/internal/errs"
	"github.com/roach88/audd/internal/ir"
)

// MemoryTarget is an in-process Target and BackupStore seeded from an IR.
type MemoryTarget struct {
	mu      sync.Mutex
	schema  ir.Schema
	records map[string]ir.IRObject
	keys    map[string]ir.Key
	backups map[string]snapshot
	newID   func() string
}

// snapshot holds records as they were; a nil record was absent. Whole
// snapshots also keep the schema and replace the dataset on restore.
type snapshot struct {
	whole   bool
	schema  ir.Schema
	keys    []ir.Key
	records []ir.IRObject
}

// NewMemoryTarget copies x into a new target.
func NewMemoryTarget(x *ir.IR) (*MemoryTarget, error) {
	t := &MemoryTarget{
		schema:  cloneSchema(x.Schema),
		records: make(map[string]ir.IRObject, len(x.Data)),
		keys:    make(map[string]ir.Key, len(x.Data)),
		backups: make(map[string]snapshot),
		newID:   newBackupID,
	}
	for i, rec := range x.Data {
		key := ir.KeyOf(rec, x.Schema.PrimaryKey)
		s := key.String()
		if _, dup := t.records[s]; dup {
			return nil, errs.InvalidInput("memory", "duplicate key %s at record %d", s, i+1)
		}
		t.records[s] = rec.Clone()
		t.keys[s] = key
	}
	return t, nil
}

// SetIDGenerator replaces the backup id source.
func (t *MemoryTarget) SetIDGenerator(gen func() string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.newID = gen
}

func newBackupID() string {
	return uuid.Must(uuid.NewV7()).String()
}

func (t *MemoryTarget) Schema(context.Context) (ir.Schema, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return cloneSchema(t.schema), nil
}

func (t *MemoryTarget) Lookup(_ context.Context, key ir.Key) (ir.IRObject, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[key.String()]
	if !ok {
		return nil, false, nil
	}
	return rec.Clone(), true, nil
}

func (t *MemoryTarget) Mutate(_ context.Context, m Mutation) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := m.Key.String()
	switch m.Op {
	case OpUpsert:
		t.records[s] = m.Record.Clone()
		t.keys[s] = m.Key
	case OpDelete:
		delete(t.records, s)
		delete(t.keys, s)
	case OpSet:
		rec, ok := t.records[s]
		if !ok {
			return errs.InvalidInput("memory", "record %s not found", s)
		}
		rec = rec.Clone()
		rec[m.Field] = m.Value
		t.records[s] = rec
	default:
		return errs.Internal("memory", "unknown mutation %q", m.Op)
	}
	return nil
}

func (t *MemoryTarget) MutateSchema(_ context.Context, m SchemaMutation) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	fields := t.schema.Fields
	i := slices.IndexFunc(fields, func(f ir.Field) bool { return f.Name == m.Field })
	switch {
	case m.Drop && i < 0:
	case m.Drop:
		t.schema.Fields = slices.Delete(slices.Clone(fields), i, i+1)
		for s, rec := range t.records {
			rec = rec.Clone()
			delete(rec, m.Field)
			t.records[s] = rec
		}
	default:
		rewritten, err := Retype(m, t.keyedRecords())
		if err != nil {
			return err
		}
		for _, r := range rewritten {
			t.records[r.Key.String()] = r.Record
		}
		fields = slices.Clone(fields)
		if i < 0 {
			fields = append(fields, ir.Field{Name: m.Field, Type: m.Type, Nullable: true})
		} else {
			fields[i].Type = m.Type
		}
		t.schema.Fields = fields
	}
	return nil
}

func (t *MemoryTarget) CheckSchema(_ context.Context, m SchemaMutation) error {
	if m.Drop {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := Retype(m, t.keyedRecords())
	return err
}

// keyedRecords lists the records in key order.
func (t *MemoryTarget) keyedRecords() []KeyedRecord {
	keys := t.sortedKeys()
	out := make([]KeyedRecord, len(keys))
	for i, k := range keys {
		out[i] = KeyedRecord{Key: k, Record: t.records[k.String()]}
	}
	return out
}

// Snapshot implements BackupStore.
func (t *MemoryTarget) Snapshot(_ context.Context, keys []ir.Key) (string, int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := snapshot{whole: keys == nil, schema: cloneSchema(t.schema)}
	if snap.whole {
		keys = t.sortedKeys()
	}
	n := 0
	for _, k := range keys {
		rec, ok := t.records[k.String()]
		if ok {
			rec = rec.Clone()
			n++
		}
		snap.keys = append(snap.keys, k)
		snap.records = append(snap.records, rec)
	}
	id := t.newID()
	t.backups[id] = snap
	return id, n, nil
}

// Restore puts the records of backup id back as they were.
func (t *MemoryTarget) Restore(_ context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap, ok := t.backups[id]
	if !ok {
		return errs.InvalidInput("memory", "backup %q not found", id)
	}
	if snap.whole {
		t.schema = cloneSchema(snap.schema)
		t.records = make(map[string]ir.IRObject, len(snap.keys))
		t.keys = make(map[string]ir.Key, len(snap.keys))
	}
	for i, k := range snap.keys {
		s := k.String()
		if snap.records[i] == nil {
			delete(t.records, s)
			delete(t.keys, s)
			continue
		}
		t.records[s] = snap.records[i].Clone()
		t.keys[s] = k
	}
	return nil
}

// IR returns the current contents as an IR sharing src's version and
// source, with records in key order.
func (t *MemoryTarget) IR(src *ir.IR) *ir.IR {
	t.mu.Lock()
	defer t.mu.Unlock()

	keys := t.sortedKeys()
	data := make([]ir.IRObject, len(keys))
	for i, k := range keys {
		data[i] = t.records[k.String()].Clone()
	}
	return &ir.IR{
		Version:  src.Version,
		Source:   src.Source,
		Schema:   cloneSchema(t.schema),
		Data:     data,
		Metadata: ir.Metadata{RowCount: len(data), CreatedAt: src.Metadata.CreatedAt, LowConfidence: src.Metadata.LowConfidence},
	}
}

func (t *MemoryTarget) sortedKeys() []ir.Key {
	keys := make([]ir.Key, 0, len(t.keys))
	for _, k := range t.keys {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, ir.CompareKeys)
	return keys
}

func cloneSchema(s ir.Schema) ir.Schema {
	s.Fields = slices.Clone(s.Fields)
	s.PrimaryKey = slices.Clone(s.PrimaryKey)
	return s
}
