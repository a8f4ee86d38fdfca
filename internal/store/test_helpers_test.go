package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/audd/internal/ir"
	"github.com/roach88/audd/internal/testutil"
)

// createTestStore creates a new store in a temp dir with a fixed clock and
// sequential backup ids.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	clock := testutil.NewFixedClock(testutil.Epoch)
	s, err := Open(path,
		WithClock(clock.Now),
		WithIDGenerator(testutil.NewSequentialIDs("backup").Generate))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestIR returns customers keyed by id with a date and a nullable float.
func createTestIR() *ir.IR {
	joined := ir.NewCalendarDate(2023, time.January, 15)
	return &ir.IR{
		Version: ir.IRVersion,
		Source:  ir.SourceInfo{Type: "file", Format: "csv", Location: "customers.csv"},
		Schema: ir.Schema{
			Fields: []ir.Field{
				{Name: "id", Type: ir.TypeInteger},
				{Name: "name", Type: ir.TypeString},
				{Name: "balance", Type: ir.TypeFloat, Nullable: true},
				{Name: "joined", Type: ir.TypeDate},
			},
			PrimaryKey: []string{"id"},
		},
		Data: []ir.IRObject{
			{"id": ir.IRInt(10), "name": ir.IRString("Ann"), "balance": ir.IRFloat(10), "joined": joined},
			{"id": ir.IRInt(2), "name": ir.IRString("Bo"), "balance": ir.IRNull{}, "joined": joined},
		},
		Metadata: ir.Metadata{RowCount: 2, CreatedAt: testutil.Epoch},
	}
}

// importTestDataset stores createTestIR as "customers" and returns its handle.
func importTestDataset(t *testing.T, s *Store) *Dataset {
	t.Helper()
	ctx := context.Background()
	if err := s.Import(ctx, "customers", createTestIR()); err != nil {
		t.Fatalf("Import() failed: %v", err)
	}
	d, err := s.Dataset(ctx, "customers")
	if err != nil {
		t.Fatalf("Dataset() failed: %v", err)
	}
	return d
}
