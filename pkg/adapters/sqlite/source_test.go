package sqlite

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ruslano69/mssqlframe/pkg/adapters"
	"github.com/ruslano69/mssqlframe/pkg/core/frame"
)

// testSource создает источник поверх временного файла БД
func testSource(t *testing.T) *Source {
	t.Helper()

	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "source_test.db")

	src, err := adapters.New(ctx, adapters.Config{Type: SourceType, DSN: dsn})
	if err != nil {
		t.Fatalf("Failed to create sqlite source: %v", err)
	}
	t.Cleanup(func() { src.Close(context.Background()) })

	return src.(*Source)
}

func mustExec(t *testing.T, src *Source, query string, args ...any) {
	t.Helper()
	if _, err := src.db.ExecContext(context.Background(), query, args...); err != nil {
		t.Fatalf("Failed to execute %q: %v", query, err)
	}
}

func TestReadTable(t *testing.T) {
	src := testSource(t)
	ctx := context.Background()

	mustExec(t, src, `
		CREATE TABLE readings (
			id      INTEGER PRIMARY KEY,
			name    TEXT,
			weight  REAL,
			payload BLOB
		)`)
	mustExec(t, src, "INSERT INTO readings VALUES (1, 'alpha', 1.5, x'010203')")
	mustExec(t, src, "INSERT INTO readings VALUES (2, NULL, NULL, NULL)")

	f, err := src.ReadTable(ctx, "readings", 0)
	if err != nil {
		t.Fatalf("ReadTable failed: %v", err)
	}

	if f.NumRows() != 2 {
		t.Fatalf("NumRows() = %d, want 2", f.NumRows())
	}
	wantCols := []string{"id", "name", "weight", "payload"}
	gotCols := f.Columns()
	if len(gotCols) != len(wantCols) {
		t.Fatalf("Columns() = %v, want %v", gotCols, wantCols)
	}

	v, _ := f.Value("id", 0)
	if v != int64(1) {
		t.Errorf("id = %v (%T), want int64(1)", v, v)
	}

	v, _ = f.Value("name", 0)
	if v != "alpha" {
		t.Errorf("name = %v (%T), want \"alpha\"", v, v)
	}

	v, _ = f.Value("weight", 0)
	if v != 1.5 {
		t.Errorf("weight = %v (%T), want 1.5", v, v)
	}

	v, _ = f.Value("payload", 0)
	if frame.KindOf(v) != frame.KindBytes {
		t.Errorf("payload kind = %v (%T), want bytes", frame.KindOf(v), v)
	}

	for _, col := range []string{"name", "weight", "payload"} {
		if v, _ := f.Value(col, 1); v != nil {
			t.Errorf("NULL %s = %v, want nil", col, v)
		}
	}
}

func TestReadTableLimit(t *testing.T) {
	src := testSource(t)
	ctx := context.Background()

	mustExec(t, src, "CREATE TABLE seq (n INTEGER)")
	for i := 0; i < 5; i++ {
		mustExec(t, src, "INSERT INTO seq VALUES (?)", i)
	}

	f, err := src.ReadTable(ctx, "seq", 3)
	if err != nil {
		t.Fatalf("ReadTable failed: %v", err)
	}
	if f.NumRows() != 3 {
		t.Errorf("NumRows() = %d, want 3", f.NumRows())
	}
}

func TestReadFrameWithArgs(t *testing.T) {
	src := testSource(t)
	ctx := context.Background()

	mustExec(t, src, "CREATE TABLE items (id INTEGER, grade TEXT)")
	mustExec(t, src, "INSERT INTO items VALUES (1, 'a'), (2, 'b'), (3, 'a')")

	f, err := src.ReadFrame(ctx, "SELECT id FROM items WHERE grade = ? ORDER BY id", "a")
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}

	if f.NumRows() != 2 {
		t.Fatalf("NumRows() = %d, want 2", f.NumRows())
	}
	v, _ := f.Value("id", 1)
	if v != int64(3) {
		t.Errorf("id = %v, want int64(3)", v)
	}
}

func TestReadFrameEmptyResult(t *testing.T) {
	src := testSource(t)

	f, err := src.ReadFrame(context.Background(), "SELECT 1 AS x WHERE 1 = 0")
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if f.NumRows() != 0 {
		t.Errorf("NumRows() = %d, want 0", f.NumRows())
	}
	if !f.HasColumn("x") {
		t.Error("Empty result lost column x")
	}
}

func TestTableListing(t *testing.T) {
	src := testSource(t)
	ctx := context.Background()

	mustExec(t, src, "CREATE TABLE bravo (n INTEGER)")
	mustExec(t, src, "CREATE TABLE alpha (n INTEGER)")

	tables, err := src.GetTableNames(ctx)
	if err != nil {
		t.Fatalf("GetTableNames failed: %v", err)
	}
	if len(tables) != 2 || tables[0] != "alpha" || tables[1] != "bravo" {
		t.Errorf("GetTableNames() = %v, want [alpha bravo]", tables)
	}

	exists, err := src.TableExists(ctx, "alpha")
	if err != nil {
		t.Fatalf("TableExists failed: %v", err)
	}
	if !exists {
		t.Error("TableExists(alpha) = false, want true")
	}

	exists, err = src.TableExists(ctx, "missing")
	if err != nil {
		t.Fatalf("TableExists failed: %v", err)
	}
	if exists {
		t.Error("TableExists(missing) = true, want false")
	}
}

func TestDatabaseVersion(t *testing.T) {
	src := testSource(t)

	version, err := src.GetDatabaseVersion(context.Background())
	if err != nil {
		t.Fatalf("GetDatabaseVersion failed: %v", err)
	}
	if !strings.HasPrefix(version, "SQLite ") {
		t.Errorf("Version = %q, want \"SQLite \" prefix", version)
	}

	if src.GetDatabaseType() != "sqlite" {
		t.Errorf("GetDatabaseType() = %s, want sqlite", src.GetDatabaseType())
	}
}

func TestQuoteIdentifier(t *testing.T) {
	if got := quoteIdentifier(`odd"name`); got != `"odd""name"` {
		t.Errorf("quoteIdentifier = %s, want \"odd\"\"name\"", got)
	}
}
