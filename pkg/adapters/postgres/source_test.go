package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ruslano69/mssqlframe/pkg/adapters"
)

func TestQualify(t *testing.T) {
	src := &Source{schema: "public"}

	cases := []struct {
		table string
		want  string
	}{
		{"users", `"public"."users"`},
		{"sales.orders", `"sales"."orders"`},
		{`odd"name`, `"public"."odd""name"`},
	}

	for _, tc := range cases {
		if got := src.qualify(tc.table); got != tc.want {
			t.Errorf("qualify(%q) = %s, want %s", tc.table, got, tc.want)
		}
	}
}

// testSource подключается к PostgreSQL из MSSQLFRAME_TEST_PG_DSN
// или пропускает тест
func testSource(t *testing.T) *Source {
	t.Helper()

	dsn := os.Getenv("MSSQLFRAME_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("MSSQLFRAME_TEST_PG_DSN is not set")
	}

	ctx := context.Background()
	src, err := adapters.New(ctx, adapters.Config{Type: SourceType, DSN: dsn})
	if err != nil {
		t.Skipf("PostgreSQL not available: %v", err)
	}
	t.Cleanup(func() { src.Close(context.Background()) })

	return src.(*Source)
}

func TestIntegrationReadTableTypes(t *testing.T) {
	src := testSource(t)
	ctx := context.Background()

	table := fmt.Sprintf("mssqlframe_src_%d", time.Now().UnixNano())
	_, err := src.pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE %s (
			id      INT PRIMARY KEY,
			price   NUMERIC(10, 2),
			ref     UUID,
			payload BYTEA,
			doc     JSONB,
			seen    TIMESTAMP
		)`, src.qualify(table)))
	if err != nil {
		t.Fatalf("Failed to create table: %v", err)
	}
	t.Cleanup(func() {
		src.pool.Exec(context.Background(),
			"DROP TABLE IF EXISTS "+src.qualify(table))
	})

	_, err = src.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s VALUES (
			1,
			123.45,
			'12345678-9abc-def0-1122-334455667788',
			'\x010203',
			'{"a": 1}',
			'2020-01-05 10:00:00'
		)`, src.qualify(table)))
	if err != nil {
		t.Fatalf("Failed to insert row: %v", err)
	}

	f, err := src.ReadTable(ctx, table, 0)
	if err != nil {
		t.Fatalf("ReadTable failed: %v", err)
	}
	if f.NumRows() != 1 {
		t.Fatalf("NumRows() = %d, want 1", f.NumRows())
	}

	v, _ := f.Value("price", 0)
	d, ok := v.(decimal.Decimal)
	if !ok {
		t.Fatalf("price is %T, want decimal.Decimal", v)
	}
	if d.String() != "123.45" {
		t.Errorf("price = %s, want 123.45", d.String())
	}

	v, _ = f.Value("ref", 0)
	if v != "12345678-9abc-def0-1122-334455667788" {
		t.Errorf("ref = %v, want canonical UUID string", v)
	}

	v, _ = f.Value("payload", 0)
	b, ok := v.([]byte)
	if !ok {
		t.Fatalf("payload is %T, want []byte", v)
	}
	if len(b) != 3 || b[0] != 0x01 {
		t.Errorf("payload = %v, want [1 2 3]", b)
	}

	v, _ = f.Value("doc", 0)
	if v != `{"a":1}` {
		t.Errorf("doc = %v, want {\"a\":1}", v)
	}

	v, _ = f.Value("seen", 0)
	ts, ok := v.(time.Time)
	if !ok {
		t.Fatalf("seen is %T, want time.Time", v)
	}
	if ts.Year() != 2020 {
		t.Errorf("seen = %v, want year 2020", ts)
	}
}

func TestIntegrationSchemaListing(t *testing.T) {
	src := testSource(t)
	ctx := context.Background()

	exists, err := src.TableExists(ctx, "mssqlframe_definitely_missing")
	if err != nil {
		t.Fatalf("TableExists failed: %v", err)
	}
	if exists {
		t.Error("TableExists returned true for a missing table")
	}

	if _, err := src.GetTableNames(ctx); err != nil {
		t.Errorf("GetTableNames failed: %v", err)
	}

	version, err := src.GetDatabaseVersion(ctx)
	if err != nil {
		t.Fatalf("GetDatabaseVersion failed: %v", err)
	}
	if version == "" {
		t.Error("Version is empty")
	}
}
