package commands

import (
	"context"
	"fmt"

	"github.com/ruslano69/mssqlframe/pkg/adapters/mssql"
	"github.com/ruslano69/mssqlframe/pkg/sync"
)

// CreateOptions describes a create command invocation.
type CreateOptions struct {
	Table string
	File  string // input CSV or XLSX the schema is inferred from
	Sheet string
	PK    string // none, identity, index, infer
}

// CreateTable infers a schema from a file and creates the table without
// inserting any rows.
func CreateTable(ctx context.Context, config mssql.Config, opts CreateOptions) error {
	pk, err := ParsePKMode(opts.PK)
	if err != nil {
		return err
	}

	f, err := LoadFrame(opts.File, opts.Sheet)
	if err != nil {
		return err
	}

	adapter, err := mssql.Connect(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer adapter.Close()

	engine := sync.New(adapter, sync.Config{AdjustSQLObjects: true})
	result, err := engine.CreateTableFrom(ctx, opts.Table, f, pk)
	if err != nil {
		return fmt.Errorf("failed to create table %s: %w", opts.Table, err)
	}

	fmt.Printf("✓ Created table %s:\n", opts.Table)
	for _, col := range result.Columns {
		nullable := "NULL"
		if !col.Nullable {
			nullable = "NOT NULL"
		}
		fmt.Printf("  %s %s %s\n", col.Name, col.TypeSpec(), nullable)
	}
	if pk == sync.PKInfer && result.PK != "" {
		fmt.Printf("  PRIMARY KEY (%s)\n", result.PK)
	}
	return nil
}

// ParsePKMode maps the --pk flag value to a primary key mode.
func ParsePKMode(s string) (sync.PKMode, error) {
	switch s {
	case "", "none":
		return sync.PKNone, nil
	case "identity":
		return sync.PKIdentity, nil
	case "index":
		return sync.PKIndex, nil
	case "infer":
		return sync.PKInfer, nil
	}
	return sync.PKNone, fmt.Errorf("invalid pk mode %q, expected none, identity, index or infer", s)
}
