package commands

import (
	"context"
	"fmt"

	"github.com/ruslano69/mssqlframe/pkg/adapters/mssql"
)

// ShowSchema prints the live schema of a table.
func ShowSchema(ctx context.Context, config mssql.Config, table string) error {
	adapter, err := mssql.Connect(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer adapter.Close()

	tbl, warns, err := adapter.ReadSchema(ctx, adapter.DB(), table)
	printWarnings(warns)
	if err != nil {
		return fmt.Errorf("failed to read schema of %s: %w", table, err)
	}

	fmt.Printf("Table %s (%d column(s)):\n", table, len(tbl.Columns))
	for _, col := range tbl.Columns {
		nullable := "NULL"
		if !col.Nullable {
			nullable = "NOT NULL"
		}
		attrs := ""
		if col.Identity {
			attrs += " IDENTITY"
		}
		if col.InPK() {
			attrs += fmt.Sprintf(" PK#%d", col.PKSeq)
		}
		fmt.Printf("  %-30s %-20s %-8s%s\n", col.Name, col.TypeSpec(), nullable, attrs)
	}
	if pk := tbl.PKName(); pk != "" {
		fmt.Printf("Primary key: %s\n", pk)
	}
	return nil
}

// ListTables prints the tables of the target database.
func ListTables(ctx context.Context, config mssql.Config) error {
	adapter, err := mssql.Connect(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer adapter.Close()

	rows, err := adapter.DB().QueryContext(ctx,
		"SELECT s.name, t.name FROM sys.tables t JOIN sys.schemas s ON t.schema_id = s.schema_id ORDER BY s.name, t.name")
	if err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var schemaName, tableName string
		if err := rows.Scan(&schemaName, &tableName); err != nil {
			return fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, schemaName+"."+tableName)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}

	if len(tables) == 0 {
		fmt.Println("No tables found")
		return nil
	}
	fmt.Printf("Found %d table(s):\n", len(tables))
	for i, t := range tables {
		fmt.Printf("  %d. %s\n", i+1, t)
	}
	return nil
}
