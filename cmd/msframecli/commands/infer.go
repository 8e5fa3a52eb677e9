package commands

import (
	"fmt"

	"github.com/ruslano69/mssqlframe/pkg/core/infer"
)

// InferFile loads a file and prints the inferred SQL Server schema
// without touching any database.
func InferFile(path, sheet string) error {
	f, err := LoadRawFrame(path, sheet)
	if err != nil {
		return err
	}

	result, err := infer.Infer(f)
	if err != nil {
		return fmt.Errorf("failed to infer types for %s: %w", path, err)
	}

	fmt.Printf("Inferred schema for %s (%d row(s)):\n", path, f.NumRows())
	for _, col := range result.Columns {
		nullable := "NULL"
		if !col.Nullable {
			nullable = "NOT NULL"
		}
		fmt.Printf("  %-30s %-20s %s\n", col.Name, col.TypeSpec(), nullable)
	}
	if result.PK != "" {
		fmt.Printf("Primary key candidate: %s\n", result.PK)
	} else {
		fmt.Println("Primary key candidate: none")
	}
	return nil
}
