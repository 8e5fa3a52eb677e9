package commands

import (
	"context"
	"fmt"

	"github.com/ruslano69/mssqlframe/pkg/adapters/mssql"
	"github.com/ruslano69/mssqlframe/pkg/archive"
)

// ArchiveTable snapshots a table into the configured archive backend.
func ArchiveTable(ctx context.Context, config mssql.Config, archiveConfig archive.Config, table string) error {
	archiver, err := archive.New(ctx, archiveConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize archive: %w", err)
	}

	adapter, err := mssql.Connect(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer adapter.Close()

	name, err := archiver.SnapshotTable(ctx, adapter, table)
	if err != nil {
		return fmt.Errorf("failed to archive table %s: %w", table, err)
	}
	fmt.Printf("✓ Archived %s as %s\n", table, name)
	return nil
}
