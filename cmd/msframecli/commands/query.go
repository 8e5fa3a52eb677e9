package commands

// Security model for the raw query escape hatch:
//  1. Code level: SQLValidator admits only single-statement SELECT in safe mode
//  2. OS level: IsAdmin() checks administrator privileges for unsafe mode

import (
	"context"
	"fmt"
	"log"

	"github.com/ruslano69/mssqlframe/pkg/adapters/mssql"
	"github.com/ruslano69/mssqlframe/pkg/security"
)

// QueryOptions describes a raw query invocation.
type QueryOptions struct {
	SQL    string
	Unsafe bool
	Output string // empty = stdout
	Sheet  string
}

// Query validates and executes a raw SQL statement against the target,
// writing the result set to stdout, CSV or XLSX.
func Query(ctx context.Context, config mssql.Config, opts QueryOptions) error {
	if opts.Unsafe && !security.IsAdmin() {
		return fmt.Errorf("unsafe mode requires administrator privileges (current user: %s)",
			security.GetCurrentUser())
	}
	if opts.Unsafe {
		log.Printf("UNSAFE MODE: all statements allowed, user=%s", security.GetCurrentUser())
	}

	validator := security.NewSQLValidator(!opts.Unsafe) // safeMode = !unsafe
	if err := validator.Validate(opts.SQL); err != nil {
		return fmt.Errorf("query rejected: %w", err)
	}

	adapter, err := mssql.Connect(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer adapter.Close()

	f, err := adapter.Query(ctx, opts.SQL)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	return WriteFrame(f, opts.Output, opts.Sheet)
}
