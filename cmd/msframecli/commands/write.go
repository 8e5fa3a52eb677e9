package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/ruslano69/mssqlframe/pkg/adapters/mssql"
	"github.com/ruslano69/mssqlframe/pkg/audit"
	"github.com/ruslano69/mssqlframe/pkg/sync"
)

const timePrecision = time.Millisecond

// WriteOptions describes a write command invocation.
type WriteOptions struct {
	Table          string
	File           string // input CSV or XLSX
	Sheet          string
	Match          []string // match columns for update/merge/upsert
	DeleteRequires []string // delete subset columns for merge
	Adjust         bool
	Timestamps     bool
	Attempts       int
}

// Write loads a file into a frame and runs one write operation against
// SQL Server through the write engine.
func Write(ctx context.Context, config mssql.Config, op sync.Operation, opts WriteOptions, logger audit.Logger) error {
	f, err := LoadFrame(opts.File, opts.Sheet)
	if err != nil {
		return err
	}

	adapter, err := mssql.Connect(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer adapter.Close()

	engine := sync.New(adapter, sync.Config{
		AdjustSQLObjects:          opts.Adjust,
		IncludeMetadataTimestamps: opts.Timestamps,
		AdjustAttempts:            opts.Attempts,
	})
	if logger != nil {
		engine.WithAudit(logger)
	}

	var report *sync.Report
	switch op {
	case sync.OperationInsert:
		report, err = engine.Insert(ctx, opts.Table, f)
	case sync.OperationUpdate:
		report, err = engine.Update(ctx, opts.Table, f, opts.Match...)
	case sync.OperationMerge:
		report, err = engine.Merge(ctx, opts.Table, f, sync.MergeOptions{
			MatchColumns:   opts.Match,
			DeleteRequires: opts.DeleteRequires,
		})
	case sync.OperationUpsert:
		report, err = engine.Upsert(ctx, opts.Table, f, opts.Match...)
	default:
		return fmt.Errorf("unknown write operation %q", op)
	}
	if report != nil {
		printReport(report)
	}
	if err != nil {
		return fmt.Errorf("%s into %s failed: %w", op, opts.Table, err)
	}
	return nil
}

// printReport summarizes a write operation for the console.
func printReport(r *sync.Report) {
	printWarnings(r.Warnings)
	for _, a := range r.Adjustments {
		fmt.Printf("Adjusted: %s\n", a)
	}
	fmt.Printf("✓ %s %s: %d row(s), %d attempt(s), %s\n",
		r.Operation, r.Table, r.Rows, r.Attempts, r.Duration.Round(timePrecision))
}
