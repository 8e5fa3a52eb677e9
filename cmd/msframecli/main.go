package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ruslano69/mssqlframe/cmd/msframecli/commands"
	"github.com/ruslano69/mssqlframe/pkg/sync"
)

func main() {
	ctx := context.Background()

	flags := ParseFlags()

	if *flags.Version {
		PrintVersion()
		os.Exit(0)
	}
	if *flags.Help {
		PrintHelp()
		os.Exit(0)
	}
	if *flags.CreateConfig {
		createConfigTemplate()
		return
	}

	// The pipeline command carries its own config and needs no target.
	if *flags.Run != "" {
		if err := commands.RunPipeline(ctx, *flags.Run); err != nil {
			fatal("Command failed: %v", err)
		}
		return
	}
	// Inference is local to the file and needs no target either.
	if *flags.Infer != "" {
		if err := commands.InferFile(*flags.Infer, *flags.Sheet); err != nil {
			fatal("Command failed: %v", err)
		}
		return
	}

	if !commandWasSpecified(flags) {
		PrintHelp()
		os.Exit(1)
	}

	config, err := LoadConfig(*flags.Config)
	if err != nil {
		fatal("Failed to load config: %v", err)
	}
	target := config.MSSQLConfig()

	var cmdErr error
	switch {
	case *flags.List:
		cmdErr = commands.ListTables(ctx, target)

	case *flags.Read != "":
		cmdErr = commands.ReadTable(ctx, target, commands.ReadOptions{
			Table:   *flags.Read,
			Columns: commands.SplitColumns(*flags.Columns),
			Where:   *flags.Where,
			Limit:   *flags.Limit,
			OrderBy: *flags.OrderBy,
			Output:  *flags.Output,
			Sheet:   *flags.Sheet,
		})

	case *flags.Schema != "":
		cmdErr = commands.ShowSchema(ctx, target, *flags.Schema)

	case *flags.Query != "":
		cmdErr = commands.Query(ctx, target, commands.QueryOptions{
			SQL:    *flags.Query,
			Unsafe: *flags.Unsafe,
			Output: *flags.Output,
			Sheet:  *flags.Sheet,
		})

	case *flags.Create != "":
		cmdErr = requireFile(flags, func() error {
			return commands.CreateTable(ctx, target, commands.CreateOptions{
				Table: *flags.Create,
				File:  *flags.File,
				Sheet: *flags.Sheet,
				PK:    *flags.PK,
			})
		})

	case *flags.Archive != "":
		cmdErr = commands.ArchiveTable(ctx, target, config.Archive, *flags.Archive)

	default:
		op, table := writeOperation(flags)
		cmdErr = requireFile(flags, func() error {
			log, err := openAudit(config.Audit)
			if err != nil {
				return fmt.Errorf("failed to open audit log: %w", err)
			}
			defer log.Close()

			return commands.Write(ctx, target, op, commands.WriteOptions{
				Table:          table,
				File:           *flags.File,
				Sheet:          *flags.Sheet,
				Match:          commands.SplitColumns(*flags.Match),
				DeleteRequires: commands.SplitColumns(*flags.DeleteRequires),
				Adjust:         *flags.Adjust,
				Timestamps:     *flags.Timestamps,
				Attempts:       *flags.Attempts,
			}, log.Logger)
		})
	}

	if cmdErr != nil {
		fatal("Command failed: %v", cmdErr)
	}
}

// writeOperation resolves which write command was given.
func writeOperation(flags *Flags) (sync.Operation, string) {
	switch {
	case *flags.Insert != "":
		return sync.OperationInsert, *flags.Insert
	case *flags.Update != "":
		return sync.OperationUpdate, *flags.Update
	case *flags.Merge != "":
		return sync.OperationMerge, *flags.Merge
	}
	return sync.OperationUpsert, *flags.Upsert
}

// requireFile guards commands that read their input from --file.
func requireFile(flags *Flags, run func() error) error {
	if *flags.File == "" {
		return fmt.Errorf("--file is required for this command")
	}
	return run()
}

// createConfigTemplate creates a sample configuration file
func createConfigTemplate() {
	if err := SaveConfig("config.yaml", CreateSampleConfig()); err != nil {
		fatal("Failed to save config: %v", err)
	}

	fmt.Println("✓ Created sample config: config.yaml")
	fmt.Println("Edit the file with your SQL Server credentials and run:")
	fmt.Println("  msframecli --list --config config.yaml")
}

// commandWasSpecified checks if any command was specified
func commandWasSpecified(flags *Flags) bool {
	return *flags.List ||
		*flags.Read != "" ||
		*flags.Insert != "" ||
		*flags.Update != "" ||
		*flags.Merge != "" ||
		*flags.Upsert != "" ||
		*flags.Create != "" ||
		*flags.Schema != "" ||
		*flags.Query != "" ||
		*flags.Archive != ""
}

// fatal prints error and exits
func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
