package main

import "fmt"

const version = "1.0.0"

// PrintVersion prints version information
func PrintVersion() {
	fmt.Printf("msframecli version %s\n", version)
	fmt.Println("mssqlframe - dataset to SQL Server synchronization")
	fmt.Println("https://github.com/ruslano69/mssqlframe")
}

// PrintHelp prints comprehensive help information
func PrintHelp() {
	fmt.Println("msframecli - dataset to SQL Server synchronization CLI")
	fmt.Printf("Version: %s\n\n", version)

	fmt.Println("USAGE:")
	fmt.Println("  msframecli [command] [options]")
	fmt.Println()

	fmt.Println("COMMANDS:")
	fmt.Println()

	fmt.Println("  Reading:")
	fmt.Println("    --list                     List all tables in the target database")
	fmt.Println("    --read <table>             Read table into stdout, CSV or XLSX")
	fmt.Println("    --schema <table>           Show live schema of a table")
	fmt.Println("    --query <sql>              Execute a validated SELECT")
	fmt.Println()

	fmt.Println("  Writing:")
	fmt.Println("    --insert <table>           Insert file contents into table")
	fmt.Println("    --update <table>           Update table rows from file")
	fmt.Println("    --merge <table>            Merge file into table, deleting unmatched rows")
	fmt.Println("    --upsert <table>           Merge file into table without deleting")
	fmt.Println("    --create <table>           Create table from file schema (no rows)")
	fmt.Println()

	fmt.Println("  Tooling:")
	fmt.Println("    --infer <file>             Infer SQL Server schema from CSV/XLSX file")
	fmt.Println("    --run <file>               Execute pipeline from YAML config")
	fmt.Println("    --archive <table>          Snapshot table into the archive backend")
	fmt.Println()

	fmt.Println("OPTIONS:")
	fmt.Println()

	fmt.Println("  General:")
	fmt.Println("    --config <file>            Configuration file (default: config.yaml)")
	fmt.Println("    --file <file>              Input CSV or XLSX file for write commands")
	fmt.Println("    --output <file>            Output file (.csv or .xlsx, default: stdout)")
	fmt.Println("    --sheet <name>             Excel sheet name (default: Sheet1)")
	fmt.Println()

	fmt.Println("  Read filters:")
	fmt.Println("    --columns <cols>           Columns to read (primary key always included)")
	fmt.Println("    --where <condition>        WHERE clause (e.g. 'age >= 18 AND status = active')")
	fmt.Println("    --order-by <clause>        Order clause: 'column [ASC|DESC]'")
	fmt.Println("    --limit <n>                TOP(n) row limit")
	fmt.Println()

	fmt.Println("  Write behavior:")
	fmt.Println("    --match <cols>             Match columns for update/merge/upsert")
	fmt.Println("    --delete-requires <cols>   Restrict merge deletes to matching rows")
	fmt.Println("    --pk <mode>                PK mode for --create: none, identity, index, infer")
	fmt.Println("    --adjust                   Allow creating and altering SQL objects")
	fmt.Println("    --timestamps               Maintain _time_insert/_time_update columns")
	fmt.Println("    --attempts <n>             Schema adjustment budget per write (default: 3)")
	fmt.Println()

	fmt.Println("  Misc:")
	fmt.Println("    --unsafe                   Allow any SQL in --query (requires admin)")
	fmt.Println("    --create-config            Create sample config file")
	fmt.Println("    --version                  Show version information")
	fmt.Println("    --help                     Show this help message")
	fmt.Println()

	fmt.Println("EXAMPLES:")
	fmt.Println()

	fmt.Println("  # List all tables")
	fmt.Println("  msframecli --list --config config.yaml")
	fmt.Println()

	fmt.Println("  # Read a filtered slice of a table into Excel")
	fmt.Println("  msframecli --read orders --where 'status = active' --limit 100 --output orders.xlsx")
	fmt.Println()

	fmt.Println("  # Insert a CSV file, creating the table on first run")
	fmt.Println("  msframecli --insert customers --file customers.csv --adjust --timestamps")
	fmt.Println()

	fmt.Println("  # Merge a daily load, keeping rows outside the loaded partition")
	fmt.Println("  msframecli --merge orders --file today.csv --match order_id --delete-requires batch_date")
	fmt.Println()

	fmt.Println("  # Create a table from a file without loading it")
	fmt.Println("  msframecli --create customers --file customers.csv --pk infer")
	fmt.Println()

	fmt.Println("  # Inspect what types a file would get")
	fmt.Println("  msframecli --infer customers.csv")
	fmt.Println()

	fmt.Println("  # Snapshot a table before a risky schema change")
	fmt.Println("  msframecli --archive orders")
	fmt.Println()

	fmt.Println("  # Run a YAML pipeline (mysql/postgres/sqlite/csv/xlsx/broker source)")
	fmt.Println("  msframecli --run nightly_load.yaml")
	fmt.Println()

	fmt.Println("CONFIGURATION:")
	fmt.Println()
	fmt.Println("  Configuration files use YAML format. Create a sample config with:")
	fmt.Println("    msframecli --create-config")
	fmt.Println()
	fmt.Println("  Config structure includes:")
	fmt.Println("    - target: SQL Server connection settings")
	fmt.Println("    - archive: snapshot compression and backend")
	fmt.Println("    - audit: operation logging settings")
	fmt.Println()

	fmt.Println("DOCUMENTATION:")
	fmt.Println("  https://github.com/ruslano69/mssqlframe")
}
