package main

import "flag"

// Flags holds all command-line flags
type Flags struct {
	// Commands
	List    *bool
	Read    *string
	Insert  *string
	Update  *string
	Merge   *string
	Upsert  *string
	Create  *string
	Schema  *string
	Infer   *string
	Query   *string
	Run     *string
	Archive *string

	// Read filters
	Columns *string
	Where   *string
	OrderBy *string
	Limit   *int

	// Options
	Config         *string
	File           *string
	Output         *string
	Sheet          *string
	Match          *string
	DeleteRequires *string
	PK             *string
	Adjust         *bool
	Timestamps     *bool
	Attempts       *int
	Unsafe         *bool

	// Config Creation
	CreateConfig *bool

	// Misc
	Version *bool
	Help    *bool
}

// ParseFlags defines and parses all command-line flags
func ParseFlags() *Flags {
	f := &Flags{}

	// Commands
	f.List = flag.Bool("list", false, "List all tables in the target database")
	f.Read = flag.String("read", "", "Read table into stdout, CSV or XLSX (table name)")
	f.Insert = flag.String("insert", "", "Insert file contents into table (table name, requires --file)")
	f.Update = flag.String("update", "", "Update table rows from file (table name, requires --file)")
	f.Merge = flag.String("merge", "", "Merge file contents into table, deleting unmatched rows (table name, requires --file)")
	f.Upsert = flag.String("upsert", "", "Merge file contents into table without deleting (table name, requires --file)")
	f.Create = flag.String("create", "", "Create table from file schema without inserting rows (table name, requires --file)")
	f.Schema = flag.String("schema", "", "Show live schema of a table (table name)")
	f.Infer = flag.String("infer", "", "Infer SQL Server schema from CSV/XLSX file (file path)")
	f.Query = flag.String("query", "", "Execute a validated SELECT against the target (SQL text)")
	f.Run = flag.String("run", "", "Execute pipeline from YAML config (file path)")
	f.Archive = flag.String("archive", "", "Snapshot table into the archive backend (table name)")

	// Read filters
	f.Columns = flag.String("columns", "", "Columns to read (comma-separated, primary key always included)")
	f.Where = flag.String("where", "", "WHERE clause (e.g. 'age >= 18 AND status = active')")
	f.OrderBy = flag.String("order-by", "", "Order clause: 'column [ASC|DESC]'")
	f.Limit = flag.Int("limit", 0, "TOP(n) row limit, 0 = no limit")

	// Options
	f.Config = flag.String("config", "config.yaml", "Configuration file path")
	f.File = flag.String("file", "", "Input CSV or XLSX file for write commands")
	f.Output = flag.String("output", "", "Output file path (.csv or .xlsx, default: stdout)")
	f.Sheet = flag.String("sheet", "Sheet1", "Excel sheet name for XLSX operations")
	f.Match = flag.String("match", "", "Match columns for update/merge/upsert (comma-separated, default: primary key)")
	f.DeleteRequires = flag.String("delete-requires", "", "Restrict merge deletes to rows matching these columns (comma-separated)")
	f.PK = flag.String("pk", "infer", "Primary key mode for --create: none, identity, index, infer")
	f.Adjust = flag.Bool("adjust", false, "Allow the write engine to create and alter SQL objects")
	f.Timestamps = flag.Bool("timestamps", false, "Maintain _time_insert/_time_update metadata columns")
	f.Attempts = flag.Int("attempts", 0, "Schema adjustment budget per write, 0 = 3")
	f.Unsafe = flag.Bool("unsafe", false, "Allow any SQL in --query (requires admin)")

	// Config Creation
	f.CreateConfig = flag.Bool("create-config", false, "Create sample config file")

	// Misc
	f.Version = flag.Bool("version", false, "Show version information")
	f.Help = flag.Bool("help", false, "Show detailed help with examples")

	flag.Parse()

	return f
}
