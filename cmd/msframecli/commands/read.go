package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/ruslano69/mssqlframe/pkg/adapters/mssql"
)

// ReadOptions describes a read command invocation.
type ReadOptions struct {
	Table   string
	Columns []string // nil = all columns
	Where   string
	Limit   int
	OrderBy string // "column [ASC|DESC]"
	Output  string // empty = stdout
	Sheet   string
}

// ReadTable reads a table (or a filtered slice of it) and writes the
// result to stdout, CSV or XLSX.
func ReadTable(ctx context.Context, config mssql.Config, opts ReadOptions) error {
	adapter, err := mssql.Connect(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer adapter.Close()

	orderColumn, orderDirection, err := ParseOrderBy(opts.OrderBy)
	if err != nil {
		return err
	}

	f, warns, err := adapter.ReadTable(ctx, opts.Table, mssql.ReadOptions{
		Columns:        opts.Columns,
		Where:          opts.Where,
		Limit:          opts.Limit,
		OrderColumn:    orderColumn,
		OrderDirection: orderDirection,
	})
	printWarnings(warns)
	if err != nil {
		return fmt.Errorf("failed to read table %s: %w", opts.Table, err)
	}

	return WriteFrame(f, opts.Output, opts.Sheet)
}

// ParseOrderBy splits an order clause into column and direction.
// Direction defaults to ASC when only a column is given.
func ParseOrderBy(orderBy string) (column, direction string, err error) {
	orderBy = strings.TrimSpace(orderBy)
	if orderBy == "" {
		return "", "", nil
	}
	tokens := strings.Fields(orderBy)
	switch len(tokens) {
	case 1:
		return tokens[0], "ASC", nil
	case 2:
		dir := strings.ToUpper(tokens[1])
		if dir != "ASC" && dir != "DESC" {
			return "", "", fmt.Errorf("invalid order direction %q, expected ASC or DESC", tokens[1])
		}
		return tokens[0], dir, nil
	}
	return "", "", fmt.Errorf("invalid order clause %q, expected 'column [ASC|DESC]'", orderBy)
}
