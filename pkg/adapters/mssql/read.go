package mssql

import (
	"context"
	"fmt"
	"strings"

	"github.com/ruslano69/mssqlframe/pkg/core/filter"
	"github.com/ruslano69/mssqlframe/pkg/core/frame"
	"github.com/ruslano69/mssqlframe/pkg/core/schema"
)

// ReadOptions — параметры выборки из таблицы.
type ReadOptions struct {
	Columns        []string // nil — все столбцы
	Where          string   // текстовое условие отбора
	Limit          int      // TOP(n), 0 — без ограничения
	OrderColumn    string
	OrderDirection string // ASC либо DESC
}

// ReadTable читает таблицу в кадр. Столбцы первичного ключа включаются
// в выборку всегда и становятся индексом кадра, значения типизируются
// по живой схеме.
func (a *Adapter) ReadTable(ctx context.Context, table string, opts ReadOptions) (*frame.Frame, []schema.Warning, error) {
	tbl, warns, err := a.ReadSchema(ctx, a.db, table)
	if err != nil {
		return nil, nil, err
	}

	var pk []string
	for _, c := range tbl.PrimaryKey() {
		pk = append(pk, c.Name)
	}

	var selected []string
	if opts.Columns != nil {
		selected = append(selected, pk...)
		for _, c := range opts.Columns {
			already := false
			for _, s := range selected {
				if s == c {
					already = true
					break
				}
			}
			if !already {
				selected = append(selected, c)
			}
		}
		var missing []string
		for _, c := range selected {
			if !tbl.HasColumn(c) {
				missing = append(missing, c)
			}
		}
		if len(missing) > 0 {
			return nil, warns, &Failure{Kind: FailureColumnDoesNotExist, Table: table, Columns: missing}
		}
	}

	dir := strings.ToUpper(strings.TrimSpace(opts.OrderDirection))
	if (opts.OrderColumn == "") != (dir == "") {
		return nil, warns, fmt.Errorf("order column and order direction must both be specified")
	}
	if dir != "" && dir != "ASC" && dir != "DESC" {
		return nil, warns, fmt.Errorf("order direction must be one of: ASC, DESC")
	}

	names := []string{table}
	names = append(names, selected...)
	if opts.OrderColumn != "" {
		names = append(names, opts.OrderColumn)
	}
	safe, err := EscapeAll(ctx, a.db, names)
	if err != nil {
		return nil, warns, err
	}
	safeTable := safe[0]
	safeCols := safe[1 : 1+len(selected)]
	var safeOrder SafeIdent
	if opts.OrderColumn != "" {
		safeOrder = safe[len(safe)-1]
	}

	clause, err := filter.Parse(opts.Where)
	if err != nil {
		return nil, warns, err
	}
	whereSQL, whereArgs, err := BuildWhere(ctx, a.db, clause)
	if err != nil {
		return nil, warns, err
	}

	stmt := BuildSelect(safeTable, safeCols, whereSQL, opts.Limit, safeOrder, dir)
	rows, err := a.db.QueryContext(ctx, stmt, whereArgs...)
	if err != nil {
		return nil, warns, fmt.Errorf("failed to read table %s: %w", safeTable, err)
	}
	defer rows.Close()

	f, err := DecodeRows(rows, tbl)
	if err != nil {
		return nil, warns, err
	}
	return f, warns, nil
}

// Query выполняет произвольный запрос и читает результат в кадр.
// Типизация опирается на имена типов драйвера; это запасной выход
// для выражений, которые не сводятся к выборке из одной таблицы.
func (a *Adapter) Query(ctx context.Context, statement string, args ...any) (*frame.Frame, error) {
	rows, err := a.db.QueryContext(ctx, statement, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()
	return FrameFromRows(rows)
}
