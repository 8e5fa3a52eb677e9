package sync

import (
	"context"
	"fmt"

	"github.com/ruslano69/mssqlframe/pkg/adapters/mssql"
	"github.com/ruslano69/mssqlframe/pkg/core/frame"
	"github.com/ruslano69/mssqlframe/pkg/core/infer"
	"github.com/ruslano69/mssqlframe/pkg/core/schema"
)

// PKMode задаёт первичный ключ таблицы, создаваемой по кадру.
type PKMode int

const (
	// PKNone — таблица без первичного ключа.
	PKNone PKMode = iota
	// PKIdentity — суррогатный ключ _pk int identity.
	PKIdentity
	// PKIndex — ключом становятся столбцы индекса кадра.
	PKIndex
	// PKInfer — ключ выбирает вывод типов; кандидат становится
	// индексом кадра.
	PKInfer
)

// CreateTable создаёт таблицу по явной схеме столбцов.
func (e *Engine) CreateTable(ctx context.Context, table string, columns []schema.Column, pkColumns []string, identityPK bool) error {
	specs := make([]mssql.CreateColumn, 0, len(columns))
	for _, col := range columns {
		dtype, size := mssql.SplitTypeSize(col.TypeSpec())
		specs = append(specs, mssql.CreateColumn{
			Name:    col.Name,
			Type:    dtype,
			Size:    size,
			NotNull: !col.Nullable,
		})
	}
	safeTable, err := mssql.Escape(ctx, e.adapter.DB(), table)
	if err != nil {
		return err
	}
	stmt, args, err := mssql.BuildCreateTable(safeTable, specs, pkColumns, identityPK)
	if err != nil {
		return err
	}
	if _, err := e.adapter.DB().ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("failed to create table %s: %w", table, err)
	}
	return nil
}

// CreateTableFrom создаёт таблицу по содержимому кадра: типы столбцов
// выводятся из значений, столбцы без NULL объявляются NOT NULL. Режим
// pk выбирает первичный ключ. Возвращается результат вывода с
// типизированной копией кадра; при PKInfer кандидат в ключ становится
// её индексом. Строки не вставляются.
func (e *Engine) CreateTableFrom(ctx context.Context, table string, f *frame.Frame, pk PKMode) (*infer.Result, error) {
	if f == nil || len(f.Columns()) == 0 {
		return nil, fmt.Errorf("frame has no columns")
	}
	return e.createFromFrame(ctx, table, f, pk)
}

func (e *Engine) createFromFrame(ctx context.Context, table string, f *frame.Frame, pk PKMode) (*infer.Result, error) {
	res, err := infer.Infer(f)
	if err != nil {
		return nil, err
	}

	var pkColumns []string
	identityPK := false
	switch pk {
	case PKIdentity:
		identityPK = true
	case PKIndex:
		pkColumns = f.Index()
		if len(pkColumns) == 0 {
			return nil, fmt.Errorf("primary key mode \"index\" requires a frame with an index")
		}
	case PKInfer:
		if res.PK != "" {
			pkColumns = []string{res.PK}
			if err := res.Frame.SetIndex(res.PK); err != nil {
				return nil, err
			}
		}
	}

	columns := make([]mssql.CreateColumn, 0, len(res.Columns)+1)
	for _, col := range res.Columns {
		dtype, size := mssql.SplitTypeSize(col.TypeSpec())
		columns = append(columns, mssql.CreateColumn{
			Name:    col.Name,
			Type:    dtype,
			Size:    size,
			NotNull: !col.Nullable,
		})
	}
	if e.config.IncludeMetadataTimestamps {
		columns = append(columns, mssql.CreateColumn{Name: TimeInsertColumn, Type: "datetime2"})
	}

	safeTable, err := mssql.Escape(ctx, e.adapter.DB(), table)
	if err != nil {
		return nil, err
	}
	stmt, args, err := mssql.BuildCreateTable(safeTable, columns, pkColumns, identityPK)
	if err != nil {
		return nil, err
	}
	if _, err := e.adapter.DB().ExecContext(ctx, stmt, args...); err != nil {
		return nil, fmt.Errorf("failed to create table %s: %w", table, err)
	}
	return res, nil
}
