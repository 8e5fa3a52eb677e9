package base

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ruslano69/mssqlframe/pkg/core/frame"
)

// QueryFrame выполняет запрос и возвращает результат кадром.
// Общая реализация чтения для источников поверх database/sql
func QueryFrame(ctx context.Context, db *sql.DB, query string, args ...any) (*frame.Frame, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	return FrameFromRows(rows)
}

// FrameFromRows собирает кадр из открытого результата запроса.
// Значения декодируются через NormalizeValue с учетом типа колонки
func FrameFromRows(rows *sql.Rows) (*frame.Frame, error) {
	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read column names: %w", err)
	}

	// Имена типов нужны, чтобы отличать бинарные колонки от текстовых
	dbTypes := make([]string, len(names))
	if colTypes, err := rows.ColumnTypes(); err == nil {
		for i, ct := range colTypes {
			dbTypes[i] = ct.DatabaseTypeName()
		}
	}

	var data [][]any
	holders := make([]any, len(names))
	for rows.Next() {
		for i := range holders {
			holders[i] = new(any)
		}
		if err := rows.Scan(holders...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		values := make([]any, len(names))
		for i, h := range holders {
			values[i] = NormalizeValue(*(h.(*any)), dbTypes[i])
		}
		data = append(data, values)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	f, err := frame.FromRows(names, data)
	if err != nil {
		return nil, fmt.Errorf("failed to build frame: %w", err)
	}
	return f, nil
}
