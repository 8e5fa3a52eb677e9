package base

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// NormalizeValue декодирует значение драйвера БД в канонический тип кадра.
// dbTypeName - имя типа колонки из метаданных запроса
// (sql.ColumnType.DatabaseTypeName), пустая строка если тип неизвестен.
// Общая реализация для всех источников (вместо копии в каждом адаптере).
func NormalizeValue(value any, dbTypeName string) any {
	if value == nil {
		return nil
	}

	switch v := value.(type) {
	case []byte:
		// Бинарные колонки остаются байтами, текстовые становятся строкой.
		// UUID приходит 16 байтами и форматируется каноническим видом
		if isUUIDType(dbTypeName) && len(v) == 16 {
			return formatUUID(v)
		}
		if isBinaryType(dbTypeName) {
			out := make([]byte, len(v))
			copy(out, v)
			return out
		}
		return string(v)

	case [16]byte:
		// UUID как массив байт (pgx native mode)
		return formatUUID(v[:])

	case pgtype.Numeric:
		// PostgreSQL NUMERIC/DECIMAL без потери точности
		if !v.Valid {
			return nil
		}
		if v.NaN {
			return math.NaN()
		}
		if v.InfinityModifier != 0 {
			if v.InfinityModifier > 0 {
				return math.Inf(1)
			}
			return math.Inf(-1)
		}
		return decimal.NewFromBigInt(v.Int, v.Exp)

	case map[string]any:
		// JSON/JSONB как map - конвертируем в JSON строку
		jsonBytes, _ := json.Marshal(v)
		return string(jsonBytes)

	case []any:
		// JSON array
		jsonBytes, _ := json.Marshal(v)
		return string(jsonBytes)

	case bool, string, time.Time,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		// Числовые ширины приводит frame.Normalize
		return v

	default:
		// Попытка конвертировать в строку через Stringer interface
		if s, ok := value.(fmt.Stringer); ok {
			return s.String()
		}

		// Последняя попытка - используем строковое представление
		return fmt.Sprintf("%v", v)
	}
}

// formatUUID форматирует 16 байт как UUID:
// xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx
func formatUUID(b []byte) string {
	return fmt.Sprintf("%x-%x-%x-%x-%x",
		b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
}

// isBinaryType сообщает, хранит ли колонка бинарные данные.
// Имена типов по СУБД: BLOB-семейство (MySQL/SQLite), BINARY/VARBINARY
// (MySQL), BYTEA (PostgreSQL)
func isBinaryType(dbTypeName string) bool {
	switch strings.ToUpper(dbTypeName) {
	case "BLOB", "TINYBLOB", "MEDIUMBLOB", "LONGBLOB",
		"BINARY", "VARBINARY", "BYTEA":
		return true
	}
	return false
}

// isUUIDType сообщает, хранит ли колонка UUID
func isUUIDType(dbTypeName string) bool {
	switch strings.ToUpper(dbTypeName) {
	case "UUID", "UNIQUEIDENTIFIER":
		return true
	}
	return false
}

// WithTimeout ограничивает контекст таймаутом запроса из конфигурации.
// При d <= 0 возвращает контекст без изменений
func WithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
