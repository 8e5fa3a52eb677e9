// Package base предоставляет общие хелперы для всех источников данных
//
// Этот пакет устраняет дублирование кода между источниками (MySQL, PostgreSQL, SQLite)
// путем вынесения сканирования строк и декодирования значений в переиспользуемые функции.
//
// # Основные компоненты
//
// Чтение кадров поверх database/sql:
//   - QueryFrame() - выполнить запрос и вернуть результат кадром
//   - FrameFromRows() - собрать кадр из уже открытого *sql.Rows
//
// NormalizeValue - декодирование значения драйвера в канонический тип кадра:
//   - целые любой ширины → int64, float32 → float64
//   - pgtype.Numeric → decimal.Decimal (PostgreSQL NUMERIC/DECIMAL)
//   - [16]byte и 16-байтовые BYTEA → строка UUID
//   - map/slice (JSON/JSONB) → JSON строка
//   - []byte → string для текстовых колонок, []byte для бинарных
//
// WithTimeout - применение Config.Timeout к контексту запроса.
//
// # Использование
//
// Источник поверх database/sql делегирует чтение хелперам:
//
//	func (s *Source) ReadFrame(ctx context.Context, query string, args ...any) (*frame.Frame, error) {
//	    ctx, cancel := base.WithTimeout(ctx, s.config.Timeout)
//	    defer cancel()
//	    return base.QueryFrame(ctx, s.db, query, args...)
//	}
//
// PostgreSQL источник работает через pgxpool и сканирует pgx.Rows сам,
// но декодирует значения тем же NormalizeValue - поведение всех
// источников остается консистентным.
package base
