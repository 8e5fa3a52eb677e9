package sync

import "fmt"

// Служебные столбцы времени записи. Добавляются движком при включённом
// IncludeMetadataTimestamps и ведутся сервером через GETDATE().
const (
	TimeInsertColumn = "_time_insert"
	TimeUpdateColumn = "_time_update"
)

func isMetadataColumn(name string) bool {
	return name == TimeInsertColumn || name == TimeUpdateColumn
}

func allMetadataColumns(names []string) bool {
	if len(names) == 0 {
		return false
	}
	for _, name := range names {
		if !isMetadataColumn(name) {
			return false
		}
	}
	return true
}

// NonConvergenceError: бюджет согласований схемы исчерпан, а запись
// так и не прошла. Последний сбой доступен через Unwrap.
type NonConvergenceError struct {
	Attempts int
	cause    error
}

func (e *NonConvergenceError) Error() string {
	return fmt.Sprintf("adjust attempts (%d) reached: %v", e.Attempts, e.cause)
}

func (e *NonConvergenceError) Unwrap() error { return e.cause }

// AdjustHintError: сбой устраним согласованием, но создание и
// изменение объектов SQL не разрешено конфигурацией движка.
type AdjustHintError struct {
	cause error
}

func (e *AdjustHintError) Error() string {
	return e.cause.Error() + "; initialize with AdjustSQLObjects=true to create/modify SQL objects"
}

func (e *AdjustHintError) Unwrap() error { return e.cause }

// RecastColumnUnchangedError: повторный вывод типов по кадру не
// изменил тип тесного столбца, согласование не продвинулось бы.
type RecastColumnUnchangedError struct {
	Table   string
	Columns []string
}

func (e *RecastColumnUnchangedError) Error() string {
	if len(e.Columns) == 0 {
		return fmt.Sprintf("re-inference left column types of table %s unchanged, reconciliation cannot progress", e.Table)
	}
	return fmt.Sprintf("re-inference left columns %v of table %s unchanged, reconciliation cannot progress", e.Columns, e.Table)
}

// RecastColumnChangedCategoryError: выведенный тип столбца переходит в
// другую категорию, автоматическая перестройка небезопасна.
type RecastColumnChangedCategoryError struct {
	Table  string
	Column string
	From   string
	To     string
}

func (e *RecastColumnChangedCategoryError) Error() string {
	return fmt.Sprintf("column [%s] of table %s would change type category (%s to %s), automatic recast is unsafe", e.Column, e.Table, e.From, e.To)
}
