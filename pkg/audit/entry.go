package audit

import (
	"encoding/json"
	"fmt"
	"time"
)

// Level - уровень детализации журнала
type Level int

const (
	// LevelMinimal - операция, таблица и счетчики
	LevelMinimal Level = iota

	// LevelStandard - плюс согласования схемы и предупреждения
	LevelStandard

	// LevelFull - полная информация включая данные
	LevelFull
)

// String - строковое представление уровня
func (l Level) String() string {
	switch l {
	case LevelMinimal:
		return "minimal"
	case LevelStandard:
		return "standard"
	case LevelFull:
		return "full"
	default:
		return fmt.Sprintf("unknown(%d)", l)
	}
}

// Operation - тип операции
type Operation string

const (
	OpInsert     Operation = "insert"
	OpUpdate     Operation = "update"
	OpMerge      Operation = "merge"
	OpUpsert     Operation = "upsert"
	OpCreate     Operation = "create"
	OpRead       Operation = "read"
	OpQuery      Operation = "query"
	OpConnect    Operation = "connect"
	OpDisconnect Operation = "disconnect"
	OpValidate   Operation = "validate"
	OpRun        Operation = "run" // Прогон конвейера
	OpArchive    Operation = "archive"
)

// Status - статус выполнения операции
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusPartial Status = "partial"
)

// Entry - запись журнала: одна операция записи или чтения со всем,
// что о ней известно движку — строки, попытки, выполненные
// согласования схемы и предупреждения преобразования значений.
type Entry struct {
	// ID - уникальный идентификатор записи
	ID string `json:"id"`

	// Timestamp - время операции
	Timestamp time.Time `json:"timestamp"`

	// Operation - тип операции
	Operation Operation `json:"operation"`

	// Status - статус выполнения
	Status Status `json:"status"`

	// User - пользователь или система
	User string `json:"user,omitempty"`

	// Source - источник данных (имя конвейера, файла, СУБД)
	Source string `json:"source,omitempty"`

	// Resource - целевая таблица
	Resource string `json:"resource,omitempty"`

	// RowsWritten - количество записанных строк
	RowsWritten int64 `json:"rows_written,omitempty"`

	// Attempts - сколько раз запись запускалась, включая успешную
	Attempts int `json:"attempts,omitempty"`

	// Adjustments - выполненные согласования схемы: созданные таблицы,
	// добавленные и расширенные столбцы
	Adjustments []string `json:"adjustments,omitempty"`

	// Warnings - предупреждения чтения схемы и подготовки значений
	Warnings []string `json:"warnings,omitempty"`

	// Duration - длительность операции
	Duration time.Duration `json:"duration,omitempty"`

	// ErrorMessage - сообщение об ошибке
	ErrorMessage string `json:"error_message,omitempty"`

	// Metadata - дополнительные метаданные
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// Data - данные операции (только для LevelFull)
	Data interface{} `json:"data,omitempty"`
}

// NewEntry - создать новую запись журнала
func NewEntry(operation Operation, status Status) *Entry {
	return &Entry{
		ID:        generateID(),
		Timestamp: time.Now(),
		Operation: operation,
		Status:    status,
		Metadata:  make(map[string]interface{}),
	}
}

// WithUser - установить пользователя
func (e *Entry) WithUser(user string) *Entry {
	e.User = user
	return e
}

// WithSource - установить источник
func (e *Entry) WithSource(source string) *Entry {
	e.Source = source
	return e
}

// WithResource - установить целевую таблицу
func (e *Entry) WithResource(resource string) *Entry {
	e.Resource = resource
	return e
}

// WithRows - установить количество записанных строк
func (e *Entry) WithRows(rows int64) *Entry {
	e.RowsWritten = rows
	return e
}

// WithAttempts - установить количество попыток
func (e *Entry) WithAttempts(attempts int) *Entry {
	e.Attempts = attempts
	return e
}

// WithAdjustments - установить выполненные согласования схемы
func (e *Entry) WithAdjustments(adjustments []string) *Entry {
	if len(adjustments) > 0 {
		e.Adjustments = append([]string(nil), adjustments...)
	}
	return e
}

// WithWarnings - установить предупреждения
func (e *Entry) WithWarnings(warnings []string) *Entry {
	if len(warnings) > 0 {
		e.Warnings = append([]string(nil), warnings...)
	}
	return e
}

// WithDuration - установить длительность
func (e *Entry) WithDuration(duration time.Duration) *Entry {
	e.Duration = duration
	return e
}

// WithError - установить ошибку
func (e *Entry) WithError(err error) *Entry {
	if err != nil {
		e.ErrorMessage = err.Error()
		e.Status = StatusFailure
	}
	return e
}

// WithMetadata - добавить метаданные
func (e *Entry) WithMetadata(key string, value interface{}) *Entry {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// WithData - установить данные операции
func (e *Entry) WithData(data interface{}) *Entry {
	e.Data = data
	return e
}

// ToJSON - преобразовать в JSON
func (e *Entry) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// ToJSONIndent - преобразовать в форматированный JSON
func (e *Entry) ToJSONIndent() ([]byte, error) {
	return json.MarshalIndent(e, "", "  ")
}

// String - строковое представление
func (e *Entry) String() string {
	s := fmt.Sprintf("[%s] %s %s %s (resource=%s, rows=%d, attempts=%d, duration=%v)",
		e.Timestamp.Format(time.RFC3339),
		e.Operation,
		e.Status,
		e.User,
		e.Resource,
		e.RowsWritten,
		e.Attempts,
		e.Duration,
	)
	if len(e.Adjustments) > 0 {
		s += fmt.Sprintf(" adjustments=%d", len(e.Adjustments))
	}
	if e.ErrorMessage != "" {
		s += " error=" + e.ErrorMessage
	}
	return s
}

// Clone - создать копию записи
func (e *Entry) Clone() *Entry {
	clone := *e

	if e.Metadata != nil {
		clone.Metadata = make(map[string]interface{}, len(e.Metadata))
		for k, v := range e.Metadata {
			clone.Metadata[k] = v
		}
	}
	if e.Adjustments != nil {
		clone.Adjustments = append([]string(nil), e.Adjustments...)
	}
	if e.Warnings != nil {
		clone.Warnings = append([]string(nil), e.Warnings...)
	}

	return &clone
}

// FilterByLevel - фильтрация записи по уровню детализации
func (e *Entry) FilterByLevel(level Level) *Entry {
	filtered := e.Clone()

	switch level {
	case LevelMinimal:
		// Операция и счетчики; подробности согласований не пишутся
		filtered.Metadata = nil
		filtered.Data = nil
		filtered.Adjustments = nil
		filtered.Warnings = nil

	case LevelStandard:
		// Без данных операции
		filtered.Data = nil

	case LevelFull:
		// Вся информация
	}

	return filtered
}

// generateID - генерация уникального ID
func generateID() string {
	return fmt.Sprintf("audit-%d-%d",
		time.Now().UnixNano(),
		time.Now().Unix()%1000,
	)
}
