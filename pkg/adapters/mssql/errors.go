package mssql

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// FailureKind — закрытый перечень исходов неудачной записи. Цикл
// согласования в pkg/sync делает по нему исчерпывающий switch, поэтому
// новые значения требуют новой ветки обработчика.
type FailureKind int

const (
	// FailureGeneral — нераспознанный сбой. Текст драйвера наружу
	// не выносится.
	FailureGeneral FailureKind = iota
	// FailureTableDoesNotExist — целевая таблица отсутствует.
	FailureTableDoesNotExist
	// FailureColumnDoesNotExist — во фрейме есть столбцы, которых
	// нет в таблице.
	FailureColumnDoesNotExist
	// FailureInsufficientColumnSize — значение не помещается в столбец:
	// строка длиннее ёмкости либо число вне диапазона типа.
	FailureInsufficientColumnSize
	// FailureInvalidInsertFormat — значение не приводится к типу
	// столбца вовсе.
	FailureInvalidInsertFormat
	// FailureIntegrity — нарушение ограничения целостности: дубликат
	// ключа, NULL в NOT NULL. Сообщение сервера передаётся дословно.
	FailureIntegrity
)

func (k FailureKind) String() string {
	switch k {
	case FailureTableDoesNotExist:
		return "table does not exist"
	case FailureColumnDoesNotExist:
		return "column does not exist"
	case FailureInsufficientColumnSize:
		return "insufficient column size"
	case FailureInvalidInsertFormat:
		return "invalid insert format"
	case FailureIntegrity:
		return "integrity violation"
	}
	return "general failure"
}

// Failure — классифицированный сбой записи. Поля заполняются по виду:
// Columns для отсутствующих или тесных столбцов, Allowed/Actual для
// диапазонов из предпроверки.
type Failure struct {
	Kind    FailureKind
	Table   string
	Columns []string
	Allowed []string
	Actual  []string
	cause   error
}

func (f *Failure) Error() string {
	switch f.Kind {
	case FailureTableDoesNotExist:
		return fmt.Sprintf("table %s does not exist", f.Table)
	case FailureColumnDoesNotExist:
		return fmt.Sprintf("columns %v do not exist in table %s", f.Columns, f.Table)
	case FailureInsufficientColumnSize:
		if len(f.Columns) > 0 {
			return fmt.Sprintf("columns %v exceed column capacity in table %s: allowed %v, actual %v",
				f.Columns, f.Table, f.Allowed, f.Actual)
		}
		return fmt.Sprintf("a column in table %s has insufficient size for the input", f.Table)
	case FailureInvalidInsertFormat:
		return fmt.Sprintf("a value is incorrectly formatted for a column type in table %s", f.Table)
	case FailureIntegrity:
		return f.cause.Error()
	}
	return "generic SQL failure during write"
}

func (f *Failure) Unwrap() error { return f.cause }

// UndefinedPrimaryKeyError: у таблицы нет первичного ключа, а операция
// его требует.
type UndefinedPrimaryKeyError struct {
	Table string
}

func (e *UndefinedPrimaryKeyError) Error() string {
	return fmt.Sprintf("SQL table %s has no primary key; either set the primary key or specify the match columns", e.Table)
}

var invalidColumnPattern = regexp.MustCompile(`Invalid column name '(.+?)'`)

// Шаблоны сообщений сервера по видам сбоев. Сопоставление текстовое,
// чтобы одинаково работать поверх go-mssqldb и ODBC.
var (
	stringTruncationMarks = []string{
		"String data, right truncation",
		"String or binary data would be truncated",
	}
	numericOverflowMarks = []string{
		"Numeric value out of range",
		"Arithmetic overflow error",
	}
	castFailureMarks = []string{
		"Invalid character value for cast specification",
		"Restricted data type attribute violation",
	}
	integrityMarks = []string{
		"Violation of PRIMARY KEY constraint",
		"Violation of UNIQUE KEY constraint",
		"Cannot insert duplicate key",
		"Cannot insert the value NULL",
		"conflicted with the FOREIGN KEY constraint",
	}
)

func containsAny(text string, marks []string) bool {
	for _, m := range marks {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

// Classify переводит ошибку выполнения в типизированный сбой.
// Уже классифицированные ошибки проходят без изменений, чтобы сбои
// предпроверки и сбои сервера шли одним путём в цикл согласования.
func Classify(table string, err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}

	text := err.Error()
	switch {
	case strings.Contains(text, "Invalid object name"):
		return &Failure{Kind: FailureTableDoesNotExist, Table: table, cause: err}
	case strings.Contains(text, "Invalid column name"):
		names := invalidColumnPattern.FindAllStringSubmatch(text, -1)
		seen := make(map[string]bool, len(names))
		var columns []string
		for _, m := range names {
			if !seen[m[1]] {
				seen[m[1]] = true
				columns = append(columns, m[1])
			}
		}
		return &Failure{Kind: FailureColumnDoesNotExist, Table: table, Columns: columns, cause: err}
	case containsAny(text, stringTruncationMarks):
		return &Failure{Kind: FailureInsufficientColumnSize, Table: table, cause: err}
	case containsAny(text, numericOverflowMarks):
		return &Failure{Kind: FailureInsufficientColumnSize, Table: table, cause: err}
	case containsAny(text, castFailureMarks):
		return &Failure{Kind: FailureInvalidInsertFormat, Table: table, cause: err}
	case containsAny(text, integrityMarks):
		return &Failure{Kind: FailureIntegrity, Table: table, cause: err}
	}
	return &Failure{Kind: FailureGeneral, Table: table, cause: err}
}
