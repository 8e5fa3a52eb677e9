package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
)

// SafeIdent — идентификатор, уже экранированный сервером через QUOTENAME.
// Только значения этого типа допускаются к встраиванию в текст запроса;
// всё остальное уходит параметрами. Конструирование в обход Escape
// равносильно ручной конкатенации и в коде адаптера не используется.
type SafeIdent string

func (s SafeIdent) String() string { return string(s) }

// Разделитель составных имён при пакетном экранировании. Точки внутри
// имени сохраняются как есть, а между именами вставляется терминатор,
// по которому результат разрезается обратно. На сервер терминатор
// не передаётся.
const identTerm = "ÿ"

var dotRuns = regexp.MustCompile(`\.+`)

// InvalidLengthObjectNameError возникает, когда QUOTENAME возвращает NULL:
// сегмент имени длиннее 128 символов либо иным образом непредставим
// как идентификатор.
type InvalidLengthObjectNameError struct {
	Name string
}

func (e *InvalidLengthObjectNameError) Error() string {
	if e.Name == "" {
		return "SQL object name is too long"
	}
	return fmt.Sprintf("SQL object name is too long: %s", e.Name)
}

// Escape экранирует одно имя, возможно составное ("dbo.table").
func Escape(ctx context.Context, q Querier, name string) (SafeIdent, error) {
	safe, err := EscapeAll(ctx, q, []string{name})
	if err != nil {
		return "", err
	}
	return safe[0], nil
}

// EscapeAll экранирует набор имён за один круговой запрос к серверу.
// Каждое имя разбивается по точкам, сегменты передаются параметрами
// в SELECT QUOTENAME(?), ..., а ответ собирается обратно с исходными
// разделителями. NULL в ответе означает непредставимый сегмент.
func EscapeAll(ctx context.Context, q Querier, names []string) ([]SafeIdent, error) {
	if len(names) == 0 {
		return nil, nil
	}

	var segments []string
	var seps []string
	for _, name := range names {
		segments = append(segments, dotRuns.Split(name, -1)...)
		seps = append(seps, dotRuns.FindAllString(name, -1)...)
		seps = append(seps, identTerm)
	}

	exprs := make([]string, len(segments))
	args := make([]any, len(segments))
	for i, s := range segments {
		exprs[i] = "QUOTENAME(?)"
		args[i] = s
	}

	dest := make([]any, len(segments))
	for i := range dest {
		dest[i] = new(sql.NullString)
	}
	row := q.QueryRowContext(ctx, "SELECT "+strings.Join(exprs, ", "), args...)
	if err := row.Scan(dest...); err != nil {
		return nil, fmt.Errorf("failed to escape identifiers: %w", err)
	}

	quoted := make([]string, len(segments))
	for i, d := range dest {
		ns := d.(*sql.NullString)
		if !ns.Valid {
			return nil, &InvalidLengthObjectNameError{Name: segments[i]}
		}
		quoted[i] = ns.String
	}
	return reassemble(quoted, seps), nil
}

// reassemble чередует экранированные сегменты с разделителями и режет
// результат по терминаторам обратно на имена. Последний терминатор
// отбрасывается.
func reassemble(quoted, seps []string) []SafeIdent {
	var b strings.Builder
	for i, s := range quoted {
		b.WriteString(s)
		if i < len(quoted)-1 {
			b.WriteString(seps[i])
		}
	}
	parts := strings.Split(b.String(), identTerm)
	safe := make([]SafeIdent, len(parts))
	for i, p := range parts {
		safe[i] = SafeIdent(p)
	}
	return safe
}
