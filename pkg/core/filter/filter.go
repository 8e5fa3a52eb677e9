// Package filter разбирает ограниченную грамматику условий WHERE:
// условия вида "столбец оператор значение" или "столбец IS [NOT]
// NULL", соединённые AND/OR, с одним уровнем скобочных групп.
// Имена столбцов никогда не попадают в текст SQL напрямую — сборку
// выражения с экранированием выполняет адаптер.
package filter

import (
	"fmt"
	"regexp"
	"strings"
)

// Операторы сравнения в порядке поиска. Составные идут раньше
// одиночных, иначе ">=" распался бы на ">" и мусор.
var comparators = []string{
	">=", "<=", "<>", "!=", "!>", "!<", "=", ">", "<", "IS NULL", "IS NOT NULL",
}

var linkPattern = regexp.MustCompile(`(?i)\b(AND|OR)\b`)

// Condition — одно условие фильтра.
type Condition struct {
	Column     string
	Comparator string // нормализованный: >=, <=, <>, !=, !>, !<, =, >, <, IS NULL, IS NOT NULL
	Value      string // без обрамляющих одинарных кавычек
	HasValue   bool   // false для IS NULL / IS NOT NULL
	OpenGroup  bool   // условие открывает скобочную группу
	CloseGroup bool   // условие закрывает скобочную группу
}

// Clause — разобранный фильтр: условия и связки между ними.
// Связок всегда на одну меньше, чем условий.
type Clause struct {
	Conditions []Condition
	Links      []string // "AND" или "OR"
}

// InvalidSyntaxError возникает, когда условие не содержит ни одного
// оператора сравнения.
type InvalidSyntaxError struct {
	Condition string
}

func (e *InvalidSyntaxError) Error() string {
	return fmt.Sprintf("invalid syntax in condition %q: comparison operator not found", e.Condition)
}

// Parse разбирает строку условий WHERE. Пустая строка даёт пустой
// Clause без условий.
func Parse(where string) (*Clause, error) {
	clause := &Clause{}
	where = strings.TrimSpace(where)
	if where == "" {
		return clause, nil
	}

	chunks, links := splitConditions(where)
	clause.Links = links

	for _, chunk := range chunks {
		cond, err := parseCondition(chunk)
		if err != nil {
			return nil, err
		}
		clause.Conditions = append(clause.Conditions, cond)
	}
	return clause, nil
}

// Args возвращает значения условий в порядке появления — аргументы
// для плейсхолдеров собранного выражения.
func (c *Clause) Args() []any {
	var args []any
	for _, cond := range c.Conditions {
		if cond.HasValue {
			args = append(args, cond.Value)
		}
	}
	return args
}

// Columns возвращает имена столбцов всех условий по порядку.
func (c *Clause) Columns() []string {
	cols := make([]string, len(c.Conditions))
	for i, cond := range c.Conditions {
		cols[i] = cond.Column
	}
	return cols
}

// splitConditions режет строку по словам AND/OR без учёта регистра,
// сохраняя связки.
func splitConditions(where string) ([]string, []string) {
	var chunks, links []string
	last := 0
	for _, loc := range linkPattern.FindAllStringIndex(where, -1) {
		chunks = append(chunks, where[last:loc[0]])
		links = append(links, strings.ToUpper(where[loc[0]:loc[1]]))
		last = loc[1]
	}
	chunks = append(chunks, where[last:])
	return chunks, links
}

// parseCondition разбирает одно условие. Скобки по краям фиксируются
// как границы группы, после чего все скобки из текста убираются.
// Значение — текст от первого оператора до следующего или до конца.
func parseCondition(chunk string) (Condition, error) {
	cond := Condition{}
	s := strings.TrimSpace(chunk)
	cond.OpenGroup = strings.HasPrefix(s, "(")
	cond.CloseGroup = strings.HasSuffix(s, ")")
	s = strings.NewReplacer("(", "", ")", "").Replace(s)

	start, length, op := findComparator(s, 0)
	if start < 0 {
		return cond, &InvalidSyntaxError{Condition: strings.TrimSpace(chunk)}
	}
	cond.Comparator = op
	cond.Column = strings.TrimSpace(s[:start])
	if op == "IS NULL" || op == "IS NOT NULL" {
		return cond, nil
	}

	rest := s[start+length:]
	if next, _, _ := findComparator(rest, 0); next >= 0 {
		rest = rest[:next]
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return cond, nil
	}
	cond.Value = stripQuotes(rest)
	cond.HasValue = true
	return cond, nil
}

// findComparator ищет самое левое вхождение оператора начиная с from.
// На каждой позиции операторы пробуются в объявленном порядке, чтобы
// составные выигрывали у одиночных. Возвращает позицию, длину
// совпадения и нормализованный оператор, либо -1.
func findComparator(s string, from int) (int, int, string) {
	for i := from; i < len(s); i++ {
		for _, op := range comparators {
			if i+len(op) > len(s) {
				continue
			}
			if strings.EqualFold(s[i:i+len(op)], op) {
				return i, len(op), op
			}
		}
	}
	return -1, 0, ""
}

// stripQuotes снимает ведущую и замыкающую одинарные кавычки,
// каждую независимо.
func stripQuotes(v string) string {
	v = strings.TrimPrefix(v, "'")
	return strings.TrimSuffix(v, "'")
}
