// Package infer выводит типы SQL Server из содержимого фрейма:
// числовой каскад с сужением разрядности, распознавание длительностей
// и дат, разделение varchar/nvarchar и date/datetime2, выбор
// кандидата в первичный ключ.
package infer

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/ruslano69/mssqlframe/pkg/core/frame"
	"github.com/ruslano69/mssqlframe/pkg/core/schema"
)

// Result — результат вывода типов: типизированный фрейм, схема
// столбцов в порядке фрейма и кандидат в первичный ключ.
type Result struct {
	Frame   *frame.Frame
	Columns []schema.Column
	PK      string // пустая строка — кандидата нет
}

// Column возвращает выведенную схему столбца по имени.
func (r *Result) Column(name string) (*schema.Column, bool) {
	for i := range r.Columns {
		if r.Columns[i].Name == name {
			return &r.Columns[i], true
		}
	}
	return nil, false
}

// Infer выводит типы всех столбцов фрейма. Исходный фрейм не
// изменяется. Столбцы с байтовыми значениями не представимы в
// таблице правил и дают UndefinedRuleError.
func Infer(f *frame.Frame) (*Result, error) {
	out := f.Clone()
	res := &Result{Frame: out}

	var unsupported []string
	for _, name := range f.Columns() {
		col, _ := out.Column(name)
		inferred, ok := inferColumn(col)
		if !ok {
			unsupported = append(unsupported, name)
			continue
		}
		res.Columns = append(res.Columns, inferred)
	}
	if len(unsupported) > 0 {
		return nil, &schema.UndefinedRuleError{Columns: unsupported}
	}

	res.PK = pickPK(out, res.Columns)
	return res, nil
}

// inferColumn определяет тип одного столбца и заменяет его значения
// типизированными. Порядок каскада: число, логический, tinyint,
// длительность, дата-время, строка.
func inferColumn(col *frame.Column) (schema.Column, bool) {
	out := schema.Column{Name: col.Name, Nullable: col.HasNull()}

	if col.AllNull() {
		// Пустой столбец: тип узнать не из чего
		out.Type = schema.TypeNVarChar
		out.Size = 1
		out.Nullable = true
		return out, true
	}

	k := firstKind(col.Values)
	if k == frame.KindBytes {
		return out, false
	}
	if allKind(col.Values, k) {
		switch k {
		case frame.KindBool:
			out.Type = schema.TypeBit
			return out, true
		case frame.KindDecimal:
			out.Type = schema.TypeNumeric
			out.Precision, out.Scale = decimalSpec(col.Values)
			return out, true
		case frame.KindDuration:
			out.Type = schema.TypeTime
			return out, true
		case frame.KindTime:
			out.Type = dateOrDateTime2(col.Values)
			return out, true
		case frame.KindInt, frame.KindFloat:
			typed, sqlType, ok := numericType(col.Values)
			if ok {
				copy(col.Values, typed)
				out.Type = sqlType
				return out, true
			}
		}
	}

	// Строковый каскад; разнотипные столбцы приводятся к строкам
	values := stringified(col.Values)

	if typed, sqlType, ok := tryNumericStrings(values); ok {
		copy(col.Values, typed)
		out.Type = sqlType
		return out, true
	}
	if typed, ok := tryParseAll(values, parseDuration); ok {
		copy(col.Values, typed)
		out.Type = schema.TypeTime
		return out, true
	}
	if typed, ok := tryParseAll(values, parseDateTime); ok {
		copy(col.Values, typed)
		out.Type = dateOrDateTime2(typed)
		return out, true
	}

	copy(col.Values, values)
	out.Type = stringType(values)
	out.Size = maxRuneLen(values)
	return out, true
}

func firstKind(values []any) frame.Kind {
	for _, v := range values {
		if v != nil {
			return frame.KindOf(v)
		}
	}
	return frame.KindNull
}

func allKind(values []any, k frame.Kind) bool {
	for _, v := range values {
		if v == nil {
			continue
		}
		got := frame.KindOf(v)
		if got == k {
			continue
		}
		// int и float считаются одной числовой группой
		numeric := (got == frame.KindInt || got == frame.KindFloat) &&
			(k == frame.KindInt || k == frame.KindFloat)
		if !numeric {
			return false
		}
	}
	return true
}

// stringified возвращает значения столбца в текстовой форме,
// NULL сохраняется.
func stringified(values []any) []any {
	out := make([]any, len(values))
	for i, v := range values {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			out[i] = s
			continue
		}
		out[i] = frame.RenderValue(v)
	}
	return out
}

// tryNumericStrings разбирает строковый столбец как числовой.
// Литералы "True"/"False" считаются единицей и нулём.
func tryNumericStrings(values []any) ([]any, schema.SQLType, bool) {
	parsed := make([]any, len(values))
	for i, v := range values {
		if v == nil {
			continue
		}
		s := strings.TrimSpace(v.(string))
		switch s {
		case "True":
			s = "1"
		case "False":
			s = "0"
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			parsed[i] = n
			continue
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, "", false
		}
		parsed[i] = f
	}
	return numericType(parsed)
}

// numericType сужает числовой столбец до самого узкого типа:
// целые по диапазону значений, дробные остаются float. Целый
// столбец из нулей и единиц становится bit, если таких значений
// больше двух.
func numericType(values []any) ([]any, schema.SQLType, bool) {
	typed := make([]any, len(values))
	integral := true
	var minV, maxV int64
	first := true
	count := 0

	for i, v := range values {
		if v == nil {
			continue
		}
		count++
		switch x := v.(type) {
		case int64:
			typed[i] = x
		case float64:
			if x != math.Trunc(x) || math.IsNaN(x) || math.IsInf(x, 0) ||
				x < math.MinInt64 || x >= math.MaxInt64 {
				integral = false
				typed[i] = x
				continue
			}
			typed[i] = int64(x)
		default:
			return nil, "", false
		}
		if n, ok := typed[i].(int64); ok {
			if first {
				minV, maxV = n, n
				first = false
			} else {
				if n < minV {
					minV = n
				}
				if n > maxV {
					maxV = n
				}
			}
		}
	}

	if !integral {
		// Смешанный столбец уходит во float целиком
		for i, v := range typed {
			if n, ok := v.(int64); ok {
				typed[i] = float64(n)
			}
		}
		return typed, schema.TypeFloat, true
	}

	// Нули и единицы в количестве больше двух — логический столбец
	if minV >= 0 && maxV <= 1 && count > 2 {
		for i, v := range typed {
			if n, ok := v.(int64); ok {
				typed[i] = n == 1
			}
		}
		return typed, schema.TypeBit, true
	}

	switch {
	case minV >= 0 && maxV <= 255:
		return typed, schema.TypeTinyInt, true
	case minV >= math.MinInt16 && maxV <= math.MaxInt16:
		return typed, schema.TypeSmallInt, true
	case minV >= math.MinInt32 && maxV <= math.MaxInt32:
		return typed, schema.TypeInt, true
	}
	return typed, schema.TypeBigInt, true
}

// decimalSpec подбирает numeric(p,s) по значениям: масштаб — наибольшее
// число знаков после запятой, точность — его сумма с наибольшим числом
// целых цифр. Голый numeric дал бы серверный numeric(18,0) и молчаливое
// округление дробной части. Потолок точности SQL Server — 38.
func decimalSpec(values []any) (precision, scale int) {
	intDigits := 1
	for _, v := range values {
		d, ok := v.(decimal.Decimal)
		if !ok {
			continue
		}
		if e := int(d.Exponent()); e < 0 && -e > scale {
			scale = -e
		}
		if n := len(d.Abs().Truncate(0).String()); n > intDigits {
			intDigits = n
		}
	}
	precision = intDigits + scale
	if precision > 38 {
		precision = 38
	}
	if scale > precision {
		scale = precision
	}
	return precision, scale
}

func parseDuration(s string) (any, bool) {
	d, ok := frame.ParseDuration(s)
	return d, ok
}

func parseDateTime(s string) (any, bool) {
	t, ok := frame.ParseDateTime(s)
	return t, ok
}

// tryParseAll применяет разбор ко всем ненулевым значениям; успех
// только если разобралось каждое.
func tryParseAll(values []any, parse func(string) (any, bool)) ([]any, bool) {
	typed := make([]any, len(values))
	for i, v := range values {
		if v == nil {
			continue
		}
		p, ok := parse(v.(string))
		if !ok {
			return nil, false
		}
		typed[i] = p
	}
	return typed, true
}

// dateOrDateTime2 различает date и datetime2: дата — когда все
// значения приходятся на полночь.
func dateOrDateTime2(values []any) schema.SQLType {
	for _, v := range values {
		t, ok := v.(time.Time)
		if !ok {
			continue
		}
		if t.Hour() != 0 || t.Minute() != 0 || t.Second() != 0 || t.Nanosecond() != 0 {
			return schema.TypeDateTime2
		}
	}
	return schema.TypeDate
}

// stringType различает varchar и nvarchar: varchar только когда все
// значения укладываются в ASCII без потерь.
func stringType(values []any) schema.SQLType {
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		for _, r := range s {
			if r > unicode.MaxASCII {
				return schema.TypeNVarChar
			}
		}
	}
	return schema.TypeVarChar
}

func maxRuneLen(values []any) int {
	maxLen := 1
	for _, v := range values {
		if s, ok := v.(string); ok {
			if n := utf8.RuneCountInString(s); n > maxLen {
				maxLen = n
			}
		}
	}
	return maxLen
}

// pickPK выбирает кандидата в первичный ключ: среди not-null
// столбцов с уникальными значениями — целочисленный с наименьшим
// максимумом, иначе строковый с наименьшей длиной. bit и float не
// участвуют.
func pickPK(f *frame.Frame, cols []schema.Column) string {
	bestInt := ""
	var bestIntMax int64
	bestStr := ""
	bestStrLen := 0

	for _, c := range cols {
		if c.Nullable {
			continue
		}
		switch c.Type {
		case schema.TypeTinyInt, schema.TypeSmallInt, schema.TypeInt, schema.TypeBigInt:
			col, _ := f.Column(c.Name)
			maxV, ok := uniqueIntMax(col.Values)
			if !ok {
				continue
			}
			if bestInt == "" || maxV < bestIntMax {
				bestInt = c.Name
				bestIntMax = maxV
			}
		case schema.TypeVarChar, schema.TypeNVarChar:
			col, _ := f.Column(c.Name)
			maxLen, ok := uniqueStrMaxLen(col.Values)
			if !ok {
				continue
			}
			if bestStr == "" || maxLen < bestStrLen {
				bestStr = c.Name
				bestStrLen = maxLen
			}
		}
	}

	if bestInt != "" {
		return bestInt
	}
	return bestStr
}

// uniqueIntMax возвращает максимум столбца, если все значения
// целые и уникальны.
func uniqueIntMax(values []any) (int64, bool) {
	seen := make(map[int64]bool, len(values))
	var maxV int64
	first := true
	for _, v := range values {
		n, ok := v.(int64)
		if !ok {
			return 0, false
		}
		if seen[n] {
			return 0, false
		}
		seen[n] = true
		if first || n > maxV {
			maxV = n
			first = false
		}
	}
	return maxV, len(values) > 0
}

func uniqueStrMaxLen(values []any) (int, bool) {
	seen := make(map[string]bool, len(values))
	maxLen := 0
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			return 0, false
		}
		if seen[s] {
			return 0, false
		}
		seen[s] = true
		if n := utf8.RuneCountInString(s); n > maxLen {
			maxLen = n
		}
	}
	return maxLen, len(values) > 0
}
