package mssql

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ruslano69/mssqlframe/pkg/core/frame"
	"github.com/ruslano69/mssqlframe/pkg/core/schema"
)

// ========== Подготовка значений к записи ==========

// PrepareArgs готовит значения кадра к передаче драйверу: по одному
// срезу аргументов на строку кадра, столбцы в порядке columns.
// NULL и пустые строки уходят как nil. Даты и длительности уходят
// строками, чтобы не упереться в усечение точности на стороне
// драйвера: сервер сам приводит их к datetime2 и time с точностью
// до 100 нс. Точность тоньше 100 нс усекается с предупреждением.
func PrepareArgs(tbl *schema.Table, f *frame.Frame, columns []string) ([][]any, []schema.Warning, error) {
	args := make([][]any, f.NumRows())
	for r := range args {
		args[r] = make([]any, len(columns))
	}

	var warns schema.Warnings
	var outOfRange []string
	for i, name := range columns {
		var rule schema.Rule
		haveRule := false
		if col, ok := tbl.Column(name); ok {
			rule, haveRule = col.Rule()
		}
		truncated := false
		overflow := false
		for r := 0; r < f.NumRows(); r++ {
			v, err := f.Value(name, r)
			if err != nil {
				return nil, nil, err
			}
			prepared, cut, bad := prepareValue(v, rule, haveRule)
			truncated = truncated || cut
			overflow = overflow || bad
			args[r][i] = prepared
		}
		if truncated {
			warns.Add(name, "nanosecond precision is truncated, SQL TIME and DATETIME2 allow 7 decimal places at most")
		}
		if overflow {
			outOfRange = append(outOfRange, name)
		}
	}
	if len(outOfRange) > 0 {
		return nil, nil, fmt.Errorf("columns %v are out of range for the SQL TIME data type, allowable range is 00:00:00.0000000-23:59:59.9999999", outOfRange)
	}
	return args, warns.List(), nil
}

// prepareValue переводит одно значение в форму для драйвера.
// cut — была усечена точность, bad — длительность вне суток.
func prepareValue(v any, rule schema.Rule, haveRule bool) (prepared any, cut, bad bool) {
	if frame.IsNull(v) {
		return nil, false, false
	}
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return nil, false, false
	}
	if !haveRule {
		return v, false, false
	}

	switch rule.Kind {
	case frame.KindDuration:
		d, ok := v.(time.Duration)
		if !ok {
			return v, false, false
		}
		if rem := d % (100 * time.Nanosecond); rem != 0 {
			d -= rem
			cut = true
		}
		if d < 0 || d > rule.MaxDur {
			return nil, cut, true
		}
		return frame.FormatDuration(d), cut, false
	case frame.KindTime:
		t, ok := v.(time.Time)
		if !ok {
			return v, false, false
		}
		if rem := t.Nanosecond() % 100; rem != 0 {
			t = t.Add(-time.Duration(rem))
			cut = true
		}
		if rule.SQLType == schema.TypeDateTimeOffset {
			return t.Format("2006-01-02 15:04:05.9999999 -07:00"), cut, false
		}
		return frame.FormatDateTime(t), cut, false
	case frame.KindDecimal:
		if d, ok := v.(decimal.Decimal); ok {
			return d.String(), false, false
		}
	}
	return v, false, false
}

// ========== Чтение значений из результата ==========

// DecodeRows читает результат запроса в кадр, типизируя значения по
// схеме таблицы. Столбцы первичного ключа, попавшие в выборку целиком,
// становятся индексом кадра.
func DecodeRows(rows *sql.Rows, tbl *schema.Table) (*frame.Frame, error) {
	f, err := scanFrame(rows, func(name string) (schema.Rule, bool) {
		col, ok := tbl.Column(name)
		if !ok {
			return schema.Rule{}, false
		}
		return col.Rule()
	})
	if err != nil {
		return nil, err
	}

	var pk []string
	for _, c := range tbl.PrimaryKey() {
		pk = append(pk, c.Name)
	}
	if len(pk) > 0 {
		all := true
		for _, c := range pk {
			if !f.HasColumn(c) {
				all = false
				break
			}
		}
		if all {
			if err := f.SetIndex(pk...); err != nil {
				return nil, err
			}
		}
	}
	return f, nil
}

// FrameFromRows читает результат произвольного запроса в кадр,
// типизируя значения по именам типов драйвера. Индекс не назначается.
func FrameFromRows(rows *sql.Rows) (*frame.Frame, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read column types: %w", err)
	}
	byName := make(map[string]schema.Rule, len(types))
	for _, ct := range types {
		if rule, ok := schema.RuleFor(strings.ToLower(ct.DatabaseTypeName())); ok {
			byName[ct.Name()] = rule
		}
	}
	return scanFrame(rows, func(name string) (schema.Rule, bool) {
		rule, ok := byName[name]
		return rule, ok
	})
}

func scanFrame(rows *sql.Rows, ruleFor func(name string) (schema.Rule, bool)) (*frame.Frame, error) {
	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}

	rules := make([]schema.Rule, len(names))
	haveRule := make([]bool, len(names))
	for i, n := range names {
		rules[i], haveRule[i] = ruleFor(n)
	}

	var data [][]any
	raw := make([]any, len(names))
	ptrs := make([]any, len(names))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		out := make([]any, len(names))
		for i := range raw {
			v, err := decodeValue(raw[i], rules[i], haveRule[i])
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", names[i], err)
			}
			out[i] = v
		}
		data = append(data, out)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read result rows: %w", err)
	}
	return frame.FromRows(names, data)
}

// decodeValue приводит сырое значение драйвера к каноническому типу
// кадра по правилу конвертации. Бинарные представления TIME и
// DATETIME2, отдаваемые ODBC-драйвером, распаковываются вручную.
func decodeValue(v any, rule schema.Rule, haveRule bool) (any, error) {
	if v == nil {
		return nil, nil
	}
	if !haveRule {
		// тип без правила проходит строкой
		switch x := v.(type) {
		case []byte:
			return fmt.Sprintf("0x%X", x), nil
		case string:
			return x, nil
		}
		return frame.Normalize(v)
	}

	switch rule.Kind {
	case frame.KindBool:
		switch x := v.(type) {
		case bool:
			return x, nil
		case int64:
			return x != 0, nil
		}
	case frame.KindInt:
		if n, ok := v.(int64); ok {
			return n, nil
		}
	case frame.KindFloat:
		if fl, ok := v.(float64); ok {
			return fl, nil
		}
	case frame.KindDecimal:
		switch x := v.(type) {
		case []byte:
			return decimal.NewFromString(string(x))
		case string:
			return decimal.NewFromString(x)
		case float64:
			return decimal.NewFromFloat(x), nil
		case int64:
			return decimal.NewFromInt(x), nil
		}
	case frame.KindString:
		switch x := v.(type) {
		case string:
			return x, nil
		case []byte:
			return string(x), nil
		}
	case frame.KindTime:
		switch x := v.(type) {
		case time.Time:
			return x, nil
		case []byte:
			return decodePackedTimestamp(x)
		case string:
			if t, ok := frame.ParseDateTime(x); ok {
				return t, nil
			}
		}
	case frame.KindDuration:
		switch x := v.(type) {
		case time.Time:
			// go-mssqldb отдаёт TIME как момент нулевой даты
			return time.Duration(x.Hour())*time.Hour +
				time.Duration(x.Minute())*time.Minute +
				time.Duration(x.Second())*time.Second +
				time.Duration(x.Nanosecond()), nil
		case []byte:
			return decodePackedTime(x)
		case string:
			if d, ok := frame.ParseDuration(x); ok {
				return d, nil
			}
		}
	case frame.KindBytes:
		if b, ok := v.([]byte); ok {
			out := make([]byte, len(b))
			copy(out, b)
			return out, nil
		}
	}
	return nil, fmt.Errorf("cannot decode %T as %s", v, rule.Kind)
}

// ========== Бинарные представления ODBC ==========

// decodePackedTime распаковывает SQL_SS_TIME2_STRUCT: четыре int16
// (часы, минуты, секунды, выравнивание) и uint32 долей в наносекундах,
// все поля little-endian.
func decodePackedTime(b []byte) (time.Duration, error) {
	if len(b) != 12 {
		return 0, fmt.Errorf("unexpected TIME payload length %d", len(b))
	}
	h := int16(binary.LittleEndian.Uint16(b[0:2]))
	m := int16(binary.LittleEndian.Uint16(b[2:4]))
	s := int16(binary.LittleEndian.Uint16(b[4:6]))
	frac := binary.LittleEndian.Uint32(b[8:12])
	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(frac)*time.Nanosecond, nil
}

// decodePackedTimestamp распаковывает TIMESTAMP_STRUCT: int16 год,
// пять uint16 (месяц, день, часы, минуты, секунды) и uint32 долей
// в наносекундах, little-endian.
func decodePackedTimestamp(b []byte) (time.Time, error) {
	if len(b) != 16 {
		return time.Time{}, fmt.Errorf("unexpected TIMESTAMP payload length %d", len(b))
	}
	year := int16(binary.LittleEndian.Uint16(b[0:2]))
	month := binary.LittleEndian.Uint16(b[2:4])
	day := binary.LittleEndian.Uint16(b[4:6])
	hour := binary.LittleEndian.Uint16(b[6:8])
	minute := binary.LittleEndian.Uint16(b[8:10])
	second := binary.LittleEndian.Uint16(b[10:12])
	frac := binary.LittleEndian.Uint32(b[12:16])
	return time.Date(int(year), time.Month(month), int(day),
		int(hour), int(minute), int(second), int(frac), time.UTC), nil
}
