package frame

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Текстовое представление значений фрейма. Используется JSON/CSV
// кодеками, выгрузкой в XLSX и выводом CLI. Формат согласован с
// разбором в пакете infer: отрендеренный фрейм после повторного
// чтения и вывода типов возвращается к исходным значениям.

const (
	// Формат даты-времени с точностью до 100 нс (7 знаков дроби).
	dateTimeLayout = "2006-01-02 15:04:05.9999999"
	dateOnlyLayout = "2006-01-02"
)

var durationPattern = regexp.MustCompile(`^(\d{1,3}):([0-5]\d):([0-5]\d)(\.\d{1,9})?$`)

// RenderValue возвращает текстовую форму нормализованного значения.
// NULL представляется пустой строкой; различие между NULL и пустой
// строкой сохраняют только типизированные кодеки (JSON).
func RenderValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case bool:
		if x {
			return "True"
		}
		return "False"
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case decimal.Decimal:
		return x.String()
	case string:
		return x
	case time.Time:
		return FormatDateTime(x)
	case time.Duration:
		return FormatDuration(x)
	case []byte:
		return "0x" + strings.ToUpper(hex.EncodeToString(x))
	}
	return fmt.Sprintf("%v", v)
}

// ParseValue разбирает текстовую форму значения заданного типа.
// Пустая строка трактуется как NULL для всех типов, кроме строкового.
func ParseValue(s string, k Kind) (any, error) {
	if s == "" && k != KindString {
		return nil, nil
	}
	switch k {
	case KindNull:
		return nil, nil
	case KindBool:
		switch s {
		case "True", "true", "1":
			return true, nil
		case "False", "false", "0":
			return false, nil
		}
		return nil, fmt.Errorf("invalid bool value %q", s)
	case KindInt:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid int value %q", s)
		}
		return n, nil
	case KindFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float value %q", s)
		}
		return f, nil
	case KindDecimal:
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("invalid decimal value %q", s)
		}
		return d, nil
	case KindString:
		return s, nil
	case KindTime:
		t, ok := ParseDateTime(s)
		if !ok {
			return nil, fmt.Errorf("invalid datetime value %q", s)
		}
		return t, nil
	case KindDuration:
		d, ok := ParseDuration(s)
		if !ok {
			return nil, fmt.Errorf("invalid duration value %q", s)
		}
		return d, nil
	case KindBytes:
		h := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
		b, err := hex.DecodeString(h)
		if err != nil {
			return nil, fmt.Errorf("invalid binary value %q", s)
		}
		return b, nil
	}
	return nil, fmt.Errorf("unknown value kind %d", k)
}

// FormatDateTime печатает момент времени в формате
// "YYYY-MM-DD HH:MM:SS[.fffffff]" без конечных нулей дроби.
func FormatDateTime(t time.Time) string {
	return t.Format(dateTimeLayout)
}

// FormatDuration печатает длительность как "HH:MM:SS[.fffffff]".
func FormatDuration(d time.Duration) string {
	neg := ""
	if d < 0 {
		neg = "-"
		d = -d
	}
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	d -= s * time.Second
	frac := d.Nanoseconds() / 100 // единицы по 100 нс
	if frac == 0 {
		return fmt.Sprintf("%s%02d:%02d:%02d", neg, h, m, s)
	}
	return fmt.Sprintf("%s%02d:%02d:%02d.%s", neg, h, m, s,
		strings.TrimRight(fmt.Sprintf("%07d", frac), "0"))
}

// ParseDuration разбирает длительность в форме "HH:MM:SS[.f]".
// Часы могут превышать 23: контроль диапазона TIME выполняется
// на этапе подготовки значений к записи, не при разборе.
func ParseDuration(s string) (time.Duration, bool) {
	m := durationPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, false
	}
	h, _ := strconv.Atoi(m[1])
	mi, _ := strconv.Atoi(m[2])
	se, _ := strconv.Atoi(m[3])
	d := time.Duration(h)*time.Hour + time.Duration(mi)*time.Minute + time.Duration(se)*time.Second
	if m[4] != "" {
		fracStr := m[4][1:] // без точки
		for len(fracStr) < 9 {
			fracStr += "0"
		}
		ns, _ := strconv.Atoi(fracStr[:9])
		d += time.Duration(ns) * time.Nanosecond
	}
	return d, true
}

var dateTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	dateOnlyLayout,
	"02.01.2006 15:04:05",
	"02.01.2006",
}

// ParseDateTime разбирает дату или дату-время в одном из
// поддерживаемых форматов.
func ParseDateTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
