package schema

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ruslano69/mssqlframe/pkg/core/frame"
)

// SQLType представляет имя типа данных SQL Server
type SQLType string

// Поддерживаемые типы SQL Server
const (
	TypeBit            SQLType = "bit"
	TypeTinyInt        SQLType = "tinyint"
	TypeSmallInt       SQLType = "smallint"
	TypeInt            SQLType = "int"
	TypeBigInt         SQLType = "bigint"
	TypeFloat          SQLType = "float"
	TypeNumeric        SQLType = "numeric"
	TypeDecimal        SQLType = "decimal"
	TypeTime           SQLType = "time"
	TypeDate           SQLType = "date"
	TypeDateTime       SQLType = "datetime"
	TypeDateTime2      SQLType = "datetime2"
	TypeDateTimeOffset SQLType = "datetimeoffset"
	TypeChar           SQLType = "char"
	TypeVarChar        SQLType = "varchar"
	TypeNChar          SQLType = "nchar"
	TypeNVarChar       SQLType = "nvarchar"
)

// Category — категория типа данных SQL Server
type Category string

const (
	CategoryBoolean     Category = "boolean"
	CategoryWholeNumber Category = "exact whole numeric"
	CategoryDecimal     Category = "exact decimal numeric"
	CategoryApproximate Category = "approximate numeric"
	CategoryDateTime    Category = "date time"
	CategoryCharacter   Category = "character string"
)

// Rule описывает правило преобразования между типом SQL Server,
// типом значений фрейма и кодом ODBC. Одно правило на тип; таблица
// правил неизменяема.
type Rule struct {
	SQLType  SQLType
	Category Category
	Kind     frame.Kind // канонический тип значения во фрейме
	Host     string     // представление при выводе типов (uint8, int16, ...)
	ODBC     int        // код типа по ODBC

	// Диапазон представимых значений; поля действительны только
	// для категории правила.
	MinInt  int64
	MaxInt  int64
	MinTime time.Time
	MaxTime time.Time
	MaxDur  time.Duration

	MaxSize int  // предельная длина символьного типа в символах
	Unicode bool // nchar/nvarchar
}

var rules = []Rule{
	{SQLType: TypeBit, Category: CategoryBoolean, Kind: frame.KindBool, Host: "bool", ODBC: -7},
	{SQLType: TypeTinyInt, Category: CategoryWholeNumber, Kind: frame.KindInt, Host: "uint8", ODBC: -6, MinInt: 0, MaxInt: 255},
	{SQLType: TypeSmallInt, Category: CategoryWholeNumber, Kind: frame.KindInt, Host: "int16", ODBC: 5, MinInt: math.MinInt16, MaxInt: math.MaxInt16},
	{SQLType: TypeInt, Category: CategoryWholeNumber, Kind: frame.KindInt, Host: "int32", ODBC: 4, MinInt: math.MinInt32, MaxInt: math.MaxInt32},
	{SQLType: TypeBigInt, Category: CategoryWholeNumber, Kind: frame.KindInt, Host: "int64", ODBC: -5, MinInt: math.MinInt64, MaxInt: math.MaxInt64},
	{SQLType: TypeFloat, Category: CategoryApproximate, Kind: frame.KindFloat, Host: "float64", ODBC: 6},
	{SQLType: TypeNumeric, Category: CategoryDecimal, Kind: frame.KindDecimal, Host: "decimal", ODBC: 2},
	{SQLType: TypeDecimal, Category: CategoryDecimal, Kind: frame.KindDecimal, Host: "decimal", ODBC: 3},
	{SQLType: TypeTime, Category: CategoryDateTime, Kind: frame.KindDuration, Host: "duration", ODBC: -154,
		MaxDur: 24*time.Hour - 100*time.Nanosecond},
	{SQLType: TypeDate, Category: CategoryDateTime, Kind: frame.KindTime, Host: "time", ODBC: 91,
		MinTime: time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC),
		MaxTime: time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)},
	{SQLType: TypeDateTime, Category: CategoryDateTime, Kind: frame.KindTime, Host: "time", ODBC: 93,
		MinTime: time.Date(1753, 1, 1, 0, 0, 0, 0, time.UTC),
		MaxTime: time.Date(9999, 12, 31, 23, 59, 59, 997000000, time.UTC)},
	{SQLType: TypeDateTime2, Category: CategoryDateTime, Kind: frame.KindTime, Host: "time", ODBC: 93,
		MinTime: time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC),
		MaxTime: time.Date(9999, 12, 31, 23, 59, 59, 999999900, time.UTC)},
	{SQLType: TypeDateTimeOffset, Category: CategoryDateTime, Kind: frame.KindTime, Host: "time", ODBC: -155,
		MinTime: time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC),
		MaxTime: time.Date(9999, 12, 31, 23, 59, 59, 999999900, time.UTC)},
	{SQLType: TypeChar, Category: CategoryCharacter, Kind: frame.KindString, Host: "string", ODBC: 1, MaxSize: 8000},
	{SQLType: TypeVarChar, Category: CategoryCharacter, Kind: frame.KindString, Host: "string", ODBC: 12, MaxSize: 8000},
	{SQLType: TypeNChar, Category: CategoryCharacter, Kind: frame.KindString, Host: "string", ODBC: -8, MaxSize: 4000, Unicode: true},
	{SQLType: TypeNVarChar, Category: CategoryCharacter, Kind: frame.KindString, Host: "string", ODBC: -9, MaxSize: 4000, Unicode: true},
}

var rulesByType = func() map[SQLType]Rule {
	m := make(map[SQLType]Rule, len(rules))
	for _, r := range rules {
		m[r.SQLType] = r
	}
	return m
}()

// Rules возвращает копию таблицы правил.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

// RuleFor возвращает правило для типа SQL Server. Имя типа может
// содержать спецификацию размера ("varchar(10)") и модификаторы
// ("int identity") — они отбрасываются.
func RuleFor(sqlType string) (Rule, bool) {
	spec := ParseTypeSpec(sqlType)
	r, ok := rulesByType[spec.Type]
	return r, ok
}

// RuleForKind возвращает правило по умолчанию для типа значения
// фрейма. Для целых это bigint: уточнение ширины выполняет вывод
// типов. Для типов без правила (байтовые столбцы) возвращает false.
func RuleForKind(k frame.Kind) (Rule, bool) {
	var t SQLType
	switch k {
	case frame.KindBool:
		t = TypeBit
	case frame.KindInt:
		t = TypeBigInt
	case frame.KindFloat:
		t = TypeFloat
	case frame.KindDecimal:
		t = TypeNumeric
	case frame.KindString:
		t = TypeNVarChar
	case frame.KindTime:
		t = TypeDateTime2
	case frame.KindDuration:
		t = TypeTime
	default:
		return Rule{}, false
	}
	r, ok := rulesByType[t]
	return r, ok
}

// IsKnownType сообщает, есть ли правило для типа SQL Server.
func IsKnownType(sqlType string) bool {
	_, ok := RuleFor(sqlType)
	return ok
}

// Fits проверяет, представимо ли нормализованное значение фрейма
// типом правила. Длина символьных значений проверяется на уровне
// столбца, здесь символьные типы принимают всё.
func (r Rule) Fits(v any) bool {
	if v == nil {
		return true
	}
	switch r.Category {
	case CategoryBoolean:
		_, ok := v.(bool)
		return ok
	case CategoryWholeNumber:
		switch x := v.(type) {
		case int64:
			return x >= r.MinInt && x <= r.MaxInt
		case bool:
			return true
		}
		return false
	case CategoryDecimal:
		return frame.KindOf(v) == frame.KindDecimal || frame.KindOf(v) == frame.KindInt
	case CategoryApproximate:
		k := frame.KindOf(v)
		return k == frame.KindFloat || k == frame.KindInt
	case CategoryDateTime:
		switch x := v.(type) {
		case time.Time:
			return !x.Before(r.MinTime) && !x.After(r.MaxTime)
		case time.Duration:
			return r.SQLType == TypeTime && x >= 0 && x <= r.MaxDur
		}
		return false
	case CategoryCharacter:
		_, ok := v.(string)
		return ok
	}
	return false
}

// TypeSpec — разобранная спецификация типа: имя, размер для
// символьных типов (-1 = MAX), точность и масштаб для десятичных,
// признак identity.
type TypeSpec struct {
	Type      SQLType
	Size      int
	Precision int
	Scale     int
	Identity  bool
}

// ParseTypeSpec разбирает текстовую спецификацию типа вида
// "varchar(10)", "numeric(10,2)", "nvarchar(max)", "int identity".
func ParseTypeSpec(s string) TypeSpec {
	spec := TypeSpec{}
	s = strings.ToLower(strings.TrimSpace(s))
	if strings.HasSuffix(s, " identity") {
		spec.Identity = true
		s = strings.TrimSuffix(s, " identity")
		s = strings.TrimSpace(s)
	}
	open := strings.IndexByte(s, '(')
	if open < 0 {
		spec.Type = SQLType(s)
		return spec
	}
	spec.Type = SQLType(strings.TrimSpace(s[:open]))
	args := strings.TrimSuffix(s[open+1:], ")")
	parts := strings.Split(args, ",")
	switch len(parts) {
	case 1:
		arg := strings.TrimSpace(parts[0])
		if arg == "max" {
			spec.Size = -1
		} else if n, err := strconv.Atoi(arg); err == nil {
			spec.Size = n
		}
	case 2:
		if p, err := strconv.Atoi(strings.TrimSpace(parts[0])); err == nil {
			spec.Precision = p
		}
		if sc, err := strconv.Atoi(strings.TrimSpace(parts[1])); err == nil {
			spec.Scale = sc
		}
	}
	return spec
}

// String печатает спецификацию в форме, пригодной для DDL. Размер
// печатается только для символьных типов, точность и масштаб только
// для десятичных: каталог заполняет precision и для int, и для
// datetime2, но в DDL эти типы аргументов не принимают. Для типов без
// правила размер печатается как есть.
func (s TypeSpec) String() string {
	out := string(s.Type)
	r, known := RuleFor(string(s.Type))
	switch {
	case known && r.Category == CategoryCharacter && s.Size == -1:
		out += "(MAX)"
	case known && r.Category == CategoryCharacter && s.Size > 0:
		out += "(" + strconv.Itoa(s.Size) + ")"
	case known && r.Category == CategoryDecimal && s.Precision > 0:
		out += "(" + strconv.Itoa(s.Precision) + "," + strconv.Itoa(s.Scale) + ")"
	case !known && s.Size == -1:
		out += "(MAX)"
	case !known && s.Size > 0:
		out += "(" + strconv.Itoa(s.Size) + ")"
	}
	if s.Identity {
		out += " identity"
	}
	return out
}
