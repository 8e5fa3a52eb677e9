package infer

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ruslano69/mssqlframe/pkg/core/frame"
	"github.com/ruslano69/mssqlframe/pkg/core/schema"
)

func mustFrame(t *testing.T, names []string, rows [][]any) *frame.Frame {
	t.Helper()
	f, err := frame.FromRows(names, rows)
	if err != nil {
		t.Fatalf("FromRows failed: %v", err)
	}
	return f
}

func inferOne(t *testing.T, values ...any) (*Result, schema.Column) {
	t.Helper()
	rows := make([][]any, len(values))
	for i, v := range values {
		rows[i] = []any{v}
	}
	res, err := Infer(mustFrame(t, []string{"C"}, rows))
	if err != nil {
		t.Fatalf("Infer failed: %v", err)
	}
	col, ok := res.Column("C")
	if !ok {
		t.Fatal("Column C missing from result")
	}
	return res, *col
}

func TestNumericDowncast(t *testing.T) {
	tests := []struct {
		name     string
		values   []any
		expected schema.SQLType
	}{
		{"uint8 range", []any{"0", "128", "255"}, schema.TypeTinyInt},
		{"int16 range", []any{"-5", "300"}, schema.TypeSmallInt},
		{"int32 range", []any{"1", "70000"}, schema.TypeInt},
		{"int64 range", []any{"1", "3000000000"}, schema.TypeBigInt},
		{"negative int8 range", []any{"-5", "10"}, schema.TypeSmallInt},
		{"fractional", []any{"1.5", "2"}, schema.TypeFloat},
		{"scientific", []any{"1e3", "2.5e-1"}, schema.TypeFloat},
		{"integral floats", []any{"1.0", "2.0", "3.0", "4.0"}, schema.TypeTinyInt},
	}

	for _, tt := range tests {
		_, col := inferOne(t, tt.values...)
		if col.Type != tt.expected {
			t.Errorf("%s: inferred %s, want %s", tt.name, col.Type, tt.expected)
		}
	}
}

func TestBooleanNeedsMoreThanTwoValues(t *testing.T) {
	// Два значения — мало для логического вывода
	_, col := inferOne(t, "True", "False")
	if col.Type != schema.TypeTinyInt {
		t.Errorf("Two 0/1 values inferred %s, want tinyint", col.Type)
	}

	// Три и больше — bit, значения становятся логическими
	res, col := inferOne(t, "True", "False", "True")
	if col.Type != schema.TypeBit {
		t.Errorf("Three 0/1 values inferred %s, want bit", col.Type)
	}
	v, _ := res.Frame.Value("C", 0)
	if b, ok := v.(bool); !ok || !b {
		t.Errorf("Expected true, got %T(%v)", v, v)
	}

	// Нули и единицы с другими числами — не bit
	_, col = inferOne(t, "0", "1", "2")
	if col.Type != schema.TypeTinyInt {
		t.Errorf("0..2 inferred %s, want tinyint", col.Type)
	}
}

func TestDurationBeforeDatetime(t *testing.T) {
	_, col := inferOne(t, "14:30:00", "23:59:59.9999999")
	if col.Type != schema.TypeTime {
		t.Errorf("Time-of-day inferred %s, want time", col.Type)
	}

	res, col := inferOne(t, "2024-01-02 14:30:00")
	if col.Type != schema.TypeDateTime2 {
		t.Errorf("Timestamp inferred %s, want datetime2", col.Type)
	}
	v, _ := res.Frame.Value("C", 0)
	if _, ok := v.(time.Time); !ok {
		t.Errorf("Expected time.Time, got %T", v)
	}
}

func TestDateVersusDatetime2(t *testing.T) {
	// Все значения в полночь — date
	_, col := inferOne(t, "2024-01-02", "2024-03-04")
	if col.Type != schema.TypeDate {
		t.Errorf("Midnight-only inferred %s, want date", col.Type)
	}

	// Хотя бы одно значение с временем — datetime2
	_, col = inferOne(t, "2024-01-02", "2024-03-04 10:00:00")
	if col.Type != schema.TypeDateTime2 {
		t.Errorf("Mixed inferred %s, want datetime2", col.Type)
	}
}

func TestVarcharVersusNvarchar(t *testing.T) {
	_, col := inferOne(t, "ascii only", "plain")
	if col.Type != schema.TypeVarChar {
		t.Errorf("ASCII inferred %s, want varchar", col.Type)
	}
	if col.Size != 10 {
		t.Errorf("Expected size 10, got %d", col.Size)
	}

	_, col = inferOne(t, "ascii", "кириллица")
	if col.Type != schema.TypeNVarChar {
		t.Errorf("Non-ASCII inferred %s, want nvarchar", col.Type)
	}
	if col.Size != 9 {
		t.Errorf("Expected size 9 runes, got %d", col.Size)
	}
}

func TestAllNullColumn(t *testing.T) {
	res, col := inferOne(t, nil, nil)
	if col.Type != schema.TypeNVarChar {
		t.Errorf("All-null inferred %s, want nvarchar", col.Type)
	}
	if !col.Nullable {
		t.Error("All-null column must be nullable")
	}
	if res.PK != "" {
		t.Errorf("All-null frame must have no PK candidate, got %s", res.PK)
	}
}

func TestNullabilityFromNA(t *testing.T) {
	_, col := inferOne(t, "1", nil, "2")
	if !col.Nullable {
		t.Error("Column with NA must be nullable")
	}

	_, col = inferOne(t, "1", "2")
	if col.Nullable {
		t.Error("Column without NA must be not-null")
	}
}

func TestPKCandidateNumericPreferred(t *testing.T) {
	f := mustFrame(t, []string{"Big", "Small", "Name"}, [][]any{
		{"1000000", "1", "a"},
		{"2000000", "2", "b"},
		{"3000000", "3", "c"},
	})
	res, err := Infer(f)
	if err != nil {
		t.Fatalf("Infer failed: %v", err)
	}
	// Числовой столбец с наименьшим максимумом
	if res.PK != "Small" {
		t.Errorf("Expected PK Small, got %s", res.PK)
	}
}

func TestPKCandidateStringFallback(t *testing.T) {
	f := mustFrame(t, []string{"Code", "Title"}, [][]any{
		{"ab", "first row"},
		{"cd", "second row"},
	})
	res, err := Infer(f)
	if err != nil {
		t.Fatalf("Infer failed: %v", err)
	}
	if res.PK != "Code" {
		t.Errorf("Expected PK Code, got %s", res.PK)
	}
}

func TestPKCandidateExclusions(t *testing.T) {
	// bit и float не участвуют; дубликаты и NULL исключают столбец
	f := mustFrame(t, []string{"Flag", "Rate", "Dup", "WithNull"}, [][]any{
		{"1", "1.5", "5", "1"},
		{"0", "2.5", "5", nil},
		{"1", "3.5", "6", "3"},
	})
	res, err := Infer(f)
	if err != nil {
		t.Fatalf("Infer failed: %v", err)
	}
	if res.PK != "" {
		t.Errorf("Expected no PK candidate, got %s", res.PK)
	}
}

func TestUniqueTinyintBecomesPK(t *testing.T) {
	rows := make([][]any, 0, 256)
	for i := 0; i <= 255; i++ {
		rows = append(rows, []any{int64(i)})
	}
	f := mustFrame(t, []string{"ID"}, rows)
	res, err := Infer(f)
	if err != nil {
		t.Fatalf("Infer failed: %v", err)
	}
	col, _ := res.Column("ID")
	if col.Type != schema.TypeTinyInt {
		t.Errorf("0..255 inferred %s, want tinyint", col.Type)
	}
	if res.PK != "ID" {
		t.Errorf("Expected PK ID, got %q", res.PK)
	}
}

func TestNativeKinds(t *testing.T) {
	dec, _ := decimal.NewFromString("1.23")
	tests := []struct {
		name     string
		values   []any
		expected schema.SQLType
	}{
		{"bool", []any{true, false}, schema.TypeBit},
		{"decimal", []any{dec}, schema.TypeNumeric},
		{"duration", []any{3 * time.Hour}, schema.TypeTime},
		{"midnight times", []any{time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)}, schema.TypeDate},
		{"integral floats downcast", []any{1.0, 2.0}, schema.TypeTinyInt},
		{"int widths", []any{int64(70000)}, schema.TypeInt},
	}

	for _, tt := range tests {
		_, col := inferOne(t, tt.values...)
		if col.Type != tt.expected {
			t.Errorf("%s: inferred %s, want %s", tt.name, col.Type, tt.expected)
		}
	}
}

// Голый numeric сервер трактует как numeric(18,0) и молча округляет
// дробную часть, поэтому точность и масштаб выводятся из значений.
func TestDecimalPrecisionScale(t *testing.T) {
	d := func(s string) decimal.Decimal { return decimal.RequireFromString(s) }

	tests := []struct {
		name      string
		values    []any
		precision int
		scale     int
		spec      string
	}{
		{"fractional", []any{d("1.50"), d("12.345")}, 5, 3, "numeric(5,3)"},
		{"integral", []any{d("42"), d("7")}, 2, 0, "numeric(2,0)"},
		{"negative", []any{d("-123.45")}, 5, 2, "numeric(5,2)"},
		{"with nulls", []any{nil, d("0.5")}, 2, 1, "numeric(2,1)"},
	}

	for _, tt := range tests {
		_, col := inferOne(t, tt.values...)
		if col.Type != schema.TypeNumeric {
			t.Errorf("%s: inferred %s, want numeric", tt.name, col.Type)
			continue
		}
		if col.Precision != tt.precision || col.Scale != tt.scale {
			t.Errorf("%s: precision/scale = %d/%d, want %d/%d",
				tt.name, col.Precision, col.Scale, tt.precision, tt.scale)
		}
		if got := col.TypeSpec(); got != tt.spec {
			t.Errorf("%s: TypeSpec() = %q, want %q", tt.name, got, tt.spec)
		}
	}
}

func TestBytesColumnUnsupported(t *testing.T) {
	f := mustFrame(t, []string{"Blob"}, [][]any{{[]byte{1, 2}}})
	_, err := Infer(f)
	if err == nil {
		t.Fatal("Expected error for bytes column")
	}
	var ure *schema.UndefinedRuleError
	if !errors.As(err, &ure) {
		t.Fatalf("Expected UndefinedRuleError, got %T", err)
	}
	if len(ure.Columns) != 1 || ure.Columns[0] != "Blob" {
		t.Errorf("Expected offending column Blob, got %v", ure.Columns)
	}
}

func TestInferDoesNotMutateInput(t *testing.T) {
	f := mustFrame(t, []string{"N"}, [][]any{{"1"}, {"2"}})
	_, err := Infer(f)
	if err != nil {
		t.Fatalf("Infer failed: %v", err)
	}
	v, _ := f.Value("N", 0)
	if v != "1" {
		t.Errorf("Input frame mutated: %v", v)
	}
}
