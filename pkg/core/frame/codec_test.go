package frame

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestRenderValue(t *testing.T) {
	dec, _ := decimal.NewFromString("123.4500")
	tests := []struct {
		value    any
		expected string
	}{
		{nil, ""},
		{true, "True"},
		{false, "False"},
		{int64(-42), "-42"},
		{float64(1.5), "1.5"},
		{dec, "123.45"},
		{"hello", "hello"},
		{time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), "2024-01-02 00:00:00"},
		{time.Date(2024, 1, 2, 3, 4, 5, 123456700, time.UTC), "2024-01-02 03:04:05.1234567"},
		{13*time.Hour + 30*time.Minute, "13:30:00"},
		{90*time.Minute + 500*time.Millisecond, "01:30:00.5"},
		{[]byte{0xDE, 0xAD}, "0xDEAD"},
	}

	for _, tt := range tests {
		got := RenderValue(tt.value)
		if got != tt.expected {
			t.Errorf("RenderValue(%v) = %q, want %q", tt.value, got, tt.expected)
		}
	}
}

func TestParseValueRoundTrip(t *testing.T) {
	dec, _ := decimal.NewFromString("-9.99")
	values := []any{
		true,
		int64(255),
		float64(2.75),
		dec,
		"text",
		time.Date(2023, 12, 31, 23, 59, 59, 999999900, time.UTC),
		10*time.Hour + 20*time.Minute + 30*time.Second,
		[]byte{0x01, 0xFF},
	}

	for _, v := range values {
		s := RenderValue(v)
		back, err := ParseValue(s, KindOf(v))
		if err != nil {
			t.Fatalf("ParseValue(%q) failed: %v", s, err)
		}
		if !valueEqual(v, back) {
			t.Errorf("Round trip %v -> %q -> %v", v, s, back)
		}
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Duration
		ok       bool
	}{
		{"00:00:00", 0, true},
		{"23:59:59.9999999", 23*time.Hour + 59*time.Minute + 59*time.Second + 9999999*100*time.Nanosecond, true},
		{"1:02:03", time.Hour + 2*time.Minute + 3*time.Second, true},
		{"25:00:00", 25 * time.Hour, true}, // выход за сутки ловится при записи
		{"12:61:00", 0, false},
		{"12:00", 0, false},
		{"abc", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseDuration(tt.input)
		if ok != tt.ok {
			t.Errorf("ParseDuration(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			continue
		}
		if ok && got != tt.expected {
			t.Errorf("ParseDuration(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestParseDateTime(t *testing.T) {
	tests := []struct {
		input string
		ok    bool
	}{
		{"2024-01-02", true},
		{"2024-01-02 15:04:05", true},
		{"2024-01-02T15:04:05.123", true},
		{"02.01.2024", true},
		{"not a date", false},
		{"", false},
	}

	for _, tt := range tests {
		_, ok := ParseDateTime(tt.input)
		if ok != tt.ok {
			t.Errorf("ParseDateTime(%q) ok = %v, want %v", tt.input, ok, tt.ok)
		}
	}
}

func TestBatchRoundTrip(t *testing.T) {
	f, err := FromRows([]string{"ID", "Name", "TS"}, [][]any{
		{1, "alpha", time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
		{2, nil, nil},
	})
	if err != nil {
		t.Fatalf("FromRows failed: %v", err)
	}
	f.SetIndex("ID")

	data, err := NewBatch("dbo.Items", f).EncodeJSON()
	if err != nil {
		t.Fatalf("EncodeJSON failed: %v", err)
	}

	b, err := DecodeJSON(data)
	if err != nil {
		t.Fatalf("DecodeJSON failed: %v", err)
	}
	if b.Table != "dbo.Items" {
		t.Errorf("Expected table dbo.Items, got %s", b.Table)
	}
	if b.Checksum != f.Checksum() {
		t.Error("Checksum mismatch after round trip")
	}

	back, err := b.Frame()
	if err != nil {
		t.Fatalf("Batch.Frame failed: %v", err)
	}
	if !f.Equal(back) {
		t.Error("Frame changed after JSON round trip")
	}
}

func TestSplitAndMergeBatches(t *testing.T) {
	rows := make([][]any, 7)
	for i := range rows {
		rows[i] = []any{i + 1, "row"}
	}
	f, _ := FromRows([]string{"ID", "V"}, rows)

	batches := SplitBatches("t", f, 3)
	if len(batches) != 3 {
		t.Fatalf("Expected 3 batches, got %d", len(batches))
	}
	if batches[0].TotalParts != 3 || batches[2].Part != 3 {
		t.Error("Part numbering is wrong")
	}
	if len(batches[2].Rows) != 1 {
		t.Errorf("Expected 1 row in last batch, got %d", len(batches[2].Rows))
	}

	merged, err := MergeBatches(batches)
	if err != nil {
		t.Fatalf("MergeBatches failed: %v", err)
	}
	if !f.Equal(merged) {
		t.Error("Frame changed after split/merge")
	}
}

func TestSplitBatchesEmptyFrame(t *testing.T) {
	f, _ := FromRows([]string{"A"}, nil)
	batches := SplitBatches("t", f, 100)
	if len(batches) != 1 {
		t.Fatalf("Expected 1 batch for empty frame, got %d", len(batches))
	}
	if len(batches[0].Columns) != 1 {
		t.Error("Empty batch must still carry the schema")
	}
}

func TestCSVRoundTrip(t *testing.T) {
	f, _ := FromRows([]string{"ID", "Name"}, [][]any{
		{1, "with,comma"},
		{2, nil},
		{3, "with\nnewline"},
	})

	var buf bytes.Buffer
	if err := f.WriteCSV(&buf); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	back, err := ReadCSV(&buf)
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	if back.NumRows() != 3 {
		t.Fatalf("Expected 3 rows, got %d", back.NumRows())
	}

	// CSV хранит только строки: числа возвращаются текстом
	v, _ := back.Value("ID", 0)
	if v != "1" {
		t.Errorf("Expected \"1\", got %v", v)
	}
	v, _ = back.Value("Name", 1)
	if v != nil {
		t.Errorf("Expected NULL for empty cell, got %v", v)
	}
	v, _ = back.Value("Name", 2)
	if v != "with\nnewline" {
		t.Errorf("Newline not preserved: %v", v)
	}
}

func TestReadCSVEmptyInput(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	if err == nil {
		t.Error("Expected error for empty input")
	}
}

func TestChecksum(t *testing.T) {
	f1, _ := FromRows([]string{"A", "B"}, [][]any{{1, "x"}, {2, "y"}})
	f2, _ := FromRows([]string{"A", "B"}, [][]any{{1, "x"}, {2, "y"}})
	if f1.Checksum() != f2.Checksum() {
		t.Error("Equal frames must have equal checksums")
	}

	f3, _ := FromRows([]string{"A", "B"}, [][]any{{1, "x"}, {2, "z"}})
	if f1.Checksum() == f3.Checksum() {
		t.Error("Different frames must have different checksums")
	}

	// NULL и пустая строка различимы
	f4, _ := FromRows([]string{"A"}, [][]any{{nil}})
	f5, _ := FromRows([]string{"A"}, [][]any{{""}})
	if f4.Checksum() == f5.Checksum() {
		t.Error("NULL and empty string must hash differently")
	}
}

func TestRowHash(t *testing.T) {
	f, _ := FromRows([]string{"A", "B"}, [][]any{
		{1, "x"},
		{1, "x"},
		{2, "y"},
	})
	h0 := f.RowHash(0)
	h1 := f.RowHash(1)
	h2 := f.RowHash(2)
	if h0 != h1 {
		t.Error("Identical rows must hash equally")
	}
	if h0 == h2 {
		t.Error("Different rows must hash differently")
	}
}
