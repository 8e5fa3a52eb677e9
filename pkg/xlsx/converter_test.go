package xlsx

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/ruslano69/mssqlframe/pkg/core/frame"
	"github.com/ruslano69/mssqlframe/pkg/core/infer"
)

func mustValue(t *testing.T, f *frame.Frame, column string, row int) any {
	t.Helper()
	v, err := f.Value(column, row)
	if err != nil {
		t.Fatalf("Value(%q, %d) failed: %v", column, row, err)
	}
	return v
}

func TestRoundTrip(t *testing.T) {
	f, err := frame.FromRows([]string{"id", "name", "price"}, [][]any{
		{1, "alpha", 12.5},
		{2, "beta", nil},
		{3, nil, 7.25},
	})
	if err != nil {
		t.Fatalf("FromRows failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "orders.xlsx")
	if err := ToXLSX(f, path, "Orders"); err != nil {
		t.Fatalf("ToXLSX failed: %v", err)
	}

	got, err := FromXLSX(path, "Orders")
	if err != nil {
		t.Fatalf("FromXLSX failed: %v", err)
	}

	if got.NumRows() != 3 {
		t.Fatalf("NumRows = %d, want 3", got.NumRows())
	}
	wantCols := []string{"id", "name", "price"}
	gotCols := got.Columns()
	for i, name := range wantCols {
		if gotCols[i] != name {
			t.Errorf("Columns()[%d] = %q, want %q", i, gotCols[i], name)
		}
	}

	// До вывода типов все значения строковые
	if v := mustValue(t, got, "id", 0); v != "1" {
		t.Errorf("id[0] = %v (%T), want \"1\"", v, v)
	}
	if v := mustValue(t, got, "price", 0); v != "12.5" {
		t.Errorf("price[0] = %v (%T), want \"12.5\"", v, v)
	}
	if v := mustValue(t, got, "name", 2); v != nil {
		t.Errorf("name[2] = %v, want nil", v)
	}
	if v := mustValue(t, got, "price", 1); v != nil {
		t.Errorf("price[1] = %v, want nil", v)
	}
}

func TestRoundTripWithInfer(t *testing.T) {
	f, err := frame.FromRows([]string{"id", "name", "price"}, [][]any{
		{1, "alpha", 12.5},
		{2, "beta", 7.25},
	})
	if err != nil {
		t.Fatalf("FromRows failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "typed.xlsx")
	if err := ToXLSX(f, path, ""); err != nil {
		t.Fatalf("ToXLSX failed: %v", err)
	}

	got, err := FromXLSX(path, "")
	if err != nil {
		t.Fatalf("FromXLSX failed: %v", err)
	}
	res, err := infer.Infer(got)
	if err != nil {
		t.Fatalf("Infer failed: %v", err)
	}
	typed := res.Frame

	if !typed.Equal(f) {
		t.Error("Frame after XLSX round trip and type inference differs from original")
	}
	if v := mustValue(t, typed, "id", 0); v != int64(1) {
		t.Errorf("id[0] = %v (%T), want int64(1)", v, v)
	}
	if v := mustValue(t, typed, "price", 1); v != 7.25 {
		t.Errorf("price[1] = %v (%T), want 7.25", v, v)
	}
	// Типизированные значения живут в результате, исходный фрейм
	// остается строковым
	if v := mustValue(t, got, "id", 0); v != "1" {
		t.Errorf("source id[0] = %v (%T), want \"1\"", v, v)
	}
}

func TestRoundTrip_DateTime(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 30, 45, 0, time.UTC)
	f, err := frame.FromRows([]string{"id", "created_at"}, [][]any{
		{1, ts},
	})
	if err != nil {
		t.Fatalf("FromRows failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "dates.xlsx")
	if err := ToXLSX(f, path, ""); err != nil {
		t.Fatalf("ToXLSX failed: %v", err)
	}

	got, err := FromXLSX(path, "")
	if err != nil {
		t.Fatalf("FromXLSX failed: %v", err)
	}

	if v := mustValue(t, got, "created_at", 0); v != "2025-06-01 12:30:45" {
		t.Errorf("created_at[0] = %v, want \"2025-06-01 12:30:45\"", v)
	}

	res, err := infer.Infer(got)
	if err != nil {
		t.Fatalf("Infer failed: %v", err)
	}
	v := mustValue(t, res.Frame, "created_at", 0)
	restored, ok := v.(time.Time)
	if !ok {
		t.Fatalf("created_at[0] after infer = %T, want time.Time", v)
	}
	if !restored.Equal(ts) {
		t.Errorf("created_at[0] = %v, want %v", restored, ts)
	}
}

func TestToXLSX_BoolsAsText(t *testing.T) {
	f, err := frame.FromRows([]string{"id", "active"}, [][]any{
		{1, true},
		{2, false},
	})
	if err != nil {
		t.Fatalf("FromRows failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "bools.xlsx")
	if err := ToXLSX(f, path, ""); err != nil {
		t.Fatalf("ToXLSX failed: %v", err)
	}

	got, err := FromXLSX(path, "")
	if err != nil {
		t.Fatalf("FromXLSX failed: %v", err)
	}
	if v := mustValue(t, got, "active", 0); v != "True" {
		t.Errorf("active[0] = %v, want \"True\"", v)
	}
	if v := mustValue(t, got, "active", 1); v != "False" {
		t.Errorf("active[1] = %v, want \"False\"", v)
	}
}

func TestToXLSX_CustomSheetBecomesFirst(t *testing.T) {
	f, err := frame.FromRows([]string{"id"}, [][]any{{1}})
	if err != nil {
		t.Fatalf("FromRows failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "sheet.xlsx")
	if err := ToXLSX(f, path, "Orders"); err != nil {
		t.Fatalf("ToXLSX failed: %v", err)
	}

	// Пустое имя листа означает первый лист — Sheet1 удален
	got, err := FromXLSX(path, "")
	if err != nil {
		t.Fatalf("FromXLSX failed: %v", err)
	}
	if got.NumRows() != 1 {
		t.Errorf("NumRows = %d, want 1", got.NumRows())
	}
}

func TestFromXLSX_SkipsEmptyRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gaps.xlsx")

	wb := excelize.NewFile()
	wb.SetCellValue("Sheet1", "A1", "id")
	wb.SetCellValue("Sheet1", "B1", "name")
	wb.SetCellValue("Sheet1", "A2", "1")
	wb.SetCellValue("Sheet1", "B2", "alpha")
	// Строка 3 пустая
	wb.SetCellValue("Sheet1", "A4", "2")
	wb.SetCellValue("Sheet1", "B4", "beta")
	if err := wb.SaveAs(path); err != nil {
		t.Fatalf("SaveAs failed: %v", err)
	}
	wb.Close()

	got, err := FromXLSX(path, "Sheet1")
	if err != nil {
		t.Fatalf("FromXLSX failed: %v", err)
	}
	if got.NumRows() != 2 {
		t.Fatalf("NumRows = %d, want 2 (empty row skipped)", got.NumRows())
	}
	if v := mustValue(t, got, "name", 1); v != "beta" {
		t.Errorf("name[1] = %v, want \"beta\"", v)
	}
}

func TestFromXLSX_RaggedRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ragged.xlsx")

	wb := excelize.NewFile()
	wb.SetCellValue("Sheet1", "A1", "id")
	wb.SetCellValue("Sheet1", "B1", "name")
	wb.SetCellValue("Sheet1", "A2", "1")
	// B2 отсутствует
	if err := wb.SaveAs(path); err != nil {
		t.Fatalf("SaveAs failed: %v", err)
	}
	wb.Close()

	got, err := FromXLSX(path, "")
	if err != nil {
		t.Fatalf("FromXLSX failed: %v", err)
	}
	if v := mustValue(t, got, "name", 0); v != nil {
		t.Errorf("name[0] = %v, want nil for missing cell", v)
	}
}

func TestFromXLSX_Errors(t *testing.T) {
	tmpDir := t.TempDir()

	emptyPath := filepath.Join(tmpDir, "empty.xlsx")
	wb := excelize.NewFile()
	if err := wb.SaveAs(emptyPath); err != nil {
		t.Fatalf("SaveAs failed: %v", err)
	}
	wb.Close()

	tests := []struct {
		name  string
		path  string
		sheet string
	}{
		{name: "missing file", path: filepath.Join(tmpDir, "nope.xlsx"), sheet: ""},
		{name: "empty workbook", path: emptyPath, sheet: ""},
		{name: "missing sheet", path: emptyPath, sheet: "Orders"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := FromXLSX(tt.path, tt.sheet); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}
