package xlsx

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/ruslano69/mssqlframe/pkg/core/frame"
)

// XLSX-представление фрейма повторяет CSV: первая строка листа — имена
// столбцов, NULL — пустая ячейка. Числа и даты-время записываются
// нативными типами Excel, остальные значения — текстом через
// RenderValue. Прочитанный лист состоит из строк, типизацию выполняет
// пакет infer.

// Формат согласован с ParseDateTime: файл, прочитанный обратно,
// возвращает исходные значения с точностью до секунды.
var dateTimeNumFmt = "yyyy-mm-dd hh:mm:ss"

// ToXLSX выгружает фрейм в файл Excel.
//
// Пример:
//
//	err := xlsx.ToXLSX(f, "orders.xlsx", "Orders")
func ToXLSX(f *frame.Frame, filePath string, sheetName string) error {
	wb := excelize.NewFile()
	defer wb.Close()

	if sheetName == "" {
		sheetName = "Sheet1"
	}
	if sheetName != "Sheet1" {
		index, err := wb.NewSheet(sheetName)
		if err != nil {
			return fmt.Errorf("failed to create sheet: %w", err)
		}
		wb.SetActiveSheet(index)
		wb.DeleteSheet("Sheet1")
	}

	headerStyle, _ := wb.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	dateTimeStyle, _ := wb.NewStyle(&excelize.Style{CustomNumFmt: &dateTimeNumFmt})

	cols := f.Columns()
	for c, name := range cols {
		cell, err := excelize.CoordinatesToCellName(c+1, 1)
		if err != nil {
			return fmt.Errorf("failed to build cell name: %w", err)
		}
		wb.SetCellValue(sheetName, cell, name)
		wb.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for r := 0; r < f.NumRows(); r++ {
		for c, name := range cols {
			v, err := f.Value(name, r)
			if err != nil {
				return err
			}
			if v == nil {
				continue // NULL — пустая ячейка
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return fmt.Errorf("failed to build cell name: %w", err)
			}
			switch x := v.(type) {
			case int64, float64, string:
				wb.SetCellValue(sheetName, cell, x)
			case time.Time:
				wb.SetCellValue(sheetName, cell, x)
				wb.SetCellStyle(sheetName, cell, cell, dateTimeStyle)
			case decimal.Decimal:
				// Строкой: число Excel с плавающей точкой потеряло бы точность
				wb.SetCellValue(sheetName, cell, x.String())
			default:
				// bool, duration, bytes
				wb.SetCellValue(sheetName, cell, frame.RenderValue(v))
			}
		}
	}

	for c := range cols {
		if colName, err := excelize.ColumnNumberToName(c + 1); err == nil {
			wb.SetColWidth(sheetName, colName, colName, 15)
		}
	}

	return wb.SaveAs(filePath)
}

// FromXLSX читает лист Excel во фрейм. Пустое имя листа означает
// первый лист книги. Полностью пустые строки пропускаются.
//
// Пример:
//
//	f, err := xlsx.FromXLSX("orders.xlsx", "Orders")
func FromXLSX(filePath string, sheetName string) (*frame.Frame, error) {
	wb, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer wb.Close()

	if sheetName == "" {
		sheetName = wb.GetSheetName(0)
	}

	rows, err := wb.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheetName, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q has no header row", sheetName)
	}

	// Хвост пустых ячеек заголовка отбрасывается: Excel часто хранит
	// форматирование за последним содержательным столбцом
	header := rows[0]
	for len(header) > 0 && strings.TrimSpace(header[len(header)-1]) == "" {
		header = header[:len(header)-1]
	}
	if len(header) == 0 {
		return nil, fmt.Errorf("sheet %q has no header row", sheetName)
	}
	for i, name := range header {
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("empty column name in header cell %d of sheet %q", i+1, sheetName)
		}
	}

	cols := make([][]any, len(header))
	for _, row := range rows[1:] {
		if emptyRow(row) {
			continue
		}
		for c := range header {
			if c < len(row) && row[c] != "" {
				cols[c] = append(cols[c], row[c])
			} else {
				cols[c] = append(cols[c], nil)
			}
		}
	}

	out := frame.New()
	for i, name := range header {
		if err := out.AddColumn(name, cols[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func emptyRow(row []string) bool {
	for _, cell := range row {
		if cell != "" {
			return false
		}
	}
	return true
}
