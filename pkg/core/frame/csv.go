package frame

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// CSV-представление фрейма: первая строка — имена столбцов, значения
// рендерятся через RenderValue. NULL записывается пустой ячейкой, при
// чтении пустая ячейка восстанавливается как NULL. Типы значений CSV
// не хранит: прочитанный фрейм состоит из строк, типизацию выполняет
// пакет infer.

// WriteCSV пишет фрейм в w.
func (f *Frame) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	cols := f.Columns()
	if err := cw.Write(cols); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	record := make([]string, len(cols))
	for r := 0; r < f.NumRows(); r++ {
		for c, name := range cols {
			v, err := f.Value(name, r)
			if err != nil {
				return err
			}
			record[c] = RenderValue(v)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row %d: %w", r, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile пишет фрейм в файл.
func (f *Frame) WriteCSVFile(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if err := f.WriteCSV(file); err != nil {
		return err
	}
	return file.Close()
}

// ReadCSV читает фрейм из r. Все значения строковые, пустые ячейки
// становятся NULL.
func ReadCSV(r io.Reader) (*Frame, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty CSV input")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	cols := make([][]any, len(header))
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row: %w", err)
		}
		for c := range header {
			if record[c] == "" {
				cols[c] = append(cols[c], nil)
			} else {
				cols[c] = append(cols[c], record[c])
			}
		}
	}

	f := New()
	for i, name := range header {
		if err := f.AddColumn(name, cols[i]); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// ReadCSVFile читает фрейм из файла.
func ReadCSVFile(filename string) (*Frame, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return ReadCSV(file)
}
