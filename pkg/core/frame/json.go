package frame

import (
	"encoding/json"
	"fmt"
)

// Batch — самодостаточное JSON-представление фрейма для передачи
// через брокеры сообщений и файловый обмен. Несёт имя таблицы,
// типы столбцов и контрольную сумму, поэтому части большого фрейма
// можно собирать на приёмной стороне без внешних метаданных.
type Batch struct {
	Table      string        `json:"table"`
	Part       int           `json:"part"`
	TotalParts int           `json:"total_parts"`
	Checksum   string        `json:"checksum"`
	Columns    []BatchColumn `json:"columns"`
	Index      []string      `json:"index,omitempty"`
	Rows       [][]*string   `json:"rows"`
}

// BatchColumn описывает столбец батча: имя и тип значений.
type BatchColumn struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// NewBatch упаковывает фрейм целиком в один батч.
func NewBatch(table string, f *Frame) *Batch {
	b := encodeBatch(table, f, f.NumRows(), 0)
	b.Part = 1
	b.TotalParts = 1
	return b
}

// SplitBatches режет фрейм на батчи не более maxRows строк каждый.
// Пустой фрейм даёт один пустой батч, чтобы приёмная сторона
// получила схему даже без данных.
func SplitBatches(table string, f *Frame, maxRows int) []*Batch {
	if maxRows <= 0 {
		return []*Batch{NewBatch(table, f)}
	}
	total := f.NumRows()
	parts := (total + maxRows - 1) / maxRows
	if parts == 0 {
		parts = 1
	}
	batches := make([]*Batch, 0, parts)
	for i := 0; i < parts; i++ {
		start := i * maxRows
		count := maxRows
		if start+count > total {
			count = total - start
		}
		b := encodeBatch(table, f, count, start)
		b.Part = i + 1
		b.TotalParts = parts
		batches = append(batches, b)
	}
	return batches
}

func encodeBatch(table string, f *Frame, count, offset int) *Batch {
	cols := f.Columns()
	b := &Batch{
		Table:    table,
		Checksum: f.Checksum(),
		Columns:  make([]BatchColumn, len(cols)),
		Index:    f.Index(),
		Rows:     make([][]*string, count),
	}
	kinds := make([]Kind, len(cols))
	for i, c := range cols {
		kinds[i] = columnKind(f, c)
		b.Columns[i] = BatchColumn{Name: c, Kind: kinds[i].String()}
	}
	for r := 0; r < count; r++ {
		row := make([]*string, len(cols))
		for c := range cols {
			v, _ := f.Value(cols[c], offset+r)
			if v == nil {
				continue
			}
			s := RenderValue(v)
			row[c] = &s
		}
		b.Rows[r] = row
	}
	return b
}

// columnKind возвращает тип первого ненулевого значения столбца.
// Столбец из одних NULL считается строковым.
func columnKind(f *Frame, name string) Kind {
	col, ok := f.Column(name)
	if !ok {
		return KindString
	}
	for _, v := range col.Values {
		if v != nil {
			return KindOf(v)
		}
	}
	return KindString
}

// Frame восстанавливает фрейм из батча. Типы значений берутся из
// описания столбцов, индекс переносится как есть.
func (b *Batch) Frame() (*Frame, error) {
	f := New()
	kinds := make([]Kind, len(b.Columns))
	cols := make([][]any, len(b.Columns))
	for i, c := range b.Columns {
		k, err := ParseKind(c.Kind)
		if err != nil {
			return nil, fmt.Errorf("column [%s]: %w", c.Name, err)
		}
		kinds[i] = k
		cols[i] = make([]any, len(b.Rows))
	}
	for r, row := range b.Rows {
		if len(row) != len(b.Columns) {
			return nil, fmt.Errorf("row %d has %d values, expected %d", r, len(row), len(b.Columns))
		}
		for c, cell := range row {
			if cell == nil {
				continue
			}
			v, err := ParseValue(*cell, kinds[c])
			if err != nil {
				return nil, fmt.Errorf("column [%s] row %d: %w", b.Columns[c].Name, r, err)
			}
			cols[c][r] = v
		}
	}
	for i, c := range b.Columns {
		if err := f.AddColumn(c.Name, cols[i]); err != nil {
			return nil, err
		}
	}
	if len(b.Index) > 0 {
		if err := f.SetIndex(b.Index...); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// EncodeJSON сериализует батч в JSON.
func (b *Batch) EncodeJSON() ([]byte, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal batch: %w", err)
	}
	return data, nil
}

// DecodeJSON разбирает батч из JSON.
func DecodeJSON(data []byte) (*Batch, error) {
	var b Batch
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to unmarshal batch: %w", err)
	}
	return &b, nil
}

// MergeBatches собирает фрейм из частей одной передачи. Части
// должны идти в порядке возрастания Part и иметь одинаковую схему.
func MergeBatches(batches []*Batch) (*Frame, error) {
	if len(batches) == 0 {
		return nil, fmt.Errorf("no batches to merge")
	}
	out, err := batches[0].Frame()
	if err != nil {
		return nil, err
	}
	for _, b := range batches[1:] {
		f, err := b.Frame()
		if err != nil {
			return nil, err
		}
		if err := appendFrame(out, f); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func appendFrame(dst, src *Frame) error {
	cols := dst.Columns()
	srcCols := src.Columns()
	if len(cols) != len(srcCols) {
		return fmt.Errorf("batch schema mismatch: %d columns vs %d", len(srcCols), len(cols))
	}
	for i := range cols {
		if cols[i] != srcCols[i] {
			return fmt.Errorf("batch schema mismatch: column [%s] vs [%s]", srcCols[i], cols[i])
		}
	}
	for r := 0; r < src.NumRows(); r++ {
		if err := dst.AppendRow(src.Row(r)...); err != nil {
			return err
		}
	}
	return nil
}
