package frame

import (
	"fmt"
)

// Column представляет один именованный столбец данных.
// Значение nil означает NULL (отсутствие значения).
type Column struct {
	Name   string
	Values []any
}

// Frame представляет табличный набор данных в памяти: упорядоченные
// именованные столбцы одинаковой длины. Столбцы из Index образуют
// первичный ключ набора (устанавливается после чтения из БД или вручную).
type Frame struct {
	cols   []Column
	byName map[string]int
	index  []string
}

// New создает пустой фрейм без столбцов.
func New() *Frame {
	return &Frame{byName: make(map[string]int)}
}

// FromColumns создает фрейм из готовых столбцов.
// Все столбцы должны иметь одинаковую длину и уникальные имена.
func FromColumns(cols ...Column) (*Frame, error) {
	f := New()
	for _, c := range cols {
		if err := f.AddColumn(c.Name, c.Values); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// FromRows создает фрейм из имен столбцов и строк значений.
func FromRows(names []string, rows [][]any) (*Frame, error) {
	cols := make([]Column, len(names))
	for i, name := range names {
		cols[i] = Column{Name: name, Values: make([]any, 0, len(rows))}
	}
	for r, row := range rows {
		if len(row) != len(names) {
			return nil, fmt.Errorf("row %d has %d values, expected %d", r, len(row), len(names))
		}
		for i, v := range row {
			nv, err := Normalize(v)
			if err != nil {
				return nil, fmt.Errorf("row %d, column %q: %w", r, names[i], err)
			}
			cols[i].Values = append(cols[i].Values, nv)
		}
	}
	f := New()
	for _, c := range cols {
		f.cols = append(f.cols, c)
		if _, ok := f.byName[c.Name]; ok {
			return nil, fmt.Errorf("duplicate column name %q", c.Name)
		}
		f.byName[c.Name] = len(f.cols) - 1
	}
	return f, nil
}

// AddColumn добавляет столбец. Длина должна совпадать с текущими столбцами.
func (f *Frame) AddColumn(name string, values []any) error {
	if _, ok := f.byName[name]; ok {
		return fmt.Errorf("duplicate column name %q", name)
	}
	if len(f.cols) > 0 && len(values) != f.NumRows() {
		return fmt.Errorf("column %q has %d values, expected %d", name, len(values), f.NumRows())
	}
	normalized := make([]any, len(values))
	for i, v := range values {
		nv, err := Normalize(v)
		if err != nil {
			return fmt.Errorf("column %q, row %d: %w", name, i, err)
		}
		normalized[i] = nv
	}
	f.cols = append(f.cols, Column{Name: name, Values: normalized})
	f.byName[name] = len(f.cols) - 1
	return nil
}

// DropColumn удаляет столбец по имени.
func (f *Frame) DropColumn(name string) error {
	idx, ok := f.byName[name]
	if !ok {
		return fmt.Errorf("column %q does not exist", name)
	}
	f.cols = append(f.cols[:idx], f.cols[idx+1:]...)
	delete(f.byName, name)
	for i := idx; i < len(f.cols); i++ {
		f.byName[f.cols[i].Name] = i
	}
	for i, ix := range f.index {
		if ix == name {
			f.index = append(f.index[:i], f.index[i+1:]...)
			break
		}
	}
	return nil
}

// Column возвращает столбец по имени.
func (f *Frame) Column(name string) (*Column, bool) {
	idx, ok := f.byName[name]
	if !ok {
		return nil, false
	}
	return &f.cols[idx], true
}

// HasColumn проверяет наличие столбца.
func (f *Frame) HasColumn(name string) bool {
	_, ok := f.byName[name]
	return ok
}

// Columns возвращает имена всех столбцов в порядке объявления,
// включая индексные.
func (f *Frame) Columns() []string {
	names := make([]string, len(f.cols))
	for i, c := range f.cols {
		names[i] = c.Name
	}
	return names
}

// DataColumns возвращает имена столбцов, не входящих в индекс.
func (f *Frame) DataColumns() []string {
	names := make([]string, 0, len(f.cols))
	for _, c := range f.cols {
		if !f.inIndex(c.Name) {
			names = append(names, c.Name)
		}
	}
	return names
}

// NumRows возвращает количество строк.
func (f *Frame) NumRows() int {
	if len(f.cols) == 0 {
		return 0
	}
	return len(f.cols[0].Values)
}

// NumCols возвращает количество столбцов.
func (f *Frame) NumCols() int {
	return len(f.cols)
}

// Row возвращает значения строки i в порядке столбцов.
func (f *Frame) Row(i int) []any {
	row := make([]any, len(f.cols))
	for c := range f.cols {
		row[c] = f.cols[c].Values[i]
	}
	return row
}

// AppendRow добавляет строку значений в порядке столбцов.
func (f *Frame) AppendRow(values ...any) error {
	if len(values) != len(f.cols) {
		return fmt.Errorf("got %d values, expected %d", len(values), len(f.cols))
	}
	for i, v := range values {
		nv, err := Normalize(v)
		if err != nil {
			return fmt.Errorf("column %q: %w", f.cols[i].Name, err)
		}
		f.cols[i].Values = append(f.cols[i].Values, nv)
	}
	return nil
}

// Value возвращает значение по имени столбца и номеру строки.
func (f *Frame) Value(column string, row int) (any, error) {
	col, ok := f.Column(column)
	if !ok {
		return nil, fmt.Errorf("column %q does not exist", column)
	}
	if row < 0 || row >= len(col.Values) {
		return nil, fmt.Errorf("row %d out of range", row)
	}
	return col.Values[row], nil
}

// SetValue устанавливает значение по имени столбца и номеру строки.
func (f *Frame) SetValue(column string, row int, value any) error {
	idx, ok := f.byName[column]
	if !ok {
		return fmt.Errorf("column %q does not exist", column)
	}
	if row < 0 || row >= len(f.cols[idx].Values) {
		return fmt.Errorf("row %d out of range", row)
	}
	nv, err := Normalize(value)
	if err != nil {
		return err
	}
	f.cols[idx].Values[row] = nv
	return nil
}

// SetIndex объявляет столбцы первичным ключом фрейма.
// Столбцы остаются на своих местах, меняется только их роль.
func (f *Frame) SetIndex(names ...string) error {
	for _, n := range names {
		if !f.HasColumn(n) {
			return fmt.Errorf("index column %q does not exist", n)
		}
	}
	f.index = append([]string(nil), names...)
	return nil
}

// ResetIndex снимает признак первичного ключа со всех столбцов.
func (f *Frame) ResetIndex() {
	f.index = nil
}

// Index возвращает имена индексных столбцов.
func (f *Frame) Index() []string {
	return append([]string(nil), f.index...)
}

func (f *Frame) inIndex(name string) bool {
	for _, ix := range f.index {
		if ix == name {
			return true
		}
	}
	return false
}

// Select возвращает новый фрейм с подмножеством столбцов, сохраняя
// индексные столбцы и их роль.
func (f *Frame) Select(names ...string) (*Frame, error) {
	keep := make(map[string]bool, len(names)+len(f.index))
	for _, n := range names {
		if !f.HasColumn(n) {
			return nil, fmt.Errorf("column %q does not exist", n)
		}
		keep[n] = true
	}
	for _, n := range f.index {
		keep[n] = true
	}
	out := New()
	for _, c := range f.cols {
		if keep[c.Name] {
			vals := append([]any(nil), c.Values...)
			out.cols = append(out.cols, Column{Name: c.Name, Values: vals})
			out.byName[c.Name] = len(out.cols) - 1
		}
	}
	out.index = append([]string(nil), f.index...)
	return out, nil
}

// Clone возвращает глубокую копию фрейма.
func (f *Frame) Clone() *Frame {
	out := New()
	for _, c := range f.cols {
		vals := append([]any(nil), c.Values...)
		out.cols = append(out.cols, Column{Name: c.Name, Values: vals})
		out.byName[c.Name] = len(out.cols) - 1
	}
	out.index = append([]string(nil), f.index...)
	return out
}

// Equal сравнивает два фрейма: одинаковые столбцы в одинаковом порядке,
// одинаковый индекс и поэлементно равные значения.
func (f *Frame) Equal(other *Frame) bool {
	if other == nil || len(f.cols) != len(other.cols) || f.NumRows() != other.NumRows() {
		return false
	}
	if len(f.index) != len(other.index) {
		return false
	}
	for i := range f.index {
		if f.index[i] != other.index[i] {
			return false
		}
	}
	for i := range f.cols {
		if f.cols[i].Name != other.cols[i].Name {
			return false
		}
		for j := range f.cols[i].Values {
			if !valueEqual(f.cols[i].Values[j], other.cols[i].Values[j]) {
				return false
			}
		}
	}
	return true
}

// IsNull проверяет, является ли значение отсутствующим.
func IsNull(v any) bool {
	return v == nil
}

// AllNull проверяет, что столбец состоит только из NULL.
func (c *Column) AllNull() bool {
	for _, v := range c.Values {
		if v != nil {
			return false
		}
	}
	return true
}

// HasNull проверяет наличие хотя бы одного NULL в столбце.
func (c *Column) HasNull() bool {
	for _, v := range c.Values {
		if v == nil {
			return true
		}
	}
	return false
}
