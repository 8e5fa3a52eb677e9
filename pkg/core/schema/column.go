package schema

import (
	"sort"
	"unicode/utf8"

	"github.com/ruslano69/mssqlframe/pkg/core/frame"
)

// Column описывает столбец таблицы SQL Server
type Column struct {
	Name      string
	Type      SQLType
	Size      int // длина символьного типа в символах; -1 = MAX; 0 = не задана
	Precision int
	Scale     int
	Nullable  bool
	Identity  bool
	PKSeq     int    // позиция в первичном ключе начиная с 1; 0 = не в ключе
	PKName    string // имя индекса первичного ключа
}

// Table описывает схему таблицы SQL Server: столбцы в порядке
// column_id и имя первичного ключа, если он определён.
type Table struct {
	Name    string
	Columns []Column
}

// Rule возвращает правило преобразования для типа столбца.
func (c *Column) Rule() (Rule, bool) {
	return RuleFor(string(c.Type))
}

// InPK сообщает, входит ли столбец в первичный ключ.
func (c *Column) InPK() bool {
	return c.PKSeq > 0
}

// Spec возвращает спецификацию типа столбца для DDL.
func (c *Column) Spec() TypeSpec {
	return TypeSpec{
		Type:      c.Type,
		Size:      c.Size,
		Precision: c.Precision,
		Scale:     c.Scale,
		Identity:  c.Identity,
	}
}

// TypeSpec печатает тип столбца ("varchar(10)", "numeric(10,2)").
func (c *Column) TypeSpec() string {
	return c.Spec().String()
}

// FitsValue проверяет, представимо ли значение столбцом: диапазон по
// правилу типа и длина для символьных типов.
func (c *Column) FitsValue(v any) bool {
	r, ok := c.Rule()
	if !ok {
		return false
	}
	if !r.Fits(v) {
		return false
	}
	if r.Category == CategoryCharacter && c.Size > 0 {
		if s, ok := v.(string); ok {
			return utf8.RuneCountInString(s) <= c.Size
		}
	}
	return true
}

// Column возвращает столбец по имени.
func (t *Table) Column(name string) (*Column, bool) {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// HasColumn проверяет наличие столбца.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.Column(name)
	return ok
}

// Names возвращает имена всех столбцов в порядке схемы.
func (t *Table) Names() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// PrimaryKey возвращает столбцы первичного ключа в порядке key_ordinal.
func (t *Table) PrimaryKey() []Column {
	var pk []Column
	for _, c := range t.Columns {
		if c.InPK() {
			pk = append(pk, c)
		}
	}
	sort.Slice(pk, func(i, j int) bool { return pk[i].PKSeq < pk[j].PKSeq })
	return pk
}

// PKName возвращает имя первичного ключа таблицы, пустую строку
// если ключа нет.
func (t *Table) PKName() string {
	for _, c := range t.Columns {
		if c.InPK() && c.PKName != "" {
			return c.PKName
		}
	}
	return ""
}

// Kind возвращает тип значений фрейма для столбца. Для типов без
// правила возвращается строковый тип: чтение не должно падать из-за
// экзотического столбца.
func (c *Column) Kind() frame.Kind {
	if r, ok := c.Rule(); ok {
		return r.Kind
	}
	return frame.KindString
}

// Warning описывает неточность преобразования значений одного
// столбца, о которой стоит сообщить, но не прерывать операцию.
type Warning struct {
	Column  string
	Message string
}

func (w Warning) String() string {
	return "column [" + w.Column + "]: " + w.Message
}

// Warnings накапливает предупреждения, не более одного на столбец.
type Warnings struct {
	seen map[string]bool
	list []Warning
}

// Add добавляет предупреждение, повторы по столбцу игнорируются.
func (ws *Warnings) Add(column, message string) {
	if ws.seen == nil {
		ws.seen = make(map[string]bool)
	}
	if ws.seen[column] {
		return
	}
	ws.seen[column] = true
	ws.list = append(ws.list, Warning{Column: column, Message: message})
}

// List возвращает накопленные предупреждения в порядке добавления.
func (ws *Warnings) List() []Warning {
	return ws.list
}
