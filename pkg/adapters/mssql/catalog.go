package mssql

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ruslano69/mssqlframe/pkg/core/frame"
	"github.com/ruslano69/mssqlframe/pkg/core/schema"
)

// Запрос живой схемы таблицы. Представление столбцов соединяется
// с типами и, через подзапрос, со столбцами индекса первичного ключа.
// %[1]s — префикс каталога: пустой либо "tempdb." для временных таблиц.
const columnCatalogQuery = `
SELECT
    c.name AS column_name,
    t.name AS type_name,
    c.max_length,
    c.precision,
    c.scale,
    c.is_nullable,
    c.is_identity,
    ISNULL(pk.key_ordinal, 0) AS key_ordinal,
    ISNULL(pk.pk_name, '') AS pk_name
FROM %[1]ssys.columns c
INNER JOIN %[1]ssys.types t
    ON c.user_type_id = t.user_type_id
LEFT JOIN (
    SELECT ic.object_id, ic.column_id, ic.key_ordinal, i.name AS pk_name
    FROM %[1]ssys.index_columns ic
    INNER JOIN %[1]ssys.indexes i
        ON ic.object_id = i.object_id
        AND ic.index_id = i.index_id
    WHERE i.is_primary_key = 1
) pk
    ON c.object_id = pk.object_id
    AND c.column_id = pk.column_id
WHERE c.object_id = OBJECT_ID(?)
ORDER BY c.column_id`

// Типы, у которых max_length каталога означает ёмкость значения.
var sizedTypes = map[string]bool{
	"char": true, "varchar": true, "nchar": true, "nvarchar": true,
	"binary": true, "varbinary": true,
}

// ReadSchema читает живую схему таблицы из системного каталога.
// Временные таблицы (имя с "#") ищутся в tempdb. Отсутствие строк
// в каталоге означает отсутствие таблицы. Столбцы без правила
// конвертации попадают в схему как есть с предупреждением: их
// значения пройдут сквозь конвертер строками.
func (a *Adapter) ReadSchema(ctx context.Context, q Querier, table string) (*schema.Table, []schema.Warning, error) {
	safe, err := Escape(ctx, q, table)
	if err != nil {
		return nil, nil, err
	}

	catalog := ""
	object := safe.String()
	if strings.HasPrefix(table, "#") {
		catalog = "tempdb."
		object = "tempdb.." + object
	}

	rows, err := q.QueryContext(ctx, fmt.Sprintf(columnCatalogQuery, catalog), object)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query table schema: %w", err)
	}
	defer rows.Close()

	tbl := &schema.Table{Name: table}
	var warns schema.Warnings
	for rows.Next() {
		var (
			name, typeName, pkName      string
			maxLength, precision, scale int64
			keyOrdinal                  int64
			isNullable, isIdentity      bool
		)
		if err := rows.Scan(&name, &typeName, &maxLength, &precision, &scale,
			&isNullable, &isIdentity, &keyOrdinal, &pkName); err != nil {
			return nil, nil, fmt.Errorf("failed to scan table schema: %w", err)
		}

		col := schema.Column{
			Name:      name,
			Type:      schema.SQLType(typeName),
			Precision: int(precision),
			Scale:     int(scale),
			Nullable:  isNullable,
			Identity:  isIdentity,
			PKSeq:     int(keyOrdinal),
			PKName:    pkName,
		}
		if sizedTypes[typeName] {
			col.Size = int(maxLength)
			if rule, ok := col.Rule(); ok && rule.Unicode && col.Size > 0 {
				col.Size /= 2 // каталог хранит длину в байтах
			}
		}
		if !schema.IsKnownType(typeName) {
			warns.Add(name, fmt.Sprintf("no conversion rule for SQL type '%s', values pass through as strings", typeName))
		}
		tbl.Columns = append(tbl.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read table schema: %w", err)
	}
	if len(tbl.Columns) == 0 {
		return nil, warns.List(), &Failure{Kind: FailureTableDoesNotExist, Table: table}
	}
	return tbl, warns.List(), nil
}

// PKDetails возвращает имя ограничения первичного ключа и его столбцы
// в порядке следования в ключе.
func (a *Adapter) PKDetails(ctx context.Context, q Querier, table string) (string, []string, error) {
	tbl, _, err := a.ReadSchema(ctx, q, table)
	if err != nil {
		return "", nil, err
	}
	pk := tbl.PrimaryKey()
	if len(pk) == 0 {
		return "", nil, &UndefinedPrimaryKeyError{Table: table}
	}
	columns := make([]string, len(pk))
	for i, c := range pk {
		columns[i] = c.Name
	}
	return pk[0].PKName, columns, nil
}

// CheckFrame сверяет кадр с живой схемой до выполнения DML. Сначала
// отдельно проверяются служебные столбцы (их создаёт согласование,
// не пользователь), затем столбцы данных кадра, затем диапазоны
// значений против ёмкости столбцов. Найденный сбой имеет тот же вид,
// что и классифицированная ошибка сервера, и обрабатывается тем же
// циклом согласования.
func CheckFrame(tbl *schema.Table, f *frame.Frame, metadataColumns []string) error {
	var missing []string
	for _, c := range metadataColumns {
		if !tbl.HasColumn(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return &Failure{Kind: FailureColumnDoesNotExist, Table: tbl.Name, Columns: missing}
	}

	for _, c := range f.DataColumns() {
		if !tbl.HasColumn(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return &Failure{Kind: FailureColumnDoesNotExist, Table: tbl.Name, Columns: missing}
	}

	var tight, allowed, actual []string
	for _, name := range f.Columns() {
		col, ok := tbl.Column(name)
		if !ok {
			continue // индексный столбец вне таблицы всплывёт на сервере
		}
		if a, got, bad := columnOverflow(col, f, name); bad {
			tight = append(tight, name)
			allowed = append(allowed, a)
			actual = append(actual, got)
		}
	}
	if len(tight) > 0 {
		return &Failure{
			Kind:    FailureInsufficientColumnSize,
			Table:   tbl.Name,
			Columns: tight,
			Allowed: allowed,
			Actual:  actual,
		}
	}
	return nil
}

// columnOverflow проверяет значения одного столбца кадра на выход за
// ёмкость столбца таблицы. Возвращает допустимый и фактический
// диапазоны в печатном виде.
func columnOverflow(col *schema.Column, f *frame.Frame, name string) (allowed, actual string, bad bool) {
	rule, ok := col.Rule()
	if !ok {
		return "", "", false
	}
	switch rule.Category {
	case schema.CategoryWholeNumber:
		var lo, hi int64
		seen := false
		for r := 0; r < f.NumRows(); r++ {
			v, _ := f.Value(name, r)
			n, isInt := v.(int64)
			if !isInt {
				continue
			}
			if !seen || n < lo {
				lo = n
			}
			if !seen || n > hi {
				hi = n
			}
			seen = true
		}
		if seen && (lo < rule.MinInt || hi > rule.MaxInt) {
			return fmt.Sprintf("%d to %d", rule.MinInt, rule.MaxInt),
				fmt.Sprintf("%d to %d", lo, hi), true
		}
	case schema.CategoryCharacter:
		if col.Size <= 0 {
			return "", "", false // MAX либо ёмкость неизвестна
		}
		longest := 0
		for r := 0; r < f.NumRows(); r++ {
			v, _ := f.Value(name, r)
			s, isStr := v.(string)
			if isStr && len([]rune(s)) > longest {
				longest = len([]rune(s))
			}
		}
		if longest > col.Size {
			return fmt.Sprintf("0 to %d characters", col.Size),
				fmt.Sprintf("0 to %d characters", longest), true
		}
	case schema.CategoryDateTime:
		if rule.MinTime.IsZero() && rule.MaxTime.IsZero() {
			return "", "", false
		}
		var lo, hi time.Time
		seen := false
		for r := 0; r < f.NumRows(); r++ {
			v, _ := f.Value(name, r)
			t, isTime := v.(time.Time)
			if !isTime {
				continue
			}
			if !seen || t.Before(lo) {
				lo = t
			}
			if !seen || t.After(hi) {
				hi = t
			}
			seen = true
		}
		if seen && (lo.Before(rule.MinTime) || hi.After(rule.MaxTime)) {
			return fmt.Sprintf("%s to %s", frame.FormatDateTime(rule.MinTime), frame.FormatDateTime(rule.MaxTime)),
				fmt.Sprintf("%s to %s", frame.FormatDateTime(lo), frame.FormatDateTime(hi)), true
		}
	}
	return "", "", false
}
