package mssql

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ruslano69/mssqlframe/pkg/core/filter"
)

// Построители динамического SQL. Все операторы DDL и DML собираются
// по одной схеме: экранированные заранее имена встраиваются в текст,
// остальные имена объявляются переменными SYSNAME, получают значения
// параметрами и экранируются на сервере через QUOTENAME внутри
// sp_executesql. Прямой конкатенации пользовательского ввода нет.

var typeSizePattern = regexp.MustCompile(`(\(\d+\)|\(\d.+\)|\(MAX\))`)

// sizeGuard строже typeSizePattern: размер встраивается в текст ALTER
// без параметризации, поэтому допускаются только точные формы.
var sizeGuard = regexp.MustCompile(`^\((\d+|\d+,\d+|MAX)\)$`)

// SplitTypeSize отделяет размер от имени типа: "varchar(100)" даёт
// ("varchar", "(100)"), "numeric(10,2)" даёт ("numeric", "(10,2)"),
// тип без размера возвращается как есть.
func SplitTypeSize(spec string) (dtype, size string) {
	size = typeSizePattern.FindString(spec)
	dtype = strings.TrimSpace(typeSizePattern.ReplaceAllString(spec, ""))
	return dtype, size
}

// ========== CREATE TABLE ==========

// CreateColumn — столбец создаваемой таблицы.
type CreateColumn struct {
	Name    string
	Type    string // имя типа без размера
	Size    string // "(100)", "(10,2)", "(MAX)" либо пусто
	NotNull bool
}

// BuildCreateTable собирает CREATE TABLE. Имя таблицы встраивается
// уже экранированным, имена и типы столбцов уходят параметрами.
// identityPK добавляет суррогатный ключ _pk INT IDENTITY; он
// несовместим с явными столбцами ключа.
func BuildCreateTable(table SafeIdent, columns []CreateColumn, pkColumns []string, identityPK bool) (string, []any, error) {
	if identityPK && len(pkColumns) > 0 {
		return "", nil, fmt.Errorf("identity primary key excludes explicit primary key columns")
	}
	byName := make(map[string]bool, len(columns))
	for _, c := range columns {
		byName[c.Name] = true
	}
	for _, pk := range pkColumns {
		if !byName[pk] {
			return "", nil, fmt.Errorf("primary key column %q is not among the table columns", pk)
		}
	}

	var declare, pieces, params, values []string
	var args []any
	for i, c := range columns {
		n := fmt.Sprint(i)
		declare = append(declare,
			"DECLARE @ColumnName_"+n+" SYSNAME = ?;",
			"DECLARE @ColumnType_"+n+" SYSNAME = ?;")
		params = append(params, "@ColumnName_"+n+" SYSNAME", "@ColumnType_"+n+" SYSNAME")
		values = append(values, "@ColumnName_"+n+"=@ColumnName_"+n, "@ColumnType_"+n+"=@ColumnType_"+n)
		args = append(args, c.Name, c.Type)

		piece := []string{"QUOTENAME(@ColumnName_" + n + ")", "QUOTENAME(@ColumnType_" + n + ")"}
		if c.Size != "" {
			declare = append(declare, "DECLARE @ColumnSize_"+n+" SYSNAME = ?;")
			params = append(params, "@ColumnSize_"+n+" VARCHAR(MAX)")
			values = append(values, "@ColumnSize_"+n+"=@ColumnSize_"+n)
			args = append(args, c.Size)
			piece = append(piece, "@ColumnSize_"+n)
		}
		if c.NotNull {
			piece = append(piece, "'NOT NULL'")
		}
		pieces = append(pieces, strings.Join(piece, "+' '+"))
	}

	syntax := strings.Join(pieces, "+','+\n")
	if identityPK {
		syntax = "'_pk INT NOT NULL IDENTITY(1,1) PRIMARY KEY,'+\n" + syntax
	}

	pk := ""
	for i, c := range pkColumns {
		n := fmt.Sprint(i)
		declare = append(declare, "DECLARE @PK_"+n+" SYSNAME = ?;")
		params = append(params, "@PK_"+n+" SYSNAME")
		values = append(values, "@PK_"+n+"=@PK_"+n)
		args = append(args, c)
		if pk != "" {
			pk += "+','+"
		}
		pk += "QUOTENAME(@PK_" + n + ")"
	}
	if pk != "" {
		pk = "+\n',PRIMARY KEY ('+" + pk + "+')'"
	}

	var b strings.Builder
	b.WriteString("DECLARE @SQLStatement AS NVARCHAR(MAX);\n")
	b.WriteString(strings.Join(declare, "\n"))
	b.WriteString("\nSET @SQLStatement = N'CREATE TABLE " + table.String() + " ('+\n")
	b.WriteString(syntax)
	b.WriteString(pk)
	b.WriteString("+');'\n")
	b.WriteString("EXEC sp_executesql\n@SQLStatement,\nN'" + strings.Join(params, ", ") + "',\n")
	b.WriteString(strings.Join(values, ", ") + ";")
	return b.String(), args, nil
}

// ========== ALTER ==========

// AlterAction — вид изменения столбца.
type AlterAction int

const (
	AlterAddColumn AlterAction = iota
	AlterModifyColumn
	AlterDropColumn
)

// BuildAlterColumn собирает ALTER TABLE для одного столбца. Размер
// типа проверяется по шаблону и встраивается в текст, остальное
// уходит параметрами.
func BuildAlterColumn(schemaName, tableName, column string, action AlterAction, typeSpec string, notNull bool) (string, []any, error) {
	if action != AlterAddColumn && action != AlterModifyColumn && action != AlterDropColumn {
		return "", nil, fmt.Errorf("unknown alter action %d", action)
	}
	dtype, size := SplitTypeSize(typeSpec)
	if size != "" && !sizeGuard.MatchString(size) {
		return "", nil, fmt.Errorf("invalid type size %q", size)
	}

	var b strings.Builder
	b.WriteString("DECLARE @SQLStatement AS NVARCHAR(MAX);\n")
	b.WriteString("DECLARE @SchemaName SYSNAME = ?;\n")
	b.WriteString("DECLARE @TableName SYSNAME = ?;\n")
	b.WriteString("DECLARE @ColumnName SYSNAME = ?;\n")
	args := []any{schemaName, tableName, column}
	params := "@SchemaName SYSNAME, @TableName SYSNAME, @ColumnName SYSNAME"
	values := "@SchemaName=@SchemaName, @TableName=@TableName, @ColumnName=@ColumnName"
	if action != AlterDropColumn {
		b.WriteString("DECLARE @ColumnType SYSNAME = ?;\n")
		args = append(args, dtype)
		params += ", @ColumnType SYSNAME"
		values += ", @ColumnType=@ColumnType"
	}

	b.WriteString("SET @SQLStatement = N'ALTER TABLE '+QUOTENAME(@SchemaName)+'.'+QUOTENAME(@TableName)")
	switch action {
	case AlterDropColumn:
		b.WriteString("+' DROP COLUMN '+QUOTENAME(@ColumnName)")
	case AlterAddColumn, AlterModifyColumn:
		verb := " ADD "
		if action == AlterModifyColumn {
			verb = " ALTER COLUMN "
		}
		b.WriteString("+'" + verb + "'+QUOTENAME(@ColumnName)+' '+QUOTENAME(@ColumnType)")
		if size != "" {
			b.WriteString("+'" + size + "'")
		}
		if notNull {
			b.WriteString("+' NOT NULL'")
		}
	}
	b.WriteString("+';'\n")
	b.WriteString("EXEC sp_executesql\n@SQLStatement,\nN'" + params + "',\n" + values + ";")
	return b.String(), args, nil
}

// BuildAddPrimaryKey собирает добавление ограничения первичного ключа.
func BuildAddPrimaryKey(schemaName, tableName, pkName string, columns []string) (string, []any) {
	var b strings.Builder
	b.WriteString("DECLARE @SQLStatement AS NVARCHAR(MAX);\n")
	b.WriteString("DECLARE @SchemaName SYSNAME = ?;\n")
	b.WriteString("DECLARE @TableName SYSNAME = ?;\n")
	b.WriteString("DECLARE @PKName SYSNAME = ?;\n")
	args := []any{schemaName, tableName, pkName}
	params := []string{"@SchemaName SYSNAME", "@TableName SYSNAME", "@PKName SYSNAME"}
	values := []string{"@SchemaName=@SchemaName", "@TableName=@TableName", "@PKName=@PKName"}

	var cols []string
	for i, c := range columns {
		n := fmt.Sprint(i)
		b.WriteString("DECLARE @PK_" + n + " SYSNAME = ?;\n")
		args = append(args, c)
		params = append(params, "@PK_"+n+" SYSNAME")
		values = append(values, "@PK_"+n+"=@PK_"+n)
		cols = append(cols, "QUOTENAME(@PK_"+n+")")
	}

	b.WriteString("SET @SQLStatement = N'ALTER TABLE '+QUOTENAME(@SchemaName)+'.'+QUOTENAME(@TableName)")
	b.WriteString("+' ADD CONSTRAINT '+QUOTENAME(@PKName)+' PRIMARY KEY ('+")
	b.WriteString(strings.Join(cols, "+','+"))
	b.WriteString("+')'+';'\n")
	b.WriteString("EXEC sp_executesql\n@SQLStatement,\nN'" + strings.Join(params, ", ") + "',\n")
	b.WriteString(strings.Join(values, ", ") + ";")
	return b.String(), args
}

// BuildDropPrimaryKey собирает удаление ограничения первичного ключа.
func BuildDropPrimaryKey(schemaName, tableName, pkName string) (string, []any) {
	var b strings.Builder
	b.WriteString("DECLARE @SQLStatement AS NVARCHAR(MAX);\n")
	b.WriteString("DECLARE @SchemaName SYSNAME = ?;\n")
	b.WriteString("DECLARE @TableName SYSNAME = ?;\n")
	b.WriteString("DECLARE @PKName SYSNAME = ?;\n")
	b.WriteString("SET @SQLStatement = N'ALTER TABLE '+QUOTENAME(@SchemaName)+'.'+QUOTENAME(@TableName)")
	b.WriteString("+' DROP CONSTRAINT '+QUOTENAME(@PKName)+';'\n")
	b.WriteString("EXEC sp_executesql\n@SQLStatement,\n")
	b.WriteString("N'@SchemaName SYSNAME, @TableName SYSNAME, @PKName SYSNAME',\n")
	b.WriteString("@SchemaName=@SchemaName, @TableName=@TableName, @PKName=@PKName;")
	return b.String(), []any{schemaName, tableName, pkName}
}

// ========== INSERT ==========

// BuildInsert собирает INSERT с плейсхолдерами по числу столбцов.
// Столбцы уже экранированы. При metadataTimestamps добавляется
// _time_insert со значением GETDATE().
func BuildInsert(table SafeIdent, columns []SafeIdent, metadataTimestamps bool) string {
	names := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.String()
		marks[i] = "?"
	}
	cols := strings.Join(names, ", ")
	vals := strings.Join(marks, ", ")
	if metadataTimestamps {
		cols = "_time_insert, " + cols
		vals = "GETDATE(), " + vals
	}
	return "INSERT INTO " + table.String() + " (" + cols + ") VALUES (" + vals + ")"
}

// ========== UPDATE ==========

// BuildUpdate собирает UPDATE целевой таблицы из стана по столбцам
// сопоставления. Все имена уходят параметрами под QUOTENAME.
func BuildUpdate(schemaName, tableName, tempName string, matchColumns, updateColumns []string, metadataTimestamps bool) (string, []any) {
	var declare, params, values []string
	matchSyntax := make([]string, len(matchColumns))
	for i := range matchColumns {
		n := fmt.Sprint(i)
		declare = append(declare, "DECLARE @Match_"+n+" SYSNAME = ?;")
		params = append(params, "@Match_"+n+" SYSNAME")
		values = append(values, "@Match_"+n+"=@Match_"+n)
		matchSyntax[i] = "'_target.'+QUOTENAME(@Match_" + n + ")+'=_source.'+QUOTENAME(@Match_" + n + ")"
	}
	updateSyntax := make([]string, len(updateColumns))
	for i := range updateColumns {
		n := fmt.Sprint(i)
		declare = append(declare, "DECLARE @Update_"+n+" SYSNAME = ?;")
		params = append(params, "@Update_"+n+" SYSNAME")
		values = append(values, "@Update_"+n+"=@Update_"+n)
		updateSyntax[i] = "QUOTENAME(@Update_" + n + ")+'=_source.'+QUOTENAME(@Update_" + n + ")"
	}
	update := strings.Join(updateSyntax, "+','+")
	if metadataTimestamps {
		update = "'_time_update=GETDATE(),'+" + update
	}

	var b strings.Builder
	b.WriteString("DECLARE @SQLStatement AS NVARCHAR(MAX);\n")
	b.WriteString("DECLARE @SchemaName SYSNAME = ?;\n")
	b.WriteString("DECLARE @TableName SYSNAME = ?;\n")
	b.WriteString("DECLARE @TableTemp SYSNAME = ?;\n")
	b.WriteString(strings.Join(declare, "\n"))
	b.WriteString("\nSET @SQLStatement =\n")
	b.WriteString("N'UPDATE '+\nQUOTENAME(@SchemaName)+'.'+QUOTENAME(@TableName)+\n")
	b.WriteString("' SET '+\n" + update + "+\n")
	b.WriteString("' FROM '+\nQUOTENAME(@SchemaName)+'.'+QUOTENAME(@TableName)+' AS _target '+\n")
	b.WriteString("' INNER JOIN '+\nQUOTENAME(@TableTemp)+' AS _source '+\n")
	b.WriteString("'ON '+" + strings.Join(matchSyntax, "+' AND '+") + "+';'\n")
	b.WriteString("EXEC sp_executesql\n@SQLStatement,\n")
	b.WriteString("N'@SchemaName SYSNAME, @TableName SYSNAME, @TableTemp SYSNAME, " + strings.Join(params, ", ") + "',\n")
	b.WriteString("@SchemaName=@SchemaName, @TableName=@TableName, @TableTemp=@TableTemp, " + strings.Join(values, ", ") + ";")

	args := []any{schemaName, tableName, tempName}
	for _, c := range matchColumns {
		args = append(args, c)
	}
	for _, c := range updateColumns {
		args = append(args, c)
	}
	return b.String(), args
}

// ========== MERGE ==========

// MergeSpec описывает слияние стана с целевой таблицей.
type MergeSpec struct {
	SchemaName         string
	TableName          string
	TempName           string
	MatchColumns       []string
	UpdateColumns      []string
	InsertColumns      []string
	DeleteRequires     []string // удалять только строки из подмножества стана
	Upsert             bool     // без WHEN NOT MATCHED BY SOURCE THEN DELETE
	MetadataTimestamps bool
}

// BuildMerge собирает MERGE: совпавшие строки обновляются, новые
// вставляются, отсутствующие в источнике удаляются. При Upsert ветка
// удаления опускается; DeleteRequires сужает удаление до строк, чьи
// значения перечисленных столбцов присутствуют в стане.
func BuildMerge(spec MergeSpec) (string, []any, error) {
	if spec.Upsert && len(spec.DeleteRequires) > 0 {
		return "", nil, fmt.Errorf("DeleteRequires can only be specified if Upsert is false")
	}

	var declare, params, values []string
	add := func(prefix string, i int, column string) string {
		n := fmt.Sprint(i)
		declare = append(declare, "DECLARE @"+prefix+"_"+n+" SYSNAME = ?;")
		params = append(params, "@"+prefix+"_"+n+" SYSNAME")
		values = append(values, "@"+prefix+"_"+n+"=@"+prefix+"_"+n)
		return "@" + prefix + "_" + n
	}

	matchSyntax := make([]string, len(spec.MatchColumns))
	for i, c := range spec.MatchColumns {
		v := add("Match", i, c)
		matchSyntax[i] = "'_target.'+QUOTENAME(" + v + ")+'=_source.'+QUOTENAME(" + v + ")"
	}
	updateSyntax := make([]string, len(spec.UpdateColumns))
	for i, c := range spec.UpdateColumns {
		v := add("Update", i, c)
		updateSyntax[i] = "QUOTENAME(" + v + ")+'=_source.'+QUOTENAME(" + v + ")"
	}
	insertSyntax := make([]string, len(spec.InsertColumns))
	insertValues := make([]string, len(spec.InsertColumns))
	for i, c := range spec.InsertColumns {
		v := add("Insert", i, c)
		insertSyntax[i] = "QUOTENAME(" + v + ")"
		insertValues[i] = "'_source.'+QUOTENAME(" + v + ")"
	}
	conditions := make([]string, len(spec.DeleteRequires))
	for i, c := range spec.DeleteRequires {
		v := add("Subset", i, c)
		conditions[i] = "'AND _target.'+QUOTENAME(" + v + ")+' IN (SELECT '+QUOTENAME(" + v + ")+' FROM '+QUOTENAME(@TableTemp)+')'"
	}

	var update string
	switch {
	case len(updateSyntax) > 0 && spec.MetadataTimestamps:
		update = "'_time_update=GETDATE(), '+" + strings.Join(updateSyntax, "+','+")
	case len(updateSyntax) > 0:
		update = strings.Join(updateSyntax, "+','+")
	case spec.MetadataTimestamps:
		update = "'_time_update=GETDATE()'"
	}
	insertCols := strings.Join(insertSyntax, "+','+")
	insertVals := strings.Join(insertValues, "+','+")
	if spec.MetadataTimestamps {
		insertCols = "'_time_insert, '+" + insertCols
		insertVals = "'GETDATE(), '+" + insertVals
	}

	deleteSyntax := "''"
	if !spec.Upsert {
		deleteSyntax = "' WHEN NOT MATCHED BY SOURCE '"
		if len(conditions) > 0 {
			deleteSyntax += "+" + strings.Join(conditions, " + ")
		}
		deleteSyntax += "+' THEN DELETE'"
	}

	var b strings.Builder
	b.WriteString("DECLARE @SQLStatement AS NVARCHAR(MAX);\n")
	b.WriteString("DECLARE @SchemaName SYSNAME = ?;\n")
	b.WriteString("DECLARE @TableName SYSNAME = ?;\n")
	b.WriteString("DECLARE @TableTemp SYSNAME = ?;\n")
	b.WriteString(strings.Join(declare, "\n"))
	b.WriteString("\nSET @SQLStatement =\n")
	b.WriteString("N' MERGE '+QUOTENAME(@SchemaName)+'.'+QUOTENAME(@TableName)+' AS _target '\n")
	b.WriteString("+' USING '+QUOTENAME(@SchemaName)+'.'+QUOTENAME(@TableTemp)+' AS _source '\n")
	b.WriteString("+' ON ('+" + strings.Join(matchSyntax, "+' AND '+") + "+') '\n")
	if update != "" {
		b.WriteString("+' WHEN MATCHED THEN UPDATE SET '+" + update + "\n")
	}
	b.WriteString("+' WHEN NOT MATCHED THEN INSERT ('+" + insertCols + "+')'\n")
	b.WriteString("+' VALUES ('+" + insertVals + "+')'\n")
	b.WriteString("+" + deleteSyntax + "+';'\n")
	b.WriteString("EXEC sp_executesql\n@SQLStatement,\n")
	b.WriteString("N'@SchemaName SYSNAME, @TableName SYSNAME, @TableTemp SYSNAME, " + strings.Join(params, ", ") + "',\n")
	b.WriteString("@SchemaName=@SchemaName, @TableName=@TableName, @TableTemp=@TableTemp, " + strings.Join(values, ", ") + ";")

	args := []any{spec.SchemaName, spec.TableName, spec.TempName}
	for _, c := range spec.MatchColumns {
		args = append(args, c)
	}
	for _, c := range spec.UpdateColumns {
		args = append(args, c)
	}
	for _, c := range spec.InsertColumns {
		args = append(args, c)
	}
	for _, c := range spec.DeleteRequires {
		args = append(args, c)
	}
	return b.String(), args, nil
}

// ========== SELECT ==========

// BuildSelect собирает выборку. Имена таблицы и столбцов уже
// экранированы, where передаётся готовым выражением BuildWhere.
func BuildSelect(table SafeIdent, columns []SafeIdent, where string, limit int, orderColumn SafeIdent, orderDirection string) string {
	cols := "*"
	if len(columns) > 0 {
		names := make([]string, len(columns))
		for i, c := range columns {
			names[i] = c.String()
		}
		cols = strings.Join(names, ", ")
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	if limit > 0 {
		fmt.Fprintf(&b, "TOP(%d) ", limit)
	}
	b.WriteString(cols)
	b.WriteString(" FROM ")
	b.WriteString(table.String())
	if where != "" {
		b.WriteString(" ")
		b.WriteString(where)
	}
	if orderColumn != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(orderColumn.String())
		b.WriteString(" ")
		b.WriteString(orderDirection)
	}
	return b.String()
}

// BuildWhere переводит разобранное условие отбора в SQL: имена
// столбцов экранируются сервером одним круговым запросом, значения
// становятся плейсхолдерами.
func BuildWhere(ctx context.Context, q Querier, clause *filter.Clause) (string, []any, error) {
	if clause == nil || len(clause.Conditions) == 0 {
		return "", nil, nil
	}
	safe, err := EscapeAll(ctx, q, clause.Columns())
	if err != nil {
		return "", nil, err
	}
	return assembleWhere(clause, safe), clause.Args(), nil
}

// assembleWhere собирает текст условия из разобранных частей и уже
// экранированных имён столбцов, по одному на условие.
func assembleWhere(clause *filter.Clause, safe []SafeIdent) string {
	var b strings.Builder
	b.WriteString("WHERE ")
	for i, c := range clause.Conditions {
		if i > 0 {
			b.WriteString(" " + clause.Links[i-1] + " ")
		}
		if c.OpenGroup {
			b.WriteString("(")
		}
		b.WriteString(safe[i].String())
		b.WriteString(" " + c.Comparator)
		if c.HasValue {
			b.WriteString(" ?")
		}
		if c.CloseGroup {
			b.WriteString(")")
		}
	}
	return b.String()
}
