package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/ruslano69/mssqlframe/pkg/adapters/mssql"
	"github.com/ruslano69/mssqlframe/pkg/core/frame"
	"github.com/ruslano69/mssqlframe/pkg/core/infer"
	"github.com/ruslano69/mssqlframe/pkg/core/schema"
)

// reconcile согласует объекты SQL с кадром после классифицированного
// сбоя. Общие сбои и нарушения целостности не согласуются никогда.
// Служебные столбцы времени добавляются независимо от разрешения на
// изменение объектов, всё остальное требует AdjustSQLObjects.
func (e *Engine) reconcile(ctx context.Context, rep *Report, failure *mssql.Failure) error {
	switch failure.Kind {
	case mssql.FailureGeneral, mssql.FailureIntegrity:
		return failure
	}

	if failure.Kind == mssql.FailureColumnDoesNotExist && allMetadataColumns(failure.Columns) {
		return e.addMetadataColumns(ctx, rep, failure.Columns)
	}

	if !e.config.AdjustSQLObjects {
		return &AdjustHintError{cause: failure}
	}

	switch failure.Kind {
	case mssql.FailureTableDoesNotExist:
		return e.createTarget(ctx, rep)
	case mssql.FailureColumnDoesNotExist:
		return e.addColumns(ctx, rep, failure.Columns)
	case mssql.FailureInsufficientColumnSize:
		return e.widenColumns(ctx, rep, failure.Columns)
	case mssql.FailureInvalidInsertFormat:
		return reinterpretFrame(rep)
	}
	return failure
}

// createTarget создаёт целевую таблицу по содержимому кадра: типы
// выводятся, кандидат в первичный ключ выбирается выводом и становится
// индексом кадра. Кадр заменяется типизированным.
func (e *Engine) createTarget(ctx context.Context, rep *Report) error {
	res, err := e.createFromFrame(ctx, rep.Table, rep.Frame, PKInfer)
	if err != nil {
		return err
	}
	rep.Frame = res.Frame
	rep.adjusted("created table %s from frame", rep.Table)
	return nil
}

// addMetadataColumns добавляет служебные столбцы времени как
// datetime2. Выполняется даже при выключенном AdjustSQLObjects.
func (e *Engine) addMetadataColumns(ctx context.Context, rep *Report, columns []string) error {
	schemaName, tableName := e.adapter.ParseTableName(rep.Table)
	for _, name := range columns {
		stmt, args, err := mssql.BuildAlterColumn(schemaName, tableName, name, mssql.AlterAddColumn, "datetime2", false)
		if err != nil {
			return err
		}
		if _, err := e.adapter.DB().ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("failed to add column %s to table %s: %w", name, rep.Table, err)
		}
		rep.adjusted("added column %s datetime2 to table %s", name, rep.Table)
	}
	return nil
}

// addColumns добавляет недостающие столбцы: служебные — как datetime2,
// остальные — с типом, выведенным из значений кадра. Существующие
// столбцы не пересматриваются. Значения кадра в новых столбцах
// заменяются типизированными.
func (e *Engine) addColumns(ctx context.Context, rep *Report, columns []string) error {
	var meta, data []string
	for _, name := range columns {
		if isMetadataColumn(name) {
			meta = append(meta, name)
		} else {
			data = append(data, name)
		}
	}
	if len(meta) > 0 {
		if err := e.addMetadataColumns(ctx, rep, meta); err != nil {
			return err
		}
	}
	if len(data) == 0 {
		return nil
	}

	sub, err := rep.Frame.Select(data...)
	if err != nil {
		return err
	}
	res, err := infer.Infer(sub)
	if err != nil {
		return err
	}

	schemaName, tableName := e.adapter.ParseTableName(rep.Table)
	for _, name := range data {
		col, ok := res.Column(name)
		if !ok {
			return fmt.Errorf("inference lost column [%s]", name)
		}
		spec := col.TypeSpec()
		stmt, args, err := mssql.BuildAlterColumn(schemaName, tableName, name, mssql.AlterAddColumn, spec, false)
		if err != nil {
			return err
		}
		if _, err := e.adapter.DB().ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("failed to add column %s to table %s: %w", name, rep.Table, err)
		}
		rep.adjusted("added column %s %s to table %s", name, spec, rep.Table)

		for r := 0; r < res.Frame.NumRows(); r++ {
			v, err := res.Frame.Value(name, r)
			if err != nil {
				return err
			}
			if err := rep.Frame.SetValue(name, r, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// widenColumns расширяет тесные столбцы до типа, заново выведенного из
// кадра. Если вывод тип не изменил — согласование не продвинется, это
// ошибка RecastColumnUnchangedError; переход в другую категорию типов
// не выполняется.
func (e *Engine) widenColumns(ctx context.Context, rep *Report, offending []string) error {
	tbl := rep.Schema
	if tbl == nil {
		return fmt.Errorf("insufficient column size reported before table %s schema was read", rep.Table)
	}

	res, err := infer.Infer(rep.Frame)
	if err != nil {
		return err
	}

	if len(offending) == 0 {
		offending = findOverflowColumns(tbl, rep.Frame, res)
	}
	if len(offending) == 0 {
		return &RecastColumnUnchangedError{Table: rep.Table}
	}

	schemaName, tableName := e.adapter.ParseTableName(rep.Table)
	for _, name := range offending {
		cur, ok := tbl.Column(name)
		if !ok {
			continue
		}
		inf, ok := res.Column(name)
		if !ok {
			continue
		}
		if inf.TypeSpec() == cur.TypeSpec() {
			return &RecastColumnUnchangedError{Table: rep.Table, Columns: []string{name}}
		}
		infRule, okInf := inf.Rule()
		curRule, okCur := cur.Rule()
		if okInf && okCur && infRule.Category != curRule.Category {
			return &RecastColumnChangedCategoryError{
				Table:  rep.Table,
				Column: name,
				From:   cur.TypeSpec(),
				To:     inf.TypeSpec(),
			}
		}

		if cur.InPK() {
			if err := e.alterPKColumn(ctx, rep, tbl, schemaName, tableName, name, inf.TypeSpec()); err != nil {
				return err
			}
		} else {
			stmt, args, err := mssql.BuildAlterColumn(schemaName, tableName, name, mssql.AlterModifyColumn, inf.TypeSpec(), !cur.Nullable)
			if err != nil {
				return err
			}
			if _, err := e.adapter.DB().ExecContext(ctx, stmt, args...); err != nil {
				return fmt.Errorf("failed to alter column %s of table %s: %w", name, rep.Table, err)
			}
		}
		rep.adjusted("altered column %s of table %s from %s to %s", name, rep.Table, cur.TypeSpec(), inf.TypeSpec())
	}
	return nil
}

// findOverflowColumns восстанавливает список тесных столбцов, когда
// сервер их не назвал: сначала предпроверкой диапазонов, затем — по
// столбцам с изменившимся выведенным типом.
func findOverflowColumns(tbl *schema.Table, f *frame.Frame, res *infer.Result) []string {
	if err := mssql.CheckFrame(tbl, f, nil); err != nil {
		var failure *mssql.Failure
		if errors.As(err, &failure) && failure.Kind == mssql.FailureInsufficientColumnSize {
			return failure.Columns
		}
	}
	var out []string
	for _, col := range res.Columns {
		cur, ok := tbl.Column(col.Name)
		if ok && col.TypeSpec() != cur.TypeSpec() {
			out = append(out, col.Name)
		}
	}
	return out
}

// alterPKColumn меняет тип ключевого столбца: ограничение первичного
// ключа снимается, столбец перестраивается как NOT NULL, ключ
// возвращается на место.
func (e *Engine) alterPKColumn(ctx context.Context, rep *Report, tbl *schema.Table, schemaName, tableName, column, typeSpec string) error {
	pkName := tbl.PKName()
	var pkColumns []string
	for _, col := range tbl.PrimaryKey() {
		pkColumns = append(pkColumns, col.Name)
	}

	stmt, args := mssql.BuildDropPrimaryKey(schemaName, tableName, pkName)
	if _, err := e.adapter.DB().ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("failed to drop primary key %s of table %s: %w", pkName, rep.Table, err)
	}

	alter, alterArgs, err := mssql.BuildAlterColumn(schemaName, tableName, column, mssql.AlterModifyColumn, typeSpec, true)
	if err != nil {
		return err
	}
	if _, err := e.adapter.DB().ExecContext(ctx, alter, alterArgs...); err != nil {
		return fmt.Errorf("failed to alter column %s of table %s: %w", column, rep.Table, err)
	}

	stmt, args = mssql.BuildAddPrimaryKey(schemaName, tableName, pkName, pkColumns)
	if _, err := e.adapter.DB().ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("failed to restore primary key %s of table %s: %w", pkName, rep.Table, err)
	}
	return nil
}

// reinterpretFrame перечитывает значения кадра под типами объявленной
// схемы: текст каждого значения разбирается заново по виду столбца.
// Объекты SQL не меняются.
func reinterpretFrame(rep *Report) error {
	tbl := rep.Schema
	if tbl == nil {
		return fmt.Errorf("invalid insert format reported before table %s schema was read", rep.Table)
	}
	for _, name := range rep.Frame.Columns() {
		col, ok := tbl.Column(name)
		if !ok {
			continue
		}
		kind := col.Kind()
		for r := 0; r < rep.Frame.NumRows(); r++ {
			v, err := rep.Frame.Value(name, r)
			if err != nil {
				return err
			}
			if frame.IsNull(v) || frame.KindOf(v) == kind {
				continue
			}
			parsed, err := frame.ParseValue(frame.RenderValue(v), kind)
			if err != nil {
				return fmt.Errorf("column [%s] value %q cannot be interpreted as %s: %w", name, frame.RenderValue(v), col.Type, err)
			}
			if err := rep.Frame.SetValue(name, r, parsed); err != nil {
				return err
			}
		}
	}
	rep.adjusted("reinterpreted frame values under the declared schema of table %s", rep.Table)
	return nil
}
