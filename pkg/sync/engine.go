// Package sync реализует самонастраивающуюся запись кадров в SQL Server.
//
// Движок выполняет вставку, обновление и слияние, сверяя кадр с живой
// схемой таблицы перед каждой попыткой. Если попытка срывается из-за
// расхождения схемы, движок классифицирует сбой, согласует объекты SQL
// с кадром (создаёт таблицу, добавляет или расширяет столбцы) и
// повторяет запись. Бюджет согласований ограничен, его исчерпание —
// отдельная ошибка NonConvergenceError.
package sync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ruslano69/mssqlframe/pkg/adapters/mssql"
	"github.com/ruslano69/mssqlframe/pkg/audit"
	"github.com/ruslano69/mssqlframe/pkg/core/frame"
	"github.com/ruslano69/mssqlframe/pkg/core/schema"
)

// Operation — вид операции записи.
type Operation string

const (
	OperationInsert Operation = "insert"
	OperationUpdate Operation = "update"
	OperationMerge  Operation = "merge"
	OperationUpsert Operation = "upsert"
)

// Config задаёт поведение движка записи.
type Config struct {
	// AdjustSQLObjects разрешает движку создавать и изменять объекты
	// SQL при расхождении кадра со схемой таблицы. Служебные столбцы
	// времени добавляются независимо от этого флага.
	AdjustSQLObjects bool

	// IncludeMetadataTimestamps включает ведение служебных столбцов
	// _time_insert и _time_update в целевых таблицах.
	IncludeMetadataTimestamps bool

	// AdjustAttempts — число согласований схемы на одну операцию
	// записи. По умолчанию 3: хватает, чтобы добавить служебные
	// столбцы, добавить недостающие столбцы и расширить тесные.
	AdjustAttempts int
}

func (c *Config) setDefaults() {
	if c.AdjustAttempts <= 0 {
		c.AdjustAttempts = 3
	}
}

// Report описывает результат операции записи.
type Report struct {
	Table     string
	Operation Operation

	// Rows — число затронутых строк: для вставки это строки кадра,
	// для обновления и слияния — счётчик сервера.
	Rows int

	// Attempts — сколько раз запись запускалась, включая успешную.
	Attempts int

	// Adjustments перечисляет выполненные согласования схемы.
	Adjustments []string

	// Warnings — накопленные предупреждения чтения схемы и подготовки
	// значений.
	Warnings []schema.Warning

	// Frame — кадр в записанном виде: согласование могло типизировать
	// значения или назначить индекс. Исходный кадр не изменяется.
	Frame *frame.Frame

	// Schema — схема таблицы, прочитанная последней попыткой.
	Schema *schema.Table

	Duration time.Duration

	started time.Time
}

func (r *Report) adjusted(format string, args ...any) {
	r.Adjustments = append(r.Adjustments, fmt.Sprintf(format, args...))
}

func (r *Report) addWarnings(ws []schema.Warning) {
	for _, w := range ws {
		seen := false
		for _, have := range r.Warnings {
			if have == w {
				seen = true
				break
			}
		}
		if !seen {
			r.Warnings = append(r.Warnings, w)
		}
	}
}

// Engine пишет кадры в SQL Server через подключённый адаптер.
type Engine struct {
	adapter *mssql.Adapter
	config  Config
	audit   audit.Logger
}

// New создаёт движок записи поверх подключённого адаптера.
func New(adapter *mssql.Adapter, config Config) *Engine {
	config.setDefaults()
	return &Engine{adapter: adapter, config: config}
}

// WithAudit включает журналирование операций записи.
func (e *Engine) WithAudit(logger audit.Logger) *Engine {
	e.audit = logger
	return e
}

// Config возвращает действующую конфигурацию движка.
func (e *Engine) Config() Config {
	return e.config
}

// MergeOptions уточняет сопоставление строк при слиянии.
type MergeOptions struct {
	// MatchColumns — столбцы сопоставления. Пусто — первичный ключ
	// таблицы.
	MatchColumns []string

	// DeleteRequires сужает удаление: строки таблицы удаляются только
	// при совпадении значений этих столбцов с каким-либо значением в
	// кадре.
	DeleteRequires []string
}

// Insert вставляет кадр в таблицу.
func (e *Engine) Insert(ctx context.Context, table string, f *frame.Frame) (*Report, error) {
	rep, err := e.begin(OperationInsert, table, f)
	if err != nil {
		return rep, err
	}
	err = e.converge(ctx, rep, func(ctx context.Context) error {
		return e.attemptInsert(ctx, rep)
	})
	return e.finish(ctx, rep, err)
}

// Update обновляет строки таблицы значениями кадра. Строки
// сопоставляются по matchColumns, по умолчанию — по первичному ключу.
// Несуществующую таблицу обновление не создаёт.
func (e *Engine) Update(ctx context.Context, table string, f *frame.Frame, matchColumns ...string) (*Report, error) {
	rep, err := e.begin(OperationUpdate, table, f)
	if err != nil {
		return rep, err
	}
	err = e.converge(ctx, rep, func(ctx context.Context) error {
		return e.attemptUpdate(ctx, rep, matchColumns)
	})
	return e.finish(ctx, rep, err)
}

// Merge приводит таблицу к содержимому кадра: совпавшие строки
// обновляются, новые вставляются, отсутствующие в кадре удаляются.
// Кадр должен быть полным срезом данных, иначе слияние удалит лишнее.
func (e *Engine) Merge(ctx context.Context, table string, f *frame.Frame, opts MergeOptions) (*Report, error) {
	rep, err := e.begin(OperationMerge, table, f)
	if err != nil {
		return rep, err
	}
	err = e.converge(ctx, rep, func(ctx context.Context) error {
		return e.attemptMerge(ctx, rep, opts.MatchColumns, opts.DeleteRequires, false)
	})
	return e.finish(ctx, rep, err)
}

// Upsert — слияние без удаления: совпавшие строки обновляются, новые
// вставляются, остальные строки таблицы не трогаются.
func (e *Engine) Upsert(ctx context.Context, table string, f *frame.Frame, matchColumns ...string) (*Report, error) {
	rep, err := e.begin(OperationUpsert, table, f)
	if err != nil {
		return rep, err
	}
	err = e.converge(ctx, rep, func(ctx context.Context) error {
		return e.attemptMerge(ctx, rep, matchColumns, nil, true)
	})
	return e.finish(ctx, rep, err)
}

func (e *Engine) begin(op Operation, table string, f *frame.Frame) (*Report, error) {
	rep := &Report{
		Table:     table,
		Operation: op,
		started:   time.Now(),
	}
	if f == nil || len(f.Columns()) == 0 {
		return rep, fmt.Errorf("frame has no columns")
	}
	rep.Frame = f.Clone()
	return rep, nil
}

// converge гоняет попытку записи до успеха, согласуя схему после
// каждого классифицированного сбоя. Ошибки без классификации уходят
// наружу как есть: их текст уже пригоден для пользователя.
func (e *Engine) converge(ctx context.Context, rep *Report, attempt func(context.Context) error) error {
	for adjusted := 0; ; adjusted++ {
		rep.Attempts++
		err := attempt(ctx)
		if err == nil {
			return nil
		}
		var failure *mssql.Failure
		if !errors.As(err, &failure) {
			return err
		}
		if adjusted >= e.config.AdjustAttempts {
			return &NonConvergenceError{Attempts: e.config.AdjustAttempts, cause: failure}
		}
		if err := e.reconcile(ctx, rep, failure); err != nil {
			return err
		}
	}
}

func (e *Engine) finish(ctx context.Context, rep *Report, err error) (*Report, error) {
	rep.Duration = time.Since(rep.started)
	if e.audit != nil {
		entry := audit.NewEntry(auditOperation(rep.Operation), audit.StatusSuccess).
			WithResource(rep.Table).
			WithRows(int64(rep.Rows)).
			WithAttempts(rep.Attempts).
			WithAdjustments(rep.Adjustments).
			WithWarnings(warningTexts(rep.Warnings)).
			WithDuration(rep.Duration)
		if err != nil {
			entry = entry.WithError(err)
		}
		e.audit.Log(ctx, entry)
	}
	return rep, err
}

func warningTexts(ws []schema.Warning) []string {
	if len(ws) == 0 {
		return nil
	}
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.String()
	}
	return out
}

func auditOperation(op Operation) audit.Operation {
	switch op {
	case OperationInsert:
		return audit.OpInsert
	case OperationUpdate:
		return audit.OpUpdate
	case OperationMerge:
		return audit.OpMerge
	case OperationUpsert:
		return audit.OpUpsert
	}
	return audit.Operation(string(op))
}

// attemptInsert выполняет одну попытку вставки в собственной
// транзакции: свежая схема, сверка кадра, построчная вставка.
func (e *Engine) attemptInsert(ctx context.Context, rep *Report) error {
	tx, err := e.adapter.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	tbl, warns, err := e.adapter.ReadSchema(ctx, tx, rep.Table)
	if err != nil {
		return err
	}
	rep.Schema = tbl
	rep.addWarnings(warns)

	var meta []string
	if e.config.IncludeMetadataTimestamps {
		meta = []string{TimeInsertColumn}
	}
	if err := mssql.CheckFrame(tbl, rep.Frame, meta); err != nil {
		return err
	}

	if err := e.insertRows(ctx, tx, tbl, rep.Table, rep.Frame, e.config.IncludeMetadataTimestamps, rep); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit insert into %s: %w", rep.Table, err)
	}
	rep.Rows = rep.Frame.NumRows()
	return nil
}

// attemptUpdate выполняет одну попытку обновления: кадр загружается во
// временную таблицу, затем одно UPDATE соединяет её с целевой. Всё в
// одной транзакции — глобальная временная таблица живёт в сеансе
// соединения.
func (e *Engine) attemptUpdate(ctx context.Context, rep *Report, matchColumns []string) error {
	tx, err := e.adapter.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	tbl, warns, err := e.adapter.ReadSchema(ctx, tx, rep.Table)
	if err != nil {
		var failure *mssql.Failure
		if errors.As(err, &failure) && failure.Kind == mssql.FailureTableDoesNotExist {
			return e.updateMissingTable(rep.Table)
		}
		return err
	}
	rep.Schema = tbl
	rep.addWarnings(warns)

	match, err := e.resolveMatchColumns(tbl, rep, matchColumns)
	if err != nil {
		return err
	}

	var meta []string
	if e.config.IncludeMetadataTimestamps {
		meta = []string{TimeUpdateColumn}
	}
	if err := mssql.CheckFrame(tbl, rep.Frame, meta); err != nil {
		return err
	}

	updateColumns := columnsExcept(rep.Frame.Columns(), match)
	if len(updateColumns) == 0 {
		return fmt.Errorf("frame contains no columns to update besides the match columns %v", match)
	}

	temp, err := e.stageRows(ctx, tx, tbl, rep, match)
	if err != nil {
		return err
	}

	schemaName, tableName := e.adapter.ParseTableName(rep.Table)
	stmt, args := mssql.BuildUpdate(schemaName, tableName, temp, match, updateColumns, e.config.IncludeMetadataTimestamps)
	res, err := tx.ExecContext(ctx, stmt, args...)
	if err != nil {
		return mssql.Classify(rep.Table, err)
	}
	if err := mssql.DropTable(ctx, tx, temp); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit update of %s: %w", rep.Table, err)
	}
	rep.Rows = affectedRows(res, rep.Frame)
	return nil
}

// attemptMerge выполняет одну попытку слияния через временную таблицу
// и единственный MERGE. При upsert ветка удаления не генерируется.
func (e *Engine) attemptMerge(ctx context.Context, rep *Report, matchColumns, deleteRequires []string, upsert bool) error {
	tx, err := e.adapter.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	tbl, warns, err := e.adapter.ReadSchema(ctx, tx, rep.Table)
	if err != nil {
		return err
	}
	rep.Schema = tbl
	rep.addWarnings(warns)

	match, err := e.resolveMatchColumns(tbl, rep, matchColumns)
	if err != nil {
		return err
	}
	for _, name := range deleteRequires {
		if !rep.Frame.HasColumn(name) {
			return &schema.UndefinedColumnError{Column: name}
		}
	}

	var meta []string
	if e.config.IncludeMetadataTimestamps {
		meta = []string{TimeInsertColumn, TimeUpdateColumn}
	}
	if err := mssql.CheckFrame(tbl, rep.Frame, meta); err != nil {
		return err
	}

	temp, err := e.stageRows(ctx, tx, tbl, rep, match)
	if err != nil {
		return err
	}

	schemaName, tableName := e.adapter.ParseTableName(rep.Table)
	spec := mssql.MergeSpec{
		SchemaName:         schemaName,
		TableName:          tableName,
		TempName:           temp,
		MatchColumns:       match,
		UpdateColumns:      columnsExcept(rep.Frame.Columns(), match),
		InsertColumns:      rep.Frame.Columns(),
		DeleteRequires:     deleteRequires,
		Upsert:             upsert,
		MetadataTimestamps: e.config.IncludeMetadataTimestamps,
	}
	stmt, args, err := mssql.BuildMerge(spec)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, stmt, args...)
	if err != nil {
		return mssql.Classify(rep.Table, err)
	}
	if err := mssql.DropTable(ctx, tx, temp); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit merge into %s: %w", rep.Table, err)
	}
	rep.Rows = affectedRows(res, rep.Frame)
	return nil
}

// insertRows вставляет строки кадра в таблицу tbl-схемы. Используется
// и для целевой таблицы, и для загрузки временной: имена столбцов
// совпадают, подготовка значений идёт по правилам целевой схемы.
func (e *Engine) insertRows(ctx context.Context, q mssql.Querier, tbl *schema.Table, table string, f *frame.Frame, metadataTimestamps bool, rep *Report) error {
	if f.NumRows() == 0 {
		return nil
	}
	args, warns, err := mssql.PrepareArgs(tbl, f, f.Columns())
	if err != nil {
		return err
	}
	rep.addWarnings(warns)

	safeTable, err := mssql.Escape(ctx, q, table)
	if err != nil {
		return err
	}
	safeColumns, err := mssql.EscapeAll(ctx, q, f.Columns())
	if err != nil {
		return err
	}
	stmt := mssql.BuildInsert(safeTable, safeColumns, metadataTimestamps)
	for _, row := range args {
		if _, err := q.ExecContext(ctx, stmt, row...); err != nil {
			return mssql.Classify(table, err)
		}
	}
	return nil
}

// stageRows создаёт глобальную временную таблицу по живой схеме
// целевой и загружает в неё кадр. Типы столбцов повторяют целевые,
// identity нейтрализуется, столбцы сопоставления становятся первичным
// ключом — дубликат в кадре проявится как нарушение целостности ещё
// на загрузке.
func (e *Engine) stageRows(ctx context.Context, tx *sql.Tx, tbl *schema.Table, rep *Report, match []string) (string, error) {
	temp := stagingName(rep.Table)

	columns := make([]mssql.CreateColumn, 0, len(rep.Frame.Columns()))
	for _, name := range rep.Frame.Columns() {
		col, ok := tbl.Column(name)
		if !ok {
			// кадр уже сверен с таблицей
			continue
		}
		spec := col.Spec()
		spec.Identity = false
		dtype, size := mssql.SplitTypeSize(spec.String())
		columns = append(columns, mssql.CreateColumn{
			Name:    name,
			Type:    dtype,
			Size:    size,
			NotNull: !col.Nullable,
		})
	}

	safeTemp, err := mssql.Escape(ctx, tx, temp)
	if err != nil {
		return "", err
	}
	stmt, args, err := mssql.BuildCreateTable(safeTemp, columns, match, false)
	if err != nil {
		return "", err
	}
	if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
		return "", mssql.Classify(temp, err)
	}
	if err := e.insertRows(ctx, tx, tbl, temp, rep.Frame, false, rep); err != nil {
		return "", err
	}
	return temp, nil
}

// resolveMatchColumns выбирает столбцы сопоставления: явные либо
// первичный ключ таблицы. Все они должны присутствовать в кадре.
func (e *Engine) resolveMatchColumns(tbl *schema.Table, rep *Report, matchColumns []string) ([]string, error) {
	match := append([]string(nil), matchColumns...)
	if len(match) == 0 {
		for _, col := range tbl.PrimaryKey() {
			match = append(match, col.Name)
		}
		if len(match) == 0 {
			return nil, &mssql.UndefinedPrimaryKeyError{Table: rep.Table}
		}
	}
	for _, name := range match {
		if !rep.Frame.HasColumn(name) {
			return nil, &schema.UndefinedColumnError{Column: name}
		}
	}
	return match, nil
}

func (e *Engine) updateMissingTable(table string) error {
	msg := fmt.Sprintf("attempt to update table %s which does not exist", table)
	if e.config.AdjustSQLObjects {
		msg += "; AdjustSQLObjects=true does not apply when updating a table that does not exist"
	}
	return errors.New(msg)
}

func affectedRows(res sql.Result, f *frame.Frame) int {
	if res != nil {
		if n, err := res.RowsAffected(); err == nil && n >= 0 {
			return int(n)
		}
	}
	return f.NumRows()
}

func columnsExcept(columns, except []string) []string {
	out := make([]string, 0, len(columns))
	for _, name := range columns {
		skip := false
		for _, ex := range except {
			if name == ex {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, name)
		}
	}
	return out
}

// stagingName строит имя глобальной временной таблицы для загрузки
// кадра. Схема в имени цели отбрасывается: временные таблицы живут в
// tempdb.
func stagingName(table string) string {
	if i := strings.LastIndex(table, "."); i >= 0 {
		table = table[i+1:]
	}
	return "##__source_" + table
}
