// Package pipeline выполняет описанные в YAML загрузки: читает кадр из
// источника (СУБД, CSV/XLSX-файла или брокера сообщений) и пишет его в
// SQL Server через движок записи. Прогон журналируется в аудит, итог
// публикуется в Redis. Брокерные источники потребляются в цикле до
// отмены контекста: каждый батч пишется с повторами, перед целевой
// базой стоит circuit breaker.
package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ruslano69/mssqlframe/pkg/adapters"
	"github.com/ruslano69/mssqlframe/pkg/adapters/mssql"
	"github.com/ruslano69/mssqlframe/pkg/archive"
	"github.com/ruslano69/mssqlframe/pkg/audit"
	"github.com/ruslano69/mssqlframe/pkg/brokers"
	"github.com/ruslano69/mssqlframe/pkg/core/frame"
	"github.com/ruslano69/mssqlframe/pkg/core/infer"
	"github.com/ruslano69/mssqlframe/pkg/resilience"
	"github.com/ruslano69/mssqlframe/pkg/resultlog"
	"github.com/ruslano69/mssqlframe/pkg/retry"
	"github.com/ruslano69/mssqlframe/pkg/sync"
	"github.com/ruslano69/mssqlframe/pkg/xlsx"

	// регистрация источников в фабрике
	_ "github.com/ruslano69/mssqlframe/pkg/adapters/mysql"
	_ "github.com/ruslano69/mssqlframe/pkg/adapters/postgres"
	_ "github.com/ruslano69/mssqlframe/pkg/adapters/sqlite"
)

// RunStats представляет статистику прогона конвейера
type RunStats struct {
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
	RowsWritten int
	Attempts    int
	Batches     int
	Adjustments []string
}

// Runner выполняет один прогон конвейера по конфигурации
type Runner struct {
	config  *Config
	stats   RunStats
	auditDB *sql.DB // открывается для audit type: sqlite
}

// NewRunner создает Runner для конфигурации
func NewRunner(config *Config) *Runner {
	return &Runner{config: config}
}

// Run загружает конфигурацию из файла и выполняет прогон
func Run(ctx context.Context, configPath string) (*RunStats, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	runner := NewRunner(config)
	err = runner.Execute(ctx)
	stats := runner.GetStats()
	return &stats, err
}

// GetStats возвращает статистику прогона
func (r *Runner) GetStats() RunStats {
	return r.stats
}

// Execute выполняет прогон: загрузка источника, запись в цель,
// журналирование итога. Итог публикуется и при ошибке, на свежем
// контексте — отмена прогона не должна оставить оркестратор без
// результата.
func (r *Runner) Execute(ctx context.Context) error {
	r.stats.StartTime = time.Now()

	logger, err := r.openAudit()
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}

	execErr := r.run(ctx, logger)

	r.stats.EndTime = time.Now()
	r.stats.Duration = r.stats.EndTime.Sub(r.stats.StartTime)

	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	r.logRun(flushCtx, logger, execErr)
	pubErr := r.publishResult(flushCtx, execErr)

	if cerr := logger.Close(); cerr != nil && execErr == nil {
		execErr = fmt.Errorf("failed to close audit log: %w", cerr)
	}
	if r.auditDB != nil {
		r.auditDB.Close()
	}

	if execErr != nil {
		return execErr
	}
	if pubErr != nil {
		return fmt.Errorf("failed to publish run result: %w", pubErr)
	}
	return nil
}

func (r *Runner) run(ctx context.Context, logger audit.Logger) error {
	adapter, err := mssql.Connect(ctx, mssql.Config{
		DSN:    r.config.Target.DSN,
		Driver: r.config.Target.Driver,
		Schema: r.config.Target.Schema,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to target: %w", err)
	}
	defer adapter.Close()

	engine := sync.New(adapter, sync.Config{
		AdjustSQLObjects:          r.config.Target.Adjust,
		IncludeMetadataTimestamps: r.config.Target.Timestamps,
		AdjustAttempts:            r.config.Target.AdjustAttempts,
	}).WithAudit(logger)

	if err := r.archiveTarget(ctx, adapter, logger); err != nil {
		return fmt.Errorf("failed to archive target table: %w", err)
	}

	retryer, err := retry.NewRetryer(r.retryConfig())
	if err != nil {
		return fmt.Errorf("invalid retry configuration: %w", err)
	}

	var execErr error
	if r.config.Source.IsBroker() {
		execErr = r.consume(ctx, engine, retryer)
	} else {
		f, err := r.loadFrame(ctx)
		if err != nil {
			execErr = fmt.Errorf("failed to load source: %w", err)
		} else {
			execErr = r.writeFrame(ctx, engine, retryer, f)
		}
	}

	// Close сохраняет DLQ на диск: эта ошибка важна даже при
	// успешной записи
	if cerr := retryer.Close(); cerr != nil {
		execErr = errors.Join(execErr, fmt.Errorf("failed to save dead letter queue: %w", cerr))
	}
	return execErr
}

// archiveTarget снимает целевую таблицу перед записью, когда архив
// включен вместе с согласованием схемы. Отсутствие таблицы не ошибка:
// архивировать нечего, таблицу создаст движок.
func (r *Runner) archiveTarget(ctx context.Context, adapter *mssql.Adapter, logger audit.Logger) error {
	if r.config.Archive == nil || !r.config.Target.Adjust {
		return nil
	}

	archiver, err := archive.New(ctx, *r.config.Archive)
	if err != nil {
		return err
	}

	location, err := archiver.SnapshotTable(ctx, adapter, r.config.Target.Table)
	if err != nil {
		var failure *mssql.Failure
		if errors.As(err, &failure) && failure.Kind == mssql.FailureTableDoesNotExist {
			return nil
		}
		return err
	}

	logger.Log(ctx, audit.NewEntry(audit.OpArchive, audit.StatusSuccess).
		WithResource(r.config.Target.Table).
		WithMetadata("location", location))
	return nil
}

// loadFrame читает кадр из неброкерного источника
func (r *Runner) loadFrame(ctx context.Context) (*frame.Frame, error) {
	src := r.config.Source
	if src.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(src.Timeout)*time.Second)
		defer cancel()
	}

	switch src.Type {
	case "mssql":
		return r.loadMSSQL(ctx)
	case "mysql", "postgres", "sqlite":
		return r.loadDatabase(ctx)
	case "csv":
		f, err := frame.ReadCSVFile(src.Path)
		if err != nil {
			return nil, err
		}
		return typed(f)
	case "xlsx":
		f, err := xlsx.FromXLSX(src.Path, src.Sheet)
		if err != nil {
			return nil, err
		}
		return typed(f)
	}
	return nil, fmt.Errorf("unsupported source type '%s'", src.Type)
}

// typed выводит типы столбцов файла: CSV и XLSX отдают строки.
// Типизированные значения живут в результирующем фрейме, исходный
// не меняется.
func typed(f *frame.Frame) (*frame.Frame, error) {
	res, err := infer.Infer(f)
	if err != nil {
		return nil, fmt.Errorf("failed to infer column types: %w", err)
	}
	return res.Frame, nil
}

func (r *Runner) loadMSSQL(ctx context.Context) (*frame.Frame, error) {
	src := r.config.Source
	source, err := mssql.Connect(ctx, mssql.Config{DSN: src.DSN, Schema: src.Schema})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to source: %w", err)
	}
	defer source.Close()

	if src.Query != "" {
		return source.Query(ctx, src.Query)
	}
	f, _, err := source.ReadTable(ctx, src.Table, mssql.ReadOptions{})
	return f, err
}

func (r *Runner) loadDatabase(ctx context.Context) (*frame.Frame, error) {
	src := r.config.Source
	source, err := adapters.New(ctx, adapters.Config{
		Type:    src.Type,
		DSN:     src.DSN,
		Schema:  src.Schema,
		Timeout: time.Duration(src.Timeout) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to source: %w", err)
	}
	defer source.Close(ctx)

	if src.Query != "" {
		return source.ReadFrame(ctx, src.Query)
	}
	return source.ReadTable(ctx, src.Table, 0)
}

// writeFrame пишет кадр в цель с повторами; сбойный батч уходит в DLQ
func (r *Runner) writeFrame(ctx context.Context, engine *sync.Engine, retryer *retry.Retryer, f *frame.Frame) error {
	batch := frame.NewBatch(r.config.Target.Table, f)

	var rep *sync.Report
	err := retryer.DoBatch(ctx, func(ctx context.Context) error {
		var werr error
		rep, werr = r.write(ctx, engine, f)
		return werr
	}, batch)

	if rep != nil {
		r.stats.RowsWritten += rep.Rows
		r.stats.Attempts += rep.Attempts
		r.stats.Adjustments = append(r.stats.Adjustments, rep.Adjustments...)
	}
	return err
}

// write выполняет настроенную операцию записи
func (r *Runner) write(ctx context.Context, engine *sync.Engine, f *frame.Frame) (*sync.Report, error) {
	t := r.config.Target
	switch t.Operation {
	case "insert":
		return engine.Insert(ctx, t.Table, f)
	case "update":
		return engine.Update(ctx, t.Table, f, t.MatchColumns...)
	case "merge":
		return engine.Merge(ctx, t.Table, f, sync.MergeOptions{
			MatchColumns:   t.MatchColumns,
			DeleteRequires: t.DeleteRequires,
		})
	case "upsert":
		return engine.Upsert(ctx, t.Table, f, t.MatchColumns...)
	}
	return nil, fmt.Errorf("unsupported operation '%s'", t.Operation)
}

// lastAcker подтверждает или возвращает последнее полученное сообщение
// (RabbitMQ)
type lastAcker interface {
	AckLast() error
	NackLast(requeue bool) error
}

// lastCommitter фиксирует смещение последнего сообщения (Kafka)
type lastCommitter interface {
	CommitLast(ctx context.Context) error
}

// consume потребляет батчи из брокера до отмены контекста или до
// лимита max_batches. Запись каждого батча защищена circuit breaker
// и повторами; перед чтением очередного сообщения потребитель ждет,
// пока circuit снова станет проходимым.
func (r *Runner) consume(ctx context.Context, engine *sync.Engine, retryer *retry.Retryer) error {
	src := r.config.Source

	broker, err := brokers.New(src.Broker.toBrokers(src.Type))
	if err != nil {
		return err
	}
	if err := broker.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to broker: %w", err)
	}
	defer broker.Close()

	breaker, err := r.newBreaker()
	if err != nil {
		return err
	}

	var failed int
	var lastErr error
	maxBatches := src.Broker.MaxBatches

	for {
		if ctx.Err() != nil {
			break
		}
		if maxBatches > 0 && r.stats.Batches >= maxBatches {
			break
		}

		if err := breaker.WaitUntilReady(ctx); err != nil {
			break // контекст отменен
		}

		data, err := broker.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			return fmt.Errorf("failed to receive message: %w", err)
		}

		batch, f, decodeErr := decodeBatch(data)
		if decodeErr != nil {
			// Ядовитое сообщение: подтверждаем, чтобы не зациклить
			// доставку, и считаем батч сбойным
			if ackErr := r.acknowledge(ctx, broker, nil); ackErr != nil {
				return fmt.Errorf("failed to acknowledge message: %w", ackErr)
			}
			r.stats.Batches++
			failed++
			lastErr = decodeErr
			continue
		}

		writeErr := r.writeBatch(ctx, engine, retryer, breaker, batch, f)
		r.stats.Batches++
		if ackErr := r.acknowledge(ctx, broker, writeErr); ackErr != nil {
			return fmt.Errorf("failed to acknowledge message: %w", ackErr)
		}
		if writeErr != nil {
			failed++
			lastErr = writeErr
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d batches failed, last error: %w", failed, r.stats.Batches, lastErr)
	}
	return nil
}

func decodeBatch(data []byte) (*frame.Batch, *frame.Frame, error) {
	batch, err := frame.DecodeJSON(data)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode batch: %w", err)
	}
	f, err := batch.Frame()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid batch payload: %w", err)
	}
	return batch, f, nil
}

func (r *Runner) writeBatch(ctx context.Context, engine *sync.Engine, retryer *retry.Retryer, breaker *resilience.CircuitBreaker, batch *frame.Batch, f *frame.Frame) error {
	return breaker.Execute(ctx, func(ctx context.Context) error {
		var rep *sync.Report
		err := retryer.DoBatch(ctx, func(ctx context.Context) error {
			var werr error
			rep, werr = r.write(ctx, engine, f)
			return werr
		}, batch)

		if rep != nil {
			r.stats.RowsWritten += rep.Rows
			r.stats.Attempts += rep.Attempts
		}
		return err
	})
}

// acknowledge завершает обработку последнего сообщения. RabbitMQ
// подтверждает доставку либо возвращает сообщение; возврат в очередь
// не используется — сбойный батч сохранен в DLQ, а возврат зациклил
// бы безнадежное сообщение. Kafka фиксирует смещение только при
// успехе: незафиксированные сообщения группа перечитает после
// перезапуска.
func (r *Runner) acknowledge(ctx context.Context, broker brokers.MessageBroker, writeErr error) error {
	switch b := broker.(type) {
	case lastAcker:
		if writeErr == nil {
			return b.AckLast()
		}
		return b.NackLast(false)
	case lastCommitter:
		if writeErr == nil {
			return b.CommitLast(ctx)
		}
	}
	return nil
}

func (r *Runner) retryConfig() retry.Config {
	if r.config.Retry == nil {
		return retry.DefaultConfig()
	}
	return r.config.Retry.toRetry()
}

func (r *Runner) newBreaker() (*resilience.CircuitBreaker, error) {
	cfg := resilience.DefaultConfig("pipeline:" + r.config.Name)
	if b := r.config.Breaker; b != nil {
		cfg.Enabled = b.Enabled
		if b.MaxFailures > 0 {
			cfg.MaxFailures = uint32(b.MaxFailures)
		}
		if b.Timeout > 0 {
			cfg.Timeout = time.Duration(b.Timeout) * time.Second
		}
	}
	cfg.IsFailure = transientFailure()

	breaker, err := resilience.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("invalid circuit breaker configuration: %w", err)
	}
	return breaker, nil
}

// transientFailure относит к сбоям цели только временные ошибки SQL
// Server и сети: нарушение ограничения в данных не повод открывать
// circuit.
func transientFailure() func(error) bool {
	patterns := retry.TransientErrors()
	return func(err error) bool {
		if err == nil {
			return false
		}
		msg := err.Error()
		for _, pattern := range patterns {
			if strings.Contains(msg, pattern) {
				return true
			}
		}
		return false
	}
}

// openAudit собирает журнал операций по конфигурации
func (r *Runner) openAudit() (audit.Logger, error) {
	a := r.config.Audit
	level := r.auditLevel()
	loggerConfig := audit.LoggerConfig{
		DefaultLevel:  level,
		DefaultSource: r.config.Name,
	}

	switch a.Type {
	case "", "none":
		return audit.NewNullLogger(), nil

	case "console":
		return audit.NewLogger(loggerConfig, audit.NewConsoleAppender(level, false)), nil

	case "file":
		appender, err := audit.NewFileAppender(audit.FileAppenderConfig{
			FilePath:   a.Path,
			Level:      level,
			FormatJSON: true,
		})
		if err != nil {
			return nil, err
		}
		return audit.NewLogger(loggerConfig, appender), nil

	case "sqlite":
		db, err := sql.Open("sqlite", a.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit database: %w", err)
		}
		appender, err := audit.NewDatabaseAppender(audit.DatabaseAppenderConfig{
			DB:              db,
			TableName:       a.Table,
			Level:           level,
			AutoCreateTable: true,
		})
		if err != nil {
			db.Close()
			return nil, err
		}
		r.auditDB = db
		return audit.NewLogger(loggerConfig, appender), nil
	}

	return nil, fmt.Errorf("unsupported audit type '%s'", a.Type)
}

func (r *Runner) auditLevel() audit.Level {
	switch r.config.Audit.Level {
	case "minimal":
		return audit.LevelMinimal
	case "full":
		return audit.LevelFull
	}
	return audit.LevelStandard
}

// logRun пишет итоговую запись прогона в аудит
func (r *Runner) logRun(ctx context.Context, logger audit.Logger, execErr error) {
	entry := audit.NewEntry(audit.OpRun, audit.StatusSuccess).
		WithResource(r.config.Target.Table).
		WithRows(int64(r.stats.RowsWritten)).
		WithAttempts(r.stats.Attempts).
		WithAdjustments(r.stats.Adjustments).
		WithDuration(r.stats.Duration).
		WithError(execErr)
	if r.stats.Batches > 0 {
		entry = entry.WithMetadata("batches", r.stats.Batches)
	}
	logger.Log(ctx, entry)
}

// publishResult публикует итог прогона в Redis под именем конвейера
func (r *Runner) publishResult(ctx context.Context, execErr error) error {
	if r.config.ResultLog == nil {
		return nil
	}

	publisher := resultlog.NewPublisher(*r.config.ResultLog)
	defer publisher.Close()

	return publisher.Publish(ctx, r.config.Name, resultlog.RunStats{
		StartedAt:   r.stats.StartTime,
		FinishedAt:  r.stats.EndTime,
		RowsWritten: r.stats.RowsWritten,
		Attempts:    r.stats.Attempts,
	}, execErr)
}
