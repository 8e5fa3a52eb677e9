package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// DatabaseAppender - журнал операций в таблице SQL. Согласования
// схемы и предупреждения хранятся JSON-массивами, чтобы запись
// оставалась одной строкой таблицы.
type DatabaseAppender struct {
	db         *sql.DB
	tableName  string
	level      Level
	batchSize  int
	batchQueue []*Entry
	insertStmt *sql.Stmt
}

// DatabaseAppenderConfig - конфигурация database appender
type DatabaseAppenderConfig struct {
	// DB - подключение к базе данных
	DB *sql.DB

	// TableName - имя таблицы журнала
	TableName string

	// Level - уровень детализации
	Level Level

	// BatchSize - размер batch для группового insert (0 = без batching)
	BatchSize int

	// AutoCreateTable - автоматически создать таблицу если не существует
	AutoCreateTable bool
}

// NewDatabaseAppender - создать database appender
func NewDatabaseAppender(config DatabaseAppenderConfig) (*DatabaseAppender, error) {
	if config.DB == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	if config.TableName == "" {
		config.TableName = "audit_log"
	}

	da := &DatabaseAppender{
		db:         config.DB,
		tableName:  config.TableName,
		level:      config.Level,
		batchSize:  config.BatchSize,
		batchQueue: make([]*Entry, 0, config.BatchSize),
	}

	if config.AutoCreateTable {
		if err := da.createTable(); err != nil {
			return nil, fmt.Errorf("failed to create audit table: %w", err)
		}
	}

	if err := da.prepareInsert(); err != nil {
		return nil, fmt.Errorf("failed to prepare insert statement: %w", err)
	}

	return da, nil
}

// createTable - создать таблицу журнала
func (da *DatabaseAppender) createTable() error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(255) PRIMARY KEY,
			timestamp TIMESTAMP NOT NULL,
			operation VARCHAR(50) NOT NULL,
			status VARCHAR(20) NOT NULL,
			user_name VARCHAR(255),
			source VARCHAR(255),
			resource VARCHAR(255),
			rows_written BIGINT DEFAULT 0,
			attempts INTEGER DEFAULT 0,
			duration_ms BIGINT DEFAULT 0,
			adjustments TEXT,
			warnings TEXT,
			error_message TEXT,
			metadata TEXT,
			data TEXT
		)
	`, da.tableName)

	if _, err := da.db.Exec(query); err != nil {
		return err
	}

	indexes := []string{
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_timestamp ON %s(timestamp)", da.tableName, da.tableName),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_operation ON %s(operation)", da.tableName, da.tableName),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_status ON %s(status)", da.tableName, da.tableName),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_resource ON %s(resource)", da.tableName, da.tableName),
	}

	for _, indexQuery := range indexes {
		if _, err := da.db.Exec(indexQuery); err != nil {
			// Индексы не обязательны, таблица уже есть
			continue
		}
	}

	return nil
}

// prepareInsert - подготовить insert statement
func (da *DatabaseAppender) prepareInsert() error {
	query := fmt.Sprintf(`
		INSERT INTO %s (
			id, timestamp, operation, status, user_name, source, resource,
			rows_written, attempts, duration_ms, adjustments, warnings,
			error_message, metadata, data
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, da.tableName)

	stmt, err := da.db.Prepare(query)
	if err != nil {
		return err
	}

	da.insertStmt = stmt
	return nil
}

// Append - записать entry в базу данных
func (da *DatabaseAppender) Append(ctx context.Context, entry *Entry) error {
	filtered := entry.FilterByLevel(da.level)

	// Batching режим
	if da.batchSize > 0 {
		da.batchQueue = append(da.batchQueue, filtered)

		if len(da.batchQueue) >= da.batchSize {
			return da.flushBatch(ctx)
		}

		return nil
	}

	return da.execInsert(ctx, da.insertStmt, filtered)
}

// insertArgs - аргументы insert в порядке столбцов таблицы
func insertArgs(entry *Entry) []interface{} {
	return []interface{}{
		entry.ID,
		entry.Timestamp,
		entry.Operation,
		entry.Status,
		entry.User,
		entry.Source,
		entry.Resource,
		entry.RowsWritten,
		entry.Attempts,
		entry.Duration.Milliseconds(),
		marshalList(entry.Adjustments),
		marshalList(entry.Warnings),
		entry.ErrorMessage,
		marshalJSON(entry.Metadata, "{}"),
		marshalJSON(entry.Data, "null"),
	}
}

// marshalList кодирует список строк JSON-массивом; пустой список
// хранится пустой строкой
func marshalList(items []string) string {
	if len(items) == 0 {
		return ""
	}
	data, err := json.Marshal(items)
	if err != nil {
		return ""
	}
	return string(data)
}

func marshalJSON(v interface{}, fallback string) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fallback
	}
	return string(data)
}

func (da *DatabaseAppender) execInsert(ctx context.Context, stmt *sql.Stmt, entry *Entry) error {
	_, err := stmt.ExecContext(ctx, insertArgs(entry)...)
	return err
}

// flushBatch - записать batch записей одной транзакцией
func (da *DatabaseAppender) flushBatch(ctx context.Context) error {
	if len(da.batchQueue) == 0 {
		return nil
	}

	tx, err := da.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt := tx.StmtContext(ctx, da.insertStmt)
	defer stmt.Close()

	for _, entry := range da.batchQueue {
		if err := da.execInsert(ctx, stmt, entry); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	da.batchQueue = da.batchQueue[:0]

	return nil
}

// Flush - сбросить batch queue
func (da *DatabaseAppender) Flush() error {
	if da.batchSize > 0 && len(da.batchQueue) > 0 {
		return da.flushBatch(context.Background())
	}
	return nil
}

// Close - закрыть database appender
func (da *DatabaseAppender) Close() error {
	if err := da.Flush(); err != nil {
		return err
	}

	if da.insertStmt != nil {
		return da.insertStmt.Close()
	}

	return nil
}

// QueryFilter - фильтр для выборки из журнала
type QueryFilter struct {
	Operation Operation
	Status    Status
	User      string
	Resource  string
	StartTime time.Time
	EndTime   time.Time
	Limit     int
}

// where - собрать условия фильтра
func (f QueryFilter) where() (string, []interface{}) {
	query := " WHERE 1=1"
	args := make([]interface{}, 0)

	if f.Operation != "" {
		query += " AND operation = ?"
		args = append(args, f.Operation)
	}
	if f.Status != "" {
		query += " AND status = ?"
		args = append(args, f.Status)
	}
	if f.User != "" {
		query += " AND user_name = ?"
		args = append(args, f.User)
	}
	if f.Resource != "" {
		query += " AND resource = ?"
		args = append(args, f.Resource)
	}
	if !f.StartTime.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, f.StartTime)
	}
	if !f.EndTime.IsZero() {
		query += " AND timestamp <= ?"
		args = append(args, f.EndTime)
	}

	return query, args
}

// Query - выбрать записи журнала
func (da *DatabaseAppender) Query(ctx context.Context, filter QueryFilter) ([]*Entry, error) {
	where, args := filter.where()
	query := fmt.Sprintf("SELECT * FROM %s%s ORDER BY timestamp DESC", da.tableName, where)

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := da.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	entries := make([]*Entry, 0)

	for rows.Next() {
		entry := &Entry{}
		var adjustmentsJSON, warningsJSON, metadataJSON, dataJSON string
		var durationMs int64

		err := rows.Scan(
			&entry.ID,
			&entry.Timestamp,
			&entry.Operation,
			&entry.Status,
			&entry.User,
			&entry.Source,
			&entry.Resource,
			&entry.RowsWritten,
			&entry.Attempts,
			&durationMs,
			&adjustmentsJSON,
			&warningsJSON,
			&entry.ErrorMessage,
			&metadataJSON,
			&dataJSON,
		)

		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		if adjustmentsJSON != "" {
			json.Unmarshal([]byte(adjustmentsJSON), &entry.Adjustments)
		}
		if warningsJSON != "" {
			json.Unmarshal([]byte(warningsJSON), &entry.Warnings)
		}
		if metadataJSON != "" {
			json.Unmarshal([]byte(metadataJSON), &entry.Metadata)
		}
		if dataJSON != "" && dataJSON != "null" {
			json.Unmarshal([]byte(dataJSON), &entry.Data)
		}

		entry.Duration = time.Duration(durationMs) * time.Millisecond

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return entries, nil
}

// Count - подсчитать записи журнала
func (da *DatabaseAppender) Count(ctx context.Context, filter QueryFilter) (int64, error) {
	where, args := filter.where()
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", da.tableName, where)

	var count int64
	err := da.db.QueryRowContext(ctx, query, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count audit entries: %w", err)
	}

	return count, nil
}

// DeleteOlderThan - удалить старые записи журнала
func (da *DatabaseAppender) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE timestamp < ?", da.tableName)

	result, err := da.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old entries: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}
