package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ruslano69/mssqlframe/pkg/adapters"
	"github.com/ruslano69/mssqlframe/pkg/adapters/base"
	"github.com/ruslano69/mssqlframe/pkg/core/frame"
)

// SourceType идентификатор PostgreSQL источника
const SourceType = "postgres"

// Compile-time check: Source должен реализовывать интерфейс adapters.Source
var _ adapters.Source = (*Source)(nil)

// Регистрация источника в глобальной фабрике
func init() {
	adapters.Register(SourceType, func() adapters.Source {
		return &Source{}
	})
}

// Source читает кадры из PostgreSQL.
// Работает через pgxpool: NUMERIC/DECIMAL колонки приходят как
// pgtype.Numeric и декодируются без потери точности
type Source struct {
	pool   *pgxpool.Pool
	schema string // public, custom, etc.
	config adapters.Config
}

// Connect устанавливает подключение к PostgreSQL
func (s *Source) Connect(ctx context.Context, cfg adapters.Config) error {
	// Парсим connection string
	config, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return fmt.Errorf("failed to parse connection string: %w", err)
	}

	// Настраиваем pool из конфига
	if cfg.MaxConns > 0 {
		config.MaxConns = int32(cfg.MaxConns)
	} else {
		config.MaxConns = 10 // default
	}

	if cfg.MinConns > 0 {
		config.MinConns = int32(cfg.MinConns)
	} else {
		config.MinConns = 2 // default
	}

	// Создаем connection pool
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Проверяем подключение
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.pool = pool
	s.config = cfg
	s.schema = cfg.Schema
	if s.schema == "" {
		s.schema = "public" // default schema
	}

	return nil
}

// Close закрывает connection pool
func (s *Source) Close(ctx context.Context) error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// Ping проверяет доступность БД
func (s *Source) Ping(ctx context.Context) error {
	if s.pool == nil {
		return fmt.Errorf("source not connected")
	}
	return s.pool.Ping(ctx)
}

// GetDatabaseType возвращает тип СУБД
func (s *Source) GetDatabaseType() string {
	return SourceType
}

// Schema возвращает текущую схему
func (s *Source) Schema() string {
	return s.schema
}

// GetDatabaseVersion возвращает версию PostgreSQL
func (s *Source) GetDatabaseVersion(ctx context.Context) (string, error) {
	var version string
	err := s.pool.QueryRow(ctx, "SELECT version()").Scan(&version)
	if err != nil {
		return "", fmt.Errorf("failed to get version: %w", err)
	}
	return version, nil
}

// GetTableNames возвращает список всех таблиц в текущей схеме
func (s *Source) GetTableNames(ctx context.Context) ([]string, error) {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1
		  AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`

	rows, err := s.pool.Query(ctx, query, s.schema)
	if err != nil {
		return nil, fmt.Errorf("failed to get table names: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tables: %w", err)
	}

	return tables, nil
}

// TableExists проверяет существование таблицы в текущей схеме
func (s *Source) TableExists(ctx context.Context, tableName string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM information_schema.tables
			WHERE table_schema = $1
			  AND table_name = $2
		)
	`

	var exists bool
	err := s.pool.QueryRow(ctx, query, s.schema, tableName).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check table existence: %w", err)
	}

	return exists, nil
}

// ReadTable читает таблицу целиком в кадр.
// limit > 0 ограничивает число строк
func (s *Source) ReadTable(ctx context.Context, tableName string, limit int) (*frame.Frame, error) {
	query := fmt.Sprintf("SELECT * FROM %s", s.qualify(tableName))
	if limit > 0 {
		query = fmt.Sprintf("%s LIMIT %d", query, limit)
	}
	return s.ReadFrame(ctx, query)
}

// ReadFrame выполняет SELECT и возвращает результат кадром
func (s *Source) ReadFrame(ctx context.Context, query string, args ...any) (*frame.Frame, error) {
	ctx, cancel := base.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	names := make([]string, len(fields))
	dbTypes := make([]string, len(fields))
	for i, fd := range fields {
		names[i] = fd.Name
		// BYTEA отличаем по OID, чтобы не превратить бинарные данные в строку
		if fd.DataTypeOID == pgtype.ByteaOID {
			dbTypes[i] = "BYTEA"
		}
	}

	var data [][]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}

		normalized := make([]any, len(values))
		for i, v := range values {
			normalized[i] = base.NormalizeValue(v, dbTypes[i])
		}
		data = append(data, normalized)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	f, err := frame.FromRows(names, data)
	if err != nil {
		return nil, fmt.Errorf("failed to build frame: %w", err)
	}
	return f, nil
}

// qualify достраивает имя таблицы до schema.table с экранированием.
// Имя с точкой считается уже квалифицированным
func (s *Source) qualify(tableName string) string {
	if schema, table, ok := strings.Cut(tableName, "."); ok {
		return quoteIdentifier(schema) + "." + quoteIdentifier(table)
	}
	return quoteIdentifier(s.schema) + "." + quoteIdentifier(tableName)
}

// quoteIdentifier экранирует идентификатор двойными кавычками
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
