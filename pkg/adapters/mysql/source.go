package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	mysqldrv "github.com/go-sql-driver/mysql"

	"github.com/ruslano69/mssqlframe/pkg/adapters"
	"github.com/ruslano69/mssqlframe/pkg/adapters/base"
	"github.com/ruslano69/mssqlframe/pkg/core/frame"
)

// SourceType идентификатор MySQL источника
const SourceType = "mysql"

// Compile-time check: Source должен реализовывать интерфейс adapters.Source
var _ adapters.Source = (*Source)(nil)

func init() {
	// Регистрируем MySQL источник в фабрике
	adapters.Register(SourceType, func() adapters.Source {
		return &Source{}
	})
}

// Source читает кадры из MySQL
type Source struct {
	db     *sql.DB
	config adapters.Config
}

// Connect подключается к MySQL базе данных
func (s *Source) Connect(ctx context.Context, cfg adapters.Config) error {
	dsn, err := prepareDSN(cfg.DSN)
	if err != nil {
		return fmt.Errorf("invalid MySQL DSN: %w", err)
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		db.SetMaxIdleConns(cfg.MinConns)
	}

	// Проверяем соединение
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	s.config = cfg

	return nil
}

// prepareDSN включает parseTime, чтобы DATETIME/TIMESTAMP колонки
// сканировались как time.Time, а не как []byte
func prepareDSN(dsn string) (string, error) {
	cfg, err := mysqldrv.ParseDSN(dsn)
	if err != nil {
		return "", err
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

// Close закрывает соединение с базой данных
func (s *Source) Close(ctx context.Context) error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping проверяет соединение с базой данных
func (s *Source) Ping(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("source not connected")
	}
	return s.db.PingContext(ctx)
}

// GetDatabaseType возвращает тип источника
func (s *Source) GetDatabaseType() string {
	return SourceType
}

// GetDatabaseVersion возвращает версию MySQL
func (s *Source) GetDatabaseVersion(ctx context.Context) (string, error) {
	var version string
	err := s.db.QueryRowContext(ctx, "SELECT VERSION()").Scan(&version)
	if err != nil {
		return "", fmt.Errorf("failed to get version: %w", err)
	}
	return version, nil
}

// GetTableNames возвращает список всех таблиц в базе данных
func (s *Source) GetTableNames(ctx context.Context) ([]string, error) {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = DATABASE()
		  AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var table string
		if err := rows.Scan(&table); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, table)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tables: %w", err)
	}

	return tables, nil
}

// TableExists проверяет существование таблицы
func (s *Source) TableExists(ctx context.Context, tableName string) (bool, error) {
	query := `
		SELECT COUNT(*)
		FROM information_schema.tables
		WHERE table_schema = DATABASE()
		  AND table_name = ?
	`

	var count int
	err := s.db.QueryRowContext(ctx, query, tableName).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check table existence: %w", err)
	}

	return count > 0, nil
}

// ReadTable читает таблицу целиком в кадр.
// limit > 0 ограничивает число строк
func (s *Source) ReadTable(ctx context.Context, tableName string, limit int) (*frame.Frame, error) {
	query := fmt.Sprintf("SELECT * FROM %s", quoteIdentifier(tableName))
	if limit > 0 {
		query = fmt.Sprintf("%s LIMIT %d", query, limit)
	}
	return s.ReadFrame(ctx, query)
}

// ReadFrame выполняет SELECT и возвращает результат кадром
func (s *Source) ReadFrame(ctx context.Context, query string, args ...any) (*frame.Frame, error) {
	ctx, cancel := base.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	return base.QueryFrame(ctx, s.db, query, args...)
}

// quoteIdentifier экранирует идентификатор обратными кавычками
func quoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
