package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/ruslano69/mssqlframe/pkg/adapters"
	"github.com/ruslano69/mssqlframe/pkg/adapters/base"
	"github.com/ruslano69/mssqlframe/pkg/core/frame"
)

// SourceType идентификатор SQLite источника
const SourceType = "sqlite"

const driverSqlite = "sqlite"

// Compile-time check: Source должен реализовывать интерфейс adapters.Source
var _ adapters.Source = (*Source)(nil)

// Регистрация источника в глобальной фабрике
func init() {
	adapters.Register(SourceType, func() adapters.Source {
		return &Source{}
	})
}

// Source читает кадры из SQLite.
// Типы SQLite динамические: DATETIME хранится текстом и приходит строкой,
// вывод SQL-типов для целевой таблицы делает pkg/core/infer по содержимому
type Source struct {
	db     *sql.DB
	config adapters.Config
}

// Connect устанавливает подключение к SQLite
func (s *Source) Connect(ctx context.Context, cfg adapters.Config) error {
	db, err := sql.Open(driverSqlite, cfg.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Проверяем подключение
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// Файл может одновременно писаться другим процессом:
	// ждем снятия блокировки вместо немедленной ошибки SQLITE_BUSY
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return fmt.Errorf("failed to set busy_timeout: %w", err)
	}

	s.db = db
	s.config = cfg

	return nil
}

// Close закрывает соединение с БД
func (s *Source) Close(ctx context.Context) error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping проверяет доступность БД
func (s *Source) Ping(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("source not connected")
	}
	return s.db.PingContext(ctx)
}

// GetDatabaseType возвращает тип СУБД
func (s *Source) GetDatabaseType() string {
	return SourceType
}

// GetDatabaseVersion возвращает версию SQLite
func (s *Source) GetDatabaseVersion(ctx context.Context) (string, error) {
	var version string
	err := s.db.QueryRowContext(ctx, "SELECT sqlite_version()").Scan(&version)
	if err != nil {
		return "", fmt.Errorf("failed to get version: %w", err)
	}
	return "SQLite " + version, nil
}

// GetTableNames возвращает список всех таблиц в БД
func (s *Source) GetTableNames(ctx context.Context) ([]string, error) {
	query := `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table'
		  AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`

	rows, err := s.db.QueryContext(ctx, query)
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

	return tables, rows.Err()
}

// TableExists проверяет существование таблицы
func (s *Source) TableExists(ctx context.Context, tableName string) (bool, error) {
	query := `
		SELECT COUNT(*)
		FROM sqlite_master
		WHERE type = 'table' AND name = ?
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

// DB возвращает *sql.DB для прямого доступа (helper метод,
// используется тестами как встраиваемое хранилище)
func (s *Source) DB() *sql.DB {
	return s.db
}

// quoteIdentifier экранирует идентификатор двойными кавычками
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
