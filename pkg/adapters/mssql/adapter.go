package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	// регистрация драйверов: go-mssqldb под именем "mssql",
	// ODBC-мост под именем "odbc" — см. driver_odbc.go
	_ "github.com/denisenkom/go-mssqldb"
)

// Имена зарегистрированных драйверов. Оба принимают плейсхолдеры "?".
const (
	DriverMSSQL = "mssql"
	DriverODBC  = "odbc"
)

// Config — параметры подключения к SQL Server.
type Config struct {
	DSN    string
	Driver string // mssql по умолчанию, odbc для подключения через unixODBC
	Schema string // схема для неквалифицированных имён таблиц, по умолчанию dbo

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func (c Config) driverName() string {
	if c.Driver == "" {
		return DriverMSSQL
	}
	return c.Driver
}

// Querier — общий срез *sql.DB и *sql.Tx: операции адаптера принимают
// его, чтобы одинаково работать в транзакции и вне её.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Adapter — подключение к SQL Server поверх database/sql.
type Adapter struct {
	config Config
	db     *sql.DB
}

// New создаёт адаптер без установки соединения.
func New(config Config) *Adapter {
	return &Adapter{config: config}
}

// Connect открывает пул соединений и проверяет его живость.
func (a *Adapter) Connect(ctx context.Context) error {
	db, err := sql.Open(a.config.driverName(), a.config.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if a.config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(a.config.MaxOpenConns)
	}
	if a.config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(a.config.MaxIdleConns)
	}
	if a.config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(a.config.ConnMaxLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}
	a.db = db
	return nil
}

// Connect создаёт адаптер и сразу подключается.
func Connect(ctx context.Context, config Config) (*Adapter, error) {
	a := New(config)
	if err := a.Connect(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

// Close закрывает пул соединений.
func (a *Adapter) Close() error {
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

// Ping проверяет соединение.
func (a *Adapter) Ping(ctx context.Context) error {
	if a.db == nil {
		return fmt.Errorf("not connected")
	}
	return a.db.PingContext(ctx)
}

// DB отдаёт пул соединений для операций вне транзакции.
func (a *Adapter) DB() *sql.DB {
	return a.db
}

// Begin начинает транзакцию. Ответственность за Commit или Rollback
// лежит на вызывающем.
func (a *Adapter) Begin(ctx context.Context) (*sql.Tx, error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

// ServerVersion возвращает версию сервера.
func (a *Adapter) ServerVersion(ctx context.Context) (string, error) {
	var v string
	err := a.db.QueryRowContext(ctx,
		"SELECT CAST(SERVERPROPERTY('ProductVersion') AS NVARCHAR(128))").Scan(&v)
	if err != nil {
		return "", fmt.Errorf("failed to read server version: %w", err)
	}
	return v, nil
}

// ParseTableName разбивает имя на схему и таблицу. Имя без точки
// получает схему из конфигурации либо dbo. Временные таблицы ("#...")
// не разбиваются: точек в их именах не бывает, а живут они в tempdb.
func (a *Adapter) ParseTableName(name string) (schemaName, tableName string) {
	defaultSchema := a.config.Schema
	if defaultSchema == "" {
		defaultSchema = "dbo"
	}
	if strings.HasPrefix(name, "#") {
		return defaultSchema, name
	}
	if i := strings.Index(name, "."); i >= 0 {
		return name[:i], name[i+1:]
	}
	return defaultSchema, name
}

// DropTable удаляет таблицу, экранируя имя на сервере.
func DropTable(ctx context.Context, q Querier, table string) error {
	safe, err := Escape(ctx, q, table)
	if err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx, "DROP TABLE "+safe.String()); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", safe, err)
	}
	return nil
}
