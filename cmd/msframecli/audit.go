package main

import (
	"database/sql"
	"fmt"

	"github.com/ruslano69/mssqlframe/pkg/audit"

	// драйвер sqlite для audit type: sqlite
	_ "modernc.org/sqlite"
)

// auditLog bundles a logger with the resources it owns.
type auditLog struct {
	Logger audit.Logger
	db     *sql.DB
}

// Close flushes the logger and releases the sqlite database, if any.
func (a *auditLog) Close() error {
	err := a.Logger.Close()
	if a.db != nil {
		if dbErr := a.db.Close(); err == nil {
			err = dbErr
		}
	}
	return err
}

// openAudit builds the audit logger for write commands from config.
// An empty audit type yields a null logger.
func openAudit(cfg AuditConfig) (*auditLog, error) {
	level := auditLevel(cfg.Level)
	loggerConfig := audit.LoggerConfig{
		DefaultLevel:  level,
		DefaultSource: "msframecli",
	}

	switch cfg.Type {
	case "", "none":
		return &auditLog{Logger: audit.NewNullLogger()}, nil

	case "console":
		return &auditLog{
			Logger: audit.NewLogger(loggerConfig, audit.NewConsoleAppender(level, false)),
		}, nil

	case "file":
		appender, err := audit.NewFileAppender(audit.FileAppenderConfig{
			FilePath:   cfg.Path,
			Level:      level,
			FormatJSON: true,
		})
		if err != nil {
			return nil, err
		}
		return &auditLog{Logger: audit.NewLogger(loggerConfig, appender)}, nil

	case "sqlite":
		db, err := sql.Open("sqlite", cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit database: %w", err)
		}
		appender, err := audit.NewDatabaseAppender(audit.DatabaseAppenderConfig{
			DB:              db,
			TableName:       cfg.Table,
			Level:           level,
			AutoCreateTable: true,
		})
		if err != nil {
			db.Close()
			return nil, err
		}
		return &auditLog{Logger: audit.NewLogger(loggerConfig, appender), db: db}, nil
	}

	return nil, fmt.Errorf("unsupported audit type '%s'", cfg.Type)
}

func auditLevel(s string) audit.Level {
	switch s {
	case "minimal":
		return audit.LevelMinimal
	case "full":
		return audit.LevelFull
	}
	return audit.LevelStandard
}
