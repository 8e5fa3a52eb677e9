package audit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Logger - интерфейс журнала операций. Движок записи и конвейер
// отдают сюда по одной записи на операцию; куда она попадет,
// решают appenders.
type Logger interface {
	Log(ctx context.Context, entry *Entry) error
	Flush() error
	Close() error
}

// AuditLogger - журнал с наборами appenders и необязательной
// асинхронной записью
type AuditLogger struct {
	appenders    []Appender
	asyncMode    bool
	bufferSize   int
	entryChannel chan *Entry
	wg           sync.WaitGroup
	ctx          context.Context
	cancel       context.CancelFunc
	mu           sync.RWMutex
	config       LoggerConfig
}

// LoggerConfig - конфигурация журнала
type LoggerConfig struct {
	// AsyncMode - асинхронная запись в appenders
	AsyncMode bool

	// BufferSize - размер буфера для асинхронного режима
	BufferSize int

	// DefaultLevel - уровень детализации по умолчанию
	DefaultLevel Level

	// DefaultUser - пользователь по умолчанию (если не указан в записи)
	DefaultUser string

	// DefaultSource - источник по умолчанию (имя конвейера)
	DefaultSource string

	// FlushInterval - интервал автоматического flush (0 = отключен)
	FlushInterval time.Duration

	// OnError - callback при ошибке записи
	OnError func(error)
}

// NewLogger - создать журнал операций
func NewLogger(config LoggerConfig, appenders ...Appender) *AuditLogger {
	ctx, cancel := context.WithCancel(context.Background())

	logger := &AuditLogger{
		appenders:  appenders,
		asyncMode:  config.AsyncMode,
		bufferSize: config.BufferSize,
		ctx:        ctx,
		cancel:     cancel,
		config:     config,
	}

	if logger.bufferSize <= 0 {
		logger.bufferSize = 1000
	}

	if config.DefaultLevel == 0 {
		logger.config.DefaultLevel = LevelStandard
	}

	if logger.asyncMode {
		logger.entryChannel = make(chan *Entry, logger.bufferSize)
		logger.wg.Add(1)
		go logger.processEntries()
	}

	if config.FlushInterval > 0 {
		logger.wg.Add(1)
		go logger.autoFlush()
	}

	return logger
}

// Log - записать entry. Пустые пользователь и источник заполняются
// значениями по умолчанию из конфигурации.
func (l *AuditLogger) Log(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("entry is nil")
	}

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if entry.ID == "" {
		entry.ID = generateID()
	}

	if entry.User == "" && l.config.DefaultUser != "" {
		entry.User = l.config.DefaultUser
	}
	if entry.Source == "" && l.config.DefaultSource != "" {
		entry.Source = l.config.DefaultSource
	}

	// Асинхронный режим
	if l.asyncMode {
		if l.ctx.Err() != nil {
			return fmt.Errorf("logger is closed")
		}
		select {
		case l.entryChannel <- entry:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-l.ctx.Done():
			return fmt.Errorf("logger is closed")
		default:
			// Буфер переполнен, записываем синхронно
			return l.writeEntry(ctx, entry)
		}
	}

	return l.writeEntry(ctx, entry)
}

// writeEntry - записать entry во все appenders
func (l *AuditLogger) writeEntry(ctx context.Context, entry *Entry) error {
	l.mu.RLock()
	appenders := l.appenders
	l.mu.RUnlock()

	var firstError error

	for _, appender := range appenders {
		if err := appender.Append(ctx, entry); err != nil {
			if firstError == nil {
				firstError = err
			}
			l.handleError(fmt.Errorf("appender failed: %w", err))
		}
	}

	return firstError
}

// processEntries - обработка записей в асинхронном режиме
func (l *AuditLogger) processEntries() {
	defer l.wg.Done()

	for {
		select {
		case entry := <-l.entryChannel:
			if err := l.writeEntry(context.Background(), entry); err != nil {
				l.handleError(err)
			}

		case <-l.ctx.Done():
			// Обрабатываем оставшиеся записи
			l.drainChannel()
			return
		}
	}
}

// drainChannel - обработать оставшиеся записи в канале
func (l *AuditLogger) drainChannel() {
	for {
		select {
		case entry := <-l.entryChannel:
			l.writeEntry(context.Background(), entry)
		default:
			return
		}
	}
}

// autoFlush - автоматический flush appenders
func (l *AuditLogger) autoFlush() {
	defer l.wg.Done()

	ticker := time.NewTicker(l.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.Flush()

		case <-l.ctx.Done():
			return
		}
	}
}

// Flush - сбросить буферы всех appenders
func (l *AuditLogger) Flush() error {
	l.mu.RLock()
	appenders := l.appenders
	l.mu.RUnlock()

	var firstError error

	for _, appender := range appenders {
		if flusher, ok := appender.(interface{ Flush() error }); ok {
			if err := flusher.Flush(); err != nil {
				if firstError == nil {
					firstError = err
				}
				l.handleError(fmt.Errorf("flush failed: %w", err))
			}
		}
	}

	return firstError
}

// Close - закрыть журнал и все appenders
func (l *AuditLogger) Close() error {
	// Останавливаем прием новых записей
	l.cancel()

	// Ждем обработки всех записей
	l.wg.Wait()

	// Flush перед закрытием
	l.Flush()

	l.mu.RLock()
	appenders := l.appenders
	l.mu.RUnlock()

	var firstError error

	for _, appender := range appenders {
		if err := appender.Close(); err != nil {
			if firstError == nil {
				firstError = err
			}
			l.handleError(fmt.Errorf("close failed: %w", err))
		}
	}

	return firstError
}

// AddAppender - добавить appender
func (l *AuditLogger) AddAppender(appender Appender) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.appenders = append(l.appenders, appender)
}

// handleError - обработка ошибки
func (l *AuditLogger) handleError(err error) {
	if l.config.OnError != nil {
		l.config.OnError(err)
	}
}

// DefaultConfig - конфигурация по умолчанию
func DefaultConfig() LoggerConfig {
	return LoggerConfig{
		AsyncMode:     true,
		BufferSize:    1000,
		DefaultLevel:  LevelStandard,
		FlushInterval: 0,
		OnError:       nil,
	}
}

// SyncConfig - конфигурация для синхронного режима
func SyncConfig() LoggerConfig {
	return LoggerConfig{
		AsyncMode:     false,
		BufferSize:    0,
		DefaultLevel:  LevelStandard,
		FlushInterval: 0,
		OnError:       nil,
	}
}

// NullLogger - журнал, выбрасывающий записи (audit type: none)
type NullLogger struct{}

// NewNullLogger - создать null logger
func NewNullLogger() *NullLogger {
	return &NullLogger{}
}

// Log - ничего не делает
func (nl *NullLogger) Log(ctx context.Context, entry *Entry) error {
	return nil
}

// Flush - ничего не делает
func (nl *NullLogger) Flush() error {
	return nil
}

// Close - ничего не делает
func (nl *NullLogger) Close() error {
	return nil
}
