package audit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileAppender - журнал операций в файле с ротацией по размеру.
// В режиме JSON каждая запись занимает одну строку (JSONL), что
// позволяет грепать журнал по таблице или операции.
type FileAppender struct {
	mu          sync.Mutex
	file        *os.File
	filePath    string
	maxSize     int64 // Максимальный размер файла в байтах
	maxBackups  int   // Количество backup файлов
	currentSize int64
	level       Level
	formatJSON  bool
}

// FileAppenderConfig - конфигурация file appender
type FileAppenderConfig struct {
	FilePath   string
	MaxSize    int64 // В мегабайтах
	MaxBackups int
	Level      Level
	FormatJSON bool
}

// NewFileAppender - создать file appender
func NewFileAppender(config FileAppenderConfig) (*FileAppender, error) {
	dir := filepath.Dir(config.FilePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.OpenFile(config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit file: %w", err)
	}

	fileInfo, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	maxSize := config.MaxSize
	if maxSize == 0 {
		maxSize = 100 // По умолчанию 100 MB
	}

	maxBackups := config.MaxBackups
	if maxBackups == 0 {
		maxBackups = 5
	}

	return &FileAppender{
		file:        file,
		filePath:    config.FilePath,
		maxSize:     maxSize * 1024 * 1024,
		maxBackups:  maxBackups,
		currentSize: fileInfo.Size(),
		level:       config.Level,
		formatJSON:  config.FormatJSON,
	}, nil
}

// Append - записать entry в файл
func (fa *FileAppender) Append(ctx context.Context, entry *Entry) error {
	fa.mu.Lock()
	defer fa.mu.Unlock()

	filtered := entry.FilterByLevel(fa.level)

	var data []byte

	if fa.formatJSON {
		line, err := filtered.ToJSON()
		if err != nil {
			return fmt.Errorf("failed to marshal entry: %w", err)
		}
		data = append(line, '\n')
	} else {
		data = []byte(renderText(filtered))
	}

	// Проверяем нужна ли ротация
	if fa.currentSize+int64(len(data)) > fa.maxSize {
		if err := fa.rotate(); err != nil {
			return fmt.Errorf("failed to rotate file: %w", err)
		}
	}

	n, err := fa.file.Write(data)
	if err != nil {
		return fmt.Errorf("failed to write entry: %w", err)
	}

	fa.currentSize += int64(n)
	return nil
}

// renderText печатает запись текстом: строка итога и по строке на
// каждое согласование схемы и предупреждение.
func renderText(e *Entry) string {
	var b strings.Builder
	b.WriteString(e.String())
	b.WriteByte('\n')
	for _, a := range e.Adjustments {
		b.WriteString("  adjusted: ")
		b.WriteString(a)
		b.WriteByte('\n')
	}
	for _, w := range e.Warnings {
		b.WriteString("  warning: ")
		b.WriteString(w)
		b.WriteByte('\n')
	}
	return b.String()
}

// rotate - ротация файлов
func (fa *FileAppender) rotate() error {
	if err := fa.file.Close(); err != nil {
		return err
	}

	// Сдвигаем существующие backup файлы
	for i := fa.maxBackups - 1; i > 0; i-- {
		oldPath := fmt.Sprintf("%s.%d", fa.filePath, i)
		newPath := fmt.Sprintf("%s.%d", fa.filePath, i+1)

		if _, err := os.Stat(oldPath); err == nil {
			if i+1 > fa.maxBackups {
				os.Remove(newPath)
			}
			os.Rename(oldPath, newPath)
		}
	}

	backupPath := fmt.Sprintf("%s.1", fa.filePath)
	if err := os.Rename(fa.filePath, backupPath); err != nil {
		return err
	}

	file, err := os.OpenFile(fa.filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}

	fa.file = file
	fa.currentSize = 0

	return nil
}

// Close - закрыть файл
func (fa *FileAppender) Close() error {
	fa.mu.Lock()
	defer fa.mu.Unlock()

	if fa.file != nil {
		return fa.file.Close()
	}

	return nil
}

// Flush - сбросить буфер
func (fa *FileAppender) Flush() error {
	fa.mu.Lock()
	defer fa.mu.Unlock()

	if fa.file != nil {
		return fa.file.Sync()
	}

	return nil
}

// CurrentSize - текущий размер файла
func (fa *FileAppender) CurrentSize() int64 {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	return fa.currentSize
}

// FilePath - путь к файлу
func (fa *FileAppender) FilePath() string {
	return fa.filePath
}

// ConsoleAppender - журнал на stdout; сбойные операции могут уходить
// на stderr
type ConsoleAppender struct {
	level      Level
	formatJSON bool
	useStderr  bool
}

// NewConsoleAppender - создать console appender
func NewConsoleAppender(level Level, formatJSON bool) *ConsoleAppender {
	return &ConsoleAppender{
		level:      level,
		formatJSON: formatJSON,
		useStderr:  false,
	}
}

// Append - записать в console
func (ca *ConsoleAppender) Append(ctx context.Context, entry *Entry) error {
	filtered := entry.FilterByLevel(ca.level)

	var output string
	if ca.formatJSON {
		data, err := filtered.ToJSONIndent()
		if err != nil {
			return err
		}
		output = string(data) + "\n"
	} else {
		output = renderText(filtered)
	}

	if ca.useStderr && entry.Status == StatusFailure {
		fmt.Fprint(os.Stderr, output)
	} else {
		fmt.Print(output)
	}

	return nil
}

// Close - закрыть console appender (noop)
func (ca *ConsoleAppender) Close() error {
	return nil
}
