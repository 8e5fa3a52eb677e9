// Package archive сохраняет снимки таблиц перед разрушительными
// согласованиями схемы. Снимок — это CSV-представление кадра, сжатое
// zstd или kanzi и сохраненное в локальный каталог или S3. Снимок
// позволяет вернуть данные, если ALTER или пересборка ключа пошла не
// так, как ожидалось.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/ruslano69/mssqlframe/pkg/adapters/mssql"
	"github.com/ruslano69/mssqlframe/pkg/core/frame"
)

// Config описывает параметры архивирования
type Config struct {
	Compression string   `yaml:"compression"` // zstd (по умолчанию) | kanzi
	Level       int      `yaml:"level"`       // уровень zstd, 0 = 3
	Backend     string   `yaml:"backend"`     // local (по умолчанию) | s3
	Dir         string   `yaml:"dir"`         // каталог для backend: local
	S3          S3Config `yaml:"s3"`
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	switch c.Compression {
	case "", "zstd", "kanzi":
	default:
		return fmt.Errorf("unsupported compression '%s', must be 'zstd' or 'kanzi'", c.Compression)
	}
	switch c.Backend {
	case "", "local":
	case "s3":
		if c.S3.Bucket == "" {
			return fmt.Errorf("s3.bucket is required when backend is 's3'")
		}
	default:
		return fmt.Errorf("unsupported backend '%s', must be 'local' or 's3'", c.Backend)
	}
	return nil
}

// Archiver снимает и сохраняет снимки кадров
type Archiver struct {
	codec   codec
	backend Backend
}

// New создает архиватор по конфигурации
func New(ctx context.Context, cfg Config) (*Archiver, error) {
	c, err := newCodec(cfg.Compression, cfg.Level)
	if err != nil {
		return nil, err
	}

	var backend Backend
	switch cfg.Backend {
	case "", "local":
		backend = NewLocalBackend(cfg.Dir)
	case "s3":
		backend, err = NewS3Backend(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported backend '%s', must be 'local' or 's3'", cfg.Backend)
	}

	return &Archiver{codec: c, backend: backend}, nil
}

// SnapshotFrame сохраняет кадр как снимок таблицы и возвращает
// расположение снимка.
func (a *Archiver) SnapshotFrame(ctx context.Context, table string, f *frame.Frame) (string, error) {
	var buf bytes.Buffer
	if err := f.WriteCSV(&buf); err != nil {
		return "", fmt.Errorf("failed to encode snapshot of %s: %w", table, err)
	}

	compressed, err := a.codec.Encode(buf.Bytes())
	if err != nil {
		return "", fmt.Errorf("failed to compress snapshot of %s: %w", table, err)
	}

	name := snapshotName(table, time.Now(), a.codec.Ext())
	location, err := a.backend.Store(ctx, name, compressed)
	if err != nil {
		return "", fmt.Errorf("failed to store snapshot of %s: %w", table, err)
	}
	return location, nil
}

// SnapshotTable читает таблицу целиком и сохраняет снимок.
// Для отсутствующей таблицы возвращается классифицированный сбой:
// вызывающая сторона решает, пропускать его или нет.
func (a *Archiver) SnapshotTable(ctx context.Context, adapter *mssql.Adapter, table string) (string, error) {
	f, _, err := adapter.ReadTable(ctx, table, mssql.ReadOptions{})
	if err != nil {
		return "", err
	}
	return a.SnapshotFrame(ctx, table, f)
}

// Restore восстанавливает кадр из сжатого снимка
func (a *Archiver) Restore(data []byte) (*frame.Frame, error) {
	raw, err := a.codec.Decode(data)
	if err != nil {
		return nil, err
	}
	return frame.ReadCSV(bytes.NewReader(raw))
}

// snapshotName строит имя снимка: <таблица>_<RFC3339>.csv.<ext>
func snapshotName(table string, now time.Time, ext string) string {
	return fmt.Sprintf("%s_%s.csv.%s", table, now.UTC().Format(time.RFC3339), ext)
}
